package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// persistScript writes body to dir under a structured filename
// (<ts>_<context>_<session8>[_<plan8>].py) with a metadata header block,
// mirroring _save_generated_code's naming and header format exactly.
func persistScript(dir string, cmd Command, body string, ts time.Time) (string, error) {
	if dir == "" {
		return "", nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("sandbox: create scripts dir: %w", err)
	}

	stamp := ts.Format("20060102_150405")
	ctx := cmd.Context
	if ctx == "" {
		ctx = "unknown"
	}
	name := fmt.Sprintf("%s_%s_%s", stamp, ctx, shortID(cmd.SessionID))
	if cmd.PlanID != "" {
		name += "_" + shortID(cmd.PlanID)
	}
	path := filepath.Join(dir, name+".py")

	var header strings.Builder
	fmt.Fprintf(&header, "# Timestamp: %s\n", ts.Format(time.RFC3339))
	fmt.Fprintf(&header, "# Session ID: %s\n", cmd.SessionID)
	if cmd.PlanID != "" {
		fmt.Fprintf(&header, "# Plan ID: %s\n", cmd.PlanID)
	}
	fmt.Fprintf(&header, "# Context: %s\n\n", ctx)

	if err := os.WriteFile(path, []byte(header.String()+body), 0o644); err != nil {
		return "", fmt.Errorf("sandbox: write script: %w", err)
	}
	return path, nil
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
