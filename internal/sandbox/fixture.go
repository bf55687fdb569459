package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/smilemakc/cadtalk/internal/cadeval"
)

// FixtureEvaluator evaluates a script in-process via cadeval.EvalScript
// instead of spawning a subprocess, and synthesises the same
// EXECUTION_SUCCESS/EXECUTION_ERROR sentinel stdout a real evaluator
// binary would print, so Executor's sentinel parser is exercised
// identically in tests and production. Used only in tests and by the
// cmd/cadtalk demo when no real evaluator binary is configured.
type FixtureEvaluator struct{}

type fixturePayload struct {
	BBox struct {
		Min [3]float64 `json:"min"`
		Max [3]float64 `json:"max"`
	} `json:"bbox"`
	Volume       float64    `json:"volume"`
	CenterOfMass [3]float64 `json:"center_of_mass"`
}

func (FixtureEvaluator) Evaluate(ctx context.Context, scriptPath string, limits ResourceLimits) (RawResult, error) {
	start := time.Now()

	body, err := os.ReadFile(scriptPath)
	if err != nil {
		return RawResult{}, fmt.Errorf("sandbox: fixture evaluator: %w", err)
	}

	res, evalErr := cadeval.EvalScript(string(body))
	duration := time.Since(start)
	if evalErr != nil {
		return RawResult{
			ExitCode: 1,
			Stderr:   fmt.Sprintf("EXECUTION_ERROR:%s", evalErr.Error()),
			Duration: duration,
		}, nil
	}

	payload := fixturePayload{Volume: res.Volume, CenterOfMass: res.CenterOfMass}
	payload.BBox.Min = res.BBox.Min
	payload.BBox.Max = res.BBox.Max
	data, err := json.Marshal(payload)
	if err != nil {
		return RawResult{}, fmt.Errorf("sandbox: fixture evaluator: marshal result: %w", err)
	}

	return RawResult{
		ExitCode: 0,
		Stdout:   fmt.Sprintf("EXECUTION_SUCCESS\n%s\n", data),
		Duration: duration,
	}, nil
}
