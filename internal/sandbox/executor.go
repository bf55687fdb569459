package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/smilemakc/cadtalk/internal/domainerr"
	"github.com/smilemakc/cadtalk/internal/model"
)

// Executor runs assembled scripts through an Evaluator, persists every
// script it runs, and turns the evaluator's sentinel-delimited stdout
// into a model.ExecutionResult.
type Executor struct {
	Evaluator     Evaluator
	ScriptsDir    string
	DefaultLimits ResourceLimits
}

// NewExecutor builds an Executor. Pass sandbox.FixtureEvaluator{} to run
// entirely in-process (tests, the demo binary with no evaluator
// configured) or a SubprocessEvaluator to shell out to a real one.
func NewExecutor(evaluator Evaluator, scriptsDir string, defaultLimits ResourceLimits) *Executor {
	return &Executor{Evaluator: evaluator, ScriptsDir: scriptsDir, DefaultLimits: defaultLimits}
}

// Run persists script, executes it under limits (falling back to the
// Executor's defaults for zero fields), and returns the parsed
// model.ExecutionResult. It never returns a non-nil error for a script
// that ran and failed or timed out — that terminal state is carried in
// the returned ExecutionResult's Status/Error/Traceback fields, exactly
// as execute_modification/execute_creation_plan report it. A non-nil
// error here means cadtalk's own plumbing (disk I/O, evaluator launch)
// failed, not the evaluated script.
func (e *Executor) Run(ctx context.Context, script string, cmd Command, limits ResourceLimits) (model.ExecutionResult, error) {
	if limits.Timeout <= 0 {
		limits.Timeout = e.DefaultLimits.Timeout
	}
	if limits.MaxMemoryBytes <= 0 {
		limits.MaxMemoryBytes = e.DefaultLimits.MaxMemoryBytes
	}

	ts := time.Now()
	path, err := persistScript(e.ScriptsDir, cmd, script, ts)
	if err != nil {
		return model.ExecutionResult{}, err
	}
	if path == "" {
		// No ScriptsDir configured: nothing was written, and every
		// Evaluator reads the script from a file path, so Run cannot
		// proceed.
		return model.ExecutionResult{}, fmt.Errorf("sandbox: ScriptsDir is required to run %s", cmd.Context)
	}

	raw, err := e.Evaluator.Evaluate(ctx, path, limits)
	if err != nil {
		return model.ExecutionResult{}, err
	}

	result := parseSentinel(raw)
	result.Script = script
	return result, nil
}

const (
	sentinelSuccess = "EXECUTION_SUCCESS"
	sentinelError   = "EXECUTION_ERROR:"
)

// parseSentinel turns one evaluator invocation's raw stdout/stderr into
// a terminal ExecutionResult, per the EXECUTION_SUCCESS\n<json> /
// EXECUTION_ERROR:<msg> contract executor.py's generated epilogue
// establishes.
func parseSentinel(raw RawResult) model.ExecutionResult {
	elapsed := raw.Duration.Milliseconds()

	if raw.Killed {
		return model.ExecutionResult{
			Status:    model.StatusTimeout,
			ElapsedMS: elapsed,
			Error:     "execution exceeded the configured timeout",
		}
	}

	out := raw.Stdout
	if idx := strings.Index(out, sentinelSuccess); idx >= 0 {
		payload := strings.TrimSpace(out[idx+len(sentinelSuccess):])
		var decoded struct {
			BBox struct {
				Min [3]float64 `json:"min"`
				Max [3]float64 `json:"max"`
			} `json:"bbox"`
			Volume       float64    `json:"volume"`
			CenterOfMass [3]float64 `json:"center_of_mass"`
		}
		if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
			return model.ExecutionResult{
				Status:    model.StatusError,
				ElapsedMS: elapsed,
				Error:     fmt.Sprintf("malformed success payload: %v", err),
			}
		}
		bbox := model.BBox{Min: decoded.BBox.Min, Max: decoded.BBox.Max}
		vol := decoded.Volume
		com := decoded.CenterOfMass
		return model.ExecutionResult{
			Status:       model.StatusSuccess,
			ElapsedMS:    elapsed,
			BBox:         &bbox,
			Volume:       &vol,
			CenterOfMass: &com,
		}
	}

	combined := out + raw.Stderr
	if idx := strings.Index(combined, sentinelError); idx >= 0 {
		msg := strings.TrimSpace(combined[idx+len(sentinelError):])
		return model.ExecutionResult{Status: model.StatusError, ElapsedMS: elapsed, Error: msg, Traceback: raw.Stderr}
	}

	return model.ExecutionResult{
		Status:    model.StatusError,
		ElapsedMS: elapsed,
		Error:     domainerr.ExecMissingResult().Error(),
		Traceback: combined,
	}
}
