// Package planner implements the Planner ↔ LLM Adapter: prompt
// construction, a pluggable LLMBackend capability (replacing the
// source's module-level LLM client singleton per the REDESIGN FLAGS),
// the five-stage JSON salvage pipeline, and pre-execution plan
// validation. Grounded throughout on
// original_source/src/core/planning_module.py.
package planner

import "context"

// LLMBackend is the capability a Planner is constructed with. Call
// takes a fully assembled prompt and returns the model's raw text
// response; all prompt construction and response parsing lives in this
// package, not in the backend.
type LLMBackend interface {
	Call(ctx context.Context, prompt string) (string, error)
	Name() string
}

// FixtureBackend is a deterministic LLMBackend for tests: it returns a
// pre-scripted response for each call, in order, or Default if the
// script is exhausted.
type FixtureBackend struct {
	Responses []string
	Default   string
	calls     int
	Prompts   []string
}

func (f *FixtureBackend) Call(ctx context.Context, prompt string) (string, error) {
	f.Prompts = append(f.Prompts, prompt)
	if f.calls < len(f.Responses) {
		r := f.Responses[f.calls]
		f.calls++
		return r, nil
	}
	return f.Default, nil
}

func (f *FixtureBackend) Name() string { return "fixture" }
