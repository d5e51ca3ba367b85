package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
)

/* Sandbox is the execution boundary for untrusted rule code
 * Every call serializes its input, runs it through the Runner under Limits
 * and deserializes the result
 */
type Sandbox struct {
	runner Runner
	limits Limits
}

func New(runner Runner, limits Limits) *Sandbox {
	if runner == nil {
		runner = InProcessRunner{}
	}
	return &Sandbox{runner: runner, limits: limits.withDefaults()}
}

// Transform runs transformation code; empty code or no transform function passes the body through
func (s *Sandbox) Transform(ctx context.Context, code string, c Context) (json.RawMessage, error) {
	out, err := s.runner.Run(ctx, Job{Mode: ModeTransform, Code: code, Context: c, Limits: s.limits})
	if err != nil {
		return nil, fmt.Errorf("running transformation: %w", err)
	}
	if err := out.Err(); err != nil {
		return nil, err
	}
	return out.Output, nil
}

// Filter evaluates custom filter code; it passes only on a strict boolean true
func (s *Sandbox) Filter(ctx context.Context, code string, c Context) (bool, error) {
	out, err := s.runner.Run(ctx, Job{Mode: ModeFilter, Code: code, Context: c, Limits: s.limits})
	if err != nil {
		return false, fmt.Errorf("running filter: %w", err)
	}
	if err := out.Err(); err != nil {
		return false, err
	}
	var pass bool
	if err := json.Unmarshal(out.Output, &pass); err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return pass, nil
}

type Validation struct {
	Valid  bool            `json:"valid"`
	Output json.RawMessage `json:"output,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Validate test-runs transformation code against a synthetic event whose body is sample
func (s *Sandbox) Validate(ctx context.Context, code string, sample json.RawMessage) Validation {
	out, err := s.Transform(ctx, code, sampleContext(sample))
	if err != nil {
		return Validation{Valid: false, Error: err.Error()}
	}
	return Validation{Valid: true, Output: out}
}
