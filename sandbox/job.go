package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrTimeout         = errors.New("sandbox execution timed out")
	ErrMemoryLimit     = errors.New("sandbox memory limit exceeded")
	ErrMalformedOutput = errors.New("sandbox output is not serializable")
	ErrScript          = errors.New("sandbox script error")
)

const (
	DefaultTimeout     = 5000 * time.Millisecond
	DefaultMemoryBytes = 128 << 20
)

type Mode string

const (
	ModeTransform Mode = "transform"
	ModeFilter    Mode = "filter"
)

// Limits are the hard budgets of one evaluation
type Limits struct {
	Timeout     time.Duration `json:"timeout"`
	MemoryBytes uint64        `json:"memoryBytes"`
}

func (l Limits) withDefaults() Limits {
	if l.Timeout <= 0 {
		l.Timeout = DefaultTimeout
	}
	if l.MemoryBytes == 0 {
		l.MemoryBytes = DefaultMemoryBytes
	}
	return l
}

// Job is everything a runner needs to evaluate user code; it is plain data
type Job struct {
	Mode    Mode    `json:"mode"`
	Code    string  `json:"code"`
	Context Context `json:"context"`
	Limits  Limits  `json:"limits"`
}

type Kind string

const (
	KindNone      Kind = ""
	KindTimeout   Kind = "timeout"
	KindMemory    Kind = "memory"
	KindMalformed Kind = "malformed"
	KindScript    Kind = "script"
)

/* Outcome is what comes back across the boundary
 * Output holds serialized JSON: the transformed payload, or a boolean in filter mode
 */
type Outcome struct {
	Output json.RawMessage `json:"output,omitempty"`
	Error  string          `json:"error,omitempty"`
	Kind   Kind            `json:"kind,omitempty"`
}

// Err maps a failed outcome to its sentinel error
func (o Outcome) Err() error {
	var sentinel error
	switch o.Kind {
	case KindNone:
		return nil
	case KindTimeout:
		sentinel = ErrTimeout
	case KindMemory:
		sentinel = ErrMemoryLimit
	case KindMalformed:
		sentinel = ErrMalformedOutput
	default:
		sentinel = ErrScript
	}
	if o.Error == "" {
		return sentinel
	}
	return fmt.Errorf("%w: %s", sentinel, o.Error)
}

// Runner evaluates a job behind some isolation boundary
type Runner interface {
	Run(ctx context.Context, job Job) (Outcome, error)
}
