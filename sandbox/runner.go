package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ChildArg is the argument that switches a binary into sandbox child mode
const ChildArg = "sandbox-exec"

// processGrace covers process start-up on top of the evaluation timeout
const processGrace = 2 * time.Second

// InProcessRunner evaluates jobs in the host process, bounded by the interpreter watchdog
type InProcessRunner struct{}

func (InProcessRunner) Run(ctx context.Context, job Job) (Outcome, error) {
	return Evaluate(ctx, job), nil
}

/* ProcessRunner evaluates each job in a child process
 * The job goes in as JSON on stdin and the outcome comes back as JSON on stdout;
 * the child caps its own address space before touching user code
 */
type ProcessRunner struct {
	Path string
	Args []string
	Env  []string
}

// NewProcessRunner re-executes the current binary in child mode
func NewProcessRunner() (*ProcessRunner, error) {
	path, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolving executable: %w", err)
	}
	return &ProcessRunner{Path: path, Args: []string{ChildArg}}, nil
}

func (r *ProcessRunner) Run(ctx context.Context, job Job) (Outcome, error) {
	job.Limits = job.Limits.withDefaults()

	input, err := json.Marshal(job)
	if err != nil {
		return Outcome{}, fmt.Errorf("encoding job: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, job.Limits.Timeout+processGrace)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.Path, r.Args...)
	cmd.Env = append(os.Environ(), r.Env...)
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runCtx.Err() != nil {
		if ctx.Err() != nil {
			return Outcome{}, fmt.Errorf("sandbox process: %w", ctx.Err())
		}
		return interrupted(KindTimeout, job.Limits), nil
	}
	if runErr != nil {
		if outOfMemory(stderr.String()) {
			return interrupted(KindMemory, job.Limits), nil
		}
		return Outcome{}, fmt.Errorf("sandbox process: %w: %s", runErr, lastLine(stderr.String()))
	}

	var out Outcome
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return Outcome{}, fmt.Errorf("decoding sandbox outcome: %w", err)
	}
	return out, nil
}

func outOfMemory(stderr string) bool {
	s := strings.ToLower(stderr)
	return strings.Contains(s, "out of memory") || strings.Contains(s, "cannot allocate memory")
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return lines[len(lines)-1]
}

// ServeChild is the child side of ProcessRunner: read a job, cap memory, evaluate, write the outcome
func ServeChild(r io.Reader, w io.Writer) error {
	var job Job
	if err := json.NewDecoder(r).Decode(&job); err != nil {
		return fmt.Errorf("decoding job: %w", err)
	}
	job.Limits = job.Limits.withDefaults()

	if err := limitMemory(job.Limits.MemoryBytes); err != nil {
		return fmt.Errorf("limiting memory: %w", err)
	}

	out := Evaluate(context.Background(), job)
	if err := json.NewEncoder(w).Encode(out); err != nil {
		return fmt.Errorf("encoding outcome: %w", err)
	}
	return nil
}

// IsChild reports whether args ask for sandbox child mode
func IsChild(args []string) bool {
	return len(args) > 1 && args[1] == ChildArg
}

var errNoProc = errors.New("process size unavailable")
