package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/metrics"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
)

const (
	memoryPollInterval = 5 * time.Millisecond
	maxCallStackSize   = 1024
	heapMetric         = "/memory/classes/heap/objects:bytes"
)

/* Evaluate runs one job in a fresh interpreter and never panics
 * The wall-clock and heap budgets are enforced by interrupting the interpreter
 */
func Evaluate(ctx context.Context, job Job) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Kind: KindScript, Error: fmt.Sprintf("sandbox panic: %v", r)}
		}
	}()

	limits := job.Limits.withDefaults()
	contextJSON, err := json.Marshal(job.Context)
	if err != nil {
		return Outcome{Kind: KindScript, Error: fmt.Sprintf("encoding context: %v", err)}
	}

	vm := goja.New()
	vm.SetMaxCallStackSize(maxCallStackSize)

	var reason atomic.Value
	done := make(chan struct{})
	defer close(done)
	go watchdog(ctx, vm, limits, done, &reason)

	out = run(vm, job, string(contextJSON))
	if out.Kind == KindScript {
		if k, ok := reason.Load().(Kind); ok {
			return interrupted(k, limits)
		}
	}
	return out
}

func run(vm *goja.Runtime, job Job, contextJSON string) Outcome {
	if err := vm.Set("__contextJSON", contextJSON); err != nil {
		return failure(err)
	}
	if _, err := vm.RunString(prelude); err != nil {
		return failure(err)
	}

	switch job.Mode {
	case ModeFilter:
		return runFilter(vm, job.Code)
	default:
		return runTransform(vm, job)
	}
}

func runTransform(vm *goja.Runtime, job Job) Outcome {
	if job.Code != "" {
		if _, err := vm.RunString(job.Code); err != nil {
			return failure(err)
		}
	}

	fn, ok := goja.AssertFunction(vm.Get("transform"))
	if !ok {
		body, err := json.Marshal(job.Context.Request.Body)
		if err != nil {
			return Outcome{Kind: KindMalformed, Error: err.Error()}
		}
		return Outcome{Output: body}
	}

	result, err := fn(goja.Undefined(), vm.Get("context"))
	if err != nil {
		return failure(err)
	}
	return serialize(vm, result)
}

/* runFilter accepts three shapes of filter code: a filter(context) function,
 * a bare expression, or a function body ending in a return statement
 */
func runFilter(vm *goja.Runtime, code string) Outcome {
	var result goja.Value

	if _, err := goja.Compile("filter", code, false); err == nil {
		v, err := vm.RunString(code)
		if err != nil {
			return failure(err)
		}
		result = v
		if fn, ok := goja.AssertFunction(vm.Get("filter")); ok {
			if result, err = fn(goja.Undefined(), vm.Get("context")); err != nil {
				return failure(err)
			}
		}
	} else {
		wrapped := "(function (context, event, request, utils) {\n" + code + "\n})(context, event, request, utils)"
		v, err := vm.RunString(wrapped)
		if err != nil {
			return failure(err)
		}
		result = v
	}

	pass := result != nil && result.StrictEquals(vm.ToValue(true))
	if pass {
		return Outcome{Output: json.RawMessage("true")}
	}
	return Outcome{Output: json.RawMessage("false")}
}

func serialize(vm *goja.Runtime, v goja.Value) Outcome {
	fn, ok := goja.AssertFunction(vm.Get("__serialize"))
	if !ok {
		return Outcome{Kind: KindScript, Error: "serializer unavailable"}
	}
	s, err := fn(goja.Undefined(), v)
	if err != nil {
		var interrupt *goja.InterruptedError
		if errors.As(err, &interrupt) {
			return failure(err)
		}
		return Outcome{Kind: KindMalformed, Error: scriptMessage(err)}
	}
	raw := s.String()
	if !json.Valid([]byte(raw)) {
		return Outcome{Kind: KindMalformed, Error: "output is not valid JSON"}
	}
	return Outcome{Output: json.RawMessage(raw)}
}

func failure(err error) Outcome {
	return Outcome{Kind: KindScript, Error: scriptMessage(err)}
}

func scriptMessage(err error) string {
	var exc *goja.Exception
	if errors.As(err, &exc) {
		if v := exc.Value(); v != nil {
			return v.String()
		}
	}
	return err.Error()
}

func interrupted(k Kind, limits Limits) Outcome {
	switch k {
	case KindMemory:
		return Outcome{Kind: KindMemory, Error: fmt.Sprintf("heap grew beyond %d bytes", limits.MemoryBytes)}
	default:
		return Outcome{Kind: KindTimeout, Error: fmt.Sprintf("execution exceeded %s", limits.Timeout)}
	}
}

func watchdog(ctx context.Context, vm *goja.Runtime, limits Limits, done <-chan struct{}, reason *atomic.Value) {
	timer := time.NewTimer(limits.Timeout)
	defer timer.Stop()
	ticker := time.NewTicker(memoryPollInterval)
	defer ticker.Stop()

	baseline := heapBytes()
	stop := func(k Kind) {
		reason.Store(k)
		vm.Interrupt(string(k))
	}

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			stop(KindTimeout)
			return
		case <-timer.C:
			stop(KindTimeout)
			return
		case <-ticker.C:
			if heapBytes() > baseline+limits.MemoryBytes {
				stop(KindMemory)
				return
			}
		}
	}
}

func heapBytes() uint64 {
	sample := []metrics.Sample{{Name: heapMetric}}
	metrics.Read(sample)
	if sample[0].Value.Kind() != metrics.KindUint64 {
		return 0
	}
	return sample[0].Value.Uint64()
}
