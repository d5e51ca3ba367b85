package sandbox_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/marcelsud/webhook-relay/event"
	"github.com/marcelsud/webhook-relay/sandbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const childEnv = "WEBHOOK_RELAY_SANDBOX_CHILD"

func TestMain(m *testing.M) {
	if os.Getenv(childEnv) == "1" {
		if err := sandbox.ServeChild(os.Stdin, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func testContext() sandbox.Context {
	return sandbox.NewContext(event.Event{
		ID:         "ev-1",
		EndpointID: "ep-1",
		Source:     "stripe",
		CreatedAt:  time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC),
		Request: event.Request{
			Method:      "POST",
			Headers:     map[string]string{"Stripe-Signature": "t=1,v1=abc"},
			Body:        []byte(`{"type":"payment.succeeded","data":{"object":{"amount":4200,"currency":"usd"}}}`),
			SourceURL:   "https://hooks.example.com/e/ep-1/stripe",
			ContentType: "application/json",
		},
	})
}

func runners(t *testing.T) map[string]sandbox.Runner {
	path, err := os.Executable()
	require.NoError(t, err)
	return map[string]sandbox.Runner{
		"in-process": sandbox.InProcessRunner{},
		"process":    &sandbox.ProcessRunner{Path: path, Env: []string{childEnv + "=1"}},
	}
}

func TestSandbox_Transform(t *testing.T) {
	ctx := context.Background()

	for name, runner := range runners(t) {
		t.Run(name, func(t *testing.T) {
			sb := sandbox.New(runner, sandbox.Limits{Timeout: 2 * time.Second, MemoryBytes: 64 << 20})

			t.Run("success - transform reads context and helpers", func(t *testing.T) {
				code := `function transform(ctx) {
					return {
						text: ctx.event.source + ": " + ctx.request.body.type,
						amount: utils.get(ctx.request.body, "data.object.amount", 0),
						missing: utils.get(ctx.request.body, "data.nope.deep", "n/a"),
						day: utils.formatDate(ctx.event.timestamp, "date")
					};
				}`

				out, err := sb.Transform(ctx, code, testContext())

				require.NoError(t, err)
				assert.JSONEq(t, `{"text":"stripe: payment.succeeded","amount":4200,"missing":"n/a","day":"2024-03-01"}`, string(out))
			})

			t.Run("success - passthrough without code", func(t *testing.T) {
				out, err := sb.Transform(ctx, "", testContext())

				require.NoError(t, err)
				assert.JSONEq(t, `{"type":"payment.succeeded","data":{"object":{"amount":4200,"currency":"usd"}}}`, string(out))
			})

			t.Run("success - passthrough without transform function", func(t *testing.T) {
				out, err := sb.Transform(ctx, "var x = 1;", sandbox.Context{})

				require.NoError(t, err)
				assert.Equal(t, "null", string(out))
			})

			t.Run("success - undefined result becomes null", func(t *testing.T) {
				out, err := sb.Transform(ctx, "function transform() {}", testContext())

				require.NoError(t, err)
				assert.Equal(t, "null", string(out))
			})

			t.Run("error - context is read-only", func(t *testing.T) {
				code := `function transform(ctx) { "use strict"; ctx.request.body.type = "changed"; return ctx.request.body; }`

				_, err := sb.Transform(ctx, code, testContext())

				assert.ErrorIs(t, err, sandbox.ErrScript)
			})

			t.Run("error - thrown exception", func(t *testing.T) {
				_, err := sb.Transform(ctx, `function transform() { throw new Error("boom"); }`, testContext())

				require.ErrorIs(t, err, sandbox.ErrScript)
				assert.Contains(t, err.Error(), "boom")
			})

			t.Run("error - syntax error", func(t *testing.T) {
				_, err := sb.Transform(ctx, `function transform( {`, testContext())

				assert.ErrorIs(t, err, sandbox.ErrScript)
			})

			t.Run("error - function output is malformed", func(t *testing.T) {
				_, err := sb.Transform(ctx, `function transform() { return function () {}; }`, testContext())

				assert.ErrorIs(t, err, sandbox.ErrMalformedOutput)
			})

			t.Run("error - cyclic output is malformed", func(t *testing.T) {
				_, err := sb.Transform(ctx, `function transform() { var a = {}; a.self = a; return a; }`, testContext())

				assert.ErrorIs(t, err, sandbox.ErrMalformedOutput)
			})
		})
	}
}

func TestSandbox_Limits(t *testing.T) {
	ctx := context.Background()

	for name, runner := range runners(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("error - infinite loop times out", func(t *testing.T) {
				sb := sandbox.New(runner, sandbox.Limits{Timeout: 200 * time.Millisecond})

				start := time.Now()
				_, err := sb.Transform(ctx, `function transform() { while (true) {} }`, testContext())

				assert.ErrorIs(t, err, sandbox.ErrTimeout)
				assert.Less(t, time.Since(start), 5*time.Second)
			})

			t.Run("error - allocation beyond the budget", func(t *testing.T) {
				sb := sandbox.New(runner, sandbox.Limits{Timeout: 20 * time.Second, MemoryBytes: 32 << 20})

				code := `function transform() {
					var hog = [];
					while (true) { hog.push(new Array(100000).fill("x")); }
				}`
				_, err := sb.Transform(ctx, code, testContext())

				assert.ErrorIs(t, err, sandbox.ErrMemoryLimit)
			})
		})
	}
}

func TestSandbox_Filter(t *testing.T) {
	ctx := context.Background()
	sb := sandbox.New(sandbox.InProcessRunner{}, sandbox.Limits{Timeout: time.Second})

	tests := []struct {
		name string
		code string
		pass bool
	}{
		{"expression true", `request.method === "POST"`, true},
		{"expression false", `request.method === "GET"`, false},
		{"return statement", `return request.body.data.object.amount > 1000;`, true},
		{"filter function", `function filter(ctx) { return ctx.event.source === "stripe"; }`, true},
		{"truthy non boolean does not pass", `"yes"`, false},
		{"helpers available", `utils.get(request.body, "data.object.currency") === "usd"`, true},
	}
	for _, tt := range tests {
		t.Run("success - "+tt.name, func(t *testing.T) {
			pass, err := sb.Filter(ctx, tt.code, testContext())

			require.NoError(t, err)
			assert.Equal(t, tt.pass, pass)
		})
	}

	t.Run("error - reference error", func(t *testing.T) {
		pass, err := sb.Filter(ctx, `nope.value === 1`, testContext())

		assert.ErrorIs(t, err, sandbox.ErrScript)
		assert.False(t, pass)
	})
}

func TestSandbox_Validate(t *testing.T) {
	ctx := context.Background()
	sb := sandbox.New(sandbox.InProcessRunner{}, sandbox.Limits{Timeout: time.Second})

	t.Run("success - output from sample", func(t *testing.T) {
		v := sb.Validate(ctx, `function transform(ctx) { return { id: ctx.event.id, n: ctx.request.body.n * 2 }; }`, json.RawMessage(`{"n":21}`))

		assert.True(t, v.Valid)
		assert.JSONEq(t, `{"id":"test-event","n":42}`, string(v.Output))
	})

	t.Run("error - invalid code", func(t *testing.T) {
		v := sb.Validate(ctx, `function transform(ctx) { return ctx.missing.field; }`, nil)

		assert.False(t, v.Valid)
		assert.NotEmpty(t, v.Error)
	})
}

func TestParseBody(t *testing.T) {
	assert.Nil(t, sandbox.ParseBody(nil))
	assert.Equal(t, map[string]any{"a": float64(1)}, sandbox.ParseBody([]byte(`{"a":1}`)))
	assert.Equal(t, "plain text", sandbox.ParseBody([]byte("plain text")))
}
