package forwarding_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/marcelsud/webhook-relay/event"
	"github.com/marcelsud/webhook-relay/forwarding"
	"github.com/marcelsud/webhook-relay/forwarding/mocks"
	"github.com/marcelsud/webhook-relay/sandbox"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	repo        *mocks.Repository
	filter      *mocks.Filter
	transformer *mocks.Transformer
	dispatcher  *mocks.Dispatcher
	service     *forwarding.Service
}

func newFixture(t *testing.T) fixture {
	f := fixture{
		repo:        mocks.NewRepository(t),
		filter:      mocks.NewFilter(t),
		transformer: mocks.NewTransformer(t),
		dispatcher:  mocks.NewDispatcher(t),
	}
	f.service = forwarding.NewService(forwarding.ServiceConfig{
		Repo:        f.repo,
		Filter:      f.filter,
		Transformer: f.transformer,
		Dispatcher:  f.dispatcher,
		Logger:      zerolog.Nop(),
	})
	return f
}

func testEvent() event.Event {
	return event.Event{
		ID:         "ev-1",
		EndpointID: "ep-1",
		Source:     "stripe",
		Status:     event.Pending,
		CreatedAt:  time.Now(),
		Request: event.Request{
			Method:  "POST",
			Headers: map[string]string{"Content-Type": "application/json"},
			Body:    []byte(`{"type":"payment.succeeded"}`),
			Path:    "/stripe",
		},
	}
}

func dest(id string, active bool) forwarding.Destination {
	return forwarding.Destination{ID: id, EndpointID: "ep-1", Type: forwarding.Webhook, IsActive: active, Config: forwarding.DestinationConfig{URL: "https://example.com/" + id}}
}

var pass = forwarding.FilterResult{Pass: true}

func TestProcess(t *testing.T) {
	ctx := context.Background()
	ev := testEvent()

	t.Run("success - runs rules in priority order with passthrough", func(t *testing.T) {
		f := newFixture(t)
		rules := []forwarding.Rule{
			{ID: "r-late", DestinationID: "d-1", Priority: 10, IsActive: true},
			{ID: "r-first", DestinationID: "d-1", Priority: 1, IsActive: true},
			{ID: "r-tie", DestinationID: "d-1", Priority: 10, IsActive: true},
		}
		dests := map[string]forwarding.Destination{"d-1": dest("d-1", true)}

		var order []string
		f.filter.On("Evaluate", ctx, ev, mock.Anything).Return(pass)
		f.dispatcher.On("Dispatch", ctx, dests["d-1"], json.RawMessage(`{"type":"payment.succeeded"}`)).
			Return(forwarding.DispatchResult{Success: true, Response: &forwarding.DestinationResponse{Status: 200}})
		f.repo.On("InsertExecution", ctx, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
			order = append(order, args.Get(1).(forwarding.Execution).RuleID)
		})

		res := f.service.Process(ctx, ev, rules, dests)

		assert.True(t, res.Success)
		require.Len(t, res.Executions, 3)
		assert.Equal(t, []string{"r-first", "r-late", "r-tie"}, order)
		for _, e := range res.Executions {
			assert.JSONEq(t, `{"type":"payment.succeeded"}`, string(e.TransformedPayload))
			assert.JSONEq(t, `{"type":"payment.succeeded"}`, string(e.OriginalPayload))
			assert.Equal(t, 200, e.DestinationResponse.Status)
			assert.Equal(t, "ev-1", e.EventID)
		}
		f.transformer.AssertNotCalled(t, "Transform", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("success - skips inactive rules and unresolved destinations without records", func(t *testing.T) {
		f := newFixture(t)
		rules := []forwarding.Rule{
			{ID: "r-inactive", DestinationID: "d-1", IsActive: false},
			{ID: "r-missing", DestinationID: "d-404", IsActive: true},
			{ID: "r-off", DestinationID: "d-off", IsActive: true},
		}
		dests := map[string]forwarding.Destination{"d-1": dest("d-1", true), "d-off": dest("d-off", false)}

		res := f.service.Process(ctx, ev, rules, dests)

		assert.False(t, res.Success)
		assert.Empty(t, res.Executions)
		f.filter.AssertNotCalled(t, "Evaluate", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("success - filtered out rules leave no record", func(t *testing.T) {
		f := newFixture(t)
		rules := []forwarding.Rule{{ID: "r-1", DestinationID: "d-1", IsActive: true, Filters: forwarding.Filters{EventNames: []string{"payment.failed"}}}}
		dests := map[string]forwarding.Destination{"d-1": dest("d-1", true)}

		f.filter.On("Evaluate", ctx, ev, rules[0].Filters).Return(forwarding.FilterResult{Pass: false, Reason: "nope"})

		res := f.service.Process(ctx, ev, rules, dests)

		assert.Empty(t, res.Executions)
		f.repo.AssertNotCalled(t, "InsertExecution", mock.Anything, mock.Anything)
	})

	t.Run("error - transformation failure records a failed execution without dispatch", func(t *testing.T) {
		f := newFixture(t)
		rules := []forwarding.Rule{
			{ID: "r-broken", DestinationID: "d-1", IsActive: true, Transformation: "function transform() { throw 1 }"},
			{ID: "r-ok", DestinationID: "d-1", Priority: 1, IsActive: true, Transformation: "function transform() { return 1 }"},
		}
		dests := map[string]forwarding.Destination{"d-1": dest("d-1", true)}

		f.filter.On("Evaluate", ctx, ev, mock.Anything).Return(pass)
		f.transformer.On("Transform", ctx, rules[0].Transformation, mock.AnythingOfType("sandbox.Context")).
			Return(nil, fmt.Errorf("%w: 1", sandbox.ErrScript))
		f.transformer.On("Transform", ctx, rules[1].Transformation, mock.AnythingOfType("sandbox.Context")).
			Return(json.RawMessage(`1`), nil)
		f.dispatcher.On("Dispatch", ctx, dests["d-1"], json.RawMessage(`1`)).Return(forwarding.DispatchResult{Success: true}).Once()
		f.repo.On("InsertExecution", ctx, forwarding.MatchExecution(func(e forwarding.Execution) bool {
			return e.RuleID == "r-broken" && !e.Success && e.DestinationResponse == nil && e.TransformedPayload == nil
		})).Return(nil).Once()
		f.repo.On("InsertExecution", ctx, forwarding.MatchExecution(func(e forwarding.Execution) bool {
			return e.RuleID == "r-ok" && e.Success
		})).Return(nil).Once()

		res := f.service.Process(ctx, ev, rules, dests)

		assert.True(t, res.Success)
		require.Len(t, res.Executions, 2)
		assert.Contains(t, res.Executions[0].Error, "transformation failed")
	})

	t.Run("error - dispatch failure is recorded", func(t *testing.T) {
		f := newFixture(t)
		rules := []forwarding.Rule{{ID: "r-1", DestinationID: "d-1", IsActive: true}}
		dests := map[string]forwarding.Destination{"d-1": dest("d-1", true)}

		f.filter.On("Evaluate", ctx, ev, mock.Anything).Return(pass)
		f.dispatcher.On("Dispatch", ctx, dests["d-1"], mock.Anything).Return(forwarding.DispatchResult{
			Success:  false,
			Error:    "HTTP 502: bad gateway",
			Response: &forwarding.DestinationResponse{Status: 502},
		})
		f.repo.On("InsertExecution", ctx, mock.Anything).Return(errors.New("store down"))

		res := f.service.Process(ctx, ev, rules, dests)

		assert.False(t, res.Success)
		require.Len(t, res.Executions, 1)
		assert.Equal(t, "HTTP 502: bad gateway", res.Executions[0].Error)
		assert.Equal(t, 502, res.Executions[0].DestinationResponse.Status)
	})

	t.Run("error - panicking dispatcher does not stop later rules", func(t *testing.T) {
		f := newFixture(t)
		rules := []forwarding.Rule{
			{ID: "r-panic", DestinationID: "d-panic", IsActive: true},
			{ID: "r-ok", DestinationID: "d-1", Priority: 1, IsActive: true},
		}
		dests := map[string]forwarding.Destination{"d-1": dest("d-1", true), "d-panic": dest("d-panic", true)}

		f.filter.On("Evaluate", ctx, ev, mock.Anything).Return(pass)
		f.dispatcher.On("Dispatch", ctx, dests["d-panic"], mock.Anything).Panic("sender exploded")
		f.dispatcher.On("Dispatch", ctx, dests["d-1"], mock.Anything).Return(forwarding.DispatchResult{Success: true})
		f.repo.On("InsertExecution", ctx, mock.Anything).Return(nil)

		res := f.service.Process(ctx, ev, rules, dests)

		require.Len(t, res.Executions, 2)
		assert.False(t, res.Executions[0].Success)
		assert.Contains(t, res.Executions[0].Error, "sender exploded")
		assert.True(t, res.Executions[1].Success)
		assert.True(t, res.Success)
	})

	t.Run("success - empty body passes null through", func(t *testing.T) {
		f := newFixture(t)
		empty := testEvent()
		empty.Request.Body = nil
		rules := []forwarding.Rule{{ID: "r-1", DestinationID: "d-1", IsActive: true}}
		dests := map[string]forwarding.Destination{"d-1": dest("d-1", true)}

		f.filter.On("Evaluate", ctx, empty, mock.Anything).Return(pass)
		f.dispatcher.On("Dispatch", ctx, dests["d-1"], json.RawMessage("null")).Return(forwarding.DispatchResult{Success: true})
		f.repo.On("InsertExecution", ctx, mock.Anything).Return(nil)

		res := f.service.Process(ctx, empty, rules, dests)

		require.Len(t, res.Executions, 1)
		assert.Equal(t, "null", string(res.Executions[0].TransformedPayload))
	})
}

func TestProcessEvent(t *testing.T) {
	ctx := context.Background()
	ev := testEvent()

	t.Run("success - loads configuration from the store", func(t *testing.T) {
		f := newFixture(t)
		rules := []forwarding.Rule{{ID: "r-1", DestinationID: "d-1", IsActive: true}}
		f.repo.On("Rules", ctx, "ep-1").Return(rules, nil)
		f.repo.On("Destinations", ctx, "ep-1").Return([]forwarding.Destination{dest("d-1", true)}, nil)
		f.filter.On("Evaluate", ctx, ev, mock.Anything).Return(pass)
		f.dispatcher.On("Dispatch", ctx, mock.Anything, mock.Anything).Return(forwarding.DispatchResult{Success: true})
		f.repo.On("InsertExecution", ctx, mock.Anything).Return(nil)

		res, err := f.service.ProcessEvent(ctx, ev)

		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Len(t, res.Executions, 1)
	})

	t.Run("success - no rules", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("Rules", ctx, "ep-1").Return(nil, nil)

		res, err := f.service.ProcessEvent(ctx, ev)

		require.NoError(t, err)
		assert.Empty(t, res.Executions)
	})

	t.Run("error - store unreachable", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("Rules", ctx, "ep-1").Return(nil, errors.New("connection refused"))

		_, err := f.service.ProcessEvent(ctx, ev)

		assert.ErrorContains(t, err, "loading rules")
	})
}
