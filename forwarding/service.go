package forwarding

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/marcelsud/webhook-relay/event"
	"github.com/marcelsud/webhook-relay/metrics"
	"github.com/marcelsud/webhook-relay/sandbox"
	"github.com/rs/zerolog"
)

// Filter decides whether a rule applies to an event
type Filter interface {
	Evaluate(ctx context.Context, ev event.Event, filters Filters) FilterResult
}

// Transformer runs a rule's transformation code
type Transformer interface {
	Transform(ctx context.Context, code string, c sandbox.Context) (json.RawMessage, error)
}

// Dispatcher delivers a payload to a destination
type Dispatcher interface {
	Dispatch(ctx context.Context, dest Destination, payload json.RawMessage) DispatchResult
}

// UseCase defines the forwarding operations
type UseCase interface {
	Process(ctx context.Context, ev event.Event, rules []Rule, destinations map[string]Destination) Result
	ProcessEvent(ctx context.Context, ev event.Event) (Result, error)
}

type ServiceConfig struct {
	Repo        Repository
	Filter      Filter
	Transformer Transformer
	Dispatcher  Dispatcher
	Recorder    metrics.Recorder
	Logger      zerolog.Logger
}

/* Service runs filter, transform and dispatch for every rule of an event
 * and records one Execution per rule that got past its filter
 */
type Service struct {
	repo        Repository
	filter      Filter
	transformer Transformer
	dispatcher  Dispatcher
	recorder    metrics.Recorder
	logger      zerolog.Logger
	now         func() time.Time
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.Recorder == nil {
		cfg.Recorder = metrics.NopRecorder{}
	}
	return &Service{
		repo:        cfg.Repo,
		filter:      cfg.Filter,
		transformer: cfg.Transformer,
		dispatcher:  cfg.Dispatcher,
		recorder:    cfg.Recorder,
		logger:      cfg.Logger,
		now:         time.Now,
	}
}

// ProcessEvent loads the endpoint's rules and destinations and processes the event
func (s *Service) ProcessEvent(ctx context.Context, ev event.Event) (Result, error) {
	rules, err := s.repo.Rules(ctx, ev.EndpointID)
	if err != nil {
		return Result{}, fmt.Errorf("loading rules: %w", err)
	}
	if len(rules) == 0 {
		return Result{Executions: []Execution{}}, nil
	}
	dests, err := s.repo.Destinations(ctx, ev.EndpointID)
	if err != nil {
		return Result{}, fmt.Errorf("loading destinations: %w", err)
	}

	byID := make(map[string]Destination, len(dests))
	for _, d := range dests {
		byID[d.ID] = d
	}
	return s.Process(ctx, ev, rules, byID), nil
}

// Process never fails; the result always carries every execution recorded
func (s *Service) Process(ctx context.Context, ev event.Event, rules []Rule, destinations map[string]Destination) Result {
	ordered := make([]Rule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	original := originalPayload(ev)
	sbCtx := sandbox.NewContext(ev)
	result := Result{Executions: []Execution{}}

	for _, rule := range ordered {
		logger := s.logger.With().
			Str("event_id", ev.ID).
			Str("rule_id", rule.ID).
			Str("destination_id", rule.DestinationID).
			Logger()

		if !rule.IsActive {
			logger.Debug().Msg("skipping inactive rule")
			continue
		}
		dest, ok := destinations[rule.DestinationID]
		if !ok || !dest.IsActive {
			logger.Warn().Err(ErrDestinationUnresolved).Msg("skipping rule")
			continue
		}

		exec, attempted := s.processRule(ctx, ev, rule, dest, sbCtx, original)
		if !attempted {
			continue
		}

		if err := s.repo.InsertExecution(ctx, exec); err != nil {
			logger.Error().Err(err).Str("execution_id", exec.ID).Msg("storing execution")
		}
		s.recorder.ExecutionFinished(ctx, string(dest.Type), exec.Success, time.Duration(exec.ExecutionTimeMs)*time.Millisecond)
		if !exec.Success {
			logger.Warn().Str("destination_type", string(dest.Type)).Str("error", exec.Error).Msg("forwarding failed")
		}

		result.Executions = append(result.Executions, exec)
		if exec.Success {
			result.Success = true
		}
	}
	return result
}

func (s *Service) processRule(ctx context.Context, ev event.Event, rule Rule, dest Destination, sbCtx sandbox.Context, original json.RawMessage) (exec Execution, attempted bool) {
	start := s.now()
	exec = Execution{
		ID:              uuid.New().String(),
		RuleID:          rule.ID,
		EventID:         ev.ID,
		DestinationID:   dest.ID,
		OriginalPayload: original,
		CreatedAt:       start,
	}
	finish := func() {
		exec.ExecutionTimeMs = s.now().Sub(start).Milliseconds()
	}

	passed := false
	defer func() {
		if r := recover(); r != nil {
			exec.Success = false
			exec.Error = fmt.Sprintf("rule processing panicked: %v", r)
			finish()
			attempted = passed
		}
	}()

	verdict := s.filter.Evaluate(ctx, ev, rule.Filters)
	if !verdict.Pass {
		s.recorder.Filtered(ctx, ev.EndpointID)
		s.logger.Debug().Str("event_id", ev.ID).Str("rule_id", rule.ID).Str("reason", verdict.Reason).Msg("rule filtered out")
		return exec, false
	}
	passed = true

	payload := original
	if strings.TrimSpace(rule.Transformation) != "" {
		out, err := s.transformer.Transform(ctx, rule.Transformation, sbCtx)
		if err != nil {
			exec.Error = fmt.Sprintf("transformation failed: %v", err)
			finish()
			return exec, true
		}
		payload = out
	}
	exec.TransformedPayload = payload

	res := s.dispatcher.Dispatch(ctx, dest, payload)
	exec.Success = res.Success
	exec.Error = res.Error
	exec.DestinationResponse = res.Response
	finish()
	return exec, true
}

// originalPayload is the parsed request body as JSON, null when there is none
func originalPayload(ev event.Event) json.RawMessage {
	data, err := json.Marshal(sandbox.ParseBody(ev.Request.Body))
	if err != nil {
		return json.RawMessage("null")
	}
	return data
}
