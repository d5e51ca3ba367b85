package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/marcelsud/webhook-relay/event"
	"github.com/marcelsud/webhook-relay/forwarding"
	"github.com/marcelsud/webhook-relay/sandbox"
	"github.com/rs/zerolog"
)

// nameFields are read in order to find the logical name of an event
var nameFields = []string{"type", "event", "event_type", "action", "eventName", "event_name", "name"}

const defaultMatchTimeout = 100 * time.Millisecond

// Sandbox runs custom filter code
type Sandbox interface {
	Filter(ctx context.Context, code string, c sandbox.Context) (bool, error)
}

/* Evaluator checks an event against the filters of a rule
 * Categories run in a fixed order and the first failing one decides the reason
 */
type Evaluator struct {
	sandbox      Sandbox
	logger       zerolog.Logger
	matchTimeout time.Duration
	patterns     sync.Map
}

func NewEvaluator(sb Sandbox, logger zerolog.Logger) *Evaluator {
	return &Evaluator{
		sandbox:      sb,
		logger:       logger,
		matchTimeout: defaultMatchTimeout,
	}
}

// Evaluate never panics; internal failures reject the event with the failure as reason
func (e *Evaluator) Evaluate(ctx context.Context, ev event.Event, filters forwarding.Filters) (res forwarding.FilterResult) {
	defer func() {
		if r := recover(); r != nil {
			res = reject("filter evaluation failed: %v", r)
		}
	}()

	if filters.IsEmpty() {
		return forwarding.FilterResult{Pass: true}
	}

	if len(filters.EventNames) > 0 {
		name := EventName(ev)
		if !contains(filters.EventNames, name, false) {
			return reject("event %q is not in allowed event names [%s]", name, strings.Join(filters.EventNames, ", "))
		}
	}

	if len(filters.Methods) > 0 && !contains(filters.Methods, ev.Request.Method, true) {
		return reject("method %q is not in allowed methods [%s]", ev.Request.Method, strings.Join(filters.Methods, ", "))
	}

	if len(filters.PathPatterns) > 0 {
		path := requestPath(ev.Request)
		if !e.matchAny(filters.PathPatterns, path) {
			return reject("path %q does not match any of [%s]", path, strings.Join(filters.PathPatterns, ", "))
		}
	}

	if len(filters.Headers) > 0 {
		names := make([]string, 0, len(filters.Headers))
		for name := range filters.Headers {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			value, ok := ev.Request.Header(name)
			if !ok {
				return reject("header %q is missing", name)
			}
			expected := filters.Headers[name]
			if !contains(expected, value, false) {
				return reject("header %q value %q is not in [%s]", name, value, strings.Join(expected, ", "))
			}
		}
	}

	if filters.CustomFilter != "" {
		if e.sandbox == nil {
			return reject("custom filter is not supported")
		}
		pass, err := e.sandbox.Filter(ctx, filters.CustomFilter, sandbox.NewContext(ev))
		if err != nil {
			return reject("custom filter failed: %v", err)
		}
		if !pass {
			return reject("custom filter returned false")
		}
	}

	return forwarding.FilterResult{Pass: true}
}

// EventName extracts the logical name of an event from its body or its URL
func EventName(ev event.Event) string {
	var body map[string]any
	if err := json.Unmarshal(ev.Request.Body, &body); err == nil {
		for _, field := range nameFields {
			if s, ok := body[field].(string); ok && s != "" {
				return s
			}
		}
	}

	path := requestPath(ev.Request)
	if i := strings.LastIndex(strings.TrimRight(path, "/"), "/"); i >= 0 {
		if seg := strings.Trim(path[i+1:], "/"); seg != "" {
			return seg
		}
	}
	return "unknown"
}

// matchAny has OR semantics; invalid patterns never match
func (e *Evaluator) matchAny(patterns []string, path string) bool {
	for _, p := range patterns {
		re, err := e.compile(p)
		if err != nil {
			e.logger.Warn().Err(err).Str("pattern", p).Msg("invalid path pattern")
			continue
		}
		ok, err := re.MatchString(path)
		if err != nil {
			e.logger.Warn().Err(err).Str("pattern", p).Msg("path pattern match failed")
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

type compiled struct {
	re  *regexp2.Regexp
	err error
}

func (e *Evaluator) compile(pattern string) (*regexp2.Regexp, error) {
	if c, ok := e.patterns.Load(pattern); ok {
		return c.(compiled).re, c.(compiled).err
	}
	re, err := CompilePattern(pattern)
	if re != nil {
		re.MatchTimeout = e.matchTimeout
	}
	e.patterns.Store(pattern, compiled{re: re, err: err})
	return re, err
}

// CompilePattern compiles a path pattern with JavaScript regular expression syntax
func CompilePattern(pattern string) (*regexp2.Regexp, error) {
	return regexp2.Compile(pattern, regexp2.ECMAScript)
}

func requestPath(req event.Request) string {
	if req.SourceURL != "" {
		if u, err := url.Parse(req.SourceURL); err == nil && u.Path != "" {
			return u.Path
		}
	}
	return req.Path
}

func contains(list []string, value string, fold bool) bool {
	for _, item := range list {
		if item == value || (fold && strings.EqualFold(item, value)) {
			return true
		}
	}
	return false
}

func reject(format string, args ...any) forwarding.FilterResult {
	return forwarding.FilterResult{Pass: false, Reason: fmt.Sprintf(format, args...)}
}
