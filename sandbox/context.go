package sandbox

import (
	"encoding/json"
	"time"

	"github.com/marcelsud/webhook-relay/event"
)

/* Context is the data handed to user code
 * It is serialized into the sandbox and parsed there, so no live reference
 * to host memory ever crosses the boundary
 */
type Context struct {
	Event   EventInfo   `json:"event"`
	Request RequestInfo `json:"request"`
}

type EventInfo struct {
	ID         string    `json:"id"`
	EndpointID string    `json:"endpointId"`
	Source     string    `json:"source"`
	Timestamp  time.Time `json:"timestamp"`
}

type RequestInfo struct {
	Method      string            `json:"method"`
	Headers     map[string]string `json:"headers"`
	Body        any               `json:"body"`
	SourceURL   string            `json:"sourceUrl"`
	ContentType string            `json:"contentType,omitempty"`
}

// NewContext builds the sandbox context of an event
func NewContext(ev event.Event) Context {
	headers := ev.Request.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	return Context{
		Event: EventInfo{
			ID:         ev.ID,
			EndpointID: ev.EndpointID,
			Source:     ev.Source,
			Timestamp:  ev.CreatedAt,
		},
		Request: RequestInfo{
			Method:      ev.Request.Method,
			Headers:     headers,
			Body:        ParseBody(ev.Request.Body),
			SourceURL:   ev.Request.SourceURL,
			ContentType: ev.Request.ContentType,
		},
	}
}

// ParseBody decodes a JSON body; empty bodies are nil and anything else is kept as text
func ParseBody(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err == nil {
		return v
	}
	return string(body)
}

func sampleContext(sample json.RawMessage) Context {
	return Context{
		Event: EventInfo{
			ID:         "test-event",
			EndpointID: "test-endpoint",
			Source:     "test",
			Timestamp:  time.Now().UTC(),
		},
		Request: RequestInfo{
			Method:      "POST",
			Headers:     map[string]string{"content-type": "application/json"},
			Body:        ParseBody(sample),
			SourceURL:   "https://example.com/webhook",
			ContentType: "application/json",
		},
	}
}
