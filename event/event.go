package event

import (
	"strings"
	"time"
)

/* Event represents one inbound webhook occurrence
 * Uses value semantics as it represents data, not behavior
 * Created by the ingestion boundary, mutated only by the relay's terminal-state write
 */
type Event struct {
	ID          string     `json:"id"`
	EndpointID  string     `json:"endpointId"`
	Source      string     `json:"source"`
	Request     Request    `json:"originRequest"`
	Status      Status     `json:"status"`
	RetryCount  int        `json:"retryCount"`
	MaxRetries  int        `json:"maxRetries"`
	Response    *Response  `json:"response,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

/* Request is the original HTTP request as it reached the public endpoint
 * Body is kept as raw bytes; its JSON form is base64 so binary payloads
 * survive text-framed stores and transports unchanged
 */
type Request struct {
	Method      string            `json:"method"`
	Headers     map[string]string `json:"headers"`
	Body        []byte            `json:"body,omitempty"`
	SourceURL   string            `json:"sourceUrl"`
	Path        string            `json:"path"`
	ContentType string            `json:"contentType,omitempty"`
	Size        int64             `json:"size"`
	ClientIP    string            `json:"clientIp,omitempty"`
}

// Response is what the local service answered, or the synthesized failure response
type Response struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers"`
	Body    []byte            `json:"body,omitempty"`
}

// Header returns the value of the named header, matched case-insensitively
func (r Request) Header(name string) (string, bool) {
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}
