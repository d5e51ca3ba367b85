package destination

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/marcelsud/webhook-relay/forwarding"
)

const (
	maxResponseBytes = 64 << 10
	userAgent        = "webhook-relay/1.0"
)

// poster issues the single JSON POST every sender ends with
type poster struct {
	client *http.Client
}

func (p poster) post(ctx context.Context, url string, body []byte, headers map[string]string) forwarding.DispatchResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return failure("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return failure("%v", err)
	}
	defer resp.Body.Close()

	data, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	response := &forwarding.DestinationResponse{
		Status:  resp.StatusCode,
		Headers: flatten(resp.Header),
		Body:    asJSON(data),
		Partial: readErr != nil,
	}

	// the status decides success; a broken body only adds to the error text
	var problems []string
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		problems = append(problems, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data))))
	}
	if readErr != nil {
		problems = append(problems, fmt.Sprintf("reading response body: %v", readErr))
	}
	return forwarding.DispatchResult{
		Success:  resp.StatusCode >= 200 && resp.StatusCode <= 299,
		Response: response,
		Error:    strings.Join(problems, "; "),
	}
}

func flatten(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[strings.ToLower(k)] = h.Get(k)
	}
	return out
}

// asJSON keeps JSON bodies as they are and wraps anything else in a JSON string
func asJSON(data []byte) json.RawMessage {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if json.Valid(data) {
		return json.RawMessage(data)
	}
	quoted, _ := json.Marshal(string(data))
	return quoted
}
