package destination

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/marcelsud/webhook-relay/forwarding"
)

const DefaultTimeout = 10 * time.Second

// Sender delivers a payload to one kind of destination and never returns an error
type Sender interface {
	Send(ctx context.Context, dest forwarding.Destination, payload json.RawMessage) forwarding.DispatchResult
}

// Registry selects the Sender of a destination by its type
type Registry struct {
	mu      sync.RWMutex
	senders map[forwarding.DestinationType]Sender
}

// NewRegistry registers a sender for every built-in destination type
func NewRegistry(client *http.Client) *Registry {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	p := poster{client: client}

	r := &Registry{senders: map[forwarding.DestinationType]Sender{}}
	r.Register(forwarding.Webhook, NewWebhookSender(client))
	r.Register(forwarding.Slack, SlackSender{poster: p})
	r.Register(forwarding.Discord, DiscordSender{poster: p})
	r.Register(forwarding.Teams, TeamsSender{poster: p})
	r.Register(forwarding.Email, EmailSender{})
	return r
}

func (r *Registry) Register(t forwarding.DestinationType, s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[t] = s
}

func (r *Registry) Dispatch(ctx context.Context, dest forwarding.Destination, payload json.RawMessage) (res forwarding.DispatchResult) {
	defer func() {
		if rec := recover(); rec != nil {
			res = failure("dispatch to %s failed: %v", dest.Type, rec)
		}
	}()

	r.mu.RLock()
	s, ok := r.senders[dest.Type]
	r.mu.RUnlock()
	if !ok {
		return failure("unsupported destination type: %s", dest.Type)
	}
	return s.Send(ctx, dest, payload)
}

func failure(format string, args ...any) forwarding.DispatchResult {
	return forwarding.DispatchResult{Success: false, Error: fmt.Sprintf(format, args...)}
}
