package destination

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/marcelsud/webhook-relay/forwarding"
	"github.com/marcelsud/webhook-relay/signature"
)

/* WebhookSender posts the payload as-is to a generic HTTP callback
 * Custom headers come first, then auth, then the signature headers
 */
type WebhookSender struct {
	poster
	now func() time.Time
}

func NewWebhookSender(client *http.Client) *WebhookSender {
	return &WebhookSender{poster: poster{client: client}, now: time.Now}
}

func (s *WebhookSender) Send(ctx context.Context, dest forwarding.Destination, payload json.RawMessage) forwarding.DispatchResult {
	cfg := dest.Config
	if cfg.URL == "" {
		return failure("Webhook URL is not configured")
	}
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}

	headers := make(map[string]string, len(cfg.Headers)+3)
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	if cfg.Auth != nil {
		if err := cfg.Auth.Validate(); err != nil {
			return failure("invalid auth configuration: %v", err)
		}
		name, value := authHeader(*cfg.Auth)
		headers[name] = value
	}

	if cfg.SigningSecret != "" {
		secret, err := signature.ParseSecret(cfg.SigningSecret)
		if err != nil {
			return failure("invalid signing secret: %v", err)
		}
		msgID := "msg_" + strings.ReplaceAll(uuid.New().String(), "-", "")
		signed, err := signature.Headers(secret, msgID, s.now(), payload)
		if err != nil {
			return failure("signing payload: %v", err)
		}
		for k, v := range signed {
			headers[k] = v
		}
	}

	return s.post(ctx, cfg.URL, payload, headers)
}

func authHeader(a forwarding.Auth) (string, string) {
	switch a.Type {
	case forwarding.AuthBasic:
		return "Authorization", "Basic " + base64.StdEncoding.EncodeToString([]byte(a.Username+":"+a.Password))
	case forwarding.AuthAPIKey:
		return a.HeaderName, a.APIKey
	default:
		return "Authorization", "Bearer " + a.Token
	}
}
