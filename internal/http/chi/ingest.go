package chi

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/marcelsud/webhook-relay/event"
)

// ingestResponse is returned once the event is stored
type ingestResponse struct {
	EventID string `json:"event_id"`
}

// sourceHeaders identify the provider that sent a webhook, checked in order
var sourceHeaders = []struct {
	header string
	source string
}{
	{"Stripe-Signature", "stripe"},
	{"X-GitHub-Event", "github"},
	{"X-Shopify-Hmac-Sha256", "shopify"},
	{"X-Shopify-Topic", "shopify"},
	{"X-Slack-Signature", "slack"},
	{"X-Twilio-Signature", "twilio"},
}

// ingestEvent handles ANY /e/{endpoint_id}/*
func ingestEvent(ctx context.Context, d Deps) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpointID := chi.URLParam(r, "endpoint_id")
		if endpointID == "" {
			http.Error(w, "endpoint_id is required", http.StatusBadRequest)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		req := captureRequest(r, body)
		ev, err := d.Events.Receive(r.Context(), endpointID, detectSource(r.Header), req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		if d.Forwarding != nil {
			d.Tasks.Add(1)
			go func() {
				defer d.Tasks.Done()
				forward(ctx, d, ev)
			}()
		}

		writeJSON(w, http.StatusAccepted, ingestResponse{EventID: ev.ID})
	})
}

// forward runs the forwarding rules of the endpoint, independent of the inbound request
func forward(ctx context.Context, d Deps, ev event.Event) {
	logger := d.Logger.With().Str("event_id", ev.ID).Str("endpoint_id", ev.EndpointID).Logger()

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.ForwardingTimeout)
	defer cancel()

	res, err := d.Forwarding.ProcessEvent(fctx, ev)
	if err != nil {
		logger.Error().Err(err).Msg("forwarding event")
		return
	}
	if len(res.Executions) > 0 {
		logger.Info().Bool("success", res.Success).Int("executions", len(res.Executions)).Msg("event forwarded")
	}
}

func captureRequest(r *http.Request, body []byte) event.Request {
	headers := make(map[string]string, len(r.Header))
	for key, values := range r.Header {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}

	path := "/" + chi.URLParam(r, "*")
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	clientIP := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		clientIP = host
	}

	return event.Request{
		Method:      r.Method,
		Headers:     headers,
		Body:        body,
		SourceURL:   scheme + "://" + r.Host + r.URL.RequestURI(),
		Path:        path,
		ContentType: r.Header.Get("Content-Type"),
		Size:        int64(len(body)),
		ClientIP:    clientIP,
	}
}

func detectSource(h http.Header) string {
	for _, s := range sourceHeaders {
		if h.Get(s.header) != "" {
			return s.source
		}
	}
	if ua := strings.ToLower(h.Get("User-Agent")); strings.Contains(ua, "github-hookshot") {
		return "github"
	}
	return "generic"
}
