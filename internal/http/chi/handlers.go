package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"github.com/marcelsud/webhook-relay/connection"
	"github.com/marcelsud/webhook-relay/event"
	"github.com/marcelsud/webhook-relay/forwarding"
	"github.com/marcelsud/webhook-relay/metrics"
	"github.com/marcelsud/webhook-relay/sandbox"
	"github.com/rs/zerolog"
)

const (
	requestTimeout           = 30 * time.Second
	defaultForwardingTimeout = 60 * time.Second
	maxBodyBytes             = 10 << 20
)

// Validator test-runs transformation code
type Validator interface {
	Validate(ctx context.Context, code string, sample json.RawMessage) sandbox.Validation
}

/* Deps are the collaborators of the HTTP surface
 * Forwarding, Validator, Collector, Metrics and Tasks may be nil
 */
type Deps struct {
	Events            event.UseCase
	Executions        forwarding.ExecutionReader
	Forwarding        forwarding.UseCase
	Connections       connection.Reader
	Validator         Validator
	Collector         metrics.Collector
	Metrics           http.Handler
	ForwardingTimeout time.Duration
	// Tasks tracks background forwarding runs so shutdown can wait for them
	Tasks  *sync.WaitGroup
	Logger zerolog.Logger
}

// Handlers sets up the ingestion and API routes
func Handlers(ctx context.Context, d Deps) *chi.Mux {
	if d.ForwardingTimeout <= 0 {
		d.ForwardingTimeout = defaultForwardingTimeout
	}
	if d.Tasks == nil {
		d.Tasks = &sync.WaitGroup{}
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(d.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	// Public ingestion endpoint, any method and any sub-path
	ingest := ingestEvent(ctx, d)
	r.Handle("/e/{endpoint_id}", ingest)
	r.Handle("/e/{endpoint_id}/*", ingest)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/events/{id}", getEvent(d.Events).ServeHTTP)
		if d.Executions != nil {
			r.Get("/events/{id}/executions", getExecutions(d.Events, d.Executions).ServeHTTP)
		}
		if d.Connections != nil {
			r.Get("/endpoints/{endpoint_id}", getEndpoint(d.Connections).ServeHTTP)
			r.Get("/endpoints/{endpoint_id}/connections/open", getOpenConnection(d.Connections).ServeHTTP)
		}
		if d.Validator != nil {
			r.Post("/transformations/validate", postValidate(d.Validator).ServeHTTP)
		}
		if d.Collector != nil {
			r.Get("/stats", getStats(d.Collector).ServeHTTP)
		}
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
