package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/marcelsud/webhook-relay/connection"
	"github.com/marcelsud/webhook-relay/event"
	"github.com/marcelsud/webhook-relay/forwarding"
	"github.com/marcelsud/webhook-relay/metrics"
)

type executionsResponse struct {
	EventID    string                 `json:"event_id"`
	Executions []forwarding.Execution `json:"executions"`
}

type endpointResponse struct {
	Endpoint       connection.Endpoint    `json:"endpoint"`
	OpenConnection *connection.Connection `json:"open_connection,omitempty"`
}

type validateRequest struct {
	Code        string          `json:"code"`
	SampleInput json.RawMessage `json:"sampleInput"`
}

// getEvent handles GET /v1/events/{id}
func getEvent(events event.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ev, err := events.Get(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, event.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, ev)
	})
}

// getExecutions handles GET /v1/events/{id}/executions
func getExecutions(events event.UseCase, executions forwarding.ExecutionReader) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := events.Get(r.Context(), id); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, event.ErrNotFound) {
				status = http.StatusNotFound
			}
			http.Error(w, err.Error(), status)
			return
		}

		list, err := executions.Executions(r.Context(), id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if list == nil {
			list = []forwarding.Execution{}
		}
		writeJSON(w, http.StatusOK, executionsResponse{EventID: id, Executions: list})
	})
}

// getEndpoint handles GET /v1/endpoints/{endpoint_id}
func getEndpoint(conns connection.Reader) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpointID := chi.URLParam(r, "endpoint_id")
		ep, err := conns.GetEndpoint(r.Context(), endpointID)
		if errors.Is(err, connection.ErrEndpointNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		open, err := conns.GetOpen(r.Context(), endpointID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, endpointResponse{Endpoint: ep, OpenConnection: open})
	})
}

// getOpenConnection handles GET /v1/endpoints/{endpoint_id}/connections/open
func getOpenConnection(conns connection.Reader) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpointID := chi.URLParam(r, "endpoint_id")
		open, err := conns.GetOpen(r.Context(), endpointID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if open == nil {
			http.Error(w, "no open connection for endpoint "+endpointID, http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, open)
	})
}

// postValidate handles POST /v1/transformations/validate
func postValidate(v Validator) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req validateRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Code) == "" {
			http.Error(w, "code is required", http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, v.Validate(r.Context(), req.Code, req.SampleInput))
	})
}

// getStats handles GET /v1/stats
func getStats(c metrics.Collector) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snapshot, err := metrics.Collect(r.Context(), c)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, snapshot)
	})
}
