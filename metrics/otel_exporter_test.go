package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCollector struct {
	statusCounts map[string]int64
	open         map[string]int64
	err          error
}

func (s stubCollector) GetStatusCounts(context.Context) (map[string]int64, error) {
	return s.statusCounts, s.err
}

func (s stubCollector) GetOpenConnections(context.Context) (map[string]int64, error) {
	return s.open, s.err
}

func scrape(t *testing.T, oe *OTelExporter) string {
	t.Helper()
	rec := httptest.NewRecorder()
	oe.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestOTelExporter(t *testing.T) {
	ctx := context.Background()

	t.Run("success - records instruments and observes gauges", func(t *testing.T) {
		oe, err := NewOTelExporter(stubCollector{
			statusCounts: map[string]int64{"completed": 3, "failed": 1},
			open:         map[string]int64{"ep-1": 1},
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = oe.Shutdown(ctx) })

		oe.DeliveryFinished(ctx, "ep-1", "completed", 25*time.Millisecond)
		oe.ExecutionFinished(ctx, "slack", true, 40*time.Millisecond)
		oe.Filtered(ctx, "ep-1")

		out := scrape(t, oe)
		assert.Contains(t, out, "relay_deliveries_total")
		assert.Contains(t, out, "relay_delivery_duration_milliseconds")
		assert.Contains(t, out, "forwarding_executions_total")
		assert.Contains(t, out, "forwarding_filtered_total")
		assert.Contains(t, out, "relay_events_status_count")
		assert.Contains(t, out, "relay_connections_open")
		assert.Contains(t, out, `endpoint_id="ep-1"`)
	})

	t.Run("success - exporters are independent", func(t *testing.T) {
		first, err := NewOTelExporter(nil)
		require.NoError(t, err)
		second, err := NewOTelExporter(nil)
		require.NoError(t, err)

		first.Filtered(ctx, "ep-a")

		assert.Contains(t, scrape(t, first), `endpoint_id="ep-a"`)
		assert.NotContains(t, scrape(t, second), `endpoint_id="ep-a"`)
	})
}

func TestCollect(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		snap, err := Collect(ctx, stubCollector{statusCounts: map[string]int64{"pending": 2}, open: map[string]int64{}})

		require.NoError(t, err)
		assert.Equal(t, int64(2), snap.StatusCounts["pending"])
		assert.False(t, snap.Timestamp.IsZero())
	})

	t.Run("error - store unavailable", func(t *testing.T) {
		_, err := Collect(ctx, stubCollector{err: errors.New("down")})

		assert.ErrorContains(t, err, "getting status counts")
	})
}
