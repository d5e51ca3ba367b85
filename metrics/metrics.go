package metrics

import (
	"context"
	"fmt"
	"time"
)

// Snapshot is the current state of events and relay connections
type Snapshot struct {
	// StatusCounts maps event status to the number of events in it
	StatusCounts map[string]int64 `json:"status_counts"`

	// OpenConnections maps endpoint_id to its open relay connections
	OpenConnections map[string]int64 `json:"open_connections"`

	Timestamp time.Time `json:"timestamp"`
}

// Collector reads gauge values from the store
type Collector interface {
	// GetStatusCounts returns the count of events by status
	GetStatusCounts(ctx context.Context) (map[string]int64, error)

	// GetOpenConnections returns the number of open relay connections per endpoint
	GetOpenConnections(ctx context.Context) (map[string]int64, error)
}

// Collect gathers a snapshot from a collector
func Collect(ctx context.Context, c Collector) (Snapshot, error) {
	statusCounts, err := c.GetStatusCounts(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("getting status counts: %w", err)
	}
	open, err := c.GetOpenConnections(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("getting open connections: %w", err)
	}
	return Snapshot{
		StatusCounts:    statusCounts,
		OpenConnections: open,
		Timestamp:       time.Now(),
	}, nil
}

// Recorder receives the outcome of relay deliveries and forwarding executions
type Recorder interface {
	DeliveryFinished(ctx context.Context, endpointID, status string, elapsed time.Duration)
	ExecutionFinished(ctx context.Context, destinationType string, success bool, elapsed time.Duration)
	Filtered(ctx context.Context, endpointID string)
}

type NopRecorder struct{}

func (NopRecorder) DeliveryFinished(context.Context, string, string, time.Duration) {}

func (NopRecorder) ExecutionFinished(context.Context, string, bool, time.Duration) {}

func (NopRecorder) Filtered(context.Context, string) {}
