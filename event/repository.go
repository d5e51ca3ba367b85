package event

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by readers when no event has the given ID
var ErrNotFound = errors.New("event not found")

// Reader provides read operations for events
type Reader interface {
	Get(ctx context.Context, id string) (Event, error)
}

// Writer provides write operations for events
type Writer interface {
	/* Insert stores a new event and publishes the "row inserted" notification
	 * for its endpoint, so subscribed relays pick it up
	 */
	Insert(ctx context.Context, ev Event) error
	/* Resolve writes the terminal state of an event: status, response and completion time
	 * Last write wins; there is no locking between relays
	 */
	Resolve(ctx context.Context, id string, status Status, resp Response, completedAt time.Time) error
}

type Repository interface {
	Reader
	Writer
}
