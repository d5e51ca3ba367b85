package relay

import (
	"context"
	"errors"

	"github.com/marcelsud/webhook-relay/event"
)

// ErrStreamClosed is returned by Next once a stream has been closed
var ErrStreamClosed = errors.New("event stream closed")

// Feed delivers "event inserted" notifications scoped to one endpoint
type Feed interface {
	Subscribe(ctx context.Context, endpointID string) (Stream, error)
}

/* Stream yields the full rows of newly inserted events
 * Delivery is at-least-once; Close must be safe to call more than once
 */
type Stream interface {
	Next(ctx context.Context) (event.Event, error)
	Close() error
}
