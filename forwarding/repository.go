package forwarding

import (
	"context"
	"errors"
)

// ErrDestinationUnresolved marks a rule whose destination is missing or inactive
var ErrDestinationUnresolved = errors.New("destination unresolved")

// RuleReader provides the configuration of an endpoint
type RuleReader interface {
	Rules(ctx context.Context, endpointID string) ([]Rule, error)
	Destinations(ctx context.Context, endpointID string) ([]Destination, error)
}

// RuleWriter saves the configuration of an endpoint
type RuleWriter interface {
	SaveDestination(ctx context.Context, d Destination) error
	SaveRule(ctx context.Context, r Rule) error
}

type ExecutionReader interface {
	Executions(ctx context.Context, eventID string) ([]Execution, error)
}

type ExecutionWriter interface {
	InsertExecution(ctx context.Context, e Execution) error
}

type Repository interface {
	RuleReader
	RuleWriter
	ExecutionReader
	ExecutionWriter
}
