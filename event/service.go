package event

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Resolver writes the terminal state of an event; non-terminal statuses are rejected
type Resolver interface {
	Resolve(ctx context.Context, id string, status Status, resp Response) error
}

// UseCase defines the business operations around inbound events
type UseCase interface {
	Resolver
	Receive(ctx context.Context, endpointID, source string, req Request) (Event, error)
	Get(ctx context.Context, id string) (Event, error)
}

type Service struct {
	Repo       Repository
	MaxRetries int
	now        func() time.Time
}

// NewService creates a new event service with dependency injection
func NewService(repo Repository, maxRetries int) *Service {
	return &Service{
		Repo:       repo,
		MaxRetries: maxRetries,
		now:        time.Now,
	}
}

// Receive records a new inbound event in the pending state
func (s *Service) Receive(ctx context.Context, endpointID, source string, req Request) (Event, error) {
	if endpointID == "" {
		return Event{}, fmt.Errorf("endpoint id is required")
	}
	if req.Headers == nil {
		req.Headers = map[string]string{}
	}
	if req.Size == 0 {
		req.Size = int64(len(req.Body))
	}
	if source == "" {
		source = "unknown"
	}

	now := s.now()
	ev := Event{
		ID:         uuid.New().String(),
		EndpointID: endpointID,
		Source:     source,
		Request:    req,
		Status:     Pending,
		RetryCount: 0,
		MaxRetries: s.MaxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.Repo.Insert(ctx, ev); err != nil {
		return Event{}, fmt.Errorf("storing event: %w", err)
	}
	return ev, nil
}

// Get returns an event by ID
func (s *Service) Get(ctx context.Context, id string) (Event, error) {
	ev, err := s.Repo.Get(ctx, id)
	if err != nil {
		return Event{}, fmt.Errorf("getting event: %w", err)
	}
	return ev, nil
}

// Resolve moves an event to a terminal state
func (s *Service) Resolve(ctx context.Context, id string, status Status, resp Response) error {
	if err := status.Validate(); err != nil {
		return fmt.Errorf("validating status: %w", err)
	}
	if !status.IsFinal() {
		return fmt.Errorf("status %s is not terminal", status)
	}
	if err := s.Repo.Resolve(ctx, id, status, resp, s.now()); err != nil {
		return fmt.Errorf("resolving event: %w", err)
	}
	return nil
}
