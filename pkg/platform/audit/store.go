package audit

import "context"

// Store persists audit events. Implementations must tolerate duplicate
// appends; the worker may retry after transient failures.
type Store interface {
	Append(ctx context.Context, event Event) error
	List(ctx context.Context) ([]Event, error)
}

// Publisher accepts events from domain logic. Publishing is fire-and-forget:
// implementations must never block a workflow or surface failures to it.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}
