package audit

import "context"

// Store is the audit event sink. Append-only.
type Store interface {
	Append(ctx context.Context, event Event) error

	// List returns the most recent events, newest first.
	List(ctx context.Context, limit int) ([]Event, error)
}
