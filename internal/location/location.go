// Package location resolves scan-terminal prefixes to canonical location
// names. It is a pure lookup; the directory table is its only state.
package location

import (
	"context"

	"rezscan/pkg/domain"
)

// Location maps a terminal prefix to a canonical name. Prefixes are unique
// case-insensitively.
type Location struct {
	ID     domain.LocationID
	Prefix string
	Name   string
}

// Store is the location directory.
type Store interface {
	// ResolveByPrefix looks up a location by prefix, case-insensitively and
	// ignoring surrounding whitespace. Returns sentinel.ErrNotFound for an
	// unmapped prefix.
	ResolveByPrefix(ctx context.Context, prefix string) (*Location, error)

	// Create adds a location. Returns sentinel.ErrConflict when the prefix
	// is already mapped.
	Create(ctx context.Context, loc *Location) error

	// List returns all locations ordered by name.
	List(ctx context.Context) ([]Location, error)
}
