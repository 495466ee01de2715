// Package resident is the resident directory the scan engine consults. The
// engine needs existence lookups and, under the register policy, placeholder
// registration; everything else about residents lives elsewhere.
package resident

import (
	"context"

	"rezscan/pkg/domain"
)

// PlaceholderName is the display name given to residents auto-registered
// from an unknown MDOC. Staff are expected to fill in the real name later.
const PlaceholderName = "Update Resident"

// Resident is identified by a stable internal id; the MDOC is the scannable
// display identifier and may be corrected without losing scan history.
type Resident struct {
	ID   domain.ResidentID
	MDOC string
	Name string
}

// Store is the resident directory.
type Store interface {
	// FindByMDOC returns sentinel.ErrNotFound for an unregistered MDOC.
	FindByMDOC(ctx context.Context, mdoc string) (*Resident, error)

	FindByID(ctx context.Context, id domain.ResidentID) (*Resident, error)

	// Create registers a resident. Returns sentinel.ErrConflict when the
	// MDOC is already registered.
	Create(ctx context.Context, r *Resident) error

	// List returns all residents ordered by name.
	List(ctx context.Context) ([]Resident, error)
}

// RegisterPlaceholder creates a placeholder resident for an unknown MDOC.
// Used by the engine under the register policy.
func RegisterPlaceholder(ctx context.Context, store Store, mdoc string) (*Resident, error) {
	r := &Resident{
		ID:   domain.NewResidentID(),
		MDOC: mdoc,
		Name: PlaceholderName,
	}
	if err := store.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}
