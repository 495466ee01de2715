// Package domain holds the typed identifiers shared across the service.
// Wrapping uuid.UUID in distinct named types keeps resident and location
// ids from being swapped at call sites; the compiler enforces it.
package domain

import (
	"github.com/google/uuid"

	dErrors "rezscan/pkg/domain-errors"
)

// ResidentID identifies a resident. It is stable even when the resident's
// display MDOC changes.
type ResidentID uuid.UUID

// LocationID identifies a scan location.
type LocationID uuid.UUID

// NewResidentID generates a fresh resident ID.
func NewResidentID() ResidentID {
	return ResidentID(uuid.New())
}

// NewLocationID generates a fresh location ID.
func NewLocationID() LocationID {
	return LocationID(uuid.New())
}

// ParseResidentID validates and returns a ResidentID.
// IDs must be valid, non-nil UUIDs.
func ParseResidentID(s string) (ResidentID, error) {
	id, err := parseUUID(s)
	if err != nil {
		return ResidentID{}, err
	}
	return ResidentID(id), nil
}

// ParseLocationID validates and returns a LocationID.
func ParseLocationID(s string) (LocationID, error) {
	id, err := parseUUID(s)
	if err != nil {
		return LocationID{}, err
	}
	return LocationID(id), nil
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, "id must not be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid id")
	}
	if id == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, "id must not be nil")
	}
	return id, nil
}

func (id ResidentID) String() string { return uuid.UUID(id).String() }

// IsNil reports whether the id is the zero value.
func (id ResidentID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id LocationID) String() string { return uuid.UUID(id).String() }

// IsNil reports whether the id is the zero value.
func (id LocationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
