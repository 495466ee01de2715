// Package store persists the append-only scan event log.
package store

import (
	"context"

	"rezscan/internal/scan/models"
	"rezscan/pkg/domain"
)

// ListFilter narrows scan log listings.
type ListFilter struct {
	ResidentID domain.ResidentID
	Location   string
	Limit      int
}

// EventStore is the scan event log. Events are immutable once appended; the
// engine is the only writer.
//
// RunForResident executes fn as one serializable unit for the given
// resident: the engine's last-event read and subsequent appends inside fn
// cannot interleave with another call for the same resident. Calls for
// different residents proceed independently. Implementations return
// sentinel.ErrConflict when a concurrent writer wins, in which case the
// engine retries the whole read-decide-write cycle.
type EventStore interface {
	RunForResident(ctx context.Context, residentID domain.ResidentID, fn func(txCtx context.Context) error) error

	// LastEvent returns the resident's most recent event by (timestamp, seq),
	// or sentinel.ErrNotFound when the resident has no history.
	LastEvent(ctx context.Context, residentID domain.ResidentID) (*models.ScanEvent, error)

	// Append inserts events in the given order, assigning each a Seq.
	Append(ctx context.Context, events ...*models.ScanEvent) error

	// LatestPerResident returns each resident's most recent event. This is
	// the presence projection's read: always recomputed from the log.
	LatestPerResident(ctx context.Context) ([]models.ScanEvent, error)

	// List returns events newest-first, filtered.
	List(ctx context.Context, filter ListFilter) ([]models.ScanEvent, error)
}
