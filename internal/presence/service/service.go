// Package service projects "who is where right now" from the scan log.
package service

import (
	"context"
	"errors"
	"sort"

	"rezscan/internal/presence/models"
	"rezscan/internal/resident"
	scanmodels "rezscan/internal/scan/models"
	"rezscan/pkg/domain"
	dErrors "rezscan/pkg/domain-errors"
	"rezscan/pkg/platform/sentinel"
)

// EventLog is the read slice of the scan event store the projector needs.
type EventLog interface {
	LatestPerResident(ctx context.Context) ([]scanmodels.ScanEvent, error)
	LastEvent(ctx context.Context, residentID domain.ResidentID) (*scanmodels.ScanEvent, error)
}

// ResidentDirectory resolves display names for presence rows.
type ResidentDirectory interface {
	FindByMDOC(ctx context.Context, mdoc string) (*resident.Resident, error)
	FindByID(ctx context.Context, id domain.ResidentID) (*resident.Resident, error)
}

// Projector computes presence by recomputing from the event log on every
// read. It takes no locks: the result is a snapshot and may race benignly
// with concurrent scans, which is fine for a dashboard.
type Projector struct {
	events    EventLog
	residents ResidentDirectory
}

// NewProjector constructs a presence projector.
func NewProjector(events EventLog, residents ResidentDirectory) *Projector {
	return &Projector{events: events, residents: residents}
}

// CurrentPresence returns the residents whose latest event is an In,
// together with that event's location, sorted most recent first.
func (p *Projector) CurrentPresence(ctx context.Context) ([]models.Row, error) {
	latest, err := p.events.LatestPerResident(ctx)
	if err != nil {
		return nil, infraErr(err, "presence read failed")
	}

	rows := make([]models.Row, 0, len(latest))
	for _, event := range latest {
		if event.Status != scanmodels.StatusIn {
			continue
		}
		row := models.Row{
			ResidentID: event.ResidentID,
			Location:   event.Location,
			AsOf:       event.Timestamp,
		}
		// Name lookup is best-effort: a resident row deleted out from under
		// the log still shows up by id.
		if res, err := p.residents.FindByID(ctx, event.ResidentID); err == nil {
			row.MDOC = res.MDOC
			row.Name = res.Name
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].AsOf.After(rows[j].AsOf) })
	return rows, nil
}

// StatusOf returns one resident's presence. A registered resident with no
// scan history is NeverSeen; an unregistered MDOC is a not-found error.
func (p *Projector) StatusOf(ctx context.Context, mdoc string) (*models.Status, error) {
	res, err := p.residents.FindByMDOC(ctx, mdoc)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "no resident registered for mdoc %q", mdoc)
		}
		return nil, infraErr(err, "resident lookup failed")
	}

	last, err := p.events.LastEvent(ctx, res.ID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return &models.Status{State: models.StateNeverSeen}, nil
		}
		return nil, infraErr(err, "presence read failed")
	}

	state := models.StateOut
	if last.Status == scanmodels.StatusIn {
		state = models.StateIn
	}
	return &models.Status{
		State:    state,
		Location: last.Location,
		AsOf:     last.Timestamp,
	}, nil
}

func infraErr(err error, message string) error {
	if errors.Is(err, sentinel.ErrUnavailable) {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, message)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, message)
}
