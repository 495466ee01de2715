// Package service implements the scan engine: the state machine that turns a
// raw kiosk scan into appended events on the immutable scan log.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"rezscan/internal/location"
	"rezscan/internal/platform/config"
	"rezscan/internal/resident"
	scanmetrics "rezscan/internal/scan/metrics"
	"rezscan/internal/scan/models"
	"rezscan/internal/scan/store"
	"rezscan/pkg/domain"
	dErrors "rezscan/pkg/domain-errors"
	"rezscan/pkg/platform/sentinel"
)

const (
	// defaultCooldown absorbs barcode-scanner double-fires.
	defaultCooldown = time.Second

	// correctionLead is how far before the corrective In the synthesized Out
	// is stamped, so the pair orders correctly even at equal wall-clock
	// resolution.
	correctionLead = time.Second

	// maxAttempts bounds the internal retry on serialization conflicts.
	// Contention between two kiosks scanning the same resident is expected,
	// not an error; anything still conflicting after this many cycles
	// surfaces to the caller.
	maxAttempts = 3
)

// LocationResolver maps a terminal prefix to a canonical location.
type LocationResolver interface {
	ResolveByPrefix(ctx context.Context, prefix string) (*location.Location, error)
}

// ResidentDirectory is the slice of the resident store the engine needs.
type ResidentDirectory interface {
	FindByMDOC(ctx context.Context, mdoc string) (*resident.Resident, error)
	Create(ctx context.Context, r *resident.Resident) error
}

// Engine decides and records scan transitions. It keeps no state of its own;
// the event store is the single shared resource, so any number of engine
// instances can run against the same database.
type Engine struct {
	events    store.EventStore
	locations LocationResolver
	residents ResidentDirectory

	cooldown time.Duration
	policy   config.UnknownResidentPolicy
	metrics  *scanmetrics.Metrics
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithCooldown overrides the duplicate-scan window.
func WithCooldown(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.cooldown = d
		}
	}
}

// WithPolicy sets the unknown-resident policy.
func WithPolicy(p config.UnknownResidentPolicy) Option {
	return func(e *Engine) {
		if p == config.PolicyReject || p == config.PolicyRegister {
			e.policy = p
		}
	}
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *scanmetrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger attaches a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine constructs a scan engine. Defaults: 1s cooldown, register
// policy, no metrics, discarded logs.
func NewEngine(events store.EventStore, locations LocationResolver, residents ResidentDirectory, opts ...Option) *Engine {
	e := &Engine{
		events:    events,
		locations: locations,
		residents: residents,
		cooldown:  defaultCooldown,
		policy:    config.PolicyRegister,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RecordScan processes one raw scan. now is supplied by the caller (the
// request-time middleware in production, a fixed instant in tests); the
// engine never reads the clock.
//
// Appends zero, one, or two events:
//   - no history or last Out  -> In at the resolved location
//   - last In, same location  -> Out (toggle)
//   - last In, other location -> Out at the old location stamped now-1s,
//     then In at the new one (missed-scan correction), atomically
//   - within cooldown         -> nothing (Ignored outcome)
//
// Failures return errors with domain-error codes: CodeUnknownPrefix,
// CodeUnknownResident (reject policy), CodeBadRequest, CodeUnavailable.
func (e *Engine) RecordScan(ctx context.Context, mdoc, prefix string, now time.Time) (*models.Outcome, error) {
	start := time.Now()
	mdoc = strings.TrimSpace(mdoc)
	prefix = strings.TrimSpace(prefix)
	if mdoc == "" || prefix == "" {
		return nil, e.fail(dErrors.New(dErrors.CodeBadRequest, "mdoc and prefix must not be empty"))
	}

	loc, err := e.locations.ResolveByPrefix(ctx, prefix)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, e.fail(dErrors.Newf(dErrors.CodeUnknownPrefix, "prefix %q not associated with any location", prefix))
		}
		return nil, e.fail(infraErr(err, "location lookup failed"))
	}

	res, newResident, err := e.resolveResident(ctx, mdoc)
	if err != nil {
		return nil, e.fail(err)
	}

	var outcome *models.Outcome
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		outcome, err = e.attempt(ctx, res, newResident, loc.Name, now)
		if err == nil || !errors.Is(err, sentinel.ErrConflict) {
			break
		}
		e.logger.DebugContext(ctx, "scan serialization conflict, retrying",
			"mdoc", mdoc,
			"attempt", attempt,
		)
		// The resident exists after any committed attempt; do not re-create.
		if r, findErr := e.residents.FindByMDOC(ctx, mdoc); findErr == nil {
			res = r
			newResident = false
		}
	}
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, e.fail(dErrors.Wrap(err, dErrors.CodeUnavailable, "scan contention, please retry"))
		}
		return nil, e.fail(infraErr(err, "scan storage failed"))
	}

	outcome.UnknownResident = newResident
	if newResident {
		outcome.Message = fmt.Sprintf("%s Resident not found, but scan recorded.", outcome.Message)
	}

	e.observe(ctx, mdoc, outcome, time.Since(start))
	return outcome, nil
}

// resolveResident applies the unknown-resident policy. Under the register
// policy, the returned resident is not yet persisted; the attempt creates it
// inside the same transaction as the event write.
func (e *Engine) resolveResident(ctx context.Context, mdoc string) (*resident.Resident, bool, error) {
	res, err := e.residents.FindByMDOC(ctx, mdoc)
	if err == nil {
		return res, false, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, false, infraErr(err, "resident lookup failed")
	}
	if e.policy == config.PolicyReject {
		return nil, false, dErrors.Newf(dErrors.CodeUnknownResident, "no resident registered for mdoc %q", mdoc)
	}
	return &resident.Resident{
		ID:   domain.NewResidentID(),
		MDOC: mdoc,
		Name: resident.PlaceholderName,
	}, true, nil
}

// attempt runs one read-decide-write cycle inside the per-resident
// serializable unit.
func (e *Engine) attempt(ctx context.Context, res *resident.Resident, newResident bool, locationName string, now time.Time) (*models.Outcome, error) {
	var outcome *models.Outcome
	err := e.events.RunForResident(ctx, res.ID, func(txCtx context.Context) error {
		if newResident {
			if err := e.residents.Create(txCtx, res); err != nil {
				return err
			}
		}

		last, err := e.events.LastEvent(txCtx, res.ID)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}

		if last != nil && now.Sub(last.Timestamp) < e.cooldown {
			outcome = models.Ignored("Scan ignored: too soon since last scan.")
			return nil
		}

		decided := decide(res.ID, last, locationName, now)
		pending := make([]*models.ScanEvent, len(decided))
		for i := range decided {
			pending[i] = &decided[i]
		}
		if err := e.events.Append(txCtx, pending...); err != nil {
			return err
		}

		outcome = models.Recorded(message(decided), decided...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// decide is the transition table. Pure: no I/O, no clock.
func decide(residentID domain.ResidentID, last *models.ScanEvent, locationName string, now time.Time) []models.ScanEvent {
	newEvent := func(status models.Status, loc string, at time.Time) models.ScanEvent {
		return models.ScanEvent{
			ResidentID: residentID,
			Timestamp:  at,
			Status:     status,
			Location:   loc,
		}
	}

	switch {
	case last == nil:
		// Never seen: default to In.
		return []models.ScanEvent{newEvent(models.StatusIn, locationName, now)}

	case last.Status == models.StatusIn && last.Location != locationName:
		// Missed Out scan: close out the previous location strictly before
		// the corrective In.
		return []models.ScanEvent{
			newEvent(models.StatusOut, last.Location, now.Add(-correctionLead)),
			newEvent(models.StatusIn, locationName, now),
		}

	case last.Location == locationName && last.Status == models.StatusIn:
		return []models.ScanEvent{newEvent(models.StatusOut, locationName, now)}

	default:
		// Last was Out (here or elsewhere): a new In.
		return []models.ScanEvent{newEvent(models.StatusIn, locationName, now)}
	}
}

func message(events []models.ScanEvent) string {
	if len(events) == 2 {
		return fmt.Sprintf("Scan recorded: 'Out' at %s, 'In' at %s (missed scan corrected)",
			events[0].Location, events[1].Location)
	}
	return fmt.Sprintf("Scan recorded: '%s' at %s", events[0].Status, events[0].Location)
}

func (e *Engine) observe(ctx context.Context, mdoc string, outcome *models.Outcome, took time.Duration) {
	if e.metrics != nil {
		e.metrics.ObserveRecordScan(took.Seconds())
		switch {
		case outcome.Kind == models.OutcomeIgnored:
			e.metrics.IncrementIgnored()
		case len(outcome.Events) == 2:
			e.metrics.IncrementMissedCorrected()
			e.metrics.IncrementRecorded("corrected")
		default:
			e.metrics.IncrementRecorded(strings.ToLower(string(outcome.Events[0].Status)))
		}
	}

	if outcome.Kind == models.OutcomeIgnored {
		e.logger.InfoContext(ctx, "scan ignored", "mdoc", mdoc, "reason", outcome.Message)
		return
	}
	e.logger.InfoContext(ctx, "scan recorded",
		"mdoc", mdoc,
		"events", len(outcome.Events),
		"message", outcome.Message,
		"unknown_resident", outcome.UnknownResident,
	)
}

func (e *Engine) fail(err error) error {
	if e.metrics != nil {
		e.metrics.IncrementFailure(string(dErrors.CodeOf(err)))
	}
	return err
}

// infraErr maps sentinel infrastructure failures onto caller-facing codes.
func infraErr(err error, message string) error {
	if errors.Is(err, sentinel.ErrUnavailable) {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, message)
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, message)
}
