// Package models defines the scan domain value types. The transition table
// in the engine switches over these closed types; loosely-typed rows never
// cross a package boundary.
package models

import (
	"fmt"
	"time"

	"rezscan/pkg/domain"
)

// Status is the direction of a scan event.
type Status string

const (
	StatusIn  Status = "In"
	StatusOut Status = "Out"
)

// ParseStatus validates a stored status value.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusIn, StatusOut:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown scan status %q", s)
}

// ScanEvent is one immutable record of a resident observed In or Out at a
// location at an instant. Events are append-only; for a given resident they
// are totally ordered by (Timestamp, Seq), with Seq assigned by the store at
// insertion.
type ScanEvent struct {
	Seq        int64
	ResidentID domain.ResidentID
	Timestamp  time.Time
	Status     Status
	Location   string
}

// OutcomeKind tags the result of a recorded scan.
type OutcomeKind string

const (
	// OutcomeRecorded means one or two events were appended.
	OutcomeRecorded OutcomeKind = "recorded"
	// OutcomeIgnored means the scan was a cooldown no-op; nothing was written.
	// Callers must be able to tell this apart from a success so UIs can skip
	// the success banner.
	OutcomeIgnored OutcomeKind = "ignored"
)

// Outcome is the result of a processed scan. Failures are returned as errors
// carrying domain-error codes, not as an Outcome.
type Outcome struct {
	Kind    OutcomeKind
	Message string
	// Events holds the appended events in append order: one for a simple
	// transition, two for a missed-scan correction, none when ignored.
	Events []ScanEvent
	// UnknownResident marks scans recorded under the register policy for an
	// MDOC that had no resident at scan time.
	UnknownResident bool
}

// Recorded builds a write-confirmation outcome.
func Recorded(message string, events ...ScanEvent) *Outcome {
	return &Outcome{Kind: OutcomeRecorded, Message: message, Events: events}
}

// Ignored builds a cooldown no-op outcome.
func Ignored(reason string) *Outcome {
	return &Outcome{Kind: OutcomeIgnored, Message: reason}
}
