// Package models defines the read-side presence types. Rows are derived from
// the scan log on every read; nothing here is ever stored.
package models

import (
	"time"

	"rezscan/pkg/domain"
)

// State is a resident's derived presence state.
type State string

const (
	// StateNeverSeen means the resident has no scan history. Distinct from
	// Out: an Out resident was here once.
	StateNeverSeen State = "never_seen"
	StateIn        State = "in"
	StateOut       State = "out"
)

// Row is one resident's current presence, defined as the fields of their
// latest scan event.
type Row struct {
	ResidentID domain.ResidentID
	MDOC       string
	Name       string
	Location   string
	AsOf       time.Time
}

// Status is a point lookup result for one resident.
type Status struct {
	State    State
	Location string
	AsOf     time.Time
}
