// Package audit records who did what against the scan system. Only the
// write path lives here; browsing the log is a separate admin surface.
package audit

import "time"

// Action classifies an audited operation.
type Action string

const (
	ActionScan       Action = "scan"
	ActionScanFailed Action = "scan_failed"
)

// Event is one audit record. Keep it transport-agnostic so stores and sinks
// can fan out.
type Event struct {
	Timestamp time.Time
	// Actor is the kiosk terminal or client that performed the action,
	// best-effort (terminals are not authenticated).
	Actor     string
	Action    Action
	Target    string
	Details   string
	RequestID string
}
