// Package handler is the HTTP shell around the scan engine. Parsing the
// kiosk's raw "PREFIX-MDOC" line, input shape validation, and audit emission
// live here; the engine's contract takes already-separated values.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"rezscan/internal/audit"
	"rezscan/internal/resident"
	"rezscan/internal/scan/models"
	"rezscan/internal/scan/store"
	"rezscan/internal/transport/http/shared"
	dErrors "rezscan/pkg/domain-errors"
	"rezscan/pkg/requestcontext"
)

// Kiosk scanners emit a single line; these mirror the device constraints.
var (
	prefixPattern = regexp.MustCompile(`^[a-zA-Z0-9]{1,10}$`)
	mdocPattern   = regexp.MustCompile(`^\d{1,10}$`)
)

// Service is the engine contract the handler depends on.
type Service interface {
	RecordScan(ctx context.Context, mdoc, prefix string, now time.Time) (*models.Outcome, error)
}

// EventLog is the scan log listing the handler exposes.
type EventLog interface {
	List(ctx context.Context, filter store.ListFilter) ([]models.ScanEvent, error)
}

// ResidentLookup resolves mdoc filters for scan log listings.
type ResidentLookup interface {
	FindByMDOC(ctx context.Context, mdoc string) (*resident.Resident, error)
}

// Auditor is the audit write path; emission never blocks a scan.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event)
}

// Handler handles scan ingestion and scan log queries.
type Handler struct {
	logger    *slog.Logger
	scans     Service
	log       EventLog
	residents ResidentLookup
	auditor   Auditor
	limit     func(http.Handler) http.Handler
}

// New creates a scan Handler. auditor and rateLimit may be nil.
func New(scans Service, log EventLog, residents ResidentLookup, logger *slog.Logger, auditor Auditor, rateLimit func(http.Handler) http.Handler) *Handler {
	return &Handler{
		logger:    logger,
		scans:     scans,
		log:       log,
		residents: residents,
		auditor:   auditor,
		limit:     rateLimit,
	}
}

// Register registers the scan routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	if h.limit != nil {
		r.With(h.limit).Post("/scans", h.handleRecordScan)
	} else {
		r.Post("/scans", h.handleRecordScan)
	}
	r.Get("/scans", h.handleListScans)
}

type recordScanRequest struct {
	// Code is the raw kiosk line, "PREFIX-MDOC". Takes precedence when set.
	Code   string `json:"code"`
	MDOC   string `json:"mdoc"`
	Prefix string `json:"prefix"`
}

type recordScanResponse struct {
	Result          string         `json:"result"`
	Message         string         `json:"message"`
	Events          []eventPayload `json:"events,omitempty"`
	UnknownResident bool           `json:"unknown_resident,omitempty"`
}

type eventPayload struct {
	ResidentID string    `json:"resident_id"`
	Timestamp  time.Time `json:"timestamp"`
	Status     string    `json:"status"`
	Location   string    `json:"location"`
	Seq        int64     `json:"seq"`
}

func (h *Handler) handleRecordScan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req recordScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	mdoc, prefix, err := splitScanInput(req)
	if err != nil {
		h.audit(ctx, audit.ActionScanFailed, err.Error())
		shared.WriteError(w, err)
		return
	}

	outcome, err := h.scans.RecordScan(ctx, mdoc, prefix, requestcontext.Now(ctx))
	if err != nil {
		h.logger.WarnContext(ctx, "scan rejected",
			"request_id", requestcontext.RequestID(ctx),
			"mdoc", mdoc,
			"prefix", prefix,
			"error", err.Error(),
		)
		h.audit(ctx, audit.ActionScanFailed, fmt.Sprintf("mdoc=%s prefix=%s: %s", mdoc, prefix, err))
		shared.WriteError(w, err)
		return
	}

	h.audit(ctx, audit.ActionScan, fmt.Sprintf("mdoc=%s prefix=%s: %s", mdoc, prefix, outcome.Message))

	resp := recordScanResponse{
		Result:          string(outcome.Kind),
		Message:         outcome.Message,
		UnknownResident: outcome.UnknownResident,
	}
	for _, event := range outcome.Events {
		resp.Events = append(resp.Events, toEventPayload(event))
	}

	status := http.StatusCreated
	if outcome.Kind == models.OutcomeIgnored {
		// Not an error, but callers must see it is not a write either.
		status = http.StatusOK
	}
	shared.WriteJSON(w, status, resp)
}

// splitScanInput normalizes the two accepted request shapes into validated
// (mdoc, prefix) values.
func splitScanInput(req recordScanRequest) (mdoc, prefix string, err error) {
	mdoc, prefix = req.MDOC, req.Prefix
	if code := strings.TrimSpace(req.Code); code != "" {
		before, after, found := strings.Cut(code, "-")
		if !found {
			return "", "", dErrors.New(dErrors.CodeBadRequest, "invalid scan format, expected PREFIX-MDOC")
		}
		prefix, mdoc = before, after
	}

	mdoc = strings.TrimSpace(mdoc)
	prefix = strings.TrimSpace(prefix)
	if mdoc == "" || prefix == "" {
		return "", "", dErrors.New(dErrors.CodeBadRequest, "no barcode scanned")
	}
	if !prefixPattern.MatchString(prefix) {
		return "", "", dErrors.New(dErrors.CodeBadRequest, "invalid prefix format, use alphanumeric characters, max 10")
	}
	if !mdocPattern.MatchString(mdoc) {
		return "", "", dErrors.New(dErrors.CodeBadRequest, "invalid mdoc format, use numeric characters, max 10 digits")
	}
	return mdoc, strings.ToUpper(prefix), nil
}

func (h *Handler) handleListScans(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter := store.ListFilter{}

	if mdoc := r.URL.Query().Get("mdoc"); mdoc != "" {
		res, err := h.residents.FindByMDOC(ctx, mdoc)
		if err != nil {
			// Unknown mdoc filter matches nothing rather than erroring; the
			// scan log is a search surface.
			shared.WriteJSON(w, http.StatusOK, map[string]any{"scans": []eventPayload{}})
			return
		}
		filter.ResidentID = res.ID
	}
	filter.Location = r.URL.Query().Get("location")
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Limit = n
		}
	}

	events, err := h.log.List(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "scan log listing failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list scans"))
		return
	}

	payload := make([]eventPayload, 0, len(events))
	for _, event := range events {
		payload = append(payload, toEventPayload(event))
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"scans": payload})
}

func (h *Handler) audit(ctx context.Context, action audit.Action, details string) {
	if h.auditor == nil {
		return
	}
	h.auditor.Emit(ctx, audit.Event{
		Actor:     requestcontext.Terminal(ctx),
		Action:    action,
		Target:    "scan",
		Details:   details,
		RequestID: requestcontext.RequestID(ctx),
	})
}

func toEventPayload(event models.ScanEvent) eventPayload {
	return eventPayload{
		ResidentID: event.ResidentID.String(),
		Timestamp:  event.Timestamp,
		Status:     string(event.Status),
		Location:   event.Location,
		Seq:        event.Seq,
	}
}
