// Package handler exposes the presence projection over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"rezscan/internal/presence/models"
	"rezscan/internal/transport/http/shared"
	dErrors "rezscan/pkg/domain-errors"
	"rezscan/pkg/requestcontext"
)

// Service is the projector contract the handler depends on.
type Service interface {
	CurrentPresence(ctx context.Context) ([]models.Row, error)
	StatusOf(ctx context.Context, mdoc string) (*models.Status, error)
}

// Handler handles presence queries.
type Handler struct {
	logger   *slog.Logger
	presence Service
}

// New creates a presence Handler.
func New(presence Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, presence: presence}
}

// Register registers the presence routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/presence", h.handleCurrentPresence)
	r.Get("/residents/{mdoc}/status", h.handleStatusOf)
}

type presenceRow struct {
	ResidentID string    `json:"resident_id"`
	MDOC       string    `json:"mdoc,omitempty"`
	Name       string    `json:"name,omitempty"`
	Location   string    `json:"location"`
	AsOf       time.Time `json:"as_of"`
}

func (h *Handler) handleCurrentPresence(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rows, err := h.presence.CurrentPresence(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "presence query failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	payload := make([]presenceRow, 0, len(rows))
	for _, row := range rows {
		payload = append(payload, presenceRow{
			ResidentID: row.ResidentID.String(),
			MDOC:       row.MDOC,
			Name:       row.Name,
			Location:   row.Location,
			AsOf:       row.AsOf,
		})
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"present": payload})
}

type statusResponse struct {
	State    string     `json:"state"`
	Location string     `json:"location,omitempty"`
	AsOf     *time.Time `json:"as_of,omitempty"`
}

func (h *Handler) handleStatusOf(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	mdoc := chi.URLParam(r, "mdoc")
	if mdoc == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "mdoc is required"))
		return
	}

	status, err := h.presence.StatusOf(ctx, mdoc)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "status query failed",
				"request_id", requestcontext.RequestID(ctx),
				"mdoc", mdoc,
				"error", err.Error(),
			)
		}
		shared.WriteError(w, err)
		return
	}

	resp := statusResponse{State: string(status.State)}
	if status.State != models.StateNeverSeen {
		resp.Location = status.Location
		asOf := status.AsOf
		resp.AsOf = &asOf
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}
