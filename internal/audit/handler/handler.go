// Package handler exposes the audit trail to the back office.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"clinictrack/internal/audit"
	dErrors "clinictrack/pkg/domain-errors"
	"clinictrack/pkg/platform/httputil"
	"clinictrack/pkg/requestcontext"
)

type Lister interface {
	List(ctx context.Context, tenant string, limit int) ([]audit.Event, error)
}

type Handler struct {
	events Lister
	logger *slog.Logger
}

func New(events Lister, logger *slog.Logger) *Handler {
	return &Handler{events: events, logger: logger}
}

// RegisterAdmin mounts the audit listing. The caller installs the admin
// token guard.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/audit", h.HandleList)
}

type EventResponse struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Tenant    string    `json:"tenant,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

type ListResponse struct {
	Events []EventResponse `json:"events"`
	Count  int             `json:"count"`
}

// HandleList serves GET /admin/audit?tenant=&limit=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	limit := audit.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > audit.MaxListLimit {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be between 1 and 500"))
			return
		}
		limit = n
	}

	events, err := h.events.List(ctx, r.URL.Query().Get("tenant"), limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "list audit events failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit events"))
		return
	}

	res := ListResponse{Events: make([]EventResponse, 0, len(events)), Count: len(events)}
	for _, e := range events {
		res.Events = append(res.Events, EventResponse{
			ID:        e.ID,
			Timestamp: e.Timestamp,
			Action:    string(e.Action),
			Tenant:    e.Tenant,
			Actor:     e.Actor,
			Subject:   e.Subject,
			Reason:    e.Reason,
			RequestID: e.RequestID,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}
