package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"clinictrack/internal/therapy/models"
	"clinictrack/internal/therapy/service"
	dErrors "clinictrack/pkg/domain-errors"
	"clinictrack/pkg/platform/httputil"
	"clinictrack/pkg/requestcontext"
)

// Service records therapy activity for a tenant.
type Service interface {
	StartSession(ctx context.Context, cmd service.StartSessionCommand) (*models.Session, error)
	FinishSession(ctx context.Context, cmd service.FinishSessionCommand) (*models.Session, error)
	StartExercise(ctx context.Context, cmd service.StartExerciseCommand) (*models.Exercise, error)
	FinishExercise(ctx context.Context, cmd service.FinishExerciseCommand) (*models.Exercise, error)
	RecordMetric(ctx context.Context, cmd service.RecordMetricCommand) (*models.Metric, error)
	PatientReport(ctx context.Context, q service.ReportQuery) (*models.PatientReport, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the therapy routes. The caller must install bearer
// authentication; both tenant and professional tokens are accepted.
func (h *Handler) Register(r chi.Router) {
	r.Post("/tenants/{tenant}/sessions", h.HandleStartSession)
	r.Post("/tenants/{tenant}/sessions/{id}/finish", h.HandleFinishSession)
	r.Post("/tenants/{tenant}/sessions/{id}/exercises", h.HandleStartExercise)
	r.Post("/tenants/{tenant}/exercises/{id}/finish", h.HandleFinishExercise)
	r.Post("/tenants/{tenant}/exercises/{id}/metrics", h.HandleRecordMetric)
	r.Get("/tenants/{tenant}/patients/{patient}/metrics", h.HandlePatientReport)
}

func (h *Handler) HandleStartSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	tenant, actor, ok := h.access(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[StartSessionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	session, err := h.service.StartSession(ctx, req.ToCommand(tenant, actor))
	if err != nil {
		h.logFailure(ctx, "start session failed", err, requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toSessionResponse(session))
}

func (h *Handler) HandleFinishSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	tenant, actor, ok := h.access(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	// The final state is optional, so is the body.
	req := &FinishSessionRequest{}
	if r.ContentLength != 0 {
		if req, ok = httputil.DecodeAndPrepare[FinishSessionRequest](w, r, h.logger, ctx, requestID); !ok {
			return
		}
	}

	session, err := h.service.FinishSession(ctx, service.FinishSessionCommand{
		Tenant:     tenant,
		SessionID:  id,
		FinalState: req.FinalState,
		Actor:      actor,
	})
	if err != nil {
		h.logFailure(ctx, "finish session failed", err, requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSessionResponse(session))
}

func (h *Handler) HandleStartExercise(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	tenant, actor, ok := h.access(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[StartExerciseRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	exercise, err := h.service.StartExercise(ctx, service.StartExerciseCommand{
		Tenant:    tenant,
		SessionID: id,
		Scene:     req.Scene,
		Actor:     actor,
	})
	if err != nil {
		h.logFailure(ctx, "start exercise failed", err, requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toExerciseResponse(exercise))
}

func (h *Handler) HandleFinishExercise(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	tenant, actor, ok := h.access(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	exercise, err := h.service.FinishExercise(ctx, service.FinishExerciseCommand{
		Tenant:     tenant,
		ExerciseID: id,
		Actor:      actor,
	})
	if err != nil {
		h.logFailure(ctx, "finish exercise failed", err, requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toExerciseResponse(exercise))
}

func (h *Handler) HandleRecordMetric(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	tenant, actor, ok := h.access(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[RecordMetricRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	metric, err := h.service.RecordMetric(ctx, service.RecordMetricCommand{
		Tenant:     tenant,
		ExerciseID: id,
		Name:       req.Name,
		Data:       req.Data,
		Actor:      actor,
	})
	if err != nil {
		h.logFailure(ctx, "record metric failed", err, requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toMetricResponse(metric))
}

func (h *Handler) HandlePatientReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	tenant, actor, ok := h.access(w, r)
	if !ok {
		return
	}

	report, err := h.service.PatientReport(ctx, service.ReportQuery{
		Tenant:  tenant,
		User:    r.URL.Query().Get("user"),
		Patient: chi.URLParam(r, "patient"),
		Actor:   actor,
	})
	if err != nil {
		h.logFailure(ctx, "patient report failed", err, requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toReportResponse(report))
}

// access checks the route tenant against the token and returns the
// professional acting, if any.
func (h *Handler) access(w http.ResponseWriter, r *http.Request) (string, service.Actor, bool) {
	ctx := r.Context()
	tenant := chi.URLParam(r, "tenant")
	p, err := httputil.RequireTenantAccess(ctx, tenant, h.logger, requestcontext.RequestID(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return "", "", false
	}
	if p.Role == requestcontext.RoleProfessional {
		return tenant, service.Actor(p.User), true
	}
	return tenant, "", true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid id"))
		return 0, false
	}
	return id, true
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error, requestID string) {
	if dErrors.HasCode(err, dErrors.CodeInternal) {
		h.logger.ErrorContext(ctx, msg, "error", err, "request_id", requestID)
		return
	}
	h.logger.InfoContext(ctx, msg, "error", err, "request_id", requestID)
}
