package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"clinictrack/internal/license/keycodec"
	"clinictrack/internal/license/models"
	"clinictrack/internal/license/service"
	dErrors "clinictrack/pkg/domain-errors"
	"clinictrack/pkg/platform/httputil"
	adminmw "clinictrack/pkg/platform/middleware/admin"
	"clinictrack/pkg/requestcontext"
)

// Service is the slice of the license lifecycle exposed over HTTP.
type Service interface {
	Generate(ctx context.Context, cmd service.GenerateCommand) (*service.GenerateResult, error)
	Validate(ctx context.Context, key string) (*service.ValidationResult, error)
	Get(ctx context.Context, id int64) (*models.License, error)
	Revoke(ctx context.Context, id int64) (*models.License, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterPublic mounts the unauthenticated validation endpoint.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/license/validate", h.HandleValidate)
}

// RegisterAdmin mounts the back-office endpoints. The caller is responsible
// for putting them behind the admin token guard.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/license/generate", h.HandleGenerate)
	r.Get("/admin/licenses/{id}", h.HandleGet)
	r.Post("/admin/licenses/{id}/revoke", h.HandleRevoke)
}

// HandleGenerate mints a license. The plaintext key appears in this response
// and nowhere else.
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[GenerateLicenseRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.Generate(ctx, req.ToCommand())
	if err != nil {
		h.logger.ErrorContext(ctx, "generate license failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "license issued from back office",
		"license_id", res.License.ID,
		"key", keycodec.Mask(res.Key),
		"actor", adminmw.GetAdminActorID(ctx),
		"request_id", requestID,
	)
	httputil.WriteJSON(w, http.StatusCreated, &GenerateLicenseResponse{
		ID:         res.License.ID,
		LicenseKey: res.Key,
		Kind:       string(res.License.Kind),
		MaxUsers:   res.License.MaxUsers,
	})
}

func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ValidateLicenseRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.Validate(ctx, req.LicenseKey)
	if err != nil {
		h.logger.ErrorContext(ctx, "validate license failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	status, body := toValidateResponse(res.Outcome, res.License)
	httputil.WriteJSON(w, status, body)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	licenseID, err := parseLicenseID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	license, err := h.service.Get(ctx, licenseID)
	if err != nil {
		h.logger.ErrorContext(ctx, "get license failed", "error", err, "request_id", requestID, "license_id", licenseID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toLicenseResponse(license))
}

func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	licenseID, err := parseLicenseID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	license, err := h.service.Revoke(ctx, licenseID)
	if err != nil {
		h.logger.ErrorContext(ctx, "revoke license failed", "error", err, "request_id", requestID, "license_id", licenseID)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "license revoked from back office",
		"license_id", licenseID,
		"actor", adminmw.GetAdminActorID(ctx),
		"request_id", requestID,
	)
	httputil.WriteJSON(w, http.StatusOK, toLicenseResponse(license))
}

func parseLicenseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "invalid license id")
	}
	return id, nil
}
