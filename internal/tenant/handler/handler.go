package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"clinictrack/internal/tenant/models"
	"clinictrack/internal/tenant/service"
	dErrors "clinictrack/pkg/domain-errors"
	"clinictrack/pkg/platform/httputil"
	"clinictrack/pkg/requestcontext"
)

// Service is the tenant provisioning surface exposed over HTTP.
type Service interface {
	RegisterTenant(ctx context.Context, cmd service.RegisterCommand) (*service.RegisterResult, error)
	AuthenticateTenant(ctx context.Context, name, password string) (*service.TenantLogin, error)
	AuthenticateUser(ctx context.Context, tenant, name, password string) (*models.ProfessionalUser, error)
	ListUsers(ctx context.Context, tenant string) ([]*models.ProfessionalUser, error)
	CreateUser(ctx context.Context, cmd service.CreateUserCommand) (*models.ProfessionalUser, error)
	UserCapacity(ctx context.Context, tenant string) (*service.Capacity, error)
	ChangeUserPassword(ctx context.Context, cmd service.ChangePasswordCommand) error
}

// TokenIssuer signs bearer tokens for authenticated principals.
type TokenIssuer interface {
	Issue(p requestcontext.Principal) (string, time.Time, error)
}

type Handler struct {
	service Service
	tokens  TokenIssuer
	logger  *slog.Logger
}

func New(service Service, tokens TokenIssuer, logger *slog.Logger) *Handler {
	return &Handler{service: service, tokens: tokens, logger: logger}
}

// RegisterPublic mounts registration, logins and the password reset, which
// authenticates with the tenant password in the body.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/tenants", h.HandleRegister)
	r.Post("/tenants/login", h.HandleTenantLogin)
	r.Post("/users/login", h.HandleUserLogin)
	r.Put("/tenants/{tenant}/users/{user}/password", h.HandleChangePassword)
}

// RegisterProtected mounts user management. The caller must install bearer
// authentication restricted to tenant accounts.
func (h *Handler) RegisterProtected(r chi.Router) {
	r.Get("/tenants/{tenant}/users", h.HandleListUsers)
	r.Post("/tenants/{tenant}/users", h.HandleCreateUser)
	r.Get("/tenants/{tenant}/user-limit", h.HandleUserLimit)
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RegisterTenantRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.RegisterTenant(ctx, req.ToCommand())
	if err != nil {
		h.logFailure(ctx, "register tenant failed", err, requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toRegisterResponse(res))
}

func (h *Handler) HandleTenantLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[TenantLoginRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	login, err := h.service.AuthenticateTenant(ctx, req.Name, req.Password)
	if err != nil {
		h.logFailure(ctx, "tenant login failed", err, requestID)
		httputil.WriteError(w, err)
		return
	}

	principal := requestcontext.Principal{
		Tenant: login.Tenant.Name,
		Role:   requestcontext.RoleTenant,
		Admin:  login.IsAdmin,
	}
	token, expiresAt, err := h.tokens.Issue(principal)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue token", "error", err, "request_id", requestID)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		Tenant:      principal.Tenant,
		Role:        string(principal.Role),
		LicenseKind: string(login.LicenseKind),
		IsAdmin:     login.IsAdmin,
	})
}

func (h *Handler) HandleUserLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[UserLoginRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	user, err := h.service.AuthenticateUser(ctx, req.Tenant, req.User, req.Password)
	if err != nil {
		h.logFailure(ctx, "user login failed", err, requestID)
		httputil.WriteError(w, err)
		return
	}

	principal := requestcontext.Principal{
		Tenant: user.Tenant,
		User:   user.Name,
		Role:   requestcontext.RoleProfessional,
	}
	token, expiresAt, err := h.tokens.Issue(principal)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue token", "error", err, "request_id", requestID)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		Tenant:      principal.Tenant,
		User:        principal.User,
		Role:        string(principal.Role),
	})
}

func (h *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ChangePasswordRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	cmd := req.ToCommand(chi.URLParam(r, "tenant"), chi.URLParam(r, "user"))
	if err := h.service.ChangeUserPassword(ctx, cmd); err != nil {
		h.logFailure(ctx, "change password failed", err, requestID)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	tenant := chi.URLParam(r, "tenant")

	if _, err := httputil.RequireTenantAccess(ctx, tenant, h.logger, requestID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	users, err := h.service.ListUsers(ctx, tenant)
	if err != nil {
		h.logFailure(ctx, "list users failed", err, requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toUserListResponse(users))
}

func (h *Handler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	tenant := chi.URLParam(r, "tenant")

	if _, err := httputil.RequireTenantAccess(ctx, tenant, h.logger, requestID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[CreateUserRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	user, err := h.service.CreateUser(ctx, req.ToCommand(tenant))
	if err != nil {
		h.logFailure(ctx, "create user failed", err, requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toUserResponse(user))
}

func (h *Handler) HandleUserLimit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	tenant := chi.URLParam(r, "tenant")

	if _, err := httputil.RequireTenantAccess(ctx, tenant, h.logger, requestID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	capacity, err := h.service.UserCapacity(ctx, tenant)
	if err != nil {
		h.logFailure(ctx, "user limit lookup failed", err, requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toUserLimitResponse(capacity))
}

// logFailure logs expected rejections at info and everything else at error.
func (h *Handler) logFailure(ctx context.Context, msg string, err error, requestID string) {
	if dErrors.HasCode(err, dErrors.CodeInternal) {
		h.logger.ErrorContext(ctx, msg, "error", err, "request_id", requestID)
		return
	}
	h.logger.InfoContext(ctx, msg, "error", err, "request_id", requestID)
}
