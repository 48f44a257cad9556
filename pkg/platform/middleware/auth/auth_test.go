package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"clinictrack/pkg/requestcontext"
)

type MockTokenValidator struct {
	mock.Mock
}

func (m *MockTokenValidator) ValidateToken(tokenString string) (requestcontext.Principal, error) {
	args := m.Called(tokenString)
	return args.Get(0).(requestcontext.Principal), args.Error(1)
}

type recordingHandler struct {
	called  bool
	context context.Context
}

func (h *recordingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	h.context = r.Context()
	w.WriteHeader(http.StatusOK)
}

type AuthMiddlewareSuite struct {
	suite.Suite
	validator *MockTokenValidator
	logger    *slog.Logger
}

func TestAuthMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(AuthMiddlewareSuite))
}

func (s *AuthMiddlewareSuite) SetupTest() {
	s.validator = new(MockTokenValidator)
	s.logger = slog.New(slog.DiscardHandler)
}

func (s *AuthMiddlewareSuite) TearDownTest() {
	s.validator.AssertExpectations(s.T())
}

func (s *AuthMiddlewareSuite) TestRequireAuth() {
	s.Run("valid token stores principal", func() {
		principal := requestcontext.Principal{Tenant: "ClinicA", User: "dr.lee", Role: requestcontext.RoleProfessional}
		s.validator.On("ValidateToken", "good-token").Return(principal, nil).Once()

		next := &recordingHandler{}
		req := httptest.NewRequest(http.MethodGet, "/tenants/ClinicA/users", nil)
		req.Header.Set("Authorization", "Bearer good-token")
		w := httptest.NewRecorder()
		RequireAuth(s.validator, s.logger)(next).ServeHTTP(w, req)

		s.True(next.called)
		got, ok := requestcontext.GetPrincipal(next.context)
		s.True(ok)
		s.Equal(principal, got)
	})

	s.Run("missing header is unauthorized", func() {
		next := &recordingHandler{}
		w := httptest.NewRecorder()
		RequireAuth(s.validator, s.logger)(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		s.False(next.called)
		s.Equal(http.StatusUnauthorized, w.Code)
	})

	s.Run("non bearer scheme is unauthorized", func() {
		next := &recordingHandler{}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		w := httptest.NewRecorder()
		RequireAuth(s.validator, s.logger)(next).ServeHTTP(w, req)

		s.False(next.called)
		s.Equal(http.StatusUnauthorized, w.Code)
	})

	s.Run("rejected token is unauthorized", func() {
		s.validator.On("ValidateToken", "stale").Return(requestcontext.Principal{}, errors.New("token expired")).Once()

		next := &recordingHandler{}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer stale")
		w := httptest.NewRecorder()
		RequireAuth(s.validator, s.logger)(next).ServeHTTP(w, req)

		s.False(next.called)
		s.Equal(http.StatusUnauthorized, w.Code)
		s.Contains(w.Body.String(), "Invalid or expired token")
	})
}

func (s *AuthMiddlewareSuite) TestRequireRole() {
	guard := RequireRole(s.logger, requestcontext.RoleTenant)

	s.Run("matching role passes", func() {
		next := &recordingHandler{}
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req = req.WithContext(requestcontext.WithPrincipal(req.Context(),
			requestcontext.Principal{Tenant: "ClinicA", Role: requestcontext.RoleTenant}))
		guard(next).ServeHTTP(httptest.NewRecorder(), req)
		s.True(next.called)
	})

	s.Run("other role is forbidden", func() {
		next := &recordingHandler{}
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req = req.WithContext(requestcontext.WithPrincipal(req.Context(),
			requestcontext.Principal{Tenant: "ClinicA", User: "x", Role: requestcontext.RoleProfessional}))
		w := httptest.NewRecorder()
		guard(next).ServeHTTP(w, req)
		s.False(next.called)
		s.Equal(http.StatusForbidden, w.Code)
	})

	s.Run("no principal is forbidden", func() {
		next := &recordingHandler{}
		w := httptest.NewRecorder()
		guard(next).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
		s.False(next.called)
		s.Equal(http.StatusForbidden, w.Code)
	})
}
