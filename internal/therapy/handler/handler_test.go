package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	jwttoken "clinictrack/internal/jwt_token"
	tenantmodels "clinictrack/internal/tenant/models"
	userstore "clinictrack/internal/tenant/store/user"
	"clinictrack/internal/therapy/service"
	"clinictrack/internal/therapy/store"
	authmw "clinictrack/pkg/platform/middleware/auth"
	"clinictrack/pkg/requestcontext"
)

type HandlerSuite struct {
	suite.Suite
	router http.Handler
	jwt    *jwttoken.JWTService
	tenant string
	smith  string
	jones  string
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	users := userstore.NewInMemory()
	for _, name := range []string{"drsmith", "drjones"} {
		u, err := tenantmodels.NewProfessionalUser("ClinicA", name, "", "digest", time.Now().UTC())
		s.Require().NoError(err)
		s.Require().NoError(users.Create(ctx, u))
	}

	s.jwt = jwttoken.NewJWTService("therapy-signing-key", "clinictrack", time.Hour)
	h := New(service.New(store.NewInMemory(), users), logger)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(jwttoken.NewJWTServiceAdapter(s.jwt), logger))
		h.Register(r)
	})
	s.router = r

	s.tenant = s.token(requestcontext.Principal{Tenant: "ClinicA", Role: requestcontext.RoleTenant})
	s.smith = s.token(requestcontext.Principal{Tenant: "ClinicA", User: "drsmith", Role: requestcontext.RoleProfessional})
	s.jones = s.token(requestcontext.Principal{Tenant: "ClinicA", User: "drjones", Role: requestcontext.RoleProfessional})
}

func (s *HandlerSuite) token(p requestcontext.Principal) string {
	token, _, err := s.jwt.Issue(p)
	s.Require().NoError(err)
	return token
}

func (s *HandlerSuite) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		var buf bytes.Buffer
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
		req = httptest.NewRequest(method, path, &buf)
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) decode(rec *httptest.ResponseRecorder, v any) {
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(v))
}

func (s *HandlerSuite) startSession(token string, body map[string]string) *SessionResponse {
	rec := s.do(http.MethodPost, "/tenants/ClinicA/sessions", body, token)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var res SessionResponse
	s.decode(rec, &res)
	return &res
}

func (s *HandlerSuite) TestFullSessionFlow() {
	session := s.startSession(s.smith, map[string]string{"patient": "p1", "initial_state": "anxious"})
	s.Equal("drsmith", session.User, "professional defaults to self")

	rec := s.do(http.MethodPost, fmt.Sprintf("/tenants/ClinicA/sessions/%d/exercises", session.ID),
		map[string]string{"scene": "forest"}, s.smith)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var exercise ExerciseResponse
	s.decode(rec, &exercise)
	s.Equal(session.ID, exercise.SessionID)

	rec = s.do(http.MethodPost, fmt.Sprintf("/tenants/ClinicA/exercises/%d/metrics", exercise.ID),
		map[string]any{"name": "score", "data": map[string]int{"value": 8}}, s.smith)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, fmt.Sprintf("/tenants/ClinicA/exercises/%d/finish", exercise.ID), nil, s.smith)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, fmt.Sprintf("/tenants/ClinicA/sessions/%d/finish", session.ID),
		map[string]string{"final_state": "calm"}, s.smith)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var finished SessionResponse
	s.decode(rec, &finished)
	s.NotNil(finished.FinishedAt)
	s.Equal("calm", finished.FinalState)

	rec = s.do(http.MethodGet, "/tenants/ClinicA/patients/p1/metrics", nil, s.smith)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var report PatientReportResponse
	s.decode(rec, &report)
	s.Equal("drsmith", report.User)
	s.Require().Len(report.Entries, 1)
	s.JSONEq(`{"value":8}`, string(report.Entries[0].Metric.Data))
	s.Equal("forest", report.Entries[0].Exercise.Scene)
	s.Equal("anxious", report.Entries[0].Session.InitialState)

	rec = s.do(http.MethodGet, "/tenants/ClinicA/patients/p1/metrics?user=drsmith", nil, s.tenant)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *HandlerSuite) TestFinishSessionWithoutBody() {
	session := s.startSession(s.tenant, map[string]string{"user": "drjones", "patient": "p2"})

	rec := s.do(http.MethodPost, fmt.Sprintf("/tenants/ClinicA/sessions/%d/finish", session.ID), nil, s.tenant)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, fmt.Sprintf("/tenants/ClinicA/sessions/%d/finish", session.ID), nil, s.tenant)
	s.Equal(http.StatusConflict, rec.Code)
}

func (s *HandlerSuite) TestProfessionalsAreConfinedToTheirOwnRecords() {
	session := s.startSession(s.smith, map[string]string{"patient": "p1"})

	rec := s.do(http.MethodPost, "/tenants/ClinicA/sessions",
		map[string]string{"user": "drsmith", "patient": "p1"}, s.jones)
	s.Equal(http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, fmt.Sprintf("/tenants/ClinicA/sessions/%d/exercises", session.ID),
		map[string]string{"scene": "forest"}, s.jones)
	s.Equal(http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodGet, "/tenants/ClinicA/patients/p1/metrics?user=drsmith", nil, s.jones)
	s.Equal(http.StatusForbidden, rec.Code)
}

func (s *HandlerSuite) TestErrors() {
	s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/tenants/ClinicA/patients/p1/metrics", nil, "").Code)

	other := s.token(requestcontext.Principal{Tenant: "ClinicB", Role: requestcontext.RoleTenant})
	s.Equal(http.StatusForbidden, s.do(http.MethodPost, "/tenants/ClinicA/sessions",
		map[string]string{"user": "drsmith", "patient": "p1"}, other).Code)

	s.Equal(http.StatusNotFound, s.do(http.MethodPost, "/tenants/ClinicA/sessions",
		map[string]string{"user": "ghost", "patient": "p1"}, s.tenant).Code)

	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/tenants/ClinicA/sessions/abc/finish", nil, s.tenant).Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodPost, "/tenants/ClinicA/exercises/99/finish", nil, s.tenant).Code)

	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/tenants/ClinicA/sessions",
		map[string]string{"user": "drsmith"}, s.tenant).Code)

	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/tenants/ClinicA/patients/nobody/metrics?user=drsmith", nil, s.tenant).Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/tenants/ClinicA/patients/p1/metrics", nil, s.tenant).Code)
}
