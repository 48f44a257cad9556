package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	tenantmodels "clinictrack/internal/tenant/models"
	userstore "clinictrack/internal/tenant/store/user"
	"clinictrack/internal/therapy/store"
	dErrors "clinictrack/pkg/domain-errors"
	"clinictrack/pkg/testutil"
)

type ServiceSuite struct {
	suite.Suite
	newBackend func(t *testing.T) Store
	svc        *Service
	ctx        context.Context
	now        time.Time
}

// professionals is shared by both backends; the SQLite backend also seeds
// the same users so foreign keys hold.
var professionals = []struct{ tenant, name string }{
	{"ClinicA", "drsmith"},
	{"ClinicA", "drjones"},
	{"ClinicB", "drsmith"},
}

func TestServiceInMemory(t *testing.T) {
	suite.Run(t, &ServiceSuite{newBackend: func(*testing.T) Store {
		return store.NewInMemory()
	}})
}

func TestServiceSQLite(t *testing.T) {
	suite.Run(t, &ServiceSuite{newBackend: func(t *testing.T) Store {
		db := testutil.NewSQLiteDB(t)
		testutil.SeedTenant(t, db, "ClinicA")
		testutil.SeedTenant(t, db, "ClinicB")
		for _, p := range professionals {
			testutil.SeedUser(t, db, p.tenant, p.name)
		}
		return store.NewSQL(db)
	}})
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2025, 5, 6, 8, 30, 0, 0, time.UTC)

	users := userstore.NewInMemory()
	for _, p := range professionals {
		u, err := tenantmodels.NewProfessionalUser(p.tenant, p.name, "", "digest", s.now)
		s.Require().NoError(err)
		s.Require().NoError(users.Create(s.ctx, u))
	}
	s.svc = New(s.newBackend(s.T()), users, WithClock(func() time.Time { return s.now }))
}

func (s *ServiceSuite) start(user, patient string) int64 {
	session, err := s.svc.StartSession(s.ctx, StartSessionCommand{
		Tenant: "ClinicA", User: user, Patient: patient, InitialState: "calm",
	})
	s.Require().NoError(err)
	return session.ID
}

func (s *ServiceSuite) startExercise(sessionID int64, scene string) int64 {
	e, err := s.svc.StartExercise(s.ctx, StartExerciseCommand{Tenant: "ClinicA", SessionID: sessionID, Scene: scene})
	s.Require().NoError(err)
	return e.ID
}

func (s *ServiceSuite) record(exerciseID int64, name, data string) error {
	_, err := s.svc.RecordMetric(s.ctx, RecordMetricCommand{
		Tenant: "ClinicA", ExerciseID: exerciseID, Name: name, Data: json.RawMessage(data),
	})
	return err
}

func (s *ServiceSuite) TestStartSession() {
	s.Run("known professional", func() {
		session, err := s.svc.StartSession(s.ctx, StartSessionCommand{
			Tenant: "ClinicA", User: "drsmith", Patient: " p1 ", InitialState: "anxious",
		})
		s.Require().NoError(err)
		s.NotZero(session.ID)
		s.Equal("p1", session.Patient)
		s.True(session.StartedAt.Equal(s.now))
	})

	s.Run("unknown professional", func() {
		_, err := s.svc.StartSession(s.ctx, StartSessionCommand{Tenant: "ClinicA", User: "ghost", Patient: "p1"})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound), "got %v", err)
	})

	s.Run("professional of another tenant", func() {
		_, err := s.svc.StartSession(s.ctx, StartSessionCommand{Tenant: "ClinicB", User: "drjones", Patient: "p1"})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("professional acting for a colleague", func() {
		_, err := s.svc.StartSession(s.ctx, StartSessionCommand{
			Tenant: "ClinicA", User: "drjones", Patient: "p1", Actor: "drsmith",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("missing patient", func() {
		_, err := s.svc.StartSession(s.ctx, StartSessionCommand{Tenant: "ClinicA", User: "drsmith"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestFinishSession() {
	id := s.start("drsmith", "p1")
	s.now = s.now.Add(time.Hour)

	_, err := s.svc.FinishSession(s.ctx, FinishSessionCommand{Tenant: "ClinicA", SessionID: id, Actor: "drjones"})
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	session, err := s.svc.FinishSession(s.ctx, FinishSessionCommand{
		Tenant: "ClinicA", SessionID: id, FinalState: "relaxed", Actor: "drsmith",
	})
	s.Require().NoError(err)
	s.Require().NotNil(session.FinishedAt)
	s.True(session.FinishedAt.Equal(s.now))
	s.Equal("relaxed", session.FinalState)

	_, err = s.svc.FinishSession(s.ctx, FinishSessionCommand{Tenant: "ClinicA", SessionID: id})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	_, err = s.svc.StartExercise(s.ctx, StartExerciseCommand{Tenant: "ClinicA", SessionID: id, Scene: "forest"})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict), "finished sessions take no exercises")

	_, err = s.svc.FinishSession(s.ctx, FinishSessionCommand{Tenant: "ClinicB", SessionID: id})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestExercisesAndMetrics() {
	sessionID := s.start("drsmith", "p1")
	exerciseID := s.startExercise(sessionID, "forest")

	s.Require().NoError(s.record(exerciseID, "score", `{"value":7}`))
	s.True(dErrors.HasCode(s.record(exerciseID, "score", `{"value":`), dErrors.CodeValidation))
	s.True(dErrors.HasCode(s.record(exerciseID, "", `1`), dErrors.CodeValidation))
	s.True(dErrors.HasCode(s.record(987654, "score", `1`), dErrors.CodeNotFound))

	e, err := s.svc.FinishExercise(s.ctx, FinishExerciseCommand{Tenant: "ClinicA", ExerciseID: exerciseID})
	s.Require().NoError(err)
	s.NotNil(e.FinishedAt)

	_, err = s.svc.FinishExercise(s.ctx, FinishExerciseCommand{Tenant: "ClinicA", ExerciseID: exerciseID})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	_, err = s.svc.RecordMetric(s.ctx, RecordMetricCommand{
		Tenant: "ClinicA", ExerciseID: exerciseID, Name: "score", Data: json.RawMessage(`1`), Actor: "drjones",
	})
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *ServiceSuite) TestPatientReport() {
	s.Run("no sessions", func() {
		_, err := s.svc.PatientReport(s.ctx, ReportQuery{Tenant: "ClinicA", User: "drsmith", Patient: "nobody"})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	sessionID := s.start("drsmith", "p1")

	s.Run("sessions without metrics", func() {
		_, err := s.svc.PatientReport(s.ctx, ReportQuery{Tenant: "ClinicA", User: "drsmith", Patient: "p1"})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	exerciseID := s.startExercise(sessionID, "forest")
	s.Require().NoError(s.record(exerciseID, "score", `{"value":3}`))
	s.Require().NoError(s.record(exerciseID, "score", `{"value":5}`))

	s.Run("metrics joined to exercise and session", func() {
		report, err := s.svc.PatientReport(s.ctx, ReportQuery{Tenant: "ClinicA", User: "drsmith", Patient: "p1"})
		s.Require().NoError(err)
		s.Equal("ClinicA", report.Tenant)
		s.Require().Len(report.Entries, 2)
		s.Equal("forest", report.Entries[0].Exercise.Scene)
		s.Equal(sessionID, report.Entries[1].Session.ID)
		s.JSONEq(`{"value":5}`, string(report.Entries[1].Metric.Data))
	})

	s.Run("professional defaults to self", func() {
		report, err := s.svc.PatientReport(s.ctx, ReportQuery{Tenant: "ClinicA", Patient: "p1", Actor: "drsmith"})
		s.Require().NoError(err)
		s.Equal("drsmith", report.User)
	})

	s.Run("professional reading a colleague", func() {
		_, err := s.svc.PatientReport(s.ctx, ReportQuery{Tenant: "ClinicA", User: "drsmith", Patient: "p1", Actor: "drjones"})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("tenant account must name the user", func() {
		_, err := s.svc.PatientReport(s.ctx, ReportQuery{Tenant: "ClinicA", Patient: "p1"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("scoped to tenant", func() {
		_, err := s.svc.PatientReport(s.ctx, ReportQuery{Tenant: "ClinicB", User: "drsmith", Patient: "p1"})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
