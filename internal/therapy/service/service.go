// Package service records therapy sessions, their exercises and metrics, and
// builds per-patient reports.
package service

import (
	"context"
	"log/slog"
	"time"

	"clinictrack/internal/platform/tracer"
	"clinictrack/internal/therapy/models"
	dErrors "clinictrack/pkg/domain-errors"
	"clinictrack/pkg/requestcontext"
)

type Service struct {
	store         Store
	professionals Professionals
	logger        *slog.Logger
	tracer        tracer.Tracer
	now           func() time.Time
}

func New(store Store, professionals Professionals, opts ...Option) *Service {
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	if cfg.tracer == nil {
		cfg.tracer = tracer.NewNoop()
	}
	if cfg.clock == nil {
		cfg.clock = time.Now
	}
	return &Service{
		store:         store,
		professionals: professionals,
		logger:        cfg.logger,
		tracer:        cfg.tracer,
		now:           func() time.Time { return cfg.clock().UTC() },
	}
}

// StartSession opens a session for a professional of the tenant.
func (s *Service) StartSession(ctx context.Context, cmd StartSessionCommand) (*models.Session, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.professionals.Find(ctx, cmd.Tenant, cmd.User); err != nil {
		return nil, wrapStoreErr(err, "user", "failed to load user")
	}

	session, err := models.NewSession(cmd.Tenant, cmd.User, cmd.Patient, cmd.InitialState, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, wrapStoreErr(err, "user", "failed to create session")
	}

	s.logger.InfoContext(ctx, "session started",
		"tenant", session.Tenant,
		"user", session.User,
		"session_id", session.ID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return session, nil
}

func (s *Service) FinishSession(ctx context.Context, cmd FinishSessionCommand) (*models.Session, error) {
	session, err := s.ownedSession(ctx, cmd.Tenant, cmd.SessionID, cmd.Actor)
	if err != nil {
		return nil, err
	}
	if err := session.Finish(cmd.FinalState, s.now()); err != nil {
		return nil, err
	}
	if err := s.store.FinishSession(ctx, session.ID, *session.FinishedAt, session.FinalState); err != nil {
		return nil, wrapStoreErr(err, "session", "failed to finish session")
	}
	return session, nil
}

// StartExercise opens an exercise inside a session that is still running.
func (s *Service) StartExercise(ctx context.Context, cmd StartExerciseCommand) (*models.Exercise, error) {
	session, err := s.ownedSession(ctx, cmd.Tenant, cmd.SessionID, cmd.Actor)
	if err != nil {
		return nil, err
	}
	exercise, err := models.NewExercise(session, cmd.Scene, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateExercise(ctx, exercise); err != nil {
		return nil, wrapStoreErr(err, "session", "failed to create exercise")
	}
	return exercise, nil
}

func (s *Service) FinishExercise(ctx context.Context, cmd FinishExerciseCommand) (*models.Exercise, error) {
	exercise, err := s.ownedExercise(ctx, cmd.Tenant, cmd.ExerciseID, cmd.Actor)
	if err != nil {
		return nil, err
	}
	if err := exercise.Finish(s.now()); err != nil {
		return nil, err
	}
	if err := s.store.FinishExercise(ctx, exercise.ID, *exercise.FinishedAt); err != nil {
		return nil, wrapStoreErr(err, "exercise", "failed to finish exercise")
	}
	return exercise, nil
}

func (s *Service) RecordMetric(ctx context.Context, cmd RecordMetricCommand) (*models.Metric, error) {
	exercise, err := s.ownedExercise(ctx, cmd.Tenant, cmd.ExerciseID, cmd.Actor)
	if err != nil {
		return nil, err
	}
	metric, err := models.NewMetric(exercise.ID, cmd.Name, cmd.Data, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateMetric(ctx, metric); err != nil {
		return nil, wrapStoreErr(err, "exercise", "failed to record metric")
	}
	return metric, nil
}

// PatientReport returns every metric a professional recorded for a patient.
// A patient without sessions, or with sessions but no metrics, is not found.
func (s *Service) PatientReport(ctx context.Context, q ReportQuery) (report *models.PatientReport, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanPatientReport, tracer.String(tracer.AttrTenant, q.Tenant))
	defer func() { span.End(err) }()

	if err := q.Validate(); err != nil {
		return nil, err
	}
	span.SetAttributes(tracer.String(tracer.AttrUser, q.User))

	sessions, err := s.store.CountSessions(ctx, q.Tenant, q.User, q.Patient)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count sessions")
	}
	if sessions == 0 {
		return nil, dErrors.New(dErrors.CodeNotFound, "no sessions for patient")
	}

	entries, err := s.store.PatientMetrics(ctx, q.Tenant, q.User, q.Patient)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load metrics")
	}
	if len(entries) == 0 {
		return nil, dErrors.New(dErrors.CodeNotFound, "no metrics for patient")
	}
	span.SetAttributes(tracer.Int64(tracer.AttrEntries, int64(len(entries))))

	return &models.PatientReport{
		Tenant:  q.Tenant,
		User:    q.User,
		Patient: q.Patient,
		Entries: entries,
	}, nil
}

func (s *Service) ownedSession(ctx context.Context, tenant string, id int64, actor Actor) (*models.Session, error) {
	session, err := s.store.FindSession(ctx, tenant, id)
	if err != nil {
		return nil, wrapStoreErr(err, "session", "failed to load session")
	}
	if !actor.owns(session.User) {
		return nil, dErrors.New(dErrors.CodeForbidden, "session belongs to another professional")
	}
	return session, nil
}

func (s *Service) ownedExercise(ctx context.Context, tenant string, id int64, actor Actor) (*models.Exercise, error) {
	exercise, err := s.store.FindExercise(ctx, tenant, id)
	if err != nil {
		return nil, wrapStoreErr(err, "exercise", "failed to load exercise")
	}
	if _, err := s.ownedSession(ctx, tenant, exercise.SessionID, actor); err != nil {
		return nil, err
	}
	return exercise, nil
}
