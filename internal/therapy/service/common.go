package service

import (
	"context"
	"errors"
	"time"

	"clinictrack/internal/sentinel"
	tenantmodels "clinictrack/internal/tenant/models"
	"clinictrack/internal/therapy/models"
	dErrors "clinictrack/pkg/domain-errors"
)

type Store interface {
	CreateSession(ctx context.Context, s *models.Session) error
	FindSession(ctx context.Context, tenant string, id int64) (*models.Session, error)
	FinishSession(ctx context.Context, id int64, finishedAt time.Time, finalState string) error
	CreateExercise(ctx context.Context, e *models.Exercise) error
	FindExercise(ctx context.Context, tenant string, id int64) (*models.Exercise, error)
	FinishExercise(ctx context.Context, id int64, finishedAt time.Time) error
	CreateMetric(ctx context.Context, m *models.Metric) error
	CountSessions(ctx context.Context, tenant, user, patient string) (int, error)
	PatientMetrics(ctx context.Context, tenant, user, patient string) ([]models.ReportEntry, error)
}

// Professionals resolves the users sessions are recorded against.
type Professionals interface {
	Find(ctx context.Context, tenant, name string) (*tenantmodels.ProfessionalUser, error)
}

func wrapStoreErr(err error, what, action string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, what+" not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.New(dErrors.CodeConflict, what+" is already finished")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, action)
}
