// Package store persists therapy sessions, exercises and metrics.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"clinictrack/internal/platform/database"
	"clinictrack/internal/sentinel"
	"clinictrack/internal/therapy/models"
)

type SQLStore struct {
	db database.Gateway
}

func NewSQL(db database.Gateway) *SQLStore {
	return &SQLStore{db: db}
}

type sessionRow struct {
	ID           int64        `db:"id"`
	Tenant       string       `db:"tenant_name"`
	User         string       `db:"user_name"`
	Patient      string       `db:"patient"`
	StartedAt    time.Time    `db:"started_at"`
	FinishedAt   sql.NullTime `db:"finished_at"`
	InitialState string       `db:"initial_state"`
	FinalState   string       `db:"final_state"`
}

func (r sessionRow) toModel() *models.Session {
	return &models.Session{
		ID:           r.ID,
		Tenant:       r.Tenant,
		User:         r.User,
		Patient:      r.Patient,
		StartedAt:    r.StartedAt.UTC(),
		FinishedAt:   nullTime(r.FinishedAt),
		InitialState: r.InitialState,
		FinalState:   r.FinalState,
	}
}

type exerciseRow struct {
	ID         int64        `db:"id"`
	SessionID  int64        `db:"session_id"`
	Scene      string       `db:"scene"`
	StartedAt  time.Time    `db:"started_at"`
	FinishedAt sql.NullTime `db:"finished_at"`
}

func (r exerciseRow) toModel() *models.Exercise {
	return &models.Exercise{
		ID:         r.ID,
		SessionID:  r.SessionID,
		Scene:      r.Scene,
		StartedAt:  r.StartedAt.UTC(),
		FinishedAt: nullTime(r.FinishedAt),
	}
}

// CreateSession inserts s and assigns its ID. An unknown professional
// returns sentinel.ErrNotFound.
func (s *SQLStore) CreateSession(ctx context.Context, session *models.Session) error {
	var id int64
	err := s.db.Get(ctx, &id, `
		INSERT INTO sessions (tenant_name, user_name, patient, started_at, initial_state)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`, session.Tenant, session.User, session.Patient, session.StartedAt.UTC(), session.InitialState)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return fmt.Errorf("professional %s/%s: %w", session.Tenant, session.User, sentinel.ErrNotFound)
		}
		return fmt.Errorf("create session: %w", err)
	}
	session.ID = id
	return nil
}

// FindSession only returns sessions that belong to tenant.
func (s *SQLStore) FindSession(ctx context.Context, tenant string, id int64) (*models.Session, error) {
	var row sessionRow
	err := s.db.Get(ctx, &row, `
		SELECT id, tenant_name, user_name, patient, started_at, finished_at, initial_state, final_state
		FROM sessions WHERE id = ? AND tenant_name = ?
	`, id, tenant)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	return row.toModel(), nil
}

// FinishSession closes an open session. A session that is already closed
// returns sentinel.ErrInvalidState.
func (s *SQLStore) FinishSession(ctx context.Context, id int64, finishedAt time.Time, finalState string) error {
	res, err := s.db.Run(ctx,
		`UPDATE sessions SET finished_at = ?, final_state = ? WHERE id = ? AND finished_at IS NULL`,
		finishedAt.UTC(), finalState, id)
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	if res.Changes == 0 {
		return fmt.Errorf("session %d is closed: %w", id, sentinel.ErrInvalidState)
	}
	return nil
}

func (s *SQLStore) CreateExercise(ctx context.Context, e *models.Exercise) error {
	var id int64
	err := s.db.Get(ctx, &id, `
		INSERT INTO exercises (session_id, scene, started_at)
		VALUES (?, ?, ?)
		RETURNING id
	`, e.SessionID, e.Scene, e.StartedAt.UTC())
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return fmt.Errorf("session %d: %w", e.SessionID, sentinel.ErrNotFound)
		}
		return fmt.Errorf("create exercise: %w", err)
	}
	e.ID = id
	return nil
}

// FindExercise only returns exercises whose session belongs to tenant.
func (s *SQLStore) FindExercise(ctx context.Context, tenant string, id int64) (*models.Exercise, error) {
	var row exerciseRow
	err := s.db.Get(ctx, &row, `
		SELECT e.id, e.session_id, e.scene, e.started_at, e.finished_at
		FROM exercises e
		JOIN sessions s ON s.id = e.session_id
		WHERE e.id = ? AND s.tenant_name = ?
	`, id, tenant)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find exercise: %w", err)
	}
	return row.toModel(), nil
}

func (s *SQLStore) FinishExercise(ctx context.Context, id int64, finishedAt time.Time) error {
	res, err := s.db.Run(ctx,
		`UPDATE exercises SET finished_at = ? WHERE id = ? AND finished_at IS NULL`,
		finishedAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("finish exercise: %w", err)
	}
	if res.Changes == 0 {
		return fmt.Errorf("exercise %d is closed: %w", id, sentinel.ErrInvalidState)
	}
	return nil
}

func (s *SQLStore) CreateMetric(ctx context.Context, m *models.Metric) error {
	var id int64
	err := s.db.Get(ctx, &id, `
		INSERT INTO metrics (exercise_id, name, data, recorded_at)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`, m.ExerciseID, m.Name, string(m.Data), m.RecordedAt.UTC())
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return fmt.Errorf("exercise %d: %w", m.ExerciseID, sentinel.ErrNotFound)
		}
		return fmt.Errorf("create metric: %w", err)
	}
	m.ID = id
	return nil
}

func (s *SQLStore) CountSessions(ctx context.Context, tenant, user, patient string) (int, error) {
	var n int
	err := s.db.Get(ctx, &n,
		`SELECT COUNT(*) FROM sessions WHERE tenant_name = ? AND user_name = ? AND patient = ?`,
		tenant, user, patient)
	if err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

type reportRow struct {
	MetricID           int64        `db:"metric_id"`
	MetricName         string       `db:"metric_name"`
	Data               string       `db:"data"`
	RecordedAt         time.Time    `db:"recorded_at"`
	ExerciseID         int64        `db:"exercise_id"`
	Scene              string       `db:"scene"`
	ExerciseStartedAt  time.Time    `db:"exercise_started_at"`
	ExerciseFinishedAt sql.NullTime `db:"exercise_finished_at"`
	SessionID          int64        `db:"session_id"`
	SessionStartedAt   time.Time    `db:"session_started_at"`
	SessionFinishedAt  sql.NullTime `db:"session_finished_at"`
	InitialState       string       `db:"initial_state"`
	FinalState         string       `db:"final_state"`
}

// PatientMetrics returns every metric recorded for patient by user, oldest
// session first.
func (s *SQLStore) PatientMetrics(ctx context.Context, tenant, user, patient string) ([]models.ReportEntry, error) {
	var rows []reportRow
	err := s.db.All(ctx, &rows, `
		SELECT m.id AS metric_id, m.name AS metric_name, m.data, m.recorded_at,
		       e.id AS exercise_id, e.scene, e.started_at AS exercise_started_at, e.finished_at AS exercise_finished_at,
		       s.id AS session_id, s.started_at AS session_started_at, s.finished_at AS session_finished_at,
		       s.initial_state, s.final_state
		FROM metrics m
		JOIN exercises e ON e.id = m.exercise_id
		JOIN sessions s ON s.id = e.session_id
		WHERE s.tenant_name = ? AND s.user_name = ? AND s.patient = ?
		ORDER BY s.started_at, s.id, e.started_at, e.id, m.id
	`, tenant, user, patient)
	if err != nil {
		return nil, fmt.Errorf("patient metrics: %w", err)
	}
	entries := make([]models.ReportEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, models.ReportEntry{
			Metric: models.Metric{
				ID:         r.MetricID,
				ExerciseID: r.ExerciseID,
				Name:       r.MetricName,
				Data:       json.RawMessage(r.Data),
				RecordedAt: r.RecordedAt.UTC(),
			},
			Exercise: models.Exercise{
				ID:         r.ExerciseID,
				SessionID:  r.SessionID,
				Scene:      r.Scene,
				StartedAt:  r.ExerciseStartedAt.UTC(),
				FinishedAt: nullTime(r.ExerciseFinishedAt),
			},
			Session: models.Session{
				ID:           r.SessionID,
				Tenant:       tenant,
				User:         user,
				Patient:      patient,
				StartedAt:    r.SessionStartedAt.UTC(),
				FinishedAt:   nullTime(r.SessionFinishedAt),
				InitialState: r.InitialState,
				FinalState:   r.FinalState,
			},
		})
	}
	return entries, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
