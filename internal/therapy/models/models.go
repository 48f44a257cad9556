// Package models holds therapy records: sessions a professional runs with a
// patient, the exercises inside them and the metrics each exercise produces.
package models

import (
	"encoding/json"
	"strings"
	"time"

	dErrors "clinictrack/pkg/domain-errors"
)

const (
	MaxPatientLength    = 128
	MaxSceneLength      = 128
	MaxMetricNameLength = 128
	MaxStateLength      = 2000
	MaxMetricDataBytes  = 64 << 10
)

type Session struct {
	ID           int64
	Tenant       string
	User         string
	Patient      string
	StartedAt    time.Time
	FinishedAt   *time.Time
	InitialState string
	FinalState   string
}

func NewSession(tenant, user, patient, initialState string, now time.Time) (*Session, error) {
	patient = strings.TrimSpace(patient)
	switch {
	case tenant == "" || user == "":
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "session requires a tenant and a user")
	case patient == "":
		return nil, dErrors.New(dErrors.CodeValidation, "patient is required")
	case len(patient) > MaxPatientLength:
		return nil, dErrors.New(dErrors.CodeValidation, "patient must be 128 characters or less")
	case len(initialState) > MaxStateLength:
		return nil, dErrors.New(dErrors.CodeValidation, "initial state is too long")
	}
	return &Session{
		Tenant:       tenant,
		User:         user,
		Patient:      patient,
		StartedAt:    now,
		InitialState: initialState,
	}, nil
}

func (s *Session) Finished() bool {
	return s.FinishedAt != nil
}

// Finish closes the session. A session can only be finished once.
func (s *Session) Finish(finalState string, now time.Time) error {
	if s.Finished() {
		return dErrors.New(dErrors.CodeConflict, "session is already finished")
	}
	if len(finalState) > MaxStateLength {
		return dErrors.New(dErrors.CodeValidation, "final state is too long")
	}
	s.FinishedAt = &now
	s.FinalState = finalState
	return nil
}

type Exercise struct {
	ID         int64
	SessionID  int64
	Scene      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

func NewExercise(session *Session, scene string, now time.Time) (*Exercise, error) {
	scene = strings.TrimSpace(scene)
	switch {
	case session.Finished():
		return nil, dErrors.New(dErrors.CodeConflict, "session is already finished")
	case scene == "":
		return nil, dErrors.New(dErrors.CodeValidation, "scene is required")
	case len(scene) > MaxSceneLength:
		return nil, dErrors.New(dErrors.CodeValidation, "scene must be 128 characters or less")
	}
	return &Exercise{SessionID: session.ID, Scene: scene, StartedAt: now}, nil
}

func (e *Exercise) Finish(now time.Time) error {
	if e.FinishedAt != nil {
		return dErrors.New(dErrors.CodeConflict, "exercise is already finished")
	}
	e.FinishedAt = &now
	return nil
}

// Metric is an opaque JSON measurement produced by an exercise.
type Metric struct {
	ID         int64
	ExerciseID int64
	Name       string
	Data       json.RawMessage
	RecordedAt time.Time
}

func NewMetric(exerciseID int64, name string, data json.RawMessage, now time.Time) (*Metric, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return nil, dErrors.New(dErrors.CodeValidation, "metric name is required")
	case len(name) > MaxMetricNameLength:
		return nil, dErrors.New(dErrors.CodeValidation, "metric name must be 128 characters or less")
	case len(data) == 0:
		return nil, dErrors.New(dErrors.CodeValidation, "metric data is required")
	case len(data) > MaxMetricDataBytes:
		return nil, dErrors.New(dErrors.CodeValidation, "metric data is too large")
	case !json.Valid(data):
		return nil, dErrors.New(dErrors.CodeValidation, "metric data must be valid JSON")
	}
	return &Metric{ExerciseID: exerciseID, Name: name, Data: data, RecordedAt: now}, nil
}

// ReportEntry is one metric together with the exercise and session it came from.
type ReportEntry struct {
	Metric   Metric
	Exercise Exercise
	Session  Session
}

// PatientReport collects every metric recorded for a patient by one professional.
type PatientReport struct {
	Tenant  string
	User    string
	Patient string
	Entries []ReportEntry
}
