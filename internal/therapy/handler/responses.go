package handler

import (
	"encoding/json"
	"time"

	"clinictrack/internal/therapy/models"
)

type SessionResponse struct {
	ID           int64      `json:"id"`
	User         string     `json:"user"`
	Patient      string     `json:"patient"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	InitialState string     `json:"initial_state"`
	FinalState   string     `json:"final_state,omitempty"`
}

func toSessionResponse(s *models.Session) *SessionResponse {
	return &SessionResponse{
		ID:           s.ID,
		User:         s.User,
		Patient:      s.Patient,
		StartedAt:    s.StartedAt,
		FinishedAt:   s.FinishedAt,
		InitialState: s.InitialState,
		FinalState:   s.FinalState,
	}
}

type ExerciseResponse struct {
	ID         int64      `json:"id"`
	SessionID  int64      `json:"session_id"`
	Scene      string     `json:"scene"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

func toExerciseResponse(e *models.Exercise) *ExerciseResponse {
	return &ExerciseResponse{
		ID:         e.ID,
		SessionID:  e.SessionID,
		Scene:      e.Scene,
		StartedAt:  e.StartedAt,
		FinishedAt: e.FinishedAt,
	}
}

type MetricResponse struct {
	ID         int64           `json:"id"`
	ExerciseID int64           `json:"exercise_id"`
	Name       string          `json:"name"`
	Data       json.RawMessage `json:"data"`
	RecordedAt time.Time       `json:"recorded_at"`
}

func toMetricResponse(m *models.Metric) *MetricResponse {
	return &MetricResponse{
		ID:         m.ID,
		ExerciseID: m.ExerciseID,
		Name:       m.Name,
		Data:       m.Data,
		RecordedAt: m.RecordedAt,
	}
}

type ReportEntryResponse struct {
	Metric   MetricResponse   `json:"metric"`
	Exercise ExerciseResponse `json:"exercise"`
	Session  SessionResponse  `json:"session"`
}

type PatientReportResponse struct {
	Tenant  string                `json:"tenant"`
	User    string                `json:"user"`
	Patient string                `json:"patient"`
	Entries []ReportEntryResponse `json:"entries"`
}

func toReportResponse(r *models.PatientReport) *PatientReportResponse {
	entries := make([]ReportEntryResponse, 0, len(r.Entries))
	for i := range r.Entries {
		e := &r.Entries[i]
		entries = append(entries, ReportEntryResponse{
			Metric:   *toMetricResponse(&e.Metric),
			Exercise: *toExerciseResponse(&e.Exercise),
			Session:  *toSessionResponse(&e.Session),
		})
	}
	return &PatientReportResponse{
		Tenant:  r.Tenant,
		User:    r.User,
		Patient: r.Patient,
		Entries: entries,
	}
}
