package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"clinictrack/internal/sentinel"
	"clinictrack/internal/therapy/models"
)

// InMemory keeps therapy records in maps. It does not check that the
// professional exists; the service does that before creating a session.
type InMemory struct {
	mu        sync.RWMutex
	nextID    int64
	sessions  map[int64]models.Session
	exercises map[int64]models.Exercise
	metrics   []models.Metric
}

func NewInMemory() *InMemory {
	return &InMemory{
		sessions:  make(map[int64]models.Session),
		exercises: make(map[int64]models.Exercise),
	}
}

func (s *InMemory) CreateSession(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	session.ID = s.nextID
	s.sessions[session.ID] = *session
	return nil
}

func (s *InMemory) FindSession(_ context.Context, tenant string, id int64) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok || session.Tenant != tenant {
		return nil, sentinel.ErrNotFound
	}
	return &session, nil
}

func (s *InMemory) FinishSession(_ context.Context, id int64, finishedAt time.Time, finalState string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok || session.FinishedAt != nil {
		return sentinel.ErrInvalidState
	}
	session.FinishedAt = &finishedAt
	session.FinalState = finalState
	s.sessions[id] = session
	return nil
}

func (s *InMemory) CreateExercise(_ context.Context, e *models.Exercise) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[e.SessionID]; !ok {
		return sentinel.ErrNotFound
	}
	s.nextID++
	e.ID = s.nextID
	s.exercises[e.ID] = *e
	return nil
}

func (s *InMemory) FindExercise(_ context.Context, tenant string, id int64) (*models.Exercise, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.exercises[id]
	if !ok || s.sessions[e.SessionID].Tenant != tenant {
		return nil, sentinel.ErrNotFound
	}
	return &e, nil
}

func (s *InMemory) FinishExercise(_ context.Context, id int64, finishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.exercises[id]
	if !ok || e.FinishedAt != nil {
		return sentinel.ErrInvalidState
	}
	e.FinishedAt = &finishedAt
	s.exercises[id] = e
	return nil
}

func (s *InMemory) CreateMetric(_ context.Context, m *models.Metric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.exercises[m.ExerciseID]; !ok {
		return sentinel.ErrNotFound
	}
	s.nextID++
	m.ID = s.nextID
	s.metrics = append(s.metrics, *m)
	return nil
}

func (s *InMemory) CountSessions(_ context.Context, tenant, user, patient string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, session := range s.sessions {
		if session.Tenant == tenant && session.User == user && session.Patient == patient {
			n++
		}
	}
	return n, nil
}

func (s *InMemory) PatientMetrics(_ context.Context, tenant, user, patient string) ([]models.ReportEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var entries []models.ReportEntry
	for _, m := range s.metrics {
		e := s.exercises[m.ExerciseID]
		session := s.sessions[e.SessionID]
		if session.Tenant != tenant || session.User != user || session.Patient != patient {
			continue
		}
		entries = append(entries, models.ReportEntry{Metric: m, Exercise: e, Session: session})
	}
	// IDs come from one counter, so they follow insertion order.
	slices.SortStableFunc(entries, func(a, b models.ReportEntry) int {
		if c := a.Session.StartedAt.Compare(b.Session.StartedAt); c != 0 {
			return c
		}
		if a.Session.ID != b.Session.ID {
			return int(a.Session.ID - b.Session.ID)
		}
		if c := a.Exercise.StartedAt.Compare(b.Exercise.StartedAt); c != 0 {
			return c
		}
		if a.Exercise.ID != b.Exercise.ID {
			return int(a.Exercise.ID - b.Exercise.ID)
		}
		return int(a.Metric.ID - b.Metric.ID)
	})
	return entries, nil
}
