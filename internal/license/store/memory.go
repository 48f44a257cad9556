// Package store persists licenses in SQL or, for tests and demos, in memory.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"clinictrack/internal/license/models"
	"clinictrack/internal/sentinel"
)

// InMemory stores licenses in memory. Values are copied on the way in and
// out so callers never share state with the store.
type InMemory struct {
	mu        sync.RWMutex
	licenses  map[int64]*models.License
	digestIdx map[string]int64
	nextID    int64
}

// NewInMemory creates an in-memory license store.
func NewInMemory() *InMemory {
	return &InMemory{
		licenses:  make(map[int64]*models.License),
		digestIdx: make(map[string]int64),
	}
}

func (s *InMemory) Create(_ context.Context, l *models.License) error {
	if l == nil {
		return fmt.Errorf("license is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.KeyDigest != nil {
		if _, exists := s.digestIdx[*l.KeyDigest]; exists {
			return fmt.Errorf("license key digest must be unique: %w", sentinel.ErrAlreadyUsed)
		}
	}
	s.nextID++
	l.ID = s.nextID
	s.licenses[l.ID] = clone(l)
	if l.KeyDigest != nil {
		s.digestIdx[*l.KeyDigest] = l.ID
	}
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id int64) (*models.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if l, ok := s.licenses[id]; ok {
		return clone(l), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) FindByDigest(_ context.Context, digest string) (*models.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.digestIdx[digest]; ok {
		return clone(s.licenses[id]), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) ActivateForTenant(_ context.Context, id int64, tenant string, activatedAt, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.licenses[id]
	if !ok || l.State != models.StatePending {
		return fmt.Errorf("license %d is not pending: %w", id, sentinel.ErrInvalidState)
	}
	l.State = models.StateActive
	l.ActivatedAt = &activatedAt
	l.ExpiresAt = &expiresAt
	l.TenantName = &tenant
	return nil
}

func (s *InMemory) Revoke(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.licenses[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if l.State != models.StatePending {
		return fmt.Errorf("license %d is not pending: %w", id, sentinel.ErrInvalidState)
	}
	l.State = models.StateRevoked
	return nil
}

func (s *InMemory) MarkExpired(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.licenses[id]
	if !ok || l.State.IsTerminal() {
		return false, nil
	}
	l.State = models.StateExpired
	return true, nil
}

func clone(l *models.License) *models.License {
	c := *l
	if l.KeyDigest != nil {
		v := *l.KeyDigest
		c.KeyDigest = &v
	}
	if l.MaxUsers != nil {
		v := *l.MaxUsers
		c.MaxUsers = &v
	}
	if l.ActivatedAt != nil {
		v := *l.ActivatedAt
		c.ActivatedAt = &v
	}
	if l.ExpiresAt != nil {
		v := *l.ExpiresAt
		c.ExpiresAt = &v
	}
	if l.TenantName != nil {
		v := *l.TenantName
		c.TenantName = &v
	}
	return &c
}
