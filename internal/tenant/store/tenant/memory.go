package tenant

import (
	"context"
	"fmt"
	"sync"

	"clinictrack/internal/sentinel"
	"clinictrack/internal/tenant/models"
)

// InMemory stores tenants in memory for tests and the demo environment.
type InMemory struct {
	mu      sync.RWMutex
	tenants map[string]*models.Tenant
}

func NewInMemory() *InMemory {
	return &InMemory{tenants: make(map[string]*models.Tenant)}
}

func (s *InMemory) Create(_ context.Context, t *models.Tenant) error {
	if t == nil {
		return fmt.Errorf("tenant is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tenants[t.Name]; exists {
		return fmt.Errorf("tenant name must be unique: %w", sentinel.ErrAlreadyUsed)
	}
	s.tenants[t.Name] = clone(t)
	return nil
}

func (s *InMemory) FindByName(_ context.Context, name string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tenants[name]; ok {
		return clone(t), nil
	}
	return nil, sentinel.ErrNotFound
}

// FindForUpdate is FindByName; callers serialise through the in-memory tx.
func (s *InMemory) FindForUpdate(ctx context.Context, name string) (*models.Tenant, error) {
	return s.FindByName(ctx, name)
}

func (s *InMemory) AttachLicense(_ context.Context, name string, licenseID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[name]
	if !ok {
		return sentinel.ErrNotFound
	}
	t.LicenseID = &licenseID
	return nil
}

// Count returns the number of stored tenants.
func (s *InMemory) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tenants)
}

func clone(t *models.Tenant) *models.Tenant {
	c := *t
	if t.LegacyUserLimit != nil {
		v := *t.LegacyUserLimit
		c.LegacyUserLimit = &v
	}
	if t.LicenseID != nil {
		v := *t.LicenseID
		c.LicenseID = &v
	}
	return &c
}
