package user

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"clinictrack/internal/sentinel"
	"clinictrack/internal/tenant/models"
)

type key struct {
	tenant string
	name   string
}

// InMemory stores professional users in memory. It does not know about
// tenants; callers check tenant existence first.
type InMemory struct {
	mu    sync.RWMutex
	users map[key]models.ProfessionalUser
}

func NewInMemory() *InMemory {
	return &InMemory{users: make(map[key]models.ProfessionalUser)}
}

func (s *InMemory) Create(_ context.Context, u *models.ProfessionalUser) error {
	if u == nil {
		return fmt.Errorf("user is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{u.Tenant, u.Name}
	if _, exists := s.users[k]; exists {
		return fmt.Errorf("user already exists in tenant: %w", sentinel.ErrAlreadyUsed)
	}
	s.users[k] = *u
	return nil
}

func (s *InMemory) Find(_ context.Context, tenant, name string) (*models.ProfessionalUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[key{tenant, name}]; ok {
		return &u, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) CountByTenant(_ context.Context, tenant string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for k := range s.users {
		if k.tenant == tenant {
			count++
		}
	}
	return count, nil
}

func (s *InMemory) ListByTenant(_ context.Context, tenant string) ([]*models.ProfessionalUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var users []*models.ProfessionalUser
	for k, u := range s.users {
		if k.tenant == tenant {
			users = append(users, &u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

func (s *InMemory) UpdatePassword(_ context.Context, tenant, name, digest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{tenant, name}
	u, ok := s.users[k]
	if !ok {
		return sentinel.ErrNotFound
	}
	u.PasswordDigest = digest
	s.users[k] = u
	return nil
}
