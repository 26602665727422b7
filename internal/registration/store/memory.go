package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"handover/internal/registration/models"
	id "handover/pkg/domain"
	"handover/pkg/platform/sentinel"
)

// InMemory is a process-local registration store for development and tests.
type InMemory struct {
	mu   sync.RWMutex
	rows map[id.RegistrationID]*models.Registration
}

func NewInMemory() *InMemory {
	return &InMemory{rows: make(map[id.RegistrationID]*models.Registration)}
}

func (s *InMemory) Create(_ context.Context, r *models.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rows[r.ID]; exists {
		return fmt.Errorf("registration %s: %w", r.ID, sentinel.ErrConflict)
	}
	s.rows[r.ID] = r.Clone()
	return nil
}

func (s *InMemory) Update(_ context.Context, builderID id.BuilderID, regID id.RegistrationID, p models.Payload, now time.Time) (*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[regID]
	if !ok || row.BuilderID != builderID {
		return nil, fmt.Errorf("registration %s: %w", regID, sentinel.ErrNotFound)
	}
	p.Apply(row)
	row.UpdatedAt = now
	return row.Clone(), nil
}

func (s *InMemory) FindByID(_ context.Context, builderID id.BuilderID, regID id.RegistrationID) (*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[regID]
	if !ok || row.BuilderID != builderID {
		return nil, fmt.Errorf("registration %s: %w", regID, sentinel.ErrNotFound)
	}
	return row.Clone(), nil
}

func (s *InMemory) List(_ context.Context, builderID id.BuilderID, filter models.ListFilter) ([]*models.Registration, error) {
	filter = filter.Normalize()
	s.mu.RLock()
	var matched []*models.Registration
	for _, row := range s.rows {
		if row.BuilderID != builderID {
			continue
		}
		if !filter.Matches(row) {
			continue
		}
		matched = append(matched, row.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.String() < matched[j].ID.String()
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if filter.Offset >= len(matched) {
		return []*models.Registration{}, nil
	}
	end := min(filter.Offset+filter.Limit, len(matched))
	return matched[filter.Offset:end], nil
}

func (s *InMemory) CountByStatus(_ context.Context, builderID id.BuilderID) (map[models.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[models.Status]int)
	for _, row := range s.rows {
		if row.BuilderID == builderID {
			counts[row.Status]++
		}
	}
	return counts, nil
}

func (s *InMemory) Delete(_ context.Context, builderID id.BuilderID, regID id.RegistrationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[regID]
	if !ok || row.BuilderID != builderID {
		return fmt.Errorf("registration %s: %w", regID, sentinel.ErrNotFound)
	}
	delete(s.rows, regID)
	return nil
}
