package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"handover/internal/queries/models"
	id "handover/pkg/domain"
	"handover/pkg/platform/sentinel"
)

// InMemory is a process-local query inbox. It has no registration table to
// join, so listed queries carry no RegistrationSummary.
type InMemory struct {
	mu      sync.RWMutex
	queries map[id.QueryID]models.Query
}

func NewInMemory() *InMemory {
	return &InMemory{queries: make(map[id.QueryID]models.Query)}
}

func (s *InMemory) Create(_ context.Context, q *models.Query) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.queries[q.ID]; ok {
		return fmt.Errorf("query %s: %w", q.ID, sentinel.ErrConflict)
	}
	s.queries[q.ID] = detach(*q)
	return nil
}

func (s *InMemory) Update(_ context.Context, q *models.Query) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.queries[q.ID]
	if !ok || existing.BuilderID != q.BuilderID {
		return fmt.Errorf("query %s: %w", q.ID, sentinel.ErrNotFound)
	}
	s.queries[q.ID] = detach(*q)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, builderID id.BuilderID, queryID id.QueryID) (*models.Query, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.queries[queryID]
	if !ok || q.BuilderID != builderID {
		return nil, fmt.Errorf("query %s: %w", queryID, sentinel.ErrNotFound)
	}
	return &q, nil
}

func (s *InMemory) List(_ context.Context, builderID id.BuilderID, filter models.ListFilter) ([]*models.Query, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.Query{}
	for _, q := range s.queries {
		if q.BuilderID != builderID {
			continue
		}
		if filter.Status != "" && q.Status != filter.Status {
			continue
		}
		if !filter.RegistrationID.IsNil() && q.RegistrationID != filter.RegistrationID {
			continue
		}
		out = append(out, &q)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// detach drops pointers the caller still holds.
func detach(q models.Query) models.Query {
	if q.RespondedAt != nil {
		t := *q.RespondedAt
		q.RespondedAt = &t
	}
	q.Registration = nil
	return q
}
