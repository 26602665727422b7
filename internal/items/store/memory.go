package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"handover/internal/items/models"
	id "handover/pkg/domain"
	"handover/pkg/platform/sentinel"
)

// InMemory is a process-local item catalog.
type InMemory struct {
	mu    sync.RWMutex
	items map[id.ItemID]models.Item
}

func NewInMemory() *InMemory {
	return &InMemory{items: make(map[id.ItemID]models.Item)}
}

func (s *InMemory) Create(_ context.Context, item *models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.ID]; ok {
		return fmt.Errorf("item %s: %w", item.ID, sentinel.ErrConflict)
	}
	s.items[item.ID] = *item
	return nil
}

func (s *InMemory) Update(_ context.Context, item *models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.items[item.ID]
	if !ok || existing.BuilderID != item.BuilderID {
		return fmt.Errorf("item %s: %w", item.ID, sentinel.ErrNotFound)
	}
	s.items[item.ID] = *item
	return nil
}

func (s *InMemory) FindByID(_ context.Context, builderID id.BuilderID, itemID id.ItemID) (*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[itemID]
	if !ok || item.BuilderID != builderID {
		return nil, fmt.Errorf("item %s: %w", itemID, sentinel.ErrNotFound)
	}
	return &item, nil
}

func (s *InMemory) FindByIDs(_ context.Context, builderID id.BuilderID, ids []id.ItemID) ([]*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Item, 0, len(ids))
	for _, itemID := range ids {
		item, ok := s.items[itemID]
		if !ok || item.BuilderID != builderID {
			continue
		}
		out = append(out, &item)
	}
	sortItems(out)
	return out, nil
}

func (s *InMemory) List(_ context.Context, builderID id.BuilderID, filter models.ListFilter) ([]*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.Item{}
	for _, item := range s.items {
		if item.BuilderID != builderID {
			continue
		}
		if filter.ActiveOnly && !item.IsActive() {
			continue
		}
		if filter.Category != "" && item.Category != filter.Category {
			continue
		}
		out = append(out, &item)
	}
	sortItems(out)
	return out, nil
}

func (s *InMemory) Delete(_ context.Context, builderID id.BuilderID, itemID id.ItemID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[itemID]
	if !ok || item.BuilderID != builderID {
		return fmt.Errorf("item %s: %w", itemID, sentinel.ErrNotFound)
	}
	delete(s.items, itemID)
	return nil
}

// sortItems orders by category then name, matching the catalog listing.
func sortItems(items []*models.Item) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Category != items[j].Category {
			return items[i].Category < items[j].Category
		}
		return items[i].Name < items[j].Name
	})
}
