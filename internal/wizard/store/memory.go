package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"handover/internal/wizard"
	id "handover/pkg/domain"
	"handover/pkg/platform/sentinel"
)

// InMemory keeps session snapshots in process. Expired entries read as absent
// and are dropped on the next write.
type InMemory struct {
	mu      sync.RWMutex
	entries map[id.WizardID]entry
	ttl     time.Duration
	now     func() time.Time
}

type entry struct {
	snap      wizard.Snapshot
	expiresAt time.Time
}

func NewInMemory(ttl time.Duration) *InMemory {
	return &InMemory{entries: make(map[id.WizardID]entry), ttl: ttl, now: time.Now}
}

func (s *InMemory) Save(_ context.Context, snap wizard.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, e := range s.entries {
		if !e.expiresAt.After(now) {
			delete(s.entries, k)
		}
	}
	s.entries[snap.WizardID] = entry{snap: snap, expiresAt: now.Add(s.ttl)}
	return nil
}

func (s *InMemory) Load(_ context.Context, wizardID id.WizardID) (*wizard.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[wizardID]
	if !ok {
		return nil, fmt.Errorf("wizard session %s: %w", wizardID, sentinel.ErrNotFound)
	}
	if !e.expiresAt.After(s.now()) {
		return nil, fmt.Errorf("wizard session %s: %w", wizardID, sentinel.ErrExpired)
	}
	snap := e.snap
	snap.State = snap.State.Clone()
	return &snap, nil
}

func (s *InMemory) Delete(_ context.Context, wizardID id.WizardID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, wizardID)
	return nil
}
