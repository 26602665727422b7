package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"handover/internal/wizard"
	id "handover/pkg/domain"
	"handover/pkg/platform/sentinel"
)

const sessionKeyPrefix = "handover:wizard:"

// Redis stores session snapshots as JSON with a sliding TTL so any instance
// can pick up a session after a restart or failover.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (s *Redis) Save(ctx context.Context, snap wizard.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal wizard session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(snap.WizardID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save wizard session: %w: %v", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *Redis) Load(ctx context.Context, wizardID id.WizardID) (*wizard.Snapshot, error) {
	data, err := s.client.Get(ctx, sessionKey(wizardID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("wizard session %s: %w", wizardID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load wizard session: %w: %v", sentinel.ErrUnavailable, err)
	}
	var snap wizard.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode wizard session: %w", err)
	}
	return &snap, nil
}

func (s *Redis) Delete(ctx context.Context, wizardID id.WizardID) error {
	if err := s.client.Del(ctx, sessionKey(wizardID)).Err(); err != nil {
		return fmt.Errorf("delete wizard session: %w: %v", sentinel.ErrUnavailable, err)
	}
	return nil
}

func sessionKey(wizardID id.WizardID) string {
	return sessionKeyPrefix + wizardID.String()
}
