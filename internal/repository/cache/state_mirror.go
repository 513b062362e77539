package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"narrative-engine-be/pkg/store"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "narrative:session:"
	DefaultTTL = 24 * time.Hour
)

// StateMirror keeps the committed session state in redis so another process
// (or this one after a restart) can pick the session up. A nil client turns
// every call into a no-op.
type StateMirror struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStateMirror(rdb *redis.Client, ttl time.Duration) *StateMirror {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &StateMirror{rdb: rdb, ttl: ttl}
}

func key(sessionID uuid.UUID) string {
	return keyPrefix + sessionID.String()
}

func (m *StateMirror) Enabled() bool {
	return m != nil && m.rdb != nil
}

func (m *StateMirror) Save(ctx context.Context, sessionID uuid.UUID, raw []byte) error {
	if !m.Enabled() {
		return nil
	}
	if err := m.rdb.Set(ctx, key(sessionID), raw, m.ttl).Err(); err != nil {
		return fmt.Errorf("mirror session state: %w", err)
	}
	return nil
}

// Load returns (nil, nil) when nothing is mirrored for the session
func (m *StateMirror) Load(ctx context.Context, sessionID uuid.UUID) (*store.SessionState, error) {
	if !m.Enabled() {
		return nil, nil
	}
	raw, err := m.rdb.Get(ctx, key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("load mirrored state: %w", err)
	}
	return store.Decode(raw)
}

func (m *StateMirror) Delete(ctx context.Context, sessionID uuid.UUID) error {
	if !m.Enabled() {
		return nil
	}
	return m.rdb.Del(ctx, key(sessionID)).Err()
}
