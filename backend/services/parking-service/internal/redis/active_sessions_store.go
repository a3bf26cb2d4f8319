package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ActiveSession is the cached pointer from a slot to its open session.
type ActiveSession struct {
	SessionID string    `json:"session_id"`
	SlotID    string    `json:"slot_id"`
	Holder    string    `json:"holder"`
	EntryTime time.Time `json:"entry_time"`
}

// Store manages the open-session cache keyed by slot.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore returns redis-backed store.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func (s *Store) key(slotID string) string {
	return fmt.Sprintf("parking:active:%s", slotID)
}

// Save caches the open session of a slot.
func (s *Store) Save(ctx context.Context, session ActiveSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(session.SlotID), data, s.ttl).Err()
}

// Get returns the cached open session of a slot; ok is false on a cache miss.
func (s *Store) Get(ctx context.Context, slotID string) (session ActiveSession, ok bool, err error) {
	result, err := s.client.Get(ctx, s.key(slotID)).Result()
	if errors.Is(err, redis.Nil) {
		return ActiveSession{}, false, nil
	}
	if err != nil {
		return ActiveSession{}, false, err
	}
	if err := json.Unmarshal([]byte(result), &session); err != nil {
		return ActiveSession{}, false, err
	}
	return session, true, nil
}

// Delete removes the cached entry of a slot.
func (s *Store) Delete(ctx context.Context, slotID string) error {
	return s.client.Del(ctx, s.key(slotID)).Err()
}
