package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/matthewbaird/formflow/internal/types"
)

// RedisStore persists each session as one JSON blob with a TTL that is
// refreshed on every write. Merges are read-modify-write: the engine
// assumes at most one in-flight mutation per session, so no transaction
// is taken across the read and the write.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisStore wraps an existing client. ttl bounds how long an idle
// session survives.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, prefix: "formflow:session:"}
}

func (s *RedisStore) key(sessionKey string) string {
	return s.prefix + sessionKey
}

func (s *RedisStore) Get(ctx context.Context, sessionKey string) (types.State, error) {
	raw, err := s.client.Get(ctx, s.key(sessionKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.NewState(), nil
	}
	if err != nil {
		return types.State{}, fmt.Errorf("statestore: redis get: %w", err)
	}
	var state types.State
	if err := json.Unmarshal(raw, &state); err != nil {
		return types.State{}, fmt.Errorf("statestore: corrupt session %q: %w", sessionKey, err)
	}
	if state.Fields == nil {
		state.Fields = map[string]any{}
	}
	return state, nil
}

func (s *RedisStore) Merge(ctx context.Context, sessionKey string, patch types.State, opts Options) (types.State, error) {
	current, err := s.Get(ctx, sessionKey)
	if err != nil {
		return types.State{}, err
	}
	merged := merge(current, patch, opts)
	raw, err := json.Marshal(merged)
	if err != nil {
		return types.State{}, fmt.Errorf("statestore: marshal session %q: %w", sessionKey, err)
	}
	if err := s.client.Set(ctx, s.key(sessionKey), raw, s.ttl).Err(); err != nil {
		return types.State{}, fmt.Errorf("statestore: redis set: %w", err)
	}
	return merged, nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionKey string) error {
	if err := s.client.Del(ctx, s.key(sessionKey)).Err(); err != nil {
		return fmt.Errorf("statestore: redis del: %w", err)
	}
	return nil
}
