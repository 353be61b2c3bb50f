package oauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrStateNotFound means the state nonce was never issued, already consumed,
// or expired.
var ErrStateNotFound = errors.New("oauth state not found")

// StateStore holds short-lived install-state nonces in Redis. Entries evict
// via TTL, so an abandoned install flow leaves nothing behind.
type StateStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStateStore creates a state store with the given nonce lifetime.
func NewStateStore(client *redis.Client, ttl time.Duration) *StateStore {
	return &StateStore{client: client, ttl: ttl}
}

// Issue creates a single-use state nonce bound to the shop domain.
func (s *StateStore) Issue(ctx context.Context, shopDomain string) (string, error) {
	state := uuid.New().String()
	if err := s.client.Set(ctx, s.key(state), shopDomain, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store oauth state: %w", err)
	}
	return state, nil
}

// Consume validates a state nonce and removes it, returning the shop domain
// it was issued for. A nonce can only be consumed once.
func (s *StateStore) Consume(ctx context.Context, state string) (string, error) {
	shopDomain, err := s.client.GetDel(ctx, s.key(state)).Result()
	if err == redis.Nil {
		return "", ErrStateNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to consume oauth state: %w", err)
	}
	return shopDomain, nil
}

func (s *StateStore) key(state string) string {
	return "oauth:state:" + state
}
