package screen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned when another request holds the session's screen lock.
var ErrLocked = errors.New("screen: state locked")

const (
	stateKeyPrefix = "companies:screen:"
	lockKeySuffix  = ":lock"
)

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Store persists screen state per browser session in Redis.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore builds a Store. Saved states expire after ttl.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Load returns the saved state for sessionID and whether one existed.
func (s *Store) Load(ctx context.Context, sessionID string) (State, bool, error) {
	raw, err := s.client.Get(ctx, stateKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("screen: load state: %w", err)
	}
	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return State{}, false, fmt.Errorf("screen: decode state: %w", err)
	}
	return state, true, nil
}

// Save stores state for sessionID, refreshing its TTL.
func (s *Store) Save(ctx context.Context, sessionID string, state State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("screen: encode state: %w", err)
	}
	if err := s.client.Set(ctx, stateKey(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("screen: save state: %w", err)
	}
	return nil
}

// Delete drops the saved state for sessionID.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, stateKey(sessionID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("screen: delete state: %w", err)
	}
	return nil
}

// Lock takes the per-session lock for up to ttl. The returned func releases it
// only if it is still owned by this caller.
func (s *Store) Lock(ctx context.Context, sessionID string, ttl time.Duration) (func(context.Context) error, error) {
	key := stateKey(sessionID) + lockKeySuffix
	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("screen: lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return func(ctx context.Context) error {
		if err := unlockScript.Run(ctx, s.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("screen: unlock: %w", err)
		}
		return nil
	}, nil
}

func stateKey(sessionID string) string {
	return stateKeyPrefix + sessionID
}
