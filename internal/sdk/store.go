package sdk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

// State is the SDK-owned data that survives restarts.
type State struct {
	Enabled        bool              `json:"enabled"`
	Offline        bool              `json:"offline"`
	GlobalCallback map[string]string `json:"global_callback,omitempty"`
	GlobalPartner  map[string]string `json:"global_partner,omitempty"`
	DedupIDs       []string          `json:"dedup_ids,omitempty"`
}

// DefaultState is used when nothing was persisted yet.
func DefaultState() State {
	return State{
		Enabled:        true,
		GlobalCallback: map[string]string{},
		GlobalPartner:  map[string]string{},
	}
}

// ErrNoState is returned by Load when nothing has been saved.
var ErrNoState = errors.New("no persisted state")

// StateStore persists State between processes.
type StateStore interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, s State) error
}

// MemoryStore keeps state for the lifetime of the process.
type MemoryStore struct {
	mu    sync.Mutex
	state *State
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Load(ctx context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return State{}, ErrNoState
	}
	return cloneState(*m.state), nil
}

func (m *MemoryStore) Save(ctx context.Context, s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := cloneState(s)
	m.state = &c
	return nil
}

// RedisStore keeps state as one JSON document under a key.
type RedisStore struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

// DefaultStateKey is used when NewRedisStore gets an empty key.
const DefaultStateKey = "attributionrc:sdk:state"

func NewRedisStore(rdb *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultStateKey
	}
	return &RedisStore{rdb: rdb, key: key}
}

// WithTTL expires the persisted state after d of inactivity. Zero keeps it forever.
func (r *RedisStore) WithTTL(d time.Duration) *RedisStore {
	r.ttl = d
	return r
}

func (r *RedisStore) Load(ctx context.Context) (State, error) {
	raw, err := r.rdb.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, ErrNoState
	}
	if err != nil {
		return State{}, fmt.Errorf("redis get %s: %w", r.key, err)
	}
	var s State
	if err := sonic.Unmarshal(raw, &s); err != nil {
		return State{}, fmt.Errorf("decode state: %w", err)
	}
	return s, nil
}

func (r *RedisStore) Save(ctx context.Context, s State) error {
	raw, err := sonic.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := r.rdb.Set(ctx, r.key, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	return nil
}

func cloneState(s State) State {
	out := s
	out.GlobalCallback = cloneMap(s.GlobalCallback)
	out.GlobalPartner = cloneMap(s.GlobalPartner)
	out.DedupIDs = append([]string(nil), s.DedupIDs...)
	return out
}

func cloneMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
