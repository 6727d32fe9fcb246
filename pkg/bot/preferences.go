package bot

import (
	"context"
	"sync"
	"time"

	"fyuchan/pkg/cache"
)

// Preferences is what the bot remembers per Discord user: the id of their
// current conversation session, their custom prompt and the reflection toggle.
type Preferences struct {
	SessionID    string `json:"session_id"`
	CustomPrompt string `json:"custom_prompt,omitempty"`
	Reflect      bool   `json:"reflect"`
}

type PreferenceStore interface {
	Load(ctx context.Context, userID string) (Preferences, bool, error)
	Save(ctx context.Context, userID string, p Preferences) error
}

// MemoryPreferenceStore keeps preferences for the lifetime of the process.
type MemoryPreferenceStore struct {
	mu    sync.RWMutex
	prefs map[string]Preferences
}

func NewMemoryPreferenceStore() *MemoryPreferenceStore {
	return &MemoryPreferenceStore{prefs: make(map[string]Preferences)}
}

func (s *MemoryPreferenceStore) Load(ctx context.Context, userID string) (Preferences, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prefs[userID]
	return p, ok, nil
}

func (s *MemoryPreferenceStore) Save(ctx context.Context, userID string, p Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[userID] = p
	return nil
}

type jsonCache interface {
	Key(parts ...string) string
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// CachedPreferenceStore keeps preferences in Redis with a TTL that restarts on
// every read, so a record expires after ttl without activity. Only
// preferences are stored there, never conversation history.
type CachedPreferenceStore struct {
	cache jsonCache
	ttl   time.Duration
}

func NewCachedPreferenceStore(c jsonCache, ttl time.Duration) *CachedPreferenceStore {
	return &CachedPreferenceStore{cache: c, ttl: ttl}
}

func (s *CachedPreferenceStore) Load(ctx context.Context, userID string) (Preferences, bool, error) {
	var p Preferences
	key := s.cache.Key("prefs", userID)
	err := s.cache.GetJSON(ctx, key, &p)
	if cache.IsMiss(err) {
		return Preferences{}, false, nil
	}
	if err != nil {
		return Preferences{}, false, err
	}
	// Zero ttl means the record never expires; Expire would delete it.
	// A failed refresh leaves the previous expiry in place.
	if s.ttl > 0 {
		_ = s.cache.Expire(ctx, key, s.ttl)
	}
	return p, true, nil
}

func (s *CachedPreferenceStore) Save(ctx context.Context, userID string, p Preferences) error {
	return s.cache.SetJSON(ctx, s.cache.Key("prefs", userID), p, s.ttl)
}
