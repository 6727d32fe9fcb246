// Package session keeps per-session conversation history in process memory.
package session

import "sync"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat turn. It is never mutated after creation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// History is the ordered, append-only message list of one session.
type History struct {
	mu       sync.RWMutex
	messages []Message
}

// Append adds messages in order. Appends from concurrent turns on the same
// session are not serialised with respect to each other.
func (h *History) Append(msgs ...Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, msgs...)
}

// Messages returns a copy of the history in chronological order.
func (h *History) Messages() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}

// Store maps session identifiers to their histories. Histories are created
// lazily and live until the store is dropped.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*History
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*History),
	}
}

// GetOrCreate returns the history for id, creating an empty one on first use.
// Every call for the same id returns the same *History.
func (s *Store) GetOrCreate(id string) *History {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.sessions[id]
	if !ok {
		h = &History{}
		s.sessions[id] = h
	}
	return h
}

// Len reports how many sessions have been seen.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
