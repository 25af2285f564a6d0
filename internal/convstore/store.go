// Package convstore holds per-session conversation history in process
// memory. There is no persistence across restarts; a session lives until
// it is cleared or the process exits.
package convstore

import (
	"errors"
	"strings"
	"sync"
	"time"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyContent is returned when appending a message with no content.
var ErrEmptyContent = errors.New("convstore: empty message content")

// Message is one entry in a session's history. Immutable once appended;
// insertion order is the only ordering key.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type session struct {
	mu       sync.Mutex
	messages []Message
}

// Store maps session ids to their message history. Operations on
// different sessions do not block one another; operations on the same
// session are linearized by the session's own mutex.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

// New creates an empty store.
func New() *Store {
	return &Store{sessions: make(map[string]*session)}
}

// Append adds a message to the session's history, creating the session
// if it does not exist yet. Content must be non-empty.
func (s *Store) Append(sessionID, role, content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}

	sess := s.getOrCreate(sessionID)

	sess.mu.Lock()
	sess.messages = append(sess.messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
	sess.mu.Unlock()

	return nil
}

// RecentWindow returns up to the last limit messages in insertion order.
// An unseen session yields an empty slice and is not created.
func (s *Store) RecentWindow(sessionID string, limit int) []Message {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok || limit <= 0 {
		return nil
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	start := len(sess.messages) - limit
	if start < 0 {
		start = 0
	}
	window := make([]Message, len(sess.messages)-start)
	copy(window, sess.messages[start:])
	return window
}

// Clear removes the session entirely. Clearing an unknown session is a
// no-op.
func (s *Store) Clear(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

// SessionCount returns the number of currently tracked sessions.
func (s *Store) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Store) getOrCreate(sessionID string) *session {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok = s.sessions[sessionID]; ok {
		return sess
	}
	sess = &session{}
	s.sessions[sessionID] = sess
	return sess
}
