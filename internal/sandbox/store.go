package sandbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/birbparty/birb-ads/internal/clock"
)

// Common errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrStoreClosed     = errors.New("store is closed")
)

// Session is what the server remembers about a session token
type Session struct {
	Token        string    `json:"token"`
	AppKey       string    `json:"app_key"`
	AppID        string    `json:"app_id"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	Orientations []string  `json:"orientations"`
	TestMode     bool      `json:"test_mode"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store keeps sessions and rate-limit windows
type Store interface {
	// CreateSession stores s until ttl elapses
	CreateSession(ctx context.Context, s *Session, ttl time.Duration) error

	// GetSession returns ErrSessionNotFound for unknown or expired tokens
	GetSession(ctx context.Context, token string) (*Session, error)

	// CountRequest counts one request against the token's current window and
	// returns the count so far and the time until the window resets.
	CountRequest(ctx context.Context, token string, window time.Duration) (int64, time.Duration, error)

	// CountSessions returns the number of live sessions
	CountSessions(ctx context.Context) (int, error)

	// Ping checks if the store is healthy
	Ping(ctx context.Context) error

	// Close releases the store
	Close() error
}

type memorySession struct {
	session   Session
	expiresAt time.Time
}

type memoryWindow struct {
	count   int64
	resetAt time.Time
}

// MemoryStore is an in-process Store. Expired entries are dropped by a sweep
// every sweepInterval.
type MemoryStore struct {
	mu       sync.Mutex
	clock    clock.Clock
	sessions map[string]memorySession
	windows  map[string]memoryWindow
	janitor  clock.Timer
	closed   bool
}

const sweepInterval = time.Minute

// NewMemoryStore creates an in-memory store driven by clk
func NewMemoryStore(clk clock.Clock) *MemoryStore {
	s := &MemoryStore{
		clock:    clk,
		sessions: make(map[string]memorySession),
		windows:  make(map[string]memoryWindow),
	}
	s.janitor = clock.Every(clk, sweepInterval, s.sweep)
	return s
}

func (s *MemoryStore) CreateSession(ctx context.Context, session *Session, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.sessions[session.Token] = memorySession{
		session:   *session,
		expiresAt: s.clock.Now().Add(ttl),
	}
	return nil
}

func (s *MemoryStore) GetSession(ctx context.Context, token string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	entry, ok := s.sessions[token]
	if !ok || !s.clock.Now().Before(entry.expiresAt) {
		return nil, ErrSessionNotFound
	}
	session := entry.session
	return &session, nil
}

func (s *MemoryStore) CountRequest(ctx context.Context, token string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, 0, ErrStoreClosed
	}

	now := s.clock.Now()
	w, ok := s.windows[token]
	if !ok || !now.Before(w.resetAt) {
		w = memoryWindow{resetAt: now.Add(window)}
	}
	w.count++
	s.windows[token] = w
	return w.count, w.resetAt.Sub(now), nil
}

func (s *MemoryStore) CountSessions(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	n := 0
	for _, entry := range s.sessions {
		if now.Before(entry.expiresAt) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.janitor.Stop()
	return nil
}

// sweep drops expired sessions and finished windows
func (s *MemoryStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	for token, entry := range s.sessions {
		if !now.Before(entry.expiresAt) {
			delete(s.sessions, token)
		}
	}
	for token, w := range s.windows {
		if !now.Before(w.resetAt) {
			delete(s.windows, token)
		}
	}
}

// size reports the number of stored entries, expired or not
func (s *MemoryStore) size() (sessions, windows int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions), len(s.windows)
}
