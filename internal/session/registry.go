package session

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/AlexYeomanAQ/TetraClashServer/internal/obslog"
)

var (
	ErrAlreadyLoggedIn = errors.New("username already bound to a live connection")
	ErrNotFound        = errors.New("session not found")
)

// Registry maps authenticated usernames to their single live session. The
// check-and-bind in Register is atomic with respect to concurrent logins of
// the same username.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{byUser: make(map[string]*Session)}
}

// Register binds username to s and caches the rating on the session. A second
// login for the same username on a different connection is rejected;
// re-registering the same session is a no-op.
func (r *Registry) Register(s *Session, username string, rating int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.byUser[username]; ok && cur != s {
		return ErrAlreadyLoggedIn
	}
	r.byUser[username] = s
	s.setIdentity(username, rating)
	obslog.L().Info("session_register",
		zap.String("session_id", s.ID()),
		zap.String("username", username),
	)
	return nil
}

// Lookup returns the live session for username.
func (r *Registry) Lookup(username string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byUser[username]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Unregister removes the binding for s's username. Idempotent: repeated calls
// and calls for never-registered sessions are no-ops. A binding owned by a
// different live session (same username, new connection) is left alone.
func (r *Registry) Unregister(s *Session) {
	username := s.Username()
	if username == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.byUser[username]; ok && cur == s {
		delete(r.byUser, username)
		obslog.L().Info("session_unregister",
			zap.String("session_id", s.ID()),
			zap.String("username", username),
		)
	}
}

// Count reports the number of live authenticated sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
