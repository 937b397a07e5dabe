package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Conn is the transport half of a session: a framed text stream. WriteLine
// must be safe for concurrent use; pushes (MATCH_FOUND, GRID_UPDATE, results)
// arrive from other clients' goroutines and from the pairing tick.
type Conn interface {
	WriteLine(ctx context.Context, line string) error
	Close() error
	RemoteAddr() string
}

// Session is one live client connection plus its authenticated identity.
// Identity is set once on login/create and read from many goroutines.
type Session struct {
	id   string
	conn Conn

	mu       sync.RWMutex
	username string
	rating   int
}

func New(conn Conn) *Session {
	return &Session{id: uuid.NewString(), conn: conn}
}

func (s *Session) ID() string         { return s.id }
func (s *Session) RemoteAddr() string { return s.conn.RemoteAddr() }

func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

func (s *Session) Authenticated() bool { return s.Username() != "" }

func (s *Session) Rating() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rating
}

func (s *Session) SetRating(r int) {
	s.mu.Lock()
	s.rating = r
	s.mu.Unlock()
}

func (s *Session) setIdentity(username string, rating int) {
	s.mu.Lock()
	s.username = username
	s.rating = rating
	s.mu.Unlock()
}

// Send pushes one reply line to the client.
func (s *Session) Send(ctx context.Context, line string) error {
	return s.conn.WriteLine(ctx, line)
}

func (s *Session) Close() error { return s.conn.Close() }
