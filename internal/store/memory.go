package store

import (
	"context"
	"sync"
)

type memPlayer struct {
	hash   string
	salt   string
	rating int
}

// Memory is the in-process Store used by tests and standalone runs.
type Memory struct {
	mu      sync.RWMutex
	players map[string]*memPlayer
	scores  map[string][]HighscoreEntry
}

func NewMemory() *Memory {
	return &Memory{
		players: make(map[string]*memPlayer),
		scores:  make(map[string][]HighscoreEntry),
	}
}

func (m *Memory) CreateAccount(_ context.Context, username, hash, salt string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.players[username]; ok {
		return ErrPlayerExists
	}
	m.players[username] = &memPlayer{hash: hash, salt: salt, rating: DefaultRating}
	return nil
}

func (m *Memory) FetchSalt(_ context.Context, username string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[username]
	if !ok {
		return "", ErrUnknownPlayer
	}
	return p.salt, nil
}

func (m *Memory) VerifyCredentials(_ context.Context, username, hash string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[username]
	if !ok {
		return false, ErrUnknownPlayer
	}
	return p.hash == hash, nil
}

func (m *Memory) Rating(_ context.Context, username string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[username]
	if !ok {
		return 0, ErrUnknownPlayer
	}
	return p.rating, nil
}

func (m *Memory) ApplyRatingAdjustment(_ context.Context, winner, loser string, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.players[winner]
	if !ok {
		return ErrUnknownPlayer
	}
	l, ok := m.players[loser]
	if !ok {
		return ErrUnknownPlayer
	}
	w.rating += delta
	l.rating -= delta
	return nil
}

func (m *Memory) Highscores(_ context.Context, username string) ([]HighscoreEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := m.scores[username]
	out := make([]HighscoreEntry, len(entries))
	copy(out, entries)
	return out, nil
}

func (m *Memory) SaveHighscores(_ context.Context, username string, entries []HighscoreEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]HighscoreEntry, len(entries))
	copy(cp, entries)
	m.scores[username] = cp
	return nil
}

func (m *Memory) Close() error { return nil }
