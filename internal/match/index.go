package match

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/AlexYeomanAQ/TetraClashServer/internal/obslog"
)

var ErrAlreadyInMatch = errors.New("session already has an active match")

// Index maps each participant's session ID to its single active match. Both
// keys are inserted and removed under one lock so a match is never visible
// for only one side.
type Index struct {
	mu        sync.RWMutex
	bySession map[string]*Match
}

func NewIndex() *Index {
	return &Index{bySession: make(map[string]*Match)}
}

// Add registers m under both participants. Fails without side effects if
// either session already has an active match.
func (i *Index) Add(m *Match) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.bySession[m.P1.ID()]; ok {
		return ErrAlreadyInMatch
	}
	if _, ok := i.bySession[m.P2.ID()]; ok {
		return ErrAlreadyInMatch
	}
	i.bySession[m.P1.ID()] = m
	i.bySession[m.P2.ID()] = m
	return nil
}

// Get returns the active match for a session.
func (i *Index) Get(sessionID string) (*Match, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	m, ok := i.bySession[sessionID]
	return m, ok
}

// Remove drops both participant keys for m. Keys claimed by a different
// match are untouched, so a stale removal cannot evict a newer pairing.
func (i *Index) Remove(m *Match) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if cur, ok := i.bySession[m.P1.ID()]; ok && cur == m {
		delete(i.bySession, m.P1.ID())
	}
	if cur, ok := i.bySession[m.P2.ID()]; ok && cur == m {
		delete(i.bySession, m.P2.ID())
	}
	obslog.L().Debug("match_index_remove", zap.String("match_id", m.ID))
}

// Count reports the number of active matches.
func (i *Index) Count() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.bySession) / 2
}
