package matchmaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AlexYeomanAQ/TetraClashServer/internal/match"
	"github.com/AlexYeomanAQ/TetraClashServer/internal/obslog"
	"github.com/AlexYeomanAQ/TetraClashServer/internal/protocol"
	"github.com/AlexYeomanAQ/TetraClashServer/internal/session"
)

const notifyTimeout = 5 * time.Second

type entry struct {
	sess       *session.Session
	enqueuedAt time.Time
}

// Queue is the strict-FIFO matchmaking queue. One mutex covers enqueue,
// cancel and the dequeue-then-create-match step, so a concurrent cancel can
// never leave a session both paired and cancelled.
type Queue struct {
	mu      sync.Mutex
	entries []entry
	queued  map[string]bool // usernames currently waiting

	index *match.Index
}

func NewQueue(index *match.Index) *Queue {
	return &Queue{
		queued: make(map[string]bool),
		index:  index,
	}
}

// Enqueue appends s and immediately attempts pairing. A second search from an
// already-queued session is a no-op.
func (q *Queue) Enqueue(s *session.Session) {
	username := s.Username()

	q.mu.Lock()
	if q.queued[username] {
		q.mu.Unlock()
		return
	}
	if _, busy := q.index.Get(s.ID()); busy {
		// Searching while already in a match is dropped; the session owns a
		// match until it resolves.
		q.mu.Unlock()
		obslog.L().Warn("queue_enqueue_busy", zap.String("username", username))
		return
	}
	q.entries = append(q.entries, entry{sess: s, enqueuedAt: time.Now()})
	q.queued[username] = true
	q.mu.Unlock()

	obslog.L().Info("queue_enqueue", zap.String("username", username))
	q.TryPairAll()
}

// Cancel removes the queued search for username. Cancelling after the session
// was already paired (or was never queued) is tolerated and not an error.
func (q *Queue) Cancel(username string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.queued[username] {
		return
	}
	for i, e := range q.entries {
		if e.sess.Username() == username {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			break
		}
	}
	delete(q.queued, username)
	obslog.L().Info("queue_cancel", zap.String("username", username))
}

// CancelSession removes s from the queue on disconnect, regardless of the
// username binding still being current.
func (q *Queue) CancelSession(s *session.Session) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.entries {
		if e.sess == s {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			delete(q.queued, e.sess.Username())
			return
		}
	}
}

// TryPairAll pairs the two longest-waiting sessions while at least two are
// queued. Invoked after every enqueue and on the periodic tick.
func (q *Queue) TryPairAll() {
	var created []*match.Match

	q.mu.Lock()
	for len(q.entries) >= 2 {
		p1, p2 := q.entries[0], q.entries[1]
		q.entries = q.entries[2:]
		delete(q.queued, p1.sess.Username())
		delete(q.queued, p2.sess.Username())

		m := match.New(p1.sess, p2.sess)
		if err := q.index.Add(m); err != nil {
			// Both sessions were verified idle at enqueue; hitting this means
			// a disconnect/re-login race, drop the pairing and move on.
			obslog.L().Warn("queue_pair_conflict",
				zap.String("match_id", m.ID),
				zap.Error(err),
			)
			continue
		}
		created = append(created, m)
	}
	q.mu.Unlock()

	for _, m := range created {
		obslog.L().Info("queue_pair",
			zap.String("match_id", m.ID),
			zap.String("player1", m.P1.Username()),
			zap.String("player2", m.P2.Username()),
		)
		// Notify off the pairing path; a slow client must not stall the tick.
		go notifyFound(m.P1, m)
		go notifyFound(m.P2, m)
	}
}

func notifyFound(s *session.Session, m *match.Match) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	opponent := m.Opponent(s.Username())
	line := fmt.Sprintf("%s:%s:%s", protocol.PushMatchFound, m.ID, opponent.Username())
	if err := s.Send(ctx, line); err != nil {
		obslog.L().Warn("queue_notify_error",
			zap.String("match_id", m.ID),
			zap.String("username", s.Username()),
			zap.Error(err),
		)
	}
}

// Run drives the periodic pairing tick until ctx is done.
func (q *Queue) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.TryPairAll()
		}
	}
}

// Len reports the current queue depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
