package match

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/AlexYeomanAQ/TetraClashServer/internal/session"
)

// State is the match lifecycle. Transitions only move forward; Closed is
// terminal.
type State int

const (
	Created State = iota
	InProgress
	AwaitingSecondScore
	Resolving
	Closed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case InProgress:
		return "in_progress"
	case AwaitingSecondScore:
		return "awaiting_second_score"
	case Resolving:
		return "resolving"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// Outcome is the resolution decision handed to the caller exactly once per
// match. On a tie the first participant (the longer-waiting session at
// pairing time) is designated winner; the tied flag tells the caller to use
// the tie notification pair.
type Outcome struct {
	Winner *session.Session
	Loser  *session.Session

	Tied    bool
	Forfeit bool

	// Reported scores, valid only when HasScores is set (score-based
	// resolution; forfeits close without waiting for reports).
	WinnerScore int
	LoserScore  int
	HasScores   bool
}

// Match is the per-pair gameplay container from pairing to resolution.
type Match struct {
	ID string
	P1 *session.Session
	P2 *session.Session

	mu     sync.Mutex
	state  State
	scores map[string]int // username -> reported score, set once per side
}

func New(p1, p2 *session.Session) *Match {
	return &Match{
		ID:     fmt.Sprintf("m-%d-%s", time.Now().UnixNano(), randSuffix(3)),
		P1:     p1,
		P2:     p2,
		scores: make(map[string]int, 2),
	}
}

// Opponent resolves the other participant, or nil for non-participants.
func (m *Match) Opponent(username string) *session.Session {
	if m.P1.Username() == username {
		return m.P2
	}
	if m.P2.Username() == username {
		return m.P1
	}
	return nil
}

func (m *Match) participant(username string) *session.Session {
	if m.P1.Username() == username {
		return m.P1
	}
	if m.P2.Username() == username {
		return m.P2
	}
	return nil
}

func (m *Match) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// BeginRelay marks the first gameplay traffic. Relaying is allowed until the
// match starts resolving.
func (m *Match) BeginRelay() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case Created:
		m.state = InProgress
		return true
	case InProgress, AwaitingSecondScore:
		return true
	}
	return false
}

// ReportScore records one side's final score. The first report parks the
// match in AwaitingSecondScore; the second produces the Outcome and moves to
// Resolving. Duplicate reports from the same side and reports after
// resolution return ok=false.
func (m *Match) ReportScore(username string, score int) (Outcome, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Resolving || m.state == Closed {
		return Outcome{}, false
	}
	if m.participant(username) == nil {
		return Outcome{}, false
	}
	if _, dup := m.scores[username]; dup {
		return Outcome{}, false
	}
	m.scores[username] = score

	if len(m.scores) < 2 {
		m.state = AwaitingSecondScore
		return Outcome{}, false
	}

	m.state = Resolving
	s1 := m.scores[m.P1.Username()]
	s2 := m.scores[m.P2.Username()]
	out := Outcome{HasScores: true}
	switch {
	case s1 > s2:
		out.Winner, out.Loser = m.P1, m.P2
		out.WinnerScore, out.LoserScore = s1, s2
	case s2 > s1:
		out.Winner, out.Loser = m.P2, m.P1
		out.WinnerScore, out.LoserScore = s2, s1
	default:
		// Tie convention: P1 is the designated winner.
		out.Winner, out.Loser = m.P1, m.P2
		out.WinnerScore, out.LoserScore = s1, s2
		out.Tied = true
	}
	return out, true
}

// Forfeit resolves the match against loserUsername (disconnect or explicit
// loss signal). Returns ok=false if the match is already resolving or closed,
// or loserUsername is not a participant.
func (m *Match) Forfeit(loserUsername string) (Outcome, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Resolving || m.state == Closed {
		return Outcome{}, false
	}
	loser := m.participant(loserUsername)
	if loser == nil {
		return Outcome{}, false
	}
	m.state = Resolving
	winner := m.P1
	if loser == m.P1 {
		winner = m.P2
	}
	return Outcome{Winner: winner, Loser: loser, Forfeit: true}, true
}

// CloseOut marks the terminal state once ratings and leaderboards have been
// updated.
func (m *Match) CloseOut() {
	m.mu.Lock()
	m.state = Closed
	m.mu.Unlock()
}

func randSuffix(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%x", time.Now().UnixNano()%1_000_000)
	}
	return hex.EncodeToString(b)
}
