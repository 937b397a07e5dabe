package protocol

import (
	"errors"
	"strconv"
	"strings"
)

// Reply literals understood by the legacy clients. These are wire contract,
// not display strings; do not localize or reword.
const (
	ReplyQueue         = "Queue"
	ReplySuccess       = "Success"
	ReplyLoggedIn      = "Logged In"
	ReplyPassword      = "Password"
	ReplyPlayerExists  = "Player Exists"
	ReplyInvalidFormat = "Invalid message format."
	ReplyUnknownUser   = "Username"
	ReplyUnknown       = "Unknown Message"

	PushMatchFound = "MATCH_FOUND"
	PushGridUpdate = "GRID_UPDATE"
	PushMatchWin   = "MATCH_WIN"
	PushMatchLose  = "MATCH_LOSE"
	PushTieWin     = "MATCH_TIE_WIN"
	PushTieLose    = "MATCH_TIE_LOSE"
)

// ErrInvalidFormat marks a structurally broken command line. The connection
// handler answers ReplyInvalidFormat and keeps the connection open.
var ErrInvalidFormat = errors.New("invalid message format")

// Command is the closed set of inbound requests. Parse is the only producer.
type Command interface{ isCommand() }

type (
	// Search enqueues the calling session for matchmaking.
	Search struct{}

	// Cancel removes a queued search for the named player.
	Cancel struct{ Username string }

	// Create registers a new account; hash and salt come pre-computed from
	// the client.
	Create struct {
		Username string
		Hash     string
		Salt     string
	}

	// Login authenticates an existing account.
	Login struct {
		Username string
		Hash     string
	}

	// SaltLookup fetches the stored salt so the client can hash its password.
	SaltLookup struct{ Username string }

	// Relay carries an opaque gameplay payload for the opponent.
	Relay struct {
		MatchID string
		Payload string
	}

	// Lose is an explicit forfeit. Score is optional and recorded on the
	// leaderboard when present.
	Lose struct {
		Score    int
		HasScore bool
	}

	// Report submits the sender's final score for the active match.
	Report struct{ Score int }

	// HighscoreList requests the stored top scores for a player.
	HighscoreList struct{ Username string }

	// Unknown is any unrecognized keyword; a normal, non-fatal outcome.
	Unknown struct{ Keyword string }
)

func (Search) isCommand()        {}
func (Cancel) isCommand()        {}
func (Create) isCommand()        {}
func (Login) isCommand()         {}
func (SaltLookup) isCommand()    {}
func (Relay) isCommand()         {}
func (Lose) isCommand()          {}
func (Report) isCommand()        {}
func (HighscoreList) isCommand() {}
func (Unknown) isCommand()       {}

// Parse turns one inbound line into a Command. Keyword and arguments are
// colon-separated; relay payloads keep their own colons intact.
func Parse(line string) (Command, error) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return nil, ErrInvalidFormat
	}

	keyword, rest, _ := strings.Cut(line, ":")
	switch strings.ToLower(keyword) {
	case "search":
		return Search{}, nil

	case "cancel":
		if rest == "" {
			return nil, ErrInvalidFormat
		}
		return Cancel{Username: rest}, nil

	case "create":
		args := strings.Split(rest, ":")
		if len(args) < 3 || args[0] == "" || args[1] == "" || args[2] == "" {
			return nil, ErrInvalidFormat
		}
		return Create{Username: args[0], Hash: args[1], Salt: args[2]}, nil

	case "login":
		args := strings.Split(rest, ":")
		if len(args) < 2 || args[0] == "" || args[1] == "" {
			return nil, ErrInvalidFormat
		}
		return Login{Username: args[0], Hash: args[1]}, nil

	case "salt":
		if rest == "" {
			return nil, ErrInvalidFormat
		}
		return SaltLookup{Username: rest}, nil

	case "grid", "match":
		matchID, payload, ok := strings.Cut(rest, ":")
		if !ok || matchID == "" {
			return nil, ErrInvalidFormat
		}
		return Relay{MatchID: matchID, Payload: payload}, nil

	case "lose":
		if rest == "" {
			return Lose{}, nil
		}
		score, err := strconv.Atoi(rest)
		if err != nil {
			return nil, ErrInvalidFormat
		}
		return Lose{Score: score, HasScore: true}, nil

	case "time", "score":
		score, err := strconv.Atoi(rest)
		if err != nil {
			return nil, ErrInvalidFormat
		}
		return Report{Score: score}, nil

	case "highscores":
		if rest == "" {
			return nil, ErrInvalidFormat
		}
		return HighscoreList{Username: rest}, nil
	}

	return Unknown{Keyword: keyword}, nil
}
