package store

import (
	"context"
	"errors"
	"time"
)

// DefaultRating is assigned to every freshly created account.
const DefaultRating = 1000

// MaxHighscores bounds the per-player score history.
const MaxHighscores = 10

var (
	ErrPlayerExists  = errors.New("player already exists")
	ErrUnknownPlayer = errors.New("unknown player")
)

// HighscoreEntry is one historical best score.
type HighscoreEntry struct {
	Score int       `json:"score"`
	Date  time.Time `json:"date"`
}

// Store is the persistence collaborator: credentials, ratings and highscore
// history. Implementations must keep the paired rating update atomic so a
// concurrent reader never sees only one side adjusted.
type Store interface {
	CreateAccount(ctx context.Context, username, hash, salt string) error
	FetchSalt(ctx context.Context, username string) (string, error)
	VerifyCredentials(ctx context.Context, username, hash string) (bool, error)

	Rating(ctx context.Context, username string) (int, error)
	ApplyRatingAdjustment(ctx context.Context, winner, loser string, delta int) error

	Highscores(ctx context.Context, username string) ([]HighscoreEntry, error)
	SaveHighscores(ctx context.Context, username string, entries []HighscoreEntry) error

	Close() error
}
