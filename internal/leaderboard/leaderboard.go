package leaderboard

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/AlexYeomanAQ/TetraClashServer/internal/obslog"
	"github.com/AlexYeomanAQ/TetraClashServer/internal/store"
)

// Maintainer keeps each player's top-N historical scores in the store.
type Maintainer struct {
	store store.Store
}

func NewMaintainer(st store.Store) *Maintainer {
	return &Maintainer{store: st}
}

// RecordScore inserts score into the player's history when it qualifies:
// always while fewer than the cap are stored, otherwise only when it beats
// the current minimum, which is evicted. Non-qualifying scores are discarded
// without a write.
func (m *Maintainer) RecordScore(ctx context.Context, username string, score int) error {
	entries, err := m.store.Highscores(ctx, username)
	if err != nil {
		return err
	}

	if len(entries) >= store.MaxHighscores {
		min := entries[0].Score
		for _, e := range entries[1:] {
			if e.Score < min {
				min = e.Score
			}
		}
		if score <= min {
			return nil
		}
	}

	entries = append(entries, store.HighscoreEntry{Score: score, Date: time.Now().UTC()})
	sortDescending(entries)
	if len(entries) > store.MaxHighscores {
		entries = entries[:store.MaxHighscores]
	}

	if err := m.store.SaveHighscores(ctx, username, entries); err != nil {
		return err
	}
	obslog.L().Info("highscore_record",
		zap.String("username", username),
		zap.Int("score", score),
		zap.Int("kept", len(entries)),
	)
	return nil
}

// Top returns the stored history, highest score first, newest first among
// equal scores.
func (m *Maintainer) Top(ctx context.Context, username string) ([]store.HighscoreEntry, error) {
	entries, err := m.store.Highscores(ctx, username)
	if err != nil {
		return nil, err
	}
	sortDescending(entries)
	return entries, nil
}

func sortDescending(entries []store.HighscoreEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Date.After(entries[j].Date)
	})
}
