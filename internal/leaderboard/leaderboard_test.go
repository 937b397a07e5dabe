package leaderboard

import (
	"context"
	"testing"

	"github.com/AlexYeomanAQ/TetraClashServer/internal/store"
)

func newTestMaintainer(t *testing.T) (*Maintainer, store.Store) {
	t.Helper()
	st := store.NewMemory()
	return NewMaintainer(st), st
}

func TestRecordScoreKeepsTopTenDescending(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMaintainer(t)

	for score := 1; score <= 15; score++ {
		if err := m.RecordScore(ctx, "alice", score); err != nil {
			t.Fatalf("RecordScore(%d): %v", score, err)
		}
	}

	entries, err := m.Top(ctx, "alice")
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	if len(entries) != store.MaxHighscores {
		t.Fatalf("expected %d entries, got %d", store.MaxHighscores, len(entries))
	}
	for i, e := range entries {
		if want := 15 - i; e.Score != want {
			t.Fatalf("entry %d: expected score %d, got %d", i, want, e.Score)
		}
	}
}

func TestRecordScoreDiscardsNonQualifying(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMaintainer(t)

	for score := 10; score < 20; score++ {
		if err := m.RecordScore(ctx, "bob", score); err != nil {
			t.Fatalf("RecordScore(%d): %v", score, err)
		}
	}
	// 5 is below the stored minimum (10) with a full board; no change.
	if err := m.RecordScore(ctx, "bob", 5); err != nil {
		t.Fatalf("RecordScore(5): %v", err)
	}
	entries, err := m.Top(ctx, "bob")
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	if len(entries) != 10 || entries[len(entries)-1].Score != 10 {
		t.Fatalf("non-qualifying score changed the board: %v", entries)
	}

	// 25 evicts the minimum.
	if err := m.RecordScore(ctx, "bob", 25); err != nil {
		t.Fatalf("RecordScore(25): %v", err)
	}
	entries, _ = m.Top(ctx, "bob")
	if len(entries) != 10 || entries[0].Score != 25 || entries[len(entries)-1].Score != 11 {
		t.Fatalf("eviction wrong: %v", entries)
	}
}

func TestRecordScoreEqualScoresNewestFirst(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMaintainer(t)

	if err := m.RecordScore(ctx, "carol", 7); err != nil {
		t.Fatalf("RecordScore: %v", err)
	}
	if err := m.RecordScore(ctx, "carol", 7); err != nil {
		t.Fatalf("RecordScore: %v", err)
	}
	entries, err := m.Top(ctx, "carol")
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Date.Before(entries[1].Date) {
		t.Fatalf("equal scores not newest-first: %v", entries)
	}
}
