package store

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryCredentialFlow(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if err := m.CreateAccount(ctx, "alice", "h1", "s1"); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if err := m.CreateAccount(ctx, "alice", "h2", "s2"); !errors.Is(err, ErrPlayerExists) {
		t.Fatalf("expected ErrPlayerExists, got %v", err)
	}

	salt, err := m.FetchSalt(ctx, "alice")
	if err != nil || salt != "s1" {
		t.Fatalf("FetchSalt: %q %v", salt, err)
	}
	if _, err := m.FetchSalt(ctx, "ghost"); !errors.Is(err, ErrUnknownPlayer) {
		t.Fatalf("expected ErrUnknownPlayer, got %v", err)
	}

	ok, err := m.VerifyCredentials(ctx, "alice", "h1")
	if err != nil || !ok {
		t.Fatalf("valid credentials rejected: %v %v", ok, err)
	}
	ok, _ = m.VerifyCredentials(ctx, "alice", "nope")
	if ok {
		t.Fatalf("invalid credentials accepted")
	}

	rating, err := m.Rating(ctx, "alice")
	if err != nil || rating != DefaultRating {
		t.Fatalf("Rating: %d %v", rating, err)
	}
}

func TestMemoryHighscoresCopiedOnRead(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if err := m.SaveHighscores(ctx, "bob", []HighscoreEntry{{Score: 9}}); err != nil {
		t.Fatalf("SaveHighscores: %v", err)
	}
	got, err := m.Highscores(ctx, "bob")
	if err != nil {
		t.Fatalf("Highscores: %v", err)
	}
	got[0].Score = 999

	again, _ := m.Highscores(ctx, "bob")
	if again[0].Score != 9 {
		t.Fatalf("caller mutation leaked into the store: %v", again)
	}
}
