package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestRedis(t *testing.T) *Redis {
	t.Helper()
	mr := miniredis.RunT(t)
	r, err := NewRedis("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRedisCreateAccount(t *testing.T) {
	ctx := context.Background()
	r := newTestRedis(t)

	if err := r.CreateAccount(ctx, "alice", "h1", "s1"); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if err := r.CreateAccount(ctx, "alice", "h2", "s2"); !errors.Is(err, ErrPlayerExists) {
		t.Fatalf("expected ErrPlayerExists, got %v", err)
	}

	// The duplicate attempt must not clobber the original credentials.
	salt, err := r.FetchSalt(ctx, "alice")
	if err != nil || salt != "s1" {
		t.Fatalf("salt after duplicate create: %q %v", salt, err)
	}
	rating, err := r.Rating(ctx, "alice")
	if err != nil || rating != DefaultRating {
		t.Fatalf("rating after create: %d %v", rating, err)
	}
}

func TestRedisFetchSaltUnknown(t *testing.T) {
	r := newTestRedis(t)
	if _, err := r.FetchSalt(context.Background(), "ghost"); !errors.Is(err, ErrUnknownPlayer) {
		t.Fatalf("expected ErrUnknownPlayer, got %v", err)
	}
}

func TestRedisVerifyCredentials(t *testing.T) {
	ctx := context.Background()
	r := newTestRedis(t)
	if err := r.CreateAccount(ctx, "bob", "correct", "s"); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	ok, err := r.VerifyCredentials(ctx, "bob", "correct")
	if err != nil || !ok {
		t.Fatalf("valid credentials rejected: %v %v", ok, err)
	}
	ok, err = r.VerifyCredentials(ctx, "bob", "wrong")
	if err != nil || ok {
		t.Fatalf("invalid credentials accepted: %v %v", ok, err)
	}
	if _, err := r.VerifyCredentials(ctx, "ghost", "x"); !errors.Is(err, ErrUnknownPlayer) {
		t.Fatalf("expected ErrUnknownPlayer, got %v", err)
	}
}

func TestRedisApplyRatingAdjustmentPaired(t *testing.T) {
	ctx := context.Background()
	r := newTestRedis(t)
	if err := r.CreateAccount(ctx, "alice", "h", "s"); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if err := r.CreateAccount(ctx, "bob", "h", "s"); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	if err := r.ApplyRatingAdjustment(ctx, "alice", "bob", 30); err != nil {
		t.Fatalf("ApplyRatingAdjustment: %v", err)
	}
	a, _ := r.Rating(ctx, "alice")
	b, _ := r.Rating(ctx, "bob")
	if a != 1030 || b != 970 {
		t.Fatalf("ratings not paired: alice=%d bob=%d", a, b)
	}

	// Negative deltas (tie going against the designated winner) swap direction.
	if err := r.ApplyRatingAdjustment(ctx, "alice", "bob", -5); err != nil {
		t.Fatalf("ApplyRatingAdjustment: %v", err)
	}
	a, _ = r.Rating(ctx, "alice")
	b, _ = r.Rating(ctx, "bob")
	if a != 1025 || b != 975 {
		t.Fatalf("negative delta wrong: alice=%d bob=%d", a, b)
	}

	if err := r.ApplyRatingAdjustment(ctx, "alice", "ghost", 30); !errors.Is(err, ErrUnknownPlayer) {
		t.Fatalf("expected ErrUnknownPlayer, got %v", err)
	}
}

func TestRedisHighscoresRoundTrip(t *testing.T) {
	ctx := context.Background()
	r := newTestRedis(t)

	got, err := r.Highscores(ctx, "alice")
	if err != nil || got != nil {
		t.Fatalf("expected empty history, got %v %v", got, err)
	}

	entries := []HighscoreEntry{
		{Score: 42, Date: time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)},
		{Score: 17, Date: time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)},
	}
	if err := r.SaveHighscores(ctx, "alice", entries); err != nil {
		t.Fatalf("SaveHighscores: %v", err)
	}
	got, err = r.Highscores(ctx, "alice")
	if err != nil {
		t.Fatalf("Highscores: %v", err)
	}
	if len(got) != 2 || got[0].Score != 42 || !got[0].Date.Equal(entries[0].Date) {
		t.Fatalf("round trip mismatch: %v", got)
	}
}
