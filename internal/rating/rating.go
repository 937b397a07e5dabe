package rating

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/AlexYeomanAQ/TetraClashServer/internal/obslog"
	"github.com/AlexYeomanAQ/TetraClashServer/internal/store"
)

// ComputeAdjustment returns the bounded rating delta for a resolved match.
// Wins move 20..40 points depending on the rating gap; ties move -10..10.
func ComputeAdjustment(winnerRating, loserRating int, tied bool) int {
	diff := clamp(winnerRating-loserRating, -1000, 1000)
	base := 30
	if tied {
		base = 0
	}
	raw := float64(base) - float64(diff)/100.0
	raw = math.Min(math.Max(raw, float64(base-10)), float64(base+10))
	return int(math.Round(raw))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Engine computes and persists rating adjustments.
type Engine struct {
	store store.Store
}

func NewEngine(st store.Store) *Engine {
	return &Engine{store: st}
}

// Apply fetches both ratings, computes the delta and persists the symmetric
// update (winner +delta, loser -delta) as one logical operation. For ties the
// caller passes the designated tie-winner; the delta may be zero or negative.
func (e *Engine) Apply(ctx context.Context, winner, loser string, tied bool) (int, error) {
	winnerRating, err := e.store.Rating(ctx, winner)
	if err != nil {
		return 0, err
	}
	loserRating, err := e.store.Rating(ctx, loser)
	if err != nil {
		return 0, err
	}
	delta := ComputeAdjustment(winnerRating, loserRating, tied)
	if err := e.store.ApplyRatingAdjustment(ctx, winner, loser, delta); err != nil {
		return 0, err
	}
	obslog.L().Info("rating_apply",
		zap.String("winner", winner),
		zap.String("loser", loser),
		zap.Bool("tied", tied),
		zap.Int("delta", delta),
	)
	return delta, nil
}
