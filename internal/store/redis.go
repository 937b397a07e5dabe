package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Redis keeps players and highscores in Redis. The paired rating update uses
// WATCH on both player keys so a racing reader or writer forces a retry
// instead of observing a half-applied adjustment.
type Redis struct {
	rdb *redis.Client
}

func NewRedis(redisURL string) (*Redis, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{rdb: rdb}, nil
}

func (r *Redis) Close() error {
	if r == nil || r.rdb == nil {
		return nil
	}
	return r.rdb.Close()
}

func keyPlayer(username string) string { return "player:" + strings.TrimSpace(username) }
func keyScores(username string) string { return "highscores:" + strings.TrimSpace(username) }

func (r *Redis) CreateAccount(ctx context.Context, username, hash, salt string) error {
	// HSETNX on the hash field doubles as the existence check.
	ok, err := r.rdb.HSetNX(ctx, keyPlayer(username), "hash", hash).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrPlayerExists
	}
	return r.rdb.HSet(ctx, keyPlayer(username), "salt", salt, "rating", DefaultRating).Err()
}

func (r *Redis) FetchSalt(ctx context.Context, username string) (string, error) {
	salt, err := r.rdb.HGet(ctx, keyPlayer(username), "salt").Result()
	if err == redis.Nil {
		return "", ErrUnknownPlayer
	}
	if err != nil {
		return "", err
	}
	return salt, nil
}

func (r *Redis) VerifyCredentials(ctx context.Context, username, hash string) (bool, error) {
	stored, err := r.rdb.HGet(ctx, keyPlayer(username), "hash").Result()
	if err == redis.Nil {
		return false, ErrUnknownPlayer
	}
	if err != nil {
		return false, err
	}
	return stored == hash, nil
}

func (r *Redis) Rating(ctx context.Context, username string) (int, error) {
	raw, err := r.rdb.HGet(ctx, keyPlayer(username), "rating").Result()
	if err == redis.Nil {
		return 0, ErrUnknownPlayer
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(raw)
}

func (r *Redis) ApplyRatingAdjustment(ctx context.Context, winner, loser string, delta int) error {
	winK, loseK := keyPlayer(winner), keyPlayer(loser)
	return r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		winRaw, err := tx.HGet(ctx, winK, "rating").Result()
		if err == redis.Nil {
			return ErrUnknownPlayer
		}
		if err != nil {
			return err
		}
		loseRaw, err := tx.HGet(ctx, loseK, "rating").Result()
		if err == redis.Nil {
			return ErrUnknownPlayer
		}
		if err != nil {
			return err
		}
		winRating, err := strconv.Atoi(winRaw)
		if err != nil {
			return err
		}
		loseRating, err := strconv.Atoi(loseRaw)
		if err != nil {
			return err
		}

		pipe := tx.TxPipeline()
		pipe.HSet(ctx, winK, "rating", winRating+delta)
		pipe.HSet(ctx, loseK, "rating", loseRating-delta)
		_, pErr := pipe.Exec(ctx)
		return pErr
	}, winK, loseK)
}

func (r *Redis) Highscores(ctx context.Context, username string) ([]HighscoreEntry, error) {
	raw, err := r.rdb.Get(ctx, keyScores(username)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []HighscoreEntry
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Redis) SaveHighscores(ctx context.Context, username string, entries []HighscoreEntry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, keyScores(username), raw, 0).Err()
}
