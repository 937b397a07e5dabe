package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// Postgres persists players and highscores in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(databaseURL string) (*Postgres, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	p := &Postgres{db: db}
	if err := p.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	const q = `
    CREATE TABLE IF NOT EXISTS players (
        username TEXT PRIMARY KEY,
        hash     TEXT NOT NULL,
        salt     TEXT NOT NULL,
        rating   INT  NOT NULL DEFAULT 1000
    );
    CREATE TABLE IF NOT EXISTS highscores (
        username   TEXT NOT NULL REFERENCES players(username),
        score      INT  NOT NULL,
        created_at TIMESTAMPTZ NOT NULL,
        PRIMARY KEY (username, score, created_at)
    )`
	_, err := p.db.ExecContext(ctx, q)
	return err
}

func (p *Postgres) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

func (p *Postgres) CreateAccount(ctx context.Context, username, hash, salt string) error {
	res, err := p.db.ExecContext(ctx,
		`INSERT INTO players (username, hash, salt, rating) VALUES ($1,$2,$3,$4)
         ON CONFLICT (username) DO NOTHING`,
		username, hash, salt, DefaultRating)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPlayerExists
	}
	return nil
}

func (p *Postgres) FetchSalt(ctx context.Context, username string) (string, error) {
	var salt string
	err := p.db.QueryRowContext(ctx,
		`SELECT salt FROM players WHERE username = $1`, username).Scan(&salt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrUnknownPlayer
	}
	if err != nil {
		return "", err
	}
	return salt, nil
}

func (p *Postgres) VerifyCredentials(ctx context.Context, username, hash string) (bool, error) {
	var stored string
	err := p.db.QueryRowContext(ctx,
		`SELECT hash FROM players WHERE username = $1`, username).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrUnknownPlayer
	}
	if err != nil {
		return false, err
	}
	return stored == hash, nil
}

func (p *Postgres) Rating(ctx context.Context, username string) (int, error) {
	var rating int
	err := p.db.QueryRowContext(ctx,
		`SELECT rating FROM players WHERE username = $1`, username).Scan(&rating)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrUnknownPlayer
	}
	if err != nil {
		return 0, err
	}
	return rating, nil
}

// ApplyRatingAdjustment moves delta points from loser to winner in one
// transaction.
func (p *Postgres) ApplyRatingAdjustment(ctx context.Context, winner, loser string, delta int) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`UPDATE players SET rating = rating + $1 WHERE username = $2`, delta, winner); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE players SET rating = rating - $1 WHERE username = $2`, delta, loser); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *Postgres) Highscores(ctx context.Context, username string) ([]HighscoreEntry, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT score, created_at FROM highscores
         WHERE username = $1 ORDER BY score DESC, created_at DESC`, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HighscoreEntry
	for rows.Next() {
		var e HighscoreEntry
		if err := rows.Scan(&e.Score, &e.Date); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *Postgres) SaveHighscores(ctx context.Context, username string, entries []HighscoreEntry) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM highscores WHERE username = $1`, username); err != nil {
		return err
	}
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO highscores (username, score, created_at) VALUES ($1,$2,$3)`,
			username, e.Score, e.Date); err != nil {
			return err
		}
	}
	return tx.Commit()
}
