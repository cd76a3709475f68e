// Package leaderboard keeps each player's cumulative realized PnL and ranks them.
package leaderboard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    username       TEXT PRIMARY KEY,
    current_profit REAL     NOT NULL DEFAULT 0,
    updated_at     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_users_profit ON users(current_profit DESC);
`

// DefaultTopN is the board size shown to players.
const DefaultTopN = 10

// ErrEmptyUsername rejects blank player names.
var ErrEmptyUsername = errors.New("username must not be empty")

// Score is what a session publishes after every sell.
type Score struct {
	Username              string
	CumulativeRealizedPnL float64
}

// Entry is one ranked row of the board.
type Entry struct {
	Rank      int
	Username  string
	Profit    float64
	UpdatedAt time.Time
}

// Store persists scores in SQLite and caches board reads.
type Store struct {
	db    *sql.DB
	cache *ristretto.Cache
	ttl   time.Duration
	now   func() time.Time

	// cacheMu orders cache fills against invalidations; gen counts invalidations.
	cacheMu sync.Mutex
	gen     uint64
}

// Open opens (or creates) the database at dsn. ":memory:" keeps everything in process.
func Open(dsn string, cacheTTL time.Duration) (*Store, error) {
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("leaderboard.Open: create dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("leaderboard.Open: open %q: %w", dsn, err)
	}
	// single writer; also keeps ":memory:" on one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("leaderboard.Open: apply schema: %w", err)
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("leaderboard.Open: cache: %w", err)
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &Store{db: db, cache: cache, ttl: cacheTTL, now: time.Now}, nil
}

// Register creates the player or resets their profit to zero for a new run.
func (s *Store) Register(ctx context.Context, username string) error {
	return s.upsert(ctx, username, 0)
}

// Publish records the player's cumulative realized PnL.
func (s *Store) Publish(ctx context.Context, score Score) error {
	if math.IsNaN(score.CumulativeRealizedPnL) || math.IsInf(score.CumulativeRealizedPnL, 0) {
		return fmt.Errorf("leaderboard.Publish: non-finite score for %q", score.Username)
	}
	return s.upsert(ctx, score.Username, score.CumulativeRealizedPnL)
}

func (s *Store) upsert(ctx context.Context, username string, profit float64) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrEmptyUsername
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, current_profit, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			current_profit = excluded.current_profit,
			updated_at     = excluded.updated_at`,
		username, profit, s.now().UTC(),
	); err != nil {
		return fmt.Errorf("leaderboard: upsert %q: %w", username, err)
	}
	s.invalidate()
	return nil
}

func (s *Store) invalidate() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.gen++
	s.cache.Clear()
}

func (s *Store) generation() uint64 {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.gen
}

// cacheTop stores entries read at generation gen. It refuses when a write
// has landed since, so a slow read never caches a stale board.
func (s *Store) cacheTop(key string, entries []Entry, gen uint64) bool {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if gen != s.gen {
		return false
	}
	s.cache.SetWithTTL(key, entries, int64(len(entries)+1), s.ttl)
	s.cache.Wait()
	return true
}

// Top returns the n best players by profit, highest first. Results are cached for the store TTL.
func (s *Store) Top(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		n = DefaultTopN
	}
	key := fmt.Sprintf("top:%d", n)
	if v, ok := s.cache.Get(key); ok {
		if cached, ok := v.([]Entry); ok {
			return append([]Entry(nil), cached...), nil
		}
	}

	gen := s.generation()
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, current_profit, updated_at
		FROM users
		ORDER BY current_profit DESC, username ASC
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("leaderboard.Top: query: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Username, &e.Profit, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("leaderboard.Top: scan: %w", err)
		}
		e.Rank = len(entries) + 1
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("leaderboard.Top: rows: %w", err)
	}

	s.cacheTop(key, entries, gen)
	return append([]Entry(nil), entries...), nil
}

// Profit returns a single player's stored profit.
func (s *Store) Profit(ctx context.Context, username string) (float64, error) {
	var profit float64
	err := s.db.QueryRowContext(ctx,
		`SELECT current_profit FROM users WHERE username = ?`, strings.TrimSpace(username),
	).Scan(&profit)
	if err != nil {
		return 0, fmt.Errorf("leaderboard.Profit: %q: %w", username, err)
	}
	return profit, nil
}

// Close releases the cache and the database.
func (s *Store) Close() error {
	s.cache.Close()
	return s.db.Close()
}
