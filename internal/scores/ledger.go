package scores

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

const schema = `
	CREATE TABLE IF NOT EXISTS guess_wins (
		player_id TEXT PRIMARY KEY,
		wins INTEGER NOT NULL DEFAULT 0,
		last_win_at DATETIME NOT NULL
	);
`

// DefaultQueueSize bounds the number of wins waiting to be written.
const DefaultQueueSize = 64

// Entry is one leaderboard line.
type Entry struct {
	PlayerID  string
	Wins      int
	LastWinAt time.Time
}

type win struct {
	playerID string
	at       time.Time
}

// job is either a win to write or a flush marker to acknowledge.
type job struct {
	win *win
	ack chan struct{}
}

// Ledger stores guess wins in SQLite. RecordWin never blocks: wins are queued
// and written by a single background writer.
type Ledger struct {
	db    *sql.DB
	queue chan job
	done  chan struct{}
	now   func() time.Time

	mu     sync.RWMutex
	closed bool
}

// Open opens (and creates if needed) the ledger database at path.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := configure(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure connection: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	l := &Ledger{
		db:    db,
		queue: make(chan job, DefaultQueueSize),
		done:  make(chan struct{}),
		now:   time.Now,
	}
	go l.writer()
	return l, nil
}

func configure(db *sql.DB) error {
	// One writer at a time keeps SQLite from returning SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return err
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		return err
	}
	return nil
}

// RecordWin queues a win for playerID. A full queue drops the win.
func (l *Ledger) RecordWin(playerID string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		log.Warn().Str("player", playerID).Msg("Ledger closed, win dropped")
		return
	}
	select {
	case l.queue <- job{win: &win{playerID: playerID, at: l.now()}}:
	default:
		log.Warn().Str("player", playerID).Msg("Ledger queue full, win dropped")
	}
}

func (l *Ledger) writer() {
	defer close(l.done)
	for j := range l.queue {
		if j.ack != nil {
			close(j.ack)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := l.add(ctx, *j.win); err != nil {
			log.Error().Err(err).Str("player", j.win.playerID).Msg("Error recording win")
		} else {
			log.Debug().Str("player", j.win.playerID).Msg("Win recorded")
		}
		cancel()
	}
}

func (l *Ledger) add(ctx context.Context, w win) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO guess_wins (player_id, wins, last_win_at) VALUES (?, 1, ?)
		ON CONFLICT(player_id) DO UPDATE SET wins = wins + 1, last_win_at = excluded.last_win_at
	`, w.playerID, w.at.UTC())
	if err != nil {
		return fmt.Errorf("failed to record win: %w", err)
	}
	return nil
}

// Wins returns the number of wins recorded for playerID.
func (l *Ledger) Wins(ctx context.Context, playerID string) (int, error) {
	var wins int
	err := l.db.QueryRowContext(ctx, `SELECT wins FROM guess_wins WHERE player_id = ?`, playerID).Scan(&wins)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query wins: %w", err)
	}
	return wins, nil
}

// Top returns the n best players, most wins first.
func (l *Ledger) Top(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT player_id, wins, last_win_at FROM guess_wins
		ORDER BY wins DESC, player_id ASC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.PlayerID, &e.Wins, &e.LastWinAt); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Flush waits until every win queued before the call has been written.
func (l *Ledger) Flush(ctx context.Context) error {
	ack := make(chan struct{})

	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return nil
	}
	select {
	case l.queue <- job{ack: ack}:
		l.mu.RUnlock()
	case <-ctx.Done():
		l.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains pending wins and closes the database.
func (l *Ledger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.queue)
	l.mu.Unlock()

	<-l.done
	return l.db.Close()
}
