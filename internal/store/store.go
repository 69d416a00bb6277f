// Package store is the local persistence layer: account credentials, signed
// save payloads, the capped leaderboard, and chat history, all in a single
// SQLite file.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const leaderboardCap = 50

var (
	ErrUsernameTaken  = errors.New("username already taken")
	ErrBadCredentials = errors.New("unknown username or wrong password")
	ErrNoSave         = errors.New("no save for user")
)

type Store struct {
	db *sql.DB
}

// Open creates or opens the database file and applies migrations. SQLite
// handles one writer at a time, so the pool is capped at a single
// connection.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// migrations returns the schema statements. Each string is a single SQL
// statement (SQLite executes one at a time).
func migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS credentials (
			username   TEXT PRIMARY KEY,
			password   TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,

		`CREATE TABLE IF NOT EXISTS saves (
			username   TEXT PRIMARY KEY REFERENCES credentials(username),
			payload    BLOB NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,

		`CREATE TABLE IF NOT EXISTS leaderboard (
			username          TEXT PRIMARY KEY,
			title             TEXT NOT NULL DEFAULT '',
			prestige_level    INTEGER NOT NULL DEFAULT 0,
			lifetime_earnings REAL NOT NULL DEFAULT 0,
			play_time         INTEGER NOT NULL DEFAULT 0,
			is_bot            INTEGER NOT NULL DEFAULT 0,
			updated_at        TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_leaderboard_money ON leaderboard(lifetime_earnings DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_leaderboard_time ON leaderboard(play_time DESC)`,

		`CREATE TABLE IF NOT EXISTS chat_messages (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL,
			color    TEXT NOT NULL DEFAULT '#000000',
			body     TEXT NOT NULL,
			sent_at  TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
	}
}

func (s *Store) migrate() error {
	for _, stmt := range migrations() {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// CreateAccount registers a new username. Passwords are stored as given;
// accounts here are casual game identities, not security principals.
func (s *Store) CreateAccount(ctx context.Context, username, password string) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (username, password)
		VALUES (?, ?)
		ON CONFLICT (username) DO NOTHING
	`, username, password)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUsernameTaken
	}
	return nil
}

func (s *Store) Authenticate(ctx context.Context, username, password string) error {
	var stored string
	err := s.db.QueryRowContext(ctx, `
		SELECT password FROM credentials WHERE username = ?
	`, username).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrBadCredentials
	}
	if err != nil {
		return err
	}
	if stored != password {
		return ErrBadCredentials
	}
	return nil
}

// SaveState stores the signed save payload for a user, replacing any
// previous one.
func (s *Store) SaveState(ctx context.Context, username string, payload []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO saves (username, payload, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT (username) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, username, payload)
	return err
}

func (s *Store) LoadState(ctx context.Context, username string) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM saves WHERE username = ?
	`, username).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSave
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// DeleteSave drops a user's save so the next login starts fresh. The
// leaderboard row stays; past glory survives a reset.
func (s *Store) DeleteSave(ctx context.Context, username string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM saves WHERE username = ?`, username)
	return err
}

// Entry is one leaderboard row.
type Entry struct {
	Username         string    `json:"username"`
	Title            string    `json:"title"`
	PrestigeLevel    int       `json:"prestige_level"`
	LifetimeEarnings float64   `json:"lifetime_earnings"`
	PlayTime         int64     `json:"play_time"`
	IsBot            bool      `json:"is_bot"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// UpsertEntry publishes a player's current standing and prunes rows that
// rank outside the cap in both orderings.
func (s *Store) UpsertEntry(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leaderboard (username, title, prestige_level, lifetime_earnings, play_time, is_bot, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT (username) DO UPDATE SET
			title = excluded.title,
			prestige_level = excluded.prestige_level,
			lifetime_earnings = excluded.lifetime_earnings,
			play_time = excluded.play_time,
			updated_at = excluded.updated_at
	`, e.Username, e.Title, e.PrestigeLevel, e.LifetimeEarnings, e.PlayTime, boolInt(e.IsBot))
	if err != nil {
		return err
	}
	return s.prune(ctx)
}

// prune keeps a row if it is within the cap for either ranking mode.
func (s *Store) prune(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM leaderboard WHERE username NOT IN (
			SELECT username FROM (
				SELECT username FROM leaderboard
				ORDER BY lifetime_earnings DESC, username ASC LIMIT ?
			)
			UNION
			SELECT username FROM (
				SELECT username FROM leaderboard
				ORDER BY play_time DESC, username ASC LIMIT ?
			)
		)
	`, leaderboardCap, leaderboardCap)
	return err
}

// TopByMoney returns up to limit entries ordered by lifetime earnings,
// username breaking ties.
func (s *Store) TopByMoney(ctx context.Context, limit int) ([]Entry, error) {
	return s.top(ctx, `lifetime_earnings DESC, username ASC`, limit)
}

// TopByPlayTime returns up to limit entries ordered by accumulated play
// time.
func (s *Store) TopByPlayTime(ctx context.Context, limit int) ([]Entry, error) {
	return s.top(ctx, `play_time DESC, username ASC`, limit)
}

func (s *Store) top(ctx context.Context, order string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > leaderboardCap {
		limit = leaderboardCap
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, title, prestige_level, lifetime_earnings, play_time, is_bot, updated_at
		FROM leaderboard
		ORDER BY `+order+`
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var bot int
		var updated string
		if err := rows.Scan(&e.Username, &e.Title, &e.PrestigeLevel, &e.LifetimeEarnings, &e.PlayTime, &bot, &updated); err != nil {
			return nil, err
		}
		e.IsBot = bot != 0
		e.UpdatedAt, _ = time.Parse("2006-01-02 15:04:05", updated)
		out = append(out, e)
	}
	return out, rows.Err()
}

// SeedBots inserts the house accounts that keep a fresh leaderboard from
// looking empty. Existing rows are left alone so bots never clobber drift
// applied by the worker.
func (s *Store) SeedBots(ctx context.Context, bots []Entry) error {
	for _, b := range bots {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO leaderboard (username, title, prestige_level, lifetime_earnings, play_time, is_bot)
			VALUES (?, ?, ?, ?, ?, 1)
			ON CONFLICT (username) DO NOTHING
		`, b.Username, b.Title, b.PrestigeLevel, b.LifetimeEarnings, b.PlayTime)
		if err != nil {
			return err
		}
	}
	return nil
}

// DriftBots nudges the house accounts forward so the leaderboard never
// looks frozen: earnings compound a little and play time accrues for real.
func (s *Store) DriftBots(ctx context.Context, growth float64, elapsed time.Duration) error {
	if growth < 0 {
		growth = 0
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE leaderboard SET
			lifetime_earnings = lifetime_earnings * (1.0 + ?),
			play_time = play_time + ?,
			updated_at = datetime('now')
		WHERE is_bot = 1
	`, growth, int64(elapsed.Seconds()))
	return err
}

// Message is one chat line.
type Message struct {
	ID       int64     `json:"id"`
	Username string    `json:"username"`
	Color    string    `json:"color"`
	Body     string    `json:"body"`
	SentAt   time.Time `json:"sent_at"`
}

// AppendMessage stores a chat line and trims history to the newest 50.
func (s *Store) AppendMessage(ctx context.Context, m Message) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (username, color, body)
		VALUES (?, ?, ?)
	`, m.Username, m.Color, m.Body)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	_, err = s.db.ExecContext(ctx, `
		DELETE FROM chat_messages WHERE id NOT IN (
			SELECT id FROM chat_messages ORDER BY id DESC LIMIT 50
		)
	`)
	return id, err
}

// RecentMessages returns the newest messages in chronological order.
func (s *Store) RecentMessages(ctx context.Context, limit int) ([]Message, error) {
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, color, body, sent_at FROM (
			SELECT id, username, color, body, sent_at
			FROM chat_messages ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var sent string
		if err := rows.Scan(&m.ID, &m.Username, &m.Color, &m.Body, &sent); err != nil {
			return nil, err
		}
		m.SentAt, _ = time.Parse("2006-01-02 15:04:05", sent)
		out = append(out, m)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
