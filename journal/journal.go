// Package journal records the messages of browser sessions in SQLite and
// replays them against a fresh scheduler.
//
// Usage:
//
//	j, err := journal.Open("tessera.db")
//	opts := browser.Options{WrapEndpoint: j.Wrap(ipc.CurrentVersion, logger)}
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ByLCY/tessera/ipc"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	version    INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	seq        INTEGER NOT NULL,
	direction  INTEGER NOT NULL,
	name       TEXT NOT NULL,
	payload    BLOB NOT NULL,
	PRIMARY KEY (session_id, seq)
);`

// Journal is an SQLite-backed message store.
type Journal struct {
	db *sql.DB
}

type config struct {
	busyTimeout int
	synchronous string
}

// Option customises Open.
type Option func(*config)

// WithBusyTimeout sets PRAGMA busy_timeout in milliseconds. Default: 10000.
func WithBusyTimeout(ms int) Option { return func(c *config) { c.busyTimeout = ms } }

// WithSynchronous sets PRAGMA synchronous. Default: "NORMAL".
func WithSynchronous(mode string) Option { return func(c *config) { c.synchronous = mode } }

// Open opens (creating if needed) the journal at path. ":memory:" gives a
// private in-memory journal.
func Open(path string, opts ...Option) (*Journal, error) {
	cfg := config{busyTimeout: 10_000, synchronous: "NORMAL"}
	for _, o := range opts {
		o(&cfg)
	}

	memory := path == ":memory:"
	if !memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("journal: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	if memory {
		// 每个连接都是独立的内存库
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.busyTimeout),
		fmt.Sprintf("PRAGMA synchronous = %s", cfg.synchronous),
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("journal: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: exec schema: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: ping: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the database.
func (j *Journal) Close() error { return j.db.Close() }

// SessionInfo is one row of the sessions table.
type SessionInfo struct {
	ID        uuid.UUID
	StartedAt time.Time
	Version   uint32
	Messages  int
}

// Record is one journaled envelope.
type Record struct {
	Seq       int64
	Direction ipc.Direction
	Name      string
	Payload   []byte
}

// BeginSession registers a session. Registering the same id twice is an error.
func (j *Journal) BeginSession(ctx context.Context, id uuid.UUID, version uint32, at time.Time) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO sessions (id, started_at, version) VALUES (?, ?, ?)`,
		id.String(), at.UTC().Format(time.RFC3339Nano), version)
	if err != nil {
		return fmt.Errorf("journal: begin session %s: %w", id, err)
	}
	return nil
}

// Append stores one encoded envelope under the given sequence number.
func (j *Journal) Append(ctx context.Context, id uuid.UUID, rec Record) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO messages (session_id, seq, direction, name, payload) VALUES (?, ?, ?, ?, ?)`,
		id.String(), rec.Seq, int(rec.Direction), rec.Name, rec.Payload)
	if err != nil {
		return fmt.Errorf("journal: append %s#%d: %w", id, rec.Seq, err)
	}
	return nil
}

// Sessions lists recorded sessions, oldest first.
func (j *Journal) Sessions(ctx context.Context) ([]SessionInfo, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT s.id, s.started_at, s.version, COUNT(m.seq)
		FROM sessions s LEFT JOIN messages m ON m.session_id = s.id
		GROUP BY s.id
		ORDER BY s.started_at, s.id`)
	if err != nil {
		return nil, fmt.Errorf("journal: list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionInfo
	for rows.Next() {
		var (
			rawID, rawAt string
			info         SessionInfo
		)
		if err := rows.Scan(&rawID, &rawAt, &info.Version, &info.Messages); err != nil {
			return nil, fmt.Errorf("journal: scan session: %w", err)
		}
		if info.ID, err = uuid.Parse(rawID); err != nil {
			return nil, fmt.Errorf("journal: session id %q: %w", rawID, err)
		}
		if info.StartedAt, err = time.Parse(time.RFC3339Nano, rawAt); err != nil {
			return nil, fmt.Errorf("journal: session %s start time: %w", rawID, err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Messages returns a session's records in sequence order.
func (j *Journal) Messages(ctx context.Context, id uuid.UUID) ([]Record, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT seq, direction, name, payload FROM messages WHERE session_id = ? ORDER BY seq`,
		id.String())
	if err != nil {
		return nil, fmt.Errorf("journal: read session %s: %w", id, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec Record
			dir int
		)
		if err := rows.Scan(&rec.Seq, &dir, &rec.Name, &rec.Payload); err != nil {
			return nil, fmt.Errorf("journal: scan message: %w", err)
		}
		rec.Direction = ipc.Direction(dir)
		out = append(out, rec)
	}
	return out, rows.Err()
}
