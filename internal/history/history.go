// Package history is the optional SQLite archive of relayed messages.
// It exists for operators who want a searchable record beyond the short
// in-memory log the HTTP server exposes.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration

	"github.com/flemzord/ircgram/pkg/message"
)

const (
	schemaVersion      = 1
	defaultBusyTimeout = 5000
)

// schemaStatements are executed in order to create the database schema.
// All use IF NOT EXISTS for idempotent re-application.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS messages (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		protocol   TEXT    NOT NULL,
		channel    TEXT    NOT NULL,
		type       TEXT    NOT NULL,
		user       TEXT    NOT NULL DEFAULT '',
		text       TEXT    NOT NULL DEFAULT '',
		short_id   TEXT    NOT NULL DEFAULT '',
		native_id  TEXT    NOT NULL DEFAULT '',
		reply_to   TEXT    NOT NULL DEFAULT '',
		created_at TEXT    NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages(channel, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_short_id ON messages(short_id)`,
}

// Archive persists relayed messages to a SQLite database.
type Archive struct {
	db *sql.DB
}

// Open opens (or creates) the archive database at path. WAL mode, a 5 s
// busy timeout, and a single connection (SQLite serialises writes).
func Open(path string) (*Archive, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("history: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", defaultBusyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: set busy_timeout: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Archive{db: db}, nil
}

// migrate creates or updates the database schema to the latest version.
func migrate(db *sql.DB) error {
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("history: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("history: read schema version: %w", err)
	}
	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("history: migrate: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("history: record schema version: %w", err)
	}
	return nil
}

// Archive appends one relayed message to the database.
func (a *Archive) Archive(ctx context.Context, msg *message.Message) error {
	channel := ""
	if msg.Channel != nil {
		channel = msg.Channel.IRCChan
	}
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO messages (protocol, channel, type, user, text, short_id, native_id, reply_to, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(msg.Protocol), channel, string(msg.Type),
		msg.User, msg.Text, msg.ID, msg.NativeID, msg.ReplyTo,
		msg.Time.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("history: archive message: %w", err)
	}
	return nil
}

// Recent returns the n most recently archived messages for a channel,
// oldest first.
func (a *Archive) Recent(ctx context.Context, channel string, n int) ([]*message.Message, error) {
	if n <= 0 {
		return nil, nil
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT protocol, type, user, text, short_id, native_id, reply_to, created_at
		FROM messages
		WHERE channel = ?
		ORDER BY id DESC
		LIMIT ?`,
		channel, n,
	)
	if err != nil {
		return nil, fmt.Errorf("history: query recent: %w", err)
	}
	defer rows.Close()

	var out []*message.Message
	for rows.Next() {
		var m message.Message
		var proto, typ, created string
		if err := rows.Scan(&proto, &typ, &m.User, &m.Text, &m.ID, &m.NativeID, &m.ReplyTo, &created); err != nil {
			return nil, fmt.Errorf("history: scan row: %w", err)
		}
		m.Protocol = message.Protocol(proto)
		m.Type = message.Type(typ)
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			m.Time = t
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate rows: %w", err)
	}

	// Reverse to chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}
