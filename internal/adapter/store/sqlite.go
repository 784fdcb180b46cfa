package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"relayd/internal/domain"
)

// SQLiteStore implements domain.RegistryStore and domain.QueueStore using
// SQLite. Drains run select+delete inside one transaction, so concurrent
// drains for the same recipient partition the pending set.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and runs the
// schema migration. Transactions start IMMEDIATE so racing drains queue on
// the write lock (bounded by busy_timeout) instead of failing with
// SQLITE_BUSY at commit.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := "file:" + dbPath + "?_txlock=immediate&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open relay db: %w", err)
	}
	// WAL mode for better concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate relay db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS agent_registry (
			name          TEXT PRIMARY KEY,
			url           TEXT NOT NULL,
			registered_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS message_queue (
			id         TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			sender     TEXT NOT NULL,
			recipient  TEXT NOT NULL,
			message    TEXT NOT NULL,
			timestamp  TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_queue_recipient ON message_queue(recipient, id);
	`)
	return err
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- domain.RegistryStore ---

func (s *SQLiteStore) Upsert(ctx context.Context, entry domain.RegistryEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_registry (name, url, registered_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET url = excluded.url, registered_at = excluded.registered_at`,
		entry.Name, entry.CallbackURL, entry.RegisteredAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert agent: %w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *SQLiteStore) Lookup(ctx context.Context, name string) (*domain.RegistryEntry, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT name, url, registered_at FROM agent_registry WHERE name = ?", name,
	)
	var entry domain.RegistryEntry
	var registeredStr string
	if err := row.Scan(&entry.Name, &entry.CallbackURL, &registeredStr); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.NewDomainError("store.Lookup", domain.ErrAgentNotRegistered, name)
		}
		return nil, fmt.Errorf("lookup agent: %w: %v", domain.ErrStoreUnavailable, err)
	}
	entry.RegisteredAt, _ = time.Parse(time.RFC3339Nano, registeredStr)
	return &entry, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]domain.RegistryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, url, registered_at FROM agent_registry ORDER BY name",
	)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w: %v", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var entries []domain.RegistryEntry
	for rows.Next() {
		var entry domain.RegistryEntry
		var registeredStr string
		if err := rows.Scan(&entry.Name, &entry.CallbackURL, &registeredStr); err != nil {
			return nil, fmt.Errorf("scan agent: %w: %v", domain.ErrStoreUnavailable, err)
		}
		entry.RegisteredAt, _ = time.Parse(time.RFC3339Nano, registeredStr)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) Remove(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM agent_registry WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("remove agent: %w: %v", domain.ErrStoreUnavailable, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.NewDomainError("store.Remove", domain.ErrAgentNotRegistered, name)
	}
	return nil
}

// --- domain.QueueStore ---

func (s *SQLiteStore) Enqueue(ctx context.Context, msg domain.QueuedMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO message_queue (id, session_id, sender, recipient, message, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.SessionID, msg.Sender, msg.Recipient, msg.Payload,
		msg.EnqueuedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("enqueue message: %w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Drain reads and deletes all messages for recipient inside one transaction.
// The delete targets the captured id set, so rows enqueued after the select
// survive to the next drain.
func (s *SQLiteStore) Drain(ctx context.Context, recipient string) ([]domain.QueuedMessage, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin drain: %w: %v", domain.ErrStoreUnavailable, err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, session_id, sender, recipient, message, timestamp
		FROM message_queue WHERE recipient = ? ORDER BY id`,
		recipient,
	)
	if err != nil {
		return nil, fmt.Errorf("drain select: %w: %v", domain.ErrStoreUnavailable, err)
	}

	var msgs []domain.QueuedMessage
	for rows.Next() {
		var m domain.QueuedMessage
		var enqueuedStr string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Sender, &m.Recipient, &m.Payload, &enqueuedStr); err != nil {
			rows.Close()
			return nil, fmt.Errorf("drain scan: %w: %v", domain.ErrStoreUnavailable, err)
		}
		m.EnqueuedAt, _ = time.Parse(time.RFC3339Nano, enqueuedStr)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("drain rows: %w: %v", domain.ErrStoreUnavailable, err)
	}
	rows.Close()

	if len(msgs) == 0 {
		return nil, tx.Commit()
	}

	placeholders := make([]string, len(msgs))
	args := make([]any, len(msgs))
	for i, m := range msgs {
		placeholders[i] = "?"
		args[i] = m.ID
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM message_queue WHERE id IN ("+strings.Join(placeholders, ",")+")",
		args...,
	); err != nil {
		return nil, fmt.Errorf("drain delete: %w: %v", domain.ErrStoreUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("drain commit: %w: %v", domain.ErrStoreUnavailable, err)
	}
	return msgs, nil
}

func (s *SQLiteStore) Pending(ctx context.Context, recipient string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM message_queue WHERE recipient = ?", recipient,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("pending count: %w: %v", domain.ErrStoreUnavailable, err)
	}
	return n, nil
}

// Compile-time interface checks.
var (
	_ domain.RegistryStore = (*SQLiteStore)(nil)
	_ domain.QueueStore    = (*SQLiteStore)(nil)
)
