package audit

import (
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Entry is one handled RPC call.
type Entry struct {
	ID        string    `json:"id"`
	Method    string    `json:"method"`
	Status    string    `json:"status"`
	Code      int       `json:"code,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	ElapsedMS int64     `json:"elapsedMs"`
	CreatedAt time.Time `json:"createdAt"`
}

// Call outcomes recorded in the store.
const (
	StatusOK       = "ok"
	StatusError    = "error"
	StatusRejected = "rejected"
)

// Store is a SQLite-backed log of every call the bridge handled. One process
// owns the database file; the mutex serializes writers within it.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, err
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS calls (
		id TEXT PRIMARY KEY,
		method TEXT NOT NULL,
		status TEXT NOT NULL,
		code INTEGER DEFAULT 0,
		detail TEXT,
		elapsed_ms INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_calls_created_at ON calls(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Record inserts one entry. A zero ID and CreatedAt are filled in.
func (s *Store) Record(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		"INSERT INTO calls (id, method, status, code, detail, elapsed_ms, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		e.ID, e.Method, e.Status, e.Code, e.Detail, e.ElapsedMS, e.CreatedAt,
	)
	return err
}

// Recent returns the latest entries, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		"SELECT id, method, status, code, detail, elapsed_ms, created_at FROM calls ORDER BY created_at DESC, id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var detail sql.NullString
		if err := rows.Scan(&e.ID, &e.Method, &e.Status, &e.Code, &detail, &e.ElapsedMS, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Detail = detail.String
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func (s *Store) Close() error {
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		// DB closes normally even if the checkpoint fails.
	}
	return s.db.Close()
}
