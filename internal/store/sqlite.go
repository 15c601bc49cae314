package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const defaultLocalDBName = "holdem_table.db"

// SQLiteStore backs both the snapshot KV and the hand-history store with a
// single local database file.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStoreFromEnv() (*SQLiteStore, error) {
	dbPath := strings.TrimSpace(os.Getenv("STORE_SQLITE_PATH"))
	if dbPath == "" {
		userConfigDir, err := os.UserConfigDir()
		if err != nil {
			return nil, err
		}
		dbPath = filepath.Join(userConfigDir, "holdem-table", defaultLocalDBName)
	}
	return NewSQLiteStore(dbPath)
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("empty sqlite database path")
	}
	if dbPath != ":memory:" {
		parent := filepath.Dir(dbPath)
		if parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, err
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, pragma := range []string{
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA journal_mode = WAL;`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureSQLiteStoreSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, key string, data []byte) error {
	nowMs := time.Now().UTC().UnixMilli()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO snapshots (key, data, updated_at_ms)
VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at_ms = excluded.updated_at_ms
`, key, data, nowMs)
	return err
}

func (s *SQLiteStore) LoadSnapshot(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `
SELECT data FROM snapshots WHERE key = ?
`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *SQLiteStore) AppendHandRecord(ctx context.Context, playedAt time.Time, rec HandRecord) error {
	encoded, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO hands (table_id, played_at_ms, record)
VALUES (?, ?, ?)
`, rec.TableID, playedAt.UTC().UnixMilli(), string(encoded))
	return err
}

func (s *SQLiteStore) ListRecent(ctx context.Context, tableID string, limit int) ([]HandRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT record FROM hands
WHERE table_id = ?
ORDER BY id DESC
LIMIT ?
`, tableID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]HandRecord, 0, limit)
	for rows.Next() {
		var encoded string
		if err := rows.Scan(&encoded); err != nil {
			return nil, err
		}
		var rec HandRecord
		if err := json.Unmarshal([]byte(encoded), &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func ensureSQLiteStoreSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`
CREATE TABLE IF NOT EXISTS snapshots (
    key TEXT PRIMARY KEY,
    data BLOB NOT NULL,
    updated_at_ms INTEGER NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS hands (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    table_id TEXT NOT NULL,
    played_at_ms INTEGER NOT NULL,
    record TEXT NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_hands_table ON hands(table_id, id DESC)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
