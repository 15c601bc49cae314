package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"golang.org/x/crypto/bcrypt"
)

const defaultLocalDBName = "holdem_auth.db"

type SQLiteManager struct {
	db        *sql.DB
	ticketTTL time.Duration
}

func NewSQLiteManagerFromEnv() (*SQLiteManager, error) {
	dbPath := strings.TrimSpace(os.Getenv("AUTH_SQLITE_PATH"))
	if dbPath == "" {
		userConfigDir, err := os.UserConfigDir()
		if err != nil {
			return nil, err
		}
		dbPath = filepath.Join(userConfigDir, "holdem-table", defaultLocalDBName)
	}
	return NewSQLiteManager(dbPath, defaultTicketTTL)
}

func NewSQLiteManager(dbPath string, ticketTTL time.Duration) (*SQLiteManager, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("empty sqlite database path")
	}
	if ticketTTL <= 0 {
		ticketTTL = defaultTicketTTL
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
	if err := ensureSQLiteAuthSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteManager{db: db, ticketTTL: ticketTTL}, nil
}

func (m *SQLiteManager) Close() error {
	if m == nil || m.db == nil {
		return nil
	}
	return m.db.Close()
}

func (m *SQLiteManager) Register(username, password string) (string, error) {
	if err := validateUsername(username); err != nil {
		return "", err
	}
	if err := validatePassword(password); err != nil {
		return "", err
	}

	normalized := normalizeUsername(username)
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	identity := newIdentity()
	nowMs := time.Now().UTC().UnixMilli()
	if _, err := m.db.ExecContext(ctx, `
INSERT INTO accounts (username, identity, password_hash, created_at_ms)
VALUES (?, ?, ?, ?)
`, normalized, identity, string(passwordHash), nowMs); err != nil {
		if isSQLiteUniqueViolation(err) {
			return "", ErrUsernameTaken
		}
		return "", err
	}
	return identity, nil
}

func (m *SQLiteManager) IssueTicket(username, password string) (string, error) {
	normalized := normalizeUsername(username)
	if normalized == "" || password == "" {
		return "", ErrInvalidCredentials
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var identity, passwordHash string
	err := m.db.QueryRowContext(ctx, `
SELECT identity, password_hash FROM accounts WHERE username = ?
`, normalized).Scan(&identity, &passwordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}
	if m.IsBanned(identity) {
		return "", ErrBanned
	}

	nowMs := time.Now().UTC().UnixMilli()
	expiresAtMs := nowMs + m.ticketTTL.Milliseconds()
	for i := 0; i < 5; i++ {
		ticket := mustToken()
		if _, err := m.db.ExecContext(ctx, `
INSERT INTO tickets (ticket, identity, issued_at_ms, expires_at_ms)
VALUES (?, ?, ?, ?)
`, ticket, identity, nowMs, expiresAtMs); err != nil {
			if isSQLiteUniqueViolation(err) {
				continue
			}
			return "", err
		}
		return ticket, nil
	}
	return "", fmt.Errorf("failed to generate unique ticket")
}

func (m *SQLiteManager) Redeem(ticket string) (string, error) {
	ticket = strings.TrimSpace(ticket)
	if ticket == "" {
		return "", ErrInvalidTicket
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var identity string
	var expiresAtMs int64
	err = tx.QueryRowContext(ctx, `
SELECT identity, expires_at_ms FROM tickets WHERE ticket = ?
`, ticket).Scan(&identity, &expiresAtMs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidTicket
	}
	if err != nil {
		return "", err
	}

	// Single use: the ticket is gone whether or not it was still valid.
	if _, err := tx.ExecContext(ctx, `DELETE FROM tickets WHERE ticket = ?`, ticket); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}

	if time.Now().UTC().UnixMilli() > expiresAtMs {
		return "", ErrInvalidTicket
	}
	if m.IsBanned(identity) {
		return "", ErrBanned
	}
	return identity, nil
}

func (m *SQLiteManager) IsBanned(identity string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var one int
	err := m.db.QueryRowContext(ctx, `
SELECT 1 FROM bans WHERE identity = ?
`, identity).Scan(&one)
	return err == nil
}

func (m *SQLiteManager) Ban(identity string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := m.db.ExecContext(ctx, `
INSERT INTO bans (identity, banned_at_ms) VALUES (?, ?)
ON CONFLICT(identity) DO NOTHING
`, identity, time.Now().UTC().UnixMilli())
	return err
}

func ensureSQLiteAuthSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`
CREATE TABLE IF NOT EXISTS accounts (
    username TEXT PRIMARY KEY,
    identity TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at_ms INTEGER NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS tickets (
    ticket TEXT PRIMARY KEY,
    identity TEXT NOT NULL,
    issued_at_ms INTEGER NOT NULL,
    expires_at_ms INTEGER NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_expiry ON tickets(expires_at_ms)`,
		`
CREATE TABLE IF NOT EXISTS bans (
    identity TEXT PRIMARY KEY,
    banned_at_ms INTEGER NOT NULL
)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func isSQLiteUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
