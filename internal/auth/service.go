// Package auth is the engine's identity collaborator. It owns account
// credentials, short-lived single-use entry tickets and the ban list; the
// table engine only ever sees the opaque identity string a redeemed ticket
// resolves to.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	defaultTicketTTL = 2 * time.Minute
	tokenBytes       = 32
)

var (
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidTicket      = errors.New("invalid or expired ticket")
	ErrBanned             = errors.New("identity is banned")
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_][a-zA-Z0-9_.-]{2,31}$`)

type Service interface {
	// Register creates an account and returns its opaque identity key.
	Register(username, password string) (identity string, err error)
	// IssueTicket authenticates credentials and mints a short-lived,
	// single-use entry ticket.
	IssueTicket(username, password string) (ticket string, err error)
	// Redeem consumes a ticket and returns the identity it was issued to.
	Redeem(ticket string) (identity string, err error)
	IsBanned(identity string) bool
	Ban(identity string) error
	Close() error
}

// Manager is the in-memory backend for single-binary deployment. It can be
// swapped for persistent storage without changing gateway contracts.
type Manager struct {
	mu sync.Mutex

	ticketTTL time.Duration
	accounts  map[string]accountRecord // normalized username -> account
	tickets   map[string]ticketRecord  // ticket -> identity
	banned    map[string]bool
}

type accountRecord struct {
	Identity     string
	PasswordHash []byte
}

type ticketRecord struct {
	Identity  string
	ExpiresAt time.Time
}

func NewManager() *Manager {
	return &Manager{
		ticketTTL: defaultTicketTTL,
		accounts:  make(map[string]accountRecord),
		tickets:   make(map[string]ticketRecord),
		banned:    make(map[string]bool),
	}
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func validateUsername(username string) error {
	if !usernamePattern.MatchString(strings.TrimSpace(username)) {
		return ErrInvalidUsername
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 6 || len(password) > 72 {
		return ErrInvalidPassword
	}
	return nil
}

func (m *Manager) Register(username, password string) (string, error) {
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

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.accounts[normalized]; exists {
		return "", ErrUsernameTaken
	}
	identity := newIdentity()
	m.accounts[normalized] = accountRecord{
		Identity:     identity,
		PasswordHash: passwordHash,
	}
	return identity, nil
}

func (m *Manager) IssueTicket(username, password string) (string, error) {
	normalized := normalizeUsername(username)
	if normalized == "" || password == "" {
		return "", ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	account, exists := m.accounts[normalized]
	if !exists {
		return "", ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword(account.PasswordHash, []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}
	if m.banned[account.Identity] {
		return "", ErrBanned
	}

	ticket := mustToken()
	m.tickets[ticket] = ticketRecord{
		Identity:  account.Identity,
		ExpiresAt: time.Now().Add(m.ticketTTL),
	}
	return ticket, nil
}

func (m *Manager) Redeem(ticket string) (string, error) {
	ticket = strings.TrimSpace(ticket)
	if ticket == "" {
		return "", ErrInvalidTicket
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, exists := m.tickets[ticket]
	if !exists {
		return "", ErrInvalidTicket
	}
	delete(m.tickets, ticket) // single use
	if time.Now().After(rec.ExpiresAt) {
		return "", ErrInvalidTicket
	}
	if m.banned[rec.Identity] {
		return "", ErrBanned
	}
	return rec.Identity, nil
}

func (m *Manager) IsBanned(identity string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.banned[identity]
}

func (m *Manager) Ban(identity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.banned[identity] = true
	return nil
}

func (m *Manager) Close() error { return nil }

func newIdentity() string {
	return "pk_" + mustToken()[:24]
}

func mustToken() string {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
