// Package account provides read access to exchange account credentials.
//
// The relay never mutates credentials; they are owned by whoever
// populates the accounts table.
package account

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bitmex-tools/feedrelay/internal/model"
)

// ErrNotFound is returned when no account exists with the given name.
var ErrNotFound = errors.New("account not found")

// Store looks up account credentials by name.
type Store interface {
	// Find returns the credential for the named account, or ErrNotFound.
	Find(ctx context.Context, name string) (model.AccountCredential, error)

	// Exists reports whether the named account is known.
	Exists(ctx context.Context, name string) (bool, error)
}

// PGStore reads credentials from the accounts table.
type PGStore struct {
	db *pgxpool.Pool
}

// NewPGStore creates a database-backed credential store.
func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Find(ctx context.Context, name string) (model.AccountCredential, error) {
	var cred model.AccountCredential
	err := s.db.QueryRow(ctx,
		`SELECT name, api_key, api_secret FROM accounts WHERE name = $1`,
		name,
	).Scan(&cred.Name, &cred.APIKey, &cred.APISecret)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.AccountCredential{}, ErrNotFound
	}
	if err != nil {
		return model.AccountCredential{}, fmt.Errorf("query account %q: %w", name, err)
	}
	return cred, nil
}

func (s *PGStore) Exists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE name = $1)`,
		name,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check account %q: %w", name, err)
	}
	return exists, nil
}

// MemStore is an in-memory credential store for tests and tooling.
type MemStore struct {
	mu    sync.RWMutex
	creds map[string]model.AccountCredential
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{creds: make(map[string]model.AccountCredential)}
}

// Add registers a credential under its name.
func (s *MemStore) Add(cred model.AccountCredential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[cred.Name] = cred
}

func (s *MemStore) Find(ctx context.Context, name string) (model.AccountCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.creds[name]
	if !ok {
		return model.AccountCredential{}, ErrNotFound
	}
	return cred, nil
}

func (s *MemStore) Exists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.creds[name]
	return ok, nil
}
