package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/geotrack/geotrack/internal/domain/model"
	"github.com/geotrack/geotrack/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port interface.
// The credentials table holds at most one row, pinned to model.CredentialID.
type CredentialRepo struct {
	db       *DB
	mu       sync.Mutex
	newToken func() string
}

// NewCredentialRepo creates a new CredentialRepo that generates random UUID tokens.
func NewCredentialRepo(db *DB) *CredentialRepo {
	return &CredentialRepo{db: db, newToken: uuid.NewString}
}

// GetOrCreateToken returns the stored token, creating it on first use.
// The read-check-create sequence runs under a mutex and the insert ignores
// conflicts on the fixed row id, so at most one token is ever persisted even
// if another process races on the same file.
func (r *CredentialRepo) GetOrCreateToken(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, err := r.storedToken(ctx)
	if err != nil {
		return "", err
	}
	if token != "" {
		return token, nil
	}

	const insert = `INSERT INTO credentials (id, token) VALUES (?, ?) ON CONFLICT(id) DO NOTHING`
	if _, err := r.db.Writer.ExecContext(ctx, insert, model.CredentialID, r.newToken()); err != nil {
		return "", fmt.Errorf("create token: %w: %w", model.ErrStorage, err)
	}

	token, err = r.storedToken(ctx)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", fmt.Errorf("create token: %w: row missing after insert", model.ErrStorage)
	}
	return token, nil
}

// FindByToken looks up the credential by exact token match.
// Returns (nil, nil) if the candidate does not match.
func (r *CredentialRepo) FindByToken(ctx context.Context, candidate string) (*model.Credential, error) {
	if candidate == "" {
		return nil, nil
	}

	const query = `SELECT token FROM credentials WHERE token = ? LIMIT 1`
	var cred model.Credential
	err := r.db.Reader.QueryRowContext(ctx, query, candidate).Scan(&cred.Token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find credential: %w: %w", model.ErrStorage, err)
	}
	return &cred, nil
}

// storedToken reads through the writer so a token inserted a moment ago is
// always visible. Returns "" when no row exists.
func (r *CredentialRepo) storedToken(ctx context.Context) (string, error) {
	const query = `SELECT token FROM credentials WHERE id = ?`
	var token string
	err := r.db.Writer.QueryRowContext(ctx, query, model.CredentialID).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token: %w: %w", model.ErrStorage, err)
	}
	return token, nil
}
