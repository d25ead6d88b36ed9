// Package repository provides a SQLite-backed session store. It satisfies
// the same contract as the in-memory registry, so the backing store can be
// swapped at startup without touching the relay or the HTTP handlers.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/pairpad/backend/internal/model"
)

// SessionStore provides SQLite-backed session storage.
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore creates a SessionStore on top of an opened database.
func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

// Create inserts a session with a fresh uuid and default contents.
func (s *SessionStore) Create(ctx context.Context) (*model.Session, error) {
	session := model.NewSession(uuid.New().String())

	query := `INSERT INTO sessions (id, code, language, created_at) VALUES (?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, session.ID, session.Code, session.Language, session.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

// GetOrCreate returns the session for id, inserting it with defaults if
// absent. INSERT OR IGNORE keeps vivification idempotent even when two
// requests race on the same unknown id.
func (s *SessionStore) GetOrCreate(ctx context.Context, id string) (*model.Session, error) {
	fresh := model.NewSession(id)

	insert := `INSERT OR IGNORE INTO sessions (id, code, language, created_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, insert, fresh.ID, fresh.Code, fresh.Language, fresh.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to vivify session: %w", err)
	}

	return s.getByID(ctx, id)
}

// getByID retrieves an existing session by its id.
func (s *SessionStore) getByID(ctx context.Context, id string) (*model.Session, error) {
	query := `SELECT id, code, language, created_at FROM sessions WHERE id = ?`

	session := &model.Session{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&session.ID,
		&session.Code,
		&session.Language,
		&session.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, model.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

// SetCode overwrites the code of an existing session. Unknown ids update
// zero rows, matching the in-memory no-op behavior.
func (s *SessionStore) SetCode(ctx context.Context, id, code string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET code = ? WHERE id = ?`, code, id)
	if err != nil {
		return fmt.Errorf("failed to set code: %w", err)
	}
	return nil
}

// SetLanguage overwrites the language of an existing session.
func (s *SessionStore) SetLanguage(ctx context.Context, id, language string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET language = ? WHERE id = ?`, language, id)
	if err != nil {
		return fmt.Errorf("failed to set language: %w", err)
	}
	return nil
}

// Exists reports whether id has been vivified.
func (s *SessionStore) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check session: %w", err)
	}
	return true, nil
}
