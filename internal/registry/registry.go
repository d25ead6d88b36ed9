// Package registry provides the session store: one canonical record per
// session id, created lazily, mutated last-write-wins.
package registry

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/pairpad/backend/internal/model"
)

// Store is the session storage contract shared by the in-memory registry
// and the optional SQLite-backed repository. Mutations are unconditional
// overwrites; SetCode and SetLanguage are no-ops for ids that were never
// vivified, which is the guard the relay relies on via Exists.
type Store interface {
	// Create allocates a fresh id, stores a session with defaults and
	// returns a copy of it.
	Create(ctx context.Context) (*model.Session, error)

	// GetOrCreate returns a copy of the session for id, creating it with
	// defaults if absent. Vivification is idempotent: a second call for
	// the same id returns the same record.
	GetOrCreate(ctx context.Context, id string) (*model.Session, error)

	// SetCode overwrites the stored code for an existing session.
	SetCode(ctx context.Context, id, code string) error

	// SetLanguage overwrites the stored language tag for an existing
	// session. Any string is accepted; there is no known-language set.
	SetLanguage(ctx context.Context, id, language string) error

	// Exists reports whether id has been vivified.
	Exists(ctx context.Context, id string) (bool, error)
}

// Registry is the in-memory Store. A single RWMutex serializes access to
// the map, which reproduces the per-event atomicity the relay assumes.
// Sessions live for the lifetime of the process; there is no eviction.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		sessions: make(map[string]*model.Session),
	}
}

// Create allocates a fresh uuid, stores a session with defaults and returns
// a copy. It never fails.
func (r *Registry) Create(_ context.Context) (*model.Session, error) {
	session := model.NewSession(uuid.New().String())

	r.mu.Lock()
	r.sessions[session.ID] = session
	r.mu.Unlock()

	return session.Clone(), nil
}

// GetOrCreate returns a copy of the session for id, vivifying it with
// defaults if absent. It never fails.
func (r *Registry) GetOrCreate(_ context.Context, id string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		session = model.NewSession(id)
		r.sessions[id] = session
	}
	return session.Clone(), nil
}

// SetCode overwrites the code of an existing session. Unknown ids are a
// no-op: mutation never vivifies.
func (r *Registry) SetCode(_ context.Context, id, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session, ok := r.sessions[id]; ok {
		session.Code = code
	}
	return nil
}

// SetLanguage overwrites the language of an existing session. Unknown ids
// are a no-op.
func (r *Registry) SetLanguage(_ context.Context, id, language string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session, ok := r.sessions[id]; ok {
		session.Language = language
	}
	return nil
}

// Exists reports whether id has been vivified.
func (r *Registry) Exists(_ context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.sessions[id]
	return ok, nil
}

// Len returns the number of stored sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
