package auth

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/seguimientos/pkg/types"
)

//go:embed schema.sql
var schemaSQL string

// DefaultSessionTTL is the lifetime of a login session.
const DefaultSessionTTL = time.Hour

// Session is an issued login session.
type Session struct {
	Token     string
	Identity  types.Identity
	ExpiresAt time.Time
}

// SessionStore keeps login sessions in a SQLite database so they survive a
// restart. It is safe for concurrent use.
type SessionStore struct {
	mu       sync.RWMutex
	attached bool
	db       *sql.DB
	ttl      time.Duration
	now      func() time.Time
}

// SessionOption configures a SessionStore.
type SessionOption func(*SessionStore)

// WithTTL sets the session lifetime.
func WithTTL(ttl time.Duration) SessionOption {
	return func(s *SessionStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithSessionClock overrides the clock used for expiry.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *SessionStore) { s.now = now }
}

// NewSessionStore creates a detached session store. Call Attach before use.
func NewSessionStore(opts ...SessionOption) *SessionStore {
	s := &SessionStore{ttl: DefaultSessionTTL, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the session lifetime.
func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

// Attach opens (creating if needed) the database at path and applies the
// schema. Returns ErrAlreadyAttached if already attached.
func (s *SessionStore) Attach(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attached {
		return types.ErrAlreadyAttached
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open session database: %w", err)
	}
	// One connection serializes writers and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return fmt.Errorf("apply session schema: %w", err)
	}

	s.db = db
	s.attached = true
	return nil
}

// Detach closes the database. Detach is idempotent.
func (s *SessionStore) Detach() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attached {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return err
	}
	s.db = nil
	s.attached = false
	return nil
}

// Create issues a session for identity.
func (s *SessionStore) Create(identity types.Identity) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.attached {
		return Session{}, types.ErrDetached
	}
	if identity.UserID == "" {
		return Session{}, fmt.Errorf("%w: session needs a user id", types.ErrInvalidInput)
	}

	now := s.now()
	sess := Session{
		Token:     generateToken(),
		Identity:  identity,
		ExpiresAt: now.Add(s.ttl),
	}
	_, err := s.db.Exec(
		`INSERT INTO sessions (token, user_id, name, role, created_at, expires_at) VALUES (?, ?, ?, ?, ?, ?)`,
		sess.Token, identity.UserID, identity.Name, identity.Role, now.UnixNano(), sess.ExpiresAt.UnixNano(),
	)
	if err != nil {
		return Session{}, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

// Lookup returns the identity of a live session. Unknown and expired tokens
// return ErrNotAuthenticated; an expired row is deleted on the way.
func (s *SessionStore) Lookup(token string) (types.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.attached {
		return types.Identity{}, types.ErrDetached
	}
	if token == "" {
		return types.Identity{}, types.ErrNotAuthenticated
	}

	var (
		id        types.Identity
		expiresAt int64
	)
	err := s.db.QueryRow(
		`SELECT user_id, name, role, expires_at FROM sessions WHERE token = ?`, token,
	).Scan(&id.UserID, &id.Name, &id.Role, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Identity{}, types.ErrNotAuthenticated
	}
	if err != nil {
		return types.Identity{}, fmt.Errorf("query session: %w", err)
	}

	if s.now().UnixNano() >= expiresAt {
		if _, err := s.db.Exec(`DELETE FROM sessions WHERE token = ?`, token); err != nil {
			return types.Identity{}, fmt.Errorf("delete expired session: %w", err)
		}
		return types.Identity{}, types.ErrNotAuthenticated
	}
	return id, nil
}

// Delete removes a session. Deleting an unknown token is not an error.
func (s *SessionStore) Delete(token string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.attached {
		return types.ErrDetached
	}
	if _, err := s.db.Exec(`DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeExpired deletes every expired session and returns how many went.
func (s *SessionStore) PurgeExpired() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.attached {
		return 0, types.ErrDetached
	}
	res, err := s.db.Exec(`DELETE FROM sessions WHERE expires_at <= ?`, s.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return res.RowsAffected()
}

// generateToken returns a random (v4) UUID.
func generateToken() string {
	return uuid.NewString()
}
