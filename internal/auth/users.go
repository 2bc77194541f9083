// Package auth authenticates requesters against a configured credential
// table and keeps their login sessions in SQLite.
package auth

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/mesh-intelligence/seguimientos/pkg/types"
)

// User is one entry of the credential table, as read from config.yaml.
type User struct {
	ID           string `mapstructure:"id" yaml:"id"`
	Name         string `mapstructure:"name" yaml:"name"`
	Role         string `mapstructure:"role" yaml:"role"`
	PasswordHash string `mapstructure:"password_hash" yaml:"password_hash"`
}

// StaticAuthenticator checks passwords against bcrypt hashes held in memory.
type StaticAuthenticator struct {
	users map[string]User
}

var _ types.Authenticator = (*StaticAuthenticator)(nil)

// dummyHash is compared when the user id is unknown so both failure paths
// cost one bcrypt comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("seguimientos"), bcrypt.MinCost)

// NewStaticAuthenticator builds the credential table. Every user needs an id
// that can own documents and a password hash; a repeated id returns
// ErrDuplicateUser.
func NewStaticAuthenticator(users []User) (*StaticAuthenticator, error) {
	table := make(map[string]User, len(users))
	for i, u := range users {
		u.ID = strings.TrimSpace(u.ID)
		if u.ID == "" {
			return nil, fmt.Errorf("%w: user %d has no id", types.ErrInvalidInput, i)
		}
		if err := types.ValidateOwner(u.ID); err != nil {
			return nil, fmt.Errorf("user %d: %w", i, err)
		}
		if u.PasswordHash == "" {
			return nil, fmt.Errorf("%w: user %s has no password_hash", types.ErrInvalidInput, u.ID)
		}
		if _, ok := table[u.ID]; ok {
			return nil, fmt.Errorf("%w: %s", types.ErrDuplicateUser, u.ID)
		}
		if u.Name == "" {
			u.Name = u.ID
		}
		table[u.ID] = u
	}
	return &StaticAuthenticator{users: table}, nil
}

// Authenticate implements types.Authenticator.
func (a *StaticAuthenticator) Authenticate(id, secret string) (types.Identity, error) {
	u, ok := a.users[strings.TrimSpace(id)]
	hash := dummyHash
	if ok {
		hash = []byte(u.PasswordHash)
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(secret)); err != nil || !ok {
		return types.Identity{}, types.ErrNotAuthenticated
	}
	return types.Identity{UserID: u.ID, Name: u.Name, Role: u.Role}, nil
}

// Len returns the number of configured users.
func (a *StaticAuthenticator) Len() int {
	return len(a.users)
}

// HashPassword returns the bcrypt hash stored in the password_hash field.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("%w: password must not be empty", types.ErrInvalidInput)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
