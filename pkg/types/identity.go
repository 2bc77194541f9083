package types

// Roles known to the credential table.
const (
	RoleAdmin      = "admin"
	RoleSuperadmin = "superadmin"
)

// Identity is the authenticated requester.
type Identity struct {
	UserID string `json:"user"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

// Authenticator checks a user id and secret against a credential source.
// It returns ErrNotAuthenticated when the pair does not match.
type Authenticator interface {
	Authenticate(id, secret string) (Identity, error)
}
