package service

import (
	"fmt"

	"github.com/mesh-intelligence/seguimientos/pkg/types"
)

// AccessPolicy decides which documents a requester may see. A document is
// visible to its owner and to any requester holding an elevated role.
type AccessPolicy struct {
	ElevatedRoles []string
}

// DefaultPolicy grants unrestricted visibility to superadmin only.
func DefaultPolicy() AccessPolicy {
	return AccessPolicy{ElevatedRoles: []string{types.RoleSuperadmin}}
}

// Elevated reports whether role sees every document.
func (p AccessPolicy) Elevated(role string) bool {
	for _, r := range p.ElevatedRoles {
		if r == role {
			return true
		}
	}
	return false
}

// CanAccess reports whether who may see document id.
func (p AccessPolicy) CanAccess(who types.Identity, id types.DocumentID) bool {
	return who.UserID != "" && (id.Owner == who.UserID || p.Elevated(who.Role))
}

// authorize returns ErrNotAuthenticated for an anonymous requester and
// ErrForbidden when the document belongs to someone else.
func (p AccessPolicy) authorize(who types.Identity, id types.DocumentID) error {
	if who.UserID == "" {
		return types.ErrNotAuthenticated
	}
	if !p.CanAccess(who, id) {
		return fmt.Errorf("%w: document %s", types.ErrForbidden, id)
	}
	return nil
}
