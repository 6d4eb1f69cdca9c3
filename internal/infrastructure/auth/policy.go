package auth

import (
	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/models"
	pkgerrors "github.com/bonjourjoel/lesechos-jabenhaim-backend/pkg/errors"
)

// RoleRequirement is the set of roles allowed on a route. An empty
// requirement admits any authenticated identity.
type RoleRequirement map[models.Role]struct{}

func Roles(roles ...models.Role) RoleRequirement {
	req := make(RoleRequirement, len(roles))
	for _, r := range roles {
		req[r] = struct{}{}
	}
	return req
}

func (r RoleRequirement) Allows(role models.Role) bool {
	if len(r) == 0 {
		return true
	}
	_, ok := r[role]
	return ok
}

// Authorize checks an identity against a role requirement.
func Authorize(req RoleRequirement, identity *models.Identity) error {
	if identity == nil {
		return pkgerrors.ErrUnauthorized
	}
	if !req.Allows(identity.Role) {
		return pkgerrors.ErrForbidden
	}
	return nil
}

// CanAccessUser is the self-or-admin rule.
func CanAccessUser(identity *models.Identity, targetID int64) error {
	if identity == nil {
		return pkgerrors.ErrUnauthorized
	}
	if identity.IsAdmin() || identity.UserID == targetID {
		return nil
	}
	return pkgerrors.ErrNotOwner
}

// CanAssignRole rejects granting ADMIN by anyone but an admin. identity may
// be nil for anonymous callers.
func CanAssignRole(identity *models.Identity, requested *models.Role) error {
	if requested == nil || *requested != models.RoleAdmin {
		return nil
	}
	if identity.IsAdmin() {
		return nil
	}
	return pkgerrors.ErrRoleEscalation
}
