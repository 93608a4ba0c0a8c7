package auth

import (
	"net/http"

	"github.com/agencyhq/agencyapi/internal/clerk"
)

// CheckPermissions resolves the request's current user and requires every
// listed permission to be present in the user's global permission metadata.
// Unauthenticated requests always fail. An empty requirement list passes for
// any authenticated user.
func (v *Verifier) CheckPermissions(r *http.Request, required ...string) bool {
	user := v.CurrentUser(r)
	if user == nil {
		return false
	}
	return HasAllPermissions(user, required)
}

// HasAllPermissions reports whether the user's permission list contains every
// entry of required. Matching is exact and order-independent; there are no
// wildcards or hierarchies.
func HasAllPermissions(user *clerk.UserRecord, required []string) bool {
	if user == nil {
		return false
	}
	granted := permissionSet(user)
	for _, permission := range required {
		if _, ok := granted[permission]; !ok {
			return false
		}
	}
	return true
}

// HasAnyPermission reports whether the user's permission list contains at
// least one entry of required. Usable outside a request context.
func HasAnyPermission(user *clerk.UserRecord, required []string) bool {
	if user == nil {
		return false
	}
	granted := permissionSet(user)
	for _, permission := range required {
		if _, ok := granted[permission]; ok {
			return true
		}
	}
	return false
}

func permissionSet(user *clerk.UserRecord) map[string]struct{} {
	permissions := user.Permissions()
	set := make(map[string]struct{}, len(permissions))
	for _, p := range permissions {
		set[p] = struct{}{}
	}
	return set
}
