package server

import (
	"net/http"

	"github.com/agencyhq/agencyapi/internal/auth"
	"github.com/agencyhq/agencyapi/internal/services/identity"
)

// currentUserView is the whoami payload: the provider identity plus the
// user's global permission list.
type currentUserView struct {
	ID          string   `json:"id,omitempty"` // local row id, empty when provisioning is disabled
	ClerkID     string   `json:"clerk_id"`
	Email       string   `json:"email"`
	FirstName   string   `json:"first_name,omitempty"`
	LastName    string   `json:"last_name,omitempty"`
	Permissions []string `json:"permissions"`
}

// HandleMe returns the authenticated caller's identity. It reads the record
// the gatekeeper stored on the context and never calls the provider itself.
func HandleMe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.CurrentUserFromContext(r.Context())
		if !ok || user == nil {
			respondError(w, http.StatusUnauthorized, "Unauthenticated")
			return
		}

		view := currentUserView{
			ClerkID:     user.ID,
			Email:       user.Email,
			FirstName:   user.FirstName,
			LastName:    user.LastName,
			Permissions: user.Permissions(),
		}
		if localID, ok := auth.LocalUserIDFromContext(r.Context()); ok {
			view.ID = localID
		}
		respondJSON(w, http.StatusOK, view)
	}
}

// HandleMeSync re-reads the caller's record from the provider and merges its
// permission list into the local user row.
func HandleMeSync(svc *identity.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		localID, ok := auth.LocalUserIDFromContext(r.Context())
		if !ok {
			respondError(w, http.StatusUnauthorized, "User not found")
			return
		}

		user, err := svc.SyncPermissions(r.Context(), localID)
		if err != nil {
			respondRepositoryError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"id":          user.ID,
			"clerk_id":    user.ClerkID,
			"permissions": user.Permissions(),
		})
	}
}
