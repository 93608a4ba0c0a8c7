package middleware

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/agencyhq/agencyapi/internal/auth"
	"github.com/agencyhq/agencyapi/internal/services/identity"
)

// GatekeeperDependencies bundles collaborators required by the session gatekeeper.
type GatekeeperDependencies struct {
	Verifier *auth.Verifier
	Identity *identity.Service // optional; provisions local user rows when set
	LoginURL string            // browser redirect target for unauthenticated requests
}

// NewRequireSession constructs a middleware that rejects requests without a
// verifiable session. The resolved user is stored on the request context so
// downstream permission checks and handlers never touch the provider again.
//
// Unauthenticated requests get a 401 JSON body when the client expects JSON,
// otherwise a redirect to the configured login URL. A verified session whose
// user record cannot be loaded fails closed with a distinct 401 and never
// redirects: re-authenticating would not fix it.
func NewRequireSession(deps GatekeeperDependencies) (func(http.Handler) http.Handler, error) {
	if deps.Verifier == nil {
		return nil, errors.New("session gatekeeper requires a verifier")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			verified, user := deps.Verifier.ResolveSession(r)
			if !verified {
				unauthenticated(w, r, deps.LoginURL)
				return
			}
			if user == nil {
				log.Printf("gatekeeper: verified session with no resolvable user for %s %s", r.Method, r.URL.Path)
				writeJSONError(w, http.StatusUnauthorized, "User not found")
				return
			}

			ctx := auth.SetCurrentUserContext(r.Context(), user)
			if deps.Identity != nil {
				local, err := deps.Identity.ResolveLocalUser(ctx, user)
				if err != nil {
					log.Printf("gatekeeper: local user provisioning failed for %s: %v", user.ID, err)
				} else {
					ctx = auth.SetLocalUserIDContext(ctx, local.ID)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}, nil
}

// RequirePermissions constructs a middleware that requires every listed
// permission on the current user's global permission list. Mount it behind
// NewRequireSession; requests that skipped the gatekeeper are rejected as
// unauthenticated rather than resolved again.
func RequirePermissions(verifier *auth.Verifier, required ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := verifier.CurrentUser(r)
			if user == nil {
				unauthenticated(w, r, "")
				return
			}
			if !auth.HasAllPermissions(user, required) {
				writeJSONError(w, http.StatusForbidden, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthenticated(w http.ResponseWriter, r *http.Request, loginURL string) {
	if loginURL != "" && !expectsJSON(r) {
		http.Redirect(w, r, loginURL, http.StatusFound)
		return
	}
	writeJSONError(w, http.StatusUnauthorized, "Unauthenticated")
}

// expectsJSON mirrors the usual browser/API split: an Accept header asking
// for JSON, or an XHR marker, means the client can handle a JSON error body.
func expectsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	if strings.Contains(accept, "/json") || strings.Contains(accept, "+json") {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Requested-With"), "XMLHttpRequest")
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"message": message}); err != nil {
		log.Printf("gatekeeper: writing error response: %v", err)
	}
}
