package auth

import (
	"context"
	"log"
	"net/http"

	"github.com/agencyhq/agencyapi/internal/clerk"
)

// DefaultSessionCookie is the cookie Clerk sets on the application domain.
const DefaultSessionCookie = "__session"

// sessionAPI is the slice of the Clerk client the verifier needs.
type sessionAPI interface {
	VerifyToken(ctx context.Context, token string) (*clerk.SessionInfo, error)
	GetUser(ctx context.Context, userID string) *clerk.UserRecord
}

// Verifier resolves inbound requests to Clerk users via the session cookie.
//
// Every failure path of CurrentUser collapses to nil: no cookie, failed
// verification, a session without a user id, and a failed user lookup all
// look the same to callers. That mirrors the provider contract, where the
// session cookie is the only signal the browser sends.
type Verifier struct {
	api        sessionAPI
	cookieName string
}

// NewVerifier creates a session verifier reading the named cookie.
// An empty cookieName falls back to DefaultSessionCookie.
func NewVerifier(api sessionAPI, cookieName string) *Verifier {
	if cookieName == "" {
		cookieName = DefaultSessionCookie
	}
	return &Verifier{api: api, cookieName: cookieName}
}

// SessionToken reads the session token from the request cookie.
// A missing cookie is not an error; it returns the empty string.
func (v *Verifier) SessionToken(r *http.Request) string {
	cookie, err := r.Cookie(v.cookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// VerifySession reports whether the request carries a verifiable session
// token. It does not require the session to resolve to a user record.
func (v *Verifier) VerifySession(r *http.Request) bool {
	token := v.SessionToken(r)
	if token == "" {
		return false
	}
	if _, err := v.api.VerifyToken(r.Context(), token); err != nil {
		log.Printf("auth: session verification failed: %v", err)
		return false
	}
	return true
}

// CurrentUser resolves the request to a Clerk user record, or nil.
//
// Resolution is memoized per request scope: when the gatekeeper middleware
// has already resolved this request, the stored record is returned without
// touching the provider again.
func (v *Verifier) CurrentUser(r *http.Request) *clerk.UserRecord {
	if user, ok := CurrentUserFromContext(r.Context()); ok {
		return user
	}
	return v.resolve(r)
}

// resolve performs the full token-verify + user-lookup chain.
func (v *Verifier) resolve(r *http.Request) *clerk.UserRecord {
	_, user := v.ResolveSession(r)
	return user
}

// ResolveSession runs the verification chain once and reports both whether
// the session token verified and the user it resolved to. A verified session
// can still yield a nil user when the provider no longer has the record;
// callers that gate requests treat the two failures differently.
func (v *Verifier) ResolveSession(r *http.Request) (bool, *clerk.UserRecord) {
	token := v.SessionToken(r)
	if token == "" {
		return false, nil
	}

	session, err := v.api.VerifyToken(r.Context(), token)
	if err != nil {
		log.Printf("auth: session verification failed: %v", err)
		return false, nil
	}
	if session.UserID == "" {
		return true, nil
	}

	return true, v.api.GetUser(r.Context(), session.UserID)
}
