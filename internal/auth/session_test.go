package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agencyhq/agencyapi/internal/clerk"
)

// stubAPI fakes the Clerk client for verifier tests
type stubAPI struct {
	sessions    map[string]*clerk.SessionInfo
	users       map[string]*clerk.UserRecord
	verifyCalls int
	userCalls   int
}

func (s *stubAPI) VerifyToken(_ context.Context, token string) (*clerk.SessionInfo, error) {
	s.verifyCalls++
	session, ok := s.sessions[token]
	if !ok {
		return nil, &clerk.AuthenticationError{Op: "verify token", StatusCode: 404}
	}
	return session, nil
}

func (s *stubAPI) GetUser(_ context.Context, userID string) *clerk.UserRecord {
	s.userCalls++
	return s.users[userID]
}

func newStub() *stubAPI {
	return &stubAPI{
		sessions: map[string]*clerk.SessionInfo{
			"tok_valid": {ID: "sess_1", UserID: "u1", Status: "active"},
			"tok_ghost": {ID: "sess_2", UserID: "", Status: "active"},
			"tok_gone":  {ID: "sess_3", UserID: "u_gone", Status: "active"},
		},
		users: map[string]*clerk.UserRecord{
			"u1": {
				ID: "u1",
				PublicMetadata: map[string]any{
					"permissions": []any{"read"},
				},
			},
		},
	}
}

func requestWithCookie(token string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		r.AddCookie(&http.Cookie{Name: DefaultSessionCookie, Value: token})
	}
	return r
}

func TestSessionToken(t *testing.T) {
	v := NewVerifier(newStub(), "")

	assert.Equal(t, "tok_valid", v.SessionToken(requestWithCookie("tok_valid")))
	assert.Equal(t, "", v.SessionToken(requestWithCookie("")))

	t.Run("custom cookie name", func(t *testing.T) {
		custom := NewVerifier(newStub(), "my_session")
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: "my_session", Value: "tok_valid"})
		assert.Equal(t, "tok_valid", custom.SessionToken(r))
		assert.Equal(t, "", custom.SessionToken(requestWithCookie("tok_valid")))
	})
}

func TestVerifySession(t *testing.T) {
	stub := newStub()
	v := NewVerifier(stub, "")

	assert.True(t, v.VerifySession(requestWithCookie("tok_valid")))
	assert.False(t, v.VerifySession(requestWithCookie("tok_bogus")))
	assert.False(t, v.VerifySession(requestWithCookie("")))

	// A session with no resolvable user still verifies
	assert.True(t, v.VerifySession(requestWithCookie("tok_ghost")))
}

func TestResolveSession(t *testing.T) {
	v := NewVerifier(newStub(), "")

	t.Run("verified with user", func(t *testing.T) {
		verified, user := v.ResolveSession(requestWithCookie("tok_valid"))
		assert.True(t, verified)
		require.NotNil(t, user)
		assert.Equal(t, "u1", user.ID)
	})

	t.Run("unverifiable token", func(t *testing.T) {
		verified, user := v.ResolveSession(requestWithCookie("tok_bogus"))
		assert.False(t, verified)
		assert.Nil(t, user)
	})

	t.Run("verified but user gone", func(t *testing.T) {
		verified, user := v.ResolveSession(requestWithCookie("tok_gone"))
		assert.True(t, verified)
		assert.Nil(t, user)
	})
}

func TestCurrentUser(t *testing.T) {
	t.Run("valid chain", func(t *testing.T) {
		v := NewVerifier(newStub(), "")
		user := v.CurrentUser(requestWithCookie("tok_valid"))
		require.NotNil(t, user)
		assert.Equal(t, "u1", user.ID)
	})

	t.Run("all failure paths collapse to nil", func(t *testing.T) {
		v := NewVerifier(newStub(), "")
		assert.Nil(t, v.CurrentUser(requestWithCookie("")), "no cookie")
		assert.Nil(t, v.CurrentUser(requestWithCookie("tok_bogus")), "failed verification")
		assert.Nil(t, v.CurrentUser(requestWithCookie("tok_ghost")), "session without user id")
		assert.Nil(t, v.CurrentUser(requestWithCookie("tok_gone")), "user lookup miss")
	})

	t.Run("context memoization skips the provider", func(t *testing.T) {
		stub := newStub()
		v := NewVerifier(stub, "")

		r := requestWithCookie("tok_valid")
		resolved := v.CurrentUser(r)
		require.NotNil(t, resolved)
		callsAfterFirst := stub.verifyCalls

		memoized := r.WithContext(SetCurrentUserContext(r.Context(), resolved))
		again := v.CurrentUser(memoized)
		assert.Equal(t, resolved, again)
		assert.Equal(t, callsAfterFirst, stub.verifyCalls, "expected no extra verification")
	})

	t.Run("memoized nil stays nil", func(t *testing.T) {
		stub := newStub()
		v := NewVerifier(stub, "")

		r := requestWithCookie("tok_valid")
		r = r.WithContext(SetCurrentUserContext(r.Context(), nil))
		assert.Nil(t, v.CurrentUser(r))
		assert.Zero(t, stub.verifyCalls)
	})
}
