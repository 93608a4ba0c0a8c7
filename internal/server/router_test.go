package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/migrate"

	"github.com/agencyhq/agencyapi/internal/auth"
	"github.com/agencyhq/agencyapi/internal/clerk"
	"github.com/agencyhq/agencyapi/internal/db/bunx"
	"github.com/agencyhq/agencyapi/internal/db/models"
	"github.com/agencyhq/agencyapi/internal/migrations"
	"github.com/agencyhq/agencyapi/internal/repository"
	"github.com/agencyhq/agencyapi/internal/services/identity"
	"github.com/agencyhq/agencyapi/internal/services/org"
)

// stubClerk fakes the provider for router tests: it backs both the session
// verifier and the identity service.
type stubClerk struct {
	sessions map[string]*clerk.SessionInfo
	users    map[string]*clerk.UserRecord
}

func (s *stubClerk) VerifyToken(_ context.Context, token string) (*clerk.SessionInfo, error) {
	session, ok := s.sessions[token]
	if !ok {
		return nil, &clerk.AuthenticationError{Op: "verify token", StatusCode: 404}
	}
	return session, nil
}

func (s *stubClerk) GetUser(_ context.Context, userID string) *clerk.UserRecord {
	return s.users[userID]
}

func (s *stubClerk) LookupUser(_ context.Context, userID string) (*clerk.UserRecord, error) {
	record, ok := s.users[userID]
	if !ok {
		return nil, clerk.ErrUserNotFound
	}
	return record, nil
}

type harness struct {
	router    chi.Router
	org       *models.Organization
	alice     *models.User
	bob       *models.User
	orgs      repository.OrganizationRepository
	usersRepo repository.UserRepository
}

func setupHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	db, err := bunx.NewDB("file:"+strings.ReplaceAll(t.Name(), "/", "_")+"?mode=memory&cache=shared", 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	migrator := migrate.NewMigrator(db, migrations.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err = migrator.Migrate(ctx)
	require.NoError(t, err)

	users := repository.NewBunUserRepository(db)
	orgRepo := repository.NewBunOrganizationRepository(db)
	memberships := repository.NewBunMembershipRepository(db)

	provider := &stubClerk{
		sessions: map[string]*clerk.SessionInfo{
			"tok_admin": {ID: "sess_a", UserID: "c_admin", Status: "active"},
			"tok_plain": {ID: "sess_p", UserID: "c_plain", Status: "active"},
		},
		users: map[string]*clerk.UserRecord{
			"c_admin": {
				ID:    "c_admin",
				Email: "admin@example.com",
				PublicMetadata: map[string]any{
					"permissions": []any{ManageMembersPermission, "read"},
				},
			},
			"c_plain": {
				ID:             "c_plain",
				Email:          "plain@example.com",
				PublicMetadata: map[string]any{"permissions": []any{"read"}},
			},
		},
	}

	alice := &models.User{ClerkID: "c_alice", Email: "alice@example.com", Name: "Alice"}
	require.NoError(t, users.Create(ctx, alice))
	bob := &models.User{ClerkID: "c_bob", Email: "bob@example.com", Name: "Bob"}
	require.NoError(t, users.Create(ctx, bob))

	acme := &models.Organization{ClerkID: "org_acme", Name: "Acme", Slug: "acme"}
	require.NoError(t, orgRepo.Create(ctx, acme))

	orgService := org.NewService(orgRepo, memberships)
	adminRole := "admin"
	require.NoError(t, orgService.AddMember(ctx, acme.ID, alice.ID, org.MemberAttrs{
		Role:        &adminRole,
		Permissions: []string{"billing"},
		IsOwner:     true,
	}))
	require.NoError(t, orgService.AddMember(ctx, acme.ID, bob.ID, org.MemberAttrs{
		Status: models.MembershipStatusPending,
	}))

	router, err := NewRouter(RouterOptions{
		Verifier: auth.NewVerifier(provider, ""),
		Identity: identity.NewService(users, provider),
		Org:      orgService,
		LoginURL: "/login",
	})
	require.NoError(t, err)

	return &harness{router: router, org: acme, alice: alice, bob: bob, orgs: orgRepo, usersRepo: users}
}

func (h *harness) request(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	r := httptest.NewRequest(method, path, reader)
	r.Header.Set("Accept", "application/json")
	if body != "" {
		r.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		r.AddCookie(&http.Cookie{Name: auth.DefaultSessionCookie, Value: token})
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, r)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	h := setupHarness(t)
	w := h.request(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestMeEndpoints(t *testing.T) {
	h := setupHarness(t)

	t.Run("requires a session", func(t *testing.T) {
		w := h.request(t, http.MethodGet, "/api/me", "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"message":"Unauthenticated"}`, w.Body.String())
	})

	t.Run("returns identity with global permissions", func(t *testing.T) {
		w := h.request(t, http.MethodGet, "/api/me", "tok_plain", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"clerk_id":"c_plain"`)
		assert.Contains(t, w.Body.String(), `"permissions":["read"]`)
		// JIT provisioning took place, so a local row id is present
		assert.Contains(t, w.Body.String(), `"id":"`)
	})

	t.Run("sync merges provider permissions into the local row", func(t *testing.T) {
		w := h.request(t, http.MethodPost, "/api/me/sync", "tok_plain", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"permissions":["read"]`)
	})
}

func TestGetOrganization(t *testing.T) {
	h := setupHarness(t)

	t.Run("found by slug", func(t *testing.T) {
		w := h.request(t, http.MethodGet, "/api/orgs/acme", "tok_plain", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"slug":"acme"`)
		assert.Contains(t, w.Body.String(), `"active_member_count":1`)
	})

	t.Run("unknown slug is 404", func(t *testing.T) {
		w := h.request(t, http.MethodGet, "/api/orgs/nope", "tok_plain", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unauthenticated is rejected before lookup", func(t *testing.T) {
		w := h.request(t, http.MethodGet, "/api/orgs/acme", "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestMemberQueries(t *testing.T) {
	h := setupHarness(t)

	t.Run("default listing is the active members", func(t *testing.T) {
		w := h.request(t, http.MethodGet, "/api/orgs/acme/members", "tok_plain", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "alice@example.com")
		assert.NotContains(t, w.Body.String(), "bob@example.com")
	})

	t.Run("pending filter", func(t *testing.T) {
		w := h.request(t, http.MethodGet, "/api/orgs/acme/members?status=pending", "tok_plain", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "bob@example.com")
		assert.NotContains(t, w.Body.String(), "alice@example.com")
	})

	t.Run("role filter", func(t *testing.T) {
		w := h.request(t, http.MethodGet, "/api/orgs/acme/members?role=admin", "tok_plain", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "alice@example.com")
	})

	t.Run("owners", func(t *testing.T) {
		w := h.request(t, http.MethodGet, "/api/orgs/acme/owners", "tok_plain", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "alice@example.com")
		assert.NotContains(t, w.Body.String(), "bob@example.com")
	})

	t.Run("counts", func(t *testing.T) {
		w := h.request(t, http.MethodGet, "/api/orgs/acme/members/count", "tok_plain", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"count":1}`, w.Body.String())

		w = h.request(t, http.MethodGet, "/api/orgs/acme/members/count?role=admin", "tok_plain", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"count":1}`, w.Body.String())
	})

	t.Run("member detail carries the pivot attributes", func(t *testing.T) {
		w := h.request(t, http.MethodGet, "/api/orgs/acme/members/"+h.alice.ID, "tok_plain", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"role":"admin"`)
		assert.Contains(t, w.Body.String(), `"permissions":["billing"]`)
		assert.Contains(t, w.Body.String(), `"is_owner":true`)
	})

	t.Run("non-member detail is 404", func(t *testing.T) {
		w := h.request(t, http.MethodGet, "/api/orgs/acme/members/00000000-0000-0000-0000-000000000000", "tok_plain", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestMemberWrites(t *testing.T) {
	h := setupHarness(t)

	t.Run("writes require the manage permission", func(t *testing.T) {
		w := h.request(t, http.MethodPost, "/api/orgs/acme/members", "tok_plain",
			`{"user_id":"`+h.bob.ID+`"}`)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.JSONEq(t, `{"message":"Unauthorized"}`, w.Body.String())
	})

	t.Run("add member applies defaults", func(t *testing.T) {
		carol := &models.User{ClerkID: "c_carol", Email: "carol@example.com", Name: "Carol"}
		require.NoError(t, h.usersRepo.Create(context.Background(), carol))

		w := h.request(t, http.MethodPost, "/api/orgs/acme/members", "tok_admin",
			`{"user_id":"`+carol.ID+`"}`)
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"active"`)
		assert.Contains(t, w.Body.String(), `"role":null`)
		assert.Contains(t, w.Body.String(), `"permissions":[]`)
	})

	t.Run("add existing member overwrites attributes", func(t *testing.T) {
		w := h.request(t, http.MethodPost, "/api/orgs/acme/members", "tok_admin",
			`{"user_id":"`+h.bob.ID+`","role":"editor","status":"active","permissions":["publish"]}`)
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), `"role":"editor"`)
		assert.Contains(t, w.Body.String(), `"permissions":["publish"]`)
		assert.Contains(t, w.Body.String(), `"status":"active"`)
	})

	t.Run("missing user_id is rejected", func(t *testing.T) {
		w := h.request(t, http.MethodPost, "/api/orgs/acme/members", "tok_admin", `{"role":"editor"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("patch applies only the keys present", func(t *testing.T) {
		title := "/api/orgs/acme/members/" + h.alice.ID
		w := h.request(t, http.MethodPatch, title, "tok_admin", `{"title":"CTO"}`)
		require.Equal(t, http.StatusNoContent, w.Code)

		w = h.request(t, http.MethodGet, title, "tok_admin", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"title":"CTO"`)
		assert.Contains(t, w.Body.String(), `"role":"admin"`, "untouched field preserved")
	})

	t.Run("patch for a non-member is a silent no-op", func(t *testing.T) {
		w := h.request(t, http.MethodPatch,
			"/api/orgs/acme/members/00000000-0000-0000-0000-000000000000",
			"tok_admin", `{"title":"Ghost"}`)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		path := "/api/orgs/acme/members/" + h.bob.ID
		w := h.request(t, http.MethodDelete, path, "tok_admin", "")
		assert.Equal(t, http.StatusNoContent, w.Code)
		w = h.request(t, http.MethodDelete, path, "tok_admin", "")
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = h.request(t, http.MethodGet, path, "tok_admin", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestMetadataSync(t *testing.T) {
	h := setupHarness(t)
	ctx := context.Background()

	seeded, err := h.orgs.GetByID(ctx, h.org.ID)
	require.NoError(t, err)
	seeded.ClerkMetadata = models.MetadataMap{"tier": "free", "region": "us"}
	require.NoError(t, h.orgs.Update(ctx, seeded))

	w := h.request(t, http.MethodPost, "/api/orgs/acme/sync", "tok_admin", `{"tier":"pro"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"tier":"pro"`)
	assert.Contains(t, w.Body.String(), `"region":"us"`, "untouched key preserved")
}
