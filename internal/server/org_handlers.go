package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mitchellh/mapstructure"

	"github.com/agencyhq/agencyapi/internal/db/models"
	"github.com/agencyhq/agencyapi/internal/repository"
	"github.com/agencyhq/agencyapi/internal/services/org"
)

// OrganizationHandlers wires the organization and membership REST endpoints.
type OrganizationHandlers struct {
	service *org.Service
}

// NewOrganizationHandlers creates a handler set over the membership service.
func NewOrganizationHandlers(service *org.Service) *OrganizationHandlers {
	return &OrganizationHandlers{service: service}
}

// memberView is the membership payload carrying the full set of pivot
// attributes alongside the member's identity.
type memberView struct {
	UserID      string   `json:"user_id"`
	Email       string   `json:"email,omitempty"`
	Name        string   `json:"name,omitempty"`
	Role        *string  `json:"role"`
	Permissions []string `json:"permissions"`
	IsOwner     bool     `json:"is_owner"`
	Title       *string  `json:"title"`
	Status      string   `json:"status"`
}

func newMemberView(m *models.Membership) memberView {
	view := memberView{
		UserID:      m.UserID,
		Role:        m.Role,
		Permissions: m.Permissions,
		IsOwner:     m.IsOwner,
		Title:       m.Title,
		Status:      string(m.Status),
	}
	if view.Permissions == nil {
		view.Permissions = []string{}
	}
	if m.User != nil {
		view.Email = m.User.Email
		view.Name = m.User.Name
	}
	return view
}

func memberViews(memberships []models.Membership) []memberView {
	views := make([]memberView, len(memberships))
	for i := range memberships {
		views[i] = newMemberView(&memberships[i])
	}
	return views
}

// resolveOrg loads the organization addressed by the slug route parameter.
func (h *OrganizationHandlers) resolveOrg(ctx context.Context, w http.ResponseWriter, r *http.Request) (*models.Organization, bool) {
	slug := chi.URLParam(r, "slug")
	if slug == "" {
		respondError(w, http.StatusBadRequest, "slug is required")
		return nil, false
	}
	organization, err := h.service.GetBySlug(ctx, slug)
	if err != nil {
		respondRepositoryError(w, err)
		return nil, false
	}
	return organization, true
}

// GetOrganization handles GET /api/orgs/{slug}
func (h *OrganizationHandlers) GetOrganization(w http.ResponseWriter, r *http.Request) {
	organization, ok := h.resolveOrg(r.Context(), w, r)
	if !ok {
		return
	}

	count, err := h.service.ActiveMemberCount(r.Context(), organization.ID)
	if err != nil {
		respondRepositoryError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"id":                  organization.ID,
		"clerk_id":            organization.ClerkID,
		"name":                organization.Name,
		"slug":                organization.Slug,
		"metadata":            organization.ClerkMetadata,
		"active_member_count": count,
	})
}

// ListMembers handles GET /api/orgs/{slug}/members
// Optional filters: ?status=active|pending, ?role=<role>. Without filters it
// returns the active members.
func (h *OrganizationHandlers) ListMembers(w http.ResponseWriter, r *http.Request) {
	organization, ok := h.resolveOrg(r.Context(), w, r)
	if !ok {
		return
	}

	var (
		memberships []models.Membership
		err         error
	)
	switch {
	case r.URL.Query().Get("role") != "":
		memberships, err = h.service.MembersByRole(r.Context(), organization.ID, r.URL.Query().Get("role"))
	case r.URL.Query().Get("status") == string(models.MembershipStatusPending):
		memberships, err = h.service.PendingMembers(r.Context(), organization.ID)
	default:
		memberships, err = h.service.ActiveMembers(r.Context(), organization.ID)
	}
	if err != nil {
		respondRepositoryError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"members": memberViews(memberships)})
}

// ListOwners handles GET /api/orgs/{slug}/owners
func (h *OrganizationHandlers) ListOwners(w http.ResponseWriter, r *http.Request) {
	organization, ok := h.resolveOrg(r.Context(), w, r)
	if !ok {
		return
	}

	owners, err := h.service.Owners(r.Context(), organization.ID)
	if err != nil {
		respondRepositoryError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"owners": memberViews(owners)})
}

// CountMembers handles GET /api/orgs/{slug}/members/count
// With ?role=<role> it counts members holding that role, otherwise it counts
// active members.
func (h *OrganizationHandlers) CountMembers(w http.ResponseWriter, r *http.Request) {
	organization, ok := h.resolveOrg(r.Context(), w, r)
	if !ok {
		return
	}

	var (
		count int
		err   error
	)
	if role := r.URL.Query().Get("role"); role != "" {
		count, err = h.service.MemberCountByRole(r.Context(), organization.ID, role)
	} else {
		count, err = h.service.ActiveMemberCount(r.Context(), organization.ID)
	}
	if err != nil {
		respondRepositoryError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"count": count})
}

// GetMember handles GET /api/orgs/{slug}/members/{userID}
func (h *OrganizationHandlers) GetMember(w http.ResponseWriter, r *http.Request) {
	organization, ok := h.resolveOrg(r.Context(), w, r)
	if !ok {
		return
	}

	membership, err := h.service.GetMember(r.Context(), organization.ID, chi.URLParam(r, "userID"))
	if err != nil {
		respondRepositoryError(w, err)
		return
	}
	if membership == nil {
		respondError(w, http.StatusNotFound, "Not Found")
		return
	}
	respondJSON(w, http.StatusOK, newMemberView(membership))
}

// AddMember handles POST /api/orgs/{slug}/members
//
// The body carries user_id plus optional membership attributes; omitted
// attributes take the defaults (no role, no permissions, active). Posting an
// existing member overwrites the membership attributes.
func (h *OrganizationHandlers) AddMember(w http.ResponseWriter, r *http.Request) {
	organization, ok := h.resolveOrg(r.Context(), w, r)
	if !ok {
		return
	}

	body, err := decodeJSONBody(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	userID, _ := body["user_id"].(string)
	if userID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	delete(body, "user_id")

	var attrs org.MemberAttrs
	if err := mapstructure.Decode(body, &attrs); err != nil {
		respondError(w, http.StatusBadRequest, "invalid membership attributes")
		return
	}

	if err := h.service.AddMember(r.Context(), organization.ID, userID, attrs); err != nil {
		respondRepositoryError(w, err)
		return
	}

	membership, err := h.service.GetMember(r.Context(), organization.ID, userID)
	if err != nil || membership == nil {
		respondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	respondJSON(w, http.StatusCreated, newMemberView(membership))
}

// UpdateMember handles PATCH /api/orgs/{slug}/members/{userID}
//
// Only keys present in the body are applied. Updating a user who is not a
// member is a silent no-op, mirroring the store semantics.
func (h *OrganizationHandlers) UpdateMember(w http.ResponseWriter, r *http.Request) {
	organization, ok := h.resolveOrg(r.Context(), w, r)
	if !ok {
		return
	}

	body, err := decodeJSONBody(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var patch repository.MembershipPatch
	if err := mapstructure.Decode(body, &patch); err != nil {
		respondError(w, http.StatusBadRequest, "invalid membership attributes")
		return
	}

	if err := h.service.UpdateMember(r.Context(), organization.ID, chi.URLParam(r, "userID"), patch); err != nil {
		respondRepositoryError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveMember handles DELETE /api/orgs/{slug}/members/{userID}
// Removal is idempotent; deleting a non-member succeeds.
func (h *OrganizationHandlers) RemoveMember(w http.ResponseWriter, r *http.Request) {
	organization, ok := h.resolveOrg(r.Context(), w, r)
	if !ok {
		return
	}

	if err := h.service.RemoveMember(r.Context(), organization.ID, chi.URLParam(r, "userID")); err != nil {
		respondRepositoryError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SyncMetadata handles POST /api/orgs/{slug}/sync
// The body is merged shallowly into the organization's provider metadata;
// existing keys not present in the body are preserved.
func (h *OrganizationHandlers) SyncMetadata(w http.ResponseWriter, r *http.Request) {
	organization, ok := h.resolveOrg(r.Context(), w, r)
	if !ok {
		return
	}

	body, err := decodeJSONBody(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.service.SyncMetadata(r.Context(), organization.ID, models.MetadataMap(body)); err != nil {
		respondRepositoryError(w, err)
		return
	}

	updated, err := h.service.GetBySlug(r.Context(), organization.Slug)
	if err != nil {
		respondRepositoryError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"metadata": updated.ClerkMetadata})
}
