package identity

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/agencyhq/agencyapi/internal/clerk"
	"github.com/agencyhq/agencyapi/internal/db/models"
	"github.com/agencyhq/agencyapi/internal/repository"
)

// userAPI is the slice of the Clerk client this service needs.
type userAPI interface {
	LookupUser(ctx context.Context, userID string) (*clerk.UserRecord, error)
}

// Service binds Clerk identities to local user rows: provisioning on first
// sight and syncing provider metadata on demand.
type Service struct {
	users repository.UserRepository
	api   userAPI
}

// NewService creates an identity service
func NewService(users repository.UserRepository, api userAPI) *Service {
	return &Service{users: users, api: api}
}

// ResolveLocalUser returns the local user row backing the Clerk record,
// creating it on first sight. Local rows are never deleted by this service.
func (s *Service) ResolveLocalUser(ctx context.Context, record *clerk.UserRecord) (*models.User, error) {
	if record == nil || record.ID == "" {
		return nil, fmt.Errorf("resolve local user: clerk record has no ID")
	}

	user, err := s.users.GetByClerkID(ctx, record.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("get user: %w", err)
	}

	newUser := &models.User{
		ClerkID: record.ID,
		Email:   record.Email,
		Name:    displayName(record),
	}
	if createErr := s.users.Create(ctx, newUser); createErr != nil {
		// A concurrent request may have provisioned the same identity;
		// the unique clerk_id index turns that race into a conflict here.
		user, lookupErr := s.users.GetByClerkID(ctx, record.ID)
		if lookupErr == nil {
			log.Printf("identity: provisioning race for %s resolved to existing user %s", record.ID, user.ID)
			return user, nil
		}
		return nil, fmt.Errorf("provision user: %w", createErr)
	}

	log.Printf("identity: provisioned local user for clerk id %s", record.ID)
	return newUser, nil
}

// SyncPermissions pulls the user's record from Clerk and merges its
// public-metadata permission list into the local metadata blob. The global
// list is independent of any organization-scoped membership permissions.
func (s *Service) SyncPermissions(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("sync permissions: %w", err)
	}

	record, err := s.api.LookupUser(ctx, user.ClerkID)
	if err != nil {
		return nil, fmt.Errorf("sync permissions for %s: %w", user.ClerkID, err)
	}

	user.ClerkMetadata = user.ClerkMetadata.Merge(models.MetadataMap{
		"permissions": record.Permissions(),
	})
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("sync permissions: %w", err)
	}
	return user, nil
}

func displayName(record *clerk.UserRecord) string {
	return strings.TrimSpace(strings.TrimSpace(record.FirstName) + " " + strings.TrimSpace(record.LastName))
}
