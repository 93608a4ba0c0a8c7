package clerk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/agencyhq/agencyapi/internal/config"
)

const (
	// userCacheTTL is how long a fetched user record stays valid.
	// Entries expire independently per key; there is no invalidation on
	// upstream changes other than TTL expiry or an explicit overwrite.
	userCacheTTL = 5 * time.Minute

	// userCacheSize bounds the number of cached user records
	userCacheSize = 1024

	// defaultTimeout bounds each outbound call when config does not set one
	defaultTimeout = 10 * time.Second
)

// SessionInfo is the result of verifying a session token against Clerk.
type SessionInfo struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Status string `json:"status"`
}

// UserRecord is a Clerk user object. Only the fields this service reads are
// mapped; PublicMetadata carries the application-level permission list.
type UserRecord struct {
	ID             string         `json:"id"`
	Email          string         `json:"email_address"`
	FirstName      string         `json:"first_name"`
	LastName       string         `json:"last_name"`
	PublicMetadata map[string]any `json:"public_metadata"`
}

// Permissions returns the permission list from public metadata, or an empty
// slice when absent or malformed.
func (u *UserRecord) Permissions() []string {
	if u == nil || u.PublicMetadata == nil {
		return []string{}
	}
	raw, ok := u.PublicMetadata["permissions"]
	if !ok {
		return []string{}
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		perms := make([]string, 0, len(v))
		for _, p := range v {
			if s, ok := p.(string); ok {
				perms = append(perms, s)
			}
		}
		return perms
	default:
		return []string{}
	}
}

// Client talks to the Clerk backend API and caches user lookups.
// Construct one per process and pass it by reference into the session
// verifier and middleware; it is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
	userCache  *expirable.LRU[string, *UserRecord]
}

// NewClient creates a Clerk API client from configuration.
func NewClient(cfg config.ClerkConfig) *Client {
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.APIURL, "/"),
		secretKey:  cfg.SecretKey,
		userCache:  expirable.NewLRU[string, *UserRecord](userCacheSize, nil, userCacheTTL),
	}
}

// VerifyToken validates a session token against Clerk's verification endpoint.
// Any transport failure or non-2xx response is returned as an
// *AuthenticationError wrapping the cause.
func (c *Client) VerifyToken(ctx context.Context, token string) (*SessionInfo, error) {
	body, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return nil, &AuthenticationError{Op: "verify token", Err: err}
	}

	var session SessionInfo
	if err := c.do(ctx, http.MethodPost, "tokens/verify", body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// LookupUser fetches a user record from Clerk, bypassing the cache.
// Outcomes are distinguishable: (record, nil) when found, ErrUserNotFound when
// Clerk reports 404, and *AuthenticationError for transport or server failures.
func (c *Client) LookupUser(ctx context.Context, userID string) (*UserRecord, error) {
	var user UserRecord
	if err := c.do(ctx, http.MethodGet, "users/"+userID, nil, &user); err != nil {
		var authErr *AuthenticationError
		if errors.As(err, &authErr) && authErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("user %s: %w", userID, ErrUserNotFound)
		}
		return nil, err
	}
	return &user, nil
}

// GetUser returns the user record for userID, serving from a 5-minute TTL
// cache when possible. All failure modes collapse to nil: callers cannot tell
// "does not exist" from "lookup failed". Use LookupUser where that matters.
//
// Nothing is cached on failure, so the next call retries the API.
func (c *Client) GetUser(ctx context.Context, userID string) *UserRecord {
	cacheKey := "user:" + userID
	if user, ok := c.userCache.Get(cacheKey); ok {
		return user
	}

	// The fetch and cache write run to completion even if the caller's
	// request is cancelled mid-flight, so a concurrent request a moment
	// later gets a populated cache instead of a second upstream call.
	user, err := c.LookupUser(context.WithoutCancel(ctx), userID)
	if err != nil {
		log.Printf("clerk: user lookup for %s failed: %v", userID, err)
		return nil
	}

	c.userCache.Add(cacheKey, user)
	return user
}

// do performs a single API call with bearer authorization and decodes the
// JSON response into out. No retries.
func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	op := fmt.Sprintf("%s %s", method, endpoint)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+endpoint, reader)
	if err != nil {
		return &AuthenticationError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &AuthenticationError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &AuthenticationError{Op: op, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &AuthenticationError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
