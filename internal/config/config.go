package config

import (
	"fmt"
	"os"
	"strings"
)

// Config holds the application configuration
type Config struct {
	// Database connection string (DSN)
	DatabaseURL string

	// Server bind address (host:port)
	ServerAddr string

	// Base URL the server is reachable at
	ServerURL string

	// Maximum database connection pool size
	MaxDBConnections int

	// Enable debug logging
	Debug bool

	// Clerk identity provider configuration
	Clerk ClerkConfig

	// LoginURL is where unauthenticated browser requests are redirected
	LoginURL string
}

// ClerkConfig holds credentials and endpoints for the Clerk backend API.
//
// The secret key authorizes server-side API calls (token verification, user
// lookup). The publishable key is never sent to Clerk from this service; it is
// validated here so misconfiguration surfaces at startup rather than in the
// frontend that consumes it.
type ClerkConfig struct {
	// SecretKey is the server-side API key ("sk_..." prefix)
	SecretKey string

	// PublishableKey is the frontend key ("pk_..." prefix)
	PublishableKey string

	// APIURL is the Clerk backend API base URL
	APIURL string

	// SessionCookie is the name of the cookie carrying the session token
	SessionCookie string

	// TimeoutSeconds bounds each outbound API call. Zero retries: retrying a
	// token verification could mask a revoked session.
	TimeoutSeconds int
}

// Load reads configuration from environment variables with fallback defaults
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:      getEnv("DATABASE_URL", "file:agency.db"),
		ServerAddr:       getEnv("SERVER_ADDR", "localhost:8080"),
		ServerURL:        getEnv("SERVER_URL", "http://localhost:8080"),
		MaxDBConnections: getEnvInt("MAX_DB_CONNECTIONS", 25),
		Debug:            getEnvBool("DEBUG", false),
		LoginURL:         getEnv("LOGIN_URL", "/login"),
		Clerk: ClerkConfig{
			SecretKey:      getEnv("CLERK_SECRET_KEY", ""),
			PublishableKey: getEnv("CLERK_PUBLISHABLE_KEY", ""),
			APIURL:         getEnv("CLERK_BACKEND_API", "https://api.clerk.dev/v1"),
			SessionCookie:  getEnv("CLERK_SESSION_COOKIE", "__session"),
			TimeoutSeconds: getEnvInt("CLERK_TIMEOUT_SECONDS", 10),
		},
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("SERVER_URL is required")
	}

	// Key format is checked whenever a key is present. Presence itself is
	// enforced by `setup` (and by `serve`, which cannot run without the
	// secret key) so local tooling like `db status` still works keyless.
	if err := cfg.Clerk.ValidateKeyFormats(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ValidateKeyFormats checks that any configured Clerk keys carry the expected
// prefixes. A wrong prefix usually means the secret and publishable keys were
// swapped, which would leak the secret key to the frontend.
func (c *ClerkConfig) ValidateKeyFormats() error {
	if c.SecretKey != "" && !strings.HasPrefix(c.SecretKey, "sk_") {
		return fmt.Errorf("invalid CLERK_SECRET_KEY format: must start with \"sk_\"")
	}
	if c.PublishableKey != "" && !strings.HasPrefix(c.PublishableKey, "pk_") {
		return fmt.Errorf("invalid CLERK_PUBLISHABLE_KEY format: must start with \"pk_\"")
	}
	return nil
}

// RequireKeys enforces that both Clerk keys are configured and well-formed.
// Called by `setup` and `serve`; configuration problems are fatal at startup,
// never at request time.
func (c *ClerkConfig) RequireKeys() error {
	var missing []string
	if c.SecretKey == "" {
		missing = append(missing, "CLERK_SECRET_KEY")
	}
	if c.PublishableKey == "" {
		missing = append(missing, "CLERK_PUBLISHABLE_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return c.ValidateKeyFormats()
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}
