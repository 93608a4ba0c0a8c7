package clerk

import (
	"errors"
	"fmt"
)

// ErrUserNotFound is returned by LookupUser when Clerk reports that the user
// does not exist. Callers that need to distinguish "definitely absent" from
// "lookup failed" should use LookupUser; GetUser collapses both to nil.
var ErrUserNotFound = errors.New("clerk user not found")

// AuthenticationError wraps any transport failure or non-success response from
// the Clerk API. Raw transport errors never propagate past this package.
type AuthenticationError struct {
	// Op is the failing API operation (e.g. "verify token")
	Op string
	// StatusCode is the HTTP status from Clerk, or 0 for transport failures
	StatusCode int
	// Err is the underlying cause
	Err error
}

func (e *AuthenticationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("clerk: %s failed: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("clerk: %s failed: %v", e.Op, e.Err)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// IsAuthenticationError reports whether err is (or wraps) an AuthenticationError.
func IsAuthenticationError(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}
