// ABOUTME: Error types for the ARIA remote API client.
// ABOUTME: Distinguishes authentication failures from non-2xx API responses.

package aria

import "fmt"

// AuthError reports a failed credential exchange with the ARIA token endpoint.
// A failed exchange is final for the in-flight operation; nothing retries it.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("aria authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// APIError reports a non-2xx response from the ARIA API. Only the status line
// is carried; the response body is never parsed for non-2xx statuses.
type APIError struct {
	StatusCode int
	Status     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("aria api error: %s", e.Status)
}
