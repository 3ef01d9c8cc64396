package carrier

import (
	"context"
	"fmt"
)

// Gateway performs a single fetch attempt for one tracking number and
// returns the raw provider payload. Retries belong to the scheduler.
type Gateway interface {
	Fetch(ctx context.Context, trackingNumber string) ([]byte, error)
}

// TransportError covers network, timeout and non-2xx HTTP failures. It is
// always retryable.
type TransportError struct {
	Carrier string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport error: %v", e.Carrier, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AuthError signals a carrier credential failure. The scheduler still
// retries by policy, but surfaces it to the user on first occurrence since
// retrying cannot help without a credential change.
type AuthError struct {
	Carrier string
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s auth error: %v", e.Carrier, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }
