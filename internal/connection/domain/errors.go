package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderNotConfigured means the Google OAuth client credentials are
	// missing. Surfaced as 503.
	ErrProviderNotConfigured = errors.New("google oauth client not configured")
	// ErrAuthExchange means the authorization code was rejected by the vendor.
	ErrAuthExchange = errors.New("authorization code exchange failed")
	// ErrSyncInProgress is returned when a sync is triggered while another run
	// for the same connection is still in flight. Surfaced as 409.
	ErrSyncInProgress = errors.New("sync already in progress")
	// ErrNotFound covers both missing and foreign-owned connections so the
	// API never leaks whether a given id exists.
	ErrNotFound = errors.New("connection not found")
	// ErrItemNotFound is the sync-item analogue of ErrNotFound.
	ErrItemNotFound = errors.New("sync item not found")
)

// RemoteAPIError is a vendor HTTP failure. StatusCode carries the vendor's
// HTTP status; 429 and 5xx are considered retryable.
type RemoteAPIError struct {
	StatusCode int
	Message    string
}

func (e *RemoteAPIError) Error() string {
	return fmt.Sprintf("remote api error (%d): %s", e.StatusCode, e.Message)
}

// Retryable reports whether the failure is transient.
func (e *RemoteAPIError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// IsRetryableRemoteError reports whether err is a transient vendor failure.
func IsRetryableRemoteError(err error) bool {
	var apiErr *RemoteAPIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return false
}
