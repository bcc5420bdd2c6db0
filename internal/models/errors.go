package models

import (
	"errors"
	"fmt"
)

// Common application errors
var (
	ErrTrackedBookNotFound    = errors.New("tracked book not found")
	ErrDownloadItemNotFound   = errors.New("download item not found")
	ErrDownloadClientNotFound = errors.New("download client not found")
	ErrIndexerNotFound        = errors.New("indexer not found")
	ErrInvalidInput           = errors.New("invalid input")

	// ErrTrackingNotSupported signals that a client family fundamentally
	// cannot report live items (blackhole clients). Distinct from a
	// provider error: the client is not unreachable, it has no status API.
	ErrTrackingNotSupported = errors.New("download client does not support tracking")

	// ErrUnsupportedClientType signals a definition whose client_type has
	// no registered adapter. A configuration error, fatal to the single
	// operation only.
	ErrUnsupportedClientType = errors.New("unsupported download client type")
)

// ProviderError wraps an adapter-level failure: network timeout, auth
// rejection, malformed response from the remote client. The service layer
// translates it into the client's health state instead of letting it
// escape a sweep iteration.
type ProviderError struct {
	ClientType DownloadClientType
	Op         string
	Err        error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.ClientType, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError wraps err as a provider failure for the given operation.
func NewProviderError(clientType DownloadClientType, op string, err error) *ProviderError {
	return &ProviderError{ClientType: clientType, Op: op, Err: err}
}

// IsProviderError reports whether err is (or wraps) a ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
