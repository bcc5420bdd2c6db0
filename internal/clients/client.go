// Package clients wraps the native APIs of external download clients
// behind a uniform capability interface. Each adapter speaks one backend's
// wire protocol; the rest of the system only depends on DownloadClient
// and, for clients with a live status API, DownloadTracker.
package clients

import (
	"context"

	"github.com/hferret/shelfarr/internal/models"
)

// DownloadClient is the base capability every adapter supports.
// TestConnection reports ordinary network failure as a *models.ProviderError
// return value, never a panic, and must not mutate persisted state.
type DownloadClient interface {
	Type() models.DownloadClientType
	TestConnection(ctx context.Context) error

	// Submit hands a release to the client and returns the client's
	// identifier for the new transfer. An empty id is legal: it means the
	// client did not echo one back and the download item stays PENDING
	// until the monitor adopts the transfer by title.
	Submit(ctx context.Context, release *models.ReleaseInfo) (string, error)

	// Cancel removes a transfer. The boolean reports whether the remote
	// client acknowledged the removal.
	Cancel(ctx context.Context, clientItemID string) (bool, error)
}

// DownloadTracker is the narrower capability of clients that can report
// live transfer state. Blackhole adapters deliberately do not implement
// it; callers must treat that as a typed capability error, not as an
// empty item list.
type DownloadTracker interface {
	DownloadClient
	GetItems(ctx context.Context) ([]models.ClientItem, error)
}

// AsTracker returns the tracking capability of a client, or a typed
// capability error when the client family has none.
func AsTracker(client DownloadClient) (DownloadTracker, error) {
	if tracker, ok := client.(DownloadTracker); ok {
		return tracker, nil
	}
	return nil, models.ErrTrackingNotSupported
}
