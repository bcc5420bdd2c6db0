package models

import (
	"strings"
	"time"
)

// PendingClientItemID is the placeholder client_item_id assigned to a
// DownloadItem immediately after submission, before the remote client has
// echoed a real identifier back.
const PendingClientItemID = "PENDING"

// DownloadItemStatus represents the status of a download item
type DownloadItemStatus string

const (
	DownloadItemStatusQueued      DownloadItemStatus = "queued"
	DownloadItemStatusDownloading DownloadItemStatus = "downloading"
	DownloadItemStatusPaused      DownloadItemStatus = "paused"
	DownloadItemStatusStalled     DownloadItemStatus = "stalled"
	DownloadItemStatusSeeding     DownloadItemStatus = "seeding"
	DownloadItemStatusCompleted   DownloadItemStatus = "completed"
	DownloadItemStatusFailed      DownloadItemStatus = "failed"
	DownloadItemStatusRemoved     DownloadItemStatus = "removed"
)

// IsTerminal reports whether the status is past all automatic transitions.
func (s DownloadItemStatus) IsTerminal() bool {
	switch s {
	case DownloadItemStatusCompleted, DownloadItemStatusFailed, DownloadItemStatusRemoved:
		return true
	}
	return false
}

// DownloadItem represents one in-flight or historical download, linking a
// tracked book to the download client carrying it and, optionally, the
// indexer that supplied the release.
type DownloadItem struct {
	ID        int64  `json:"id" db:"id"`
	BookID    int64  `json:"book_id" db:"book_id"`
	ClientID  int64  `json:"client_id" db:"client_id"`
	IndexerID *int64 `json:"indexer_id,omitempty" db:"indexer_id"`

	// ClientItemID is the external client's identifier for this transfer,
	// or PendingClientItemID until the client echoes one back.
	ClientItemID string `json:"client_item_id" db:"client_item_id"`

	Title       string             `json:"title" db:"title"`
	DownloadURL string             `json:"download_url" db:"download_url"`
	Status      DownloadItemStatus `json:"status" db:"status"`
	Progress    float64            `json:"progress" db:"progress"`

	SizeBytes       *int64  `json:"size_bytes,omitempty" db:"size_bytes"`
	DownloadedBytes *int64  `json:"downloaded_bytes,omitempty" db:"downloaded_bytes"`
	SpeedBPS        *int64  `json:"speed_bps,omitempty" db:"speed_bps"`
	ETASeconds      *int    `json:"eta_seconds,omitempty" db:"eta_seconds"`
	FilePath        *string `json:"file_path,omitempty" db:"file_path"`
	ErrorMessage    *string `json:"error_message,omitempty" db:"error_message"`

	StartedAt   *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`

	// Relationships
	Book    *TrackedBook              `json:"book,omitempty"`
	Client  *DownloadClientDefinition `json:"client,omitempty"`
	Indexer *Indexer                  `json:"indexer,omitempty"`
}

// IsPending reports whether the item is still waiting for the client to
// confirm an identifier.
func (d *DownloadItem) IsPending() bool {
	return d.ClientItemID == PendingClientItemID
}

// NormalizedClientItemID returns the uppercased client item id. Torrent
// infohashes are case-insensitive but different client versions echo them
// in either case.
func (d *DownloadItem) NormalizedClientItemID() string {
	return strings.ToUpper(d.ClientItemID)
}

// ClientItem is one transfer as reported by a download client's live API.
// Status carries the client-native string; the monitor owns mapping it to
// DownloadItemStatus.
type ClientItem struct {
	ClientItemID    string  `json:"client_item_id"`
	Title           string  `json:"title"`
	Status          string  `json:"status"`
	Progress        float64 `json:"progress"`
	SizeBytes       *int64  `json:"size_bytes,omitempty"`
	DownloadedBytes *int64  `json:"downloaded_bytes,omitempty"`
	SpeedBPS        *int64  `json:"speed_bps,omitempty"`
	ETASeconds      *int    `json:"eta_seconds,omitempty"`
	FilePath        *string `json:"file_path,omitempty"`
}
