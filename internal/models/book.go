package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// TrackedBookStatus represents the lifecycle state of a tracked book
type TrackedBookStatus string

const (
	TrackedBookStatusWanted      TrackedBookStatus = "wanted"
	TrackedBookStatusSearching   TrackedBookStatus = "searching"
	TrackedBookStatusDownloading TrackedBookStatus = "downloading"
	TrackedBookStatusPaused      TrackedBookStatus = "paused"
	TrackedBookStatusStalled     TrackedBookStatus = "stalled"
	TrackedBookStatusSeeding     TrackedBookStatus = "seeding"
	TrackedBookStatusCompleted   TrackedBookStatus = "completed"
	TrackedBookStatusFailed      TrackedBookStatus = "failed"
	TrackedBookStatusIgnored     TrackedBookStatus = "ignored"
)

// IsUserTerminal reports whether the status may only be changed by
// explicit user action, never by automatic propagation.
func (s TrackedBookStatus) IsUserTerminal() bool {
	return s == TrackedBookStatusCompleted || s == TrackedBookStatusIgnored
}

// TrackedBook represents a user's intent to acquire a book
type TrackedBook struct {
	ID     int64   `json:"id" db:"id"`
	Title  string  `json:"title" db:"title"`
	Author string  `json:"author" db:"author"`
	ISBN   *string `json:"isbn,omitempty" db:"isbn"`

	// Acquisition policy; nil slice/pointer means "inherit system default"
	AutoSearch         bool       `json:"auto_search" db:"auto_search"`
	AutoDownload       bool       `json:"auto_download" db:"auto_download"`
	PreferredFormats   StringList `json:"preferred_formats,omitempty" db:"preferred_formats"`
	IncludeKeywords    StringList `json:"include_keywords,omitempty" db:"include_keywords"`
	ExcludeKeywords    StringList `json:"exclude_keywords,omitempty" db:"exclude_keywords"`
	RequireTitleMatch  *bool      `json:"require_title_match,omitempty" db:"require_title_match"`
	RequireAuthorMatch *bool      `json:"require_author_match,omitempty" db:"require_author_match"`
	RequireISBNMatch   *bool      `json:"require_isbn_match,omitempty" db:"require_isbn_match"`

	Status    TrackedBookStatus `json:"status" db:"status"`
	LastError *string           `json:"last_error,omitempty" db:"last_error"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt time.Time         `json:"updated_at" db:"updated_at"`

	// Relationships (loaded separately, cascade-deleted with the book)
	Downloads []*DownloadItem    `json:"downloads,omitempty"`
	Files     []*TrackedBookFile `json:"files,omitempty"`
}

// ApplyDownloadStatus applies the shared propagation rule: map a download
// status onto the book lifecycle and report whether the book changed.
// Books in a user-terminal status are never touched. COMPLETED and REMOVED
// download statuses have no mapping here; completion belongs to the import
// path and removal carries no lifecycle information.
func (b *TrackedBook) ApplyDownloadStatus(status DownloadItemStatus, errorMessage *string) bool {
	if b.Status.IsUserTerminal() {
		return false
	}

	var target TrackedBookStatus
	switch status {
	case DownloadItemStatusQueued, DownloadItemStatusDownloading:
		target = TrackedBookStatusDownloading
	case DownloadItemStatusPaused:
		target = TrackedBookStatusPaused
	case DownloadItemStatusStalled:
		target = TrackedBookStatusStalled
	case DownloadItemStatusSeeding:
		target = TrackedBookStatusSeeding
	case DownloadItemStatusFailed:
		target = TrackedBookStatusFailed
	default:
		return false
	}

	changed := false
	if b.Status != target {
		b.Status = target
		changed = true
	}
	if target == TrackedBookStatusFailed && errorMessage != nil {
		if b.LastError == nil || *b.LastError != *errorMessage {
			b.LastError = errorMessage
			changed = true
		}
	}
	return changed
}

// TrackedBookFile represents an imported file belonging to a tracked book
type TrackedBookFile struct {
	ID            int64     `json:"id" db:"id"`
	BookID        int64     `json:"book_id" db:"book_id"`
	FilePath      string    `json:"file_path" db:"file_path"`
	FileFormat    string    `json:"file_format" db:"file_format"`
	FileSizeBytes *int64    `json:"file_size_bytes,omitempty" db:"file_size_bytes"`
	ImportedAt    time.Time `json:"imported_at" db:"imported_at"`
}

// TrackedBookCreateRequest represents a request to start tracking a book
type TrackedBookCreateRequest struct {
	Title            string   `json:"title" binding:"required"`
	Author           string   `json:"author" binding:"required"`
	ISBN             *string  `json:"isbn,omitempty"`
	AutoSearch       bool     `json:"auto_search"`
	AutoDownload     bool     `json:"auto_download"`
	PreferredFormats []string `json:"preferred_formats,omitempty"`
	IncludeKeywords  []string `json:"include_keywords,omitempty"`
	ExcludeKeywords  []string `json:"exclude_keywords,omitempty"`
}

// TrackedBookUpdateRequest represents a partial update; nil fields are untouched
type TrackedBookUpdateRequest struct {
	Title            *string            `json:"title,omitempty"`
	Author           *string            `json:"author,omitempty"`
	ISBN             *string            `json:"isbn,omitempty"`
	AutoSearch       *bool              `json:"auto_search,omitempty"`
	AutoDownload     *bool              `json:"auto_download,omitempty"`
	PreferredFormats *[]string          `json:"preferred_formats,omitempty"`
	IncludeKeywords  *[]string          `json:"include_keywords,omitempty"`
	ExcludeKeywords  *[]string          `json:"exclude_keywords,omitempty"`
	Status           *TrackedBookStatus `json:"status,omitempty"`
}

// StringList is a custom type for handling JSON arrays in SQLite
type StringList []string

// Scan implements the sql.Scanner interface
func (s *StringList) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}

	switch v := value.(type) {
	case string:
		if v == "" {
			*s = StringList{}
			return nil
		}
		return json.Unmarshal([]byte(v), s)
	case []byte:
		if len(v) == 0 {
			*s = StringList{}
			return nil
		}
		return json.Unmarshal(v, s)
	default:
		return fmt.Errorf("cannot scan %T into StringList", value)
	}
}

// Value implements the driver.Valuer interface
func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
