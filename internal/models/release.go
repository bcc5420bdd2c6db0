package models

import (
	"net/url"
	"strings"
	"time"
)

// Indexer represents an external search catalog that supplies release
// candidates. The wire protocol (Torznab/Newznab) lives behind a separate
// collaborator; this core only needs identity, priority and enablement.
type Indexer struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Priority  int       `json:"priority" db:"priority"`
	Enabled   bool      `json:"enabled" db:"enabled"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ReleaseInfo is an ephemeral download candidate returned by an indexer.
// It is never persisted as such: it is either rejected or promoted to a
// DownloadItem.
type ReleaseInfo struct {
	Title       string     `json:"title"`
	DownloadURL string     `json:"download_url"`
	IndexerID   int64      `json:"indexer_id"`
	SizeBytes   *int64     `json:"size_bytes,omitempty"`
	Seeders     *int       `json:"seeders,omitempty"`
	Leechers    *int       `json:"leechers,omitempty"`
	PublishDate *time.Time `json:"publish_date,omitempty"`
	Quality     *string    `json:"quality,omitempty"`
	Author      *string    `json:"author,omitempty"`
	ISBN        *string    `json:"isbn,omitempty"`
	Description *string    `json:"description,omitempty"`
	Category    *string    `json:"category,omitempty"`
}

// Protocol infers the transfer protocol from the download URL. Usenet
// releases point at .nzb files; magnets and .torrent URLs travel over
// torrent clients, which is also the fallback for ambiguous URLs.
func (r *ReleaseInfo) Protocol() DownloadProtocol {
	raw := strings.ToLower(strings.TrimSpace(r.DownloadURL))
	if strings.HasPrefix(raw, "magnet:") {
		return ProtocolTorrent
	}
	path := raw
	if parsed, err := url.Parse(raw); err == nil && parsed.Path != "" {
		path = parsed.Path
	}
	if strings.HasSuffix(path, ".nzb") || strings.HasSuffix(raw, ".nzb") {
		return ProtocolUsenet
	}
	return ProtocolTorrent
}

// DownloadDecisionDefaults is the persisted, system-wide default layer of
// the release decision policy. A single row; per-book overrides and
// runtime context are layered on top at evaluation time.
type DownloadDecisionDefaults struct {
	ID                 int64      `json:"id" db:"id"`
	PreferredFormats   StringList `json:"preferred_formats" db:"preferred_formats"`
	ExcludeKeywords    StringList `json:"exclude_keywords" db:"exclude_keywords"`
	RequireKeywords    StringList `json:"require_keywords" db:"require_keywords"`
	MinSizeBytes       *int64     `json:"min_size_bytes,omitempty" db:"min_size_bytes"`
	MaxSizeBytes       *int64     `json:"max_size_bytes,omitempty" db:"max_size_bytes"`
	MinSeeders         *int       `json:"min_seeders,omitempty" db:"min_seeders"`
	MinAgeDays         *int       `json:"min_age_days,omitempty" db:"min_age_days"`
	MaxAgeDays         *int       `json:"max_age_days,omitempty" db:"max_age_days"`
	RequireTitleMatch  bool       `json:"require_title_match" db:"require_title_match"`
	RequireAuthorMatch bool       `json:"require_author_match" db:"require_author_match"`
	RequireISBNMatch   bool       `json:"require_isbn_match" db:"require_isbn_match"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`
}

// BlocklistEntry records a release URL that must never be grabbed again.
type BlocklistEntry struct {
	ID          int64     `json:"id" db:"id"`
	DownloadURL string    `json:"download_url" db:"download_url"`
	Reason      *string   `json:"reason,omitempty" db:"reason"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
