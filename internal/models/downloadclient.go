package models

import (
	"time"
)

// DownloadClientType identifies one supported download client backend
type DownloadClientType string

const (
	ClientTypeQBittorrent      DownloadClientType = "qbittorrent"
	ClientTypeTransmission     DownloadClientType = "transmission"
	ClientTypeDeluge           DownloadClientType = "deluge"
	ClientTypeRTorrent         DownloadClientType = "rtorrent"
	ClientTypeUTorrent         DownloadClientType = "utorrent"
	ClientTypeVuze             DownloadClientType = "vuze"
	ClientTypeAria2            DownloadClientType = "aria2"
	ClientTypeFlood            DownloadClientType = "flood"
	ClientTypeHadouken         DownloadClientType = "hadouken"
	ClientTypeFreebox          DownloadClientType = "freebox"
	ClientTypeDownloadStation  DownloadClientType = "download_station"
	ClientTypeSABnzbd          DownloadClientType = "sabnzbd"
	ClientTypeNZBGet           DownloadClientType = "nzbget"
	ClientTypeNZBVortex        DownloadClientType = "nzbvortex"
	ClientTypePneumatic        DownloadClientType = "pneumatic"
	ClientTypeTorrentBlackhole DownloadClientType = "torrent_blackhole"
	ClientTypeUsenetBlackhole  DownloadClientType = "usenet_blackhole"
)

// Protocol returns which transfer protocol the client family speaks.
func (t DownloadClientType) Protocol() DownloadProtocol {
	switch t {
	case ClientTypeSABnzbd, ClientTypeNZBGet, ClientTypeNZBVortex,
		ClientTypePneumatic, ClientTypeUsenetBlackhole:
		return ProtocolUsenet
	case ClientTypeDownloadStation:
		// Download Station accepts both; it is registered as a torrent
		// client and handed .nzb tasks through the same task API.
		return ProtocolTorrent
	default:
		return ProtocolTorrent
	}
}

// IsBlackhole reports whether the client family only writes files to a
// watched directory and has no live status API.
func (t DownloadClientType) IsBlackhole() bool {
	switch t {
	case ClientTypeTorrentBlackhole, ClientTypeUsenetBlackhole, ClientTypePneumatic:
		return true
	}
	return false
}

// DownloadProtocol distinguishes torrent from usenet transfers
type DownloadProtocol string

const (
	ProtocolTorrent DownloadProtocol = "torrent"
	ProtocolUsenet  DownloadProtocol = "usenet"
)

// DownloadClientStatus represents the health of a download client
type DownloadClientStatus string

const (
	ClientStatusHealthy   DownloadClientStatus = "healthy"
	ClientStatusDegraded  DownloadClientStatus = "degraded"
	ClientStatusUnhealthy DownloadClientStatus = "unhealthy"
	ClientStatusDisabled  DownloadClientStatus = "disabled"
)

// DownloadClientDefinition is the stored configuration and live health of
// one external download client. Password is encrypted at rest; the service
// layer hands adapters a decrypted, detached copy that is never persisted.
type DownloadClientDefinition struct {
	ID         int64              `json:"id" db:"id"`
	Name       string             `json:"name" db:"name"`
	ClientType DownloadClientType `json:"client_type" db:"client_type"`
	Enabled    bool               `json:"enabled" db:"enabled"`

	Host           string  `json:"host" db:"host"`
	Port           int     `json:"port" db:"port"`
	UseSSL         bool    `json:"use_ssl" db:"use_ssl"`
	URLBase        *string `json:"url_base,omitempty" db:"url_base"`
	Username       *string `json:"username,omitempty" db:"username"`
	Password       *string `json:"-" db:"password"`
	APIKey         *string `json:"-" db:"api_key"`
	TimeoutSeconds int     `json:"timeout_seconds" db:"timeout_seconds"`

	Priority     int     `json:"priority" db:"priority"`
	Category     *string `json:"category,omitempty" db:"category"`
	DownloadPath *string `json:"download_path,omitempty" db:"download_path"`

	// Health fields, mutated only by the client service
	Status                     DownloadClientStatus `json:"status" db:"status"`
	ErrorCount                 int                  `json:"error_count" db:"error_count"`
	ErrorMessage               *string              `json:"error_message,omitempty" db:"error_message"`
	LastCheckedAt              *time.Time           `json:"last_checked_at,omitempty" db:"last_checked_at"`
	LastSuccessfulConnectionAt *time.Time           `json:"last_successful_connection_at,omitempty" db:"last_successful_connection_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Clone returns a detached copy safe to mutate without touching the
// persisted definition.
func (d *DownloadClientDefinition) Clone() *DownloadClientDefinition {
	c := *d
	if d.URLBase != nil {
		v := *d.URLBase
		c.URLBase = &v
	}
	if d.Username != nil {
		v := *d.Username
		c.Username = &v
	}
	if d.Password != nil {
		v := *d.Password
		c.Password = &v
	}
	if d.APIKey != nil {
		v := *d.APIKey
		c.APIKey = &v
	}
	if d.Category != nil {
		v := *d.Category
		c.Category = &v
	}
	if d.DownloadPath != nil {
		v := *d.DownloadPath
		c.DownloadPath = &v
	}
	return &c
}

// Timeout returns the configured adapter timeout with a sane floor.
func (d *DownloadClientDefinition) Timeout() time.Duration {
	if d.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// DownloadClientCreateRequest represents a request to register a client
type DownloadClientCreateRequest struct {
	Name           string             `json:"name" binding:"required"`
	ClientType     DownloadClientType `json:"client_type" binding:"required"`
	Enabled        bool               `json:"enabled"`
	Host           string             `json:"host" binding:"required"`
	Port           int                `json:"port"`
	UseSSL         bool               `json:"use_ssl"`
	URLBase        *string            `json:"url_base,omitempty"`
	Username       *string            `json:"username,omitempty"`
	Password       *string            `json:"password,omitempty"`
	APIKey         *string            `json:"api_key,omitempty"`
	TimeoutSeconds int                `json:"timeout_seconds"`
	Priority       int                `json:"priority"`
	Category       *string            `json:"category,omitempty"`
	DownloadPath   *string            `json:"download_path,omitempty"`
}

// DownloadClientUpdateRequest is a partial update; nil fields are untouched.
// Password, when supplied, arrives in plaintext and is re-encrypted by the
// service before storage.
type DownloadClientUpdateRequest struct {
	Name           *string `json:"name,omitempty"`
	Enabled        *bool   `json:"enabled,omitempty"`
	Host           *string `json:"host,omitempty"`
	Port           *int    `json:"port,omitempty"`
	UseSSL         *bool   `json:"use_ssl,omitempty"`
	URLBase        *string `json:"url_base,omitempty"`
	Username       *string `json:"username,omitempty"`
	Password       *string `json:"password,omitempty"`
	APIKey         *string `json:"api_key,omitempty"`
	TimeoutSeconds *int    `json:"timeout_seconds,omitempty"`
	Priority       *int    `json:"priority,omitempty"`
	Category       *string `json:"category,omitempty"`
	DownloadPath   *string `json:"download_path,omitempty"`
}
