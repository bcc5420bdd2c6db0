package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/hferret/shelfarr/internal/models"
)

// qbittorrentClient speaks the qBittorrent Web API v2.
type qbittorrentClient struct {
	def        *models.DownloadClientDefinition
	httpClient *http.Client
	logger     *logrus.Logger
}

func newQBittorrentClient(def *models.DownloadClientDefinition, logger *logrus.Logger) *qbittorrentClient {
	hc := newHTTPClient(def)
	// Session cookie from /auth/login authenticates subsequent calls.
	jar, _ := cookiejar.New(nil)
	hc.Jar = jar
	return &qbittorrentClient{def: def, httpClient: hc, logger: logger}
}

func (c *qbittorrentClient) Type() models.DownloadClientType { return models.ClientTypeQBittorrent }

func (c *qbittorrentClient) login(ctx context.Context) error {
	form := url.Values{}
	if c.def.Username != nil {
		form.Set("username", *c.def.Username)
	}
	if c.def.Password != nil {
		form.Set("password", *c.def.Password)
	}
	body, err := postForm(ctx, c.httpClient, baseURL(c.def)+"/api/v2/auth/login", form, nil)
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(body)) != "Ok." {
		return fmt.Errorf("authentication rejected")
	}
	return nil
}

func (c *qbittorrentClient) TestConnection(ctx context.Context) error {
	if err := c.login(ctx); err != nil {
		return providerErr(c.Type(), "test connection", err)
	}
	if _, err := getBody(ctx, c.httpClient, baseURL(c.def)+"/api/v2/app/version", nil); err != nil {
		return providerErr(c.Type(), "test connection", err)
	}
	return nil
}

func (c *qbittorrentClient) Submit(ctx context.Context, release *models.ReleaseInfo) (string, error) {
	if err := c.login(ctx); err != nil {
		return "", providerErr(c.Type(), "submit", err)
	}

	form := url.Values{}
	form.Set("urls", release.DownloadURL)
	if c.def.Category != nil && *c.def.Category != "" {
		form.Set("category", *c.def.Category)
	}
	if c.def.DownloadPath != nil && *c.def.DownloadPath != "" {
		form.Set("savepath", *c.def.DownloadPath)
	}

	if _, err := postForm(ctx, c.httpClient, baseURL(c.def)+"/api/v2/torrents/add", form, nil); err != nil {
		return "", providerErr(c.Type(), "submit", err)
	}

	// qBittorrent does not echo an id back; for magnet links the infohash
	// is recoverable from the URL, otherwise the item stays PENDING until
	// the monitor adopts it by title.
	return magnetHash(release.DownloadURL), nil
}

func (c *qbittorrentClient) Cancel(ctx context.Context, clientItemID string) (bool, error) {
	if err := c.login(ctx); err != nil {
		return false, providerErr(c.Type(), "cancel", err)
	}
	form := url.Values{}
	form.Set("hashes", strings.ToLower(clientItemID))
	form.Set("deleteFiles", "false")
	if _, err := postForm(ctx, c.httpClient, baseURL(c.def)+"/api/v2/torrents/delete", form, nil); err != nil {
		return false, providerErr(c.Type(), "cancel", err)
	}
	return true, nil
}

func (c *qbittorrentClient) GetItems(ctx context.Context) ([]models.ClientItem, error) {
	if err := c.login(ctx); err != nil {
		return nil, providerErr(c.Type(), "get items", err)
	}

	listURL := baseURL(c.def) + "/api/v2/torrents/info"
	if c.def.Category != nil && *c.def.Category != "" {
		listURL += "?category=" + url.QueryEscape(*c.def.Category)
	}

	var torrents []struct {
		Hash        string  `json:"hash"`
		Name        string  `json:"name"`
		State       string  `json:"state"`
		Progress    float64 `json:"progress"`
		Size        int64   `json:"size"`
		Downloaded  int64   `json:"downloaded"`
		DLSpeed     int64   `json:"dlspeed"`
		ETA         int     `json:"eta"`
		ContentPath string  `json:"content_path"`
	}
	if err := doJSON(ctx, c.httpClient, http.MethodGet, listURL, nil, nil, &torrents); err != nil {
		return nil, providerErr(c.Type(), "get items", err)
	}

	items := make([]models.ClientItem, 0, len(torrents))
	for _, t := range torrents {
		item := models.ClientItem{
			ClientItemID:    t.Hash,
			Title:           t.Name,
			Status:          t.State,
			Progress:        t.Progress,
			SizeBytes:       int64Ptr(t.Size),
			DownloadedBytes: int64Ptr(t.Downloaded),
			SpeedBPS:        int64Ptr(t.DLSpeed),
		}
		if t.ETA > 0 && t.ETA < 8640000 {
			eta := t.ETA
			item.ETASeconds = &eta
		}
		if t.ContentPath != "" {
			path := t.ContentPath
			item.FilePath = &path
		}
		items = append(items, item)
	}
	return items, nil
}

func int64Ptr(v int64) *int64 { return &v }
