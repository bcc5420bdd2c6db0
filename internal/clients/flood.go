package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/hferret/shelfarr/internal/models"
)

// floodClient speaks the Flood REST API. Authentication issues a JWT cookie.
type floodClient struct {
	def        *models.DownloadClientDefinition
	httpClient *http.Client
	logger     *logrus.Logger
}

func newFloodClient(def *models.DownloadClientDefinition, logger *logrus.Logger) *floodClient {
	hc := newHTTPClient(def)
	jar, _ := cookiejar.New(nil)
	hc.Jar = jar
	return &floodClient{def: def, httpClient: hc, logger: logger}
}

func (c *floodClient) Type() models.DownloadClientType { return models.ClientTypeFlood }

func (c *floodClient) login(ctx context.Context) error {
	body := map[string]string{}
	if c.def.Username != nil {
		body["username"] = *c.def.Username
	}
	if c.def.Password != nil {
		body["password"] = *c.def.Password
	}
	var resp struct {
		Success bool `json:"success"`
	}
	if err := doJSON(ctx, c.httpClient, http.MethodPost, baseURL(c.def)+"/api/auth/authenticate", nil, body, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("authentication rejected")
	}
	return nil
}

func (c *floodClient) TestConnection(ctx context.Context) error {
	if err := c.login(ctx); err != nil {
		return providerErr(c.Type(), "test connection", err)
	}
	return nil
}

func (c *floodClient) Submit(ctx context.Context, release *models.ReleaseInfo) (string, error) {
	if err := c.login(ctx); err != nil {
		return "", providerErr(c.Type(), "submit", err)
	}
	body := map[string]interface{}{
		"urls":  []string{release.DownloadURL},
		"start": true,
	}
	if c.def.DownloadPath != nil && *c.def.DownloadPath != "" {
		body["destination"] = *c.def.DownloadPath
	}
	if c.def.Category != nil && *c.def.Category != "" {
		body["tags"] = []string{*c.def.Category}
	}
	if err := doJSON(ctx, c.httpClient, http.MethodPost, baseURL(c.def)+"/api/torrents/add-urls", nil, body, nil); err != nil {
		return "", providerErr(c.Type(), "submit", err)
	}
	return magnetHash(release.DownloadURL), nil
}

func (c *floodClient) Cancel(ctx context.Context, clientItemID string) (bool, error) {
	if err := c.login(ctx); err != nil {
		return false, providerErr(c.Type(), "cancel", err)
	}
	body := map[string]interface{}{
		"hashes":     []string{strings.ToUpper(clientItemID)},
		"deleteData": false,
	}
	if err := doJSON(ctx, c.httpClient, http.MethodPost, baseURL(c.def)+"/api/torrents/delete", nil, body, nil); err != nil {
		return false, providerErr(c.Type(), "cancel", err)
	}
	return true, nil
}

func (c *floodClient) GetItems(ctx context.Context) ([]models.ClientItem, error) {
	if err := c.login(ctx); err != nil {
		return nil, providerErr(c.Type(), "get items", err)
	}
	var resp struct {
		Torrents map[string]struct {
			Hash            string   `json:"hash"`
			Name            string   `json:"name"`
			Status          []string `json:"status"`
			PercentComplete float64  `json:"percentComplete"`
			SizeBytes       int64    `json:"sizeBytes"`
			BytesDone       int64    `json:"bytesDone"`
			DownRate        int64    `json:"downRate"`
			ETA             int      `json:"eta"`
			Directory       string   `json:"directory"`
		} `json:"torrents"`
	}
	if err := doJSON(ctx, c.httpClient, http.MethodGet, baseURL(c.def)+"/api/torrents", nil, nil, &resp); err != nil {
		return nil, providerErr(c.Type(), "get items", err)
	}

	items := make([]models.ClientItem, 0, len(resp.Torrents))
	for hash, t := range resp.Torrents {
		if t.Hash == "" {
			t.Hash = hash
		}
		status := "downloading"
		if len(t.Status) > 0 {
			status = strings.Join(t.Status, ",")
		}
		item := models.ClientItem{
			ClientItemID:    t.Hash,
			Title:           t.Name,
			Status:          status,
			Progress:        t.PercentComplete / 100,
			SizeBytes:       int64Ptr(t.SizeBytes),
			DownloadedBytes: int64Ptr(t.BytesDone),
			SpeedBPS:        int64Ptr(t.DownRate),
		}
		if t.ETA > 0 {
			eta := t.ETA
			item.ETASeconds = &eta
		}
		if t.Directory != "" {
			dir := t.Directory
			item.FilePath = &dir
		}
		items = append(items, item)
	}
	return items, nil
}
