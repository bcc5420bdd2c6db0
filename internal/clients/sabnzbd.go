package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/hferret/shelfarr/internal/models"
)

// sabnzbdClient speaks the SABnzbd api?mode= interface keyed by API key.
type sabnzbdClient struct {
	def        *models.DownloadClientDefinition
	httpClient *http.Client
	logger     *logrus.Logger
}

func newSABnzbdClient(def *models.DownloadClientDefinition, logger *logrus.Logger) *sabnzbdClient {
	return &sabnzbdClient{def: def, httpClient: newHTTPClient(def), logger: logger}
}

func (c *sabnzbdClient) Type() models.DownloadClientType { return models.ClientTypeSABnzbd }

func (c *sabnzbdClient) apiURL(mode string, extra url.Values) string {
	q := url.Values{}
	q.Set("mode", mode)
	q.Set("output", "json")
	if c.def.APIKey != nil {
		q.Set("apikey", *c.def.APIKey)
	}
	for k, vs := range extra {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	return baseURL(c.def) + "/api?" + q.Encode()
}

func (c *sabnzbdClient) TestConnection(ctx context.Context) error {
	var resp struct {
		Version string `json:"version"`
	}
	if err := doJSON(ctx, c.httpClient, http.MethodGet, c.apiURL("version", nil), nil, nil, &resp); err != nil {
		return providerErr(c.Type(), "test connection", err)
	}
	if resp.Version == "" {
		return providerErr(c.Type(), "test connection", fmt.Errorf("no version in response, check API key"))
	}
	return nil
}

func (c *sabnzbdClient) Submit(ctx context.Context, release *models.ReleaseInfo) (string, error) {
	extra := url.Values{}
	extra.Set("name", release.DownloadURL)
	extra.Set("nzbname", release.Title)
	if c.def.Category != nil && *c.def.Category != "" {
		extra.Set("cat", *c.def.Category)
	}

	var resp struct {
		Status bool     `json:"status"`
		NzoIDs []string `json:"nzo_ids"`
		Error  string   `json:"error"`
	}
	if err := doJSON(ctx, c.httpClient, http.MethodGet, c.apiURL("addurl", extra), nil, nil, &resp); err != nil {
		return "", providerErr(c.Type(), "submit", err)
	}
	if !resp.Status {
		return "", providerErr(c.Type(), "submit", fmt.Errorf("rejected: %s", resp.Error))
	}
	if len(resp.NzoIDs) == 0 {
		return "", nil
	}
	return resp.NzoIDs[0], nil
}

func (c *sabnzbdClient) Cancel(ctx context.Context, clientItemID string) (bool, error) {
	extra := url.Values{}
	extra.Set("name", "delete")
	extra.Set("value", clientItemID)
	var resp struct {
		Status bool `json:"status"`
	}
	if err := doJSON(ctx, c.httpClient, http.MethodGet, c.apiURL("queue", extra), nil, nil, &resp); err != nil {
		return false, providerErr(c.Type(), "cancel", err)
	}
	return resp.Status, nil
}

// GetItems merges the live queue with recent history so completed and failed
// downloads stay visible after they leave the queue.
func (c *sabnzbdClient) GetItems(ctx context.Context) ([]models.ClientItem, error) {
	var queueResp struct {
		Queue struct {
			Slots []struct {
				NzoID      string `json:"nzo_id"`
				Filename   string `json:"filename"`
				Status     string `json:"status"`
				Percentage string `json:"percentage"`
				MB         string `json:"mb"`
				MBLeft     string `json:"mbleft"`
				TimeLeft   string `json:"timeleft"`
			} `json:"slots"`
		} `json:"queue"`
	}
	if err := doJSON(ctx, c.httpClient, http.MethodGet, c.apiURL("queue", nil), nil, nil, &queueResp); err != nil {
		return nil, providerErr(c.Type(), "get items", err)
	}

	items := make([]models.ClientItem, 0, len(queueResp.Queue.Slots))
	for _, s := range queueResp.Queue.Slots {
		pct, _ := strconv.ParseFloat(s.Percentage, 64)
		mb, _ := strconv.ParseFloat(s.MB, 64)
		mbLeft, _ := strconv.ParseFloat(s.MBLeft, 64)
		size := int64(mb * 1024 * 1024)
		done := int64((mb - mbLeft) * 1024 * 1024)
		items = append(items, models.ClientItem{
			ClientItemID:    s.NzoID,
			Title:           s.Filename,
			Status:          s.Status,
			Progress:        pct / 100,
			SizeBytes:       int64Ptr(size),
			DownloadedBytes: int64Ptr(done),
		})
	}

	historyExtra := url.Values{}
	historyExtra.Set("limit", "60")
	var historyResp struct {
		History struct {
			Slots []struct {
				NzoID   string `json:"nzo_id"`
				Name    string `json:"name"`
				Status  string `json:"status"`
				Bytes   int64  `json:"bytes"`
				Storage string `json:"storage"`
			} `json:"slots"`
		} `json:"history"`
	}
	if err := doJSON(ctx, c.httpClient, http.MethodGet, c.apiURL("history", historyExtra), nil, nil, &historyResp); err != nil {
		return nil, providerErr(c.Type(), "get items", err)
	}
	for _, s := range historyResp.History.Slots {
		item := models.ClientItem{
			ClientItemID:    s.NzoID,
			Title:           s.Name,
			Status:          s.Status,
			Progress:        1,
			SizeBytes:       int64Ptr(s.Bytes),
			DownloadedBytes: int64Ptr(s.Bytes),
		}
		if s.Storage != "" {
			storage := s.Storage
			item.FilePath = &storage
		}
		items = append(items, item)
	}
	return items, nil
}
