package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/hferret/shelfarr/internal/models"
)

// delugeClient speaks the Deluge web UI JSON-RPC API. Authentication is a
// password-only auth.login call that sets a session cookie.
type delugeClient struct {
	def        *models.DownloadClientDefinition
	httpClient *http.Client
	logger     *logrus.Logger
	requestID  int64
}

func newDelugeClient(def *models.DownloadClientDefinition, logger *logrus.Logger) *delugeClient {
	hc := newHTTPClient(def)
	jar, _ := cookiejar.New(nil)
	hc.Jar = jar
	return &delugeClient{def: def, httpClient: hc, logger: logger}
}

func (c *delugeClient) Type() models.DownloadClientType { return models.ClientTypeDeluge }

func (c *delugeClient) rpc(ctx context.Context, method string, params []interface{}, out interface{}) error {
	req := map[string]interface{}{
		"method": method,
		"params": params,
		"id":     atomic.AddInt64(&c.requestID, 1),
	}
	var resp struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Message string `json:"message"`
			Code    int    `json:"code"`
		} `json:"error"`
	}
	if err := doJSON(ctx, c.httpClient, http.MethodPost, baseURL(c.def)+"/json", nil, req, &resp); err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("rpc error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	if out != nil {
		return json.Unmarshal(resp.Result, out)
	}
	return nil
}

func (c *delugeClient) login(ctx context.Context) error {
	password := ""
	if c.def.Password != nil {
		password = *c.def.Password
	}
	var ok bool
	if err := c.rpc(ctx, "auth.login", []interface{}{password}, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("authentication rejected")
	}
	return nil
}

func (c *delugeClient) TestConnection(ctx context.Context) error {
	if err := c.login(ctx); err != nil {
		return providerErr(c.Type(), "test connection", err)
	}
	var connected bool
	if err := c.rpc(ctx, "web.connected", nil, &connected); err != nil {
		return providerErr(c.Type(), "test connection", err)
	}
	if !connected {
		return providerErr(c.Type(), "test connection", fmt.Errorf("web UI not connected to a daemon"))
	}
	return nil
}

func (c *delugeClient) Submit(ctx context.Context, release *models.ReleaseInfo) (string, error) {
	if err := c.login(ctx); err != nil {
		return "", providerErr(c.Type(), "submit", err)
	}
	options := map[string]interface{}{}
	if c.def.DownloadPath != nil && *c.def.DownloadPath != "" {
		options["download_location"] = *c.def.DownloadPath
	}
	var hash string
	if err := c.rpc(ctx, "core.add_torrent_magnet", []interface{}{release.DownloadURL, options}, &hash); err != nil {
		return "", providerErr(c.Type(), "submit", err)
	}
	return hash, nil
}

func (c *delugeClient) Cancel(ctx context.Context, clientItemID string) (bool, error) {
	if err := c.login(ctx); err != nil {
		return false, providerErr(c.Type(), "cancel", err)
	}
	var removed bool
	if err := c.rpc(ctx, "core.remove_torrent", []interface{}{clientItemID, false}, &removed); err != nil {
		return false, providerErr(c.Type(), "cancel", err)
	}
	return removed, nil
}

func (c *delugeClient) GetItems(ctx context.Context) ([]models.ClientItem, error) {
	if err := c.login(ctx); err != nil {
		return nil, providerErr(c.Type(), "get items", err)
	}
	fields := []string{"hash", "name", "state", "progress", "total_size", "total_done", "download_payload_rate", "eta", "save_path"}
	var result map[string]struct {
		Hash     string  `json:"hash"`
		Name     string  `json:"name"`
		State    string  `json:"state"`
		Progress float64 `json:"progress"`
		Size     int64   `json:"total_size"`
		Done     int64   `json:"total_done"`
		Rate     int64   `json:"download_payload_rate"`
		ETA      float64 `json:"eta"`
		SavePath string  `json:"save_path"`
	}
	if err := c.rpc(ctx, "core.get_torrents_status", []interface{}{map[string]interface{}{}, fields}, &result); err != nil {
		return nil, providerErr(c.Type(), "get items", err)
	}

	items := make([]models.ClientItem, 0, len(result))
	for hash, t := range result {
		if t.Hash == "" {
			t.Hash = hash
		}
		item := models.ClientItem{
			ClientItemID: t.Hash,
			Title:        t.Name,
			Status:       t.State,
			// Deluge reports progress as a percentage.
			Progress:        t.Progress / 100,
			SizeBytes:       int64Ptr(t.Size),
			DownloadedBytes: int64Ptr(t.Done),
			SpeedBPS:        int64Ptr(t.Rate),
		}
		if t.ETA > 0 {
			eta := int(t.ETA)
			item.ETASeconds = &eta
		}
		if t.SavePath != "" {
			path := t.SavePath
			item.FilePath = &path
		}
		items = append(items, item)
	}
	return items, nil
}
