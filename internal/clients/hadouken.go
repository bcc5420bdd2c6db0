package clients

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/hferret/shelfarr/internal/models"
)

// hadoukenClient speaks the Hadouken JSON-RPC API with HTTP basic auth.
type hadoukenClient struct {
	def        *models.DownloadClientDefinition
	httpClient *http.Client
	logger     *logrus.Logger
	requestID  int64
}

func newHadoukenClient(def *models.DownloadClientDefinition, logger *logrus.Logger) *hadoukenClient {
	return &hadoukenClient{def: def, httpClient: newHTTPClient(def), logger: logger}
}

func (c *hadoukenClient) Type() models.DownloadClientType { return models.ClientTypeHadouken }

func (c *hadoukenClient) rpc(ctx context.Context, method string, params interface{}, out interface{}) error {
	headers := map[string]string{}
	if c.def.Username != nil && c.def.Password != nil {
		creds := *c.def.Username + ":" + *c.def.Password
		headers["Authorization"] = "Basic " + base64.StdEncoding.EncodeToString([]byte(creds))
	}
	req := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      atomic.AddInt64(&c.requestID, 1),
		"method":  method,
		"params":  params,
	}
	var resp struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := doJSON(ctx, c.httpClient, http.MethodPost, baseURL(c.def)+"/api", headers, req, &resp); err != nil {
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

func (c *hadoukenClient) TestConnection(ctx context.Context) error {
	var version interface{}
	if err := c.rpc(ctx, "core.getSystemInfo", []interface{}{}, &version); err != nil {
		return providerErr(c.Type(), "test connection", err)
	}
	return nil
}

func (c *hadoukenClient) Submit(ctx context.Context, release *models.ReleaseInfo) (string, error) {
	options := map[string]interface{}{}
	if c.def.DownloadPath != nil && *c.def.DownloadPath != "" {
		options["savePath"] = *c.def.DownloadPath
	}
	if c.def.Category != nil && *c.def.Category != "" {
		options["label"] = *c.def.Category
	}
	if err := c.rpc(ctx, "webui.addTorrent", []interface{}{"url", release.DownloadURL, options}, nil); err != nil {
		return "", providerErr(c.Type(), "submit", err)
	}
	return magnetHash(release.DownloadURL), nil
}

func (c *hadoukenClient) Cancel(ctx context.Context, clientItemID string) (bool, error) {
	if err := c.rpc(ctx, "webui.perform", []interface{}{"remove", []string{strings.ToUpper(clientItemID)}}, nil); err != nil {
		return false, providerErr(c.Type(), "cancel", err)
	}
	return true, nil
}

func (c *hadoukenClient) GetItems(ctx context.Context) ([]models.ClientItem, error) {
	// webui.list mirrors the uTorrent positional torrent rows.
	var resp struct {
		Torrents [][]json.RawMessage `json:"torrents"`
	}
	if err := c.rpc(ctx, "webui.list", []interface{}{}, &resp); err != nil {
		return nil, providerErr(c.Type(), "get items", err)
	}

	items := make([]models.ClientItem, 0, len(resp.Torrents))
	for _, row := range resp.Torrents {
		if len(row) < 22 {
			continue
		}
		var hash, name, statusText string
		var statusBits int
		var size, downloaded, speed int64
		var permille float64
		var eta int
		json.Unmarshal(row[0], &hash)
		json.Unmarshal(row[1], &statusBits)
		json.Unmarshal(row[2], &name)
		json.Unmarshal(row[3], &size)
		json.Unmarshal(row[4], &permille)
		json.Unmarshal(row[5], &downloaded)
		json.Unmarshal(row[9], &speed)
		json.Unmarshal(row[10], &eta)
		json.Unmarshal(row[21], &statusText)

		status := statusText
		if status == "" {
			status = utorrentStatusName(statusBits, permille)
		}
		item := models.ClientItem{
			ClientItemID:    hash,
			Title:           name,
			Status:          status,
			Progress:        permille / 1000,
			SizeBytes:       int64Ptr(size),
			DownloadedBytes: int64Ptr(downloaded),
			SpeedBPS:        int64Ptr(speed),
		}
		if eta > 0 {
			item.ETASeconds = &eta
		}
		items = append(items, item)
	}
	return items, nil
}
