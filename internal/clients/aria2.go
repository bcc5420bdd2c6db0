package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/hferret/shelfarr/internal/models"
)

// aria2Client speaks the aria2 JSON-RPC API. The RPC secret, when set, rides
// in every parameter list as "token:<secret>".
type aria2Client struct {
	def        *models.DownloadClientDefinition
	httpClient *http.Client
	logger     *logrus.Logger
	requestID  int64
}

func newAria2Client(def *models.DownloadClientDefinition, logger *logrus.Logger) *aria2Client {
	return &aria2Client{def: def, httpClient: newHTTPClient(def), logger: logger}
}

func (c *aria2Client) Type() models.DownloadClientType { return models.ClientTypeAria2 }

func (c *aria2Client) params(rest ...interface{}) []interface{} {
	var out []interface{}
	if c.def.APIKey != nil && *c.def.APIKey != "" {
		out = append(out, "token:"+*c.def.APIKey)
	}
	return append(out, rest...)
}

func (c *aria2Client) rpc(ctx context.Context, method string, params []interface{}, out interface{}) error {
	req := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      strconv.FormatInt(atomic.AddInt64(&c.requestID, 1), 10),
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
	if err := doJSON(ctx, c.httpClient, http.MethodPost, baseURL(c.def)+"/jsonrpc", nil, req, &resp); err != nil {
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

func (c *aria2Client) TestConnection(ctx context.Context) error {
	var version struct {
		Version string `json:"version"`
	}
	if err := c.rpc(ctx, "aria2.getVersion", c.params(), &version); err != nil {
		return providerErr(c.Type(), "test connection", err)
	}
	return nil
}

func (c *aria2Client) Submit(ctx context.Context, release *models.ReleaseInfo) (string, error) {
	options := map[string]interface{}{}
	if c.def.DownloadPath != nil && *c.def.DownloadPath != "" {
		options["dir"] = *c.def.DownloadPath
	}
	var gid string
	if err := c.rpc(ctx, "aria2.addUri", c.params([]string{release.DownloadURL}, options), &gid); err != nil {
		return "", providerErr(c.Type(), "submit", err)
	}
	return gid, nil
}

func (c *aria2Client) Cancel(ctx context.Context, clientItemID string) (bool, error) {
	var gid string
	if err := c.rpc(ctx, "aria2.remove", c.params(clientItemID), &gid); err != nil {
		return false, providerErr(c.Type(), "cancel", err)
	}
	return true, nil
}

type aria2Status struct {
	GID             string `json:"gid"`
	Status          string `json:"status"`
	TotalLength     string `json:"totalLength"`
	CompletedLength string `json:"completedLength"`
	DownloadSpeed   string `json:"downloadSpeed"`
	Dir             string `json:"dir"`
	BitTorrent      *struct {
		Info struct {
			Name string `json:"name"`
		} `json:"info"`
	} `json:"bittorrent"`
	Files []struct {
		Path string `json:"path"`
	} `json:"files"`
}

func (s aria2Status) title() string {
	if s.BitTorrent != nil && s.BitTorrent.Info.Name != "" {
		return s.BitTorrent.Info.Name
	}
	if len(s.Files) > 0 {
		return s.Files[0].Path
	}
	return s.GID
}

func (c *aria2Client) GetItems(ctx context.Context) ([]models.ClientItem, error) {
	var active, waiting, stopped []aria2Status
	if err := c.rpc(ctx, "aria2.tellActive", c.params(), &active); err != nil {
		return nil, providerErr(c.Type(), "get items", err)
	}
	if err := c.rpc(ctx, "aria2.tellWaiting", c.params(0, 1000), &waiting); err != nil {
		return nil, providerErr(c.Type(), "get items", err)
	}
	if err := c.rpc(ctx, "aria2.tellStopped", c.params(0, 1000), &stopped); err != nil {
		return nil, providerErr(c.Type(), "get items", err)
	}

	all := append(append(active, waiting...), stopped...)
	items := make([]models.ClientItem, 0, len(all))
	for _, s := range all {
		size, _ := strconv.ParseInt(s.TotalLength, 10, 64)
		done, _ := strconv.ParseInt(s.CompletedLength, 10, 64)
		speed, _ := strconv.ParseInt(s.DownloadSpeed, 10, 64)
		progress := 0.0
		if size > 0 {
			progress = float64(done) / float64(size)
		}
		item := models.ClientItem{
			ClientItemID:    s.GID,
			Title:           s.title(),
			Status:          s.Status,
			Progress:        progress,
			SizeBytes:       int64Ptr(size),
			DownloadedBytes: int64Ptr(done),
			SpeedBPS:        int64Ptr(speed),
		}
		if s.Dir != "" {
			dir := s.Dir
			item.FilePath = &dir
		}
		items = append(items, item)
	}
	return items, nil
}
