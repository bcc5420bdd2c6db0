package clients

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/hferret/shelfarr/internal/models"
)

// nzbgetClient speaks the NZBGet JSON-RPC API with HTTP basic auth.
type nzbgetClient struct {
	def        *models.DownloadClientDefinition
	httpClient *http.Client
	logger     *logrus.Logger
}

func newNZBGetClient(def *models.DownloadClientDefinition, logger *logrus.Logger) *nzbgetClient {
	return &nzbgetClient{def: def, httpClient: newHTTPClient(def), logger: logger}
}

func (c *nzbgetClient) Type() models.DownloadClientType { return models.ClientTypeNZBGet }

func (c *nzbgetClient) rpc(ctx context.Context, method string, params []interface{}, out interface{}) error {
	headers := map[string]string{}
	if c.def.Username != nil && c.def.Password != nil {
		creds := *c.def.Username + ":" + *c.def.Password
		headers["Authorization"] = "Basic " + base64.StdEncoding.EncodeToString([]byte(creds))
	}
	req := map[string]interface{}{"method": method, "params": params}
	var resp struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := doJSON(ctx, c.httpClient, http.MethodPost, baseURL(c.def)+"/jsonrpc", headers, req, &resp); err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("rpc error: %s", resp.Error.Message)
	}
	if out != nil {
		return json.Unmarshal(resp.Result, out)
	}
	return nil
}

func (c *nzbgetClient) TestConnection(ctx context.Context) error {
	var version string
	if err := c.rpc(ctx, "version", nil, &version); err != nil {
		return providerErr(c.Type(), "test connection", err)
	}
	return nil
}

func (c *nzbgetClient) Submit(ctx context.Context, release *models.ReleaseInfo) (string, error) {
	category := ""
	if c.def.Category != nil {
		category = *c.def.Category
	}
	priority := 0
	// append(NZBFilename, NZBContent, Category, Priority, AddToTop, AddPaused,
	// DupeKey, DupeScore, DupeMode, PPParameters). Passing a URL as content
	// makes the daemon fetch it.
	params := []interface{}{
		release.Title + ".nzb", release.DownloadURL, category, priority,
		false, false, "", 0, "SCORE", []interface{}{},
	}
	var nzbID int
	if err := c.rpc(ctx, "append", params, &nzbID); err != nil {
		return "", providerErr(c.Type(), "submit", err)
	}
	if nzbID <= 0 {
		return "", providerErr(c.Type(), "submit", fmt.Errorf("daemon rejected nzb"))
	}
	return strconv.Itoa(nzbID), nil
}

func (c *nzbgetClient) Cancel(ctx context.Context, clientItemID string) (bool, error) {
	id, err := strconv.Atoi(clientItemID)
	if err != nil {
		return false, providerErr(c.Type(), "cancel", fmt.Errorf("invalid item id %q", clientItemID))
	}
	var ok bool
	if err := c.rpc(ctx, "editqueue", []interface{}{"GroupDelete", "", []int{id}}, &ok); err != nil {
		return false, providerErr(c.Type(), "cancel", err)
	}
	return ok, nil
}

func (c *nzbgetClient) GetItems(ctx context.Context) ([]models.ClientItem, error) {
	var groups []struct {
		NZBID         int    `json:"NZBID"`
		NZBName       string `json:"NZBName"`
		Status        string `json:"Status"`
		FileSizeLo    int64  `json:"FileSizeLo"`
		FileSizeHi    int64  `json:"FileSizeHi"`
		DownloadedLo  int64  `json:"DownloadedSizeLo"`
		DownloadedHi  int64  `json:"DownloadedSizeHi"`
		DownloadRate  int64  `json:"DownloadRate"`
		RemainingTime int    `json:"RemainingTime"`
	}
	if err := c.rpc(ctx, "listgroups", []interface{}{0}, &groups); err != nil {
		return nil, providerErr(c.Type(), "get items", err)
	}

	items := make([]models.ClientItem, 0, len(groups))
	for _, g := range groups {
		size := g.FileSizeHi<<32 | g.FileSizeLo
		done := g.DownloadedHi<<32 | g.DownloadedLo
		progress := 0.0
		if size > 0 {
			progress = float64(done) / float64(size)
		}
		item := models.ClientItem{
			ClientItemID:    strconv.Itoa(g.NZBID),
			Title:           g.NZBName,
			Status:          g.Status,
			Progress:        progress,
			SizeBytes:       int64Ptr(size),
			DownloadedBytes: int64Ptr(done),
			SpeedBPS:        int64Ptr(g.DownloadRate),
		}
		if g.RemainingTime > 0 {
			eta := g.RemainingTime
			item.ETASeconds = &eta
		}
		items = append(items, item)
	}

	var history []struct {
		NZBID      int    `json:"NZBID"`
		Name       string `json:"Name"`
		Status     string `json:"Status"`
		FileSizeLo int64  `json:"FileSizeLo"`
		FileSizeHi int64  `json:"FileSizeHi"`
		DestDir    string `json:"DestDir"`
	}
	if err := c.rpc(ctx, "history", []interface{}{false}, &history); err != nil {
		return nil, providerErr(c.Type(), "get items", err)
	}
	for _, h := range history {
		size := h.FileSizeHi<<32 | h.FileSizeLo
		item := models.ClientItem{
			ClientItemID:    strconv.Itoa(h.NZBID),
			Title:           h.Name,
			Status:          h.Status,
			Progress:        1,
			SizeBytes:       int64Ptr(size),
			DownloadedBytes: int64Ptr(size),
		}
		if h.DestDir != "" {
			dir := h.DestDir
			item.FilePath = &dir
		}
		items = append(items, item)
	}
	return items, nil
}
