package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/hferret/shelfarr/internal/models"
)

// transmissionClient speaks the Transmission RPC protocol. The session id
// header is renegotiated whenever the daemon answers 409.
type transmissionClient struct {
	def        *models.DownloadClientDefinition
	httpClient *http.Client
	logger     *logrus.Logger
	sessionID  string
}

func newTransmissionClient(def *models.DownloadClientDefinition, logger *logrus.Logger) *transmissionClient {
	return &transmissionClient{def: def, httpClient: newHTTPClient(def), logger: logger}
}

func (c *transmissionClient) Type() models.DownloadClientType { return models.ClientTypeTransmission }

func (c *transmissionClient) rpcURL() string {
	if c.def.URLBase != nil && *c.def.URLBase != "" {
		return baseURL(c.def) + "/rpc"
	}
	return baseURL(c.def) + "/transmission/rpc"
}

type transmissionRequest struct {
	Method    string      `json:"method"`
	Arguments interface{} `json:"arguments,omitempty"`
}

type transmissionResponse struct {
	Result    string          `json:"result"`
	Arguments json.RawMessage `json:"arguments"`
}

func (c *transmissionClient) rpc(ctx context.Context, method string, args interface{}, out interface{}) error {
	payload, err := json.Marshal(transmissionRequest{Method: method, Arguments: args})
	if err != nil {
		return err
	}

	for attempt := 0; attempt < 2; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL(), bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.sessionID != "" {
			req.Header.Set("X-Transmission-Session-Id", c.sessionID)
		}
		if c.def.Username != nil && c.def.Password != nil {
			req.SetBasicAuth(*c.def.Username, *c.def.Password)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return err
		}

		if resp.StatusCode == http.StatusConflict {
			c.sessionID = resp.Header.Get("X-Transmission-Session-Id")
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		var rpcResp transmissionResponse
		if err := json.Unmarshal(body, &rpcResp); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		if rpcResp.Result != "success" {
			return fmt.Errorf("rpc error: %s", rpcResp.Result)
		}
		if out != nil {
			return json.Unmarshal(rpcResp.Arguments, out)
		}
		return nil
	}
	return fmt.Errorf("session id negotiation failed")
}

func (c *transmissionClient) TestConnection(ctx context.Context) error {
	if err := c.rpc(ctx, "session-get", nil, nil); err != nil {
		return providerErr(c.Type(), "test connection", err)
	}
	return nil
}

func (c *transmissionClient) Submit(ctx context.Context, release *models.ReleaseInfo) (string, error) {
	args := map[string]interface{}{"filename": release.DownloadURL}
	if c.def.DownloadPath != nil && *c.def.DownloadPath != "" {
		args["download-dir"] = *c.def.DownloadPath
	}

	var result struct {
		TorrentAdded struct {
			HashString string `json:"hashString"`
		} `json:"torrent-added"`
		TorrentDuplicate struct {
			HashString string `json:"hashString"`
		} `json:"torrent-duplicate"`
	}
	if err := c.rpc(ctx, "torrent-add", args, &result); err != nil {
		return "", providerErr(c.Type(), "submit", err)
	}
	if result.TorrentAdded.HashString != "" {
		return result.TorrentAdded.HashString, nil
	}
	return result.TorrentDuplicate.HashString, nil
}

func (c *transmissionClient) Cancel(ctx context.Context, clientItemID string) (bool, error) {
	args := map[string]interface{}{
		"ids":               []string{clientItemID},
		"delete-local-data": false,
	}
	if err := c.rpc(ctx, "torrent-remove", args, nil); err != nil {
		return false, providerErr(c.Type(), "cancel", err)
	}
	return true, nil
}

func (c *transmissionClient) GetItems(ctx context.Context) ([]models.ClientItem, error) {
	args := map[string]interface{}{
		"fields": []string{
			"hashString", "name", "status", "percentDone", "totalSize",
			"downloadedEver", "rateDownload", "eta", "downloadDir", "errorString",
		},
	}
	var result struct {
		Torrents []struct {
			HashString     string  `json:"hashString"`
			Name           string  `json:"name"`
			Status         int     `json:"status"`
			PercentDone    float64 `json:"percentDone"`
			TotalSize      int64   `json:"totalSize"`
			DownloadedEver int64   `json:"downloadedEver"`
			RateDownload   int64   `json:"rateDownload"`
			ETA            int     `json:"eta"`
			DownloadDir    string  `json:"downloadDir"`
			ErrorString    string  `json:"errorString"`
		} `json:"torrents"`
	}
	if err := c.rpc(ctx, "torrent-get", args, &result); err != nil {
		return nil, providerErr(c.Type(), "get items", err)
	}

	items := make([]models.ClientItem, 0, len(result.Torrents))
	for _, t := range result.Torrents {
		status := transmissionStatusName(t.Status)
		if t.ErrorString != "" {
			status = "error"
		}
		item := models.ClientItem{
			ClientItemID:    t.HashString,
			Title:           t.Name,
			Status:          status,
			Progress:        t.PercentDone,
			SizeBytes:       int64Ptr(t.TotalSize),
			DownloadedBytes: int64Ptr(t.DownloadedEver),
			SpeedBPS:        int64Ptr(t.RateDownload),
		}
		if t.ETA > 0 {
			eta := t.ETA
			item.ETASeconds = &eta
		}
		if t.DownloadDir != "" {
			dir := t.DownloadDir
			item.FilePath = &dir
		}
		items = append(items, item)
	}
	return items, nil
}

// Status codes per the Transmission RPC spec.
func transmissionStatusName(status int) string {
	switch status {
	case 0:
		return "stopped"
	case 1, 2:
		return "checking"
	case 3:
		return "queued"
	case 4:
		return "downloading"
	case 5:
		return "queued_seed"
	case 6:
		return "seeding"
	default:
		return "unknown " + strconv.Itoa(status)
	}
}
