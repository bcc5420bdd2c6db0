package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/hferret/shelfarr/internal/models"
)

var utorrentTokenRE = regexp.MustCompile(`<div[^>]*id=['"]token['"][^>]*>([^<]+)</div>`)

// utorrentClient speaks the uTorrent WebUI API. Vuze's web remote implements
// the same API and reuses this adapter.
type utorrentClient struct {
	def        *models.DownloadClientDefinition
	httpClient *http.Client
	logger     *logrus.Logger
	token      string
}

func newUTorrentClient(def *models.DownloadClientDefinition, logger *logrus.Logger) *utorrentClient {
	hc := newHTTPClient(def)
	// The GUID cookie issued with the token must accompany every call.
	jar, _ := cookiejar.New(nil)
	hc.Jar = jar
	return &utorrentClient{def: def, httpClient: hc, logger: logger}
}

func (c *utorrentClient) Type() models.DownloadClientType { return c.def.ClientType }

func (c *utorrentClient) guiURL() string { return baseURL(c.def) + "/gui" }

func (c *utorrentClient) fetchToken(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.guiURL()+"/token.html", nil)
	if err != nil {
		return err
	}
	if c.def.Username != nil && c.def.Password != nil {
		req.SetBasicAuth(*c.def.Username, *c.def.Password)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token request returned status %d", resp.StatusCode)
	}
	page, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return err
	}
	m := utorrentTokenRE.FindSubmatch(page)
	if m == nil {
		return fmt.Errorf("no token in response")
	}
	c.token = string(m[1])
	return nil
}

func (c *utorrentClient) action(ctx context.Context, params url.Values, out interface{}) error {
	if c.token == "" {
		if err := c.fetchToken(ctx); err != nil {
			return err
		}
	}
	params.Set("token", c.token)
	reqURL := c.guiURL() + "/?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	if c.def.Username != nil && c.def.Password != nil {
		req.SetBasicAuth(*c.def.Username, *c.def.Password)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusBadRequest {
		// Stale token; refresh once.
		c.token = ""
		return fmt.Errorf("token expired")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *utorrentClient) TestConnection(ctx context.Context) error {
	params := url.Values{}
	params.Set("action", "getsettings")
	if err := c.action(ctx, params, nil); err != nil {
		return providerErr(c.Type(), "test connection", err)
	}
	return nil
}

func (c *utorrentClient) Submit(ctx context.Context, release *models.ReleaseInfo) (string, error) {
	params := url.Values{}
	params.Set("action", "add-url")
	params.Set("s", release.DownloadURL)
	if err := c.action(ctx, params, nil); err != nil {
		return "", providerErr(c.Type(), "submit", err)
	}
	return magnetHash(release.DownloadURL), nil
}

func (c *utorrentClient) Cancel(ctx context.Context, clientItemID string) (bool, error) {
	params := url.Values{}
	params.Set("action", "remove")
	params.Set("hash", strings.ToUpper(clientItemID))
	if err := c.action(ctx, params, nil); err != nil {
		return false, providerErr(c.Type(), "cancel", err)
	}
	return true, nil
}

func (c *utorrentClient) GetItems(ctx context.Context) ([]models.ClientItem, error) {
	params := url.Values{}
	params.Set("list", "1")
	var resp struct {
		Torrents [][]json.RawMessage `json:"torrents"`
	}
	if err := c.action(ctx, params, &resp); err != nil {
		return nil, providerErr(c.Type(), "get items", err)
	}

	items := make([]models.ClientItem, 0, len(resp.Torrents))
	for _, row := range resp.Torrents {
		// List rows are positional: 0 hash, 1 status bitfield, 2 name,
		// 3 size, 4 progress permille, 5 downloaded, 9 download speed,
		// 10 eta, 21 status text, 26 save path.
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
		if len(row) > 26 {
			var path string
			json.Unmarshal(row[26], &path)
			if path != "" {
				item.FilePath = &path
			}
		}
		items = append(items, item)
	}
	return items, nil
}

func utorrentStatusName(bits int, permille float64) string {
	const (
		statusStarted = 1
		statusPaused  = 32
		statusError   = 16
	)
	switch {
	case bits&statusError != 0:
		return "error"
	case bits&statusPaused != 0:
		return "paused"
	case permille >= 1000:
		return "finished"
	case bits&statusStarted != 0:
		return "downloading"
	default:
		return "stopped"
	}
}
