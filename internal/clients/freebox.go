package clients

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/hferret/shelfarr/internal/models"
)

// freeboxClient speaks the Freebox OS download API. The app token configured
// as the API key signs a login challenge to open a session.
type freeboxClient struct {
	def        *models.DownloadClientDefinition
	httpClient *http.Client
	logger     *logrus.Logger
}

func newFreeboxClient(def *models.DownloadClientDefinition, logger *logrus.Logger) *freeboxClient {
	return &freeboxClient{def: def, httpClient: newHTTPClient(def), logger: logger}
}

func (c *freeboxClient) Type() models.DownloadClientType { return models.ClientTypeFreebox }

func (c *freeboxClient) apiURL(path string) string {
	return baseURL(c.def) + "/api/v8" + path
}

type freeboxResponse struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
}

func freeboxErr(resp freeboxResponse) error {
	if resp.Msg != "" {
		return fmt.Errorf("api error: %s", resp.Msg)
	}
	return fmt.Errorf("request failed")
}

func (c *freeboxClient) openSession(ctx context.Context) (string, error) {
	if c.def.APIKey == nil || *c.def.APIKey == "" {
		return "", fmt.Errorf("app token not configured")
	}
	appID := "shelfarr"
	if c.def.Username != nil && *c.def.Username != "" {
		appID = *c.def.Username
	}

	var challengeResp struct {
		freeboxResponse
		Result struct {
			Challenge string `json:"challenge"`
		} `json:"result"`
	}
	if err := doJSON(ctx, c.httpClient, http.MethodGet, c.apiURL("/login/"), nil, nil, &challengeResp); err != nil {
		return "", err
	}
	if !challengeResp.Success {
		return "", freeboxErr(challengeResp.freeboxResponse)
	}

	mac := hmac.New(sha1.New, []byte(*c.def.APIKey))
	mac.Write([]byte(challengeResp.Result.Challenge))
	password := hex.EncodeToString(mac.Sum(nil))

	var sessionResp struct {
		freeboxResponse
		Result struct {
			SessionToken string `json:"session_token"`
		} `json:"result"`
	}
	body := map[string]string{"app_id": appID, "password": password}
	if err := doJSON(ctx, c.httpClient, http.MethodPost, c.apiURL("/login/session/"), nil, body, &sessionResp); err != nil {
		return "", err
	}
	if !sessionResp.Success {
		return "", freeboxErr(sessionResp.freeboxResponse)
	}
	return sessionResp.Result.SessionToken, nil
}

func (c *freeboxClient) headers(token string) map[string]string {
	return map[string]string{"X-Fbx-App-Auth": token}
}

func (c *freeboxClient) TestConnection(ctx context.Context) error {
	if _, err := c.openSession(ctx); err != nil {
		return providerErr(c.Type(), "test connection", err)
	}
	return nil
}

func (c *freeboxClient) Submit(ctx context.Context, release *models.ReleaseInfo) (string, error) {
	token, err := c.openSession(ctx)
	if err != nil {
		return "", providerErr(c.Type(), "submit", err)
	}
	form := url.Values{}
	form.Set("download_url", release.DownloadURL)
	if c.def.DownloadPath != nil && *c.def.DownloadPath != "" {
		form.Set("download_dir", *c.def.DownloadPath)
	}
	raw, err := postForm(ctx, c.httpClient, c.apiURL("/downloads/add"), form, c.headers(token))
	if err != nil {
		return "", providerErr(c.Type(), "submit", err)
	}
	var resp struct {
		freeboxResponse
		Result struct {
			ID int64 `json:"id"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", providerErr(c.Type(), "submit", err)
	}
	if !resp.Success {
		return "", providerErr(c.Type(), "submit", freeboxErr(resp.freeboxResponse))
	}
	return strconv.FormatInt(resp.Result.ID, 10), nil
}

func (c *freeboxClient) Cancel(ctx context.Context, clientItemID string) (bool, error) {
	token, err := c.openSession(ctx)
	if err != nil {
		return false, providerErr(c.Type(), "cancel", err)
	}
	var resp freeboxResponse
	if err := doJSON(ctx, c.httpClient, http.MethodDelete, c.apiURL("/downloads/"+clientItemID), c.headers(token), nil, &resp); err != nil {
		return false, providerErr(c.Type(), "cancel", err)
	}
	return resp.Success, nil
}

func (c *freeboxClient) GetItems(ctx context.Context) ([]models.ClientItem, error) {
	token, err := c.openSession(ctx)
	if err != nil {
		return nil, providerErr(c.Type(), "get items", err)
	}
	var resp struct {
		freeboxResponse
		Result []struct {
			ID       int64  `json:"id"`
			Name     string `json:"name"`
			Status   string `json:"status"`
			Size     int64  `json:"size"`
			RxBytes  int64  `json:"rx_bytes"`
			RxRate   int64  `json:"rx_rate"`
			ETA      int    `json:"eta"`
			Dir      string `json:"download_dir"`
			RxPct    int    `json:"rx_pct"`
		} `json:"result"`
	}
	if err := doJSON(ctx, c.httpClient, http.MethodGet, c.apiURL("/downloads/"), c.headers(token), nil, &resp); err != nil {
		return nil, providerErr(c.Type(), "get items", err)
	}
	if !resp.Success {
		return nil, providerErr(c.Type(), "get items", freeboxErr(resp.freeboxResponse))
	}

	items := make([]models.ClientItem, 0, len(resp.Result))
	for _, d := range resp.Result {
		item := models.ClientItem{
			ClientItemID: strconv.FormatInt(d.ID, 10),
			Title:        d.Name,
			Status:       d.Status,
			// rx_pct is in hundredths of a percent.
			Progress:        float64(d.RxPct) / 10000,
			SizeBytes:       int64Ptr(d.Size),
			DownloadedBytes: int64Ptr(d.RxBytes),
			SpeedBPS:        int64Ptr(d.RxRate),
		}
		if d.ETA > 0 {
			eta := d.ETA
			item.ETASeconds = &eta
		}
		if d.Dir != "" {
			dir := d.Dir
			item.FilePath = &dir
		}
		items = append(items, item)
	}
	return items, nil
}
