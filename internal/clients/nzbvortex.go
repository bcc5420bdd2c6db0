package clients

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/hferret/shelfarr/internal/models"
)

// nzbvortexClient speaks the NZBVortex REST API. Login hashes a server nonce
// with the API key to obtain a session id.
type nzbvortexClient struct {
	def        *models.DownloadClientDefinition
	httpClient *http.Client
	logger     *logrus.Logger
}

func newNZBVortexClient(def *models.DownloadClientDefinition, logger *logrus.Logger) *nzbvortexClient {
	return &nzbvortexClient{def: def, httpClient: newHTTPClient(def), logger: logger}
}

func (c *nzbvortexClient) Type() models.DownloadClientType { return models.ClientTypeNZBVortex }

func (c *nzbvortexClient) apiURL(path string, q url.Values) string {
	if q == nil {
		q = url.Values{}
	}
	return baseURL(c.def) + "/api" + path + "?" + q.Encode()
}

func (c *nzbvortexClient) login(ctx context.Context) (string, error) {
	if c.def.APIKey == nil || *c.def.APIKey == "" {
		return "", fmt.Errorf("api key not configured")
	}

	var nonceResp struct {
		AuthChallenge string `json:"authChallenge"`
	}
	if err := doJSON(ctx, c.httpClient, http.MethodGet, c.apiURL("/auth/nonce", nil), nil, nil, &nonceResp); err != nil {
		return "", err
	}

	sum := sha256.Sum256([]byte(nonceResp.AuthChallenge + *c.def.APIKey))
	response := base64.StdEncoding.EncodeToString(sum[:])

	q := url.Values{}
	q.Set("nonce", nonceResp.AuthChallenge)
	q.Set("cnonce", response)
	q.Set("hash", response)
	var loginResp struct {
		LoginResult string `json:"loginResult"`
		SessionID   string `json:"sessionID"`
	}
	if err := doJSON(ctx, c.httpClient, http.MethodGet, c.apiURL("/auth/login", q), nil, nil, &loginResp); err != nil {
		return "", err
	}
	if loginResp.LoginResult != "successful" {
		return "", fmt.Errorf("login result %q", loginResp.LoginResult)
	}
	return loginResp.SessionID, nil
}

func (c *nzbvortexClient) TestConnection(ctx context.Context) error {
	if _, err := c.login(ctx); err != nil {
		return providerErr(c.Type(), "test connection", err)
	}
	return nil
}

func (c *nzbvortexClient) Submit(ctx context.Context, release *models.ReleaseInfo) (string, error) {
	sessionID, err := c.login(ctx)
	if err != nil {
		return "", providerErr(c.Type(), "submit", err)
	}
	q := url.Values{}
	q.Set("sessionid", sessionID)
	q.Set("url", release.DownloadURL)
	if c.def.Category != nil && *c.def.Category != "" {
		q.Set("groupname", *c.def.Category)
	}
	var resp struct {
		Result string `json:"result"`
		ID     int64  `json:"id"`
	}
	if err := doJSON(ctx, c.httpClient, http.MethodGet, c.apiURL("/nzb/add", q), nil, nil, &resp); err != nil {
		return "", providerErr(c.Type(), "submit", err)
	}
	if resp.Result != "ok" {
		return "", providerErr(c.Type(), "submit", fmt.Errorf("add result %q", resp.Result))
	}
	if resp.ID == 0 {
		return "", nil
	}
	return strconv.FormatInt(resp.ID, 10), nil
}

func (c *nzbvortexClient) Cancel(ctx context.Context, clientItemID string) (bool, error) {
	sessionID, err := c.login(ctx)
	if err != nil {
		return false, providerErr(c.Type(), "cancel", err)
	}
	q := url.Values{}
	q.Set("sessionid", sessionID)
	var resp struct {
		Result string `json:"result"`
	}
	if err := doJSON(ctx, c.httpClient, http.MethodGet, c.apiURL("/nzb/"+clientItemID+"/cancelDelete", q), nil, nil, &resp); err != nil {
		return false, providerErr(c.Type(), "cancel", err)
	}
	return resp.Result == "ok", nil
}

func (c *nzbvortexClient) GetItems(ctx context.Context) ([]models.ClientItem, error) {
	sessionID, err := c.login(ctx)
	if err != nil {
		return nil, providerErr(c.Type(), "get items", err)
	}
	q := url.Values{}
	q.Set("sessionid", sessionID)
	var resp struct {
		NZBs []struct {
			ID             int64   `json:"id"`
			UIName         string  `json:"uiName"`
			State          int     `json:"state"`
			TotalSize      int64   `json:"totalDownloadSize"`
			DownloadedSize int64   `json:"downloadedSize"`
			Progress       float64 `json:"progress"`
			DestinationDir string  `json:"destinationPath"`
		} `json:"nzbs"`
	}
	if err := doJSON(ctx, c.httpClient, http.MethodGet, c.apiURL("/nzb", q), nil, nil, &resp); err != nil {
		return nil, providerErr(c.Type(), "get items", err)
	}

	items := make([]models.ClientItem, 0, len(resp.NZBs))
	for _, n := range resp.NZBs {
		item := models.ClientItem{
			ClientItemID: strconv.FormatInt(n.ID, 10),
			Title:        n.UIName,
			Status:       nzbvortexStateName(n.State),
			// progress is reported in percent.
			Progress:        n.Progress / 100,
			SizeBytes:       int64Ptr(n.TotalSize),
			DownloadedBytes: int64Ptr(n.DownloadedSize),
		}
		if n.DestinationDir != "" {
			dir := n.DestinationDir
			item.FilePath = &dir
		}
		items = append(items, item)
	}
	return items, nil
}

func nzbvortexStateName(state int) string {
	switch state {
	case 0:
		return "waiting"
	case 1:
		return "downloading"
	case 2:
		return "waiting_for_save"
	case 3:
		return "saving"
	case 4:
		return "saved"
	case 5:
		return "password_request"
	case 6:
		return "queued_for_processing"
	case 7:
		return "user_wait_for_processing"
	case 8:
		return "checking"
	case 9:
		return "repairing"
	case 10:
		return "joining"
	case 11:
		return "wait_for_further_processing"
	case 12:
		return "uncompressing"
	case 13:
		return "wait_for_cleanup"
	case 14:
		return "cleaning_up"
	case 15:
		return "cleaned_up"
	case 16:
		return "moving_to_completed"
	case 17:
		return "moved_to_completed"
	case 18:
		return "badly_damaged"
	case 19:
		return "password_timeout"
	case 20:
		return "completed"
	case 21:
		return "failed"
	case 23:
		return "uncompress_failed"
	default:
		return "unknown " + strconv.Itoa(state)
	}
}
