package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hferret/shelfarr/internal/models"
)

// newHTTPClient builds an http.Client bounded by the definition's
// configured timeout. No adapter call may block past it.
func newHTTPClient(def *models.DownloadClientDefinition) *http.Client {
	return &http.Client{Timeout: def.Timeout()}
}

// baseURL assembles the root URL for a client definition, honoring SSL
// and the optional URL base path.
func baseURL(def *models.DownloadClientDefinition) string {
	scheme := "http"
	if def.UseSSL {
		scheme = "https"
	}
	base := fmt.Sprintf("%s://%s:%d", scheme, def.Host, def.Port)
	if def.URLBase != nil && *def.URLBase != "" {
		base += "/" + strings.Trim(*def.URLBase, "/")
	}
	return base
}

// providerErr wraps an adapter failure in the typed provider error the
// service layer translates into client health.
func providerErr(clientType models.DownloadClientType, op string, err error) error {
	return models.NewProviderError(clientType, op, err)
}

// doJSON issues a request with a JSON body (when body is non-nil) and
// decodes a JSON response into out (when out is non-nil). Non-2xx status
// codes are returned as errors.
func doJSON(ctx context.Context, hc *http.Client, method, rawURL string, headers map[string]string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// postForm issues an application/x-www-form-urlencoded POST and returns
// the raw response body. Non-2xx status codes are returned as errors.
func postForm(ctx context.Context, hc *http.Client, rawURL string, form url.Values, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return data, nil
}

// getBody issues a GET and returns the raw response body.
func getBody(ctx context.Context, hc *http.Client, rawURL string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return data, nil
}

// magnetHash extracts the infohash from a magnet link, or "" when the URL
// is not a magnet or carries no btih parameter.
func magnetHash(rawURL string) string {
	if !strings.HasPrefix(rawURL, "magnet:") {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	for _, xt := range u.Query()["xt"] {
		if strings.HasPrefix(xt, "urn:btih:") {
			return strings.ToUpper(strings.TrimPrefix(xt, "urn:btih:"))
		}
	}
	return ""
}
