package clients

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/hferret/shelfarr/internal/models"
)

// rtorrentClient speaks XML-RPC against ruTorrent's HTTP gateway. Only the
// handful of methods used here are encoded by hand; pulling in a full XML-RPC
// library for four calls is not worth the dependency.
type rtorrentClient struct {
	def        *models.DownloadClientDefinition
	httpClient *http.Client
	logger     *logrus.Logger
}

func newRTorrentClient(def *models.DownloadClientDefinition, logger *logrus.Logger) *rtorrentClient {
	return &rtorrentClient{def: def, httpClient: newHTTPClient(def), logger: logger}
}

func (c *rtorrentClient) Type() models.DownloadClientType { return models.ClientTypeRTorrent }

func (c *rtorrentClient) endpoint() string {
	if c.def.URLBase != nil && *c.def.URLBase != "" {
		return baseURL(c.def)
	}
	return baseURL(c.def) + "/RPC2"
}

func xmlrpcCall(method string, params ...string) []byte {
	var b bytes.Buffer
	b.WriteString("<?xml version=\"1.0\"?><methodCall><methodName>")
	xml.EscapeText(&b, []byte(method))
	b.WriteString("</methodName><params>")
	for _, p := range params {
		b.WriteString("<param><value><string>")
		xml.EscapeText(&b, []byte(p))
		b.WriteString("</string></value></param>")
	}
	b.WriteString("</params></methodCall>")
	return b.Bytes()
}

func (c *rtorrentClient) call(ctx context.Context, method string, params ...string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(xmlrpcCall(method, params...)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/xml")
	if c.def.Username != nil && c.def.Password != nil {
		req.SetBasicAuth(*c.def.Username, *c.def.Password)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if bytes.Contains(body, []byte("<fault>")) {
		return nil, fmt.Errorf("xmlrpc fault: %s", extractXMLStrings(body, 1))
	}
	return body, nil
}

// extractXMLStrings pulls the first n <string> values out of an XML-RPC
// response. rtorrent's multicall responses are flat enough for this.
func extractXMLStrings(body []byte, n int) string {
	dec := xml.NewDecoder(bytes.NewReader(body))
	var values []string
	var inString bool
	for len(values) < n {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			inString = t.Name.Local == "string"
		case xml.CharData:
			if inString {
				values = append(values, string(t))
				inString = false
			}
		case xml.EndElement:
			inString = false
		}
	}
	return strings.Join(values, " ")
}

func (c *rtorrentClient) TestConnection(ctx context.Context) error {
	if _, err := c.call(ctx, "system.client_version"); err != nil {
		return providerErr(c.Type(), "test connection", err)
	}
	return nil
}

func (c *rtorrentClient) Submit(ctx context.Context, release *models.ReleaseInfo) (string, error) {
	params := []string{"", release.DownloadURL}
	if c.def.DownloadPath != nil && *c.def.DownloadPath != "" {
		params = append(params, "d.directory.set="+*c.def.DownloadPath)
	}
	if _, err := c.call(ctx, "load.start", params...); err != nil {
		return "", providerErr(c.Type(), "submit", err)
	}
	return magnetHash(release.DownloadURL), nil
}

func (c *rtorrentClient) Cancel(ctx context.Context, clientItemID string) (bool, error) {
	if _, err := c.call(ctx, "d.erase", strings.ToUpper(clientItemID)); err != nil {
		return false, providerErr(c.Type(), "cancel", err)
	}
	return true, nil
}

func (c *rtorrentClient) GetItems(ctx context.Context) ([]models.ClientItem, error) {
	body, err := c.call(ctx, "d.multicall2", "", "main",
		"d.hash=", "d.name=", "d.size_bytes=", "d.completed_bytes=",
		"d.down.rate=", "d.is_active=", "d.complete=", "d.message=", "d.base_path=")
	if err != nil {
		return nil, providerErr(c.Type(), "get items", err)
	}
	rows, err := parseRTorrentMulticall(body, 9)
	if err != nil {
		return nil, providerErr(c.Type(), "get items", err)
	}

	items := make([]models.ClientItem, 0, len(rows))
	for _, row := range rows {
		size, _ := strconv.ParseInt(row[2], 10, 64)
		done, _ := strconv.ParseInt(row[3], 10, 64)
		rate, _ := strconv.ParseInt(row[4], 10, 64)
		progress := 0.0
		if size > 0 {
			progress = float64(done) / float64(size)
		}
		status := "downloading"
		switch {
		case row[7] != "":
			status = "error"
		case row[6] == "1":
			status = "complete"
		case row[5] == "0":
			status = "paused"
		}
		item := models.ClientItem{
			ClientItemID:    row[0],
			Title:           row[1],
			Status:          status,
			Progress:        progress,
			SizeBytes:       int64Ptr(size),
			DownloadedBytes: int64Ptr(done),
			SpeedBPS:        int64Ptr(rate),
		}
		if row[8] != "" {
			path := row[8]
			item.FilePath = &path
		}
		items = append(items, item)
	}
	return items, nil
}

// parseRTorrentMulticall flattens the nested array response of d.multicall2
// into rows of width values. Every scalar type is read as its text content.
func parseRTorrentMulticall(body []byte, width int) ([][]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	var flat []string
	var depth int
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "array":
				depth++
			case "string", "i4", "i8", "int", "double":
				// Row values live inside the inner arrays.
				if depth >= 2 {
					var v string
					if err := dec.DecodeElement(&v, &t); err != nil {
						return nil, err
					}
					flat = append(flat, v)
				}
			}
		case xml.EndElement:
			if t.Name.Local == "array" {
				depth--
			}
		}
	}
	if width <= 0 || len(flat)%width != 0 {
		return nil, fmt.Errorf("malformed multicall response: %d values", len(flat))
	}
	rows := make([][]string, 0, len(flat)/width)
	for i := 0; i+width <= len(flat); i += width {
		rows = append(rows, flat[i:i+width])
	}
	return rows, nil
}
