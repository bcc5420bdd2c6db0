package clients

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/hferret/shelfarr/internal/models"
)

// blackholeClient drops release files into a watch directory for an external
// program to pick up. It deliberately implements only DownloadClient; there
// is no remote queue to report, so progress polling is unavailable and items
// submitted here stay in their initial state until cancelled or resolved by
// an operator.
type blackholeClient struct {
	def    *models.DownloadClientDefinition
	logger *logrus.Logger
}

func newBlackholeClient(def *models.DownloadClientDefinition, logger *logrus.Logger) *blackholeClient {
	return &blackholeClient{def: def, logger: logger}
}

func (c *blackholeClient) Type() models.DownloadClientType { return c.def.ClientType }

func (c *blackholeClient) watchDir() (string, error) {
	if c.def.DownloadPath == nil || *c.def.DownloadPath == "" {
		return "", fmt.Errorf("watch directory not configured")
	}
	return *c.def.DownloadPath, nil
}

func (c *blackholeClient) TestConnection(ctx context.Context) error {
	dir, err := c.watchDir()
	if err != nil {
		return providerErr(c.Type(), "test connection", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return providerErr(c.Type(), "test connection", err)
	}
	if !info.IsDir() {
		return providerErr(c.Type(), "test connection", fmt.Errorf("%s is not a directory", dir))
	}
	probe := filepath.Join(dir, ".shelfarr-write-test")
	if err := os.WriteFile(probe, nil, 0644); err != nil {
		return providerErr(c.Type(), "test connection", err)
	}
	os.Remove(probe)
	return nil
}

func (c *blackholeClient) fileExtension() string {
	switch c.def.ClientType {
	case models.ClientTypeUsenetBlackhole:
		return ".nzb"
	case models.ClientTypePneumatic:
		return ".nzb"
	default:
		return ".torrent"
	}
}

// Submit writes the release payload into the watch directory. Magnet links
// cannot be fetched, so they are written as .magnet text files instead.
func (c *blackholeClient) Submit(ctx context.Context, release *models.ReleaseInfo) (string, error) {
	dir, err := c.watchDir()
	if err != nil {
		return "", providerErr(c.Type(), "submit", err)
	}

	name := sanitizeFilename(release.Title)
	if strings.HasPrefix(release.DownloadURL, "magnet:") {
		target := filepath.Join(dir, name+".magnet")
		if err := os.WriteFile(target, []byte(release.DownloadURL), 0644); err != nil {
			return "", providerErr(c.Type(), "submit", err)
		}
		return "", nil
	}

	hc := newHTTPClient(c.def)
	payload, err := getBody(ctx, hc, release.DownloadURL, nil)
	if err != nil {
		return "", providerErr(c.Type(), "submit", err)
	}
	target := filepath.Join(dir, name+c.fileExtension())
	if err := os.WriteFile(target, payload, 0644); err != nil {
		return "", providerErr(c.Type(), "submit", err)
	}

	if c.def.ClientType == models.ClientTypePneumatic {
		// Pneumatic is driven from Kodi via a .strm pointing at the nzb.
		strm := filepath.Join(dir, name+".strm")
		content := fmt.Sprintf("plugin://plugin.program.pneumatic/?mode=strm&type=add_file&nzb=%s&nzbname=%s", target, name)
		if err := os.WriteFile(strm, []byte(content), 0644); err != nil {
			return "", providerErr(c.Type(), "submit", err)
		}
	}

	// No remote id exists; identity is recovered later by title.
	return "", nil
}

// Cancel removes the dropped file if the external watcher has not consumed
// it yet. A missing file is treated as already handled.
func (c *blackholeClient) Cancel(ctx context.Context, clientItemID string) (bool, error) {
	dir, err := c.watchDir()
	if err != nil {
		return false, providerErr(c.Type(), "cancel", err)
	}
	removed := false
	for _, ext := range []string{c.fileExtension(), ".magnet", ".strm"} {
		target := filepath.Join(dir, clientItemID+ext)
		if err := os.Remove(target); err == nil {
			removed = true
		}
	}
	return removed, nil
}

func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
		"\"", "_", "<", "_", ">", "_", "|", "_",
	)
	cleaned := strings.TrimSpace(replacer.Replace(name))
	if cleaned == "" {
		cleaned = "download"
	}
	return cleaned
}
