package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hferret/shelfarr/internal/models"
)

func blackholeDef(t *testing.T, clientType models.DownloadClientType) *models.DownloadClientDefinition {
	t.Helper()
	dir := t.TempDir()
	return &models.DownloadClientDefinition{
		ClientType:   clientType,
		DownloadPath: &dir,
	}
}

func newTestBlackhole(t *testing.T, clientType models.DownloadClientType) (*blackholeClient, string) {
	t.Helper()
	def := blackholeDef(t, clientType)
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return newBlackholeClient(def, logger), *def.DownloadPath
}

func TestBlackhole_TestConnection(t *testing.T) {
	client, dir := newTestBlackhole(t, models.ClientTypeTorrentBlackhole)
	require.NoError(t, client.TestConnection(context.Background()))

	// The write probe must not leave droppings behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBlackhole_TestConnectionMissingDir(t *testing.T) {
	missing := "/nonexistent/blackhole"
	def := &models.DownloadClientDefinition{
		ClientType:   models.ClientTypeTorrentBlackhole,
		DownloadPath: &missing,
	}
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	client := newBlackholeClient(def, logger)

	assert.Error(t, client.TestConnection(context.Background()))
}

func TestBlackhole_SubmitMagnetWritesMagnetFile(t *testing.T) {
	client, dir := newTestBlackhole(t, models.ClientTypeTorrentBlackhole)

	id, err := client.Submit(context.Background(), &models.ReleaseInfo{
		Title:       "Dune",
		DownloadURL: "magnet:?xt=urn:btih:abc&dn=Dune",
	})
	require.NoError(t, err)
	assert.Empty(t, id, "blackholes have no remote id")

	data, err := os.ReadFile(filepath.Join(dir, "Dune.magnet"))
	require.NoError(t, err)
	assert.Equal(t, "magnet:?xt=urn:btih:abc&dn=Dune", string(data))
}

func TestBlackhole_SubmitFetchesTorrentPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("d8:announce0:e"))
	}))
	defer server.Close()

	client, dir := newTestBlackhole(t, models.ClientTypeTorrentBlackhole)

	_, err := client.Submit(context.Background(), &models.ReleaseInfo{
		Title:       "Dune: Messiah",
		DownloadURL: server.URL + "/dune.torrent",
	})
	require.NoError(t, err)

	// Path separators in the title are sanitized.
	data, err := os.ReadFile(filepath.Join(dir, "Dune_ Messiah.torrent"))
	require.NoError(t, err)
	assert.Equal(t, "d8:announce0:e", string(data))
}

func TestBlackhole_UsenetExtension(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<nzb/>"))
	}))
	defer server.Close()

	client, dir := newTestBlackhole(t, models.ClientTypeUsenetBlackhole)

	_, err := client.Submit(context.Background(), &models.ReleaseInfo{
		Title:       "Dune",
		DownloadURL: server.URL + "/dune.nzb",
	})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "Dune.nzb"))
	assert.NoError(t, err)
}

func TestBlackhole_PneumaticWritesStrm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<nzb/>"))
	}))
	defer server.Close()

	client, dir := newTestBlackhole(t, models.ClientTypePneumatic)

	_, err := client.Submit(context.Background(), &models.ReleaseInfo{
		Title:       "Dune",
		DownloadURL: server.URL + "/dune.nzb",
	})
	require.NoError(t, err)

	strm, err := os.ReadFile(filepath.Join(dir, "Dune.strm"))
	require.NoError(t, err)
	assert.Contains(t, string(strm), "plugin://plugin.program.pneumatic/")
	assert.Contains(t, string(strm), "nzbname=Dune")
}

func TestBlackhole_CancelRemovesDroppedFiles(t *testing.T) {
	client, dir := newTestBlackhole(t, models.ClientTypeTorrentBlackhole)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dune.torrent"), []byte("x"), 0644))

	removed, err := client.Cancel(context.Background(), "Dune")
	require.NoError(t, err)
	assert.True(t, removed)

	// Already consumed files are not an error.
	removed, err = client.Cancel(context.Background(), "Dune")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "a_b_c", sanitizeFilename("a/b\\c"))
	assert.Equal(t, "download", sanitizeFilename("   "))
	assert.Equal(t, "What_ A Title", sanitizeFilename("What? A Title"))
}
