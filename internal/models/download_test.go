package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDownloadItemStatus_IsTerminal(t *testing.T) {
	assert.True(t, DownloadItemStatusCompleted.IsTerminal())
	assert.True(t, DownloadItemStatusFailed.IsTerminal())
	assert.True(t, DownloadItemStatusRemoved.IsTerminal())

	for _, s := range []DownloadItemStatus{
		DownloadItemStatusQueued,
		DownloadItemStatusDownloading,
		DownloadItemStatusPaused,
		DownloadItemStatusStalled,
		DownloadItemStatusSeeding,
	} {
		assert.False(t, s.IsTerminal(), "status %s", s)
	}
}

func TestDownloadItem_IsPending(t *testing.T) {
	item := &DownloadItem{ClientItemID: PendingClientItemID}
	assert.True(t, item.IsPending())

	item.ClientItemID = "abc123"
	assert.False(t, item.IsPending())

	// The sentinel comparison is exact.
	item.ClientItemID = "pending"
	assert.False(t, item.IsPending())
}

func TestDownloadItem_NormalizedClientItemID(t *testing.T) {
	item := &DownloadItem{ClientItemID: "aBc123DeF"}
	assert.Equal(t, "ABC123DEF", item.NormalizedClientItemID())
}

func TestDownloadClientType_Protocol(t *testing.T) {
	assert.Equal(t, ProtocolTorrent, ClientTypeQBittorrent.Protocol())
	assert.Equal(t, ProtocolTorrent, ClientTypeTransmission.Protocol())
	assert.Equal(t, ProtocolUsenet, ClientTypeSABnzbd.Protocol())
	assert.Equal(t, ProtocolUsenet, ClientTypeNZBGet.Protocol())
}

func TestDownloadClientType_IsBlackhole(t *testing.T) {
	assert.True(t, ClientTypeTorrentBlackhole.IsBlackhole())
	assert.True(t, ClientTypeUsenetBlackhole.IsBlackhole())
	assert.True(t, ClientTypePneumatic.IsBlackhole())
	assert.False(t, ClientTypeQBittorrent.IsBlackhole())
	assert.False(t, ClientTypeSABnzbd.IsBlackhole())
}

func TestDownloadClientDefinition_Timeout(t *testing.T) {
	def := &DownloadClientDefinition{}
	assert.Equal(t, float64(30), def.Timeout().Seconds())

	def.TimeoutSeconds = 90
	assert.Equal(t, float64(90), def.Timeout().Seconds())
}
