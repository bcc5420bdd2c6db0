package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReleaseInfoProtocol(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want DownloadProtocol
	}{
		{name: "magnet", url: "magnet:?xt=urn:btih:abc&dn=Dune", want: ProtocolTorrent},
		{name: "torrent file", url: "http://indexer/dune.torrent", want: ProtocolTorrent},
		{name: "nzb file", url: "https://indexer/get/dune.nzb", want: ProtocolUsenet},
		{name: "nzb with query", url: "https://indexer/dune.nzb?apikey=x", want: ProtocolUsenet},
		{name: "uppercase nzb", url: "HTTPS://INDEXER/DUNE.NZB", want: ProtocolUsenet},
		{name: "extensionless url", url: "http://indexer/download/42", want: ProtocolTorrent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &ReleaseInfo{DownloadURL: tt.url}
			assert.Equal(t, tt.want, r.Protocol())
		})
	}
}
