package clients

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/hferret/shelfarr/internal/models"
)

// Factory maps a client definition to the concrete adapter for its type.
// Definitions handed to New must already carry decrypted credentials; the
// factory performs no decryption itself.
type Factory struct {
	logger *logrus.Logger
}

// NewFactory creates an adapter factory.
func NewFactory(logger *logrus.Logger) *Factory {
	return &Factory{logger: logger}
}

// New constructs the adapter for the definition's client type. An unknown
// type is a configuration error, fatal to the single operation only.
func (f *Factory) New(def *models.DownloadClientDefinition) (DownloadClient, error) {
	switch def.ClientType {
	case models.ClientTypeQBittorrent:
		return newQBittorrentClient(def, f.logger), nil
	case models.ClientTypeTransmission:
		return newTransmissionClient(def, f.logger), nil
	case models.ClientTypeDeluge:
		return newDelugeClient(def, f.logger), nil
	case models.ClientTypeRTorrent:
		return newRTorrentClient(def, f.logger), nil
	case models.ClientTypeUTorrent:
		return newUTorrentClient(def, f.logger), nil
	case models.ClientTypeVuze:
		// Vuze's web remote implements the uTorrent WebUI API.
		return newUTorrentClient(def, f.logger), nil
	case models.ClientTypeAria2:
		return newAria2Client(def, f.logger), nil
	case models.ClientTypeFlood:
		return newFloodClient(def, f.logger), nil
	case models.ClientTypeHadouken:
		return newHadoukenClient(def, f.logger), nil
	case models.ClientTypeDownloadStation:
		return newDownloadStationClient(def, f.logger), nil
	case models.ClientTypeFreebox:
		return newFreeboxClient(def, f.logger), nil
	case models.ClientTypeSABnzbd:
		return newSABnzbdClient(def, f.logger), nil
	case models.ClientTypeNZBGet:
		return newNZBGetClient(def, f.logger), nil
	case models.ClientTypeNZBVortex:
		return newNZBVortexClient(def, f.logger), nil
	case models.ClientTypeTorrentBlackhole, models.ClientTypeUsenetBlackhole, models.ClientTypePneumatic:
		return newBlackholeClient(def, f.logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", models.ErrUnsupportedClientType, def.ClientType)
	}
}
