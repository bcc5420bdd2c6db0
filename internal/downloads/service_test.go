package downloads

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hferret/shelfarr/internal/clients"
	"github.com/hferret/shelfarr/internal/models"
	"github.com/hferret/shelfarr/internal/testutil"
)

func newTestService(itemRepo *testutil.MockDownloadItemRepository, clientRepo *testutil.MockDownloadClientRepository) *Service {
	logger := testutil.TestLogger()
	clientService := NewClientService(clientRepo, clients.NewFactory(logger), nil, logger)
	return &Service{
		itemRepo:      itemRepo,
		clientService: clientService,
		logger:        logger,
	}
}

func TestCancelDownload_TerminalIsNoOp(t *testing.T) {
	itemRepo := new(testutil.MockDownloadItemRepository)
	clientRepo := new(testutil.MockDownloadClientRepository)
	svc := newTestService(itemRepo, clientRepo)

	item := &models.DownloadItem{ID: 1, Status: models.DownloadItemStatusCompleted}
	itemRepo.On("GetByID", mock.Anything, int64(1)).Return(item, nil)

	require.NoError(t, svc.CancelDownload(context.Background(), 1))

	// Nothing is written and no client is contacted.
	itemRepo.AssertNotCalled(t, "Update")
	clientRepo.AssertNotCalled(t, "GetByID")
	assert.Equal(t, models.DownloadItemStatusCompleted, item.Status)
}

func TestCancelDownload_MarksRemovedEvenWhenClientUnavailable(t *testing.T) {
	itemRepo := new(testutil.MockDownloadItemRepository)
	clientRepo := new(testutil.MockDownloadClientRepository)
	svc := newTestService(itemRepo, clientRepo)

	item := &models.DownloadItem{
		ID:           1,
		ClientID:     3,
		ClientItemID: "hash1",
		Status:       models.DownloadItemStatusDownloading,
	}
	itemRepo.On("GetByID", mock.Anything, int64(1)).Return(item, nil)
	clientRepo.On("GetByID", mock.Anything, int64(3)).Return(nil, models.ErrDownloadClientNotFound)
	itemRepo.On("Update", mock.Anything, item).Return(nil)

	require.NoError(t, svc.CancelDownload(context.Background(), 1))

	assert.Equal(t, models.DownloadItemStatusRemoved, item.Status)
	require.NotNil(t, item.ErrorMessage)
	assert.Equal(t, "cancelled by user", *item.ErrorMessage)
	itemRepo.AssertExpectations(t)
}

func TestCancelDownload_PendingSkipsRemoteCancel(t *testing.T) {
	itemRepo := new(testutil.MockDownloadItemRepository)
	clientRepo := new(testutil.MockDownloadClientRepository)
	svc := newTestService(itemRepo, clientRepo)

	dir := t.TempDir()
	def := &models.DownloadClientDefinition{
		ID:           3,
		ClientType:   models.ClientTypeTorrentBlackhole,
		Enabled:      true,
		DownloadPath: &dir,
	}

	item := &models.DownloadItem{
		ID:           1,
		ClientID:     3,
		ClientItemID: models.PendingClientItemID,
		Status:       models.DownloadItemStatusQueued,
	}
	itemRepo.On("GetByID", mock.Anything, int64(1)).Return(item, nil)
	clientRepo.On("GetByID", mock.Anything, int64(3)).Return(def, nil)
	itemRepo.On("Update", mock.Anything, item).Return(nil)

	require.NoError(t, svc.CancelDownload(context.Background(), 1))
	assert.Equal(t, models.DownloadItemStatusRemoved, item.Status)
}

func TestCancelDownload_NotFound(t *testing.T) {
	itemRepo := new(testutil.MockDownloadItemRepository)
	clientRepo := new(testutil.MockDownloadClientRepository)
	svc := newTestService(itemRepo, clientRepo)

	itemRepo.On("GetByID", mock.Anything, int64(9)).Return(nil, models.ErrDownloadItemNotFound)

	err := svc.CancelDownload(context.Background(), 9)
	assert.True(t, errors.Is(err, models.ErrDownloadItemNotFound))
}

func TestPickClient_FiltersByProtocol(t *testing.T) {
	itemRepo := new(testutil.MockDownloadItemRepository)
	clientRepo := new(testutil.MockDownloadClientRepository)
	svc := newTestService(itemRepo, clientRepo)

	torrent := &models.DownloadClientDefinition{
		ID: 1, ClientType: models.ClientTypeQBittorrent, Enabled: true,
		Priority: 1, Status: models.ClientStatusHealthy,
	}
	usenet := &models.DownloadClientDefinition{
		ID: 2, ClientType: models.ClientTypeSABnzbd, Enabled: true,
		Priority: 5, Status: models.ClientStatusHealthy,
	}
	clientRepo.On("List", mock.Anything, true).
		Return([]*models.DownloadClientDefinition{torrent, usenet}, nil)

	// An .nzb release must not land on the higher-priority torrent client.
	def, err := svc.pickClient(context.Background(), models.ProtocolUsenet)
	require.NoError(t, err)
	assert.Equal(t, usenet.ID, def.ID)

	def, err = svc.pickClient(context.Background(), models.ProtocolTorrent)
	require.NoError(t, err)
	assert.Equal(t, torrent.ID, def.ID)
}

func TestPickClient_NoClientForProtocol(t *testing.T) {
	itemRepo := new(testutil.MockDownloadItemRepository)
	clientRepo := new(testutil.MockDownloadClientRepository)
	svc := newTestService(itemRepo, clientRepo)

	torrent := &models.DownloadClientDefinition{
		ID: 1, ClientType: models.ClientTypeQBittorrent, Enabled: true,
		Priority: 1, Status: models.ClientStatusHealthy,
	}
	clientRepo.On("List", mock.Anything, true).
		Return([]*models.DownloadClientDefinition{torrent}, nil)

	_, err := svc.pickClient(context.Background(), models.ProtocolUsenet)
	assert.Error(t, err)
}

func TestGetDownloadHistory_LimitClamping(t *testing.T) {
	itemRepo := new(testutil.MockDownloadItemRepository)
	clientRepo := new(testutil.MockDownloadClientRepository)
	svc := newTestService(itemRepo, clientRepo)

	itemRepo.On("ListHistory", mock.Anything, 100, 0).Return([]*models.DownloadItem{}, nil).Twice()
	itemRepo.On("ListHistory", mock.Anything, 25, 50).Return([]*models.DownloadItem{}, nil).Once()

	_, err := svc.GetDownloadHistory(context.Background(), 0, -5)
	require.NoError(t, err)
	_, err = svc.GetDownloadHistory(context.Background(), 9999, 0)
	require.NoError(t, err)
	_, err = svc.GetDownloadHistory(context.Background(), 25, 50)
	require.NoError(t, err)

	itemRepo.AssertExpectations(t)
}
