package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/hferret/shelfarr/internal/models"
)

// MockTrackedBookRepository provides a mock TrackedBookRepository
type MockTrackedBookRepository struct {
	mock.Mock
}

func (m *MockTrackedBookRepository) Create(ctx context.Context, book *models.TrackedBook) error {
	args := m.Called(ctx, book)
	return args.Error(0)
}

func (m *MockTrackedBookRepository) GetByID(ctx context.Context, id int64) (*models.TrackedBook, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TrackedBook), args.Error(1)
}

func (m *MockTrackedBookRepository) List(ctx context.Context, status *models.TrackedBookStatus, limit, offset int) ([]*models.TrackedBook, error) {
	args := m.Called(ctx, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.TrackedBook), args.Error(1)
}

func (m *MockTrackedBookRepository) Update(ctx context.Context, book *models.TrackedBook) error {
	args := m.Called(ctx, book)
	return args.Error(0)
}

func (m *MockTrackedBookRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockTrackedBookRepository) AddFile(ctx context.Context, file *models.TrackedBookFile) error {
	args := m.Called(ctx, file)
	return args.Error(0)
}

func (m *MockTrackedBookRepository) GetFiles(ctx context.Context, bookID int64) ([]*models.TrackedBookFile, error) {
	args := m.Called(ctx, bookID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.TrackedBookFile), args.Error(1)
}

// MockDownloadItemRepository provides a mock DownloadItemRepository
type MockDownloadItemRepository struct {
	mock.Mock
}

func (m *MockDownloadItemRepository) Create(ctx context.Context, item *models.DownloadItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockDownloadItemRepository) GetByID(ctx context.Context, id int64) (*models.DownloadItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DownloadItem), args.Error(1)
}

func (m *MockDownloadItemRepository) Update(ctx context.Context, item *models.DownloadItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockDownloadItemRepository) UpdateItems(ctx context.Context, items []*models.DownloadItem) error {
	args := m.Called(ctx, items)
	return args.Error(0)
}

func (m *MockDownloadItemRepository) ListActive(ctx context.Context, clientID *int64) ([]*models.DownloadItem, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.DownloadItem), args.Error(1)
}

func (m *MockDownloadItemRepository) ListByBook(ctx context.Context, bookID int64) ([]*models.DownloadItem, error) {
	args := m.Called(ctx, bookID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.DownloadItem), args.Error(1)
}

func (m *MockDownloadItemRepository) ListHistory(ctx context.Context, limit, offset int) ([]*models.DownloadItem, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.DownloadItem), args.Error(1)
}

func (m *MockDownloadItemRepository) ListCompletedUnimported(ctx context.Context) ([]*models.DownloadItem, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.DownloadItem), args.Error(1)
}

// MockDownloadClientRepository provides a mock DownloadClientRepository
type MockDownloadClientRepository struct {
	mock.Mock
}

func (m *MockDownloadClientRepository) Create(ctx context.Context, def *models.DownloadClientDefinition) error {
	args := m.Called(ctx, def)
	return args.Error(0)
}

func (m *MockDownloadClientRepository) GetByID(ctx context.Context, id int64) (*models.DownloadClientDefinition, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DownloadClientDefinition), args.Error(1)
}

func (m *MockDownloadClientRepository) List(ctx context.Context, enabledOnly bool) ([]*models.DownloadClientDefinition, error) {
	args := m.Called(ctx, enabledOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.DownloadClientDefinition), args.Error(1)
}

func (m *MockDownloadClientRepository) Update(ctx context.Context, def *models.DownloadClientDefinition) error {
	args := m.Called(ctx, def)
	return args.Error(0)
}

func (m *MockDownloadClientRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockDownloadClient provides a mock download client adapter with
// tracking capability
type MockDownloadClient struct {
	mock.Mock
	ClientType models.DownloadClientType
}

func (m *MockDownloadClient) Type() models.DownloadClientType {
	if m.ClientType != "" {
		return m.ClientType
	}
	return models.ClientTypeQBittorrent
}

func (m *MockDownloadClient) TestConnection(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockDownloadClient) Submit(ctx context.Context, release *models.ReleaseInfo) (string, error) {
	args := m.Called(ctx, release)
	return args.String(0), args.Error(1)
}

func (m *MockDownloadClient) Cancel(ctx context.Context, clientItemID string) (bool, error) {
	args := m.Called(ctx, clientItemID)
	return args.Bool(0), args.Error(1)
}

func (m *MockDownloadClient) GetItems(ctx context.Context) ([]models.ClientItem, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ClientItem), args.Error(1)
}

// CapturingPublisher records published events for assertions
type CapturingPublisher struct {
	Events []PublishedEvent
}

// PublishedEvent is one captured Publish call
type PublishedEvent struct {
	Event   string
	Payload interface{}
}

func (p *CapturingPublisher) Publish(event string, payload interface{}) {
	p.Events = append(p.Events, PublishedEvent{Event: event, Payload: payload})
}

// EventNames returns the captured event names in order
func (p *CapturingPublisher) EventNames() []string {
	names := make([]string, 0, len(p.Events))
	for _, e := range p.Events {
		names = append(names, e.Event)
	}
	return names
}
