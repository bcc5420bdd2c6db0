package repositories

import (
	"context"

	"github.com/hferret/shelfarr/internal/models"
)

// TrackedBookRepository manages tracked book persistence
type TrackedBookRepository interface {
	Create(ctx context.Context, book *models.TrackedBook) error
	GetByID(ctx context.Context, id int64) (*models.TrackedBook, error)
	List(ctx context.Context, status *models.TrackedBookStatus, limit, offset int) ([]*models.TrackedBook, error)
	Update(ctx context.Context, book *models.TrackedBook) error
	Delete(ctx context.Context, id int64) error

	AddFile(ctx context.Context, file *models.TrackedBookFile) error
	GetFiles(ctx context.Context, bookID int64) ([]*models.TrackedBookFile, error)
}

// DownloadItemRepository manages download item persistence
type DownloadItemRepository interface {
	Create(ctx context.Context, item *models.DownloadItem) error
	GetByID(ctx context.Context, id int64) (*models.DownloadItem, error)
	Update(ctx context.Context, item *models.DownloadItem) error

	// UpdateItems persists a batch of items in one transaction so a sweep's
	// results for a client commit or roll back together.
	UpdateItems(ctx context.Context, items []*models.DownloadItem) error

	ListActive(ctx context.Context, clientID *int64) ([]*models.DownloadItem, error)
	ListByBook(ctx context.Context, bookID int64) ([]*models.DownloadItem, error)
	ListHistory(ctx context.Context, limit, offset int) ([]*models.DownloadItem, error)
	ListCompletedUnimported(ctx context.Context) ([]*models.DownloadItem, error)
}

// DownloadClientRepository manages download client definitions
type DownloadClientRepository interface {
	Create(ctx context.Context, def *models.DownloadClientDefinition) error
	GetByID(ctx context.Context, id int64) (*models.DownloadClientDefinition, error)
	List(ctx context.Context, enabledOnly bool) ([]*models.DownloadClientDefinition, error)
	Update(ctx context.Context, def *models.DownloadClientDefinition) error
	Delete(ctx context.Context, id int64) error
}

// IndexerRepository manages indexer records
type IndexerRepository interface {
	Create(ctx context.Context, indexer *models.Indexer) error
	GetByID(ctx context.Context, id int64) (*models.Indexer, error)
	List(ctx context.Context, enabledOnly bool) ([]*models.Indexer, error)
	Update(ctx context.Context, indexer *models.Indexer) error
	Delete(ctx context.Context, id int64) error
}

// DecisionDefaultsRepository manages the singleton decision defaults row
type DecisionDefaultsRepository interface {
	Get(ctx context.Context) (*models.DownloadDecisionDefaults, error)
	Update(ctx context.Context, defaults *models.DownloadDecisionDefaults) error
}

// BlocklistRepository manages permanently rejected release URLs
type BlocklistRepository interface {
	Add(ctx context.Context, entry *models.BlocklistEntry) error
	Remove(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*models.BlocklistEntry, error)
	URLSet(ctx context.Context) (map[string]struct{}, error)
}
