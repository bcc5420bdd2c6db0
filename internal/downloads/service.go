package downloads

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/hferret/shelfarr/internal/decision"
	"github.com/hferret/shelfarr/internal/models"
	"github.com/hferret/shelfarr/internal/repositories"
)

// Service is the queue/history/cancel façade over download items plus the
// grab path that turns an approved release into a submitted download.
type Service struct {
	itemRepo      repositories.DownloadItemRepository
	bookRepo      repositories.TrackedBookRepository
	indexerRepo   repositories.IndexerRepository
	defaultsRepo  repositories.DecisionDefaultsRepository
	blocklistRepo repositories.BlocklistRepository
	clientService *ClientService
	engine        *decision.Engine
	logger        *logrus.Logger
}

// NewService creates a new download service
func NewService(
	itemRepo repositories.DownloadItemRepository,
	bookRepo repositories.TrackedBookRepository,
	indexerRepo repositories.IndexerRepository,
	defaultsRepo repositories.DecisionDefaultsRepository,
	blocklistRepo repositories.BlocklistRepository,
	clientService *ClientService,
	engine *decision.Engine,
	logger *logrus.Logger,
) *Service {
	return &Service{
		itemRepo:      itemRepo,
		bookRepo:      bookRepo,
		indexerRepo:   indexerRepo,
		defaultsRepo:  defaultsRepo,
		blocklistRepo: blocklistRepo,
		clientService: clientService,
		engine:        engine,
		logger:        logger,
	}
}

// GetActiveDownloads retrieves every non-terminal download item
func (s *Service) GetActiveDownloads(ctx context.Context) ([]*models.DownloadItem, error) {
	return s.itemRepo.ListActive(ctx, nil)
}

// GetDownloadHistory retrieves terminal download items, newest first
func (s *Service) GetDownloadHistory(ctx context.Context, limit, offset int) ([]*models.DownloadItem, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.itemRepo.ListHistory(ctx, limit, offset)
}

// GetDownload retrieves one download item
func (s *Service) GetDownload(ctx context.Context, id int64) (*models.DownloadItem, error) {
	return s.itemRepo.GetByID(ctx, id)
}

// CancelDownload cancels a download. The local item is marked REMOVED even
// when the remote cancel fails: cancellation is a local intent, and the next
// sweep reconciles if the transfer actually survived. Cancelling an already
// terminal item is a no-op.
func (s *Service) CancelDownload(ctx context.Context, id int64) error {
	item, err := s.itemRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if item.Status.IsTerminal() {
		return nil
	}

	def, err := s.clientService.Get(ctx, item.ClientID)
	if err == nil {
		if adapter, aerr := s.clientService.Adapter(def); aerr == nil {
			if !item.IsPending() {
				if _, cerr := adapter.Cancel(ctx, item.ClientItemID); cerr != nil {
					s.logger.WithError(cerr).WithField("item_id", item.ID).
						Warn("Remote cancel failed, marking removed locally")
				}
			}
		} else {
			s.logger.WithError(aerr).WithField("item_id", item.ID).
				Warn("Could not build adapter for cancel")
		}
	} else {
		s.logger.WithError(err).WithField("item_id", item.ID).
			Warn("Could not load client for cancel")
	}

	msg := "cancelled by user"
	item.Status = models.DownloadItemStatusRemoved
	item.ErrorMessage = &msg
	return s.itemRepo.Update(ctx, item)
}

// EvaluateReleases runs the decision engine over candidate releases for a
// book and returns approved decisions sorted best-first plus the rejected
// remainder.
func (s *Service) EvaluateReleases(ctx context.Context, book *models.TrackedBook, releases []*models.ReleaseInfo) (approved, rejected []*decision.Decision, err error) {
	defaults, err := s.defaultsRepo.Get(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("loading decision defaults: %w", err)
	}
	blocked, err := s.blocklistRepo.URLSet(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("loading blocklist: %w", err)
	}
	blockedURLs := make([]string, 0, len(blocked))
	for url := range blocked {
		blockedURLs = append(blockedURLs, url)
	}

	indexerList, err := s.indexerRepo.List(ctx, false)
	if err != nil {
		return nil, nil, fmt.Errorf("loading indexers: %w", err)
	}
	indexers := make(map[int64]*models.Indexer, len(indexerList))
	for _, idx := range indexerList {
		indexers[idx.ID] = idx
	}

	prefs := decision.FromModels(defaults, book, blockedURLs, nil)
	query := decision.Query{Title: book.Title, Author: book.Author}
	if book.ISBN != nil {
		query.ISBN = *book.ISBN
	}

	approved, rejected = s.engine.PickBest(releases, prefs, query, indexers)
	return approved, rejected, nil
}

// Grab submits a release to the highest-priority healthy client matching
// the release protocol and records the resulting download item.
func (s *Service) Grab(ctx context.Context, book *models.TrackedBook, release *models.ReleaseInfo) (*models.DownloadItem, error) {
	def, err := s.pickClient(ctx, release.Protocol())
	if err != nil {
		return nil, err
	}

	adapter, err := s.clientService.Adapter(def)
	if err != nil {
		return nil, err
	}

	clientItemID, err := adapter.Submit(ctx, release)
	if err != nil {
		if recordErr := s.clientService.RecordResult(ctx, def, err); recordErr != nil {
			s.logger.WithError(recordErr).WithField("client_id", def.ID).
				Warn("Failed to persist client health")
		}
		return nil, fmt.Errorf("submitting release: %w", err)
	}
	if recordErr := s.clientService.RecordResult(ctx, def, nil); recordErr != nil {
		s.logger.WithError(recordErr).WithField("client_id", def.ID).
			Warn("Failed to persist client health")
	}

	// Clients that do not echo an identifier leave the item PENDING; the
	// monitor recovers identity by title on a later sweep.
	if clientItemID == "" {
		clientItemID = models.PendingClientItemID
	}

	item := &models.DownloadItem{
		BookID:       book.ID,
		ClientID:     def.ID,
		ClientItemID: clientItemID,
		Title:        release.Title,
		DownloadURL:  release.DownloadURL,
		Status:       models.DownloadItemStatusQueued,
	}
	if release.IndexerID != 0 {
		indexerID := release.IndexerID
		item.IndexerID = &indexerID
	}
	if release.SizeBytes != nil {
		item.SizeBytes = release.SizeBytes
	}

	if err := s.itemRepo.Create(ctx, item); err != nil {
		return nil, err
	}

	if book.Status != models.TrackedBookStatusDownloading && !book.Status.IsUserTerminal() {
		book.Status = models.TrackedBookStatusDownloading
		if err := s.bookRepo.Update(ctx, book); err != nil {
			s.logger.WithError(err).WithField("book_id", book.ID).
				Warn("Failed to update book after grab")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"item_id":   item.ID,
		"book_id":   book.ID,
		"client_id": def.ID,
		"title":     release.Title,
	}).Info("Release submitted to download client")
	return item, nil
}

// Blocklist permanently blocks a release URL and records the reason
func (s *Service) Blocklist(ctx context.Context, downloadURL string, reason *string) error {
	return s.blocklistRepo.Add(ctx, &models.BlocklistEntry{
		DownloadURL: downloadURL,
		Reason:      reason,
	})
}

// pickClient selects the enabled client with the best priority that speaks
// the release protocol and is not unhealthy. Degraded clients are still
// eligible; unhealthy ones are passed over until the health loop revives
// them.
func (s *Service) pickClient(ctx context.Context, protocol models.DownloadProtocol) (*models.DownloadClientDefinition, error) {
	defs, err := s.clientService.List(ctx, true)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(defs, func(i, j int) bool { return defs[i].Priority < defs[j].Priority })
	var fallback *models.DownloadClientDefinition
	for _, def := range defs {
		if def.ClientType.Protocol() != protocol {
			continue
		}
		switch def.Status {
		case models.ClientStatusHealthy, models.ClientStatusDegraded:
			return def, nil
		case models.ClientStatusUnhealthy:
			if fallback == nil {
				fallback = def
			}
		}
	}
	if fallback != nil {
		// Better to try an unhealthy client than to drop the grab.
		return fallback, nil
	}
	return nil, fmt.Errorf("no enabled %s download client available", protocol)
}
