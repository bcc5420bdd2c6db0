package downloads

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hferret/shelfarr/internal/models"
	"github.com/hferret/shelfarr/internal/redis"
	"github.com/hferret/shelfarr/internal/repositories"
)

// EventPublisher receives monitor events for delivery to live subscribers.
type EventPublisher interface {
	Publish(event string, payload interface{})
}

// Monitor event names
const (
	EventDownloadUpdated = "download_updated"
	EventDownloadFailed  = "download_failed"
	EventBookUpdated     = "book_updated"
)

// Monitor is the reconciliation loop. Each sweep polls every enabled
// download client, matches the remote transfer list against local download
// items, and propagates status changes to the owning tracked books.
type Monitor struct {
	itemRepo      repositories.DownloadItemRepository
	bookRepo      repositories.TrackedBookRepository
	clientService *ClientService
	redisClient   *redis.Client
	events        EventPublisher
	logger        *logrus.Logger

	interval     time.Duration
	healthEvery  time.Duration
	lockTTL      time.Duration
	maxJitterPct int

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewMonitor creates a download monitor. redisClient and events may be nil;
// without Redis the single-flight sweep guard is skipped.
func NewMonitor(
	itemRepo repositories.DownloadItemRepository,
	bookRepo repositories.TrackedBookRepository,
	clientService *ClientService,
	redisClient *redis.Client,
	events EventPublisher,
	logger *logrus.Logger,
	interval, healthEvery, lockTTL time.Duration,
	maxJitterPct int,
) *Monitor {
	if interval <= 0 {
		interval = time.Minute
	}
	if healthEvery <= 0 {
		healthEvery = 5 * time.Minute
	}
	if lockTTL <= 0 {
		lockTTL = 2 * time.Minute
	}
	if maxJitterPct < 0 || maxJitterPct > 100 {
		maxJitterPct = 10
	}
	return &Monitor{
		itemRepo:      itemRepo,
		bookRepo:      bookRepo,
		clientService: clientService,
		redisClient:   redisClient,
		events:        events,
		logger:        logger,
		interval:      interval,
		healthEvery:   healthEvery,
		lockTTL:       lockTTL,
		maxJitterPct:  maxJitterPct,
		stopChan:      make(chan struct{}),
	}
}

// Start runs the periodic sweep and health check loops until Stop is called
func (m *Monitor) Start(ctx context.Context) {
	m.logger.WithField("interval", m.interval).Info("Starting download monitor")

	m.wg.Add(2)
	go m.sweepLoop(ctx)
	go m.healthLoop(ctx)
}

// Stop halts the loops and waits for the in-flight sweep to finish
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
	m.wg.Wait()
	m.logger.Info("Download monitor stopped")
}

func (m *Monitor) sweepLoop(ctx context.Context) {
	defer m.wg.Done()

	// Small jitter so multiple instances started together don't tick in
	// lockstep against the same clients.
	var jitter time.Duration
	if bound := int64(m.interval) * int64(m.maxJitterPct) / 100; bound > 0 {
		jitter = time.Duration(rand.Int63n(bound))
	}
	ticker := time.NewTicker(m.interval + jitter)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckDownloads(ctx)
		}
	}
}

func (m *Monitor) healthLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.healthEvery)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.clientService.CheckAll(ctx)
		}
	}
}

// CheckDownloads runs one reconciliation sweep over every enabled client.
// A failure on one client is isolated; the sweep always attempts all of
// them.
func (m *Monitor) CheckDownloads(ctx context.Context) {
	if m.redisClient != nil {
		ok, err := m.redisClient.AcquireLock(ctx, redis.LockKeyDownloadSweep, m.lockTTL)
		if err != nil {
			m.logger.WithError(err).Warn("Sweep lock unavailable, proceeding without guard")
		} else if !ok {
			m.logger.Debug("Another sweep is in progress, skipping")
			return
		} else {
			defer func() {
				if err := m.redisClient.ReleaseLock(ctx, redis.LockKeyDownloadSweep); err != nil {
					m.logger.WithError(err).Warn("Failed to release sweep lock")
				}
			}()
		}
	}

	defs, err := m.clientService.List(ctx, true)
	if err != nil {
		m.logger.WithError(err).Error("Failed to list download clients")
		return
	}

	for _, def := range defs {
		select {
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		default:
		}
		m.checkClient(ctx, def)
	}
}

// checkClient reconciles one client. All item updates for the client commit
// together, so a crash mid-sweep loses at most this client's batch.
func (m *Monitor) checkClient(ctx context.Context, def *models.DownloadClientDefinition) {
	log := m.logger.WithFields(logrus.Fields{
		"client_id":   def.ID,
		"client_type": def.ClientType,
		"name":        def.Name,
	})

	remoteItems, err := m.clientService.GetClientItems(ctx, def)
	if err != nil {
		if errors.Is(err, models.ErrTrackingNotSupported) {
			// Blackhole-style clients legitimately have no queue to poll.
			log.Debug("Client does not support tracking, skipping")
			return
		}
		if recordErr := m.clientService.RecordResult(ctx, def, err); recordErr != nil {
			log.WithError(recordErr).Warn("Failed to persist client health")
		}
		log.WithError(err).Warn("Failed to fetch client items")
		return
	}

	// Connectivity succeeded; an empty queue is still a healthy client.
	if err := m.clientService.RecordResult(ctx, def, nil); err != nil {
		log.WithError(err).Warn("Failed to persist client health")
	}

	localItems, err := m.itemRepo.ListActive(ctx, &def.ID)
	if err != nil {
		log.WithError(err).Error("Failed to load local download items")
		return
	}
	if len(localItems) == 0 {
		return
	}

	changed := m.reconcile(log, localItems, remoteItems)
	if len(changed) == 0 {
		return
	}

	if err := m.itemRepo.UpdateItems(ctx, changed); err != nil {
		log.WithError(err).Error("Failed to commit reconciliation batch")
		return
	}

	for _, item := range changed {
		m.propagate(ctx, log, item)
	}
}

// reconcile matches local items against the remote list and returns the
// items that changed. Remote ids are matched case-insensitively; torrent
// infohashes come back in either case depending on the client version.
func (m *Monitor) reconcile(log *logrus.Entry, localItems []*models.DownloadItem, remoteItems []models.ClientItem) []*models.DownloadItem {
	remote := make(map[string]*models.ClientItem, len(remoteItems))
	for i := range remoteItems {
		remote[strings.ToUpper(remoteItems[i].ClientItemID)] = &remoteItems[i]
	}

	// Ids already claimed by non-pending local rows must not be adopted by
	// a pending row in the same pass.
	consumed := make(map[string]bool)
	for _, item := range localItems {
		if !item.IsPending() {
			consumed[item.NormalizedClientItemID()] = true
		}
	}

	var changed []*models.DownloadItem
	for _, item := range localItems {
		if item.IsPending() {
			adopted := false
			for key, ci := range remote {
				if consumed[key] || ci.Title != item.Title {
					continue
				}
				// Adopt the remote id with its original casing. The id
				// change alone makes the row dirty.
				item.ClientItemID = ci.ClientItemID
				consumed[key] = true
				m.updateItem(item, ci)
				changed = append(changed, item)
				adopted = true
				log.WithFields(logrus.Fields{
					"item_id":        item.ID,
					"client_item_id": ci.ClientItemID,
				}).Info("Adopted pending download")
				break
			}
			if !adopted {
				// Expected transient state: the submission may not have
				// surfaced in the client listing yet.
				log.WithFields(logrus.Fields{
					"item_id": item.ID,
					"age":     time.Since(item.CreatedAt).Round(time.Second),
				}).Debug("Pending download not yet visible on client")
			}
			continue
		}

		key := item.NormalizedClientItemID()
		if ci, ok := remote[key]; ok {
			consumed[key] = true
			if m.updateItem(item, ci) {
				changed = append(changed, item)
			}
			continue
		}

		// Known id missing remotely: removed outside this system.
		msg := "download no longer present on client"
		item.Status = models.DownloadItemStatusRemoved
		item.ErrorMessage = &msg
		changed = append(changed, item)
		log.WithField("item_id", item.ID).Info("Download removed externally")
	}

	return changed
}

// updateItem copies one remote observation onto a local item and reports
// whether anything material changed.
func (m *Monitor) updateItem(item *models.DownloadItem, ci *models.ClientItem) bool {
	status := MapClientStatus(ci.Status)
	changed := false

	if item.Status != status {
		item.Status = status
		changed = true

		switch status {
		case models.DownloadItemStatusCompleted:
			// Stamped exactly once, on the first observation of COMPLETED.
			if item.CompletedAt == nil {
				now := time.Now()
				item.CompletedAt = &now
			}
		case models.DownloadItemStatusFailed:
			if item.ErrorMessage == nil {
				msg := "download failed on client: " + ci.Status
				item.ErrorMessage = &msg
			}
		}
	}
	if status == models.DownloadItemStatusDownloading && item.StartedAt == nil {
		now := time.Now()
		item.StartedAt = &now
		changed = true
	}

	if item.Progress != ci.Progress {
		item.Progress = ci.Progress
		changed = true
	}
	if !int64PtrEqual(item.SizeBytes, ci.SizeBytes) {
		item.SizeBytes = ci.SizeBytes
		changed = true
	}
	if !int64PtrEqual(item.DownloadedBytes, ci.DownloadedBytes) {
		item.DownloadedBytes = ci.DownloadedBytes
		changed = true
	}
	if !int64PtrEqual(item.SpeedBPS, ci.SpeedBPS) {
		item.SpeedBPS = ci.SpeedBPS
		changed = true
	}
	if !intPtrEqual(item.ETASeconds, ci.ETASeconds) {
		item.ETASeconds = ci.ETASeconds
		changed = true
	}
	// Never blank out a previously known path.
	if ci.FilePath != nil && *ci.FilePath != "" {
		if item.FilePath == nil || *item.FilePath != *ci.FilePath {
			item.FilePath = ci.FilePath
			changed = true
		}
	}

	return changed
}

// propagate pushes one item's new status onto its tracked book and emits
// monitor events. COMPLETED deliberately does not touch the book; the
// import service owns book completion so import failures stay visible.
func (m *Monitor) propagate(ctx context.Context, log *logrus.Entry, item *models.DownloadItem) {
	if m.events != nil {
		event := EventDownloadUpdated
		if item.Status == models.DownloadItemStatusFailed {
			event = EventDownloadFailed
		}
		m.events.Publish(event, item)
	}

	switch item.Status {
	case models.DownloadItemStatusCompleted, models.DownloadItemStatusRemoved:
		return
	}

	book, err := m.bookRepo.GetByID(ctx, item.BookID)
	if err != nil {
		log.WithError(err).WithField("book_id", item.BookID).
			Warn("Failed to load book for status propagation")
		return
	}

	if !book.ApplyDownloadStatus(item.Status, item.ErrorMessage) {
		return
	}
	if err := m.bookRepo.Update(ctx, book); err != nil {
		log.WithError(err).WithField("book_id", book.ID).
			Warn("Failed to persist book status")
		return
	}
	if m.events != nil {
		m.events.Publish(EventBookUpdated, book)
	}
}

// MapClientStatus maps a client-native status string to the closed status
// enum. Unrecognized strings default to DOWNLOADING; an unknown but
// progressing state must not be flagged as failed.
func MapClientStatus(native string) models.DownloadItemStatus {
	switch strings.ToLower(strings.TrimSpace(native)) {
	case "queued", "queueddl", "waiting", "allocating", "queued_for_processing":
		return models.DownloadItemStatusQueued
	case "paused", "pauseddl", "stopped":
		return models.DownloadItemStatusPaused
	case "stalled", "stalleddl":
		return models.DownloadItemStatusStalled
	case "seeding", "uploading", "stalledup", "queuedup", "forcedup", "queued_seed":
		return models.DownloadItemStatusSeeding
	case "complete", "completed", "finished", "pausedup", "moved_to_completed", "saved", "success":
		return models.DownloadItemStatusCompleted
	case "error", "failed", "failure", "missingfiles", "badly_damaged", "uncompress_failed", "password_timeout":
		return models.DownloadItemStatusFailed
	default:
		return models.DownloadItemStatusDownloading
	}
}

func int64PtrEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
