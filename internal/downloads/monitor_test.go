package downloads

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hferret/shelfarr/internal/models"
	"github.com/hferret/shelfarr/internal/testutil"
)

func newTestMonitor(t *testing.T) *Monitor {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return &Monitor{logger: logger}
}

func testEntry(m *Monitor) *logrus.Entry {
	return m.logger.WithField("test", true)
}

func strPtr(s string) *string { return &s }

func TestReconcile_StatusUpdate(t *testing.T) {
	m := newTestMonitor(t)

	local := []*models.DownloadItem{
		{ID: 1, ClientItemID: "abc123", Title: "Dune", Status: models.DownloadItemStatusQueued},
	}
	remote := []models.ClientItem{
		{ClientItemID: "ABC123", Title: "Dune", Status: "downloading", Progress: 42.5},
	}

	changed := m.reconcile(testEntry(m), local, remote)
	require.Len(t, changed, 1)
	assert.Equal(t, models.DownloadItemStatusDownloading, changed[0].Status)
	assert.Equal(t, 42.5, changed[0].Progress)
	assert.NotNil(t, changed[0].StartedAt)
}

func TestReconcile_Idempotent(t *testing.T) {
	m := newTestMonitor(t)

	local := []*models.DownloadItem{
		{ID: 1, ClientItemID: "abc123", Title: "Dune", Status: models.DownloadItemStatusQueued},
	}
	remote := []models.ClientItem{
		{ClientItemID: "ABC123", Title: "Dune", Status: "downloading", Progress: 42.5},
	}

	changed := m.reconcile(testEntry(m), local, remote)
	require.Len(t, changed, 1)

	// A second pass over the identical remote state must be a no-op.
	changed = m.reconcile(testEntry(m), local, remote)
	assert.Empty(t, changed)
}

func TestReconcile_CaseInsensitiveIDMatch(t *testing.T) {
	m := newTestMonitor(t)

	local := []*models.DownloadItem{
		{ID: 1, ClientItemID: "AbC123DeF", Title: "Dune", Status: models.DownloadItemStatusDownloading},
	}
	remote := []models.ClientItem{
		{ClientItemID: "abc123def", Title: "Dune", Status: "downloading", Progress: 10},
	}

	changed := m.reconcile(testEntry(m), local, remote)
	require.Len(t, changed, 1)
	assert.Equal(t, models.DownloadItemStatusDownloading, changed[0].Status)
	assert.Equal(t, float64(10), changed[0].Progress)
}

func TestReconcile_PendingAdoptionByExactTitle(t *testing.T) {
	m := newTestMonitor(t)

	local := []*models.DownloadItem{
		{ID: 1, ClientItemID: models.PendingClientItemID, Title: "Dune", Status: models.DownloadItemStatusQueued},
	}
	remote := []models.ClientItem{
		{ClientItemID: "aBcDeF", Title: "Dune", Status: "downloading", Progress: 5},
	}

	changed := m.reconcile(testEntry(m), local, remote)
	require.Len(t, changed, 1)
	// Original casing of the remote id is preserved.
	assert.Equal(t, "aBcDeF", changed[0].ClientItemID)
	assert.Equal(t, models.DownloadItemStatusDownloading, changed[0].Status)
}

func TestReconcile_PendingAdoptionRequiresExactTitle(t *testing.T) {
	m := newTestMonitor(t)

	local := []*models.DownloadItem{
		{ID: 1, ClientItemID: models.PendingClientItemID, Title: "Foo", Status: models.DownloadItemStatusQueued},
	}
	remote := []models.ClientItem{
		{ClientItemID: "hash1", Title: "Foo bar", Status: "downloading"},
		{ClientItemID: "hash2", Title: "foo", Status: "downloading"},
	}

	// Neither a prefix match nor a case variant qualifies.
	changed := m.reconcile(testEntry(m), local, remote)
	assert.Empty(t, changed)
	assert.True(t, local[0].IsPending())
}

func TestReconcile_AdoptionIsNotReentrant(t *testing.T) {
	m := newTestMonitor(t)

	// A non-pending item already claims hash1. The pending item with the
	// same title must not steal it.
	local := []*models.DownloadItem{
		{ID: 1, ClientItemID: "HASH1", Title: "Dune", Status: models.DownloadItemStatusDownloading},
		{ID: 2, ClientItemID: models.PendingClientItemID, Title: "Dune", Status: models.DownloadItemStatusQueued},
	}
	remote := []models.ClientItem{
		{ClientItemID: "hash1", Title: "Dune", Status: "downloading", Progress: 50},
	}

	changed := m.reconcile(testEntry(m), local, remote)
	require.Len(t, changed, 1)
	assert.Equal(t, int64(1), changed[0].ID)
	assert.True(t, local[1].IsPending())
}

func TestReconcile_TwoPendingItemsOneRemote(t *testing.T) {
	m := newTestMonitor(t)

	// Only one pending item may adopt the single remote transfer.
	local := []*models.DownloadItem{
		{ID: 1, ClientItemID: models.PendingClientItemID, Title: "Dune", Status: models.DownloadItemStatusQueued},
		{ID: 2, ClientItemID: models.PendingClientItemID, Title: "Dune", Status: models.DownloadItemStatusQueued},
	}
	remote := []models.ClientItem{
		{ClientItemID: "hash1", Title: "Dune", Status: "downloading"},
	}

	changed := m.reconcile(testEntry(m), local, remote)
	require.Len(t, changed, 1)

	adopted := 0
	for _, item := range local {
		if !item.IsPending() {
			adopted++
		}
	}
	assert.Equal(t, 1, adopted)
}

func TestReconcile_MissingRemoteMarksRemoved(t *testing.T) {
	m := newTestMonitor(t)

	local := []*models.DownloadItem{
		{ID: 1, ClientItemID: "gone", Title: "Dune", Status: models.DownloadItemStatusDownloading},
	}

	changed := m.reconcile(testEntry(m), local, nil)
	require.Len(t, changed, 1)
	assert.Equal(t, models.DownloadItemStatusRemoved, changed[0].Status)
	require.NotNil(t, changed[0].ErrorMessage)
	assert.Equal(t, "download no longer present on client", *changed[0].ErrorMessage)
}

func TestReconcile_PendingNotMarkedRemoved(t *testing.T) {
	m := newTestMonitor(t)

	// A pending item with no match stays pending; it is not treated as an
	// externally removed transfer.
	local := []*models.DownloadItem{
		{ID: 1, ClientItemID: models.PendingClientItemID, Title: "Dune", Status: models.DownloadItemStatusQueued, CreatedAt: time.Now()},
	}

	changed := m.reconcile(testEntry(m), local, nil)
	assert.Empty(t, changed)
	assert.Equal(t, models.DownloadItemStatusQueued, local[0].Status)
}

func TestReconcile_UnmatchedRemoteIgnored(t *testing.T) {
	m := newTestMonitor(t)

	// Transfers the client carries for other tools are none of our business.
	local := []*models.DownloadItem{
		{ID: 1, ClientItemID: "mine", Title: "Dune", Status: models.DownloadItemStatusDownloading, Progress: 10},
	}
	remote := []models.ClientItem{
		{ClientItemID: "MINE", Title: "Dune", Status: "downloading", Progress: 10},
		{ClientItemID: "theirs", Title: "Some Linux ISO", Status: "downloading"},
	}

	changed := m.reconcile(testEntry(m), local, remote)
	assert.Empty(t, changed)
}

func TestUpdateItem_CompletedAtStampedOnce(t *testing.T) {
	m := newTestMonitor(t)

	item := &models.DownloadItem{Status: models.DownloadItemStatusDownloading}
	require.True(t, m.updateItem(item, &models.ClientItem{Status: "completed", Progress: 100}))
	require.NotNil(t, item.CompletedAt)
	first := *item.CompletedAt

	// Re-observing COMPLETED later must not move the stamp.
	time.Sleep(5 * time.Millisecond)
	item.Status = models.DownloadItemStatusSeeding
	m.updateItem(item, &models.ClientItem{Status: "completed", Progress: 100})
	assert.Equal(t, first, *item.CompletedAt)
}

func TestUpdateItem_FailedSetsDefaultError(t *testing.T) {
	m := newTestMonitor(t)

	item := &models.DownloadItem{Status: models.DownloadItemStatusDownloading}
	m.updateItem(item, &models.ClientItem{Status: "missingFiles"})
	assert.Equal(t, models.DownloadItemStatusFailed, item.Status)
	require.NotNil(t, item.ErrorMessage)
	assert.Equal(t, "download failed on client: missingFiles", *item.ErrorMessage)
}

func TestUpdateItem_NeverBlanksKnownFilePath(t *testing.T) {
	m := newTestMonitor(t)

	item := &models.DownloadItem{
		Status:   models.DownloadItemStatusDownloading,
		FilePath: strPtr("/downloads/dune.epub"),
	}
	m.updateItem(item, &models.ClientItem{Status: "downloading", FilePath: strPtr("")})
	require.NotNil(t, item.FilePath)
	assert.Equal(t, "/downloads/dune.epub", *item.FilePath)

	m.updateItem(item, &models.ClientItem{Status: "downloading"})
	require.NotNil(t, item.FilePath)
}

func TestUpdateItem_UnknownStatusDefaultsToDownloading(t *testing.T) {
	m := newTestMonitor(t)

	item := &models.DownloadItem{Status: models.DownloadItemStatusQueued}
	m.updateItem(item, &models.ClientItem{Status: "checking"})
	assert.Equal(t, models.DownloadItemStatusDownloading, item.Status)
	assert.NotNil(t, item.StartedAt)
}

func TestMapClientStatus(t *testing.T) {
	cases := map[string]models.DownloadItemStatus{
		"queued":                models.DownloadItemStatusQueued,
		"queuedDL":              models.DownloadItemStatusQueued,
		"waiting":               models.DownloadItemStatusQueued,
		"allocating":            models.DownloadItemStatusQueued,
		"queued_for_processing": models.DownloadItemStatusQueued,
		"paused":                models.DownloadItemStatusPaused,
		"pausedDL":              models.DownloadItemStatusPaused,
		"stopped":               models.DownloadItemStatusPaused,
		"stalled":               models.DownloadItemStatusStalled,
		"stalledDL":             models.DownloadItemStatusStalled,
		"seeding":               models.DownloadItemStatusSeeding,
		"uploading":             models.DownloadItemStatusSeeding,
		"stalledUP":             models.DownloadItemStatusSeeding,
		"queuedUP":              models.DownloadItemStatusSeeding,
		"complete":              models.DownloadItemStatusCompleted,
		"completed":             models.DownloadItemStatusCompleted,
		"finished":              models.DownloadItemStatusCompleted,
		"pausedUP":              models.DownloadItemStatusCompleted,
		"success":               models.DownloadItemStatusCompleted,
		"error":                 models.DownloadItemStatusFailed,
		"failed":                models.DownloadItemStatusFailed,
		"missingFiles":          models.DownloadItemStatusFailed,
		"downloading":           models.DownloadItemStatusDownloading,
		"checking":              models.DownloadItemStatusDownloading,
		"metaDL":                models.DownloadItemStatusDownloading,
		"some future state":     models.DownloadItemStatusDownloading,
		"  Queued  ":            models.DownloadItemStatusQueued,
	}

	for native, want := range cases {
		assert.Equal(t, want, MapClientStatus(native), "native status %q", native)
	}
}

func TestPropagate_FailedUpdatesBook(t *testing.T) {
	bookRepo := new(testutil.MockTrackedBookRepository)
	events := &testutil.CapturingPublisher{}

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	m := &Monitor{bookRepo: bookRepo, events: events, logger: logger}

	book := &models.TrackedBook{ID: 7, Status: models.TrackedBookStatusDownloading}
	bookRepo.On("GetByID", context.Background(), int64(7)).Return(book, nil)
	bookRepo.On("Update", context.Background(), book).Return(nil)

	item := &models.DownloadItem{
		ID:           1,
		BookID:       7,
		Status:       models.DownloadItemStatusFailed,
		ErrorMessage: strPtr("download failed on client: error"),
	}
	m.propagate(context.Background(), testEntry(m), item)

	assert.Equal(t, models.TrackedBookStatusFailed, book.Status)
	require.NotNil(t, book.LastError)
	assert.Equal(t, "download failed on client: error", *book.LastError)
	assert.Equal(t, []string{EventDownloadFailed, EventBookUpdated}, events.EventNames())
	bookRepo.AssertExpectations(t)
}

func TestPropagate_CompletedDoesNotTouchBook(t *testing.T) {
	bookRepo := new(testutil.MockTrackedBookRepository)
	events := &testutil.CapturingPublisher{}

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	m := &Monitor{bookRepo: bookRepo, events: events, logger: logger}

	item := &models.DownloadItem{ID: 1, BookID: 7, Status: models.DownloadItemStatusCompleted}
	m.propagate(context.Background(), testEntry(m), item)

	// The event still goes out; the book is left for the import path.
	assert.Equal(t, []string{EventDownloadUpdated}, events.EventNames())
	bookRepo.AssertNotCalled(t, "GetByID")
	bookRepo.AssertNotCalled(t, "Update")
}

func TestPropagate_RemovedDoesNotTouchBook(t *testing.T) {
	bookRepo := new(testutil.MockTrackedBookRepository)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	m := &Monitor{bookRepo: bookRepo, logger: logger}

	item := &models.DownloadItem{ID: 1, BookID: 7, Status: models.DownloadItemStatusRemoved}
	m.propagate(context.Background(), testEntry(m), item)

	bookRepo.AssertNotCalled(t, "GetByID")
}

func TestPropagate_UserTerminalBookIsNeverTouched(t *testing.T) {
	bookRepo := new(testutil.MockTrackedBookRepository)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	m := &Monitor{bookRepo: bookRepo, logger: logger}

	book := &models.TrackedBook{ID: 7, Status: models.TrackedBookStatusCompleted}
	bookRepo.On("GetByID", context.Background(), int64(7)).Return(book, nil)

	item := &models.DownloadItem{ID: 1, BookID: 7, Status: models.DownloadItemStatusDownloading}
	m.propagate(context.Background(), testEntry(m), item)

	assert.Equal(t, models.TrackedBookStatusCompleted, book.Status)
	bookRepo.AssertNotCalled(t, "Update")
}

func TestNewMonitor_JitterConfig(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	m := NewMonitor(nil, nil, nil, nil, nil, logger, time.Minute, time.Minute, time.Minute, 25)
	assert.Equal(t, 25, m.maxJitterPct)

	// Zero disables jitter entirely.
	m = NewMonitor(nil, nil, nil, nil, nil, logger, time.Minute, time.Minute, time.Minute, 0)
	assert.Equal(t, 0, m.maxJitterPct)

	// Out-of-range values fall back to the default.
	m = NewMonitor(nil, nil, nil, nil, nil, logger, time.Minute, time.Minute, time.Minute, -1)
	assert.Equal(t, 10, m.maxJitterPct)
	m = NewMonitor(nil, nil, nil, nil, nil, logger, time.Minute, time.Minute, time.Minute, 250)
	assert.Equal(t, 10, m.maxJitterPct)
}
