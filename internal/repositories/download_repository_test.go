package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hferret/shelfarr/internal/models"
	"github.com/hferret/shelfarr/internal/testutil"
)

func seedBook(t *testing.T, repo TrackedBookRepository, title string) *models.TrackedBook {
	t.Helper()
	book := &models.TrackedBook{
		Title:  title,
		Author: "Frank Herbert",
		Status: models.TrackedBookStatusWanted,
	}
	require.NoError(t, repo.Create(context.Background(), book))
	return book
}

func seedClient(t *testing.T, repo DownloadClientRepository, name string) *models.DownloadClientDefinition {
	t.Helper()
	def := &models.DownloadClientDefinition{
		Name:       name,
		ClientType: models.ClientTypeQBittorrent,
		Enabled:    true,
		Host:       "localhost",
		Port:       8080,
		Status:     models.ClientStatusUnhealthy,
	}
	require.NoError(t, repo.Create(context.Background(), def))
	return def
}

func TestDownloadItemRepository_CreateAndGet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	bookRepo := NewTrackedBookRepository(db.DB)
	clientRepo := NewDownloadClientRepository(db.DB)
	itemRepo := NewDownloadItemRepository(db.DB)

	book := seedBook(t, bookRepo, "Dune")
	client := seedClient(t, clientRepo, "qbit")

	item := &models.DownloadItem{
		BookID:       book.ID,
		ClientID:     client.ID,
		ClientItemID: models.PendingClientItemID,
		Title:        "Dune",
		DownloadURL:  "http://indexer/dune.torrent",
		Status:       models.DownloadItemStatusQueued,
	}
	require.NoError(t, itemRepo.Create(ctx, item))
	require.NotZero(t, item.ID)

	got, err := itemRepo.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dune", got.Title)
	assert.True(t, got.IsPending())
	assert.Equal(t, models.DownloadItemStatusQueued, got.Status)
}

func TestDownloadItemRepository_GetMissing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	itemRepo := NewDownloadItemRepository(db.DB)

	_, err := itemRepo.GetByID(context.Background(), 999)
	assert.ErrorIs(t, err, models.ErrDownloadItemNotFound)
}

func TestDownloadItemRepository_UpdateMissing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	itemRepo := NewDownloadItemRepository(db.DB)

	err := itemRepo.Update(context.Background(), &models.DownloadItem{ID: 999, Status: models.DownloadItemStatusQueued})
	assert.ErrorIs(t, err, models.ErrDownloadItemNotFound)
}

func TestDownloadItemRepository_UpdateItemsBatch(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	bookRepo := NewTrackedBookRepository(db.DB)
	clientRepo := NewDownloadClientRepository(db.DB)
	itemRepo := NewDownloadItemRepository(db.DB)

	book := seedBook(t, bookRepo, "Dune")
	client := seedClient(t, clientRepo, "qbit")

	var items []*models.DownloadItem
	for i := 0; i < 3; i++ {
		item := &models.DownloadItem{
			BookID:       book.ID,
			ClientID:     client.ID,
			ClientItemID: models.PendingClientItemID,
			Title:        "Dune",
			DownloadURL:  "http://indexer/dune.torrent",
			Status:       models.DownloadItemStatusQueued,
		}
		require.NoError(t, itemRepo.Create(ctx, item))
		items = append(items, item)
	}

	items[0].ClientItemID = "hash0"
	items[0].Status = models.DownloadItemStatusDownloading
	items[0].Progress = 10
	items[1].ClientItemID = "hash1"
	items[1].Status = models.DownloadItemStatusSeeding
	items[2].Status = models.DownloadItemStatusRemoved

	require.NoError(t, itemRepo.UpdateItems(ctx, items))

	got, err := itemRepo.GetByID(ctx, items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "hash0", got.ClientItemID)
	assert.Equal(t, models.DownloadItemStatusDownloading, got.Status)
	assert.Equal(t, float64(10), got.Progress)

	got, err = itemRepo.GetByID(ctx, items[2].ID)
	require.NoError(t, err)
	assert.Equal(t, models.DownloadItemStatusRemoved, got.Status)
}

func TestDownloadItemRepository_ListActive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	bookRepo := NewTrackedBookRepository(db.DB)
	clientRepo := NewDownloadClientRepository(db.DB)
	itemRepo := NewDownloadItemRepository(db.DB)

	book := seedBook(t, bookRepo, "Dune")
	clientA := seedClient(t, clientRepo, "a")
	clientB := seedClient(t, clientRepo, "b")

	mk := func(clientID int64, status models.DownloadItemStatus) {
		item := &models.DownloadItem{
			BookID:       book.ID,
			ClientID:     clientID,
			ClientItemID: models.PendingClientItemID,
			Title:        "Dune",
			DownloadURL:  "u",
			Status:       status,
		}
		require.NoError(t, itemRepo.Create(ctx, item))
	}

	mk(clientA.ID, models.DownloadItemStatusDownloading)
	mk(clientA.ID, models.DownloadItemStatusCompleted)
	mk(clientB.ID, models.DownloadItemStatusQueued)

	all, err := itemRepo.ListActive(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyA, err := itemRepo.ListActive(ctx, &clientA.ID)
	require.NoError(t, err)
	require.Len(t, onlyA, 1)
	assert.Equal(t, models.DownloadItemStatusDownloading, onlyA[0].Status)
}

func TestDownloadItemRepository_ListHistory(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	bookRepo := NewTrackedBookRepository(db.DB)
	clientRepo := NewDownloadClientRepository(db.DB)
	itemRepo := NewDownloadItemRepository(db.DB)

	book := seedBook(t, bookRepo, "Dune")
	client := seedClient(t, clientRepo, "qbit")

	for _, status := range []models.DownloadItemStatus{
		models.DownloadItemStatusDownloading,
		models.DownloadItemStatusCompleted,
		models.DownloadItemStatusFailed,
		models.DownloadItemStatusRemoved,
	} {
		item := &models.DownloadItem{
			BookID:       book.ID,
			ClientID:     client.ID,
			ClientItemID: "x",
			Title:        "Dune",
			DownloadURL:  "u",
			Status:       status,
		}
		require.NoError(t, itemRepo.Create(ctx, item))
	}

	history, err := itemRepo.ListHistory(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, history, 3)
	for _, item := range history {
		assert.True(t, item.Status.IsTerminal())
	}
}

func TestDownloadItemRepository_ListCompletedUnimported(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	bookRepo := NewTrackedBookRepository(db.DB)
	clientRepo := NewDownloadClientRepository(db.DB)
	itemRepo := NewDownloadItemRepository(db.DB)

	imported := seedBook(t, bookRepo, "Dune")
	waiting := seedBook(t, bookRepo, "Dune Messiah")
	client := seedClient(t, clientRepo, "qbit")

	path := "/downloads/done"
	mk := func(bookID int64, filePath *string) {
		item := &models.DownloadItem{
			BookID:       bookID,
			ClientID:     client.ID,
			ClientItemID: "x",
			Title:        "t",
			DownloadURL:  "u",
			Status:       models.DownloadItemStatusCompleted,
			FilePath:     filePath,
		}
		require.NoError(t, itemRepo.Create(ctx, item))
	}

	mk(imported.ID, &path)
	mk(waiting.ID, &path)
	mk(waiting.ID, nil) // no file path: cannot be imported

	// The first book already has an imported file.
	require.NoError(t, bookRepo.AddFile(ctx, &models.TrackedBookFile{
		BookID:     imported.ID,
		FilePath:   "/library/dune.epub",
		FileFormat: "epub",
	}))

	pending, err := itemRepo.ListCompletedUnimported(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, waiting.ID, pending[0].BookID)
}

func TestTrackedBookRepository_CRUD(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	repo := NewTrackedBookRepository(db.DB)

	book := &models.TrackedBook{
		Title:            "Dune",
		Author:           "Frank Herbert",
		Status:           models.TrackedBookStatusWanted,
		PreferredFormats: models.StringList{"epub"},
	}
	require.NoError(t, repo.Create(ctx, book))

	got, err := repo.GetByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StringList{"epub"}, got.PreferredFormats)

	got.Status = models.TrackedBookStatusDownloading
	msg := "stuck"
	got.LastError = &msg
	require.NoError(t, repo.Update(ctx, got))

	got, err = repo.GetByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TrackedBookStatusDownloading, got.Status)
	require.NotNil(t, got.LastError)

	wanted := models.TrackedBookStatusWanted
	none, err := repo.List(ctx, &wanted, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, repo.Delete(ctx, book.ID))
	_, err = repo.GetByID(ctx, book.ID)
	assert.ErrorIs(t, err, models.ErrTrackedBookNotFound)
}

func TestDownloadClientRepository_ListEnabledOnly(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	repo := NewDownloadClientRepository(db.DB)

	enabled := seedClient(t, repo, "on")
	disabled := seedClient(t, repo, "off")
	disabled.Enabled = false
	require.NoError(t, repo.Update(ctx, disabled))

	all, err := repo.List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := repo.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, enabled.ID, active[0].ID)
}

func TestDecisionDefaultsRepository_Singleton(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	repo := NewDecisionDefaultsRepository(db.DB)

	defaults, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StringList{"epub"}, defaults.PreferredFormats)

	defaults.PreferredFormats = models.StringList{"epub", "mobi"}
	minSeeders := 3
	defaults.MinSeeders = &minSeeders
	require.NoError(t, repo.Update(ctx, defaults))

	got, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StringList{"epub", "mobi"}, got.PreferredFormats)
	require.NotNil(t, got.MinSeeders)
	assert.Equal(t, 3, *got.MinSeeders)
}

func TestBlocklistRepository(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	repo := NewBlocklistRepository(db.DB)

	reason := "bad archive"
	require.NoError(t, repo.Add(ctx, &models.BlocklistEntry{DownloadURL: "http://bad/a", Reason: &reason}))
	require.NoError(t, repo.Add(ctx, &models.BlocklistEntry{DownloadURL: "http://bad/b"}))

	// Re-adding the same URL replaces rather than fails.
	require.NoError(t, repo.Add(ctx, &models.BlocklistEntry{DownloadURL: "http://bad/a"}))

	entries, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	urls, err := repo.URLSet(ctx)
	require.NoError(t, err)
	_, ok := urls["http://bad/a"]
	assert.True(t, ok)

	require.NoError(t, repo.Remove(ctx, entries[0].ID))
	entries, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
