package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hferret/shelfarr/internal/models"
)

// SQLiteDownloadItemRepository implements DownloadItemRepository using SQLite
type SQLiteDownloadItemRepository struct {
	db *sql.DB
}

// NewDownloadItemRepository creates a new SQLite-based download item repository
func NewDownloadItemRepository(db *sql.DB) DownloadItemRepository {
	return &SQLiteDownloadItemRepository{db: db}
}

// Create inserts a new download item
func (r *SQLiteDownloadItemRepository) Create(ctx context.Context, item *models.DownloadItem) error {
	query := `
		INSERT INTO download_items (
			book_id, client_id, indexer_id, client_item_id, title, download_url,
			status, progress, size_bytes, downloaded_bytes, speed_bps, eta_seconds,
			file_path, error_message, started_at, completed_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'), datetime('now'))
	`

	result, err := r.db.ExecContext(ctx, query,
		item.BookID, item.ClientID, item.IndexerID, item.ClientItemID,
		item.Title, item.DownloadURL, item.Status, item.Progress,
		item.SizeBytes, item.DownloadedBytes, item.SpeedBPS, item.ETASeconds,
		item.FilePath, item.ErrorMessage, item.StartedAt, item.CompletedAt)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}

	item.ID = id
	return nil
}

const downloadItemColumns = `
	id, book_id, client_id, indexer_id, client_item_id, title, download_url,
	status, progress, size_bytes, downloaded_bytes, speed_bps, eta_seconds,
	file_path, error_message, started_at, completed_at, created_at, updated_at
`

func scanDownloadItem(row interface{ Scan(...interface{}) error }) (*models.DownloadItem, error) {
	item := &models.DownloadItem{}
	err := row.Scan(
		&item.ID, &item.BookID, &item.ClientID, &item.IndexerID,
		&item.ClientItemID, &item.Title, &item.DownloadURL,
		&item.Status, &item.Progress, &item.SizeBytes, &item.DownloadedBytes,
		&item.SpeedBPS, &item.ETASeconds, &item.FilePath, &item.ErrorMessage,
		&item.StartedAt, &item.CompletedAt, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// GetByID retrieves a download item by ID
func (r *SQLiteDownloadItemRepository) GetByID(ctx context.Context, id int64) (*models.DownloadItem, error) {
	query := `SELECT ` + downloadItemColumns + ` FROM download_items WHERE id = ?`

	item, err := scanDownloadItem(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrDownloadItemNotFound
		}
		return nil, err
	}
	return item, nil
}

const downloadItemUpdateQuery = `
	UPDATE download_items SET
		client_item_id = ?, status = ?, progress = ?, size_bytes = ?,
		downloaded_bytes = ?, speed_bps = ?, eta_seconds = ?, file_path = ?,
		error_message = ?, started_at = ?, completed_at = ?, updated_at = datetime('now')
	WHERE id = ?
`

// Update persists changes to a download item
func (r *SQLiteDownloadItemRepository) Update(ctx context.Context, item *models.DownloadItem) error {
	result, err := r.db.ExecContext(ctx, downloadItemUpdateQuery,
		item.ClientItemID, item.Status, item.Progress, item.SizeBytes,
		item.DownloadedBytes, item.SpeedBPS, item.ETASeconds, item.FilePath,
		item.ErrorMessage, item.StartedAt, item.CompletedAt, item.ID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrDownloadItemNotFound
	}
	return nil
}

// UpdateItems persists a batch of items atomically. Either every item in the
// batch commits or none does, so one sweep's view of a client is never
// half-applied.
func (r *SQLiteDownloadItemRepository) UpdateItems(ctx context.Context, items []*models.DownloadItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, downloadItemUpdateQuery)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, item := range items {
		if _, err := stmt.ExecContext(ctx,
			item.ClientItemID, item.Status, item.Progress, item.SizeBytes,
			item.DownloadedBytes, item.SpeedBPS, item.ETASeconds, item.FilePath,
			item.ErrorMessage, item.StartedAt, item.CompletedAt, item.ID); err != nil {
			return fmt.Errorf("updating item %d: %w", item.ID, err)
		}
	}

	return tx.Commit()
}

// ListActive retrieves non-terminal items, optionally for a single client
func (r *SQLiteDownloadItemRepository) ListActive(ctx context.Context, clientID *int64) ([]*models.DownloadItem, error) {
	query := `SELECT ` + downloadItemColumns + `
		FROM download_items
		WHERE status IN ('queued', 'downloading', 'paused', 'stalled', 'seeding')`
	args := []interface{}{}
	if clientID != nil {
		query += ` AND client_id = ?`
		args = append(args, *clientID)
	}
	query += ` ORDER BY created_at`

	return r.queryItems(ctx, query, args...)
}

// ListByBook retrieves every download item for a tracked book
func (r *SQLiteDownloadItemRepository) ListByBook(ctx context.Context, bookID int64) ([]*models.DownloadItem, error) {
	query := `SELECT ` + downloadItemColumns + ` FROM download_items WHERE book_id = ? ORDER BY created_at DESC`
	return r.queryItems(ctx, query, bookID)
}

// ListHistory retrieves terminal items, newest first
func (r *SQLiteDownloadItemRepository) ListHistory(ctx context.Context, limit, offset int) ([]*models.DownloadItem, error) {
	query := `SELECT ` + downloadItemColumns + `
		FROM download_items
		WHERE status IN ('completed', 'failed', 'removed')
		ORDER BY updated_at DESC LIMIT ? OFFSET ?`
	return r.queryItems(ctx, query, limit, offset)
}

// ListCompletedUnimported retrieves completed items whose book has no
// imported file for them yet.
func (r *SQLiteDownloadItemRepository) ListCompletedUnimported(ctx context.Context) ([]*models.DownloadItem, error) {
	query := `SELECT ` + downloadItemColumns + `
		FROM download_items d
		WHERE d.status = 'completed'
		  AND d.file_path IS NOT NULL
		  AND NOT EXISTS (
			SELECT 1 FROM tracked_book_files f
			WHERE f.book_id = d.book_id
		  )
		ORDER BY d.completed_at`
	return r.queryItems(ctx, query)
}

func (r *SQLiteDownloadItemRepository) queryItems(ctx context.Context, query string, args ...interface{}) ([]*models.DownloadItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.DownloadItem
	for rows.Next() {
		item, err := scanDownloadItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
