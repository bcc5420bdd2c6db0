package repositories

import (
	"context"
	"database/sql"

	"github.com/hferret/shelfarr/internal/models"
)

// SQLiteBlocklistRepository implements BlocklistRepository using SQLite
type SQLiteBlocklistRepository struct {
	db *sql.DB
}

// NewBlocklistRepository creates a new SQLite-based blocklist repository
func NewBlocklistRepository(db *sql.DB) BlocklistRepository {
	return &SQLiteBlocklistRepository{db: db}
}

// Add records a blocked release URL; adding an already blocked URL is a no-op
func (r *SQLiteBlocklistRepository) Add(ctx context.Context, entry *models.BlocklistEntry) error {
	query := `
		INSERT INTO blocklist (download_url, reason, created_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(download_url) DO UPDATE SET reason = excluded.reason
	`

	result, err := r.db.ExecContext(ctx, query, entry.DownloadURL, entry.Reason)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}

	entry.ID = id
	return nil
}

// Remove deletes a blocklist entry
func (r *SQLiteBlocklistRepository) Remove(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM blocklist WHERE id = ?`, id)
	return err
}

// List retrieves all blocklist entries, newest first
func (r *SQLiteBlocklistRepository) List(ctx context.Context) ([]*models.BlocklistEntry, error) {
	query := `SELECT id, download_url, reason, created_at FROM blocklist ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.BlocklistEntry
	for rows.Next() {
		entry := &models.BlocklistEntry{}
		if err := rows.Scan(&entry.ID, &entry.DownloadURL, &entry.Reason, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// URLSet retrieves the blocked URLs as a lookup set
func (r *SQLiteBlocklistRepository) URLSet(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT download_url FROM blocklist`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := make(map[string]struct{})
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, err
		}
		set[url] = struct{}{}
	}
	return set, rows.Err()
}
