package repositories

import (
	"context"
	"database/sql"

	"github.com/hferret/shelfarr/internal/models"
)

// SQLiteIndexerRepository implements IndexerRepository using SQLite
type SQLiteIndexerRepository struct {
	db *sql.DB
}

// NewIndexerRepository creates a new SQLite-based indexer repository
func NewIndexerRepository(db *sql.DB) IndexerRepository {
	return &SQLiteIndexerRepository{db: db}
}

// Create inserts a new indexer
func (r *SQLiteIndexerRepository) Create(ctx context.Context, indexer *models.Indexer) error {
	query := `
		INSERT INTO indexers (name, priority, enabled, created_at, updated_at)
		VALUES (?, ?, ?, datetime('now'), datetime('now'))
	`

	result, err := r.db.ExecContext(ctx, query, indexer.Name, indexer.Priority, indexer.Enabled)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}

	indexer.ID = id
	return nil
}

// GetByID retrieves an indexer by ID
func (r *SQLiteIndexerRepository) GetByID(ctx context.Context, id int64) (*models.Indexer, error) {
	query := `SELECT id, name, priority, enabled, created_at, updated_at FROM indexers WHERE id = ?`

	indexer := &models.Indexer{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&indexer.ID, &indexer.Name, &indexer.Priority, &indexer.Enabled,
		&indexer.CreatedAt, &indexer.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrIndexerNotFound
		}
		return nil, err
	}
	return indexer, nil
}

// List retrieves indexers ordered by priority
func (r *SQLiteIndexerRepository) List(ctx context.Context, enabledOnly bool) ([]*models.Indexer, error) {
	query := `SELECT id, name, priority, enabled, created_at, updated_at FROM indexers`
	if enabledOnly {
		query += ` WHERE enabled = 1`
	}
	query += ` ORDER BY priority, name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indexers []*models.Indexer
	for rows.Next() {
		indexer := &models.Indexer{}
		if err := rows.Scan(&indexer.ID, &indexer.Name, &indexer.Priority,
			&indexer.Enabled, &indexer.CreatedAt, &indexer.UpdatedAt); err != nil {
			return nil, err
		}
		indexers = append(indexers, indexer)
	}
	return indexers, rows.Err()
}

// Update persists changes to an indexer
func (r *SQLiteIndexerRepository) Update(ctx context.Context, indexer *models.Indexer) error {
	query := `
		UPDATE indexers SET name = ?, priority = ?, enabled = ?, updated_at = datetime('now')
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query, indexer.Name, indexer.Priority, indexer.Enabled, indexer.ID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrIndexerNotFound
	}
	return nil
}

// Delete removes an indexer
func (r *SQLiteIndexerRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM indexers WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrIndexerNotFound
	}
	return nil
}
