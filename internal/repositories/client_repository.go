package repositories

import (
	"context"
	"database/sql"

	"github.com/hferret/shelfarr/internal/models"
)

// SQLiteDownloadClientRepository implements DownloadClientRepository using SQLite
type SQLiteDownloadClientRepository struct {
	db *sql.DB
}

// NewDownloadClientRepository creates a new SQLite-based download client repository
func NewDownloadClientRepository(db *sql.DB) DownloadClientRepository {
	return &SQLiteDownloadClientRepository{db: db}
}

// Create inserts a new download client definition
func (r *SQLiteDownloadClientRepository) Create(ctx context.Context, def *models.DownloadClientDefinition) error {
	query := `
		INSERT INTO download_clients (
			name, client_type, enabled, host, port, use_ssl, url_base,
			username, password, api_key, timeout_seconds, priority, category,
			download_path, status, error_count, error_message,
			last_checked_at, last_successful_connection_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'), datetime('now'))
	`

	result, err := r.db.ExecContext(ctx, query,
		def.Name, def.ClientType, def.Enabled, def.Host, def.Port, def.UseSSL,
		def.URLBase, def.Username, def.Password, def.APIKey, def.TimeoutSeconds,
		def.Priority, def.Category, def.DownloadPath, def.Status,
		def.ErrorCount, def.ErrorMessage, def.LastCheckedAt, def.LastSuccessfulConnectionAt)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}

	def.ID = id
	return nil
}

const clientColumns = `
	id, name, client_type, enabled, host, port, use_ssl, url_base,
	username, password, api_key, timeout_seconds, priority, category,
	download_path, status, error_count, error_message,
	last_checked_at, last_successful_connection_at, created_at, updated_at
`

func scanClient(row interface{ Scan(...interface{}) error }) (*models.DownloadClientDefinition, error) {
	def := &models.DownloadClientDefinition{}
	err := row.Scan(
		&def.ID, &def.Name, &def.ClientType, &def.Enabled, &def.Host, &def.Port,
		&def.UseSSL, &def.URLBase, &def.Username, &def.Password, &def.APIKey,
		&def.TimeoutSeconds, &def.Priority, &def.Category, &def.DownloadPath,
		&def.Status, &def.ErrorCount, &def.ErrorMessage,
		&def.LastCheckedAt, &def.LastSuccessfulConnectionAt,
		&def.CreatedAt, &def.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return def, nil
}

// GetByID retrieves a download client definition by ID
func (r *SQLiteDownloadClientRepository) GetByID(ctx context.Context, id int64) (*models.DownloadClientDefinition, error) {
	query := `SELECT ` + clientColumns + ` FROM download_clients WHERE id = ?`

	def, err := scanClient(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrDownloadClientNotFound
		}
		return nil, err
	}
	return def, nil
}

// List retrieves download client definitions ordered by priority
func (r *SQLiteDownloadClientRepository) List(ctx context.Context, enabledOnly bool) ([]*models.DownloadClientDefinition, error) {
	query := `SELECT ` + clientColumns + ` FROM download_clients`
	if enabledOnly {
		query += ` WHERE enabled = 1`
	}
	query += ` ORDER BY priority, name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []*models.DownloadClientDefinition
	for rows.Next() {
		def, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

// Update persists changes to a download client definition
func (r *SQLiteDownloadClientRepository) Update(ctx context.Context, def *models.DownloadClientDefinition) error {
	query := `
		UPDATE download_clients SET
			name = ?, client_type = ?, enabled = ?, host = ?, port = ?,
			use_ssl = ?, url_base = ?, username = ?, password = ?, api_key = ?,
			timeout_seconds = ?, priority = ?, category = ?, download_path = ?,
			status = ?, error_count = ?, error_message = ?,
			last_checked_at = ?, last_successful_connection_at = ?,
			updated_at = datetime('now')
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		def.Name, def.ClientType, def.Enabled, def.Host, def.Port, def.UseSSL,
		def.URLBase, def.Username, def.Password, def.APIKey, def.TimeoutSeconds,
		def.Priority, def.Category, def.DownloadPath, def.Status,
		def.ErrorCount, def.ErrorMessage, def.LastCheckedAt,
		def.LastSuccessfulConnectionAt, def.ID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrDownloadClientNotFound
	}
	return nil
}

// Delete removes a download client definition
func (r *SQLiteDownloadClientRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM download_clients WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrDownloadClientNotFound
	}
	return nil
}
