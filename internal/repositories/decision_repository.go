package repositories

import (
	"context"
	"database/sql"

	"github.com/hferret/shelfarr/internal/models"
)

// SQLiteDecisionDefaultsRepository implements DecisionDefaultsRepository
// using SQLite. The defaults live in a single row with id 1, seeded by the
// initial migration.
type SQLiteDecisionDefaultsRepository struct {
	db *sql.DB
}

// NewDecisionDefaultsRepository creates a new SQLite-based defaults repository
func NewDecisionDefaultsRepository(db *sql.DB) DecisionDefaultsRepository {
	return &SQLiteDecisionDefaultsRepository{db: db}
}

// Get retrieves the decision defaults row
func (r *SQLiteDecisionDefaultsRepository) Get(ctx context.Context) (*models.DownloadDecisionDefaults, error) {
	query := `
		SELECT id, preferred_formats, exclude_keywords, require_keywords,
			   min_size_bytes, max_size_bytes, min_seeders, min_age_days, max_age_days,
			   require_title_match, require_author_match, require_isbn_match, updated_at
		FROM download_decision_defaults WHERE id = 1
	`

	defaults := &models.DownloadDecisionDefaults{}
	err := r.db.QueryRowContext(ctx, query).Scan(
		&defaults.ID, &defaults.PreferredFormats, &defaults.ExcludeKeywords,
		&defaults.RequireKeywords, &defaults.MinSizeBytes, &defaults.MaxSizeBytes,
		&defaults.MinSeeders, &defaults.MinAgeDays, &defaults.MaxAgeDays,
		&defaults.RequireTitleMatch, &defaults.RequireAuthorMatch,
		&defaults.RequireISBNMatch, &defaults.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return defaults, nil
}

// Update replaces the decision defaults row
func (r *SQLiteDecisionDefaultsRepository) Update(ctx context.Context, defaults *models.DownloadDecisionDefaults) error {
	query := `
		UPDATE download_decision_defaults SET
			preferred_formats = ?, exclude_keywords = ?, require_keywords = ?,
			min_size_bytes = ?, max_size_bytes = ?, min_seeders = ?,
			min_age_days = ?, max_age_days = ?,
			require_title_match = ?, require_author_match = ?, require_isbn_match = ?,
			updated_at = datetime('now')
		WHERE id = 1
	`

	_, err := r.db.ExecContext(ctx, query,
		defaults.PreferredFormats, defaults.ExcludeKeywords, defaults.RequireKeywords,
		defaults.MinSizeBytes, defaults.MaxSizeBytes, defaults.MinSeeders,
		defaults.MinAgeDays, defaults.MaxAgeDays,
		defaults.RequireTitleMatch, defaults.RequireAuthorMatch, defaults.RequireISBNMatch)
	return err
}
