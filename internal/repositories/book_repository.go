package repositories

import (
	"context"
	"database/sql"

	"github.com/hferret/shelfarr/internal/models"
)

// SQLiteTrackedBookRepository implements TrackedBookRepository using SQLite
type SQLiteTrackedBookRepository struct {
	db *sql.DB
}

// NewTrackedBookRepository creates a new SQLite-based tracked book repository
func NewTrackedBookRepository(db *sql.DB) TrackedBookRepository {
	return &SQLiteTrackedBookRepository{db: db}
}

// Create inserts a new tracked book
func (r *SQLiteTrackedBookRepository) Create(ctx context.Context, book *models.TrackedBook) error {
	query := `
		INSERT INTO tracked_books (
			title, author, isbn, auto_search, auto_download,
			preferred_formats, include_keywords, exclude_keywords,
			require_title_match, require_author_match, require_isbn_match,
			status, last_error, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'), datetime('now'))
	`

	result, err := r.db.ExecContext(ctx, query,
		book.Title, book.Author, book.ISBN, book.AutoSearch, book.AutoDownload,
		book.PreferredFormats, book.IncludeKeywords, book.ExcludeKeywords,
		book.RequireTitleMatch, book.RequireAuthorMatch, book.RequireISBNMatch,
		book.Status, book.LastError)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}

	book.ID = id
	return nil
}

const trackedBookColumns = `
	id, title, author, isbn, auto_search, auto_download,
	preferred_formats, include_keywords, exclude_keywords,
	require_title_match, require_author_match, require_isbn_match,
	status, last_error, created_at, updated_at
`

func scanTrackedBook(row interface{ Scan(...interface{}) error }) (*models.TrackedBook, error) {
	book := &models.TrackedBook{}
	err := row.Scan(
		&book.ID, &book.Title, &book.Author, &book.ISBN,
		&book.AutoSearch, &book.AutoDownload,
		&book.PreferredFormats, &book.IncludeKeywords, &book.ExcludeKeywords,
		&book.RequireTitleMatch, &book.RequireAuthorMatch, &book.RequireISBNMatch,
		&book.Status, &book.LastError, &book.CreatedAt, &book.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return book, nil
}

// GetByID retrieves a tracked book by ID
func (r *SQLiteTrackedBookRepository) GetByID(ctx context.Context, id int64) (*models.TrackedBook, error) {
	query := `SELECT ` + trackedBookColumns + ` FROM tracked_books WHERE id = ?`

	book, err := scanTrackedBook(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrTrackedBookNotFound
		}
		return nil, err
	}
	return book, nil
}

// List retrieves tracked books, optionally filtered by status
func (r *SQLiteTrackedBookRepository) List(ctx context.Context, status *models.TrackedBookStatus, limit, offset int) ([]*models.TrackedBook, error) {
	query := `SELECT ` + trackedBookColumns + ` FROM tracked_books`
	args := []interface{}{}
	if status != nil {
		query += ` WHERE status = ?`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []*models.TrackedBook
	for rows.Next() {
		book, err := scanTrackedBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, rows.Err()
}

// Update persists changes to an existing tracked book
func (r *SQLiteTrackedBookRepository) Update(ctx context.Context, book *models.TrackedBook) error {
	query := `
		UPDATE tracked_books SET
			title = ?, author = ?, isbn = ?, auto_search = ?, auto_download = ?,
			preferred_formats = ?, include_keywords = ?, exclude_keywords = ?,
			require_title_match = ?, require_author_match = ?, require_isbn_match = ?,
			status = ?, last_error = ?, updated_at = datetime('now')
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		book.Title, book.Author, book.ISBN, book.AutoSearch, book.AutoDownload,
		book.PreferredFormats, book.IncludeKeywords, book.ExcludeKeywords,
		book.RequireTitleMatch, book.RequireAuthorMatch, book.RequireISBNMatch,
		book.Status, book.LastError, book.ID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrTrackedBookNotFound
	}
	return nil
}

// Delete removes a tracked book; downloads and files cascade
func (r *SQLiteTrackedBookRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tracked_books WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrTrackedBookNotFound
	}
	return nil
}

// AddFile records an imported file for a tracked book
func (r *SQLiteTrackedBookRepository) AddFile(ctx context.Context, file *models.TrackedBookFile) error {
	query := `
		INSERT INTO tracked_book_files (book_id, file_path, file_format, file_size_bytes, imported_at)
		VALUES (?, ?, ?, ?, datetime('now'))
	`

	result, err := r.db.ExecContext(ctx, query,
		file.BookID, file.FilePath, file.FileFormat, file.FileSizeBytes)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}

	file.ID = id
	return nil
}

// GetFiles retrieves the imported files for a tracked book
func (r *SQLiteTrackedBookRepository) GetFiles(ctx context.Context, bookID int64) ([]*models.TrackedBookFile, error) {
	query := `
		SELECT id, book_id, file_path, file_format, file_size_bytes, imported_at
		FROM tracked_book_files WHERE book_id = ? ORDER BY imported_at
	`

	rows, err := r.db.QueryContext(ctx, query, bookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []*models.TrackedBookFile
	for rows.Next() {
		file := &models.TrackedBookFile{}
		if err := rows.Scan(&file.ID, &file.BookID, &file.FilePath,
			&file.FileFormat, &file.FileSizeBytes, &file.ImportedAt); err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, rows.Err()
}
