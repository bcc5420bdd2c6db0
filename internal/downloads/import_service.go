package downloads

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hferret/shelfarr/internal/models"
	"github.com/hferret/shelfarr/internal/repositories"
)

// ImportService moves completed downloads into the library and finishes the
// book lifecycle. Book completion happens here, not in the monitor, so an
// import failure (bad file, disk full) surfaces instead of being masked by
// an already-completed book.
type ImportService struct {
	itemRepo repositories.DownloadItemRepository
	bookRepo repositories.TrackedBookRepository
	events   EventPublisher
	logger   *logrus.Logger

	libraryPath string
	extensions  map[string]bool
	interval    time.Duration

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewImportService creates an import service. extensions lists the file
// extensions (with leading dot) eligible for import.
func NewImportService(
	itemRepo repositories.DownloadItemRepository,
	bookRepo repositories.TrackedBookRepository,
	events EventPublisher,
	logger *logrus.Logger,
	libraryPath string,
	extensions []string,
	interval time.Duration,
) *ImportService {
	extSet := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		extSet[strings.ToLower(ext)] = true
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &ImportService{
		itemRepo:    itemRepo,
		bookRepo:    bookRepo,
		events:      events,
		logger:      logger,
		libraryPath: libraryPath,
		extensions:  extSet,
		interval:    interval,
		stopChan:    make(chan struct{}),
	}
}

// Start runs the periodic import scan until Stop is called
func (s *ImportService) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopChan:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.ScanAndImport(ctx)
			}
		}
	}()
}

// Stop halts the scan loop
func (s *ImportService) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
}

// ScanAndImport imports every completed download that has not produced a
// library file yet. One item failing does not stop the rest.
func (s *ImportService) ScanAndImport(ctx context.Context) {
	items, err := s.itemRepo.ListCompletedUnimported(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list completed downloads")
		return
	}

	for _, item := range items {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		default:
		}
		if err := s.importItem(ctx, item); err != nil {
			s.logger.WithError(err).WithField("item_id", item.ID).
				Warn("Import failed")
		}
	}
}

// importItem moves one completed download into the library and marks the
// book COMPLETED, or FAILED when the file cannot be imported.
func (s *ImportService) importItem(ctx context.Context, item *models.DownloadItem) error {
	book, err := s.bookRepo.GetByID(ctx, item.BookID)
	if err != nil {
		return err
	}

	sourcePath, err := s.findImportableFile(*item.FilePath)
	if err != nil {
		return s.failBook(ctx, book, item, err)
	}

	targetDir := filepath.Join(s.libraryPath, sanitizePathComponent(book.Author), sanitizePathComponent(book.Title))
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return s.failBook(ctx, book, item, fmt.Errorf("creating library directory: %w", err))
	}
	targetPath := filepath.Join(targetDir, filepath.Base(sourcePath))

	if err := moveFile(sourcePath, targetPath); err != nil {
		return s.failBook(ctx, book, item, fmt.Errorf("moving file into library: %w", err))
	}

	file := &models.TrackedBookFile{
		BookID:     book.ID,
		FilePath:   targetPath,
		FileFormat: strings.TrimPrefix(strings.ToLower(filepath.Ext(targetPath)), "."),
	}
	if info, statErr := os.Stat(targetPath); statErr == nil {
		size := info.Size()
		file.FileSizeBytes = &size
	}
	if err := s.bookRepo.AddFile(ctx, file); err != nil {
		return err
	}

	// Import is the only automatic path allowed to complete a book.
	book.Status = models.TrackedBookStatusCompleted
	book.LastError = nil
	if err := s.bookRepo.Update(ctx, book); err != nil {
		return err
	}
	if s.events != nil {
		s.events.Publish(EventBookUpdated, book)
	}

	s.logger.WithFields(logrus.Fields{
		"book_id": book.ID,
		"item_id": item.ID,
		"path":    targetPath,
	}).Info("Download imported into library")
	return nil
}

func (s *ImportService) failBook(ctx context.Context, book *models.TrackedBook, item *models.DownloadItem, cause error) error {
	msg := cause.Error()
	if book.ApplyDownloadStatus(models.DownloadItemStatusFailed, &msg) {
		if err := s.bookRepo.Update(ctx, book); err != nil {
			return err
		}
		if s.events != nil {
			s.events.Publish(EventBookUpdated, book)
		}
	}

	item.ErrorMessage = &msg
	item.Status = models.DownloadItemStatusFailed
	if err := s.itemRepo.Update(ctx, item); err != nil {
		return err
	}
	return cause
}

// findImportableFile resolves the client-reported path to a concrete file
// with an eligible extension. Directories are searched one level deep; the
// largest eligible file wins, which skips samples and metadata droppings.
func (s *ImportService) findImportableFile(reported string) (string, error) {
	info, err := os.Stat(reported)
	if err != nil {
		return "", fmt.Errorf("download path missing: %w", err)
	}

	if !info.IsDir() {
		if s.eligible(reported) {
			return reported, nil
		}
		return "", fmt.Errorf("file %s has no importable extension", reported)
	}

	entries, err := os.ReadDir(reported)
	if err != nil {
		return "", err
	}
	var best string
	var bestSize int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(reported, entry.Name())
		if !s.eligible(path) {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		if fi.Size() > bestSize {
			best, bestSize = path, fi.Size()
		}
	}
	if best == "" {
		return "", fmt.Errorf("no importable file found in %s", reported)
	}
	return best, nil
}

func (s *ImportService) eligible(path string) bool {
	if len(s.extensions) == 0 {
		return true
	}
	return s.extensions[strings.ToLower(filepath.Ext(path))]
}

// moveFile renames when possible and falls back to copy+remove across
// filesystems.
func moveFile(source, target string) error {
	if err := os.Rename(source, target); err == nil {
		return nil
	}

	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(target)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(source)
}

func sanitizePathComponent(name string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
		"\"", "_", "<", "_", ">", "_", "|", "_",
	)
	cleaned := strings.TrimSpace(replacer.Replace(name))
	if cleaned == "" {
		cleaned = "unknown"
	}
	return cleaned
}
