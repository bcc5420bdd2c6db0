package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hferret/shelfarr/internal/models"
	"github.com/hferret/shelfarr/internal/services"
)

// BookHandler handles tracked book endpoints
type BookHandler struct {
	container *services.Container
}

// NewBookHandler creates a new book handler
func NewBookHandler(container *services.Container) *BookHandler {
	return &BookHandler{
		container: container,
	}
}

// ListBooks returns tracked books, optionally filtered by status
func (h *BookHandler) ListBooks(c *gin.Context) {
	var status *models.TrackedBookStatus
	if s := c.Query("status"); s != "" {
		bs := models.TrackedBookStatus(s)
		status = &bs
	}

	limit := 50
	if l := c.Query("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v >= 1 && v <= 200 {
			limit = v
		}
	}
	offset := 0
	if page := c.Query("page"); page != "" {
		if p, err := strconv.Atoi(page); err == nil && p >= 1 {
			offset = (p - 1) * limit
		}
	}

	books, err := h.container.GetTrackedBookRepository().List(c.Request.Context(), status, limit, offset)
	if err != nil {
		h.container.GetLogger().Errorf("Failed to list books: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list books"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"books": books})
}

// CreateBook starts tracking a new book
func (h *BookHandler) CreateBook(c *gin.Context) {
	var req models.TrackedBookCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
		return
	}

	book := &models.TrackedBook{
		Title:            req.Title,
		Author:           req.Author,
		ISBN:             req.ISBN,
		Status:           models.TrackedBookStatusWanted,
		AutoSearch:       req.AutoSearch,
		AutoDownload:     req.AutoDownload,
		PreferredFormats: req.PreferredFormats,
		IncludeKeywords:  req.IncludeKeywords,
		ExcludeKeywords:  req.ExcludeKeywords,
	}

	if err := h.container.GetTrackedBookRepository().Create(c.Request.Context(), book); err != nil {
		h.container.GetLogger().Errorf("Failed to create book: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create book"})
		return
	}

	c.JSON(http.StatusCreated, book)
}

// GetBook returns a single tracked book
func (h *BookHandler) GetBook(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid book ID"})
		return
	}

	book, err := h.container.GetTrackedBookRepository().GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrTrackedBookNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Book not found"})
			return
		}
		h.container.GetLogger().Errorf("Failed to get book %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get book"})
		return
	}

	c.JSON(http.StatusOK, book)
}

// UpdateBook applies a partial update to a tracked book
func (h *BookHandler) UpdateBook(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid book ID"})
		return
	}

	var req models.TrackedBookUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
		return
	}

	repo := h.container.GetTrackedBookRepository()
	book, err := repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrTrackedBookNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Book not found"})
			return
		}
		h.container.GetLogger().Errorf("Failed to get book %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get book"})
		return
	}

	if req.Title != nil {
		book.Title = *req.Title
	}
	if req.Author != nil {
		book.Author = *req.Author
	}
	if req.ISBN != nil {
		book.ISBN = req.ISBN
	}
	if req.AutoSearch != nil {
		book.AutoSearch = *req.AutoSearch
	}
	if req.AutoDownload != nil {
		book.AutoDownload = *req.AutoDownload
	}
	if req.PreferredFormats != nil {
		book.PreferredFormats = *req.PreferredFormats
	}
	if req.IncludeKeywords != nil {
		book.IncludeKeywords = *req.IncludeKeywords
	}
	if req.ExcludeKeywords != nil {
		book.ExcludeKeywords = *req.ExcludeKeywords
	}
	if req.Status != nil {
		book.Status = *req.Status
	}

	if err := repo.Update(c.Request.Context(), book); err != nil {
		h.container.GetLogger().Errorf("Failed to update book %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update book"})
		return
	}

	c.JSON(http.StatusOK, book)
}

// DeleteBook stops tracking a book
func (h *BookHandler) DeleteBook(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid book ID"})
		return
	}

	if err := h.container.GetTrackedBookRepository().Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, models.ErrTrackedBookNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Book not found"})
			return
		}
		h.container.GetLogger().Errorf("Failed to delete book %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete book"})
		return
	}

	c.JSON(http.StatusNoContent, nil)
}

// GetBookFiles returns the imported files for a book
func (h *BookHandler) GetBookFiles(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid book ID"})
		return
	}

	files, err := h.container.GetTrackedBookRepository().GetFiles(c.Request.Context(), id)
	if err != nil {
		h.container.GetLogger().Errorf("Failed to get files for book %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get book files"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"files": files})
}

// GetBookDownloads returns the download items associated with a book
func (h *BookHandler) GetBookDownloads(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid book ID"})
		return
	}

	items, err := h.container.GetDownloadItemRepository().ListByBook(c.Request.Context(), id)
	if err != nil {
		h.container.GetLogger().Errorf("Failed to get downloads for book %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get book downloads"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"downloads": items})
}
