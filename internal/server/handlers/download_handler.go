package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hferret/shelfarr/internal/models"
	"github.com/hferret/shelfarr/internal/services"
)

// DownloadHandler handles download queue endpoints
type DownloadHandler struct {
	container *services.Container
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(container *services.Container) *DownloadHandler {
	return &DownloadHandler{
		container: container,
	}
}

// GetQueue returns all active download items
func (h *DownloadHandler) GetQueue(c *gin.Context) {
	items, err := h.container.GetDownloadService().GetActiveDownloads(c.Request.Context())
	if err != nil {
		h.container.GetLogger().Errorf("Failed to get download queue: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get download queue"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"downloads": items,
		"total":     len(items),
	})
}

// GetHistory returns terminal download items, newest first
func (h *DownloadHandler) GetHistory(c *gin.Context) {
	limit := 0
	if l := c.Query("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v >= 1 {
			limit = v
		}
	}
	offset := 0
	if page := c.Query("page"); page != "" {
		if p, err := strconv.Atoi(page); err == nil && p >= 1 && limit > 0 {
			offset = (p - 1) * limit
		}
	}

	items, err := h.container.GetDownloadService().GetDownloadHistory(c.Request.Context(), limit, offset)
	if err != nil {
		h.container.GetLogger().Errorf("Failed to get download history: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get download history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"downloads": items})
}

// GetDownload returns a single download item
func (h *DownloadHandler) GetDownload(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid download ID"})
		return
	}

	item, err := h.container.GetDownloadService().GetDownload(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrDownloadItemNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Download not found"})
			return
		}
		h.container.GetLogger().Errorf("Failed to get download %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get download"})
		return
	}

	c.JSON(http.StatusOK, item)
}

// CancelDownload cancels a download. The item is marked removed locally
// regardless of whether the remote client acknowledged the cancellation.
func (h *DownloadHandler) CancelDownload(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid download ID"})
		return
	}

	if err := h.container.GetDownloadService().CancelDownload(c.Request.Context(), id); err != nil {
		if errors.Is(err, models.ErrDownloadItemNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Download not found"})
			return
		}
		h.container.GetLogger().Errorf("Failed to cancel download %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel download"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Download cancelled"})
}

// GrabRequest submits a specific release for a tracked book
type GrabRequest struct {
	BookID  int64               `json:"book_id" binding:"required"`
	Release *models.ReleaseInfo `json:"release" binding:"required"`
}

// Grab sends a release to the best available download client
func (h *DownloadHandler) Grab(c *gin.Context) {
	var req GrabRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
		return
	}
	if req.Release.Title == "" || req.Release.DownloadURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Release title and download_url are required"})
		return
	}

	book, err := h.container.GetTrackedBookRepository().GetByID(c.Request.Context(), req.BookID)
	if err != nil {
		if errors.Is(err, models.ErrTrackedBookNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Book not found"})
			return
		}
		h.container.GetLogger().Errorf("Failed to get book %d: %v", req.BookID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get book"})
		return
	}

	item, err := h.container.GetDownloadService().Grab(c.Request.Context(), book, req.Release)
	if err != nil {
		h.container.GetLogger().Errorf("Failed to grab release for book %d: %v", req.BookID, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to grab release",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, item)
}

// EvaluateRequest asks the decision engine to score candidate releases
type EvaluateRequest struct {
	BookID   int64                 `json:"book_id" binding:"required"`
	Releases []*models.ReleaseInfo `json:"releases" binding:"required"`
}

// Evaluate runs the decision engine over candidate releases for a book
// and returns the approved candidates in preference order alongside the
// rejections and their reasons
func (h *DownloadHandler) Evaluate(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
		return
	}

	book, err := h.container.GetTrackedBookRepository().GetByID(c.Request.Context(), req.BookID)
	if err != nil {
		if errors.Is(err, models.ErrTrackedBookNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Book not found"})
			return
		}
		h.container.GetLogger().Errorf("Failed to get book %d: %v", req.BookID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get book"})
		return
	}

	approved, rejected, err := h.container.GetDownloadService().EvaluateReleases(c.Request.Context(), book, req.Releases)
	if err != nil {
		h.container.GetLogger().Errorf("Failed to evaluate releases for book %d: %v", req.BookID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to evaluate releases"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"approved": approved,
		"rejected": rejected,
	})
}

// Sweep triggers an immediate reconciliation pass outside the normal
// monitor interval
func (h *DownloadHandler) Sweep(c *gin.Context) {
	h.container.GetMonitor().CheckDownloads(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"message": "Sweep completed"})
}
