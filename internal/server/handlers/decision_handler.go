package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hferret/shelfarr/internal/models"
	"github.com/hferret/shelfarr/internal/services"
)

// DecisionHandler handles decision policy endpoints: the system-wide
// defaults, the release blocklist and the indexer registry.
type DecisionHandler struct {
	container *services.Container
}

// NewDecisionHandler creates a new decision handler
func NewDecisionHandler(container *services.Container) *DecisionHandler {
	return &DecisionHandler{
		container: container,
	}
}

// GetDefaults returns the system-wide decision defaults
func (h *DecisionHandler) GetDefaults(c *gin.Context) {
	defaults, err := h.container.GetDecisionDefaultsRepository().Get(c.Request.Context())
	if err != nil {
		h.container.GetLogger().Errorf("Failed to get decision defaults: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get decision defaults"})
		return
	}

	c.JSON(http.StatusOK, defaults)
}

// UpdateDefaults replaces the system-wide decision defaults
func (h *DecisionHandler) UpdateDefaults(c *gin.Context) {
	var defaults models.DownloadDecisionDefaults
	if err := c.ShouldBindJSON(&defaults); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
		return
	}

	if err := h.container.GetDecisionDefaultsRepository().Update(c.Request.Context(), &defaults); err != nil {
		h.container.GetLogger().Errorf("Failed to update decision defaults: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update decision defaults"})
		return
	}

	c.JSON(http.StatusOK, defaults)
}

// ListBlocklist returns all blocklisted release URLs
func (h *DecisionHandler) ListBlocklist(c *gin.Context) {
	entries, err := h.container.GetBlocklistRepository().List(c.Request.Context())
	if err != nil {
		h.container.GetLogger().Errorf("Failed to list blocklist: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list blocklist"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"blocklist": entries})
}

// BlocklistRequest adds a release URL to the blocklist
type BlocklistRequest struct {
	DownloadURL string  `json:"download_url" binding:"required"`
	Reason      *string `json:"reason,omitempty"`
}

// AddBlocklist permanently rejects a release URL
func (h *DecisionHandler) AddBlocklist(c *gin.Context) {
	var req BlocklistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
		return
	}

	if err := h.container.GetDownloadService().Blocklist(c.Request.Context(), req.DownloadURL, req.Reason); err != nil {
		h.container.GetLogger().Errorf("Failed to blocklist %s: %v", req.DownloadURL, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add blocklist entry"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Release blocklisted"})
}

// RemoveBlocklist removes a blocklist entry
func (h *DecisionHandler) RemoveBlocklist(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid blocklist ID"})
		return
	}

	if err := h.container.GetBlocklistRepository().Remove(c.Request.Context(), id); err != nil {
		h.container.GetLogger().Errorf("Failed to remove blocklist entry %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove blocklist entry"})
		return
	}

	c.JSON(http.StatusNoContent, nil)
}

// ListIndexers returns all registered indexers
func (h *DecisionHandler) ListIndexers(c *gin.Context) {
	enabledOnly := c.Query("enabled") == "true"

	indexers, err := h.container.GetIndexerRepository().List(c.Request.Context(), enabledOnly)
	if err != nil {
		h.container.GetLogger().Errorf("Failed to list indexers: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list indexers"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"indexers": indexers})
}

// IndexerRequest creates or updates an indexer registration
type IndexerRequest struct {
	Name     string `json:"name" binding:"required"`
	Priority int    `json:"priority"`
	Enabled  bool   `json:"enabled"`
}

// CreateIndexer registers a new indexer
func (h *DecisionHandler) CreateIndexer(c *gin.Context) {
	var req IndexerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
		return
	}

	indexer := &models.Indexer{
		Name:     req.Name,
		Priority: req.Priority,
		Enabled:  req.Enabled,
	}
	if err := h.container.GetIndexerRepository().Create(c.Request.Context(), indexer); err != nil {
		h.container.GetLogger().Errorf("Failed to create indexer: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create indexer"})
		return
	}

	c.JSON(http.StatusCreated, indexer)
}

// UpdateIndexer updates an indexer registration
func (h *DecisionHandler) UpdateIndexer(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid indexer ID"})
		return
	}

	var req IndexerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
		return
	}

	repo := h.container.GetIndexerRepository()
	indexer, err := repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrIndexerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Indexer not found"})
			return
		}
		h.container.GetLogger().Errorf("Failed to get indexer %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get indexer"})
		return
	}

	indexer.Name = req.Name
	indexer.Priority = req.Priority
	indexer.Enabled = req.Enabled

	if err := repo.Update(c.Request.Context(), indexer); err != nil {
		h.container.GetLogger().Errorf("Failed to update indexer %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update indexer"})
		return
	}

	c.JSON(http.StatusOK, indexer)
}

// DeleteIndexer removes an indexer registration
func (h *DecisionHandler) DeleteIndexer(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid indexer ID"})
		return
	}

	if err := h.container.GetIndexerRepository().Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, models.ErrIndexerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Indexer not found"})
			return
		}
		h.container.GetLogger().Errorf("Failed to delete indexer %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete indexer"})
		return
	}

	c.JSON(http.StatusNoContent, nil)
}
