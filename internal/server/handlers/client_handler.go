package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hferret/shelfarr/internal/models"
	"github.com/hferret/shelfarr/internal/services"
)

// ClientHandler handles download client endpoints
type ClientHandler struct {
	container *services.Container
}

// NewClientHandler creates a new client handler
func NewClientHandler(container *services.Container) *ClientHandler {
	return &ClientHandler{
		container: container,
	}
}

// ListClients returns all configured download clients
func (h *ClientHandler) ListClients(c *gin.Context) {
	enabledOnly := c.Query("enabled") == "true"

	defs, err := h.container.GetClientService().List(c.Request.Context(), enabledOnly)
	if err != nil {
		h.container.GetLogger().Errorf("Failed to list download clients: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list download clients"})
		return
	}

	// Stored secrets never leave the API
	for _, def := range defs {
		def.Password = nil
		def.APIKey = nil
	}

	c.JSON(http.StatusOK, gin.H{"clients": defs})
}

// CreateClient registers a new download client
func (h *ClientHandler) CreateClient(c *gin.Context) {
	var req models.DownloadClientCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
		return
	}

	def, err := h.container.GetClientService().Create(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, models.ErrUnsupportedClientType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported client type"})
			return
		}
		h.container.GetLogger().Errorf("Failed to create download client: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create download client"})
		return
	}

	def.Password = nil
	def.APIKey = nil
	c.JSON(http.StatusCreated, def)
}

// GetClient returns a single download client
func (h *ClientHandler) GetClient(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid client ID"})
		return
	}

	def, err := h.container.GetClientService().Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrDownloadClientNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Download client not found"})
			return
		}
		h.container.GetLogger().Errorf("Failed to get download client %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get download client"})
		return
	}

	def.Password = nil
	def.APIKey = nil
	c.JSON(http.StatusOK, def)
}

// UpdateClient applies a partial update to a download client
func (h *ClientHandler) UpdateClient(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid client ID"})
		return
	}

	var req models.DownloadClientUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
		return
	}

	def, err := h.container.GetClientService().Update(c.Request.Context(), id, &req)
	if err != nil {
		if errors.Is(err, models.ErrDownloadClientNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Download client not found"})
			return
		}
		h.container.GetLogger().Errorf("Failed to update download client %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update download client"})
		return
	}

	def.Password = nil
	def.APIKey = nil
	c.JSON(http.StatusOK, def)
}

// DeleteClient removes a download client
func (h *ClientHandler) DeleteClient(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid client ID"})
		return
	}

	if err := h.container.GetClientService().Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, models.ErrDownloadClientNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Download client not found"})
			return
		}
		h.container.GetLogger().Errorf("Failed to delete download client %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete download client"})
		return
	}

	c.JSON(http.StatusNoContent, nil)
}

// TestClient probes connectivity to a download client and updates its health
func (h *ClientHandler) TestClient(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid client ID"})
		return
	}

	if err := h.container.GetClientService().TestConnection(c.Request.Context(), id); err != nil {
		if errors.Is(err, models.ErrDownloadClientNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Download client not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
