package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/hferret/shelfarr/internal/config"
	"github.com/hferret/shelfarr/internal/middleware"
	"github.com/hferret/shelfarr/internal/server/handlers"
	"github.com/hferret/shelfarr/internal/services"
)

// HTTPServer represents the HTTP server
type HTTPServer struct {
	config    *config.Config
	container *services.Container
	router    *gin.Engine
	server    *http.Server
	logger    *logrus.Logger
}

// NewHTTPServer creates a new HTTP server
func NewHTTPServer(cfg *config.Config, container *services.Container) *HTTPServer {
	// Set Gin mode based on configuration
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	logger := container.GetLogger()

	server := &HTTPServer{
		config:    cfg,
		container: container,
		router:    router,
		logger:    logger,
	}

	// Setup middleware
	server.setupMiddleware()

	// Setup routes
	server.setupRoutes()

	// Create HTTP server
	server.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSeconds) * time.Second,
	}

	return server
}

// Start starts the HTTP server
func (s *HTTPServer) Start() error {
	s.logger.Infof("Starting HTTP server on port %d", s.config.Server.Port)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *HTTPServer) Shutdown() error {
	s.logger.Info("Shutting down HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// setupMiddleware configures middleware
func (s *HTTPServer) setupMiddleware() {
	// Logger middleware
	s.router.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("[%s] \"%s %s %s %d %s \"%s\" %s\"\n",
			param.TimeStamp.Format("2006-01-02 15:04:05"),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	}))

	// Recovery middleware
	s.router.Use(gin.Recovery())

	// CORS middleware
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Credentials", "true")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Request ID middleware
	s.router.Use(func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = fmt.Sprintf("%d", time.Now().UnixNano())
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	})

	// Rate limiting middleware
	limiter := middleware.NewRateLimiter(s.config.Server.RateLimitPerSecond, s.config.Server.RateLimitBurst)
	s.router.Use(limiter.Middleware())
}

// setupRoutes configures all API routes
func (s *HTTPServer) setupRoutes() {
	// Health check endpoint (no auth required)
	s.router.GET("/health", s.healthCheckHandler)

	// API v1 routes
	v1 := s.router.Group("/api/v1")

	// Authentication routes (no auth required)
	authGroup := v1.Group("/auth")
	{
		authHandler := handlers.NewAuthHandler(s.container)
		authGroup.POST("/login", authHandler.Login)
	}

	// WebSocket endpoint
	v1.GET("/ws", s.websocketHandler)

	// Protected routes (require authentication)
	protected := v1.Group("/")
	protected.Use(middleware.AuthRequired(s.container.GetJWTManager()))

	// Tracked book management
	bookGroup := protected.Group("/books")
	{
		bookHandler := handlers.NewBookHandler(s.container)
		bookGroup.GET("", bookHandler.ListBooks)
		bookGroup.POST("", bookHandler.CreateBook)
		bookGroup.GET("/:id", bookHandler.GetBook)
		bookGroup.PUT("/:id", bookHandler.UpdateBook)
		bookGroup.DELETE("/:id", bookHandler.DeleteBook)
		bookGroup.GET("/:id/files", bookHandler.GetBookFiles)
		bookGroup.GET("/:id/downloads", bookHandler.GetBookDownloads)
	}

	// Download client management
	clientGroup := protected.Group("/clients")
	{
		clientHandler := handlers.NewClientHandler(s.container)
		clientGroup.GET("", clientHandler.ListClients)
		clientGroup.POST("", clientHandler.CreateClient)
		clientGroup.GET("/:id", clientHandler.GetClient)
		clientGroup.PUT("/:id", clientHandler.UpdateClient)
		clientGroup.DELETE("/:id", clientHandler.DeleteClient)
		clientGroup.POST("/:id/test", clientHandler.TestClient)
	}

	// Download queue management
	downloadGroup := protected.Group("/downloads")
	{
		downloadHandler := handlers.NewDownloadHandler(s.container)
		downloadGroup.GET("/queue", downloadHandler.GetQueue)
		downloadGroup.GET("/queue/:id", downloadHandler.GetDownload)
		downloadGroup.DELETE("/queue/:id", downloadHandler.CancelDownload)
		downloadGroup.GET("/history", downloadHandler.GetHistory)
		downloadGroup.POST("/grab", downloadHandler.Grab)
		downloadGroup.POST("/evaluate", downloadHandler.Evaluate)
		downloadGroup.POST("/sweep", downloadHandler.Sweep)
	}

	// Decision policy management
	decisionHandler := handlers.NewDecisionHandler(s.container)

	defaultsGroup := protected.Group("/defaults")
	{
		defaultsGroup.GET("", decisionHandler.GetDefaults)
		defaultsGroup.PUT("", decisionHandler.UpdateDefaults)
	}

	blocklistGroup := protected.Group("/blocklist")
	{
		blocklistGroup.GET("", decisionHandler.ListBlocklist)
		blocklistGroup.POST("", decisionHandler.AddBlocklist)
		blocklistGroup.DELETE("/:id", decisionHandler.RemoveBlocklist)
	}

	indexerGroup := protected.Group("/indexers")
	{
		indexerGroup.GET("", decisionHandler.ListIndexers)
		indexerGroup.POST("", decisionHandler.CreateIndexer)
		indexerGroup.PUT("/:id", decisionHandler.UpdateIndexer)
		indexerGroup.DELETE("/:id", decisionHandler.DeleteIndexer)
	}
}

// healthCheckHandler handles health check requests
func (s *HTTPServer) healthCheckHandler(c *gin.Context) {
	ctx := c.Request.Context()
	health := s.container.HealthCheck(ctx)

	status := http.StatusOK
	if health["status"] != "healthy" {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, health)
}

// websocketHandler handles WebSocket upgrade requests
func (s *HTTPServer) websocketHandler(c *gin.Context) {
	s.container.GetWebSocketHub().HandleWebSocket(c.Writer, c.Request)
}
