package services

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hferret/shelfarr/internal/clients"
	"github.com/hferret/shelfarr/internal/config"
	"github.com/hferret/shelfarr/internal/decision"
	"github.com/hferret/shelfarr/internal/downloads"
	"github.com/hferret/shelfarr/internal/middleware"
	"github.com/hferret/shelfarr/internal/redis"
	"github.com/hferret/shelfarr/internal/repositories"
	"github.com/hferret/shelfarr/internal/secrets"
)

// Container holds all the application services and manages their lifecycle
type Container struct {
	// Configuration
	config *config.Config
	logger *logrus.Logger

	// Infrastructure
	db          *sql.DB
	redisClient *redis.Client

	// Repositories
	bookRepo      repositories.TrackedBookRepository
	itemRepo      repositories.DownloadItemRepository
	clientRepo    repositories.DownloadClientRepository
	indexerRepo   repositories.IndexerRepository
	defaultsRepo  repositories.DecisionDefaultsRepository
	blocklistRepo repositories.BlocklistRepository

	// Core services
	clientService   *downloads.ClientService
	downloadService *downloads.Service
	monitor         *downloads.Monitor
	importService   *downloads.ImportService
	engine          *decision.Engine

	// WebSocket hub for real-time updates
	wsHub *WebSocketHub

	// Authentication
	jwtManager *middleware.JWTManager

	// Lifecycle management
	wg sync.WaitGroup
	mu sync.Mutex
}

// NewContainer creates a new service container
func NewContainer(db *sql.DB, redisClient *redis.Client, cfg *config.Config) (*Container, error) {
	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	c := &Container{
		config:      cfg,
		logger:      logger,
		db:          db,
		redisClient: redisClient,
	}

	c.bookRepo = repositories.NewTrackedBookRepository(db)
	c.itemRepo = repositories.NewDownloadItemRepository(db)
	c.clientRepo = repositories.NewDownloadClientRepository(db)
	c.indexerRepo = repositories.NewIndexerRepository(db)
	c.defaultsRepo = repositories.NewDecisionDefaultsRepository(db)
	c.blocklistRepo = repositories.NewBlocklistRepository(db)

	encryptor, err := secrets.New(cfg.Encryption.Passphrase)
	if err != nil {
		return nil, err
	}

	factory := clients.NewFactory(logger)
	c.clientService = downloads.NewClientService(c.clientRepo, factory, encryptor, logger)
	c.engine = decision.NewEngine(decision.NewReleaseScorer(nil))
	c.downloadService = downloads.NewService(
		c.itemRepo, c.bookRepo, c.indexerRepo, c.defaultsRepo, c.blocklistRepo,
		c.clientService, c.engine, logger,
	)

	c.wsHub = NewWebSocketHub(logger)
	c.jwtManager = middleware.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenDuration)

	c.monitor = downloads.NewMonitor(
		c.itemRepo, c.bookRepo, c.clientService, redisClient, c.wsHub, logger,
		time.Duration(cfg.Monitor.IntervalSeconds)*time.Second,
		time.Duration(cfg.Monitor.HealthCheckSeconds)*time.Second,
		time.Duration(cfg.Monitor.SweepLockTTLSeconds)*time.Second,
		cfg.Monitor.MaxJitterPercent,
	)

	c.importService = downloads.NewImportService(
		c.itemRepo, c.bookRepo, c.wsHub, logger,
		cfg.Library.Path, cfg.Library.ImportExtensions,
		time.Duration(cfg.Monitor.IntervalSeconds)*time.Second,
	)

	return c, nil
}

// Start starts all background services
func (c *Container) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Info("Starting service container")

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.wsHub.Start()
	}()

	c.monitor.Start(ctx)
	c.importService.Start(ctx)

	c.logger.Info("Service container started successfully")
}

// Stop gracefully stops all services
func (c *Container) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Info("Stopping service container")

	c.monitor.Stop()
	c.importService.Stop()
	c.wsHub.Stop()
	c.wg.Wait()

	c.logger.Info("Service container stopped")
}

// GetClientService returns the download client service
func (c *Container) GetClientService() *downloads.ClientService {
	return c.clientService
}

// GetDownloadService returns the download service
func (c *Container) GetDownloadService() *downloads.Service {
	return c.downloadService
}

// GetMonitor returns the download monitor
func (c *Container) GetMonitor() *downloads.Monitor {
	return c.monitor
}

// GetImportService returns the import service
func (c *Container) GetImportService() *downloads.ImportService {
	return c.importService
}

// GetWebSocketHub returns the WebSocket hub
func (c *Container) GetWebSocketHub() *WebSocketHub {
	return c.wsHub
}

// Repository getters
func (c *Container) GetTrackedBookRepository() repositories.TrackedBookRepository {
	return c.bookRepo
}

func (c *Container) GetDownloadItemRepository() repositories.DownloadItemRepository {
	return c.itemRepo
}

func (c *Container) GetIndexerRepository() repositories.IndexerRepository {
	return c.indexerRepo
}

func (c *Container) GetDecisionDefaultsRepository() repositories.DecisionDefaultsRepository {
	return c.defaultsRepo
}

func (c *Container) GetBlocklistRepository() repositories.BlocklistRepository {
	return c.blocklistRepo
}

// GetJWTManager returns the JWT manager
func (c *Container) GetJWTManager() *middleware.JWTManager {
	return c.jwtManager
}

// GetLogger returns the logger instance
func (c *Container) GetLogger() *logrus.Logger {
	return c.logger
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// HealthCheck reports the health of the container's dependencies
func (c *Container) HealthCheck(ctx context.Context) map[string]interface{} {
	services := map[string]interface{}{}
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"services":  services,
	}

	if err := c.db.PingContext(ctx); err != nil {
		services["database"] = map[string]interface{}{"status": "unhealthy", "error": err.Error()}
		health["status"] = "degraded"
	} else {
		services["database"] = map[string]interface{}{"status": "healthy"}
	}

	if c.redisClient != nil {
		if err := c.redisClient.Health(ctx); err != nil {
			services["redis"] = map[string]interface{}{"status": "unhealthy", "error": err.Error()}
			health["status"] = "degraded"
		} else {
			services["redis"] = map[string]interface{}{"status": "healthy"}
		}
	}

	services["websocket"] = map[string]interface{}{
		"status":  "healthy",
		"clients": c.wsHub.GetClientCount(),
	}

	return health
}
