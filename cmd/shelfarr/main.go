package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/hferret/shelfarr/internal/config"
	"github.com/hferret/shelfarr/internal/database"
	"github.com/hferret/shelfarr/internal/redis"
	"github.com/hferret/shelfarr/internal/server"
	"github.com/hferret/shelfarr/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup logging
	setupLogging(cfg.Log.Level)

	logrus.Info("Starting Shelfarr server...")

	// Initialize database
	db, err := database.Initialize(cfg.Database.Path)
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Initialize Redis. The sweep lock degrades gracefully without it, so a
	// missing Redis is a warning rather than a fatal error.
	redisClient, err := redis.Initialize(cfg.Redis)
	if err != nil {
		logrus.Warnf("Redis unavailable, continuing without sweep locking: %v", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	// Initialize services
	serviceContainer, err := services.NewContainer(db.DB, redisClient, cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize services: %v", err)
	}

	// Initialize HTTP server
	httpServer := server.NewHTTPServer(cfg, serviceContainer)

	// Start services
	logrus.Info("Starting background services...")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serviceContainer.Start(ctx)

	// Start HTTP server
	go func() {
		if err := httpServer.Start(); err != nil {
			logrus.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down Shelfarr server...")

	// Graceful shutdown
	if err := httpServer.Shutdown(); err != nil {
		logrus.Errorf("Error during HTTP server shutdown: %v", err)
	}

	cancel()
	serviceContainer.Stop()
	logrus.Info("Shelfarr server stopped")
}

func setupLogging(level string) {
	logrus.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})

	switch level {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "warn":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}
}
