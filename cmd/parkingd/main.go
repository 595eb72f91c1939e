package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"parking-status-backend/config"
	"parking-status-backend/internal/api"
	"parking-status-backend/internal/db"
	"parking-status-backend/internal/feed"
	"parking-status-backend/internal/notification"
	"parking-status-backend/internal/stats"
	"parking-status-backend/internal/store"
)

func main() {
	logger := log.New(os.Stdout, "parking-backend ", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	if err := appStore.ProvisionSpaces(ctx, cfg.Spaces); err != nil {
		logger.Fatalf("failed to provision spaces: %v", err)
	}
	logger.Printf("data store initialized, %d spaces provisioned", len(cfg.Spaces))

	// Push notifications are optional; without VAPID keys the backend still
	// ingests and serves, it just never pushes.
	var webpushOptions *webpush.Options
	var notifier *notification.WorkerPool
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		notifier = notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, webpushOptions)
		notifier.Start(ctx)
	} else {
		logger.Println("VAPID keys not configured; push notifications disabled")
	}

	pipeline := feed.NewPipeline(appStore, notifier)
	if cfg.Feed.Enabled {
		subscriber := feed.NewSubscriber(cfg.Feed, pipeline)
		go func() {
			if err := subscriber.Start(ctx); err != nil {
				logger.Printf("signal feed stopped: %v", err)
			}
		}()
	} else {
		logger.Println("Signal feed is disabled. Not subscribing.")
	}

	aggregator := stats.NewAggregator(appStore, cfg.Snapshot.Interval)
	if cfg.Snapshot.Enabled {
		go aggregator.Run(ctx)
	}

	router := api.NewRouter(appStore, aggregator, webpushOptions, cfg.Server)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
