package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"geodirectory/api"
	"geodirectory/api/middleware"
	"geodirectory/db"
	"geodirectory/pkg/logger"
	embeddednats "geodirectory/pkg/services/embedded-nats"
	"geodirectory/pkg/services/workers"
	"geodirectory/pkg/shared"
)

func initDB(log *zap.Logger) (*db.Service, error) {
	config := db.FromEnv()

	dbService, err := db.New(config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database service: %w", err)
	}

	if err := dbService.VerifySchema(); err != nil {
		log.Warn("schema verification failed, initializing schema", zap.Error(err))
		if err := dbService.InitializeSchema(); err != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	log.Info("database service initialized", zap.String("driver", dbService.Driver))
	return dbService, nil
}

func initNATS(log *zap.Logger) (*embeddednats.EmbeddedNATS, error) {
	config := embeddednats.DefaultConfig()
	if v := os.Getenv("NATS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Port = port
		}
	}
	if v := os.Getenv("NATS_DATA_DIR"); v != "" {
		config.DataDir = v
	}

	bus, err := embeddednats.New(config, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedded NATS: %w", err)
	}

	if err := bus.Start(); err != nil {
		return nil, fmt.Errorf("failed to start embedded NATS: %w", err)
	}

	if err := bus.CreateDirectoryStream(); err != nil {
		return nil, fmt.Errorf("failed to create event stream: %w", err)
	}

	err = bus.CreateDurableConsumer(shared.StreamEvents, shared.ConsumerAuditWriter, shared.SubjectEventsAll)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer %s: %w", shared.ConsumerAuditWriter, err)
	}

	log.Info("NATS JetStream initialized")
	return bus, nil
}

func main() {
	log := logger.Setup()
	defer log.Sync()

	if err := godotenv.Load(); err != nil {
		log.Info("no .env file found, using environment variables")
	} else {
		log.Info("loaded configuration from .env file")
	}

	dbService, err := initDB(log)
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	bus, err := initNATS(log)
	if err != nil {
		log.Fatal("failed to initialize NATS", zap.Error(err))
	}

	workerManager, err := workers.NewManager(bus, dbService, log)
	if err != nil {
		log.Fatal("failed to create worker manager", zap.Error(err))
	}
	if err := workerManager.Start(); err != nil {
		log.Fatal("failed to start workers", zap.Error(err))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	mux := http.NewServeMux()

	handlers := api.NewHandlers(dbService, bus, log)
	handlers.RegisterRoutes(mux, bus, getAPIKey())

	handler := middleware.CORS(middleware.RequestLogger(log, mux))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("starting directory API server", zap.String("port", port))

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed to start", zap.Error(err))
		}
	}()

	<-sigChan
	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown server gracefully", zap.Error(err))
	}

	if err := workerManager.Stop(); err != nil {
		log.Error("failed to stop workers", zap.Error(err))
	}

	if err := bus.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown NATS", zap.Error(err))
	}

	log.Info("server shutdown complete")
}

func getAPIKey() string {
	key := os.Getenv("API_KEY")
	if key == "" {
		key = "directory-dev-key"
	}
	return key
}
