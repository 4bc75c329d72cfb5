package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"sonar/backend/internal/api"
	"sonar/backend/internal/catalog"
	"sonar/backend/internal/graph"
	"sonar/backend/internal/metrics"
	"sonar/backend/internal/store"
	"sonar/backend/pkg/config"
	"sonar/backend/pkg/logger"
)

func main() {
	// Load configuration first so the logger follows ENV
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Env); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting HTTP API server...")

	ctx := context.Background()
	collector := metrics.NewCollector("sonar")

	// Neo4j
	driver, err := graph.Connect(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
	if err != nil {
		log.Fatal("Failed to connect to Neo4j", zap.Error(err))
	}
	graphRepo := graph.NewRepository(driver, cfg.Neo4jDatabase, collector)
	defer graphRepo.Close(context.Background())

	if err := graphRepo.EnsureSchema(ctx); err != nil {
		log.Fatal("Failed to ensure graph schema", zap.Error(err))
	}

	// Postgres mirror, when configured
	var mirror api.Mirror
	if cfg.HasRelationalStore() {
		db, closeDB, err := store.Open(ctx, store.Options{
			DSN:        cfg.DatabaseURL,
			MaxConns:   cfg.DBMaxConns,
			QueryDebug: cfg.QueryDebug,
		})
		if err != nil {
			log.Fatal("Failed to connect to Postgres", zap.Error(err))
		}
		defer closeDB()

		if cfg.MigrateOnStart {
			if err := store.NewMigrator(db.DB).Up(ctx); err != nil {
				log.Fatal("Failed to run migrations", zap.Error(err))
			}
		}
		mirror = store.NewRepository(db)
	} else {
		log.Info("DATABASE_URL not set, relational mirror disabled")
	}

	router := api.NewRouter(api.RouterOptions{
		Catalog:    catalog.NewService(graphRepo),
		Mirror:     mirror,
		Metrics:    collector,
		Logger:     log,
		Production: cfg.IsProduction(),
	})

	srv := newHTTPServer(cfg.Port, router)

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.String("port", cfg.Port))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

func newHTTPServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}
}
