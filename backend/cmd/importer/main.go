package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"sonar/backend/internal/graph"
	"sonar/backend/internal/metrics"
	"sonar/backend/internal/models"
	"sonar/backend/internal/store"
	"sonar/backend/pkg/config"
	"sonar/backend/pkg/logger"
)

func main() {
	file := flag.String("file", "", "Path to a JSON dataset with articles, authors, citations and authorships")
	batch := flag.Int("batch", 0, "Rows per write transaction (defaults to IMPORT_BATCH_SIZE)")
	skipSchema := flag.Bool("skip-schema", false, "Do not ensure graph constraints before importing")
	noMirror := flag.Bool("no-mirror", false, "Do not copy articles into Postgres even if DATABASE_URL is set")
	flag.Parse()

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

	if *file == "" {
		log.Fatal("Missing -file")
	}
	batchSize := cfg.ImportBatchSize
	if *batch > 0 {
		batchSize = *batch
	}

	ds, err := loadDataset(*file)
	if err != nil {
		log.Fatal("Failed to load dataset", zap.String("file", *file), zap.Error(err))
	}
	log.Info("Dataset loaded",
		zap.Int("articles", len(ds.Articles)),
		zap.Int("authors", len(ds.Authors)),
		zap.Int("citations", len(ds.Citations)),
		zap.Int("authorships", len(ds.Authorships)),
	)

	// Cancel between batches on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	driver, err := graph.Connect(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
	if err != nil {
		log.Fatal("Failed to connect to Neo4j", zap.Error(err))
	}
	collector := metrics.NewCollector("sonar")
	graphRepo := graph.NewRepository(driver, cfg.Neo4jDatabase, collector)
	defer graphRepo.Close(context.Background())

	if !*skipSchema {
		if err := graphRepo.EnsureSchema(ctx); err != nil {
			log.Fatal("Failed to ensure graph schema", zap.Error(err))
		}
	}

	importer := graph.NewImporter(graphRepo, batchSize, collector)
	log.Info("Starting graph import",
		zap.String("file", *file),
		zap.Int("batch_size", importer.BatchSize()),
		zap.Int("articles", len(ds.Articles)),
		zap.Int("authors", len(ds.Authors)),
	)
	summary, err := importer.Import(ctx, ds)
	if err != nil {
		log.Fatal("Import failed", zap.Error(err))
	}

	log.Info("Graph import completed",
		zap.Int64("articles", summary.Articles.Linked),
		zap.Int64("authors", summary.Authors.Linked),
		zap.Int64("citations", summary.Citations.Linked),
		zap.Int64("authorships", summary.Authorships.Linked),
		zap.Int64("coauthorships", summary.Coauthorships.Linked),
		zap.Duration("duration", summary.Duration),
	)

	if *noMirror || !cfg.HasRelationalStore() {
		return
	}

	db, closeDB, err := store.Open(ctx, store.Options{DSN: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns, QueryDebug: cfg.QueryDebug})
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer closeDB()

	repo := store.NewRepository(db)
	rows, err := repo.UpsertArticles(ctx, ds.Articles)
	if err != nil {
		log.Fatal("Failed to mirror articles", zap.Error(err))
	}
	dois := make([]string, 0, len(ds.Articles))
	for _, a := range ds.Articles {
		dois = append(dois, a.DOI)
	}
	if err := repo.EnsureIdentifiers(ctx, dois); err != nil {
		log.Fatal("Failed to mirror article identifiers", zap.Error(err))
	}
	log.Info("Relational mirror updated", zap.Int64("articles", rows))
}

// loadDataset decodes and validates a dataset file
func loadDataset(path string) (models.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.Dataset{}, err
	}
	defer f.Close()

	var ds models.Dataset
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ds); err != nil {
		return models.Dataset{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := models.Validate(ds); err != nil {
		return models.Dataset{}, err
	}
	return ds, nil
}
