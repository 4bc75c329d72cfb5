package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"
	"sonar/backend/internal/graph"
	"sonar/backend/internal/store"
	"sonar/backend/pkg/config"
	"sonar/backend/pkg/logger"
)

const usage = `Usage: migrate [-force] <command>

Commands:
  up       apply pending relational migrations
  up-to N  apply relational migrations up to and including version N
  down     roll back the last relational migration
  status   print relational migration status
  version  print the relational schema version
  graph    create Neo4j constraints and indexes
`

func main() {
	force := flag.Bool("force", false, "Reapply the graph schema even if already recorded")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	command, target, err := parseArgs(flag.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}

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
	ctx := context.Background()

	if command == "graph" {
		if err := migrateGraph(ctx, cfg, *force, log); err != nil {
			log.Fatal("Graph schema migration failed", zap.Error(err))
		}
		return
	}

	if !cfg.HasRelationalStore() {
		log.Fatal("DATABASE_URL is required for relational migrations")
	}

	db, closeDB, err := store.Open(ctx, store.Options{DSN: cfg.DatabaseURL, MaxConns: 2, QueryDebug: cfg.QueryDebug})
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer closeDB()

	migrator := store.NewMigrator(db.DB)
	switch command {
	case "up":
		err = migrator.Up(ctx)
	case "up-to":
		err = migrator.UpTo(ctx, target)
	case "down":
		err = migrator.Down(ctx)
	case "status":
		err = migrator.Status(ctx)
	case "version":
		var version int64
		version, err = migrator.Version(ctx)
		if err == nil {
			fmt.Println(version)
		}
	}
	if err != nil {
		log.Fatal("Migration command failed", zap.String("command", command), zap.Error(err))
	}
}

func validCommand(cmd string) bool {
	switch cmd {
	case "up", "up-to", "down", "status", "version", "graph":
		return true
	}
	return false
}

// parseArgs returns the command and, for up-to, its target version
func parseArgs(args []string) (string, int64, error) {
	if len(args) == 0 || !validCommand(args[0]) {
		return "", 0, fmt.Errorf("expected a command")
	}
	command := args[0]
	if command != "up-to" {
		if len(args) != 1 {
			return "", 0, fmt.Errorf("%s takes no arguments", command)
		}
		return command, 0, nil
	}
	if len(args) != 2 {
		return "", 0, fmt.Errorf("up-to needs a version")
	}
	version, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || version < 1 {
		return "", 0, fmt.Errorf("invalid version %q", args[1])
	}
	return command, version, nil
}

func migrateGraph(ctx context.Context, cfg *config.Config, force bool, log *zap.Logger) error {
	driver, err := graph.Connect(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
	if err != nil {
		return err
	}
	repo := graph.NewRepository(driver, cfg.Neo4jDatabase, nil)
	defer repo.Close(context.Background())

	if !force {
		applied, err := repo.SchemaApplied(ctx)
		if err != nil {
			return err
		}
		if applied {
			log.Info("Graph schema already applied. Use -force to reapply.", zap.String("version", graph.SchemaVersion))
			return nil
		}
	}

	return repo.EnsureSchema(ctx)
}
