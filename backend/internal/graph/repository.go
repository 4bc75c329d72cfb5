package graph

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
	"sonar/backend/internal/metrics"
	"sonar/backend/pkg/logger"
)

// Runner executes parameterized Cypher and returns every record.
// Services depend on this rather than on the driver.
type Runner interface {
	Read(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error)
	Write(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error)
}

// Repository handles all Neo4j database operations
type Repository struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *zap.Logger
	metrics  *metrics.Collector
}

// NewRepository creates a new graph repository. An empty database name uses
// the server default; collector may be nil.
func NewRepository(driver neo4j.DriverWithContext, database string, collector *metrics.Collector) *Repository {
	return &Repository{
		driver:   driver,
		database: database,
		logger:   logger.Named("graph"),
		metrics:  collector,
	}
}

// Close closes the Neo4j driver connection
func (r *Repository) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

// Read runs query in a managed read transaction
func (r *Repository) Read(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	return r.run(ctx, neo4j.AccessModeRead, query, params)
}

// Write runs query in a managed write transaction. The transaction is retried
// by the driver on transient failures.
func (r *Repository) Write(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	return r.run(ctx, neo4j.AccessModeWrite, query, params)
}

func (r *Repository) run(ctx context.Context, mode neo4j.AccessMode, query string, params map[string]any) ([]*neo4j.Record, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: r.database,
	})
	defer session.Close(ctx)

	work := func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return result.Collect(ctx)
	}

	start := time.Now()
	var (
		out any
		err error
	)
	if mode == neo4j.AccessModeRead {
		out, err = session.ExecuteRead(ctx, work)
	} else {
		out, err = session.ExecuteWrite(ctx, work)
	}
	r.metrics.ObserveGraphQuery(modeLabel(mode), err, time.Since(start))

	if err != nil {
		r.logger.Debug("Graph query failed",
			zap.String("mode", modeLabel(mode)),
			zap.Error(err),
		)
		return nil, err
	}

	records, _ := out.([]*neo4j.Record)
	return records, nil
}

func modeLabel(mode neo4j.AccessMode) string {
	if mode == neo4j.AccessModeRead {
		return "read"
	}
	return "write"
}
