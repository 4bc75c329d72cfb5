package graph

import (
	"context"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"sonar/backend/internal/constants"
	"sonar/backend/internal/metrics"
	"sonar/backend/internal/models"
	apperrors "sonar/backend/pkg/errors"
	"sonar/backend/pkg/logger"
)

const (
	createArticleNodesQuery = `
		UNWIND $batch AS article
		MERGE (a:Article {doi: article.doi})
		SET a += article
		RETURN count(a) AS linked
	`

	createAuthorNodesQuery = `
		UNWIND $batch AS author
		MERGE (a:Author {name: author.name})
		SET a += author
		RETURN count(a) AS linked
	`

	createCitationEdgesQuery = `
		UNWIND $batch AS citation
		MATCH (citer:Article {doi: citation.citer})
		MATCH (citee:Article {doi: citation.citee})
		MERGE (citer)-[:CITES]->(citee)
		RETURN count(*) AS linked
	`

	createAuthorshipEdgesQuery = `
		UNWIND $batch AS authorship
		MATCH (author:Author {name: authorship.author})
		MATCH (article:Article {doi: authorship.article})
		MERGE (article)-[:AUTHORED_BY]->(author)
		RETURN count(*) AS linked
	`

	// Pairs are ordered by name so each co-author pair gets exactly one edge.
	createCoauthorshipEdgesQuery = `
		MATCH (a1:Author)<-[:AUTHORED_BY]-(p:Article)-[:AUTHORED_BY]->(a2:Author)
		WHERE a1.name < a2.name
		WITH a1, a2, collect(DISTINCT p.doi) AS dois
		MERGE (a1)-[c:COAUTHORED_WITH]->(a2)
		SET c.weight = size(dois),
		    c.coauthored_dois = dois
		RETURN count(c) AS linked
	`
)

// ImportResult describes one bulk operation
type ImportResult struct {
	Kind    string `json:"kind"`
	Items   int    `json:"items"`
	Batches int    `json:"batches"`
	// Linked is the number of nodes or edges the database matched and wrote.
	// Edge rows whose endpoints do not exist are silently skipped, so Linked
	// can be lower than Items.
	Linked int64 `json:"linked"`
}

// ImportSummary collects the results of a full dataset import
type ImportSummary struct {
	Articles      ImportResult  `json:"articles"`
	Authors       ImportResult  `json:"authors"`
	Citations     ImportResult  `json:"citations"`
	Authorships   ImportResult  `json:"authorships"`
	Coauthorships ImportResult  `json:"coauthorships"`
	Duration      time.Duration `json:"duration"`
}

// Importer writes large collections to the graph in fixed-size batches,
// one write transaction per batch.
type Importer struct {
	runner    Runner
	batchSize int
	logger    *zap.Logger
	metrics   *metrics.Collector
}

// NewImporter creates an importer. A non-positive batch size falls back to
// constants.DefaultBatchSize.
func NewImporter(runner Runner, batchSize int, collector *metrics.Collector) *Importer {
	if batchSize <= 0 {
		batchSize = constants.DefaultBatchSize
	}
	return &Importer{
		runner:    runner,
		batchSize: batchSize,
		logger:    logger.Named("importer"),
		metrics:   collector,
	}
}

// BatchSize returns the configured batch size
func (im *Importer) BatchSize() int {
	return im.batchSize
}

// CreateArticleNodesBatch merges article nodes keyed by DOI
func (im *Importer) CreateArticleNodesBatch(ctx context.Context, articles []models.Article) (ImportResult, error) {
	seen := make(map[string]struct{}, len(articles))
	rows := make([]any, 0, len(articles))
	for _, a := range articles {
		props := a.Properties()
		doi := props["doi"].(string)
		if doi == "" {
			continue
		}
		if _, dup := seen[doi]; dup {
			continue
		}
		seen[doi] = struct{}{}
		rows = append(rows, props)
	}
	return im.writeBatches(ctx, constants.KindArticle, createArticleNodesQuery, rows)
}

// CreateAuthorNodesBatch merges author nodes keyed by name
func (im *Importer) CreateAuthorNodesBatch(ctx context.Context, authors []models.Author) (ImportResult, error) {
	seen := make(map[string]struct{}, len(authors))
	rows := make([]any, 0, len(authors))
	for _, a := range authors {
		props := a.Properties()
		name := props["name"].(string)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		rows = append(rows, props)
	}
	return im.writeBatches(ctx, constants.KindAuthor, createAuthorNodesQuery, rows)
}

// CreateCitationEdgesBatch links citing articles to cited articles.
// Self-citations and duplicate pairs are dropped.
func (im *Importer) CreateCitationEdgesBatch(ctx context.Context, citations []models.Citation) (ImportResult, error) {
	seen := make(map[[2]string]struct{}, len(citations))
	rows := make([]any, 0, len(citations))
	for _, c := range citations {
		key := [2]string{models.NormalizeDOI(c.Citer), models.NormalizeDOI(c.Citee)}
		if key[0] == "" || key[1] == "" || key[0] == key[1] {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		rows = append(rows, map[string]any{"citer": key[0], "citee": key[1]})
	}
	return im.writeBatches(ctx, constants.KindCitation, createCitationEdgesQuery, rows)
}

// CreateAuthorshipEdgesBatch links articles to their authors
func (im *Importer) CreateAuthorshipEdgesBatch(ctx context.Context, authorships []models.Authorship) (ImportResult, error) {
	seen := make(map[[2]string]struct{}, len(authorships))
	rows := make([]any, 0, len(authorships))
	for _, a := range authorships {
		key := [2]string{strings.TrimSpace(a.Author), models.NormalizeDOI(a.Article)}
		if key[0] == "" || key[1] == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		rows = append(rows, map[string]any{"author": key[0], "article": key[1]})
	}
	return im.writeBatches(ctx, constants.KindAuthorship, createAuthorshipEdgesQuery, rows)
}

// CreateCoauthorshipEdges derives weighted co-authorship edges from the
// authorship edges already in the graph. Re-running it refreshes weights.
func (im *Importer) CreateCoauthorshipEdges(ctx context.Context) (ImportResult, error) {
	result := ImportResult{Kind: constants.KindCoauthorship}

	records, err := im.runner.Write(ctx, createCoauthorshipEdgesQuery, nil)
	if err != nil {
		return result, apperrors.NewGraphQueryFailed("create coauthorship edges", apperrors.WrapContext("coauthorship", err))
	}
	result.Batches = 1
	for _, rec := range records {
		result.Linked += RecordInt64(rec, "linked")
	}
	result.Items = int(result.Linked)
	im.metrics.ObserveImportBatch(constants.KindCoauthorship, result.Items)

	im.logger.Info("Coauthorship edges merged", zap.Int64("edges", result.Linked))
	return result, nil
}

// Import writes a whole dataset: article and author nodes concurrently, then
// citation and authorship edges, then co-authorship edges.
func (im *Importer) Import(ctx context.Context, ds models.Dataset) (ImportSummary, error) {
	start := time.Now()
	var summary ImportSummary

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		summary.Articles, err = im.CreateArticleNodesBatch(gctx, ds.Articles)
		return err
	})
	g.Go(func() error {
		var err error
		summary.Authors, err = im.CreateAuthorNodesBatch(gctx, ds.Authors)
		return err
	})
	if err := g.Wait(); err != nil {
		return summary, err
	}

	var err error
	if summary.Citations, err = im.CreateCitationEdgesBatch(ctx, ds.Citations); err != nil {
		return summary, err
	}
	if summary.Authorships, err = im.CreateAuthorshipEdgesBatch(ctx, ds.Authorships); err != nil {
		return summary, err
	}
	if summary.Coauthorships, err = im.CreateCoauthorshipEdges(ctx); err != nil {
		return summary, err
	}

	summary.Duration = time.Since(start)
	im.logger.Info("Import finished",
		zap.Int("articles", summary.Articles.Items),
		zap.Int("authors", summary.Authors.Items),
		zap.Int64("citations", summary.Citations.Linked),
		zap.Int64("authorships", summary.Authorships.Linked),
		zap.Int64("coauthorships", summary.Coauthorships.Linked),
		zap.Duration("duration", summary.Duration),
	)
	return summary, nil
}

func (im *Importer) writeBatches(ctx context.Context, kind, query string, rows []any) (ImportResult, error) {
	result := ImportResult{Kind: kind, Items: len(rows)}
	if len(rows) == 0 {
		return result, nil
	}

	total := (len(rows) + im.batchSize - 1) / im.batchSize
	i := 0
	for batch := range slices.Chunk(rows, im.batchSize) {
		i++
		if err := ctx.Err(); err != nil {
			return result, apperrors.NewImportBatchFailed(kind, i, result.Batches, apperrors.WrapContext(kind+" import", err))
		}

		im.logger.Info("Writing batch",
			zap.String("kind", kind),
			zap.Int("batch", i),
			zap.Int("of", total),
			zap.Int("size", len(batch)),
		)

		records, err := im.runner.Write(ctx, query, map[string]any{"batch": batch})
		if err != nil {
			return result, apperrors.NewImportBatchFailed(kind, i, result.Batches, apperrors.WrapContext(kind+" import", err))
		}

		result.Batches++
		for _, rec := range records {
			result.Linked += RecordInt64(rec, "linked")
		}
		im.metrics.ObserveImportBatch(kind, len(batch))
	}

	return result, nil
}
