package graph

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sonar/backend/internal/constants"
	"sonar/backend/internal/graph/graphtest"
	"sonar/backend/internal/metrics"
	"sonar/backend/internal/models"
	apperrors "sonar/backend/pkg/errors"
)

// echoLinked answers every batch with linked = batch size
func echoLinked(call graphtest.Call) ([]*neo4j.Record, error) {
	batch, _ := call.Params["batch"].([]any)
	return []*neo4j.Record{graphtest.Record("linked", int64(len(batch)))}, nil
}

func citations(n int) []models.Citation {
	out := make([]models.Citation, n)
	for i := range out {
		out[i] = models.Citation{Citer: fmt.Sprintf("10.1/a%d", i), Citee: fmt.Sprintf("10.1/b%d", i)}
	}
	return out
}

func TestCreateCitationEdgesBatch_ChunksIntoFixedBatches(t *testing.T) {
	runner := &graphtest.Runner{Respond: echoLinked}
	collector := metrics.NewCollector("sonar_test")
	im := NewImporter(runner, 500, collector)

	result, err := im.CreateCitationEdgesBatch(context.Background(), citations(1201))
	require.NoError(t, err)

	calls := runner.Calls()
	require.Len(t, calls, 3)
	sizes := []int{}
	for _, c := range calls {
		assert.Equal(t, "write", c.Mode)
		assert.Contains(t, c.Query, "MERGE (citer)-[:CITES]->(citee)")
		sizes = append(sizes, len(c.Params["batch"].([]any)))
	}
	assert.Equal(t, []int{500, 500, 201}, sizes)

	assert.Equal(t, ImportResult{Kind: constants.KindCitation, Items: 1201, Batches: 3, Linked: 1201}, result)
	assert.Equal(t, 3.0, testutil.ToFloat64(collector.ImportBatches.WithLabelValues(constants.KindCitation)))
}

func TestCreateCitationEdgesBatch_DropsDuplicatesAndSelfCitations(t *testing.T) {
	runner := &graphtest.Runner{Respond: echoLinked}
	im := NewImporter(runner, 10, nil)

	result, err := im.CreateCitationEdgesBatch(context.Background(), []models.Citation{
		{Citer: "10.1/A", Citee: "10.1/b"},
		{Citer: "https://doi.org/10.1/a", Citee: "10.1/B"},
		{Citer: "10.1/c", Citee: "10.1/c"},
		{Citer: "", Citee: "10.1/c"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Items)

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []any{map[string]any{"citer": "10.1/a", "citee": "10.1/b"}}, calls[0].Params["batch"])
}

func TestCreateAuthorshipEdgesBatch(t *testing.T) {
	runner := &graphtest.Runner{Respond: echoLinked}
	im := NewImporter(runner, 2, nil)

	result, err := im.CreateAuthorshipEdgesBatch(context.Background(), []models.Authorship{
		{Author: "Ada Lovelace", Article: "10.1/a"},
		{Author: " Ada Lovelace ", Article: "10.1/A"},
		{Author: "Grace Hopper", Article: "10.1/a"},
		{Author: "Alan Turing", Article: "10.1/b"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Items)
	assert.Equal(t, 2, result.Batches)

	calls := runner.CallsMatching("MERGE (article)-[:AUTHORED_BY]->(author)")
	require.Len(t, calls, 2)
	first := calls[0].Params["batch"].([]any)
	assert.Equal(t, map[string]any{"author": "Ada Lovelace", "article": "10.1/a"}, first[0])
}

func TestCreateArticleNodesBatch_MergesByNormalizedDOI(t *testing.T) {
	runner := &graphtest.Runner{Respond: echoLinked}
	im := NewImporter(runner, 500, nil)

	result, err := im.CreateArticleNodesBatch(context.Background(), []models.Article{
		{DOI: "10.1/X", Title: "first"},
		{DOI: "10.1/x", Title: "duplicate"},
		{DOI: "", Title: "no doi"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Items)

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Query, "MERGE (a:Article {doi: article.doi})")
	batch := calls[0].Params["batch"].([]any)
	props := batch[0].(map[string]any)
	assert.Equal(t, "10.1/x", props["doi"])
	assert.Equal(t, "first", props["title"])
}

func TestCreateAuthorNodesBatch(t *testing.T) {
	runner := &graphtest.Runner{Respond: echoLinked}
	im := NewImporter(runner, 500, nil)

	result, err := im.CreateAuthorNodesBatch(context.Background(), []models.Author{
		{Name: "Ada Lovelace", HIndex: 3},
		{Name: "Ada Lovelace"},
		{Name: "Grace Hopper"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Items)
	assert.Equal(t, int64(2), result.Linked)
	assert.Contains(t, runner.Calls()[0].Query, "MERGE (a:Author {name: author.name})")
}

func TestWriteBatches_EmptyInputIssuesNoQuery(t *testing.T) {
	runner := &graphtest.Runner{}
	im := NewImporter(runner, 0, nil)
	assert.Equal(t, constants.DefaultBatchSize, im.BatchSize())

	result, err := im.CreateCitationEdgesBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Batches)
	assert.Empty(t, runner.Calls())
}

func TestWriteBatches_FailureReportsCommittedBatches(t *testing.T) {
	boom := errors.New("deadlock detected")
	runner := &graphtest.Runner{}
	runner.Respond = func(call graphtest.Call) ([]*neo4j.Record, error) {
		if len(runner.Calls()) == 3 {
			return nil, boom
		}
		return echoLinked(call)
	}
	im := NewImporter(runner, 10, nil)

	result, err := im.CreateCitationEdgesBatch(context.Background(), citations(45))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var batchErr *apperrors.ErrImportBatchFailed
	require.True(t, errors.As(err, &batchErr))
	assert.Equal(t, 3, batchErr.Batch)
	assert.Equal(t, 2, batchErr.Committed)
	assert.Equal(t, 2, result.Batches)
	assert.Equal(t, int64(20), result.Linked)
}

func TestWriteBatches_CancelledContext(t *testing.T) {
	runner := &graphtest.Runner{Respond: echoLinked}
	im := NewImporter(runner, 10, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := im.CreateCitationEdgesBatch(ctx, citations(5))
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeContext))
	assert.Empty(t, runner.Calls())
}

func TestCreateCoauthorshipEdges(t *testing.T) {
	runner := &graphtest.Runner{Respond: func(call graphtest.Call) ([]*neo4j.Record, error) {
		return []*neo4j.Record{graphtest.Record("linked", int64(7))}, nil
	}}
	im := NewImporter(runner, 500, nil)

	result, err := im.CreateCoauthorshipEdges(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), result.Linked)

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Query, "WHERE a1.name < a2.name")
	assert.Contains(t, calls[0].Query, "MERGE (a1)-[c:COAUTHORED_WITH]->(a2)")
	assert.Contains(t, calls[0].Query, "c.weight = size(dois)")
}

func TestImport_RunsStagesInOrder(t *testing.T) {
	runner := &graphtest.Runner{Respond: echoLinked}
	im := NewImporter(runner, 500, nil)

	summary, err := im.Import(context.Background(), models.Dataset{
		Articles:    []models.Article{{DOI: "10.1/a"}, {DOI: "10.1/b"}},
		Authors:     []models.Author{{Name: "Ada"}, {Name: "Grace"}},
		Citations:   []models.Citation{{Citer: "10.1/a", Citee: "10.1/b"}},
		Authorships: []models.Authorship{{Author: "Ada", Article: "10.1/a"}, {Author: "Grace", Article: "10.1/a"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Articles.Items)
	assert.Equal(t, 2, summary.Authors.Items)
	assert.Equal(t, int64(1), summary.Citations.Linked)
	assert.Equal(t, int64(2), summary.Authorships.Linked)

	calls := runner.Calls()
	require.Len(t, calls, 5)
	// node batches run concurrently, edges strictly after them
	assert.Contains(t, calls[2].Query, "CITES")
	assert.Contains(t, calls[3].Query, "AUTHORED_BY")
	assert.Contains(t, calls[4].Query, "COAUTHORED_WITH")
}

func TestImport_StopsOnNodeFailure(t *testing.T) {
	runner := &graphtest.Runner{Respond: func(call graphtest.Call) ([]*neo4j.Record, error) {
		return nil, errors.New("constraint violation")
	}}
	im := NewImporter(runner, 500, nil)

	_, err := im.Import(context.Background(), models.Dataset{
		Articles:  []models.Article{{DOI: "10.1/a"}},
		Citations: []models.Citation{{Citer: "10.1/a", Citee: "10.1/b"}},
	})
	require.Error(t, err)
	assert.Empty(t, runner.CallsMatching("CITES"))
}
