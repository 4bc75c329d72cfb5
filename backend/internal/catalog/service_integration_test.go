package catalog

import (
	"context"
	stderrors "errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sonar/backend/internal/graph"
	"sonar/backend/internal/models"
	apperrors "sonar/backend/pkg/errors"
)

// Integration tests require a running Neo4j instance.
// Set NEO4J_URI, NEO4J_USER, NEO4J_PASSWORD to point at it.
func newTestRepository(t *testing.T) *graph.Repository {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	driver, err := graph.Connect(ctx, envOr("NEO4J_URI", "bolt://localhost:7687"), envOr("NEO4J_USER", "neo4j"), envOr("NEO4J_PASSWORD", "password"))
	if err != nil {
		t.Skipf("Neo4j not reachable: %v", err)
	}

	repo := graph.NewRepository(driver, "", nil)
	t.Cleanup(func() { _ = repo.Close(context.Background()) })
	return repo
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func countRows(t *testing.T, repo *graph.Repository, query string, params map[string]any) int64 {
	t.Helper()
	records, err := repo.Read(context.Background(), query, params)
	require.NoError(t, err)
	require.Len(t, records, 1)
	return graph.RecordInt64(records[0], "n")
}

func TestService_Integration(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	svc := NewService(repo)

	suffix := time.Now().Format("20060102150405.000")
	user := "test-user-" + suffix
	doi, citer, citee := "10.9999/cat-"+suffix, "10.9999/citer-"+suffix, "10.9999/citee-"+suffix

	var extensionID string

	t.Cleanup(func() {
		_, _ = repo.Write(context.Background(), `
			OPTIONAL MATCH (u:User {username: $user})
			OPTIONAL MATCH (cb:CatalogBase)-[:OWNED_BY]->(u)
			OPTIONAL MATCH (ce:CatalogExtension)-[:EXTENDS]->(cb)
			OPTIONAL MATCH (a:Article) WHERE a.doi IN $dois
			DETACH DELETE ce, cb, u, a
		`, map[string]any{"user": user, "dois": []string{doi, citer, citee}})
	})

	t.Run("second create reports existing base", func(t *testing.T) {
		first, err := svc.CreateBaseNode(ctx, user, "thesis")
		require.NoError(t, err)
		assert.True(t, first.Created)

		second, err := svc.CreateBaseNode(ctx, user, "thesis")
		require.NoError(t, err)
		assert.False(t, second.Created)
		assert.Equal(t, first.ID, second.ID)

		assert.Equal(t, int64(1), countRows(t, repo,
			"MATCH (:CatalogBase {name: 'thesis'})-[:OWNED_BY]->(:User {username: $user}) RETURN count(*) AS n",
			map[string]any{"user": user}))
	})

	t.Run("article with no authors still gets both citation directions", func(t *testing.T) {
		require.NoError(t, svc.CreateArticleNode(ctx, models.Article{DOI: citer, Title: "Citer"}, nil, nil, nil))
		require.NoError(t, svc.CreateArticleNode(ctx, models.Article{DOI: citee, Title: "Citee"}, nil, nil, nil))
		require.NoError(t, svc.CreateArticleNode(ctx, models.Article{DOI: doi, Title: "Middle"}, []models.Author{}, []string{citer}, []string{citee}))

		assert.Equal(t, int64(1), countRows(t, repo,
			"MATCH (:Article {doi: $citer})-[:CITES]->(:Article {doi: $doi})-[:CITES]->(:Article {doi: $citee}) RETURN count(*) AS n",
			map[string]any{"citer": citer, "doi": doi, "citee": citee}))
	})

	t.Run("membership flags", func(t *testing.T) {
		var baseMissing *apperrors.ErrCatalogBaseNotFound
		var articleMissing *apperrors.ErrArticleNotFound

		err := svc.AddArticleToBase(ctx, user, "nope", doi)
		assert.True(t, stderrors.As(err, &baseMissing))

		err = svc.AddArticleToBase(ctx, user, "thesis", "10.9999/absent-"+suffix)
		assert.True(t, stderrors.As(err, &articleMissing))

		require.NoError(t, svc.AddArticleToBase(ctx, user, "thesis", doi))
		// adding twice keeps a single edge
		require.NoError(t, svc.AddArticleToBase(ctx, user, "thesis", doi))

		contains, err := svc.ArticleInBase(ctx, user, "thesis", doi)
		require.NoError(t, err)
		assert.True(t, contains)

		articles, err := svc.GetBaseArticles(ctx, user, "thesis")
		require.NoError(t, err)
		require.Len(t, articles, 1)
		assert.Equal(t, "Middle", articles[0].Title)

		_, err = svc.GetBaseArticles(ctx, user, "nope")
		assert.True(t, stderrors.As(err, &baseMissing))
		_, err = svc.ArticleInBase(ctx, user, "nope", doi)
		assert.True(t, stderrors.As(err, &baseMissing))
	})

	t.Run("extension membership and removal", func(t *testing.T) {
		ext, err := svc.CreateExtensionNode(ctx, user, "thesis", "chapter-1")
		require.NoError(t, err)
		assert.True(t, ext.Created)
		extensionID = ext.ID

		articles, err := svc.GetExtensionArticles(ctx, user, "thesis", "chapter-1")
		require.NoError(t, err)
		assert.Empty(t, articles)

		require.NoError(t, svc.AddArticleToExtension(ctx, user, "thesis", "chapter-1", doi))

		removed, err := svc.RemoveArticleFromExtension(ctx, user, "thesis", "chapter-1", doi)
		require.NoError(t, err)
		assert.True(t, removed)

		removed, err = svc.RemoveArticleFromExtension(ctx, user, "thesis", "chapter-1", doi)
		require.NoError(t, err)
		assert.False(t, removed)

		var extMissing *apperrors.ErrCatalogExtensionNotFound
		_, err = svc.RemoveArticleFromExtension(ctx, user, "thesis", "chapter-9", doi)
		assert.True(t, stderrors.As(err, &extMissing))
	})

	t.Run("deleting a base cascades to its extensions", func(t *testing.T) {
		require.NoError(t, svc.DeleteBaseNode(ctx, user, "thesis"))

		assert.Equal(t, int64(0), countRows(t, repo,
			"MATCH (ce:CatalogExtension {id: $id}) RETURN count(ce) AS n", map[string]any{"id": extensionID}))
		assert.Equal(t, int64(0), countRows(t, repo,
			"MATCH (cb:CatalogBase {name: 'thesis'})-[:OWNED_BY]->(:User {username: $user}) RETURN count(cb) AS n",
			map[string]any{"user": user}))

		// articles are not part of the cascade
		assert.Equal(t, int64(1), countRows(t, repo,
			"MATCH (a:Article {doi: $doi}) RETURN count(a) AS n", map[string]any{"doi": doi}))

		var baseMissing *apperrors.ErrCatalogBaseNotFound
		err := svc.DeleteBaseNode(ctx, user, "thesis")
		assert.True(t, stderrors.As(err, &baseMissing))
	})
}
