package catalog

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
	"sonar/backend/internal/graph"
	"sonar/backend/internal/models"
	apperrors "sonar/backend/pkg/errors"
	"sonar/backend/pkg/logger"
)

// Service exposes catalog operations on the graph. Every method issues a
// single parameterized statement.
type Service struct {
	runner graph.Runner
	logger *zap.Logger
}

// NewService creates a catalog service over runner
func NewService(runner graph.Runner) *Service {
	return &Service{
		runner: runner,
		logger: logger.Named("catalog"),
	}
}

// ============================================================================
// Catalog nodes
// ============================================================================

// CreateBaseNode creates a catalog base owned by username. Bases are keyed by
// (owner, name); creating one that exists returns it with Created false.
// The write lock taken on the User node serializes concurrent creates for the
// same owner, since no constraint covers the (owner, name) pattern.
func (s *Service) CreateBaseNode(ctx context.Context, username, baseName string) (Base, error) {
	if err := requireArgs("username", username, "catalog base name", baseName); err != nil {
		return Base{}, err
	}

	id := uuid.New().String()
	records, err := s.write(ctx, "create base node", `
		MERGE (u:User {username: $username})
		SET u._lock = true
		WITH u
		MERGE (cb:CatalogBase {name: $catalog_base_name})-[:OWNED_BY]->(u)
		ON CREATE SET cb.id = $id,
		              cb.created_at = datetime()
		RETURN cb.id AS id, cb.created_at AS created_at, cb.id = $id AS created
	`, map[string]any{
		"username":          username,
		"catalog_base_name": baseName,
		"id":                id,
	})
	if err != nil {
		return Base{}, err
	}
	if len(records) == 0 {
		return Base{}, apperrors.NewGraphQueryFailed("create base node", nil)
	}

	rec := records[0]
	base := Base{
		ID:         graph.RecordString(rec, "id"),
		Name:       baseName,
		Owner:      username,
		Extensions: []string{},
		CreatedAt:  graph.RecordTime(rec, "created_at"),
		Created:    graph.RecordBool(rec, "created"),
	}
	if base.Created {
		s.logger.Info("Catalog base created",
			zap.String("username", username),
			zap.String("base", baseName),
		)
	}
	return base, nil
}

// DeleteBaseNode removes a base together with its extensions and membership edges
func (s *Service) DeleteBaseNode(ctx context.Context, username, baseName string) error {
	if err := requireArgs("username", username, "catalog base name", baseName); err != nil {
		return err
	}

	records, err := s.write(ctx, "delete base node", `
		MATCH (cb:CatalogBase {name: $catalog_base_name})-[:OWNED_BY]->(:User {username: $username})
		OPTIONAL MATCH (ce:CatalogExtension)-[:EXTENDS]->(cb)
		WITH cb, collect(ce) AS extensions
		FOREACH (ce IN extensions | DETACH DELETE ce)
		DETACH DELETE cb
		RETURN count(*) AS deleted
	`, map[string]any{
		"username":          username,
		"catalog_base_name": baseName,
	})
	if err != nil {
		return err
	}
	if countOf(records, "deleted") == 0 {
		return apperrors.NewCatalogBaseNotFound(username, baseName)
	}

	s.logger.Info("Catalog base deleted",
		zap.String("username", username),
		zap.String("base", baseName),
	)
	return nil
}

// CreateExtensionNode creates an extension of an existing base
func (s *Service) CreateExtensionNode(ctx context.Context, username, baseName, extensionName string) (Extension, error) {
	if err := requireArgs("username", username, "catalog base name", baseName, "catalog extension name", extensionName); err != nil {
		return Extension{}, err
	}

	id := uuid.New().String()
	records, err := s.write(ctx, "create extension node", `
		MATCH (cb:CatalogBase {name: $catalog_base_name})-[:OWNED_BY]->(:User {username: $username})
		SET cb._lock = true
		WITH cb
		MERGE (ce:CatalogExtension {name: $catalog_extension_name})-[:EXTENDS]->(cb)
		ON CREATE SET ce.id = $id,
		              ce.created_at = datetime()
		RETURN ce.id AS id, ce.id = $id AS created
	`, map[string]any{
		"username":               username,
		"catalog_base_name":      baseName,
		"catalog_extension_name": extensionName,
		"id":                     id,
	})
	if err != nil {
		return Extension{}, err
	}
	if len(records) == 0 {
		return Extension{}, apperrors.NewCatalogBaseNotFound(username, baseName)
	}

	return Extension{
		ID:      graph.RecordString(records[0], "id"),
		Name:    extensionName,
		Base:    baseName,
		Created: graph.RecordBool(records[0], "created"),
	}, nil
}

// DeleteExtensionNode removes an extension and its membership edges
func (s *Service) DeleteExtensionNode(ctx context.Context, username, baseName, extensionName string) error {
	if err := requireArgs("username", username, "catalog base name", baseName, "catalog extension name", extensionName); err != nil {
		return err
	}

	records, err := s.write(ctx, "delete extension node", `
		MATCH (ce:CatalogExtension {name: $catalog_extension_name})-[:EXTENDS]->(:CatalogBase {name: $catalog_base_name})-[:OWNED_BY]->(:User {username: $username})
		DETACH DELETE ce
		RETURN count(*) AS deleted
	`, map[string]any{
		"username":               username,
		"catalog_base_name":      baseName,
		"catalog_extension_name": extensionName,
	})
	if err != nil {
		return err
	}
	if countOf(records, "deleted") == 0 {
		return apperrors.NewCatalogExtensionNotFound(baseName, extensionName)
	}
	return nil
}

// ListBases returns every base owned by username with its extensions
func (s *Service) ListBases(ctx context.Context, username string) ([]Base, error) {
	if err := requireArgs("username", username); err != nil {
		return nil, err
	}

	records, err := s.read(ctx, "list bases", `
		MATCH (cb:CatalogBase)-[:OWNED_BY]->(:User {username: $username})
		OPTIONAL MATCH (ce:CatalogExtension)-[:EXTENDS]->(cb)
		OPTIONAL MATCH (a:Article)-[:IN]->(cb)
		RETURN cb.id AS id,
		       cb.name AS name,
		       cb.created_at AS created_at,
		       collect(DISTINCT ce.name) AS extensions,
		       count(DISTINCT a) AS article_count
		ORDER BY name
	`, map[string]any{"username": username})
	if err != nil {
		return nil, err
	}

	bases := make([]Base, 0, len(records))
	for _, rec := range records {
		bases = append(bases, Base{
			ID:           graph.RecordString(rec, "id"),
			Name:         graph.RecordString(rec, "name"),
			Owner:        username,
			Extensions:   graph.RecordStrings(rec, "extensions"),
			ArticleCount: graph.RecordInt64(rec, "article_count"),
			CreatedAt:    graph.RecordTime(rec, "created_at"),
		})
	}
	return bases, nil
}

// ============================================================================
// Article and author nodes
// ============================================================================

// CreateArticleNode merges an article and links it to existing authors and to
// existing citing/cited articles. Missing endpoints are skipped; each list is
// linked independently so an empty list never suppresses the others.
func (s *Service) CreateArticleNode(ctx context.Context, article models.Article, authors []models.Author, inboundCitationDOIs, outboundCitationDOIs []string) error {
	props := article.Properties()
	doi := props["doi"].(string)
	if doi == "" {
		return apperrors.NewInvalidArgument("doi", "must not be empty")
	}

	_, err := s.write(ctx, "create article node", `
		MERGE (a:Article {doi: $doi})
		SET a += $article
		WITH a
		CALL {
			WITH a
			UNWIND $author_names AS author_name
			MATCH (au:Author {name: author_name})
			MERGE (a)-[:AUTHORED_BY]->(au)
		}
		CALL {
			WITH a
			UNWIND $inbound_citation_dois AS inbound_citation_doi
			MATCH (c:Article {doi: inbound_citation_doi})
			WHERE c <> a
			MERGE (c)-[:CITES]->(a)
		}
		CALL {
			WITH a
			UNWIND $outbound_citation_dois AS outbound_citation_doi
			MATCH (c:Article {doi: outbound_citation_doi})
			WHERE c <> a
			MERGE (a)-[:CITES]->(c)
		}
		RETURN a.doi AS doi
	`, map[string]any{
		"doi":                    doi,
		"article":                props,
		"author_names":           models.AuthorNames(authors),
		"inbound_citation_dois":  normalizeDOIs(inboundCitationDOIs),
		"outbound_citation_dois": normalizeDOIs(outboundCitationDOIs),
	})
	return err
}

// CreateAuthorNode merges an author keyed by name and overwrites its properties
func (s *Service) CreateAuthorNode(ctx context.Context, author models.Author) error {
	props := author.Properties()
	name := props["name"].(string)
	if name == "" {
		return apperrors.NewInvalidArgument("author name", "must not be empty")
	}

	_, err := s.write(ctx, "create author node", `
		MERGE (a:Author {name: $author_name})
		SET a += $author
	`, map[string]any{
		"author_name": name,
		"author":      props,
	})
	return err
}

// ============================================================================
// Membership
// ============================================================================

// AddArticleToBase puts an existing article into a base
func (s *Service) AddArticleToBase(ctx context.Context, username, baseName, doi string) error {
	if err := requireArgs("username", username, "catalog base name", baseName, "doi", doi); err != nil {
		return err
	}
	doi = models.NormalizeDOI(doi)

	records, err := s.write(ctx, "add article to base", `
		OPTIONAL MATCH (cb:CatalogBase {name: $catalog_base_name})-[:OWNED_BY]->(:User {username: $username})
		OPTIONAL MATCH (a:Article {doi: $doi})
		FOREACH (_ IN CASE WHEN cb IS NOT NULL AND a IS NOT NULL THEN [1] ELSE [] END |
			MERGE (a)-[:IN]->(cb)
		)
		RETURN cb IS NOT NULL AS container_found, a IS NOT NULL AS article_found
	`, map[string]any{
		"username":          username,
		"catalog_base_name": baseName,
		"doi":               doi,
	})
	if err != nil {
		return err
	}
	return membershipResult(records, doi, apperrors.NewCatalogBaseNotFound(username, baseName))
}

// AddArticleToExtension puts an existing article into an extension
func (s *Service) AddArticleToExtension(ctx context.Context, username, baseName, extensionName, doi string) error {
	if err := requireArgs("username", username, "catalog base name", baseName, "catalog extension name", extensionName, "doi", doi); err != nil {
		return err
	}
	doi = models.NormalizeDOI(doi)

	records, err := s.write(ctx, "add article to extension", `
		OPTIONAL MATCH (ce:CatalogExtension {name: $catalog_extension_name})-[:EXTENDS]->(:CatalogBase {name: $catalog_base_name})-[:OWNED_BY]->(:User {username: $username})
		OPTIONAL MATCH (a:Article {doi: $doi})
		FOREACH (_ IN CASE WHEN ce IS NOT NULL AND a IS NOT NULL THEN [1] ELSE [] END |
			MERGE (a)-[:IN]->(ce)
		)
		RETURN ce IS NOT NULL AS container_found, a IS NOT NULL AS article_found
	`, map[string]any{
		"username":               username,
		"catalog_base_name":      baseName,
		"catalog_extension_name": extensionName,
		"doi":                    doi,
	})
	if err != nil {
		return err
	}
	return membershipResult(records, doi, apperrors.NewCatalogExtensionNotFound(baseName, extensionName))
}

// RemoveArticleFromBase deletes the membership edge. It reports whether an
// edge was removed; a missing base is an error.
func (s *Service) RemoveArticleFromBase(ctx context.Context, username, baseName, doi string) (bool, error) {
	if err := requireArgs("username", username, "catalog base name", baseName, "doi", doi); err != nil {
		return false, err
	}

	records, err := s.write(ctx, "remove article from base", `
		OPTIONAL MATCH (cb:CatalogBase {name: $catalog_base_name})-[:OWNED_BY]->(:User {username: $username})
		OPTIONAL MATCH (:Article {doi: $doi})-[i:IN]->(cb)
		WITH cb, collect(i) AS edges
		FOREACH (e IN edges | DELETE e)
		RETURN cb IS NOT NULL AS container_found, size(edges) AS removed
	`, map[string]any{
		"username":          username,
		"catalog_base_name": baseName,
		"doi":               models.NormalizeDOI(doi),
	})
	if err != nil {
		return false, err
	}
	if !containerFound(records) {
		return false, apperrors.NewCatalogBaseNotFound(username, baseName)
	}
	return countOf(records, "removed") > 0, nil
}

// RemoveArticleFromExtension deletes the membership edge on an extension
func (s *Service) RemoveArticleFromExtension(ctx context.Context, username, baseName, extensionName, doi string) (bool, error) {
	if err := requireArgs("username", username, "catalog base name", baseName, "catalog extension name", extensionName, "doi", doi); err != nil {
		return false, err
	}

	records, err := s.write(ctx, "remove article from extension", `
		OPTIONAL MATCH (ce:CatalogExtension {name: $catalog_extension_name})-[:EXTENDS]->(:CatalogBase {name: $catalog_base_name})-[:OWNED_BY]->(:User {username: $username})
		OPTIONAL MATCH (:Article {doi: $doi})-[i:IN]->(ce)
		WITH ce, collect(i) AS edges
		FOREACH (e IN edges | DELETE e)
		RETURN ce IS NOT NULL AS container_found, size(edges) AS removed
	`, map[string]any{
		"username":               username,
		"catalog_base_name":      baseName,
		"catalog_extension_name": extensionName,
		"doi":                    models.NormalizeDOI(doi),
	})
	if err != nil {
		return false, err
	}
	if !containerFound(records) {
		return false, apperrors.NewCatalogExtensionNotFound(baseName, extensionName)
	}
	return countOf(records, "removed") > 0, nil
}

// GetBaseArticles returns the articles in a base, ordered by title
func (s *Service) GetBaseArticles(ctx context.Context, username, baseName string) ([]models.Article, error) {
	if err := requireArgs("username", username, "catalog base name", baseName); err != nil {
		return nil, err
	}

	records, err := s.read(ctx, "get base articles", `
		OPTIONAL MATCH (c:CatalogBase {name: $catalog_base_name})-[:OWNED_BY]->(:User {username: $username})
		OPTIONAL MATCH (a:Article)-[:IN]->(c)
		WITH c, a
		ORDER BY a.title, a.doi
		RETURN c IS NOT NULL AS container_found, collect(a) AS articles
	`, map[string]any{
		"username":          username,
		"catalog_base_name": baseName,
	})
	if err != nil {
		return nil, err
	}
	if !containerFound(records) {
		return nil, apperrors.NewCatalogBaseNotFound(username, baseName)
	}
	return articleListFrom(records)
}

// GetExtensionArticles returns the articles in an extension, ordered by title
func (s *Service) GetExtensionArticles(ctx context.Context, username, baseName, extensionName string) ([]models.Article, error) {
	if err := requireArgs("username", username, "catalog base name", baseName, "catalog extension name", extensionName); err != nil {
		return nil, err
	}

	records, err := s.read(ctx, "get extension articles", `
		OPTIONAL MATCH (c:CatalogExtension {name: $extension_name})-[:EXTENDS]->(:CatalogBase {name: $catalog_base_name})-[:OWNED_BY]->(:User {username: $username})
		OPTIONAL MATCH (a:Article)-[:IN]->(c)
		WITH c, a
		ORDER BY a.title, a.doi
		RETURN c IS NOT NULL AS container_found, collect(a) AS articles
	`, map[string]any{
		"username":          username,
		"catalog_base_name": baseName,
		"extension_name":    extensionName,
	})
	if err != nil {
		return nil, err
	}
	if !containerFound(records) {
		return nil, apperrors.NewCatalogExtensionNotFound(baseName, extensionName)
	}
	return articleListFrom(records)
}

// ArticleInBase reports whether the article is a member of the base. A
// missing base is an error, not a false.
func (s *Service) ArticleInBase(ctx context.Context, username, baseName, doi string) (bool, error) {
	if err := requireArgs("username", username, "catalog base name", baseName, "doi", doi); err != nil {
		return false, err
	}

	records, err := s.read(ctx, "check article in base", `
		OPTIONAL MATCH (c:CatalogBase {name: $catalog_base_name})-[:OWNED_BY]->(:User {username: $username})
		OPTIONAL MATCH (a:Article {doi: $doi})-[:IN]->(c)
		RETURN c IS NOT NULL AS container_found, count(a) > 0 AS contains
	`, map[string]any{
		"username":          username,
		"catalog_base_name": baseName,
		"doi":               models.NormalizeDOI(doi),
	})
	if err != nil {
		return false, err
	}
	if !containerFound(records) {
		return false, apperrors.NewCatalogBaseNotFound(username, baseName)
	}
	return graph.RecordBool(records[0], "contains"), nil
}

// BaseExists reports whether username owns a base with that name
func (s *Service) BaseExists(ctx context.Context, username, baseName string) (bool, error) {
	if err := requireArgs("username", username, "catalog base name", baseName); err != nil {
		return false, err
	}

	records, err := s.read(ctx, "check base exists", `
		MATCH (c:CatalogBase {name: $catalog_base_name})-[:OWNED_BY]->(:User {username: $username})
		RETURN c.name AS name
		LIMIT 1
	`, map[string]any{
		"username":          username,
		"catalog_base_name": baseName,
	})
	if err != nil {
		return false, err
	}
	return len(records) > 0, nil
}

// ExtensionExists reports whether the base has an extension with that name
func (s *Service) ExtensionExists(ctx context.Context, username, baseName, extensionName string) (bool, error) {
	if err := requireArgs("username", username, "catalog base name", baseName, "catalog extension name", extensionName); err != nil {
		return false, err
	}

	records, err := s.read(ctx, "check extension exists", `
		MATCH (ce:CatalogExtension {name: $extension_name})-[:EXTENDS]->(:CatalogBase {name: $base_name})-[:OWNED_BY]->(:User {username: $username})
		RETURN ce.name AS name
		LIMIT 1
	`, map[string]any{
		"username":       username,
		"base_name":      baseName,
		"extension_name": extensionName,
	})
	if err != nil {
		return false, err
	}
	return len(records) > 0, nil
}

// GetExistingArticles returns the articles among dois that already exist
func (s *Service) GetExistingArticles(ctx context.Context, dois []string) ([]models.Article, error) {
	list := normalizeDOIs(dois)
	if len(list) == 0 {
		return []models.Article{}, nil
	}

	records, err := s.read(ctx, "get existing articles", `
		MATCH (a:Article)
		WHERE a.doi IN $doi_list
		RETURN a AS article
	`, map[string]any{"doi_list": list})
	if err != nil {
		return nil, err
	}
	return articlesFrom(records)
}

// GetExistingAuthors returns the authors among names that already exist
func (s *Service) GetExistingAuthors(ctx context.Context, names []string) ([]models.Author, error) {
	list := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			list = append(list, n)
		}
	}
	if len(list) == 0 {
		return []models.Author{}, nil
	}

	records, err := s.read(ctx, "get existing authors", `
		MATCH (a:Author)
		WHERE a.name IN $author_name_list
		RETURN a AS author
	`, map[string]any{"author_name_list": list})
	if err != nil {
		return nil, err
	}

	authors := make([]models.Author, 0, len(records))
	for _, rec := range records {
		props, ok := graph.RecordNodeProps(rec, "author")
		if !ok {
			continue
		}
		author, err := models.AuthorFromProps(props)
		if err != nil {
			return nil, apperrors.NewGraphQueryFailed("decode author", err)
		}
		authors = append(authors, author)
	}
	return authors, nil
}

// GetCoauthors returns the co-authorship neighbours of an author, heaviest first
func (s *Service) GetCoauthors(ctx context.Context, authorName string) ([]Coauthor, error) {
	if err := requireArgs("author name", authorName); err != nil {
		return nil, err
	}

	records, err := s.read(ctx, "get coauthors", `
		MATCH (:Author {name: $author_name})-[c:COAUTHORED_WITH]-(other:Author)
		RETURN other.name AS name, c.weight AS weight, c.coauthored_dois AS dois
		ORDER BY weight DESC, name
	`, map[string]any{"author_name": strings.TrimSpace(authorName)})
	if err != nil {
		return nil, err
	}

	coauthors := make([]Coauthor, 0, len(records))
	for _, rec := range records {
		coauthors = append(coauthors, Coauthor{
			Name:   graph.RecordString(rec, "name"),
			Weight: graph.RecordInt64(rec, "weight"),
			DOIs:   graph.RecordStrings(rec, "dois"),
		})
	}
	return coauthors, nil
}

// ============================================================================
// Helpers
// ============================================================================

func (s *Service) read(ctx context.Context, op, query string, params map[string]any) ([]*neo4j.Record, error) {
	records, err := s.runner.Read(ctx, query, params)
	if err != nil {
		s.logger.Error("Catalog query failed", zap.String("op", op), zap.Error(err))
		return nil, apperrors.NewGraphQueryFailed(op, apperrors.WrapContext(op, err))
	}
	return records, nil
}

func (s *Service) write(ctx context.Context, op, query string, params map[string]any) ([]*neo4j.Record, error) {
	records, err := s.runner.Write(ctx, query, params)
	if err != nil {
		s.logger.Error("Catalog query failed", zap.String("op", op), zap.Error(err))
		return nil, apperrors.NewGraphQueryFailed(op, apperrors.WrapContext(op, err))
	}
	return records, nil
}

// requireArgs takes alternating field name / value pairs
func requireArgs(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return apperrors.NewInvalidArgument(pairs[i], "must not be empty")
		}
	}
	return nil
}

// containerFound reads the container_found flag of a single-row result
func containerFound(records []*neo4j.Record) bool {
	return len(records) > 0 && graph.RecordBool(records[0], "container_found")
}

func membershipResult(records []*neo4j.Record, doi string, containerMissing error) error {
	if !containerFound(records) {
		return containerMissing
	}
	if !graph.RecordBool(records[0], "article_found") {
		return apperrors.NewArticleNotFound(doi)
	}
	return nil
}

func countOf(records []*neo4j.Record, key string) int64 {
	var n int64
	for _, rec := range records {
		n += graph.RecordInt64(rec, key)
	}
	return n
}

func normalizeDOIs(dois []string) []string {
	seen := make(map[string]struct{}, len(dois))
	out := make([]string, 0, len(dois))
	for _, d := range dois {
		n := models.NormalizeDOI(d)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// articleListFrom decodes the collected "articles" list of a single-row result
func articleListFrom(records []*neo4j.Record) ([]models.Article, error) {
	nodes := graph.RecordNodeList(records[0], "articles")
	articles := make([]models.Article, 0, len(nodes))
	for _, props := range nodes {
		article, err := models.ArticleFromProps(props)
		if err != nil {
			return nil, apperrors.NewGraphQueryFailed("decode article", err)
		}
		articles = append(articles, article)
	}
	return articles, nil
}

func articlesFrom(records []*neo4j.Record) ([]models.Article, error) {
	articles := make([]models.Article, 0, len(records))
	for _, rec := range records {
		props, ok := graph.RecordNodeProps(rec, "article")
		if !ok {
			continue
		}
		article, err := models.ArticleFromProps(props)
		if err != nil {
			return nil, apperrors.NewGraphQueryFailed("decode article", err)
		}
		articles = append(articles, article)
	}
	return articles, nil
}
