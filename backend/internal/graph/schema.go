package graph

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// SchemaVersion is recorded on the Migration marker node once EnsureSchema succeeds
const SchemaVersion = "catalog_schema_v1"

type schemaStep struct {
	name  string
	query string
}

// Each step is a single statement; the server rejects multi-statement runs.
var schemaSteps = []schemaStep{
	{"article doi unique", `CREATE CONSTRAINT article_doi_unique IF NOT EXISTS FOR (a:Article) REQUIRE a.doi IS UNIQUE`},
	{"author name unique", `CREATE CONSTRAINT author_name_unique IF NOT EXISTS FOR (a:Author) REQUIRE a.name IS UNIQUE`},
	{"user username unique", `CREATE CONSTRAINT user_username_unique IF NOT EXISTS FOR (u:User) REQUIRE u.username IS UNIQUE`},
	{"catalog base name index", `CREATE INDEX catalog_base_name IF NOT EXISTS FOR (cb:CatalogBase) ON (cb.name)`},
	{"catalog extension name index", `CREATE INDEX catalog_extension_name IF NOT EXISTS FOR (ce:CatalogExtension) ON (ce.name)`},
	{"article title fulltext", `CREATE FULLTEXT INDEX article_title IF NOT EXISTS FOR (a:Article) ON EACH [a.title, a.abstract]`},
}

// SchemaApplied reports whether the current schema version has been recorded
func (r *Repository) SchemaApplied(ctx context.Context) (bool, error) {
	records, err := r.Read(ctx, `
		MATCH (m:Migration {version: $version})
		RETURN m.applied_at AS applied_at
	`, map[string]any{"version": SchemaVersion})
	if err != nil {
		return false, fmt.Errorf("failed to check schema version: %w", err)
	}
	return len(records) > 0, nil
}

// EnsureSchema creates constraints and indexes. Every statement is idempotent,
// so running it against an up-to-date database is harmless.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	for _, step := range schemaSteps {
		if _, err := r.Write(ctx, step.query, nil); err != nil {
			return fmt.Errorf("schema step %q failed: %w", step.name, err)
		}
		r.logger.Debug("Schema step applied", zap.String("step", step.name))
	}

	_, err := r.Write(ctx, `
		MERGE (m:Migration {version: $version})
		SET m.applied_at = datetime(),
		    m.description = 'Catalog constraints and indexes'
	`, map[string]any{"version": SchemaVersion})
	if err != nil {
		return fmt.Errorf("failed to mark schema applied: %w", err)
	}

	r.logger.Info("Graph schema ensured", zap.String("version", SchemaVersion))
	return nil
}
