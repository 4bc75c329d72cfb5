package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
	"sonar/backend/internal/models"
	apperrors "sonar/backend/pkg/errors"
	"sonar/backend/pkg/logger"
)

// articleUpdateColumns are overwritten when an article is upserted
var articleUpdateColumns = []string{
	"external_ids",
	"s2ag_url",
	"title",
	"abstract",
	"venue",
	"year",
	"outbound_citation_count",
	"inbound_citation_count",
	"s2ag_influential_inbound_citation_count",
	"is_open_access",
	"open_access_pdf_url",
	"fields_of_study",
	"publication_venue",
	"publication_types",
	"publication_date",
	"journal",
}

// Repository handles relational catalog operations
type Repository struct {
	db     bun.IDB
	logger *zap.Logger
}

// NewRepository creates a new catalog repository
func NewRepository(db bun.IDB) *Repository {
	return &Repository{
		db:     db,
		logger: logger.Named("store"),
	}
}

// ============================================================================
// Catalogs
// ============================================================================

// CreateBase inserts a base unless (owner, name) already exists. The returned
// bool reports whether a row was inserted.
func (r *Repository) CreateBase(ctx context.Context, id, owner, name string) (*CatalogBase, bool, error) {
	base := &CatalogBase{ID: id, Owner: owner, Name: name, CreatedAt: time.Now().UTC()}

	_, err := r.db.NewInsert().
		Model(base).
		On("CONFLICT (owner, name) DO NOTHING").
		Exec(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, false, r.fail("create base", err)
	}

	existing, err := findBase(ctx, r.db, owner, name)
	if err != nil {
		return nil, false, err
	}
	return existing, existing.ID == id, nil
}

// DeleteBase removes a base; extensions and memberships cascade
func (r *Repository) DeleteBase(ctx context.Context, owner, name string) (bool, error) {
	res, err := r.db.NewDelete().
		Model((*CatalogBase)(nil)).
		Where("owner = ?", owner).
		Where("name = ?", name).
		Exec(ctx)
	if err != nil {
		return false, r.fail("delete base", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// CreateExtension inserts an extension of an existing base
func (r *Repository) CreateExtension(ctx context.Context, id, owner, baseName, name string) (*CatalogExtension, bool, error) {
	base, err := findBase(ctx, r.db, owner, baseName)
	if err != nil {
		return nil, false, err
	}

	ext := &CatalogExtension{ID: id, BaseID: base.ID, Name: name, CreatedAt: time.Now().UTC()}
	_, err = r.db.NewInsert().
		Model(ext).
		On("CONFLICT (base_id, name) DO NOTHING").
		Exec(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, false, r.fail("create extension", err)
	}

	existing, err := findExtension(ctx, r.db, owner, baseName, name)
	if err != nil {
		return nil, false, err
	}
	return existing, existing.ID == id, nil
}

// DeleteExtension removes an extension and its memberships
func (r *Repository) DeleteExtension(ctx context.Context, owner, baseName, name string) (bool, error) {
	res, err := r.db.NewDelete().
		Model((*CatalogExtension)(nil)).
		Where("name = ?", name).
		Where("base_id IN (?)", baseIDQuery(r.db, owner, baseName)).
		Exec(ctx)
	if err != nil {
		return false, r.fail("delete extension", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ============================================================================
// Memberships
// ============================================================================

// AddIdentifierToBase records doi as a member of the base
func (r *Repository) AddIdentifierToBase(ctx context.Context, owner, baseName, doi string) error {
	doi = models.NormalizeDOI(doi)
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		base, err := findBase(ctx, tx, owner, baseName)
		if err != nil {
			return err
		}
		if err := ensureIdentifiers(ctx, tx, []string{doi}); err != nil {
			return r.fail("add identifier to base", err)
		}

		_, err = tx.NewInsert().
			Model(&CatalogBaseArticleIdentifier{BaseID: base.ID, DOI: doi}).
			On("CONFLICT DO NOTHING").
			Exec(ctx)
		if err != nil {
			return r.fail("add identifier to base", err)
		}
		return nil
	})
}

// RemoveIdentifierFromBase drops doi from the base
func (r *Repository) RemoveIdentifierFromBase(ctx context.Context, owner, baseName, doi string) (bool, error) {
	res, err := r.db.NewDelete().
		Model((*CatalogBaseArticleIdentifier)(nil)).
		Where("doi = ?", models.NormalizeDOI(doi)).
		Where("catalog_base_id IN (?)", baseIDQuery(r.db, owner, baseName)).
		Exec(ctx)
	if err != nil {
		return false, r.fail("remove identifier from base", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// AddIdentifierToExtension records doi as a member of the extension
func (r *Repository) AddIdentifierToExtension(ctx context.Context, owner, baseName, extensionName, doi string) error {
	doi = models.NormalizeDOI(doi)
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		ext, err := findExtension(ctx, tx, owner, baseName, extensionName)
		if err != nil {
			return err
		}
		if err := ensureIdentifiers(ctx, tx, []string{doi}); err != nil {
			return r.fail("add identifier to extension", err)
		}

		_, err = tx.NewInsert().
			Model(&CatalogExtensionArticleIdentifier{ExtensionID: ext.ID, DOI: doi}).
			On("CONFLICT DO NOTHING").
			Exec(ctx)
		if err != nil {
			return r.fail("add identifier to extension", err)
		}
		return nil
	})
}

// RemoveIdentifierFromExtension drops doi from the extension
func (r *Repository) RemoveIdentifierFromExtension(ctx context.Context, owner, baseName, extensionName, doi string) (bool, error) {
	extIDs := r.db.NewSelect().
		Model((*CatalogExtension)(nil)).
		Column("ce.id").
		Where("ce.name = ?", extensionName).
		Where("ce.base_id IN (?)", baseIDQuery(r.db, owner, baseName))

	res, err := r.db.NewDelete().
		Model((*CatalogExtensionArticleIdentifier)(nil)).
		Where("doi = ?", models.NormalizeDOI(doi)).
		Where("catalog_extension_id IN (?)", extIDs).
		Exec(ctx)
	if err != nil {
		return false, r.fail("remove identifier from extension", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// BaseIdentifiers returns the DOIs in a base, sorted
func (r *Repository) BaseIdentifiers(ctx context.Context, owner, baseName string) ([]string, error) {
	base := new(CatalogBase)
	err := r.db.NewSelect().
		Model(base).
		Relation("Identifiers", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("ai.doi ASC")
		}).
		Where("cb.owner = ?", owner).
		Where("cb.name = ?", baseName).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewCatalogBaseNotFound(owner, baseName)
		}
		return nil, r.fail("base identifiers", err)
	}

	dois := make([]string, 0, len(base.Identifiers))
	for _, id := range base.Identifiers {
		dois = append(dois, id.DOI)
	}
	return dois, nil
}

// ============================================================================
// Articles
// ============================================================================

// UpsertArticles inserts articles, overwriting the stored fields of any DOI
// that already exists. It returns the number of rows written.
func (r *Repository) UpsertArticles(ctx context.Context, articles []models.Article) (int64, error) {
	rows := articleRows(articles)
	if len(rows) == 0 {
		return 0, nil
	}

	res, err := upsertArticlesQuery(r.db, rows).Exec(ctx)
	if err != nil {
		return 0, r.fail("upsert articles", err)
	}
	n, _ := res.RowsAffected()

	r.logger.Debug("Articles upserted", zap.Int("rows", len(rows)), zap.Int64("affected", n))
	return n, nil
}

// GetArticles returns the stored articles among dois
func (r *Repository) GetArticles(ctx context.Context, dois []string) ([]models.Article, error) {
	list := normalizeAll(dois)
	if len(list) == 0 {
		return []models.Article{}, nil
	}

	var rows []ArticleRow
	err := r.db.NewSelect().
		Model(&rows).
		Where("a.doi IN (?)", bun.In(list)).
		Order("a.doi ASC").
		Scan(ctx)
	if err != nil {
		return nil, r.fail("get articles", err)
	}

	articles := make([]models.Article, 0, len(rows))
	for i := range rows {
		articles = append(articles, rows[i].Article())
	}
	return articles, nil
}

// EnsureIdentifiers inserts any missing identifiers
func (r *Repository) EnsureIdentifiers(ctx context.Context, dois []string) error {
	if err := ensureIdentifiers(ctx, r.db, dois); err != nil {
		return r.fail("ensure identifiers", err)
	}
	return nil
}

// ============================================================================
// Helpers
// ============================================================================

func (r *Repository) fail(op string, err error) error {
	r.logger.Error("Store operation failed", zap.String("op", op), zap.Error(err))
	return apperrors.NewStoreOperationFailed(op, apperrors.WrapContext(op, err))
}

func findBase(ctx context.Context, db bun.IDB, owner, name string) (*CatalogBase, error) {
	base := new(CatalogBase)
	err := db.NewSelect().
		Model(base).
		Where("cb.owner = ?", owner).
		Where("cb.name = ?", name).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewCatalogBaseNotFound(owner, name)
		}
		return nil, apperrors.NewStoreOperationFailed("find base", err)
	}
	return base, nil
}

func findExtension(ctx context.Context, db bun.IDB, owner, baseName, name string) (*CatalogExtension, error) {
	ext := new(CatalogExtension)
	err := db.NewSelect().
		Model(ext).
		Where("ce.name = ?", name).
		Where("ce.base_id IN (?)", baseIDQuery(db, owner, baseName)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewCatalogExtensionNotFound(baseName, name)
		}
		return nil, apperrors.NewStoreOperationFailed("find extension", err)
	}
	return ext, nil
}

// articleRows converts articles to rows, dropping empty DOIs. Postgres rejects
// two rows for the same key in one upsert, so the last duplicate wins.
func articleRows(articles []models.Article) []*ArticleRow {
	rows := make([]*ArticleRow, 0, len(articles))
	seen := make(map[string]int, len(articles))
	for _, a := range articles {
		row := NewArticleRow(a)
		if row.DOI == "" {
			continue
		}
		if i, dup := seen[row.DOI]; dup {
			rows[i] = row
			continue
		}
		seen[row.DOI] = len(rows)
		rows = append(rows, row)
	}
	return rows
}

func upsertArticlesQuery(db bun.IDB, rows []*ArticleRow) *bun.InsertQuery {
	q := db.NewInsert().
		Model(&rows).
		On("CONFLICT (doi) DO UPDATE")
	for _, col := range articleUpdateColumns {
		q = q.Set(col + " = EXCLUDED." + col)
	}
	return q.Set("updated_at = now()")
}

func baseIDQuery(db bun.IDB, owner, name string) *bun.SelectQuery {
	return db.NewSelect().
		Model((*CatalogBase)(nil)).
		Column("cb.id").
		Where("cb.owner = ?", owner).
		Where("cb.name = ?", name)
}

func ensureIdentifiers(ctx context.Context, db bun.IDB, dois []string) error {
	list := normalizeAll(dois)
	if len(list) == 0 {
		return nil
	}
	ids := make([]ArticleIdentifier, 0, len(list))
	for _, doi := range list {
		ids = append(ids, ArticleIdentifier{DOI: doi})
	}
	_, err := db.NewInsert().
		Model(&ids).
		On("CONFLICT (doi) DO NOTHING").
		Exec(ctx)
	return err
}

func normalizeAll(dois []string) []string {
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
