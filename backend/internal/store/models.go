package store

import (
	"time"

	"github.com/uptrace/bun"
	"sonar/backend/internal/models"
)

// ArticleRow is an article in the articles table
type ArticleRow struct {
	bun.BaseModel `bun:"table:articles,alias:a"`

	DOI                                 string            `bun:"doi,pk"`
	ExternalIDs                         map[string]string `bun:"external_ids,type:jsonb,notnull"`
	S2AGURL                             string            `bun:"s2ag_url,notnull"`
	Title                               string            `bun:"title,notnull"`
	Abstract                            string            `bun:"abstract,notnull"`
	Venue                               string            `bun:"venue,notnull"`
	Year                                int64             `bun:"year,nullzero"`
	OutboundCitationCount               int64             `bun:"outbound_citation_count,notnull"`
	InboundCitationCount                int64             `bun:"inbound_citation_count,notnull"`
	S2AGInfluentialInboundCitationCount int64             `bun:"s2ag_influential_inbound_citation_count,notnull"`
	IsOpenAccess                        bool              `bun:"is_open_access,notnull"`
	OpenAccessPDFURL                    string            `bun:"open_access_pdf_url,notnull"`
	FieldsOfStudy                       []string          `bun:"fields_of_study,array,notnull"`
	PublicationVenue                    map[string]any    `bun:"publication_venue,type:jsonb,notnull"`
	PublicationTypes                    []string          `bun:"publication_types,array,notnull"`
	PublicationDate                     string            `bun:"publication_date,notnull"`
	Journal                             map[string]any    `bun:"journal,type:jsonb,notnull"`
	CreatedAt                           time.Time         `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt                           time.Time         `bun:"updated_at,notnull,default:current_timestamp"`
}

// ArticleIdentifier is a bare DOI that catalogs point at
type ArticleIdentifier struct {
	bun.BaseModel `bun:"table:article_identifiers,alias:ai"`

	DOI string `bun:"doi,pk"`
}

// CatalogBase is a user's catalog in the relational mirror
type CatalogBase struct {
	bun.BaseModel `bun:"table:catalog_bases,alias:cb"`

	ID        string    `bun:"id,pk,type:uuid"`
	Owner     string    `bun:"owner,notnull"`
	Name      string    `bun:"name,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`

	Extensions  []*CatalogExtension `bun:"rel:has-many,join:id=base_id"`
	Identifiers []ArticleIdentifier `bun:"m2m:catalog_base_article_identifiers,join:Base=Identifier"`
}

// CatalogExtension is a sub-catalog of a CatalogBase
type CatalogExtension struct {
	bun.BaseModel `bun:"table:catalog_extensions,alias:ce"`

	ID        string    `bun:"id,pk,type:uuid"`
	BaseID    string    `bun:"base_id,notnull,type:uuid"`
	Name      string    `bun:"name,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`

	Base        *CatalogBase        `bun:"rel:belongs-to,join:base_id=id"`
	Identifiers []ArticleIdentifier `bun:"m2m:catalog_extension_article_identifiers,join:Extension=Identifier"`
}

// CatalogBaseArticleIdentifier joins bases to identifiers
type CatalogBaseArticleIdentifier struct {
	bun.BaseModel `bun:"table:catalog_base_article_identifiers,alias:cbai"`

	BaseID     string             `bun:"catalog_base_id,pk,type:uuid"`
	Base       *CatalogBase       `bun:"rel:belongs-to,join:catalog_base_id=id"`
	DOI        string             `bun:"doi,pk"`
	Identifier *ArticleIdentifier `bun:"rel:belongs-to,join:doi=doi"`
}

// CatalogExtensionArticleIdentifier joins extensions to identifiers
type CatalogExtensionArticleIdentifier struct {
	bun.BaseModel `bun:"table:catalog_extension_article_identifiers,alias:ceai"`

	ExtensionID string             `bun:"catalog_extension_id,pk,type:uuid"`
	Extension   *CatalogExtension  `bun:"rel:belongs-to,join:catalog_extension_id=id"`
	DOI         string             `bun:"doi,pk"`
	Identifier  *ArticleIdentifier `bun:"rel:belongs-to,join:doi=doi"`
}

// RegisterModels registers the m2m join models. bun requires this before any
// query touches an m2m relation.
func RegisterModels(db *bun.DB) {
	db.RegisterModel(
		(*CatalogBaseArticleIdentifier)(nil),
		(*CatalogExtensionArticleIdentifier)(nil),
	)
}

// NewArticleRow converts a domain article into a table row
func NewArticleRow(a models.Article) *ArticleRow {
	row := &ArticleRow{
		DOI:                                 models.NormalizeDOI(a.DOI),
		ExternalIDs:                         a.ExternalIDs,
		S2AGURL:                             a.S2AGURL,
		Title:                               a.Title,
		Abstract:                            a.Abstract,
		Venue:                               a.Venue,
		Year:                                a.Year,
		OutboundCitationCount:               a.OutboundCitationCount,
		InboundCitationCount:                a.InboundCitationCount,
		S2AGInfluentialInboundCitationCount: a.S2AGInfluentialInboundCitationCount,
		IsOpenAccess:                        a.IsOpenAccess,
		OpenAccessPDFURL:                    a.OpenAccessPDFURL,
		FieldsOfStudy:                       a.FieldsOfStudy,
		PublicationVenue:                    a.PublicationVenue,
		PublicationTypes:                    a.PublicationTypes,
		PublicationDate:                     a.PublicationDate,
		Journal:                             a.Journal,
	}
	// the columns are NOT NULL with empty defaults
	if row.ExternalIDs == nil {
		row.ExternalIDs = map[string]string{}
	}
	if row.PublicationVenue == nil {
		row.PublicationVenue = map[string]any{}
	}
	if row.Journal == nil {
		row.Journal = map[string]any{}
	}
	if row.FieldsOfStudy == nil {
		row.FieldsOfStudy = []string{}
	}
	if row.PublicationTypes == nil {
		row.PublicationTypes = []string{}
	}
	return row
}

// Article converts the row back to a domain article
func (r *ArticleRow) Article() models.Article {
	return models.Article{
		DOI:                                 r.DOI,
		ExternalIDs:                         r.ExternalIDs,
		S2AGURL:                             r.S2AGURL,
		Title:                               r.Title,
		Abstract:                            r.Abstract,
		Venue:                               r.Venue,
		Year:                                r.Year,
		OutboundCitationCount:               r.OutboundCitationCount,
		InboundCitationCount:                r.InboundCitationCount,
		S2AGInfluentialInboundCitationCount: r.S2AGInfluentialInboundCitationCount,
		IsOpenAccess:                        r.IsOpenAccess,
		OpenAccessPDFURL:                    r.OpenAccessPDFURL,
		FieldsOfStudy:                       r.FieldsOfStudy,
		PublicationVenue:                    r.PublicationVenue,
		PublicationTypes:                    r.PublicationTypes,
		PublicationDate:                     r.PublicationDate,
		Journal:                             r.Journal,
	}
}
