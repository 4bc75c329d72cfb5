package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Article is a scholarly article keyed by DOI
type Article struct {
	DOI                                 string            `json:"doi" validate:"required"`
	ExternalIDs                         map[string]string `json:"external_ids,omitempty"`
	S2AGURL                             string            `json:"s2ag_url,omitempty"`
	Title                               string            `json:"title"`
	Abstract                            string            `json:"abstract,omitempty"`
	Venue                               string            `json:"venue,omitempty"`
	Year                                int64             `json:"year,omitempty"`
	OutboundCitationCount               int64             `json:"outbound_citation_count"`
	InboundCitationCount                int64             `json:"inbound_citation_count"`
	S2AGInfluentialInboundCitationCount int64             `json:"s2ag_influential_inbound_citation_count"`
	IsOpenAccess                        bool              `json:"is_open_access"`
	OpenAccessPDFURL                    string            `json:"open_access_pdf_url,omitempty"`
	FieldsOfStudy                       []string          `json:"fields_of_study,omitempty"`
	PublicationVenue                    map[string]any    `json:"publication_venue,omitempty"`
	PublicationTypes                    []string          `json:"publication_types,omitempty"`
	PublicationDate                     string            `json:"publication_date,omitempty"`
	Journal                             map[string]any    `json:"journal,omitempty"`
}

// Author is an article author keyed by name
type Author struct {
	Name          string   `json:"name" validate:"required"`
	S2AGURL       string   `json:"s2ag_url,omitempty"`
	Aliases       []string `json:"aliases,omitempty"`
	Affiliations  []string `json:"affiliations,omitempty"`
	Homepage      string   `json:"homepage,omitempty"`
	PaperCount    int64    `json:"paper_count"`
	CitationCount int64    `json:"citation_count"`
	HIndex        int64    `json:"h_index"`
}

// Citation is a directed CITES edge between two DOIs
type Citation struct {
	Citer string `json:"citer" validate:"required"`
	Citee string `json:"citee" validate:"required"`
}

// Authorship links an author name to an article DOI
type Authorship struct {
	Author  string `json:"author" validate:"required"`
	Article string `json:"article" validate:"required"`
}

// Coauthorship is a weighted edge between two authors who share articles
type Coauthorship struct {
	AuthorA string   `json:"author_a"`
	AuthorB string   `json:"author_b"`
	Weight  int64    `json:"weight"`
	DOIs    []string `json:"coauthored_dois"`
}

// NormalizeDOI lowercases a DOI and strips resolver prefixes so that the same
// article always maps to the same node.
func NormalizeDOI(doi string) string {
	d := strings.TrimSpace(doi)
	lower := strings.ToLower(d)
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/", "doi:"} {
		if strings.HasPrefix(lower, prefix) {
			lower = lower[len(prefix):]
			break
		}
	}
	return lower
}

// Properties returns the article as a graph property map.
// Nested objects are stored as JSON strings since graph properties cannot be maps.
func (a Article) Properties() map[string]any {
	return map[string]any{
		"doi":                                    NormalizeDOI(a.DOI),
		"external_ids":                           encodeJSON(a.ExternalIDs),
		"s2ag_url":                               a.S2AGURL,
		"title":                                  a.Title,
		"abstract":                               a.Abstract,
		"venue":                                  a.Venue,
		"year":                                   a.Year,
		"outbound_citation_count":                a.OutboundCitationCount,
		"inbound_citation_count":                 a.InboundCitationCount,
		"s2ag_influential_inbound_citation_count": a.S2AGInfluentialInboundCitationCount,
		"is_open_access":                         a.IsOpenAccess,
		"open_access_pdf_url":                    a.OpenAccessPDFURL,
		"fields_of_study":                        nonNil(a.FieldsOfStudy),
		"publication_venue":                      encodeJSON(a.PublicationVenue),
		"publication_types":                      nonNil(a.PublicationTypes),
		"publication_date":                       a.PublicationDate,
		"journal":                                encodeJSON(a.Journal),
	}
}

// ArticleFromProps maps graph node properties back to an Article
func ArticleFromProps(props map[string]any) (Article, error) {
	a := Article{
		DOI:                                 str(props, "doi"),
		S2AGURL:                             str(props, "s2ag_url"),
		Title:                               str(props, "title"),
		Abstract:                            str(props, "abstract"),
		Venue:                               str(props, "venue"),
		Year:                                i64(props, "year"),
		OutboundCitationCount:               i64(props, "outbound_citation_count"),
		InboundCitationCount:                i64(props, "inbound_citation_count"),
		S2AGInfluentialInboundCitationCount: i64(props, "s2ag_influential_inbound_citation_count"),
		IsOpenAccess:                        boolean(props, "is_open_access"),
		OpenAccessPDFURL:                    str(props, "open_access_pdf_url"),
		FieldsOfStudy:                       strs(props, "fields_of_study"),
		PublicationTypes:                    strs(props, "publication_types"),
		PublicationDate:                     str(props, "publication_date"),
	}
	if a.DOI == "" {
		return Article{}, fmt.Errorf("article node has no doi")
	}
	if err := decodeJSON(str(props, "external_ids"), &a.ExternalIDs); err != nil {
		return Article{}, fmt.Errorf("article %s external_ids: %w", a.DOI, err)
	}
	if err := decodeJSON(str(props, "publication_venue"), &a.PublicationVenue); err != nil {
		return Article{}, fmt.Errorf("article %s publication_venue: %w", a.DOI, err)
	}
	if err := decodeJSON(str(props, "journal"), &a.Journal); err != nil {
		return Article{}, fmt.Errorf("article %s journal: %w", a.DOI, err)
	}
	return a, nil
}

// Properties returns the author as a graph property map
func (a Author) Properties() map[string]any {
	return map[string]any{
		"name":           strings.TrimSpace(a.Name),
		"s2ag_url":       a.S2AGURL,
		"aliases":        nonNil(a.Aliases),
		"affiliations":   nonNil(a.Affiliations),
		"homepage":       a.Homepage,
		"paper_count":    a.PaperCount,
		"citation_count": a.CitationCount,
		"h_index":        a.HIndex,
	}
}

// AuthorFromProps maps graph node properties back to an Author
func AuthorFromProps(props map[string]any) (Author, error) {
	a := Author{
		Name:          str(props, "name"),
		S2AGURL:       str(props, "s2ag_url"),
		Aliases:       strs(props, "aliases"),
		Affiliations:  strs(props, "affiliations"),
		Homepage:      str(props, "homepage"),
		PaperCount:    i64(props, "paper_count"),
		CitationCount: i64(props, "citation_count"),
		HIndex:        i64(props, "h_index"),
	}
	if a.Name == "" {
		return Author{}, fmt.Errorf("author node has no name")
	}
	return a, nil
}

// AuthorNames returns the names of the given authors in order
func AuthorNames(authors []Author) []string {
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		if n := strings.TrimSpace(a.Name); n != "" {
			names = append(names, n)
		}
	}
	return names
}

func encodeJSON(v any) string {
	switch m := v.(type) {
	case map[string]string:
		if len(m) == 0 {
			return ""
		}
	case map[string]any:
		if len(m) == 0 {
			return ""
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func decodeJSON(s string, dst any) error {
	if s == "" {
		return nil
	}
	return json.Unmarshal([]byte(s), dst)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func str(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func i64(m map[string]any, key string) int64 {
	switch v := m[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func boolean(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func strs(m map[string]any, key string) []string {
	switch v := m[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
