package catalog

import "time"

// Base is a user's top-level catalog
type Base struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Owner        string    `json:"owner"`
	Extensions   []string  `json:"extensions"`
	ArticleCount int64     `json:"article_count"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	// Created is false when the base already existed
	Created bool `json:"-"`
}

// Extension is a named sub-catalog of a Base
type Extension struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Base    string `json:"base"`
	Created bool   `json:"-"`
}

// Coauthor is one neighbour on the co-authorship graph
type Coauthor struct {
	Name   string   `json:"name"`
	Weight int64    `json:"weight"`
	DOIs   []string `json:"coauthored_dois"`
}
