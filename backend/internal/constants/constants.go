package constants

// Import constants
const (
	// DefaultBatchSize is the number of rows sent per write transaction
	DefaultBatchSize = 500
)

// Entity kinds used in import results, logs and metrics
const (
	KindArticle      = "article"
	KindAuthor       = "author"
	KindCitation     = "citation"
	KindAuthorship   = "authorship"
	KindCoauthorship = "coauthorship"
)

// HTTP
const (
	// MaxLookupKeys caps the number of DOIs or names accepted in one bulk lookup
	MaxLookupKeys = 1000
)
