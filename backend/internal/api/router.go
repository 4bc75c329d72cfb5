package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"sonar/backend/internal/metrics"
)

// RouterOptions holds what NewRouter wires together
type RouterOptions struct {
	Catalog CatalogService
	// Mirror is optional
	Mirror     Mirror
	Metrics    *metrics.Collector
	Logger     *zap.Logger
	Production bool
}

// NewRouter builds the gin engine with middleware, health, metrics and catalog routes
func NewRouter(opts RouterOptions) *gin.Engine {
	if opts.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())
	router.Use(cors())
	if opts.Metrics != nil {
		router.Use(opts.Metrics.GinMiddleware())
		router.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h := NewHandler(opts.Catalog, opts.Mirror)

	api := router.Group("/api")
	{
		catalogs := api.Group("/users/:username/catalogs")
		catalogs.GET("", h.listBases)
		catalogs.POST("", h.createBase)
		catalogs.HEAD("/:base", h.headBase)
		catalogs.DELETE("/:base", h.deleteBase)
		catalogs.GET("/:base/identifiers", h.getBaseIdentifiers)

		catalogs.GET("/:base/articles", h.getBaseArticles)
		catalogs.POST("/:base/articles", h.addArticleToBase)
		catalogs.GET("/:base/articles/contains", h.articleInBase)
		catalogs.DELETE("/:base/articles/*doi", h.removeArticleFromBase)

		catalogs.POST("/:base/extensions", h.createExtension)
		catalogs.HEAD("/:base/extensions/:ext", h.headExtension)
		catalogs.DELETE("/:base/extensions/:ext", h.deleteExtension)
		catalogs.GET("/:base/extensions/:ext/articles", h.getExtensionArticles)
		catalogs.POST("/:base/extensions/:ext/articles", h.addArticleToExtension)
		catalogs.DELETE("/:base/extensions/:ext/articles/*doi", h.removeArticleFromExtension)

		api.POST("/articles/lookup", h.lookupArticles)
		api.POST("/authors/lookup", h.lookupAuthors)
		api.GET("/authors/:name/coauthors", h.getCoauthors)
	}

	return router
}
