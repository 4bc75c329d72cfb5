package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"sonar/backend/internal/catalog"
	"sonar/backend/internal/constants"
	"sonar/backend/internal/models"
	"sonar/backend/internal/store"
	apperrors "sonar/backend/pkg/errors"
	"sonar/backend/pkg/logger"
)

// CatalogService is the graph-side catalog used by the handlers
type CatalogService interface {
	ListBases(ctx context.Context, username string) ([]catalog.Base, error)
	CreateBaseNode(ctx context.Context, username, baseName string) (catalog.Base, error)
	DeleteBaseNode(ctx context.Context, username, baseName string) error
	CreateExtensionNode(ctx context.Context, username, baseName, extensionName string) (catalog.Extension, error)
	DeleteExtensionNode(ctx context.Context, username, baseName, extensionName string) error
	CreateArticleNode(ctx context.Context, article models.Article, authors []models.Author, inboundCitationDOIs, outboundCitationDOIs []string) error
	CreateAuthorNode(ctx context.Context, author models.Author) error
	AddArticleToBase(ctx context.Context, username, baseName, doi string) error
	AddArticleToExtension(ctx context.Context, username, baseName, extensionName, doi string) error
	RemoveArticleFromBase(ctx context.Context, username, baseName, doi string) (bool, error)
	RemoveArticleFromExtension(ctx context.Context, username, baseName, extensionName, doi string) (bool, error)
	GetBaseArticles(ctx context.Context, username, baseName string) ([]models.Article, error)
	GetExtensionArticles(ctx context.Context, username, baseName, extensionName string) ([]models.Article, error)
	ArticleInBase(ctx context.Context, username, baseName, doi string) (bool, error)
	GetCoauthors(ctx context.Context, authorName string) ([]catalog.Coauthor, error)
	GetExistingArticles(ctx context.Context, dois []string) ([]models.Article, error)
	GetExistingAuthors(ctx context.Context, names []string) ([]models.Author, error)
	BaseExists(ctx context.Context, username, baseName string) (bool, error)
	ExtensionExists(ctx context.Context, username, baseName, extensionName string) (bool, error)
}

// Mirror is the relational copy of the catalog, written after the graph
type Mirror interface {
	CreateBase(ctx context.Context, id, owner, name string) (*store.CatalogBase, bool, error)
	DeleteBase(ctx context.Context, owner, name string) (bool, error)
	CreateExtension(ctx context.Context, id, owner, baseName, name string) (*store.CatalogExtension, bool, error)
	DeleteExtension(ctx context.Context, owner, baseName, name string) (bool, error)
	AddIdentifierToBase(ctx context.Context, owner, baseName, doi string) error
	RemoveIdentifierFromBase(ctx context.Context, owner, baseName, doi string) (bool, error)
	AddIdentifierToExtension(ctx context.Context, owner, baseName, extensionName, doi string) error
	RemoveIdentifierFromExtension(ctx context.Context, owner, baseName, extensionName, doi string) (bool, error)
	UpsertArticles(ctx context.Context, articles []models.Article) (int64, error)
	BaseIdentifiers(ctx context.Context, owner, baseName string) ([]string, error)
}

// Handler serves the catalog routes
type Handler struct {
	catalog CatalogService
	mirror  Mirror
	logger  *zap.Logger
}

// NewHandler creates a handler. mirror may be nil when no relational store is configured.
func NewHandler(svc CatalogService, mirror Mirror) *Handler {
	return &Handler{
		catalog: svc,
		mirror:  mirror,
		logger:  logger.Named("api"),
	}
}

type createBaseRequest struct {
	Name string `json:"name" binding:"required"`
}

type createExtensionRequest struct {
	Name string `json:"name" binding:"required"`
}

type lookupArticlesRequest struct {
	DOIs []string `json:"dois" binding:"required"`
}

type lookupAuthorsRequest struct {
	Names []string `json:"names" binding:"required"`
}

// addArticleRequest either names an existing article by DOI or carries a full
// article to create first.
type addArticleRequest struct {
	DOI                  string          `json:"doi"`
	Article              *models.Article `json:"article"`
	Authors              []models.Author `json:"authors"`
	InboundCitationDOIs  []string        `json:"inbound_citation_dois"`
	OutboundCitationDOIs []string        `json:"outbound_citation_dois"`
}

func (h *Handler) listBases(c *gin.Context) {
	bases, err := h.catalog.ListBases(c.Request.Context(), c.Param("username"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bases": bases})
}

func (h *Handler) createBase(c *gin.Context) {
	var req createBaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	username := c.Param("username")

	base, err := h.catalog.CreateBaseNode(ctx, username, req.Name)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if !base.Created {
		abortWithError(c, apperrors.NewCatalogBaseExists(username, req.Name))
		return
	}

	if h.mirror != nil {
		if _, _, err := h.mirror.CreateBase(ctx, base.ID, username, req.Name); err != nil {
			h.mirrorFailed("create base", err)
		}
	}
	c.JSON(http.StatusCreated, base)
}

func (h *Handler) deleteBase(c *gin.Context) {
	ctx := c.Request.Context()
	username, baseName := c.Param("username"), c.Param("base")

	if err := h.catalog.DeleteBaseNode(ctx, username, baseName); err != nil {
		abortWithError(c, err)
		return
	}
	if h.mirror != nil {
		if _, err := h.mirror.DeleteBase(ctx, username, baseName); err != nil {
			h.mirrorFailed("delete base", err)
		}
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) createExtension(c *gin.Context) {
	var req createExtensionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	username, baseName := c.Param("username"), c.Param("base")

	ext, err := h.catalog.CreateExtensionNode(ctx, username, baseName, req.Name)
	if err != nil {
		abortWithError(c, err)
		return
	}

	if h.mirror != nil && ext.Created {
		if _, _, err := h.mirror.CreateExtension(ctx, ext.ID, username, baseName, req.Name); err != nil {
			h.mirrorFailed("create extension", err)
		}
	}

	status := http.StatusCreated
	if !ext.Created {
		status = http.StatusOK
	}
	c.JSON(status, ext)
}

func (h *Handler) deleteExtension(c *gin.Context) {
	ctx := c.Request.Context()
	username, baseName, extName := c.Param("username"), c.Param("base"), c.Param("ext")

	if err := h.catalog.DeleteExtensionNode(ctx, username, baseName, extName); err != nil {
		abortWithError(c, err)
		return
	}
	if h.mirror != nil {
		if _, err := h.mirror.DeleteExtension(ctx, username, baseName, extName); err != nil {
			h.mirrorFailed("delete extension", err)
		}
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) getBaseArticles(c *gin.Context) {
	articles, err := h.catalog.GetBaseArticles(c.Request.Context(), c.Param("username"), c.Param("base"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"articles": articles})
}

func (h *Handler) getExtensionArticles(c *gin.Context) {
	articles, err := h.catalog.GetExtensionArticles(c.Request.Context(), c.Param("username"), c.Param("base"), c.Param("ext"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"articles": articles})
}

func (h *Handler) addArticleToBase(c *gin.Context) {
	ctx := c.Request.Context()
	username, baseName := c.Param("username"), c.Param("base")

	found, err := h.catalog.BaseExists(ctx, username, baseName)
	if !h.requireContainer(c, found, err, apperrors.NewCatalogBaseNotFound(username, baseName)) {
		return
	}
	doi, ok := h.prepareArticle(c)
	if !ok {
		return
	}
	if err := h.catalog.AddArticleToBase(ctx, username, baseName, doi); err != nil {
		abortWithError(c, err)
		return
	}
	if h.mirror != nil {
		if err := h.mirror.AddIdentifierToBase(ctx, username, baseName, doi); err != nil {
			h.mirrorFailed("add article to base", err)
		}
	}
	c.JSON(http.StatusCreated, gin.H{"doi": doi, "base": baseName})
}

func (h *Handler) addArticleToExtension(c *gin.Context) {
	ctx := c.Request.Context()
	username, baseName, extName := c.Param("username"), c.Param("base"), c.Param("ext")

	found, err := h.catalog.ExtensionExists(ctx, username, baseName, extName)
	if !h.requireContainer(c, found, err, apperrors.NewCatalogExtensionNotFound(baseName, extName)) {
		return
	}
	doi, ok := h.prepareArticle(c)
	if !ok {
		return
	}
	if err := h.catalog.AddArticleToExtension(ctx, username, baseName, extName, doi); err != nil {
		abortWithError(c, err)
		return
	}
	if h.mirror != nil {
		if err := h.mirror.AddIdentifierToExtension(ctx, username, baseName, extName, doi); err != nil {
			h.mirrorFailed("add article to extension", err)
		}
	}
	c.JSON(http.StatusCreated, gin.H{"doi": doi, "base": baseName, "extension": extName})
}

func (h *Handler) removeArticleFromBase(c *gin.Context) {
	ctx := c.Request.Context()
	username, baseName := c.Param("username"), c.Param("base")
	doi := models.NormalizeDOI(strings.TrimPrefix(c.Param("doi"), "/"))

	removed, err := h.catalog.RemoveArticleFromBase(ctx, username, baseName, doi)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if !removed {
		abortWithError(c, apperrors.NewArticleNotFound(doi))
		return
	}
	if h.mirror != nil {
		if _, err := h.mirror.RemoveIdentifierFromBase(ctx, username, baseName, doi); err != nil {
			h.mirrorFailed("remove article from base", err)
		}
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) removeArticleFromExtension(c *gin.Context) {
	ctx := c.Request.Context()
	username, baseName, extName := c.Param("username"), c.Param("base"), c.Param("ext")
	doi := models.NormalizeDOI(strings.TrimPrefix(c.Param("doi"), "/"))

	removed, err := h.catalog.RemoveArticleFromExtension(ctx, username, baseName, extName, doi)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if !removed {
		abortWithError(c, apperrors.NewArticleNotFound(doi))
		return
	}
	if h.mirror != nil {
		if _, err := h.mirror.RemoveIdentifierFromExtension(ctx, username, baseName, extName, doi); err != nil {
			h.mirrorFailed("remove article from extension", err)
		}
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) articleInBase(c *gin.Context) {
	doi := c.Query("doi")
	if strings.TrimSpace(doi) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "doi query parameter is required"})
		return
	}

	found, err := h.catalog.ArticleInBase(c.Request.Context(), c.Param("username"), c.Param("base"), doi)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"doi": models.NormalizeDOI(doi), "contains": found})
}

func (h *Handler) headBase(c *gin.Context) {
	found, err := h.catalog.BaseExists(c.Request.Context(), c.Param("username"), c.Param("base"))
	existenceStatus(c, found, err)
}

func (h *Handler) headExtension(c *gin.Context) {
	found, err := h.catalog.ExtensionExists(c.Request.Context(), c.Param("username"), c.Param("base"), c.Param("ext"))
	existenceStatus(c, found, err)
}

func existenceStatus(c *gin.Context, found bool, err error) {
	switch {
	case err != nil:
		c.Status(statusFor(err))
	case found:
		c.Status(http.StatusOK)
	default:
		c.Status(http.StatusNotFound)
	}
}

// getBaseIdentifiers reads the base's DOIs from the relational mirror
func (h *Handler) getBaseIdentifiers(c *gin.Context) {
	if h.mirror == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "relational store is not configured"})
		return
	}
	dois, err := h.mirror.BaseIdentifiers(c.Request.Context(), c.Param("username"), c.Param("base"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"identifiers": dois})
}

func (h *Handler) getCoauthors(c *gin.Context) {
	coauthors, err := h.catalog.GetCoauthors(c.Request.Context(), c.Param("name"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"author": c.Param("name"), "coauthors": coauthors})
}

func (h *Handler) lookupArticles(c *gin.Context) {
	var req lookupArticlesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.DOIs) > constants.MaxLookupKeys {
		abortWithError(c, apperrors.NewInvalidArgument("dois", fmt.Sprintf("at most %d per request", constants.MaxLookupKeys)))
		return
	}

	articles, err := h.catalog.GetExistingArticles(c.Request.Context(), req.DOIs)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"articles": articles})
}

func (h *Handler) lookupAuthors(c *gin.Context) {
	var req lookupAuthorsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Names) > constants.MaxLookupKeys {
		abortWithError(c, apperrors.NewInvalidArgument("names", fmt.Sprintf("at most %d per request", constants.MaxLookupKeys)))
		return
	}

	authors, err := h.catalog.GetExistingAuthors(c.Request.Context(), req.Names)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"authors": authors})
}

// requireContainer aborts unless the target base or extension exists, so that
// no article is written for a request that cannot succeed.
func (h *Handler) requireContainer(c *gin.Context, found bool, err error, missing error) bool {
	if err != nil {
		abortWithError(c, err)
		return false
	}
	if !found {
		abortWithError(c, missing)
		return false
	}
	return true
}

// prepareArticle binds an addArticleRequest and, when it carries a full
// article, creates its authors and the article node. It returns the DOI to
// link, or false after writing an error response.
func (h *Handler) prepareArticle(c *gin.Context) (string, bool) {
	var req addArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	ctx := c.Request.Context()

	if req.Article == nil {
		doi := models.NormalizeDOI(req.DOI)
		if doi == "" {
			abortWithError(c, apperrors.NewInvalidArgument("doi", "either doi or article is required"))
			return "", false
		}
		return doi, true
	}

	if err := models.Validate(req.Article); err != nil {
		abortWithError(c, err)
		return "", false
	}
	for _, author := range req.Authors {
		if strings.TrimSpace(author.Name) == "" {
			continue
		}
		if err := h.catalog.CreateAuthorNode(ctx, author); err != nil {
			abortWithError(c, err)
			return "", false
		}
	}
	if err := h.catalog.CreateArticleNode(ctx, *req.Article, req.Authors, req.InboundCitationDOIs, req.OutboundCitationDOIs); err != nil {
		abortWithError(c, err)
		return "", false
	}
	if h.mirror != nil {
		if _, err := h.mirror.UpsertArticles(ctx, []models.Article{*req.Article}); err != nil {
			h.mirrorFailed("upsert article", err)
		}
	}
	return models.NormalizeDOI(req.Article.DOI), true
}

// mirrorFailed logs a relational write that failed after the graph write
// succeeded. The graph stays authoritative.
func (h *Handler) mirrorFailed(op string, err error) {
	h.logger.Warn("Relational mirror write failed", zap.String("op", op), zap.Error(err))
}
