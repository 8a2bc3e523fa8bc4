// Package api exposes the reviewer JSON surface over the article store
// and the ingestion use cases.
package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ArticleDesk/internal/domain"
	"ArticleDesk/internal/infrastructure/gsheets"
	"ArticleDesk/internal/usecase"
)

// Store is the slice of the record store the API edits directly.
type Store interface {
	GetAll() []domain.Article
	GetActive() []domain.Article
	Get(id string) (domain.Article, bool)
	Update(ctx context.Context, id string, patch domain.ArticlePatch) (bool, error)
	SoftDelete(ctx context.Context, id string) (bool, error)
	HardDelete(ctx context.Context, id string) (bool, error)
	Purge(ctx context.Context, id string) (bool, error)
	ClearAll(ctx context.Context) error
	Preferences() domain.Preferences
	SetFontSize(size int) error
	BlockDomain(domain string) (bool, error)
	UnblockDomain(domain string) (bool, error)
}

// Reviewer runs the manual analysis operations.
type Reviewer interface {
	SubmitURL(ctx context.Context, url string) (domain.Article, error)
	SubmitText(ctx context.Context, text string) (domain.Article, error)
	Reanalyze(ctx context.Context, id string) (domain.Article, error)
	ReanalyzeText(ctx context.Context, id, text string) (domain.Article, error)
	Ask(ctx context.Context, id, question string) (domain.ChatTurn, error)
	GroupArticles(ctx context.Context) ([]usecase.ArticleGroup, error)
	PersonOverview(ctx context.Context, id, person string) (string, error)
}

// Syncer forces connector cycles.
type Syncer interface {
	Sync(ctx context.Context, name string, force bool) (usecase.CycleReport, error)
}

// SheetStats reports the last spreadsheet scan.
type SheetStats interface {
	LastStats() gsheets.Stats
}

// Deps wires the router. Syncer, Sheets and Metrics are optional.
type Deps struct {
	Store    Store
	Reviewer Reviewer
	Syncer   Syncer
	Sheets   SheetStats
	Metrics  http.Handler
	Logger   *slog.Logger
	// RequestTimeout bounds handlers that call remote services.
	RequestTimeout time.Duration
	// SyncTimeout bounds a forced sync; it should cover a whole cycle.
	SyncTimeout time.Duration
}

const (
	defaultRequestTimeout = 3 * time.Minute
	defaultSyncTimeout    = 16 * time.Minute
)

// NewRouter creates and configures the gin engine.
func NewRouter(deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.RequestTimeout <= 0 {
		deps.RequestTimeout = defaultRequestTimeout
	}
	if deps.SyncTimeout <= 0 {
		deps.SyncTimeout = defaultSyncTimeout
	}

	router := gin.New()
	router.Use(recoveryMiddleware(deps.Logger))
	router.Use(loggingMiddleware(deps.Logger))

	h := &handler{deps: deps}

	router.GET("/healthz", healthCheck)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	articles := router.Group("/articles")
	{
		articles.GET("", h.listArticles)
		articles.POST("", h.createArticle)
		articles.POST("/groups", h.groupArticles)
		articles.GET("/:id", h.getArticle)
		articles.PATCH("/:id", h.patchArticle)
		articles.DELETE("/:id", h.deleteArticle)
		articles.POST("/:id/reanalyze", h.reanalyze)
		articles.POST("/:id/ask", h.ask)
		articles.GET("/:id/people/:name", h.personOverview)
	}

	router.POST("/sync/:connector", h.sync)
	router.GET("/sheets/stats", h.sheetStats)

	prefs := router.Group("/preferences")
	{
		prefs.GET("", h.getPreferences)
		prefs.PUT("", h.putPreferences)
		prefs.POST("/blocked-domains", h.blockDomain)
		prefs.DELETE("/blocked-domains", h.unblockDomain)
	}

	router.POST("/admin/clear", h.clearAll)

	return router
}

type handler struct {
	deps Deps
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// remoteContext bounds handlers that reach the scraper, LLM or connectors.
func (h *handler) remoteContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.deps.RequestTimeout)
}

func recoveryMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic recovered", "error", rec, "path", c.Request.URL.Path)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}

func loggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelDebug
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}
		logger.Log(c.Request.Context(), level, "request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", time.Since(start))
	}
}
