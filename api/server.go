package api

import (
	"context"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/seo-optimizer/content-processor/config"
	"github.com/seo-optimizer/content-processor/fetch"
	"github.com/seo-optimizer/content-processor/logging"
	"github.com/seo-optimizer/content-processor/metrics"
	"github.com/seo-optimizer/content-processor/middleware"
	"github.com/seo-optimizer/content-processor/processor"
	"github.com/seo-optimizer/content-processor/stats"
)

// ArticleImporter loads an article from a URL
type ArticleImporter interface {
	Import(ctx context.Context, rawURL string) (fetch.Article, error)
}

// Deps are the services the HTTP server is built from. Only Config and
// Processor are required.
type Deps struct {
	Config    *config.Config
	Logger    *zap.Logger
	Processor *processor.Processor
	Stats     *stats.Storage
	Metrics   *metrics.Collector
	Importer  ArticleImporter
	Limiter   *middleware.RateLimiter
}

type Server struct {
	cfg       *config.Config
	logger    *zap.Logger
	processor *processor.Processor
	stats     *stats.Storage
	metrics   *metrics.Collector
	importer  ArticleImporter
	limiter   *middleware.RateLimiter
	now       func() time.Time
}

func NewServer(d Deps) *Server {
	s := &Server{
		cfg:       d.Config,
		logger:    d.Logger,
		processor: d.Processor,
		stats:     d.Stats,
		metrics:   d.Metrics,
		importer:  d.Importer,
		limiter:   d.Limiter,
		now:       time.Now,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.limiter == nil {
		rl := d.Config.RateLimit
		s.limiter = middleware.NewRateLimiter(rl.Requests, rl.Window, rl.MaxClients)
	}
	return s
}

var endpoints = []string{
	"POST /api/process - Process article content",
	"POST /api/process/url - Import and process an article from a URL",
	"GET /api/status - API status",
	"GET /api/statistics - Usage statistics",
}

// Router builds the gin engine with every route and middleware
func (s *Server) Router() *gin.Engine {
	r := gin.New()

	// stats and request logging must wrap ErrorHandler to see its 500s
	r.Use(middleware.RequestID())
	r.Use(logging.RequestLogger(s.logger))
	r.Use(middleware.StatsMiddleware(s.stats, s.metrics))
	r.Use(middleware.ErrorHandler(s.logger, s.cfg.IsProduction()))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(s.cfg.CORSOrigins))

	r.GET("/health", s.health)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := r.Group("/api")
	api.Use(s.limiter.RateLimit())
	{
		api.GET("/status", s.status)
		api.GET("/statistics", s.statistics)
		api.POST("/process", s.countValidationFailures, middleware.ValidateProcessRequest(), s.process)
		api.POST("/process/url", s.countValidationFailures, s.processURL)
	}

	r.NoRoute(s.noRoute)

	return r
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"timestamp":   s.timestamp(),
		"version":     config.Version,
		"environment": s.cfg.Env,
	})
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"version":   config.Version,
		"endpoints": endpoints,
		"timestamp": s.timestamp(),
	})
}

// statistics hides the detailed counters in production
func (s *Server) statistics(c *gin.Context) {
	summary := map[string]any{}
	if s.stats != nil {
		summary = s.stats.Summary(!s.cfg.IsProduction())
	}
	summary["timestamp"] = s.timestamp()
	c.JSON(http.StatusOK, summary)
}

// countValidationFailures records requests further down the chain that
// were rejected for breaking a validation rule
func (s *Server) countValidationFailures(c *gin.Context) {
	c.Next()

	if !middleware.ValidationFailed(c) {
		return
	}
	if s.stats != nil {
		s.stats.TrackValidationFailure()
	}
	if s.metrics != nil {
		s.metrics.ValidationFailures.Inc()
	}
}

// noRoute serves the single page app when a static dir is configured and
// answers JSON 404 otherwise. Unknown /api routes always get the JSON 404.
func (s *Server) noRoute(c *gin.Context) {
	method := c.Request.Method
	urlPath := c.Request.URL.Path
	if s.cfg.StaticDir == "" || (method != http.MethodGet && method != http.MethodHead) ||
		urlPath == "/api" || strings.HasPrefix(urlPath, "/api/") {
		middleware.NotFound()(c)
		return
	}

	clean := path.Clean("/" + urlPath)
	file := filepath.Join(s.cfg.StaticDir, filepath.FromSlash(clean))
	if info, err := os.Stat(file); err == nil && !info.IsDir() {
		c.File(file)
		return
	}

	index := filepath.Join(s.cfg.StaticDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		middleware.NotFound()(c)
		return
	}
	c.File(index)
}

func (s *Server) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}
