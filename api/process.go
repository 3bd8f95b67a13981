package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/seo-optimizer/content-processor/fetch"
	"github.com/seo-optimizer/content-processor/middleware"
	"github.com/seo-optimizer/content-processor/processor"
)

// ProcessResponse is the success envelope of both processing endpoints
type ProcessResponse struct {
	Success        bool             `json:"success"`
	Data           processor.Result `json:"data"`
	Source         *fetch.Article   `json:"source,omitempty"`
	ProcessingTime string           `json:"processingTime"`
	ProcessedAt    string           `json:"processedAt"`
}

type processURLRequest struct {
	URL string `json:"url"`
}

func (s *Server) process(c *gin.Context) {
	start := s.now()

	req, ok := middleware.GetProcessRequest(c)
	if !ok {
		middleware.AbortWithError(c, http.StatusInternalServerError, "An error occurred while processing your content", nil)
		return
	}

	s.respond(c, start, req, nil)
}

// processURL imports an article and runs it through the same validation
// and processing as a posted one
func (s *Server) processURL(c *gin.Context) {
	start := s.now()

	var body processURLRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, "Invalid JSON payload", nil)
		return
	}

	if s.importer == nil {
		middleware.AbortWithError(c, http.StatusServiceUnavailable, "URL import is not enabled", nil)
		return
	}

	article, err := s.importer.Import(c.Request.Context(), body.URL)
	if err != nil {
		s.abortImport(c, body.URL, err)
		return
	}

	content := middleware.TruncateAtWord(middleware.SanitizeInput(article.Content), middleware.ContentMaxLength)
	req, details := middleware.ValidateArticle(article.Title, content)
	if len(details) > 0 {
		middleware.AbortWithValidationError(c, http.StatusUnprocessableEntity, "Imported article failed validation", details)
		return
	}

	s.respond(c, start, req, &article)
}

func (s *Server) abortImport(c *gin.Context, rawURL string, err error) {
	s.logger.Warn("article import failed",
		zap.String("url", rawURL),
		zap.String("requestId", middleware.GetRequestID(c)),
		zap.Error(err),
	)

	var details any
	if !s.cfg.IsProduction() {
		details = err.Error()
	}

	switch {
	case errors.Is(err, fetch.ErrInvalidURL):
		middleware.AbortWithError(c, http.StatusBadRequest, "Validation failed",
			[]string{"URL must be an absolute http or https address"})
	case errors.Is(err, fetch.ErrNoContent):
		middleware.AbortWithError(c, http.StatusUnprocessableEntity, "No article content could be extracted from the page", details)
	case errors.Is(err, fetch.ErrUnavailable):
		middleware.AbortWithError(c, http.StatusServiceUnavailable, "Article source is temporarily unavailable", details)
	default:
		middleware.AbortWithError(c, http.StatusBadGateway, "Failed to fetch the article", details)
	}
}

func (s *Server) respond(c *gin.Context, start time.Time, req middleware.ProcessRequest, source *fetch.Article) {
	result := s.processor.Process(req.Title, req.Content)
	elapsed := s.now().Sub(start)

	if s.stats != nil {
		s.stats.TrackProcessed(elapsed, result.Scores.Overall)
	}
	if s.metrics != nil {
		s.metrics.ObserveScores(result.Scores.Title, result.Scores.Content, result.Scores.Overall)
		if processor.IsFallbackSlug(result.Slug) {
			s.metrics.SlugFallbacks.Inc()
		}
	}

	s.logger.Info("content processed",
		zap.Int("titleLength", utf8.RuneCountInString(req.Title)),
		zap.Int("contentLength", utf8.RuneCountInString(req.Content)),
		zap.String("slug", result.Slug),
		zap.Int("overallScore", result.Scores.Overall),
		zap.String("requestId", middleware.GetRequestID(c)),
	)

	c.JSON(http.StatusOK, ProcessResponse{
		Success:        true,
		Data:           result,
		Source:         source,
		ProcessingTime: fmt.Sprintf("%dms", elapsed.Milliseconds()),
		ProcessedAt:    s.timestamp(),
	})
}
