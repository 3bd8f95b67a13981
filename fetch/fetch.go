package fetch

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/seo-optimizer/content-processor/config"
	"github.com/seo-optimizer/content-processor/metrics"
	"github.com/seo-optimizer/content-processor/stats"
)

const userAgent = "SEOContentProcessor/1.0"

var (
	// ErrInvalidURL is returned for anything but an absolute http(s) URL
	ErrInvalidURL = errors.New("invalid article URL")
	// ErrUpstream wraps network failures and error statuses from the source
	ErrUpstream = errors.New("article source failed")
	// ErrUnavailable is returned while the circuit breaker rejects fetches
	ErrUnavailable = errors.New("article source temporarily unavailable")
	// ErrNoContent is returned when a page has no extractable text
	ErrNoContent = errors.New("no extractable content")
)

// Article is the readable part of an imported page
type Article struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Content   string    `json:"-"`
	Excerpt   string    `json:"excerpt,omitempty"`
	Byline    string    `json:"byline,omitempty"`
	SiteName  string    `json:"siteName,omitempty"`
	FetchedAt time.Time `json:"fetchedAt"`
}

type cacheEntry struct {
	article   Article
	timestamp time.Time
}

// Importer fetches pages, extracts their main article and caches the result
type Importer struct {
	client          *http.Client
	breaker         *gobreaker.CircuitBreaker
	cache           map[string]cacheEntry
	cacheMutex      sync.RWMutex
	cacheTTL        time.Duration
	maxCacheSize    int
	maxBytes        int64
	cleanupInterval time.Duration
	stats           *stats.Storage
	metrics         *metrics.Collector
	logger          *zap.Logger
	now             func() time.Time
	done            chan struct{}
	closeOnce       sync.Once
}

type Option func(*Importer)

func WithLogger(logger *zap.Logger) Option {
	return func(i *Importer) { i.logger = logger }
}

// WithStats records cache hits and misses in the usage statistics
func WithStats(storage *stats.Storage) Option {
	return func(i *Importer) { i.stats = storage }
}

// WithMetrics records import outcomes in the Prometheus collector
func WithMetrics(collector *metrics.Collector) Option {
	return func(i *Importer) { i.metrics = collector }
}

func WithMaxCacheSize(size int) Option {
	return func(i *Importer) { i.maxCacheSize = size }
}

func WithClock(now func() time.Time) Option {
	return func(i *Importer) { i.now = now }
}

// New creates an Importer and starts its cache cleanup goroutine. Close
// stops it.
func New(cfg config.FetchConfig, opts ...Option) *Importer {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	i := &Importer{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		cache:           make(map[string]cacheEntry),
		cacheTTL:        cfg.CacheTTL,
		maxCacheSize:    1000,
		maxBytes:        cfg.MaxBytes,
		cleanupInterval: 5 * time.Minute,
		logger:          zap.NewNop(),
		now:             time.Now,
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.maxBytes <= 0 {
		i.maxBytes = 5 << 20
	}

	i.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "article-fetch",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.8
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			i.logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			// only transport and upstream status errors count against the source
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrNoContent)
		},
	})

	go i.periodicCleanup()

	return i
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (i *Importer) Close() {
	i.closeOnce.Do(func() {
		close(i.done)
	})
}

func (i *Importer) periodicCleanup() {
	ticker := time.NewTicker(i.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			i.cleanup()
		case <-i.done:
			return
		}
	}
}

// cleanup removes expired entries and enforces the cache size limit
func (i *Importer) cleanup() {
	now := i.now()

	i.cacheMutex.Lock()
	defer i.cacheMutex.Unlock()

	for key, entry := range i.cache {
		if now.Sub(entry.timestamp) > i.cacheTTL {
			delete(i.cache, key)
		}
	}

	if len(i.cache) <= i.maxCacheSize {
		return
	}

	type keyed struct {
		key       string
		timestamp time.Time
	}
	entries := make([]keyed, 0, len(i.cache))
	for key, entry := range i.cache {
		entries = append(entries, keyed{key, entry.timestamp})
	}
	sort.Slice(entries, func(a, b int) bool {
		return entries[a].timestamp.Before(entries[b].timestamp)
	})
	for _, e := range entries[:len(entries)-i.maxCacheSize] {
		delete(i.cache, e.key)
	}
}

// CacheLen returns the number of cached articles, expired ones included
func (i *Importer) CacheLen() int {
	i.cacheMutex.RLock()
	defer i.cacheMutex.RUnlock()
	return len(i.cache)
}

func generateCacheKey(rawURL string) string {
	hash := md5.Sum([]byte(rawURL))
	return hex.EncodeToString(hash[:])
}

func (i *Importer) cached(key string) (Article, bool) {
	i.cacheMutex.RLock()
	defer i.cacheMutex.RUnlock()

	entry, found := i.cache[key]
	if found && i.now().Sub(entry.timestamp) < i.cacheTTL {
		return entry.article, true
	}
	return Article{}, false
}

func (i *Importer) recordCache(hit bool) {
	if i.stats != nil {
		i.stats.TrackImportCache(hit)
	}
	if i.metrics != nil {
		i.metrics.ObserveCache(hit)
	}
}

func (i *Importer) recordOutcome(err error, start time.Time) {
	if i.metrics == nil {
		return
	}
	result := "ok"
	switch {
	case errors.Is(err, ErrInvalidURL):
		result = "invalid_url"
	case errors.Is(err, ErrUnavailable):
		result = "unavailable"
	case errors.Is(err, ErrNoContent):
		result = "no_content"
	case err != nil:
		result = "upstream"
	}
	i.metrics.ObserveImport(result, i.now().Sub(start))
}

// ParseURL accepts only absolute http and https URLs
func ParseURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q is not an absolute http(s) URL", ErrInvalidURL, rawURL)
	}
	return u, nil
}

// Import returns the main article of the page at rawURL, from cache when a
// fresh copy exists
func (i *Importer) Import(ctx context.Context, rawURL string) (article Article, err error) {
	start := i.now()
	defer func() { i.recordOutcome(err, start) }()

	u, err := ParseURL(rawURL)
	if err != nil {
		return Article{}, err
	}

	key := generateCacheKey(u.String())
	if article, ok := i.cached(key); ok {
		i.recordCache(true)
		return article, nil
	}
	i.recordCache(false)

	result, err := i.breaker.Execute(func() (any, error) {
		return i.fetch(ctx, u)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Article{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return Article{}, err
	}
	body := result.([]byte)

	article, err = extract(body, u)
	if err != nil {
		return Article{}, err
	}
	article.FetchedAt = i.now()

	i.cacheMutex.Lock()
	i.cache[key] = cacheEntry{article: article, timestamp: article.FetchedAt}
	i.cacheMutex.Unlock()

	i.logger.Debug("article imported",
		zap.String("url", article.URL),
		zap.Int("contentLength", len(article.Content)),
	)

	return article, nil
}

// fetch downloads at most maxBytes of an HTML page
func (i *Importer) fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := i.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%w: %s returned %d", ErrUpstream, u, resp.StatusCode)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(resp.Body, i.maxBytes)); err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrUpstream, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "html") {
		return nil, fmt.Errorf("%w: %s serves %s", ErrNoContent, u, contentType)
	}

	return buf.Bytes(), nil
}

func normalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// extract finds the main article with readability and collects its
// paragraph text. Pages readability cannot handle fall back to the raw
// document.
func extract(body []byte, u *url.URL) (Article, error) {
	if len(body) == 0 {
		return Article{}, fmt.Errorf("%w: %s returned an empty page", ErrNoContent, u)
	}

	raw, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Article{}, fmt.Errorf("%w: %v", ErrNoContent, err)
	}

	article := Article{URL: u.String()}

	parser := readability.NewParser()
	parsed, err := parser.Parse(bytes.NewReader(body), u)
	if err == nil {
		article.Title = normalizeText(parsed.Title)
		article.Excerpt = normalizeText(parsed.Excerpt)
		article.Byline = normalizeText(parsed.Byline)
		article.SiteName = normalizeText(parsed.SiteName)

		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(parsed.Content)); err == nil {
			article.Content = paragraphText(doc.Selection)
		}
	}

	if article.Title == "" {
		article.Title = normalizeText(raw.Find("title").First().Text())
	}
	if article.Excerpt == "" {
		if desc, ok := raw.Find(`meta[name="description"]`).Attr("content"); ok {
			article.Excerpt = normalizeText(desc)
		}
	}
	if article.Content == "" {
		article.Content = paragraphText(raw.Find("body"))
	}

	if article.Content == "" {
		return Article{}, fmt.Errorf("%w: %s", ErrNoContent, u)
	}

	return article, nil
}

// paragraphText joins the paragraphs under s, or its whole text when there
// are none
func paragraphText(s *goquery.Selection) string {
	var paragraphs []string
	s.Find("p").Each(func(_ int, p *goquery.Selection) {
		if text := normalizeText(p.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	if len(paragraphs) > 0 {
		return strings.Join(paragraphs, "\n\n")
	}
	return normalizeText(s.Text())
}
