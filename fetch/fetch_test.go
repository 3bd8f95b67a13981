package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seo-optimizer/content-processor/config"
	"github.com/seo-optimizer/content-processor/metrics"
	"github.com/seo-optimizer/content-processor/stats"
)

const articlePage = `<!DOCTYPE html>
<html>
<head>
  <title>Growing Tomatoes at Home</title>
  <meta name="description" content="A practical guide to growing tomatoes in small gardens.">
</head>
<body>
  <nav><a href="/">Home</a> <a href="/about">About</a></nav>
  <article>
    <h1>Growing Tomatoes at Home</h1>
    <p>Tomatoes are one of the most rewarding plants for a home gardener. They grow quickly, respond well to care, and produce fruit for months when the weather stays warm.</p>
    <p>Start seeds indoors six to eight weeks before the last frost. Use a light seed mix, keep the soil moist, and give the seedlings plenty of light so they grow strong stems.</p>
    <p>Transplant the seedlings once nights stay above ten degrees. Bury the stems deeply because tomatoes root along the buried part, which makes the plants sturdier through the season.</p>
    <p>Water deeply and regularly, mulch to keep moisture in the soil, and stake or cage the plants before they sprawl. Harvest the fruit as soon as it colors for the best flavor.</p>
  </article>
  <footer>Copyright Garden Notes</footer>
</body>
</html>`

func testConfig() config.FetchConfig {
	return config.FetchConfig{
		Timeout:  5 * time.Second,
		CacheTTL: time.Minute,
		MaxBytes: 1 << 20,
	}
}

func newServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func servePage(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, body)
	}
}

func TestImport(t *testing.T) {
	srv, _ := newServer(t, servePage(articlePage))

	importer := New(testConfig())
	defer importer.Close()

	article, err := importer.Import(context.Background(), srv.URL+"/tomatoes")
	require.NoError(t, err)

	assert.Equal(t, srv.URL+"/tomatoes", article.URL)
	assert.Equal(t, "Growing Tomatoes at Home", article.Title)
	assert.Contains(t, article.Content, "Tomatoes are one of the most rewarding plants")
	assert.Contains(t, article.Content, "Harvest the fruit as soon as it colors")
	assert.NotContains(t, article.Content, "Copyright Garden Notes")
	assert.False(t, article.FetchedAt.IsZero())
}

func TestImportCache(t *testing.T) {
	srv, hits := newServer(t, servePage(articlePage))

	storage, err := stats.NewStorage(t.TempDir())
	require.NoError(t, err)
	defer storage.Shutdown()
	collector := metrics.NewCollector("test")

	now := time.Unix(1700000000, 0)
	importer := New(testConfig(),
		WithStats(storage),
		WithMetrics(collector),
		WithClock(func() time.Time { return now }),
	)
	defer importer.Close()

	first, err := importer.Import(context.Background(), srv.URL)
	require.NoError(t, err)
	second, err := importer.Import(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), hits.Load())

	current := storage.GetCurrentStats()
	assert.Equal(t, 1, current.ImportCacheHits)
	assert.Equal(t, 1, current.ImportCacheMisses)
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.CacheHits))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.Imports.WithLabelValues("ok")))

	now = now.Add(2 * time.Minute)
	_, err = importer.Import(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load(), "expired entries are fetched again")
}

func TestCleanup(t *testing.T) {
	srv, _ := newServer(t, servePage(articlePage))

	now := time.Unix(1700000000, 0)
	importer := New(testConfig(),
		WithMaxCacheSize(2),
		WithClock(func() time.Time { return now }),
	)
	defer importer.Close()

	for _, path := range []string{"/a", "/b", "/c"} {
		_, err := importer.Import(context.Background(), srv.URL+path)
		require.NoError(t, err)
		now = now.Add(time.Second)
	}
	require.Equal(t, 3, importer.CacheLen())

	importer.cleanup()
	assert.Equal(t, 2, importer.CacheLen())

	now = now.Add(time.Hour)
	importer.cleanup()
	assert.Equal(t, 0, importer.CacheLen())
}

func TestImportErrors(t *testing.T) {
	t.Run("invalid url", func(t *testing.T) {
		importer := New(testConfig())
		defer importer.Close()

		for _, raw := range []string{"", "example.com/page", "ftp://example.com/file", "http://"} {
			_, err := importer.Import(context.Background(), raw)
			assert.ErrorIs(t, err, ErrInvalidURL, raw)
		}
	})

	t.Run("error status", func(t *testing.T) {
		srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		})
		importer := New(testConfig())
		defer importer.Close()

		_, err := importer.Import(context.Background(), srv.URL)
		assert.ErrorIs(t, err, ErrUpstream)
	})

	t.Run("not html", func(t *testing.T) {
		srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"title":"json"}`)
		})
		importer := New(testConfig())
		defer importer.Close()

		_, err := importer.Import(context.Background(), srv.URL)
		assert.ErrorIs(t, err, ErrNoContent)
	})

	t.Run("empty page", func(t *testing.T) {
		srv, _ := newServer(t, servePage(`<html><head><title>Empty</title></head><body></body></html>`))
		importer := New(testConfig())
		defer importer.Close()

		_, err := importer.Import(context.Background(), srv.URL)
		assert.ErrorIs(t, err, ErrNoContent)
	})

	t.Run("cancelled context", func(t *testing.T) {
		srv, _ := newServer(t, servePage(articlePage))
		importer := New(testConfig())
		defer importer.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := importer.Import(ctx, srv.URL)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestCircuitBreakerOpens(t *testing.T) {
	srv, hits := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	importer := New(testConfig())
	defer importer.Close()

	for n := 0; n < 5; n++ {
		_, err := importer.Import(context.Background(), fmt.Sprintf("%s/%d", srv.URL, n))
		require.ErrorIs(t, err, ErrUpstream)
	}

	_, err := importer.Import(context.Background(), srv.URL+"/next")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(5), hits.Load(), "open breaker does not reach the source")
}

func TestNonHTMLKeepsBreakerClosed(t *testing.T) {
	srv, hits := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"title":"json"}`)
	})

	importer := New(testConfig())
	defer importer.Close()

	for n := 0; n < 6; n++ {
		_, err := importer.Import(context.Background(), fmt.Sprintf("%s/%d", srv.URL, n))
		require.ErrorIs(t, err, ErrNoContent)
		require.NotErrorIs(t, err, ErrUnavailable)
	}
	assert.Equal(t, int32(6), hits.Load())
}

func TestCloseIsIdempotent(t *testing.T) {
	importer := New(testConfig())
	importer.Close()
	assert.NotPanics(t, importer.Close)
}
