package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seo-optimizer/content-processor/processor"
)

const content = "Starting a garden can feel overwhelming at first. Choose a sunny spot with good drainage. " +
	"Test your soil before planting anything. Begin with easy crops like lettuce and radishes."

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"seoctl"}, args...))
	return out.String(), err
}

func TestSlugCommand(t *testing.T) {
	out, err := run(t, "slug", "The", "Ultimate", "Guide")
	require.NoError(t, err)
	assert.Equal(t, "ultimate-guide\n", out)

	_, err = run(t, "slug")
	assert.Error(t, err)
}

func TestProcessCommand(t *testing.T) {
	out, err := run(t, "process", "--title", "10 Best Tips for Beginner Gardeners", "--content", content)
	require.NoError(t, err)

	var result processor.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "10-best-tips-beginner-gardeners", result.Slug)
	assert.NotNil(t, result.Recommendations)
}

func TestProcessCommandFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "article.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	out, err := run(t, "process", "--title", "Garden basics", "--file", path, "--pretty")
	require.NoError(t, err)
	assert.Contains(t, out, "\n  \"slug\": \"garden-basics\"")
}

func TestProcessCommandErrors(t *testing.T) {
	_, err := run(t, "process", "--title", "Garden basics")
	assert.ErrorContains(t, err, "one of --content or --file is required")

	_, err = run(t, "process", "--title", "Garden basics", "--content", content, "--file", "x.txt")
	assert.ErrorContains(t, err, "not both")

	_, err = run(t, "process", "--title", "ab", "--content", "short")
	assert.ErrorContains(t, err, "Title must be at least 3 characters long")
}

func TestImportCommand(t *testing.T) {
	page := fmt.Sprintf(`<html><head><title>Garden Basics for Everyone</title></head>
<body><article><p>%s</p><p>%s</p><p>%s</p></article></body></html>`, content, content, content)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, page)
	}))
	defer srv.Close()

	out, err := run(t, "import", "--url", srv.URL)
	require.NoError(t, err)

	var got struct {
		Source struct {
			URL   string `json:"url"`
			Title string `json:"title"`
		} `json:"source"`
		Data processor.Result `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, srv.URL, got.Source.URL)
	assert.True(t, strings.HasPrefix(got.Data.Slug, "garden-basics"))

	_, err = run(t, "import", "--url", "not-a-url")
	assert.ErrorContains(t, err, "import failed")
}

func TestImportCommandTruncatesAtWord(t *testing.T) {
	page := fmt.Sprintf(`<html><head><title>Growing Tomatoes at Home</title></head>
<body><article><p>%s</p></article></body></html>`, strings.Repeat("Tomatoes need sun and water. ", 600))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, page)
	}))
	defer srv.Close()

	out, err := run(t, "import", "--url", srv.URL)
	require.NoError(t, err)

	var got struct {
		Data processor.Result `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 9997, got.Data.OriginalContentLength)
}
