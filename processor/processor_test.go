package processor

import (
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	slugShape     = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	fallbackShape = regexp.MustCompile(`^article-\d+$`)
)

const gardeningContent = "Starting a garden can feel overwhelming at first. Choose a sunny spot with good drainage. " +
	"Test your soil before planting anything. Begin with easy crops like lettuce and radishes. " +
	"Water deeply but not too often. Mulch helps keep moisture in the ground. " +
	"Keep a journal to track what works each season. Harvest often for the best flavor."

func fixedClock() time.Time {
	return time.UnixMilli(1700000000000)
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"tags removed", "<p>Hello <b>world</b></p>", "Hello world"},
		{"whitespace collapsed", "  one \t\n two   three ", "one two three"},
		{"unsafe characters stripped", "Price: $5 & 10% off!", "Price: 5  10 off!"},
		{"punctuation kept", `It's "quoted" (maybe); ok: yes-no?`, `It's "quoted" (maybe); ok: yes-no?`},
		{"braces stripped", "{json} [array]", "json array"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.input))
		})
	}
}

func TestGenerateSlug(t *testing.T) {
	p := New(WithClock(fixedClock))

	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"empty", "", ""},
		{"stop words removed", "The Art of War", "art-war"},
		{"power words kept", "How to Write the Best Guide", "how-write-best-guide"},
		{"punctuation stripped", "Hello, World! 2024?", "hello-world-2024"},
		{"hyphens collapsed", "well -- known --- facts", "well-known-facts"},
		{"underscore dropped", "snake_case names", "snakecase-names"},
		{"all stop words", "The and of in", "article-1700000000000"},
		{"pure punctuation", "!!! ??? ...", "article-1700000000000"},
		{"gardening example", "10 Best Tips for Beginner Gardeners in 2024", "10-best-tips-beginner-gardeners-2024"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.GenerateSlug(tt.title))
		})
	}
}

func TestGenerateSlugTruncation(t *testing.T) {
	p := New()

	t.Run("backs off to last hyphen", func(t *testing.T) {
		title := strings.Repeat("garden ", 20) // 20 * 7 - 1 = 139 chars once joined
		slug := p.GenerateSlug(title)

		assert.LessOrEqual(t, len(slug), SlugMaxLength)
		assert.Regexp(t, slugShape, slug)
		assert.True(t, strings.HasSuffix(slug, "garden"), "slug %q ends mid-word", slug)
	})

	t.Run("hard cut when no late hyphen", func(t *testing.T) {
		title := "short " + strings.Repeat("x", 150)
		slug := p.GenerateSlug(title)

		assert.Len(t, slug, SlugMaxLength)
		assert.True(t, strings.HasPrefix(slug, "short-x"))
	})
}

func TestGenerateSlugShape(t *testing.T) {
	p := New()
	titles := []string{
		"Ünïcödé Títle with Àccents",
		"-leading and trailing-",
		"a_b_c - d__e",
		"Tabs\tand\nnewlines",
		strings.Repeat("word-", 40),
		"C++ vs. Go: A Comparison!!",
		"The", "of the", "???",
	}

	for _, title := range titles {
		slug := p.GenerateSlug(title)
		assert.LessOrEqual(t, len(slug), SlugMaxLength, title)
		if !fallbackShape.MatchString(slug) {
			assert.Regexp(t, slugShape, slug, title)
		}
	}

	assert.Regexp(t, fallbackShape, p.GenerateSlug("the and of"))
	assert.True(t, IsFallbackSlug(p.GenerateSlug("the and of")))
	assert.False(t, IsFallbackSlug(p.GenerateSlug("Article 42")))
}

func TestOptimizeTitle(t *testing.T) {
	t.Run("short title unchanged", func(t *testing.T) {
		title := "10 Best Tips for Beginner Gardeners in 2024"
		assert.Equal(t, title, OptimizeTitle(title))
		assert.Equal(t, title, OptimizeTitle(OptimizeTitle(title)))
	})

	t.Run("exactly sixty characters unchanged", func(t *testing.T) {
		title := strings.Repeat("a", TitleMaxLength)
		assert.Equal(t, title, OptimizeTitle(title))
	})

	t.Run("cuts at word boundary", func(t *testing.T) {
		title := "The Complete Guide to Growing Tomatoes Indoors During the Long Winter Months"
		got := OptimizeTitle(title)

		require.True(t, strings.HasSuffix(got, "..."))
		body := strings.TrimSuffix(got, "...")
		assert.LessOrEqual(t, len(body), TitleMaxLength)
		assert.True(t, strings.HasPrefix(title, body))
		assert.Equal(t, " ", title[len(body):len(body)+1], "cut should land on a space")
	})

	t.Run("hard cut without nearby space", func(t *testing.T) {
		title := "Short " + strings.Repeat("x", 80)
		got := OptimizeTitle(title)

		assert.Equal(t, title[:TitleMaxLength]+"...", got)
		assert.Len(t, strings.TrimSuffix(got, "..."), TitleMaxLength)
	})
}

func TestGenerateMetaDescription(t *testing.T) {
	t.Run("short content unchanged", func(t *testing.T) {
		content := "A short description of the article."
		assert.Equal(t, content, GenerateMetaDescription(content))
	})

	t.Run("cleans content", func(t *testing.T) {
		assert.Equal(t, "Fish and chips", GenerateMetaDescription("Fish\n\n  and   chips"))
		assert.Equal(t, "Tea costs 5 today.", GenerateMetaDescription("Tea  costs  $5 today."))
	})

	t.Run("whole sentences", func(t *testing.T) {
		got := GenerateMetaDescription(gardeningContent)

		assert.Equal(t, "Starting a garden can feel overwhelming at first. Choose a sunny spot with good drainage. Test your soil before planting anything.", got)
		assert.LessOrEqual(t, len(got), MetaDescriptionMaxLength)
	})

	t.Run("run-on sentence falls back to truncation", func(t *testing.T) {
		content := strings.TrimSpace(strings.Repeat("lorem ipsum dolor ", 15))
		got := GenerateMetaDescription(content)

		require.True(t, strings.HasSuffix(got, "..."))
		body := strings.TrimSuffix(got, "...")
		assert.LessOrEqual(t, len(body), MetaDescriptionMaxLength-3)
		assert.False(t, strings.HasSuffix(body, " "))
		assert.True(t, strings.HasPrefix(content, body))
	})

	t.Run("short first sentence still falls back", func(t *testing.T) {
		content := "Tiny. " + strings.Repeat("z", 200)
		got := GenerateMetaDescription(content)

		assert.Equal(t, content[:157]+"...", got)
	})
}

func TestTitleScore(t *testing.T) {
	p := New()

	tests := []struct {
		name  string
		title string
		want  int
	}{
		{"ideal length with power words and digit", "10 Best Tips for Beginner Gardeners in 2024", 100},
		{"ideal length plain", "Growing tomatoes on a small city balcony", 90},
		{"too long", strings.Repeat("plain words ", 6), 60},
		{"very short", "Gardens", 55},
		{"medium short", "A walk in the garden", 70},
		{"power word inside another word", "Showcase", 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.TitleScore(tt.title))
		})
	}
}

func TestContentScore(t *testing.T) {
	t.Run("no sentences does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			assert.Equal(t, 40, ContentScore(""))
			assert.Equal(t, 40, ContentScore("...!!!???"))
		})
	})

	t.Run("no terminal punctuation is one sentence", func(t *testing.T) {
		// 20 chars, one sentence: average in band, one distinct start
		assert.Equal(t, 55, ContentScore("twenty chars of text"))
	})

	t.Run("ideal length with varied starts", func(t *testing.T) {
		assert.Equal(t, 90, ContentScore(gardeningContent))
	})

	t.Run("long content", func(t *testing.T) {
		content := strings.Repeat("Another long sentence about gardening and soil. ", 50)
		assert.Equal(t, 75, ContentScore(content))
	})
}

func TestOverallScore(t *testing.T) {
	assert.Equal(t, 93, OverallScore(100, 85))
	assert.Equal(t, 50, OverallScore(50, 50))
	assert.Equal(t, 1, OverallScore(1, 0))
	assert.Equal(t, 0, OverallScore(0, 0))
}

func TestRecommendations(t *testing.T) {
	p := New()

	t.Run("none for a good article", func(t *testing.T) {
		recs := p.Recommendations("10 Best Tips for Beginner Gardeners in 2024", gardeningContent, "ok")
		assert.NotNil(t, recs)
		assert.Empty(t, recs)
	})

	t.Run("fixed order", func(t *testing.T) {
		recs := p.Recommendations("Gardens", "short", strings.Repeat("m", 161))

		require.Len(t, recs, 4)
		assert.Equal(t, Recommendation{TypeTitle, LevelInfo, "Consider making your title more descriptive (30-60 characters is optimal)"}, recs[0])
		assert.Equal(t, TypeContent, recs[1].Type)
		assert.Equal(t, LevelWarning, recs[1].Level)
		assert.Equal(t, TypeMeta, recs[2].Type)
		assert.Equal(t, TypeTitle, recs[3].Type)
		assert.Contains(t, recs[3].Message, "power words")
	})

	t.Run("long title warning", func(t *testing.T) {
		recs := p.Recommendations(strings.Repeat("x", 61)+" 2", gardeningContent, "")

		require.Len(t, recs, 1)
		assert.Equal(t, TypeTitle, recs[0].Type)
		assert.Equal(t, LevelWarning, recs[0].Level)
	})
}

func TestProcess(t *testing.T) {
	p := New(WithClock(fixedClock))

	t.Run("gardening example", func(t *testing.T) {
		result := p.Process("10 Best Tips for Beginner Gardeners in 2024", "<p>"+gardeningContent+"</p>")

		assert.Equal(t, "10-best-tips-beginner-gardeners-2024", result.Slug)
		assert.Equal(t, "10 Best Tips for Beginner Gardeners in 2024", result.SEOTitle)
		assert.Equal(t, "10 Best Tips for Beginner Gardeners in 2024", result.OriginalTitle)
		assert.Equal(t, len(gardeningContent), result.OriginalContentLength)
		assert.GreaterOrEqual(t, result.Scores.Title, 85)
		assert.Equal(t, 95, result.Scores.Overall)
		assert.Empty(t, result.Recommendations)
	})

	t.Run("short meta description is the cleaned content", func(t *testing.T) {
		content := "Short content with   extra   spaces and a <em>tag</em> inside of it."
		result := p.Process("A reasonable title for testing", content)

		assert.Equal(t, "Short content with extra spaces and a tag inside of it.", result.MetaDescription)
	})

	t.Run("scores in range", func(t *testing.T) {
		inputs := [][2]string{
			{"", ""},
			{"x", "y"},
			{strings.Repeat("best guide tips 2024 ", 20), strings.Repeat("z", 5000)},
			{"???", "!!!"},
		}
		for _, in := range inputs {
			result := p.Process(in[0], in[1])
			for _, s := range []int{result.Scores.Title, result.Scores.Content, result.Scores.Overall} {
				assert.GreaterOrEqual(t, s, 0)
				assert.LessOrEqual(t, s, 100)
			}
			assert.Equal(t, OverallScore(result.Scores.Title, result.Scores.Content), result.Scores.Overall)
			assert.NotNil(t, result.Recommendations)
		}
	})
}

func TestProcessConcurrent(t *testing.T) {
	p := New()
	want := p.Process("10 Best Tips for Beginner Gardeners in 2024", gardeningContent)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := p.Process("10 Best Tips for Beginner Gardeners in 2024", gardeningContent)
			assert.Equal(t, want, got)
		}()
	}
	wg.Wait()
}
