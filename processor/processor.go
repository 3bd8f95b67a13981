package processor

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// SEO best practice limits
const (
	TitleMaxLength           = 60
	MetaDescriptionMaxLength = 160
	SlugMaxLength            = 100

	slugFallbackPrefix = "article-"
	ellipsis           = "..."
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`[\s\v\p{Z}\x{feff}]+`)
	// characters allowed to survive sanitization
	unsafeCharPattern = regexp.MustCompile(`[^\w\s.,!?;:()\-'"]`)
	slugCharPattern   = regexp.MustCompile(`[^a-z0-9\s-]`)
	hyphenRunPattern  = regexp.MustCompile(`-+`)
	metaCharPattern   = regexp.MustCompile(`[^\w\s.,!?-]`)
	sentencePattern   = regexp.MustCompile(`[.!?]+`)
	digitPattern      = regexp.MustCompile(`\d`)
	fallbackPattern   = regexp.MustCompile(`^article-\d{13,}$`)
)

// Processor derives slugs, titles, meta descriptions, scores and
// recommendations from article text. It holds no per-call state and is
// safe for concurrent use.
type Processor struct {
	stopWords  wordSet
	powerWords wordSet
	now        func() time.Time
}

// Option configures a Processor
type Option func(*Processor)

// WithClock replaces the clock used by the slug fallback
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		p.now = now
	}
}

// New creates a Processor backed by the built-in word lists
func New(opts ...Option) *Processor {
	p := &Processor{
		stopWords:  newWordSet(stopWords),
		powerWords: newWordSet(powerWords),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process sanitizes the inputs and derives the full SEO result.
// It never fails; degenerate input yields fallback values.
func (p *Processor) Process(title, content string) Result {
	cleanTitle := Sanitize(title)
	cleanContent := Sanitize(content)

	slug := p.GenerateSlug(cleanTitle)
	seoTitle := OptimizeTitle(cleanTitle)
	metaDescription := GenerateMetaDescription(cleanContent)

	titleScore := p.TitleScore(cleanTitle)
	contentScore := ContentScore(cleanContent)

	return Result{
		Slug:                  slug,
		SEOTitle:              seoTitle,
		MetaDescription:       metaDescription,
		OriginalTitle:         cleanTitle,
		OriginalContentLength: utf8.RuneCountInString(cleanContent),
		Scores: Scores{
			Title:   titleScore,
			Content: contentScore,
			Overall: OverallScore(titleScore, contentScore),
		},
		Recommendations: p.Recommendations(cleanTitle, cleanContent, metaDescription),
	}
}

// Sanitize removes tags and unsafe characters and normalizes whitespace
func Sanitize(text string) string {
	if text == "" {
		return ""
	}

	text = tagPattern.ReplaceAllString(text, "")
	text = whitespacePattern.ReplaceAllString(text, " ")
	text = unsafeCharPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// GenerateSlug builds a URL-safe slug from a title. Stop words are dropped
// unless they are also power words. An empty result falls back to a
// timestamped placeholder.
func (p *Processor) GenerateSlug(title string) string {
	if title == "" {
		return ""
	}

	slug := strings.TrimSpace(strings.ToLower(title))
	slug = slugCharPattern.ReplaceAllString(slug, "")

	words := strings.Fields(slug)
	kept := words[:0]
	for _, word := range words {
		if p.powerWords.has(word) || !p.stopWords.has(word) {
			kept = append(kept, word)
		}
	}

	slug = strings.Join(kept, "-")
	slug = hyphenRunPattern.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")

	if len(slug) > SlugMaxLength {
		slug = slug[:SlugMaxLength]
		// Don't cut off in the middle of a word
		if lastHyphen := strings.LastIndex(slug, "-"); lastHyphen > SlugMaxLength*8/10 {
			slug = slug[:lastHyphen]
		}
	}

	if slug == "" {
		slug = slugFallbackPrefix + strconv.FormatInt(p.now().UnixMilli(), 10)
	}

	return slug
}

// IsFallbackSlug reports whether slug has the shape of the timestamped
// placeholder used for titles without usable words
func IsFallbackSlug(slug string) bool {
	return fallbackPattern.MatchString(slug)
}

// OptimizeTitle caps a title at TitleMaxLength characters, breaking at a
// word boundary when one is close enough. The appended ellipsis may take
// the result past the cap.
func OptimizeTitle(title string) string {
	title = strings.TrimSpace(title)
	runes := []rune(title)
	if len(runes) <= TitleMaxLength {
		return title
	}

	truncated := runes[:TitleMaxLength]
	if lastSpace := lastIndexRune(truncated, ' '); lastSpace > TitleMaxLength*6/10 {
		truncated = truncated[:lastSpace]
	}

	return strings.TrimSpace(string(truncated)) + ellipsis
}

// GenerateMetaDescription builds a meta description from whole sentences,
// falling back to a word-boundary cut with an ellipsis.
func GenerateMetaDescription(content string) string {
	if content == "" {
		return ""
	}

	clean := whitespacePattern.ReplaceAllString(content, " ")
	clean = metaCharPattern.ReplaceAllString(clean, "")
	clean = strings.TrimSpace(clean)

	runes := []rune(clean)
	if len(runes) <= MetaDescriptionMaxLength {
		return clean
	}

	limit := MetaDescriptionMaxLength - len(ellipsis)
	description := ""
	for _, sentence := range sentencePattern.Split(clean, -1) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}

		candidate := sentence
		if description != "" {
			candidate = description + ". " + sentence
		}
		if utf8.RuneCountInString(candidate) > limit {
			break
		}
		description = candidate
	}

	if utf8.RuneCountInString(description) > 50 {
		if !strings.HasSuffix(description, ".") {
			description += "."
		}
		return description
	}

	truncated := runes[:limit]
	if lastSpace := lastIndexRune(truncated, ' '); lastSpace > MetaDescriptionMaxLength*7/10 {
		truncated = truncated[:lastSpace]
	}

	return strings.TrimSpace(string(truncated)) + ellipsis
}

// TitleScore rates a title from 0 to 100
func (p *Processor) TitleScore(title string) int {
	score := 70
	length := utf8.RuneCountInString(title)

	switch {
	case length >= 30 && length <= TitleMaxLength:
		score += 20
	case length > TitleMaxLength:
		score -= 10
	case length < 20:
		score -= 15
	}

	score += min(p.countPowerWords(title)*5, 15)

	if digitPattern.MatchString(title) {
		score += 5
	}

	return clamp(score)
}

// ContentScore rates body text from 0 to 100
func ContentScore(content string) int {
	score := 60
	length := utf8.RuneCountInString(content)

	switch {
	case length >= 300 && length <= 2000:
		score += 25
	case length > 2000:
		score += 15
	case length < 150:
		score -= 20
	}

	sentences := splitSentences(content)
	if n := len(sentences); n > 0 {
		avg := float64(length) / float64(n)
		if avg >= 15 && avg <= 25 {
			score += 10
		}

		// Readability: varied sentence starts
		starts := make(map[rune]struct{}, n)
		for _, s := range sentences {
			r, _ := utf8.DecodeRuneInString(s)
			starts[unicode.ToLower(r)] = struct{}{}
		}
		if float64(len(starts))/float64(n) > 0.6 {
			score += 5
		}
	}

	return clamp(score)
}

// OverallScore is the rounded mean of the title and content scores
func OverallScore(titleScore, contentScore int) int {
	return int(math.Round(float64(titleScore+contentScore) / 2))
}

// Recommendations lists advisory messages for the sanitized title and
// content and the generated meta description, in a fixed order.
func (p *Processor) Recommendations(title, content, metaDescription string) []Recommendation {
	recommendations := []Recommendation{}
	titleLength := utf8.RuneCountInString(title)

	if titleLength > TitleMaxLength {
		recommendations = append(recommendations, Recommendation{
			Type:    TypeTitle,
			Level:   LevelWarning,
			Message: "Title is longer than 60 characters and may be truncated in search results",
		})
	}

	if titleLength < 30 {
		recommendations = append(recommendations, Recommendation{
			Type:    TypeTitle,
			Level:   LevelInfo,
			Message: "Consider making your title more descriptive (30-60 characters is optimal)",
		})
	}

	if utf8.RuneCountInString(content) < 200 {
		recommendations = append(recommendations, Recommendation{
			Type:    TypeContent,
			Level:   LevelWarning,
			Message: "Content is quite short. Consider adding more valuable information",
		})
	}

	if utf8.RuneCountInString(metaDescription) > MetaDescriptionMaxLength {
		recommendations = append(recommendations, Recommendation{
			Type:    TypeMeta,
			Level:   LevelWarning,
			Message: "Meta description may be truncated in search results",
		})
	}

	if !digitPattern.MatchString(title) && p.countPowerWords(title) == 0 {
		recommendations = append(recommendations, Recommendation{
			Type:    TypeTitle,
			Level:   LevelInfo,
			Message: `Consider adding numbers or power words like "best", "guide", "tips" to improve click-through rates`,
		})
	}

	return recommendations
}

// countPowerWords counts distinct power words appearing anywhere in the
// lowercased title, including inside longer words
func (p *Processor) countPowerWords(title string) int {
	lower := strings.ToLower(title)
	found := 0
	for word := range p.powerWords {
		if strings.Contains(lower, word) {
			found++
		}
	}
	return found
}

func splitSentences(content string) []string {
	var sentences []string
	for _, s := range sentencePattern.Split(content, -1) {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

func lastIndexRune(runes []rune, target rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == target {
			return i
		}
	}
	return -1
}

func clamp(score int) int {
	return max(0, min(100, score))
}
