package processor

// Common words that don't add SEO value to a slug
var stopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "by", "for", "from",
	"has", "he", "in", "is", "it", "its", "of", "on", "that", "the",
	"to", "was", "will", "with",
}

// Keywords that are always preserved in slugs and boost the title score.
// Order matters only for deterministic iteration.
var powerWords = []string{
	"best", "guide", "how", "tips", "tutorial", "complete", "ultimate",
	"free", "new", "top", "advanced", "beginner", "expert", "review",
	"comparison", "vs", "latest", "updated",
}

type wordSet map[string]struct{}

func newWordSet(words []string) wordSet {
	set := make(wordSet, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func (s wordSet) has(word string) bool {
	_, ok := s[word]
	return ok
}
