package processor

// Result is the complete set of SEO artifacts derived from one article
type Result struct {
	Slug                  string           `json:"slug"`
	SEOTitle              string           `json:"seoTitle"`
	MetaDescription       string           `json:"metaDescription"`
	OriginalTitle         string           `json:"originalTitle"`
	OriginalContentLength int              `json:"originalContentLength"`
	Scores                Scores           `json:"seoScores"`
	Recommendations       []Recommendation `json:"recommendations"`
}

// Scores holds the heuristic quality scores, each in [0,100]
type Scores struct {
	Title   int `json:"title"`
	Content int `json:"content"`
	Overall int `json:"overall"`
}

// RecommendationType names the part of the article a recommendation is about
type RecommendationType string

const (
	TypeTitle   RecommendationType = "title"
	TypeContent RecommendationType = "content"
	TypeMeta    RecommendationType = "meta"
)

// Level is the severity of a recommendation
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
)

type Recommendation struct {
	Type    RecommendationType `json:"type"`
	Level   Level              `json:"level"`
	Message string             `json:"message"`
}
