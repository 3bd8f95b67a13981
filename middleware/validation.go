package middleware

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

const (
	processRequestKey   = "processRequest"
	validationFailedKey = "validationFailed"
)

// Input limits, counted in characters after trimming
const (
	TitleMinLength   = 3
	TitleMaxLength   = 200
	ContentMinLength = 50
	ContentMaxLength = 10000
)

var (
	htmlLikeChars = regexp.MustCompile(`[<>{}]`)
	whitespaceRun = regexp.MustCompile(`\s+`)

	validate = validator.New(validator.WithRequiredStructEnabled())
)

// ProcessRequest is a sanitized and validated article
type ProcessRequest struct {
	Title   string `json:"title" validate:"required,min=3,max=200"`
	Content string `json:"content" validate:"required,min=50,max=10000"`
}

// rawProcessRequest keeps the JSON values untyped so non-string input is
// reported as a validation failure rather than a decoding error
type rawProcessRequest struct {
	Title   any `json:"title"`
	Content any `json:"content"`
}

var validationMessages = map[string]map[string]string{
	"Title": {
		"required": "Title is required and must be a string",
		"min":      "Title must be at least 3 characters long",
		"max":      "Title must be 200 characters or less",
	},
	"Content": {
		"required": "Content is required and must be a string",
		"min":      "Content must be at least 50 characters long",
		"max":      "Content must be 10,000 characters or less",
	},
}

// SanitizeInput removes HTML-like characters and normalizes whitespace
func SanitizeInput(text string) string {
	text = htmlLikeChars.ReplaceAllString(text, "")
	text = whitespaceRun.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// ValidateArticle sanitizes title and content and checks them against the
// input limits. It returns one message per violated rule, title first.
func ValidateArticle(title, content string) (ProcessRequest, []string) {
	req := ProcessRequest{
		Title:   SanitizeInput(title),
		Content: SanitizeInput(content),
	}

	err := validate.Struct(req)
	if err == nil {
		return req, nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return req, []string{err.Error()}
	}

	details := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		msg, ok := validationMessages[fe.StructField()][fe.Tag()]
		if !ok {
			msg = fe.Error()
		}
		details = append(details, msg)
	}
	return req, details
}

// ValidateProcessRequest decodes, sanitizes and validates the article body.
// The result is available to handlers through GetProcessRequest.
func ValidateProcessRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		var raw rawProcessRequest
		if err := c.ShouldBindJSON(&raw); err != nil {
			AbortWithError(c, http.StatusBadRequest, "Invalid JSON payload", nil)
			return
		}

		// Non-string values are treated as missing
		title, _ := raw.Title.(string)
		content, _ := raw.Content.(string)

		req, details := ValidateArticle(title, content)
		if len(details) > 0 {
			AbortWithValidationError(c, http.StatusBadRequest, "Validation failed", details)
			return
		}

		c.Set(processRequestKey, req)
		c.Next()
	}
}

// AbortWithValidationError rejects a request whose input broke one or more
// validation rules and marks it for ValidationFailed
func AbortWithValidationError(c *gin.Context, status int, message string, details []string) {
	c.Set(validationFailedKey, true)
	AbortWithError(c, status, message, details)
}

// ValidationFailed reports whether the request was rejected through
// AbortWithValidationError
func ValidationFailed(c *gin.Context) bool {
	return c.GetBool(validationFailedKey)
}

// TruncateAtWord cuts text to at most limit characters, preferring the last
// space before the cut
func TruncateAtWord(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}

	cut := string(runes[:limit])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}

// GetProcessRequest returns the request stored by ValidateProcessRequest
func GetProcessRequest(c *gin.Context) (ProcessRequest, bool) {
	v, ok := c.Get(processRequestKey)
	if !ok {
		return ProcessRequest{}, false
	}
	req, ok := v.(ProcessRequest)
	return req, ok
}
