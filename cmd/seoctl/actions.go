package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/seo-optimizer/content-processor/config"
	"github.com/seo-optimizer/content-processor/fetch"
	"github.com/seo-optimizer/content-processor/logging"
	"github.com/seo-optimizer/content-processor/middleware"
	"github.com/seo-optimizer/content-processor/processor"
)

// importOutput mirrors the server's URL processing response
type importOutput struct {
	Source fetch.Article    `json:"source"`
	Result processor.Result `json:"data"`
}

func ProcessAction(c *cli.Context) error {
	content, err := readContent(c)
	if err != nil {
		return err
	}

	req, details := middleware.ValidateArticle(c.String("title"), content)
	if len(details) > 0 {
		return fmt.Errorf("validation failed: %s", strings.Join(details, "; "))
	}

	result := processor.New().Process(req.Title, req.Content)
	return writeJSON(c.App.Writer, result, c.Bool("pretty"))
}

func ImportAction(c *cli.Context) error {
	level := "error"
	if c.Bool("verbose") {
		level = "debug"
	}
	logger, err := logging.New(config.Development, level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg := config.Default().Fetch
	cfg.Timeout = c.Duration("timeout")

	importer := fetch.New(cfg, fetch.WithLogger(logger))
	defer importer.Close()

	article, err := importer.Import(c.Context, c.String("url"))
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	logger.Debug("article fetched", zap.String("title", article.Title), zap.Int("contentLength", len(article.Content)))

	content := middleware.TruncateAtWord(middleware.SanitizeInput(article.Content), middleware.ContentMaxLength)

	req, details := middleware.ValidateArticle(article.Title, content)
	if len(details) > 0 {
		return fmt.Errorf("imported article failed validation: %s", strings.Join(details, "; "))
	}

	return writeJSON(c.App.Writer, importOutput{
		Source: article,
		Result: processor.New().Process(req.Title, req.Content),
	}, c.Bool("pretty"))
}

func SlugAction(c *cli.Context) error {
	title := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(title) == "" {
		return errors.New("a title is required")
	}

	_, err := fmt.Fprintln(c.App.Writer, processor.New().GenerateSlug(processor.Sanitize(title)))
	return err
}

// readContent takes the content from --content or --file, exactly one of
// which must be set
func readContent(c *cli.Context) (string, error) {
	hasContent, hasFile := c.IsSet("content"), c.IsSet("file")
	switch {
	case hasContent && hasFile:
		return "", errors.New("use either --content or --file, not both")
	case hasContent:
		return c.String("content"), nil
	case hasFile:
		path := c.Path("file")
		if path == "-" {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return "", fmt.Errorf("failed to read stdin: %w", err)
			}
			return string(data), nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read content file: %w", err)
		}
		return string(data), nil
	default:
		return "", errors.New("one of --content or --file is required")
	}
}

func writeJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
