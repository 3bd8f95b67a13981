package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "seoctl",
		Usage: "generate slugs, SEO titles, meta descriptions and scores for articles",
		Commands: []*cli.Command{
			{
				Name:  "process",
				Usage: "process an article and print the SEO result as JSON",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "article title", Required: true},
					&cli.StringFlag{Name: "content", Aliases: []string{"c"}, Usage: "article content"},
					&cli.PathFlag{Name: "file", Aliases: []string{"f"}, Usage: "read the content from `FILE` (- for stdin)"},
					&cli.BoolFlag{Name: "pretty", Usage: "indent the JSON output"},
				},
				Action: ProcessAction,
			},
			{
				Name:  "import",
				Usage: "fetch an article from a URL and print the processed result",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "url", Aliases: []string{"u"}, Usage: "article URL", Required: true},
					&cli.DurationFlag{Name: "timeout", Value: 15 * time.Second, Usage: "fetch timeout"},
					&cli.BoolFlag{Name: "pretty", Usage: "indent the JSON output"},
					&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log fetch details to stderr"},
				},
				Action: ImportAction,
			},
			{
				Name:      "slug",
				Usage:     "print the slug for a title",
				ArgsUsage: "TITLE",
				Action:    SlugAction,
			},
		},
	}
}
