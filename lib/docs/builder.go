// Copyright 2026 The Conveyor Authors
// SPDX-License-Identifier: Apache-2.0

// Package docs renders a documentation tree to a static HTML site:
// Markdown pages through goldmark, source files as highlighted
// listings through chroma. It backs the "docs/build" step action.
package docs

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/conveyor-ci/conveyor/lib/executor"
)

// listingExtensions are the source file types rendered as highlighted
// listings alongside the Markdown pages.
var listingExtensions = map[string]bool{
	".go":   true,
	".py":   true,
	".sh":   true,
	".yaml": true,
	".yml":  true,
}

// Stats summarizes one build.
type Stats struct {
	// Pages is the number of Markdown pages rendered.
	Pages int

	// Listings is the number of highlighted source listings rendered.
	Listings int
}

// Builder renders a documentation tree.
type Builder struct {
	// Style names the chroma highlight style. Defaults to "github".
	Style string

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	markdown goldmark.Markdown
}

// NewBuilder returns a Builder with GFM extensions enabled (tables,
// strikethrough, task lists, autolinks).
func NewBuilder() *Builder {
	return &Builder{
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

func (b *Builder) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

// Build renders every Markdown page and source listing under
// sourceDir into outputDir, mirroring the directory layout. Output
// files take the source name plus ".html" ("guide.md" becomes
// "guide.md.html").
func (b *Builder) Build(ctx context.Context, sourceDir, outputDir string) (Stats, error) {
	var stats Stats

	err := filepath.WalkDir(sourceDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if entry.IsDir() {
			return nil
		}

		relative, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}
		ext := strings.ToLower(filepath.Ext(path))

		switch {
		case ext == ".md":
			if err := b.renderPage(path, filepath.Join(outputDir, relative+".html")); err != nil {
				return err
			}
			stats.Pages++
		case listingExtensions[ext]:
			if err := b.renderListing(path, filepath.Join(outputDir, relative+".html")); err != nil {
				return err
			}
			stats.Listings++
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("docs: building %s: %w", sourceDir, err)
	}

	b.logger().Info("documentation built",
		"source", sourceDir, "output", outputDir,
		"pages", stats.Pages, "listings", stats.Listings)
	return stats, nil
}

func (b *Builder) renderPage(sourcePath, outputPath string) error {
	source, err := os.ReadFile(sourcePath)
	if err != nil {
		return err
	}

	var body bytes.Buffer
	if err := b.markdown.Convert(source, &body); err != nil {
		return fmt.Errorf("rendering %s: %w", sourcePath, err)
	}

	page := fmt.Sprintf("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>%s</title></head>\n<body>\n%s</body></html>\n",
		html.EscapeString(filepath.Base(sourcePath)), body.String())
	return writeOutput(outputPath, []byte(page))
}

func (b *Builder) renderListing(sourcePath, outputPath string) error {
	source, err := os.ReadFile(sourcePath)
	if err != nil {
		return err
	}

	lexer := lexers.Match(filepath.Base(sourcePath))
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	styleName := b.Style
	if styleName == "" {
		styleName = "github"
	}
	style := styles.Get(styleName)
	if style == nil {
		style = styles.Fallback
	}

	iterator, err := lexer.Tokenise(nil, string(source))
	if err != nil {
		return fmt.Errorf("tokenizing %s: %w", sourcePath, err)
	}

	var rendered bytes.Buffer
	formatter := chromahtml.New(chromahtml.Standalone(true), chromahtml.WithLineNumbers(true))
	if err := formatter.Format(&rendered, style, iterator); err != nil {
		return fmt.Errorf("highlighting %s: %w", sourcePath, err)
	}
	return writeOutput(outputPath, rendered.Bytes())
}

func writeOutput(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, content, 0o644)
}

// Action adapts the builder to the step action interface under the
// name "docs/build". Parameters: "source" (default "docs") and
// "output" (default "site"), both relative to the instance's working
// directory.
func (b *Builder) Action() executor.ActionRunner {
	return executor.ActionFunc(func(ctx context.Context, req executor.ActionRequest) error {
		source := req.With["source"]
		if source == "" {
			source = "docs"
		}
		output := req.With["output"]
		if output == "" {
			output = "site"
		}
		if !filepath.IsAbs(source) {
			source = filepath.Join(req.Env.Dir, source)
		}
		if !filepath.IsAbs(output) {
			output = filepath.Join(req.Env.Dir, output)
		}
		_, err := b.Build(ctx, source, output)
		return err
	})
}
