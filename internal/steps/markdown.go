package steps

import (
	"bytes"
	"context"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/roach88/kiln/internal/site"
)

var (
	markdownOnce sync.Once
	markdownConv goldmark.Markdown
)

// markdown returns the shared converter. goldmark converters are safe for
// concurrent use once built.
func markdown() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownConv = goldmark.New(
			goldmark.WithExtensions(extension.GFM, extension.Footnote),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(html.WithUnsafe()),
		)
	})
	return markdownConv
}

// Markdown renders Body from CommonMark (with GitHub extensions) to HTML.
func Markdown() site.Compiler {
	return site.Step("markdown", func(_ context.Context, item *site.Item, _ site.Dependencies) error {
		var buf bytes.Buffer
		if err := markdown().Convert(item.Body, &buf); err != nil {
			return err
		}
		item.Body = buf.Bytes()
		return nil
	})
}
