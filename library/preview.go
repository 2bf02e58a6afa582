package library

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/microcosm-cc/bluemonday"
)

var (
	stripPolicy = bluemonday.StrictPolicy()
	mdConverter = converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
		),
	)
)

// Preview returns content stripped of markup, whitespace collapsed and cut
// to the configured number of runes. Listing surfaces only; insertion
// always uses the full content.
func (l *Library) Preview(content string) string {
	return preview(content, l.config.PreviewRunes)
}

func preview(content string, limit int) string {
	text := html.UnescapeString(stripPolicy.Sanitize(content))
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= limit {
		return text
	}
	return string(r[:limit]) + "…"
}

// CaptureHTML converts composer HTML into markdown and saves it as a new
// prompt named name.
func (l *Library) CaptureHTML(ctx context.Context, name, htmlContent string) (*Prompt, error) {
	md, err := mdConverter.ConvertString(htmlContent)
	if err != nil {
		return nil, fmt.Errorf("library: capture: %w", err)
	}
	md = strings.TrimSpace(md)
	if md == "" {
		return nil, fmt.Errorf("library: capture %q: %w: empty content", name, ErrInvalid)
	}
	return l.SavePrompt(ctx, &Prompt{Name: name, Content: md})
}
