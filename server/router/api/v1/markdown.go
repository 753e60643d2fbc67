package v1

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Answer formats.
const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// newMarkdown renders GitHub flavored markdown. Raw HTML in answers is
// escaped.
func newMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)
}

func parseFormat(format string) (string, error) {
	switch format {
	case "", FormatMarkdown:
		return FormatMarkdown, nil
	case FormatHTML:
		return FormatHTML, nil
	default:
		return "", errors.Errorf("unsupported format %q (valid: markdown, html)", format)
	}
}

func (s *APIV1Service) renderHTML(content string) (string, error) {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(content), &buf); err != nil {
		return "", errors.Wrap(err, "failed to render markdown")
	}
	return buf.String(), nil
}
