// Package render turns chat messages into HTML fragments for the widget.
package render

import (
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"

	"github.com/vortexlabs/loginchat/pkg/security"
)

// bluemonday policies are safe for concurrent use once built.
var policy = bluemonday.UGCPolicy()

// MarkdownToHTML renders bot markdown and strips anything the UGC policy
// does not allow, so model output can never inject script.
func MarkdownToHTML(md string) string {
	if strings.TrimSpace(md) == "" {
		return ""
	}
	// Parsers keep state between calls and must not be shared.
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.HardLineBreak)
	r := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	out := markdown.ToHTML([]byte(md), p, r)
	return strings.TrimSpace(string(policy.SanitizeBytes(out)))
}

// UserHTML renders user text literally.
func UserHTML(text string) string {
	return security.EscapeHTML(text)
}
