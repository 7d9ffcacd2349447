package news

import (
	"net/url"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
)

// RenderMarkdown converts a markdown artifact to HTML.
// Raw HTML embedded in the artifact is dropped and links to untrusted
// schemes (javascript:, data: ...) are rendered as plain text.
func RenderMarkdown(md string) string {
	htmlFlags := html.CommonFlags | html.HrefTargetBlank | html.SkipHTML |
		html.Safelink | html.NofollowLinks | html.NoreferrerLinks | html.NoopenerLinks
	opts := html.RendererOptions{Flags: htmlFlags}
	renderer := html.NewRenderer(opts)
	renderer.IsSafeURLOverride = isSafeLink
	return string(markdown.ToHTML([]byte(md), nil, renderer))
}

// isSafeLink accepts relative links and the http, https, ftp and mailto schemes.
func isSafeLink(dest []byte) bool {
	u, err := url.Parse(strings.TrimSpace(string(dest)))
	if err != nil {
		return false
	}

	switch strings.ToLower(u.Scheme) {
	case "", "http", "https", "ftp", "mailto":
		return true
	default:
		return false
	}
}
