package web

import (
	"embed"
	"html/template"

	"github.com/gin-gonic/gin"

	"github.com/Laisky/topic-news/internal/news"
)

//go:embed templates/*.html
var templateFS embed.FS

const pageTemplate = "index.html"

var pageTemplates = template.Must(template.New("").ParseFS(templateFS, "templates/*.html"))

type pageData struct {
	Topic        string
	HasLLMKey    bool
	HasSearchKey bool
	ShowLogs     bool
	Logs         string

	Warning string
	Error   string
	Success string
	Report  *news.Report
}

// ArtifactHTML is the rendered analyze artifact. news.RenderMarkdown drops raw HTML
// and unsafe link schemes.
func (d pageData) ArtifactHTML() template.HTML {
	if d.Report == nil {
		return ""
	}
	return template.HTML(d.Report.HTML) //nolint:gosec // sanitized by news.RenderMarkdown
}

func (s *Server) renderPage(ctx *gin.Context, status int, data pageData) {
	ctx.HTML(status, pageTemplate, data)
}
