package interview

import (
	"embed"
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"

	"applicant-interview/internal/vacancies"
)

//go:embed web/index.html
var webFS embed.FS

var pageTemplate = template.Must(template.ParseFS(webFS, "web/index.html"))

// Page serves the applicant form and conversation loop.
type Page struct {
	Catalog *vacancies.Catalog
	APIBase string
}

type pageData struct {
	Vacancies []string
	Accept    string
	APIBase   string
}

// RegisterRoutes attaches the page to the router.
func (p *Page) RegisterRoutes(r gin.IRoutes) {
	r.GET("/", p.index)
}

func (p *Page) index(c *gin.Context) {
	accept := make([]string, 0, len(AllowedExtensions))
	for _, ext := range AllowedExtensions {
		accept = append(accept, "."+ext)
	}
	c.Render(http.StatusOK, render.HTML{
		Template: pageTemplate,
		Name:     "index",
		Data: pageData{
			Vacancies: p.Catalog.Names(),
			Accept:    strings.Join(accept, ","),
			APIBase:   p.APIBase,
		},
	})
}
