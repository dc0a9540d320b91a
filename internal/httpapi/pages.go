package httpapi

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"

	"github.com/pagemill/pagemill/pkg/pagemill/config"
	"github.com/pagemill/pagemill/pkg/pagemill/seo"
	"github.com/pagemill/pagemill/pkg/pagemill/store"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Section bodies come back from the model as markdown.
var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

type renderedSection struct {
	Heading string
	Level   int
	Body    template.HTML
}

type articlePageData struct {
	Site        config.Site
	SiteURL     string
	Article     store.Article
	Description string
	Lead        template.HTML
	Sections    []renderedSection
	FAQ         []struct {
		Question string
		Answer   template.HTML
	}
	JSONLD template.JS
}

type indexPageData struct {
	Site     config.Site
	SiteURL  string
	Articles []store.Article
}

func renderMarkdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(buf.String())
}

func (h *Handler) indexPage(w http.ResponseWriter, r *http.Request) {
	articleList, err := h.portal.Store.ArticlesByStatus(r.Context(), store.StatusGenerated, store.StatusPublished)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	site := h.portal.Config.Site()
	data := indexPageData{Site: site, SiteURL: seo.SiteURL(site), Articles: articleList}
	h.renderPage(w, "index.html", data)
}

func (h *Handler) articlePage(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	article, ok, err := h.portal.Store.ArticleBySlug(r.Context(), slug)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !ok || (article.Status != store.StatusGenerated && article.Status != store.StatusPublished) {
		http.NotFound(w, r)
		return
	}

	site := h.portal.Config.Site()
	jsonld, err := seo.ArticleJSONLD(site, article)
	if err != nil {
		h.log.Error("render jsonld", zap.String("slug", slug), zap.Error(err))
		jsonld = []byte("{}")
	}

	data := articlePageData{
		Site:        site,
		SiteURL:     seo.SiteURL(site),
		Article:     article,
		Description: seo.MetaDescription(site, article),
		Lead:        renderMarkdown(article.Lead),
		JSONLD:      template.JS(jsonld),
	}
	for _, s := range article.Sections {
		data.Sections = append(data.Sections, renderedSection{
			Heading: s.Heading,
			Level:   s.Level,
			Body:    renderMarkdown(s.Content),
		})
	}
	for _, f := range article.FAQ {
		data.FAQ = append(data.FAQ, struct {
			Question string
			Answer   template.HTML
		}{Question: f.Question, Answer: renderMarkdown(f.Answer)})
	}

	h.renderPage(w, "article.html", data)
}

func (h *Handler) renderPage(w http.ResponseWriter, name string, data interface{}) {
	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		h.log.Error("render template", zap.String("template", name), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
