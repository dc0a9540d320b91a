// Package httpapi exposes the content pipeline over HTTP: a JSON admin API,
// the public article pages and the SEO endpoints.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/pagemill/pagemill/pkg/pagemill"
)

// Handler serves the portal's HTTP surface.
type Handler struct {
	portal *pagemill.Portal
	log    *zap.Logger
}

// New builds the HTTP handler around an assembled portal.
func New(portal *pagemill.Portal, log *zap.Logger) *Handler {
	return &Handler{portal: portal, log: log}
}

// Router assembles the chi router with middleware and all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/topics/generate", h.generateTopics)
		r.Get("/topics", h.listTopics)
		r.Post("/topics/reset", h.resetTopic)

		r.Post("/articles/generate", h.generateArticles)
		r.Get("/articles", h.listArticles)
		r.Get("/articles/{slug}", h.getArticle)
		r.Post("/articles/link", h.linkArticles)
		r.Post("/articles/delete", h.deleteArticle)

		r.Post("/images/fetch", h.fetchImage)
		r.Get("/stats", h.stats)
	})

	r.Get("/sitemap.xml", h.sitemap)
	r.Get("/robots.txt", h.robots)

	r.Get("/", h.indexPage)
	r.Get("/articles", h.indexPage)
	r.Get("/articles/{slug}", h.articlePage)

	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
