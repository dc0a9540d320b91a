package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pagemill/pagemill/pkg/pagemill/internalerr"
	"github.com/pagemill/pagemill/pkg/pagemill/seo"
	"github.com/pagemill/pagemill/pkg/pagemill/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	h.writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

// statusFor maps pipeline sentinel errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, internalerr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, internalerr.ErrAlreadyInProgress),
		errors.Is(err, internalerr.ErrAlreadyGenerated),
		errors.Is(err, internalerr.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, internalerr.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, internalerr.ErrUpstream):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return json.NewDecoder(r.Body).Decode(v)
}

func (h *Handler) generateTopics(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Keyword string `json:"keyword"`
		Count   int    `json:"count"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if req.Count <= 0 {
		req.Count = h.portal.Config.Site().Generation.TopicsPerKeyword
	}

	if req.Keyword != "" {
		added, err := h.portal.Topics.GenerateForKeyword(r.Context(), req.Keyword, req.Count)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]interface{}{"generated": len(added), "topics": added})
		return
	}

	res, err := h.portal.Topics.GenerateFromSeeds(r.Context(), req.Count)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) listTopics(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	var (
		topicList []store.Topic
		err       error
	)
	if status := r.URL.Query().Get("status"); status != "" {
		s := store.Status(status)
		if !s.Valid() {
			h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown status " + status})
			return
		}
		topicList, err = h.portal.Store.TopicsByStatus(r.Context(), s, limit)
	} else {
		topicList, err = h.portal.Store.AllTopics(r.Context())
		if limit > 0 && len(topicList) > limit {
			topicList = topicList[:limit]
		}
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	if topicList == nil {
		topicList = []store.Topic{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"topics": topicList})
}

func (h *Handler) resetTopic(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TopicID string `json:"topicId"`
	}
	if err := decodeBody(r, &req); err != nil || req.TopicID == "" {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "topicId is required"})
		return
	}
	if err := h.portal.ResetTopic(r.Context(), req.TopicID); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "pending"})
}

func (h *Handler) generateArticles(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Slug      string   `json:"topicSlug"`
		Slugs     []string `json:"topicSlugs"`
		Count     int      `json:"count"`
		BatchSize int      `json:"batchSize"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	if req.Slug != "" {
		article, err := h.portal.Articles.GenerateFromTopic(r.Context(), req.Slug)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, article)
		return
	}

	gen := h.portal.Config.Site().Generation
	if req.Count <= 0 {
		req.Count = gen.BatchSize
	}
	if req.BatchSize <= 0 {
		req.BatchSize = gen.BatchSize
	}

	// Batch runs always answer 200; per-topic failures ride in the body.
	if len(req.Slugs) > 0 {
		res, err := h.portal.Articles.GenerateBatch(r.Context(), req.Slugs, req.BatchSize)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, res)
		return
	}

	res, err := h.portal.GeneratePendingArticles(r.Context(), req.Count, req.BatchSize)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) listArticles(w http.ResponseWriter, r *http.Request) {
	articleList, err := h.portal.Store.ArticlesByStatus(r.Context(), store.StatusGenerated, store.StatusPublished)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if articleList == nil {
		articleList = []store.Article{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"articles": articleList})
}

func (h *Handler) getArticle(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	article, ok, err := h.portal.Store.ArticleBySlug(r.Context(), slug)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !ok {
		h.writeJSON(w, http.StatusNotFound, errorResponse{Error: "article not found"})
		return
	}
	h.writeJSON(w, http.StatusOK, article)
}

func (h *Handler) linkArticles(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Slug string `json:"slug"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	if req.Slug != "" {
		found, err := h.portal.Links.UpdateArticleLinks(r.Context(), req.Slug)
		if err != nil {
			h.writeError(w, err)
			return
		}
		if !found {
			h.writeJSON(w, http.StatusNotFound, errorResponse{Error: "article not found"})
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]int{"updated": 1})
		return
	}

	sum, err := h.portal.Links.UpdateAllArticleLinks(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sum)
}

func (h *Handler) deleteArticle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Slug string `json:"slug"`
	}
	if err := decodeBody(r, &req); err != nil || req.Slug == "" {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "slug is required"})
		return
	}
	if err := h.portal.DeleteArticle(r.Context(), req.Slug); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"deleted": req.Slug})
}

func (h *Handler) fetchImage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Slug string `json:"slug"`
	}
	if err := decodeBody(r, &req); err != nil || req.Slug == "" {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "slug is required"})
		return
	}
	img, err := h.portal.AttachImage(r.Context(), req.Slug)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, img)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	topicCounts, err := h.portal.Store.TopicStats(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	articleCounts, err := h.portal.Store.ArticleStats(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"topics":   topicCounts,
		"articles": articleCounts,
	})
}

func (h *Handler) sitemap(w http.ResponseWriter, r *http.Request) {
	articleList, err := h.portal.Store.ArticlesByStatus(r.Context(), store.StatusGenerated, store.StatusPublished)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	body, err := seo.Sitemap(h.portal.Config.Site(), articleList)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Write(body)
}

func (h *Handler) robots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(seo.Robots(h.portal.Config.Site()))
}
