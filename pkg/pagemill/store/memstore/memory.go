// Package memstore is an in-memory implementation of store.Store for tests.
package memstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pagemill/pagemill/pkg/pagemill/store"
)

// Store keeps both collections in insertion order, which doubles as the stable
// tiebreak order the linking engine relies on.
type Store struct {
	mu       sync.RWMutex
	topics   []store.Topic
	articles []store.Article
}

var _ store.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// AddTopics appends candidates that survive slug/title dedup.
func (s *Store) AddTopics(ctx context.Context, candidates []store.TopicCandidate) ([]store.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	takenSlugs := make(map[string]bool, len(s.topics))
	takenTitles := make(map[string]bool, len(s.topics))
	for _, t := range s.topics {
		takenSlugs[t.Slug] = true
		takenTitles[strings.ToLower(t.Title)] = true
	}

	added := store.NewTopics(candidates, takenSlugs, takenTitles, time.Now().UTC())
	s.topics = append(s.topics, added...)

	out := make([]store.Topic, len(added))
	for i, t := range added {
		out[i] = copyTopic(t)
	}
	return out, nil
}

// TopicBySlug returns a topic by slug.
func (s *Store) TopicBySlug(ctx context.Context, slug string) (store.Topic, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.topics {
		if t.Slug == slug {
			return copyTopic(t), true, nil
		}
	}
	return store.Topic{}, false, nil
}

// TopicByID returns a topic by ID.
func (s *Store) TopicByID(ctx context.Context, id string) (store.Topic, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.topics {
		if t.ID == id {
			return copyTopic(t), true, nil
		}
	}
	return store.Topic{}, false, nil
}

// TopicsByStatus returns topics with the given status, oldest first.
func (s *Store) TopicsByStatus(ctx context.Context, status store.Status, limit int) ([]store.Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.Topic
	for _, t := range s.topics {
		if t.Status != status {
			continue
		}
		out = append(out, copyTopic(t))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// AllTopics returns every topic in insertion order.
func (s *Store) AllTopics(ctx context.Context) ([]store.Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.Topic, len(s.topics))
	for i, t := range s.topics {
		out[i] = copyTopic(t)
	}
	return out, nil
}

// SetTopicStatus updates a topic's status. A non-empty errMsg is recorded on
// the topic; reaching generated stamps generatedAt. Unknown IDs are a no-op.
func (s *Store) SetTopicStatus(ctx context.Context, id string, status store.Status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.topics {
		if s.topics[i].ID != id {
			continue
		}
		s.topics[i].Status = status
		if errMsg != "" {
			s.topics[i].Error = errMsg
		}
		if status == store.StatusGenerated {
			now := time.Now().UTC()
			s.topics[i].GeneratedAt = &now
		}
		return nil
	}
	return nil
}

// TransitionTopic implements the conditional status claim.
func (s *Store) TransitionTopic(ctx context.Context, slug string, to store.Status, from ...store.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.topics {
		if s.topics[i].Slug != slug {
			continue
		}
		if len(from) > 0 && !statusIn(s.topics[i].Status, from) {
			return false, nil
		}
		s.topics[i].Status = to
		return true, nil
	}
	return false, nil
}

// TopicStats tallies topics per status.
func (s *Store) TopicStats(ctx context.Context) (store.StatusCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c store.StatusCounts
	for _, t := range s.topics {
		c.Add(t.Status)
	}
	return c, nil
}

// InsertArticle appends an article.
func (s *Store) InsertArticle(ctx context.Context, a store.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.articles = append(s.articles, copyArticle(a))
	return nil
}

// ArticleBySlug returns an article by slug.
func (s *Store) ArticleBySlug(ctx context.Context, slug string) (store.Article, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.articles {
		if a.Slug == slug {
			return copyArticle(a), true, nil
		}
	}
	return store.Article{}, false, nil
}

// ArticlesByStatus returns articles whose status is any of the given ones,
// in insertion order.
func (s *Store) ArticlesByStatus(ctx context.Context, statuses ...store.Status) ([]store.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.Article
	for _, a := range s.articles {
		if statusIn(a.Status, statuses) {
			out = append(out, copyArticle(a))
		}
	}
	return out, nil
}

// AllArticles returns every article in insertion order.
func (s *Store) AllArticles(ctx context.Context) ([]store.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.Article, len(s.articles))
	for i, a := range s.articles {
		out[i] = copyArticle(a)
	}
	return out, nil
}

// SetArticleStatus updates an article's status, stamping publishedAt when the
// article reaches published and updatedAt always.
func (s *Store) SetArticleStatus(ctx context.Context, id string, status store.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.articles {
		if s.articles[i].ID != id {
			continue
		}
		now := time.Now().UTC()
		s.articles[i].Status = status
		s.articles[i].UpdatedAt = &now
		if status == store.StatusPublished {
			s.articles[i].PublishedAt = &now
		}
		return nil
	}
	return nil
}

// UpdateArticleLinks replaces both link lists on the article.
func (s *Store) UpdateArticleLinks(ctx context.Context, slug string, internal []store.InternalLink, external []store.ExternalLink, updatedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.articles {
		if s.articles[i].Slug != slug {
			continue
		}
		s.articles[i].InternalLinks = append([]store.InternalLink(nil), internal...)
		s.articles[i].ExternalLinks = append([]store.ExternalLink(nil), external...)
		ts := updatedAt
		s.articles[i].UpdatedAt = &ts
		return true, nil
	}
	return false, nil
}

// UpdateArticleImage replaces the article's image reference.
func (s *Store) UpdateArticleImage(ctx context.Context, slug, url, alt string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.articles {
		if s.articles[i].Slug != slug {
			continue
		}
		now := time.Now().UTC()
		s.articles[i].ImageURL = url
		s.articles[i].ImageAlt = alt
		s.articles[i].UpdatedAt = &now
		return true, nil
	}
	return false, nil
}

// DeleteArticle removes an article by slug.
func (s *Store) DeleteArticle(ctx context.Context, slug string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.articles {
		if s.articles[i].Slug == slug {
			s.articles = append(s.articles[:i], s.articles[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// ArticleStats tallies articles per status.
func (s *Store) ArticleStats(ctx context.Context) (store.StatusCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c store.StatusCounts
	for _, a := range s.articles {
		c.Add(a.Status)
	}
	return c, nil
}

func statusIn(s store.Status, set []store.Status) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}

func copyTopic(t store.Topic) store.Topic {
	out := t
	out.Keywords = append([]string(nil), t.Keywords...)
	if t.GeneratedAt != nil {
		ts := *t.GeneratedAt
		out.GeneratedAt = &ts
	}
	return out
}

func copyArticle(a store.Article) store.Article {
	out := a
	out.Meta.Keywords = append([]string(nil), a.Meta.Keywords...)
	out.Sections = append([]store.Section(nil), a.Sections...)
	out.FAQ = append([]store.FAQItem(nil), a.FAQ...)
	out.InternalLinks = append([]store.InternalLink(nil), a.InternalLinks...)
	out.ExternalLinks = append([]store.ExternalLink(nil), a.ExternalLinks...)
	if a.PublishedAt != nil {
		ts := *a.PublishedAt
		out.PublishedAt = &ts
	}
	if a.UpdatedAt != nil {
		ts := *a.UpdatedAt
		out.UpdatedAt = &ts
	}
	return out
}
