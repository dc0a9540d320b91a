// Package store defines the persisted Topic and Article model and the Store
// interface both collections are accessed through. The store owns all
// authoritative state: every read and mutation goes through it.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/pagemill/pagemill/pkg/pagemill/slug"
)

// Status is the shared Topic/Article lifecycle status.
type Status string

const (
	StatusPending    Status = "pending"
	StatusGenerating Status = "generating"
	StatusGenerated  Status = "generated"
	StatusPublished  Status = "published"
	StatusError      Status = "error"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusGenerating, StatusGenerated, StatusPublished, StatusError:
		return true
	}
	return false
}

// Topic is a candidate article title with keyword tags and a lifecycle status.
type Topic struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	Keywords    []string   `json:"keywords"`
	SeedKeyword string     `json:"seedKeyword"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	GeneratedAt *time.Time `json:"generatedAt,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// ArticleMeta carries the SEO metadata block of an article.
type ArticleMeta struct {
	Title           string   `json:"title"`
	MetaTitle       string   `json:"metaTitle"`
	MetaDescription string   `json:"metaDescription"`
	Keywords        []string `json:"keywords"`
}

// Section is one heading plus its body text. Level is 2 or 3.
type Section struct {
	Heading string `json:"heading"`
	Level   int    `json:"level"`
	Content string `json:"content"`
}

// FAQItem is a question/answer pair.
type FAQItem struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// InternalLink points at another article in this portal.
type InternalLink struct {
	Text        string `json:"text"`
	Slug        string `json:"slug"`
	TargetTitle string `json:"targetTitle"`
}

// ExternalLink points at an allow-listed external domain.
type ExternalLink struct {
	Text   string `json:"text"`
	URL    string `json:"url"`
	Domain string `json:"domain"`
}

// Article is the full generated content produced from exactly one Topic. It
// shares its slug with that Topic.
type Article struct {
	ID            string         `json:"id"`
	Slug          string         `json:"slug"`
	Status        Status         `json:"status"`
	Meta          ArticleMeta    `json:"meta"`
	Lead          string         `json:"lead"`
	Sections      []Section      `json:"sections"`
	FAQ           []FAQItem      `json:"faq,omitempty"`
	InternalLinks []InternalLink `json:"internalLinks"`
	ExternalLinks []ExternalLink `json:"externalLinks"`
	ImageURL      string         `json:"imageUrl"`
	ImageAlt      string         `json:"imageAlt"`
	CreatedAt     time.Time      `json:"createdAt"`
	PublishedAt   *time.Time     `json:"publishedAt,omitempty"`
	UpdatedAt     *time.Time     `json:"updatedAt,omitempty"`
}

// TopicCandidate is the input to AddTopics, before IDs and slugs are assigned.
type TopicCandidate struct {
	Title       string
	Keywords    []string
	SeedKeyword string
}

// StatusCounts tallies records per status.
type StatusCounts struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Generating int `json:"generating"`
	Generated  int `json:"generated"`
	Published  int `json:"published"`
	Error      int `json:"error"`
}

// Add counts one record with the given status.
func (c *StatusCounts) Add(s Status) {
	c.Total++
	switch s {
	case StatusPending:
		c.Pending++
	case StatusGenerating:
		c.Generating++
	case StatusGenerated:
		c.Generated++
	case StatusPublished:
		c.Published++
	case StatusError:
		c.Error++
	}
}

// Store persists the Topic and Article collections.
type Store interface {
	Close() error

	// Topics
	AddTopics(ctx context.Context, candidates []TopicCandidate) ([]Topic, error)
	TopicBySlug(ctx context.Context, slug string) (Topic, bool, error)
	TopicByID(ctx context.Context, id string) (Topic, bool, error)
	TopicsByStatus(ctx context.Context, status Status, limit int) ([]Topic, error)
	AllTopics(ctx context.Context) ([]Topic, error)
	SetTopicStatus(ctx context.Context, id string, status Status, errMsg string) error
	// TransitionTopic sets the topic's status to `to` only when its current
	// status is one of `from`, and reports whether the caller won the
	// transition. This is the compare-and-swap that keeps two concurrent
	// generation attempts from both claiming the same topic.
	TransitionTopic(ctx context.Context, slug string, to Status, from ...Status) (bool, error)
	TopicStats(ctx context.Context) (StatusCounts, error)

	// Articles
	InsertArticle(ctx context.Context, a Article) error
	ArticleBySlug(ctx context.Context, slug string) (Article, bool, error)
	ArticlesByStatus(ctx context.Context, statuses ...Status) ([]Article, error)
	AllArticles(ctx context.Context) ([]Article, error)
	SetArticleStatus(ctx context.Context, id string, status Status) error
	UpdateArticleLinks(ctx context.Context, slug string, internal []InternalLink, external []ExternalLink, updatedAt time.Time) (bool, error)
	UpdateArticleImage(ctx context.Context, slug, url, alt string) (bool, error)
	DeleteArticle(ctx context.Context, slug string) (bool, error)
	ArticleStats(ctx context.Context) (StatusCounts, error)
}

// NewTopics builds persisted Topic records from candidates, enforcing the
// creation-time dedup rules shared by every Store implementation: a candidate
// whose lowercased title matches an existing topic is silently dropped, and
// slugs are made unique with a numeric suffix. Both maps are extended in place
// so candidates within one call dedup against each other too.
func NewTopics(candidates []TopicCandidate, takenSlugs, takenTitles map[string]bool, now time.Time) []Topic {
	var out []Topic
	for _, cand := range candidates {
		titleKey := strings.ToLower(cand.Title)
		if takenTitles[titleKey] {
			continue
		}
		s := slug.Unique(cand.Title, takenSlugs)
		out = append(out, Topic{
			ID:          slug.NewID(),
			Title:       cand.Title,
			Slug:        s,
			Keywords:    append([]string(nil), cand.Keywords...),
			SeedKeyword: cand.SeedKeyword,
			Status:      StatusPending,
			CreatedAt:   now,
		})
		takenSlugs[s] = true
		takenTitles[titleKey] = true
	}
	return out
}
