// Package pagemill wires the content pipeline together: topic generation,
// article generation, cross-linking and image resolution over one store.
package pagemill

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/pagemill/pagemill/pkg/pagemill/articles"
	"github.com/pagemill/pagemill/pkg/pagemill/config"
	"github.com/pagemill/pagemill/pkg/pagemill/internalerr"
	"github.com/pagemill/pagemill/pkg/pagemill/linking"
	"github.com/pagemill/pagemill/pkg/pagemill/store"
	"github.com/pagemill/pagemill/pkg/pagemill/topics"
)

// TextGenerator produces a raw completion for a prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Image is a resolved cover image.
type Image struct {
	URL    string `json:"url"`
	Alt    string `json:"alt"`
	Source string `json:"source"`
}

// ImageResolver finds a cover image for an article.
type ImageResolver interface {
	Resolve(ctx context.Context, title string, keywords []string) (Image, error)
}

// Options configures a Portal.
type Options struct {
	Store   store.Store
	Gateway TextGenerator
	Config  config.Provider
	Images  ImageResolver

	// Rand seeds the linking engine; nil gets a time-seeded source.
	Rand *rand.Rand
}

// Portal is the assembled content pipeline.
type Portal struct {
	Store    store.Store
	Topics   *topics.Generator
	Articles *articles.Generator
	Links    *linking.Engine
	Config   config.Provider

	images ImageResolver
}

// New assembles a Portal from its collaborators. Pacing intervals come from
// the generation section of the configuration snapshot taken here.
func New(opts Options) *Portal {
	gen := opts.Config.Site().Generation
	return &Portal{
		Store: opts.Store,
		Topics: &topics.Generator{
			Gateway:      opts.Gateway,
			Store:        opts.Store,
			Config:       opts.Config,
			KeywordDelay: gen.KeywordDelay.Std(),
		},
		Articles: &articles.Generator{
			Gateway:  opts.Gateway,
			Store:    opts.Store,
			Config:   opts.Config,
			Cooldown: gen.ArticleCooldown.Std(),
		},
		Links:  linking.New(opts.Store, opts.Config, opts.Rand),
		Config: opts.Config,
		images: opts.Images,
	}
}

// GeneratePendingArticles picks up to count pending topics, oldest first, and
// generates their articles in batches.
func (p *Portal) GeneratePendingArticles(ctx context.Context, count, batchSize int) (articles.BatchResult, error) {
	pending, err := p.Store.TopicsByStatus(ctx, store.StatusPending, count)
	if err != nil {
		return articles.BatchResult{}, fmt.Errorf("%w: %s", internalerr.ErrPersistence, err.Error())
	}
	slugs := make([]string, len(pending))
	for i, t := range pending {
		slugs[i] = t.Slug
	}
	return p.Articles.GenerateBatch(ctx, slugs, batchSize)
}

// ResetTopic puts an errored topic back to pending so it can be retried.
func (p *Portal) ResetTopic(ctx context.Context, id string) error {
	topic, ok, err := p.Store.TopicByID(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: %s", internalerr.ErrPersistence, err.Error())
	}
	if !ok {
		return fmt.Errorf("%w: topic %q", internalerr.ErrNotFound, id)
	}
	if topic.Status != store.StatusError {
		return fmt.Errorf("%w: topic %q is %s, only errored topics reset", internalerr.ErrInvalidState, id, topic.Status)
	}
	return p.Store.SetTopicStatus(ctx, id, store.StatusPending, "")
}

// DeleteArticle removes an article by slug.
func (p *Portal) DeleteArticle(ctx context.Context, slug string) error {
	deleted, err := p.Store.DeleteArticle(ctx, slug)
	if err != nil {
		return fmt.Errorf("%w: %s", internalerr.ErrPersistence, err.Error())
	}
	if !deleted {
		return fmt.Errorf("%w: article %q", internalerr.ErrNotFound, slug)
	}
	return nil
}

// AttachImage resolves and persists a cover image for the article.
func (p *Portal) AttachImage(ctx context.Context, slug string) (Image, error) {
	if p.images == nil {
		return Image{}, fmt.Errorf("%w: no image resolver configured", internalerr.ErrInvalidConfig)
	}
	article, ok, err := p.Store.ArticleBySlug(ctx, slug)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %s", internalerr.ErrPersistence, err.Error())
	}
	if !ok {
		return Image{}, fmt.Errorf("%w: article %q", internalerr.ErrNotFound, slug)
	}

	img, err := p.images.Resolve(ctx, article.Meta.Title, article.Meta.Keywords)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %s", internalerr.ErrUpstream, err.Error())
	}
	if _, err := p.Store.UpdateArticleImage(ctx, slug, img.URL, img.Alt); err != nil {
		return Image{}, fmt.Errorf("%w: %s", internalerr.ErrPersistence, err.Error())
	}
	return img, nil
}
