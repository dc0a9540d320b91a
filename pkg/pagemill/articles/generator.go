// Package articles generates full article content from topics and manages the
// topic lifecycle around each generation attempt.
package articles

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pagemill/pagemill/pkg/pagemill/config"
	"github.com/pagemill/pagemill/pkg/pagemill/internalerr"
	"github.com/pagemill/pagemill/pkg/pagemill/slug"
	"github.com/pagemill/pagemill/pkg/pagemill/store"
)

const maxArticleTokens = 8192

var lengthWords = map[string]string{
	"short":  "300-400 words",
	"medium": "400-600 words",
	"long":   "600-800 words",
}

// TextGenerator produces a raw completion for a prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Generator produces one Article per Topic.
type Generator struct {
	Gateway TextGenerator
	Store   store.Store
	Config  config.Provider

	// Cooldown spaces out gateway calls between successful generations in a
	// batch. Zero means no pacing.
	Cooldown time.Duration
}

// BatchResult summarizes one batch run.
type BatchResult struct {
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// GenerateFromTopic generates the article for one topic. The topic is claimed
// with a conditional status transition, so concurrent attempts on the same
// topic resolve to exactly one winner.
func (g *Generator) GenerateFromTopic(ctx context.Context, topicSlug string) (store.Article, error) {
	topic, ok, err := g.Store.TopicBySlug(ctx, topicSlug)
	if err != nil {
		return store.Article{}, fmt.Errorf("%w: %s", internalerr.ErrPersistence, err.Error())
	}
	if !ok {
		return store.Article{}, fmt.Errorf("%w: topic %q", internalerr.ErrNotFound, topicSlug)
	}

	switch topic.Status {
	case store.StatusGenerating:
		return store.Article{}, fmt.Errorf("%w: topic %q", internalerr.ErrAlreadyInProgress, topicSlug)
	case store.StatusGenerated, store.StatusPublished:
		return store.Article{}, fmt.Errorf("%w: topic %q", internalerr.ErrAlreadyGenerated, topicSlug)
	}

	won, err := g.Store.TransitionTopic(ctx, topicSlug, store.StatusGenerating,
		store.StatusPending, store.StatusError)
	if err != nil {
		return store.Article{}, fmt.Errorf("%w: %s", internalerr.ErrPersistence, err.Error())
	}
	if !won {
		return store.Article{}, fmt.Errorf("%w: topic %q", internalerr.ErrAlreadyInProgress, topicSlug)
	}

	article, err := g.produce(ctx, topic)
	if err != nil {
		_ = g.Store.SetTopicStatus(ctx, topic.ID, store.StatusError, err.Error())
		return store.Article{}, err
	}

	if err := g.Store.InsertArticle(ctx, article); err != nil {
		wrapped := fmt.Errorf("%w: %s", internalerr.ErrPersistence, err.Error())
		_ = g.Store.SetTopicStatus(ctx, topic.ID, store.StatusError, wrapped.Error())
		return store.Article{}, wrapped
	}
	if err := g.Store.SetTopicStatus(ctx, topic.ID, store.StatusGenerated, ""); err != nil {
		return store.Article{}, fmt.Errorf("%w: %s", internalerr.ErrPersistence, err.Error())
	}
	return article, nil
}

func (g *Generator) produce(ctx context.Context, topic store.Topic) (store.Article, error) {
	site := g.Config.Site()

	raw, err := g.Gateway.Generate(ctx, articlePrompt(site, topic), maxArticleTokens)
	if err != nil {
		return store.Article{}, fmt.Errorf("%w: %s", internalerr.ErrUpstream, err.Error())
	}
	content, err := ParseContent(raw)
	if err != nil {
		return store.Article{}, fmt.Errorf("%w: %s", internalerr.ErrUpstream, err.Error())
	}

	now := time.Now().UTC()
	return store.Article{
		ID:     slug.NewID(),
		Slug:   topic.Slug,
		Status: store.StatusGenerated,
		Meta: store.ArticleMeta{
			Title:           content.Title,
			MetaTitle:       content.MetaTitle,
			MetaDescription: content.MetaDescription,
			Keywords:        append([]string(nil), topic.Keywords...),
		},
		Lead:          content.Lead,
		Sections:      content.Sections,
		FAQ:           content.FAQ,
		InternalLinks: []store.InternalLink{},
		ExternalLinks: []store.ExternalLink{},
		ImageURL:      "/generated-images/" + topic.Slug + ".jpg",
		ImageAlt:      content.Title,
		CreatedAt:     now,
		PublishedAt:   &now,
	}, nil
}

// GenerateBatch generates articles for the given topic slugs, batchSize at a
// time. Failures are recorded per slug and the batch keeps going; a cooldown
// follows each successful generation except the last.
func (g *Generator) GenerateBatch(ctx context.Context, slugs []string, batchSize int) (BatchResult, error) {
	if batchSize <= 0 {
		batchSize = 1
	}

	var res BatchResult
	for start := 0; start < len(slugs); start += batchSize {
		end := start + batchSize
		if end > len(slugs) {
			end = len(slugs)
		}
		for i, topicSlug := range slugs[start:end] {
			_, err := g.GenerateFromTopic(ctx, topicSlug)
			if err != nil {
				res.Failed++
				res.Errors = append(res.Errors, fmt.Sprintf("%s: %s", topicSlug, err.Error()))
				continue
			}
			res.Success++
			if start+i+1 < len(slugs) {
				if err := wait(ctx, g.Cooldown); err != nil {
					return res, err
				}
			}
		}
	}
	return res, nil
}

func articlePrompt(site config.Site, topic store.Topic) string {
	length, ok := lengthWords[site.Content.ArticleLength]
	if !ok {
		length = lengthWords["medium"]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a content writer for %q, a site about %s.\n", site.SiteName, site.Niche)
	fmt.Fprintf(&b, "Write an SEO article titled %q in %s.\n", topic.Title, languageName(site.Language))
	fmt.Fprintf(&b, "Target length: %s. Writing style: %s.\n", length, site.Content.WritingStyle)
	if len(topic.Keywords) > 0 {
		fmt.Fprintf(&b, "Work these keywords in naturally: %s.\n", strings.Join(topic.Keywords, ", "))
	}
	b.WriteString("Respond with ONLY a JSON object, no commentary, in this shape:\n")
	b.WriteString(`{"title":"...","lead":"...","sections":[{"heading":"...","level":2,"content":"..."}],`)
	if site.Content.GenerateFAQ {
		fmt.Fprintf(&b, `"faq":[{"question":"...","answer":"..."}],`)
	}
	b.WriteString(`"metaTitle":"...","metaDescription":"..."}` + "\n")
	b.WriteString("Section levels are 2 for main headings and 3 for subheadings.\n")
	if site.Content.GenerateFAQ {
		fmt.Fprintf(&b, "Include %d FAQ entries.\n", site.Content.FAQQuestionCount)
	}
	b.WriteString("Keep metaDescription under 160 characters.\n")
	return b.String()
}

func languageName(code string) string {
	switch code {
	case "pl":
		return "Polish"
	case "de":
		return "German"
	case "es":
		return "Spanish"
	case "fr":
		return "French"
	default:
		return "English"
	}
}

// wait sleeps for d or until the context ends, whichever comes first.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
