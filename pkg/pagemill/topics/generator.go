// Package topics turns seed keywords into deduplicated topic records via an
// LLM completion endpoint.
package topics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pagemill/pagemill/pkg/pagemill/config"
	"github.com/pagemill/pagemill/pkg/pagemill/internalerr"
	"github.com/pagemill/pagemill/pkg/pagemill/store"
)

const maxTopicTokens = 2000

// TextGenerator produces a raw completion for a prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Generator proposes topics for seed keywords and persists the survivors.
type Generator struct {
	Gateway TextGenerator
	Store   store.Store
	Config  config.Provider

	// KeywordDelay spaces out gateway calls between consecutive seed
	// keywords. Zero means no pacing.
	KeywordDelay time.Duration
}

// Result summarizes one topic-generation run.
type Result struct {
	Generated int           `json:"generated"`
	Topics    []store.Topic `json:"topics"`
	Errors    []string      `json:"errors,omitempty"`
}

// GenerateFromSeeds proposes perKeyword topics for every configured seed
// keyword. A failing keyword is recorded and skipped; the run continues with
// the remaining keywords.
func (g *Generator) GenerateFromSeeds(ctx context.Context, perKeyword int) (Result, error) {
	site := g.Config.Site()
	var res Result
	for i, keyword := range site.SeedKeywords {
		if i > 0 {
			if err := wait(ctx, g.KeywordDelay); err != nil {
				return res, err
			}
		}
		added, err := g.GenerateForKeyword(ctx, keyword, perKeyword)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %s", keyword, err.Error()))
			continue
		}
		res.Topics = append(res.Topics, added...)
		res.Generated += len(added)
	}
	return res, nil
}

// GenerateForKeyword proposes count topics for one keyword and stores the ones
// that survive dedup.
func (g *Generator) GenerateForKeyword(ctx context.Context, keyword string, count int) ([]store.Topic, error) {
	site := g.Config.Site()

	raw, err := g.Gateway.Generate(ctx, topicPrompt(site, keyword, count), maxTopicTokens)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", internalerr.ErrUpstream, err.Error())
	}

	titles := ExtractTitles(raw, count)
	if len(titles) == 0 {
		return nil, fmt.Errorf("%w: no usable titles in completion", internalerr.ErrUpstream)
	}

	candidates := make([]store.TopicCandidate, len(titles))
	for i, title := range titles {
		candidates[i] = store.TopicCandidate{
			Title:       title,
			Keywords:    []string{keyword},
			SeedKeyword: keyword,
		}
	}

	added, err := g.Store.AddTopics(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", internalerr.ErrPersistence, err.Error())
	}
	return added, nil
}

func topicPrompt(site config.Site, keyword string, count int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an SEO content strategist for %q, a site about %s.\n", site.SiteName, site.Niche)
	fmt.Fprintf(&b, "Propose %d article topic ideas for the keyword %q.\n", count, keyword)
	fmt.Fprintf(&b, "Write the titles in %s.\n", languageName(site.Language))
	b.WriteString("Rules:\n")
	b.WriteString("- One title per line, no numbering, no quotes.\n")
	b.WriteString("- Each title should be specific enough to carry a full article.\n")
	b.WriteString("- Avoid clickbait; write titles a search engine user would click.\n")
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
