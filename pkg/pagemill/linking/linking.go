// Package linking computes internal cross-links between articles by keyword
// overlap and injects allow-listed external links.
package linking

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/pagemill/pagemill/pkg/pagemill/config"
	"github.com/pagemill/pagemill/pkg/pagemill/store"
)

// Engine scores link candidates and writes the chosen link sets back to the
// store.
type Engine struct {
	Store  store.Store
	Config config.Provider

	rng *rand.Rand
}

// Summary tallies one UpdateAllArticleLinks run.
type Summary struct {
	Updated int      `json:"updated"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// New creates a linking engine. A nil rng gets a time-seeded one; tests pass a
// fixed seed for determinism.
func New(st store.Store, cfg config.Provider, rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{Store: st, Config: cfg, rng: rng}
}

// UpdateArticleLinks recomputes both link sets for one article. It reports
// false when the article does not exist.
func (e *Engine) UpdateArticleLinks(ctx context.Context, slug string) (bool, error) {
	article, ok, err := e.Store.ArticleBySlug(ctx, slug)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	eligible, err := e.Store.ArticlesByStatus(ctx, store.StatusGenerated, store.StatusPublished)
	if err != nil {
		return false, err
	}

	site := e.Config.Site()
	internal := e.internalLinks(site, article, eligible)
	external := e.externalLinks(site)

	return e.Store.UpdateArticleLinks(ctx, slug, internal, external, time.Now().UTC())
}

// UpdateAllArticleLinks recomputes links for every generated and published
// article. Per-article failures are tallied and the run continues.
func (e *Engine) UpdateAllArticleLinks(ctx context.Context) (Summary, error) {
	all, err := e.Store.ArticlesByStatus(ctx, store.StatusGenerated, store.StatusPublished)
	if err != nil {
		return Summary{}, err
	}

	var s Summary
	for _, a := range all {
		found, err := e.UpdateArticleLinks(ctx, a.Slug)
		if err != nil {
			s.Failed++
			s.Errors = append(s.Errors, fmt.Sprintf("%s: %s", a.Slug, err.Error()))
			continue
		}
		if !found {
			// Deleted between the listing and the update.
			s.Failed++
			s.Errors = append(s.Errors, fmt.Sprintf("%s: article no longer exists", a.Slug))
			continue
		}
		s.Updated++
	}
	return s, nil
}

// internalLinks picks link targets for the article: candidates sharing no
// keywords are skipped, the rest are scored by shared keyword count, and the
// target count is drawn at random from the configured range clamped to what is
// actually available.
func (e *Engine) internalLinks(site config.Site, article store.Article, eligible []store.Article) []store.InternalLink {
	availMax := len(eligible) - 1 // everything except the article itself
	if availMax < 1 {
		return []store.InternalLink{}
	}

	lo := site.Content.MinInternalLinks
	hi := site.Content.MaxInternalLinks
	if lo > availMax {
		lo = availMax
	}
	if hi > availMax {
		hi = availMax
	}
	if hi < lo {
		hi = lo
	}
	target := lo + e.rng.Intn(hi-lo+1)
	if target <= 0 {
		return []store.InternalLink{}
	}

	own := keywordSet(article.Meta.Keywords)
	type scored struct {
		a     store.Article
		score int
	}
	var candidates []scored
	for _, other := range eligible {
		if other.Slug == article.Slug {
			continue
		}
		score := sharedKeywords(own, other.Meta.Keywords)
		if score == 0 {
			continue
		}
		candidates = append(candidates, scored{a: other, score: score})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if target > len(candidates) {
		target = len(candidates)
	}
	links := make([]store.InternalLink, 0, target)
	for _, c := range candidates[:target] {
		links = append(links, store.InternalLink{
			Text:        c.a.Meta.Title,
			Slug:        c.a.Slug,
			TargetTitle: c.a.Meta.Title,
		})
	}
	return links
}

// externalLinks samples allow-list entries with replacement, one random anchor
// per pick.
func (e *Engine) externalLinks(site config.Site) []store.ExternalLink {
	ext := site.ExternalLinks
	if !ext.Enabled || len(ext.AllowedDomains) == 0 || ext.MaxPerArticle <= 0 {
		return []store.ExternalLink{}
	}

	links := make([]store.ExternalLink, 0, ext.MaxPerArticle)
	for i := 0; i < ext.MaxPerArticle; i++ {
		entry := ext.AllowedDomains[e.rng.Intn(len(ext.AllowedDomains))]
		text := entry.Domain
		if len(entry.Anchors) > 0 {
			text = entry.Anchors[e.rng.Intn(len(entry.Anchors))]
		}
		links = append(links, store.ExternalLink{
			Text:   text,
			URL:    "https://" + entry.Domain,
			Domain: entry.Domain,
		})
	}
	return links
}

func keywordSet(keywords []string) map[string]bool {
	set := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		set[strings.ToLower(k)] = true
	}
	return set
}

func sharedKeywords(own map[string]bool, other []string) int {
	n := 0
	for _, k := range other {
		if own[strings.ToLower(k)] {
			n++
		}
	}
	return n
}
