package seo

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/pagemill/pagemill/pkg/pagemill/config"
	"github.com/pagemill/pagemill/pkg/pagemill/store"
)

func seoSite(domain string) config.Site {
	site := config.Default()
	site.SiteName = "Brew Daily"
	site.Domain = domain
	return site
}

func TestSiteURL(t *testing.T) {
	tests := []struct {
		domain string
		want   string
	}{
		{"brewdaily.com", "https://brewdaily.com"},
		{"localhost:8080", "http://localhost:8080"},
		{"127.0.0.1:3000", "http://127.0.0.1:3000"},
		{"https://brewdaily.com/", "https://brewdaily.com"},
	}
	for _, tt := range tests {
		if got := SiteURL(seoSite(tt.domain)); got != tt.want {
			t.Errorf("SiteURL(%q) = %q, want %q", tt.domain, got, tt.want)
		}
	}
}

func TestReplaceVars(t *testing.T) {
	got := ReplaceVars("Articles about {topic} from {siteName}.", map[string]string{
		"topic":    "coffee",
		"siteName": "Brew Daily",
	})
	if got != "Articles about coffee from Brew Daily." {
		t.Errorf("got %q", got)
	}
}

func TestMetaDescriptionFallback(t *testing.T) {
	site := seoSite("brewdaily.com")

	a := store.Article{Meta: store.ArticleMeta{Title: "Coffee Guide", MetaDescription: "Custom."}}
	if got := MetaDescription(site, a); got != "Custom." {
		t.Errorf("got %q", got)
	}

	a.Meta.MetaDescription = ""
	got := MetaDescription(site, a)
	if !strings.Contains(got, "Coffee Guide") || !strings.Contains(got, "Brew Daily") {
		t.Errorf("fallback = %q", got)
	}
}

func TestArticleJSONLD(t *testing.T) {
	site := seoSite("brewdaily.com")
	created := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	a := store.Article{
		Slug:      "coffee-guide",
		Meta:      store.ArticleMeta{Title: "Coffee Guide", MetaDescription: "All about coffee.", Keywords: []string{"coffee"}},
		ImageURL:  "/generated-images/coffee-guide.jpg",
		CreatedAt: created,
	}

	raw, err := ArticleJSONLD(site, a)
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatal(err)
	}
	if doc["@type"] != "Article" || doc["headline"] != "Coffee Guide" {
		t.Errorf("doc = %v", doc)
	}
	if doc["url"] != "https://brewdaily.com/articles/coffee-guide" {
		t.Errorf("url = %v", doc["url"])
	}
	if doc["image"] != "https://brewdaily.com/generated-images/coffee-guide.jpg" {
		t.Errorf("image = %v (relative path not absolutized)", doc["image"])
	}
}

func TestSitemap(t *testing.T) {
	site := seoSite("brewdaily.com")
	created := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	articles := []store.Article{
		{Slug: "coffee-guide", Meta: store.ArticleMeta{Keywords: []string{"coffee", "Brewing Tips"}}, CreatedAt: created},
		{Slug: "tea-guide", Meta: store.ArticleMeta{Keywords: []string{"coffee"}}, CreatedAt: created},
	}

	raw, err := Sitemap(site, articles)
	if err != nil {
		t.Fatal(err)
	}
	out := string(raw)

	for _, want := range []string{
		"https://brewdaily.com/</loc>",
		"https://brewdaily.com/articles</loc>",
		"https://brewdaily.com/articles/coffee-guide</loc>",
		"https://brewdaily.com/articles/tea-guide</loc>",
		"https://brewdaily.com/tag/coffee</loc>",
		"https://brewdaily.com/tag/brewing-tips</loc>",
		"<lastmod>2026-01-15</lastmod>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("sitemap missing %q:\n%s", want, out)
		}
	}

	// The shared "coffee" keyword yields a single tag entry.
	if strings.Count(out, "/tag/coffee</loc>") != 1 {
		t.Error("duplicate tag entries")
	}
}

func TestRobots(t *testing.T) {
	out := string(Robots(seoSite("brewdaily.com")))
	for _, want := range []string{
		"User-agent: *",
		"Disallow: /api/",
		"Sitemap: https://brewdaily.com/sitemap.xml",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("robots.txt missing %q", want)
		}
	}
}
