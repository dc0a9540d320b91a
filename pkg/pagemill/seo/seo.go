// Package seo renders the search-engine surface of the site: canonical URLs,
// meta descriptions, JSON-LD, sitemap and robots.txt.
package seo

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/pagemill/pagemill/pkg/pagemill/config"
	"github.com/pagemill/pagemill/pkg/pagemill/slug"
	"github.com/pagemill/pagemill/pkg/pagemill/store"
)

// SiteURL returns the site's base URL without a trailing slash. Local domains
// stay on http so development links work.
func SiteURL(site config.Site) string {
	domain := strings.TrimSuffix(site.Domain, "/")
	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return domain
	}
	scheme := "https"
	if strings.HasPrefix(domain, "localhost") || strings.HasPrefix(domain, "127.0.0.1") {
		scheme = "http"
	}
	return scheme + "://" + domain
}

// ReplaceVars substitutes {key} placeholders in a metadata template.
func ReplaceVars(template string, vars map[string]string) string {
	out := template
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}

// MetaDescription returns the article's meta description, falling back to the
// site default template.
func MetaDescription(site config.Site, a store.Article) string {
	if a.Meta.MetaDescription != "" {
		return a.Meta.MetaDescription
	}
	return ReplaceVars(site.SEO.DefaultMetaDescription, map[string]string{
		"siteName": site.SiteName,
		"topic":    a.Meta.Title,
	})
}

// ArticleJSONLD renders the schema.org Article structured data block.
func ArticleJSONLD(site config.Site, a store.Article) ([]byte, error) {
	base := SiteURL(site)
	doc := map[string]interface{}{
		"@context":    "https://schema.org",
		"@type":       "Article",
		"headline":    a.Meta.Title,
		"description": MetaDescription(site, a),
		"url":         base + "/articles/" + a.Slug,
		"publisher": map[string]interface{}{
			"@type": "Organization",
			"name":  site.SiteName,
			"url":   base,
		},
		"datePublished": a.CreatedAt.Format(time.RFC3339),
	}
	if a.ImageURL != "" {
		img := a.ImageURL
		if strings.HasPrefix(img, "/") {
			img = base + img
		}
		doc["image"] = img
	}
	if a.UpdatedAt != nil {
		doc["dateModified"] = a.UpdatedAt.Format(time.RFC3339)
	}
	if len(a.Meta.Keywords) > 0 {
		doc["keywords"] = strings.Join(a.Meta.Keywords, ", ")
	}
	return json.Marshal(doc)
}

type urlSet struct {
	XMLName xml.Name   `xml:"urlset"`
	XMLNS   string     `xml:"xmlns,attr"`
	URLs    []urlEntry `xml:"url"`
}

type urlEntry struct {
	Loc      string `xml:"loc"`
	LastMod  string `xml:"lastmod,omitempty"`
	Priority string `xml:"priority,omitempty"`
}

// Sitemap renders sitemap.xml for the home page, the article index, every
// published-or-generated article and one tag page per distinct keyword.
func Sitemap(site config.Site, articles []store.Article) ([]byte, error) {
	base := SiteURL(site)
	set := urlSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs: []urlEntry{
			{Loc: base + "/", Priority: "1.0"},
			{Loc: base + "/articles", Priority: "0.8"},
		},
	}

	seenTags := map[string]bool{}
	for _, a := range articles {
		entry := urlEntry{Loc: base + "/articles/" + a.Slug, Priority: "0.7"}
		if a.UpdatedAt != nil {
			entry.LastMod = a.UpdatedAt.Format("2006-01-02")
		} else {
			entry.LastMod = a.CreatedAt.Format("2006-01-02")
		}
		set.URLs = append(set.URLs, entry)

		for _, kw := range a.Meta.Keywords {
			tag := slug.Make(kw)
			if tag == "" || seenTags[tag] {
				continue
			}
			seenTags[tag] = true
			set.URLs = append(set.URLs, urlEntry{Loc: base + "/tag/" + tag, Priority: "0.5"})
		}
	}

	body, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}

// Robots renders robots.txt pointing crawlers at the sitemap.
func Robots(site config.Site) []byte {
	var b strings.Builder
	b.WriteString("User-agent: *\n")
	b.WriteString("Allow: /\n")
	b.WriteString("Disallow: /admin\n")
	b.WriteString("Disallow: /api/\n\n")
	fmt.Fprintf(&b, "Sitemap: %s/sitemap.xml\n", SiteURL(site))
	return []byte(b.String())
}
