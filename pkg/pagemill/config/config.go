// Package config loads and validates the site configuration that drives topic
// generation, article generation, linking and SEO output.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pagemill/pagemill/pkg/pagemill/internalerr"
)

const (
	llmAPIKeyEnv      = "PAGEMILL_LLM_API_KEY"
	llmBaseURLEnv     = "PAGEMILL_LLM_BASE_URL"
	llmModelEnv       = "PAGEMILL_LLM_MODEL"
	unsplashAccessEnv = "UNSPLASH_ACCESS_KEY"
)

// Duration wraps time.Duration so YAML values can be written as "1s" or "500ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"2s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Site is the full site configuration.
type Site struct {
	SiteName      string        `yaml:"siteName"`
	Domain        string        `yaml:"domain"`
	Language      string        `yaml:"language"`
	Niche         string        `yaml:"niche"`
	SeedKeywords  []string      `yaml:"seedKeywords"`
	Content       Content       `yaml:"content"`
	ExternalLinks ExternalLinks `yaml:"externalLinks"`
	SEO           SEO           `yaml:"seo"`
	Generation    Generation    `yaml:"generation"`
	LLM           LLM           `yaml:"llm"`
	Images        Images        `yaml:"images"`
}

// Content controls article shape and internal linking thresholds.
type Content struct {
	ArticleLength    string `yaml:"articleLength"` // short | medium | long
	WritingStyle     string `yaml:"writingStyle"`
	GenerateFAQ      bool   `yaml:"generateFaq"`
	FAQQuestionCount int    `yaml:"faqQuestionsCount"`
	MinInternalLinks int    `yaml:"minInternalLinks"`
	MaxInternalLinks int    `yaml:"maxInternalLinks"`
}

// ExternalLinks configures the allow-listed external link table.
type ExternalLinks struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedDomains []Domain `yaml:"allowedDomains"`
	MaxPerArticle  int      `yaml:"maxExternalLinksPerArticle"`
}

// Domain is one allow-list entry: a domain with its pre-approved anchor texts.
type Domain struct {
	Domain  string   `yaml:"domain"`
	Anchors []string `yaml:"anchors"`
}

// SEO holds site-level metadata defaults.
type SEO struct {
	DefaultMetaTitle       string `yaml:"defaultMetaTitle"`
	DefaultMetaDescription string `yaml:"defaultMetaDescription"`
	OGImageWidth           int    `yaml:"ogImageWidth"`
	OGImageHeight          int    `yaml:"ogImageHeight"`
	TwitterCard            string `yaml:"twitterCard"`
}

// Generation paces and sizes the generation pipeline.
type Generation struct {
	BatchSize        int      `yaml:"batchSize"`
	TopicsPerKeyword int      `yaml:"topicsPerKeyword"`
	KeywordDelay     Duration `yaml:"keywordDelay"`
	ArticleCooldown  Duration `yaml:"articleCooldown"`
}

// LLM points at an OpenAI-compatible completion endpoint.
type LLM struct {
	BaseURL string `yaml:"baseUrl"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"apiKey"`
}

// Images configures the image-resolution collaborator.
type Images struct {
	Provider          string `yaml:"provider"` // unsplash | placeholder
	UnsplashAccessKey string `yaml:"unsplashAccessKey"`
}

// Default returns a configuration with workable defaults; Load layers the YAML
// file and environment overrides on top of it.
func Default() Site {
	return Site{
		SiteName: "Pagemill",
		Domain:   "localhost:8080",
		Language: "en",
		Niche:    "technology",
		Content: Content{
			ArticleLength:    "medium",
			WritingStyle:     "professional",
			GenerateFAQ:      true,
			FAQQuestionCount: 3,
			MinInternalLinks: 2,
			MaxInternalLinks: 5,
		},
		ExternalLinks: ExternalLinks{
			Enabled:       false,
			MaxPerArticle: 2,
		},
		SEO: SEO{
			DefaultMetaTitle:       "{siteName}",
			DefaultMetaDescription: "Articles about {topic} from {siteName}.",
			OGImageWidth:           1200,
			OGImageHeight:          630,
			TwitterCard:            "summary_large_image",
		},
		Generation: Generation{
			BatchSize:        3,
			TopicsPerKeyword: 3,
			KeywordDelay:     Duration(time.Second),
			ArticleCooldown:  Duration(2 * time.Second),
		},
		LLM: LLM{
			BaseURL: "https://api.openai.com/v1/chat/completions",
			Model:   "gpt-4o-mini",
		},
		Images: Images{Provider: "placeholder"},
	}
}

// Load reads a YAML site configuration, applies environment overrides for
// secrets, and validates the result.
func Load(path string) (Site, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Site{}, fmt.Errorf("read config: %w", err)
	}

	site := Default()
	if err := yaml.Unmarshal(data, &site); err != nil {
		return Site{}, fmt.Errorf("parse %s: %w", path, err)
	}
	site.applyEnv()

	if err := site.Validate(); err != nil {
		return Site{}, err
	}
	return site, nil
}

func (s *Site) applyEnv() {
	if v := os.Getenv(llmAPIKeyEnv); v != "" {
		s.LLM.APIKey = v
	}
	if v := os.Getenv(llmBaseURLEnv); v != "" {
		s.LLM.BaseURL = v
	}
	if v := os.Getenv(llmModelEnv); v != "" {
		s.LLM.Model = v
	}
	if v := os.Getenv(unsplashAccessEnv); v != "" {
		s.Images.UnsplashAccessKey = v
	}
}

// Validate checks the invariants the pipeline relies on.
func (s Site) Validate() error {
	if s.SiteName == "" || s.Domain == "" {
		return fmt.Errorf("%w: siteName and domain are required", internalerr.ErrInvalidConfig)
	}
	if s.Content.MinInternalLinks < 0 || s.Content.MaxInternalLinks < s.Content.MinInternalLinks {
		return fmt.Errorf("%w: internal link bounds min=%d max=%d", internalerr.ErrInvalidConfig,
			s.Content.MinInternalLinks, s.Content.MaxInternalLinks)
	}
	if s.Content.GenerateFAQ && s.Content.FAQQuestionCount <= 0 {
		return fmt.Errorf("%w: faqQuestionsCount must be positive when generateFaq is on", internalerr.ErrInvalidConfig)
	}
	if s.ExternalLinks.Enabled && s.ExternalLinks.MaxPerArticle <= 0 {
		return fmt.Errorf("%w: maxExternalLinksPerArticle must be positive when external links are on", internalerr.ErrInvalidConfig)
	}
	for _, d := range s.ExternalLinks.AllowedDomains {
		if d.Domain == "" {
			return fmt.Errorf("%w: allow-listed domain entry without a domain", internalerr.ErrInvalidConfig)
		}
	}
	return nil
}

// Provider hands out configuration snapshots. Operations read configuration
// through a Provider instead of a process-wide singleton so tests can inject
// fixtures and servers can hot-reload.
type Provider interface {
	Site() Site
}

type staticProvider struct{ site Site }

func (p staticProvider) Site() Site { return p.site }

// Static wraps a fixed configuration value in a Provider.
func Static(site Site) Provider { return staticProvider{site: site} }
