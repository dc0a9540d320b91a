package articles

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pagemill/pagemill/pkg/pagemill/store"
)

// Content is the structured article payload expected from the model.
type Content struct {
	Title           string          `json:"title"`
	Lead            string          `json:"lead"`
	Sections        []store.Section `json:"sections"`
	FAQ             []store.FAQItem `json:"faq"`
	MetaTitle       string          `json:"metaTitle"`
	MetaDescription string          `json:"metaDescription"`
}

// ParseContent extracts the article JSON from a raw completion. Models wrap
// JSON in markdown fences and commentary, so the parse takes the span between
// the first and last brace after stripping fences, then repairs fields the
// model commonly gets wrong.
func ParseContent(raw string) (Content, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.ReplaceAll(text, "```json", "")
		text = strings.ReplaceAll(text, "```", "")
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Content{}, fmt.Errorf("no JSON object in completion")
	}

	var c Content
	if err := json.Unmarshal([]byte(text[start:end+1]), &c); err != nil {
		return Content{}, fmt.Errorf("decode article content: %w", err)
	}

	if c.Title == "" {
		return Content{}, fmt.Errorf("article content missing title")
	}
	if len(c.Sections) == 0 {
		return Content{}, fmt.Errorf("article content missing sections")
	}

	for i := range c.Sections {
		if c.Sections[i].Level != 2 && c.Sections[i].Level != 3 {
			c.Sections[i].Level = 2
		}
	}
	if c.MetaTitle == "" {
		c.MetaTitle = c.Title
	}
	return c, nil
}
