package articles

import (
	"strings"
	"testing"
)

func TestParseContent(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
		check   func(t *testing.T, c Content)
	}{
		{
			name: "plain JSON",
			raw:  `{"title":"Coffee Guide","lead":"Intro.","sections":[{"heading":"Beans","level":2,"content":"Buy fresh."}],"metaTitle":"Coffee Guide | Site","metaDescription":"All about coffee."}`,
			check: func(t *testing.T, c Content) {
				if c.Title != "Coffee Guide" || len(c.Sections) != 1 {
					t.Errorf("content = %+v", c)
				}
			},
		},
		{
			name: "fenced with trailing prose",
			raw: "Here is your article:\n```json\n" +
				`{"title":"Coffee Guide","lead":"Intro.","sections":[{"heading":"Beans","level":2,"content":"Buy fresh."}]}` +
				"\n```\nLet me know if you want changes!",
			check: func(t *testing.T, c Content) {
				if c.Title != "Coffee Guide" {
					t.Errorf("title = %q", c.Title)
				}
			},
		},
		{
			name: "bad section level repaired",
			raw:  `{"title":"Coffee Guide","sections":[{"heading":"Beans","level":7,"content":"x"},{"heading":"Grind","level":3,"content":"y"}]}`,
			check: func(t *testing.T, c Content) {
				if c.Sections[0].Level != 2 || c.Sections[1].Level != 3 {
					t.Errorf("levels = %d, %d", c.Sections[0].Level, c.Sections[1].Level)
				}
			},
		},
		{
			name: "missing metaTitle falls back to title",
			raw:  `{"title":"Coffee Guide","sections":[{"heading":"Beans","level":2,"content":"x"}]}`,
			check: func(t *testing.T, c Content) {
				if c.MetaTitle != "Coffee Guide" {
					t.Errorf("metaTitle = %q", c.MetaTitle)
				}
			},
		},
		{name: "no JSON at all", raw: "Sorry, I cannot do that.", wantErr: true},
		{name: "malformed JSON", raw: `{"title": "Coffee`, wantErr: true},
		{name: "missing title", raw: `{"sections":[{"heading":"Beans","level":2,"content":"x"}]}`, wantErr: true},
		{name: "missing sections", raw: `{"title":"Coffee Guide"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ParseContent(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			tt.check(t, c)
		})
	}
}

func TestParseContentKeepsBracesInBody(t *testing.T) {
	raw := "```json\n" +
		`{"title":"Go Templates Explained","sections":[{"heading":"Syntax","level":2,"content":"Use {{ and }} delimiters."}]}` +
		"\n```"
	c, err := ParseContent(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(c.Sections[0].Content, "{{") {
		t.Errorf("body braces lost: %q", c.Sections[0].Content)
	}
}
