// Package images resolves cover images for articles, preferring Unsplash
// search and falling back to a generated placeholder.
package images

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pagemill/pagemill/pkg/pagemill"
)

const (
	defaultBaseURL = "https://api.unsplash.com"
	coverWidth     = 1200
	coverHeight    = 630
)

// Client resolves images from the Unsplash search API. A zero AccessKey makes
// every lookup fall through to the placeholder.
type Client struct {
	AccessKey string
	BaseURL   string

	HTTPClient *http.Client
}

var _ pagemill.ImageResolver = (*Client)(nil)

type searchResponse struct {
	Results []struct {
		URLs struct {
			Raw string `json:"raw"`
		} `json:"urls"`
		AltDescription string `json:"alt_description"`
	} `json:"results"`
}

// Resolve finds a cover image for the article. The first keyword drives the
// search; the title is the fallback query. Any upstream failure degrades to a
// placeholder instead of an error, so image resolution never blocks publishing.
func (c *Client) Resolve(ctx context.Context, title string, keywords []string) (pagemill.Image, error) {
	query := title
	if len(keywords) > 0 && keywords[0] != "" {
		query = keywords[0]
	}

	if c.AccessKey != "" {
		img, err := c.search(ctx, query, title)
		if err == nil {
			return img, nil
		}
	}
	return Placeholder(title, coverWidth, coverHeight), nil
}

func (c *Client) search(ctx context.Context, query, title string) (pagemill.Image, error) {
	base := c.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	endpoint := fmt.Sprintf("%s/search/photos?query=%s&per_page=1&orientation=landscape",
		base, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return pagemill.Image{}, err
	}
	req.Header.Set("Authorization", "Client-ID "+c.AccessKey)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return pagemill.Image{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return pagemill.Image{}, fmt.Errorf("unsplash: status %d", resp.StatusCode)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return pagemill.Image{}, err
	}
	if len(payload.Results) == 0 {
		return pagemill.Image{}, fmt.Errorf("unsplash: no results for %q", query)
	}

	first := payload.Results[0]
	alt := first.AltDescription
	if alt == "" {
		alt = title
	}
	return pagemill.Image{
		URL:    fmt.Sprintf("%s&w=%d&h=%d&fit=crop", first.URLs.Raw, coverWidth, coverHeight),
		Alt:    alt,
		Source: "unsplash",
	}, nil
}

// Placeholder builds a placehold.co URL with the title as overlay text,
// truncated to keep the URL sane.
func Placeholder(title string, width, height int) pagemill.Image {
	text := []rune(title)
	if len(text) > 50 {
		text = text[:50]
	}
	return pagemill.Image{
		URL: fmt.Sprintf("https://placehold.co/%dx%d/2563eb/white?text=%s",
			width, height, url.QueryEscape(string(text))),
		Alt:    title,
		Source: "placeholder",
	}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 15 * time.Second}
}
