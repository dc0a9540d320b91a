package llm

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
)

type roundTrip func(*http.Request) *http.Response

func (rt roundTrip) RoundTrip(req *http.Request) (*http.Response, error) {
	return rt(req), nil
}

func TestGenerateSuccess(t *testing.T) {
	client := &Client{
		BaseURL: "https://api.test/v1/chat/completions",
		Model:   "gpt-test",
		APIKey:  "sk-test",
		HTTPClient: &http.Client{
			Transport: roundTrip(func(req *http.Request) *http.Response {
				if got := req.Header.Get("Authorization"); got != "Bearer sk-test" {
					t.Fatalf("Authorization = %q", got)
				}
				body, _ := io.ReadAll(req.Body)
				if !strings.Contains(string(body), `"max_tokens":2000`) {
					t.Fatalf("max_tokens missing from payload: %s", body)
				}
				if !strings.Contains(string(body), "topic ideas") {
					t.Fatalf("prompt missing from payload")
				}
				return &http.Response{
					StatusCode: 200,
					Body: io.NopCloser(strings.NewReader(`{
						"choices":[{"message":{"role":"assistant","content":"1. First idea"}}]
					}`)),
					Header: make(http.Header),
				}
			}),
		},
	}

	out, err := client.Generate(context.Background(), "Give me topic ideas", 2000)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "1. First idea" {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestGenerateAPIError(t *testing.T) {
	client := &Client{
		BaseURL: "https://api.test/v1/chat/completions",
		Model:   "gpt-test",
		HTTPClient: &http.Client{
			Transport: roundTrip(func(req *http.Request) *http.Response {
				return &http.Response{
					StatusCode: 200,
					Body:       io.NopCloser(strings.NewReader(`{"error":{"message":"rate limited"}}`)),
					Header:     make(http.Header),
				}
			}),
		},
	}
	if _, err := client.Generate(context.Background(), "p", 100); err == nil {
		t.Fatal("expected error")
	}
}

func TestGenerateEmptyChoices(t *testing.T) {
	client := &Client{
		BaseURL: "https://api.test/v1/chat/completions",
		Model:   "gpt-test",
		HTTPClient: &http.Client{
			Transport: roundTrip(func(req *http.Request) *http.Response {
				return &http.Response{
					StatusCode: 200,
					Body:       io.NopCloser(strings.NewReader(`{"choices":[]}`)),
					Header:     make(http.Header),
				}
			}),
		},
	}
	if _, err := client.Generate(context.Background(), "p", 100); err == nil {
		t.Fatal("expected error on empty choices")
	}
}

func TestGenerateMissingConfig(t *testing.T) {
	client := &Client{}
	if _, err := client.Generate(context.Background(), "p", 100); err == nil {
		t.Fatal("expected error without base URL and model")
	}
}
