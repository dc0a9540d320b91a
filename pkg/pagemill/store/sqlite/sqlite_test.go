package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pagemill/pagemill/pkg/pagemill/store"
)

func openTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTopicRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	added, err := s.AddTopics(ctx, []store.TopicCandidate{
		{Title: "How to Brew Coffee at Home", Keywords: []string{"coffee", "brewing"}, SeedKeyword: "coffee"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(added) != 1 {
		t.Fatalf("added %d topics, want 1", len(added))
	}

	got, ok, err := s.TopicBySlug(ctx, "how-to-brew-coffee-at-home")
	if err != nil || !ok {
		t.Fatalf("TopicBySlug: ok=%v err=%v", ok, err)
	}
	if got.Title != "How to Brew Coffee at Home" || got.Status != store.StatusPending {
		t.Errorf("topic = %+v", got)
	}
	if len(got.Keywords) != 2 || got.Keywords[0] != "coffee" {
		t.Errorf("keywords = %v", got.Keywords)
	}
	if got.GeneratedAt != nil {
		t.Error("generatedAt should start nil")
	}

	byID, ok, _ := s.TopicByID(ctx, got.ID)
	if !ok || byID.Slug != got.Slug {
		t.Errorf("TopicByID mismatch: %+v", byID)
	}
}

func TestTopicDedupPersisted(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if _, err := s.AddTopics(ctx, []store.TopicCandidate{{Title: "A Coffee Topic Here"}}); err != nil {
		t.Fatal(err)
	}
	added, err := s.AddTopics(ctx, []store.TopicCandidate{
		{Title: "a coffee topic here"},
		{Title: "A Coffee; Topic Here"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(added) != 1 {
		t.Fatalf("added %d topics, want 1 (lowercased dup dropped)", len(added))
	}
	if added[0].Slug != "a-coffee-topic-here-1" {
		t.Errorf("slug = %q, want suffixed", added[0].Slug)
	}
}

func TestTransitionTopicRace(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	added, _ := s.AddTopics(ctx, []store.TopicCandidate{{Title: "Concurrent Coffee Claims"}})
	slug := added[0].Slug

	won, err := s.TransitionTopic(ctx, slug, store.StatusGenerating,
		store.StatusPending, store.StatusError)
	if err != nil || !won {
		t.Fatalf("first claim: won=%v err=%v", won, err)
	}
	won, err = s.TransitionTopic(ctx, slug, store.StatusGenerating,
		store.StatusPending, store.StatusError)
	if err != nil {
		t.Fatal(err)
	}
	if won {
		t.Fatal("second claim should lose")
	}
}

func TestSetTopicStatus(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	added, _ := s.AddTopics(ctx, []store.TopicCandidate{{Title: "Status Stamping Topic"}})
	id := added[0].ID

	if err := s.SetTopicStatus(ctx, id, store.StatusError, "model timeout"); err != nil {
		t.Fatal(err)
	}
	got, _, _ := s.TopicByID(ctx, id)
	if got.Status != store.StatusError || got.Error != "model timeout" {
		t.Errorf("after error: %+v", got)
	}

	if err := s.SetTopicStatus(ctx, id, store.StatusGenerated, ""); err != nil {
		t.Fatal(err)
	}
	got, _, _ = s.TopicByID(ctx, id)
	if got.GeneratedAt == nil {
		t.Error("generatedAt not stamped on generated")
	}
}

func TestTopicsByStatusLimit(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	s.AddTopics(ctx, []store.TopicCandidate{
		{Title: "First Pending Topic Here"},
		{Title: "Second Pending Topic Here"},
		{Title: "Third Pending Topic Here"},
	})

	got, err := s.TopicsByStatus(ctx, store.StatusPending, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d topics, want 2", len(got))
	}
	if got[0].Title != "First Pending Topic Here" {
		t.Errorf("order not oldest-first: %q", got[0].Title)
	}
}

func TestArticleRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	now := time.Now().UTC().Truncate(time.Millisecond)
	a := store.Article{
		ID:     "01HTEST",
		Slug:   "coffee-guide",
		Status: store.StatusGenerated,
		Meta: store.ArticleMeta{
			Title:           "Coffee Guide",
			MetaTitle:       "Coffee Guide | Site",
			MetaDescription: "Everything about coffee.",
			Keywords:        []string{"coffee", "guide"},
		},
		Lead: "Coffee is good.",
		Sections: []store.Section{
			{Heading: "Beans", Level: 2, Content: "Buy fresh beans."},
			{Heading: "Grind", Level: 3, Content: "Grind before brewing."},
		},
		FAQ:           []store.FAQItem{{Question: "Why?", Answer: "Because."}},
		InternalLinks: []store.InternalLink{},
		ExternalLinks: []store.ExternalLink{},
		ImageURL:      "/generated-images/coffee-guide.jpg",
		ImageAlt:      "Coffee Guide",
		CreatedAt:     now,
	}
	if err := s.InsertArticle(ctx, a); err != nil {
		t.Fatal(err)
	}

	got, ok, err := s.ArticleBySlug(ctx, "coffee-guide")
	if err != nil || !ok {
		t.Fatalf("ArticleBySlug: ok=%v err=%v", ok, err)
	}
	if got.Meta.MetaTitle != a.Meta.MetaTitle || len(got.Sections) != 2 || len(got.FAQ) != 1 {
		t.Errorf("article = %+v", got)
	}
	if got.Sections[1].Level != 3 {
		t.Errorf("section level = %d, want 3", got.Sections[1].Level)
	}
	if !got.CreatedAt.Equal(now) {
		t.Errorf("createdAt = %v, want %v", got.CreatedAt, now)
	}
	if got.PublishedAt != nil || got.UpdatedAt != nil {
		t.Error("nullable timestamps should start nil")
	}
}

func TestArticleUpdates(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	s.InsertArticle(ctx, store.Article{
		ID: "a1", Slug: "s1", Status: store.StatusGenerated, CreatedAt: time.Now().UTC(),
	})

	found, err := s.UpdateArticleLinks(ctx, "s1",
		[]store.InternalLink{{Text: "Other", Slug: "s2", TargetTitle: "Other"}},
		[]store.ExternalLink{{Text: "Ext", URL: "https://example.com", Domain: "example.com"}},
		time.Now().UTC())
	if err != nil || !found {
		t.Fatalf("UpdateArticleLinks: found=%v err=%v", found, err)
	}
	got, _, _ := s.ArticleBySlug(ctx, "s1")
	if len(got.InternalLinks) != 1 || len(got.ExternalLinks) != 1 || got.UpdatedAt == nil {
		t.Errorf("links not persisted: %+v", got)
	}
	if found, _ := s.UpdateArticleLinks(ctx, "missing", nil, nil, time.Now()); found {
		t.Error("update on missing slug reported found")
	}

	if found, _ := s.UpdateArticleImage(ctx, "s1", "https://img.test/a.jpg", "Alt"); !found {
		t.Fatal("image update not found")
	}
	got, _, _ = s.ArticleBySlug(ctx, "s1")
	if got.ImageURL != "https://img.test/a.jpg" {
		t.Errorf("imageUrl = %q", got.ImageURL)
	}

	if err := s.SetArticleStatus(ctx, "a1", store.StatusPublished); err != nil {
		t.Fatal(err)
	}
	got, _, _ = s.ArticleBySlug(ctx, "s1")
	if got.Status != store.StatusPublished || got.PublishedAt == nil {
		t.Errorf("publish not stamped: %+v", got)
	}

	deleted, _ := s.DeleteArticle(ctx, "s1")
	if !deleted {
		t.Fatal("delete reported not found")
	}
	if deleted, _ := s.DeleteArticle(ctx, "s1"); deleted {
		t.Fatal("second delete reported found")
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	s.AddTopics(ctx, []store.TopicCandidate{
		{Title: "Stats Topic Number One"},
		{Title: "Stats Topic Number Two"},
	})
	tc, err := s.TopicStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if tc.Total != 2 || tc.Pending != 2 {
		t.Errorf("topic stats = %+v", tc)
	}

	s.InsertArticle(ctx, store.Article{ID: "a1", Slug: "s1", Status: store.StatusGenerated, CreatedAt: time.Now().UTC()})
	s.InsertArticle(ctx, store.Article{ID: "a2", Slug: "s2", Status: store.StatusPublished, CreatedAt: time.Now().UTC()})
	ac, _ := s.ArticleStats(ctx)
	if ac.Total != 2 || ac.Generated != 1 || ac.Published != 1 {
		t.Errorf("article stats = %+v", ac)
	}

	listed, _ := s.ArticlesByStatus(ctx, store.StatusGenerated, store.StatusPublished)
	if len(listed) != 2 {
		t.Errorf("ArticlesByStatus returned %d", len(listed))
	}
}
