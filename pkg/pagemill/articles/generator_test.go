package articles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/pagemill/pagemill/pkg/pagemill/config"
	"github.com/pagemill/pagemill/pkg/pagemill/internalerr"
	"github.com/pagemill/pagemill/pkg/pagemill/store"
	"github.com/pagemill/pagemill/pkg/pagemill/store/memstore"
)

type fakeGateway struct {
	// respond maps a substring of the prompt (typically the topic title) to
	// either a completion or an error message prefixed with "ERR:".
	respond map[string]string
	calls   int
}

func (f *fakeGateway) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	f.calls++
	for needle, resp := range f.respond {
		if strings.Contains(prompt, needle) {
			if strings.HasPrefix(resp, "ERR:") {
				return "", errors.New(strings.TrimPrefix(resp, "ERR:"))
			}
			return resp, nil
		}
	}
	return "", errors.New("no scripted response")
}

func contentJSON(title string) string {
	return fmt.Sprintf(`{"title":%q,"lead":"Intro.","sections":[{"heading":"Main","level":2,"content":"Body."}],"metaTitle":%q,"metaDescription":"Desc."}`, title, title)
}

func seedTopic(t *testing.T, st store.Store, title string) store.Topic {
	t.Helper()
	added, err := st.AddTopics(context.Background(), []store.TopicCandidate{
		{Title: title, Keywords: []string{"coffee"}, SeedKeyword: "coffee"},
	})
	if err != nil || len(added) != 1 {
		t.Fatalf("seed topic: %v (%d added)", err, len(added))
	}
	return added[0]
}

func newGenerator(st store.Store, gw *fakeGateway) *Generator {
	return &Generator{Gateway: gw, Store: st, Config: config.Static(config.Default())}
}

func TestGenerateFromTopic(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	topic := seedTopic(t, st, "How to Brew Better Coffee")
	gw := &fakeGateway{respond: map[string]string{topic.Title: contentJSON("How to Brew Better Coffee")}}

	a, err := newGenerator(st, gw).GenerateFromTopic(ctx, topic.Slug)
	if err != nil {
		t.Fatal(err)
	}
	if a.Slug != topic.Slug {
		t.Errorf("article slug %q != topic slug %q", a.Slug, topic.Slug)
	}
	if a.Status != store.StatusGenerated {
		t.Errorf("status = %q", a.Status)
	}
	if a.ImageURL != "/generated-images/"+topic.Slug+".jpg" {
		t.Errorf("imageUrl = %q", a.ImageURL)
	}
	if len(a.Meta.Keywords) != 1 || a.Meta.Keywords[0] != "coffee" {
		t.Errorf("keywords = %v", a.Meta.Keywords)
	}
	if a.InternalLinks == nil || a.ExternalLinks == nil {
		t.Error("link slices should be empty, not nil")
	}
	if a.PublishedAt == nil || !a.PublishedAt.Equal(a.CreatedAt) {
		t.Errorf("publishedAt = %v, want set alongside createdAt", a.PublishedAt)
	}

	got, _, _ := st.TopicBySlug(ctx, topic.Slug)
	if got.Status != store.StatusGenerated || got.GeneratedAt == nil {
		t.Errorf("topic after generation: %+v", got)
	}

	if _, ok, _ := st.ArticleBySlug(ctx, topic.Slug); !ok {
		t.Error("article not persisted")
	}
}

func TestGenerateFromTopicGuards(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	gw := &fakeGateway{}
	g := newGenerator(st, gw)

	if _, err := g.GenerateFromTopic(ctx, "missing"); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("missing topic: err = %v", err)
	}

	inProgress := seedTopic(t, st, "A Topic Being Generated Now")
	st.SetTopicStatus(ctx, inProgress.ID, store.StatusGenerating, "")
	if _, err := g.GenerateFromTopic(ctx, inProgress.Slug); !errors.Is(err, internalerr.ErrAlreadyInProgress) {
		t.Errorf("generating topic: err = %v", err)
	}

	done := seedTopic(t, st, "A Topic Already Generated")
	st.SetTopicStatus(ctx, done.ID, store.StatusGenerated, "")
	if _, err := g.GenerateFromTopic(ctx, done.Slug); !errors.Is(err, internalerr.ErrAlreadyGenerated) {
		t.Errorf("generated topic: err = %v", err)
	}

	if gw.calls != 0 {
		t.Errorf("gateway called %d times despite guards", gw.calls)
	}
}

func TestGenerateFromTopicFailureMarksError(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	topic := seedTopic(t, st, "A Topic Whose Generation Fails")
	gw := &fakeGateway{respond: map[string]string{topic.Title: "ERR:model on fire"}}

	_, err := newGenerator(st, gw).GenerateFromTopic(ctx, topic.Slug)
	if !errors.Is(err, internalerr.ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}

	got, _, _ := st.TopicBySlug(ctx, topic.Slug)
	if got.Status != store.StatusError {
		t.Errorf("topic status = %q, want error", got.Status)
	}
	if !strings.Contains(got.Error, "model on fire") {
		t.Errorf("topic error = %q", got.Error)
	}
}

func TestGenerateFromTopicRetryAfterError(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	topic := seedTopic(t, st, "A Topic That Recovers After Error")
	st.SetTopicStatus(ctx, topic.ID, store.StatusError, "earlier failure")

	gw := &fakeGateway{respond: map[string]string{topic.Title: contentJSON(topic.Title)}}
	if _, err := newGenerator(st, gw).GenerateFromTopic(ctx, topic.Slug); err != nil {
		t.Fatalf("retry from error status: %v", err)
	}
}

func TestGenerateFromTopicUnparsableContent(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	topic := seedTopic(t, st, "A Topic With Unparsable Output")
	gw := &fakeGateway{respond: map[string]string{topic.Title: "I refuse to answer in JSON."}}

	_, err := newGenerator(st, gw).GenerateFromTopic(ctx, topic.Slug)
	if !errors.Is(err, internalerr.ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}
	got, _, _ := st.TopicBySlug(ctx, topic.Slug)
	if got.Status != store.StatusError {
		t.Errorf("topic status = %q", got.Status)
	}
}

func TestGenerateBatch(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()

	var slugs []string
	respond := map[string]string{}
	for i := 1; i <= 5; i++ {
		title := fmt.Sprintf("Batch Topic Number %d Here", i)
		topic := seedTopic(t, st, title)
		slugs = append(slugs, topic.Slug)
		if i == 3 {
			respond[title] = "ERR:third one breaks"
		} else {
			respond[title] = contentJSON(title)
		}
	}

	g := newGenerator(st, &fakeGateway{respond: respond})
	res, err := g.GenerateBatch(ctx, slugs, 2)
	if err != nil {
		t.Fatal(err)
	}
	if res.Success != 4 || res.Failed != 1 {
		t.Errorf("result = %+v", res)
	}
	if len(res.Errors) != 1 || !strings.HasPrefix(res.Errors[0], slugs[2]+": ") {
		t.Errorf("errors = %v", res.Errors)
	}

	// The failed topic carries the error, the rest are generated.
	for i, s := range slugs {
		topic, _, _ := st.TopicBySlug(ctx, s)
		want := store.StatusGenerated
		if i == 2 {
			want = store.StatusError
		}
		if topic.Status != want {
			t.Errorf("topic %d status = %q, want %q", i, topic.Status, want)
		}
	}
}
