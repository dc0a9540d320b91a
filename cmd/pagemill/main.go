// Command pagemill drives the content pipeline from the terminal: topic
// generation, article generation, linking and housekeeping against a shared
// SQLite database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/pagemill/pagemill/internal/images"
	"github.com/pagemill/pagemill/internal/llm"
	"github.com/pagemill/pagemill/pkg/pagemill"
	"github.com/pagemill/pagemill/pkg/pagemill/config"
	"github.com/pagemill/pagemill/pkg/pagemill/store"
	"github.com/pagemill/pagemill/pkg/pagemill/store/sqlite"
	"github.com/pagemill/pagemill/pkg/pagemill/topics"
)

const usage = `Usage: pagemill <command> [flags]

Commands:
  topics-generate    propose topics for the configured seed keywords
  topics-list        list topics, optionally filtered by status
  articles-generate  generate articles for pending topics
  articles-list      list generated and published articles
  links-update       recompute internal and external links
  topic-reset        put an errored topic back to pending
  article-delete     delete an article by slug
  stats              show topic and article counts per status
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]
	ctx := context.Background()

	switch cmd {
	case "topics-generate":
		runTopicsGenerate(ctx, args)
	case "topics-list":
		runTopicsList(ctx, args)
	case "articles-generate":
		runArticlesGenerate(ctx, args)
	case "articles-list":
		runArticlesList(ctx, args)
	case "links-update":
		runLinksUpdate(ctx, args)
	case "topic-reset":
		runTopicReset(ctx, args)
	case "article-delete":
		runArticleDelete(ctx, args)
	case "stats":
		runStats(ctx, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
}

func commonFlags(fs *flag.FlagSet) (configPath, dbPath *string) {
	configPath = fs.String("config", "site.yaml", "Path to site configuration")
	dbPath = fs.String("db", "pagemill.db", "Path to SQLite database")
	return
}

func openPortal(ctx context.Context, configPath, dbPath string) (*pagemill.Portal, store.Store) {
	site, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	st, err := sqlite.Open(ctx, dbPath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}

	portal := pagemill.New(pagemill.Options{
		Store: st,
		Gateway: &llm.Client{
			BaseURL: site.LLM.BaseURL,
			APIKey:  site.LLM.APIKey,
			Model:   site.LLM.Model,
		},
		Config: config.Static(site),
		Images: &images.Client{AccessKey: site.Images.UnsplashAccessKey},
		Rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	})
	return portal, st
}

func runTopicsGenerate(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("topics-generate", flag.ExitOnError)
	configPath, dbPath := commonFlags(fs)
	perKeyword := fs.Int("per-keyword", 0, "Topics per seed keyword (default from config)")
	keyword := fs.String("keyword", "", "Generate for one keyword instead of the configured seeds")
	fs.Parse(args)

	portal, st := openPortal(ctx, *configPath, *dbPath)
	defer st.Close()

	n := *perKeyword
	if n <= 0 {
		n = portal.Config.Site().Generation.TopicsPerKeyword
	}

	var (
		added  []store.Topic
		errs   []string
		failed error
	)
	if *keyword != "" {
		added, failed = portal.Topics.GenerateForKeyword(ctx, *keyword, n)
	} else {
		var res topics.Result
		res, failed = portal.Topics.GenerateFromSeeds(ctx, n)
		added, errs = res.Topics, res.Errors
	}
	if failed != nil {
		log.Fatalf("generate topics: %v", failed)
	}
	for _, e := range errs {
		log.Printf("keyword failed: %s", e)
	}
	fmt.Printf("added %d topics\n", len(added))
	for _, t := range added {
		fmt.Printf("  %s  %s\n", t.Slug, t.Title)
	}
}

func runTopicsList(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("topics-list", flag.ExitOnError)
	configPath, dbPath := commonFlags(fs)
	status := fs.String("status", "", "Filter by status (pending|generating|generated|published|error)")
	fs.Parse(args)

	_, st := openPortal(ctx, *configPath, *dbPath)
	defer st.Close()

	var (
		topics []store.Topic
		err    error
	)
	if *status != "" {
		s := store.Status(*status)
		if !s.Valid() {
			log.Fatalf("unknown status %q", *status)
		}
		topics, err = st.TopicsByStatus(ctx, s, 0)
	} else {
		topics, err = st.AllTopics(ctx)
	}
	if err != nil {
		log.Fatalf("list topics: %v", err)
	}

	rows := make([][]string, 0, len(topics))
	for _, t := range topics {
		rows = append(rows, []string{t.Slug, string(t.Status), t.SeedKeyword, t.Title})
	}
	printTable([]string{"SLUG", "STATUS", "SEED", "TITLE"}, rows)
}

func runArticlesGenerate(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("articles-generate", flag.ExitOnError)
	configPath, dbPath := commonFlags(fs)
	slug := fs.String("slug", "", "Generate for one topic slug instead of the pending queue")
	count := fs.Int("count", 0, "Pending topics to pick up (default from config)")
	fs.Parse(args)

	portal, st := openPortal(ctx, *configPath, *dbPath)
	defer st.Close()

	if *slug != "" {
		a, err := portal.Articles.GenerateFromTopic(ctx, *slug)
		if err != nil {
			log.Fatalf("generate article: %v", err)
		}
		fmt.Printf("generated %s (%d sections)\n", a.Slug, len(a.Sections))
		return
	}

	gen := portal.Config.Site().Generation
	n := *count
	if n <= 0 {
		n = gen.BatchSize
	}
	res, err := portal.GeneratePendingArticles(ctx, n, gen.BatchSize)
	if err != nil {
		log.Fatalf("generate articles: %v", err)
	}
	for _, e := range res.Errors {
		log.Printf("topic failed: %s", e)
	}
	fmt.Printf("generated %d articles, %d failed\n", res.Success, res.Failed)
}

func runArticlesList(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("articles-list", flag.ExitOnError)
	configPath, dbPath := commonFlags(fs)
	fs.Parse(args)

	_, st := openPortal(ctx, *configPath, *dbPath)
	defer st.Close()

	articles, err := st.ArticlesByStatus(ctx, store.StatusGenerated, store.StatusPublished)
	if err != nil {
		log.Fatalf("list articles: %v", err)
	}

	rows := make([][]string, 0, len(articles))
	for _, a := range articles {
		rows = append(rows, []string{
			a.Slug,
			string(a.Status),
			fmt.Sprintf("%d", len(a.InternalLinks)),
			a.Meta.Title,
		})
	}
	printTable([]string{"SLUG", "STATUS", "LINKS", "TITLE"}, rows)
}

func runLinksUpdate(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("links-update", flag.ExitOnError)
	configPath, dbPath := commonFlags(fs)
	slug := fs.String("slug", "", "Update one article instead of all")
	fs.Parse(args)

	portal, st := openPortal(ctx, *configPath, *dbPath)
	defer st.Close()

	if *slug != "" {
		found, err := portal.Links.UpdateArticleLinks(ctx, *slug)
		if err != nil {
			log.Fatalf("update links: %v", err)
		}
		if !found {
			log.Fatalf("article %q not found", *slug)
		}
		fmt.Printf("updated links for %s\n", *slug)
		return
	}

	sum, err := portal.Links.UpdateAllArticleLinks(ctx)
	if err != nil {
		log.Fatalf("update links: %v", err)
	}
	for _, e := range sum.Errors {
		log.Printf("article failed: %s", e)
	}
	fmt.Printf("updated %d articles, %d failed\n", sum.Updated, sum.Failed)
}

func runTopicReset(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("topic-reset", flag.ExitOnError)
	configPath, dbPath := commonFlags(fs)
	id := fs.String("id", "", "Topic ID (required)")
	fs.Parse(args)

	if *id == "" {
		log.Fatal("--id required")
	}

	portal, st := openPortal(ctx, *configPath, *dbPath)
	defer st.Close()

	if err := portal.ResetTopic(ctx, *id); err != nil {
		log.Fatalf("reset topic: %v", err)
	}
	fmt.Printf("topic %s reset to pending\n", *id)
}

func runArticleDelete(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("article-delete", flag.ExitOnError)
	configPath, dbPath := commonFlags(fs)
	slug := fs.String("slug", "", "Article slug (required)")
	fs.Parse(args)

	if *slug == "" {
		log.Fatal("--slug required")
	}

	portal, st := openPortal(ctx, *configPath, *dbPath)
	defer st.Close()

	if err := portal.DeleteArticle(ctx, *slug); err != nil {
		log.Fatalf("delete article: %v", err)
	}
	fmt.Printf("deleted %s\n", *slug)
}

func runStats(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath, dbPath := commonFlags(fs)
	fs.Parse(args)

	_, st := openPortal(ctx, *configPath, *dbPath)
	defer st.Close()

	topicCounts, err := st.TopicStats(ctx)
	if err != nil {
		log.Fatalf("topic stats: %v", err)
	}
	articleCounts, err := st.ArticleStats(ctx)
	if err != nil {
		log.Fatalf("article stats: %v", err)
	}

	printTable([]string{"", "TOTAL", "PENDING", "GENERATING", "GENERATED", "PUBLISHED", "ERROR"}, [][]string{
		{"topics", itoa(topicCounts.Total), itoa(topicCounts.Pending), itoa(topicCounts.Generating), itoa(topicCounts.Generated), itoa(topicCounts.Published), itoa(topicCounts.Error)},
		{"articles", itoa(articleCounts.Total), itoa(articleCounts.Pending), itoa(articleCounts.Generating), itoa(articleCounts.Generated), itoa(articleCounts.Published), itoa(articleCounts.Error)},
	})
}

func itoa(n int) string { return fmt.Sprintf("%d", n) }

// printTable aligns columns by display width, which keeps tables readable when
// titles carry wide or combining characters.
func printTable(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	printRow := func(cells []string) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			parts[i] = runewidth.FillRight(cell, widths[i])
		}
		fmt.Println(strings.TrimRight(strings.Join(parts, "  "), " "))
	}

	printRow(headers)
	for _, row := range rows {
		printRow(row)
	}
}
