// Package sqlite implements store.Store on SQLite. Topics and articles live in
// two tables with per-row updates, so concurrent mutations to different
// records never overwrite each other.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/pagemill/pagemill/pkg/pagemill/store"
)

type sqliteStore struct {
	db *sql.DB
}

var _ store.Store = (*sqliteStore)(nil)

// Open opens a SQLite database with WAL mode enabled and initializes the
// schema.
func Open(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection.
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS topics (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	slug TEXT NOT NULL UNIQUE,
	keywords TEXT NOT NULL DEFAULT '[]',
	seed_keyword TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	generated_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_topics_status ON topics(status);

CREATE TABLE IF NOT EXISTS articles (
	id TEXT PRIMARY KEY,
	slug TEXT NOT NULL UNIQUE,
	status TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	meta_title TEXT NOT NULL DEFAULT '',
	meta_description TEXT NOT NULL DEFAULT '',
	keywords TEXT NOT NULL DEFAULT '[]',
	lead TEXT NOT NULL DEFAULT '',
	sections TEXT NOT NULL DEFAULT '[]',
	faq TEXT NOT NULL DEFAULT '[]',
	internal_links TEXT NOT NULL DEFAULT '[]',
	external_links TEXT NOT NULL DEFAULT '[]',
	image_url TEXT NOT NULL DEFAULT '',
	image_alt TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	published_at TEXT,
	updated_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_articles_status ON articles(status);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

const topicColumns = "id, title, slug, keywords, seed_keyword, status, error, created_at, generated_at"

const articleColumns = "id, slug, status, title, meta_title, meta_description, keywords, lead, sections, faq, internal_links, external_links, image_url, image_alt, created_at, published_at, updated_at"

// AddTopics inserts candidates that survive slug/title dedup, in one
// transaction so the dedup snapshot and the inserts are consistent.
func (s *sqliteStore) AddTopics(ctx context.Context, candidates []store.TopicCandidate) ([]store.Topic, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT slug, title FROM topics`)
	if err != nil {
		return nil, err
	}
	takenSlugs := make(map[string]bool)
	takenTitles := make(map[string]bool)
	for rows.Next() {
		var slug, title string
		if err := rows.Scan(&slug, &title); err != nil {
			rows.Close()
			return nil, err
		}
		takenSlugs[slug] = true
		takenTitles[strings.ToLower(title)] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	added := store.NewTopics(candidates, takenSlugs, takenTitles, time.Now().UTC())
	if len(added) == 0 {
		return nil, tx.Commit()
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO topics (id, title, slug, keywords, seed_keyword, status, error, created_at, generated_at)
VALUES (?, ?, ?, ?, ?, ?, '', ?, NULL)`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	for _, t := range added {
		keywords, err := json.Marshal(t.Keywords)
		if err != nil {
			return nil, err
		}
		if _, err := stmt.ExecContext(ctx, t.ID, t.Title, t.Slug, string(keywords),
			t.SeedKeyword, string(t.Status), formatTime(t.CreatedAt)); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return added, nil
}

// TopicBySlug retrieves a topic by slug.
func (s *sqliteStore) TopicBySlug(ctx context.Context, slug string) (store.Topic, bool, error) {
	return s.topicWhere(ctx, sq.Eq{"slug": slug})
}

// TopicByID retrieves a topic by ID.
func (s *sqliteStore) TopicByID(ctx context.Context, id string) (store.Topic, bool, error) {
	return s.topicWhere(ctx, sq.Eq{"id": id})
}

func (s *sqliteStore) topicWhere(ctx context.Context, cond sq.Eq) (store.Topic, bool, error) {
	query, args, err := sq.Select(topicColumns).From("topics").Where(cond).ToSql()
	if err != nil {
		return store.Topic{}, false, err
	}

	t, err := scanTopic(s.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return store.Topic{}, false, nil
	}
	if err != nil {
		return store.Topic{}, false, err
	}
	return t, true, nil
}

// TopicsByStatus lists topics with the given status, oldest first.
func (s *sqliteStore) TopicsByStatus(ctx context.Context, status store.Status, limit int) ([]store.Topic, error) {
	q := sq.Select(topicColumns).From("topics").
		Where(sq.Eq{"status": string(status)}).
		OrderBy("rowid")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	return s.queryTopics(ctx, query, args...)
}

// AllTopics lists every topic, oldest first.
func (s *sqliteStore) AllTopics(ctx context.Context) ([]store.Topic, error) {
	query, args, err := sq.Select(topicColumns).From("topics").OrderBy("rowid").ToSql()
	if err != nil {
		return nil, err
	}
	return s.queryTopics(ctx, query, args...)
}

// SetTopicStatus updates a topic's status; a non-empty errMsg is recorded and
// reaching generated stamps generated_at.
func (s *sqliteStore) SetTopicStatus(ctx context.Context, id string, status store.Status, errMsg string) error {
	q := sq.Update("topics").Set("status", string(status)).Where(sq.Eq{"id": id})
	if errMsg != "" {
		q = q.Set("error", errMsg)
	}
	if status == store.StatusGenerated {
		q = q.Set("generated_at", formatTime(time.Now().UTC()))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

// TransitionTopic performs the conditional status claim in a single UPDATE, so
// two racing callers cannot both win the same transition.
func (s *sqliteStore) TransitionTopic(ctx context.Context, slug string, to store.Status, from ...store.Status) (bool, error) {
	q := sq.Update("topics").Set("status", string(to)).Where(sq.Eq{"slug": slug})
	if len(from) > 0 {
		allowed := make([]string, len(from))
		for i, st := range from {
			allowed[i] = string(st)
		}
		q = q.Where(sq.Eq{"status": allowed})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// TopicStats tallies topics per status.
func (s *sqliteStore) TopicStats(ctx context.Context) (store.StatusCounts, error) {
	return s.statusCounts(ctx, "topics")
}

// InsertArticle persists a new article.
func (s *sqliteStore) InsertArticle(ctx context.Context, a store.Article) error {
	keywords, err := json.Marshal(a.Meta.Keywords)
	if err != nil {
		return err
	}
	sections, err := json.Marshal(a.Sections)
	if err != nil {
		return err
	}
	faq, err := json.Marshal(a.FAQ)
	if err != nil {
		return err
	}
	internal, err := json.Marshal(a.InternalLinks)
	if err != nil {
		return err
	}
	external, err := json.Marshal(a.ExternalLinks)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO articles (id, slug, status, title, meta_title, meta_description, keywords,
	lead, sections, faq, internal_links, external_links, image_url, image_alt,
	created_at, published_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Slug, string(a.Status), a.Meta.Title, a.Meta.MetaTitle, a.Meta.MetaDescription,
		string(keywords), a.Lead, string(sections), string(faq), string(internal), string(external),
		a.ImageURL, a.ImageAlt, formatTime(a.CreatedAt), formatTimePtr(a.PublishedAt), formatTimePtr(a.UpdatedAt))
	return err
}

// ArticleBySlug retrieves an article by slug.
func (s *sqliteStore) ArticleBySlug(ctx context.Context, slug string) (store.Article, bool, error) {
	query, args, err := sq.Select(articleColumns).From("articles").Where(sq.Eq{"slug": slug}).ToSql()
	if err != nil {
		return store.Article{}, false, err
	}

	a, err := scanArticle(s.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return store.Article{}, false, nil
	}
	if err != nil {
		return store.Article{}, false, err
	}
	return a, true, nil
}

// ArticlesByStatus lists articles whose status is any of the given ones,
// oldest first.
func (s *sqliteStore) ArticlesByStatus(ctx context.Context, statuses ...store.Status) ([]store.Article, error) {
	values := make([]string, len(statuses))
	for i, st := range statuses {
		values[i] = string(st)
	}
	query, args, err := sq.Select(articleColumns).From("articles").
		Where(sq.Eq{"status": values}).
		OrderBy("rowid").ToSql()
	if err != nil {
		return nil, err
	}
	return s.queryArticles(ctx, query, args...)
}

// AllArticles lists every article, oldest first.
func (s *sqliteStore) AllArticles(ctx context.Context) ([]store.Article, error) {
	query, args, err := sq.Select(articleColumns).From("articles").OrderBy("rowid").ToSql()
	if err != nil {
		return nil, err
	}
	return s.queryArticles(ctx, query, args...)
}

// SetArticleStatus updates an article's status, stamping published_at when the
// article reaches published and updated_at always.
func (s *sqliteStore) SetArticleStatus(ctx context.Context, id string, status store.Status) error {
	now := formatTime(time.Now().UTC())
	q := sq.Update("articles").
		Set("status", string(status)).
		Set("updated_at", now).
		Where(sq.Eq{"id": id})
	if status == store.StatusPublished {
		q = q.Set("published_at", now)
	}
	query, args, err := q.ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

// UpdateArticleLinks replaces both link lists on the article.
func (s *sqliteStore) UpdateArticleLinks(ctx context.Context, slug string, internal []store.InternalLink, external []store.ExternalLink, updatedAt time.Time) (bool, error) {
	if internal == nil {
		internal = []store.InternalLink{}
	}
	if external == nil {
		external = []store.ExternalLink{}
	}
	internalJSON, err := json.Marshal(internal)
	if err != nil {
		return false, err
	}
	externalJSON, err := json.Marshal(external)
	if err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx, `
UPDATE articles SET internal_links = ?, external_links = ?, updated_at = ? WHERE slug = ?`,
		string(internalJSON), string(externalJSON), formatTime(updatedAt), slug)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpdateArticleImage replaces the article's image reference.
func (s *sqliteStore) UpdateArticleImage(ctx context.Context, slug, url, alt string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE articles SET image_url = ?, image_alt = ?, updated_at = ? WHERE slug = ?`,
		url, alt, formatTime(time.Now().UTC()), slug)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteArticle removes an article by slug.
func (s *sqliteStore) DeleteArticle(ctx context.Context, slug string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM articles WHERE slug = ?`, slug)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ArticleStats tallies articles per status.
func (s *sqliteStore) ArticleStats(ctx context.Context) (store.StatusCounts, error) {
	return s.statusCounts(ctx, "articles")
}

func (s *sqliteStore) statusCounts(ctx context.Context, table string) (store.StatusCounts, error) {
	query, args, err := sq.Select("status", "COUNT(*)").From(table).GroupBy("status").ToSql()
	if err != nil {
		return store.StatusCounts{}, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return store.StatusCounts{}, err
	}
	defer rows.Close()

	var c store.StatusCounts
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return store.StatusCounts{}, err
		}
		for i := 0; i < n; i++ {
			c.Add(store.Status(status))
		}
	}
	return c, rows.Err()
}

func (s *sqliteStore) queryTopics(ctx context.Context, query string, args ...interface{}) ([]store.Topic, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Topic
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *sqliteStore) queryArticles(ctx context.Context, query string, args ...interface{}) ([]store.Article, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTopic(row rowScanner) (store.Topic, error) {
	var (
		t           store.Topic
		keywords    string
		status      string
		createdAt   string
		generatedAt sql.NullString
	)
	err := row.Scan(&t.ID, &t.Title, &t.Slug, &keywords, &t.SeedKeyword, &status,
		&t.Error, &createdAt, &generatedAt)
	if err != nil {
		return store.Topic{}, err
	}

	if err := json.Unmarshal([]byte(keywords), &t.Keywords); err != nil {
		return store.Topic{}, fmt.Errorf("decode topic keywords: %w", err)
	}
	t.Status = store.Status(status)
	t.CreatedAt = parseTime(createdAt)
	t.GeneratedAt = parseTimePtr(generatedAt)
	return t, nil
}

func scanArticle(row rowScanner) (store.Article, error) {
	var (
		a           store.Article
		status      string
		keywords    string
		sections    string
		faq         string
		internal    string
		external    string
		createdAt   string
		publishedAt sql.NullString
		updatedAt   sql.NullString
	)
	err := row.Scan(&a.ID, &a.Slug, &status, &a.Meta.Title, &a.Meta.MetaTitle,
		&a.Meta.MetaDescription, &keywords, &a.Lead, &sections, &faq, &internal,
		&external, &a.ImageURL, &a.ImageAlt, &createdAt, &publishedAt, &updatedAt)
	if err != nil {
		return store.Article{}, err
	}

	for name, pair := range map[string]struct {
		raw  string
		dest interface{}
	}{
		"keywords":       {keywords, &a.Meta.Keywords},
		"sections":       {sections, &a.Sections},
		"faq":            {faq, &a.FAQ},
		"internal links": {internal, &a.InternalLinks},
		"external links": {external, &a.ExternalLinks},
	} {
		if err := json.Unmarshal([]byte(pair.raw), pair.dest); err != nil {
			return store.Article{}, fmt.Errorf("decode article %s: %w", name, err)
		}
	}

	a.Status = store.Status(status)
	a.CreatedAt = parseTime(createdAt)
	a.PublishedAt = parseTimePtr(publishedAt)
	a.UpdatedAt = parseTimePtr(updatedAt)
	return a, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}
