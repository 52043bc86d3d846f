// Package cache stores model responses keyed by the exact prompt that
// produced them, with optional embeddings for near-duplicate lookups.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pders01/simforge/internal/embeddings"
)

// openDB is overridden in tests.
var openDB = sql.Open

// Entry is one cached response.
type Entry struct {
	ID           int64     `json:"id"`
	Prompt       string    `json:"prompt"`
	Response     string    `json:"response"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	Embedding    []float64 `json:"-"`
	Hits         int       `json:"hits"`
	CreatedAt    time.Time `json:"created_at"`
}

// Stats summarises the cache.
type Stats struct {
	Entries      int `json:"entries"`
	Embedded     int `json:"embedded"`
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	Hits         int `json:"hits"`
}

// Cache is a SQLite-backed response cache.
type Cache struct {
	db *sql.DB
}

// Open opens (and creates if needed) the cache database at path.
func Open(path string) (*Cache, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("cache: create data dir: %w", err)
		}
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("cache: pragma %q: %w", p, err)
		}
	}

	c := &Cache{db: db}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Cache) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS responses (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			prompt        TEXT NOT NULL UNIQUE,
			response      TEXT NOT NULL,
			input_tokens  INTEGER NOT NULL DEFAULT 0,
			output_tokens INTEGER NOT NULL DEFAULT 0,
			embedding     BLOB,
			hits          INTEGER NOT NULL DEFAULT 0,
			created_at    TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_responses_created ON responses(created_at);
	`
	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("cache: migrate: %w", err)
	}
	return nil
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Put stores a response, replacing any previous entry for the same prompt.
func (c *Cache) Put(ctx context.Context, e Entry) (int64, error) {
	if strings.TrimSpace(e.Prompt) == "" {
		return 0, fmt.Errorf("cache: prompt cannot be empty")
	}

	var blob any
	if len(e.Embedding) > 0 {
		encoded, err := embeddings.Encode(e.Embedding)
		if err != nil {
			return 0, fmt.Errorf("cache: %w", err)
		}
		blob = encoded
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	var id int64
	err := c.db.QueryRowContext(ctx, `
		INSERT INTO responses (prompt, response, input_tokens, output_tokens, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(prompt) DO UPDATE SET
			response = excluded.response,
			input_tokens = excluded.input_tokens,
			output_tokens = excluded.output_tokens,
			embedding = COALESCE(excluded.embedding, responses.embedding),
			created_at = excluded.created_at
		RETURNING id`,
		e.Prompt, e.Response, e.InputTokens, e.OutputTokens, blob, e.CreatedAt.UTC().Format(time.RFC3339Nano),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("cache: put: %w", err)
	}
	return id, nil
}

// Lookup returns the entry for prompt, or nil on a miss. Hits are counted.
func (c *Cache) Lookup(ctx context.Context, prompt string) (*Entry, error) {
	row := c.db.QueryRowContext(ctx, selectColumns+` WHERE prompt = ?`, prompt)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache: lookup: %w", err)
	}
	if err := c.hit(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Nearest returns the embedded entry most similar to vec when its cosine
// similarity reaches threshold.
func (c *Cache) Nearest(ctx context.Context, vec []float64, threshold float64) (*Entry, float64, error) {
	entries, err := c.query(ctx, selectColumns+` WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, 0, err
	}

	candidates := make([][]float64, len(entries))
	for i, e := range entries {
		candidates[i] = e.Embedding
	}

	m, ok := embeddings.Best(vec, candidates, threshold)
	if !ok {
		return nil, 0, nil
	}
	e := &entries[m.Index]
	if err := c.hit(ctx, e); err != nil {
		return nil, 0, err
	}
	return e, m.Score, nil
}

// Search returns entries whose prompt or response contains keyword, newest
// first.
func (c *Cache) Search(ctx context.Context, keyword string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + escapeLike(keyword) + "%"
	return c.query(ctx, selectColumns+`
		WHERE prompt LIKE ? ESCAPE '\' OR response LIKE ? ESCAPE '\'
		ORDER BY created_at DESC LIMIT ?`, pattern, pattern, limit)
}

// All returns every entry, newest first.
func (c *Cache) All(ctx context.Context) ([]Entry, error) {
	return c.query(ctx, selectColumns+` ORDER BY created_at DESC`)
}

// Delete removes an entry.
func (c *Cache) Delete(ctx context.Context, id int64) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM responses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("cache: delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("cache: entry %d not found", id)
	}
	return nil
}

// Stats aggregates the whole cache.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := c.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(embedding),
		       COALESCE(SUM(input_tokens), 0),
		       COALESCE(SUM(output_tokens), 0),
		       COALESCE(SUM(hits), 0)
		FROM responses`).Scan(&s.Entries, &s.Embedded, &s.InputTokens, &s.OutputTokens, &s.Hits)
	if err != nil {
		return Stats{}, fmt.Errorf("cache: stats: %w", err)
	}
	return s, nil
}

const selectColumns = `SELECT id, prompt, response, input_tokens, output_tokens, embedding, hits, created_at FROM responses`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		e       Entry
		blob    []byte
		created string
	)
	if err := row.Scan(&e.ID, &e.Prompt, &e.Response, &e.InputTokens, &e.OutputTokens, &blob, &e.Hits, &created); err != nil {
		return nil, err
	}

	vec, err := embeddings.Decode(blob)
	if err != nil {
		return nil, err
	}
	e.Embedding = vec

	if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
		e.CreatedAt = t
	}
	return &e, nil
}

func (c *Cache) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("cache: query: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("cache: scan: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (c *Cache) hit(ctx context.Context, e *Entry) error {
	if _, err := c.db.ExecContext(ctx, `UPDATE responses SET hits = hits + 1 WHERE id = ?`, e.ID); err != nil {
		return fmt.Errorf("cache: record hit: %w", err)
	}
	e.Hits++
	return nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
