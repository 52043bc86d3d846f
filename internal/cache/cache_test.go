package cache_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/simforge/internal/cache"
)

func newTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	c, err := cache.Open(filepath.Join(t.TempDir(), "cache", "responses.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestPutLookup(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	miss, err := c.Lookup(ctx, "bacteria that divide")
	require.NoError(t, err)
	assert.Nil(t, miss)

	id, err := c.Put(ctx, cache.Entry{
		Prompt:       "bacteria that divide",
		Response:     "1.EColiComponent.cs{}",
		InputTokens:  10,
		OutputTokens: 20,
	})
	require.NoError(t, err)
	assert.Positive(t, id)

	hit, err := c.Lookup(ctx, "bacteria that divide")
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "1.EColiComponent.cs{}", hit.Response)
	assert.Equal(t, 1, hit.Hits)
	assert.False(t, hit.CreatedAt.IsZero())

	// Exact match only.
	miss, err = c.Lookup(ctx, "bacteria that divide ")
	require.NoError(t, err)
	assert.Nil(t, miss)
}

func TestPutReplacesSamePrompt(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	first, err := c.Put(ctx, cache.Entry{Prompt: "p", Response: "old", Embedding: []float64{1, 0}})
	require.NoError(t, err)
	second, err := c.Put(ctx, cache.Entry{Prompt: "p", Response: "new"})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	e, err := c.Lookup(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, "new", e.Response)
	assert.Equal(t, []float64{1, 0}, e.Embedding)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, 1, stats.Embedded)
}

func TestNearest(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	_, err := c.Put(ctx, cache.Entry{Prompt: "yeast", Response: "y", Embedding: []float64{0, 1, 0}})
	require.NoError(t, err)
	_, err = c.Put(ctx, cache.Entry{Prompt: "bacteria", Response: "b", Embedding: []float64{1, 0.05, 0}})
	require.NoError(t, err)
	_, err = c.Put(ctx, cache.Entry{Prompt: "no vector", Response: "n"})
	require.NoError(t, err)

	e, score, err := c.Nearest(ctx, []float64{1, 0, 0}, 0.95)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "bacteria", e.Prompt)
	assert.Greater(t, score, 0.95)

	e, _, err = c.Nearest(ctx, []float64{0, 0, 1}, 0.95)
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestSearchAndDelete(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	for _, p := range []string{"red algae", "green algae", "virus 100%"} {
		_, err := c.Put(ctx, cache.Entry{Prompt: p, Response: "r"})
		require.NoError(t, err)
	}

	found, err := c.Search(ctx, "algae", 0)
	require.NoError(t, err)
	assert.Len(t, found, 2)

	found, err = c.Search(ctx, "100%", 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "virus 100%", found[0].Prompt)

	require.NoError(t, c.Delete(ctx, found[0].ID))
	assert.Error(t, c.Delete(ctx, found[0].ID))

	all, err := c.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestPutRejectsEmptyPrompt(t *testing.T) {
	c := newTestCache(t)

	_, err := c.Put(context.Background(), cache.Entry{Prompt: "  ", Response: "x"})
	assert.Error(t, err)
}

func TestSQLiteDriverRegistered(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	var v string
	require.NoError(t, db.QueryRow("select sqlite_version()").Scan(&v))
	assert.NotEmpty(t, v)
}

func TestOpenFailure(t *testing.T) {
	restore := cache.SetOpenDB(func(string, string) (*sql.DB, error) {
		return nil, errors.New("boom")
	})
	defer restore()

	_, err := cache.Open(filepath.Join(t.TempDir(), "x.db"))
	assert.ErrorContains(t, err, "boom")
}
