package project_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/simforge/internal/models"
	"github.com/pders01/simforge/internal/project"
	"github.com/pders01/simforge/internal/testutil"
)

func newTestStore(t *testing.T) (*project.Store, *testutil.Tree) {
	t.Helper()
	tree := testutil.NewMemTree(t)
	return project.NewStore(tree.Fs, tree.Path("Simulations")), tree
}

func TestListSkipsIncompleteProjects(t *testing.T) {
	store, tree := newTestStore(t)
	tree.SeedProject("Simulations/EColi")
	tree.SeedProject("Simulations/Yeast")
	tree.Mkdir("Simulations/Broken/Assets")
	tree.CreateFile("Simulations/stray.txt", "x")

	sims, err := store.List()
	require.NoError(t, err)
	require.Len(t, sims, 2)
	assert.Equal(t, "EColi", sims[0].Name)
	assert.Equal(t, "Yeast", sims[1].Name)
	assert.Equal(t, "Never", sims[0].LastOpened())
}

func TestListMissingRoot(t *testing.T) {
	store, _ := newTestStore(t)

	sims, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, sims)
}

func TestMetadataRoundTrip(t *testing.T) {
	store, tree := newTestStore(t)
	tree.SeedProject("Simulations/EColi")

	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.WriteMetadata("EColi", &models.Metadata{
		Name:        "EColi",
		Description: "bacteria growing",
		CreatedAt:   created,
	}))

	require.NoError(t, store.TouchLastOpened("EColi"))

	sim, err := store.Get("EColi")
	require.NoError(t, err)
	assert.True(t, sim.CreatedAt.Equal(created))
	require.NotNil(t, sim.LastOpenedAt)
	assert.NotEqual(t, "Never", sim.LastOpened())
	assert.Equal(t, "bacteria growing", sim.Metadata.Description)
}

func TestGetMissing(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get("Nope")
	assert.True(t, errors.Is(err, project.ErrNotFound))

	_, err = store.Get("bad/name")
	assert.Error(t, err)
}

func TestDelete(t *testing.T) {
	store, tree := newTestStore(t)
	tree.SeedProject("Simulations/EColi")

	require.NoError(t, store.Delete("EColi"))
	assert.False(t, store.Exists("EColi"))
	assert.ErrorIs(t, store.Delete("EColi"), project.ErrNotFound)
}

func TestFillSizes(t *testing.T) {
	store, tree := newTestStore(t)
	tree.SeedProject("Simulations/EColi")
	tree.SeedProject("Simulations/Yeast")
	tree.CreateFile("Simulations/Yeast/Assets/big.bin", "0123456789")

	sims, err := store.List()
	require.NoError(t, err)
	require.NoError(t, store.FillSizes(context.Background(), sims))

	assert.Positive(t, sims[0].SizeBytes)
	assert.Equal(t, sims[0].SizeBytes+10, sims[1].SizeBytes)
}

func TestIsFile(t *testing.T) {
	store, tree := newTestStore(t)
	tree.CreateFile("Simulations/Clash", "not a dir")

	assert.True(t, store.IsFile("Clash"))
	assert.False(t, store.Exists("Clash"))
}
