package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/simforge/internal/builder"
	"github.com/pders01/simforge/internal/cache"
	"github.com/pders01/simforge/internal/importer"
	"github.com/pders01/simforge/internal/models"
	"github.com/pders01/simforge/internal/ollama"
	"github.com/pders01/simforge/internal/project"
	"github.com/pders01/simforge/internal/testutil"
	"github.com/pders01/simforge/internal/workspace"
)

const ecoliResponse = `1.PrefabMaterialCreator.cs{Debug.Log("a");}2.EColiComponent.cs{public struct EColiComponent{}}`

type fakeGenerator struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (g *fakeGenerator) Generate(_ context.Context, _, prompt string) (string, ollama.Usage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	return g.reply, ollama.Usage{PromptTokens: 10, CompletionTokens: 20}, g.err
}

func (g *fakeGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

type fakeEmbedder struct {
	vec []float64
	err error
}

func (e *fakeEmbedder) GenerateEmbedding(context.Context, string) ([]float64, error) {
	return e.vec, e.err
}

type fakeCache struct {
	entries map[string]cache.Entry
	nearest *cache.Entry
	score   float64
	puts    []cache.Entry
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]cache.Entry{}}
}

func (c *fakeCache) Lookup(_ context.Context, prompt string) (*cache.Entry, error) {
	e, ok := c.entries[prompt]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (c *fakeCache) Nearest(context.Context, []float64, float64) (*cache.Entry, float64, error) {
	return c.nearest, c.score, nil
}

func (c *fakeCache) Put(_ context.Context, e cache.Entry) (int64, error) {
	c.puts = append(c.puts, e)
	c.entries[e.Prompt] = e
	return int64(len(c.puts)), nil
}

type fakeRunner struct {
	started chan struct{}
	release chan struct{}
	batches []builder.Batch
	err     error
}

func (r *fakeRunner) Run(_ context.Context, b builder.Batch) (*builder.Result, error) {
	r.batches = append(r.batches, b)
	if r.started != nil {
		close(r.started)
		<-r.release
	}
	return &builder.Result{Operation: b.Operation, Artifact: "Build/Linux/Simulation"}, r.err
}

func (r *fakeRunner) Target() string { return "Linux64" }

type fakeReaper struct{ calls int }

func (r *fakeReaper) Reap(context.Context) (int, error) {
	r.calls++
	return 0, nil
}

type fixture struct {
	p         *Pipeline
	tree      *testutil.Tree
	generator *fakeGenerator
	validator *fakeGenerator
	cache     *fakeCache
	runner    *fakeRunner
	reaper    *fakeReaper
	ws        *workspace.Synchronizer
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	tree := testutil.NewMemTree(t)
	tree.SeedProject("Template")
	store := project.NewStore(tree.Fs, tree.Path("Simulations"))
	ws := workspace.New(store, tree.Path("Workspace", "Simulation"), nil)

	f := &fixture{
		tree:      tree,
		generator: &fakeGenerator{reply: ecoliResponse},
		validator: &fakeGenerator{reply: "1 EColi. The EColi must be green, duplicate every 20 minutes and the child separates from the parent when it reaches 70% of its growth."},
		cache:     newFakeCache(),
		runner:    &fakeRunner{},
		reaper:    &fakeReaper{},
		ws:        ws,
	}
	f.p = New(Deps{
		Store:     store,
		Importer:  importer.New(store, tree.Path("Template"), nil),
		Workspace: ws,
		Runner:    f.runner,
		Reaper:    f.reaper,
		Generator: f.generator,
		Validator: f.validator,
		Cache:     f.cache,
	}, opts)
	return f
}

func TestCreate(t *testing.T) {
	f := newFixture(t, Options{})

	res, err := f.p.Create(context.Background(), "EColi", "a green bacterium")
	require.NoError(t, err)

	assert.False(t, res.Cached)
	assert.Equal(t, []string{"PrefabMaterialCreator.cs", "EColiComponent.cs"}, res.Artifacts)
	assert.Equal(t, 10, res.Usage.PromptTokens)
	assert.True(t, f.tree.FileExists("Simulations/EColi/Assets/Editor/PrefabMaterialCreator.cs"))
	assert.True(t, f.tree.FileExists("Simulations/EColi/Assets/Scripts/Components/EColiComponent.cs"))

	// The normalised description, not the raw one, reaches the generator.
	require.Len(t, f.generator.prompts, 1)
	assert.Equal(t, res.Prompt, f.generator.prompts[0])

	require.Len(t, f.cache.puts, 1)
	assert.Equal(t, 20, f.cache.puts[0].OutputTokens)

	meta := f.tree.ReadFile("Simulations/EColi/simulation.yaml")
	assert.Contains(t, meta, "a green bacterium")
	assert.Equal(t, models.StateIdle, f.p.State())
}

func TestCreateUsesCache(t *testing.T) {
	f := newFixture(t, Options{})

	_, err := f.p.Create(context.Background(), "First", "a green bacterium")
	require.NoError(t, err)

	res, err := f.p.Create(context.Background(), "Second", "a green bacterium")
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.Equal(t, 1, f.generator.calls())
	assert.Contains(t, f.tree.ReadFile("Simulations/Second/simulation.yaml"), "cached: true")
}

func TestCreateSemanticCache(t *testing.T) {
	f := newFixture(t, Options{Semantic: true, SimilarityThreshold: 0.9})
	f.p.deps.Embedder = &fakeEmbedder{vec: []float64{1, 0}}
	f.cache.nearest = &cache.Entry{ID: 7, Response: ecoliResponse}
	f.cache.score = 0.95

	res, err := f.p.Create(context.Background(), "EColi", "a green bacterium")
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.InDelta(t, 0.95, res.Similarity, 1e-9)
	assert.Zero(t, f.generator.calls())
}

func TestCreateStoresEmbeddingOnMiss(t *testing.T) {
	f := newFixture(t, Options{Semantic: true, SimilarityThreshold: 0.9})
	f.p.deps.Embedder = &fakeEmbedder{vec: []float64{0.5, 0.5}}

	_, err := f.p.Create(context.Background(), "EColi", "a green bacterium")
	require.NoError(t, err)
	require.Len(t, f.cache.puts, 1)
	assert.Equal(t, []float64{0.5, 0.5}, f.cache.puts[0].Embedding)
}

func TestCreateEmbeddingFailureFallsBackToModel(t *testing.T) {
	f := newFixture(t, Options{Semantic: true})
	f.p.deps.Embedder = &fakeEmbedder{err: errors.New("no model")}

	res, err := f.p.Create(context.Background(), "EColi", "a green bacterium")
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, 1, f.generator.calls())
}

func TestCreateValidatorRejections(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{"content", "ERROR DE CONTENIDO", "EColi and/or SCerevisiae"},
		{"quoted content", "'ERROR DE CONTENIDO'", "EColi and/or SCerevisiae"},
		{"too many", "ERROR CANTIDAD EXCEDIDA", "exceeded organism limit (2)"},
		{"other error", "ERROR: something odd", "validator rejected"},
		{"empty", "   ", "empty response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Options{})
			f.validator.reply = tt.reply

			_, err := f.p.Create(context.Background(), "EColi", "a dog")
			require.Error(t, err)
			assert.True(t, models.IsKind(err, models.KindGeneration))
			assert.Contains(t, err.Error(), tt.want)
			assert.Zero(t, f.generator.calls())
			assert.False(t, f.tree.FileExists("Simulations/EColi"))
		})
	}
}

func TestCreateGeneratorRejection(t *testing.T) {
	f := newFixture(t, Options{})
	f.generator.reply = "ERROR INVALID QUESTION FORMAT."

	_, err := f.p.Create(context.Background(), "EColi", "a green bacterium")
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindGeneration))
	assert.Empty(t, f.cache.puts)
}

func TestCreateNoCodeBlocks(t *testing.T) {
	f := newFixture(t, Options{})
	f.generator.reply = strings.Repeat("no code here ", 50)

	_, err := f.p.Create(context.Background(), "EColi", "a green bacterium")
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindExtraction))
	assert.Contains(t, err.Error(), "...")
	assert.False(t, f.tree.FileExists("Simulations/EColi"))
}

func TestCreateInvalidName(t *testing.T) {
	f := newFixture(t, Options{})

	_, err := f.p.Create(context.Background(), "../escape", "a green bacterium")
	require.Error(t, err)
	assert.Zero(t, f.validator.calls())
}

func TestImportResponse(t *testing.T) {
	f := newFixture(t, Options{})

	res, err := f.p.ImportResponse("EColi", ecoliResponse)
	require.NoError(t, err)
	assert.Len(t, res.Report.Written, 2)
	assert.Zero(t, f.generator.calls())
	assert.Zero(t, f.validator.calls())
}

func TestLoadAndBuild(t *testing.T) {
	f := newFixture(t, Options{Build: builder.Batch{EntryPoint: "BuildScript.PerformBuild"}})
	_, err := f.p.ImportResponse("EColi", ecoliResponse)
	require.NoError(t, err)

	_, err = f.p.Build(context.Background())
	require.Error(t, err, "nothing loaded yet")
	assert.True(t, models.IsKind(err, models.KindSync))

	loaded, err := f.p.Load(context.Background(), "EColi")
	require.NoError(t, err)
	assert.True(t, loaded.Full)

	res, err := f.p.Build(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, res.Artifact)

	require.Len(t, f.runner.batches, 1)
	b := f.runner.batches[0]
	assert.True(t, b.Verify)
	assert.Equal(t, []string{"-buildTarget", "Linux64"}, b.ExtraArgs)
	assert.Equal(t, 2, f.reaper.calls)
}

func TestRunToolDoesNotVerify(t *testing.T) {
	f := newFixture(t, Options{Prefab: builder.Batch{EntryPoint: "PrefabMaterialCreator.CreatePrefabsAndMaterials"}})
	_, err := f.p.ImportResponse("EColi", ecoliResponse)
	require.NoError(t, err)
	_, err = f.p.Load(context.Background(), "EColi")
	require.NoError(t, err)

	_, err = f.p.RunTool(context.Background())
	require.NoError(t, err)
	require.Len(t, f.runner.batches, 1)
	assert.False(t, f.runner.batches[0].Verify)
	assert.Empty(t, f.runner.batches[0].ExtraArgs)
}

func TestBusy(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.p.ImportResponse("EColi", ecoliResponse)
	require.NoError(t, err)
	_, err = f.p.Load(context.Background(), "EColi")
	require.NoError(t, err)

	f.runner.started = make(chan struct{})
	f.runner.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.p.Build(context.Background())
		done <- err
	}()

	select {
	case <-f.runner.started:
	case <-time.After(5 * time.Second):
		t.Fatal("build did not start")
	}
	assert.Equal(t, models.StateBuilding, f.p.State())

	_, err = f.p.Load(context.Background(), "EColi")
	assert.True(t, models.IsKind(err, models.KindBusy))
	assert.True(t, models.IsKind(f.p.Delete("EColi"), models.KindBusy))

	close(f.runner.release)
	require.NoError(t, <-done)
	assert.Equal(t, models.StateIdle, f.p.State())
}

func TestDeleteClearsMarker(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.p.ImportResponse("EColi", ecoliResponse)
	require.NoError(t, err)
	_, err = f.p.Load(context.Background(), "EColi")
	require.NoError(t, err)

	require.NoError(t, f.p.Delete("EColi"))

	marker, err := f.ws.Marker()
	require.NoError(t, err)
	assert.Empty(t, marker)
	assert.False(t, f.tree.FileExists("Simulations/EColi"))
}

func TestDeleteMissing(t *testing.T) {
	f := newFixture(t, Options{})

	err := f.p.Delete("Nope")
	assert.ErrorIs(t, err, project.ErrNotFound)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", preview("  short  "))
	long := strings.Repeat("x", 300)
	assert.Equal(t, strings.Repeat("x", 200)+"...", preview(long))
}
