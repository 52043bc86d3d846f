// Package pipeline ties generation, import, workspace sync and builds
// together. Only one operation runs at a time.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/pders01/simforge/internal/builder"
	"github.com/pders01/simforge/internal/cache"
	"github.com/pders01/simforge/internal/extract"
	"github.com/pders01/simforge/internal/importer"
	"github.com/pders01/simforge/internal/models"
	"github.com/pders01/simforge/internal/ollama"
	"github.com/pders01/simforge/internal/project"
	"github.com/pders01/simforge/internal/workspace"
)

const previewLen = 200

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, ollama.Usage, error)
}

// Embedder turns text into a vector.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float64, error)
}

// ResponseCache stores generated responses by prompt.
type ResponseCache interface {
	Lookup(ctx context.Context, prompt string) (*cache.Entry, error)
	Nearest(ctx context.Context, vec []float64, threshold float64) (*cache.Entry, float64, error)
	Put(ctx context.Context, e cache.Entry) (int64, error)
}

// Runner executes the build tool.
type Runner interface {
	Run(ctx context.Context, b builder.Batch) (*builder.Result, error)
	Target() string
}

// Reaper stops leftover build tool processes.
type Reaper interface {
	Reap(ctx context.Context) (int, error)
}

// Deps are the collaborators of a Pipeline. Generator, Validator, Embedder,
// Cache, Runner and Reaper may be nil; operations needing a missing one fail
// with a configuration error.
type Deps struct {
	Store     *project.Store
	Importer  *importer.Importer
	Workspace *workspace.Synchronizer
	Runner    Runner
	Reaper    Reaper

	Generator Generator
	Validator Generator
	Embedder  Embedder
	Cache     ResponseCache

	Logger *zap.Logger
}

// Options tune a Pipeline.
type Options struct {
	Build  builder.Batch
	Prefab builder.Batch

	// Semantic enables embedding lookups when the exact prompt misses.
	Semantic            bool
	SimilarityThreshold float64
}

// CreateResult describes a finished Create or ImportResponse.
type CreateResult struct {
	Name       string
	Prompt     string
	Cached     bool
	Similarity float64
	Usage      ollama.Usage
	Artifacts  []string
	Report     *importer.Report
	Duration   time.Duration
}

// Pipeline is the single entry point for state-changing operations.
type Pipeline struct {
	deps   Deps
	opts   Options
	logger *zap.Logger
	state  atomic.Int32
	now    func() time.Time
}

// New creates a pipeline.
func New(deps Deps, opts Options) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Build.Operation == "" {
		opts.Build.Operation = "Build"
	}
	if opts.Prefab.Operation == "" {
		opts.Prefab.Operation = "Prefabs"
	}
	opts.Build.Verify = true
	opts.Prefab.Verify = false

	return &Pipeline{
		deps:   deps,
		opts:   opts,
		logger: logger.Named("pipeline"),
		now:    time.Now,
	}
}

// State returns what the pipeline is currently doing.
func (p *Pipeline) State() models.State {
	return models.State(p.state.Load())
}

func (p *Pipeline) acquire(s models.State, op string) error {
	if p.state.CompareAndSwap(int32(models.StateIdle), int32(s)) {
		return nil
	}
	return models.Errorf(models.KindBusy, op, "another operation is running (%s)", p.State())
}

func (p *Pipeline) release() {
	p.state.Store(int32(models.StateIdle))
}

// Create turns a free-text description into a new simulation.
func (p *Pipeline) Create(ctx context.Context, name, description string) (*CreateResult, error) {
	const op = "create"

	if err := models.ValidateName(name); err != nil {
		return nil, models.Wrap(models.KindTemplate, op, err, "invalid simulation name")
	}
	if strings.TrimSpace(description) == "" {
		return nil, models.Errorf(models.KindGeneration, op, "description cannot be empty")
	}
	if p.deps.Generator == nil || p.deps.Validator == nil {
		return nil, models.Errorf(models.KindConfiguration, op, "no language model configured")
	}
	if err := p.acquire(models.StateCreating, op); err != nil {
		return nil, err
	}
	defer p.release()

	start := p.now()
	log := p.logger.With(zap.String("simulation", name))

	prompt, err := p.validate(ctx, description)
	if err != nil {
		return nil, err
	}
	log.Info("description validated", zap.String("prompt", prompt))

	result := &CreateResult{Name: name, Prompt: prompt}

	response, vec := p.cached(ctx, prompt, result, log)
	if response == "" {
		text, usage, err := p.deps.Generator.Generate(ctx, GeneratorPrompt, prompt)
		if err != nil {
			return nil, models.Wrap(models.KindGeneration, op, err, "failed to generate code")
		}
		if strings.Contains(strings.ToUpper(text), tokenInvalidFormat) {
			return nil, models.Errorf(models.KindGeneration, op, "the model rejected the request as out of scope")
		}
		response = text
		result.Usage = usage
		p.store(ctx, prompt, response, usage, vec, log)
	}

	if err := p.importText(name, response, description, result); err != nil {
		return result, err
	}
	result.Duration = p.now().Sub(start)
	log.Info("simulation created",
		zap.Bool("cached", result.Cached),
		zap.Strings("artifacts", result.Artifacts),
		zap.Duration("took", result.Duration))
	return result, nil
}

// ImportResponse imports an already generated response without calling any
// model.
func (p *Pipeline) ImportResponse(name, response string) (*CreateResult, error) {
	const op = "import"

	if err := p.acquire(models.StateCreating, op); err != nil {
		return nil, err
	}
	defer p.release()

	start := p.now()
	result := &CreateResult{Name: name}
	if err := p.importText(name, response, "", result); err != nil {
		return result, err
	}
	result.Duration = p.now().Sub(start)
	return result, nil
}

func (p *Pipeline) importText(name, response, description string, result *CreateResult) error {
	const op = "import"

	artifacts := extract.Process(response)
	if len(artifacts) == 0 {
		return models.Errorf(models.KindExtraction, op, "no code blocks found in response: %q", preview(response))
	}
	result.Artifacts = artifacts.Names()

	report, err := p.deps.Importer.Import(artifacts, name)
	result.Report = report
	if err != nil {
		return err
	}

	if err := p.deps.Store.UpdateMetadata(name, func(m *models.Metadata) {
		if description != "" {
			m.Description = description
		}
		m.Cached = result.Cached
	}); err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("failed to write metadata: %v", err))
	}
	return nil
}

// validate asks the validator model to normalise description and rejects
// its error replies.
func (p *Pipeline) validate(ctx context.Context, description string) (string, error) {
	const op = "validate"

	text, _, err := p.deps.Validator.Generate(ctx, ValidatorPrompt, description)
	if err != nil {
		return "", models.Wrap(models.KindGeneration, op, err, "failed to validate description")
	}
	text = strings.TrimSpace(text)
	upper := strings.ToUpper(strings.Trim(text, "'\". "))

	switch {
	case text == "":
		return "", models.Errorf(models.KindGeneration, op, "validator returned an empty response")
	case upper == tokenInvalidContent:
		return "", models.Errorf(models.KindGeneration, op,
			"invalid content: only simulations of EColi and/or SCerevisiae are supported")
	case upper == tokenTooMany:
		return "", models.Errorf(models.KindGeneration, op,
			"exceeded organism limit (%d)", MaxOrganisms)
	case strings.Contains(upper, tokenError):
		return "", models.Errorf(models.KindGeneration, op, "validator rejected the description: %s", text)
	}
	return text, nil
}

// cached returns a stored response for prompt, or "" on a miss. The
// embedding computed for a semantic lookup is returned for reuse.
func (p *Pipeline) cached(ctx context.Context, prompt string, result *CreateResult, log *zap.Logger) (string, []float64) {
	if p.deps.Cache == nil {
		return "", nil
	}

	entry, err := p.deps.Cache.Lookup(ctx, prompt)
	if err != nil {
		log.Warn("cache lookup failed", zap.Error(err))
	}
	if entry != nil {
		result.Cached = true
		result.Similarity = 1
		log.Info("cache hit", zap.Int64("entry", entry.ID))
		return entry.Response, nil
	}

	if !p.opts.Semantic || p.deps.Embedder == nil {
		return "", nil
	}
	vec, err := p.deps.Embedder.GenerateEmbedding(ctx, prompt)
	if err != nil {
		log.Warn("embedding failed, skipping semantic lookup", zap.Error(err))
		return "", nil
	}
	entry, score, err := p.deps.Cache.Nearest(ctx, vec, p.opts.SimilarityThreshold)
	if err != nil {
		log.Warn("semantic lookup failed", zap.Error(err))
		return "", vec
	}
	if entry == nil {
		return "", vec
	}
	result.Cached = true
	result.Similarity = score
	log.Info("semantic cache hit", zap.Int64("entry", entry.ID), zap.Float64("score", score))
	return entry.Response, vec
}

func (p *Pipeline) store(ctx context.Context, prompt, response string, usage ollama.Usage, vec []float64, log *zap.Logger) {
	if p.deps.Cache == nil {
		return
	}
	id, err := p.deps.Cache.Put(ctx, cache.Entry{
		Prompt:       prompt,
		Response:     response,
		InputTokens:  usage.PromptTokens,
		OutputTokens: usage.CompletionTokens,
		Embedding:    vec,
	})
	if err != nil {
		log.Warn("failed to cache response", zap.Error(err))
		return
	}
	log.Debug("cached response", zap.Int64("entry", id))
}

// Load makes name the workspace's active simulation.
func (p *Pipeline) Load(ctx context.Context, name string) (*workspace.Result, error) {
	const op = "load"

	if err := p.acquire(models.StateLoading, op); err != nil {
		return nil, err
	}
	defer p.release()

	p.reap(ctx)
	return p.deps.Workspace.Activate(name)
}

// Build runs the build entry point against the loaded simulation and returns
// once the artifact is verified.
func (p *Pipeline) Build(ctx context.Context) (*builder.Result, error) {
	batch := p.opts.Build
	if p.deps.Runner != nil {
		batch.ExtraArgs = append(append([]string(nil), batch.ExtraArgs...), "-buildTarget", p.deps.Runner.Target())
	}
	return p.run(ctx, "build", batch)
}

// RunTool runs the prefab and material editor method.
func (p *Pipeline) RunTool(ctx context.Context) (*builder.Result, error) {
	return p.run(ctx, "tool", p.opts.Prefab)
}

func (p *Pipeline) run(ctx context.Context, op string, batch builder.Batch) (*builder.Result, error) {
	if p.deps.Runner == nil {
		return nil, models.Errorf(models.KindConfiguration, op, "build tool is not configured")
	}
	if err := p.acquire(models.StateBuilding, op); err != nil {
		return nil, err
	}
	defer p.release()

	loaded, err := p.deps.Workspace.Marker()
	if err != nil {
		return nil, models.Wrap(models.KindSync, op, err, "")
	}
	if loaded == "" {
		return nil, models.Errorf(models.KindSync, op, "no simulation is loaded")
	}

	p.reap(ctx)
	p.logger.Info("running build tool",
		zap.String("op", batch.Operation),
		zap.String("simulation", loaded))
	return p.deps.Runner.Run(ctx, batch)
}

// Delete removes a simulation, forgetting it first if it is loaded.
func (p *Pipeline) Delete(name string) error {
	const op = "delete"

	if err := p.acquire(models.StateDeleting, op); err != nil {
		return err
	}
	defer p.release()

	if p.deps.Workspace != nil {
		loaded, err := p.deps.Workspace.Marker()
		if err != nil {
			return models.Wrap(models.KindSync, op, err, "")
		}
		if loaded == name {
			if err := p.deps.Workspace.Clear(); err != nil {
				return models.Wrap(models.KindSync, op, err, "")
			}
			p.logger.Info("cleared loaded simulation", zap.String("simulation", name))
		}
	}

	if err := p.deps.Store.Delete(name); err != nil {
		if errors.Is(err, project.ErrNotFound) {
			return err
		}
		return models.Wrap(models.KindTemplate, op, err, "")
	}
	p.logger.Info("deleted simulation", zap.String("simulation", name))
	return nil
}

func (p *Pipeline) reap(ctx context.Context) {
	if p.deps.Reaper == nil {
		return
	}
	n, err := p.deps.Reaper.Reap(ctx)
	if err != nil {
		p.logger.Warn("failed to stop stray build tool processes", zap.Error(err))
		return
	}
	if n > 0 {
		p.logger.Info("stopped stray build tool processes", zap.Int("count", n))
	}
}

func preview(s string) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= previewLen {
		return string(r)
	}
	return string(r[:previewLen]) + "..."
}
