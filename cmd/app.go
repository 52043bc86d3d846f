package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/afero"

	"github.com/pders01/simforge/internal/builder"
	"github.com/pders01/simforge/internal/cache"
	"github.com/pders01/simforge/internal/config"
	"github.com/pders01/simforge/internal/importer"
	"github.com/pders01/simforge/internal/ollama"
	"github.com/pders01/simforge/internal/pipeline"
	"github.com/pders01/simforge/internal/project"
	"github.com/pders01/simforge/internal/workspace"
)

// app holds what every command needs: decoded config, the filesystem and
// the project store.
type app struct {
	cfg   *config.Config
	fs    afero.Fs
	store *project.Store
	sync  *workspace.Synchronizer
}

func newApp() (*app, error) {
	cfg, err := config.Current()
	if err != nil {
		return nil, err
	}
	fsys := afero.NewOsFs()
	store := project.NewStore(fsys, cfg.Paths.Simulations)
	return &app{
		cfg:   cfg,
		fs:    fsys,
		store: store,
		sync:  workspace.New(store, cfg.WorkspaceDir(), logger),
	}, nil
}

func (a *app) supervisor() *builder.Supervisor {
	c := a.cfg
	return builder.New(builder.Options{
		Executable:     c.Tool.Executable,
		Version:        c.Tool.Version,
		Workspace:      c.WorkspaceDir(),
		Product:        c.Workspace.Product,
		StatusInterval: c.Monitor.StatusInterval,
		SizeInterval:   c.Monitor.SizeInterval,
		SizeDelta:      c.SizeDeltaBytes(),
		JoinTimeout:    c.Monitor.JoinTimeout,
		VerifyAttempts: c.Build.VerifyAttempts,
		VerifyStep:     c.Build.VerifyStep,
	}, a.fs, logger, func(msg string) { fmt.Println(msg) })
}

func (a *app) openCache() (*cache.Cache, error) {
	if !a.cfg.Cache.Enabled {
		return nil, nil
	}
	return cache.Open(a.cfg.Cache.Path)
}

// pipelineOptions controls which optional collaborators are wired.
type pipelineOptions struct {
	models bool
	cache  bool
}

// pipeline builds the orchestrator. The returned func releases the cache.
func (a *app) pipeline(opts pipelineOptions) (*pipeline.Pipeline, func(), error) {
	c := a.cfg
	deps := pipeline.Deps{
		Store:     a.store,
		Importer:  importer.New(a.store, c.Paths.Template, logger),
		Workspace: a.sync,
		Runner:    a.supervisor(),
		Logger:    logger,
	}
	if c.Tool.Executable != "" {
		deps.Reaper = builder.NewReaper(c.Tool.Executable, logger)
	}

	cleanup := func() {}

	if opts.models {
		if !ollama.IsAvailable(c.LLM.URL) {
			return nil, nil, fmt.Errorf("ollama is not running at %s", c.LLM.URL)
		}
		gen, err := ollama.NewClient(c.LLM.URL, c.LLM.Model, c.LLM.Timeout)
		if err != nil {
			return nil, nil, err
		}
		val, err := ollama.NewClient(c.LLM.URL, c.LLM.ValidatorModel, c.LLM.Timeout)
		if err != nil {
			return nil, nil, err
		}
		deps.Generator = gen
		deps.Validator = val

		if c.Cache.Semantic {
			emb, err := ollama.NewClient(c.LLM.URL, c.LLM.EmbeddingModel, c.LLM.Timeout)
			if err != nil {
				return nil, nil, err
			}
			deps.Embedder = emb
		}
	}

	if opts.cache {
		rc, err := a.openCache()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: response cache unavailable: %v\n", err)
		} else if rc != nil {
			deps.Cache = rc
			cleanup = func() { rc.Close() }
		}
	}

	p := pipeline.New(deps, pipeline.Options{
		Build: builder.Batch{
			Operation:  "Build",
			EntryPoint: c.Build.Method,
			LogFile:    c.Build.LogFile,
			Timeout:    c.Build.Timeout,
		},
		Prefab: builder.Batch{
			Operation:  "Prefabs",
			EntryPoint: c.Prefab.Method,
			LogFile:    c.Prefab.LogFile,
			Timeout:    c.Prefab.Timeout,
		},
		Semantic:            c.Cache.Semantic,
		SimilarityThreshold: c.Cache.SimilarityThreshold,
	})
	return p, cleanup, nil
}

// interruptContext is cancelled on Ctrl-C.
func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func printWarnings(warnings []string) {
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}
}
