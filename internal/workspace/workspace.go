// Package workspace keeps the single build workspace in sync with one
// simulation project at a time.
//
// The workspace remembers which project it holds through a marker file
// stored outside the synced subtrees. A full sync replaces every subtree;
// an incremental sync refreshes the content subtree only, on the assumption
// that packages and settings do not change after a project is created.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/pders01/simforge/internal/fsutil"
	"github.com/pders01/simforge/internal/models"
	"github.com/pders01/simforge/internal/project"
)

const (
	stateDir   = ".simforge"
	markerName = "loaded"
)

// RuntimeMarker is rewritten after every successful sync so the built
// simulation can tell which project it was built from. It is never read
// back.
var RuntimeMarker = filepath.Join(models.AssetsDir, "StreamingAssets", "simulation_loaded.txt")

// Result describes a completed sync.
type Result struct {
	Name     string
	Full     bool
	Copied   []string
	Warnings []string
	Duration time.Duration
}

// Synchronizer copies projects into the workspace directory. It does not
// lock; callers must serialise Activate.
type Synchronizer struct {
	fs     afero.Fs
	store  *project.Store
	dir    string
	logger *zap.Logger
	now    func() time.Time
}

// New creates a synchronizer for the workspace at dir.
func New(store *project.Store, dir string, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{
		fs:     store.Fs(),
		store:  store,
		dir:    dir,
		logger: logger.Named("workspace"),
		now:    time.Now,
	}
}

// Dir returns the workspace directory.
func (s *Synchronizer) Dir() string { return s.dir }

func (s *Synchronizer) markerPath() string {
	return filepath.Join(s.dir, stateDir, markerName)
}

// Marker returns the name of the loaded project, or "" when none is.
func (s *Synchronizer) Marker() (string, error) {
	data, err := afero.ReadFile(s.fs, s.markerPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read marker: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Clear forgets the loaded project. The workspace content is left alone.
func (s *Synchronizer) Clear() error {
	if err := s.fs.Remove(s.markerPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove marker: %w", err)
	}
	return nil
}

// Size returns the total size of the workspace.
func (s *Synchronizer) Size() (int64, error) {
	return fsutil.DirSize(s.fs, s.dir)
}

// NeedsFullSync reports whether activating name must replace every subtree.
func NeedsFullSync(marker, name string, assetsPresent bool) bool {
	return marker == "" || marker != name || !assetsPresent
}

// Activate makes name the loaded project. The marker is only written after
// every copy succeeded; a failed sync leaves it as it was.
func (s *Synchronizer) Activate(name string) (*Result, error) {
	const op = "sync"
	start := s.now()

	if err := models.ValidateName(name); err != nil {
		return nil, models.Wrap(models.KindSync, op, err, "invalid simulation name")
	}
	src := s.store.Path(name)
	if !s.store.Exists(name) {
		return nil, models.Errorf(models.KindSync, op, "simulation %s not found at %s", name, src)
	}
	if !fsutil.IsDir(s.fs, filepath.Join(src, models.AssetsDir)) {
		return nil, models.Errorf(models.KindSync, op, "simulation %s has no %s folder", name, models.AssetsDir)
	}
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return nil, models.Wrap(models.KindSync, op, err, "failed to create workspace")
	}

	marker, err := s.Marker()
	if err != nil {
		return nil, models.Wrap(models.KindSync, op, err, "")
	}

	result := &Result{
		Name: name,
		Full: NeedsFullSync(marker, name, fsutil.IsDir(s.fs, filepath.Join(s.dir, models.AssetsDir))),
	}
	log := s.logger.With(zap.String("simulation", name), zap.Bool("full", result.Full))
	log.Info("syncing workspace", zap.String("previous", marker))

	subtrees := []string{models.AssetsDir}
	if result.Full {
		subtrees = models.Subtrees
	}

	for _, sub := range subtrees {
		from := filepath.Join(src, sub)
		to := filepath.Join(s.dir, sub)

		if !fsutil.IsDir(s.fs, from) {
			if err := s.fs.RemoveAll(to); err != nil {
				return nil, models.Wrap(models.KindSync, op, err, "failed to remove "+sub)
			}
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s has no %s folder", name, sub))
			log.Warn("subtree missing in simulation", zap.String("subtree", sub))
			continue
		}

		if err := fsutil.ReplaceDir(s.fs, from, to); err != nil {
			log.Error("sync aborted", zap.String("subtree", sub), zap.Error(err))
			return nil, models.Wrap(models.KindSync, op, err, "failed to copy "+sub)
		}
		result.Copied = append(result.Copied, sub)
	}

	if err := s.fs.MkdirAll(filepath.Dir(s.markerPath()), 0o755); err != nil {
		return nil, models.Wrap(models.KindSync, op, err, "failed to create state directory")
	}
	if err := afero.WriteFile(s.fs, s.markerPath(), []byte(name), 0o644); err != nil {
		return nil, models.Wrap(models.KindSync, op, err, "failed to write marker")
	}

	runtime := filepath.Join(s.dir, RuntimeMarker)
	if err := s.fs.MkdirAll(filepath.Dir(runtime), 0o755); err == nil {
		err = afero.WriteFile(s.fs, runtime, []byte(name), 0o644)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("failed to write runtime marker: %v", err))
		}
	}

	if err := s.store.TouchLastOpened(name); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("failed to update last opened: %v", err))
	}

	result.Duration = s.now().Sub(start)
	log.Info("workspace synced", zap.Strings("copied", result.Copied), zap.Duration("took", result.Duration))
	return result, nil
}
