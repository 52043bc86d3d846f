// Package project manages simulation projects on disk.
package project

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/pders01/simforge/internal/fsutil"
	"github.com/pders01/simforge/internal/models"
)

// ErrNotFound is returned when a project does not exist or is incomplete.
var ErrNotFound = errors.New("simulation not found")

// Store reads and writes projects below a root directory.
type Store struct {
	fs   afero.Fs
	root string
	now  func() time.Time
}

// NewStore creates a store rooted at root.
func NewStore(fsys afero.Fs, root string) *Store {
	return &Store{fs: fsys, root: root, now: time.Now}
}

// Root returns the directory holding every project.
func (s *Store) Root() string { return s.root }

// Fs returns the underlying filesystem.
func (s *Store) Fs() afero.Fs { return s.fs }

// Path returns the directory of the named project.
func (s *Store) Path(name string) string {
	return filepath.Join(s.root, name)
}

// Exists reports whether a directory for name exists, complete or not.
func (s *Store) Exists(name string) bool {
	return fsutil.IsDir(s.fs, s.Path(name))
}

// Valid reports whether the project has both the content and settings
// subtrees.
func (s *Store) Valid(name string) bool {
	dir := s.Path(name)
	return fsutil.IsDir(s.fs, filepath.Join(dir, models.AssetsDir)) &&
		fsutil.IsDir(s.fs, filepath.Join(dir, models.ProjectSettingsDir))
}

// Get loads a single project.
func (s *Store) Get(name string) (*models.Simulation, error) {
	if err := models.ValidateName(name); err != nil {
		return nil, err
	}
	if !s.Valid(name) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return s.load(name)
}

// List returns every valid project sorted by name.
func (s *Store) List() ([]*models.Simulation, error) {
	entries, err := afero.ReadDir(s.fs, s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", s.root, err)
	}

	var sims []*models.Simulation
	for _, entry := range entries {
		if !entry.IsDir() || !s.Valid(entry.Name()) {
			continue
		}
		sim, err := s.load(entry.Name())
		if err != nil {
			return nil, err
		}
		sims = append(sims, sim)
	}

	sort.Slice(sims, func(i, j int) bool { return sims[i].Name < sims[j].Name })
	return sims, nil
}

// FillSizes computes SizeBytes for every simulation concurrently.
func (s *Store) FillSizes(ctx context.Context, sims []*models.Simulation) error {
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(4)

	for _, sim := range sims {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			size, err := fsutil.DirSize(s.fs, sim.Path)
			if err != nil {
				return fmt.Errorf("failed to size %s: %w", sim.Name, err)
			}
			sim.SizeBytes = size
			return nil
		})
	}

	return eg.Wait()
}

func (s *Store) load(name string) (*models.Simulation, error) {
	dir := s.Path(name)
	info, err := s.fs.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", dir, err)
	}

	sim := &models.Simulation{
		Name:      name,
		Path:      dir,
		CreatedAt: info.ModTime(),
	}

	meta, err := s.ReadMetadata(name)
	if err != nil {
		return nil, err
	}
	if meta != nil {
		sim.Metadata = meta
		if !meta.CreatedAt.IsZero() {
			sim.CreatedAt = meta.CreatedAt
		}
		sim.LastOpenedAt = meta.LastOpenedAt
	}
	return sim, nil
}

// ReadMetadata returns nil without error when the project has no metadata.
func (s *Store) ReadMetadata(name string) (*models.Metadata, error) {
	path := models.MetadataPath(s.Path(name))
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var meta models.Metadata
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &meta, nil
}

// WriteMetadata replaces the project's metadata file.
func (s *Store) WriteMetadata(name string, meta *models.Metadata) error {
	data, err := yaml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := afero.WriteFile(s.fs, models.MetadataPath(s.Path(name)), data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

// TouchLastOpened records the current time as the project's last activation.
func (s *Store) TouchLastOpened(name string) error {
	meta, err := s.ReadMetadata(name)
	if err != nil {
		return err
	}
	if meta == nil {
		meta = &models.Metadata{Name: name}
		if info, err := s.fs.Stat(s.Path(name)); err == nil {
			meta.CreatedAt = info.ModTime()
		}
	}
	now := s.now()
	meta.LastOpenedAt = &now
	return s.WriteMetadata(name, meta)
}

// Delete removes the project directory.
func (s *Store) Delete(name string) error {
	if err := models.ValidateName(name); err != nil {
		return err
	}
	if !s.Exists(name) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err := s.fs.RemoveAll(s.Path(name)); err != nil {
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}
	return nil
}

// IsFile reports whether a non-directory entry occupies the project's name.
func (s *Store) IsFile(name string) bool {
	info, err := s.fs.Stat(s.Path(name))
	return err == nil && !info.IsDir() && info.Mode()&os.ModeType == 0
}

// UpdateMetadata applies fn to the project's metadata, creating it when
// absent.
func (s *Store) UpdateMetadata(name string, fn func(*models.Metadata)) error {
	meta, err := s.ReadMetadata(name)
	if err != nil {
		return err
	}
	if meta == nil {
		meta = &models.Metadata{Name: name, CreatedAt: s.now()}
	}
	fn(meta)
	return s.WriteMetadata(name, meta)
}
