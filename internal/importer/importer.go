// Package importer merges extracted artifacts into a copy of the template
// project.
package importer

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/pders01/simforge/internal/fsutil"
	"github.com/pders01/simforge/internal/models"
	"github.com/pders01/simforge/internal/project"
)

const (
	editorHeader = "#if UNITY_EDITOR\nusing UnityEngine;\nusing UnityEditor;\nusing System.IO;\n\n"
	editorFooter = "\n#endif\n"

	systemDeclaration = "public partial class GeneralSystem : SystemBase"
	componentRef      = "GeneralComponent"
)

// Report describes the outcome of an import. Warnings do not make the
// import fail as long as at least one file was written.
type Report struct {
	Name     string
	Path     string
	Reused   bool
	Written  []string
	Warnings []string
}

func (r *Report) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Importer writes artifacts into simulation projects.
type Importer struct {
	fs           afero.Fs
	store        *project.Store
	templateRoot string
	logger       *zap.Logger
}

// New creates an importer that copies templateRoot into projects of store.
func New(store *project.Store, templateRoot string, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{
		fs:           store.Fs(),
		store:        store,
		templateRoot: templateRoot,
		logger:       logger.Named("importer"),
	}
}

// Destination returns where an artifact with the given role lands, relative
// to the project root.
func Destination(role models.Role, filename string) string {
	switch role {
	case models.RoleEditorGuard:
		return filepath.Join(models.EditorDir, filename)
	case models.RoleComponent:
		return filepath.Join(models.ComponentsDir, filename)
	case models.RoleSystem:
		return filepath.Join(models.SystemsDir, filename)
	default:
		return filepath.Join(models.GeneralDir, filename)
	}
}

// Import creates (or reuses) the project name and writes every artifact into
// it. Per-file failures are collected as warnings.
func (im *Importer) Import(artifacts models.Artifacts, name string) (*Report, error) {
	const op = "import"

	if err := models.ValidateName(name); err != nil {
		return nil, models.Wrap(models.KindTemplate, op, err, "invalid simulation name")
	}
	if len(artifacts) == 0 {
		return nil, models.Errorf(models.KindExtraction, op, "no code blocks to import")
	}

	report := &Report{Name: name, Path: im.store.Path(name)}
	log := im.logger.With(zap.String("simulation", name))

	if im.store.IsFile(name) {
		return nil, models.Errorf(models.KindTemplate, op, "%s exists and is not a directory", report.Path)
	}
	if !fsutil.IsDir(im.fs, im.templateRoot) {
		return nil, models.Errorf(models.KindTemplate, op, "template not found at %s", im.templateRoot)
	}

	if im.store.Exists(name) {
		report.Reused = true
		report.warn("simulation %s already exists, reusing it", name)
		log.Warn("reusing existing simulation directory", zap.String("path", report.Path))
	} else {
		log.Info("copying template", zap.String("template", im.templateRoot), zap.String("path", report.Path))
		if err := fsutil.CopyDir(im.fs, im.templateRoot, report.Path); err != nil {
			return nil, models.Wrap(models.KindTemplate, op, err, "failed to copy template")
		}
	}

	for _, dir := range []string{models.EditorDir, models.ComponentsDir, models.SystemsDir, models.GeneralDir} {
		if err := im.fs.MkdirAll(filepath.Join(report.Path, dir), 0o755); err != nil {
			return nil, models.Wrap(models.KindTemplate, op, err, "failed to create "+dir)
		}
	}

	for _, artifact := range artifacts {
		rel := Destination(artifact.Role, artifact.Filename)
		content := im.render(artifact, report)

		if err := afero.WriteFile(im.fs, filepath.Join(report.Path, rel), []byte(content), 0o644); err != nil {
			report.warn("failed to write %s: %v", artifact.Filename, err)
			log.Error("failed to write artifact", zap.String("file", artifact.Filename), zap.Error(err))
			continue
		}
		report.Written = append(report.Written, filepath.ToSlash(rel))
		log.Debug("wrote artifact",
			zap.String("file", artifact.Filename),
			zap.Stringer("role", artifact.Role),
			zap.String("dest", rel))
	}

	if !slices.Contains(report.Written, filepath.ToSlash(models.SystemBoilerplate)) {
		generic := filepath.Join(report.Path, models.SystemBoilerplate)
		if err := im.fs.Remove(generic); err != nil && !errors.Is(err, fs.ErrNotExist) {
			report.warn("failed to remove %s: %v", models.SystemBoilerplate, err)
		}
	}

	if len(report.Written) == 0 {
		return report, models.Errorf(models.KindTemplate, op, "no files were imported into %s", name)
	}

	if err := im.store.UpdateMetadata(name, func(m *models.Metadata) {
		m.Name = name
		m.Files = mergeFiles(m.Files, report.Written)
	}); err != nil {
		report.warn("failed to write metadata: %v", err)
	}

	log.Info("import finished",
		zap.Int("written", len(report.Written)),
		zap.Int("warnings", len(report.Warnings)),
		zap.Bool("reused", report.Reused))
	return report, nil
}

func (im *Importer) render(artifact models.CodeArtifact, report *Report) string {
	content := artifact.Content()

	switch artifact.Role {
	case models.RoleEditorGuard:
		return editorHeader + content + editorFooter
	case models.RoleComponent:
		return content
	case models.RoleSystem:
		organism := models.Organism(artifact.Filename)
		return im.spliceBoilerplate(models.SystemBoilerplate, systemAnchor, content, report, func(text string) string {
			text = strings.ReplaceAll(text, systemDeclaration, fmt.Sprintf("public partial class %sSystem : SystemBase", organism))
			return strings.ReplaceAll(text, componentRef, organism+"Component")
		})
	case models.RoleGeneralDriver:
		return im.spliceBoilerplate(models.DriverBoilerplate, driverAnchor, content, report, nil)
	default:
		report.warn("%s matched no known role, placed in %s", artifact.Filename, models.GeneralDir)
		return content
	}
}

// spliceBoilerplate reads a boilerplate from the template, applies rewrite
// and inserts content after its anchor line. Any failure falls back to the
// raw content with a warning.
func (im *Importer) spliceBoilerplate(rel string, a anchor, content string, report *Report, rewrite func(string) string) string {
	data, err := afero.ReadFile(im.fs, filepath.Join(im.templateRoot, rel))
	if err != nil {
		report.warn("boilerplate %s unavailable, writing raw content: %v", rel, err)
		return content
	}

	text := string(data)
	if rewrite != nil {
		text = rewrite(text)
	}

	spliced, ok := a.splice(text, content)
	if !ok {
		report.warn("anchor line not found in %s, writing raw content", rel)
		return content
	}
	return spliced
}

func mergeFiles(existing, written []string) []string {
	seen := make(map[string]bool, len(existing)+len(written))
	var out []string
	for _, f := range append(append([]string{}, existing...), written...) {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}
