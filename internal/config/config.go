package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/pders01/simforge/internal/fsutil"
	"github.com/pders01/simforge/internal/models"
)

// EnvPrefix prefixes every environment override, e.g. SIMFORGE_TOOL_EXECUTABLE.
const EnvPrefix = "SIMFORGE"

// Config is the decoded configuration shared by every command.
type Config struct {
	Paths     PathsConfig     `mapstructure:"paths"`
	Workspace WorkspaceConfig `mapstructure:"workspace"`
	Tool      ToolConfig      `mapstructure:"tool"`
	Build     BatchConfig     `mapstructure:"build"`
	Prefab    BatchConfig     `mapstructure:"prefab"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Retention RetentionConfig `mapstructure:"retention"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type PathsConfig struct {
	Simulations string `mapstructure:"simulations"`
	Template    string `mapstructure:"template"`
}

type WorkspaceConfig struct {
	Root        string `mapstructure:"root"`
	ProjectName string `mapstructure:"project_name"`
	Product     string `mapstructure:"product"`
}

type ToolConfig struct {
	Executable string `mapstructure:"executable"`
	Version    string `mapstructure:"version"`
}

// BatchConfig describes one headless entry point of the build tool.
type BatchConfig struct {
	Method         string        `mapstructure:"method"`
	Timeout        time.Duration `mapstructure:"timeout"`
	LogFile        string        `mapstructure:"log_file"`
	VerifyAttempts int           `mapstructure:"verify_attempts"`
	VerifyStep     time.Duration `mapstructure:"verify_step"`
}

type MonitorConfig struct {
	StatusInterval time.Duration `mapstructure:"status_interval"`
	SizeInterval   time.Duration `mapstructure:"size_interval"`
	SizeDeltaMB    float64       `mapstructure:"size_delta_mb"`
	JoinTimeout    time.Duration `mapstructure:"join_timeout"`
}

type LLMConfig struct {
	URL            string        `mapstructure:"url"`
	Model          string        `mapstructure:"model"`
	ValidatorModel string        `mapstructure:"validator_model"`
	EmbeddingModel string        `mapstructure:"embedding_model"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type CacheConfig struct {
	Enabled             bool    `mapstructure:"enabled"`
	Path                string  `mapstructure:"path"`
	Semantic            bool    `mapstructure:"semantic"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
}

type RetentionConfig struct {
	Days     int      `mapstructure:"days"`
	Preserve []string `mapstructure:"preserve"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// SetDefaults registers every key with its default value and wires
// environment overrides.
func SetDefaults(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("paths.simulations", "Simulations")
	v.SetDefault("paths.template", "Template")

	v.SetDefault("workspace.root", "Workspace")
	v.SetDefault("workspace.project_name", "Simulation")
	v.SetDefault("workspace.product", "Simulation")

	v.SetDefault("tool.executable", "")
	v.SetDefault("tool.version", "6000.0.32f1")

	v.SetDefault("build.method", "BuildScript.PerformBuild")
	v.SetDefault("build.timeout", "30m")
	v.SetDefault("build.log_file", "build_log.txt")
	v.SetDefault("build.verify_attempts", 6)
	v.SetDefault("build.verify_step", "500ms")

	v.SetDefault("prefab.method", "PrefabMaterialCreator.CreatePrefabsAndMaterials")
	v.SetDefault("prefab.timeout", "10m")
	v.SetDefault("prefab.log_file", "prefab_tool_log.txt")

	v.SetDefault("monitor.status_interval", "1s")
	v.SetDefault("monitor.size_interval", "5s")
	v.SetDefault("monitor.size_delta_mb", 1.0)
	v.SetDefault("monitor.join_timeout", "1s")

	v.SetDefault("llm.url", "http://localhost:11434")
	v.SetDefault("llm.model", "qwen2.5-coder:7b")
	v.SetDefault("llm.validator_model", "qwen2.5:3b")
	v.SetDefault("llm.embedding_model", "nomic-embed-text")
	v.SetDefault("llm.timeout", "5m")

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", "")
	v.SetDefault("cache.semantic", false)
	v.SetDefault("cache.similarity_threshold", 0.97)

	v.SetDefault("retention.days", 90)
	v.SetDefault("retention.preserve", []string{})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.json", false)
}

// Load decodes v into a Config.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.Cache.Path == "" {
		cfg.Cache.Path = filepath.Join(cfg.Paths.Simulations, ".cache", "responses.db")
	}
	return &cfg, nil
}

// Current decodes the global viper instance.
func Current() (*Config, error) {
	return Load(viper.GetViper())
}

// WorkspaceDir is the single mutable build workspace.
func (c *Config) WorkspaceDir() string {
	return filepath.Join(c.Workspace.Root, c.Workspace.ProjectName)
}

// SizeDeltaBytes converts the size logging threshold to bytes.
func (c *Config) SizeDeltaBytes() int64 {
	return int64(c.Monitor.SizeDeltaMB * 1024 * 1024)
}

// Verify checks the external tool and the directories simforge depends on.
// Every failed check is returned, joined.
func (c *Config) Verify(fsys afero.Fs) error {
	const op = "verify"
	var errs []error

	switch {
	case c.Tool.Executable == "":
		errs = append(errs, models.Errorf(models.KindConfiguration, op, "tool.executable is not set"))
	case !fsutil.IsFile(fsys, c.Tool.Executable):
		errs = append(errs, models.Errorf(models.KindConfiguration, op, "build tool not found at %s", c.Tool.Executable))
	case !strings.Contains(c.Tool.Executable, c.Tool.Version):
		errs = append(errs, models.Errorf(models.KindConfiguration, op, "build tool at %s is not version %s", c.Tool.Executable, c.Tool.Version))
	}

	if !fsutil.IsDir(fsys, c.Workspace.Root) {
		errs = append(errs, models.Errorf(models.KindConfiguration, op, "workspace root %s is not a directory", c.Workspace.Root))
	}
	if !fsutil.IsDir(fsys, c.Paths.Template) {
		errs = append(errs, models.Errorf(models.KindConfiguration, op, "template %s is not a directory", c.Paths.Template))
	}
	if c.Build.VerifyAttempts <= 0 {
		errs = append(errs, models.Errorf(models.KindConfiguration, op, "build.verify_attempts must be positive"))
	}

	return errors.Join(errs...)
}

// GetRetentionDays returns the retention period in days
func GetRetentionDays() int {
	return viper.GetInt("retention.days")
}

// GetPreserve returns simulation names that are never pruned
func GetPreserve() []string {
	return viper.GetStringSlice("retention.preserve")
}

// ShouldPreserve checks if a simulation should be kept regardless of age
func ShouldPreserve(name string) bool {
	for _, keep := range GetPreserve() {
		if strings.EqualFold(keep, name) {
			return true
		}
	}
	return false
}
