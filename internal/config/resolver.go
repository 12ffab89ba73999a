package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/medscribe/symcat/internal/extract"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

// ResolvedValue is one setting plus where it came from, for `symcat config`
// style introspection and error messages.
type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

type ResolveOptions struct {
	ConfigPath string
	CLIDBPath  string
	CLICatalog string
}

type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	DBPath      ResolvedValue `json:"db_path"`
	CatalogPath ResolvedValue `json:"catalog_path"`

	// ExtraPatterns extends the built-in context-pattern table.
	ExtraPatterns []extract.PatternSpec `json:"extra_patterns,omitempty"`
}

type fileConfig struct {
	DBPath      string `yaml:"db_path"`
	CatalogPath string `yaml:"catalog_path"`
	Extract     struct {
		Patterns []extract.PatternSpec `yaml:"patterns"`
	} `yaml:"extract"`
}

func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".symcat", "config.yaml")
}

// ResolveConfig merges file, environment, and CLI settings. Precedence is
// CLI > env > config file, matching flag semantics.
func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{ConfigPath: path}

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}
	if cfg != nil {
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.CatalogPath, cfg.CatalogPath, SourceConfig, path)
		out.ExtraPatterns = cfg.Extract.Patterns
	}

	applyEnv(&out.DBPath, "SYMCAT_DB")
	applyEnv(&out.DBPath, "SYMCAT_DB_PATH")
	applyEnv(&out.CatalogPath, "SYMCAT_CATALOG")

	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.CatalogPath, opts.CLICatalog, SourceCLI, "--catalog")

	if out.DBPath.Value != "" {
		out.DBPath.Value = expandUserPath(out.DBPath.Value)
	}
	if out.CatalogPath.Value != "" {
		out.CatalogPath.Value = expandUserPath(out.CatalogPath.Value)
	}

	return out, nil
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
