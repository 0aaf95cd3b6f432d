// Package projectconfig provides the ProjectConfig struct and loader for
// .dialcheck.yaml project-level configuration files.
package projectconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Default values for project configuration. These are the single source of
// truth; New() references them and no other code should duplicate them.
const (
	DefaultSuitesDir   = "suites/"
	DefaultCatalogPath = "catalog.yaml"
	DefaultKBPath      = "knowledge_base.yaml"
	DefaultReportsDir  = "reports/"

	DefaultEngine      = "twilio"
	DefaultJudgeModel  = "gpt-4o"
	DefaultTimeout     = 300
	DefaultConcurrency = 2

	DefaultCacheDir = ".dialcheck-cache"

	DefaultServerPort = 8080
)

// PathsConfig holds directory paths for suites, catalogs, and reports.
type PathsConfig struct {
	Suites        string `yaml:"suites,omitempty"`
	Catalog       string `yaml:"catalog,omitempty"`
	KnowledgeBase string `yaml:"knowledge_base,omitempty"`
	Reports       string `yaml:"reports,omitempty"`
}

// DefaultsConfig holds default execution parameters.
type DefaultsConfig struct {
	Engine      string `yaml:"engine,omitempty"`
	JudgeModel  string `yaml:"judge_model,omitempty"`
	Timeout     int    `yaml:"timeout,omitempty"`
	Concurrency int    `yaml:"concurrency,omitempty"`
	Verbose     *bool  `yaml:"verbose,omitempty"`
	SessionLog  *bool  `yaml:"session_log,omitempty"`
	LocalMode   *bool  `yaml:"local_mode,omitempty"`
}

// CacheConfig holds evaluation cache settings.
type CacheConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Dir     string `yaml:"dir,omitempty"`
}

// ServerConfig holds dashboard server settings.
type ServerConfig struct {
	Port       int    `yaml:"port,omitempty"`
	PublicHost string `yaml:"public_host,omitempty"`
}

// ProjectConfig is the top-level configuration loaded from .dialcheck.yaml.
type ProjectConfig struct {
	Paths    PathsConfig    `yaml:"paths,omitempty"`
	Defaults DefaultsConfig `yaml:"defaults,omitempty"`
	Cache    CacheConfig    `yaml:"cache,omitempty"`
	Server   ServerConfig   `yaml:"server,omitempty"`
}

// New returns a ProjectConfig with all hard-coded defaults populated.
func New() *ProjectConfig {
	return &ProjectConfig{
		Paths: PathsConfig{
			Suites:        DefaultSuitesDir,
			Catalog:       DefaultCatalogPath,
			KnowledgeBase: DefaultKBPath,
			Reports:       DefaultReportsDir,
		},
		Defaults: DefaultsConfig{
			Engine:      DefaultEngine,
			JudgeModel:  DefaultJudgeModel,
			Timeout:     DefaultTimeout,
			Concurrency: DefaultConcurrency,
			Verbose:     boolPtr(false),
			SessionLog:  boolPtr(false),
			LocalMode:   boolPtr(false),
		},
		Cache: CacheConfig{
			Enabled: boolPtr(false),
			Dir:     DefaultCacheDir,
		},
		Server: ServerConfig{
			Port: DefaultServerPort,
		},
	}
}

// Load finds .dialcheck.yaml by walking up from startDir (max 10 levels),
// unmarshals it, and fills in missing fields with defaults.
// If no config file is found, returns defaults with a nil error.
// Real I/O errors (e.g. permission denied) are returned to the caller.
func Load(startDir string) (*ProjectConfig, error) {
	cfg := New()

	data, err := findConfigFile(startDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil // no file found → return defaults
		}
		return nil, fmt.Errorf("loading .dialcheck.yaml: %w", err)
	}

	var fileCfg ProjectConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing .dialcheck.yaml: %w", err)
	}

	// Merge file values onto defaults.
	mergeConfig(cfg, &fileCfg)
	return cfg, nil
}

// findConfigFile walks up from dir looking for .dialcheck.yaml (max 10 levels).
// Returns os.ErrNotExist if no config file is found. Propagates real I/O
// errors (e.g. permission denied) instead of silently swallowing them.
func findConfigFile(dir string) ([]byte, error) {
	// Convert to absolute path so filepath.Dir(".") walks correctly.
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path %q: %w", dir, err)
	}
	dir = absDir

	for i := 0; i < 10; i++ {
		p := filepath.Join(dir, ".dialcheck.yaml")
		data, err := os.ReadFile(p)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached filesystem root
		}
		dir = parent
	}
	return nil, os.ErrNotExist
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *ProjectConfig) {
	// Paths
	if src.Paths.Suites != "" {
		dst.Paths.Suites = src.Paths.Suites
	}
	if src.Paths.Catalog != "" {
		dst.Paths.Catalog = src.Paths.Catalog
	}
	if src.Paths.KnowledgeBase != "" {
		dst.Paths.KnowledgeBase = src.Paths.KnowledgeBase
	}
	if src.Paths.Reports != "" {
		dst.Paths.Reports = src.Paths.Reports
	}

	// Defaults
	if src.Defaults.Engine != "" {
		dst.Defaults.Engine = src.Defaults.Engine
	}
	if src.Defaults.JudgeModel != "" {
		dst.Defaults.JudgeModel = src.Defaults.JudgeModel
	}
	if src.Defaults.Timeout != 0 {
		dst.Defaults.Timeout = src.Defaults.Timeout
	}
	if src.Defaults.Concurrency != 0 {
		dst.Defaults.Concurrency = src.Defaults.Concurrency
	}
	if src.Defaults.Verbose != nil {
		dst.Defaults.Verbose = src.Defaults.Verbose
	}
	if src.Defaults.SessionLog != nil {
		dst.Defaults.SessionLog = src.Defaults.SessionLog
	}
	if src.Defaults.LocalMode != nil {
		dst.Defaults.LocalMode = src.Defaults.LocalMode
	}

	// Cache
	if src.Cache.Enabled != nil {
		dst.Cache.Enabled = src.Cache.Enabled
	}
	if src.Cache.Dir != "" {
		dst.Cache.Dir = src.Cache.Dir
	}

	// Server
	if src.Server.Port != 0 {
		dst.Server.Port = src.Server.Port
	}
	if src.Server.PublicHost != "" {
		dst.Server.PublicHost = src.Server.PublicHost
	}
}

func boolPtr(b bool) *bool {
	return &b
}
