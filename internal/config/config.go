// Package config holds the immutable run configuration built by the CLI and
// consumed by the orchestration runner.
package config

import "github.com/dialcheck/dialcheck/internal/models"

// RunConfig carries everything a suite run needs. It is immutable after
// construction; use the functional options to set fields.
type RunConfig struct {
	suite         *models.TestSuite
	catalog       *models.Catalog
	knowledgeBase *models.KnowledgeBase
	outputDir     string
	audioDir      string
	judgeModel    string
	engineType    string
	maxConcurrent int
	timeoutSec    int
	failFast      bool
	verbose       bool
	sessionLog    string
}

// Option mutates a RunConfig during construction.
type Option func(*RunConfig)

// New builds a RunConfig for the given suite. Options are applied in order;
// later options win. A nil option panics.
func New(suite *models.TestSuite, opts ...Option) *RunConfig {
	cfg := &RunConfig{
		suite:         suite,
		maxConcurrent: 1,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func WithCatalog(c *models.Catalog) Option {
	return func(cfg *RunConfig) { cfg.catalog = c }
}

func WithKnowledgeBase(kb *models.KnowledgeBase) Option {
	return func(cfg *RunConfig) { cfg.knowledgeBase = kb }
}

func WithOutputDir(dir string) Option {
	return func(cfg *RunConfig) { cfg.outputDir = dir }
}

func WithAudioDir(dir string) Option {
	return func(cfg *RunConfig) { cfg.audioDir = dir }
}

func WithJudgeModel(model string) Option {
	return func(cfg *RunConfig) { cfg.judgeModel = model }
}

func WithEngineType(engine string) Option {
	return func(cfg *RunConfig) { cfg.engineType = engine }
}

func WithMaxConcurrent(n int) Option {
	return func(cfg *RunConfig) {
		if n > 0 {
			cfg.maxConcurrent = n
		}
	}
}

func WithTimeout(seconds int) Option {
	return func(cfg *RunConfig) { cfg.timeoutSec = seconds }
}

func WithFailFast(v bool) Option {
	return func(cfg *RunConfig) { cfg.failFast = v }
}

func WithVerbose(v bool) Option {
	return func(cfg *RunConfig) { cfg.verbose = v }
}

// WithSessionLog sets the path for the NDJSON session log. Empty disables it.
func WithSessionLog(path string) Option {
	return func(cfg *RunConfig) { cfg.sessionLog = path }
}

func (c *RunConfig) Suite() *models.TestSuite             { return c.suite }
func (c *RunConfig) Catalog() *models.Catalog             { return c.catalog }
func (c *RunConfig) KnowledgeBase() *models.KnowledgeBase { return c.knowledgeBase }
func (c *RunConfig) OutputDir() string                    { return c.outputDir }
func (c *RunConfig) AudioDir() string                     { return c.audioDir }
func (c *RunConfig) JudgeModel() string                   { return c.judgeModel }
func (c *RunConfig) EngineType() string                   { return c.engineType }
func (c *RunConfig) MaxConcurrent() int                   { return c.maxConcurrent }
func (c *RunConfig) TimeoutSec() int                      { return c.timeoutSec }
func (c *RunConfig) FailFast() bool                       { return c.failFast }
func (c *RunConfig) Verbose() bool                        { return c.verbose }
func (c *RunConfig) SessionLog() string                   { return c.sessionLog }
