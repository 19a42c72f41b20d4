// Package engine ties the context pipeline together: it resolves the
// session's project and mode, computes the retrieval scope, assembles
// the prompt under budget and calls the completion provider.
package engine

import (
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/BaSui01/deskagent/compose"
	"github.com/BaSui01/deskagent/internal/metrics"
	"github.com/BaSui01/deskagent/llm"
	"github.com/BaSui01/deskagent/rag"
	"github.com/BaSui01/deskagent/resolve"
	"github.com/BaSui01/deskagent/scope"
	"github.com/BaSui01/deskagent/store"
)

// Config carries the engine-level policies.
type Config struct {
	// DailyTokenLimit caps tokens per user per UTC day. Zero disables
	// the cap.
	DailyTokenLimit int `yaml:"daily_token_limit" json:"daily_token_limit"`
	// DefaultProfile is used when a project has no active mode.
	DefaultProfile string `yaml:"default_profile" json:"default_profile"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		DailyTokenLimit: 0,
		DefaultProfile:  "coder",
	}
}

// Engine handles turns and the command surface around them.
type Engine struct {
	cfg Config

	users    *store.UserRepo
	projects *store.ProjectRepo
	modes    *store.ModeRepo
	sessions *store.SessionRepo
	access   *store.AccessRepo
	prompts  *store.PromptRepo

	resolver *resolve.Resolver
	selector *scope.Selector
	composer *compose.Composer
	memory   *rag.Client
	llm      *llm.Client

	metrics *metrics.Collector
	tracer  trace.Tracer
	logger  *zap.Logger
}

// Deps bundles the engine's collaborators for construction.
type Deps struct {
	Users    *store.UserRepo
	Projects *store.ProjectRepo
	Modes    *store.ModeRepo
	Sessions *store.SessionRepo
	Access   *store.AccessRepo
	Prompts  *store.PromptRepo

	Resolver *resolve.Resolver
	Selector *scope.Selector
	Composer *compose.Composer
	Memory   *rag.Client
	LLM      *llm.Client

	Metrics *metrics.Collector
	Tracer  trace.Tracer
	Logger  *zap.Logger
}

// New creates an Engine. Metrics and Tracer may be nil.
func New(cfg Config, deps Deps) *Engine {
	if cfg.DefaultProfile == "" {
		cfg.DefaultProfile = DefaultConfig().DefaultProfile
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("deskagent")
	}
	return &Engine{
		cfg:      cfg,
		users:    deps.Users,
		projects: deps.Projects,
		modes:    deps.Modes,
		sessions: deps.Sessions,
		access:   deps.Access,
		prompts:  deps.Prompts,
		resolver: deps.Resolver,
		selector: deps.Selector,
		composer: deps.Composer,
		memory:   deps.Memory,
		llm:      deps.LLM,
		metrics:  deps.Metrics,
		tracer:   tracer,
		logger:   logger.With(zap.String("component", "engine")),
	}
}
