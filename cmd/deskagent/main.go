// deskagent is the context assembly backend for the desk-top agent:
// it owns projects, modes, sessions and cross-project ACLs, retrieves
// long-term memory under token budgets and calls the completion
// provider.
//
// Usage:
//
//	deskagent serve --config config.yaml
//	deskagent version
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/deskagent/compose"
	"github.com/BaSui01/deskagent/config"
	"github.com/BaSui01/deskagent/engine"
	"github.com/BaSui01/deskagent/internal/metrics"
	"github.com/BaSui01/deskagent/internal/telemetry"
	"github.com/BaSui01/deskagent/llm"
	"github.com/BaSui01/deskagent/rag"
	"github.com/BaSui01/deskagent/resolve"
	"github.com/BaSui01/deskagent/scope"
	"github.com/BaSui01/deskagent/store"
	"github.com/BaSui01/deskagent/tokenizer"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "version":
		fmt.Printf("deskagent %s (built %s)\n", Version, BuildTime)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting deskagent",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	db, err := store.Open(cfg.Database, logger)
	if err != nil {
		logger.Fatal("database unavailable", zap.Error(err))
	}

	tel, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Fatal("telemetry init failed", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tel.Shutdown(ctx)
	}()

	collector := metrics.NewCollector("deskagent", logger)
	counter := tokenizer.ForModel(cfg.TokenizerModel)

	provider, err := llm.NewOpenAIProvider(cfg.LLM, logger)
	if err != nil {
		logger.Fatal("llm provider not configured", zap.Error(err))
	}
	llmClient := llm.NewClient(provider, llm.DefaultClientConfig(), collector, logger)

	var memoryStore rag.MemoryStore
	if cfg.UseInMemoryVectors {
		memoryStore = rag.NewInMemoryStore(logger)
	} else {
		memoryStore = rag.NewPineconeStore(cfg.Pinecone, logger)
	}
	memory := rag.NewClient(llmClient, memoryStore, cfg.MemoryTopK, logger)

	projects := store.NewProjectRepo(db, logger)
	access := store.NewAccessRepo(db, logger)
	resolver := resolve.NewResolver(projects, logger)
	sessions := store.NewSessionRepo(db, logger)

	if cfg.Redis.Enabled {
		cache, err := store.NewHistoryCache(cfg.Redis, logger)
		if err != nil {
			logger.Fatal("redis unavailable", zap.Error(err))
		}
		defer func() { _ = cache.Close() }()
		sessions = sessions.WithHistoryCache(cache)
	}

	eng := engine.New(cfg.Engine, engine.Deps{
		Users:    store.NewUserRepo(db, logger),
		Projects: projects,
		Modes:    store.NewModeRepo(db, logger),
		Sessions: sessions,
		Access:   access,
		Prompts:  store.NewPromptRepo(db, logger),
		Resolver: resolver,
		Selector: scope.NewSelector(resolver, access, logger),
		Composer: compose.NewComposer(cfg.Compose, counter, logger),
		Memory:   memory,
		LLM:      llmClient,
		Metrics:  collector,
		Tracer:   tel.Tracer("deskagent"),
		Logger:   logger,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /v1/message", handleMessage(eng, logger))

	srv := &http.Server{
		Addr:    cfg.Server.MetricsAddr,
		Handler: mux,
	}
	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Server.MetricsAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	if cfg.Server.SessionRetention > 0 {
		go runRetention(rootCtx, sessions, cfg.Server, logger)
	}

	<-rootCtx.Done()

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
	logger.Info("deskagent stopped")
}

type messageRequest struct {
	UserID   uint64 `json:"user_id"`
	Username string `json:"username"`
	Text     string `json:"text"`
}

type messageResponse struct {
	Text    string   `json:"text"`
	Warning string   `json:"warning,omitempty"`
	Ignored []string `json:"ignored,omitempty"`
}

// handleMessage is the minimal local surface for driving a turn; the full
// chat transport binds the engine separately.
func handleMessage(eng *engine.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req messageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == 0 || req.Text == "" {
			http.Error(w, "user_id and text are required", http.StatusBadRequest)
			return
		}

		res, err := eng.HandleMessage(r.Context(), req.UserID, req.Username, req.Text)
		if err != nil {
			logger.Warn("turn failed", zap.Uint64("user_id", req.UserID), zap.Error(err))
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}

		resp := messageResponse{Text: res.Text, Warning: res.Warning}
		for _, ig := range res.Ignored {
			resp.Ignored = append(resp.Ignored, fmt.Sprintf("%s: %s", ig.Name, ig.Reason))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func runRetention(ctx context.Context, sessions *store.SessionRepo, cfg config.ServerConfig, logger *zap.Logger) {
	interval := cfg.RetentionInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-cfg.SessionRetention)
			if _, err := sessions.DeleteClosedOlderThan(ctx, cutoff); err != nil {
				logger.Warn("retention sweep failed", zap.Error(err))
			}
		}
	}
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zcfg zap.Config
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zcfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func printUsage() {
	fmt.Println(`deskagent - project-scoped conversational agent backend

Commands:
  serve     Start the service
  version   Show version information
  help      Show this help

Options for serve:
  --config  Path to YAML config file (env: DESKAGENT_* overrides)`)
}
