package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/martinemde/vanna/agent"
	"github.com/martinemde/vanna/audit"
	"github.com/martinemde/vanna/config"
	"github.com/martinemde/vanna/filesystem"
	"github.com/martinemde/vanna/llm"
	"github.com/martinemde/vanna/logging"
	"github.com/martinemde/vanna/memory"
	"github.com/martinemde/vanna/observability"
	"github.com/martinemde/vanna/sqlrunner"
	"github.com/martinemde/vanna/storage"
	"github.com/martinemde/vanna/tool"
	"github.com/martinemde/vanna/tools"
	"github.com/martinemde/vanna/user"
)

// app is everything a command needs, built once from the config.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	llm    llm.Service
	// client routes to llm and logs every request.
	client   *llm.Client
	registry *tool.Registry
	memory   memory.AgentMemory
	agent    *agent.Agent
	// metrics is nil unless metrics are enabled.
	metrics *prometheus.Registry
	closers []func() error
}

func loadApp(flags *rootFlags) (*app, error) {
	cfg, err := config.Load(config.LoadOptions{Path: flags.configPath, EnvFile: flags.envFile})
	if err != nil {
		return nil, err
	}
	return newApp(cfg, logging.New(logging.ParseLevel(flags.logLevel)))
}

func newApp(cfg config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	svc, err := newLLMService(cfg.LLM)
	if err != nil {
		return nil, err
	}
	a.llm = svc
	a.client = llm.NewClient(
		llm.WithProvider(cfg.LLM.Provider, svc),
		llm.WithMiddleware(llm.LogRequests(logger)),
		llm.WithStreamMiddleware(llm.LogStreams(logger)),
	)
	a.closers = append(a.closers, a.client.Close)

	auditLog := audit.NewSlogLogger(logger)
	a.registry = tool.NewRegistry(tool.WithLogger(logger), tool.WithAudit(auditLog, audit.DefaultConfig()))

	fs := filesystem.NewLocal(cfg.Files.Root)
	set := tools.Set{
		FileSystem:  fs,
		IncludeBash: cfg.Files.EnableBash,
		BashGroups:  cfg.Files.BashGroups,
	}
	if cfg.SQL.DSN != "" {
		runner, err := sqlrunner.OpenSQLite(cfg.SQL.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sql: %w", err)
		}
		a.closers = append(a.closers, runner.Close)
		set.SQL = runner
	}
	if cfg.Files.MemoryItems > 0 {
		a.memory = memory.NewDemoMemory(cfg.Files.MemoryItems)
		set.Memory = a.memory
	}
	if err := tools.Register(a.registry, set); err != nil {
		a.Close()
		return nil, fmt.Errorf("register tools: %w", err)
	}

	store, err := a.newStore()
	if err != nil {
		a.Close()
		return nil, err
	}

	var obs observability.Provider = observability.NewLoggingProvider(logger)
	if cfg.Metrics.Enabled {
		a.metrics = prometheus.NewRegistry()
		prom, err := observability.NewPrometheusProvider(a.metrics)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("metrics: %w", err)
		}
		obs = observability.Multi{obs, prom}
	}

	resolver := user.NewCookieEmailResolver(cfg.Auth.DefaultGroups...)
	resolver.CookieName = cfg.Auth.CookieName
	resolver.AdminEmails = cfg.Auth.AdminEmails
	resolver.AdminGroups = cfg.Auth.AdminGroups

	opts := []agent.Option{
		agent.WithConfig(cfg.Agent),
		agent.WithLogger(logger),
		agent.WithObservability(obs),
		agent.WithAuditLogger(auditLog),
	}
	if a.memory != nil {
		opts = append(opts, agent.WithMemory(a.memory))
	}
	a.agent, err = agent.New(a.client, a.registry, resolver, store, opts...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create agent: %w", err)
	}
	return a, nil
}

func (a *app) newStore() (storage.Store, error) {
	switch a.cfg.Storage.Backend {
	case "", "memory":
		return storage.NewMemoryStore(), nil
	case "redis":
		s := a.cfg.Storage
		store := storage.NewRedisStore(s.RedisAddr, s.RedisPassword, s.RedisDB, storage.WithTTL(s.TTL))
		a.closers = append(a.closers, store.Close)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", a.cfg.Storage.Backend)
	}
}

// Close releases the SQL and Redis connections.
func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// newLLMService picks the backend for cfg.Provider. "openai" and "azure" use
// the OpenAI client directly; other providers go through gollm.
func newLLMService(cfg config.LLMConfig) (llm.Service, error) {
	switch strings.ToLower(cfg.Provider) {
	case "mock":
		return llm.NewMockService(cfg.MockReply), nil
	case "openai", "azure":
		key := cfg.APIKey
		if key == "" {
			key = os.Getenv("OPENAI_API_KEY")
		}
		svc, err := llm.NewOpenAIService(llm.OpenAIConfig{
			APIKey:     key,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			Azure:      strings.EqualFold(cfg.Provider, "azure"),
			APIVersion: cfg.APIVersion,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil
	default:
		opts := []llm.GollmOption{llm.WithTemperature(cfg.Temperature)}
		if cfg.APIKey != "" {
			opts = append(opts, llm.WithAPIKey(cfg.APIKey))
		}
		if cfg.Model != "" {
			opts = append(opts, llm.WithModel(cfg.Model))
		}
		if cfg.MaxTokens > 0 {
			opts = append(opts, llm.WithMaxTokens(cfg.MaxTokens))
		}
		svc, err := llm.NewGollmService(strings.ToLower(cfg.Provider), opts...)
		if err != nil {
			return nil, err
		}
		return svc, nil
	}
}
