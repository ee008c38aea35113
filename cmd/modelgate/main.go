package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codefionn/modelgate/internal/approval"
	"github.com/codefionn/modelgate/internal/budget"
	"github.com/codefionn/modelgate/internal/config"
	"github.com/codefionn/modelgate/internal/history"
	"github.com/codefionn/modelgate/internal/llm"
	"github.com/codefionn/modelgate/internal/logger"
	"github.com/codefionn/modelgate/internal/mcptools"
	"github.com/codefionn/modelgate/internal/orchestrator"
	"github.com/codefionn/modelgate/internal/pidfile"
	"github.com/codefionn/modelgate/internal/pprof"
	"github.com/codefionn/modelgate/internal/quota"
	"github.com/codefionn/modelgate/internal/server"
	"github.com/codefionn/modelgate/internal/store"

	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", config.GetConfigPath(), "path to config file")
	listenAddr := flag.String("listen", "", "listen address override")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	pidPath := flag.String("pidfile", "", "write a pidfile and refuse to start while another instance holds it")
	pprofAddr := flag.String("pprof", "", "serve /debug/pprof on this address")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	if err := logger.Init(logger.ParseLevel(cfg.LogLevel), cfg.LogPath); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Global().Close()
	slog.SetDefault(slog.New(logger.NewSlogHandler(logger.Global())))

	if *pidPath != "" {
		release, err := pidfile.Acquire(*pidPath)
		if err != nil {
			return err
		}
		defer release()
	}

	if *pprofAddr != "" {
		profiler, err := pprof.Start(*pprofAddr)
		if err != nil {
			return fmt.Errorf("failed to start pprof server: %w", err)
		}
		defer profiler.Stop()
	}

	client, err := llm.NewClient(cfg.Provider.Provider, cfg.Provider.ResolveAPIKey(), cfg.Provider.Model)
	if err != nil {
		return fmt.Errorf("failed to create model client: %w", err)
	}

	st, err := newStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open conversation store: %w", err)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tools := mcptools.NewManager()
	if len(cfg.MCPServers) > 0 {
		startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		if err := tools.Start(startCtx, cfg.MCPServers); err != nil {
			cancel()
			return fmt.Errorf("failed to start MCP servers: %w", err)
		}
		cancel()
	}
	defer tools.Close()

	counter := budget.NewCounter()
	gate := approval.NewGate(approval.NewMemoryStore())

	srv := server.NewServer(cfg, server.Deps{
		Client:       client,
		Counter:      counter,
		Store:        st,
		History:      history.NewManager(st, counter, client, history.WithEntriesToKeep(cfg.History.EntriesToKeep)),
		Orchestrator: orchestrator.New(client, tools, gate),
		Gate:         gate,
		Quota:        newQuotaReader(cfg),
	})

	watcher, err := config.Watch(*configPath, srv.UpdateConfig)
	if err != nil {
		logger.Warn("config watching disabled: %v", err)
	} else {
		defer watcher.Close()
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	return srv.Stop()
}

func newStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case "sqlite":
		return store.NewSQLiteStore(cfg.Store.SQLitePath)
	case "redis":
		return store.NewRedisStore(cfg.Store.RedisAddr, cfg.Store.RedisPassword, cfg.Store.RedisDB)
	default:
		return store.NewMemoryStore(), nil
	}
}

func newQuotaReader(cfg *config.Config) quota.Reader {
	if len(cfg.Quota.Limits) == 0 {
		return quota.NewStaticReader(nil)
	}
	if cfg.Store.Backend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
		return quota.NewRedisReader(client, cfg.Quota.Limits)
	}

	return quota.NewStaticReader(cfg.Quota.Limits)
}
