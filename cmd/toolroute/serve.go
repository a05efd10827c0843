package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/tidewater/toolroute/internal/api"
	"github.com/tidewater/toolroute/internal/cache"
	"github.com/tidewater/toolroute/internal/classify"
	"github.com/tidewater/toolroute/internal/config"
	"github.com/tidewater/toolroute/internal/connectivity"
	"github.com/tidewater/toolroute/internal/executor"
	"github.com/tidewater/toolroute/internal/metrics"
	"github.com/tidewater/toolroute/internal/queue"
	"github.com/tidewater/toolroute/internal/router"
	"github.com/tidewater/toolroute/internal/secrets"
	"github.com/tidewater/toolroute/internal/store/sqlite"
	"golang.org/x/sync/errgroup"
)

func cmdServe(args []string) error {
	ctx, cancel := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM,
	)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyFlags(cfg, args)

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	db, err := sqlite.New(ctx, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	fileCfg := &config.FileConfig{}
	if cfg.ConfigFile != "" {
		if _, err := os.Stat(cfg.ConfigFile); err == nil {
			fileCfg, err = config.LoadFile(cfg.ConfigFile)
			if err != nil {
				return err
			}
			logger.Info("loaded config", "file", cfg.ConfigFile)
		}
	}

	registry := classify.NewRegistry()
	local := executor.NewLocal()
	if err := config.Apply(fileCfg, registry, local, filepath.Dir(cfg.ConfigFile)); err != nil {
		return err
	}
	if err := executor.RegisterBuiltins(registry, local); err != nil {
		return err
	}

	vault, err := openVault(cfg)
	if err != nil {
		return err
	}

	remote := executor.NewRemote(fileCfg.Remote.Endpoint, fileCfg.RemoteTimeout(), vault.TokenSource())
	conn := connectivity.NewMonitor(probeFor(remote, fileCfg), fileCfg.ProbeInterval())
	monitor := metrics.NewMonitor()
	rc := resultCache(fileCfg)

	rt := router.New(registry, rc, local, remote, conn, monitor)
	q := queue.New(db, rt, conn, monitor, fileCfg.QueueConfig())
	rt.SetQueue(q)

	handler := api.NewRouter(api.RouterDeps{
		Store:    db,
		Router:   rt,
		Queue:    q,
		Cache:    rc,
		Monitor:  monitor,
		Conn:     conn,
		Registry: registry,
		Local:    local,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      120 * time.Second, // execute may wait on a slow remote
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		errCh := make(chan error, 1)
		go func() {
			slog.Info("http server listening", "addr", cfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()
		select {
		case <-ctx.Done():
			slog.Info("shutting down http server")
			return srv.Shutdown(context.Background())
		case err := <-errCh:
			return err
		}
	})

	g.Go(func() error { return conn.Run(ctx) })
	g.Go(func() error { return q.Run(ctx) })
	g.Go(func() error { return monitor.RunPersist(ctx, db, 5*time.Minute) })
	g.Go(func() error { return runCacheSweeper(ctx, rc) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// applyFlags parses --addr=X flags from the args list.
func applyFlags(cfg *Config, args []string) {
	for _, arg := range args {
		if len(arg) > 7 && arg[:7] == "--addr=" {
			cfg.HTTPAddr = arg[7:]
		}
	}
}

// openVault loads the age identity, generating one on first run.
func openVault(cfg *Config) (*secrets.Vault, error) {
	enc, err := secrets.LoadIdentity(cfg.AgeKeyPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		enc, err = secrets.GenerateIdentity(cfg.AgeKeyPath)
		if err != nil {
			return nil, err
		}
		slog.Info("generated age identity", "path", cfg.AgeKeyPath)
	}
	return secrets.NewVault(cfg.VaultPath, enc), nil
}

// probeFor returns nil when no endpoint is configured, leaving the
// monitor permanently offline so every non-local invocation queues.
func probeFor(remote *executor.Remote, fileCfg *config.FileConfig) connectivity.Probe {
	if fileCfg.Remote.Endpoint == "" {
		return nil
	}
	return remote.Ping
}

func resultCache(fileCfg *config.FileConfig) *cache.ResultCache {
	entries := fileCfg.Cache.MaxEntries
	if entries <= 0 {
		entries = 1024
	}
	bytes := fileCfg.Cache.MaxBytes
	if bytes <= 0 {
		bytes = 32 << 20 // 32 MiB
	}
	return cache.NewResultCache(entries, bytes)
}

// runCacheSweeper reclaims expired cache entries in the background so
// stale results do not sit against the byte budget between requests.
func runCacheSweeper(ctx context.Context, rc *cache.ResultCache) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := rc.Sweep(); n > 0 {
				slog.Debug("swept expired cache entries", "count", n)
			}
		}
	}
}
