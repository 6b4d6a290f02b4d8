// Package main is the entry point for the Luma identity server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/prn-tf/luma-identity/internal/auth"
	memcache "github.com/prn-tf/luma-identity/internal/cache/memory"
	rediscache "github.com/prn-tf/luma-identity/internal/cache/redis"
	"github.com/prn-tf/luma-identity/internal/config"
	"github.com/prn-tf/luma-identity/internal/handler"
	"github.com/prn-tf/luma-identity/internal/lock"
	"github.com/prn-tf/luma-identity/internal/metrics"
	"github.com/prn-tf/luma-identity/internal/pkg/crypto"
	"github.com/prn-tf/luma-identity/internal/repository"
	"github.com/prn-tf/luma-identity/internal/repository/store"
	"github.com/prn-tf/luma-identity/internal/service"
	"github.com/prn-tf/luma-identity/internal/storage"
	"github.com/prn-tf/luma-identity/internal/storage/filesystem"
	"github.com/prn-tf/luma-identity/internal/storage/s3"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Msg("Starting Luma identity server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited with error")
	}
	logger.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	// Database
	st, err := store.Open(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	// Session cache and mutation locks
	var (
		cache  repository.Cache
		locker lock.Locker
	)
	if cfg.Redis.Enabled {
		client, err := rediscache.NewClient(ctx, cfg.Redis, logger)
		if err != nil {
			return err
		}
		defer client.Close()
		cache = rediscache.NewCache(client)
		locker = lock.NewRedisLocker(rediscache.NewDistributedLock(client))
	} else {
		mc := memcache.NewCache()
		defer mc.Stop()
		ml := lock.NewMemoryLocker()
		defer ml.Stop()
		cache, locker = mc, ml
		logger.Info().Msg("using in-process session cache and locks")
	}

	// Avatar storage
	avatars, err := newAvatarBackend(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}

	hasher, err := crypto.NewBcryptHasher(cfg.Auth.BcryptCost, cfg.Auth.HashWorkers)
	if err != nil {
		return err
	}

	sessions := auth.NewSessionManager(auth.SessionConfig{
		Secret: cfg.Auth.JWTSecret,
		Issuer: cfg.Auth.Issuer,
		TTL:    cfg.Auth.SessionTTL,
	}, cache)
	cookies := auth.NewCookieHelper(auth.CookieConfig{
		Name:   cfg.Auth.CookieName,
		Secure: cfg.Auth.CookieSecure,
	})

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	// Services
	users := st.Repos.User
	authService := service.NewAuthService(users, hasher, sessions, m, logger)
	profileService := service.NewProfileService(users, hasher, authService, locker, avatars, m, logger, service.ProfileOptions{
		LockTTL:       cfg.Auth.MutationLockTTL,
		MaxAvatarSize: cfg.Storage.MaxAvatarSize,
	})
	userService := service.NewUserService(users, cfg.Users.DefaultPageSize, cfg.Users.MaxPageSize, logger)

	// HTTP
	routerCfg := handler.RouterConfig{
		UserHandler: handler.NewUserHandler(authService, profileService, userService, cookies, logger),
		Sessions:    sessions,
		Cookies:     cookies,
		Resolver:    authService,
		Health:      st.Database,
		Metrics:     m,
		MaxBodySize: cfg.Server.MaxBodySize,
		Logger:      logger,
	}
	separateMetrics := m != nil && cfg.Metrics.Port != 0 && cfg.Metrics.Port != cfg.Server.Port
	if m != nil && !separateMetrics {
		routerCfg.MetricsPath = cfg.Metrics.Path
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler.NewRouter(routerCfg).Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	servers := []*http.Server{server}

	if separateMetrics {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, m.Handler())
		servers = append(servers, &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Metrics.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		})
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *http.Server) {
			logger.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("listen on %s: %w", srv.Addr, err)
			}
		}(srv)
	}

	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutting down server...")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Str("addr", srv.Addr).Msg("graceful shutdown failed")
		}
	}
	return nil
}

func newAvatarBackend(ctx context.Context, cfg config.StorageConfig, logger zerolog.Logger) (storage.Backend, error) {
	switch cfg.Backend {
	case "s3":
		client, err := s3.NewClient(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return s3.New(client, cfg.S3, cfg.MaxAvatarSize, logger), nil
	case "filesystem", "":
		return filesystem.New(cfg.DataDir, logger)
	}
	return nil, fmt.Errorf("unsupported storage backend: %q", cfg.Backend)
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339
	}
	zerolog.TimeFieldFormat = timeFormat

	out := os.Stdout
	if cfg.Output == "stderr" {
		out = os.Stderr
	}

	if cfg.Format == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: timeFormat}).
			With().Timestamp().Logger()
	}
	return zerolog.New(out).With().Timestamp().Logger()
}
