// Package main is the entrypoint for the users API server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/dco5/users-service/internal/cache"
	"github.com/dco5/users-service/internal/config"
	"github.com/dco5/users-service/internal/handler"
	"github.com/dco5/users-service/internal/metrics"
	"github.com/dco5/users-service/internal/middleware"
	"github.com/dco5/users-service/internal/repository"
	"github.com/dco5/users-service/internal/server"
	"github.com/dco5/users-service/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	dsn := cfg.DatabaseDSN()
	repo, err := repository.Connect(ctx, dsn, poolOptions(cfg), cfg.DatabaseConnectAttempts, logger)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, dsn)),
			slog.String("database_url", redactURL(dsn)),
		)
		return errors.New("database unavailable")
	}
	logger.Info("connected to database")

	// Nil interfaces, not typed nil pointers, when Redis is off.
	var (
		userCache   service.UserCache
		cacheHealth handler.HealthChecker
		cacheClient *cache.Cache
	)
	if cfg.CacheEnabled() {
		cacheClient, err = cache.New(ctx, cfg.RedisURL, cfg.UserCacheTTL)
		if err != nil {
			repo.Close()
			logger.Error(
				"failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			return errors.New("redis unavailable")
		}
		userCache = cacheClient
		cacheHealth = cacheClient
		logger.Info("connected to Redis", "user_cache_ttl", cfg.UserCacheTTL)
	} else {
		logger.Info("user cache disabled")
	}

	recorder := metrics.NewInMemory()
	userService := service.NewUserService(repo, userCache, recorder)

	r := setupRouter(routes{
		base:    handler.New(logger),
		health:  handler.NewHealthHandler(repo, cacheHealth),
		users:   handler.NewUserHandler(userService, logger),
		page:    handler.NewPageHandler(userService, logger),
		metrics: handler.NewMetricsHandler(recorder),
	}, cfg, logger)

	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	srv.OnShutdown("postgres", func(context.Context) error {
		repo.Close()
		return nil
	})
	if cacheClient != nil {
		srv.OnShutdown("redis", func(context.Context) error {
			return cacheClient.Close()
		})
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"cache_enabled", cfg.CacheEnabled(),
	)

	return srv.Run(ctx)
}

func poolOptions(cfg *config.Config) repository.PoolOptions {
	return repository.PoolOptions{
		MaxConns:        cfg.DatabaseMaxConns,
		MinConns:        cfg.DatabaseMinConns,
		MaxConnIdleTime: cfg.DatabaseMaxConnIdleTime,
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     cfg.SlogLevel(),
		AddSource: !cfg.IsProduction(),
	}

	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

type routes struct {
	base    *handler.Handler
	health  *handler.HealthHandler
	users   *handler.UserHandler
	page    *handler.PageHandler
	metrics *handler.MetricsHandler
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(h routes, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger, cfg.IsDevelopment()))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()}))

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

	r.Get("/healthz", h.health.Healthz)
	r.Get("/readyz", h.health.Readyz)
	r.Get("/metrics", h.metrics.Metrics)

	r.Get("/", h.page.Index)
	r.Post("/", h.page.Create)

	r.Route("/users", func(r chi.Router) {
		r.Get("/ping", h.health.Ping)
		r.Get("/", h.users.List)
		r.Post("/", h.users.Create)
		r.Get("/{id}", h.users.Get)
	})

	if cfg.IsDevelopment() {
		r.Mount("/debug", chimiddleware.Profiler())
	}

	r.NotFound(h.base.NotFound)
	r.MethodNotAllowed(h.base.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
