package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/academico/academico/internal/app"
	"github.com/academico/academico/internal/audit"
	audithttp "github.com/academico/academico/internal/audit/http"
	"github.com/academico/academico/internal/auth"
	"github.com/academico/academico/internal/observability"
	"github.com/academico/academico/internal/platform/cache"
	"github.com/academico/academico/internal/platform/db"
	"github.com/academico/academico/internal/rbac"
	"github.com/academico/academico/internal/roles"
	"github.com/academico/academico/internal/shared"
	"github.com/academico/academico/internal/users"
	"github.com/academico/academico/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	rbacService := rbac.NewService(dbpool)
	cacheOpts := []rbac.CacheOption{rbac.WithCacheLogger(logger), rbac.WithCacheObserver(metrics)}
	var broadcaster *rbac.RedisBroadcaster
	if cfg.PermissionBroadcast {
		broadcaster = rbac.NewRedisBroadcaster(redisClient, logger)
		cacheOpts = append(cacheOpts, rbac.WithPublisher(broadcaster))
	}
	permissionCache := rbac.NewPermissionCache(rbacService, cacheOpts...)
	if broadcaster != nil {
		if err := broadcaster.Listen(ctx, permissionCache); err != nil {
			logger.Error("subscribe permission invalidations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		logger.Error("init token service", slog.Any("error", err))
		os.Exit(1)
	}

	authRepo := auth.NewRepository(dbpool)
	resolver := auth.NewResolver(tokens, authRepo, permissionCache)
	rbacMiddleware := rbac.Middleware{Resolver: resolver, Logger: logger, Metrics: metrics}
	auditRecorder := shared.NewAuditRecorder()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	authService := auth.NewService(authRepo, tokens, permissionCache, auditRecorder, logger)
	authService.SetLastAccessNotifier(jobClient)
	authHandler := auth.NewHandler(logger, authService, rbacMiddleware, auth.HandlerConfig{
		SecureCookie:   cfg.IsProduction(),
		LoginRateLimit: cfg.LoginRateLimit,
	})

	rolesService := roles.NewService(roles.NewRepository(dbpool), auditRecorder, permissionCache, logger)
	rolesHandler := roles.NewHandler(logger, rolesService, rbacMiddleware)

	usersService := users.NewService(users.NewRepository(dbpool), auditRecorder, permissionCache, logger)
	usersHandler := users.NewHandler(logger, usersService, rbacMiddleware)

	viewsHandler := rbac.NewViewsHandler(logger, rbacService, rbacMiddleware)

	auditService := audit.NewService(audit.NewRepository(dbpool))
	auditHandler := audithttp.NewHandler(logger, auditService, rbacMiddleware)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger, rbacMiddleware)

	router := app.NewRouter(app.RouterParams{
		Logger:       logger,
		Config:       cfg,
		AuthHandler:  authHandler,
		RolesHandler: rolesHandler,
		UsersHandler: usersHandler,
		ViewsHandler: viewsHandler,
		AuditHandler: auditHandler,
		JobHandler:   jobHandler,
		Metrics:      metrics,
		Database:     dbpool,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
