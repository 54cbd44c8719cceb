package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/AleksGin/business-manager/internal/app"
	"github.com/AleksGin/business-manager/internal/auth"
	"github.com/AleksGin/business-manager/internal/evaluations"
	"github.com/AleksGin/business-manager/internal/meetings"
	"github.com/AleksGin/business-manager/internal/observability"
	"github.com/AleksGin/business-manager/internal/platform/cache"
	"github.com/AleksGin/business-manager/internal/platform/db"
	"github.com/AleksGin/business-manager/internal/rbac"
	"github.com/AleksGin/business-manager/internal/tasks"
	"github.com/AleksGin/business-manager/internal/teams"
	"github.com/AleksGin/business-manager/internal/tokens"
	"github.com/AleksGin/business-manager/internal/users"
	"github.com/AleksGin/business-manager/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	tokenService, err := tokens.NewService(tokens.ServiceConfig{
		SigningSecret:   []byte(cfg.JWTSecret),
		HashSecret:      []byte(cfg.TokenHashSecret),
		Issuer:          "business-manager",
		AccessTTL:       cfg.AccessTTL,
		RefreshTTL:      cfg.RefreshTTL,
		VerificationTTL: cfg.VerificationTTL,
	})
	if err != nil {
		logger.Error("init token service", slog.Any("error", err))
		os.Exit(1)
	}
	tokenStore := tokens.NewStore(pool)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	runner := db.NewRunner(pool)
	perms := rbac.NewValidator()

	userRepo := users.NewRepository(pool)
	userValidator := users.NewValidator(userRepo)
	hasher := users.NewBcryptHasher(0)
	activation := auth.NewActivationManager(userRepo, tokenService, tokenStore, jobClient)

	userService := users.NewService(users.ServiceParams{
		Logger:     logger,
		Repo:       userRepo,
		Validator:  userValidator,
		Perms:      perms,
		Hasher:     hasher,
		Activation: activation,
		Sessions:   tokenStore,
		Tx:         runner,
	})
	userHandler := users.NewHandler(logger, userService)

	authService := auth.NewService(auth.ServiceParams{
		Logger:    logger,
		Users:     userRepo,
		Validator: userValidator,
		Hasher:    hasher,
		Tokens:    tokenService,
		Store:     tokenStore,
		Mail:      jobClient,
		Tx:        runner,
	})
	authHandler := auth.NewHandler(logger, authService, userService)

	teamRepo := teams.NewRepository(pool)
	teamService := teams.NewService(teams.ServiceParams{
		Logger: logger,
		Repo:   teamRepo,
		Users:  userRepo,
		Perms:  perms,
		Tx:     runner,
	})
	membership := teams.NewMembershipManager(teams.MembershipParams{
		Logger:    logger,
		Repo:      teamRepo,
		Users:     userRepo,
		Perms:     perms,
		Tx:        runner,
		Redis:     redisClient,
		InviteTTL: cfg.InviteTTL,
	})
	teamHandler := teams.NewHandler(logger, teamService, membership)

	taskRepo := tasks.NewRepository(pool)
	taskService := tasks.NewService(tasks.ServiceParams{
		Logger: logger,
		Repo:   taskRepo,
		Teams:  teamRepo,
		Users:  userRepo,
		Perms:  perms,
		Tx:     runner,
	})
	taskHandler := tasks.NewHandler(logger, taskService)

	meetingRepo := meetings.NewRepository(pool)
	meetingService := meetings.NewService(meetings.ServiceParams{
		Logger: logger,
		Repo:   meetingRepo,
		Teams:  teamRepo,
		Users:  userRepo,
		Perms:  perms,
		Tx:     runner,
	})
	meetingHandler := meetings.NewHandler(logger, meetingService)

	evalRepo := evaluations.NewRepository(pool)
	evalService := evaluations.NewService(evaluations.ServiceParams{
		Logger: logger,
		Repo:   evalRepo,
		Tasks:  taskRepo,
		Users:  userRepo,
		Perms:  perms,
		Tx:     runner,
	})
	evalHandler := evaluations.NewHandler(logger, evalService)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Tokens:             tokenService,
		AuthHandler:        authHandler,
		UsersHandler:       userHandler,
		TeamsHandler:       teamHandler,
		TasksHandler:       taskHandler,
		MeetingsHandler:    meetingHandler,
		EvaluationsHandler: evalHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}
