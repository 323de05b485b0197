package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-starter/internal/app"
	"github.com/odyssey-erp/odyssey-starter/internal/auth"
	"github.com/odyssey-erp/odyssey-starter/internal/chats"
	"github.com/odyssey-erp/odyssey-starter/internal/files"
	"github.com/odyssey-erp/odyssey-starter/internal/observability"
	"github.com/odyssey-erp/odyssey-starter/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-starter/internal/platform/db"
	"github.com/odyssey-erp/odyssey-starter/internal/platform/storage"
	"github.com/odyssey-erp/odyssey-starter/internal/users"
	"github.com/odyssey-erp/odyssey-starter/jobs"
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

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("starter exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Warn("database close", slog.Any("error", err))
		}
	}()
	if err := database.Migrate(ctx); err != nil {
		return err
	}
	logger.Info("database ready", slog.String("dialect", string(database.Dialect)))

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}

	// Registration keeps working without Redis; only the welcome mail is lost.
	var welcome users.WelcomeNotifier
	var inspector *asynq.Inspector
	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Warn("redis unavailable, background jobs disabled", slog.Any("error", err))
	} else {
		_ = redisClient.Close()
		jobClient := jobs.NewClient(redisOpts)
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("asynq client close", slog.Any("error", err))
			}
		}()
		welcome = jobClient

		inspector = asynq.NewInspector(redisOpts)
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
	}

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	if err != nil {
		return err
	}
	hasher := auth.NewPasswordHasher(cfg.BcryptCost)
	requireAuth := auth.Middleware{Tokens: tokens}.RequireBearer

	sessions := db.NewSessions(database)
	provider := users.NewProvider(sessions, hasher, tokens)
	usersHandler := users.NewHandler(logger, provider, requireAuth, welcome)
	chatsHandler := chats.NewHandler(logger, chats.NewProvider(sessions))

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	filesHandler := files.NewHandler(logger, store, requireAuth)

	metrics := observability.NewMetrics()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:       logger,
		Config:       cfg,
		UsersHandler: usersHandler,
		ChatsHandler: chatsHandler,
		FilesHandler: filesHandler,
		JobHandler:   jobHandler,
		Metrics:      metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("prefix", cfg.APIPrefix))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStorage(ctx context.Context, cfg *app.Config) (storage.Storage, error) {
	if cfg.StorageDriver == "s3" {
		store, err := storage.NewS3(ctx, storage.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	store, err := storage.NewLocal(cfg.UploadDir)
	if err != nil {
		return nil, err
	}
	return store, nil
}
