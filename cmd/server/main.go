package main

import (
	"context"
	"log"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/taskboard/api/handler"
	"github.com/fastygo/taskboard/internal/config"
	"github.com/fastygo/taskboard/internal/infrastructure/localstore"
	"github.com/fastygo/taskboard/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/taskboard/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/taskboard/internal/infrastructure/redis"
	"github.com/fastygo/taskboard/internal/middleware"
	"github.com/fastygo/taskboard/internal/router"
	"github.com/fastygo/taskboard/internal/services"
	"github.com/fastygo/taskboard/internal/services/lifecycle"
	"github.com/fastygo/taskboard/pkg/httpcontext"
	"github.com/fastygo/taskboard/pkg/logger"
	redisRepo "github.com/fastygo/taskboard/repository/redis"
	authUC "github.com/fastygo/taskboard/usecase/auth"
	boardUC "github.com/fastygo/taskboard/usecase/board"
	profileUC "github.com/fastygo/taskboard/usecase/profile"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:      cfg.Logger.Level,
		Encoding:   cfg.Logger.Encoding,
		File:       cfg.Logger.File,
		MaxSizeMB:  cfg.Logger.MaxSizeMB,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAgeDays: cfg.Logger.MaxAgeDays,
		Compress:   cfg.Logger.Compress,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
		zapLogger.Fatal("migrations failed", zap.Error(err))
	}

	backend, err := openDocumentStore(appCtx, cfg, manager, zapLogger)
	if err != nil {
		zapLogger.Fatal("document store connection failed", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}

	redisClient, err := redisInfra.NewClient(appCtx, cfg.Redis, zapLogger)
	if err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	manager.Register("redis", func(ctx context.Context) error {
		return redisClient.Close()
	})

	localStore, err := localstore.Open(cfg.LocalStore.Path, cfg.LocalStore.Bucket)
	if err != nil {
		zapLogger.Fatal("failed to open local store", zap.Error(err))
	}
	manager.Register("localstore", func(ctx context.Context) error {
		return localStore.Close()
	})

	mon := monitor.New(10*time.Second, zapLogger,
		monitor.Probe{Name: cfg.Store.Driver, Target: backend.probe},
		monitor.Probe{Name: "redis", Target: monitor.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}), Timeout: 2 * time.Second},
		monitor.Probe{Name: "localstore", Target: localStore, Optional: true},
	)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	janitor, err := services.NewJanitor(localStore, mon, zapLogger, services.JanitorConfig{
		Schedule:  cfg.LocalStore.CleanupSchedule,
		Retention: cfg.LocalStore.Retention,
	})
	if err != nil {
		zapLogger.Fatal("invalid local store cleanup schedule", zap.Error(err))
	}
	janitor.Start()
	manager.Register("janitor", func(ctx context.Context) error {
		janitor.Stop(ctx)
		return nil
	})

	store := decorateStore(backend.store, redisClient, cfg, zapLogger)
	sessionRepo := redisRepo.NewSessionRepository(redisClient, cfg.Session.TTL)

	verifiers, err := oauthVerifiers(cfg.OAuth, manager, zapLogger)
	if err != nil {
		zapLogger.Fatal("oauth provider setup failed", zap.Error(err))
	}

	authUseCase := authUC.New(store, sessionRepo, authUC.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.Issuer), authUC.Options{
		SessionTTL: cfg.Session.TTL,
		BcryptCost: cfg.Session.BcryptCost,
		Verifiers:  verifiers,
	}, zapLogger)
	profileUseCase := profileUC.New(store, localStore, authUseCase, zapLogger)
	boardService := boardUC.NewService(store, localStore, boardUC.Options{SeedLimit: cfg.Board.SeedLimit}, zapLogger)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Auth:    apiHandler.NewAuthHandler(authUseCase, boardService, ctxAdapter, zapLogger),
		Profile: apiHandler.NewProfileHandler(profileUseCase, ctxAdapter, zapLogger),
		Board:   apiHandler.NewBoardHandler(boardService, ctxAdapter, zapLogger),
		Health:  apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}

	authMiddleware := middleware.JWTAuth(cfg.JWT.Secret, authUseCase, zapLogger)
	r := router.New(handlers, authMiddleware)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Concurrency:  cfg.HTTP.MaxConn,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started", zap.String("address", cfg.Address()), zap.String("store", cfg.Store.Driver))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
