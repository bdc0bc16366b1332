package main

import (
	"context"
	"time"

	goRedis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/internal/config"
	"github.com/fastygo/taskboard/internal/infrastructure/monitor"
	mongoInfra "github.com/fastygo/taskboard/internal/infrastructure/mongo"
	pgInfra "github.com/fastygo/taskboard/internal/infrastructure/postgres"
	"github.com/fastygo/taskboard/internal/services/lifecycle"
	"github.com/fastygo/taskboard/repository"
	"github.com/fastygo/taskboard/repository/breaker"
	"github.com/fastygo/taskboard/repository/memory"
	mongoRepo "github.com/fastygo/taskboard/repository/mongo"
	"github.com/fastygo/taskboard/repository/postgres"
	redisRepo "github.com/fastygo/taskboard/repository/redis"
	authUC "github.com/fastygo/taskboard/usecase/auth"
)

type documentBackend struct {
	store repository.DocumentStore
	probe monitor.Pinger
}

// openDocumentStore connects the adapter selected by STORE_DRIVER and registers its shutdown.
func openDocumentStore(ctx context.Context, cfg *config.Config, manager *lifecycle.Manager, logger *zap.Logger) (documentBackend, error) {
	switch cfg.Store.Driver {
	case config.StoreMemory:
		logger.Warn("using in-memory document store; data is lost on restart")
		store := memory.NewDocumentStore()
		return documentBackend{store: store, probe: store}, nil

	case config.StoreMongo:
		client, err := mongoInfra.NewClient(ctx, cfg.Mongo, logger)
		if err != nil {
			return documentBackend{}, err
		}
		manager.Register("mongo", func(ctx context.Context) error {
			mongoInfra.Close(ctx, client, logger)
			return nil
		})
		return documentBackend{
			store: mongoRepo.NewDocumentStore(client.Database(cfg.Mongo.Database)),
			probe: monitor.PingFunc(mongoInfra.Ping(client)),
		}, nil

	default:
		pool, err := pgInfra.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			return documentBackend{}, err
		}
		manager.Register("postgres", func(ctx context.Context) error {
			pgInfra.Close(pool, logger)
			return nil
		})
		return documentBackend{store: postgres.NewDocumentStore(pool), probe: pool}, nil
	}
}

// decorateStore layers the Redis read-through cache and the circuit breaker over base.
func decorateStore(base repository.DocumentStore, client *goRedis.Client, cfg *config.Config, logger *zap.Logger) repository.DocumentStore {
	store := base
	if cfg.Cache.TTL > 0 && cfg.Store.Driver != config.StoreMemory {
		store = redisRepo.NewDocumentCache(store, client, cfg.Cache.TTL)
	}
	if cfg.Breaker.Enabled {
		store = breaker.NewDocumentStore(store, breaker.Settings{
			Name:             "document-store:" + cfg.Store.Driver,
			MaxRequests:      cfg.Breaker.MaxRequests,
			Timeout:          cfg.Breaker.Timeout,
			FailureThreshold: cfg.Breaker.FailureThreshold,
		}, logger)
	}
	return store
}

// oauthVerifiers fetches each provider's JWKS and keeps it refreshed until shutdown.
func oauthVerifiers(providers []config.OAuthProvider, manager *lifecycle.Manager, logger *zap.Logger) (map[string]authUC.TokenVerifier, error) {
	verifiers := make(map[string]authUC.TokenVerifier, len(providers))
	for _, p := range providers {
		verifier, err := authUC.FetchJWKSVerifier(p.JWKSURL, p.Audience, p.Issuer, time.Hour)
		if err != nil {
			return nil, err
		}
		jwks := verifier.JWKS()
		manager.Register("jwks:"+p.Name, func(ctx context.Context) error {
			jwks.EndBackground()
			return nil
		})
		verifiers[p.Name] = verifier
		logger.Info("oauth provider enabled", zap.String("provider", p.Name))
	}
	return verifiers, nil
}
