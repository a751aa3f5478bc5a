package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/usermanagement/account-api/internal/api"
	"github.com/usermanagement/account-api/internal/api/handler"
	"github.com/usermanagement/account-api/internal/core/ports"
	"github.com/usermanagement/account-api/internal/core/service"
	"github.com/usermanagement/account-api/internal/infrastructure/config"
	"github.com/usermanagement/account-api/internal/infrastructure/crypto"
	"github.com/usermanagement/account-api/internal/infrastructure/db/memory"
	mongostore "github.com/usermanagement/account-api/internal/infrastructure/db/mongo"
	"github.com/usermanagement/account-api/internal/infrastructure/db/postgres"
	redisstore "github.com/usermanagement/account-api/internal/infrastructure/db/redis"
	"github.com/usermanagement/account-api/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "account-api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: !cfg.IsProduction()})

	store, checks, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	var cache ports.RoleCache
	if cfg.Redis.Addr != "" {
		rdb, err := redisstore.Connect(ctx, redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
			Timeout:  cfg.Redis.Timeout,
		})
		if err != nil {
			return err
		}
		defer rdb.Close()
		cache = redisstore.NewRoleCache(rdb, cfg.Redis.RoleTTL)
		checks = append(checks, handler.DependencyCheck{
			Name: "redis",
			Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
		log.Info().Str("addr", cfg.Redis.Addr).Msg("role cache enabled")
	}

	hasher, err := crypto.NewHasher(cfg.Password.Hasher, cfg.Password.BcryptCost)
	if err != nil {
		return fmt.Errorf("password hasher: %w", err)
	}

	var tokenOpts []service.TokenOption
	if cfg.JWT.Issuer != "" {
		tokenOpts = append(tokenOpts, service.WithIssuer(cfg.JWT.Issuer))
	}
	tokens, err := service.NewTokenIssuer(cfg.JWTSecret(), cfg.JWT.TTL, tokenOpts...)
	if err != nil {
		return fmt.Errorf("token issuer: %w", err)
	}

	accounts := service.NewAccountService(
		store,
		hasher,
		service.NewRoleProvisioner(cache, logger.Component("roles")),
		tokens,
		service.AccountOptions{PasswordPolicy: cfg.PasswordPolicy(), DefaultRole: cfg.DefaultRole},
		logger.Component("accounts"),
	)

	e, err := api.NewRouter(api.Dependencies{
		Accounts:    accounts,
		Tokens:      tokens,
		Checks:      checks,
		DefaultRole: cfg.DefaultRole,
		Logger:      logger.Component("http"),
	})
	if err != nil {
		return fmt.Errorf("router: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.Store.Driver).Msg("account api listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}

// openStore connects the configured credential store and prepares its schema.
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (ports.CredentialStore, []handler.DependencyCheck, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		if cfg.Postgres.Migrate {
			if err := postgres.Migrate(cfg.Postgres.URL, log); err != nil {
				return nil, nil, nil, err
			}
		}
		pool, err := postgres.Connect(ctx, postgres.Config{URL: cfg.Postgres.URL, MaxConns: cfg.Postgres.MaxConns})
		if err != nil {
			return nil, nil, nil, err
		}
		store := postgres.NewCredentialStore(pool)
		checks := []handler.DependencyCheck{{Name: "postgres", Ping: store.Ping}}
		return store, checks, pool.Close, nil

	case config.DriverMongo:
		client, db, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, nil, nil, err
		}
		store := mongostore.NewCredentialStore(db, cfg.Mongo.Transactions)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = mongostore.Disconnect(context.Background(), client)
			return nil, nil, nil, err
		}
		checks := []handler.DependencyCheck{{Name: "mongodb", Ping: store.Ping}}
		closer := func() {
			if err := mongostore.Disconnect(context.Background(), client); err != nil {
				log.Warn().Err(err).Msg("mongo disconnect failed")
			}
		}
		return store, checks, closer, nil

	default:
		log.Warn().Msg("using in-memory credential store; data is lost on exit")
		store := memory.NewStore()
		checks := []handler.DependencyCheck{{Name: "memory", Ping: store.Ping}}
		return store, checks, func() {}, nil
	}
}
