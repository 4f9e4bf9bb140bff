package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/spa-booking-wizard/internal/auth"
	"github.com/wolfman30/spa-booking-wizard/internal/catalog"
	appconfig "github.com/wolfman30/spa-booking-wizard/internal/config"
	"github.com/wolfman30/spa-booking-wizard/internal/wizard"
	"github.com/wolfman30/spa-booking-wizard/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// StateStores groups everything that lives for the duration of a user's visit.
type StateStores struct {
	Wizard  wizard.Store
	Auth    auth.Store
	Catalog catalog.Cache
	Redis   *redis.Client
}

// BuildStateStores picks redis or process memory per cfg.StateBackend.
// Redis that is configured but unreachable is an error; silently falling
// back would split sessions across replicas.
func BuildStateStores(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*StateStores, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	switch cfg.StateBackend {
	case "", "memory":
		logger.Info("wizard state kept in process memory")
		return &StateStores{
			Wizard:  wizard.NewMemoryStore(),
			Auth:    auth.NewMemoryStore(),
			Catalog: catalog.NewMemoryCache(),
		}, nil
	case "redis":
		client := BuildRedisClient(ctx, cfg, logger, true)
		if client == nil {
			return nil, fmt.Errorf("bootstrap: redis state backend unavailable at %s", cfg.RedisAddr)
		}
		logger.Info("wizard state kept in redis", "addr", cfg.RedisAddr)
		return &StateStores{
			Wizard:  wizard.NewRedisStore(client),
			Auth:    auth.NewRedisStore(client),
			Catalog: catalog.NewRedisCache(client),
			Redis:   client,
		}, nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown state backend %q", cfg.StateBackend)
	}
}
