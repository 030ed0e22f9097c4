package repositories

import (
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"playgrid/internal/core/ports"
	"playgrid/internal/infrastructure/repositories/memory"
	"playgrid/internal/infrastructure/repositories/redis"
	"playgrid/pkg/config"
)

// Repositories bundles the storage backends the engine runs on.
type Repositories struct {
	States   ports.StateRepository
	Sessions ports.SessionRepository

	redisClient *goredis.Client
	logger      *zap.SugaredLogger
}

// New builds the storage backends. In-memory repositories are always the
// authoritative store, rebuilt empty on process restart; when Redis is
// enabled and reachable, writes are additionally mirrored into it for
// external dashboards. A failed Redis connection just skips the mirror.
func New(cfg *config.Config, logger *zap.SugaredLogger) *Repositories {
	repos := &Repositories{
		States:   memory.NewMemoryStateRepository(),
		Sessions: memory.NewMemorySessionRepository(),
		logger:   logger,
	}

	if cfg.Redis.Enabled {
		client, err := redis.NewRedisClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("Redis unavailable, running without state mirror", "error", err)
		} else {
			repos.redisClient = client
			repos.States = newMirroredStateRepository(repos.States, redis.NewRedisStateRepository(client), logger)
			repos.Sessions = newMirroredSessionRepository(repos.Sessions, redis.NewRedisSessionRepository(client), logger)
		}
	}

	return repos
}

// RedisClient returns the shared Redis client, or nil when running in-memory.
func (r *Repositories) RedisClient() *goredis.Client {
	return r.redisClient
}

// Close releases backend connections.
func (r *Repositories) Close() {
	if r.redisClient != nil {
		redis.CloseRedisClient(r.redisClient, r.logger)
	}
}
