package session

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Backend names a session storage implementation.
type Backend string

const (
	BackendSQLite Backend = "sqlite"
	BackendMemory Backend = "memory"
	BackendRedis  Backend = "redis"
)

var (
	// ErrInvalidBackend is returned for an unknown backend name.
	ErrInvalidBackend = errors.New("invalid session backend")
	// ErrInvalidConfig is returned when a backend's dependency is missing.
	ErrInvalidConfig = errors.New("invalid session store configuration")
)

type storeConfig struct {
	database    Store
	redisClient *redis.Client
}

// StoreOption supplies a backend dependency to NewStore.
type StoreOption func(*storeConfig)

// WithDatabase supplies the record store used by the sqlite backend.
func WithDatabase(db Store) StoreOption {
	return func(c *storeConfig) { c.database = db }
}

// WithRedisClient supplies the client used by the redis backend.
func WithRedisClient(client *redis.Client) StoreOption {
	return func(c *storeConfig) { c.redisClient = client }
}

// NewStore returns the Store for backend.
func NewStore(backend Backend, opts ...StoreOption) (Store, error) {
	cfg := &storeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	switch backend {
	case BackendSQLite, "":
		if cfg.database == nil {
			return nil, fmt.Errorf("sqlite backend needs a database: %w", ErrInvalidConfig)
		}
		return cfg.database, nil
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendRedis:
		if cfg.redisClient == nil {
			return nil, fmt.Errorf("redis backend needs a client: %w", ErrInvalidConfig)
		}
		return NewRedisStore(cfg.redisClient), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidBackend, backend)
	}
}
