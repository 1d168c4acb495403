// Package state provides the durable key-value store behind the auth
// pipeline's session state. Values are opaque bytes with a TTL; the bridge
// itself keeps no other durable data.
package state

import (
	"context"
	"errors"
	"time"

	"github.com/marcogenualdo/wxwork-bridge/internal/config"
)

var ErrNotFound = errors.New("key not found")

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

func New(cfg config.StateConfig) (Store, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(), nil
	case "redis":
		if cfg.Redis == nil {
			return nil, errors.New("redis config is required for redis state backend")
		}
		return NewRedisStore(*cfg.Redis)
	default:
		return nil, errors.New("unsupported state backend: " + cfg.Backend)
	}
}
