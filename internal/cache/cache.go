package cache

import (
	"context"
	"errors"
	"time"

	"github.com/ecofinds/marketplace/internal/domain"
)

type ProductCache interface {
	Get(ctx context.Context, productID string) (*domain.Product, error)
	Set(ctx context.Context, productID string, product *domain.Product) error
	Delete(ctx context.Context, productID string) error
}

// Guard hands out short-lived exclusive keys: resend cooldowns and checkout idempotency gates.
type Guard interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Limiter counts attempts per key inside a fixed window.
type Limiter interface {
	Hit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Reset(ctx context.Context, key string) error
}

var ErrCacheMiss = errors.New("cache miss")
