// Package cache provides a read-through cache for the product catalog,
// the hottest read path in the API.
package cache

import (
	"context"
	"errors"

	"fairywren/backend/internal/domain"
)

// ErrMiss is returned when the requested entry is absent or expired.
var ErrMiss = errors.New("cache: miss")

// CatalogCache caches the full product list. Writers invalidate on any
// product or category mutation.
type CatalogCache interface {
	GetProducts(ctx context.Context) ([]domain.Product, error)
	SetProducts(ctx context.Context, products []domain.Product) error
	InvalidateProducts(ctx context.Context) error
	Close() error
}

// Noop satisfies CatalogCache while caching nothing. Used when Redis is
// not configured.
type Noop struct{}

func NewNoop() *Noop { return &Noop{} }

func (*Noop) GetProducts(context.Context) ([]domain.Product, error) { return nil, ErrMiss }

func (*Noop) SetProducts(context.Context, []domain.Product) error { return nil }

func (*Noop) InvalidateProducts(context.Context) error { return nil }

func (*Noop) Close() error { return nil }
