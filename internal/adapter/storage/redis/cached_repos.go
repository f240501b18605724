package redis

import (
	"context"
	"encoding/json"
	"time"

	"balance-ledger/internal/core/domain"
	"balance-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const lookupTTL = 5 * time.Minute

// CachedProductRepo decorates a ProductRepository with lookup memoization.
// Cache failures degrade to direct reads.
type CachedProductRepo struct {
	inner ports.ProductRepository
	cache ports.LookupCache
	log   zerolog.Logger
}

// NewCachedProductRepo wraps a product repository with the lookup cache.
func NewCachedProductRepo(inner ports.ProductRepository, cache ports.LookupCache, log zerolog.Logger) *CachedProductRepo {
	return &CachedProductRepo{inner: inner, cache: cache, log: log}
}

// GetByID reads through the cache.
func (r *CachedProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	key := "product:" + id.String()

	cached, err := r.cache.Get(ctx, key)
	if err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("product cache read failed")
	}
	if cached != nil {
		product := &domain.Product{}
		if err := json.Unmarshal(cached, product); err == nil {
			return product, nil
		}
	}

	product, err := r.inner.GetByID(ctx, id)
	if err != nil || product == nil {
		return product, err
	}

	if data, err := json.Marshal(product); err == nil {
		if err := r.cache.Set(ctx, key, data, lookupTTL); err != nil {
			r.log.Warn().Err(err).Str("key", key).Msg("product cache write failed")
		}
	}
	return product, nil
}

// List is not memoized; the catalog listing is already a single query.
func (r *CachedProductRepo) List(ctx context.Context) ([]domain.Product, error) {
	return r.inner.List(ctx)
}

// CachedUserRepo decorates a UserRepository with lookup memoization.
type CachedUserRepo struct {
	inner ports.UserRepository
	cache ports.LookupCache
	log   zerolog.Logger
}

// NewCachedUserRepo wraps a user repository with the lookup cache.
func NewCachedUserRepo(inner ports.UserRepository, cache ports.LookupCache, log zerolog.Logger) *CachedUserRepo {
	return &CachedUserRepo{inner: inner, cache: cache, log: log}
}

// GetByID reads through the cache.
func (r *CachedUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	key := "user:" + id.String()

	cached, err := r.cache.Get(ctx, key)
	if err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("user cache read failed")
	}
	if cached != nil {
		user := &domain.User{}
		if err := json.Unmarshal(cached, user); err == nil {
			return user, nil
		}
	}

	user, err := r.inner.GetByID(ctx, id)
	if err != nil || user == nil {
		return user, err
	}

	if data, err := json.Marshal(user); err == nil {
		if err := r.cache.Set(ctx, key, data, lookupTTL); err != nil {
			r.log.Warn().Err(err).Str("key", key).Msg("user cache write failed")
		}
	}
	return user, nil
}
