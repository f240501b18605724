package redis

import (
	"context"
	"testing"
	"time"

	"balance-ledger/internal/core/domain"
	"balance-ledger/internal/core/ports/mocks"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestCachedProductRepo_MissThenHit(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewLookupCache(client)
	inner := mocks.NewMockProductRepository(ctrl)
	repo := NewCachedProductRepo(inner, cache, zerolog.Nop())

	product := &domain.Product{
		ID:       uuid.New(),
		Name:     "starter pack",
		Price:    decimal.RequireFromString("49.99"),
		Currency: "USD",
		Active:   true,
	}

	// First read misses the cache and hits the store.
	inner.EXPECT().GetByID(gomock.Any(), product.ID).Return(product, nil).Times(1)

	got, err := repo.GetByID(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, product.ID, got.ID)

	// Second read is served from the cache; the inner repo is not called again.
	got, err = repo.GetByID(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, product.Name, got.Name)
	assert.True(t, product.Price.Equal(got.Price))
}

func TestCachedProductRepo_ExpiryFallsBackToStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewLookupCache(client)
	inner := mocks.NewMockProductRepository(ctrl)
	repo := NewCachedProductRepo(inner, cache, zerolog.Nop())

	product := &domain.Product{ID: uuid.New(), Name: "starter pack"}
	inner.EXPECT().GetByID(gomock.Any(), product.ID).Return(product, nil).Times(2)

	_, err := repo.GetByID(context.Background(), product.ID)
	require.NoError(t, err)

	s.FastForward(lookupTTL + time.Second)

	_, err = repo.GetByID(context.Background(), product.ID)
	require.NoError(t, err)
}

func TestCachedProductRepo_AbsentNotCached(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewLookupCache(client)
	inner := mocks.NewMockProductRepository(ctrl)
	repo := NewCachedProductRepo(inner, cache, zerolog.Nop())

	id := uuid.New()
	inner.EXPECT().GetByID(gomock.Any(), id).Return(nil, nil).Times(2)

	got, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Absence is not memoized; the next read asks the store again.
	got, err = repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCachedUserRepo_MissThenHit(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewLookupCache(client)
	inner := mocks.NewMockUserRepository(ctrl)
	repo := NewCachedUserRepo(inner, cache, zerolog.Nop())

	user := &domain.User{ID: uuid.New(), Email: "buyer@example.com", Name: "Buyer"}
	inner.EXPECT().GetByID(gomock.Any(), user.ID).Return(user, nil).Times(1)

	got, err := repo.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, got.Email)

	got, err = repo.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, got.Email)
}
