package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/salescore/internal/domain"
	"github.com/vladislavdragonenkov/salescore/internal/storage/memory"
)

func TestSaleKeys_ClaimAndConflicts(t *testing.T) {
	repo := memory.NewIdempotencyRepository()
	ctx := context.Background()
	ttl := time.Now().UTC().Add(2 * time.Hour).Round(time.Second)

	claimed, err := repo.CreateProcessing(ctx, " sale-create-key-1 ", "hash-1", ttl)
	require.NoError(t, err)
	assert.Equal(t, "sale-create-key-1", claimed.Key)
	assert.Equal(t, domain.IdempotencyStatusProcessing, claimed.Status)
	assert.True(t, claimed.TTLAt.Equal(ttl))

	_, err = repo.CreateProcessing(ctx, "sale-create-key-1", "hash-1", ttl)
	assert.ErrorIs(t, err, domain.ErrIdempotencyKeyAlreadyExists)
	held, err := repo.CreateProcessing(ctx, "sale-create-key-1", "hash-2", ttl)
	assert.ErrorIs(t, err, domain.ErrIdempotencyHashMismatch)
	assert.Equal(t, "hash-1", held.RequestHash)

	_, err = repo.CreateProcessing(ctx, "  ", "hash-1", ttl)
	assert.ErrorIs(t, err, domain.ErrIdempotencyKeyRequired)
	_, err = repo.CreateProcessing(ctx, "sale-create-key-2", "", ttl)
	assert.ErrorIs(t, err, domain.ErrIdempotencyRequestHashRequired)
}

func TestSaleKeys_SettleStoresCreatedSale(t *testing.T) {
	repo := memory.NewIdempotencyRepository()
	ctx := context.Background()

	_, err := repo.CreateProcessing(ctx, "checkout-42", "hash", time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)

	body := []byte(`{"id":"s-42","status":"pending"}`)
	require.NoError(t, repo.Settle(ctx, "checkout-42", domain.IdempotencyStatusDone, domain.IdempotencyResponse{
		SaleID: "s-42", HTTPStatus: 201, Body: body,
	}))
	body[0] = 'x'

	got, err := repo.Get(ctx, "checkout-42")
	require.NoError(t, err)
	assert.Equal(t, domain.IdempotencyStatusDone, got.Status)
	assert.Equal(t, "s-42", got.SaleID)
	assert.Equal(t, 201, got.HTTPStatus)
	assert.JSONEq(t, `{"id":"s-42","status":"pending"}`, string(got.ResponseBody))
	assert.True(t, got.Replayable())

	err = repo.Settle(ctx, "checkout-42", domain.IdempotencyStatusProcessing, domain.IdempotencyResponse{})
	assert.Error(t, err)
	assert.ErrorIs(t, repo.Settle(ctx, "missing", domain.IdempotencyStatusFailed, domain.IdempotencyResponse{}), domain.ErrIdempotencyKeyNotFound)
}

func TestSaleKeys_ExpiredKeyIsReusable(t *testing.T) {
	repo := memory.NewIdempotencyRepository()
	ctx := context.Background()

	_, err := repo.CreateProcessing(ctx, "sale-key-old", "hash-old", time.Now().UTC().Add(-time.Second))
	require.NoError(t, err)
	require.NoError(t, repo.Settle(ctx, "sale-key-old", domain.IdempotencyStatusDone, domain.IdempotencyResponse{
		SaleID: "s-1", HTTPStatus: 201, Body: []byte(`{"id":"s-1"}`),
	}))

	reused, err := repo.CreateProcessing(ctx, "sale-key-old", "hash-new", time.Now().UTC().Add(time.Hour))
	require.NoError(t, err, "expired key must be reusable")
	assert.Equal(t, domain.IdempotencyStatusProcessing, reused.Status)
	assert.Equal(t, "hash-new", reused.RequestHash)
	assert.Empty(t, reused.SaleID)
	assert.Empty(t, reused.ResponseBody)
}

func TestSaleKeys_DeleteExpiredOldestFirst(t *testing.T) {
	repo := memory.NewIdempotencyRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	for key, ttl := range map[string]time.Time{
		"oldest": now.Add(-3 * time.Hour),
		"older":  now.Add(-2 * time.Hour),
		"old":    now.Add(-time.Hour),
		"live":   now.Add(time.Hour),
	} {
		_, err := repo.CreateProcessing(ctx, key, "hash-"+key, ttl)
		require.NoError(t, err)
	}

	removed, err := repo.DeleteExpired(ctx, now, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	for _, key := range []string{"oldest", "older"} {
		_, err := repo.Get(ctx, key)
		assert.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound, key)
	}

	removed, err = repo.DeleteExpired(ctx, now, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	_, err = repo.Get(ctx, "live")
	assert.NoError(t, err)
}
