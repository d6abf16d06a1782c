package repository_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexlondon07/cryptostream/cmd/api/internal/repository"
)

func TestListSymbols_ScansBeyondOneCursorPage(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := repository.NewRedisStore(rdb)

	// More keys than one SCAN page, plus neighbors the match must exclude.
	for i := 0; i < 150; i++ {
		mr.Set(fmt.Sprintf("crypto:current:S%03d", i), "{}")
	}
	mr.Set("crypto:stats:BTC", "{}")
	mr.Set("2026-08-30", "{}")

	symbols, err := store.ListSymbols(context.Background())
	require.NoError(t, err)
	require.Len(t, symbols, 150)
	assert.Equal(t, "S000", symbols[0])
	assert.Equal(t, "S149", symbols[149])
	assert.NotContains(t, symbols, "BTC", "stats keys are not symbols")
}

func TestListSymbols_EmptyStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := repository.NewRedisStore(rdb)

	symbols, err := store.ListSymbols(context.Background())
	require.NoError(t, err)
	assert.Empty(t, symbols)
}
