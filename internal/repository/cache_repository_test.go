package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/seanior/course-booking-api/pkg/errors"
)

func TestCacheRepositoryWithoutClientDegrades(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	var dest []string
	assert.True(t, errors.Is(repo.Get(ctx, "k", &dest), appErrors.ErrCacheMiss))
	require.NoError(t, repo.Set(ctx, "k", []string{"v"}, time.Minute))
	require.NoError(t, repo.Delete(ctx, "k"))
	require.NoError(t, repo.DeleteByPattern(ctx, "k*"))

	marked, err := repo.Mark(ctx, "event", time.Minute)
	require.NoError(t, err)
	assert.True(t, marked)

	exists, err := repo.Exists(ctx, "event")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.NoError(t, repo.Ping(ctx))
	assert.NoError(t, repo.Close())
}
