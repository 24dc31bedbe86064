package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
)

func TestCacheRepositoryWithoutClientIsDisabled(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	var dest map[string]string
	assert.ErrorIs(t, repo.Get(ctx, "summary:2024-10-07", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(ctx, "summary:2024-10-07", map[string]string{"a": "b"}, time.Minute))
	assert.NoError(t, repo.Delete(ctx, "summary:2024-10-07"))
	assert.NoError(t, repo.DeleteByPattern(ctx, "summary:*"))
}
