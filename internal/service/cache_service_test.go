package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-center-api/internal/models"
	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
)

type memoryCache struct {
	data   map[string][]byte
	ttls   map[string]time.Duration
	setErr error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	m.ttls[key] = ttl
	return nil
}

func (m *memoryCache) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
		}
	}
	return nil
}

func TestCacheServiceDisabledIsNoop(t *testing.T) {
	repo := newMemoryCache()
	svc := NewCacheService(repo, nil, time.Minute, nil, false)

	svc.Set(context.Background(), "k", "v", 0)
	var out string
	assert.False(t, svc.Get(context.Background(), "k", &out))
	assert.Empty(t, repo.data)

	var nilSvc *CacheService
	assert.False(t, nilSvc.Get(context.Background(), "k", &out))
	nilSvc.Invalidate(context.Background(), "k")
}

func TestCacheServiceHitMissAndDefaultTTL(t *testing.T) {
	repo := newMemoryCache()
	metrics := NewMetricsService()
	svc := NewCacheService(repo, metrics, 2*time.Minute, nil, true)
	ctx := context.Background()

	var summary models.DailySummary
	assert.False(t, svc.Get(ctx, "settlements:summary:2024-10-14", &summary))

	svc.Set(ctx, "settlements:summary:2024-10-14", models.DailySummary{Date: "2024-10-14", IncomeCount: 2}, 0)
	assert.Equal(t, 2*time.Minute, repo.ttls["settlements:summary:2024-10-14"])
	require.True(t, svc.Get(ctx, "settlements:summary:2024-10-14", &summary))
	assert.Equal(t, 2, summary.IncomeCount)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheMisses))

	repo.setErr = errors.New("redis down")
	svc.Set(ctx, "other", 1, time.Second)
	assert.NotContains(t, repo.data, "other")
}

func TestCacheServiceInvalidation(t *testing.T) {
	repo := newMemoryCache()
	svc := NewCacheService(repo, nil, time.Minute, nil, true)
	ctx := context.Background()

	svc.Set(ctx, liveBookingsCacheKey(2024, time.October, "", "", ""), []string{"a"}, 0)
	svc.Set(ctx, liveBookingsCacheKey(2024, time.November, "hall-1", "", ""), []string{"b"}, 0)
	svc.Set(ctx, summaryCacheKey(time.Date(2024, 10, 14, 0, 0, 0, 0, time.UTC)), 1, 0)

	svc.InvalidatePattern(ctx, liveBookingsCachePattern)
	assert.Len(t, repo.data, 1)
	svc.Invalidate(ctx, "settlements:summary:2024-10-14")
	assert.Empty(t, repo.data)
}

func TestSettlementSummaryServedFromCache(t *testing.T) {
	f := newSettlementFixture()
	f.svc.cache = NewCacheService(newMemoryCache(), nil, time.Minute, nil, true)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, owner, incomeRequest(100))
	require.NoError(t, err)
	_, err = f.svc.GetDailySummary(ctx, owner, "2024-10-14")
	require.NoError(t, err)
	_, err = f.svc.GetDailySummary(ctx, owner, "2024-10-14")
	require.NoError(t, err)
	assert.Equal(t, 1, f.repo.totalsCalls)

	_, err = f.svc.Create(ctx, owner, incomeRequest(50))
	require.NoError(t, err)
	summary, err := f.svc.GetDailySummary(ctx, owner, "2024-10-14")
	require.NoError(t, err)
	assert.Equal(t, 2, f.repo.totalsCalls, "writes invalidate the cached summary")
	assert.Equal(t, 2, summary.IncomeCount)
}
