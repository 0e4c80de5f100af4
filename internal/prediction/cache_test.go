package prediction

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/couchcryptid/firesync/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockChecker struct {
	mu      sync.Mutex
	answers map[string]bool
	err     error
	calls   atomic.Int32
	block   chan struct{}
}

func (m *mockChecker) Exists(_ context.Context, name string) (bool, error) {
	m.calls.Add(1)
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	return m.answers[name], nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- tests ---

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Park Fire", "park fire"},
		{"  PARK   fire ", "park fire"},
		{"Río Fuego", "rio fuego"},
		{"Cañon", "canon"},
		{"", ""},
		{"\t \n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeName(tt.in))
		})
	}
}

func TestAvailable_CachesNegativeAnswer(t *testing.T) {
	checker := &mockChecker{answers: map[string]bool{}}
	cache := NewAvailabilityCache(checker, discardLogger(), observability.NewMetricsForTesting())

	ok, err := cache.Available(context.Background(), "Creek Fire")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = cache.Available(context.Background(), "creek  fire")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, int32(1), checker.calls.Load())
}

func TestAvailable_CachesPositiveAnswer(t *testing.T) {
	checker := &mockChecker{answers: map[string]bool{"Park Fire": true}}
	metrics := observability.NewMetricsForTesting()
	cache := NewAvailabilityCache(checker, discardLogger(), metrics)

	for range 3 {
		ok, err := cache.Available(context.Background(), "Park Fire")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, int32(1), checker.calls.Load())
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.PredictionCache.WithLabelValues("miss")), 1e-9)
	assert.InDelta(t, 2.0, testutil.ToFloat64(metrics.PredictionCache.WithLabelValues("hit")), 1e-9)
}

func TestAvailable_DoesNotCacheErrors(t *testing.T) {
	checker := &mockChecker{answers: map[string]bool{"Park Fire": true}, err: errors.New("503")}
	cache := NewAvailabilityCache(checker, discardLogger(), observability.NewMetricsForTesting())

	_, err := cache.Available(context.Background(), "Park Fire")
	require.Error(t, err)
	assert.Zero(t, cache.Len())

	checker.mu.Lock()
	checker.err = nil
	checker.mu.Unlock()

	ok, err := cache.Available(context.Background(), "Park Fire")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(2), checker.calls.Load())
}

func TestAvailable_EmptyNameSkipsLookup(t *testing.T) {
	checker := &mockChecker{}
	cache := NewAvailabilityCache(checker, discardLogger(), observability.NewMetricsForTesting())

	ok, err := cache.Available(context.Background(), "   ")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, checker.calls.Load())
}

func TestInvalidate(t *testing.T) {
	checker := &mockChecker{answers: map[string]bool{}}
	cache := NewAvailabilityCache(checker, discardLogger(), observability.NewMetricsForTesting())
	ctx := context.Background()

	_, err := cache.Available(ctx, "Park Fire")
	require.NoError(t, err)
	_, err = cache.Available(ctx, "Dixie")
	require.NoError(t, err)
	require.Equal(t, 2, cache.Len())

	checker.mu.Lock()
	checker.answers["PARK FIRE"] = true
	checker.mu.Unlock()

	cache.Invalidate("PARK FIRE")
	assert.Equal(t, 1, cache.Len())

	ok, err := cache.Available(ctx, "PARK FIRE")
	require.NoError(t, err)
	assert.True(t, ok)

	cache.InvalidateAll()
	assert.Zero(t, cache.Len())
}

func TestAvailable_CollapsesConcurrentLookups(t *testing.T) {
	checker := &mockChecker{answers: map[string]bool{"Park Fire": true}, block: make(chan struct{})}
	cache := NewAvailabilityCache(checker, discardLogger(), observability.NewMetricsForTesting())

	var wg sync.WaitGroup
	results := make([]bool, 5)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := cache.Available(context.Background(), "Park Fire")
			assert.NoError(t, err)
			results[i] = ok
		}()
	}

	// Let the first lookup reach the checker before releasing it.
	for checker.calls.Load() == 0 {
		runtime.Gosched()
	}
	close(checker.block)
	wg.Wait()

	for _, ok := range results {
		assert.True(t, ok)
	}
	assert.Equal(t, 1, cache.Len())
}
