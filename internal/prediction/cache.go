// Package prediction tracks which incidents have perimeter predictions
// available upstream. Answers are cached per normalized incident name.
package prediction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode"

	"github.com/couchcryptid/firesync/internal/observability"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ExistenceChecker asks the prediction backend whether a prediction exists.
type ExistenceChecker interface {
	Exists(ctx context.Context, name string) (bool, error)
}

// AvailabilityCache memoizes ExistenceChecker answers. Both positive and
// negative answers are kept until invalidated; errors are never cached.
// Concurrent lookups for the same name share one upstream request.
type AvailabilityCache struct {
	checker ExistenceChecker
	logger  *slog.Logger
	metrics *observability.Metrics

	mu      sync.RWMutex
	entries map[string]bool
	group   singleflight.Group
}

// NewAvailabilityCache wraps checker with a cache.
func NewAvailabilityCache(checker ExistenceChecker, logger *slog.Logger, metrics *observability.Metrics) *AvailabilityCache {
	return &AvailabilityCache{
		checker: checker,
		logger:  logger,
		metrics: metrics,
		entries: make(map[string]bool),
	}
}

// Available reports whether a prediction exists for the incident name.
func (c *AvailabilityCache) Available(ctx context.Context, name string) (bool, error) {
	k := NormalizeName(name)
	if k == "" {
		return false, nil
	}

	c.mu.RLock()
	ok, hit := c.entries[k]
	c.mu.RUnlock()
	if hit {
		c.metrics.PredictionCache.WithLabelValues("hit").Inc()
		return ok, nil
	}

	v, err, _ := c.group.Do(k, func() (any, error) {
		exists, err := c.checker.Exists(ctx, name)
		if err != nil {
			return false, err
		}
		c.mu.Lock()
		c.entries[k] = exists
		c.mu.Unlock()
		return exists, nil
	})
	if err != nil {
		c.metrics.PredictionCache.WithLabelValues("error").Inc()
		return false, fmt.Errorf("check prediction %q: %w", name, err)
	}
	c.metrics.PredictionCache.WithLabelValues("miss").Inc()
	c.logger.Debug("prediction availability cached", "incident", name, "available", v.(bool))
	return v.(bool), nil
}

// Invalidate forgets the cached answer for name.
func (c *AvailabilityCache) Invalidate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, NormalizeName(name))
}

// InvalidateAll forgets every cached answer.
func (c *AvailabilityCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

// Len returns the number of cached answers.
func (c *AvailabilityCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// NormalizeName folds an incident name into its cache key: accents stripped,
// lower-cased, with runs of whitespace collapsed.
func NormalizeName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}
