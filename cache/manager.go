package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gomarc/marclsp"
	"github.com/gomarc/marclsp/kb"
)

// ErrRecentlyFailed reports a key whose last fetch failed inside the
// failure TTL. The key is not retried until the marker expires.
var ErrRecentlyFailed = errors.New("documentation fetch recently failed")

// FetchFunc produces a definition for a cache key, typically by
// scraping a remote documentation page. The raw page body is stored in
// the disk tier alongside the parsed definition.
type FetchFunc func(ctx context.Context) (*kb.TagDefinition, []byte, error)

// Manager coordinates the memory and disk tiers. Lookup order is
// memory, then disk, then the supplied fetch function, with concurrent
// fetches for the same key collapsed into one.
type Manager struct {
	mem       *Cache[string, *kb.TagDefinition]
	disk      *DiskStore // nil when running memory-only
	group     singleflight.Group
	ttl       time.Duration
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *marclsp.Metrics // nil means unrecorded
	refreshes sync.WaitGroup
	now       func() time.Time
}

// SetMetrics attaches shared counters. Hits, misses, fetches, fetch
// failures, and stale serves are recorded from then on.
func (m *Manager) SetMetrics(metrics *marclsp.Metrics) {
	m.metrics = metrics
}

// NewManager builds a manager from the shared options. A non-empty
// CacheDir enables the disk tier.
func NewManager(opts *marclsp.Options) (*Manager, error) {
	if opts == nil {
		opts = marclsp.DefaultOptions()
	}
	m := &Manager{
		mem:     New[string, *kb.TagDefinition](opts.CacheCapacity),
		ttl:     opts.CacheTTL,
		timeout: opts.FetchTimeout,
		logger:  opts.Logger,
		now:     time.Now,
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if opts.CacheDir != "" {
		disk, err := NewDiskStore(opts.CacheDir, opts.CacheTTL, opts.FailureTTL)
		if err != nil {
			return nil, fmt.Errorf("open disk cache: %w", err)
		}
		m.disk = disk
	}
	return m, nil
}

// GetOrFetch returns the definition for key. fromCache reports whether
// the result came from a cache tier rather than a fresh fetch.
//
// A stale memory entry is returned immediately while a background
// refresh runs. On fetch failure any stale entry, memory or disk, is
// served instead of the error.
func (m *Manager) GetOrFetch(ctx context.Context, key string, fetch FetchFunc) (*kb.TagDefinition, bool, error) {
	if def, fr := m.mem.Get(key); fr == Fresh {
		m.recordHit(false)
		return def, true, nil
	} else if fr == Stale {
		m.recordHit(true)
		m.refreshAsync(key, fetch)
		return def, true, nil
	}

	// Memory miss. The disk tier may satisfy the request or veto a
	// retry via the failure marker.
	var stale *kb.TagDefinition
	if m.disk != nil {
		switch def, fr := m.disk.Get(key); fr {
		case Fresh:
			m.mem.SetWithTTL(key, def, m.ttl)
			m.recordHit(false)
			return def, true, nil
		case Stale:
			stale = def
		}
		if m.disk.FailedRecently(key) {
			if stale != nil {
				m.recordHit(true)
				return stale, true, nil
			}
			m.recordMiss()
			return nil, false, fmt.Errorf("%s: %w", key, ErrRecentlyFailed)
		}
	}

	m.recordMiss()
	def, err := m.fetchShared(ctx, key, fetch)
	if err != nil {
		if stale != nil {
			m.logger.Warn("serving stale documentation after fetch failure",
				"key", key, "error", err)
			if m.metrics != nil {
				m.metrics.RecordStaleServed()
			}
			return stale, true, nil
		}
		return nil, false, err
	}
	return def, false, nil
}

// recordHit counts a serve from either cache tier. Stale serves are
// counted twice: as a hit and as a stale fallback.
func (m *Manager) recordHit(stale bool) {
	if m.metrics == nil {
		return
	}
	m.metrics.RecordCacheHit()
	if stale {
		m.metrics.RecordStaleServed()
	}
}

func (m *Manager) recordMiss() {
	if m.metrics != nil {
		m.metrics.RecordCacheMiss()
	}
}

// fetchShared runs fetch through the singleflight group so N
// concurrent callers for the same key produce one fetch.
func (m *Manager) fetchShared(ctx context.Context, key string, fetch FetchFunc) (*kb.TagDefinition, error) {
	v, err, _ := m.group.Do(key, func() (any, error) {
		// A caller that lost the race may have populated the cache
		// between our miss and acquiring the flight.
		if def, fr := m.mem.Get(key); fr == Fresh {
			return def, nil
		}
		m.mem.Pin(key)
		defer m.mem.Unpin(key)
		return m.fetchOnce(ctx, key, fetch)
	})
	if err != nil {
		return nil, err
	}
	return v.(*kb.TagDefinition), nil
}

// fetchOnce performs the remote fetch and populates both tiers. The
// fetch is detached from the caller's cancellation: an abandoned hover
// must not waste the request, the result still populates the cache.
func (m *Manager) fetchOnce(ctx context.Context, key string, fetch FetchFunc) (*kb.TagDefinition, error) {
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
	defer cancel()

	if m.metrics != nil {
		m.metrics.RecordFetch()
	}
	def, raw, err := fetch(fetchCtx)
	if err != nil {
		if m.metrics != nil {
			m.metrics.RecordFetchFailure()
		}
		if m.disk != nil {
			if markErr := m.disk.MarkFailed(key, err.Error()); markErr != nil {
				m.logger.Warn("writing failure marker", "key", key, "error", markErr)
			}
		}
		return nil, fmt.Errorf("fetch %s: %w", key, err)
	}

	m.mem.SetWithTTL(key, def, m.ttl)
	if m.disk != nil {
		if err := m.disk.Put(key, def, raw); err != nil {
			m.logger.Warn("writing disk cache", "key", key, "error", err)
		}
	}
	return def, nil
}

// refreshAsync revalidates a stale key in the background. The flight
// group collapses it with any concurrent foreground fetch.
func (m *Manager) refreshAsync(key string, fetch FetchFunc) {
	m.refreshes.Add(1)
	go func() {
		defer m.refreshes.Done()
		_, err, _ := m.group.Do(key, func() (any, error) {
			if def, fr := m.mem.Get(key); fr == Fresh {
				return def, nil
			}
			if m.disk != nil && m.disk.FailedRecently(key) {
				return nil, fmt.Errorf("%s: %w", key, ErrRecentlyFailed)
			}
			m.mem.Pin(key)
			defer m.mem.Unpin(key)
			return m.fetchOnce(context.Background(), key, fetch)
		})
		if err != nil {
			m.logger.Debug("background refresh failed", "key", key, "error", err)
		}
	}()
}

// Invalidate drops a key from both tiers.
func (m *Manager) Invalidate(key string) {
	m.mem.Delete(key)
	if m.disk != nil {
		m.disk.Remove(key)
	}
}

// Stats returns the memory tier's statistics.
func (m *Manager) Stats() Stats {
	return m.mem.Stats()
}

// Close waits for in-flight background refreshes to finish. Disk
// writes are synchronous, so after Close the store is consistent.
func (m *Manager) Close() {
	m.refreshes.Wait()
}
