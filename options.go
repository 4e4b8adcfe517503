package marclsp

import (
	"log/slog"
	"time"
)

// Option configures the core.
type Option func(*Options)

// Options holds shared configuration for the documentation subsystem and
// the validation engine.
type Options struct {
	// Remote lookup
	RemoteEnabled bool
	FetchTimeout  time.Duration

	// Cache behavior
	CacheCapacity int
	CacheTTL      time.Duration
	FailureTTL    time.Duration
	CacheDir      string // empty means memory-only

	// Validation
	BatchWorkers int

	// Logging
	Logger *slog.Logger
}

// DefaultOptions returns the default configuration.
func DefaultOptions() *Options {
	return &Options{
		RemoteEnabled: true,
		// Short timeout: a hover request is waiting on this.
		FetchTimeout: 5 * time.Second,

		CacheCapacity: 256,
		CacheTTL:      7 * 24 * time.Hour,
		FailureTTL:    24 * time.Hour,

		BatchWorkers: 4,

		Logger: slog.Default(),
	}
}

// WithRemote enables or disables remote documentation lookup. When
// disabled, resolution stops at the knowledge base and cached entries.
func WithRemote(enable bool) Option {
	return func(o *Options) {
		o.RemoteEnabled = enable
	}
}

// WithFetchTimeout bounds a single remote documentation fetch. A
// timed-out fetch is treated identically to a failed fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.FetchTimeout = d
		}
	}
}

// WithCacheCapacity sets the in-memory definition cache capacity.
func WithCacheCapacity(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.CacheCapacity = n
		}
	}
}

// WithCacheTTL sets the time-to-live for cached definitions. Entries
// older than the TTL are served only as a fallback while a refresh runs.
func WithCacheTTL(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.CacheTTL = d
		}
	}
}

// WithFailureTTL sets how long a failed lookup is remembered before the
// remote is retried.
func WithFailureTTL(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.FailureTTL = d
		}
	}
}

// WithCacheDir enables the persistent cache tier rooted at dir.
func WithCacheDir(dir string) Option {
	return func(o *Options) {
		o.CacheDir = dir
	}
}

// WithBatchWorkers bounds the number of concurrent validations in batch
// mode.
func WithBatchWorkers(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.BatchWorkers = n
		}
	}
}

// WithLogger sets the structured logger used by the core.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}
