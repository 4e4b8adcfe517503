package marclsp

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if !opts.RemoteEnabled {
		t.Error("RemoteEnabled should be true by default")
	}
	if opts.FetchTimeout != 5*time.Second {
		t.Errorf("FetchTimeout = %v; want 5s", opts.FetchTimeout)
	}
	if opts.CacheCapacity != 256 {
		t.Errorf("CacheCapacity = %d; want 256", opts.CacheCapacity)
	}
	if opts.CacheTTL != 7*24*time.Hour {
		t.Errorf("CacheTTL = %v; want 168h", opts.CacheTTL)
	}
	if opts.FailureTTL != 24*time.Hour {
		t.Errorf("FailureTTL = %v; want 24h", opts.FailureTTL)
	}
	if opts.CacheDir != "" {
		t.Errorf("CacheDir = %q; want empty", opts.CacheDir)
	}
	if opts.BatchWorkers != 4 {
		t.Errorf("BatchWorkers = %d; want 4", opts.BatchWorkers)
	}
	if opts.Logger == nil {
		t.Error("Logger should not be nil by default")
	}
}

func TestOptionsApply(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	opts := DefaultOptions()
	for _, opt := range []Option{
		WithRemote(false),
		WithFetchTimeout(time.Second),
		WithCacheCapacity(10),
		WithCacheTTL(time.Hour),
		WithFailureTTL(time.Minute),
		WithCacheDir("/tmp/marc-cache"),
		WithBatchWorkers(8),
		WithLogger(logger),
	} {
		opt(opts)
	}

	if opts.RemoteEnabled {
		t.Error("WithRemote(false) not applied")
	}
	if opts.FetchTimeout != time.Second {
		t.Errorf("FetchTimeout = %v; want 1s", opts.FetchTimeout)
	}
	if opts.CacheCapacity != 10 {
		t.Errorf("CacheCapacity = %d; want 10", opts.CacheCapacity)
	}
	if opts.CacheTTL != time.Hour || opts.FailureTTL != time.Minute {
		t.Errorf("TTLs = %v, %v", opts.CacheTTL, opts.FailureTTL)
	}
	if opts.CacheDir != "/tmp/marc-cache" {
		t.Errorf("CacheDir = %q", opts.CacheDir)
	}
	if opts.BatchWorkers != 8 {
		t.Errorf("BatchWorkers = %d; want 8", opts.BatchWorkers)
	}
	if opts.Logger != logger {
		t.Error("WithLogger not applied")
	}
}
