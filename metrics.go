package marclsp

import (
	"sync/atomic"
	"time"
)

// Metrics collects counters for the core. All methods are safe for
// concurrent use; counters are lock-free atomics.
type Metrics struct {
	parses      atomic.Uint64
	validations atomic.Uint64
	validOK     atomic.Uint64

	errorsTotal   atomic.Uint64
	warningsTotal atomic.Uint64

	cacheHits   atomic.Uint64
	cacheMisses atomic.Uint64

	fetches       atomic.Uint64
	fetchFailures atomic.Uint64
	staleServed   atomic.Uint64

	validationNanos atomic.Uint64
}

// NewMetrics creates a new Metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordParse records one parse call.
func (m *Metrics) RecordParse() {
	m.parses.Add(1)
}

// RecordValidation records a completed validation.
func (m *Metrics) RecordValidation(duration time.Duration, valid bool) {
	m.validations.Add(1)
	if valid {
		m.validOK.Add(1)
	}
	m.validationNanos.Add(uint64(duration.Nanoseconds()))
}

// RecordDiagnostic records one emitted diagnostic by severity.
func (m *Metrics) RecordDiagnostic(severity Severity) {
	switch severity {
	case SeverityError:
		m.errorsTotal.Add(1)
	case SeverityWarning:
		m.warningsTotal.Add(1)
	}
}

// RecordCacheHit records a documentation cache hit.
func (m *Metrics) RecordCacheHit() {
	m.cacheHits.Add(1)
}

// RecordCacheMiss records a documentation cache miss.
func (m *Metrics) RecordCacheMiss() {
	m.cacheMisses.Add(1)
}

// RecordFetch records a remote documentation fetch attempt.
func (m *Metrics) RecordFetch() {
	m.fetches.Add(1)
}

// RecordFetchFailure records a failed or timed-out remote fetch.
func (m *Metrics) RecordFetchFailure() {
	m.fetchFailures.Add(1)
}

// RecordStaleServed records a stale cache entry served as a fallback.
func (m *Metrics) RecordStaleServed() {
	m.staleServed.Add(1)
}

// CacheHitRate returns the cache hit rate in [0, 1].
func (m *Metrics) CacheHitRate() float64 {
	hits := m.cacheHits.Load()
	total := hits + m.cacheMisses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// AverageValidationTime returns the mean duration of a validation.
func (m *Metrics) AverageValidationTime() time.Duration {
	n := m.validations.Load()
	if n == 0 {
		return 0
	}
	return time.Duration(m.validationNanos.Load() / n)
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Parses           uint64        `json:"parses"`
	Validations      uint64        `json:"validations"`
	ValidationsValid uint64        `json:"validationsValid"`
	Errors           uint64        `json:"errors"`
	Warnings         uint64        `json:"warnings"`
	CacheHits        uint64        `json:"cacheHits"`
	CacheMisses      uint64        `json:"cacheMisses"`
	CacheHitRate     float64       `json:"cacheHitRate"`
	Fetches          uint64        `json:"fetches"`
	FetchFailures    uint64        `json:"fetchFailures"`
	StaleServed      uint64        `json:"staleServed"`
	AvgValidation    time.Duration `json:"avgValidationNs"`
}

// Snapshot returns a consistent-enough view of the counters.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Parses:           m.parses.Load(),
		Validations:      m.validations.Load(),
		ValidationsValid: m.validOK.Load(),
		Errors:           m.errorsTotal.Load(),
		Warnings:         m.warningsTotal.Load(),
		CacheHits:        m.cacheHits.Load(),
		CacheMisses:      m.cacheMisses.Load(),
		CacheHitRate:     m.CacheHitRate(),
		Fetches:          m.fetches.Load(),
		FetchFailures:    m.fetchFailures.Load(),
		StaleServed:      m.staleServed.Load(),
		AvgValidation:    m.AverageValidationTime(),
	}
}

// Reset zeroes all counters.
func (m *Metrics) Reset() {
	m.parses.Store(0)
	m.validations.Store(0)
	m.validOK.Store(0)
	m.errorsTotal.Store(0)
	m.warningsTotal.Store(0)
	m.cacheHits.Store(0)
	m.cacheMisses.Store(0)
	m.fetches.Store(0)
	m.fetchFailures.Store(0)
	m.staleServed.Store(0)
	m.validationNanos.Store(0)
}
