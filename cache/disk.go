package cache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"github.com/gomarc/marclsp/kb"
)

// DiskStore is the persistent cache tier. Each key produces a small
// family of files named by the key's md5:
//
//	<md5>.html      raw fetched page, kept for offline inspection
//	<md5>.def.json  parsed tag definition
//	<md5>.meta.json key, fetch time, and TTL
//	<md5>.failed.json  negative-cache marker for failed fetches
//
// The store is advisory: any unreadable or corrupt file is treated as
// a miss and rebuilt on the next fetch.
type DiskStore struct {
	dir        string
	ttl        time.Duration
	failureTTL time.Duration
	now        func() time.Time
}

type diskMeta struct {
	Key        string    `json:"key"`
	FetchedAt  time.Time `json:"fetched_at"`
	TTLSeconds int64     `json:"ttl_seconds"`
}

type failureMarker struct {
	Key      string    `json:"key"`
	FailedAt time.Time `json:"failed_at"`
	Reason   string    `json:"reason"`
}

// NewDiskStore opens (creating if needed) a disk store rooted at dir.
func NewDiskStore(dir string, ttl, failureTTL time.Duration) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache dir %s: %w", dir, err)
	}
	return &DiskStore{
		dir:        dir,
		ttl:        ttl,
		failureTTL: failureTTL,
		now:        time.Now,
	}, nil
}

func (s *DiskStore) path(key, ext string) string {
	sum := md5.Sum([]byte(key))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:])+ext)
}

// Put stores a fetched definition and its raw page, clearing any
// failure marker for the key.
func (s *DiskStore) Put(key string, def *kb.TagDefinition, raw []byte) error {
	meta := diskMeta{
		Key:        key,
		FetchedAt:  s.now(),
		TTLSeconds: int64(s.ttl / time.Second),
	}
	metaRaw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode meta for %s: %w", key, err)
	}
	defRaw, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("encode definition for %s: %w", key, err)
	}
	if len(raw) > 0 {
		if err := os.WriteFile(s.path(key, ".html"), raw, 0o644); err != nil {
			return fmt.Errorf("write raw for %s: %w", key, err)
		}
	}
	if err := os.WriteFile(s.path(key, ".def.json"), defRaw, 0o644); err != nil {
		return fmt.Errorf("write definition for %s: %w", key, err)
	}
	if err := os.WriteFile(s.path(key, ".meta.json"), metaRaw, 0o644); err != nil {
		return fmt.Errorf("write meta for %s: %w", key, err)
	}
	os.Remove(s.path(key, ".failed.json"))
	return nil
}

// Get loads a stored definition. Entries past their TTL are still
// returned, marked Stale. Missing or corrupt files report Miss.
func (s *DiskStore) Get(key string) (*kb.TagDefinition, Freshness) {
	metaRaw, err := os.ReadFile(s.path(key, ".meta.json"))
	if err != nil {
		return nil, Miss
	}
	var meta diskMeta
	if err := json.Unmarshal(metaRaw, &meta); err != nil {
		return nil, Miss
	}
	defRaw, err := os.ReadFile(s.path(key, ".def.json"))
	if err != nil {
		return nil, Miss
	}
	var def kb.TagDefinition
	if err := json.Unmarshal(defRaw, &def); err != nil {
		return nil, Miss
	}

	ttl := time.Duration(meta.TTLSeconds) * time.Second
	if ttl > 0 && !s.now().Before(meta.FetchedAt.Add(ttl)) {
		return &def, Stale
	}
	return &def, Fresh
}

// Raw returns the stored page body for a key, if any.
func (s *DiskStore) Raw(key string) ([]byte, error) {
	return os.ReadFile(s.path(key, ".html"))
}

// MarkFailed records a failed fetch so the key is not retried until
// the failure TTL passes.
func (s *DiskStore) MarkFailed(key, reason string) error {
	marker := failureMarker{Key: key, FailedAt: s.now(), Reason: reason}
	raw, err := json.Marshal(marker)
	if err != nil {
		return fmt.Errorf("encode failure marker for %s: %w", key, err)
	}
	if err := os.WriteFile(s.path(key, ".failed.json"), raw, 0o644); err != nil {
		return fmt.Errorf("write failure marker for %s: %w", key, err)
	}
	return nil
}

// FailedRecently reports whether the key has a failure marker younger
// than the failure TTL. Expired markers are removed.
func (s *DiskStore) FailedRecently(key string) bool {
	raw, err := os.ReadFile(s.path(key, ".failed.json"))
	if err != nil {
		return false
	}
	var marker failureMarker
	if err := json.Unmarshal(raw, &marker); err != nil {
		os.Remove(s.path(key, ".failed.json"))
		return false
	}
	if !s.now().Before(marker.FailedAt.Add(s.failureTTL)) {
		os.Remove(s.path(key, ".failed.json"))
		return false
	}
	return true
}

// Remove deletes every file for a key.
func (s *DiskStore) Remove(key string) {
	for _, ext := range []string{".html", ".def.json", ".meta.json", ".failed.json"} {
		os.Remove(s.path(key, ext))
	}
}
