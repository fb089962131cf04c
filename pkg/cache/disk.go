package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// retentionPeriod is how long cache files are kept regardless of their TTL.
	retentionPeriod = 30 * 24 * time.Hour
	dirPerms        = 0o700
	filePerms       = 0o600
)

// HitType indicates where a cached value was found.
type HitType string

// Cache lookup outcomes.
const (
	HitMemory HitType = "memory"
	HitDisk   HitType = "disk"
	Miss      HitType = "miss"
)

type diskEntry struct {
	Expiration time.Time       `json:"expiration"`
	CachedAt   time.Time       `json:"cached_at"`
	Value      json.RawMessage `json:"value"`
}

// Disk is a two-tier cache: in-memory plus JSON files in a directory.
// Values must round-trip through encoding/json.
type Disk[V any] struct {
	*Cache[V]

	logger *slog.Logger
	dir    string
}

// NewDisk creates a disk-backed cache. An empty dir gives a memory-only cache.
// Files older than the retention period are pruned on open.
func NewDisk[V any](ttl time.Duration, dir string, logger *slog.Logger) (*Disk[V], error) {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Disk[V]{Cache: New[V](ttl), logger: logger}
	if dir == "" {
		return d, nil
	}

	clean := filepath.Clean(dir)
	if !filepath.IsAbs(clean) {
		d.Close()
		return nil, errors.New("cache directory must be absolute path")
	}
	if err := os.MkdirAll(clean, dirPerms); err != nil {
		logger.Warn("Failed to create cache directory, falling back to memory-only", "error", err, "path", clean)
		return d, nil
	}
	d.dir = clean
	if n := d.Prune(time.Now().Add(-retentionPeriod)); n > 0 {
		logger.Info("Cleaned old cache files", "removed", n)
	}
	return d, nil
}

// Get retrieves a value, memory first and then disk.
func (d *Disk[V]) Get(key string) (V, bool) {
	v, hit := d.Lookup(key)
	return v, hit != Miss
}

// Lookup retrieves a value and reports where it was found.
func (d *Disk[V]) Lookup(key string) (V, HitType) {
	var zero V
	if v, ok := d.Cache.Get(key); ok {
		return v, HitMemory
	}
	if d.dir == "" {
		return zero, Miss
	}

	var e diskEntry
	if !d.load(key, &e) {
		return zero, Miss
	}
	if time.Now().After(e.Expiration) {
		d.logger.Debug("Disk cache entry expired", "key", key, "expired_at", e.Expiration)
		d.remove(key)
		return zero, Miss
	}
	var v V
	if err := json.Unmarshal(e.Value, &v); err != nil {
		d.logger.Warn("Failed to unmarshal disk cache entry", "key", key, "error", err)
		d.remove(key)
		return zero, Miss
	}

	d.logger.Debug("Disk cache hit", "key", key, "cached_at", e.CachedAt, "ttl_remaining", time.Until(e.Expiration))
	if ttl := time.Until(e.Expiration); ttl > 0 {
		d.Cache.SetWithTTL(key, v, ttl)
	}
	return v, HitDisk
}

// Set stores a value in memory and on disk with the default TTL.
func (d *Disk[V]) Set(key string, value V) {
	d.SetWithTTL(key, value, d.ttl)
}

// SetWithTTL stores a value in memory and on disk.
func (d *Disk[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	d.Cache.SetWithTTL(key, value, ttl)
	if d.dir == "" {
		return
	}

	raw, err := json.Marshal(value)
	if err != nil {
		d.logger.Debug("Failed to marshal value for disk cache", "key", key, "error", err)
		return
	}
	now := time.Now()
	if err := d.save(key, diskEntry{Value: raw, Expiration: now.Add(ttl), CachedAt: now}); err != nil {
		d.logger.Debug("Failed to save to disk cache", "key", key, "error", err)
	}
}

// Prune removes cache files last written before cutoff and returns how many were removed.
func (d *Disk[V]) Prune(cutoff time.Time) int {
	if d.dir == "" {
		return 0
	}
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		d.logger.Error("Failed to read cache directory", "error", err)
		return 0
	}
	removed := 0
	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") {
			continue
		}
		info, err := de.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(d.dir, de.Name())
		if err := os.Remove(path); err != nil {
			d.logger.Debug("Failed to remove old cache file", "path", path, "error", err)
			continue
		}
		removed++
	}
	return removed
}

func (d *Disk[V]) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(d.dir, hex.EncodeToString(sum[:])+".json")
}

func (d *Disk[V]) load(key string, v any) bool {
	path := d.path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			d.logger.Debug("Failed to read disk cache file", "error", err, "path", path)
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		d.logger.Debug("Failed to decode disk cache file", "error", err, "path", path)
		return false
	}
	return true
}

// save writes atomically via a uniquely named temp file and rename, so that
// concurrent writers of one key never share a temp file.
func (d *Disk[V]) save(key string, v any) error {
	path := d.path(key)

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding cache data: %w", err)
	}
	f, err := os.CreateTemp(d.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating cache file: %w", err)
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming cache file: %w", err)
	}
	return nil
}

func (d *Disk[V]) remove(key string) {
	path := d.path(key)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		d.logger.Debug("Failed to remove disk cache file", "error", err, "path", path)
	}
}
