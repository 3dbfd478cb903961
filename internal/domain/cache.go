package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// CacheFormatVersion is bumped whenever the persisted entry layout changes.
// Entries written with another version are discarded.
const CacheFormatVersion = 1

// CacheEntry is keyed by (PathHash, ContentHash).
type CacheEntry struct {
	Version     int              `json:"version"`
	PathHash    string           `json:"path_hash"`
	ContentHash string           `json:"content_hash"`
	Result      *DetectionResult `json:"result"`
	CreatedAt   time.Time        `json:"created_at"`
	SourceMTime time.Time        `json:"source_mtime"`
}

// Key returns the identity used for locking and file naming.
func (e *CacheEntry) Key() CacheKey {
	return CacheKey{PathHash: e.PathHash, ContentHash: e.ContentHash}
}

// Matches reports whether the entry still describes the file as observed now.
func (e *CacheEntry) Matches(contentHash string, mtime time.Time) bool {
	return e.Version == CacheFormatVersion &&
		e.ContentHash == contentHash &&
		e.SourceMTime.Equal(mtime)
}

// Expired reports whether the entry is older than maxAge. A zero maxAge never expires.
func (e *CacheEntry) Expired(now time.Time, maxAge time.Duration) bool {
	return maxAge > 0 && now.Sub(e.CreatedAt) > maxAge
}

type CacheKey struct {
	PathHash    string
	ContentHash string
}

// CacheStats summarizes cache activity for the current process.
type CacheStats struct {
	Hits          int64  `json:"hits"`
	Misses        int64  `json:"misses"`
	Stores        int64  `json:"stores"`
	Corrupt       int64  `json:"corrupt"`
	MemoryEntries int    `json:"memory_entries"`
	DiskEntries   int    `json:"disk_entries"`
	DiskBytes     int64  `json:"disk_bytes"`
	Dir           string `json:"dir"`
}

// HashContent returns the hex SHA-256 used as the content half of a cache key.
func HashContent(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
