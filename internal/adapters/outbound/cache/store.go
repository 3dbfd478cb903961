// Package cache keeps detection results for unchanged scripts. Entries live
// in memory for the life of the process and, when a directory is given, on
// disk as one zstd-compressed file per key.
package cache

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zstd"

	"github.com/pyfreeze/pyfreeze/internal/domain"
)

const (
	entryExt = ".entry"
	tmpGlob  = ".tmp-*"
	// keyPrefixLen is how many hex digits of each hash go into a file name.
	keyPrefixLen = 16
)

var magic = []byte(fmt.Sprintf("pyfreeze-cache v%d\n", domain.CacheFormatVersion))

type Options struct {
	// MaxAge makes older entries invisible to Lookup. Zero keeps them forever.
	MaxAge time.Duration
	Logger *log.Logger
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// Store implements domain.ResultCache.
type Store struct {
	dir    string
	maxAge time.Duration
	logger *log.Logger
	now    func() time.Time

	enc *zstd.Encoder
	dec *zstd.Decoder

	mu     sync.Mutex
	memory map[domain.CacheKey]*domain.CacheEntry
	locks  keyLocks

	hits, misses, stores, corrupt atomic.Int64
}

// Open creates a cache rooted at dir. An empty dir keeps entries in memory
// only. A directory that cannot be created is logged and the cache falls
// back to memory.
func Open(dir string, opts Options) (*Store, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}

	s := &Store{
		dir:    dir,
		maxAge: opts.MaxAge,
		logger: opts.Logger,
		now:    opts.Now,
		enc:    enc,
		dec:    dec,
		memory: make(map[domain.CacheKey]*domain.CacheEntry),
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard)
	}
	if s.now == nil {
		s.now = time.Now
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			s.logger.Warn("cache directory unavailable, using memory only", "dir", dir, "error", err)
			s.dir = ""
		}
	}
	return s, nil
}

// Close releases the compression codecs. The store must not be used afterwards.
func (s *Store) Close() error {
	s.dec.Close()
	return s.enc.Close()
}

func (s *Store) Dir() string { return s.dir }

// Lookup returns a copy of the cached result for the script when both its
// content hash and modification time still match. Any failure is a miss.
func (s *Store) Lookup(scriptPath string) (*domain.DetectionResult, bool) {
	fp, err := fingerprintFile(scriptPath)
	if err != nil {
		s.logger.Debug("cache lookup skipped", "script", scriptPath, "error", err)
		s.misses.Add(1)
		return nil, false
	}

	unlock := s.locks.lock(fp.key)
	defer unlock()

	entry := s.memoryGet(fp.key)
	if entry == nil && s.dir != "" {
		entry, err = s.readEntry(s.entryPath(fp.key))
		var corrupt *domain.CacheCorruptionError
		switch {
		case errors.As(err, &corrupt):
			s.corrupt.Add(1)
			s.logger.Warn("discarding cache entry", "script", scriptPath, "error", err)
			entry = nil
		case err != nil && !errors.Is(err, os.ErrNotExist):
			s.logger.Debug("cache read failed", "script", scriptPath, "error", err)
			entry = nil
		}
		if entry != nil {
			s.memoryPut(entry)
		}
	}

	if entry == nil || entry.PathHash != fp.key.PathHash || !entry.Matches(fp.key.ContentHash, fp.mtime) ||
		entry.Expired(s.now(), s.maxAge) {
		s.misses.Add(1)
		return nil, false
	}

	result, err := cloneResult(entry.Result)
	if err != nil {
		s.corrupt.Add(1)
		s.logger.Warn("discarding cache entry", "script", scriptPath, "error", err)
		s.misses.Add(1)
		return nil, false
	}
	result.CacheHit = true
	result.DetectionTimeSeconds = 0
	s.hits.Add(1)
	return result, true
}

// Store records result under the script's current content hash. A result
// whose ContentHash no longer matches the file is not stored. Disk failures
// are returned after the memory layer has been updated.
func (s *Store) Store(scriptPath string, result *domain.DetectionResult) error {
	fp, err := fingerprintFile(scriptPath)
	if err != nil {
		return fmt.Errorf("fingerprinting %s: %w", scriptPath, err)
	}
	if result.ContentHash != "" && result.ContentHash != fp.key.ContentHash {
		s.logger.Debug("script changed during detection, not caching", "script", scriptPath)
		return nil
	}

	stored, err := cloneResult(result)
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	stored.CacheHit = false

	entry := &domain.CacheEntry{
		Version:     domain.CacheFormatVersion,
		PathHash:    fp.key.PathHash,
		ContentHash: fp.key.ContentHash,
		Result:      stored,
		CreatedAt:   s.now().UTC(),
		SourceMTime: fp.mtime,
	}

	unlock := s.locks.lock(fp.key)
	defer unlock()

	s.memoryReplace(entry)
	s.stores.Add(1)
	if s.dir == "" {
		return nil
	}
	if err := s.writeEntry(entry); err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	s.removeStale(entry.Key())
	return nil
}

// Clear drops every entry from memory and disk.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.memory = make(map[domain.CacheKey]*domain.CacheEntry)
	s.mu.Unlock()

	if s.dir == "" {
		return nil
	}
	files, err := s.diskFiles()
	if err != nil {
		return err
	}
	var errs []error
	for _, f := range files {
		if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Prune removes entries created more than maxAge ago, and unreadable entry
// files, returning how many were removed.
func (s *Store) Prune(maxAge time.Duration) (int, error) {
	now := s.now()
	removed := 0

	s.mu.Lock()
	for k, e := range s.memory {
		if e.Expired(now, maxAge) {
			delete(s.memory, k)
			if s.dir == "" {
				removed++
			}
		}
	}
	s.mu.Unlock()

	if s.dir == "" {
		return removed, nil
	}

	paths, err := filepath.Glob(filepath.Join(s.dir, "*"+entryExt))
	if err != nil {
		return removed, err
	}
	var errs []error
	for _, p := range paths {
		entry, err := s.readEntry(p)
		if err == nil && !entry.Expired(now, maxAge) {
			continue
		}
		if rmErr := os.Remove(p); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			errs = append(errs, rmErr)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func (s *Store) Stats() domain.CacheStats {
	s.mu.Lock()
	memEntries := len(s.memory)
	s.mu.Unlock()

	st := domain.CacheStats{
		Hits:          s.hits.Load(),
		Misses:        s.misses.Load(),
		Stores:        s.stores.Load(),
		Corrupt:       s.corrupt.Load(),
		MemoryEntries: memEntries,
		Dir:           s.dir,
	}
	if s.dir == "" {
		return st
	}
	paths, _ := filepath.Glob(filepath.Join(s.dir, "*"+entryExt))
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil {
			st.DiskEntries++
			st.DiskBytes += info.Size()
		}
	}
	return st
}

func (s *Store) memoryGet(k domain.CacheKey) *domain.CacheEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memory[k]
}

func (s *Store) memoryPut(e *domain.CacheEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memory[e.Key()] = e
}

// memoryReplace stores e and forgets other entries for the same script.
func (s *Store) memoryReplace(e *domain.CacheEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.memory {
		if k.PathHash == e.PathHash {
			delete(s.memory, k)
		}
	}
	s.memory[e.Key()] = e
}

func (s *Store) entryPath(k domain.CacheKey) string {
	return filepath.Join(s.dir, fileStem(k.PathHash)+"-"+fileStem(k.ContentHash)+entryExt)
}

func (s *Store) readEntry(path string) (*domain.CacheEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	header, err := r.ReadBytes('\n')
	if err != nil || !bytes.Equal(header, magic) {
		return nil, &domain.CacheCorruptionError{Path: path, Err: errors.New("unrecognized header")}
	}
	compressed, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	raw, err := s.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, &domain.CacheCorruptionError{Path: path, Err: fmt.Errorf("decompressing: %w", err)}
	}
	var entry domain.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, &domain.CacheCorruptionError{Path: path, Err: fmt.Errorf("decoding: %w", err)}
	}
	if entry.Version != domain.CacheFormatVersion || entry.Result == nil {
		return nil, &domain.CacheCorruptionError{Path: path, Err: fmt.Errorf("unsupported entry version %d", entry.Version)}
	}
	return &entry, nil
}

// writeEntry writes to a temporary file and renames it into place so readers
// never observe a partial entry.
func (s *Store) writeEntry(e *domain.CacheEntry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, tmpGlob)
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(magic); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(s.enc.EncodeAll(raw, nil)); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.entryPath(e.Key()))
}

// removeStale deletes on-disk entries for the same script with other content.
func (s *Store) removeStale(current domain.CacheKey) {
	keep := s.entryPath(current)
	paths, err := filepath.Glob(filepath.Join(s.dir, fileStem(current.PathHash)+"-*"+entryExt))
	if err != nil {
		return
	}
	for _, p := range paths {
		if p == keep {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Debug("removing stale cache entry", "path", p, "error", err)
		}
	}
}

func (s *Store) diskFiles() ([]string, error) {
	entries, err := filepath.Glob(filepath.Join(s.dir, "*"+entryExt))
	if err != nil {
		return nil, err
	}
	temps, err := filepath.Glob(filepath.Join(s.dir, tmpGlob))
	if err != nil {
		return nil, err
	}
	return append(entries, temps...), nil
}

type fingerprint struct {
	key   domain.CacheKey
	mtime time.Time
}

func fingerprintFile(scriptPath string) (fingerprint, error) {
	abs, err := filepath.Abs(scriptPath)
	if err != nil {
		return fingerprint{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fingerprint{}, err
	}
	if !info.Mode().IsRegular() {
		return fingerprint{}, fmt.Errorf("%s is not a regular file", abs)
	}
	src, err := os.ReadFile(abs)
	if err != nil {
		return fingerprint{}, err
	}
	return fingerprint{
		key: domain.CacheKey{
			PathHash:    domain.HashContent([]byte(abs)),
			ContentHash: domain.HashContent(src),
		},
		mtime: info.ModTime().UTC(),
	}, nil
}

func cloneResult(r *domain.DetectionResult) (*domain.DetectionResult, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	var out domain.DetectionResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func fileStem(hash string) string {
	if len(hash) > keyPrefixLen {
		hash = hash[:keyPrefixLen]
	}
	return strings.ToLower(hash)
}

// keyLocks hands out one mutex per cache key, dropping it when unused.
type keyLocks struct {
	mu sync.Mutex
	m  map[domain.CacheKey]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func (l *keyLocks) lock(k domain.CacheKey) (unlock func()) {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[domain.CacheKey]*keyLock)
	}
	kl, ok := l.m[k]
	if !ok {
		kl = &keyLock{}
		l.m[k] = kl
	}
	kl.refs++
	l.mu.Unlock()

	kl.mu.Lock()
	return func() {
		kl.mu.Unlock()
		l.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(l.m, k)
		}
		l.mu.Unlock()
	}
}
