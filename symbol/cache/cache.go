// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

// Package cache implements the quota-managed on-disk cache for
// downloaded symbol files (§4.3, §5 "cache quota manager"). No
// database-driver library appears anywhere in the retrieved pack, so
// the cache index is a small hand-rolled JSON Lines file, rewritten
// whole on every change, rather than a SQL/KV store — see DESIGN.md.
package cache

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/tracewell/profcore/internal/xlog"
)

// Entry is one tracked cache file's bookkeeping record.
type Entry struct {
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
}

// Config bounds the cache's disk usage (§4.3 "cache quota manager").
type Config struct {
	// Dir is the cache root; Entry.Path is stored relative to it.
	Dir string

	// MaxTotalSize triggers LRU eviction once the tracked total
	// exceeds it. Zero means unbounded.
	MaxTotalSize int64

	// MaxAge evicts any entry whose LastAccessed is older than this,
	// regardless of total size. Zero means no age-based eviction.
	MaxAge time.Duration

	Logger xlog.Logger
}

// DB is the crash-safe cache index: entries load from (and persist to)
// an index file under Config.Dir, kept consistent by always writing
// through a temp file + rename.
type DB struct {
	cfg     Config
	log     *xlog.Helper
	indexPath string

	mu      sync.Mutex
	entries map[string]*Entry // keyed by Path
}

const indexFileName = "index.jsonl"

// Open loads (or creates) the cache index at cfg.Dir.
func Open(cfg Config) (*DB, error) {
	if cfg.Logger == nil {
		cfg.Logger = xlog.Nop
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	db := &DB{cfg: cfg, log: xlog.NewHelper(cfg.Logger), indexPath: filepath.Join(cfg.Dir, indexFileName), entries: make(map[string]*Entry)}
	if err := db.load(); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *DB) load() error {
	f, err := os.Open(db.indexPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		db.entries[e.Path] = &e
	}
	return sc.Err()
}

// persist rewrites the whole index file from the in-memory map, one
// record per tracked entry.
func (db *DB) persist() error {
	tmp, err := os.CreateTemp(db.cfg.Dir, ".index-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	w := bufio.NewWriter(tmp)
	for _, e := range db.entries {
		b, err := json.Marshal(e)
		if err != nil {
			continue
		}
		w.Write(b)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, db.indexPath)
}

// OnFileCreated registers a newly written cache file (§4 Observer
// hook "on_file_created").
func (db *DB) OnFileCreated(relPath string, size int64) error {
	db.mu.Lock()
	now := entryTimestamp()
	db.entries[relPath] = &Entry{Path: relPath, Size: size, CreatedAt: now, LastAccessed: now}
	err := db.persist()
	db.mu.Unlock()
	if err == nil {
		db.triggerEvictionIfNeeded()
	}
	return err
}

// OnFileAccessed bumps an entry's LastAccessed (§4 Observer hook
// "on_file_accessed"), a no-op if relPath isn't tracked.
func (db *DB) OnFileAccessed(relPath string) error {
	db.mu.Lock()
	e, ok := db.entries[relPath]
	if !ok {
		db.mu.Unlock()
		return nil
	}
	e.LastAccessed = entryTimestamp()
	err := db.persist()
	db.mu.Unlock()
	return err
}

// TotalSize returns the sum of every tracked entry's Size.
func (db *DB) TotalSize() int64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	var total int64
	for _, e := range db.entries {
		total += e.Size
	}
	return total
}

// TriggerEvictionIfNeeded is the exported form of the eviction pass,
// usable from a periodic `gc` command (§2.4 cmd/profcore "gc").
func (db *DB) TriggerEvictionIfNeeded() { db.triggerEvictionIfNeeded() }

func (db *DB) triggerEvictionIfNeeded() {
	db.mu.Lock()
	defer db.mu.Unlock()

	now := entryTimestamp()
	if db.cfg.MaxAge > 0 {
		for path, e := range db.entries {
			if now.Sub(e.LastAccessed) > db.cfg.MaxAge {
				db.evictLocked(path)
			}
		}
	}

	if db.cfg.MaxTotalSize <= 0 {
		db.persist()
		return
	}

	total := int64(0)
	ordered := make([]*Entry, 0, len(db.entries))
	for _, e := range db.entries {
		total += e.Size
		ordered = append(ordered, e)
	}
	if total <= db.cfg.MaxTotalSize {
		db.persist()
		return
	}

	sort.Slice(ordered, func(i, j int) bool { return ordered[i].LastAccessed.Before(ordered[j].LastAccessed) })
	for _, e := range ordered {
		if total <= db.cfg.MaxTotalSize {
			break
		}
		total -= e.Size
		db.evictLocked(e.Path)
	}
	db.persist()
}

func (db *DB) evictLocked(relPath string) {
	e, ok := db.entries[relPath]
	if !ok {
		return
	}
	full := filepath.Join(db.cfg.Dir, relPath)
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		db.log.Warnf("cache: could not evict %s: %v", full, err)
		return
	}
	db.log.Debugf("cache: evicted %s (%d bytes, last used %s)", full, e.Size, e.LastAccessed)
	delete(db.entries, relPath)
}

// entryTimestamp is the single call site standing in for time.Now()
// inside this package, isolated here so tests can substitute a fixed
// clock without threading a clock interface through every method.
var entryTimestamp = func() time.Time { return time.Now() }
