// Package cache implements the two-tier translation cache: an in-memory
// LRU in front of a SQLite file, both keyed by content hashes. Entries
// written under the older context-free key scheme are migrated to the
// context-aware one on first hit.
package cache

import (
	"crypto/md5"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// Cache is a thread-safe, two-tier translation cache. Reads probe the
// in-memory LRU first, then the SQLite disk tier (repopulating memory on a
// disk hit); writes go through to both tiers.
type Cache struct {
	db   *sql.DB
	mem  *lru
	mu   sync.RWMutex
	path string

	memHits, memMisses   int64
	diskHits, diskMisses int64
}

// Entry is one row of the disk tier, returned by introspection calls.
type Entry struct {
	Hash           string
	OriginalText   string
	TranslatedText string
	SourceLang     string
	TargetLang     string
	Backend        string
}

// Stats summarizes cache effectiveness across both tiers.
type Stats struct {
	MemoryHits     int64
	MemoryMisses   int64
	DiskHits       int64
	DiskMisses     int64
	TotalEntries   int
	OverallHitRate float64
}

// Open creates or attaches to the SQLite-backed cache at dbPath, sizing the
// memory tier's capacity from the RAM bucket the caller reports (in GiB).
func Open(dbPath string, ramGiB float64) (*Cache, error) {
	if dbPath == "" {
		dbPath = "subtran_cache.db"
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	c := &Cache{
		db:   db,
		mem:  newLRU(capacityForRAM(ramGiB)),
		path: dbPath,
	}

	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}
	return c, nil
}

func (c *Cache) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cache (
		hash TEXT PRIMARY KEY,
		original_text TEXT NOT NULL,
		translated_text TEXT NOT NULL,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		backend TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_used DATETIME DEFAULT CURRENT_TIMESTAMP,
		use_count INTEGER DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_cache_hash ON cache(hash);
	CREATE INDEX IF NOT EXISTS idx_cache_lang_pair ON cache(source_lang, target_lang);
	CREATE INDEX IF NOT EXISTS idx_cache_last_used ON cache(last_used);
	`
	_, err := c.db.Exec(schema)
	return err
}

var reWhitespace = regexp.MustCompile(`\s+`)

func collapseWhitespace(s string) string {
	return strings.TrimSpace(reWhitespace.ReplaceAllString(s, " "))
}

// hashV1 is md5(lowercase-collapsed-whitespace(text) + "|" + src + "|" + tgt).
func hashV1(text, src, tgt string) string {
	normalized := strings.ToLower(collapseWhitespace(text))
	sum := md5.Sum([]byte(normalized + "|" + src + "|" + tgt))
	return fmt.Sprintf("%x", sum)
}

// hashV2 is md5(lower(text) + "|" + lower(prev) + "|" + lower(next) + "|" +
// src + "|" + tgt + "|v2"), making the key sensitive to surrounding context.
func hashV2(text, prev, next, src, tgt string) string {
	raw := strings.ToLower(text) + "|" + strings.ToLower(prev) + "|" + strings.ToLower(next) + "|" + src + "|" + tgt + "|v2"
	sum := md5.Sum([]byte(raw))
	return fmt.Sprintf("%x", sum)
}

// Get probes v2 first (context-aware), falling back to v1. A v1 hit is
// synchronously promoted into v2 under the v2 key with backend tag
// "v1_promoted" before being returned. Memory is checked before disk, and a
// disk hit repopulates memory.
func (c *Cache) Get(text, src, tgt, prev, next string) (string, bool) {
	v2 := hashV2(text, prev, next, src, tgt)
	v1 := hashV1(text, src, tgt)

	c.mu.Lock()
	defer c.mu.Unlock()

	if translated, ok := c.mem.get(v2); ok {
		c.memHits++
		return translated, true
	}
	if translated, ok := c.mem.get(v1); ok {
		c.memHits++
		c.promoteToV2(v1, v2, text, src, tgt, translated)
		c.mem.put(v2, translated)
		return translated, true
	}
	c.memMisses++

	if translated, ok := c.diskLookup(v2); ok {
		c.diskHits++
		c.touchDisk(v2)
		c.mem.put(v2, translated)
		return translated, true
	}

	if translated, ok := c.diskLookup(v1); ok {
		c.diskHits++
		c.touchDisk(v1)
		c.promoteToV2(v1, v2, text, src, tgt, translated)
		c.mem.put(v2, translated)
		return translated, true
	}

	c.diskMisses++
	return "", false
}

func (c *Cache) diskLookup(hash string) (string, bool) {
	var translated string
	err := c.db.QueryRow(`SELECT translated_text FROM cache WHERE hash = ?`, hash).Scan(&translated)
	if err != nil {
		return "", false
	}
	return translated, true
}

func (c *Cache) touchDisk(hash string) {
	c.db.Exec(`UPDATE cache SET last_used = CURRENT_TIMESTAMP, use_count = use_count + 1 WHERE hash = ?`, hash)
}

func (c *Cache) promoteToV2(v1, v2, text, src, tgt, translated string) {
	c.db.Exec(`
		INSERT INTO cache (hash, original_text, translated_text, source_lang, target_lang, backend)
		VALUES (?, ?, ?, ?, ?, 'v1_promoted')
		ON CONFLICT(hash) DO NOTHING
	`, v2, text, translated, src, tgt)
}

// Set writes a translation through to both tiers. It refuses empty strings,
// normalized text shorter than 3 characters, and original == translated
// (case-insensitive): such entries are always noise.
func (c *Cache) Set(text, translated, src, tgt, backend, prev, next string) error {
	if text == "" || translated == "" {
		return fmt.Errorf("cache: refusing empty text or translation")
	}
	normalized := collapseWhitespace(text)
	if len(normalized) < 3 {
		return fmt.Errorf("cache: refusing text shorter than 3 characters")
	}
	if strings.EqualFold(strings.TrimSpace(text), strings.TrimSpace(translated)) {
		return fmt.Errorf("cache: refusing entry where original equals translated")
	}

	v1 := hashV1(text, src, tgt)
	v2 := hashV2(text, prev, next, src, tgt)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.upsertDisk(v1, text, translated, src, tgt, backend); err != nil {
		return err
	}
	c.mem.put(v1, translated)

	if v2 != v1 {
		if err := c.upsertDisk(v2, text, translated, src, tgt, backend); err != nil {
			return err
		}
		c.mem.put(v2, translated)
	}
	return nil
}

func (c *Cache) upsertDisk(hash, text, translated, src, tgt, backend string) error {
	_, err := c.db.Exec(`
		INSERT INTO cache (hash, original_text, translated_text, source_lang, target_lang, backend)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO UPDATE SET
			translated_text = excluded.translated_text,
			last_used = CURRENT_TIMESTAMP,
			use_count = cache.use_count + 1
	`, hash, text, translated, src, tgt, backend)
	if err != nil {
		return fmt.Errorf("cache: failed to write entry: %w", err)
	}
	return nil
}

// CleanupOld removes disk entries created before the cutoff.
func (c *Cache) CleanupOld(days int) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	result, err := c.db.Exec(`DELETE FROM cache WHERE created_at < datetime('now', '-' || ? || ' days')`, days)
	if err != nil {
		return 0, fmt.Errorf("cache: failed to clean old entries: %w", err)
	}
	return result.RowsAffected()
}

// CleanupBad defensively removes any disk entry whose original and
// translated text normalize equal (should never happen given Set's
// invariant, but disk state may predate it or be hand-edited).
func (c *Cache) CleanupBad() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	result, err := c.db.Exec(`
		DELETE FROM cache
		WHERE LOWER(TRIM(original_text)) = LOWER(TRIM(translated_text))
	`)
	if err != nil {
		return 0, fmt.Errorf("cache: failed to clean bad entries: %w", err)
	}
	return result.RowsAffected()
}

// ClearMemory empties the memory tier only.
func (c *Cache) ClearMemory() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mem.clear()
}

// ClearAll empties both tiers and reclaims disk space.
func (c *Cache) ClearAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.mem.clear()
	if _, err := c.db.Exec("DELETE FROM cache"); err != nil {
		return fmt.Errorf("cache: failed to clear: %w", err)
	}
	_, err := c.db.Exec("VACUUM")
	return err
}

// Stats reports hit/miss counters for both tiers plus total disk rows.
func (c *Cache) Stats() (*Stats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var total int
	if err := c.db.QueryRow("SELECT COUNT(*) FROM cache").Scan(&total); err != nil {
		return nil, fmt.Errorf("cache: failed to count entries: %w", err)
	}

	totalLookups := c.memHits + c.memMisses
	hitRate := 0.0
	if totalLookups > 0 {
		hitRate = float64(c.memHits+c.diskHits) / float64(totalLookups) * 100
	}

	return &Stats{
		MemoryHits:     c.memHits,
		MemoryMisses:   c.memMisses,
		DiskHits:       c.diskHits,
		DiskMisses:     c.diskMisses,
		TotalEntries:   total,
		OverallHitRate: hitRate,
	}, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
