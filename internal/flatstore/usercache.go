package flatstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Cache names spec.md §3 and §4.3 define as UserCache projections.
const (
	CachePrivate   = "private"
	CachePublic    = "public"
	CacheFollowers = "followers"
)

// UserCache projects a subset of the ObjectStore into a single user's
// directory via hardlinks, the way data.c's timeline_add/timeline_del do.
// Each projection is a directory of hardlinked {md5}.json files plus a flat
// md5 index ({cache}.idx) recording insertion order.
type UserCache struct {
	store  *ObjectStore
	userDir string
}

// NewUserCache returns a cache rooted at the given user directory, backed
// by store for canonical object lookups.
func NewUserCache(store *ObjectStore, userDir string) *UserCache {
	return &UserCache{store: store, userDir: userDir}
}

func (c *UserCache) cacheDir(cache string) string {
	return filepath.Join(c.userDir, cache)
}

func (c *UserCache) cacheIndexPath(cache string) string {
	return filepath.Join(c.userDir, cache+".idx")
}

func (c *UserCache) index(cache string) *Index {
	return NewIndex(c.cacheIndexPath(cache))
}

// objectPath duplicates ObjectStore's path layout; UserCache needs it
// directly to create the hardlink (spec.md §4.3: "hardlink canonical file
// into {user}/{cache}/{md5}.json").
func (c *UserCache) objectPath(md5hex string) string {
	return c.store.objectPath(md5hex)
}

// Add hardlinks the canonical object file keyed by id into
// {user}/{cache}/{md5}.json and appends the md5 to the cache index.
func (c *UserCache) Add(id, cache string) error {
	md5hex := MD5(id)
	src := c.objectPath(md5hex)
	dstDir := c.cacheDir(cache)
	dst := filepath.Join(dstDir, md5hex+".json")

	if err := os.MkdirAll(dstDir, 0700); err != nil {
		return fmt.Errorf("mkdir %s: %w", dstDir, err)
	}

	if !fileExists(dst) {
		if err := os.Link(src, dst); err != nil {
			return fmt.Errorf("hardlink %s -> %s: %w", src, dst, err)
		}
	}

	return c.index(cache).Add(md5hex)
}

// Del unlinks the hardlink and removes the md5 from the cache index.
func (c *UserCache) Del(id, cache string) error {
	md5hex := MD5(id)
	dst := filepath.Join(c.cacheDir(cache), md5hex+".json")
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("unlink %s: %w", dst, err)
	}
	return c.index(cache).Del(md5hex)
}

// In reports whether id is present (by hardlink) in cache.
func (c *UserCache) In(id, cache string) (bool, error) {
	return c.index(cache).In(MD5(id))
}

// List returns up to max entries from cache, most recent first.
func (c *UserCache) List(cache string, max int) ([]string, error) {
	return c.index(cache).ListDesc(0, max)
}

// Prune unlinks every hardlink in cache older than cutoff and removes its
// md5 from the cache index, matching original_source/data.c's
// _purge_subdir (per-cache, age-based, never touching the canonical
// object — only the projection).
func (c *UserCache) Prune(cache string, cutoff time.Time) (int, error) {
	dir := c.cacheDir(cache)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read cache dir %s: %w", dir, err)
	}

	idx := c.index(cache)
	purged := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		md5hex := strings.TrimSuffix(name, ".json")
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			return purged, fmt.Errorf("unlink %s: %w", name, err)
		}
		if err := idx.Del(md5hex); err != nil {
			return purged, fmt.Errorf("remove %s from %s index: %w", md5hex, cache, err)
		}
		purged++
	}
	return purged, nil
}

// Get reads the object for md5hex through the ObjectStore (used by HTTPD's
// outbox handler on md5s listed from a cache). The cache argument is not
// consulted, so an object not projected into cache is still returned; a
// missing object yields nil, nil.
func (c *UserCache) Get(md5hex, cache string) (map[string]interface{}, error) {
	obj, status, err := c.store.GetByMD5(md5hex, "")
	if err != nil {
		return nil, err
	}
	if status != 200 {
		return nil, nil
	}
	return obj, nil
}
