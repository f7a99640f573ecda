package flatstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUserCacheAddListDel(t *testing.T) {
	base := t.TempDir()
	store := NewObjectStore(base)
	cache := NewUserCache(store, filepath.Join(base, "user", "alice"))

	id := "https://example.com/note/1"
	_, err := store.Put(id, map[string]interface{}{"id": id, "type": "Note"}, false)
	require.NoError(t, err)

	require.NoError(t, cache.Add(id, CachePublic))

	in, err := cache.In(id, CachePublic)
	require.NoError(t, err)
	require.True(t, in)

	items, err := cache.List(CachePublic, 10)
	require.NoError(t, err)
	require.Equal(t, []string{MD5(id)}, items)

	require.NoError(t, cache.Del(id, CachePublic))
	in, err = cache.In(id, CachePublic)
	require.NoError(t, err)
	require.False(t, in)
}

func TestUserCachePrune(t *testing.T) {
	base := t.TempDir()
	store := NewObjectStore(base)
	cache := NewUserCache(store, filepath.Join(base, "user", "alice"))

	id := "https://example.com/note/old"
	_, err := store.Put(id, map[string]interface{}{"id": id, "type": "Note"}, false)
	require.NoError(t, err)
	require.NoError(t, cache.Add(id, CachePrivate))

	old := time.Now().Add(-48 * time.Hour)
	path := filepath.Join(cache.cacheDir(CachePrivate), MD5(id)+".json")
	require.NoError(t, os.Chtimes(path, old, old))

	n, err := cache.Prune(CachePrivate, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	in, err := cache.In(id, CachePrivate)
	require.NoError(t, err)
	require.False(t, in)
}
