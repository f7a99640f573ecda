package purge

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/klppl/fedif/internal/config"
	"github.com/klppl/fedif/internal/flatstore"
)

func TestUserPrunesPrivateCache(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "user", "alice"), 0700))

	srv := &config.Server{BaseDir: base, TimelinePurgeDays: 1, LocalPurgeDays: 0}
	objects := flatstore.NewObjectStore(base)
	cache := flatstore.NewUserCache(objects, filepath.Join(base, "user", "alice"))

	id := "https://example.com/note/1"
	_, err := objects.Put(id, map[string]interface{}{"id": id, "type": "Note"}, false)
	require.NoError(t, err)
	require.NoError(t, cache.Add(id, flatstore.CachePrivate))

	old := time.Now().Add(-48 * time.Hour)
	privatePath := filepath.Join(base, "user", "alice", "private", flatstore.MD5(id)+".json")
	require.NoError(t, os.Chtimes(privatePath, old, old))

	require.NoError(t, User(srv, objects, "alice"))

	in, err := cache.In(id, flatstore.CachePrivate)
	require.NoError(t, err)
	require.False(t, in)
}

func TestUserSkipsWhenPurgeDaysZero(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "user", "alice"), 0700))

	srv := &config.Server{BaseDir: base, TimelinePurgeDays: 0, LocalPurgeDays: 0}
	objects := flatstore.NewObjectStore(base)
	cache := flatstore.NewUserCache(objects, filepath.Join(base, "user", "alice"))

	id := "https://example.com/note/2"
	_, err := objects.Put(id, map[string]interface{}{"id": id, "type": "Note"}, false)
	require.NoError(t, err)
	require.NoError(t, cache.Add(id, flatstore.CachePrivate))

	old := time.Now().Add(-48 * time.Hour)
	privatePath := filepath.Join(base, "user", "alice", "private", flatstore.MD5(id)+".json")
	require.NoError(t, os.Chtimes(privatePath, old, old))

	require.NoError(t, User(srv, objects, "alice"))

	in, err := cache.In(id, flatstore.CachePrivate)
	require.NoError(t, err)
	require.True(t, in, "a 0 purge window means never purge")
}

func TestServerReclaimsUnreferencedObjects(t *testing.T) {
	base := t.TempDir()
	srv := &config.Server{BaseDir: base, TimelinePurgeDays: 1}
	objects := flatstore.NewObjectStore(base)

	id := "https://example.com/note/orphan"
	_, err := objects.Put(id, map[string]interface{}{"id": id, "type": "Note"}, false)
	require.NoError(t, err)

	md5hex := flatstore.MD5(id)
	shard := md5hex[:2]
	path := filepath.Join(base, "object", shard, md5hex+".json")
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	require.NoError(t, Server(srv, objects))

	_, status, err := objects.Get(id, "")
	require.NoError(t, err)
	require.Equal(t, flatstore.StatusNotFound, status)
}

func TestServerKeepsReferencedObjects(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "user", "alice"), 0700))
	srv := &config.Server{BaseDir: base, TimelinePurgeDays: 1}
	objects := flatstore.NewObjectStore(base)
	cache := flatstore.NewUserCache(objects, filepath.Join(base, "user", "alice"))

	id := "https://example.com/note/referenced"
	_, err := objects.Put(id, map[string]interface{}{"id": id, "type": "Note"}, false)
	require.NoError(t, err)
	require.NoError(t, cache.Add(id, flatstore.CachePublic))

	md5hex := flatstore.MD5(id)
	shard := md5hex[:2]
	path := filepath.Join(base, "object", shard, md5hex+".json")
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	require.NoError(t, Server(srv, objects))

	_, status, err := objects.Get(id, "")
	require.NoError(t, err)
	require.Equal(t, 200, status)
}
