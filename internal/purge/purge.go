// Package purge implements the retention sweep from spec.md §4.13,
// grounded on original_source/data.c's purge_server/purge_user/purge_all:
// age out cached projections per-user, then reclaim any canonical object
// that has gone unreferenced and aged past the timeline retention window.
package purge

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/klppl/fedif/internal/config"
	"github.com/klppl/fedif/internal/flatstore"
)

// All runs the full sweep: per-user cache pruning, then the global
// object-store reclaim. Matches original_source/data.c's purge_all, which
// purges every user before the server-wide pass.
func All(srv *config.Server, objects *flatstore.ObjectStore) error {
	uids, err := config.ListUsers(srv.BaseDir)
	if err != nil {
		return fmt.Errorf("purge: list users: %w", err)
	}

	for _, uid := range uids {
		if err := User(srv, objects, uid); err != nil {
			slog.Error("purge: user sweep failed", "uid", uid, "error", err)
		}
	}

	return Server(srv, objects)
}

// User prunes one account's cache projections: the private timeline ages
// out after timeline_purge_days, the public outbox (locally authored)
// ages out after local_purge_days — a 0 value means keep forever, matching
// _purge_subdir's "if (days)" guard.
func User(srv *config.Server, objects *flatstore.ObjectStore, uid string) error {
	dir := config.UserDir(srv.BaseDir, uid)
	cache := flatstore.NewUserCache(objects, dir)

	if srv.TimelinePurgeDays > 0 {
		cutoff := time.Now().Add(-time.Duration(srv.TimelinePurgeDays) * 24 * time.Hour)
		n, err := cache.Prune(flatstore.CachePrivate, cutoff)
		if err != nil {
			return fmt.Errorf("purge: prune private cache for %s: %w", uid, err)
		}
		if n > 0 {
			slog.Info("purge: pruned private cache entries", "uid", uid, "count", n)
		}
	}

	if srv.LocalPurgeDays > 0 {
		cutoff := time.Now().Add(-time.Duration(srv.LocalPurgeDays) * 24 * time.Hour)
		n, err := cache.Prune(flatstore.CachePublic, cutoff)
		if err != nil {
			return fmt.Errorf("purge: prune public cache for %s: %w", uid, err)
		}
		if n > 0 {
			slog.Info("purge: pruned public cache entries", "uid", uid, "count", n)
		}
	}

	return nil
}

// Server walks every {basedir}/object/{dd}/*.json file and deletes any
// whose mtime is older than timeline_purge_days AND whose hardlink count
// is below 2 (no cache projection still references it) — the direct
// translation of purge_server's glob-and-stat loop.
func Server(srv *config.Server, objects *flatstore.ObjectStore) error {
	if srv.TimelinePurgeDays <= 0 {
		return nil
	}
	cutoff := time.Now().Add(-time.Duration(srv.TimelinePurgeDays) * 24 * time.Hour)

	objectDir := filepath.Join(srv.BaseDir, "object")
	shards, err := os.ReadDir(objectDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("purge: read %s: %w", objectDir, err)
	}

	purged := 0
	for _, shard := range shards {
		if !shard.IsDir() {
			continue
		}
		shardDir := filepath.Join(objectDir, shard.Name())
		files, err := os.ReadDir(shardDir)
		if err != nil {
			slog.Error("purge: read shard failed", "dir", shardDir, "error", err)
			continue
		}
		for _, f := range files {
			name := f.Name()
			if f.IsDir() || filepath.Ext(name) != ".json" {
				continue
			}
			info, err := f.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}
			md5hex := name[:len(name)-len(filepath.Ext(name))]
			if err := objects.DeleteIfUnreferencedByMD5(md5hex); err != nil {
				slog.Error("purge: delete object failed", "file", name, "error", err)
				continue
			}
			purged++
		}
	}
	if purged > 0 {
		slog.Info("purge: reclaimed unreferenced objects", "count", purged)
	}
	return nil
}
