package flatstore

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// ObjectStore is the content-addressed JSON object database described in
// spec.md §4.1, grounded on _object_fn_by_md5/_object_add/object_get_by_md5
// in original_source/data.c. Every object lives at
// {basedir}/object/{md5[0:2]}/{md5}.json, with four sidecar index files
// for children/parent/likes/announces.
type ObjectStore struct {
	basedir string
}

// NewObjectStore returns a store rooted at basedir.
func NewObjectStore(basedir string) *ObjectStore {
	return &ObjectStore{basedir: basedir}
}

// MD5 returns the content-address key for an object id.
func MD5(id string) string {
	sum := md5.Sum([]byte(id))
	return hex.EncodeToString(sum[:])
}

func (s *ObjectStore) objectPath(md5hex string) string {
	return filepath.Join(s.basedir, "object", md5hex[0:2], md5hex+".json")
}

func (s *ObjectStore) sidecarPath(md5hex, kind string) string {
	return filepath.Join(s.basedir, "object", md5hex[0:2], md5hex+"_"+kind+".idx")
}

func (s *ObjectStore) childrenIndex(md5hex string) *Index   { return NewIndex(s.sidecarPath(md5hex, "c")) }
func (s *ObjectStore) parentIndex(md5hex string) *Index     { return NewIndex(s.sidecarPath(md5hex, "p")) }
func (s *ObjectStore) likesIndex(md5hex string) *Index      { return NewIndex(s.sidecarPath(md5hex, "l")) }
func (s *ObjectStore) announcesIndex(md5hex string) *Index  { return NewIndex(s.sidecarPath(md5hex, "a")) }

// Put status codes, mirroring the integer HTTP-shaped statuses spec.md §4.1
// asks ObjectStore operations to return.
const (
	StatusCreated     = 201
	StatusNoContent   = 204
	StatusNotFound    = 404
	StatusInternalErr = 500
)

// ValidStatus reports 200 <= s <= 299, the predicate callers use throughout
// (spec.md §4.1's "Callers distinguish valid_status").
func ValidStatus(status int) bool {
	return status >= 200 && status <= 299
}

// Put serializes obj as pretty-printed JSON under an exclusive lock. If the
// object carries a non-empty inReplyTo, the parent's children (_c) index
// gains this object's md5 and this object's own parent (_p) index is
// written, but only if it doesn't already exist — matching data.c's
// _object_add, which treats _p as write-once.
func (s *ObjectStore) Put(id string, obj map[string]interface{}, overwrite bool) (int, error) {
	md5hex := MD5(id)
	path := s.objectPath(md5hex)

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return StatusInternalErr, fmt.Errorf("mkdir for object %s: %w", id, err)
	}

	lockPath := path + ".lock"
	lf, err := os.OpenFile(lockPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return StatusInternalErr, fmt.Errorf("open lock for %s: %w", id, err)
	}
	defer lf.Close()
	if err := lockFile(lf, true); err != nil {
		return StatusInternalErr, fmt.Errorf("lock %s: %w", id, err)
	}
	defer unlockFile(lf)

	existed := fileExists(path)
	if existed && !overwrite {
		return StatusNoContent, nil
	}

	data, err := json.MarshalIndent(obj, "", "    ")
	if err != nil {
		return StatusInternalErr, fmt.Errorf("marshal object %s: %w", id, err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return StatusInternalErr, fmt.Errorf("write object %s: %w", id, err)
	}

	if inReplyTo, ok := obj["inReplyTo"].(string); ok && inReplyTo != "" {
		parentMD5 := MD5(inReplyTo)
		if err := s.childrenIndex(parentMD5).Add(md5hex); err != nil {
			return StatusInternalErr, fmt.Errorf("update children index of %s: %w", inReplyTo, err)
		}
		pIdx := s.parentIndex(md5hex)
		if !pIdx.Exists() {
			if err := pIdx.Add(parentMD5); err != nil {
				return StatusInternalErr, fmt.Errorf("write parent index of %s: %w", id, err)
			}
		}
	}

	if !existed {
		return StatusCreated, nil
	}
	return StatusNoContent, nil
}

// Get reads an object by id or bare md5, shared-locked. If expectedType is
// non-empty and the object's "type" field doesn't match, the lookup
// behaves as not-found (spec.md §4.1).
func (s *ObjectStore) Get(idOrMD5 string, expectedType string) (map[string]interface{}, int, error) {
	md5hex := idOrMD5
	if len(idOrMD5) != 32 || !isHex(idOrMD5) {
		md5hex = MD5(idOrMD5)
	}
	return s.GetByMD5(md5hex, expectedType)
}

// GetByMD5 is Get but keyed directly by md5, for callers that already hold
// one (index entries are md5s, not ids).
func (s *ObjectStore) GetByMD5(md5hex, expectedType string) (map[string]interface{}, int, error) {
	path := s.objectPath(md5hex)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, StatusNotFound, nil
		}
		return nil, StatusInternalErr, fmt.Errorf("open object %s: %w", md5hex, err)
	}
	defer f.Close()

	if err := lockFile(f, false); err != nil {
		return nil, StatusInternalErr, err
	}
	defer unlockFile(f)

	var obj map[string]interface{}
	if err := json.NewDecoder(f).Decode(&obj); err != nil {
		return nil, StatusInternalErr, fmt.Errorf("decode object %s: %w", md5hex, err)
	}

	if expectedType != "" {
		if t, _ := obj["type"].(string); t != expectedType {
			return nil, StatusNotFound, nil
		}
	}
	return obj, 200, nil
}

// Delete unlinks the JSON file and every glob-matched sidecar index
// (spec.md §4.1: "delete all its sidecars").
func (s *ObjectStore) Delete(id string) error {
	return s.DeleteByMD5(MD5(id))
}

// DeleteByMD5 is Delete but keyed directly by md5, for callers (the purge
// sweep) that only have the content-address, never the original id.
func (s *ObjectStore) DeleteByMD5(md5hex string) error {
	path := s.objectPath(md5hex)

	matches, err := filepath.Glob(filepath.Join(s.basedir, "object", md5hex[0:2], md5hex+"_*.idx"))
	if err != nil {
		return fmt.Errorf("glob sidecars for %s: %w", md5hex, err)
	}
	for _, m := range matches {
		_ = os.Remove(m)
	}
	_ = os.Remove(path + ".lock")

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete object %s: %w", md5hex, err)
	}
	return nil
}

// DeleteIfUnreferenced deletes the object only if its current link count
// is below 2 — i.e. no UserCache projection still hardlinks to it
// (spec.md invariant 5).
func (s *ObjectStore) DeleteIfUnreferenced(id string) error {
	return s.DeleteIfUnreferencedByMD5(MD5(id))
}

// DeleteIfUnreferencedByMD5 is DeleteIfUnreferenced but keyed directly by
// md5, used by the purge sweep which enumerates object/ by filename.
func (s *ObjectStore) DeleteIfUnreferencedByMD5(md5hex string) error {
	path := s.objectPath(md5hex)

	n, err := linkCount(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat object %s: %w", md5hex, err)
	}
	if n >= 2 {
		return nil
	}
	return s.DeleteByMD5(md5hex)
}

// Admire appends actor's md5 to the like or announce sidecar index for id,
// if not already present (spec.md §4.1's admire()).
func (s *ObjectStore) Admire(id, actorID string, kind string) error {
	md5hex := MD5(id)
	var idx *Index
	switch kind {
	case "like":
		idx = s.likesIndex(md5hex)
	case "announce":
		idx = s.announcesIndex(md5hex)
	default:
		return fmt.Errorf("admire: unknown kind %q", kind)
	}
	return idx.Add(MD5(actorID))
}

// Children, Likes, Announces return the raw md5 lists from the
// corresponding sidecar index.
func (s *ObjectStore) Children(id string) ([]string, error) {
	return s.childrenIndex(MD5(id)).List(0, 0)
}
func (s *ObjectStore) Likes(id string) ([]string, error) {
	return s.likesIndex(MD5(id)).List(0, 0)
}
func (s *ObjectStore) Announces(id string) ([]string, error) {
	return s.announcesIndex(MD5(id)).List(0, 0)
}

// Parent returns the parent id's md5, or "" if this object has none.
func (s *ObjectStore) Parent(id string) (string, error) {
	return s.parentIndex(MD5(id)).First()
}

// LikesCount and AnnouncesCount use the sidecar file size, never parsing
// the list, matching spec.md §4.1 ("counts use file size, not parsing").
func (s *ObjectStore) LikesCount(id string) (int, error) {
	return s.likesIndex(MD5(id)).Len()
}
func (s *ObjectStore) AnnouncesCount(id string) (int, error) {
	return s.announcesIndex(MD5(id)).Len()
}

// Mtime returns the last-modified time of the stored object's JSON file,
// used by ActorResolver to implement the 36h staleness TTL from spec.md
// invariant 7.
func (s *ObjectStore) Mtime(id string) (time.Time, error) {
	path := s.objectPath(MD5(id))
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// Touch updates the object file's mtime to now without rewriting or
// deleting it. Resolver.Get calls it on a stale cached actor, which starts
// that actor's staleness window over.
func (s *ObjectStore) Touch(id string) error {
	path := s.objectPath(MD5(id))
	now := time.Now()
	return os.Chtimes(path, now, now)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func isHex(s string) bool {
	for _, r := range s {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')) {
			return false
		}
	}
	return true
}

func linkCount(path string) (uint64, error) {
	var st syscall.Stat_t
	if err := syscall.Stat(path, &st); err != nil {
		return 0, err
	}
	return uint64(st.Nlink), nil
}
