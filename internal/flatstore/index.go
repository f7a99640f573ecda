// Package flatstore implements the filesystem-native object store described
// in spec.md §4.1-4.3: a content-addressed JSON object tree with sidecar
// indexes, plus the hardlink-based per-user cache projections built on top
// of it. There is no database; every operation is a file operation guarded
// by a POSIX advisory lock, grounded on original_source/data.c.
package flatstore

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// recordSize is the fixed width of one index record: 32 hex characters
// (an md5 digest) plus a trailing newline. index_len(f) = filesize/33 is
// authoritative per spec.md invariant 3 — nothing else is trusted.
const recordSize = 33

// Index is a flat append-only file of fixed-size md5 records, guarded by
// POSIX advisory locks for concurrent readers/writers (spec.md §4.2, §5).
type Index struct {
	path string
}

// NewIndex returns a handle to the index file at path. The file need not
// exist yet; Add creates it on first write.
func NewIndex(path string) *Index {
	return &Index{path: path}
}

// Exists reports whether the index file is present on disk.
func (ix *Index) Exists() bool {
	_, err := os.Stat(ix.path)
	return err == nil
}

func lockFile(f *os.File, exclusive bool) error {
	how := unix.LOCK_SH
	if exclusive {
		how = unix.LOCK_EX
	}
	return unix.Flock(int(f.Fd()), how)
}

func unlockFile(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}

// Add appends md5 to the index under an exclusive lock, unless it is
// already present (idempotent, matching index_add_md5's caller contract in
// spec.md §4.1's put()).
func (ix *Index) Add(md5 string) error {
	if len(md5) != 32 {
		return fmt.Errorf("flatstore: %q is not a 32-char md5 hex string", md5)
	}

	f, err := os.OpenFile(ix.path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return fmt.Errorf("open index %s: %w", ix.path, err)
	}
	defer f.Close()

	if err := lockFile(f, true); err != nil {
		return fmt.Errorf("lock index %s: %w", ix.path, err)
	}
	defer unlockFile(f)

	if present, err := containsLocked(f, md5); err != nil {
		return err
	} else if present {
		return nil
	}

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek index %s: %w", ix.path, err)
	}
	if _, err := f.WriteString(md5 + "\n"); err != nil {
		return fmt.Errorf("append index %s: %w", ix.path, err)
	}
	return nil
}

// In reports whether md5 is present in the index. Uses a shared lock.
func (ix *Index) In(md5 string) (bool, error) {
	f, err := os.Open(ix.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("open index %s: %w", ix.path, err)
	}
	defer f.Close()

	if err := lockFile(f, false); err != nil {
		return false, fmt.Errorf("lock index %s: %w", ix.path, err)
	}
	defer unlockFile(f)

	return containsLocked(f, md5)
}

func containsLocked(f *os.File, md5 string) (bool, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return false, err
	}
	buf := make([]byte, recordSize)
	for {
		n, err := io.ReadFull(f, buf)
		if n == recordSize && string(buf[:32]) == md5 {
			return true, nil
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return false, nil
		}
		if err != nil {
			return false, err
		}
	}
}

// Del removes md5 from the index by the copy-rewrite-rename pattern from
// spec.md §4.2: write every record except the matches to a .new file, then
// rename it over the original. The original is preserved as .bak until the
// rename succeeds, matching data.c's crash-safety.
func (ix *Index) Del(md5 string) error {
	f, err := os.OpenFile(ix.path, os.O_RDWR, 0600)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index %s: %w", ix.path, err)
	}
	defer f.Close()

	if err := lockFile(f, true); err != nil {
		return fmt.Errorf("lock index %s: %w", ix.path, err)
	}
	defer unlockFile(f)

	newPath := ix.path + ".new"
	bakPath := ix.path + ".bak"

	nf, err := os.OpenFile(newPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("create %s: %w", newPath, err)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		nf.Close()
		return err
	}
	buf := make([]byte, recordSize)
	for {
		n, err := io.ReadFull(f, buf)
		if n == recordSize && string(buf[:32]) != md5 {
			if _, werr := nf.Write(buf); werr != nil {
				nf.Close()
				return werr
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			nf.Close()
			return err
		}
	}
	if err := nf.Close(); err != nil {
		return err
	}

	// Preserve the pre-edit file as a backup (ignored if linking fails —
	// the rename below is what matters for correctness).
	_ = os.Link(ix.path, bakPath)

	if err := os.Rename(newPath, ix.path); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", newPath, ix.path, err)
	}
	_ = os.Remove(bakPath)
	return nil
}

// Len returns the number of records, computed from file size alone
// (spec.md invariant 3: index_len(f) = filesize/33, never parsed).
func (ix *Index) Len() (int, error) {
	info, err := os.Stat(ix.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("stat index %s: %w", ix.path, err)
	}
	return int(info.Size() / recordSize), nil
}

// First returns the oldest (first-appended) entry, or "" if the index is
// empty.
func (ix *Index) First() (string, error) {
	f, err := os.Open(ix.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("open index %s: %w", ix.path, err)
	}
	defer f.Close()

	if err := lockFile(f, false); err != nil {
		return "", err
	}
	defer unlockFile(f)

	buf := make([]byte, recordSize)
	n, err := io.ReadFull(f, buf)
	if err == io.EOF || err == io.ErrUnexpectedEOF || n < recordSize {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(buf[:32]), nil
}

// List returns up to max entries in append order (oldest first), after
// skipping the first skip records (skip=0 starts at the oldest). Pass
// max<=0 for "all".
func (ix *Index) List(skip, max int) ([]string, error) {
	return ix.list(skip, max, false)
}

// ListDesc is List but walking backward from the end of the file using the
// reverse seek arithmetic from data.c: seek to end, seek back
// (skip+1)*-33, read forward 33 bytes, then seek back another 66 bytes
// before the next iteration.
func (ix *Index) ListDesc(skip, max int) ([]string, error) {
	return ix.list(skip, max, true)
}

func (ix *Index) list(skip, max int, desc bool) ([]string, error) {
	f, err := os.Open(ix.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open index %s: %w", ix.path, err)
	}
	defer f.Close()

	if err := lockFile(f, false); err != nil {
		return nil, err
	}
	defer unlockFile(f)

	n, err := ix.Len()
	if err != nil {
		return nil, err
	}
	if skip >= n {
		return nil, nil
	}

	var out []string
	buf := make([]byte, recordSize)

	if !desc {
		if _, err := f.Seek(int64(skip*recordSize), io.SeekStart); err != nil {
			return nil, err
		}
		for max <= 0 || len(out) < max {
			rn, rerr := io.ReadFull(f, buf)
			if rn < recordSize {
				break
			}
			out = append(out, string(buf[:32]))
			if rerr != nil {
				break
			}
		}
		return out, nil
	}

	// Descending: seek to end, then walk backward.
	if _, err := f.Seek(int64(-(skip+1)*recordSize), io.SeekEnd); err != nil {
		return nil, err
	}
	for max <= 0 || len(out) < max {
		rn, rerr := io.ReadFull(f, buf)
		if rn < recordSize {
			break
		}
		out = append(out, string(buf[:32]))
		if rerr != nil {
			break
		}
		// Rewind past the record just read plus the one before it.
		if _, err := f.Seek(-2*recordSize, io.SeekCurrent); err != nil {
			break
		}
	}
	return out, nil
}
