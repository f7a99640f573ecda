package flatstore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
)

// Collection is a small append/remove list of opaque string keys (actor
// URLs for followers/following/muted, object ids for hidden), one per
// line. Unlike Index it is not fixed-record — these collections hold
// variable-length actor URLs rather than md5 digests — but it is guarded
// by the same advisory-lock discipline as Index.
type Collection struct {
	path string
}

// NewCollection returns a handle to the flat-file list at path.
func NewCollection(path string) *Collection {
	return &Collection{path: path}
}

// Add appends key if not already present.
func (c *Collection) Add(key string) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0700); err != nil {
		return fmt.Errorf("mkdir for %s: %w", c.path, err)
	}
	f, err := os.OpenFile(c.path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return fmt.Errorf("open %s: %w", c.path, err)
	}
	defer f.Close()

	if err := lockFile(f, true); err != nil {
		return err
	}
	defer unlockFile(f)

	keys, err := readAllLocked(f)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if k == key {
			return nil
		}
	}
	if _, err := f.WriteString(key + "\n"); err != nil {
		return fmt.Errorf("append %s: %w", c.path, err)
	}
	return nil
}

// Remove deletes key from the list, rewriting the file.
func (c *Collection) Remove(key string) error {
	f, err := os.OpenFile(c.path, os.O_RDWR, 0600)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open %s: %w", c.path, err)
	}
	defer f.Close()

	if err := lockFile(f, true); err != nil {
		return err
	}
	defer unlockFile(f)

	keys, err := readAllLocked(f)
	if err != nil {
		return err
	}

	out := keys[:0]
	for _, k := range keys {
		if k != key {
			out = append(out, k)
		}
	}

	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	for _, k := range out {
		if _, err := f.WriteString(k + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// Contains reports whether key is in the list.
func (c *Collection) Contains(key string) (bool, error) {
	keys, err := c.List()
	if err != nil {
		return false, err
	}
	for _, k := range keys {
		if k == key {
			return true, nil
		}
	}
	return false, nil
}

// List returns every key, in append order.
func (c *Collection) List() ([]string, error) {
	f, err := os.Open(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", c.path, err)
	}
	defer f.Close()

	if err := lockFile(f, false); err != nil {
		return nil, err
	}
	defer unlockFile(f)

	return readAllLocked(f)
}

func readAllLocked(f *os.File) ([]string, error) {
	if _, err := f.Seek(0, 0); err != nil {
		return nil, err
	}
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := sc.Text(); line != "" {
			out = append(out, line)
		}
	}
	return out, sc.Err()
}
