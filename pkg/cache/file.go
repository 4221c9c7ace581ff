package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

const fileExt = ".json"

// FileCache keeps one JSON document per key in a flat directory. Each
// document records its own key, so the directory can be listed without an
// index and a file name collision is detected on read.
type FileCache struct {
	dir string
	now func() time.Time
}

// fileEntry is the on-disk document.
type fileEntry struct {
	Key       string    `json:"key"`
	Data      []byte    `json:"data"`
	StoredAt  time.Time `json:"stored_at"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// EntryInfo describes a stored entry without its payload.
type EntryInfo struct {
	Key       string
	Kind      string // "catalog", "version" or empty for foreign keys
	Size      int
	StoredAt  time.Time
	ExpiresAt time.Time // zero when the entry never expires
	Expired   bool
}

// NewFileCache opens (creating if needed) a cache rooted at dir.
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileCache{dir: dir, now: time.Now}, nil
}

// Dir returns the cache directory.
func (c *FileCache) Dir() string { return c.dir }

// Get returns the entry stored under key. Corrupt and expired entries are
// removed and reported as misses.
func (c *FileCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	path := c.path(key)
	e, err := readEntry(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, false, nil
	}
	if e.Key != key {
		return nil, false, nil
	}
	if c.expired(e) {
		_ = os.Remove(path)
		return nil, false, nil
	}
	return e.Data, true, nil
}

// Set writes the entry to a temporary file and renames it into place, so
// concurrent CLI invocations never read a partial document.
func (c *FileCache) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	e := fileEntry{Key: key, Data: data, StoredAt: c.now()}
	if ttl > 0 {
		e.ExpiresAt = e.StoredAt.Add(ttl)
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(c.dir, ".entry-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), c.path(key))
}

// Delete removes key.
func (c *FileCache) Delete(_ context.Context, key string) error {
	err := os.Remove(c.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Close is a no-op.
func (c *FileCache) Close() error { return nil }

// Entries lists the stored entries sorted by key. Unreadable files are
// skipped.
func (c *FileCache) Entries() ([]EntryInfo, error) {
	files, err := c.files()
	if err != nil {
		return nil, err
	}
	out := make([]EntryInfo, 0, len(files))
	for _, f := range files {
		e, err := readEntry(f)
		if err != nil {
			continue
		}
		out = append(out, EntryInfo{
			Key:       e.Key,
			Kind:      KeyKind(e.Key),
			Size:      len(e.Data),
			StoredAt:  e.StoredAt,
			ExpiresAt: e.ExpiresAt,
			Expired:   c.expired(e),
		})
	}
	slices.SortFunc(out, func(a, b EntryInfo) int { return strings.Compare(a.Key, b.Key) })
	return out, nil
}

// Clear removes every entry whose kind is in kinds, or all entries when
// kinds is empty. It returns the number removed; removal errors are joined.
func (c *FileCache) Clear(kinds ...string) (int, error) {
	files, err := c.files()
	if err != nil {
		return 0, err
	}
	var (
		removed int
		errs    []error
	)
	for _, f := range files {
		if len(kinds) > 0 {
			e, err := readEntry(f)
			if err == nil && !slices.Contains(kinds, KeyKind(e.Key)) {
				continue
			}
		}
		if err := os.Remove(f); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func (c *FileCache) files() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(c.dir, "*"+fileExt))
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (c *FileCache) expired(e fileEntry) bool {
	return !e.ExpiresAt.IsZero() && c.now().After(e.ExpiresAt)
}

// path names the file after a digest of key; keys contain URIs and are not
// valid file names.
func (c *FileCache) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:16])+fileExt)
}

func readEntry(path string) (fileEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fileEntry{}, err
	}
	var e fileEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return fileEntry{}, err
	}
	return e, nil
}

var _ Cache = (*FileCache)(nil)
