package driver

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"shapegen/internal/capability"
	"shapegen/internal/emit"
	"shapegen/internal/gate"
	"shapegen/internal/source"
	"shapegen/internal/version"
)

// Current payload version - increment when CachePayload changes.
const diskCacheSchemaVersion uint16 = 1

// Digest is a cache key.
type Digest [32]byte

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// DiskCache stores rendered outputs of clean runs keyed by a digest of
// their inputs. Safe for concurrent use.
type DiskCache struct {
	mu  sync.RWMutex
	dir string
}

// CachePayload is one cached run.
type CachePayload struct {
	Schema  uint16   `msgpack:"schema"`
	PkgName string   `msgpack:"pkg_name"`
	PkgPath string   `msgpack:"pkg_path"`
	Outputs []Output `msgpack:"outputs"`
	Stale   []string `msgpack:"stale"`
}

// OpenDiskCache opens the cache in dir, or under the user cache directory
// ($XDG_CACHE_HOME/shapegen) when dir is empty.
func OpenDiskCache(dir string) (*DiskCache, error) {
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("locate cache directory: %w", err)
		}
		dir = filepath.Join(base, "shapegen")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir}, nil
}

// Dir returns the cache directory.
func (c *DiskCache) Dir() string { return c.dir }

func (c *DiskCache) pathFor(key Digest) string {
	return filepath.Join(c.dir, "runs", key.String()+".mp")
}

// Put writes a payload, replacing any previous entry atomically.
func (c *DiskCache) Put(key Digest, payload *CachePayload) (err error) {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if rmErr := os.Remove(f.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
			err = rmErr
		}
	}()

	payload.Schema = diskCacheSchemaVersion
	if err := msgpack.NewEncoder(f).Encode(payload); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), p)
}

// Get reads a payload. Entries of another schema version are misses.
func (c *DiskCache) Get(key Digest) (*CachePayload, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()
	var out CachePayload
	if err := msgpack.NewDecoder(f).Decode(&out); err != nil {
		return nil, false, err
	}
	if out.Schema != diskCacheSchemaVersion {
		return nil, false, nil
	}
	return &out, true, nil
}

// DropAll removes every cached run.
func (c *DiskCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return os.RemoveAll(filepath.Join(c.dir, "runs"))
}

// CacheKey digests everything a run's output depends on: engine version,
// compiled capabilities, configuration, the frontend kind, package path and
// the input files in load order.
func CacheKey(g *gate.Gate, frontend, pkgPath string, files []source.File) (Digest, error) {
	h := sha256.New()
	write := func(s string) {
		_, _ = h.Write(binary.AppendUvarint(nil, uint64(len(s))))
		_, _ = h.Write([]byte(s))
	}
	write(fmt.Sprint(diskCacheSchemaVersion))
	write(version.Version)
	for _, name := range capability.Names() {
		write(name)
	}
	cfg := g.Config()
	cfg.Path = ""
	encoded, err := gate.Encode(cfg)
	if err != nil {
		return Digest{}, err
	}
	write(string(encoded))
	write(emit.NewModeSet(g.Modes()...).String())
	write(frontend)
	write(pkgPath)
	for _, f := range files {
		write(filepath.Base(f.Path))
		_, _ = h.Write(f.Hash[:])
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out, nil
}
