package kv

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/peterbourgon/diskv/v3"
	"golang.org/x/crypto/blake2b"
)

const tempDirName = ".tmp"

// DiskvRepository stores every key as its own file under basePath.
//
// File names are the base64url form of the key, so keys can be listed back,
// and files are sharded into directories named after the first byte of the
// key's BLAKE2b digest.
type DiskvRepository struct {
	d        *diskv.Diskv
	basePath string

	mu      sync.Mutex
	written map[string][blake2b.Size256]byte
}

// NewDiskvRepository opens (creating if needed) a file store rooted at basePath.
func NewDiskvRepository(basePath string) (*DiskvRepository, error) {
	if err := os.MkdirAll(filepath.Join(basePath, tempDirName), 0o700); err != nil {
		return nil, fmt.Errorf("ensure store dir: %w", err)
	}

	// No read cache: other processes write the same files.
	d := diskv.New(diskv.Options{
		BasePath:          basePath,
		TempDir:           filepath.Join(basePath, tempDirName),
		AdvancedTransform: keyToPath,
		InverseTransform:  pathToKey,
		CacheSizeMax:      0,
		FilePerm:          0o600,
		PathPerm:          0o700,
	})

	return &DiskvRepository{
		d:        d,
		basePath: basePath,
		written:  make(map[string][blake2b.Size256]byte),
	}, nil
}

func (r *DiskvRepository) Get(_ context.Context, key string) ([]byte, error) {
	v, err := r.d.Read(key)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return v, nil
}

func (r *DiskvRepository) Set(_ context.Context, key string, value []byte) error {
	if err := r.d.Write(key, value); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}

	r.mu.Lock()
	r.written[key] = blake2b.Sum256(value)
	r.mu.Unlock()
	return nil
}

func (r *DiskvRepository) Delete(_ context.Context, key string) error {
	err := r.d.Erase(key)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to erase %s: %w", key, err)
	}

	r.mu.Lock()
	delete(r.written, key)
	r.mu.Unlock()
	return nil
}

func (r *DiskvRepository) List(ctx context.Context, prefix string) (map[string][]byte, error) {
	result := make(map[string][]byte)

	cancel := make(chan struct{})
	defer close(cancel)

	for key := range r.d.Keys(cancel) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if key == "" || !strings.HasPrefix(key, prefix) {
			continue
		}
		v, err := r.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if v != nil {
			result[key] = v
		}
	}
	return result, nil
}

// ownWrite reports whether value is exactly what this instance last wrote
// under key, so the watcher can ignore echoes of local writes.
func (r *DiskvRepository) ownWrite(key string, value []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sum, ok := r.written[key]
	return ok && sum == blake2b.Sum256(value)
}

func shard(key string) string {
	sum := blake2b.Sum256([]byte(key))
	return hex.EncodeToString(sum[:1])
}

func keyToPath(key string) *diskv.PathKey {
	return &diskv.PathKey{
		Path:     []string{shard(key)},
		FileName: base64.RawURLEncoding.EncodeToString([]byte(key)),
	}
}

func pathToKey(pk *diskv.PathKey) string {
	b, err := base64.RawURLEncoding.DecodeString(pk.FileName)
	if err != nil {
		return ""
	}
	return string(b)
}

// keyForFile maps a file found on disk back to its key. Files that do not
// sit in the shard directory their name hashes to are not ours.
func keyForFile(path string) (string, bool) {
	b, err := base64.RawURLEncoding.DecodeString(filepath.Base(path))
	if err != nil || len(b) == 0 {
		return "", false
	}
	key := string(b)
	return key, shard(key) == filepath.Base(filepath.Dir(path))
}
