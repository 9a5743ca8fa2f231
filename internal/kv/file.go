package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Kaelzs/ThreeW/internal/logger"
)

const fileExt = ".json"

// File stores every key as its own file inside a directory. Writes are
// atomic: the value goes to a temporary file that is then renamed over the
// target.
type File struct {
	dir string
	mu  sync.Mutex
}

// NewFile returns a File store rooted at dir, creating it when missing.
func NewFile(dir string) (*File, error) {
	if dir == "" {
		return nil, errors.New("storage path cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory '%s': %w", dir, err)
	}
	return &File{dir: dir}, nil
}

func (f *File) path(key string) string {
	return filepath.Join(f.dir, key+fileExt)
}

// Get implements Store.
func (f *File) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if err := validKey(key); err != nil {
		return nil, false, err
	}

	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.L().Debug("Storage file not found", "key", key, "path", f.path(key))
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read storage file '%s': %w", f.path(key), err)
	}
	return data, true, nil
}

// Set implements Store.
func (f *File) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validKey(key); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	target := f.path(key)
	tmp, err := os.CreateTemp(f.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temporary storage file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temporary storage file '%s': %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temporary storage file '%s': %w", tmpName, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename temporary storage file to '%s': %w", target, err)
	}

	logger.L().Debug("Persisted value", "key", key, "path", target, "bytes", len(value))
	return nil
}

// Close implements io.Closer.
func (f *File) Close() error { return nil }
