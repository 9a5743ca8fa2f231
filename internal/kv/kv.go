// Package kv holds the key-value backends the event store persists to.
package kv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Kaelzs/ThreeW/pkg/models"
)

// Store is a minimal byte-oriented key-value store.
type Store interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
}

// Backend is a Store that holds resources until closed.
type Backend interface {
	Store
	io.Closer
}

// ErrInvalidKey is returned for keys a backend cannot represent.
var ErrInvalidKey = errors.New("invalid key")

// Open builds the backend selected by settings and wraps it with the
// configured retry policy. The caller owns the returned backend.
func Open(ctx context.Context, settings models.StorageSettings) (Backend, error) {
	var (
		b   Backend
		err error
	)
	switch strings.ToLower(settings.Backend) {
	case models.BackendMemory:
		b = NewMemory()
	case models.BackendFile, "":
		b, err = NewFile(settings.Path)
	case models.BackendSQLite:
		b, err = NewSQLite(settings.Path)
	case models.BackendRedis:
		b, err = NewRedis(ctx, RedisOptions{
			Addr:     settings.RedisAddr,
			Password: settings.RedisPassword,
			DB:       settings.RedisDB,
			Timeout:  settings.RedisTimeout.Duration,
			Prefix:   settings.KeyPrefix,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", settings.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", settings.Backend, err)
	}

	policy := settings.Retry
	return NewRetrying(b, &policy), nil
}

// validKey rejects keys that would escape a directory or are empty.
func validKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("%q: %w", key, ErrInvalidKey)
	}
	return nil
}
