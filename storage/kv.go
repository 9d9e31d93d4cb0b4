package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when the slot has never been written or
	// was cleared.
	ErrNotFound = errors.New("storage: key not found")
	// ErrQuotaExceeded is returned by Set when the value does not fit the
	// backend's size limit.
	ErrQuotaExceeded = errors.New("storage: quota exceeded")
	// ErrCorrupt is returned when a stored value cannot be decoded.
	ErrCorrupt = errors.New("storage: corrupt value")
)

// KV is a persistent key-value slot holding serialized state.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Clear(ctx context.Context, key string) error
}
