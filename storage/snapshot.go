package storage

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
)

// SnapshotStore persists a single value of type T in one KV slot.
type SnapshotStore[T any] struct {
	kv  KV
	key string
}

func NewSnapshotStore[T any](kv KV, key string) *SnapshotStore[T] {
	return &SnapshotStore[T]{kv: kv, key: key}
}

// Load returns the stored value. It returns ErrNotFound when the slot is
// empty and ErrCorrupt when the stored bytes do not decode.
func (s *SnapshotStore[T]) Load(ctx context.Context) (T, error) {
	var v T
	data, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return v, err
	}
	if err := sonic.Unmarshal(data, &v); err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return v, nil
}

func (s *SnapshotStore[T]) Save(ctx context.Context, v T) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return s.kv.Set(ctx, s.key, data)
}

func (s *SnapshotStore[T]) Clear(ctx context.Context) error {
	return s.kv.Clear(ctx, s.key)
}
