package agenda

import (
	"context"

	"zen-records/domain"
)

// Store persists the agenda snapshot. storage.SnapshotStore satisfies it.
type Store interface {
	Load(ctx context.Context) (domain.AgendaSnapshot, error)
	Save(ctx context.Context, snap domain.AgendaSnapshot) error
	Clear(ctx context.Context) error
}
