package storage

import (
	"context"

	"github.com/steveyegge/swarm/internal/events"
)

// StoreSink writes events into run history
type StoreSink struct {
	store Store
}

// NewStoreSink returns a sink that appends every event to store's event log
func NewStoreSink(store Store) *StoreSink {
	return &StoreSink{store: store}
}

// Emit stores the event
func (s *StoreSink) Emit(ctx context.Context, event *events.Event) error {
	return s.store.StoreEvent(ctx, event)
}
