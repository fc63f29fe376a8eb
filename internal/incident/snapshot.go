package incident

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/linnemanlabs/go-core/log"
)

// snapshot reads and writes one collection as a JSON array.
//
// Unreadable or corrupt documents load as an empty collection so the service
// stays available. Every fallback is logged and reported through hooks.
type snapshot[T any] struct {
	store  SnapshotStore
	coll   Collection
	logger log.Logger
	hooks  *Hooks
}

func (s *snapshot[T]) load(ctx context.Context) []T {
	doc, err := s.store.Load(ctx, s.coll)
	if err != nil {
		s.fallback(ctx, fmt.Errorf("%w: load %s: %w", ErrStorage, s.coll, err))
		return nil
	}
	if len(doc) == 0 {
		return nil
	}
	var items []T
	if err := json.Unmarshal(doc, &items); err != nil {
		s.fallback(ctx, fmt.Errorf("%w: decode %s: %w", ErrStorage, s.coll, err))
		return nil
	}
	return items
}

func (s *snapshot[T]) fallback(ctx context.Context, err error) {
	s.logger.Error(ctx, err, "storage degraded, treating collection as empty", "collection", s.coll)
	s.hooks.storageFallback(s.coll, err)
}

func (s *snapshot[T]) save(ctx context.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	doc, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", ErrStorage, s.coll, err)
	}
	err = s.store.Save(ctx, s.coll, doc)
	s.hooks.storageWrite(s.coll, err)
	if err != nil {
		return fmt.Errorf("%w: save %s: %w", ErrStorage, s.coll, err)
	}
	return nil
}
