package storage

import (
	"context"

	"smartpool/internal/model"
)

// Storage defines a sink for pool events.
type Storage interface {
	PutEventBatch(ctx context.Context, events []model.Event) error
}

// Fanout writes each batch to every sink in order and stops at the first error.
type Fanout []Storage

func (f Fanout) PutEventBatch(ctx context.Context, events []model.Event) error {
	for _, sink := range f {
		if sink == nil {
			continue
		}
		if err := sink.PutEventBatch(ctx, events); err != nil {
			return err
		}
	}
	return nil
}
