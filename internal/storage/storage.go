package storage

import (
	"context"
	"errors"

	"lpMonitor/internal/model"
)

// SnapshotSink records the snapshots of one cycle.
type SnapshotSink interface {
	PutSnapshots(ctx context.Context, snaps []model.Snapshot) error
}

// ActionSink records executed automation actions.
type ActionSink interface {
	PutAction(ctx context.Context, result model.ActionResult) error
}

// Multi fans snapshots out to every sink and joins their errors.
type Multi []SnapshotSink

func (m Multi) PutSnapshots(ctx context.Context, snaps []model.Snapshot) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.PutSnapshots(ctx, snaps); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
