package domain

import "context"

// SnapshotRepository persists the full log snapshot. Durable storage is a
// serialization target only; the log store remains the single writer of
// the in-memory state.
type SnapshotRepository interface {
	Save(ctx context.Context, snapshot Snapshot) error
	Load(ctx context.Context) (Snapshot, error)
}

// AnchorLedger is the watcher's append-only record of anchored roots.
// The watcher is its exclusive writer.
type AnchorLedger interface {
	Append(ctx context.Context, record AnchorRecord) error
	List(ctx context.Context) ([]AnchorRecord, error)
}

// RootSource is the watcher's read-only view of the log service.
type RootSource interface {
	FetchRoot(ctx context.Context) (RootResponse, error)
}
