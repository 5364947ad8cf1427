// Package logstore owns the in-memory log snapshot and serializes every
// mutation through a single reader-writer lock.
//
// The lock is held only for the in-memory mutation and for cloning the
// snapshot; hashing and the durable write happen outside it. A crash
// between releasing the lock and completing the durable write leaves
// memory ahead of disk. That window is an accepted weak-durability
// tradeoff, not something this package tries to mask.
package logstore

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"merklelog/internal/domain"
	"merklelog/internal/infra/merkle"
)

type Store struct {
	mu       sync.RWMutex
	snapshot domain.Snapshot
	repo     domain.SnapshotRepository
	clock    func() time.Time
	logger   *zap.Logger
}

// New rehydrates the store from the repository. A missing prior state
// starts the log empty.
func New(ctx context.Context, repo domain.SnapshotRepository, logger *zap.Logger) (*Store, error) {
	return NewWithClock(ctx, repo, logger, time.Now)
}

func NewWithClock(ctx context.Context, repo domain.SnapshotRepository, logger *zap.Logger, clock func() time.Time) (*Store, error) {
	if repo == nil {
		return nil, fmt.Errorf("snapshot repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = time.Now
	}
	snapshot, err := repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if len(snapshot.Leaves) != len(snapshot.Entries) {
		return nil, fmt.Errorf("%w: %d leaves but %d entries", domain.ErrCorruptStorage, len(snapshot.Leaves), len(snapshot.Entries))
	}
	return &Store{
		snapshot: snapshot,
		repo:     repo,
		clock:    clock,
		logger:   logger,
	}, nil
}

// Append assigns the next sequential index to the payload, recomputes the
// whole-tree root, and persists the full snapshot before reporting the
// append durable. Appends are serialized by the write lock: indices have
// no gaps and no reuse.
func (s *Store) Append(ctx context.Context, payload string) (domain.AppendResponse, error) {
	if err := ctx.Err(); err != nil {
		return domain.AppendResponse{}, err
	}

	leaf := merkle.LeafHash([]byte(payload))
	leafHex := hex.EncodeToString(leaf[:])
	entry := domain.LogEntry{
		Payload:    payload,
		Leaf:       leafHex,
		AppendedAt: s.clock().UTC().Format(time.RFC3339Nano),
	}

	s.mu.Lock()
	s.snapshot.Leaves = append(s.snapshot.Leaves, leafHex)
	s.snapshot.Entries = append(s.snapshot.Entries, entry)
	snapshot := cloneSnapshot(s.snapshot)
	s.mu.Unlock()

	index := uint64(len(snapshot.Leaves)) - 1
	leaves, err := merkle.DecodeLeaves(snapshot.Leaves)
	if err != nil {
		s.logger.Error("failed to decode leaves", zap.Error(err))
		return domain.AppendResponse{}, err
	}
	root := merkle.Root(leaves)

	if err := s.repo.Save(ctx, snapshot); err != nil {
		s.logger.Error("persist failure", zap.Error(err), zap.Uint64("index", index))
		return domain.AppendResponse{}, fmt.Errorf("persist snapshot: %w", err)
	}

	return domain.AppendResponse{
		Index: index,
		Size:  uint64(len(snapshot.Leaves)),
		Leaf:  leafHex,
		Root:  hex.EncodeToString(root[:]),
	}, nil
}

// CurrentRoot recomputes the root over all current leaves. No root is
// cached across appends; correctness over performance.
func (s *Store) CurrentRoot(ctx context.Context) (domain.RootResponse, error) {
	if err := ctx.Err(); err != nil {
		return domain.RootResponse{}, err
	}

	s.mu.RLock()
	hashes := make([]string, len(s.snapshot.Leaves))
	copy(hashes, s.snapshot.Leaves)
	s.mu.RUnlock()

	leaves, err := merkle.DecodeLeaves(hashes)
	if err != nil {
		s.logger.Error("failed to decode leaves", zap.Error(err))
		return domain.RootResponse{}, err
	}
	root := merkle.Root(leaves)
	return domain.RootResponse{
		Root: hex.EncodeToString(root[:]),
		Size: uint64(len(hashes)),
	}, nil
}

// Prove delegates to the tree engine over a cloned leaf sequence so the
// lock is never held during hashing.
func (s *Store) Prove(ctx context.Context, index uint64) (domain.InclusionProof, error) {
	if err := ctx.Err(); err != nil {
		return domain.InclusionProof{}, err
	}

	s.mu.RLock()
	hashes := make([]string, len(s.snapshot.Leaves))
	copy(hashes, s.snapshot.Leaves)
	s.mu.RUnlock()

	if index >= uint64(len(hashes)) {
		return domain.InclusionProof{}, domain.ErrIndexOutOfRange
	}
	leaves, err := merkle.DecodeLeaves(hashes)
	if err != nil {
		s.logger.Error("failed to decode leaves", zap.Error(err))
		return domain.InclusionProof{}, err
	}
	return merkle.MakeProof(leaves, index)
}

// Entry returns the stored log entry at index.
func (s *Store) Entry(ctx context.Context, index uint64) (domain.LogEntry, error) {
	if err := ctx.Err(); err != nil {
		return domain.LogEntry{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if index >= uint64(len(s.snapshot.Entries)) {
		return domain.LogEntry{}, domain.ErrIndexOutOfRange
	}
	return s.snapshot.Entries[index], nil
}

// Size returns the current leaf count.
func (s *Store) Size() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.snapshot.Leaves))
}

func cloneSnapshot(snapshot domain.Snapshot) domain.Snapshot {
	out := domain.Snapshot{
		Leaves:  make([]string, len(snapshot.Leaves)),
		Entries: make([]domain.LogEntry, len(snapshot.Entries)),
	}
	copy(out.Leaves, snapshot.Leaves)
	copy(out.Entries, snapshot.Entries)
	return out
}
