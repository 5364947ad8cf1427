// Package watcher anchors the log's current root to an append-only ledger
// so history cannot be silently rewritten after the fact.
package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"merklelog/internal/domain"
)

// Watcher polls the log service for its current (root, size) and appends
// an anchor record whenever the pair changes. It runs as one sequential
// loop: a cycle is either idle (nothing changed, fetch failed) or
// anchoring (record computed and persisted), never both concurrently.
type Watcher struct {
	source   domain.RootSource
	ledger   domain.AnchorLedger
	interval time.Duration
	clock    func() time.Time
	logger   *zap.Logger
	last     *domain.AnchorRecord
}

// New restores the last-known anchor from the ledger so a restart does not
// re-anchor an unchanged root.
func New(ctx context.Context, source domain.RootSource, ledger domain.AnchorLedger, interval time.Duration, logger *zap.Logger) (*Watcher, error) {
	return NewWithClock(ctx, source, ledger, interval, logger, time.Now)
}

func NewWithClock(ctx context.Context, source domain.RootSource, ledger domain.AnchorLedger, interval time.Duration, logger *zap.Logger, clock func() time.Time) (*Watcher, error) {
	if source == nil {
		return nil, errors.New("root source is required")
	}
	if ledger == nil {
		return nil, errors.New("anchor ledger is required")
	}
	if interval <= 0 {
		return nil, errors.New("poll interval must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = time.Now
	}

	records, err := ledger.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load anchor ledger: %w", err)
	}
	var last *domain.AnchorRecord
	if len(records) > 0 {
		tail := records[len(records)-1]
		last = &tail
	}
	return &Watcher{
		source:   source,
		ledger:   ledger,
		interval: interval,
		clock:    clock,
		logger:   logger,
		last:     last,
	}, nil
}

// Run polls on a fixed interval until the context is cancelled. Fetch and
// persist failures are logged and retried on the next cycle; they never
// stop the loop.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if record, err := w.Poll(ctx); err != nil {
			w.logger.Warn("anchor cycle failed", zap.Error(err))
		} else if record != nil {
			w.logger.Info("anchored new root",
				zap.String("root", record.Root),
				zap.Uint64("size", record.Size),
				zap.String("txid", record.TxID),
			)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Poll runs one cycle. It returns the newly appended record, or nil when
// the (root, size) pair has not changed since the last anchor.
func (w *Watcher) Poll(ctx context.Context) (*domain.AnchorRecord, error) {
	current, err := w.source.FetchRoot(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch root: %w", err)
	}

	if w.last != nil && w.last.Root == current.Root && w.last.Size == current.Size {
		return nil, nil
	}

	timestamp := strconv.FormatInt(w.clock().UnixNano(), 10)
	record := domain.AnchorRecord{
		Root:           current.Root,
		Size:           current.Size,
		TimestampNanos: timestamp,
		TxID:           ComputeTxID(current.Size, current.Root, timestamp),
	}
	if err := w.ledger.Append(ctx, record); err != nil {
		return nil, fmt.Errorf("append anchor: %w", err)
	}
	w.last = &record
	return &record, nil
}

// ComputeTxID derives the commitment identifier tying an anchor to the
// exact (size, root, timestamp) it checkpoints.
func ComputeTxID(size uint64, root, timestamp string) string {
	payload := fmt.Sprintf("%d:%s:%s", size, root, timestamp)
	digest := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(digest[:])
}
