package logstore

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"merklelog/internal/domain"
	"merklelog/internal/infra/merkle"
)

type stubRepo struct {
	mu       sync.Mutex
	snapshot domain.Snapshot
	saves    int
	saveErr  error
	loadErr  error
}

func (r *stubRepo) Save(_ context.Context, snapshot domain.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.snapshot = snapshot
	r.saves++
	return nil
}

func (r *stubRepo) Load(_ context.Context) (domain.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return domain.Snapshot{}, r.loadErr
	}
	return r.snapshot, nil
}

func newStore(t *testing.T, repo *stubRepo) *Store {
	t.Helper()
	store, err := New(context.Background(), repo, zap.NewNop())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestAppendAssignsSequentialIndices(t *testing.T) {
	repo := &stubRepo{}
	store := newStore(t, repo)

	payloads := []string{"first", "second", "third"}
	for i, payload := range payloads {
		resp, err := store.Append(context.Background(), payload)
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if resp.Index != uint64(i) {
			t.Fatalf("expected index %d, got %d", i, resp.Index)
		}
		if resp.Size != uint64(i+1) {
			t.Fatalf("expected size %d, got %d", i+1, resp.Size)
		}
		want := merkle.LeafHash([]byte(payload))
		if resp.Leaf != hex.EncodeToString(want[:]) {
			t.Fatalf("leaf digest does not hash the payload")
		}
	}
	if repo.saves != len(payloads) {
		t.Fatalf("expected %d persisted snapshots, got %d", len(payloads), repo.saves)
	}

	// Every stored leaf hashes its entry's payload.
	for i := uint64(0); i < store.Size(); i++ {
		entry, err := store.Entry(context.Background(), i)
		if err != nil {
			t.Fatalf("entry %d: %v", i, err)
		}
		want := merkle.LeafHash([]byte(entry.Payload))
		if entry.Leaf != hex.EncodeToString(want[:]) {
			t.Fatalf("entry %d leaf does not hash its payload", i)
		}
	}
}

func TestRehydrateFromRepository(t *testing.T) {
	repo := &stubRepo{}
	store := newStore(t, repo)
	if _, err := store.Append(context.Background(), "durable"); err != nil {
		t.Fatalf("append: %v", err)
	}
	rootBefore, err := store.CurrentRoot(context.Background())
	if err != nil {
		t.Fatalf("root: %v", err)
	}

	restored := newStore(t, repo)
	rootAfter, err := restored.CurrentRoot(context.Background())
	if err != nil {
		t.Fatalf("root after restore: %v", err)
	}
	if rootAfter != rootBefore {
		t.Fatalf("restored root %+v, want %+v", rootAfter, rootBefore)
	}
}

func TestLoadRejectsMismatchedSnapshot(t *testing.T) {
	repo := &stubRepo{snapshot: domain.Snapshot{Leaves: []string{"aa"}}}
	if _, err := New(context.Background(), repo, zap.NewNop()); !errors.Is(err, domain.ErrCorruptStorage) {
		t.Fatalf("expected ErrCorruptStorage, got %v", err)
	}
}

func TestEmptyStoreRoot(t *testing.T) {
	store := newStore(t, &stubRepo{})
	resp, err := store.CurrentRoot(context.Background())
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	if resp.Size != 0 {
		t.Fatalf("expected size 0, got %d", resp.Size)
	}
	empty := merkle.EmptyRoot()
	if resp.Root != hex.EncodeToString(empty[:]) {
		t.Fatalf("expected sentinel root, got %s", resp.Root)
	}
}

func TestProveRoundTrip(t *testing.T) {
	store := newStore(t, &stubRepo{})
	for _, payload := range []string{"a", "b", "c"} {
		if _, err := store.Append(context.Background(), payload); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	proof, err := store.Prove(context.Background(), 2)
	if err != nil {
		t.Fatalf("prove: %v", err)
	}
	if len(proof.Path) != 2 {
		t.Fatalf("expected 2-step proof, got %d steps", len(proof.Path))
	}
	resp := merkle.Verify(domain.VerifyRequest{
		Index: proof.Index,
		Leaf:  proof.Leaf,
		Path:  proof.Path,
		Root:  proof.Root,
	})
	if !resp.Valid {
		t.Fatalf("proof did not verify: %+v", resp)
	}
}

func TestProveOutOfRange(t *testing.T) {
	store := newStore(t, &stubRepo{})
	if _, err := store.Append(context.Background(), "only"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := store.Prove(context.Background(), 1); !errors.Is(err, domain.ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestCorruptLeafSurfacesStorageError(t *testing.T) {
	repo := &stubRepo{snapshot: domain.Snapshot{
		Leaves:  []string{"not-hex"},
		Entries: []domain.LogEntry{{Payload: "x", Leaf: "not-hex"}},
	}}
	store := newStore(t, repo)
	if _, err := store.CurrentRoot(context.Background()); !errors.Is(err, domain.ErrCorruptStorage) {
		t.Fatalf("expected ErrCorruptStorage from root, got %v", err)
	}
	if _, err := store.Prove(context.Background(), 0); !errors.Is(err, domain.ErrCorruptStorage) {
		t.Fatalf("expected ErrCorruptStorage from prove, got %v", err)
	}
}

// A failed durable write surfaces an error while the in-memory state has
// already advanced: memory can outrun persisted state across a crash.
func TestPersistFailureLeavesMemoryAhead(t *testing.T) {
	repo := &stubRepo{saveErr: errors.New("disk full")}
	store := newStore(t, repo)

	if _, err := store.Append(context.Background(), "lost"); err == nil {
		t.Fatal("expected persist failure")
	}
	if store.Size() != 1 {
		t.Fatalf("expected in-memory size 1 after failed persist, got %d", store.Size())
	}
	if repo.saves != 0 {
		t.Fatalf("expected no persisted snapshot, got %d", repo.saves)
	}
}

func TestConcurrentAppendsStayConsistent(t *testing.T) {
	store := newStore(t, &stubRepo{})

	const writers = 8
	const perWriter = 10
	var wg sync.WaitGroup
	indices := make(chan uint64, writers*perWriter)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				resp, err := store.Append(context.Background(), "payload")
				if err != nil {
					t.Errorf("append: %v", err)
					return
				}
				indices <- resp.Index
			}
		}(w)
	}
	wg.Wait()
	close(indices)

	if store.Size() != writers*perWriter {
		t.Fatalf("expected size %d, got %d", writers*perWriter, store.Size())
	}
	seen := make(map[uint64]bool, writers*perWriter)
	for index := range indices {
		if seen[index] {
			t.Fatalf("index %d assigned twice", index)
		}
		seen[index] = true
	}
	for i := uint64(0); i < writers*perWriter; i++ {
		if !seen[i] {
			t.Fatalf("index %d never assigned", i)
		}
	}
}

func TestAppendHonorsCancelledContext(t *testing.T) {
	store := newStore(t, &stubRepo{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Append(ctx, "late"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
