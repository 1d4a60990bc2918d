package intent

import (
	"os"
	"sync"
	"testing"

	"github.com/cuemby/canic/pkg/store"
)

func newTestStore(t *testing.T) (*Store, func()) {
	t.Helper()
	dir, err := os.MkdirTemp("", "intent-test-*")
	if err != nil {
		t.Fatal(err)
	}
	s, err := store.Open(dir)
	if err != nil {
		os.RemoveAll(dir)
		t.Fatal(err)
	}
	return New(s, store.RegionIntent), func() {
		s.Close()
		os.RemoveAll(dir)
	}
}

func TestReserveCommitUpdatesTotals(t *testing.T) {
	st, cleanup := newTestStore(t)
	defer cleanup()

	rec, err := st.Reserve("gpu-pool", 5, 100, nil)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	totals, err := st.Totals("gpu-pool")
	if err != nil {
		t.Fatal(err)
	}
	if totals.PendingCount != 1 || totals.ReservedQty != 5 || totals.CommittedQty != 0 {
		t.Fatalf("unexpected totals after reserve: %+v", totals)
	}

	if err := st.Commit(rec.ID); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	totals, err = st.Totals("gpu-pool")
	if err != nil {
		t.Fatal(err)
	}
	if totals.PendingCount != 0 || totals.ReservedQty != 0 || totals.CommittedQty != 5 {
		t.Fatalf("unexpected totals after commit: %+v", totals)
	}

	got, ok, err := st.Get(rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || got.State != StateCommitted {
		t.Fatalf("expected committed record, got %+v (ok=%v)", got, ok)
	}
}

func TestAbortReleasesReservationWithoutCrediting(t *testing.T) {
	st, cleanup := newTestStore(t)
	defer cleanup()

	rec, err := st.Reserve("gpu-pool", 7, 100, nil)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := st.Abort(rec.ID); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	totals, err := st.Totals("gpu-pool")
	if err != nil {
		t.Fatal(err)
	}
	if totals.PendingCount != 0 || totals.ReservedQty != 0 || totals.CommittedQty != 0 {
		t.Fatalf("unexpected totals after abort: %+v", totals)
	}
}

func TestCommitRejectsNonPending(t *testing.T) {
	st, cleanup := newTestStore(t)
	defer cleanup()

	rec, err := st.Reserve("gpu-pool", 1, 100, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Commit(rec.ID); err != nil {
		t.Fatal(err)
	}
	if err := st.Commit(rec.ID); err != ErrNotPending {
		t.Fatalf("expected ErrNotPending on double commit, got %v", err)
	}
}

func TestCommitUnknownIDReturnsNotFound(t *testing.T) {
	st, cleanup := newTestStore(t)
	defer cleanup()

	if err := st.Commit(999); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTotalsConsistentUnderConcurrentReservations(t *testing.T) {
	st, cleanup := newTestStore(t)
	defer cleanup()

	var wg sync.WaitGroup
	ids := make(chan uint64, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := st.Reserve("shared", 2, 0, nil)
			if err != nil {
				t.Error(err)
				return
			}
			ids <- rec.ID
		}()
	}
	wg.Wait()
	close(ids)

	totals, err := st.Totals("shared")
	if err != nil {
		t.Fatal(err)
	}
	if totals.PendingCount != 50 || totals.ReservedQty != 100 {
		t.Fatalf("expected 50 pending / 100 reserved, got %+v", totals)
	}

	seen := map[uint64]bool{}
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate intent id %d allocated under concurrency", id)
		}
		seen[id] = true
	}
}

func TestConcurrentReserveAndCommitOnCapacityOneResource(t *testing.T) {
	st, cleanup := newTestStore(t)
	defer cleanup()

	gate := make(chan struct{})
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			<-gate
			rec, err := st.ReserveWithCapacity("slot-R", 1, 1, 0, nil)
			if err != nil {
				results <- err
				return
			}
			results <- st.Commit(rec.ID)
		}()
	}
	close(gate)

	var committed, blocked int
	for i := 0; i < 2; i++ {
		switch err := <-results; err {
		case nil:
			committed++
		case ErrCapacityReached:
			blocked++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if committed != 1 || blocked != 1 {
		t.Fatalf("expected exactly one commit and one capacity rejection, got committed=%d blocked=%d", committed, blocked)
	}

	totals, err := st.Totals("slot-R")
	if err != nil {
		t.Fatal(err)
	}
	if totals.CommittedQty != 1 || totals.PendingCount != 0 || totals.ReservedQty != 0 {
		t.Fatalf("unexpected totals after race: %+v", totals)
	}
}

func TestPendingEntriesFiltersToPendingState(t *testing.T) {
	st, cleanup := newTestStore(t)
	defer cleanup()

	a, err := st.Reserve("pool", 1, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := st.Reserve("pool", 1, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Commit(a.ID); err != nil {
		t.Fatal(err)
	}

	pending, err := st.PendingEntries()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ID != b.ID {
		t.Fatalf("expected only %d pending, got %+v", b.ID, pending)
	}
}
