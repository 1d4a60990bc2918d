package rpc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cuemby/canic/pkg/cascade"
	"github.com/cuemby/canic/pkg/ids"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type fakeRandomSource struct {
	b   [32]byte
	err error
}

func (f fakeRandomSource) Random32(ctx context.Context) ([32]byte, error) { return f.b, f.err }

func TestNewRequestIDPrefersEntropySource(t *testing.T) {
	want := [32]byte{1, 2, 3}
	id, err := NewRequestID(context.Background(), fakeRandomSource{b: want}, 100, 1, ids.PrincipalOf(1), ids.PrincipalOf(2))
	if err != nil {
		t.Fatal(err)
	}
	if RequestID(want) != id {
		t.Fatalf("expected entropy-sourced id %v, got %v", want, id)
	}
}

func TestNewRequestIDFallsBackWhenSourceUnavailable(t *testing.T) {
	caller, self := ids.PrincipalOf(1), ids.PrincipalOf(2)
	id1, err := NewRequestID(context.Background(), nil, 100, 1, caller, self)
	if err != nil {
		t.Fatal(err)
	}
	id2, err := NewRequestID(context.Background(), nil, 100, 1, caller, self)
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 {
		t.Fatalf("expected deterministic fallback to be reproducible, got %v != %v", id1, id2)
	}

	id3, err := NewRequestID(context.Background(), nil, 100, 2, caller, self)
	if err != nil {
		t.Fatal(err)
	}
	if id1 == id3 {
		t.Fatal("expected different nonce to change the fallback id")
	}
}

func TestNewRequestIDFallsBackWhenSourceErrors(t *testing.T) {
	id, err := NewRequestID(context.Background(), fakeRandomSource{err: errors.New("beacon unreachable")}, 100, 1, ids.PrincipalOf(1), ids.PrincipalOf(2))
	if err != nil {
		t.Fatal(err)
	}
	if id == (RequestID{}) {
		t.Fatal("expected a non-zero deterministic fallback id")
	}
}

func TestCheckResponseKindRejectsMismatch(t *testing.T) {
	resp := Response{Kind: KindUpgradeCanister, UpgradeCanister: &UpgradeCanisterResponse{}}
	if err := CheckResponseKind(KindCreateCanister, resp); !errors.Is(err, ErrInvalidResponseType) {
		t.Fatalf("expected ErrInvalidResponseType, got %v", err)
	}
}

func TestCheckResponseKindAcceptsErrorResponses(t *testing.T) {
	resp := Response{Kind: KindCreateCanister, ErrMessage: "parent not found"}
	if err := CheckResponseKind(KindCreateCanister, resp); err != nil {
		t.Fatalf("error response with matching kind should validate, got %v", err)
	}
}

func TestDedupReturnsCachedResponseOnExactReplay(t *testing.T) {
	d := NewDedup(30)
	now := time.Unix(1000, 0)
	id := RequestID{9}
	resp := Response{Kind: KindCreateCanister, CreateCanister: &CreateCanisterResponse{PID: ids.PrincipalOf(5)}}

	if _, hit, err := d.Check(now, id, "fp-a"); err != nil || hit {
		t.Fatalf("expected miss on first check, got hit=%v err=%v", hit, err)
	}
	d.Record(now, id, "fp-a", 10, resp)

	got, hit, err := d.Check(now.Add(2*time.Second), id, "fp-a")
	if err != nil {
		t.Fatal(err)
	}
	if !hit {
		t.Fatal("expected a cache hit on exact replay")
	}
	if got.CreateCanister.PID != resp.CreateCanister.PID {
		t.Fatalf("expected cached response, got %+v", got)
	}
}

func TestDedupRejectsConflictingReplay(t *testing.T) {
	d := NewDedup(30)
	now := time.Unix(1000, 0)
	id := RequestID{9}
	d.Record(now, id, "fp-a", 10, Response{Kind: KindCreateCanister})

	if _, _, err := d.Check(now, id, "fp-b"); !errors.Is(err, ErrConflictingDuplicate) {
		t.Fatalf("expected ErrConflictingDuplicate, got %v", err)
	}
}

func TestDedupEvictsAfterWindowElapses(t *testing.T) {
	d := NewDedup(5)
	now := time.Unix(1000, 0)
	id := RequestID{9}
	d.Record(now, id, "fp-a", 5, Response{Kind: KindCreateCanister})

	if _, hit, err := d.Check(now.Add(10*time.Second), id, "fp-a"); err != nil || hit {
		t.Fatalf("expected the entry to have been evicted, got hit=%v err=%v", hit, err)
	}
	if d.Len() != 0 {
		t.Fatalf("expected evicted entry to be removed from the map, len=%d", d.Len())
	}
}

func TestDedupWidensWindowToMinimum(t *testing.T) {
	d := NewDedup(60)
	now := time.Unix(1000, 0)
	id := RequestID{9}
	d.Record(now, id, "fp-a", 5, Response{Kind: KindCreateCanister})

	if _, hit, err := d.Check(now.Add(30*time.Second), id, "fp-a"); err != nil || !hit {
		t.Fatalf("expected the minimum window to keep the entry alive past ttl_seconds, got hit=%v err=%v", hit, err)
	}
}

type fakeHandler struct {
	createCalls int
	createErr   error
}

func (h *fakeHandler) CreateCanister(ctx context.Context, req CreateCanisterRequest) (CreateCanisterResponse, error) {
	h.createCalls++
	if h.createErr != nil {
		return CreateCanisterResponse{}, h.createErr
	}
	return CreateCanisterResponse{PID: ids.PrincipalOf(byte(h.createCalls))}, nil
}

func (h *fakeHandler) UpgradeCanister(ctx context.Context, req UpgradeCanisterRequest) (UpgradeCanisterResponse, error) {
	return UpgradeCanisterResponse{}, nil
}

func (h *fakeHandler) MintCycles(ctx context.Context, req CyclesRequest) (CyclesResponse, error) {
	return CyclesResponse{}, nil
}

func (h *fakeHandler) IssueDelegation(ctx context.Context, req IssueDelegationRequest) (IssueDelegationResponse, error) {
	return IssueDelegationResponse{ProofJSON: []byte("{}")}, nil
}

func TestServiceDispatchDeduplicatesByRequestID(t *testing.T) {
	handler := &fakeHandler{}
	svc := &Service{Handler: handler, Dedup: NewDedup(30), Clock: fixedClock{time.Unix(1000, 0)}}

	req := Request{
		Meta:           RootRequestMetadata{RequestID: RequestID{1}, TTLSeconds: 30},
		Kind:           KindCreateCanister,
		CreateCanister: &CreateCanisterRequest{Role: "app", Parent: ids.PrincipalOf(1)},
	}

	first, err := svc.Dispatch(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Dispatch(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if handler.createCalls != 1 {
		t.Fatalf("expected the handler to execute exactly once, ran %d times", handler.createCalls)
	}
	if first.CreateCanister.PID != second.CreateCanister.PID {
		t.Fatal("expected the replayed dispatch to return the identical cached response")
	}
}

func TestServiceDispatchRejectsMismatchedVariant(t *testing.T) {
	svc := &Service{Handler: &fakeHandler{}, Clock: fixedClock{time.Unix(1000, 0)}}
	req := Request{Kind: KindCreateCanister}

	resp, err := svc.Dispatch(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.ErrMessage == "" {
		t.Fatal("expected a nil CreateCanister field to surface as an error response")
	}
}

type fakeStateReceiver struct {
	receivedCaller ids.Principal
	receivedBundle cascade.Bundle
}

func (f *fakeStateReceiver) ReceiveState(ctx context.Context, caller ids.Principal, bundle cascade.Bundle) error {
	f.receivedCaller = caller
	f.receivedBundle = bundle
	return nil
}

func (f *fakeStateReceiver) ReceiveTopology(ctx context.Context, caller ids.Principal, snapshot cascade.TopologySnapshot) error {
	return nil
}

func TestServiceSyncStateForwardsToStateReceiver(t *testing.T) {
	receiver := &fakeStateReceiver{}
	svc := &Service{State: receiver}
	caller := ids.PrincipalOf(7)
	bundle := cascade.Bundle{AppState: []byte("hello")}

	if _, err := svc.SyncState(context.Background(), syncStateCall{Caller: caller, Bundle: bundle}); err != nil {
		t.Fatal(err)
	}
	if receiver.receivedCaller != caller {
		t.Fatalf("expected caller %s, got %s", caller, receiver.receivedCaller)
	}
	if string(receiver.receivedBundle.AppState) != "hello" {
		t.Fatalf("expected bundle to be forwarded, got %+v", receiver.receivedBundle)
	}
}

func TestServiceSyncStateFailsWithoutReceiver(t *testing.T) {
	svc := &Service{}
	if _, err := svc.SyncState(context.Background(), syncStateCall{}); !errors.Is(err, ErrInvalidResponseType) {
		t.Fatalf("expected ErrInvalidResponseType, got %v", err)
	}
}

func TestFingerprintIsStableAndKindSensitive(t *testing.T) {
	reqA := Request{Kind: KindCreateCanister, CreateCanister: &CreateCanisterRequest{Role: "app", Parent: ids.PrincipalOf(1)}}
	reqB := Request{Kind: KindCreateCanister, CreateCanister: &CreateCanisterRequest{Role: "app", Parent: ids.PrincipalOf(1)}}
	reqC := Request{Kind: KindCreateCanister, CreateCanister: &CreateCanisterRequest{Role: "app", Parent: ids.PrincipalOf(2)}}

	fpA, err := Fingerprint(reqA)
	if err != nil {
		t.Fatal(err)
	}
	fpB, err := Fingerprint(reqB)
	if err != nil {
		t.Fatal(err)
	}
	fpC, err := Fingerprint(reqC)
	if err != nil {
		t.Fatal(err)
	}
	if fpA != fpB {
		t.Fatal("expected identical requests to fingerprint identically")
	}
	if fpA == fpC {
		t.Fatal("expected different requests to fingerprint differently")
	}
}

func TestEntropyPoolFallsThroughBeforeReseed(t *testing.T) {
	want := [32]byte{4, 5, 6}
	pool := NewEntropyPool(fakeRandomSource{b: want})
	got, err := pool.Random32(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("expected fallthrough to the underlying source, got %v", got)
	}
}

func TestEntropyPoolDerivesFromSeedAfterReseed(t *testing.T) {
	pool := NewEntropyPool(fakeRandomSource{b: [32]byte{1}})
	if err := pool.Reseed(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Once seeded, draws derive from the cached seed and never reach the
	// underlying source again until the next reseed.
	pool.src = fakeRandomSource{err: errors.New("beacon unreachable")}
	first, err := pool.Random32(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	second, err := pool.Random32(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Fatal("expected consecutive draws from one seed to differ")
	}
}

func TestEntropyPoolDrawsAreDeterministicPerSeedAndCounter(t *testing.T) {
	a := NewEntropyPool(fakeRandomSource{b: [32]byte{9}})
	b := NewEntropyPool(fakeRandomSource{b: [32]byte{9}})
	if err := a.Reseed(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := b.Reseed(context.Background()); err != nil {
		t.Fatal(err)
	}
	av, _ := a.Random32(context.Background())
	bv, _ := b.Random32(context.Background())
	if av != bv {
		t.Fatal("expected identical seed+counter to derive identical values")
	}
}
