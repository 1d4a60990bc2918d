package orchestrator

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/cuemby/canic/pkg/cascade"
	"github.com/cuemby/canic/pkg/directory"
	"github.com/cuemby/canic/pkg/ids"
	"github.com/cuemby/canic/pkg/registrystore"
	"github.com/cuemby/canic/pkg/reserve"
	"github.com/cuemby/canic/pkg/runtime"
	"github.com/cuemby/canic/pkg/store"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type fakeManagement struct {
	nextPID     byte
	moduleHash  map[ids.Principal][]byte
	createCalls int
	installed   []ids.Principal
}

func newFakeManagement() *fakeManagement {
	return &fakeManagement{nextPID: 100, moduleHash: map[ids.Principal][]byte{}}
}

func (f *fakeManagement) CreateCanister(ctx context.Context, initialCycles uint64) (ids.Principal, error) {
	f.createCalls++
	f.nextPID++
	return ids.PrincipalOf(f.nextPID), nil
}

func (f *fakeManagement) InstallCode(ctx context.Context, pid ids.Principal, moduleWasm []byte, args runtime.InstallArgs, upgrade bool) error {
	f.installed = append(f.installed, pid)
	return nil
}

func (f *fakeManagement) ModuleHash(ctx context.Context, pid ids.Principal) ([]byte, error) {
	return f.moduleHash[pid], nil
}

func (f *fakeManagement) SetControllers(ctx context.Context, pid ids.Principal, controllers []ids.Principal) error {
	return nil
}

func (f *fakeManagement) Uninstall(ctx context.Context, pid ids.Principal) error { return nil }

func (f *fakeManagement) CycleBalance(ctx context.Context, pid ids.Principal) (uint64, error) {
	return 0, nil
}

func (f *fakeManagement) MintCycles(ctx context.Context, pid ids.Principal, amount uint64) error {
	return nil
}

type fakeTransport struct {
	topologySent []ids.Principal
	stateSent    []ids.Principal
}

func (f *fakeTransport) SyncState(ctx context.Context, child ids.Principal, bundle cascade.Bundle) error {
	f.stateSent = append(f.stateSent, child)
	return nil
}

func (f *fakeTransport) SyncTopology(ctx context.Context, child ids.Principal, snapshot cascade.TopologySnapshot) error {
	f.topologySent = append(f.topologySent, child)
	return nil
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *fakeManagement, *fakeTransport, ids.Principal, func()) {
	t.Helper()
	dir, err := os.MkdirTemp("", "orchestrator-test-*")
	if err != nil {
		t.Fatal(err)
	}
	s, err := store.Open(dir)
	if err != nil {
		os.RemoveAll(dir)
		t.Fatal(err)
	}
	reg := registrystore.New(s, store.RegionRegistry)
	res := reserve.New(s, store.RegionReserve)

	root := ids.PrincipalOf(1)
	if err := reg.RegisterRoot(root, 0); err != nil {
		t.Fatal(err)
	}

	management := newFakeManagement()
	transport := &fakeTransport{}
	o := &Orchestrator{
		Reg:           reg,
		Reserve:       res,
		Management:    management,
		Transport:     transport,
		Clock:         fixedClock{t: time.Unix(1000, 0)},
		InitialCycles: 1_000_000,
	}
	return o, management, transport, root, func() {
		s.Close()
		os.RemoveAll(dir)
	}
}

func TestCreateProvisionsInstallsRegistersAndCascades(t *testing.T) {
	o, management, transport, root, cleanup := newTestOrchestrator(t)
	defer cleanup()

	in := CreateInput{
		Role:       "auth_hub",
		Parent:     root,
		ModuleWasm: []byte("wasm-bytes"),
		ModuleHash: []byte{0xAB},
		Env:        []byte("env-bytes"),
		AppDirectory: directory.Snapshot{
			Entries: []directory.Entry{{Role: "auth_hub", Principal: root}},
		},
	}

	pid, err := o.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if management.createCalls != 1 {
		t.Fatalf("expected one fresh create (reserve empty), got %d", management.createCalls)
	}
	if len(management.installed) != 1 || management.installed[0] != pid {
		t.Fatalf("expected InstallCode called on %v, got %+v", pid, management.installed)
	}

	rec, err := o.Reg.Get(pid)
	if err != nil {
		t.Fatalf("registry Get: %v", err)
	}
	if rec.ParentPID == nil || *rec.ParentPID != root {
		t.Fatalf("expected parent %v, got %+v", root, rec.ParentPID)
	}
	if rec.Role != "auth_hub" {
		t.Fatalf("expected role auth_hub, got %q", rec.Role)
	}

	if len(transport.topologySent) != 1 || transport.topologySent[0] != pid {
		t.Fatalf("expected topology cascade to new unit, got %+v", transport.topologySent)
	}
	if len(transport.stateSent) != 1 || transport.stateSent[0] != pid {
		t.Fatalf("expected state cascade to new unit, got %+v", transport.stateSent)
	}
}

func TestCreateUsesReserveBeforeCreatingFresh(t *testing.T) {
	o, management, _, root, cleanup := newTestOrchestrator(t)
	defer cleanup()

	reserved := ids.PrincipalOf(77)
	if err := o.Reserve.Register(reserved, reserve.Entry{CreatedAt: 1}); err != nil {
		t.Fatal(err)
	}

	pid, err := o.Create(context.Background(), CreateInput{
		Role:       "shard_hub",
		Parent:     root,
		ModuleWasm: []byte("wasm"),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if pid != reserved {
		t.Fatalf("expected reserved pid %v to be used, got %v", reserved, pid)
	}
	if management.createCalls != 0 {
		t.Fatalf("expected no fresh CreateCanister call, got %d", management.createCalls)
	}
}

func TestCreateRejectsUnknownParent(t *testing.T) {
	o, _, _, _, cleanup := newTestOrchestrator(t)
	defer cleanup()

	_, err := o.Create(context.Background(), CreateInput{
		Role:       "auth_hub",
		Parent:     ids.PrincipalOf(250),
		ModuleWasm: []byte("wasm"),
	})
	if err != ErrParentNotFound {
		t.Fatalf("expected ErrParentNotFound, got %v", err)
	}
}

func TestUpgradeNoOpsWhenHashMatches(t *testing.T) {
	o, management, _, root, cleanup := newTestOrchestrator(t)
	defer cleanup()

	pid, err := o.Create(context.Background(), CreateInput{
		Role:       "auth_hub",
		Parent:     root,
		ModuleWasm: []byte("v1"),
		ModuleHash: []byte{0x01},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	management.moduleHash[pid] = []byte{0x01}

	err = o.Upgrade(context.Background(), UpgradeInput{
		PID:              pid,
		ModuleWasm:       []byte("v1"),
		TargetModuleHash: []byte{0x01},
	})
	if err != nil {
		t.Fatalf("Upgrade: %v", err)
	}
	if len(management.installed) != 1 {
		t.Fatalf("expected no additional InstallCode call on no-op upgrade, got %d installs", len(management.installed))
	}
}

func TestUpgradeInstallsAndPersistsNewHash(t *testing.T) {
	o, management, _, root, cleanup := newTestOrchestrator(t)
	defer cleanup()

	pid, err := o.Create(context.Background(), CreateInput{
		Role:       "auth_hub",
		Parent:     root,
		ModuleWasm: []byte("v1"),
		ModuleHash: []byte{0x01},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	management.moduleHash[pid] = []byte{0x01}

	newHash := []byte{0x02}

	err = o.Upgrade(context.Background(), UpgradeInput{
		PID:              pid,
		ModuleWasm:       []byte("v2"),
		TargetModuleHash: newHash,
	})
	if err != nil {
		t.Fatalf("Upgrade: %v", err)
	}

	rec, err := o.Reg.Get(pid)
	if err != nil {
		t.Fatal(err)
	}
	if string(rec.ModuleHash) != string(newHash) {
		t.Fatalf("expected persisted hash %x, got %x", newHash, rec.ModuleHash)
	}
}

func TestUpgradeRejectsParentMismatch(t *testing.T) {
	o, _, _, root, cleanup := newTestOrchestrator(t)
	defer cleanup()

	pid, err := o.Create(context.Background(), CreateInput{
		Role:       "auth_hub",
		Parent:     root,
		ModuleWasm: []byte("v1"),
		ModuleHash: []byte{0x01},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	wrongParent := ids.PrincipalOf(222)
	err = o.Upgrade(context.Background(), UpgradeInput{
		PID:              pid,
		ExpectedParent:   &wrongParent,
		ModuleWasm:       []byte("v2"),
		TargetModuleHash: []byte{0x02},
	})
	if err != ErrParentMismatch {
		t.Fatalf("expected ErrParentMismatch, got %v", err)
	}
}
