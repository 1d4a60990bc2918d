package devnet

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cuemby/canic/pkg/canicerr"
	"github.com/cuemby/canic/pkg/ids"
	"github.com/cuemby/canic/pkg/runtime"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
)

// moduleHashOf hashes moduleWasm the way a real IC replica reports
// installed module hashes, so Orchestrator.Upgrade's no-op comparison
// (bytes.Equal against the target hash) behaves the same against devnet
// as it would against a live replica.
func moduleHashOf(moduleWasm []byte) []byte {
	sum := sha256.Sum256(moduleWasm)
	return sum[:]
}

// applyTimeout bounds a single raft.Raft.Apply call, the budget
// cuemby-warren's manager package allots Raft log commits.
const applyTimeout = 5 * time.Second

// Config configures a single-node devnet Host.
type Config struct {
	NodeID   string
	BindAddr string
	DataDir  string
}

// Host is the devnet reference runtime: a Raft-replicated canister
// registry plus a certified-data simulator, together implementing every
// host-collaborator interface pkg/runtime declares.
type Host struct {
	nodeID  string
	dataDir string

	raft *raft.Raft
	fsm  *fsm

	mu        sync.Mutex
	staged    map[string][]byte
	certified map[string][]byte
}

var (
	_ runtime.ManagementClient   = (*Host)(nil)
	_ runtime.CertifiedDataStore = (*Host)(nil)
	_ runtime.RandomSource       = (*Host)(nil)
)

// NewHost constructs a Host bound to cfg.DataDir, bootstrapping a
// single-node Raft cluster exactly the way cuemby-warren's
// Manager.Bootstrap does: a TCP transport, a file snapshot store, and a
// BoltDB-backed log/stable store pair.
func NewHost(cfg Config) (*Host, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, canicerr.New(canicerr.KindInfra, "devnet.NewHost", "create data dir", err)
	}

	h := &Host{
		nodeID:    cfg.NodeID,
		dataDir:   cfg.DataDir,
		fsm:       newFSM(),
		staged:    make(map[string][]byte),
		certified: make(map[string][]byte),
	}

	config := raft.DefaultConfig()
	config.LocalID = raft.ServerID(cfg.NodeID)
	config.HeartbeatTimeout = 500 * time.Millisecond
	config.ElectionTimeout = 500 * time.Millisecond
	config.LeaderLeaseTimeout = 250 * time.Millisecond

	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		return nil, canicerr.New(canicerr.KindInfra, "devnet.NewHost", "resolve bind addr", err)
	}
	transport, err := raft.NewTCPTransport(cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, canicerr.New(canicerr.KindInfra, "devnet.NewHost", "create raft transport", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(cfg.DataDir, 2, os.Stderr)
	if err != nil {
		return nil, canicerr.New(canicerr.KindInfra, "devnet.NewHost", "create snapshot store", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-log.db"))
	if err != nil {
		return nil, canicerr.New(canicerr.KindInfra, "devnet.NewHost", "create raft log store", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-stable.db"))
	if err != nil {
		return nil, canicerr.New(canicerr.KindInfra, "devnet.NewHost", "create raft stable store", err)
	}

	r, err := raft.NewRaft(config, h.fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, canicerr.New(canicerr.KindInfra, "devnet.NewHost", "create raft node", err)
	}
	h.raft = r

	future := r.BootstrapCluster(raft.Configuration{
		Servers: []raft.Server{{ID: config.LocalID, Address: transport.LocalAddr()}},
	})
	if err := future.Error(); err != nil && err != raft.ErrCantBootstrap {
		return nil, canicerr.New(canicerr.KindInfra, "devnet.NewHost", "bootstrap raft cluster", err)
	}

	return h, nil
}

func (h *Host) apply(cmd command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return canicerr.New(canicerr.KindInfra, "devnet.apply", "encode command", err)
	}
	future := h.raft.Apply(data, applyTimeout)
	if err := future.Error(); err != nil {
		return canicerr.New(canicerr.KindInfra, "devnet.apply", "raft apply", err)
	}
	if resp := future.Response(); resp != nil {
		if err, ok := resp.(error); ok {
			return canicerr.New(canicerr.KindOps, "devnet.apply", "fsm rejected command", err)
		}
	}
	return nil
}

func encodeOp(op string, data any) (command, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return command{}, canicerr.New(canicerr.KindInfra, "devnet.encodeOp", "encode op payload", err)
	}
	return command{Op: op, Data: raw}, nil
}

// CreateCanister mints a fresh random principal and applies a
// create_canister command, the devnet stand-in for the IC's
// create_canister management call.
func (h *Host) CreateCanister(ctx context.Context, initialCycles uint64) (ids.Principal, error) {
	var raw [29]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return ids.Principal{}, canicerr.New(canicerr.KindInfra, "devnet.CreateCanister", "generate principal", err)
	}
	pid, err := ids.PrincipalFromBytes(raw[:])
	if err != nil {
		return ids.Principal{}, err
	}
	cmd, err := encodeOp(opCreateCanister, createCanisterOp{PID: pid.Hex(), InitialCycles: initialCycles})
	if err != nil {
		return ids.Principal{}, err
	}
	if err := h.apply(cmd); err != nil {
		return ids.Principal{}, err
	}
	return pid, nil
}

// InstallCode records moduleWasm's hash against pid. devnet has no WASM
// runtime of its own (spec.md's domain is orchestration, not execution),
// so install/upgrade is tracked as a hash transition only; args is
// accepted to satisfy the interface and otherwise ignored.
func (h *Host) InstallCode(ctx context.Context, pid ids.Principal, moduleWasm []byte, args runtime.InstallArgs, upgrade bool) error {
	hash := moduleHashOf(moduleWasm)
	cmd, err := encodeOp(opInstallCode, installCodeOp{PID: pid.Hex(), ModuleHash: hash})
	if err != nil {
		return err
	}
	return h.apply(cmd)
}

// ModuleHash returns the hash recorded for pid's installed module, or nil
// if pid has no code installed.
func (h *Host) ModuleHash(ctx context.Context, pid ids.Principal) ([]byte, error) {
	rec, ok := h.fsm.get(pid.Hex())
	if !ok || !rec.Installed {
		return nil, nil
	}
	return rec.ModuleHash, nil
}

// SetControllers applies a set_controllers command.
func (h *Host) SetControllers(ctx context.Context, pid ids.Principal, controllers []ids.Principal) error {
	strs := make([]string, len(controllers))
	for i, c := range controllers {
		strs[i] = c.Hex()
	}
	cmd, err := encodeOp(opSetControllers, setControllersOp{PID: pid.Hex(), Controllers: strs})
	if err != nil {
		return err
	}
	return h.apply(cmd)
}

// Uninstall applies an uninstall_code command, clearing pid's module
// hash while leaving its cycle balance untouched.
func (h *Host) Uninstall(ctx context.Context, pid ids.Principal) error {
	cmd, err := encodeOp(opUninstallCode, uninstallCodeOp{PID: pid.Hex()})
	if err != nil {
		return err
	}
	return h.apply(cmd)
}

// CycleBalance reads pid's current cycle balance.
func (h *Host) CycleBalance(ctx context.Context, pid ids.Principal) (uint64, error) {
	rec, ok := h.fsm.get(pid.Hex())
	if !ok {
		return 0, canicerr.New(canicerr.KindStorage, "devnet.CycleBalance", "unknown canister", nil)
	}
	return rec.Cycles, nil
}

// MintCycles applies a mint_cycles command.
func (h *Host) MintCycles(ctx context.Context, pid ids.Principal, amount uint64) error {
	cmd, err := encodeOp(opMintCycles, mintCyclesOp{PID: pid.Hex(), Amount: amount})
	if err != nil {
		return err
	}
	return h.apply(cmd)
}

// Random32 returns 32 bytes of OS-backed entropy. The IC's replicated
// randomness beacon has no local equivalent in a single-process devnet,
// so crypto/rand stands in directly.
func (h *Host) Random32(ctx context.Context) ([32]byte, error) {
	var out [32]byte
	if _, err := rand.Read(out[:]); err != nil {
		return out, canicerr.New(canicerr.KindInfra, "devnet.Random32", "read entropy", err)
	}
	return out, nil
}

// SetSignature stages sig under key. The write is not visible to
// Signature until the next Certify call, simulating the host's
// message-boundary certification pass (spec.md §9).
func (h *Host) SetSignature(key []byte, sig []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.staged[string(key)] = append([]byte(nil), sig...)
	return nil
}

// Signature returns key's certified signature, or
// runtime.ErrCertifiedDataStale if it has only been staged, not yet
// certified.
func (h *Host) Signature(key []byte) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sig, ok := h.certified[string(key)]; ok {
		return sig, nil
	}
	if _, ok := h.staged[string(key)]; ok {
		return nil, runtime.ErrCertifiedDataStale
	}
	return nil, fmt.Errorf("devnet: no signature staged for key")
}

// Clear drops every staged and certified signature.
func (h *Host) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.staged = make(map[string][]byte)
	h.certified = make(map[string][]byte)
}

// Certify promotes every staged signature to certified, the devnet
// harness's manual stand-in for the host's periodic certification tick.
func (h *Host) Certify() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for k, v := range h.staged {
		h.certified[k] = v
	}
	h.staged = make(map[string][]byte)
}

// Shutdown stops the Raft node, blocking until it has fully shut down.
func (h *Host) Shutdown() error {
	return h.raft.Shutdown().Error()
}

// ListCanisters returns every tracked principal, sorted, for canicctl's
// devnet inspection commands.
func (h *Host) ListCanisters() []string {
	return h.fsm.sortedPIDs()
}
