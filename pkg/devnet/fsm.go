package devnet

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/hashicorp/raft"
)

// canisterRecord is one devnet-tracked unit: its installed module hash,
// its controller set, and its cycle balance, the fields
// runtime.ManagementClient's surface needs to read back.
type canisterRecord struct {
	ModuleHash  []byte   `json:"module_hash,omitempty"`
	Controllers []string `json:"controllers,omitempty"`
	Cycles      uint64   `json:"cycles"`
	Installed   bool     `json:"installed"`
}

// command is one devnet Raft log entry, the same Op/Data shape as
// cuemby-warren's manager.Command.
type command struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data"`
}

const (
	opCreateCanister  = "create_canister"
	opInstallCode     = "install_code"
	opUninstallCode   = "uninstall_code"
	opSetControllers  = "set_controllers"
	opMintCycles      = "mint_cycles"
)

type createCanisterOp struct {
	PID           string `json:"pid"`
	InitialCycles uint64 `json:"initial_cycles"`
}

type installCodeOp struct {
	PID        string `json:"pid"`
	ModuleHash []byte `json:"module_hash"`
}

type uninstallCodeOp struct {
	PID string `json:"pid"`
}

type setControllersOp struct {
	PID         string   `json:"pid"`
	Controllers []string `json:"controllers"`
}

type mintCyclesOp struct {
	PID    string `json:"pid"`
	Amount uint64 `json:"amount"`
}

// fsm implements raft.FSM over an in-memory canister registry, applying
// log entries the same way WarrenFSM.Apply dispatches on cmd.Op.
type fsm struct {
	mu      sync.RWMutex
	records map[string]*canisterRecord
}

func newFSM() *fsm {
	return &fsm{records: make(map[string]*canisterRecord)}
}

func (f *fsm) Apply(entry *raft.Log) interface{} {
	var cmd command
	if err := json.Unmarshal(entry.Data, &cmd); err != nil {
		return fmt.Errorf("devnet: unmarshal command: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch cmd.Op {
	case opCreateCanister:
		var op createCanisterOp
		if err := json.Unmarshal(cmd.Data, &op); err != nil {
			return err
		}
		f.records[op.PID] = &canisterRecord{Cycles: op.InitialCycles}
		return nil

	case opInstallCode:
		var op installCodeOp
		if err := json.Unmarshal(cmd.Data, &op); err != nil {
			return err
		}
		rec, ok := f.records[op.PID]
		if !ok {
			return fmt.Errorf("devnet: install_code: unknown canister %s", op.PID)
		}
		rec.ModuleHash = op.ModuleHash
		rec.Installed = true
		return nil

	case opUninstallCode:
		var op uninstallCodeOp
		if err := json.Unmarshal(cmd.Data, &op); err != nil {
			return err
		}
		rec, ok := f.records[op.PID]
		if !ok {
			return fmt.Errorf("devnet: uninstall_code: unknown canister %s", op.PID)
		}
		rec.ModuleHash = nil
		rec.Installed = false
		return nil

	case opSetControllers:
		var op setControllersOp
		if err := json.Unmarshal(cmd.Data, &op); err != nil {
			return err
		}
		rec, ok := f.records[op.PID]
		if !ok {
			return fmt.Errorf("devnet: set_controllers: unknown canister %s", op.PID)
		}
		rec.Controllers = op.Controllers
		return nil

	case opMintCycles:
		var op mintCyclesOp
		if err := json.Unmarshal(cmd.Data, &op); err != nil {
			return err
		}
		rec, ok := f.records[op.PID]
		if !ok {
			return fmt.Errorf("devnet: mint_cycles: unknown canister %s", op.PID)
		}
		rec.Cycles += op.Amount
		return nil

	default:
		return fmt.Errorf("devnet: unknown command %q", cmd.Op)
	}
}

func (f *fsm) get(pid string) (canisterRecord, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	rec, ok := f.records[pid]
	if !ok {
		return canisterRecord{}, false
	}
	return *rec, true
}

// snapshot is the point-in-time FSM state Raft compacts its log against,
// the devnet analogue of WarrenSnapshot.
type snapshot struct {
	Records map[string]*canisterRecord `json:"records"`
}

func (f *fsm) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	copied := make(map[string]*canisterRecord, len(f.records))
	for pid, rec := range f.records {
		r := *rec
		copied[pid] = &r
	}
	return &snapshot{Records: copied}, nil
}

func (f *fsm) Restore(rc io.ReadCloser) error {
	defer rc.Close()
	var snap snapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return fmt.Errorf("devnet: decode snapshot: %w", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = snap.Records
	if f.records == nil {
		f.records = make(map[string]*canisterRecord)
	}
	return nil
}

func (s *snapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		if err := json.NewEncoder(sink).Encode(s); err != nil {
			return err
		}
		return sink.Close()
	}()
	if err != nil {
		sink.Cancel()
	}
	return err
}

func (s *snapshot) Release() {}

// sortedPIDs returns every tracked principal in sorted order, used by
// Host.List for deterministic devnet inspection output.
func (f *fsm) sortedPIDs() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.records))
	for pid := range f.records {
		out = append(out, pid)
	}
	sort.Strings(out)
	return out
}
