package canpool

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/cuemby/canic/pkg/canicerr"
	"github.com/cuemby/canic/pkg/ids"
	"github.com/cuemby/canic/pkg/store"
)

// Status is a pool entry's position relative to being handed back out.
type Status int

const (
	StatusReady Status = iota
	StatusPendingReset
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusPendingReset:
		return "pending_reset"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Entry is one pool-tracked unit.
type Entry struct {
	CreatedAt     int64
	Cycles        uint64
	Role          *ids.CanisterRole
	Parent        *ids.Principal
	ModuleHash    []byte
	Status        Status
	FailureReason string
}

type wireEntry struct {
	CreatedAt     int64   `json:"created_at"`
	Cycles        uint64  `json:"cycles"`
	Role          *string `json:"role,omitempty"`
	Parent        []byte  `json:"parent,omitempty"`
	ModuleHash    []byte  `json:"module_hash,omitempty"`
	Status        int     `json:"status"`
	FailureReason string  `json:"failure_reason,omitempty"`
}

func toWire(e Entry) wireEntry {
	w := wireEntry{
		CreatedAt:     e.CreatedAt,
		Cycles:        e.Cycles,
		ModuleHash:    e.ModuleHash,
		Status:        int(e.Status),
		FailureReason: e.FailureReason,
	}
	if e.Role != nil {
		s := e.Role.String()
		w.Role = &s
	}
	if e.Parent != nil {
		w.Parent = e.Parent.Bytes()
	}
	return w
}

func fromWire(w wireEntry) (Entry, error) {
	e := Entry{
		CreatedAt:     w.CreatedAt,
		Cycles:        w.Cycles,
		ModuleHash:    w.ModuleHash,
		Status:        Status(w.Status),
		FailureReason: w.FailureReason,
	}
	if w.Role != nil {
		role := ids.CanisterRole(*w.Role)
		if err := role.Validate(); err != nil {
			return Entry{}, err
		}
		e.Role = &role
	}
	if w.Parent != nil {
		parent, err := ids.PrincipalFromBytes(w.Parent)
		if err != nil {
			return Entry{}, err
		}
		e.Parent = &parent
	}
	return e, nil
}

// Pool is the admissibility-gated canister pool, backed by one Stable
// Store region.
type Pool struct {
	s      *store.Store
	region store.RegionID
}

// New wraps s with a Pool view over region.
func New(s *store.Store, region store.RegionID) *Pool {
	return &Pool{s: s, region: region}
}

func (p *Pool) put(pid ids.Principal, e Entry) error {
	data, err := json.Marshal(toWire(e))
	if err != nil {
		return canicerr.New(canicerr.KindInfra, "canpool.put", "encode entry", err)
	}
	return p.s.Put(p.region, pid.Bytes(), data)
}

// Get returns the entry for pid, if present.
func (p *Pool) Get(pid ids.Principal) (Entry, bool, error) {
	data, err := p.s.Get(p.region, pid.Bytes())
	if err != nil {
		return Entry{}, false, err
	}
	if data == nil {
		return Entry{}, false, nil
	}
	var w wireEntry
	if err := json.Unmarshal(data, &w); err != nil {
		return Entry{}, false, canicerr.New(canicerr.KindInfra, "canpool.Get", "decode entry", err)
	}
	e, err := fromWire(w)
	return e, true, err
}

func (p *Pool) registerOrUpdate(pid ids.Principal, cycles uint64, status Status, role *ids.CanisterRole, parent *ids.Principal, moduleHash []byte, createdAt int64, reason string) error {
	existing, ok, err := p.Get(pid)
	if err != nil {
		return err
	}
	if ok {
		existing.Cycles = cycles
		existing.Status = status
		existing.FailureReason = reason
		if role != nil {
			existing.Role = role
		}
		if parent != nil {
			existing.Parent = parent
		}
		if moduleHash != nil {
			existing.ModuleHash = moduleHash
		}
		return p.put(pid, existing)
	}
	return p.put(pid, Entry{
		CreatedAt:     createdAt,
		Cycles:        cycles,
		Role:          role,
		Parent:        parent,
		ModuleHash:    moduleHash,
		Status:        status,
		FailureReason: reason,
	})
}

// RegisterReady records pid as Ready, freshly created or reused.
func (p *Pool) RegisterReady(pid ids.Principal, cycles uint64, role *ids.CanisterRole, parent *ids.Principal, moduleHash []byte, createdAt int64) error {
	return p.registerOrUpdate(pid, cycles, StatusReady, role, parent, moduleHash, createdAt, "")
}

// MarkPendingReset flips pid to PendingReset ahead of a reset sequence,
// zeroing its recorded cycle balance until the sequence reports back.
func (p *Pool) MarkPendingReset(pid ids.Principal, createdAt int64) error {
	return p.registerOrUpdate(pid, 0, StatusPendingReset, nil, nil, nil, createdAt, "")
}

// MarkReady records pid as Ready with its post-reset cycle balance.
func (p *Pool) MarkReady(pid ids.Principal, cycles uint64) error {
	return p.registerOrUpdate(pid, cycles, StatusReady, nil, nil, nil, 0, "")
}

// MarkFailed records pid as Failed with a reason, a terminal state that
// bulk import may later requeue via MarkPendingReset.
func (p *Pool) MarkFailed(pid ids.Principal, reason string) error {
	return p.registerOrUpdate(pid, 0, StatusFailed, nil, nil, nil, 0, reason)
}

// Take removes and returns the entry for pid.
func (p *Pool) Take(pid ids.Principal) (Entry, bool, error) {
	entry, ok, err := p.Get(pid)
	if err != nil || !ok {
		return Entry{}, false, err
	}
	if err := p.s.Delete(p.region, pid.Bytes()); err != nil {
		return Entry{}, false, err
	}
	return entry, true, nil
}

// ExportedEntry pairs a pooled principal with its entry.
type ExportedEntry struct {
	PID   ids.Principal
	Entry Entry
}

// Export returns every pool entry, sorted by principal.
func (p *Pool) Export() ([]ExportedEntry, error) {
	var out []ExportedEntry
	err := p.s.ForEach(p.region, func(k, v []byte) error {
		pid, err := ids.PrincipalFromBytes(k)
		if err != nil {
			return err
		}
		var w wireEntry
		if err := json.Unmarshal(v, &w); err != nil {
			return err
		}
		entry, err := fromWire(w)
		if err != nil {
			return err
		}
		out = append(out, ExportedEntry{PID: pid, Entry: entry})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PID.Less(out[j].PID) })
	return out, nil
}

// StatusCounts tallies pool entries by status.
type StatusCounts struct {
	Ready        uint64
	PendingReset uint64
	Failed       uint64
	Total        uint64
}

// Counts tallies the current pool by status.
func (p *Pool) Counts() (StatusCounts, error) {
	entries, err := p.Export()
	if err != nil {
		return StatusCounts{}, err
	}
	var c StatusCounts
	for _, e := range entries {
		switch e.Entry.Status {
		case StatusReady:
			c.Ready++
		case StatusPendingReset:
			c.PendingReset++
		case StatusFailed:
			c.Failed++
		}
	}
	c.Total = c.Ready + c.PendingReset + c.Failed
	return c, nil
}

// Network distinguishes deployment targets for the admissibility
// predicate: local devnets may reject imports the IC permits.
type Network int

const (
	NetworkIC Network = iota
	NetworkLocal
)

var (
	// ErrRegisteredInRegistry rejects importing a unit still tracked in
	// the subnet registry.
	ErrRegisteredInRegistry = errors.New("canpool: unit is still registered in the subnet registry")
	// ErrAlreadyInPool rejects importing a unit already resident in the
	// pool in a non-terminal state.
	ErrAlreadyInPool = errors.New("canpool: unit is already in the pool")
	// ErrNonImportableOnLocal rejects an import a local-network predicate
	// refused.
	ErrNonImportableOnLocal = errors.New("canpool: unit is not importable on this network")
)

// CheckAdmissible evaluates the import admissibility predicate: pid must
// not be registered in the subnet registry, and must not already be in
// the pool unless its prior attempt ended in Failed (which bulk import
// may requeue). On NetworkLocal, nonImportableLocal lets the caller plug
// in an additional network-specific rejection.
func (p *Pool) CheckAdmissible(pid ids.Principal, network Network, registeredInSubnet bool, nonImportableLocal bool) error {
	if registeredInSubnet {
		return ErrRegisteredInRegistry
	}
	entry, ok, err := p.Get(pid)
	if err != nil {
		return err
	}
	if ok && entry.Status != StatusFailed {
		return ErrAlreadyInPool
	}
	if network == NetworkLocal && nonImportableLocal {
		return ErrNonImportableOnLocal
	}
	return nil
}

// Settings is the management surface a reset sequence needs: resetting
// controllers to the pool's own set and uninstalling code before the
// unit is handed back out.
type Settings interface {
	SetControllers(ctx context.Context, pid ids.Principal, controllers []ids.Principal) error
	UninstallCode(ctx context.Context, pid ids.Principal) error
	CycleBalance(ctx context.Context, pid ids.Principal) (uint64, error)
}

// ResetIntoPool runs the reset sequence for an imported or recycled
// unit: reassign controllers to poolControllers, uninstall its code,
// then read back its cycle balance.
func ResetIntoPool(ctx context.Context, mgmt Settings, pid ids.Principal, poolControllers []ids.Principal) (uint64, error) {
	if err := mgmt.SetControllers(ctx, pid, poolControllers); err != nil {
		return 0, canicerr.New(canicerr.KindInfra, "canpool.ResetIntoPool", "set controllers", err)
	}
	if err := mgmt.UninstallCode(ctx, pid); err != nil {
		return 0, canicerr.New(canicerr.KindInfra, "canpool.ResetIntoPool", "uninstall code", err)
	}
	cycles, err := mgmt.CycleBalance(ctx, pid)
	if err != nil {
		return 0, canicerr.New(canicerr.KindInfra, "canpool.ResetIntoPool", "read cycle balance", err)
	}
	return cycles, nil
}
