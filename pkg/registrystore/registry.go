package registrystore

import (
	"encoding/json"
	"sort"

	"github.com/cuemby/canic/pkg/canicerr"
	"github.com/cuemby/canic/pkg/ids"
	"github.com/cuemby/canic/pkg/store"
)

type wireRecord struct {
	Role       string  `json:"role"`
	ParentPID  *string `json:"parent_pid,omitempty"`
	ModuleHash []byte  `json:"module_hash,omitempty"`
	CreatedAt  int64   `json:"created_at"`
}

func toWire(r Record) (wireRecord, error) {
	w := wireRecord{Role: string(r.Role), ModuleHash: r.ModuleHash, CreatedAt: r.CreatedAt}
	if r.ParentPID != nil {
		s := r.ParentPID.String()
		w.ParentPID = &s
	}
	return w, nil
}

func fromWire(w wireRecord) (Record, error) {
	r := Record{Role: ids.CanisterRole(w.Role), ModuleHash: w.ModuleHash, CreatedAt: w.CreatedAt}
	if w.ParentPID != nil {
		p, err := ids.ParsePrincipal(*w.ParentPID)
		if err != nil {
			return Record{}, err
		}
		r.ParentPID = &p
	}
	return r, nil
}

// Registry is the Registry Store: a tree of CanisterRecords keyed by
// Principal, backed by a single Stable Store region.
type Registry struct {
	s      *store.Store
	region store.RegionID
}

// New wraps s with the Registry Store view over the given region
// (store.RegionRegistry for the root's own registry).
func New(s *store.Store, region store.RegionID) *Registry {
	return &Registry{s: s, region: region}
}

// RegisterRoot inserts the root's own record (no parent, no module hash).
func (r *Registry) RegisterRoot(pid ids.Principal, createdAt int64) error {
	return r.insert(pid, Record{Role: ids.RoleRoot, CreatedAt: createdAt})
}

// Register inserts a new non-root unit's record. It fails with
// canicerr.KindStorage if pid is already registered.
func (r *Registry) Register(pid ids.Principal, rec Record) error {
	if _, err := r.Get(pid); err == nil {
		return canicerr.New(canicerr.KindStorage, "registrystore.Register", "canister already registered", nil)
	}
	return r.insert(pid, rec)
}

func (r *Registry) insert(pid ids.Principal, rec Record) error {
	w, err := toWire(rec)
	if err != nil {
		return err
	}
	data, err := json.Marshal(w)
	if err != nil {
		return canicerr.New(canicerr.KindInfra, "registrystore.insert", "encode record", err)
	}
	return r.s.Put(r.region, pid.Bytes(), data)
}

// Get returns the record for pid, or a canicerr.KindStorage error if
// absent.
func (r *Registry) Get(pid ids.Principal) (Record, error) {
	data, err := r.s.Get(r.region, pid.Bytes())
	if err != nil {
		return Record{}, canicerr.New(canicerr.KindInfra, "registrystore.Get", "read record", err)
	}
	if data == nil {
		return Record{}, canicerr.New(canicerr.KindStorage, "registrystore.Get", "canister not found", nil)
	}
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return Record{}, canicerr.New(canicerr.KindInfra, "registrystore.Get", "decode record", err)
	}
	return fromWire(w)
}

// UpdateModuleHash sets the module hash for an existing record. It returns
// a canicerr.KindStorage error if pid isn't registered.
func (r *Registry) UpdateModuleHash(pid ids.Principal, moduleHash []byte) error {
	rec, err := r.Get(pid)
	if err != nil {
		return err
	}
	rec.ModuleHash = moduleHash
	return r.insert(pid, rec)
}

// Remove deletes pid's record, returning it.
func (r *Registry) Remove(pid ids.Principal) (Record, error) {
	rec, err := r.Get(pid)
	if err != nil {
		return Record{}, err
	}
	if err := r.s.Delete(r.region, pid.Bytes()); err != nil {
		return Record{}, canicerr.New(canicerr.KindInfra, "registrystore.Remove", "delete record", err)
	}
	return rec, nil
}

// Entry pairs a registered principal with its record.
type Entry struct {
	PID ids.Principal
	Rec Record
}

// All returns every (principal, record) pair, sorted by principal for a
// deterministic iteration order.
func (r *Registry) All() ([]Entry, error) {
	return r.all()
}

func (r *Registry) all() ([]Entry, error) {
	var out []Entry
	err := r.s.ForEach(r.region, func(k, v []byte) error {
		pid, err := ids.PrincipalFromBytes(k)
		if err != nil {
			return err
		}
		var w wireRecord
		if err := json.Unmarshal(v, &w); err != nil {
			return err
		}
		rec, err := fromWire(w)
		if err != nil {
			return err
		}
		out = append(out, Entry{PID: pid, Rec: rec})
		return nil
	})
	if err != nil {
		return nil, canicerr.New(canicerr.KindInfra, "registrystore.all", "iterate registry", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PID.Less(out[j].PID) })
	return out, nil
}

// Children returns the direct children of parent, one level down only.
func (r *Registry) Children(parent ids.Principal) ([]ids.Principal, error) {
	entries, err := r.all()
	if err != nil {
		return nil, err
	}
	var children []ids.Principal
	for _, e := range entries {
		if e.Rec.ParentPID != nil && *e.Rec.ParentPID == parent {
			children = append(children, e.PID)
		}
	}
	return children, nil
}

// ParentChain returns the chain of (principal, record) from root to
// target, inclusive, in that order. Traversal is bounded by registry
// cardinality: a cycle or corrupted chain that would exceed it fails with
// canicerr.KindWorkflow rather than looping forever.
func (r *Registry) ParentChain(target ids.Principal) ([]ids.Principal, error) {
	entries, err := r.all()
	if err != nil {
		return nil, err
	}
	limit := len(entries)

	var chain []ids.Principal
	seen := make(map[ids.Principal]bool, limit)
	pid := target

	for {
		if seen[pid] {
			return nil, canicerr.New(canicerr.KindWorkflow, "registrystore.ParentChain", "parent chain contains a cycle", nil)
		}
		seen[pid] = true

		rec, err := r.Get(pid)
		if err != nil {
			return nil, canicerr.New(canicerr.KindStorage, "registrystore.ParentChain", "canister not found in chain", err)
		}

		if len(seen) > limit {
			return nil, canicerr.New(canicerr.KindWorkflow, "registrystore.ParentChain", "parent chain exceeded registry size", nil)
		}

		chain = append(chain, pid)

		if rec.ParentPID == nil {
			if !rec.Role.IsRoot() {
				return nil, canicerr.New(canicerr.KindWorkflow, "registrystore.ParentChain", "parent chain did not terminate at root", nil)
			}
			break
		}
		pid = *rec.ParentPID
	}

	// reverse in place: root first, target last
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}
