package reserve

import (
	"encoding/json"
	"sort"

	"github.com/cuemby/canic/pkg/canicerr"
	"github.com/cuemby/canic/pkg/ids"
	"github.com/cuemby/canic/pkg/store"
)

// Entry is the metadata recorded for a reserved, empty unit.
type Entry struct {
	CreatedAt  int64
	Cycles     uint64
	Role       *ids.CanisterRole
	Parent     *ids.Principal
	ModuleHash []byte
}

type wireEntry struct {
	CreatedAt  int64   `json:"created_at"`
	Cycles     uint64  `json:"cycles"`
	Role       *string `json:"role,omitempty"`
	Parent     []byte  `json:"parent,omitempty"`
	ModuleHash []byte  `json:"module_hash,omitempty"`
}

func toWire(e Entry) wireEntry {
	w := wireEntry{CreatedAt: e.CreatedAt, Cycles: e.Cycles, ModuleHash: e.ModuleHash}
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
	e := Entry{CreatedAt: w.CreatedAt, Cycles: w.Cycles, ModuleHash: w.ModuleHash}
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

// Reserve is the root-owned pool of not-yet-assigned empty units, backed
// by one Stable Store region.
type Reserve struct {
	s      *store.Store
	region store.RegionID
}

// New wraps s with a Reserve view over region.
func New(s *store.Store, region store.RegionID) *Reserve {
	return &Reserve{s: s, region: region}
}

// Register records pid with entry, overwriting any prior entry for pid.
func (r *Reserve) Register(pid ids.Principal, entry Entry) error {
	data, err := json.Marshal(toWire(entry))
	if err != nil {
		return canicerr.New(canicerr.KindInfra, "reserve.Register", "encode entry", err)
	}
	return r.s.Put(r.region, pid.Bytes(), data)
}

// Contains reports whether pid is currently reserved.
func (r *Reserve) Contains(pid ids.Principal) (bool, error) {
	data, err := r.s.Get(r.region, pid.Bytes())
	if err != nil {
		return false, err
	}
	return data != nil, nil
}

// Take removes and returns the entry for pid, if present.
func (r *Reserve) Take(pid ids.Principal) (Entry, bool, error) {
	data, err := r.s.Get(r.region, pid.Bytes())
	if err != nil {
		return Entry{}, false, err
	}
	if data == nil {
		return Entry{}, false, nil
	}
	var w wireEntry
	if err := json.Unmarshal(data, &w); err != nil {
		return Entry{}, false, canicerr.New(canicerr.KindInfra, "reserve.Take", "decode entry", err)
	}
	entry, err := fromWire(w)
	if err != nil {
		return Entry{}, false, err
	}
	if err := r.s.Delete(r.region, pid.Bytes()); err != nil {
		return Entry{}, false, err
	}
	return entry, true, nil
}

// ExportedEntry pairs a reserved principal with its entry.
type ExportedEntry struct {
	PID   ids.Principal
	Entry Entry
}

// Export returns every reserved entry, sorted by principal for
// deterministic iteration.
func (r *Reserve) Export() ([]ExportedEntry, error) {
	var out []ExportedEntry
	err := r.s.ForEach(r.region, func(k, v []byte) error {
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

// PopFirst removes and returns the entry with the lowest CreatedAt, or
// false if the reserve is empty.
func (r *Reserve) PopFirst() (ids.Principal, Entry, bool, error) {
	entries, err := r.Export()
	if err != nil {
		return ids.Principal{}, Entry{}, false, err
	}
	if len(entries) == 0 {
		return ids.Principal{}, Entry{}, false, nil
	}
	oldest := entries[0]
	for _, e := range entries[1:] {
		if e.Entry.CreatedAt < oldest.Entry.CreatedAt {
			oldest = e
		}
	}
	entry, ok, err := r.Take(oldest.PID)
	if err != nil || !ok {
		return ids.Principal{}, Entry{}, false, err
	}
	return oldest.PID, entry, true, nil
}

// Len returns the current reserve size.
func (r *Reserve) Len() (int, error) {
	entries, err := r.Export()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}
