package sharding

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/cuemby/canic/pkg/canicerr"
	"github.com/cuemby/canic/pkg/ids"
	"github.com/cuemby/canic/pkg/store"
)

// UnassignedSlot is the sentinel slot value meaning "no slot assigned".
const UnassignedSlot uint32 = math.MaxUint32

// ShardEntry is one shard's registry record.
type ShardEntry struct {
	Pool      ids.BoundedString32
	Slot      uint32
	Capacity  uint32
	Count     uint32
	Role      ids.CanisterRole
	CreatedAt int64
}

// ShardKey identifies a tenant's assignment slot within a pool.
type ShardKey struct {
	Pool         ids.BoundedString32
	PartitionKey ids.BoundedString128
}

func entryKey(pid ids.Principal) []byte {
	return pid.Bytes()
}

// assignmentKey is `[len(pool)] ∥ pool ∥ tenant`; the length prefix lets
// iteration split the two bounded strings back apart.
func assignmentKey(pool ids.BoundedString32, tenant ids.BoundedString128) []byte {
	p := []byte(pool.String())
	t := []byte(tenant.String())
	buf := make([]byte, 0, 1+len(p)+len(t))
	buf = append(buf, byte(len(p)))
	buf = append(buf, p...)
	buf = append(buf, t...)
	return buf
}

// Registry is the Sharding Registry: shard entries in one Stable Store
// region, tenant→shard assignments in a second.
type Registry struct {
	s            *store.Store
	entryRegion  store.RegionID
	assignRegion store.RegionID
}

// New wraps s with the Sharding Registry view over the entry and
// assignment regions.
func New(s *store.Store, entryRegion, assignRegion store.RegionID) *Registry {
	return &Registry{s: s, entryRegion: entryRegion, assignRegion: assignRegion}
}

func (r *Registry) putEntry(pid ids.Principal, e ShardEntry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return canicerr.New(canicerr.KindInfra, "sharding.putEntry", "encode shard entry", err)
	}
	return r.s.Put(r.entryRegion, entryKey(pid), data)
}

// Get returns the shard entry for pid, if present.
func (r *Registry) Get(pid ids.Principal) (ShardEntry, bool, error) {
	data, err := r.s.Get(r.entryRegion, entryKey(pid))
	if err != nil {
		return ShardEntry{}, false, canicerr.New(canicerr.KindInfra, "sharding.Get", "read shard entry", err)
	}
	if data == nil {
		return ShardEntry{}, false, nil
	}
	var e ShardEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return ShardEntry{}, false, canicerr.New(canicerr.KindInfra, "sharding.Get", "decode shard entry", err)
	}
	return e, true, nil
}

// Create registers a new shard entry. A non-unassigned slot that is
// already occupied within the pool fails with canicerr.KindStorage.
func (r *Registry) Create(pid ids.Principal, pool ids.BoundedString32, slot uint32, role ids.CanisterRole, capacity uint32, createdAt int64) error {
	if slot != UnassignedSlot {
		if occupant, ok, err := r.findSlotOccupant(pool, slot, pid); err != nil {
			return err
		} else if ok {
			return canicerr.New(canicerr.KindStorage, "sharding.Create", "slot already assigned to shard "+occupant.String(), nil)
		}
	}
	return r.putEntry(pid, ShardEntry{Pool: pool, Slot: slot, Capacity: capacity, Role: role, CreatedAt: createdAt})
}

// SetSlot updates a shard entry's slot index, rejecting a collision with
// another shard's slot in the same pool.
func (r *Registry) SetSlot(pid ids.Principal, slot uint32) error {
	entry, ok, err := r.Get(pid)
	if err != nil {
		return err
	}
	if !ok {
		return canicerr.New(canicerr.KindStorage, "sharding.SetSlot", "shard not found", nil)
	}
	if slot != UnassignedSlot {
		if occupant, occupied, err := r.findSlotOccupant(entry.Pool, slot, pid); err != nil {
			return err
		} else if occupied {
			return canicerr.New(canicerr.KindStorage, "sharding.SetSlot", "slot already assigned to shard "+occupant.String(), nil)
		}
	}
	entry.Slot = slot
	return r.putEntry(pid, entry)
}

func (r *Registry) findSlotOccupant(pool ids.BoundedString32, slot uint32, exclude ids.Principal) (ids.Principal, bool, error) {
	all, err := r.Export()
	if err != nil {
		return ids.Principal{}, false, err
	}
	for _, e := range all {
		if e.PID == exclude {
			continue
		}
		if e.Entry.Pool == pool && e.Entry.Slot == slot {
			return e.PID, true, nil
		}
	}
	return ids.Principal{}, false, nil
}

// ExportedEntry pairs a shard principal with its entry.
type ExportedEntry struct {
	PID   ids.Principal
	Entry ShardEntry
}

// Export returns every shard entry, in principal order.
func (r *Registry) Export() ([]ExportedEntry, error) {
	var out []ExportedEntry
	err := r.s.ForEach(r.entryRegion, func(k, v []byte) error {
		pid, err := ids.PrincipalFromBytes(k)
		if err != nil {
			return err
		}
		var e ShardEntry
		if err := json.Unmarshal(v, &e); err != nil {
			return err
		}
		out = append(out, ExportedEntry{PID: pid, Entry: e})
		return nil
	})
	if err != nil {
		return nil, canicerr.New(canicerr.KindInfra, "sharding.Export", "iterate shard entries", err)
	}
	return out, nil
}

// Assign points tenant at shard, enforcing that shard exists and belongs
// to pool, and maintaining the derived per-shard count. Reassigning the
// same tenant to the same shard is a no-op.
func (r *Registry) Assign(pool ids.BoundedString32, tenant ids.BoundedString128, shard ids.Principal) error {
	entry, ok, err := r.Get(shard)
	if err != nil {
		return err
	}
	if !ok {
		return canicerr.New(canicerr.KindStorage, "sharding.Assign", "shard not found", nil)
	}
	if entry.Pool != pool {
		return canicerr.New(canicerr.KindPolicy, "sharding.Assign", "shard belongs to a different pool", nil)
	}

	key := assignmentKey(pool, tenant)
	current, err := r.s.Get(r.assignRegion, key)
	if err != nil {
		return canicerr.New(canicerr.KindInfra, "sharding.Assign", "read assignment", err)
	}
	if current != nil {
		currentPID, err := ids.PrincipalFromBytes(current)
		if err != nil {
			return canicerr.New(canicerr.KindInfra, "sharding.Assign", "decode assignment", err)
		}
		if currentPID == shard {
			return nil
		}
		if oldEntry, ok, err := r.Get(currentPID); err != nil {
			return err
		} else if ok {
			oldEntry.Count = saturatingSub(oldEntry.Count, 1)
			if err := r.putEntry(currentPID, oldEntry); err != nil {
				return err
			}
		}
	}

	if err := r.s.Put(r.assignRegion, key, shard.Bytes()); err != nil {
		return canicerr.New(canicerr.KindInfra, "sharding.Assign", "write assignment", err)
	}
	entry.Count = saturatingAdd(entry.Count, 1)
	return r.putEntry(shard, entry)
}

// Unassign removes tenant's assignment, if present, decrementing its
// shard's count. It returns the shard principal that previously held the
// assignment.
func (r *Registry) Unassign(pool ids.BoundedString32, tenant ids.BoundedString128) (ids.Principal, bool, error) {
	key := assignmentKey(pool, tenant)
	current, err := r.s.Get(r.assignRegion, key)
	if err != nil {
		return ids.Principal{}, false, canicerr.New(canicerr.KindInfra, "sharding.Unassign", "read assignment", err)
	}
	if current == nil {
		return ids.Principal{}, false, nil
	}
	shard, err := ids.PrincipalFromBytes(current)
	if err != nil {
		return ids.Principal{}, false, canicerr.New(canicerr.KindInfra, "sharding.Unassign", "decode assignment", err)
	}
	if err := r.s.Delete(r.assignRegion, key); err != nil {
		return ids.Principal{}, false, canicerr.New(canicerr.KindInfra, "sharding.Unassign", "delete assignment", err)
	}
	if entry, ok, err := r.Get(shard); err != nil {
		return ids.Principal{}, false, err
	} else if ok {
		entry.Count = saturatingSub(entry.Count, 1)
		if err := r.putEntry(shard, entry); err != nil {
			return ids.Principal{}, false, err
		}
	}
	return shard, true, nil
}

// TenantShard returns the shard currently assigned to tenant within pool.
func (r *Registry) TenantShard(pool ids.BoundedString32, tenant ids.BoundedString128) (ids.Principal, bool, error) {
	data, err := r.s.Get(r.assignRegion, assignmentKey(pool, tenant))
	if err != nil {
		return ids.Principal{}, false, canicerr.New(canicerr.KindInfra, "sharding.TenantShard", "read assignment", err)
	}
	if data == nil {
		return ids.Principal{}, false, nil
	}
	pid, err := ids.PrincipalFromBytes(data)
	return pid, true, err
}

// Assignment pairs a partition key with the shard it is assigned to.
type Assignment struct {
	PartitionKey ids.BoundedString128
	Shard        ids.Principal
}

// AssignmentsForPool enumerates every tenant assignment within pool,
// sorted by partition key for test determinism. Iteration order is not
// part of the observable contract; callers must not depend on it being
// stable across releases.
func (r *Registry) AssignmentsForPool(pool ids.BoundedString32) ([]Assignment, error) {
	var out []Assignment
	err := r.s.ForEach(r.assignRegion, func(k, v []byte) error {
		if len(k) == 0 {
			return nil
		}
		poolLen := int(k[0])
		if len(k) < 1+poolLen || string(k[1:1+poolLen]) != pool.String() {
			return nil
		}
		tenant, err := ids.NewBoundedString128(string(k[1+poolLen:]))
		if err != nil {
			return err
		}
		shard, err := ids.PrincipalFromBytes(v)
		if err != nil {
			return err
		}
		out = append(out, Assignment{PartitionKey: tenant, Shard: shard})
		return nil
	})
	if err != nil {
		return nil, canicerr.New(canicerr.KindInfra, "sharding.AssignmentsForPool", "iterate assignments", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PartitionKey.String() < out[j].PartitionKey.String() })
	return out, nil
}

// SlotForShard returns the slot index registered for shard within pool.
func (r *Registry) SlotForShard(pool ids.BoundedString32, shard ids.Principal) (uint32, bool, error) {
	e, ok, err := r.Get(shard)
	if err != nil || !ok || e.Pool != pool {
		return 0, false, err
	}
	return e.Slot, true, nil
}

// TenantsInShard lists every partition key currently assigned to shard
// within pool.
func (r *Registry) TenantsInShard(pool ids.BoundedString32, shard ids.Principal) ([]ids.BoundedString128, error) {
	var out []ids.BoundedString128
	err := r.s.ForEach(r.assignRegion, func(k, v []byte) error {
		if len(k) == 0 {
			return nil
		}
		poolLen := int(k[0])
		if len(k) < 1+poolLen {
			return nil
		}
		if string(k[1:1+poolLen]) != pool.String() {
			return nil
		}
		pid, err := ids.PrincipalFromBytes(v)
		if err != nil {
			return err
		}
		if pid != shard {
			return nil
		}
		tenant, err := ids.NewBoundedString128(string(k[1+poolLen:]))
		if err != nil {
			return err
		}
		out = append(out, tenant)
		return nil
	})
	if err != nil {
		return nil, canicerr.New(canicerr.KindInfra, "sharding.TenantsInShard", "iterate assignments", err)
	}
	return out, nil
}

func saturatingSub(a, b uint32) uint32 {
	if a < b {
		return 0
	}
	return a - b
}

func saturatingAdd(a, b uint32) uint32 {
	if a > math.MaxUint32-b {
		return math.MaxUint32
	}
	return a + b
}
