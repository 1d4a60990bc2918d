package store

import (
	"fmt"
	"sort"
)

// RegionID identifies a stable-memory region. IDs are ABI-stable once
// assigned; renumbering is forbidden post-freeze.
type RegionID uint8

const (
	MinFrameworkRegion RegionID = 5
	MaxFrameworkRegion RegionID = 60
)

// MemoryRegistryErrorKind distinguishes the two ways region registration
// can fail.
type MemoryRegistryErrorKind int

const (
	Overlap MemoryRegistryErrorKind = iota
	DuplicateID
)

func (k MemoryRegistryErrorKind) String() string {
	if k == DuplicateID {
		return "duplicate_id"
	}
	return "overlap"
}

// MemoryRegistryError reports a region registration conflict, the Go
// analogue of the framework's build-time MemoryRegistryError.
type MemoryRegistryError struct {
	Kind MemoryRegistryErrorKind
	ID   RegionID
	Name string
}

func (e *MemoryRegistryError) Error() string {
	return fmt.Sprintf("store: region %d (%s): %s", e.ID, e.Name, e.Kind)
}

type region struct {
	id   RegionID
	name string
}

var registry = map[RegionID]region{}

// RegisterRegion declares a region at package-init time. A collision is a
// build-time bug, so it panics rather than returning an error: every
// region below is registered this way before Open is ever called.
func RegisterRegion(id RegionID, name string) RegionID {
	if id < MinFrameworkRegion || id > MaxFrameworkRegion {
		panic(fmt.Sprintf("store: region %d (%s) outside reserved range [%d,%d]", id, name, MinFrameworkRegion, MaxFrameworkRegion))
	}
	if existing, ok := registry[id]; ok {
		panic(&MemoryRegistryError{Kind: DuplicateID, ID: id, Name: existing.name})
	}
	registry[id] = region{id: id, name: name}
	return id
}

// RegionInfo describes one registered stable-memory region.
type RegionInfo struct {
	ID   RegionID
	Name string
}

// RegisteredRegions returns every region declared via RegisterRegion,
// sorted by ID, backing the canic_memory_registry query endpoint
// (spec.md §6).
func RegisteredRegions() []RegionInfo {
	out := make([]RegionInfo, 0, len(registry))
	for id, r := range registry {
		out = append(out, RegionInfo{ID: id, Name: r.name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// The framework's reserved region map (spec §6): 5-12 topology, 13-15
// env/config, 16-25 auth/delegation, 26-35 observability, 36-45 intent,
// 46-48 pool, 49-58 placement, 59-60 app/subnet state.
var (
	RegionRegistry        = RegisterRegion(5, "topology.registry")
	RegionChildren        = RegisterRegion(6, "topology.children")
	RegionAppDirectory    = RegisterRegion(7, "topology.app_directory")
	RegionSubnetDirectory = RegisterRegion(8, "topology.subnet_directory")

	RegionEnv    = RegisterRegion(13, "env")
	RegionConfig = RegisterRegion(14, "config")

	RegionDelegationCert      = RegisterRegion(16, "auth.delegation_cert")
	RegionDelegatedTokenState = RegisterRegion(17, "auth.delegated_token_state")

	RegionLog          = RegisterRegion(26, "observability.log")
	RegionCycleTracker = RegisterRegion(27, "observability.cycle_tracker")

	RegionIntent = RegisterRegion(36, "intent")

	RegionPool    = RegisterRegion(46, "pool")
	RegionReserve = RegisterRegion(47, "reserve")

	RegionShardRegistry   = RegisterRegion(49, "placement.shard_registry")
	RegionAssignments     = RegisterRegion(50, "placement.assignments")
	RegionLifecyclePhase  = RegisterRegion(51, "placement.lifecycle_phase")
	RegionActiveSet       = RegisterRegion(52, "placement.active_set")
	RegionRotationTargets = RegisterRegion(53, "placement.rotation_targets")

	RegionAppState    = RegisterRegion(59, "app_state")
	RegionSubnetState = RegisterRegion(60, "subnet_state")
)
