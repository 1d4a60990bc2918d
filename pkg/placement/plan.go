package placement

import (
	"sort"

	"github.com/cuemby/canic/pkg/ids"
)

// PlanState is the outcome of a placement decision.
type PlanState int

const (
	AlreadyAssigned PlanState = iota
	UseExisting
	CreateAllowed
	CreateBlocked
)

// BlockedReason explains a CreateBlocked outcome.
type BlockedReason int

const (
	ReasonNone BlockedReason = iota
	ReasonPoolAtCapacity
	ReasonNoFreeSlots
	ReasonPolicyViolation
)

// Plan is the result of a dry-run placement decision. It never mutates
// anything; callers translate it into registry operations.
type Plan struct {
	State          PlanState
	TargetPID      *ids.Principal
	TargetSlot     *uint32
	BlockedReason  BlockedReason
	BlockedMessage string
	UtilizationPct uint32
	ActiveCount    uint32
	TotalCapacity  uint64
	TotalUsed      uint64
}

// ShardCandidate is one pool-scoped shard entry as seen by the planner.
type ShardCandidate struct {
	PID      ids.Principal
	Slot     uint32
	Capacity uint32
	Count    uint32
}

// Input is the full set of explicit inputs the planner needs; it performs
// no I/O and reads none of this from global state.
type Input struct {
	Pool              ids.BoundedString32
	PartitionKey      ids.BoundedString128
	MaxShards         uint32
	Entries           []ShardCandidate
	CurrentAssignment *ids.Principal
	RotationTargetSet map[ids.Principal]bool
	ActiveSet         map[ids.Principal]bool
	ExcludePID        *ids.Principal
}

const unassignedSlot uint32 = ^uint32(0)

// Assign computes a placement Plan for in.PartitionKey within in.Pool.
func Assign(in Input) Plan {
	slotPlan := planSlotBackfill(in.Entries, in.MaxShards)
	metrics := computeMetrics(in.Entries, in.ActiveSet)

	if in.CurrentAssignment != nil && !principalEquals(in.ExcludePID, *in.CurrentAssignment) {
		pid := *in.CurrentAssignment
		var slot *uint32
		if s, ok := slotPlan.slots[pid]; ok {
			s := s
			slot = &s
		}
		return makePlan(AlreadyAssigned, &pid, slot, ReasonNone, "", metrics)
	}

	admissible := rotationOrActiveSet(in)
	var withCapacity []ShardCandidate
	for _, e := range in.Entries {
		if e.Count >= e.Capacity {
			continue
		}
		if principalEquals(in.ExcludePID, e.PID) {
			continue
		}
		if len(admissible) > 0 && !admissible[e.PID] {
			continue
		}
		withCapacity = append(withCapacity, e)
	}

	if target, ok := selectHRW(in.PartitionKey.String(), withCapacity, func(c ShardCandidate) []byte { return c.PID.Bytes() }); ok {
		pid := target.PID
		var slot *uint32
		if s, ok := slotPlan.slots[pid]; ok {
			s := s
			slot = &s
		}
		return makePlan(UseExisting, &pid, slot, ReasonNone, "", metrics)
	}

	// Lowest free slot wins, matching the backfill planner's ascending
	// hand-out; an empty pool therefore always lands its first shard at
	// slot 0.
	targetSlot := uint32(0)
	ok := false
	for s := uint32(0); s < in.MaxShards; s++ {
		if !slotPlan.occupied[s] {
			targetSlot, ok = s, true
			break
		}
	}
	if !ok {
		return makePlan(CreateBlocked, nil, nil, ReasonNoFreeSlots, "no free shard slots", metrics)
	}

	if metrics.activeCount < in.MaxShards {
		return makePlan(CreateAllowed, nil, &targetSlot, ReasonNone, "", metrics)
	}
	return makePlan(CreateBlocked, nil, &targetSlot, ReasonPoolAtCapacity, "pool at capacity", metrics)
}

func rotationOrActiveSet(in Input) map[ids.Principal]bool {
	if len(in.RotationTargetSet) > 0 {
		return in.RotationTargetSet
	}
	return in.ActiveSet
}

func principalEquals(p *ids.Principal, q ids.Principal) bool {
	return p != nil && *p == q
}

// PlanSlotBackfill computes the pid→slot mapping for entries still
// holding the unassigned sentinel: unassigned entries sorted by pid take
// free slots in ascending order, one-to-one, until either runs out.
// Entries already holding a real slot are never reassigned.
func PlanSlotBackfill(entries []ShardCandidate, maxShards uint32) map[ids.Principal]uint32 {
	return planSlotBackfill(entries, maxShards).slots
}

type slotBackfillPlan struct {
	slots    map[ids.Principal]uint32
	occupied map[uint32]bool
}

// planSlotBackfill assigns real slots to entries still holding
// unassignedSlot, deterministically: sort unassigned entries by pid, then
// hand out free slots in ascending order, one-to-one, until either is
// exhausted. Entries already holding a real slot are never reassigned.
func planSlotBackfill(entries []ShardCandidate, maxShards uint32) slotBackfillPlan {
	occupied := make(map[uint32]bool, len(entries))
	var unassigned []ids.Principal
	for _, e := range entries {
		if e.Slot == unassignedSlot {
			unassigned = append(unassigned, e.PID)
		} else {
			occupied[e.Slot] = true
		}
	}
	sort.Slice(unassigned, func(i, j int) bool { return unassigned[i].Less(unassigned[j]) })

	slots := make(map[ids.Principal]uint32, len(unassigned))
	next := uint32(0)
	for _, pid := range unassigned {
		for next < maxShards && occupied[next] {
			next++
		}
		if next >= maxShards {
			break
		}
		slots[pid] = next
		occupied[next] = true
		next++
	}

	return slotBackfillPlan{slots: slots, occupied: occupied}
}

type poolMetrics struct {
	activeCount    uint32
	utilizationPct uint32
	totalCapacity  uint64
	totalUsed      uint64
}

// computeMetrics derives pool-wide utilization from every entry, but
// activeCount only counts entries whose lifecycle phase is Active, since
// that is the figure compared against max_shards when deciding whether to
// allow a new shard.
func computeMetrics(entries []ShardCandidate, activeSet map[ids.Principal]bool) poolMetrics {
	var m poolMetrics
	for _, e := range entries {
		m.totalCapacity += uint64(e.Capacity)
		m.totalUsed += uint64(e.Count)
		if activeSet[e.PID] {
			m.activeCount++
		}
	}
	if m.totalCapacity > 0 {
		m.utilizationPct = uint32(m.totalUsed * 100 / m.totalCapacity)
	}
	return m
}

func makePlan(state PlanState, pid *ids.Principal, slot *uint32, reason BlockedReason, msg string, m poolMetrics) Plan {
	return Plan{
		State:          state,
		TargetPID:      pid,
		TargetSlot:     slot,
		BlockedReason:  reason,
		BlockedMessage: msg,
		UtilizationPct: m.utilizationPct,
		ActiveCount:    m.activeCount,
		TotalCapacity:  m.totalCapacity,
		TotalUsed:      m.totalUsed,
	}
}
