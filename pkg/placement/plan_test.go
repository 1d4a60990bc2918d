package placement_test

import (
	"testing"

	"github.com/cuemby/canic/pkg/ids"
	"github.com/cuemby/canic/pkg/placement"
	"github.com/stretchr/testify/require"
)

func mustPool(t *testing.T, s string) ids.BoundedString32 {
	t.Helper()
	p, err := ids.NewBoundedString32(s)
	require.NoError(t, err)
	return p
}

func mustKey(t *testing.T, s string) ids.BoundedString128 {
	t.Helper()
	p, err := ids.NewBoundedString128(s)
	require.NoError(t, err)
	return p
}

func TestAssignEmptyPoolAllowsCreate(t *testing.T) {
	plan := placement.Assign(placement.Input{
		Pool:         mustPool(t, "poolA"),
		PartitionKey: mustKey(t, "tenant1"),
		MaxShards:    4,
	})
	require.Equal(t, placement.CreateAllowed, plan.State)
	require.NotNil(t, plan.TargetSlot)
	require.Equal(t, uint32(0), *plan.TargetSlot)
}

func TestAssignPicksLowestFreeSlot(t *testing.T) {
	a := ids.PrincipalOf(1)
	b := ids.PrincipalOf(2)
	plan := placement.Assign(placement.Input{
		Pool:         mustPool(t, "poolA"),
		PartitionKey: mustKey(t, "tenant1"),
		MaxShards:    4,
		Entries: []placement.ShardCandidate{
			{PID: a, Slot: 0, Capacity: 1, Count: 1},
			{PID: b, Slot: 2, Capacity: 1, Count: 1},
		},
		ActiveSet: map[ids.Principal]bool{a: true, b: true},
	})
	require.Equal(t, placement.CreateAllowed, plan.State)
	require.Equal(t, uint32(1), *plan.TargetSlot)
}

func TestAssignEmptyPoolWithZeroMaxShardsIsBlocked(t *testing.T) {
	plan := placement.Assign(placement.Input{
		Pool:         mustPool(t, "poolA"),
		PartitionKey: mustKey(t, "tenant1"),
		MaxShards:    0,
	})
	require.Equal(t, placement.CreateBlocked, plan.State)
	require.Equal(t, placement.ReasonNoFreeSlots, plan.BlockedReason)
}

func TestAssignAlreadyAssignedIsSticky(t *testing.T) {
	shard := ids.PrincipalOf(1)
	plan := placement.Assign(placement.Input{
		Pool:              mustPool(t, "poolA"),
		PartitionKey:      mustKey(t, "tenant1"),
		MaxShards:         4,
		CurrentAssignment: &shard,
		Entries:           []placement.ShardCandidate{{PID: shard, Slot: 0, Capacity: 10, Count: 1}},
		ActiveSet:         map[ids.Principal]bool{shard: true},
	})
	require.Equal(t, placement.AlreadyAssigned, plan.State)
	require.Equal(t, shard, *plan.TargetPID)
}

func TestAssignHidesAssignmentWhenExcluded(t *testing.T) {
	shard := ids.PrincipalOf(1)
	other := ids.PrincipalOf(2)
	plan := placement.Assign(placement.Input{
		Pool:              mustPool(t, "poolA"),
		PartitionKey:      mustKey(t, "tenant1"),
		MaxShards:         4,
		CurrentAssignment: &shard,
		ExcludePID:        &shard,
		Entries: []placement.ShardCandidate{
			{PID: shard, Slot: 0, Capacity: 10, Count: 1},
			{PID: other, Slot: 1, Capacity: 10, Count: 0},
		},
		ActiveSet: map[ids.Principal]bool{shard: true, other: true},
	})
	require.NotEqual(t, placement.AlreadyAssigned, plan.State)
}

func TestAssignFallsBackToActiveSetWhenRotationTargetEmpty(t *testing.T) {
	shard := ids.PrincipalOf(1)
	plan := placement.Assign(placement.Input{
		Pool:         mustPool(t, "poolA"),
		PartitionKey: mustKey(t, "tenant1"),
		MaxShards:    4,
		Entries:      []placement.ShardCandidate{{PID: shard, Slot: 0, Capacity: 10, Count: 0}},
		ActiveSet:    map[ids.Principal]bool{shard: true},
	})
	require.Equal(t, placement.UseExisting, plan.State)
	require.Equal(t, shard, *plan.TargetPID)
}

func TestAssignAllShardsFullAtCapacityIsBlocked(t *testing.T) {
	shard := ids.PrincipalOf(1)
	plan := placement.Assign(placement.Input{
		Pool:         mustPool(t, "poolA"),
		PartitionKey: mustKey(t, "tenant1"),
		MaxShards:    1,
		Entries:      []placement.ShardCandidate{{PID: shard, Slot: 0, Capacity: 2, Count: 2}},
		ActiveSet:    map[ids.Principal]bool{shard: true},
	})
	require.Equal(t, placement.CreateBlocked, plan.State)
	require.Equal(t, placement.ReasonPoolAtCapacity, plan.BlockedReason)
}

func TestHRWSelectionIsDeterministic(t *testing.T) {
	a := ids.PrincipalOf(1)
	b := ids.PrincipalOf(2)
	in := placement.Input{
		Pool:         mustPool(t, "poolA"),
		PartitionKey: mustKey(t, "tenantX"),
		MaxShards:    4,
		Entries: []placement.ShardCandidate{
			{PID: a, Slot: 0, Capacity: 10, Count: 0},
			{PID: b, Slot: 1, Capacity: 10, Count: 0},
		},
		ActiveSet: map[ids.Principal]bool{a: true, b: true},
	}
	first := placement.Assign(in)
	second := placement.Assign(in)
	require.Equal(t, first.TargetPID, second.TargetPID)
}
