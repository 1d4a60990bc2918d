package sharding_test

import (
	"testing"

	"github.com/cuemby/canic/pkg/ids"
	"github.com/cuemby/canic/pkg/sharding"
	"github.com/cuemby/canic/pkg/store"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) *sharding.Registry {
	t.Helper()
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return sharding.New(s, store.RegionShardRegistry, store.RegionAssignments)
}

func pool(t *testing.T, s string) ids.BoundedString32 {
	t.Helper()
	p, err := ids.NewBoundedString32(s)
	require.NoError(t, err)
	return p
}

func tenant(t *testing.T, s string) ids.BoundedString128 {
	t.Helper()
	p, err := ids.NewBoundedString128(s)
	require.NoError(t, err)
	return p
}

func TestAssignAndUnassignUpdatesCount(t *testing.T) {
	r := newRegistry(t)
	shardPID := ids.PrincipalOf(1)
	poolA := pool(t, "poolA")

	require.NoError(t, r.Create(shardPID, poolA, 0, "alpha", 2, 1))
	require.NoError(t, r.Assign(poolA, tenant(t, "tenant1"), shardPID))

	entry, ok, err := r.Get(shardPID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(1), entry.Count)

	prev, found, err := r.Unassign(poolA, tenant(t, "tenant1"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, shardPID, prev)

	entry, ok, err = r.Get(shardPID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(0), entry.Count)
}

func TestCreateRejectsDuplicateSlotInPool(t *testing.T) {
	r := newRegistry(t)
	poolA := pool(t, "poolA")

	require.NoError(t, r.Create(ids.PrincipalOf(1), poolA, 0, "alpha", 2, 1))
	err := r.Create(ids.PrincipalOf(2), poolA, 0, "alpha", 2, 1)
	require.Error(t, err)
}

func TestAssignRejectsPoolMismatch(t *testing.T) {
	r := newRegistry(t)
	shardPID := ids.PrincipalOf(1)
	require.NoError(t, r.Create(shardPID, pool(t, "poolA"), sharding.UnassignedSlot, "alpha", 2, 1))

	err := r.Assign(pool(t, "poolB"), tenant(t, "tenant1"), shardPID)
	require.Error(t, err)
}

func TestReassigningSameTenantToSameShardIsNoop(t *testing.T) {
	r := newRegistry(t)
	shardPID := ids.PrincipalOf(1)
	poolA := pool(t, "poolA")
	require.NoError(t, r.Create(shardPID, poolA, sharding.UnassignedSlot, "alpha", 2, 1))

	require.NoError(t, r.Assign(poolA, tenant(t, "tenant1"), shardPID))
	require.NoError(t, r.Assign(poolA, tenant(t, "tenant1"), shardPID))

	entry, _, err := r.Get(shardPID)
	require.NoError(t, err)
	require.Equal(t, uint32(1), entry.Count)
}

func TestTenantsInShardListsAssignedPartitionKeys(t *testing.T) {
	r := newRegistry(t)
	shardPID := ids.PrincipalOf(1)
	poolA := pool(t, "poolA")
	require.NoError(t, r.Create(shardPID, poolA, sharding.UnassignedSlot, "alpha", 10, 1))
	require.NoError(t, r.Assign(poolA, tenant(t, "t1"), shardPID))
	require.NoError(t, r.Assign(poolA, tenant(t, "t2"), shardPID))

	tenants, err := r.TenantsInShard(poolA, shardPID)
	require.NoError(t, err)
	require.Len(t, tenants, 2)
}

func TestSetSlotRejectsCollision(t *testing.T) {
	r := newRegistry(t)
	poolA := pool(t, "poolA")
	require.NoError(t, r.Create(ids.PrincipalOf(1), poolA, 0, "alpha", 2, 1))
	require.NoError(t, r.Create(ids.PrincipalOf(2), poolA, sharding.UnassignedSlot, "alpha", 2, 1))

	err := r.SetSlot(ids.PrincipalOf(2), 0)
	require.Error(t, err)
}
