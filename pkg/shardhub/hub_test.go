package shardhub_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/cuemby/canic/pkg/ids"
	"github.com/cuemby/canic/pkg/lifecycle"
	"github.com/cuemby/canic/pkg/shardhub"
	"github.com/cuemby/canic/pkg/sharding"
	"github.com/cuemby/canic/pkg/store"
	"github.com/stretchr/testify/require"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// fakeCreator mints sequential principals, standing in for the
// root-bound CreateCanister envelope.
type fakeCreator struct {
	next    byte
	created []ids.Principal
}

func (f *fakeCreator) CreateShard(ctx context.Context, pool ids.BoundedString32, role ids.CanisterRole) (ids.Principal, error) {
	f.next++
	pid := ids.PrincipalOf(f.next)
	f.created = append(f.created, pid)
	return pid, nil
}

func newTestHub(t *testing.T, pol shardhub.Policy) (*shardhub.Hub, *fakeCreator, func()) {
	t.Helper()
	dir, err := os.MkdirTemp("", "shardhub-test-*")
	require.NoError(t, err)
	s, err := store.Open(dir)
	if err != nil {
		os.RemoveAll(dir)
		t.Fatal(err)
	}
	creator := &fakeCreator{next: 100}
	hub := &shardhub.Hub{
		Sharding:  sharding.New(s, store.RegionShardRegistry, store.RegionAssignments),
		Lifecycle: lifecycle.New(s, store.RegionLifecyclePhase, store.RegionActiveSet, store.RegionRotationTargets),
		Creator:   creator,
		Clock:     fixedClock{t: time.Unix(1000, 0)},
		Pools:     map[ids.BoundedString32]shardhub.Policy{"shards": pol},
	}
	return hub, creator, func() {
		s.Close()
		os.RemoveAll(dir)
	}
}

func TestEmptyPoolBootstrapAdmitsFirstShard(t *testing.T) {
	hub, creator, cleanup := newTestHub(t, shardhub.Policy{MaxShards: 4, Capacity: 10, Role: "app"})
	defer cleanup()

	tenant := ids.BoundedString128(ids.PrincipalOf(10).String())
	pid, err := hub.RegisterTenant(context.Background(), "shards", tenant)
	require.NoError(t, err)
	require.Len(t, creator.created, 1)
	require.Equal(t, creator.created[0], pid)

	slot, ok, err := hub.Sharding.SlotForShard("shards", pid)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(0), slot)

	assigned, ok, err := hub.Sharding.TenantShard("shards", tenant)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, pid, assigned)

	tenants, err := hub.Sharding.TenantsInShard("shards", pid)
	require.NoError(t, err)
	require.Equal(t, []ids.BoundedString128{tenant}, tenants)

	active, err := hub.Lifecycle.IsActive(pid)
	require.NoError(t, err)
	require.True(t, active)
}

func TestDuplicateRegistrationIsStable(t *testing.T) {
	hub, creator, cleanup := newTestHub(t, shardhub.Policy{MaxShards: 4, Capacity: 10, Role: "app"})
	defer cleanup()

	tenant := ids.BoundedString128(ids.PrincipalOf(10).String())
	first, err := hub.RegisterTenant(context.Background(), "shards", tenant)
	require.NoError(t, err)
	second, err := hub.RegisterTenant(context.Background(), "shards", tenant)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Len(t, creator.created, 1)

	entry, ok, err := hub.Sharding.Get(first)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(1), entry.Count)
}

func TestHRWSpreadsOverRotationTargets(t *testing.T) {
	hub, _, cleanup := newTestHub(t, shardhub.Policy{MaxShards: 4, Capacity: 200, Role: "app"})
	defer cleanup()

	p1 := ids.PrincipalOf(1)
	p2 := ids.PrincipalOf(2)
	for slot, pid := range []ids.Principal{p1, p2} {
		require.NoError(t, hub.Sharding.Create(pid, "shards", uint32(slot), "app", 200, 0))
		require.NoError(t, hub.Lifecycle.RegisterShardCreated(pid))
		require.NoError(t, hub.Lifecycle.MarkShardProvisioned(pid))
		require.NoError(t, hub.Lifecycle.AdmitShardToHrw(pid))
	}

	for i := 1; i <= 200; i++ {
		tenant := ids.BoundedString128(fmt.Sprintf("k%d", i))
		pid, err := hub.RegisterTenant(context.Background(), "shards", tenant)
		require.NoError(t, err)
		require.Contains(t, []ids.Principal{p1, p2}, pid)
	}

	e1, _, err := hub.Sharding.Get(p1)
	require.NoError(t, err)
	e2, _, err := hub.Sharding.Get(p2)
	require.NoError(t, err)
	require.Equal(t, uint32(200), e1.Count+e2.Count)
	require.GreaterOrEqual(t, e1.Count, uint32(60))
	require.GreaterOrEqual(t, e2.Count, uint32(60))
}

func TestRegisterTenantBlockedWhenPoolAtCapacity(t *testing.T) {
	hub, _, cleanup := newTestHub(t, shardhub.Policy{MaxShards: 1, Capacity: 1, Role: "app"})
	defer cleanup()

	_, err := hub.RegisterTenant(context.Background(), "shards", "t1")
	require.NoError(t, err)
	_, err = hub.RegisterTenant(context.Background(), "shards", "t2")
	require.Error(t, err)
}

func TestRegisterTenantRejectsUnknownPool(t *testing.T) {
	hub, _, cleanup := newTestHub(t, shardhub.Policy{MaxShards: 4, Capacity: 10, Role: "app"})
	defer cleanup()

	_, err := hub.RegisterTenant(context.Background(), "nope", "t1")
	require.Error(t, err)
}

func TestBackfillSlotsAssignsUnassignedEntries(t *testing.T) {
	hub, _, cleanup := newTestHub(t, shardhub.Policy{MaxShards: 4, Capacity: 10, Role: "app"})
	defer cleanup()

	a := ids.PrincipalOf(1)
	b := ids.PrincipalOf(2)
	require.NoError(t, hub.Sharding.Create(a, "shards", 1, "app", 10, 0))
	require.NoError(t, hub.Sharding.Create(b, "shards", sharding.UnassignedSlot, "app", 10, 0))

	n, err := hub.BackfillSlots("shards")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	slot, ok, err := hub.Sharding.SlotForShard("shards", b)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(0), slot)
}
