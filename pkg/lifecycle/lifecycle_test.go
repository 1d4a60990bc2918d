package lifecycle_test

import (
	"testing"

	"github.com/cuemby/canic/pkg/ids"
	"github.com/cuemby/canic/pkg/lifecycle"
	"github.com/cuemby/canic/pkg/store"
	"github.com/stretchr/testify/require"
)

func newIndex(t *testing.T) *lifecycle.Index {
	t.Helper()
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return lifecycle.New(s, store.RegionLifecyclePhase, store.RegionActiveSet, store.RegionRotationTargets)
}

func TestFullHappyPathTransition(t *testing.T) {
	idx := newIndex(t)
	pid := ids.PrincipalOf(1)

	require.NoError(t, idx.RegisterShardCreated(pid))
	require.NoError(t, idx.MarkShardProvisioned(pid))
	require.NoError(t, idx.AdmitShardToHrw(pid))

	active, err := idx.IsActive(pid)
	require.NoError(t, err)
	require.True(t, active)

	rotation, err := idx.IsRotationTarget(pid)
	require.NoError(t, err)
	require.True(t, rotation)

	require.NoError(t, idx.RetireShard(pid))
	active, err = idx.IsActive(pid)
	require.NoError(t, err)
	require.False(t, active)

	require.NoError(t, idx.RevokeShard(pid))
	phase, ok, err := idx.State(pid)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, lifecycle.PhaseRevoked, phase)
}

func TestSelfLoopsAreIdempotent(t *testing.T) {
	idx := newIndex(t)
	pid := ids.PrincipalOf(1)

	require.NoError(t, idx.RegisterShardCreated(pid))
	require.NoError(t, idx.RegisterShardCreated(pid))
	require.NoError(t, idx.MarkShardProvisioned(pid))
	require.NoError(t, idx.AdmitShardToHrw(pid))
	require.NoError(t, idx.AdmitShardToHrw(pid))
}

func TestRevokeIsTerminalFromAnyPhase(t *testing.T) {
	idx := newIndex(t)
	pid := ids.PrincipalOf(1)

	require.NoError(t, idx.RegisterShardCreated(pid))
	require.NoError(t, idx.RevokeShard(pid))
	require.NoError(t, idx.RevokeShard(pid))

	phase, _, err := idx.State(pid)
	require.NoError(t, err)
	require.Equal(t, lifecycle.PhaseRevoked, phase)
}

func TestInvalidTransitionFails(t *testing.T) {
	idx := newIndex(t)
	pid := ids.PrincipalOf(1)

	require.NoError(t, idx.RegisterShardCreated(pid))
	err := idx.AdmitShardToHrw(pid)
	require.Error(t, err)
}

func TestRevokeAbsentShardFails(t *testing.T) {
	idx := newIndex(t)
	err := idx.RevokeShard(ids.PrincipalOf(9))
	require.Error(t, err)
}

func TestActiveSetAndRotationTargetSetList(t *testing.T) {
	idx := newIndex(t)
	a := ids.PrincipalOf(1)
	b := ids.PrincipalOf(2)

	for _, pid := range []ids.Principal{a, b} {
		require.NoError(t, idx.RegisterShardCreated(pid))
		require.NoError(t, idx.MarkShardProvisioned(pid))
		require.NoError(t, idx.AdmitShardToHrw(pid))
	}
	require.NoError(t, idx.RetireShard(b))

	active, err := idx.ActiveSet()
	require.NoError(t, err)
	require.Equal(t, []ids.Principal{a}, active)
}
