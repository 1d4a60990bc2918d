package canpool_test

import (
	"context"
	"testing"

	"github.com/cuemby/canic/pkg/canpool"
	"github.com/cuemby/canic/pkg/ids"
	"github.com/cuemby/canic/pkg/store"
	"github.com/stretchr/testify/require"
)

func newPool(t *testing.T) *canpool.Pool {
	t.Helper()
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return canpool.New(s, store.RegionPool)
}

func TestRegisterReadyAndGet(t *testing.T) {
	p := newPool(t)
	pid := ids.PrincipalOf(1)
	require.NoError(t, p.RegisterReady(pid, 100, nil, nil, nil, 10))

	entry, ok, err := p.Get(pid)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, canpool.StatusReady, entry.Status)
	require.Equal(t, uint64(100), entry.Cycles)
}

func TestMarkPendingResetThenMarkReadyTransitions(t *testing.T) {
	p := newPool(t)
	pid := ids.PrincipalOf(1)
	require.NoError(t, p.RegisterReady(pid, 100, nil, nil, nil, 1))
	require.NoError(t, p.MarkPendingReset(pid, 1))

	entry, ok, err := p.Get(pid)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, canpool.StatusPendingReset, entry.Status)
	require.Equal(t, uint64(0), entry.Cycles)

	require.NoError(t, p.MarkReady(pid, 250))
	entry, ok, err = p.Get(pid)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, canpool.StatusReady, entry.Status)
	require.Equal(t, uint64(250), entry.Cycles)
}

func TestMarkFailedRecordsReason(t *testing.T) {
	p := newPool(t)
	pid := ids.PrincipalOf(1)
	require.NoError(t, p.RegisterReady(pid, 0, nil, nil, nil, 1))
	require.NoError(t, p.MarkFailed(pid, "boom"))

	entry, ok, err := p.Get(pid)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, canpool.StatusFailed, entry.Status)
	require.Equal(t, "boom", entry.FailureReason)
}

func TestCountsTalliesByStatus(t *testing.T) {
	p := newPool(t)
	require.NoError(t, p.RegisterReady(ids.PrincipalOf(1), 1, nil, nil, nil, 1))
	require.NoError(t, p.MarkPendingReset(ids.PrincipalOf(2), 1))
	require.NoError(t, p.MarkFailed(ids.PrincipalOf(3), "x"))

	counts, err := p.Counts()
	require.NoError(t, err)
	require.Equal(t, uint64(1), counts.Ready)
	require.Equal(t, uint64(1), counts.PendingReset)
	require.Equal(t, uint64(1), counts.Failed)
	require.Equal(t, uint64(3), counts.Total)
}

func TestCheckAdmissibleRejectsRegisteredUnit(t *testing.T) {
	p := newPool(t)
	err := p.CheckAdmissible(ids.PrincipalOf(1), canpool.NetworkIC, true, false)
	require.ErrorIs(t, err, canpool.ErrRegisteredInRegistry)
}

func TestCheckAdmissibleRejectsAlreadyReadyUnit(t *testing.T) {
	p := newPool(t)
	pid := ids.PrincipalOf(1)
	require.NoError(t, p.RegisterReady(pid, 1, nil, nil, nil, 1))

	err := p.CheckAdmissible(pid, canpool.NetworkIC, false, false)
	require.ErrorIs(t, err, canpool.ErrAlreadyInPool)
}

func TestCheckAdmissibleAllowsRequeueOfFailedUnit(t *testing.T) {
	p := newPool(t)
	pid := ids.PrincipalOf(1)
	require.NoError(t, p.RegisterReady(pid, 1, nil, nil, nil, 1))
	require.NoError(t, p.MarkFailed(pid, "x"))

	err := p.CheckAdmissible(pid, canpool.NetworkIC, false, false)
	require.NoError(t, err)
}

func TestCheckAdmissibleRejectsOnLocalNonImportable(t *testing.T) {
	p := newPool(t)
	err := p.CheckAdmissible(ids.PrincipalOf(1), canpool.NetworkLocal, false, true)
	require.ErrorIs(t, err, canpool.ErrNonImportableOnLocal)
}

type fakeMgmt struct {
	controllersSet []ids.Principal
	uninstalled    bool
	cycles         uint64
}

func (f *fakeMgmt) SetControllers(_ context.Context, _ ids.Principal, controllers []ids.Principal) error {
	f.controllersSet = controllers
	return nil
}

func (f *fakeMgmt) UninstallCode(_ context.Context, _ ids.Principal) error {
	f.uninstalled = true
	return nil
}

func (f *fakeMgmt) CycleBalance(_ context.Context, _ ids.Principal) (uint64, error) {
	return f.cycles, nil
}

func TestResetIntoPoolRunsFullSequence(t *testing.T) {
	mgmt := &fakeMgmt{cycles: 777}
	controllers := []ids.Principal{ids.PrincipalOf(9)}

	cycles, err := canpool.ResetIntoPool(context.Background(), mgmt, ids.PrincipalOf(1), controllers)
	require.NoError(t, err)
	require.Equal(t, uint64(777), cycles)
	require.True(t, mgmt.uninstalled)
	require.Equal(t, controllers, mgmt.controllersSet)
}
