package reserve_test

import (
	"testing"

	"github.com/cuemby/canic/pkg/ids"
	"github.com/cuemby/canic/pkg/reserve"
	"github.com/cuemby/canic/pkg/store"
	"github.com/stretchr/testify/require"
)

func newReserve(t *testing.T) *reserve.Reserve {
	t.Helper()
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return reserve.New(s, store.RegionReserve)
}

func TestRegisterAndExport(t *testing.T) {
	r := newReserve(t)
	p1 := ids.PrincipalOf(1)
	p2 := ids.PrincipalOf(2)

	require.NoError(t, r.Register(p1, reserve.Entry{CreatedAt: 100, Cycles: 100}))
	require.NoError(t, r.Register(p2, reserve.Entry{CreatedAt: 200, Cycles: 200}))

	entries, err := r.Export()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	length, err := r.Len()
	require.NoError(t, err)
	require.Equal(t, 2, length)
}

func TestTakeRemovesSpecificEntry(t *testing.T) {
	r := newReserve(t)
	p1 := ids.PrincipalOf(1)
	p2 := ids.PrincipalOf(2)
	require.NoError(t, r.Register(p1, reserve.Entry{CreatedAt: 1, Cycles: 123}))
	require.NoError(t, r.Register(p2, reserve.Entry{CreatedAt: 2, Cycles: 456}))

	entry, ok, err := r.Take(p1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(123), entry.Cycles)

	contains, err := r.Contains(p1)
	require.NoError(t, err)
	require.False(t, contains)

	length, err := r.Len()
	require.NoError(t, err)
	require.Equal(t, 1, length)
}

func TestPopFirstReturnsOldestByCreatedAt(t *testing.T) {
	r := newReserve(t)
	p1 := ids.PrincipalOf(1)
	p2 := ids.PrincipalOf(2)
	require.NoError(t, r.Register(p1, reserve.Entry{CreatedAt: 500, Cycles: 1}))
	require.NoError(t, r.Register(p2, reserve.Entry{CreatedAt: 100, Cycles: 2}))

	pid, entry, ok, err := r.PopFirst()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, p2, pid)
	require.Equal(t, uint64(2), entry.Cycles)

	length, err := r.Len()
	require.NoError(t, err)
	require.Equal(t, 1, length)
}

func TestPopFirstOnEmptyReserveReturnsFalse(t *testing.T) {
	r := newReserve(t)
	_, _, ok, err := r.PopFirst()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRegisterPreservesOptionalFields(t *testing.T) {
	r := newReserve(t)
	pid := ids.PrincipalOf(1)
	parent := ids.PrincipalOf(2)
	role := ids.CanisterRole("shard_hub")
	require.NoError(t, r.Register(pid, reserve.Entry{
		CreatedAt:  1,
		Cycles:     1,
		Role:       &role,
		Parent:     &parent,
		ModuleHash: []byte{0xde, 0xad},
	}))

	entry, ok, err := r.Take(pid)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, role, *entry.Role)
	require.Equal(t, parent, *entry.Parent)
	require.Equal(t, []byte{0xde, 0xad}, entry.ModuleHash)
}
