package directory_test

import (
	"testing"

	"github.com/cuemby/canic/pkg/directory"
	"github.com/cuemby/canic/pkg/ids"
	"github.com/cuemby/canic/pkg/registrystore"
	"github.com/stretchr/testify/require"
)

func TestResolveSubnetIsUniqueByRole(t *testing.T) {
	a := ids.PrincipalOf(1)
	b := ids.PrincipalOf(2)

	entries := []registrystore.Entry{
		{PID: a, Rec: registrystore.Record{Role: "shard_hub", CreatedAt: 1}},
		{PID: b, Rec: registrystore.Record{Role: "shard_hub", CreatedAt: 2}},
	}

	snap := directory.ResolveSubnet(entries)
	require.Len(t, snap.Entries, 1)
	p, ok := snap.Lookup("shard_hub")
	require.True(t, ok)
	require.Equal(t, b, p)
}

func TestResolveSubnetOrdersByRole(t *testing.T) {
	a := ids.PrincipalOf(1)
	b := ids.PrincipalOf(2)

	entries := []registrystore.Entry{
		{PID: b, Rec: registrystore.Record{Role: "shard_hub", CreatedAt: 1}},
		{PID: a, Rec: registrystore.Record{Role: "auth_hub", CreatedAt: 1}},
	}

	snap := directory.ResolveSubnet(entries)
	require.Equal(t, []ids.CanisterRole{"auth_hub", "shard_hub"}, []ids.CanisterRole{snap.Entries[0].Role, snap.Entries[1].Role})
}

func TestMergeAppDedupesAcrossSubnets(t *testing.T) {
	subnetA := directory.Snapshot{Entries: []directory.Entry{
		{Role: "auth_hub", Principal: ids.PrincipalOf(1)},
	}}
	subnetB := directory.Snapshot{Entries: []directory.Entry{
		{Role: "auth_hub", Principal: ids.PrincipalOf(2)},
		{Role: "shard_hub", Principal: ids.PrincipalOf(3)},
	}}

	merged := directory.MergeApp(subnetA, subnetB)
	require.Len(t, merged.Entries, 2)

	p, ok := merged.Lookup("auth_hub")
	require.True(t, ok)
	require.Equal(t, ids.PrincipalOf(1), p)
}
