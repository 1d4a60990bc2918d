package env_test

import (
	"testing"

	"github.com/cuemby/canic/pkg/env"
	"github.com/cuemby/canic/pkg/ids"
	"github.com/stretchr/testify/require"
)

func TestNewRootRequiresNoParent(t *testing.T) {
	root := ids.PrincipalOf(1)
	_, err := env.New(env.Config{
		PrimeRootPID: root,
		RootPID:      root,
		SubnetPID:    root,
		SubnetRole:   ids.RoleRoot,
		CanisterRole: ids.RoleRoot,
	})
	require.NoError(t, err)
}

func TestNewRootRejectsParent(t *testing.T) {
	root := ids.PrincipalOf(1)
	parent := ids.PrincipalOf(2)
	_, err := env.New(env.Config{
		PrimeRootPID: root,
		RootPID:      root,
		SubnetPID:    root,
		SubnetRole:   ids.RoleRoot,
		CanisterRole: ids.RoleRoot,
		ParentPID:    &parent,
	})
	require.Error(t, err)
}

func TestNewNonRootRequiresParent(t *testing.T) {
	root := ids.PrincipalOf(1)
	_, err := env.New(env.Config{
		PrimeRootPID: root,
		RootPID:      root,
		SubnetPID:    root,
		SubnetRole:   ids.CanisterRole("shard_hub"),
		CanisterRole: ids.CanisterRole("shard_hub"),
	})
	require.Error(t, err)
}

func TestResolveSubnetPIDAndRestoreCanisterRole(t *testing.T) {
	root := ids.PrincipalOf(1)
	parent := ids.PrincipalOf(2)
	e, err := env.New(env.Config{
		PrimeRootPID: root,
		RootPID:      root,
		SubnetPID:    ids.Principal{},
		SubnetRole:   ids.CanisterRole("shard_hub"),
		CanisterRole: ids.CanisterRole("shard_hub"),
		ParentPID:    &parent,
	})
	require.NoError(t, err)

	resolved := ids.PrincipalOf(9)
	e.ResolveSubnetPID(resolved)
	require.Equal(t, resolved, e.SubnetPID)

	require.NoError(t, e.RestoreCanisterRole(ids.CanisterRole("app")))
	require.Equal(t, ids.CanisterRole("app"), e.CanisterRole)
	require.Error(t, e.RestoreCanisterRole(ids.CanisterRole("Bad-Role")))
}
