package ids_test

import (
	"encoding/json"
	"testing"

	"github.com/cuemby/canic/pkg/ids"
	"github.com/stretchr/testify/require"
)

func TestPrincipalOrdering(t *testing.T) {
	a := ids.PrincipalOf(1)
	b := ids.PrincipalOf(2)

	require.True(t, a.Less(b))
	require.False(t, b.Less(a))
	require.Equal(t, 0, a.Compare(a))
}

func TestPrincipalRoundTrip(t *testing.T) {
	p := ids.PrincipalOf(42)
	parsed, err := ids.ParsePrincipal(p.String())
	require.NoError(t, err)
	require.Equal(t, p, parsed)
}

func TestPrincipalJSONMapKeyRoundTrip(t *testing.T) {
	in := map[ids.Principal][]ids.Principal{
		ids.PrincipalOf(1): {ids.PrincipalOf(2), ids.PrincipalOf(3)},
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out map[ids.Principal][]ids.Principal
	require.NoError(t, json.Unmarshal(data, &out))
	require.Equal(t, in, out)
}

func TestPrincipalFromBytesRejectsWrongLength(t *testing.T) {
	_, err := ids.PrincipalFromBytes([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestSortPrincipals(t *testing.T) {
	ps := []ids.Principal{ids.PrincipalOf(3), ids.PrincipalOf(1), ids.PrincipalOf(2)}
	ids.SortPrincipals(ps)
	require.Equal(t, []ids.Principal{ids.PrincipalOf(1), ids.PrincipalOf(2), ids.PrincipalOf(3)}, ps)
}

func TestRoleValidate(t *testing.T) {
	require.NoError(t, ids.CanisterRole("shard_hub").Validate())
	require.Error(t, ids.CanisterRole("").Validate())
	require.Error(t, ids.CanisterRole("Shard-Hub").Validate())
	require.True(t, ids.RoleRoot.IsRoot())
}

func TestBoundedStrings(t *testing.T) {
	_, err := ids.NewBoundedString32("")
	require.Error(t, err)

	big := make([]byte, 200)
	_, err = ids.NewBoundedString128(string(big))
	require.Error(t, err)

	ok, err := ids.NewBoundedString32("shards")
	require.NoError(t, err)
	require.Equal(t, "shards", ok.String())
}
