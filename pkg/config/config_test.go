package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/canic/pkg/ids"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sample = `
controllers:
  - "` + principalText + `"
auth:
  delegated_tokens:
    enabled: true
subnets:
  shard_hub:
    reserve:
      minimum_size: 3
    auto_create:
      - auth_hub
sharding:
  shards:
    canister_role: shard_hub
    policy:
      max_shards: 4
      capacity: 10
`

var principalText = ids.PrincipalOf(7).String()

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "canic.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadParsesSchema(t *testing.T) {
	path := writeTemp(t, sample)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Auth.DelegatedTokens.Enabled)
	assert.Equal(t, uint8(3), cfg.ReserveMinimumSize("shard_hub"))
	assert.Equal(t, []ids.CanisterRole{"auth_hub"}, cfg.AutoCreateRoles("shard_hub"))

	pool, ok := cfg.Sharding["shards"]
	require.True(t, ok)
	assert.Equal(t, "shard_hub", pool.CanisterRole)
	assert.Equal(t, uint32(4), pool.Policy.MaxShards)

	principals, err := cfg.ControllerPrincipals()
	require.NoError(t, err)
	require.Len(t, principals, 1)
	assert.Equal(t, ids.PrincipalOf(7), principals[0])
}

func TestLoadRejectsInvalidController(t *testing.T) {
	path := writeTemp(t, "controllers:\n  - \"not-a-principal\"\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestReserveMinimumSizeDefaultsToZero(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, uint8(0), cfg.ReserveMinimumSize("missing"))
}
