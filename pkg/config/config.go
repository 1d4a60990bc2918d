package config

import (
	"fmt"
	"os"

	"github.com/cuemby/canic/pkg/ids"
	"gopkg.in/yaml.v3"
)

// Config is the root of canic's YAML configuration schema (spec.md §6).
type Config struct {
	Controllers []string              `yaml:"controllers"`
	Auth        AuthConfig            `yaml:"auth"`
	Subnets     map[string]SubnetSpec `yaml:"subnets"`
	Sharding    map[string]PoolSpec   `yaml:"sharding"`
}

// AuthConfig gates the delegated-capability subsystem as a whole.
type AuthConfig struct {
	DelegatedTokens DelegatedTokensConfig `yaml:"delegated_tokens"`
}

// DelegatedTokensConfig is `auth.delegated_tokens` in the schema.
type DelegatedTokensConfig struct {
	Enabled bool `yaml:"enabled"`
}

// SubnetSpec is one `subnets.<role>` entry: reserve refill threshold,
// pool import lists per network, and roles to auto-create at bootstrap.
type SubnetSpec struct {
	Reserve    ReserveSpec `yaml:"reserve"`
	Pool       PoolImport  `yaml:"pool"`
	AutoCreate []string    `yaml:"auto_create"`
}

// ReserveSpec is `subnets.<role>.reserve`. MinimumSize == 0 disables the
// refill timer for this subnet role.
type ReserveSpec struct {
	MinimumSize uint8 `yaml:"minimum_size"`
}

// PoolImport is `subnets.<role>.pool.import`, keyed by network.
type PoolImport struct {
	Import ImportLists `yaml:"import"`
}

// ImportLists carries bulk pool-import principal lists per network.
type ImportLists struct {
	Initial []string `yaml:"initial"`
	Local   []string `yaml:"local"`
	IC      []string `yaml:"ic"`
}

// PoolSpec is a per-role sharding pool declaration: `canister_role`,
// `policy.max_shards`, `policy.capacity`.
type PoolSpec struct {
	CanisterRole string     `yaml:"canister_role"`
	Policy       PolicySpec `yaml:"policy"`
}

// PolicySpec is `sharding.<pool>.policy`.
type PolicySpec struct {
	MaxShards uint32 `yaml:"max_shards"`
	Capacity  uint32 `yaml:"capacity"`
}

// Load reads and parses a YAML config file from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks structural invariants the loader can catch statically
// (a malformed principal or role identifier is a fatal init condition
// per spec.md §7).
func (c *Config) Validate() error {
	for _, s := range c.Controllers {
		if _, err := ids.ParsePrincipal(s); err != nil {
			return fmt.Errorf("controllers: %w", err)
		}
	}
	for role, pool := range c.Sharding {
		if err := ids.CanisterRole(pool.CanisterRole).Validate(); err != nil {
			return fmt.Errorf("sharding.%s.canister_role: %w", role, err)
		}
		if _, err := ids.NewBoundedString32(role); err != nil {
			return fmt.Errorf("sharding.%s: pool name: %w", role, err)
		}
	}
	for role := range c.Subnets {
		if err := ids.CanisterRole(role).Validate(); err != nil {
			return fmt.Errorf("subnets.%s: %w", role, err)
		}
	}
	return nil
}

// ControllerPrincipals parses Controllers into ids.Principal values. It
// assumes Validate already succeeded.
func (c *Config) ControllerPrincipals() ([]ids.Principal, error) {
	out := make([]ids.Principal, 0, len(c.Controllers))
	for _, s := range c.Controllers {
		p, err := ids.ParsePrincipal(s)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// ReserveMinimumSize looks up the reserve refill threshold for subnetRole,
// returning 0 (refill disabled) when the role has no subnet entry.
func (c *Config) ReserveMinimumSize(subnetRole ids.CanisterRole) uint8 {
	s, ok := c.Subnets[string(subnetRole)]
	if !ok {
		return 0
	}
	return s.Reserve.MinimumSize
}

// AutoCreateRoles returns the roles root should create during bootstrap
// for subnetRole.
func (c *Config) AutoCreateRoles(subnetRole ids.CanisterRole) []ids.CanisterRole {
	s, ok := c.Subnets[string(subnetRole)]
	if !ok {
		return nil
	}
	out := make([]ids.CanisterRole, 0, len(s.AutoCreate))
	for _, r := range s.AutoCreate {
		out = append(out, ids.CanisterRole(r))
	}
	return out
}
