// Package config loads canic's YAML configuration (spec.md §6): the
// controller list, the delegated-token gate, per-subnet reserve/pool
// settings, auto_create roles, and sharding pool policies. Grounded on
// cuemby-warren's cmd/warren/apply.go yaml.Unmarshal usage.
package config
