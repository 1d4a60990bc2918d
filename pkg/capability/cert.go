package capability

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cuemby/canic/pkg/ids"
)

// Cert is a DelegationCert (spec.md §3): a time-bounded capability signed
// by root, granting shard_pid the right to mint tokens for the given
// audiences and scopes.
type Cert struct {
	SignerPID ids.Principal
	ShardPID  ids.Principal
	Audiences []string
	Scopes    []string
	IssuedAt  int64
	ExpiresAt int64
}

// NewCert builds a Cert, deduping and sorting audiences/scopes so
// CanonicalBytes is stable regardless of caller-supplied order.
func NewCert(signer, shard ids.Principal, audiences, scopes []string, issuedAt, expiresAt int64) (Cert, error) {
	if issuedAt > expiresAt {
		return Cert{}, fmt.Errorf("capability: issued_at (%d) must be <= expires_at (%d)", issuedAt, expiresAt)
	}
	return Cert{
		SignerPID: signer,
		ShardPID:  shard,
		Audiences: sortedUnique(audiences),
		Scopes:    sortedUnique(scopes),
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

func sortedUnique(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

type certWire struct {
	SignerPID string   `json:"signer_pid"`
	ShardPID  string   `json:"shard_pid"`
	Audiences []string `json:"audiences"`
	Scopes    []string `json:"scopes"`
	IssuedAt  int64    `json:"issued_at"`
	ExpiresAt int64    `json:"expires_at"`
}

// CanonicalBytes deterministically encodes c for hashing and signing.
func (c Cert) CanonicalBytes() ([]byte, error) {
	w := certWire{
		SignerPID: c.SignerPID.Hex(),
		ShardPID:  c.ShardPID.Hex(),
		Audiences: c.Audiences,
		Scopes:    c.Scopes,
		IssuedAt:  c.IssuedAt,
		ExpiresAt: c.ExpiresAt,
	}
	return json.Marshal(w)
}

// Hash returns SHA-256 of CanonicalBytes, used to bind a DelegatedToken to
// the cert it was minted under.
func (c Cert) Hash() ([32]byte, error) {
	b, err := c.CanonicalBytes()
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(b), nil
}

// HasAudience reports whether aud is a member of c.Audiences.
func (c Cert) HasAudience(aud string) bool {
	for _, a := range c.Audiences {
		if a == aud {
			return true
		}
	}
	return false
}

// HasScopes reports whether every entry of scopes is a member of
// c.Scopes (scopes ⊆ c.Scopes).
func (c Cert) HasScopes(scopes []string) bool {
	set := make(map[string]bool, len(c.Scopes))
	for _, s := range c.Scopes {
		set[s] = true
	}
	for _, s := range scopes {
		if !set[s] {
			return false
		}
	}
	return true
}

// Proof is a DelegationProof: a Cert plus root's signature over its
// canonical bytes.
type Proof struct {
	Cert    Cert
	CertSig []byte
}
