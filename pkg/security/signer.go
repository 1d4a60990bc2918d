package security

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
)

// HashWithDomain computes SHA-256 over the domain-prefixed preimage
// `[len(domain) as u8] ∥ domain ∥ message`, matching the host identity
// substrate's hash_with_domain (spec.md §6). domain must be at most 255
// bytes.
func HashWithDomain(domain, message []byte) ([32]byte, error) {
	if len(domain) > 255 {
		return [32]byte{}, fmt.Errorf("security: domain too long: %d bytes", len(domain))
	}
	buf := make([]byte, 0, 1+len(domain)+len(message))
	buf = append(buf, byte(len(domain)))
	buf = append(buf, domain...)
	buf = append(buf, message...)
	return sha256.Sum256(buf), nil
}

// Signer holds an ed25519 keypair and signs domain-separated digests.
// Each compute unit that participates in the capability protocol (root,
// every shard-hub) owns exactly one Signer.
type Signer struct {
	public  ed25519.PublicKey
	private ed25519.PrivateKey
}

// NewSigner generates a fresh ed25519 keypair.
func NewSigner() (*Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("security: generate keypair: %w", err)
	}
	return &Signer{public: pub, private: priv}, nil
}

// SignerFromSeed deterministically derives a Signer from a 32-byte seed,
// useful for devnet fixtures and tests that need stable keys across runs.
func SignerFromSeed(seed [32]byte) *Signer {
	priv := ed25519.NewKeyFromSeed(seed[:])
	return &Signer{public: priv.Public().(ed25519.PublicKey), private: priv}
}

// PublicKey returns the signer's public key, to be distributed to
// verifiers out of band (it is a known cluster parameter per spec.md
// §4.7).
func (s *Signer) PublicKey() ed25519.PublicKey {
	return s.public
}

// Sign signs message under the given domain separator, returning the
// raw 64-byte ed25519 signature over HashWithDomain(domain, message).
func (s *Signer) Sign(domain, message []byte) ([]byte, error) {
	digest, err := HashWithDomain(domain, message)
	if err != nil {
		return nil, err
	}
	return ed25519.Sign(s.private, digest[:]), nil
}

// Verifier checks domain-separated signatures against a known public key.
// It holds no private key material; any unit can construct one once it
// knows the signer's public key (root's, for DelegationCert verification;
// a shard-hub's, for DelegatedToken verification).
type Verifier struct {
	public ed25519.PublicKey
}

// NewVerifier wraps a known public key.
func NewVerifier(public ed25519.PublicKey) *Verifier {
	return &Verifier{public: public}
}

// Verify reports whether sig is a valid signature over
// HashWithDomain(domain, message) under the verifier's public key.
func (v *Verifier) Verify(domain, message, sig []byte) (bool, error) {
	digest, err := HashWithDomain(domain, message)
	if err != nil {
		return false, err
	}
	return ed25519.Verify(v.public, digest[:], sig), nil
}
