/*
Package security provides the identity substrate's signature primitive
used by the Delegated Capability Protocol (spec.md §4.7).

Warren's original pkg/security built an RSA/x509 certificate authority for
mTLS between cluster nodes. Canic's capability protocol needs something
narrower: a domain-separated ed25519 signer and verifier over a fixed
preimage layout, matching the host identity substrate's hash_with_domain
convention (spec.md §6):

	preimage = [len(domain) as u8] ∥ domain ∥ message
	digest   = SHA-256(preimage)
	sig      = ed25519.Sign(privateKey, digest)

There is no certificate chain here — root and every shard-hub each hold a
single long-lived ed25519 keypair, and a Verifier checks a signature
against a known public key plus the claimed domain. Key material is kept
in memory only; the teacher's AES-256-GCM-at-rest pattern for CA keys
does not apply since canic never persists private key bytes beyond a
single unit's own in-memory state.
*/
package security
