package capability

// Signature domain separators and seeds, bit-exact per spec.md §6. The
// preimage fed to security.HashWithDomain is always `seed ∥ canonical
// encoding of the signed structure`; domain then further separates cert
// signatures from token signatures so the same keypair can never have one
// signature type confused for the other.
var (
	DomainDelegationCert = []byte("canic-delegation")
	SeedDelegationCert   = []byte("delegation-cert-v1")

	DomainDelegatedToken = []byte("canic-token")
	SeedDelegatedToken   = []byte("delegated-token-v1")
)
