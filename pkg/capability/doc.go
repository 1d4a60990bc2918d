/*
Package capability implements the Delegated Capability Protocol of
spec.md §4.7: root issues a time-bounded DelegationCert to a requesting
shard-hub, the shard-hub mints short-lived DelegatedTokens under that
delegation, and any unit can verify a token offline (no call to root)
once it knows root's and the shard's public keys.

Grounded on original_source's infra/ic/signature.rs (prepare/get/verify
split over a domain-prefixed hash) and ops/auth.rs. Tokens are carried in
a standard JWT envelope (github.com/golang-jwt/jwt/v5) whose claims are
RegisteredClaims-shaped, but signed through a custom jwt.SigningMethod
that delegates to pkg/security's domain-separated ed25519 signer instead
of bundling a private key with the library — this gives callers an
inspectable, standard claim shape while preserving the exact signature
scheme spec.md §4.7 specifies.
*/
package capability
