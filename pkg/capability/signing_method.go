package capability

import (
	"fmt"

	"github.com/cuemby/canic/pkg/security"
	"github.com/golang-jwt/jwt/v5"
)

// signingMethodName is the jwt "alg" header value for canic's
// domain-separated ed25519 tokens. It is registered globally so
// jwt.Parser can resolve it by name from an incoming token's header.
const signingMethodName = "CANIC-ED25519"

func init() {
	jwt.RegisterSigningMethod(signingMethodName, func() jwt.SigningMethod {
		return signingMethodInstance
	})
}

var signingMethodInstance = &SigningMethod{}

// SigningMethod implements jwt.SigningMethod by delegating to a
// pkg/security domain-separated ed25519 signer/verifier instead of
// bundling its own key material, per spec.md §4.7's token signing scheme.
type SigningMethod struct{}

// Alg returns the jwt "alg" header value.
func (m *SigningMethod) Alg() string { return signingMethodName }

// Sign signs signingString (the JWT header+payload) with key, which must
// be a *security.Signer.
func (m *SigningMethod) Sign(signingString string, key interface{}) ([]byte, error) {
	signer, ok := key.(*security.Signer)
	if !ok {
		return nil, fmt.Errorf("capability: Sign requires a *security.Signer key, got %T", key)
	}
	message := append(append([]byte{}, SeedDelegatedToken...), []byte(signingString)...)
	return signer.Sign(DomainDelegatedToken, message)
}

// Verify checks sig over signingString against key, which must be a
// *security.Verifier.
func (m *SigningMethod) Verify(signingString string, sig []byte, key interface{}) error {
	verifier, ok := key.(*security.Verifier)
	if !ok {
		return fmt.Errorf("capability: Verify requires a *security.Verifier key, got %T", key)
	}
	message := append(append([]byte{}, SeedDelegatedToken...), []byte(signingString)...)
	valid, err := verifier.Verify(DomainDelegatedToken, message, sig)
	if err != nil {
		return err
	}
	if !valid {
		return jwt.ErrSignatureInvalid
	}
	return nil
}
