package capability

import (
	"encoding/hex"

	"github.com/cuemby/canic/pkg/ids"
	"github.com/cuemby/canic/pkg/security"
	"github.com/golang-jwt/jwt/v5"
)

// VerifyInput bundles everything Verify needs to check a token entirely
// offline relative to root (spec.md §4.7).
type VerifyInput struct {
	TokenString   string
	Proof         Proof
	RootVerifier  *security.Verifier
	ShardVerifier *security.Verifier
	ExpectedRoot  ids.Principal
	Now           int64
}

// Verify checks a DelegatedToken end to end: the cert's signature under
// root's key, the token's signature under the shard's key, all time
// bounds, and claim containment. It returns the validated Claims on
// success or one of the typed errors from errors.go.
func Verify(in VerifyInput) (*Claims, error) {
	if in.Proof.Cert.SignerPID != in.ExpectedRoot {
		return nil, ErrCertSignatureInvalid
	}

	certBytes, err := in.Proof.Cert.CanonicalBytes()
	if err != nil {
		return nil, ErrEncodeFailed
	}
	certMessage := append(append([]byte{}, SeedDelegationCert...), certBytes...)
	ok, err := in.RootVerifier.Verify(DomainDelegationCert, certMessage, in.Proof.CertSig)
	if err != nil {
		return nil, ErrCertSignatureUnavailable
	}
	if !ok {
		return nil, ErrCertSignatureInvalid
	}
	if in.Proof.Cert.IssuedAt > in.Proof.Cert.ExpiresAt {
		return nil, ErrCertExpired
	}
	if in.Now > in.Proof.Cert.ExpiresAt {
		return nil, ErrCertExpired
	}

	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{signingMethodName}))
	if _, err := parser.ParseWithClaims(in.TokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return in.ShardVerifier, nil
	}); err != nil {
		return nil, ErrTokenSignatureInvalid
	}

	certHash, err := in.Proof.Cert.Hash()
	if err != nil {
		return nil, ErrEncodeFailed
	}
	if claims.CertHash != hex.EncodeToString(certHash[:]) {
		return nil, ErrTokenSignatureInvalid
	}

	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return nil, ErrTokenExpired
	}
	iat := claims.IssuedAt.Unix()
	exp := claims.ExpiresAt.Unix()

	if iat > exp {
		return nil, ErrTokenExpired
	}
	if in.Now < iat {
		return nil, ErrTokenNotYetValid
	}
	if in.Now > exp {
		return nil, ErrTokenExpired
	}
	if iat < in.Proof.Cert.IssuedAt {
		return nil, ErrTokenIssuedBeforeDelegation
	}
	if exp > in.Proof.Cert.ExpiresAt {
		return nil, ErrTokenOutlivesDelegation
	}

	aud := ""
	if len(claims.Audience) > 0 {
		aud = claims.Audience[0]
	}
	if !in.Proof.Cert.HasAudience(aud) {
		return nil, ErrAudienceNotAllowed
	}
	if !in.Proof.Cert.HasScopes(claims.Scopes) {
		return nil, ErrScopeNotAllowed
	}

	return claims, nil
}
