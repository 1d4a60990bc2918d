package capability

import (
	"encoding/hex"
	"time"

	"github.com/cuemby/canic/pkg/security"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is a DelegatedToken's claim set, carried as jwt.RegisteredClaims
// plus canic-specific fields. CertHash binds the token to the exact
// DelegationCert it was minted under (the TokenSigningPayload of spec.md
// §4.7: {v, cert_hash, claims}).
type Claims struct {
	jwt.RegisteredClaims
	Scopes   []string `json:"scopes"`
	Nonce    string   `json:"nonce,omitempty"`
	Version  int      `json:"v"`
	CertHash string   `json:"cert_hash"`
}

// Minter mints DelegatedTokens at a shard-hub holding a valid Proof.
type Minter struct {
	Signer *security.Signer
}

// MintInput describes the claims requested for a new token.
type MintInput struct {
	Subject   string
	Audience  string
	Scopes    []string
	IssuedAt  int64
	ExpiresAt int64
	Nonce     string
}

// Mint validates in against proof.Cert's bounds (spec.md §4.7 step 1) and
// returns a signed compact JWT string.
func (m *Minter) Mint(proof Proof, in MintInput) (string, error) {
	if in.IssuedAt > in.ExpiresAt {
		return "", ErrTokenExpired
	}
	if in.IssuedAt < proof.Cert.IssuedAt {
		return "", ErrTokenIssuedBeforeDelegation
	}
	if in.ExpiresAt > proof.Cert.ExpiresAt {
		return "", ErrTokenOutlivesDelegation
	}
	if !proof.Cert.HasAudience(in.Audience) {
		return "", ErrAudienceNotAllowed
	}
	if !proof.Cert.HasScopes(in.Scopes) {
		return "", ErrScopeNotAllowed
	}

	certHash, err := proof.Cert.Hash()
	if err != nil {
		return "", ErrEncodeFailed
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   in.Subject,
			Audience:  jwt.ClaimStrings{in.Audience},
			IssuedAt:  jwt.NewNumericDate(time.Unix(in.IssuedAt, 0)),
			ExpiresAt: jwt.NewNumericDate(time.Unix(in.ExpiresAt, 0)),
		},
		Scopes:   proof.Cert.Scopes,
		Nonce:    in.Nonce,
		Version:  1,
		CertHash: hex.EncodeToString(certHash[:]),
	}
	if len(in.Scopes) > 0 {
		claims.Scopes = in.Scopes
	}

	token := jwt.NewWithClaims(signingMethodInstance, claims)
	return token.SignedString(m.Signer)
}

// Token pairs a parsed, verified Claims set with the Proof it carried.
type Token struct {
	Claims Claims
	Proof  Proof
}
