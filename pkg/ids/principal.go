package ids

import (
	"bytes"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"sort"
)

// PrincipalLen is the fixed byte width of a canister identity.
const PrincipalLen = 29

// Principal is an opaque identity for a compute unit. Equality and
// ordering are byte-wise, matching the host identity substrate.
type Principal [PrincipalLen]byte

// PrincipalFromBytes copies b into a Principal. b must be exactly
// PrincipalLen bytes.
func PrincipalFromBytes(b []byte) (Principal, error) {
	var p Principal
	if len(b) != PrincipalLen {
		return p, fmt.Errorf("ids: principal must be %d bytes, got %d", PrincipalLen, len(b))
	}
	copy(p[:], b)
	return p, nil
}

// MustPrincipalFromBytes is PrincipalFromBytes but panics on error; useful
// for test fixtures and compile-time-known constants.
func MustPrincipalFromBytes(b []byte) Principal {
	p, err := PrincipalFromBytes(b)
	if err != nil {
		panic(err)
	}
	return p
}

// Bytes returns the raw 29-byte identity.
func (p Principal) Bytes() []byte {
	return p[:]
}

// Compare returns -1, 0, or 1 per byte-wise ordering of p and other.
func (p Principal) Compare(other Principal) int {
	return bytes.Compare(p[:], other[:])
}

// Less reports whether p sorts before other under byte-wise ordering.
func (p Principal) Less(other Principal) bool {
	return p.Compare(other) < 0
}

// IsZero reports whether p is the all-zero principal (used as a sentinel
// for "no principal" in contexts where an explicit Option isn't carried).
func (p Principal) IsZero() bool {
	return p == Principal{}
}

// String renders the principal as a lowercase base32 string without
// padding, the conventional host-substrate text form.
func (p Principal) String() string {
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(p[:])
}

// Hex renders the principal as a hex string, handy for log lines and test
// fixtures where base32 is harder to eyeball.
func (p Principal) Hex() string {
	return hex.EncodeToString(p[:])
}

// MarshalText implements encoding.TextMarshaler, so a Principal can key
// JSON maps and serializes as its base32 text form rather than a raw
// byte array.
func (p Principal) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Principal) UnmarshalText(text []byte) error {
	parsed, err := ParsePrincipal(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePrincipal parses the text form produced by String.
func ParsePrincipal(s string) (Principal, error) {
	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(s)
	if err != nil {
		return Principal{}, fmt.Errorf("ids: invalid principal text %q: %w", s, err)
	}
	return PrincipalFromBytes(raw)
}

// PrincipalOf returns a test-fixture principal whose 29 bytes are all b,
// matching the `p(n)` convention used throughout spec scenarios.
func PrincipalOf(b byte) Principal {
	var p Principal
	for i := range p {
		p[i] = b
	}
	return p
}

// SortPrincipals sorts ps in place by byte-wise order.
func SortPrincipals(ps []Principal) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].Less(ps[j]) })
}
