package placement

import (
	"crypto/sha256"
	"encoding/binary"
)

// score computes the HRW (highest random weight) score for a candidate
// given a tenant partition key: the first 8 bytes of SHA-256(tenant ∥
// candidate), interpreted as a big-endian unsigned 64-bit integer. The
// hash choice is a cluster-wide invariant: every replica and runtime
// version must compute scores identically, or placement decisions
// diverge between peers.
func score(tenant string, candidate []byte) uint64 {
	h := sha256.New()
	h.Write([]byte(tenant))
	h.Write(candidate)
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8])
}

// selectHRW picks the highest-scoring candidate for tenant, via fn to
// obtain each candidate's canonical byte encoding. Ties are broken by
// ascending byte-wise order of the candidate's canonical bytes.
func selectHRW[T any](tenant string, candidates []T, canonicalBytes func(T) []byte) (T, bool) {
	var best T
	var bestScore uint64
	var bestBytes []byte
	found := false

	for _, c := range candidates {
		b := canonicalBytes(c)
		s := score(tenant, b)
		if !found || s > bestScore || (s == bestScore && lessBytes(b, bestBytes)) {
			best = c
			bestScore = s
			bestBytes = b
			found = true
		}
	}
	return best, found
}

func lessBytes(a, b []byte) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
