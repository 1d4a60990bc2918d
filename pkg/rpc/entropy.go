package rpc

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"sync"

	"github.com/cuemby/canic/pkg/runtime"
)

// EntropyPool caches the host's replicated-randomness beacon output so
// NewRequestID's entropy-preferred path doesn't round-trip to the host on
// every call. It is refreshed periodically by the scheduler's
// entropy-reseed task (pkg/scheduler.NameEntropyReseed); between reseeds,
// Random32 derives each output by hashing the cached seed with a
// per-call counter, so no two draws from the same seed ever coincide.
type EntropyPool struct {
	src runtime.RandomSource

	mu      sync.Mutex
	seed    [32]byte
	counter uint64
	valid   bool
}

// NewEntropyPool wraps src. Until the first Reseed, Random32 falls through
// to src directly.
func NewEntropyPool(src runtime.RandomSource) *EntropyPool {
	return &EntropyPool{src: src}
}

// Reseed draws fresh entropy from the underlying source and caches it as
// the derivation seed, resetting the per-call counter.
func (p *EntropyPool) Reseed(ctx context.Context) error {
	b, err := p.src.Random32(ctx)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.seed = b
	p.counter = 0
	p.valid = true
	p.mu.Unlock()
	return nil
}

// Random32 implements runtime.RandomSource. With a seed cached it returns
// SHA-256(seed ∥ counter), bumping the counter per call; without one it
// draws directly from the underlying source.
func (p *EntropyPool) Random32(ctx context.Context) ([32]byte, error) {
	p.mu.Lock()
	if !p.valid {
		p.mu.Unlock()
		return p.src.Random32(ctx)
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], p.counter)
	p.counter++
	seed := p.seed
	p.mu.Unlock()

	h := sha256.New()
	h.Write(seed[:])
	h.Write(buf[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

var _ runtime.RandomSource = (*EntropyPool)(nil)
