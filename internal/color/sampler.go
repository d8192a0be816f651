// internal/color/sampler.go
//
// Random target/shade generation for one round.
//
// Responsibilities:
//   - Generate: uniform random target color.
//   - Shades: near-miss variants sharing one brightness offset per shade.
//   - Options: shades with one random slot overwritten by the target.
//
// The random source is injected so a seeded Sampler reproduces its rounds exactly.
// A Sampler is not safe for concurrent use; each game owns its own.

package color

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
)

const (
	// DefaultOptions is the number of swatches offered per round.
	DefaultOptions = 6

	// DefaultVariation bounds the per-shade offset to [-DefaultVariation, DefaultVariation).
	DefaultVariation = 30
)

// Sampler draws colors from a random source.
type Sampler struct {
	rng *rand.Rand
}

// NewSampler wraps src.
func NewSampler(src rand.Source) *Sampler {
	return &Sampler{rng: rand.New(src)}
}

// NewSeededSampler returns a deterministic sampler for seed.
func NewSeededSampler(seed uint64) *Sampler {
	return NewSampler(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// NewRandomSampler seeds a sampler from crypto/rand.
func NewRandomSampler() *Sampler {
	var b [16]byte
	_, _ = crand.Read(b[:])
	return NewSampler(rand.NewPCG(binary.LittleEndian.Uint64(b[:8]), binary.LittleEndian.Uint64(b[8:])))
}

// Generate returns a color with each channel uniform in [0,255].
func (s *Sampler) Generate() RGB {
	return RGB{
		R: uint8(s.rng.IntN(256)),
		G: uint8(s.rng.IntN(256)),
		B: uint8(s.rng.IntN(256)),
	}
}

// Offset draws one shade offset uniform in [-variation, variation).
func (s *Sampler) Offset(variation int) int {
	if variation <= 0 {
		return 0
	}
	return s.rng.IntN(2*variation) - variation
}

// Shades returns n variants of target. Each variant draws its own offset and
// applies it to all three channels, so hue is roughly kept while brightness moves.
func (s *Sampler) Shades(target RGB, n, variation int) []RGB {
	out := make([]RGB, n)
	for i := range out {
		out[i] = Shift(target, s.Offset(variation))
	}
	return out
}

// Options generates a target plus n shades of it, with one random slot
// overwritten by the exact target. Shades that land on the target by chance
// are kept, so more than one slot may match.
func (s *Sampler) Options(n, variation int) (RGB, []RGB) {
	if n <= 0 {
		n = DefaultOptions
	}
	target := s.Generate()
	opts := s.Shades(target, n, variation)
	opts[s.rng.IntN(n)] = target
	return target, opts
}
