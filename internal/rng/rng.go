// Package rng provides the seeded pseudo-random source used for noise
// injection. A Source is seeded from a 32-bit seed XOR'd with the DJB hash of
// a name, so different subsystems sharing one seed draw different streams.
package rng

import (
	"math"
	"math/rand/v2"
	"time"
)

// discardAfterSeed is the number of values thrown away after seeding.
const discardAfterSeed = 19

// Source is a deterministic generator. It is not safe for concurrent use;
// each engine instance owns its own Source.
type Source struct {
	gen *rand.Rand

	haveSecond bool
	second     float64
}

// New creates a Source seeded with seed XOR Hash(name). A seed of zero
// derives the seed from the wall clock, making the stream non-repeatable.
func New(seed uint32, name string) *Source {
	s := &Source{}
	s.Seed(seed, name)
	return s
}

// Seed re-seeds the source and drops any cached normal deviate.
func (s *Source) Seed(seed uint32, name string) {
	if seed == 0 {
		seed = seedFromTime(time.Now())
	}
	mixed := uint64(seed ^ Hash(name))
	s.gen = rand.New(rand.NewPCG(mixed, mixed^0x9e3779b97f4a7c15))
	s.haveSecond = false
	for i := 0; i < discardAfterSeed; i++ {
		s.Uint32()
	}
}

// Uint32 returns a uniformly distributed 32-bit value.
func (s *Source) Uint32() uint32 {
	return s.gen.Uint32()
}

// Float64 returns a value in [0, 1).
func (s *Source) Float64() float64 {
	for {
		r := s.Uint32()
		if r != math.MaxUint32 {
			return float64(r) / float64(math.MaxUint32)
		}
	}
}

// Float64Inclusive returns a value in [0, 1].
func (s *Source) Float64Inclusive() float64 {
	return float64(s.Uint32()) / float64(math.MaxUint32)
}

// Normal samples a Gaussian with the given mean and standard deviation using
// the polar method. Every second call consumes the cached deviate.
func (s *Source) Normal(mean, stddev float64) float64 {
	if s.haveSecond {
		s.haveSecond = false
		return s.second*stddev + mean
	}

	var u, v, r float64
	for {
		u = s.Float64Inclusive()*2 - 1
		v = s.Float64Inclusive()*2 - 1
		r = u*u + v*v
		if r < 1 && r != 0 {
			break
		}
	}
	r = math.Sqrt(-2 * math.Log(r) / r)
	s.second = v * r
	s.haveSecond = true
	return u*r*stddev + mean
}

// Hash returns the DJB hash of name.
func Hash(name string) uint32 {
	h := uint32(5381)
	for i := 0; i < len(name); i++ {
		h = (h << 5) + h + uint32(name[i])
	}
	return h
}

// seedFromTime mixes the seconds and microseconds of t into a 32-bit seed.
func seedFromTime(t time.Time) uint32 {
	sec := uint32(t.Unix())
	usec := uint32(t.Nanosecond() / 1000)
	return sec ^ ((usec & 0xfff) << 20) ^ (usec & 0xff000)
}
