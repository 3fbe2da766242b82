// Package rng derives independent, reproducible random streams from a single
// integer seed so that concurrent units of work never share a source.
package rng

import (
	"encoding/binary"
	"math/rand"

	"github.com/cespare/xxhash/v2"
)

// New returns a dedicated source seeded with seed.
func New(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// Derive hashes seed together with parts into a sub-seed. The same inputs
// always produce the same sub-seed, independent of call order.
func Derive(seed int64, parts ...int) int64 {
	buf := make([]byte, 8*(len(parts)+1))
	binary.LittleEndian.PutUint64(buf, uint64(seed))
	for i, part := range parts {
		binary.LittleEndian.PutUint64(buf[8*(i+1):], uint64(int64(part)))
	}
	return int64(xxhash.Sum64(buf))
}

// Stream is New(Derive(seed, parts...)).
func Stream(seed int64, parts ...int) *rand.Rand {
	return New(Derive(seed, parts...))
}
