// Package randsrc provides the runtime's injectable source of randomness
// for internal scheduling decisions (heartbeat jitter, wake-assignment
// among live workers). It does not cover WASM-visible randomness, which is
// seeded per task and handled by internal/host's random plugin.
package randsrc

import (
	"crypto/rand"
	"encoding/binary"
	"math"
)

// Source is the entropy seam injected into worker.Worker.
type Source interface {
	// Float64 returns a pseudorandom value in [0, 1).
	Float64() float64
}

// System is the production Source, backed by crypto/rand.
type System struct{}

// Float64 implements Source.
func (System) Float64() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand.Read on a supported platform does not fail; if it
		// somehow does, fall back to a fixed jitter rather than panic in
		// a control loop.
		return 0.5
	}
	v := binary.BigEndian.Uint64(buf[:])
	return float64(v>>11) / float64(uint64(1)<<53) * (1 - math.SmallestNonzeroFloat64)
}
