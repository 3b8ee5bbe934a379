package sim

import (
	"math/rand"

	"github.com/verdantlab/thicket/plant"
)

// nodeRNG returns a random stream that depends only on (seed, tick, node).
// Every worker derives the same stream for the same node regardless of how
// nodes are chunked across workers, which is what keeps stochastic rule
// outcomes reproducible under any parallel schedule.
func nodeRNG(seed int64, tick int32, id plant.NodeID) *rand.Rand {
	s := mix64(uint64(seed) ^ mix64(uint64(uint32(tick))) ^ mix64(uint64(uint32(id))+0x9e3779b97f4a7c15))
	return rand.New(rand.NewSource(int64(s)))
}

// mix64 is the splitmix64 finalizer.
func mix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
