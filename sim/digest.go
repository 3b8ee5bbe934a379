package sim

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"

	"github.com/verdantlab/thicket/field"
	"github.com/verdantlab/thicket/plant"
)

// Digest returns a hex sha256 over the canonical encoding of a committed
// graph/field pair. Two runs that committed identical state produce the
// same digest regardless of worker count or scheduling; the determinism
// tests compare these.
func Digest(g *plant.Graph, f *field.Field) string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, uint64(g.Minted()))
	g.EachLive(func(n *plant.Node) {
		digestWriteI64(h, &tmp, int64(n.ID))
		h.Write([]byte{byte(n.Kind)})
		digestWriteI64(h, &tmp, int64(n.Parent))
		digestWriteU64(h, &tmp, uint64(len(n.Children)))
		for _, c := range n.Children {
			digestWriteI64(h, &tmp, int64(c))
		}
		digestWriteF64(h, &tmp, n.Pos.X)
		digestWriteF64(h, &tmp, n.Pos.Y)
		digestWriteF64(h, &tmp, n.Pos.Z)
		digestWriteF64(h, &tmp, n.Dir.X)
		digestWriteF64(h, &tmp, n.Dir.Y)
		digestWriteF64(h, &tmp, n.Dir.Z)
		digestWriteF64(h, &tmp, n.Length)
		digestWriteI64(h, &tmp, int64(n.AgeTicks))
		digestWriteF64(h, &tmp, n.Reserve)
	})

	digestWriteU64(h, &tmp, uint64(f.W))
	digestWriteU64(h, &tmp, uint64(f.H))
	digestWriteU64(h, &tmp, uint64(f.D))
	for z := 0; z < f.D; z++ {
		for y := 0; y < f.H; y++ {
			for x := 0; x < f.W; x++ {
				c := f.At(field.Key{X: x, Y: y, Z: z})
				h.Write([]byte{byte(c.Material)})
				digestWriteF64(h, &tmp, c.Sunlight)
				digestWriteF64(h, &tmp, c.Moisture)
				digestWriteF64(h, &tmp, c.Temperature)
				digestWriteF64(h, &tmp, c.Density)
			}
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}

func digestWriteU64(h hash.Hash, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hash.Hash, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}

func digestWriteF64(h hash.Hash, tmp *[8]byte, v float64) {
	digestWriteU64(h, tmp, math.Float64bits(v))
}
