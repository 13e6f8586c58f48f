package noise

import (
	"encoding/binary"
	"math/rand/v2"

	"github.com/ojrac/opensimplex-go"
)

// Field is a coherent noise sampler. Eval3 returns values in roughly [-1, 1].
type Field interface {
	Eval2(x, y float64) float64
	Eval3(x, y, z float64) float64
}

// New returns an OpenSimplex field seeded from seed.
func New(seed uint64) Field {
	return opensimplex.New(int64(seed))
}

// Unit maps a [-1, 1] sample onto [0, 1], clamped.
func Unit(v float64) float64 {
	v = (v + 1) / 2
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// NewRand returns a ChaCha8 stream keyed by seed. Two streams built from the
// same seed yield identical draws.
func NewRand(seed uint64) *rand.Rand {
	var key [32]byte
	binary.LittleEndian.PutUint64(key[0:8], seed)
	binary.LittleEndian.PutUint64(key[8:16], ^seed)
	return rand.New(rand.NewChaCha8(key))
}
