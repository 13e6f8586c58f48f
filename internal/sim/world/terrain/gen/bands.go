package gen

import (
	"fmt"
	"math/rand/v2"

	"voxelforge.ai/internal/sim/block"
)

// Band assigns one of Kinds to every solid cell with Min <= y <= Max.
// A band with several kinds costs one random draw per cell; a single-kind
// band costs none.
type Band struct {
	Min   int
	Max   int
	Kinds []block.Kind
}

// Bands is an ordered list of depth bands. The first matching band wins;
// cells no band covers take a uniform draw from Fallback.
type Bands struct {
	Layers   []Band
	Fallback []block.Kind
}

func DefaultBands() Bands {
	return Bands{
		Layers: []Band{
			{Min: 0, Max: 20, Kinds: []block.Kind{block.Andesite}},
			{Min: 21, Max: 25, Kinds: []block.Kind{block.Andesite, block.Dirt}},
			{Min: 26, Max: 54, Kinds: []block.Kind{block.Dirt}},
			{Min: 55, Max: 63, Kinds: []block.Kind{block.Grass}},
		},
		Fallback: []block.Kind{block.Stone, block.Granite, block.Diorite, block.Andesite},
	}
}

func (b Bands) Validate() error {
	if len(b.Fallback) == 0 {
		return fmt.Errorf("bands: empty fallback")
	}
	for _, k := range b.Fallback {
		if !k.Solid() {
			return fmt.Errorf("bands: fallback kind %v is not solid", k)
		}
	}
	for i, l := range b.Layers {
		if l.Min < 0 || l.Max < l.Min {
			return fmt.Errorf("bands[%d]: bad range %d..%d", i, l.Min, l.Max)
		}
		if len(l.Kinds) == 0 {
			return fmt.Errorf("bands[%d]: no kinds", i)
		}
		for _, k := range l.Kinds {
			if !k.Solid() {
				return fmt.Errorf("bands[%d]: kind %v is not solid", i, k)
			}
		}
	}
	return nil
}

func (b Bands) pick(y int, rng *rand.Rand) block.Kind {
	for _, l := range b.Layers {
		if y < l.Min || y > l.Max {
			continue
		}
		if len(l.Kinds) == 1 {
			return l.Kinds[0]
		}
		return l.Kinds[rng.IntN(len(l.Kinds))]
	}
	return b.Fallback[rng.IntN(len(b.Fallback))]
}
