// Package gen fills a single chunk's voxel grid from a seed and a world-space
// offset. Generation is a pure function of (seed, dims, bands, offset).
package gen

import (
	"math"

	"voxelforge.ai/internal/sim/block"
	"voxelforge.ai/internal/sim/world/terrain/grid"
	"voxelforge.ai/internal/sim/world/terrain/noise"
)

type Generator struct {
	seed  uint64
	dims  grid.Dims
	bands Bands
}

func New(seed uint64, dims grid.Dims, bands Bands) *Generator {
	return &Generator{seed: seed, dims: dims, bands: bands}
}

func (g *Generator) Seed() uint64    { return g.seed }
func (g *Generator) Dims() grid.Dims { return g.dims }

// Generate returns a fresh grid of Dims().Volume() cells.
func (g *Generator) Generate(offset grid.Position) []block.Kind {
	out := make([]block.Kind, g.dims.Volume())
	g.Fill(out, offset)
	return out
}

// Fill overwrites dst, which must hold Dims().Volume() cells.
//
// The random stream and the noise field are rebuilt from the seed on every
// call, so two calls with the same offset are bit-identical. Chunks at
// different offsets share the random stream; only the noise input differs.
func (g *Generator) Fill(dst []block.Kind, offset grid.Position) {
	rng := noise.NewRand(g.seed)
	field := noise.New(g.seed)

	w, h := g.dims.Width, g.dims.Height
	ox, oy, oz := float64(offset.X()), float64(offset.Y()), float64(offset.Z())
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for z := 0; z < w; z++ {
				px := (float64(x) + ox) / float64(w)
				py := (float64(y) + oy) / float64(h)
				pz := (float64(z) + oz) / float64(w)
				maxY := int(math.Floor(noise.Unit(field.Eval3(px, py, pz)) * float64(h)))

				var k block.Kind
				switch {
				case y == 0:
					k = block.Stone
				case y > maxY:
					k = block.Air
				default:
					k = g.bands.pick(y, rng)
				}
				dst[g.dims.Index(x, y, z)] = k
			}
		}
	}
}
