// Package worldtest builds hand-made voxel grids and small worlds for tests
// that exercise the generator and mesher from the outside.
package worldtest

import (
	"context"
	"testing"

	"voxelforge.ai/internal/sim/block"
	"voxelforge.ai/internal/sim/world/terrain/grid"
	"voxelforge.ai/internal/sim/world/terrain/store"
)

// Grid is a single chunk's voxels.
type Grid struct {
	Dims  grid.Dims
	Cells []block.Kind
}

func NewGrid(d grid.Dims) *Grid {
	return &Grid{Dims: d, Cells: make([]block.Kind, d.Volume())}
}

func (g *Grid) At(x, y, z int) block.Kind {
	if !g.Dims.InBounds(x, y, z) {
		return block.Air
	}
	return g.Cells[g.Dims.Index(x, y, z)]
}

func (g *Grid) Set(x, y, z int, k block.Kind) *Grid {
	g.Cells[g.Dims.Index(x, y, z)] = k
	return g
}

func (g *Grid) Fill(k block.Kind) *Grid {
	for i := range g.Cells {
		g.Cells[i] = k
	}
	return g
}

// Box fills the inclusive box [x0..x1] x [y0..y1] x [z0..z1], clipped to
// the grid.
func (g *Grid) Box(x0, y0, z0, x1, y1, z1 int, k block.Kind) *Grid {
	for y := max(y0, 0); y <= min(y1, g.Dims.Height-1); y++ {
		for x := max(x0, 0); x <= min(x1, g.Dims.Width-1); x++ {
			for z := max(z0, 0); z <= min(z1, g.Dims.Width-1); z++ {
				g.Set(x, y, z, k)
			}
		}
	}
	return g
}

// Count returns how many cells hold k.
func (g *Grid) Count(k block.Kind) int {
	n := 0
	for _, c := range g.Cells {
		if c == k {
			n++
		}
	}
	return n
}

// ExposedFaces counts, per kind, the faces a mesher must emit when chunk
// borders face air. It is a brute-force reference, not a mesher.
func ExposedFaces(g *Grid) [block.Count]int {
	var out [block.Count]int
	dirs := [6][3]int{{0, 0, -1}, {0, 0, 1}, {0, 1, 0}, {0, -1, 0}, {-1, 0, 0}, {1, 0, 0}}
	for i, k := range g.Cells {
		if !k.Solid() {
			continue
		}
		x, y, z := g.Dims.Coords(i)
		for _, d := range dirs {
			if !g.At(x+d[0], y+d[1], z+d[2]).Solid() {
				out[k]++
			}
		}
	}
	return out
}

// Generate builds a small world or fails the test.
func Generate(t testing.TB, seed uint64, size int, d grid.Dims) *store.World {
	t.Helper()
	cfg := store.DefaultConfig()
	cfg.Seed = seed
	cfg.Size = size
	cfg.Dims = d
	w, err := store.Generate(context.Background(), cfg)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return w
}

// Flat builds a world whose every column is solid k up to and including
// height top.
func Flat(t testing.TB, size int, d grid.Dims, top int, k block.Kind) *store.World {
	t.Helper()
	blocks := make([]block.Kind, size*size*d.Volume())
	for c := 0; c < size*size; c++ {
		chunk := blocks[c*d.Volume() : (c+1)*d.Volume()]
		for i := range chunk {
			if _, y, _ := d.Coords(i); y <= top {
				chunk[i] = k
			}
		}
	}
	w, err := store.FromBlocks(0, size, d, blocks)
	if err != nil {
		t.Fatalf("flat world: %v", err)
	}
	return w
}
