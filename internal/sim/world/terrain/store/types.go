package store

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"runtime"

	"voxelforge.ai/internal/sim/block"
	"voxelforge.ai/internal/sim/world/terrain/gen"
	"voxelforge.ai/internal/sim/world/terrain/grid"
)

const DefaultSize = 10

type ChunkKey struct {
	CX int
	CZ int
}

type Config struct {
	Seed    uint64
	Size    int // chunks per axis
	Dims    grid.Dims
	Bands   gen.Bands
	Workers int
}

func DefaultConfig() Config {
	return Config{
		Seed:    1982,
		Size:    DefaultSize,
		Dims:    grid.DefaultDims(),
		Bands:   gen.DefaultBands(),
		Workers: runtime.NumCPU(),
	}
}

func (c Config) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("world size must be > 0, got %d", c.Size)
	}
	if err := c.Dims.Validate(); err != nil {
		return err
	}
	if err := c.Bands.Validate(); err != nil {
		return err
	}
	return nil
}

// World is Size x Size chunks stored back to back. Chunk (cx, cz) occupies
// slot cx*Size+cz; cells inside a slot follow grid.Dims.Index.
type World struct {
	Seed   uint64
	Size   int
	Dims   grid.Dims
	Blocks []block.Kind
}

// FromBlocks wraps an existing flat block slice, checking its length.
func FromBlocks(seed uint64, size int, dims grid.Dims, blocks []block.Kind) (*World, error) {
	if size <= 0 {
		return nil, fmt.Errorf("world size must be > 0, got %d", size)
	}
	if err := dims.Validate(); err != nil {
		return nil, err
	}
	want := size * size * dims.Volume()
	if len(blocks) != want {
		return nil, fmt.Errorf("world blocks length mismatch: got %d want %d", len(blocks), want)
	}
	return &World{Seed: seed, Size: size, Dims: dims, Blocks: blocks}, nil
}

func (w *World) ChunkCount() int {
	return w.Size * w.Size
}

func (w *World) slot(cx, cz int) int {
	return cx*w.Size + cz
}

func (w *World) HasChunk(cx, cz int) bool {
	return cx >= 0 && cx < w.Size && cz >= 0 && cz < w.Size
}

// Chunk returns the chunk's cells as a view into Blocks. Callers must not
// modify it.
func (w *World) Chunk(cx, cz int) []block.Kind {
	vol := w.Dims.Volume()
	start := w.slot(cx, cz) * vol
	return w.Blocks[start : start+vol : start+vol]
}

// ChunkOffset is the world-space position of the chunk's (0,0,0) cell.
func (w *World) ChunkOffset(cx, cz int) grid.Position {
	return grid.Position{float32(cx * w.Dims.Width), 0, float32(cz * w.Dims.Width)}
}

// ChunkKeys lists chunks in storage order.
func (w *World) ChunkKeys() []ChunkKey {
	keys := make([]ChunkKey, 0, w.ChunkCount())
	for cx := 0; cx < w.Size; cx++ {
		for cz := 0; cz < w.Size; cz++ {
			keys = append(keys, ChunkKey{CX: cx, CZ: cz})
		}
	}
	return keys
}

// At looks up a world lattice cell. Cells outside the world are Air.
func (w *World) At(x, y, z int) block.Kind {
	width := w.Dims.Width
	if x < 0 || z < 0 || y < 0 || y >= w.Dims.Height {
		return block.Air
	}
	cx, cz := x/width, z/width
	if !w.HasChunk(cx, cz) {
		return block.Air
	}
	return w.Chunk(cx, cz)[w.Dims.Index(x%width, y, z%width)]
}

// NeighborFunc resolves chunk-local coordinates of chunk (cx, cz), including
// ones outside the chunk, against the whole world.
func (w *World) NeighborFunc(cx, cz int) func(x, y, z int) block.Kind {
	bx, bz := cx*w.Dims.Width, cz*w.Dims.Width
	return func(x, y, z int) block.Kind {
		return w.At(bx+x, y, bz+z)
	}
}

func digest(blocks []block.Kind) [32]byte {
	h := sha256.New()
	var tmp [2]byte
	for _, v := range blocks {
		binary.LittleEndian.PutUint16(tmp[:], uint16(v))
		h.Write(tmp[:])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func (w *World) ChunkDigest(cx, cz int) [32]byte {
	return digest(w.Chunk(cx, cz))
}

func (w *World) Digest() [32]byte {
	return digest(w.Blocks)
}

// Stats counts cells per kind, indexed by ordinal.
func (w *World) Stats() [block.Count]int {
	var out [block.Count]int
	for _, k := range w.Blocks {
		if k.Valid() {
			out[k]++
		}
	}
	return out
}
