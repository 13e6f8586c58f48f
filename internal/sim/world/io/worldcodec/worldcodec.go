// Package worldcodec reads and writes worlds as JSON. The minimal form is
// {"chunks":[ordinals...]} with every chunk back to back; optional fields
// carry the seed and shape, and chunks_rle replaces chunks with a run-length
// encoding.
package worldcodec

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"voxelforge.ai/internal/sim/block"
	"voxelforge.ai/internal/sim/encoding"
	"voxelforge.ai/internal/sim/world/terrain/grid"
	"voxelforge.ai/internal/sim/world/terrain/store"
)

//go:embed world.schema.json
var schemaJSON string

var schema = jsonschema.MustCompileString("world.schema.json", schemaJSON)

// MaxCells bounds the total voxel count a decoded world may declare.
const MaxCells = 1 << 28

type File struct {
	Chunks      []uint16 `json:"chunks,omitempty"`
	ChunksRLE   string   `json:"chunks_rle,omitempty"`
	Seed        *uint64  `json:"seed,omitempty"`
	Size        int      `json:"size,omitempty"`
	ChunkWidth  int      `json:"chunk_width,omitempty"`
	ChunkHeight int      `json:"chunk_height,omitempty"`
}

type Options struct {
	// RLE writes chunks_rle instead of the plain ordinal array.
	RLE bool
	// Bare writes only the ordinal array, without seed or shape.
	Bare bool
}

func Encode(w io.Writer, world *store.World, opts Options) error {
	f := File{}
	if opts.RLE {
		f.ChunksRLE = encoding.EncodeKinds(world.Blocks)
	} else {
		f.Chunks = make([]uint16, len(world.Blocks))
		for i, k := range world.Blocks {
			f.Chunks[i] = k.Ordinal()
		}
		// An empty world still needs the key.
		if len(f.Chunks) == 0 {
			f.Chunks = []uint16{}
		}
	}
	if !opts.Bare {
		seed := world.Seed
		f.Seed = &seed
		f.Size = world.Size
		f.ChunkWidth = world.Dims.Width
		f.ChunkHeight = world.Dims.Height
	}
	return json.NewEncoder(w).Encode(f)
}

// Decode validates raw against the world schema before building the world.
// Missing shape fields fall back to the default chunk dims and a square world
// inferred from the ordinal count.
func Decode(r io.Reader) (*store.World, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("world json: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("world json: %w", err)
	}
	var f File
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("world json: %w", err)
	}

	dims := grid.DefaultDims()
	if f.ChunkWidth > 0 {
		dims.Width = f.ChunkWidth
	}
	if f.ChunkHeight > 0 {
		dims.Height = f.ChunkHeight
	}
	if _, err := cellCount(1, dims); err != nil {
		return nil, err
	}
	var seed uint64
	if f.Seed != nil {
		seed = *f.Seed
	}

	var blocks []block.Kind
	if f.ChunksRLE != "" {
		if f.Size <= 0 {
			return nil, fmt.Errorf("world json: chunks_rle requires size")
		}
		want, err := cellCount(f.Size, dims)
		if err != nil {
			return nil, err
		}
		blocks, err = encoding.DecodeKinds(f.ChunksRLE, want)
		if err != nil {
			return nil, fmt.Errorf("world json: chunks_rle: %w", err)
		}
	} else {
		blocks = make([]block.Kind, len(f.Chunks))
		for i, v := range f.Chunks {
			if v >= uint16(block.Count) {
				return nil, fmt.Errorf("world json: unknown block ordinal %d at %d", v, i)
			}
			blocks[i] = block.Kind(v)
		}
	}

	size := f.Size
	if size <= 0 {
		size, err = inferSize(len(blocks), dims)
		if err != nil {
			return nil, err
		}
	}
	if _, err := cellCount(size, dims); err != nil {
		return nil, err
	}
	return store.FromBlocks(seed, size, dims, blocks)
}

// cellCount is size*size*volume, rejected once it passes MaxCells so the
// product never overflows.
func cellCount(size int, dims grid.Dims) (int, error) {
	n := 1
	for _, f := range []int{size, size, dims.Width, dims.Height, dims.Width} {
		if f <= 0 || f > MaxCells || n > MaxCells/f {
			return 0, fmt.Errorf("world json: size %d with %dx%dx%d chunks exceeds %d cells", size, dims.Width, dims.Height, dims.Width, MaxCells)
		}
		n *= f
	}
	return n, nil
}

func inferSize(n int, dims grid.Dims) (int, error) {
	vol := dims.Volume()
	if n == 0 || n%vol != 0 {
		return 0, fmt.Errorf("world json: %d cells is not a whole number of %dx%dx%d chunks", n, dims.Width, dims.Height, dims.Width)
	}
	chunks := n / vol
	size := int(math.Round(math.Sqrt(float64(chunks))))
	if size*size != chunks {
		return 0, fmt.Errorf("world json: %d chunks do not form a square world", chunks)
	}
	return size, nil
}

// Save writes the world atomically via a temp file in the same directory.
func Save(path string, world *store.World, opts Options) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	if err := Encode(tmp, world, opts); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Load returns the open error unchanged for a missing file.
func Load(path string) (*store.World, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}
