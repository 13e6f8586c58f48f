package tuning

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"voxelforge.ai/internal/sim/block"
	"voxelforge.ai/internal/sim/world/terrain/gen"
	"voxelforge.ai/internal/sim/world/terrain/grid"
	"voxelforge.ai/internal/sim/world/terrain/noise"
	"voxelforge.ai/internal/sim/world/terrain/store"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	World      World                 `yaml:"world"`
	Generation Generation            `yaml:"generation"`
	Meshing    Meshing               `yaml:"meshing"`
	Heightmap  noise.HeightmapConfig `yaml:"heightmap"`
	Stream     Stream                `yaml:"stream"`
}

type World struct {
	Seed        uint64 `yaml:"seed"`
	Size        int    `yaml:"size"`
	ChunkWidth  int    `yaml:"chunk_width"`
	ChunkHeight int    `yaml:"chunk_height"`
}

type Generation struct {
	// Workers <= 0 means one per CPU.
	Workers  int         `yaml:"workers"`
	Bands    []BandEntry `yaml:"bands"`
	Fallback []string    `yaml:"fallback"`
}

type BandEntry struct {
	Min   int      `yaml:"min"`
	Max   int      `yaml:"max"`
	Kinds []string `yaml:"kinds"`
}

type Meshing struct {
	CullChunkBorders bool `yaml:"cull_chunk_borders"`
}

type Stream struct {
	MaxRadius      int `yaml:"max_radius"`
	WriteTimeoutMs int `yaml:"write_timeout_ms"`
}

func Defaults() Tuning {
	def := gen.DefaultBands()
	t := Tuning{
		ProtocolVersion: "1.0",
		World: World{
			Seed:        1982,
			Size:        store.DefaultSize,
			ChunkWidth:  grid.DefaultWidth,
			ChunkHeight: grid.DefaultHeight,
		},
		Heightmap: noise.DefaultHeightmapConfig(),
		Stream: Stream{
			MaxRadius:      4,
			WriteTimeoutMs: 5000,
		},
	}
	for _, l := range def.Layers {
		t.Generation.Bands = append(t.Generation.Bands, BandEntry{Min: l.Min, Max: l.Max, Kinds: kindNames(l.Kinds)})
	}
	t.Generation.Fallback = kindNames(def.Fallback)
	return t
}

// Load overlays the YAML file at path on Defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.World.Size <= 0 {
		return fmt.Errorf("world.size must be > 0")
	}
	if err := t.Dims().Validate(); err != nil {
		return fmt.Errorf("world: %w", err)
	}
	bands, err := t.Bands()
	if err != nil {
		return err
	}
	if err := bands.Validate(); err != nil {
		return fmt.Errorf("generation: %w", err)
	}
	if err := t.Heightmap.Validate(); err != nil {
		return err
	}
	if t.Stream.MaxRadius < 0 {
		return fmt.Errorf("stream.max_radius must be >= 0")
	}
	return nil
}

func (t Tuning) Dims() grid.Dims {
	return grid.Dims{Width: t.World.ChunkWidth, Height: t.World.ChunkHeight}
}

// Bands resolves block names. An empty band list keeps the built-in bands.
func (t Tuning) Bands() (gen.Bands, error) {
	if len(t.Generation.Bands) == 0 && len(t.Generation.Fallback) == 0 {
		return gen.DefaultBands(), nil
	}
	var out gen.Bands
	for i, b := range t.Generation.Bands {
		kinds, err := parseKinds(b.Kinds)
		if err != nil {
			return out, fmt.Errorf("generation.bands[%d]: %w", i, err)
		}
		out.Layers = append(out.Layers, gen.Band{Min: b.Min, Max: b.Max, Kinds: kinds})
	}
	fb, err := parseKinds(t.Generation.Fallback)
	if err != nil {
		return out, fmt.Errorf("generation.fallback: %w", err)
	}
	out.Fallback = fb
	return out, nil
}

func (t Tuning) Workers() int {
	if t.Generation.Workers <= 0 {
		return runtime.NumCPU()
	}
	return t.Generation.Workers
}

// StoreConfig assumes Validate succeeded.
func (t Tuning) StoreConfig() store.Config {
	bands, _ := t.Bands()
	return store.Config{
		Seed:    t.World.Seed,
		Size:    t.World.Size,
		Dims:    t.Dims(),
		Bands:   bands,
		Workers: t.Workers(),
	}
}

func parseKinds(names []string) ([]block.Kind, error) {
	out := make([]block.Kind, 0, len(names))
	for _, n := range names {
		k, ok := block.Parse(n)
		if !ok {
			return nil, fmt.Errorf("unknown block %q", n)
		}
		out = append(out, k)
	}
	return out, nil
}

func kindNames(kinds []block.Kind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = k.String()
	}
	return out
}
