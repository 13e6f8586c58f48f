package catalogs

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"voxelforge.ai/internal/sim/block"
)

//go:embed blocks.json
var defaultBlocks []byte

// Catalogs holds the data-driven definitions loaded at startup.
type Catalogs struct {
	Blocks BlockCatalog
}

// BlockCatalog maps each block kind to its render material. Palette order is
// the kind ordinal order, so palette id == block.Kind.
type BlockCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]BlockDef
	PaletteDigest string
	DefsDigest    string
}

type BlockDef struct {
	ID       string   `json:"id"`
	Textures Textures `json:"textures"`
}

type Textures struct {
	Diffuse  string `json:"diffuse,omitempty"`
	Normal   string `json:"normal,omitempty"`
	Specular string `json:"specular,omitempty"`
}

// Material is the render slot for a solid kind.
type Material struct {
	Index    int      `json:"index"`
	Block    string   `json:"block"`
	Textures Textures `json:"textures"`
}

// Default returns the built-in catalogs.
func Default() (*Catalogs, error) {
	var c Catalogs
	if err := parseBlocks(defaultBlocks, &c.Blocks); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load reads blocks.json from configDir, falling back to the built-in
// definitions when the file does not exist.
func Load(configDir string) (*Catalogs, error) {
	if configDir == "" {
		return Default()
	}
	raw, err := os.ReadFile(filepath.Join(configDir, "blocks.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return Default()
		}
		return nil, err
	}
	var c Catalogs
	if err := parseBlocks(raw, &c.Blocks); err != nil {
		return nil, err
	}
	return &c, nil
}

// DefaultBlocksJSON exposes the embedded definitions, e.g. for indexing.
func DefaultBlocksJSON() []byte {
	out := make([]byte, len(defaultBlocks))
	copy(out, defaultBlocks)
	return out
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func parseBlocks(raw []byte, out *BlockCatalog) error {
	out.DefsDigest = sha256Hex(raw)

	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("blocks.json: %w", err)
	}
	out.Defs = map[string]BlockDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("blocks.json: empty id")
		}
		k, ok := block.Parse(d.ID)
		if !ok {
			return fmt.Errorf("blocks.json: unknown block %q", d.ID)
		}
		if _, dup := out.Defs[k.String()]; dup {
			return fmt.Errorf("blocks.json: duplicate block %q", d.ID)
		}
		d.ID = k.String()
		out.Defs[d.ID] = d
	}

	// Ensure AIR exists and is palette id 0.
	if _, ok := out.Defs["AIR"]; !ok {
		return fmt.Errorf("blocks.json: missing AIR")
	}
	for _, name := range block.Palette() {
		if _, ok := out.Defs[name]; !ok {
			return fmt.Errorf("blocks.json: missing %s", name)
		}
	}

	ids := block.Palette()
	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

// Materials lists render slots for every solid kind, ordered by slot.
func (b BlockCatalog) Materials() []Material {
	out := make([]Material, 0, block.Len()-1)
	for k := block.Stone; k < block.Count; k++ {
		out = append(out, b.Material(k))
	}
	return out
}

// Material returns the slot for k. Air has no slot and reports index -1.
func (b BlockCatalog) Material(k block.Kind) Material {
	if !k.Solid() {
		return Material{Index: -1, Block: k.String()}
	}
	return Material{Index: int(k) - 1, Block: k.String(), Textures: b.Defs[k.String()].Textures}
}
