package catalogs

import (
	"os"
	"path/filepath"
	"testing"

	"voxelforge.ai/internal/sim/block"
)

func TestDefaultPaletteFollowsKindOrder(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	if len(c.Blocks.Palette) != block.Len() {
		t.Fatalf("palette len %d", len(c.Blocks.Palette))
	}
	if c.Blocks.Palette[0] != "AIR" {
		t.Fatalf("AIR must be palette id 0, got %q", c.Blocks.Palette[0])
	}
	for i, name := range c.Blocks.Palette {
		if k, ok := block.Parse(name); !ok || int(k) != i {
			t.Fatalf("palette[%d] = %q", i, name)
		}
		if c.Blocks.Index[name] != uint16(i) {
			t.Fatalf("index[%q] = %d", name, c.Blocks.Index[name])
		}
	}
	if c.Blocks.PaletteDigest == "" || c.Blocks.DefsDigest == "" {
		t.Fatalf("digests not set")
	}
}

func TestMaterialsMapToOrdinalMinusOne(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	mats := c.Blocks.Materials()
	if len(mats) != block.Len()-1 {
		t.Fatalf("materials %d", len(mats))
	}
	for i, m := range mats {
		if m.Index != i {
			t.Fatalf("material %d has index %d", i, m.Index)
		}
		if m.Textures.Diffuse == "" {
			t.Fatalf("material %s has no diffuse texture", m.Block)
		}
	}
	if got := c.Blocks.Material(block.Stone).Textures.Diffuse; got != "bedrock" {
		t.Fatalf("stone diffuse = %q", got)
	}
	if c.Blocks.Material(block.Air).Index != -1 {
		t.Fatalf("air should have no material slot")
	}
}

func TestLoadFallsBackToDefault(t *testing.T) {
	c, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def, _ := Default()
	if c.Blocks.DefsDigest != def.Blocks.DefsDigest {
		t.Fatalf("expected embedded defs")
	}
}

func TestLoadRejectsBadCatalogs(t *testing.T) {
	cases := map[string]string{
		"missing air":   `[{"id":"STONE"},{"id":"GRANITE"},{"id":"DIORITE"},{"id":"ANDESITE"},{"id":"GRASS"},{"id":"DIRT"}]`,
		"unknown block": `[{"id":"AIR"},{"id":"OBSIDIAN"}]`,
		"empty id":      `[{"id":""}]`,
		"missing kinds": `[{"id":"AIR"},{"id":"STONE"}]`,
		"duplicate":     `[{"id":"AIR"},{"id":"air"}]`,
		"not json":      `{`,
	}
	for name, raw := range cases {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "blocks.json"), []byte(raw), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := Load(dir); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestShippedBlocksMatchEmbedded(t *testing.T) {
	shipped, err := Load(filepath.Join("..", "..", "..", "configs"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def, err := Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	if shipped.Blocks.DefsDigest != def.Blocks.DefsDigest {
		t.Fatalf("configs/blocks.json drifted from the embedded catalog")
	}
}
