package mesh

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"voxelforge.ai/internal/sim/block"
	"voxelforge.ai/internal/sim/world/terrain/grid"
)

func filled(d grid.Dims, k block.Kind) []block.Kind {
	v := make([]block.Kind, d.Volume())
	for i := range v {
		v[i] = k
	}
	return v
}

func checkWellFormed(t *testing.T, m ChunkMesh) {
	t.Helper()
	for _, mm := range m.Materials {
		if len(mm.Vertices)%4 != 0 {
			t.Fatalf("%v: vertex count %d not a multiple of 4", mm.Kind, len(mm.Vertices))
		}
		if len(mm.Indices)%6 != 0 {
			t.Fatalf("%v: index count %d not a multiple of 6", mm.Kind, len(mm.Indices))
		}
		if len(mm.Indices)/6 != len(mm.Vertices)/4 {
			t.Fatalf("%v: faces mismatch", mm.Kind)
		}
		for _, idx := range mm.Indices {
			if int(idx) >= len(mm.Vertices) {
				t.Fatalf("%v: index %d out of range (%d vertices)", mm.Kind, idx, len(mm.Vertices))
			}
		}
		if mm.Material != int(mm.Kind)-1 {
			t.Fatalf("%v: material %d", mm.Kind, mm.Material)
		}
	}
}

func TestAllAirEmitsNothing(t *testing.T) {
	d := grid.Dims{Width: 4, Height: 4}
	m := NewMesher(d).Build(filled(d, block.Air), grid.Position{})
	if len(m.Materials) != 0 {
		t.Fatalf("expected no materials, got %d", len(m.Materials))
	}
}

func TestSingleVoxelEmitsSixFaces(t *testing.T) {
	d := grid.Dims{Width: 3, Height: 3}
	v := filled(d, block.Air)
	v[d.Index(1, 1, 1)] = block.Dirt
	m := NewMesher(d).Build(v, grid.Position{})
	checkWellFormed(t, m)
	if len(m.Materials) != 1 || m.Materials[0].Kind != block.Dirt {
		t.Fatalf("unexpected materials: %+v", m.Materials)
	}
	s := m.Stats()
	if s.Faces != 6 || s.Vertices != 24 || s.Indices != 36 || s.Triangles != 12 {
		t.Fatalf("unexpected stats: %+v", s)
	}
	// First face is the back face, shifted to the voxel position.
	got := m.Materials[0].Vertices[0].Position
	if got != (mgl32.Vec3{1, 1, 1}) {
		t.Fatalf("first vertex at %v", got)
	}
	if m.Materials[0].Vertices[0].Normal != (mgl32.Vec3{0, 0, -1}) {
		t.Fatalf("first face normal %v", m.Materials[0].Vertices[0].Normal)
	}
	want := []uint32{0, 1, 2, 2, 3, 0, 4, 5, 6, 6, 7, 4}
	for i, w := range want {
		if m.Materials[0].Indices[i] != w {
			t.Fatalf("index %d = %d want %d", i, m.Materials[0].Indices[i], w)
		}
	}
}

func TestAdjacentVoxelsShareHiddenFace(t *testing.T) {
	d := grid.Dims{Width: 4, Height: 4}
	v := filled(d, block.Air)
	v[d.Index(1, 1, 1)] = block.Stone
	v[d.Index(2, 1, 1)] = block.Granite
	m := NewMesher(d).Build(v, grid.Position{})
	checkWellFormed(t, m)
	if s := m.Stats(); s.Faces != 10 {
		t.Fatalf("expected 10 faces, got %d", s.Faces)
	}
	if len(m.Materials) != 2 || m.Materials[0].Kind != block.Stone || m.Materials[1].Kind != block.Granite {
		t.Fatalf("materials out of order: %+v", m.Materials)
	}
	stone, _ := m.Material(block.Stone)
	for i := 0; i < len(stone.Vertices); i += 4 {
		if stone.Vertices[i].Normal == (mgl32.Vec3{1, 0, 0}) {
			t.Fatalf("stone right face should be culled")
		}
	}
}

func TestDirtNeighborHidesFace(t *testing.T) {
	d := grid.Dims{Width: 4, Height: 4}
	v := filled(d, block.Air)
	v[d.Index(1, 1, 1)] = block.Stone
	v[d.Index(2, 1, 1)] = block.Dirt
	m := NewMesher(d).Build(v, grid.Position{})
	if s := m.Stats(); s.Faces != 10 {
		t.Fatalf("expected 10 faces, got %d", s.Faces)
	}
}

func TestSolidChunkEmitsOnlyBoundaryFaces(t *testing.T) {
	d := grid.Dims{Width: 3, Height: 2}
	m := NewMesher(d).Build(filled(d, block.Stone), grid.Position{})
	checkWellFormed(t, m)
	// 2 * (3*3) top/bottom + 4 * (3*2) sides
	if s := m.Stats(); s.Faces != 18+24 {
		t.Fatalf("expected 42 faces, got %d", s.Faces)
	}
}

func TestNeighborFuncCullsChunkBorder(t *testing.T) {
	d := grid.Dims{Width: 2, Height: 1}
	v := filled(d, block.Stone)
	plain := NewMesher(d).Build(v, grid.Position{})
	solidAround := NewMesher(d).WithNeighbors(func(x, y, z int) block.Kind { return block.Stone })
	culled := solidAround.Build(v, grid.Position{})
	checkWellFormed(t, culled)
	if plain.Stats().Faces != 16 {
		t.Fatalf("plain faces %d", plain.Stats().Faces)
	}
	// Only top and bottom remain; vertical neighbors are never consulted.
	if culled.Stats().Faces != 8 {
		t.Fatalf("culled faces %d", culled.Stats().Faces)
	}
}

func TestInstanceMatrixTranslates(t *testing.T) {
	d := grid.Dims{Width: 2, Height: 2}
	origin := grid.Position{32, 0, 16}
	m := NewMesher(d).Build(filled(d, block.Dirt), origin)
	p := m.Instance.Matrix().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	if p.Vec3() != origin {
		t.Fatalf("matrix moved origin to %v", p.Vec3())
	}
}

func TestVertexBytesStride(t *testing.T) {
	d := grid.Dims{Width: 1, Height: 1}
	m := NewMesher(d).Build(filled(d, block.Grass), grid.Position{})
	mm := m.Materials[0]
	if got := len(mm.VertexBytes()); got != len(mm.Vertices)*VertexStride {
		t.Fatalf("vertex bytes %d", got)
	}
	if got := len(mm.IndexBytes()); got != len(mm.Indices)*4 {
		t.Fatalf("index bytes %d", got)
	}
}
