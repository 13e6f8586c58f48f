package mesh

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"voxelforge.ai/internal/sim/block"
	"voxelforge.ai/internal/sim/world/terrain/grid"
)

// VertexStride is the packed size of one Vertex in bytes (14 float32).
const VertexStride = 14 * 4

type Vertex struct {
	Position  mgl32.Vec3 `json:"position"`
	TexCoords mgl32.Vec2 `json:"tex_coords"`
	Normal    mgl32.Vec3 `json:"normal"`
	Tangent   mgl32.Vec3 `json:"tangent"`
	Bitangent mgl32.Vec3 `json:"bitangent"`
}

func (v Vertex) translate(x, y, z float32) Vertex {
	v.Position = v.Position.Add(mgl32.Vec3{x, y, z})
	return v
}

// MaterialMesh holds the visible faces of one block kind. Indices are local
// to Vertices.
type MaterialMesh struct {
	Kind     block.Kind
	Material int // texture slot, Kind ordinal minus one
	Vertices []Vertex
	Indices  []uint32
}

func (m MaterialMesh) TriangleCount() int {
	return len(m.Indices) / 3
}

func (m MaterialMesh) FaceCount() int {
	return len(m.Vertices) / 4
}

// VertexBytes packs vertices little-endian in field order.
func (m MaterialMesh) VertexBytes() []byte {
	out := make([]byte, 0, len(m.Vertices)*VertexStride)
	var tmp [4]byte
	put := func(vs ...float32) {
		for _, f := range vs {
			binary.LittleEndian.PutUint32(tmp[:], math.Float32bits(f))
			out = append(out, tmp[:]...)
		}
	}
	for _, v := range m.Vertices {
		put(v.Position[:]...)
		put(v.TexCoords[:]...)
		put(v.Normal[:]...)
		put(v.Tangent[:]...)
		put(v.Bitangent[:]...)
	}
	return out
}

func (m MaterialMesh) IndexBytes() []byte {
	out := make([]byte, len(m.Indices)*4)
	for i, idx := range m.Indices {
		binary.LittleEndian.PutUint32(out[i*4:], idx)
	}
	return out
}

// Instance places a chunk's mesh in the world.
type Instance struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
}

func NewInstance(p grid.Position) Instance {
	return Instance{Position: p, Rotation: mgl32.QuatIdent()}
}

// Matrix is translation * rotation.
func (i Instance) Matrix() mgl32.Mat4 {
	return mgl32.Translate3D(i.Position.X(), i.Position.Y(), i.Position.Z()).Mul4(i.Rotation.Mat4())
}

// ChunkMesh is everything a renderer needs to draw one chunk. Materials with
// no visible faces are absent; the remaining ones are ordered by kind.
type ChunkMesh struct {
	Origin    grid.Position
	Instance  Instance
	Materials []MaterialMesh
}

type Stats struct {
	Materials int `json:"materials"`
	Faces     int `json:"faces"`
	Vertices  int `json:"vertices"`
	Indices   int `json:"indices"`
	Triangles int `json:"triangles"`
}

func (c ChunkMesh) Stats() Stats {
	s := Stats{Materials: len(c.Materials)}
	for _, m := range c.Materials {
		s.Faces += m.FaceCount()
		s.Vertices += len(m.Vertices)
		s.Indices += len(m.Indices)
		s.Triangles += m.TriangleCount()
	}
	return s
}

func (s *Stats) Add(o Stats) {
	s.Materials += o.Materials
	s.Faces += o.Faces
	s.Vertices += o.Vertices
	s.Indices += o.Indices
	s.Triangles += o.Triangles
}

// Material returns the mesh for k, if it has any faces.
func (c ChunkMesh) Material(k block.Kind) (MaterialMesh, bool) {
	for _, m := range c.Materials {
		if m.Kind == k {
			return m, true
		}
	}
	return MaterialMesh{}, false
}
