package mesh

import (
	"voxelforge.ai/internal/sim/block"
	"voxelforge.ai/internal/sim/world/terrain/grid"
)

// NeighborFunc answers lookups for chunk-local coordinates that fall outside
// the chunk being meshed.
type NeighborFunc func(x, y, z int) block.Kind

// Mesher turns a chunk's voxel grid into per-material face lists, skipping
// faces hidden by a solid neighbor.
//
// Without a NeighborFunc every face on the chunk boundary is emitted, as if
// the chunk were surrounded by air.
type Mesher struct {
	dims      grid.Dims
	neighbors NeighborFunc
}

func NewMesher(dims grid.Dims) *Mesher {
	return &Mesher{dims: dims}
}

// WithNeighbors returns a copy that consults fn for out-of-chunk neighbors.
func (m *Mesher) WithNeighbors(fn NeighborFunc) *Mesher {
	cp := *m
	cp.neighbors = fn
	return &cp
}

func (m *Mesher) Dims() grid.Dims { return m.dims }

// Build meshes voxels (len == Dims().Volume()). origin becomes the instance
// translation.
func (m *Mesher) Build(voxels []block.Kind, origin grid.Position) ChunkMesh {
	var verts [block.Count][]Vertex
	var idx [block.Count][]uint32

	d := m.dims
	for y := 0; y < d.Height; y++ {
		for x := 0; x < d.Width; x++ {
			for z := 0; z < d.Width; z++ {
				k := voxels[d.Index(x, y, z)]
				if !k.Solid() {
					continue
				}
				fx, fy, fz := float32(x), float32(y), float32(z)
				for f := Face(0); f < faceCount; f++ {
					off := faceOffsets[f]
					if m.hidden(voxels, x+off[0], y+off[1], z+off[2]) {
						continue
					}
					base := uint32(len(verts[k]))
					for _, v := range faceTemplates[f] {
						verts[k] = append(verts[k], v.translate(fx, fy, fz))
					}
					for _, qi := range quadIndices {
						idx[k] = append(idx[k], base+qi)
					}
				}
			}
		}
	}

	out := ChunkMesh{Origin: origin, Instance: NewInstance(origin)}
	for k := block.Stone; k < block.Count; k++ {
		if len(idx[k]) == 0 {
			continue
		}
		out.Materials = append(out.Materials, MaterialMesh{
			Kind:     k,
			Material: int(k) - 1,
			Vertices: verts[k],
			Indices:  idx[k],
		})
	}
	return out
}

// hidden reports whether the neighbor cell at (x, y, z) is solid.
func (m *Mesher) hidden(voxels []block.Kind, x, y, z int) bool {
	if !m.dims.InBounds(x, y, z) {
		if m.neighbors == nil || y < 0 || y >= m.dims.Height {
			return false
		}
		return m.neighbors(x, y, z).Solid()
	}
	return voxels[m.dims.Index(x, y, z)].Solid()
}
