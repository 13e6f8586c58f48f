package meshcodec

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"voxelforge.ai/internal/sim/block"
	"voxelforge.ai/internal/sim/world/mesh"
)

func EncodeVertices(m mesh.MaterialMesh) string {
	return base64.StdEncoding.EncodeToString(m.VertexBytes())
}

func EncodeIndices(m mesh.MaterialMesh) string {
	return base64.StdEncoding.EncodeToString(m.IndexBytes())
}

// DecodeVertices reverses EncodeVertices.
func DecodeVertices(b64 string) ([]mesh.Vertex, error) {
	buf, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	if len(buf)%mesh.VertexStride != 0 {
		return nil, fmt.Errorf("vertex buffer length %d not a multiple of %d", len(buf), mesh.VertexStride)
	}
	out := make([]mesh.Vertex, len(buf)/mesh.VertexStride)
	f := func(off int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
	}
	vec3 := func(off int) mgl32.Vec3 { return mgl32.Vec3{f(off), f(off + 4), f(off + 8)} }
	for i := range out {
		off := i * mesh.VertexStride
		out[i] = mesh.Vertex{
			Position:  vec3(off),
			TexCoords: mgl32.Vec2{f(off + 12), f(off + 16)},
			Normal:    vec3(off + 20),
			Tangent:   vec3(off + 32),
			Bitangent: vec3(off + 44),
		}
	}
	return out, nil
}

func DecodeIndices(b64 string) ([]uint32, error) {
	buf, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("index buffer length %d not a multiple of 4", len(buf))
	}
	out := make([]uint32, len(buf)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	return out, nil
}

// EncodeKindsU16LE packs one little-endian uint16 ordinal per cell.
func EncodeKindsU16LE(kinds []block.Kind) string {
	buf := make([]byte, len(kinds)*2)
	for i, k := range kinds {
		binary.LittleEndian.PutUint16(buf[i*2:], k.Ordinal())
	}
	return base64.StdEncoding.EncodeToString(buf)
}
