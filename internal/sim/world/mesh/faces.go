package mesh

import "github.com/go-gl/mathgl/mgl32"

type Face int

const (
	FaceBack Face = iota
	FaceFront
	FaceTop
	FaceBottom
	FaceLeft
	FaceRight

	faceCount
)

func (f Face) String() string {
	switch f {
	case FaceBack:
		return "back"
	case FaceFront:
		return "front"
	case FaceTop:
		return "top"
	case FaceBottom:
		return "bottom"
	case FaceLeft:
		return "left"
	case FaceRight:
		return "right"
	}
	return "unknown"
}

// faceOffsets point from a cell to the neighbor each face looks at.
var faceOffsets = [faceCount][3]int{
	FaceBack:   {0, 0, -1},
	FaceFront:  {0, 0, 1},
	FaceTop:    {0, 1, 0},
	FaceBottom: {0, -1, 0},
	FaceLeft:   {-1, 0, 0},
	FaceRight:  {1, 0, 0},
}

// quadIndices are relative to the first of a face's four vertices.
var quadIndices = [6]uint32{0, 1, 2, 2, 3, 0}

var quadUVs = [4]mgl32.Vec2{{1, 1}, {1, 0}, {0, 0}, {0, 1}}

func quad(corners [4]mgl32.Vec3, normal, tangent, bitangent mgl32.Vec3) [4]Vertex {
	var out [4]Vertex
	for i, c := range corners {
		out[i] = Vertex{
			Position:  c,
			TexCoords: quadUVs[i],
			Normal:    normal,
			Tangent:   tangent,
			Bitangent: bitangent,
		}
	}
	return out
}

// faceTemplates are unit-cube quads anchored at the cell's min corner.
var faceTemplates = [faceCount][4]Vertex{
	FaceBack: quad(
		[4]mgl32.Vec3{{0, 0, 0}, {0, 1, 0}, {1, 1, 0}, {1, 0, 0}},
		mgl32.Vec3{0, 0, -1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0},
	),
	FaceFront: quad(
		[4]mgl32.Vec3{{1, 0, 1}, {1, 1, 1}, {0, 1, 1}, {0, 0, 1}},
		mgl32.Vec3{0, 0, 1}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 1, 0},
	),
	FaceTop: quad(
		[4]mgl32.Vec3{{1, 1, 1}, {1, 1, 0}, {0, 1, 0}, {0, 1, 1}},
		mgl32.Vec3{0, 1, 0}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, -1},
	),
	FaceBottom: quad(
		[4]mgl32.Vec3{{1, 0, 0}, {1, 0, 1}, {0, 0, 1}, {0, 0, 0}},
		mgl32.Vec3{0, -1, 0}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1},
	),
	FaceLeft: quad(
		[4]mgl32.Vec3{{0, 0, 1}, {0, 1, 1}, {0, 1, 0}, {0, 0, 0}},
		mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0},
	),
	FaceRight: quad(
		[4]mgl32.Vec3{{1, 0, 0}, {1, 1, 0}, {1, 1, 1}, {1, 0, 1}},
		mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0},
	),
}
