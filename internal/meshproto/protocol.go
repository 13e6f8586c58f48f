// Package meshproto defines the JSON messages of the mesh stream: an HTTP
// bootstrap describing the world, then a WebSocket on which the client
// subscribes to a square of chunks around a center.
package meshproto

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeSubscribe   = "SUBSCRIBE"
	TypeChunkMesh   = "CHUNK_MESH"
	TypeChunkVoxels = "CHUNK_VOXELS"
	TypeDone        = "DONE"
	TypeError       = "ERROR"
)

// Voxel encodings for CHUNK_VOXELS.
const (
	EncodingRLE   = "RLE"
	EncodingU16LE = "PAL16_U16LE"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// Client -> Server. First message on the connection; may be re-sent to move
// the center. Chunks already sent on the connection are not repeated.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Center          [2]int `json:"center"` // chunk coords (cx, cz)
	Radius          int    `json:"radius"`

	Voxels        bool   `json:"voxels,omitempty"`
	VoxelEncoding string `json:"voxel_encoding,omitempty"`
}

// HTTP response for GET /v1/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string        `json:"protocol_version"`
	WorldID         string        `json:"world_id"`
	WorldParams     WorldParams   `json:"world_params"`
	BlockPalette    []string      `json:"block_palette"`
	PaletteDigest   string        `json:"palette_digest"`
	Materials       []MaterialDef `json:"materials"`
	Digest          string        `json:"digest"`
}

type WorldParams struct {
	Seed         uint64 `json:"seed"`
	Size         int    `json:"size"`
	ChunkWidth   int    `json:"chunk_width"`
	ChunkHeight  int    `json:"chunk_height"`
	VertexStride int    `json:"vertex_stride"`
	CullBorders  bool   `json:"cull_borders"`
}

type MaterialDef struct {
	Index    int    `json:"index"`
	Block    string `json:"block"`
	Diffuse  string `json:"diffuse,omitempty"`
	Normal   string `json:"normal,omitempty"`
	Specular string `json:"specular,omitempty"`
}

// Server -> Client. One per chunk. Buffers are base64 little-endian: vertices
// are VertexStride bytes each, indices are uint32 local to the material.
type ChunkMeshMsg struct {
	Type            string           `json:"type"`
	ProtocolVersion string           `json:"protocol_version"`
	CX              int              `json:"cx"`
	CZ              int              `json:"cz"`
	Transform       [16]float32      `json:"transform"` // column-major
	Materials       []MaterialBuffer `json:"materials"`
}

type MaterialBuffer struct {
	Block         string `json:"block"`
	Material      int    `json:"material"`
	VertexCount   int    `json:"vertex_count"`
	TriangleCount int    `json:"triangle_count"`
	Vertices      string `json:"vertices"`
	Indices       string `json:"indices"`
}

type ChunkVoxelsMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	CX              int    `json:"cx"`
	CZ              int    `json:"cz"`
	Encoding        string `json:"encoding"`
	Data            string `json:"data"`
}

// DoneMsg ends the response to one SUBSCRIBE.
type DoneMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Chunks          int    `json:"chunks"`
}

type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}
