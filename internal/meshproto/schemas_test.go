package meshproto_test

import (
	"encoding/json"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"voxelforge.ai/internal/meshproto"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		s, err := meshproto.Schema(name)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var doc any
		if err := json.Unmarshal(b, &doc); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if err := s.Validate(doc); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	validate(compile("subscribe.schema.json"), meshproto.SubscribeMsg{
		Type:            meshproto.TypeSubscribe,
		ProtocolVersion: meshproto.Version,
		Center:          [2]int{4, 5},
		Radius:          2,
		Voxels:          true,
		VoxelEncoding:   meshproto.EncodingRLE,
	})
	validate(compile("bootstrap.schema.json"), meshproto.BootstrapResponse{
		ProtocolVersion: meshproto.Version,
		WorldID:         "w1",
		WorldParams:     meshproto.WorldParams{Seed: 1982, Size: 10, ChunkWidth: 16, ChunkHeight: 64, VertexStride: 56},
		BlockPalette:    []string{"AIR", "STONE"},
		Materials:       []meshproto.MaterialDef{{Index: 0, Block: "STONE", Diffuse: "bedrock"}},
	})
	validate(compile("chunk_mesh.schema.json"), meshproto.ChunkMeshMsg{
		Type:            meshproto.TypeChunkMesh,
		ProtocolVersion: meshproto.Version,
		CX:              1,
		CZ:              2,
		Materials: []meshproto.MaterialBuffer{{
			Block: "STONE", Material: 0, VertexCount: 4, TriangleCount: 2, Vertices: "AAAA", Indices: "AAAA",
		}},
	})
	validate(compile("chunk_voxels.schema.json"), meshproto.ChunkVoxelsMsg{
		Type:            meshproto.TypeChunkVoxels,
		ProtocolVersion: meshproto.Version,
		Encoding:        meshproto.EncodingU16LE,
		Data:            "AQA=",
	})
	validate(compile("done.schema.json"), meshproto.DoneMsg{Type: meshproto.TypeDone, ProtocolVersion: meshproto.Version, Chunks: 3})
	validate(compile("error.schema.json"), meshproto.NewError(meshproto.ErrOutOfWorld, "center outside world"))
}

func TestSchemas_RejectBadSubscribe(t *testing.T) {
	s, err := meshproto.Schema("subscribe.schema.json")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	var doc any
	_ = json.Unmarshal([]byte(`{"type":"SUBSCRIBE","protocol_version":"1.0","center":[1],"radius":-1}`), &doc)
	if err := s.Validate(doc); err == nil {
		t.Fatalf("expected validation error")
	}
}
