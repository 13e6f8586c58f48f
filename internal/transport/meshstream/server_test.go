package meshstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"voxelforge.ai/internal/meshproto"
	"voxelforge.ai/internal/sim/catalogs"
	"voxelforge.ai/internal/sim/encoding"
	"voxelforge.ai/internal/sim/world/io/meshcodec"
	"voxelforge.ai/internal/sim/world/terrain/grid"
	"voxelforge.ai/internal/sim/world/terrain/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.World) {
	t.Helper()
	cfg := store.DefaultConfig()
	cfg.Seed = 3
	cfg.Size = 2
	cfg.Dims = grid.Dims{Width: 4, Height: 8}
	w, err := store.Generate(context.Background(), cfg)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	cats, err := catalogs.Default()
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	s := NewServer(Config{WorldID: "w-test", World: w, Catalogs: cats, MaxRadius: 3})
	mux := http.NewServeMux()
	s.Routes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, w
}

func schema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	s, err := meshproto.Schema(name)
	if err != nil {
		t.Fatalf("schema %s: %v", name, err)
	}
	return s
}

func validateRaw(t *testing.T, s *jsonschema.Schema, raw []byte) {
	t.Helper()
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := s.Validate(doc); err != nil {
		t.Fatalf("validate: %v\n%s", err, raw)
	}
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/meshes"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func subscribe(t *testing.T, conn *websocket.Conn, sub meshproto.SubscribeMsg) {
	t.Helper()
	sub.Type = meshproto.TypeSubscribe
	if sub.ProtocolVersion == "" {
		sub.ProtocolVersion = meshproto.Version
	}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
}

// readUntilDone collects messages by type until DONE.
func readUntilDone(t *testing.T, conn *websocket.Conn) map[string][][]byte {
	t.Helper()
	out := map[string][][]byte{}
	for {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		base, err := meshproto.DecodeBase(raw)
		if err != nil {
			t.Fatalf("decode base: %v", err)
		}
		out[base.Type] = append(out[base.Type], raw)
		if base.Type == meshproto.TypeDone || base.Type == meshproto.TypeError {
			return out
		}
	}
}

func TestBootstrap(t *testing.T) {
	srv, w := newTestServer(t)
	resp, err := http.Get(srv.URL + "/v1/bootstrap")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	validateRaw(t, schema(t, "bootstrap.schema.json"), raw)

	var boot meshproto.BootstrapResponse
	_ = json.Unmarshal(raw, &boot)
	if boot.WorldID != "w-test" || boot.WorldParams.Size != w.Size || boot.WorldParams.Seed != 3 {
		t.Fatalf("unexpected bootstrap %+v", boot)
	}
	if len(boot.Materials) != 6 || boot.BlockPalette[0] != "AIR" {
		t.Fatalf("unexpected palette/materials: %v %d", boot.BlockPalette, len(boot.Materials))
	}

	post, err := http.Post(srv.URL+"/v1/bootstrap", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	post.Body.Close()
	if post.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("post status %d", post.StatusCode)
	}
}

func TestStreamSendsChunksOnce(t *testing.T) {
	srv, w := newTestServer(t)
	conn := dial(t, srv)

	subscribe(t, conn, meshproto.SubscribeMsg{Center: [2]int{0, 0}, Radius: 1, Voxels: true})
	got := readUntilDone(t, conn)
	if len(got[meshproto.TypeChunkMesh]) != 4 || len(got[meshproto.TypeChunkVoxels]) != 4 {
		t.Fatalf("meshes=%d voxels=%d", len(got[meshproto.TypeChunkMesh]), len(got[meshproto.TypeChunkVoxels]))
	}

	meshSchema := schema(t, "chunk_mesh.schema.json")
	for i, raw := range got[meshproto.TypeChunkMesh] {
		validateRaw(t, meshSchema, raw)
		var m meshproto.ChunkMeshMsg
		_ = json.Unmarshal(raw, &m)
		if i == 0 && (m.CX != 0 || m.CZ != 0) {
			t.Fatalf("center chunk should come first, got (%d,%d)", m.CX, m.CZ)
		}
		// Translation lives in the last column.
		if m.Transform[12] != float32(m.CX*w.Dims.Width) || m.Transform[14] != float32(m.CZ*w.Dims.Width) {
			t.Fatalf("chunk (%d,%d) transform %v", m.CX, m.CZ, m.Transform)
		}
		for _, mb := range m.Materials {
			verts, err := meshcodec.DecodeVertices(mb.Vertices)
			if err != nil || len(verts) != mb.VertexCount {
				t.Fatalf("vertices: n=%d want %d err=%v", len(verts), mb.VertexCount, err)
			}
			idx, err := meshcodec.DecodeIndices(mb.Indices)
			if err != nil || len(idx) != mb.TriangleCount*3 {
				t.Fatalf("indices: n=%d err=%v", len(idx), err)
			}
		}
	}

	voxSchema := schema(t, "chunk_voxels.schema.json")
	for _, raw := range got[meshproto.TypeChunkVoxels] {
		validateRaw(t, voxSchema, raw)
		var v meshproto.ChunkVoxelsMsg
		_ = json.Unmarshal(raw, &v)
		kinds, err := encoding.DecodeKinds(v.Data, w.Dims.Volume())
		if err != nil {
			t.Fatalf("decode voxels: %v", err)
		}
		want := w.Chunk(v.CX, v.CZ)
		for i := range want {
			if kinds[i] != want[i] {
				t.Fatalf("chunk (%d,%d) voxel %d mismatch", v.CX, v.CZ, i)
			}
		}
	}

	var done meshproto.DoneMsg
	_ = json.Unmarshal(got[meshproto.TypeDone][0], &done)
	if done.Chunks != 4 {
		t.Fatalf("done chunks=%d", done.Chunks)
	}

	// Everything near (1,1) was already sent.
	subscribe(t, conn, meshproto.SubscribeMsg{Center: [2]int{1, 1}, Radius: 2})
	again := readUntilDone(t, conn)
	if len(again[meshproto.TypeChunkMesh]) != 0 {
		t.Fatalf("chunks resent: %d", len(again[meshproto.TypeChunkMesh]))
	}
}

func TestStreamRejectsBadSubscribe(t *testing.T) {
	srv, _ := newTestServer(t)
	cases := map[string]meshproto.SubscribeMsg{
		meshproto.ErrBadVersion: {ProtocolVersion: "0.1"},
		meshproto.ErrOutOfWorld: {Center: [2]int{5, 5}},
	}
	errSchema := schema(t, "error.schema.json")
	for code, sub := range cases {
		conn := dial(t, srv)
		subscribe(t, conn, sub)
		got := readUntilDone(t, conn)
		if len(got[meshproto.TypeError]) != 1 {
			t.Fatalf("%s: expected ERROR", code)
		}
		validateRaw(t, errSchema, got[meshproto.TypeError][0])
		var e meshproto.ErrorMsg
		_ = json.Unmarshal(got[meshproto.TypeError][0], &e)
		if e.Code != code {
			t.Fatalf("code=%s want %s", e.Code, code)
		}
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:5000": true,
		"[::1]:80":       true,
		"10.0.0.3:1234":  false,
		"garbage":        false,
	}
	for addr, want := range cases {
		if got := isLoopbackRemote(addr); got != want {
			t.Fatalf("%s: got %v want %v", addr, got, want)
		}
	}
}
