package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"

	"voxelforge.ai/internal/meshproto"
	"voxelforge.ai/internal/sim/world/io/meshcodec"
)

// bot subscribes to the mesh stream like a renderer would, checks every
// buffer it receives and optionally walks the subscription center across
// the world.
func main() {
	var (
		url    = flag.String("url", "ws://localhost:8080/v1/meshes", "ws url")
		cx     = flag.Int("cx", 0, "initial center chunk x")
		cz     = flag.Int("cz", 0, "initial center chunk z")
		radius = flag.Int("radius", 2, "subscription radius in chunks")
		walk   = flag.Int("walk", 0, "after each DONE, step the center +1 in x this many times")
		voxels = flag.Bool("voxels", false, "also request CHUNK_VOXELS")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sub := meshproto.SubscribeMsg{
		Type:            meshproto.TypeSubscribe,
		ProtocolVersion: meshproto.Version,
		Center:          [2]int{*cx, *cz},
		Radius:          *radius,
		Voxels:          *voxels,
	}
	if err := conn.WriteJSON(sub); err != nil {
		logger.Fatalf("send SUBSCRIBE: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	var (
		total   chunkStats
		steps   int
		rxBytes uint64
	)
	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Printf("read: %v", err)
			return
		}
		rxBytes += uint64(len(msg))
		base, err := meshproto.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case meshproto.TypeChunkMesh:
			var m meshproto.ChunkMeshMsg
			if err := json.Unmarshal(msg, &m); err != nil {
				logger.Fatalf("decode CHUNK_MESH: %v", err)
			}
			st, err := checkChunk(m)
			if err != nil {
				logger.Fatalf("chunk (%d,%d): %v", m.CX, m.CZ, err)
			}
			total.add(st)

		case meshproto.TypeChunkVoxels:
			var v meshproto.ChunkVoxelsMsg
			if err := json.Unmarshal(msg, &v); err == nil {
				logger.Printf("CHUNK_VOXELS (%d,%d) encoding=%s %s", v.CX, v.CZ, v.Encoding, humanize.Bytes(uint64(len(v.Data))))
			}

		case meshproto.TypeDone:
			var d meshproto.DoneMsg
			_ = json.Unmarshal(msg, &d)
			logger.Printf("DONE center=%v chunks=%d total=%s rx=%s", sub.Center, d.Chunks, total, humanize.Bytes(rxBytes))
			if steps >= *walk {
				return
			}
			steps++
			sub.Center[0]++
			if err := conn.WriteJSON(sub); err != nil {
				logger.Fatalf("send SUBSCRIBE: %v", err)
			}

		case meshproto.TypeError:
			var e meshproto.ErrorMsg
			_ = json.Unmarshal(msg, &e)
			logger.Fatalf("ERROR %s: %s", e.Code, e.Message)
		}
	}
}

type chunkStats struct {
	Chunks    int
	Vertices  int
	Triangles int
}

func (s *chunkStats) add(o chunkStats) {
	s.Chunks += o.Chunks
	s.Vertices += o.Vertices
	s.Triangles += o.Triangles
}

func (s chunkStats) String() string {
	return fmt.Sprintf("chunks=%d vertices=%s triangles=%s",
		s.Chunks, humanize.Comma(int64(s.Vertices)), humanize.Comma(int64(s.Triangles)))
}

// checkChunk decodes every material buffer and checks the counts the server
// announced, and that no index points past its material's vertices.
func checkChunk(m meshproto.ChunkMeshMsg) (chunkStats, error) {
	st := chunkStats{Chunks: 1}
	for _, mb := range m.Materials {
		verts, err := meshcodec.DecodeVertices(mb.Vertices)
		if err != nil {
			return st, fmt.Errorf("%s vertices: %w", mb.Block, err)
		}
		idx, err := meshcodec.DecodeIndices(mb.Indices)
		if err != nil {
			return st, fmt.Errorf("%s indices: %w", mb.Block, err)
		}
		if len(verts) != mb.VertexCount {
			return st, fmt.Errorf("%s: %d vertices, announced %d", mb.Block, len(verts), mb.VertexCount)
		}
		if len(idx) != 3*mb.TriangleCount {
			return st, fmt.Errorf("%s: %d indices for %d triangles", mb.Block, len(idx), mb.TriangleCount)
		}
		for _, i := range idx {
			if int(i) >= len(verts) {
				return st, fmt.Errorf("%s: index %d out of range (%d vertices)", mb.Block, i, len(verts))
			}
		}
		st.Vertices += len(verts)
		st.Triangles += mb.TriangleCount
	}
	return st, nil
}
