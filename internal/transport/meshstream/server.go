package meshstream

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"

	"voxelforge.ai/internal/meshproto"
	plog "voxelforge.ai/internal/persistence/log"
	"voxelforge.ai/internal/sim/catalogs"
	"voxelforge.ai/internal/sim/encoding"
	"voxelforge.ai/internal/sim/world/io/meshcodec"
	"voxelforge.ai/internal/sim/world/mesh"
	"voxelforge.ai/internal/sim/world/pipeline"
	"voxelforge.ai/internal/sim/world/terrain/store"
)

type Config struct {
	WorldID  string
	World    *store.World
	Catalogs *catalogs.Catalogs
	Logger   *log.Logger

	// Meshes, if set, are served as-is (storage order). Otherwise chunks
	// are meshed on first request and cached.
	Meshes           []pipeline.ChunkResult
	CullChunkBorders bool

	// Sessions receives one entry per SUBSCRIBE and per closed connection.
	Sessions *plog.StreamLogger

	MaxRadius    int
	WriteTimeout time.Duration
	// AllowRemote serves non-loopback clients.
	AllowRemote bool
}

type Server struct {
	cfg    Config
	log    *log.Logger
	mesher *mesh.Mesher

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu    sync.Mutex
	cache map[store.ChunkKey]mesh.ChunkMesh
}

func NewServer(cfg Config) *Server {
	if cfg.MaxRadius <= 0 {
		cfg.MaxRadius = 4
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	s := &Server{
		cfg:    cfg,
		log:    cfg.Logger,
		mesher: mesh.NewMesher(cfg.World.Dims),
		cache:  map[store.ChunkKey]mesh.ChunkMesh{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 256 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	for _, c := range cfg.Meshes {
		s.cache[c.Key] = c.Mesh
	}
	return s
}

// Routes mounts the bootstrap and stream endpoints.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/bootstrap", s.BootstrapHandler())
	mux.HandleFunc("/v1/meshes", s.WSHandler())
}

func (s *Server) allowed(r *http.Request) bool {
	return s.cfg.AllowRemote || isLoopbackRemote(r.RemoteAddr)
}

func (s *Server) Bootstrap() meshproto.BootstrapResponse {
	w := s.cfg.World
	sum := w.Digest()
	resp := meshproto.BootstrapResponse{
		ProtocolVersion: meshproto.Version,
		WorldID:         s.cfg.WorldID,
		WorldParams: meshproto.WorldParams{
			Seed:         w.Seed,
			Size:         w.Size,
			ChunkWidth:   w.Dims.Width,
			ChunkHeight:  w.Dims.Height,
			VertexStride: mesh.VertexStride,
			CullBorders:  s.cfg.CullChunkBorders,
		},
		BlockPalette:  s.cfg.Catalogs.Blocks.Palette,
		PaletteDigest: s.cfg.Catalogs.Blocks.PaletteDigest,
		Digest:        hex.EncodeToString(sum[:]),
	}
	for _, m := range s.cfg.Catalogs.Blocks.Materials() {
		resp.Materials = append(resp.Materials, meshproto.MaterialDef{
			Index:    m.Index,
			Block:    m.Block,
			Diffuse:  m.Textures.Diffuse,
			Normal:   m.Textures.Normal,
			Specular: m.Textures.Specular,
		})
	}
	return resp
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(s.Bootstrap())
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, code, reason := s.parseSubscribe(msg)
		if code != "" {
			s.reject(conn, code, reason)
			return
		}

		sess := &session{
			id:     fmt.Sprintf("M%d", s.nextID.Add(1)),
			remote: r.RemoteAddr,
			conn:   conn,
			sent:   map[store.ChunkKey]bool{},
		}
		if s.log != nil {
			s.log.Printf("session %s connected from %s", sess.id, sess.remote)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Latest subscription wins; the streamer drains it between chunks.
		subs := make(chan meshproto.SubscribeMsg, 1)
		subs <- sub

		streamErr := make(chan error, 1)
		go func() {
			streamErr <- s.stream(ctx, sess, subs)
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			next, code, _ := s.parseSubscribe(msg)
			if code != "" {
				continue
			}
			select {
			case <-subs:
			default:
			}
			subs <- next
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the streamer to stop so it doesn't outlive conn.
		select {
		case <-streamErr:
		case <-time.After(500 * time.Millisecond):
		}
		chunks, bytes := sess.counts()
		s.logSession(plog.StreamEntry{Session: sess.id, Remote: sess.remote, Event: "CLOSE", Chunks: chunks, Bytes: bytes})
		if s.log != nil {
			s.log.Printf("session %s closed: %d chunks, %s", sess.id, chunks, humanize.Bytes(uint64(bytes)))
		}
	}
}

type session struct {
	id     string
	remote string
	conn   *websocket.Conn

	mu    sync.Mutex
	sent  map[store.ChunkKey]bool
	bytes int64
}

func (ss *session) counts() (chunks int, bytes int64) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return len(ss.sent), ss.bytes
}

func (ss *session) wasSent(k store.ChunkKey) bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.sent[k]
}

func (ss *session) markSent(k store.ChunkKey) {
	ss.mu.Lock()
	ss.sent[k] = true
	ss.mu.Unlock()
}

func (s *Server) stream(ctx context.Context, sess *session, subs <-chan meshproto.SubscribeMsg) error {
	for {
		var sub meshproto.SubscribeMsg
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sub = <-subs:
		}
		s.logSession(plog.StreamEntry{Session: sess.id, Remote: sess.remote, Event: "SUBSCRIBE", Center: sub.Center, Radius: sub.Radius})

		n := 0
		for _, k := range s.chunksAround(sub.Center, sub.Radius) {
			if sess.wasSent(k) {
				continue
			}
			// A newer subscription replaces this one mid-stream.
			if len(subs) > 0 {
				break
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := s.write(sess, s.chunkMeshMsg(k)); err != nil {
				return err
			}
			if sub.Voxels {
				if err := s.write(sess, s.chunkVoxelsMsg(k, sub.VoxelEncoding)); err != nil {
					return err
				}
			}
			sess.markSent(k)
			n++
		}
		if len(subs) > 0 {
			continue
		}
		if err := s.write(sess, meshproto.DoneMsg{Type: meshproto.TypeDone, ProtocolVersion: meshproto.Version, Chunks: n}); err != nil {
			return err
		}
	}
}

func (s *Server) write(sess *session, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = sess.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if err := sess.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return err
	}
	sess.mu.Lock()
	sess.bytes += int64(len(b))
	sess.mu.Unlock()
	return nil
}

func (s *Server) reject(conn *websocket.Conn, code, reason string) {
	b, _ := json.Marshal(meshproto.NewError(code, reason))
	_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = conn.WriteMessage(websocket.TextMessage, b)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func (s *Server) parseSubscribe(msg []byte) (meshproto.SubscribeMsg, string, string) {
	var sub meshproto.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, meshproto.ErrProtoBadRequest, "bad subscribe"
	}
	if sub.Type != meshproto.TypeSubscribe {
		return sub, meshproto.ErrProtoBadRequest, "expected SUBSCRIBE"
	}
	if sub.ProtocolVersion != meshproto.Version {
		return sub, meshproto.ErrBadVersion, "bad protocol_version"
	}
	if !s.cfg.World.HasChunk(sub.Center[0], sub.Center[1]) {
		return sub, meshproto.ErrOutOfWorld, "center outside world"
	}
	s.normalizeSubscribe(&sub)
	return sub, "", ""
}

func (s *Server) normalizeSubscribe(sub *meshproto.SubscribeMsg) {
	if sub.Radius < 0 {
		sub.Radius = 0
	}
	if sub.Radius > s.cfg.MaxRadius {
		sub.Radius = s.cfg.MaxRadius
	}
	switch strings.ToUpper(sub.VoxelEncoding) {
	case meshproto.EncodingU16LE:
		sub.VoxelEncoding = meshproto.EncodingU16LE
	default:
		sub.VoxelEncoding = meshproto.EncodingRLE
	}
}

// chunksAround lists in-world chunks within Chebyshev distance r of center,
// nearest first.
func (s *Server) chunksAround(center [2]int, r int) []store.ChunkKey {
	w := s.cfg.World
	var keys []store.ChunkKey
	for cx := center[0] - r; cx <= center[0]+r; cx++ {
		for cz := center[1] - r; cz <= center[1]+r; cz++ {
			if w.HasChunk(cx, cz) {
				keys = append(keys, store.ChunkKey{CX: cx, CZ: cz})
			}
		}
	}
	dist := func(k store.ChunkKey) int {
		return max(abs(k.CX-center[0]), abs(k.CZ-center[1]))
	}
	sort.SliceStable(keys, func(i, j int) bool { return dist(keys[i]) < dist(keys[j]) })
	return keys
}

func (s *Server) chunkMesh(k store.ChunkKey) mesh.ChunkMesh {
	s.mu.Lock()
	cm, ok := s.cache[k]
	s.mu.Unlock()
	if ok {
		return cm
	}
	cm = pipeline.MeshChunk(s.cfg.World, s.mesher, k, s.cfg.CullChunkBorders).Mesh
	s.mu.Lock()
	s.cache[k] = cm
	s.mu.Unlock()
	return cm
}

func (s *Server) chunkMeshMsg(k store.ChunkKey) meshproto.ChunkMeshMsg {
	cm := s.chunkMesh(k)
	msg := meshproto.ChunkMeshMsg{
		Type:            meshproto.TypeChunkMesh,
		ProtocolVersion: meshproto.Version,
		CX:              k.CX,
		CZ:              k.CZ,
		Transform:       cm.Instance.Matrix(),
		Materials:       make([]meshproto.MaterialBuffer, 0, len(cm.Materials)),
	}
	for _, mm := range cm.Materials {
		msg.Materials = append(msg.Materials, meshproto.MaterialBuffer{
			Block:         mm.Kind.String(),
			Material:      mm.Material,
			VertexCount:   len(mm.Vertices),
			TriangleCount: mm.TriangleCount(),
			Vertices:      meshcodec.EncodeVertices(mm),
			Indices:       meshcodec.EncodeIndices(mm),
		})
	}
	return msg
}

func (s *Server) chunkVoxelsMsg(k store.ChunkKey, enc string) meshproto.ChunkVoxelsMsg {
	voxels := s.cfg.World.Chunk(k.CX, k.CZ)
	msg := meshproto.ChunkVoxelsMsg{
		Type:            meshproto.TypeChunkVoxels,
		ProtocolVersion: meshproto.Version,
		CX:              k.CX,
		CZ:              k.CZ,
		Encoding:        enc,
	}
	if enc == meshproto.EncodingU16LE {
		msg.Data = meshcodec.EncodeKindsU16LE(voxels)
	} else {
		msg.Data = encoding.EncodeKinds(voxels)
	}
	return msg
}

func (s *Server) logSession(e plog.StreamEntry) {
	if s.cfg.Sessions == nil {
		return
	}
	e.Time = time.Now().UTC()
	if err := s.cfg.Sessions.WriteSession(e); err != nil && s.log != nil {
		s.log.Printf("session log: %v", err)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
