package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"voxelforge.ai/internal/meshproto"
	"voxelforge.ai/internal/persistence/genrecord"
	"voxelforge.ai/internal/persistence/indexdb"
	persistlog "voxelforge.ai/internal/persistence/log"
	"voxelforge.ai/internal/persistence/snapshot"
	"voxelforge.ai/internal/sim/block"
	"voxelforge.ai/internal/sim/catalogs"
	"voxelforge.ai/internal/sim/tuning"
	"voxelforge.ai/internal/sim/world/io/worldcodec"
	"voxelforge.ai/internal/sim/world/pipeline"
	"voxelforge.ai/internal/sim/world/terrain/store"
	"voxelforge.ai/internal/transport/meshstream"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "", "world id (default: random uuid)")
		seed       = flag.Uint64("seed", 0, "world seed (overrides tuning; fresh worlds only)")
		size       = flag.Int("size", 0, "chunks per axis (overrides tuning; fresh worlds only)")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite world index")
		cull       = flag.Bool("cull_borders", false, "cull faces against neighbouring chunks (overrides tuning)")
		remote     = flag.Bool("allow_remote", false, "serve mesh stream to non-loopback clients")

		worldJSON  = flag.String("world_json", "", "world JSON file to serve instead of generating")
		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}
	shapeSet := false
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "seed":
			tune.World.Seed = *seed
			shapeSet = true
		case "size":
			tune.World.Size = *size
			shapeSet = true
		case "cull_borders":
			tune.Meshing.CullChunkBorders = *cull
		}
	})
	if err := tune.Validate(); err != nil {
		logger.Fatalf("tuning: %v", err)
	}
	if tune.ProtocolVersion != meshproto.Version {
		logger.Fatalf("tuning protocol_version=%q, server speaks %q", tune.ProtocolVersion, meshproto.Version)
	}

	id := strings.TrimSpace(*worldID)
	if id == "" {
		id = uuid.NewString()
	}
	worldDir := filepath.Join(*dataDir, "worlds", id)
	_ = os.MkdirAll(worldDir, 0o755)

	// Optional: read-model index (does not affect generation).
	idx, err := openRuntimeIndex(worldDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(cats, tune); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" {
		snapshotToLoad = latestSnapshot(logger, filepath.Join(worldDir, "snapshots"), *loadLatest && *worldJSON == "", shapeSet)
	}
	w, source, err := loadWorld(ctx, tune, *worldJSON, snapshotToLoad, id)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}
	logger.Printf("world %s ready (source=%s seed=%d size=%d chunk=%dx%dx%d)",
		id, source, w.Seed, w.Size, w.Dims.Width, w.Dims.Height, w.Dims.Width)

	if source == "generate" {
		snap := store.ExportSnapshot(w, id)
		path := filepath.Join(worldDir, "snapshots", time.Now().UTC().Format("20060102T150405Z")+snapshot.Ext)
		if err := snapshot.WriteSnapshot(path, snap); err != nil {
			logger.Printf("snapshot write: %v", err)
		} else if idx != nil {
			idx.RecordSnapshot(path, snap)
		}
	}

	genLog := persistlog.NewGenLogger(worldDir)
	defer genLog.Close()
	rec := &genrecord.Recorder{WorldID: id, World: w, Log: genLog, Index: idx, Logger: logger}
	rec.RecordWorld(source)

	res, err := pipeline.MeshWorld(ctx, w, tune.Workers(), tune.Meshing.CullChunkBorders, rec.Chunk)
	if err != nil {
		logger.Fatalf("mesh: %v", err)
	}
	logger.Printf("meshed %d chunks: %d faces, %d triangles", len(res.Chunks), res.Stats.Faces, res.Stats.Triangles)

	sessionLog := persistlog.NewStreamLogger(worldDir)
	defer sessionLog.Close()

	streamSrv := meshstream.NewServer(meshstream.Config{
		WorldID:          id,
		World:            w,
		Catalogs:         cats,
		Logger:           logger,
		Meshes:           res.Chunks,
		CullChunkBorders: tune.Meshing.CullChunkBorders,
		Sessions:         sessionLog,
		MaxRadius:        tune.Stream.MaxRadius,
		WriteTimeout:     time.Duration(tune.Stream.WriteTimeoutMs) * time.Millisecond,
		AllowRemote:      *remote,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", metricsHandler(id, res, idx))
	streamSrv.Routes(mux)

	if envBool("VF_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (VF_ENABLE_PPROF_HTTP=false)")
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

// loadWorld prefers an explicit JSON file, then a snapshot, then generation.
// latestSnapshot returns the newest snapshot in dir, or "" when none should be
// loaded. An explicit -seed or -size wins over whatever was saved last.
func latestSnapshot(logger *log.Logger, dir string, enabled, shapeSet bool) string {
	if !enabled {
		return ""
	}
	latest := snapshot.Latest(dir)
	if latest != "" && shapeSet {
		logger.Printf("-seed/-size given; not loading latest snapshot %s", latest)
		return ""
	}
	return latest
}

func loadWorld(ctx context.Context, tune tuning.Tuning, jsonPath, snapPath, worldID string) (*store.World, string, error) {
	if jsonPath != "" {
		w, err := worldcodec.Load(jsonPath)
		if err != nil {
			return nil, "", fmt.Errorf("load %s: %w", jsonPath, err)
		}
		return w, "json", nil
	}
	if snapPath != "" {
		snap, err := snapshot.ReadSnapshot(snapPath)
		if err != nil {
			return nil, "", fmt.Errorf("read snapshot: %w", err)
		}
		if snap.Header.WorldID != "" && snap.Header.WorldID != worldID {
			return nil, "", fmt.Errorf("snapshot world id mismatch: flag=%s snap=%s", worldID, snap.Header.WorldID)
		}
		w, err := store.ImportSnapshot(snap)
		if err != nil {
			return nil, "", fmt.Errorf("import snapshot: %w", err)
		}
		return w, "snapshot", nil
	}
	w, err := store.Generate(ctx, tune.StoreConfig())
	if err != nil {
		return nil, "", err
	}
	return w, "generate", nil
}

func metricsHandler(worldID string, res *pipeline.Result, idx *indexdb.SQLiteIndex) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP voxelforge_world_chunks Meshed chunk count.\n")
		fmt.Fprintf(rw, "# TYPE voxelforge_world_chunks gauge\n")
		fmt.Fprintf(rw, "voxelforge_world_chunks{world=%q} %d\n", worldID, len(res.Chunks))

		fmt.Fprintf(rw, "# HELP voxelforge_mesh_total Mesh totals across all chunks.\n")
		fmt.Fprintf(rw, "# TYPE voxelforge_mesh_total gauge\n")
		fmt.Fprintf(rw, "voxelforge_mesh_total{world=%q,metric=%q} %d\n", worldID, "faces", res.Stats.Faces)
		fmt.Fprintf(rw, "voxelforge_mesh_total{world=%q,metric=%q} %d\n", worldID, "vertices", res.Stats.Vertices)
		fmt.Fprintf(rw, "voxelforge_mesh_total{world=%q,metric=%q} %d\n", worldID, "triangles", res.Stats.Triangles)

		fmt.Fprintf(rw, "# HELP voxelforge_world_blocks Cells per block kind.\n")
		fmt.Fprintf(rw, "# TYPE voxelforge_world_blocks gauge\n")
		for k, n := range res.World.Stats() {
			fmt.Fprintf(rw, "voxelforge_world_blocks{world=%q,block=%q} %d\n", worldID, block.Kind(k).String(), n)
		}

		if idx != nil {
			st := idx.Stats()
			fmt.Fprintf(rw, "# HELP voxelforge_index_queue_depth Index writer backlog.\n")
			fmt.Fprintf(rw, "# TYPE voxelforge_index_queue_depth gauge\n")
			fmt.Fprintf(rw, "voxelforge_index_queue_depth %d\n", st.QueueDepth)
			fmt.Fprintf(rw, "# HELP voxelforge_index_dropped_total Index rows dropped under backpressure.\n")
			fmt.Fprintf(rw, "# TYPE voxelforge_index_dropped_total counter\n")
			fmt.Fprintf(rw, "voxelforge_index_dropped_total{kind=%q} %d\n", "world", st.DropWorldTotal)
			fmt.Fprintf(rw, "voxelforge_index_dropped_total{kind=%q} %d\n", "chunk", st.DropChunkTotal)
			fmt.Fprintf(rw, "voxelforge_index_dropped_total{kind=%q} %d\n", "snapshot", st.DropSnapshotTotal)
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func envBool(name string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
