package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"voxelforge.ai/internal/persistence/archive"
	"voxelforge.ai/internal/persistence/genrecord"
	"voxelforge.ai/internal/persistence/indexdb"
	persistlog "voxelforge.ai/internal/persistence/log"
	"voxelforge.ai/internal/persistence/snapshot"
	"voxelforge.ai/internal/sim/block"
	"voxelforge.ai/internal/sim/tuning"
	"voxelforge.ai/internal/sim/world/io/worldcodec"
	"voxelforge.ai/internal/sim/world/pipeline"
	"voxelforge.ai/internal/sim/world/terrain/noise"
	"voxelforge.ai/internal/sim/world/terrain/store"
)

type options struct {
	WorldID   string
	DataDir   string
	JSONOut   string
	RLE       bool
	Bare      bool
	Snapshot  bool
	Archive   bool
	Heightmap string
	Index     bool
	GenLog    bool
}

type summary struct {
	WorldID      string
	Result       *pipeline.Result
	JSONPath     string
	JSONBytes    int64
	SnapshotPath string
	SnapBytes    int64
	ArchivePath  string
	Heightmap    string
}

func main() {
	var (
		worldID     = flag.String("world", "", "world id (default: random uuid)")
		seed        = flag.Uint64("seed", 0, "world seed (overrides tuning)")
		size        = flag.Int("size", 0, "chunks per axis (overrides tuning)")
		workers     = flag.Int("workers", 0, "generation/meshing workers (overrides tuning)")
		cull        = flag.Bool("cull_borders", false, "cull faces against neighbouring chunks (overrides tuning)")
		tuningPath  = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		dataDir     = flag.String("data", "./data", "runtime data directory")
		jsonOut     = flag.String("json", "", "write the world as JSON to this path")
		rle         = flag.Bool("rle", false, "write chunks_rle instead of the plain ordinal array")
		bare        = flag.Bool("bare", false, "write only the chunks array, no metadata")
		snap        = flag.Bool("snapshot", true, "write a zstd snapshot under <data>/worlds/<id>/snapshots")
		archiveSnap = flag.Bool("archive", false, "copy the snapshot to <data>/worlds/<id>/archives/seed_<seed>_<digest>")
		heightmap   = flag.String("heightmap", "", "also render the tuning heightmap as PNG to this path")
		index       = flag.Bool("index", false, "record the world in <data>/worlds/<id>/index/world.sqlite")
		genLog      = flag.Bool("gen_log", true, "write per-chunk JSONL entries under <data>/worlds/<id>/gen")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[worldgen] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		tune = tuning.Defaults()
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "seed":
			tune.World.Seed = *seed
		case "size":
			tune.World.Size = *size
		case "workers":
			tune.Generation.Workers = *workers
		case "cull_borders":
			tune.Meshing.CullChunkBorders = *cull
		}
	})
	if err := tune.Validate(); err != nil {
		logger.Fatalf("tuning: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sum, err := run(ctx, tune, options{
		WorldID:   *worldID,
		DataDir:   *dataDir,
		JSONOut:   *jsonOut,
		RLE:       *rle,
		Bare:      *bare,
		Snapshot:  *snap,
		Archive:   *archiveSnap,
		Heightmap: *heightmap,
		Index:     *index,
		GenLog:    *genLog,
	}, logger)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	report(os.Stdout, tune, sum)
}

func run(ctx context.Context, tune tuning.Tuning, opts options, logger *log.Logger) (*summary, error) {
	id := strings.TrimSpace(opts.WorldID)
	if id == "" {
		id = uuid.NewString()
	}
	worldDir := filepath.Join(opts.DataDir, "worlds", id)
	out := &summary{WorldID: id}

	var idx *indexdb.SQLiteIndex
	if opts.Index {
		var err error
		idx, err = indexdb.OpenSQLite(filepath.Join(worldDir, "index", "world.sqlite"))
		if err != nil {
			return nil, fmt.Errorf("open index: %w", err)
		}
		defer idx.Close()
	}
	var gl *persistlog.GenLogger
	if opts.GenLog {
		gl = persistlog.NewGenLogger(worldDir)
		defer gl.Close()
	}

	// The recorder needs the world before chunks are meshed, so generation
	// and meshing run as two pipeline steps here.
	start := time.Now()
	w, err := store.Generate(ctx, tune.StoreConfig())
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	genTime := time.Since(start)

	rec := &genrecord.Recorder{WorldID: id, World: w, Log: gl, Index: idx, Logger: logger}
	rec.RecordWorld("generate")
	res, err := pipeline.MeshWorld(ctx, w, tune.Workers(), tune.Meshing.CullChunkBorders, rec.Chunk)
	if err != nil {
		return nil, fmt.Errorf("mesh: %w", err)
	}
	res.GenTime = genTime
	out.Result = res

	if opts.JSONOut != "" {
		if err := worldcodec.Save(opts.JSONOut, w, worldcodec.Options{RLE: opts.RLE, Bare: opts.Bare}); err != nil {
			return nil, fmt.Errorf("save json: %w", err)
		}
		out.JSONPath = opts.JSONOut
		out.JSONBytes = fileSize(opts.JSONOut)
	}

	if opts.Snapshot {
		snap := store.ExportSnapshot(w, id)
		path := filepath.Join(worldDir, "snapshots", time.Now().UTC().Format("20060102T150405Z")+snapshot.Ext)
		if err := snapshot.WriteSnapshot(path, snap); err != nil {
			return nil, fmt.Errorf("write snapshot: %w", err)
		}
		idx.RecordSnapshot(path, snap)
		out.SnapshotPath = path
		out.SnapBytes = fileSize(path)

		if opts.Archive {
			dst, archived, err := archive.ArchiveWorldSnapshot(worldDir, path, snap)
			if err != nil {
				return nil, fmt.Errorf("archive: %w", err)
			}
			if !archived {
				logger.Printf("archive exists: %s", dst)
			}
			out.ArchivePath = dst
		}
	}

	if opts.Heightmap != "" {
		if err := writeHeightmap(opts.Heightmap, tune.Heightmap); err != nil {
			return nil, fmt.Errorf("heightmap: %w", err)
		}
		out.Heightmap = opts.Heightmap
	}

	if idx != nil {
		if err := idx.Flush(ctx); err != nil {
			return nil, fmt.Errorf("flush index: %w", err)
		}
	}
	return out, nil
}

func writeHeightmap(path string, cfg noise.HeightmapConfig) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return noise.WriteHeightmapPNG(f, cfg)
}

func fileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

func report(w io.Writer, tune tuning.Tuning, s *summary) {
	res := s.Result
	world := res.World
	fmt.Fprintf(w, "world      %s\n", s.WorldID)
	fmt.Fprintf(w, "seed       %d\n", world.Seed)
	fmt.Fprintf(w, "shape      %dx%d chunks of %dx%dx%d (%s cells)\n",
		world.Size, world.Size, world.Dims.Width, world.Dims.Height, world.Dims.Width,
		humanize.Comma(int64(len(world.Blocks))))
	fmt.Fprintf(w, "generate   %s\n", res.GenTime.Round(time.Millisecond))
	fmt.Fprintf(w, "mesh       %s faces, %s vertices, %s triangles (cull_borders=%t)\n",
		humanize.Comma(int64(res.Stats.Faces)), humanize.Comma(int64(res.Stats.Vertices)),
		humanize.Comma(int64(res.Stats.Triangles)), tune.Meshing.CullChunkBorders)
	for k, n := range world.Stats() {
		if n == 0 {
			continue
		}
		fmt.Fprintf(w, "  %-9s %s\n", block.Kind(k), humanize.Comma(int64(n)))
	}
	if s.JSONPath != "" {
		fmt.Fprintf(w, "json       %s (%s)\n", s.JSONPath, humanize.Bytes(uint64(s.JSONBytes)))
	}
	if s.SnapshotPath != "" {
		fmt.Fprintf(w, "snapshot   %s (%s)\n", s.SnapshotPath, humanize.Bytes(uint64(s.SnapBytes)))
	}
	if s.ArchivePath != "" {
		fmt.Fprintf(w, "archive    %s\n", s.ArchivePath)
	}
	if s.Heightmap != "" {
		fmt.Fprintf(w, "heightmap  %s\n", s.Heightmap)
	}
}
