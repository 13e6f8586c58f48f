package main

import (
	"bytes"
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"voxelforge.ai/internal/persistence/indexdb"
	"voxelforge.ai/internal/persistence/snapshot"
	"voxelforge.ai/internal/sim/tuning"
	"voxelforge.ai/internal/sim/world/io/worldcodec"
	"voxelforge.ai/internal/sim/world/terrain/store"
)

func smallTuning() tuning.Tuning {
	t := tuning.Defaults()
	t.World.Seed = 42
	t.World.Size = 2
	t.World.ChunkWidth = 4
	t.World.ChunkHeight = 16
	t.Generation.Workers = 2
	t.Heightmap.Width = 16
	t.Heightmap.Height = 16
	return t
}

func TestRunWritesEveryOutput(t *testing.T) {
	dir := t.TempDir()
	tune := smallTuning()
	opts := options{
		WorldID:   "w1",
		DataDir:   dir,
		JSONOut:   filepath.Join(dir, "out", "world.json"),
		RLE:       true,
		Snapshot:  true,
		Archive:   true,
		Heightmap: filepath.Join(dir, "out", "height.png"),
		Index:     true,
		GenLog:    true,
	}
	sum, err := run(context.Background(), tune, opts, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.WorldID != "w1" || len(sum.Result.Chunks) != 4 {
		t.Fatalf("unexpected summary: id=%s chunks=%d", sum.WorldID, len(sum.Result.Chunks))
	}

	loaded, err := worldcodec.Load(opts.JSONOut)
	if err != nil {
		t.Fatalf("load json: %v", err)
	}
	if loaded.Digest() != sum.Result.World.Digest() {
		t.Fatalf("json world digest mismatch")
	}

	snap, err := snapshot.ReadSnapshot(sum.SnapshotPath)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	sw, err := store.ImportSnapshot(snap)
	if err != nil {
		t.Fatalf("import snapshot: %v", err)
	}
	if sw.Digest() != sum.Result.World.Digest() {
		t.Fatalf("snapshot world digest mismatch")
	}

	if _, err := os.Stat(sum.ArchivePath); err != nil {
		t.Fatalf("archive: %v", err)
	}

	png, err := os.ReadFile(opts.Heightmap)
	if err != nil {
		t.Fatalf("heightmap: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Fatalf("heightmap is not a PNG")
	}

	gen, _ := filepath.Glob(filepath.Join(dir, "worlds", "w1", "gen", "chunks-*.jsonl.zst"))
	if len(gen) == 0 {
		t.Fatalf("no gen log written")
	}

	// run closes its index; reopen to read back.
	idx, err := indexdb.OpenSQLite(filepath.Join(dir, "worlds", "w1", "index", "world.sqlite"))
	if err != nil {
		t.Fatalf("reopen index: %v", err)
	}
	defer idx.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	row, ok, err := idx.World(ctx, "w1")
	if err != nil || !ok {
		t.Fatalf("world row: ok=%v err=%v", ok, err)
	}
	if row.Seed != 42 || row.Size != 2 || row.Source != "generate" {
		t.Fatalf("unexpected world row: %+v", row)
	}
	chunks, err := idx.Chunks(ctx, "w1")
	if err != nil || len(chunks) != 4 {
		t.Fatalf("chunk rows=%d err=%v", len(chunks), err)
	}
}

func TestRunDefaultsToUUIDAndReports(t *testing.T) {
	dir := t.TempDir()
	tune := smallTuning()
	sum, err := run(context.Background(), tune, options{DataDir: dir}, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(sum.WorldID) != 36 {
		t.Fatalf("expected uuid world id, got %q", sum.WorldID)
	}
	if sum.SnapshotPath != "" || sum.JSONPath != "" {
		t.Fatalf("unexpected outputs: %+v", sum)
	}

	var buf bytes.Buffer
	report(&buf, tune, sum)
	out := buf.String()
	for _, want := range []string{"seed       42", "2x2 chunks of 4x16x4", "STONE"} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
}
