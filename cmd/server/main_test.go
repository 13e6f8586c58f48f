package main

import (
	"context"
	"io"
	"log"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"voxelforge.ai/internal/persistence/snapshot"
	"voxelforge.ai/internal/sim/block"
	"voxelforge.ai/internal/sim/tuning"
	"voxelforge.ai/internal/sim/world/io/worldcodec"
	"voxelforge.ai/internal/sim/world/pipeline"
	"voxelforge.ai/internal/sim/world/terrain/grid"
	"voxelforge.ai/internal/sim/world/terrain/store"
	"voxelforge.ai/internal/sim/worldtest"
)

func smallTuning() tuning.Tuning {
	t := tuning.Defaults()
	t.World.Size = 2
	t.World.ChunkWidth = 4
	t.World.ChunkHeight = 8
	t.Generation.Workers = 2
	return t
}

func TestLoadWorld_GenerateWhenNothingGiven(t *testing.T) {
	tune := smallTuning()
	w, source, err := loadWorld(context.Background(), tune, "", "", "w1")
	if err != nil {
		t.Fatalf("loadWorld: %v", err)
	}
	if source != "generate" {
		t.Fatalf("source=%q want generate", source)
	}
	if w.Size != 2 || w.Dims != (grid.Dims{Width: 4, Height: 8}) {
		t.Fatalf("unexpected shape: size=%d dims=%+v", w.Size, w.Dims)
	}
}

func TestLoadWorld_JSONWins(t *testing.T) {
	dir := t.TempDir()
	src := worldtest.Flat(t, 1, grid.Dims{Width: 4, Height: 8}, 2, block.Stone)
	path := filepath.Join(dir, "world.json")
	if err := worldcodec.Save(path, src, worldcodec.Options{RLE: true}); err != nil {
		t.Fatalf("save: %v", err)
	}

	w, source, err := loadWorld(context.Background(), smallTuning(), path, "ignored.snap.zst", "w1")
	if err != nil {
		t.Fatalf("loadWorld: %v", err)
	}
	if source != "json" {
		t.Fatalf("source=%q want json", source)
	}
	if w.Digest() != src.Digest() {
		t.Fatalf("digest mismatch after json load")
	}
}

func TestLoadWorld_SnapshotWorldIDMismatch(t *testing.T) {
	dir := t.TempDir()
	src := worldtest.Flat(t, 1, grid.Dims{Width: 4, Height: 8}, 2, block.Dirt)
	path := filepath.Join(dir, "snapshots", "a"+snapshot.Ext)
	if err := snapshot.WriteSnapshot(path, store.ExportSnapshot(src, "other")); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}

	if _, _, err := loadWorld(context.Background(), smallTuning(), "", path, "w1"); err == nil {
		t.Fatalf("expected world id mismatch error")
	}
	w, source, err := loadWorld(context.Background(), smallTuning(), "", path, "other")
	if err != nil {
		t.Fatalf("loadWorld: %v", err)
	}
	if source != "snapshot" || w.Digest() != src.Digest() {
		t.Fatalf("snapshot load: source=%q digest match=%v", source, w.Digest() == src.Digest())
	}
}

func TestOpenRuntimeIndex(t *testing.T) {
	dir := t.TempDir()

	idx, err := openRuntimeIndex(dir, true)
	if err != nil || idx != nil {
		t.Fatalf("disabled: idx=%v err=%v", idx, err)
	}

	t.Setenv("VF_INDEX_BACKEND", "none")
	idx, err = openRuntimeIndex(dir, false)
	if err != nil || idx != nil {
		t.Fatalf("none: idx=%v err=%v", idx, err)
	}

	t.Setenv("VF_INDEX_BACKEND", "d1")
	if _, err := openRuntimeIndex(dir, false); err == nil {
		t.Fatalf("expected unsupported backend error")
	}

	t.Setenv("VF_INDEX_BACKEND", "")
	idx, err = openRuntimeIndex(dir, false)
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	if idx == nil {
		t.Fatalf("expected sqlite index")
	}
	_ = idx.Close()
}

func TestMetricsHandler(t *testing.T) {
	w := worldtest.Flat(t, 1, grid.Dims{Width: 4, Height: 8}, 0, block.Stone)
	res, err := pipeline.MeshWorld(context.Background(), w, 1, false, nil)
	if err != nil {
		t.Fatalf("mesh: %v", err)
	}

	rec := httptest.NewRecorder()
	metricsHandler("w1", res, nil)(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Result().Body)
	text := string(body)

	for _, want := range []string{
		`voxelforge_world_chunks{world="w1"} 1`,
		`voxelforge_mesh_total{world="w1",metric="faces"} 48`,
		`voxelforge_world_blocks{world="w1",block="STONE"} 16`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("metrics missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "voxelforge_index_queue_depth") {
		t.Fatalf("index metrics should be absent without an index")
	}
}

func TestLatestSnapshot_ExplicitShapeSkipsLatest(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"20260101T000000Z", "20260102T000000Z"} {
		if err := os.WriteFile(filepath.Join(dir, name+snapshot.Ext), nil, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	logger := log.New(io.Discard, "", 0)
	want := filepath.Join(dir, "20260102T000000Z"+snapshot.Ext)
	if got := latestSnapshot(logger, dir, true, false); got != want {
		t.Fatalf("latest=%q want %q", got, want)
	}
	if got := latestSnapshot(logger, dir, true, true); got != "" {
		t.Fatalf("explicit seed/size should skip latest, got %q", got)
	}
	if got := latestSnapshot(logger, dir, false, false); got != "" {
		t.Fatalf("disabled should return empty, got %q", got)
	}
}
