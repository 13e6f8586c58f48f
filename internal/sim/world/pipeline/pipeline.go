// Package pipeline turns a seed into meshed chunks: generate the world, then
// mesh every chunk in parallel.
package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"voxelforge.ai/internal/sim/world/mesh"
	"voxelforge.ai/internal/sim/world/terrain/store"
)

type Config struct {
	Store store.Config
	// CullChunkBorders hides faces covered by a solid cell in the adjacent
	// chunk. Off by default: chunk edges render as if facing air.
	CullChunkBorders bool
	// OnChunk, if set, is called once per meshed chunk from worker
	// goroutines. It must be safe for concurrent use.
	OnChunk func(ChunkResult)
}

type ChunkResult struct {
	Key      store.ChunkKey
	Mesh     mesh.ChunkMesh
	Stats    mesh.Stats
	Solid    int
	MeshTime time.Duration
}

type Result struct {
	World   *store.World
	Chunks  []ChunkResult // storage order
	Stats   mesh.Stats
	GenTime time.Duration
}

// Run generates cfg.Store and meshes it.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	start := time.Now()
	w, err := store.Generate(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	genTime := time.Since(start)

	res, err := MeshWorld(ctx, w, cfg.Store.Workers, cfg.CullChunkBorders, cfg.OnChunk)
	if err != nil {
		return nil, err
	}
	res.GenTime = genTime
	return res, nil
}

// MeshWorld meshes every chunk of an existing world.
func MeshWorld(ctx context.Context, w *store.World, workers int, cull bool, onChunk func(ChunkResult)) (*Result, error) {
	keys := w.ChunkKeys()
	out := &Result{World: w, Chunks: make([]ChunkResult, len(keys))}
	base := mesh.NewMesher(w.Dims)

	if workers <= 0 {
		workers = 1
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, k := range keys {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out.Chunks[i] = MeshChunk(w, base, k, cull)
			if onChunk != nil {
				onChunk(out.Chunks[i])
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	for _, c := range out.Chunks {
		out.Stats.Add(c.Stats)
	}
	return out, nil
}

// MeshChunk meshes one chunk of w, placing it at its world offset.
func MeshChunk(w *store.World, m *mesh.Mesher, k store.ChunkKey, cull bool) ChunkResult {
	if cull {
		m = m.WithNeighbors(w.NeighborFunc(k.CX, k.CZ))
	}
	voxels := w.Chunk(k.CX, k.CZ)
	start := time.Now()
	cm := m.Build(voxels, w.ChunkOffset(k.CX, k.CZ))
	r := ChunkResult{Key: k, Mesh: cm, Stats: cm.Stats(), MeshTime: time.Since(start)}
	for _, v := range voxels {
		if v.Solid() {
			r.Solid++
		}
	}
	return r
}
