package store

import (
	"encoding/hex"
	"fmt"

	snapv1 "voxelforge.ai/internal/persistence/snapshot"
	"voxelforge.ai/internal/sim/block"
	"voxelforge.ai/internal/sim/world/terrain/grid"
)

// ExportSnapshot copies the world into snapshot form, one entry per chunk in
// storage order.
func ExportSnapshot(w *World, worldID string) snapv1.SnapshotV1 {
	sum := w.Digest()
	snap := snapv1.SnapshotV1{
		Header: snapv1.Header{
			Version: snapv1.Version,
			WorldID: worldID,
			Seed:    w.Seed,
			Digest:  hex.EncodeToString(sum[:]),
		},
		Seed:        w.Seed,
		Size:        w.Size,
		ChunkWidth:  w.Dims.Width,
		ChunkHeight: w.Dims.Height,
		Chunks:      make([]snapv1.ChunkV1, 0, w.ChunkCount()),
	}
	for _, k := range w.ChunkKeys() {
		src := w.Chunk(k.CX, k.CZ)
		blocks := make([]uint16, len(src))
		for i, b := range src {
			blocks[i] = b.Ordinal()
		}
		snap.Chunks = append(snap.Chunks, snapv1.ChunkV1{CX: k.CX, CZ: k.CZ, Blocks: blocks})
	}
	return snap
}

// ImportSnapshot rebuilds a world, rejecting snapshots whose shape does not
// match their declared dimensions.
func ImportSnapshot(snap snapv1.SnapshotV1) (*World, error) {
	dims := grid.Dims{Width: snap.ChunkWidth, Height: snap.ChunkHeight}
	if err := dims.Validate(); err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	if snap.Size <= 0 {
		return nil, fmt.Errorf("snapshot: world size must be > 0, got %d", snap.Size)
	}
	if len(snap.Chunks) != snap.Size*snap.Size {
		return nil, fmt.Errorf("snapshot chunk count mismatch: got %d want %d", len(snap.Chunks), snap.Size*snap.Size)
	}
	w := &World{
		Seed:   snap.Seed,
		Size:   snap.Size,
		Dims:   dims,
		Blocks: make([]block.Kind, snap.Size*snap.Size*dims.Volume()),
	}
	seen := make(map[ChunkKey]bool, len(snap.Chunks))
	for _, ch := range snap.Chunks {
		k := ChunkKey{CX: ch.CX, CZ: ch.CZ}
		if !w.HasChunk(ch.CX, ch.CZ) {
			return nil, fmt.Errorf("snapshot chunk (%d,%d) outside world", ch.CX, ch.CZ)
		}
		if seen[k] {
			return nil, fmt.Errorf("snapshot chunk (%d,%d) duplicated", ch.CX, ch.CZ)
		}
		seen[k] = true
		if len(ch.Blocks) != dims.Volume() {
			return nil, fmt.Errorf("snapshot chunk blocks length mismatch: got %d want %d", len(ch.Blocks), dims.Volume())
		}
		dst := w.Chunk(ch.CX, ch.CZ)
		for i, v := range ch.Blocks {
			if v >= uint16(block.Count) {
				return nil, fmt.Errorf("snapshot chunk (%d,%d): unknown block ordinal %d at %d", ch.CX, ch.CZ, v, i)
			}
			dst[i] = block.Kind(v)
		}
	}
	return w, nil
}
