// Package genrecord fans generation results out to the JSONL log and the
// SQLite index. Either sink may be nil.
package genrecord

import (
	"encoding/hex"
	"log"
	"time"

	"voxelforge.ai/internal/persistence/indexdb"
	plog "voxelforge.ai/internal/persistence/log"
	"voxelforge.ai/internal/sim/world/pipeline"
	"voxelforge.ai/internal/sim/world/terrain/store"
)

type Recorder struct {
	WorldID string
	World   *store.World
	Log     *plog.GenLogger
	Index   *indexdb.SQLiteIndex
	Logger  *log.Logger
}

// RecordWorld indexes the world itself; source says where it came from.
func (r *Recorder) RecordWorld(source string) {
	if r.Index == nil {
		return
	}
	sum := r.World.Digest()
	r.Index.RecordWorld(indexdb.WorldRow{
		WorldID:     r.WorldID,
		Seed:        r.World.Seed,
		Size:        r.World.Size,
		ChunkWidth:  r.World.Dims.Width,
		ChunkHeight: r.World.Dims.Height,
		Digest:      hex.EncodeToString(sum[:]),
		Source:      source,
	})
}

// Chunk matches pipeline.Config.OnChunk.
func (r *Recorder) Chunk(c pipeline.ChunkResult) {
	sum := r.World.ChunkDigest(c.Key.CX, c.Key.CZ)
	digest := hex.EncodeToString(sum[:])
	if r.Log != nil {
		err := r.Log.WriteChunk(plog.ChunkEntry{
			Time:       time.Now().UTC(),
			WorldID:    r.WorldID,
			Seed:       r.World.Seed,
			CX:         c.Key.CX,
			CZ:         c.Key.CZ,
			Digest:     digest,
			Solid:      c.Solid,
			Faces:      c.Stats.Faces,
			Vertices:   c.Stats.Vertices,
			Triangles:  c.Stats.Triangles,
			MeshMicros: c.MeshTime.Microseconds(),
		})
		if err != nil && r.Logger != nil {
			r.Logger.Printf("gen log: %v", err)
		}
	}
	if r.Index != nil {
		r.Index.RecordChunk(indexdb.ChunkRow{
			WorldID:   r.WorldID,
			CX:        c.Key.CX,
			CZ:        c.Key.CZ,
			Digest:    digest,
			Solid:     c.Solid,
			Faces:     c.Stats.Faces,
			Vertices:  c.Stats.Vertices,
			Triangles: c.Stats.Triangles,
		})
	}
}
