package store

import (
	"context"

	"golang.org/x/sync/errgroup"

	"voxelforge.ai/internal/sim/block"
	"voxelforge.ai/internal/sim/world/terrain/gen"
)

// Generate tiles Size x Size independently generated chunks. Every chunk uses
// the same seed and differs only by its offset. Chunks may be generated
// concurrently; each writes only its own slot, so the result equals a
// sequential run.
func Generate(ctx context.Context, cfg Config) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	w := &World{
		Seed:   cfg.Seed,
		Size:   cfg.Size,
		Dims:   cfg.Dims,
		Blocks: make([]block.Kind, cfg.Size*cfg.Size*cfg.Dims.Volume()),
	}
	g := gen.New(cfg.Seed, cfg.Dims, cfg.Bands)

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for cx := 0; cx < w.Size; cx++ {
		for cz := 0; cz < w.Size; cz++ {
			eg.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				g.Fill(w.Chunk(cx, cz), w.ChunkOffset(cx, cz))
				return nil
			})
		}
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return w, nil
}
