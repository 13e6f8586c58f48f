package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"voxelforge.ai/internal/persistence/snapshot"
)

type WorldArchiveMeta struct {
	WorldID     string `json:"world_id"`
	Seed        uint64 `json:"seed"`
	Size        int    `json:"size"`
	ChunkWidth  int    `json:"chunk_width"`
	ChunkHeight int    `json:"chunk_height"`
	Digest      string `json:"digest"`
	Snapshot    string `json:"snapshot"`
	CreatedAt   string `json:"created_at"`
}

// ArchiveWorldSnapshot copies a snapshot into
// `worldDir/archives/seed_<seed>_<digest[:12]>/` next to a meta.json.
// Archiving the same world twice returns the existing copy with
// archived=false.
func ArchiveWorldSnapshot(worldDir, snapshotPath string, snap snapshot.SnapshotV1) (archivedPath string, archived bool, err error) {
	digest := snap.Header.Digest
	if len(digest) < 12 {
		return "", false, fmt.Errorf("snapshot %s has no digest", filepath.Base(snapshotPath))
	}
	archiveDir := filepath.Join(worldDir, "archives", fmt.Sprintf("seed_%d_%s", snap.Seed, digest[:12]))
	dst := filepath.Join(archiveDir, "world"+snapshot.Ext)
	if _, err := os.Stat(dst); err == nil {
		return dst, false, nil
	}
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", false, err
	}
	if err := copyFile(snapshotPath, dst); err != nil {
		return "", false, err
	}

	meta := WorldArchiveMeta{
		WorldID:     snap.Header.WorldID,
		Seed:        snap.Seed,
		Size:        snap.Size,
		ChunkWidth:  snap.ChunkWidth,
		ChunkHeight: snap.ChunkHeight,
		Digest:      digest,
		Snapshot:    filepath.Base(dst),
		CreatedAt:   time.Now().UTC().Format(time.RFC3339Nano),
	}
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644)
	}

	return dst, true, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
