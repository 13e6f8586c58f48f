package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"voxelforge.ai/internal/persistence/snapshot"
	"voxelforge.ai/internal/sim/catalogs"
	"voxelforge.ai/internal/sim/tuning"
)

// SQLiteIndex is a secondary, queryable record of generated worlds. Writes go
// through one goroutine and are dropped when it falls behind; snapshots and
// JSONL logs remain the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropWorld    atomic.Uint64
	dropChunk    atomic.Uint64
	dropSnapshot atomic.Uint64
}

type reqKind int

const (
	reqWorld reqKind = iota + 1
	reqChunk
	reqSnapshot
	reqFlush
)

type req struct {
	kind reqKind

	world    WorldRow
	chunk    ChunkRow
	snapshot SnapshotRow
	done     chan struct{}
}

type WorldRow struct {
	WorldID     string `json:"world_id"`
	Seed        uint64 `json:"seed"`
	Size        int    `json:"size"`
	ChunkWidth  int    `json:"chunk_width"`
	ChunkHeight int    `json:"chunk_height"`
	Digest      string `json:"digest"`
	Source      string `json:"source"` // "generate", "json", "snapshot"
	CreatedAt   string `json:"created_at"`
}

type ChunkRow struct {
	WorldID   string `json:"world_id"`
	CX        int    `json:"cx"`
	CZ        int    `json:"cz"`
	Digest    string `json:"digest"`
	Solid     int    `json:"solid"`
	Faces     int    `json:"faces"`
	Vertices  int    `json:"vertices"`
	Triangles int    `json:"triangles"`
}

type SnapshotRow struct {
	Path       string `json:"path"`
	WorldID    string `json:"world_id"`
	Seed       uint64 `json:"seed"`
	Digest     string `json:"digest"`
	Chunks     int    `json:"chunks"`
	RecordedAt string `json:"recorded_at"`
}

type QueueStats struct {
	QueueDepth        int
	QueueCapacity     int
	DropWorldTotal    uint64
	DropChunkTotal    uint64
	DropSnapshotTotal uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// One row per chunk; a 100x100 world must fit without drops.
		ch: make(chan req, 16384),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS worlds (
			world_id TEXT PRIMARY KEY,
			seed TEXT NOT NULL,
			size INTEGER NOT NULL,
			chunk_width INTEGER NOT NULL,
			chunk_height INTEGER NOT NULL,
			digest TEXT NOT NULL,
			source TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS chunks (
			world_id TEXT NOT NULL,
			cx INTEGER NOT NULL,
			cz INTEGER NOT NULL,
			digest TEXT NOT NULL,
			solid INTEGER NOT NULL,
			faces INTEGER NOT NULL,
			vertices INTEGER NOT NULL,
			triangles INTEGER NOT NULL,
			PRIMARY KEY (world_id, cx, cz)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_digest ON chunks(digest);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			path TEXT PRIMARY KEY,
			world_id TEXT NOT NULL,
			seed TEXT NOT NULL,
			digest TEXT NOT NULL,
			chunks INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_world ON snapshots(world_id, recorded_at);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() QueueStats {
	if s == nil {
		return QueueStats{}
	}
	return QueueStats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropWorldTotal:    s.dropWorld.Load(),
		DropChunkTotal:    s.dropChunk.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
	}
}

func (s *SQLiteIndex) RecordWorld(row WorldRow) {
	if s == nil || s.closed.Load() || row.WorldID == "" {
		return
	}
	if row.CreatedAt == "" {
		row.CreatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	select {
	case s.ch <- req{kind: reqWorld, world: row}:
	default:
		s.dropWorld.Add(1)
	}
}

func (s *SQLiteIndex) RecordChunk(row ChunkRow) {
	if s == nil || s.closed.Load() || row.WorldID == "" {
		return
	}
	select {
	case s.ch <- req{kind: reqChunk, chunk: row}:
	default:
		s.dropChunk.Add(1)
	}
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() || path == "" {
		return
	}
	r := SnapshotRow{
		Path:       path,
		WorldID:    snap.Header.WorldID,
		Seed:       snap.Seed,
		Digest:     snap.Header.Digest,
		Chunks:     len(snap.Chunks),
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
		s.dropSnapshot.Add(1)
	}
}

// Flush blocks until everything queued before it is committed.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqFlush, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) UpsertCatalogs(cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if b, _ := json.Marshal(cats.Blocks.Materials()); len(b) > 0 {
		rows = append(rows, kv{name: "blocks_defs", digest: cats.Blocks.DefsDigest, json: b})
	}
	if b, _ := json.Marshal(cats.Blocks.Palette); len(b) > 0 {
		rows = append(rows, kv{name: "blocks_palette", digest: cats.Blocks.PaletteDigest, json: b})
	}
	// Tuning: store the values we actually apply (canonical JSON).
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// World reads back one indexed world. Call Flush first to see recent writes.
func (s *SQLiteIndex) World(ctx context.Context, worldID string) (WorldRow, bool, error) {
	var (
		r    WorldRow
		seed string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT world_id,seed,size,chunk_width,chunk_height,digest,source,created_at FROM worlds WHERE world_id=?`,
		worldID,
	).Scan(&r.WorldID, &seed, &r.Size, &r.ChunkWidth, &r.ChunkHeight, &r.Digest, &r.Source, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return r, false, nil
	}
	if err != nil {
		return r, false, err
	}
	if _, err := fmt.Sscan(seed, &r.Seed); err != nil {
		return r, false, fmt.Errorf("world %s: bad seed %q", worldID, seed)
	}
	return r, true, nil
}

// Chunks lists a world's indexed chunks in storage order.
func (s *SQLiteIndex) Chunks(ctx context.Context, worldID string) ([]ChunkRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT world_id,cx,cz,digest,solid,faces,vertices,triangles FROM chunks WHERE world_id=? ORDER BY cx,cz`,
		worldID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ChunkRow
	for rows.Next() {
		var c ChunkRow
		if err := rows.Scan(&c.WorldID, &c.CX, &c.CZ, &c.Digest, &c.Solid, &c.Faces, &c.Vertices, &c.Triangles); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Snapshots lists a world's recorded snapshots, newest first.
func (s *SQLiteIndex) Snapshots(ctx context.Context, worldID string) ([]SnapshotRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path,world_id,seed,digest,chunks,recorded_at FROM snapshots WHERE world_id=? ORDER BY recorded_at DESC`,
		worldID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SnapshotRow
	for rows.Next() {
		var (
			r    SnapshotRow
			seed string
		)
		if err := rows.Scan(&r.Path, &r.WorldID, &seed, &r.Digest, &r.Chunks, &r.RecordedAt); err != nil {
			return nil, err
		}
		if _, err := fmt.Sscan(seed, &r.Seed); err != nil {
			return nil, fmt.Errorf("snapshot %s: bad seed %q", r.Path, seed)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertWorld, _ := s.db.Prepare(`INSERT OR REPLACE INTO worlds(world_id,seed,size,chunk_width,chunk_height,digest,source,created_at) VALUES(?,?,?,?,?,?,?,?)`)
	insertChunk, _ := s.db.Prepare(`INSERT OR REPLACE INTO chunks(world_id,cx,cz,digest,solid,faces,vertices,triangles) VALUES(?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(path,world_id,seed,digest,chunks,recorded_at) VALUES(?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertWorld, insertChunk, insertSnapshot} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) {
		if st == nil || tx == nil {
			return
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return
		}
		opCount++
	}

	for r := range s.ch {
		if r.kind == reqFlush {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqWorld:
			w := r.world
			// Seeds are stored as text: SQLite integers are signed 64-bit.
			exec(insertWorld, w.WorldID, fmt.Sprint(w.Seed), w.Size, w.ChunkWidth, w.ChunkHeight, w.Digest, w.Source, w.CreatedAt)
		case reqChunk:
			c := r.chunk
			exec(insertChunk, c.WorldID, c.CX, c.CZ, c.Digest, c.Solid, c.Faces, c.Vertices, c.Triangles)
		case reqSnapshot:
			sn := r.snapshot
			exec(insertSnapshot, sn.Path, sn.WorldID, fmt.Sprint(sn.Seed), sn.Digest, sn.Chunks, sn.RecordedAt)
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}
