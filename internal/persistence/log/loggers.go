package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// JSONLZstdWriter appends JSON lines to hourly zstd files named
// <prefix>-YYYY-MM-DD-HH.jsonl.zst.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour || w.w == nil {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.pathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 64*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err error
	if w.w != nil {
		err = w.w.Flush()
	}
	if w.enc != nil {
		if cerr := w.enc.Close(); err == nil {
			err = cerr
		}
		w.enc = nil
	}
	if w.f != nil {
		if cerr := w.f.Close(); err == nil {
			err = cerr
		}
		w.f = nil
	}
	w.w = nil
	return err
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// ReadJSONL decodes every line of a log file into fn. Concatenated zstd
// frames from reopened files are read as one stream.
func ReadJSONL(path string, fn func(json.RawMessage) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()
	jd := json.NewDecoder(dec)
	for {
		var raw json.RawMessage
		if err := jd.Decode(&raw); err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
		if err := fn(raw); err != nil {
			return err
		}
	}
}

// ChunkEntry records one generated and meshed chunk.
type ChunkEntry struct {
	Time       time.Time `json:"time"`
	WorldID    string    `json:"world_id"`
	Seed       uint64    `json:"seed"`
	CX         int       `json:"cx"`
	CZ         int       `json:"cz"`
	Digest     string    `json:"digest"`
	Solid      int       `json:"solid"`
	Faces      int       `json:"faces"`
	Vertices   int       `json:"vertices"`
	Triangles  int       `json:"triangles"`
	MeshMicros int64     `json:"mesh_us"`
}

// GenLogger writes one compressed JSONL entry per chunk under
// <worldDir>/gen.
type GenLogger struct{ w *JSONLZstdWriter }

func NewGenLogger(worldDir string) *GenLogger {
	return &GenLogger{w: NewJSONLZstdWriter(filepath.Join(worldDir, "gen"), "chunks")}
}

func (l *GenLogger) WriteChunk(e ChunkEntry) error { return l.w.Write(e) }
func (l *GenLogger) Close() error                  { return l.w.Close() }

// StreamEntry records mesh stream session activity.
type StreamEntry struct {
	Time    time.Time `json:"time"`
	Session string    `json:"session"`
	Remote  string    `json:"remote"`
	Event   string    `json:"event"` // "SUBSCRIBE", "CLOSE"
	Center  [2]int    `json:"center,omitempty"`
	Radius  int       `json:"radius,omitempty"`
	Chunks  int       `json:"chunks,omitempty"`
	Bytes   int64     `json:"bytes,omitempty"`
}

// StreamLogger writes stream session entries under <worldDir>/stream.
type StreamLogger struct{ w *JSONLZstdWriter }

func NewStreamLogger(worldDir string) *StreamLogger {
	return &StreamLogger{w: NewJSONLZstdWriter(filepath.Join(worldDir, "stream"), "sessions")}
}

func (l *StreamLogger) WriteSession(e StreamEntry) error { return l.w.Write(e) }
func (l *StreamLogger) Close() error                     { return l.w.Close() }
