package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"pipescreen.ai/internal/sim/world"
)

const hourLayout = "2006-01-02-15"

// Journal appends JSON lines to hourly zstd segments named <prefix>-<YYYY-MM-DD-HH>.jsonl.zst.
// The segment is picked from the timestamp of the entry, not the wall clock, so a tick lands
// in the hour it was stepped at. Segments never move backwards: an entry stamped earlier than
// the open segment is appended to it, which keeps file name order equal to tick order.
type Journal struct {
	dir    string
	prefix string

	mu  sync.Mutex
	seg *segment
}

// segment is one open hour file. Reopening an hour adds a zstd frame after the old ones.
type segment struct {
	hour string
	f    *os.File
	zw   *zstd.Encoder
	bw   *bufio.Writer
}

func NewJournal(dir, prefix string) *Journal {
	return &Journal{dir: dir, prefix: prefix}
}

// Append writes v as one line and flushes it through the compressor.
func (j *Journal) Append(at time.Time, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	hour := at.UTC().Format(hourLayout)
	if j.seg == nil || hour > j.seg.hour {
		if err := j.openLocked(hour); err != nil {
			return err
		}
	}
	bw := j.seg.bw
	if _, err := bw.Write(b); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	return bw.Flush()
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.closeLocked()
}

// Path is the segment file for the hour containing at.
func (j *Journal) Path(at time.Time) string { return j.segmentPath(at.UTC().Format(hourLayout)) }

func (j *Journal) segmentPath(hour string) string {
	return filepath.Join(j.dir, fmt.Sprintf("%s-%s.jsonl.zst", j.prefix, hour))
}

func (j *Journal) openLocked(hour string) error {
	if err := j.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(j.segmentPath(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	j.seg = &segment{hour: hour, f: f, zw: zw, bw: bufio.NewWriterSize(zw, 64*1024)}
	return nil
}

func (j *Journal) closeLocked() error {
	s := j.seg
	if s == nil {
		return nil
	}
	j.seg = nil
	err := s.bw.Flush()
	if cerr := s.zw.Close(); err == nil {
		err = cerr
	}
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	return err
}

func TickDir(worldDir string) string { return filepath.Join(worldDir, "ticks") }

func BatchDir(worldDir string) string { return filepath.Join(worldDir, "batches") }

// TickLogger journals one entry per stepped tick, filed by the tick's own timestamp.
type TickLogger struct{ j *Journal }

func NewTickLogger(worldDir string) *TickLogger {
	return &TickLogger{j: NewJournal(TickDir(worldDir), "ticks")}
}

func (l *TickLogger) WriteTick(e world.TickLogEntry) error {
	return l.j.Append(time.UnixMilli(e.UnixMS), e)
}

func (l *TickLogger) Close() error { return l.j.Close() }

// BatchLogger journals one entry per field reset.
type BatchLogger struct{ j *Journal }

func NewBatchLogger(worldDir string) *BatchLogger {
	return &BatchLogger{j: NewJournal(BatchDir(worldDir), "batches")}
}

func (l *BatchLogger) WriteBatch(e world.BatchLogEntry) error {
	return l.j.Append(time.UnixMilli(e.UnixMS), e)
}

func (l *BatchLogger) Close() error { return l.j.Close() }
