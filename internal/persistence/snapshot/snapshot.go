package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

// Reasons a snapshot was taken.
const (
	ReasonPeriodic   = "periodic"
	ReasonAdmin      = "admin"
	ReasonBatchStart = "batch_start"
)

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
	Reason  string `json:"reason,omitempty"`
	Batch   uint64 `json:"batch"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	RunID    string `json:"run_id"`
	Seed     int64  `json:"seed"`
	TickRate int    `json:"tick_rate_hz"`

	// RNG is the binary state of the simulation PCG source.
	RNG []byte `json:"rng"`

	Field FieldV1 `json:"field"`
}

type FieldV1 struct {
	Min        [3]int   `json:"min"`
	Max        [3]int   `json:"max"`
	Batch      BatchV1  `json:"batch"`
	Pipes      []PipeV1 `json:"pipes"`
	Occupancy  string   `json:"occupancy"`
	NextID     uint32   `json:"next_id"`
	CycleIndex int      `json:"cycle_index"`
	StuckTicks int      `json:"stuck_ticks"`
	Stats      StatsV1  `json:"stats"`
}

type BatchV1 struct {
	Seq             uint64  `json:"seq"`
	Joints          string  `json:"joints"`
	BallJointChance float64 `json:"ball_joint_chance"`
	TeapotChance    float64 `json:"teapot_chance"`
	Texture         string  `json:"texture,omitempty"`
	Festive         bool    `json:"festive,omitempty"`
	Pipes           int     `json:"pipes"`
}

type PipeV1 struct {
	ID      uint32   `json:"id"`
	Texture string   `json:"texture,omitempty"`
	Color   uint32   `json:"color"`
	Path    [][3]int `json:"path"`
	// Joints lists the turns along Path by cell index.
	Joints []JointV1 `json:"joints,omitempty"`
}

type JointV1 struct {
	Step int    `json:"step"`
	Kind string `json:"kind"`
}

type StatsV1 struct {
	Ticks      uint64 `json:"ticks"`
	Batches    uint64 `json:"batches"`
	Spawned    uint64 `json:"spawned"`
	Segments   uint64 `json:"segments"`
	StuckSteps uint64 `json:"stuck_steps"`
	Balls      uint64 `json:"balls"`
	Elbows     uint64 `json:"elbows"`
	Teapots    uint64 `json:"teapots"`
}

// FileName is the on-disk name for a snapshot of tick.
func FileName(tick uint64) string { return fmt.Sprintf("%d.snap.zst", tick) }

// WriteSnapshot stores a JSON header line followed by the gob body, zstd-compressed.
// The file is written to a temp name and renamed into place.
func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := encode(f, snap); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func encode(f *os.File, snap SnapshotV1) error {
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, err := json.Marshal(snap.Header)
	if err != nil {
		_ = enc.Close()
		return err
	}
	if _, err := bw.Write(append(hb, '\n')); err != nil {
		_ = enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		_ = enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The header line is duplicated in the gob body.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader decodes only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()
	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}
