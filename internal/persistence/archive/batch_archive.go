package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"pipescreen.ai/internal/persistence/snapshot"
)

type BatchArchiveMeta struct {
	Batch     uint64 `json:"batch"`
	StartTick uint64 `json:"start_tick"`
	Seed      int64  `json:"seed"`
	RunID     string `json:"run_id"`
	Joints    string `json:"joints"`
	Festive   bool   `json:"festive,omitempty"`
	Pipes     int    `json:"pipes"`
	Snapshot  string `json:"snapshot"`
	CreatedAt string `json:"created_at"`
}

// BatchDir is `worldDir/archives/batch_<NNNNNN>/`.
func BatchDir(worldDir string, batch uint64) string {
	return filepath.Join(worldDir, "archives", fmt.Sprintf("batch_%06d", batch))
}

// ArchiveBatchSnapshot copies a batch-start snapshot into BatchDir and writes meta.json next to it.
// Other snapshots are ignored (archived=false).
func ArchiveBatchSnapshot(worldDir, snapshotPath string, snap snapshot.SnapshotV1) (archivedPath string, archived bool, err error) {
	if snap.Header.Reason != snapshot.ReasonBatchStart || snap.Header.Batch == 0 {
		return "", false, nil
	}
	archiveDir := BatchDir(worldDir, snap.Header.Batch)
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", false, err
	}

	dst := filepath.Join(archiveDir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return "", false, err
	}

	meta := BatchArchiveMeta{
		Batch:     snap.Header.Batch,
		StartTick: snap.Header.Tick,
		Seed:      snap.Seed,
		RunID:     snap.RunID,
		Joints:    snap.Field.Batch.Joints,
		Festive:   snap.Field.Batch.Festive,
		Pipes:     snap.Field.Batch.Pipes,
		Snapshot:  filepath.Base(dst),
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644)
	}
	return dst, true, nil
}

// ReadMeta loads meta.json of an archived batch.
func ReadMeta(worldDir string, batch uint64) (BatchArchiveMeta, error) {
	var m BatchArchiveMeta
	b, err := os.ReadFile(filepath.Join(BatchDir(worldDir, batch), "meta.json"))
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("decode meta: %w", err)
	}
	return m, nil
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
