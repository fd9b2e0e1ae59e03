package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeebo/xxh3"
	_ "modernc.org/sqlite"

	"pipescreen.ai/internal/observerproto"
	"pipescreen.ai/internal/persistence/snapshot"
	"pipescreen.ai/internal/sim/tuning"
	"pipescreen.ai/internal/sim/world"
)

// SQLiteIndex is a queryable read model of the tick log. Writes are queued and applied by
// one goroutine; the JSONL logs stay the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick     atomic.Uint64
	dropBatch    atomic.Uint64
	dropSnapshot atomic.Uint64
	dropArchive  atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqBatch
	reqSnapshot
	reqArchive
)

type req struct {
	kind reqKind

	tick     world.TickLogEntry
	batch    world.BatchLogEntry
	snapshot snapshotRow
	archive  archiveRow
}

type snapshotRow struct {
	Tick     uint64
	Path     string
	Reason   string
	Batch    uint64
	Seed     int64
	Pipes    int
	Segments int
}

type archiveRow struct {
	Batch      uint64
	StartTick  uint64
	Path       string
	RecordedAt string
}

// Stats reports queue pressure.
type Stats struct {
	QueueDepth        int    `json:"queue_depth"`
	QueueCapacity     int    `json:"queue_capacity"`
	DropTickTotal     uint64 `json:"drop_tick_total"`
	DropBatchTotal    uint64 `json:"drop_batch_total"`
	DropSnapshotTotal uint64 `json:"drop_snapshot_total"`
	DropArchiveTotal  uint64 `json:"drop_archive_total"`
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
		ch: make(chan req, 65536),
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
		`CREATE TABLE IF NOT EXISTS configs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS batches (
			seq INTEGER PRIMARY KEY,
			tick INTEGER NOT NULL,
			unix_ms INTEGER NOT NULL,
			joints TEXT NOT NULL,
			ball_joint_chance REAL NOT NULL,
			teapot_chance REAL NOT NULL,
			texture TEXT,
			festive INTEGER NOT NULL,
			pipes INTEGER NOT NULL,
			admin_reset INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_batches_tick ON batches(tick);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			unix_ms INTEGER NOT NULL,
			digest TEXT NOT NULL,
			admin_reset INTEGER NOT NULL,
			resets INTEGER NOT NULL,
			spawns INTEGER NOT NULL,
			segments INTEGER NOT NULL,
			balls INTEGER NOT NULL,
			elbows INTEGER NOT NULL,
			teapots INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			reason TEXT NOT NULL,
			batch INTEGER NOT NULL,
			seed INTEGER NOT NULL,
			pipes INTEGER NOT NULL,
			segments INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS archives (
			batch INTEGER PRIMARY KEY,
			start_tick INTEGER NOT NULL,
			snapshot_path TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
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

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropTickTotal:     s.dropTick.Load(),
		DropBatchTotal:    s.dropBatch.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
		DropArchiveTotal:  s.dropArchive.Load(),
	}
}

func (s *SQLiteIndex) enqueue(r req, drops *atomic.Uint64) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		// Drop if the indexer falls behind.
		drops.Add(1)
	}
}

func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	if s == nil {
		return nil
	}
	s.enqueue(req{kind: reqTick, tick: entry}, &s.dropTick)
	return nil
}

func (s *SQLiteIndex) WriteBatch(entry world.BatchLogEntry) error {
	if s == nil {
		return nil
	}
	s.enqueue(req{kind: reqBatch, batch: entry}, &s.dropBatch)
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil {
		return
	}
	segs := 0
	for _, p := range snap.Field.Pipes {
		if len(p.Path) > 0 {
			segs += len(p.Path) - 1
		}
	}
	r := snapshotRow{
		Tick:     snap.Header.Tick,
		Path:     path,
		Reason:   snap.Header.Reason,
		Batch:    snap.Header.Batch,
		Seed:     snap.Seed,
		Pipes:    len(snap.Field.Pipes),
		Segments: segs,
	}
	s.enqueue(req{kind: reqSnapshot, snapshot: r}, &s.dropSnapshot)
}

func (s *SQLiteIndex) RecordArchive(batch, startTick uint64, archivedSnapshotPath string) {
	if s == nil || batch == 0 || archivedSnapshotPath == "" {
		return
	}
	r := archiveRow{
		Batch:      batch,
		StartTick:  startTick,
		Path:       archivedSnapshotPath,
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	s.enqueue(req{kind: reqArchive, archive: r}, &s.dropArchive)
}

// UpsertTuning stores the tuning values actually applied, keyed by name.
func (s *SQLiteIndex) UpsertTuning(name string, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	digest := fmt.Sprintf("%016x", xxh3.Hash(b))
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO configs(name,digest,json,updated_at) VALUES(?,?,?,?)`, name, digest, string(b), now); err != nil {
		return err
	}
	return tx.Commit()
}

type tickCounts struct {
	resets, spawns, segments, balls, elbows, teapots int
}

func countEvents(evs []observerproto.Event) tickCounts {
	var c tickCounts
	for _, e := range evs {
		switch e.Kind {
		case observerproto.EventReset:
			c.resets++
		case observerproto.EventSpawn:
			c.spawns++
		case observerproto.EventSegment:
			c.segments++
		case observerproto.EventJoint:
			switch e.Joint {
			case "BALL":
				c.balls++
			case "ELBOW":
				c.elbows++
			case "TEAPOT":
				c.teapots++
			}
		}
	}
	return c
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	// Prepared statements (on db; executed within tx).
	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(tick,unix_ms,digest,admin_reset,resets,spawns,segments,balls,elbows,teapots) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	insertBatch, _ := s.db.Prepare(`INSERT OR REPLACE INTO batches(seq,tick,unix_ms,joints,ball_joint_chance,teapot_chance,texture,festive,pipes,admin_reset) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(tick,path,reason,batch,seed,pipes,segments) VALUES(?,?,?,?,?,?,?)`)
	insertArchive, _ := s.db.Prepare(`INSERT OR REPLACE INTO archives(batch,start_tick,snapshot_path,recorded_at) VALUES(?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTick, insertBatch, insertSnapshot, insertArchive} {
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
			// If we can't start a tx, we can't do much; sleep a bit.
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
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			c := countEvents(r.tick.Events)
			exec(insertTick,
				int64(r.tick.Tick),
				r.tick.UnixMS,
				r.tick.Digest,
				boolInt(r.tick.AdminReset),
				c.resets, c.spawns, c.segments, c.balls, c.elbows, c.teapots,
			)
		case reqBatch:
			b := r.batch
			exec(insertBatch,
				int64(b.Batch.Seq),
				int64(b.Tick),
				b.UnixMS,
				b.Batch.Joints,
				b.Batch.BallJointChance,
				b.Batch.TeapotChance,
				b.Batch.Texture,
				boolInt(b.Batch.Festive),
				b.Batch.Pipes,
				boolInt(b.AdminReset),
			)
		case reqSnapshot:
			sn := r.snapshot
			exec(insertSnapshot, int64(sn.Tick), sn.Path, sn.Reason, int64(sn.Batch), sn.Seed, sn.Pipes, sn.Segments)
		case reqArchive:
			a := r.archive
			exec(insertArchive, int64(a.Batch), int64(a.StartTick), a.Path, a.RecordedAt)
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}
