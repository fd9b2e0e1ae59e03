package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

type queryOpts struct {
	Limit int
	Since uint64
	Batch uint64
}

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	since := fs.Uint64("since_tick", 0, "ticks: first tick (inclusive)")
	batch := fs.Uint64("batch", 0, "ticks: only ticks of this batch (optional)")
	_ = fs.Parse(args)

	q := "snapshots"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "worlds", *worldID, "index", "world.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := runQuery(db, q, queryOpts{Limit: *limit, Since: *since, Batch: *batch}, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if strings.HasPrefix(err.Error(), "unknown query") {
			fmt.Fprintln(os.Stderr, "usage: admin db [-data ./data] [-world WORLD|-db PATH] [-limit N] snapshots|batches|ticks|archives|configs")
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// runQuery prints one JSON object per row.
func runQuery(db *sql.DB, q string, o queryOpts, out io.Writer) error {
	if o.Limit <= 0 {
		o.Limit = 20
	}
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)

	switch q {
	case "snapshots":
		rows, err := db.Query(`SELECT tick,path,reason,batch,seed,pipes,segments FROM snapshots ORDER BY tick DESC LIMIT ?`, o.Limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick     int64  `json:"tick"`
				Path     string `json:"path"`
				Reason   string `json:"reason"`
				Batch    int64  `json:"batch"`
				Seed     int64  `json:"seed"`
				Pipes    int    `json:"pipes"`
				Segments int    `json:"segments"`
			}
			if err := rows.Scan(&r.Tick, &r.Path, &r.Reason, &r.Batch, &r.Seed, &r.Pipes, &r.Segments); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			_ = enc.Encode(r)
		}
		return rows.Err()

	case "batches":
		rows, err := db.Query(`SELECT seq,tick,unix_ms,joints,ball_joint_chance,teapot_chance,COALESCE(texture,''),festive,pipes,admin_reset FROM batches ORDER BY seq DESC LIMIT ?`, o.Limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Seq             int64   `json:"seq"`
				Tick            int64   `json:"tick"`
				UnixMS          int64   `json:"unix_ms"`
				Joints          string  `json:"joints"`
				BallJointChance float64 `json:"ball_joint_chance"`
				TeapotChance    float64 `json:"teapot_chance"`
				Texture         string  `json:"texture,omitempty"`
				Festive         bool    `json:"festive"`
				Pipes           int     `json:"pipes"`
				AdminReset      bool    `json:"admin_reset"`
			}
			if err := rows.Scan(&r.Seq, &r.Tick, &r.UnixMS, &r.Joints, &r.BallJointChance, &r.TeapotChance, &r.Texture, &r.Festive, &r.Pipes, &r.AdminReset); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			_ = enc.Encode(r)
		}
		return rows.Err()

	case "ticks":
		query := `SELECT tick,unix_ms,digest,admin_reset,resets,spawns,segments,balls,elbows,teapots FROM ticks WHERE tick>=? ORDER BY tick LIMIT ?`
		args := []any{o.Since, o.Limit}
		if o.Batch != 0 {
			// A batch runs from its reset tick up to the next batch's reset tick.
			query = `SELECT tick,unix_ms,digest,admin_reset,resets,spawns,segments,balls,elbows,teapots FROM ticks
				WHERE tick>=? AND tick>=(SELECT tick FROM batches WHERE seq=?)
				AND tick<COALESCE((SELECT tick FROM batches WHERE seq=?),9223372036854775807)
				ORDER BY tick LIMIT ?`
			args = []any{o.Since, o.Batch, o.Batch + 1, o.Limit}
		}
		rows, err := db.Query(query, args...)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick       int64  `json:"tick"`
				UnixMS     int64  `json:"unix_ms"`
				Digest     string `json:"digest"`
				AdminReset bool   `json:"admin_reset,omitempty"`
				Resets     int    `json:"resets,omitempty"`
				Spawns     int    `json:"spawns,omitempty"`
				Segments   int    `json:"segments,omitempty"`
				Balls      int    `json:"balls,omitempty"`
				Elbows     int    `json:"elbows,omitempty"`
				Teapots    int    `json:"teapots,omitempty"`
			}
			if err := rows.Scan(&r.Tick, &r.UnixMS, &r.Digest, &r.AdminReset, &r.Resets, &r.Spawns, &r.Segments, &r.Balls, &r.Elbows, &r.Teapots); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			_ = enc.Encode(r)
		}
		return rows.Err()

	case "archives":
		rows, err := db.Query(`SELECT batch,start_tick,snapshot_path,recorded_at FROM archives ORDER BY batch DESC LIMIT ?`, o.Limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Batch      int64  `json:"batch"`
				StartTick  int64  `json:"start_tick"`
				Snapshot   string `json:"snapshot"`
				RecordedAt string `json:"recorded_at"`
			}
			if err := rows.Scan(&r.Batch, &r.StartTick, &r.Snapshot, &r.RecordedAt); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			_ = enc.Encode(r)
		}
		return rows.Err()

	case "configs":
		rows, err := db.Query(`SELECT name,digest,updated_at,json FROM configs ORDER BY name`)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Name      string          `json:"name"`
				Digest    string          `json:"digest"`
				UpdatedAt string          `json:"updated_at"`
				Tuning    json.RawMessage `json:"tuning"`
			}
			var raw string
			if err := rows.Scan(&r.Name, &r.Digest, &r.UpdatedAt, &raw); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			r.Tuning = json.RawMessage(raw)
			_ = enc.Encode(r)
		}
		return rows.Err()

	default:
		return fmt.Errorf("unknown query: %s", q)
	}
}
