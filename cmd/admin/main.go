package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"pipescreen.ai/internal/persistence/archive"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "snapshot":
			postCmd("snapshot", os.Args[2:])
			return
		case "reset":
			postCmd("reset", os.Args[2:])
			return
		case "archives":
			archivesCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (optional)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "worlds")
	if *worldID != "" {
		base = filepath.Join(base, *worldID)
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}

func archivesCmd(args []string) {
	fs := flag.NewFlagSet("archives", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "main", "world id")
	_ = fs.Parse(args)

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	batches, err := archivedBatches(worldDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read archives:", err)
		os.Exit(1)
	}
	for _, b := range batches {
		meta, err := archive.ReadMeta(worldDir, b)
		if err != nil {
			fmt.Printf("batch=%d error=%q\n", b, err.Error())
			continue
		}
		fmt.Printf("batch=%d start_tick=%d joints=%s pipes=%d festive=%t snapshot=%s\n",
			meta.Batch, meta.StartTick, meta.Joints, meta.Pipes, meta.Festive,
			filepath.Join(archive.BatchDir(worldDir, meta.Batch), meta.Snapshot))
	}
}

// archivedBatches lists the batch numbers under worldDir/archives in ascending order.
func archivedBatches(worldDir string) ([]uint64, error) {
	ents, err := os.ReadDir(filepath.Join(worldDir, "archives"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []uint64
	for _, e := range ents {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "batch_") {
			continue
		}
		n, err := strconv.ParseUint(strings.TrimPrefix(e.Name(), "batch_"), 10, 64)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
