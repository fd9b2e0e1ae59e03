package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"

	"pipescreen.ai/internal/persistence/archive"
	"pipescreen.ai/internal/persistence/indexdb"
	persistlog "pipescreen.ai/internal/persistence/log"
	"pipescreen.ai/internal/persistence/snapshot"
	"pipescreen.ai/internal/sim/tuning"
	"pipescreen.ai/internal/sim/world"
	"pipescreen.ai/internal/transport/observer"
)

func main() {
	var (
		addr       = flag.String("addr", "127.0.0.1:8080", "http listen address (empty to disable)")
		worldID    = flag.String("world", "main", "world id")
		seed       = flag.Int64("seed", 1337, "field seed (used only when starting fresh)")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml or tuning.toml (default: <configs>/tuning.yaml)")
		assetsDir  = flag.String("assets", "./assets", "texture directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index")
		render     = flag.String("render", "auto", "renderer: auto, term or none")
		watch      = flag.Bool("watch", true, "reload the tuning file when it changes")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", false, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)

	useTerm := false
	switch strings.ToLower(strings.TrimSpace(*render)) {
	case "term":
		useTerm = true
	case "auto":
		fd := os.Stdout.Fd()
		useTerm = isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	case "none":
	default:
		log.Fatalf("unknown -render %q", *render)
	}

	// The terminal belongs to the renderer, so logs go to a file in that mode.
	logOut := os.Stdout
	if useTerm {
		f, err := os.OpenFile(filepath.Join(worldDir, "pipescreen.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("open log file: %v", err)
		}
		defer f.Close()
		logOut = f
	}
	logger := log.New(logOut, "[pipescreen] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
		*watch = false
	}
	fieldOpts, err := tune.FieldOptions()
	if err != nil {
		logger.Fatalf("tuning: %v", err)
	}

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(worldDir, "index", "world.sqlite"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertTuning(filepath.Base(tp), tune); err != nil {
			logger.Printf("index: upsert tuning: %v", err)
		}
	}

	cfg := world.WorldConfig{
		ID:                 *worldID,
		TickRateHz:         tune.TickRateHz,
		Seed:               *seed,
		DrawTimeout:        tune.DrawTimeout(),
		SnapshotEveryTicks: uint64(tune.SnapshotEveryTicks),
		Field:              fieldOpts,
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = latestSnapshot(worldDir)
	}
	var snap snapshot.SnapshotV1
	if snapshotToLoad != "" {
		snap, err = snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if snap.Header.WorldID != "" && snap.Header.WorldID != *worldID {
			logger.Fatalf("snapshot world id mismatch: flag=%s snap=%s", *worldID, snap.Header.WorldID)
		}
		cfg.Seed = snap.Seed
		cfg.TickRateHz = snap.TickRate
	}

	w, err := world.New(cfg, logger)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}
	if snapshotToLoad != "" {
		if err := w.ImportSnapshot(snap); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s tick=%d", filepath.Base(snapshotToLoad), w.CurrentTick())
	}

	ctx, cancel := signalContext()
	defer cancel()

	tickLog := persistlog.NewTickLogger(worldDir)
	batchLog := persistlog.NewBatchLogger(worldDir)
	defer tickLog.Close()
	defer batchLog.Close()
	if idx != nil {
		w.SetTickLogger(multiTickLogger{a: tickLog, b: idx})
		w.SetBatchLogger(multiBatchLogger{a: batchLog, b: idx})
	} else {
		w.SetTickLogger(tickLog)
		w.SetBatchLogger(batchLog)
	}

	snapCh := make(chan snapshot.SnapshotV1, 2)
	w.SetSnapshotSink(snapCh)
	go writeSnapshots(ctx, worldDir, snapCh, idx, logger)

	if *watch {
		go func() {
			err := tuning.Watch(ctx, tp, logger, func(t tuning.Tuning) {
				opts, err := t.FieldOptions()
				if err != nil {
					logger.Printf("tuning reload: %v", err)
					return
				}
				ctx2, cancel2 := context.WithTimeout(ctx, 5*time.Second)
				defer cancel2()
				if err := w.ApplyOptions(ctx2, opts); err != nil {
					logger.Printf("tuning reload: %v", err)
					return
				}
				if idx != nil {
					if err := idx.UpsertTuning(filepath.Base(tp), t); err != nil {
						logger.Printf("index: upsert tuning: %v", err)
					}
				}
			})
			if err != nil && err != context.Canceled {
				logger.Printf("tuning watch stopped: %v", err)
			}
		}()
	}

	var term *terminal
	if useTerm {
		term, err = openTerminal(*assetsDir, cfg.Seed, logger)
		if err != nil {
			logger.Fatalf("terminal: %v", err)
		}
		defer term.Close()
		w.AddRenderer(term.renderer)
		go term.pollEvents(cancel)
	}

	if strings.TrimSpace(*addr) != "" {
		obsSrv := observer.NewServer(w, logger)
		mux := newMux(w, obsSrv, idx, muxOptions{
			Admin: envBool("PS_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()),
			Pprof: envBool("PS_ENABLE_PPROF_HTTP", false),
		}, logger)
		srv := &http.Server{
			Addr:              *addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			<-ctx.Done()
			ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel2()
			_ = srv.Shutdown(ctx2)
		}()
		go func() {
			logger.Printf("listening on %s", *addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Printf("ListenAndServe: %v", err)
				cancel()
			}
		}()
	}

	logger.Printf("world=%s run=%s seed=%d tick_rate=%d", w.ID(), w.RunID(), cfg.Seed, cfg.TickRateHz)
	if err := w.Run(ctx); err != nil && err != context.Canceled {
		logger.Printf("world stopped: %v", err)
	}
}

// writeSnapshots persists snapshots from the world sink, indexes them and archives batch
// starts. Failures are logged; the simulation never waits on disk.
func writeSnapshots(ctx context.Context, worldDir string, ch <-chan snapshot.SnapshotV1, idx *indexdb.SQLiteIndex, logger *log.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-ch:
			path := filepath.Join(worldDir, "snapshots", snapshot.FileName(snap.Header.Tick))
			if err := snapshot.WriteSnapshot(path, snap); err != nil {
				logger.Printf("snapshot write: %v", err)
				continue
			}
			if idx != nil {
				idx.RecordSnapshot(path, snap)
			}
			archivedPath, ok, err := archive.ArchiveBatchSnapshot(worldDir, path, snap)
			if err != nil {
				logger.Printf("archive batch snapshot: %v", err)
				continue
			}
			if ok && idx != nil {
				idx.RecordArchive(snap.Header.Batch, snap.Header.Tick, archivedPath)
			}
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func latestSnapshot(worldDir string) string {
	dir := filepath.Join(worldDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}

func envBool(name string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

type multiTickLogger struct {
	a world.TickLogger
	b world.TickLogger
}

func (m multiTickLogger) WriteTick(entry world.TickLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteTick(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTick(entry)
	}
	return nil
}

type multiBatchLogger struct {
	a world.BatchLogger
	b world.BatchLogger
}

func (m multiBatchLogger) WriteBatch(entry world.BatchLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteBatch(entry)
	}
	if m.b != nil {
		_ = m.b.WriteBatch(entry)
	}
	return nil
}
