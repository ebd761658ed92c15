package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"steelrush.gg/internal/persistence/indexdb"
	persistlog "steelrush.gg/internal/persistence/log"
	"steelrush.gg/internal/persistence/snapshot"
	"steelrush.gg/internal/sim/catalogs"
	"steelrush.gg/internal/sim/tuning"
	"steelrush.gg/internal/sim/world"
	"steelrush.gg/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "highway_1", "world id")
		seed       = flag.Int64("seed", 1337, "world seed (used only when starting a fresh world)")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}

	snapSink := snapshot.DirSink{Dir: filepath.Join(*dataDir, "worlds")}
	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		latest, err := snapSink.Latest(*worldID)
		if err != nil {
			logger.Fatalf("scan snapshots: %v", err)
		}
		snapshotToLoad = latest
	}

	tune, tuneErr := tuning.Load(tp)
	if tuneErr != nil {
		if snapshotToLoad != "" && os.IsNotExist(tuneErr) {
			// Snapshot resumes can run on defaults.
			logger.Printf("tuning not found (%s); using defaults", tp)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", tuneErr)
		}
	}

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(worldDir, "index.db"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertCatalogs(cats, tune); err != nil {
			logger.Printf("index: upsert catalogs: %v", err)
		}
	}

	w, err := world.New(world.WorldConfig{ID: *worldID, Seed: *seed, TickRateHz: tune.TickRateHz}, tune, cats)
	if err != nil {
		logger.Fatalf("create world: %v", err)
	}
	w.SetLogf(logger.Printf)

	if snapshotToLoad != "" {
		raw, err := os.ReadFile(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if err := w.ImportSnapshot(raw); err != nil {
			logger.Fatalf("import snapshot %s: %v", snapshotToLoad, err)
		}
		logger.Printf("resumed %s from %s at tick %d", *worldID, snapshotToLoad, w.Tick())
	}

	tickLog := persistlog.NewTickLogger(worldDir)
	defer tickLog.Close()
	auditLog := persistlog.NewAuditLogger(worldDir)
	defer auditLog.Close()

	w.SetTickSink(func(e world.TickLogEntry) {
		if err := tickLog.WriteTick(e); err != nil {
			logger.Printf("tick log: %v", err)
		}
		if idx != nil {
			_ = idx.WriteTick(e)
		}
	})
	w.SetAuditSink(func(e world.AuditEntry) {
		if err := auditLog.WriteAudit(e); err != nil {
			logger.Printf("audit log: %v", err)
		}
		if idx != nil {
			_ = idx.WriteAudit(e)
		}
	})
	w.SetSnapshotSink(indexedSink{sink: snapSink, idx: idx})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world loop: %v", err)
		}
	}()

	wsServer := ws.NewServer(w, cats, logger)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", wsServer.Handler())
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/debug/pprof/", pprof.Index)

	httpServer := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		logger.Printf("listening on %s (world=%s seed=%d tick=%dHz)", *addr, *worldID, *seed, tune.TickRateHz)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Printf("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
	w.Stop()
}

// indexedSink stores the snapshot on disk and records the location in the
// index.
type indexedSink struct {
	sink snapshot.DirSink
	idx  *indexdb.SQLiteIndex
}

func (s indexedSink) Save(worldID string, tick uint64, payload []byte) (string, error) {
	path, err := s.sink.Save(worldID, tick, payload)
	if err != nil {
		return "", err
	}
	if s.idx != nil {
		s.idx.RecordSnapshot(worldID, tick, path, len(payload))
	}
	return path, nil
}
