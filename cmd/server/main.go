package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	persistlog "pirateisles/internal/persistence/log"
	"pirateisles/internal/persistence/snapshot"
	"pirateisles/internal/persistence/store"
	"pirateisles/internal/protocol"
	"pirateisles/internal/sim/tuning"
	"pirateisles/internal/sim/world"
	"pirateisles/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		seed       = flag.Int64("seed", 1337, "world seed for generated objects and combat rolls")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir    = flag.String("data", "./data", "runtime data directory")

		dbDialect = flag.String("db_dialect", "sqlite", "durable store dialect: sqlite|postgres (PI_DB_DIALECT overrides)")
		dbDSN     = flag.String("db_dsn", "", "sqlite path or postgres URL (default: <data>/pirateisles.sqlite; PI_DB_DSN overrides)")
		disableDB = flag.Bool("disable_db", false, "run without the durable store (snapshots only)")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir when the store is disabled and -snapshot is empty")

		cmdRate  = flag.Float64("cmd_rate", 10, "commands per second allowed per connection")
		cmdBurst = flag.Int("cmd_burst", 20, "command burst allowed per connection")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

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
	}

	snapDir := filepath.Join(*dataDir, "snapshots")
	if err := os.MkdirAll(snapDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	w, err := world.New(world.Config{
		Seed:   *seed,
		Logger: log.New(os.Stdout, "[world] ", log.LstdFlags|log.Lmicroseconds),
	}, tune)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	var st *store.Store
	if !*disableDB {
		dsn := strings.TrimSpace(*dbDSN)
		if dsn == "" {
			dsn = filepath.Join(*dataDir, "pirateisles.sqlite")
		}
		cfg := store.ConfigFromEnv(store.Config{
			Dialect: store.Dialect(strings.ToLower(strings.TrimSpace(*dbDialect))),
			DSN:     dsn,
			Logger:  log.New(os.Stdout, "[store] ", log.LstdFlags|log.Lmicroseconds),
		})
		st, err = store.Open(cfg)
		if err != nil {
			logger.Fatalf("open store: %v", err)
		}
		defer st.Close()
	}

	if err := bootWorld(ctx, w, st, snapDir, *snapPath, *loadLatest, logger); err != nil {
		logger.Fatalf("boot: %v", err)
	}
	if st != nil {
		w.SetPersister(st)
	}

	outcomes := persistlog.NewOutcomeLogger(*dataDir)
	defer outcomes.Close()
	w.SetOutcomeSink(outcomes)

	// Snapshot writer.
	snapCh := make(chan snapshot.WorldV1, 2)
	w.SetSnapshotSink(snapCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				path := snapshot.PathFor(snapDir, snap.Header.SavedAtMs)
				if err := snapshot.WriteSnapshot(path, snap); err != nil {
					logger.Printf("snapshot write: %v", err)
					continue
				}
				logger.Printf("snapshot %s players=%d", filepath.Base(path), snap.Header.Players)
			}
		}
	}()

	worldDone := make(chan struct{})
	go func() {
		defer close(worldDone)
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("world stopped: %v", err)
		}
	}()

	validator, err := protocol.NewValidator()
	if err != nil {
		logger.Fatalf("schemas: %v", err)
	}
	wsSrv := ws.NewServer(w, validator, log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lmicroseconds), ws.Options{
		CommandsPerSec: *cmdRate,
		Burst:          *cmdBurst,
	})

	enableAdmin := envBool("PI_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	if !enableAdmin {
		logger.Printf("admin endpoints disabled (PI_ENABLE_ADMIN_HTTP=false)")
	}
	mux := newMux(httpDeps{world: w, ws: wsSrv, store: st, outcomes: outcomes, enableAdmin: enableAdmin})

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

	logger.Printf("listening on %s seed=%d store=%v", *addr, *seed, st != nil)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	cancel()
	<-worldDone
	if st != nil {
		syncCtx, cancelSync := context.WithTimeout(context.Background(), 10*time.Second)
		if err := st.Sync(syncCtx); err != nil {
			logger.Printf("final store sync: %v", err)
		}
		cancelSync()
	}
}

// bootWorld restores players and world objects. The durable store wins when
// it is enabled; otherwise the newest snapshot is used.
func bootWorld(ctx context.Context, w *world.World, st *store.Store, snapDir, snapPath string, loadLatest bool, logger *log.Logger) error {
	if st != nil && snapPath == "" {
		snap, err := st.Load(ctx)
		if err != nil {
			return err
		}
		if len(snap.Players) == 0 && len(snap.ResourceNodes) == 0 {
			logger.Printf("store is empty; fresh world")
			return nil
		}
		if err := w.ImportSnapshot(snap); err != nil {
			return err
		}
		logger.Printf("resumed from store players=%d", len(snap.Players))
		return nil
	}

	path := strings.TrimSpace(snapPath)
	if path == "" && loadLatest {
		latest, err := snapshot.Latest(snapDir)
		if err != nil {
			return err
		}
		path = latest
	}
	if path == "" {
		logger.Printf("no snapshot; fresh world")
		return nil
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		return err
	}
	if err := w.ImportSnapshot(snap); err != nil {
		return err
	}
	logger.Printf("resumed from snapshot=%s players=%d", filepath.Base(path), len(snap.Players))
	return nil
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

func envBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
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
