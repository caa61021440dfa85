package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"chatwars.ai/internal/config"
	"chatwars.ai/internal/dispatch"
	"chatwars.ai/internal/logging"
	persistlog "chatwars.ai/internal/persistence/log"
	"chatwars.ai/internal/persistence/snapshot"
	"chatwars.ai/internal/persistence/sqlitestore"
	"chatwars.ai/internal/persistence/store"
	"chatwars.ai/internal/sim/catalogs"
	"chatwars.ai/internal/sim/engine"
	"chatwars.ai/internal/sim/tuning"
	"chatwars.ai/internal/transport/httpapi"
	"chatwars.ai/internal/transport/ws"
)

const snapshotTimeLayout = "20060102T150405Z"

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	var (
		addr        = flag.String("addr", cfg.Addr, "http listen address")
		configDir   = flag.String("configs", cfg.ConfigDir, "config directory")
		dataDir     = flag.String("data", cfg.DataDir, "runtime data directory")
		storeKind   = flag.String("store", cfg.Store, "entity store: sqlite or memory")
		audit       = flag.Bool("audit", cfg.Audit, "write the audit log under <data>/audit")
		tuningPath  = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		catalogPath = flag.String("catalog", "", "path to catalog.yaml (default: <configs>/catalog.yaml, else the built-in variant from tuning)")
		logLevel    = flag.String("log_level", cfg.LogLevel, "log level")
		logFormat   = flag.String("log_format", cfg.LogFormat, "log format: json or text")

		snapPath    = flag.String("snapshot", "", "snapshot to import before serving (optional)")
		loadLatest  = flag.Bool("load_latest_snapshot", true, "import the latest snapshot from <data>/snapshots when the store is memory and -snapshot is empty")
		snapOnExit  = flag.Bool("snapshot_on_exit", true, "write a snapshot on graceful shutdown")
		enableAdmin = flag.Bool("admin_http", true, "serve the loopback-only /admin/v1 endpoints")
	)
	flag.Parse()

	cfg.Addr, cfg.ConfigDir, cfg.DataDir, cfg.Store, cfg.Audit = *addr, *configDir, *dataDir, *storeKind, *audit
	cfg.LogLevel, cfg.LogFormat = *logLevel, *logFormat
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	base, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := base.WithField("component", "server")

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(cfg.ConfigDir, "tuning.yaml")
	}
	tune, err := loadTuning(tp)
	if err != nil {
		logger.WithError(err).Fatal("load tuning")
	}
	cat, err := loadCatalog(strings.TrimSpace(*catalogPath), cfg.ConfigDir, tune.Catalog)
	if err != nil {
		logger.WithError(err).Fatal("load catalog")
	}
	logger.WithFields(logrus.Fields{"variant": cat.Variant, "digest": cat.Digest}).Info("catalog loaded")

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.WithError(err).Fatal("create data dir")
	}
	st, err := openStore(cfg)
	if err != nil {
		logger.WithError(err).Fatal("open store")
	}
	defer st.Close()

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest && cfg.Store == config.StoreMemory {
		snapshotToLoad = latestSnapshot(cfg.DataDir)
	}
	if snapshotToLoad != "" {
		h, err := snapshot.Import(context.Background(), snapshotToLoad, st)
		if err != nil {
			logger.WithError(err).WithField("path", snapshotToLoad).Fatal("import snapshot")
		}
		if h.CatalogDigest != "" && h.CatalogDigest != cat.Digest {
			logger.WithField("snapshot_digest", h.CatalogDigest).Warn("snapshot was taken with a different catalog")
		}
		logger.WithFields(logrus.Fields{"path": snapshotToLoad, "records": h.Records}).Info("snapshot imported")
	}

	opts := engine.Options{
		Store:   st,
		Catalog: cat,
		Tuning:  tune,
		Logger:  base,
	}
	if cfg.Audit {
		auditLog := persistlog.NewAuditLogger(cfg.DataDir)
		defer auditLog.Close()
		opts.Audit = auditLog
	}
	eng, err := engine.New(opts)
	if err != nil {
		logger.WithError(err).Fatal("engine")
	}
	disp := dispatch.New(eng, base)

	takeSnapshot := func(ctx context.Context) (string, snapshot.Header, error) {
		return writeSnapshot(ctx, st, cfg.DataDir, cat.Digest, time.Now())
	}

	ctx, cancel := signalContext()
	defer cancel()

	mux := http.NewServeMux()
	api := httpapi.NewServer(disp, takeSnapshot, base)
	if *enableAdmin {
		api.Register(mux)
	} else {
		api.RegisterPublic(mux)
		logger.Info("admin endpoints disabled (-admin_http=false)")
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(disp, base).Handler())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.WithFields(logrus.Fields{"addr": cfg.Addr, "store": cfg.Store}).Info("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Fatal("ListenAndServe")
	}

	if *snapOnExit {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel2()
		path, h, err := takeSnapshot(ctx2)
		if err != nil {
			logger.WithError(err).Error("shutdown snapshot")
		} else {
			logger.WithFields(logrus.Fields{"path": path, "records": h.Records}).Info("shutdown snapshot written")
		}
	}
	logger.Info("stopped")
}

// loadTuning reads tuning.yaml, falling back to the defaults when the file
// does not exist.
func loadTuning(path string) (tuning.Tuning, error) {
	tune, err := tuning.Load(path)
	if err == nil {
		return tune, nil
	}
	if os.IsNotExist(err) {
		return tuning.Defaults(), nil
	}
	return tune, err
}

// loadCatalog prefers an explicit path, then <configs>/catalog.yaml, then
// the built-in variant named by tuning.
func loadCatalog(explicit, configDir, variant string) (*catalogs.Catalog, error) {
	if explicit != "" {
		return catalogs.Load(explicit)
	}
	p := filepath.Join(configDir, "catalog.yaml")
	if _, err := os.Stat(p); err == nil {
		return catalogs.Load(p)
	}
	return catalogs.ForVariant(variant)
}

func openStore(cfg config.Server) (store.Store, error) {
	if cfg.Store == config.StoreMemory {
		return store.NewMemory(), nil
	}
	return sqlitestore.Open(filepath.Join(cfg.DataDir, "chatwars.db"))
}

func writeSnapshot(ctx context.Context, st store.Store, dataDir, digest string, now time.Time) (string, snapshot.Header, error) {
	now = now.UTC()
	path := filepath.Join(dataDir, "snapshots", "snapshot-"+now.Format(snapshotTimeLayout)+".jsonl.zst")
	h, err := snapshot.Export(ctx, st, path, snapshot.Header{CreatedAt: now, CatalogDigest: digest})
	return path, h, err
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

func latestSnapshot(dataDir string) string {
	dir := filepath.Join(dataDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestAt time.Time
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, "snapshot-") || !strings.HasSuffix(name, ".jsonl.zst") {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, "snapshot-"), ".jsonl.zst")
		at, err := time.Parse(snapshotTimeLayout, stamp)
		if err != nil {
			continue
		}
		if best == "" || at.After(bestAt) {
			bestAt = at
			best = filepath.Join(dir, name)
		}
	}
	return best
}
