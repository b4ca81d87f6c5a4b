package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"mycraft.gg/internal/config"
	"mycraft.gg/internal/httpapi"
	"mycraft.gg/internal/persistence/journal"
	"mycraft.gg/internal/persistence/worlddb"
	"mycraft.gg/internal/transport/ws"
	"mycraft.gg/internal/world"
)

func main() {
	var (
		addr       = flag.String("addr", "", "http listen address (overrides config)")
		configPath = flag.String("config", "", "path to server.yaml (optional)")
		dataDir    = flag.String("data", "", "runtime data directory (overrides config)")
		dbPath     = flag.String("db", "", "sqlite database path (overrides config)")
		noJournal  = flag.Bool("disable_journal", false, "disable the change journal")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
		cfg.DBPath = ""
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *noJournal {
		cfg.Journal = false
	}
	cfg.Normalize()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	store, err := worlddb.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Fatalf("open world db: %v", err)
	}
	defer store.Close()

	svc := world.NewService(store, logger)

	if cfg.Journal {
		jw := journal.NewWriter(cfg.JournalDir())
		defer jw.Close()
		svc.SetJournal(jw)
	}

	feed := world.NewFeed(cfg.FeedBuffer)
	svc.SetFeed(feed)

	ctx, cancel := signalContext()
	defer cancel()

	api := httpapi.NewServer(svc, logger, httpapi.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Feed:           ws.NewServer(svc, feed, logger).Handler(),
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("db=%s journal=%v", filepath.Clean(cfg.DBPath), cfg.Journal)
	logger.Printf("listening on %s", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
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
