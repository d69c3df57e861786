package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"taskspace/internal/api"
	"taskspace/internal/config"
	"taskspace/internal/executor"
	"taskspace/internal/handlers/cleanup"
	"taskspace/internal/handlers/httpcheck"
	"taskspace/internal/handlers/report"
	"taskspace/internal/handlers/shell"
	"taskspace/internal/history"
	"taskspace/internal/worker"
)

func main() {
	var (
		cfgPath = flag.String("config", "", "YAML config path")
		addr    = flag.String("addr", "", "HTTP bind address (overrides config)")
		dbPath  = flag.String("db", "", "SQLite DB path (overrides config)")
		workers = flag.Int("workers", 0, "executor pool size (overrides config)")
	)
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		cfg, err = config.Load(*cfgPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *cfgPath).Msg("load config")
		}
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=journal_mode(WAL)", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("open db")
	}
	defer db.Close()
	db.SetMaxOpenConns(1) // SQLite single writer

	if err := history.EnsureSchema(db); err != nil {
		log.Fatal().Err(err).Msg("ensure schema")
	}
	store := history.NewStore(db)

	registry := executor.NewRegistry()
	registry.Register(&cleanup.Task{Store: store})
	registry.Register(&report.Task{Store: store})
	registry.Register(&httpcheck.Task{})
	registry.Register(shell.Task{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := worker.NewService(cfg, registry, store)
	if err := svc.Initialize(ctx); err != nil {
		log.Fatal().Err(err).Msg("initialize worker service")
	}
	if n := svc.RegisterJobs(cfg.Jobs); n > 0 {
		log.Info().Int("jobs", n).Msg("registered bootstrap jobs")
	}
	if err := svc.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("start worker service")
	}

	srv := &http.Server{Addr: cfg.Addr, Handler: api.NewServer(svc, store)}
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	// Graceful shutdown: server first, then the service in reverse order.
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	log.Info().Msg("shutting down")

	ctxTimeout, cancelTimeout := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelTimeout()
	_ = srv.Shutdown(ctxTimeout)
	svc.Stop()
}
