package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/pflag"

	"github.com/jask/cloudanchors/internal/api"
	"github.com/jask/cloudanchors/internal/config"
	"github.com/jask/cloudanchors/internal/database"
	"github.com/jask/cloudanchors/internal/database/repository"
	"github.com/jask/cloudanchors/internal/shortcode"
)

// shortcoded serves the sqlite short-code store so several devices can share
// codes.
func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(argv []string) error {
	flags := pflag.NewFlagSet("shortcoded", pflag.ExitOnError)
	addr := flags.String("addr", "", "listen address (default server.addr)")
	dbPath := flags.String("db", "", "sqlite database path (default database.path)")
	_ = flags.Parse(argv)

	cfg, err := config.Load(nil)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := database.RunMigrations(cfg.Database.Path); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()
	if err := database.SeedDefaults(ctx, db, shortcode.Code(cfg.Store.InitialCode)); err != nil {
		return fmt.Errorf("seed defaults: %w", err)
	}

	codes := repository.NewShortCodeRepo(db, shortcode.Code(cfg.Store.MaxCode))
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewRouter(api.NewServer(codes, logger)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("short-code server running", "addr", cfg.Server.Addr, "db", cfg.Database.Path)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
