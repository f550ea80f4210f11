package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/jask/cloudanchors/internal/anchor"
	"github.com/jask/cloudanchors/internal/api"
	"github.com/jask/cloudanchors/internal/config"
	"github.com/jask/cloudanchors/internal/database"
	"github.com/jask/cloudanchors/internal/database/repository"
	"github.com/jask/cloudanchors/internal/prefs"
	"github.com/jask/cloudanchors/internal/provider"
	"github.com/jask/cloudanchors/internal/secrets"
	"github.com/jask/cloudanchors/internal/service"
	"github.com/jask/cloudanchors/internal/shortcode"
	"github.com/jask/cloudanchors/internal/testdata"
	"github.com/jask/cloudanchors/internal/tui"
)

const usage = `usage: cloudanchors [flags] [tui | host | resolve CODE | init | reset]`

var errUsage = errors.New(usage)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		log.Fatal(err)
	}
}

// run returns instead of exiting so deferred cleanup (log file, db,
// provider) always happens.
func run(argv []string) error {
	flags := pflag.NewFlagSet("cloudanchors", pflag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprintln(os.Stderr, usage)
		flags.PrintDefaults()
	}
	config.RegisterFlags(flags)
	seed := flags.Int("seed", 0, "host this many sample anchors before starting")
	hostX := flags.Float64("x", 0, "host: floor position across, in metres")
	hostZ := flags.Float64("z", -1, "host: floor position ahead (negative), in metres")
	wait := flags.Duration("timeout", 30*time.Second, "host/resolve: give up after this long")
	apiKey := flags.String("api-key", "", "init: store this anchor service key in the secrets file")
	_ = flags.Parse(argv)

	cmd := "tui"
	args := flags.Args()
	if len(args) > 0 {
		cmd = args[0]
	}
	switch cmd {
	case "tui", "host", "resolve", "init", "reset":
	default:
		return errUsage
	}

	cfg, err := config.Load(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	keys, err := secrets.DefaultStore()
	if err != nil {
		log.Printf("warn: secrets store unavailable: %v", err)
	}

	if cmd == "init" {
		path, err := config.Save(cfg)
		if err != nil {
			return fmt.Errorf("init: %w", err)
		}
		fmt.Println("wrote", path)
		if *apiKey != "" && keys != nil {
			if err := keys.Put(secrets.ProviderKeyName, *apiKey); err != nil {
				return fmt.Errorf("store api key: %w", err)
			}
			fmt.Println("stored anchor service key")
		}
		return nil
	}

	logger, closeLog, err := newLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("log: %w", err)
	}
	defer closeLog()

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

	initial := shortcode.Code(cfg.Store.InitialCode)
	if err := database.SeedDefaults(ctx, db, initial); err != nil {
		return fmt.Errorf("seed defaults: %w", err)
	}

	// repositories
	anchorRepo := repository.NewCloudAnchorRepo(db)
	codeRepo := repository.NewShortCodeRepo(db, shortcode.Code(cfg.Store.MaxCode))

	maintenance := &service.MaintenanceService{DB: db, InitialCode: initial}
	if cmd == "reset" {
		n, err := anchorRepo.Count(ctx)
		if err != nil {
			return fmt.Errorf("reset: %w", err)
		}
		if err := maintenance.Reset(ctx); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
		if err := prefs.SaveRecentCodes(nil); err != nil {
			logger.Warn("clear recent codes", "err", err)
		}
		fmt.Printf("wiped %d stored anchors and their short codes\n", n)
		return nil
	}

	store := shortCodeStore(cfg, codeRepo)
	logger.Info("starting", "command", cmd, "store", cfg.Store.Backend, "db", cfg.Database.Path)

	if *seed > 0 {
		if err := seedSamples(ctx, cfg, testdata.Repos{Anchors: anchorRepo, Codes: codeRepo}, *seed); err != nil {
			return err
		}
	}

	prov := provider.NewService(ctx, anchorRepo, provider.Config{
		APIKey:         secrets.ResolveAPIKey(keys, cfg.Provider.APIKeyEnv, cfg.Provider.APIKey),
		HostLatency:    cfg.Provider.HostLatency,
		ResolveLatency: cfg.Provider.ResolveLatency,
		FailureRate:    cfg.Provider.FailureRate,
		Logger:         logger,
	})
	defer prov.Wait()

	var notify anchor.NotifierFunc
	lc := anchor.New(store,
		anchor.WithNotifier(anchor.NotifierFunc(func(e anchor.Event) { notify(e) })),
		anchor.WithLogger(logger),
		anchor.WithMaxAllocationAttempts(cfg.Lifecycle.MaxAllocationAttempts),
		anchor.WithStoreTimeout(cfg.Store.Timeout),
	)
	anchors := &service.AnchorService{Store: store, Provider: prov, Lifecycle: lc}

	switch cmd {
	case "tui":
		services := tui.Services{Anchors: anchors, Maintenance: maintenance}
		if cfg.Store.Backend == "sqlite" {
			services.History = codeRepo
		}
		app := tui.New(ctx, cfg, services, logger)
		notify = app.Notify
		p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("tui: %w", err)
		}
	case "host":
		hit := provider.HitResult{Plane: provider.PlaneHorizontalUpward, Pose: provider.Translation(*hostX, 0, *hostZ)}
		err = headless(ctx, lc, cfg.UI.FrameInterval, *wait, &notify, func(*anchor.Lifecycle) error {
			_, err := anchors.Host(hit)
			return err
		})
		if err != nil {
			return fmt.Errorf("host: %w", err)
		}
		code, _ := lc.HostedCode()
		if _, err := prefs.RememberCode(code); err != nil {
			logger.Warn("remember code", "err", err)
		}
		fmt.Printf("%d %s\n", code, lc.Handle().CloudID())
	case "resolve":
		if len(args) < 2 {
			return fmt.Errorf("resolve: short code required: %w", errUsage)
		}
		lookupCtx, cancel := context.WithTimeout(ctx, cfg.Store.Timeout)
		id, err := anchors.Lookup(lookupCtx, args[1])
		cancel()
		if err != nil {
			return fmt.Errorf("resolve: %w", err)
		}
		err = headless(ctx, lc, cfg.UI.FrameInterval, *wait, &notify, func(*anchor.Lifecycle) error {
			_, err := anchors.Resolve(id)
			return err
		})
		if err != nil {
			return fmt.Errorf("resolve: %w", err)
		}
		fmt.Println(id)
	}
	return nil
}

// headless runs the lifecycle loop until the operation started by start
// lands in Hosted/Resolved or fails for good. Progress goes to stderr.
func headless(ctx context.Context, lc *anchor.Lifecycle, interval, timeout time.Duration, notify *anchor.NotifierFunc, start func(*anchor.Lifecycle) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := make(chan error, 1)
	finish := func(err error) {
		select {
		case result <- err:
		default:
		}
	}
	*notify = func(e anchor.Event) {
		if msg := e.Message(); msg != "" {
			fmt.Fprintln(os.Stderr, msg)
		}
		switch e.Kind {
		case anchor.HostingSucceeded, anchor.ResolvingSucceeded:
			finish(nil)
		case anchor.ResolvingFailed:
			finish(e.Err)
		case anchor.HostingFailed:
			// store failures are retried while the lifecycle stays in hosting
			if lc.State() == anchor.StateNone {
				finish(e.Err)
			}
		}
	}

	commands := make(chan func(*anchor.Lifecycle), 1)
	commands <- func(l *anchor.Lifecycle) {
		if err := start(l); err != nil {
			finish(err)
		}
	}

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = anchor.Run(ctx, lc, interval, commands)
	}()

	var err error
	select {
	case err = <-result:
	case <-ctx.Done():
		err = fmt.Errorf("gave up waiting: %w", ctx.Err())
	}
	cancel()
	<-loopDone
	return err
}

func shortCodeStore(cfg config.Config, repo *repository.ShortCodeRepo) shortcode.Store {
	switch cfg.Store.Backend {
	case "http":
		return api.NewClient(cfg.Store.URL, cfg.Store.Timeout)
	case "memory":
		return shortcode.NewMemoryStore(shortcode.Code(cfg.Store.InitialCode), shortcode.Code(cfg.Store.MaxCode))
	default:
		return repo
	}
}

func seedSamples(ctx context.Context, cfg config.Config, repos testdata.Repos, n int) error {
	if cfg.Store.Backend != "sqlite" {
		log.Printf("warn: --seed only works with the sqlite store, skipping")
		return nil
	}
	samples, err := testdata.Seed(ctx, repos, n)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	for _, s := range samples {
		_, _ = prefs.RememberCode(s.Code)
		fmt.Fprintf(os.Stderr, "seeded %d -> %s\n", s.Code, s.AnchorID)
	}
	return nil
}

// newLogger writes structured logs to a file; the terminal belongs to the UI.
func newLogger(cfg config.LogConfig) (*slog.Logger, func(), error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(cfg.Level))); err != nil {
		level = slog.LevelInfo
	}
	if cfg.Path == "" {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("mkdir log dir: %w", err)
	}
	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})), func() { _ = f.Close() }, nil
}
