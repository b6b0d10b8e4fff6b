// Package main is the PawTrack command: the terminal UI plus a few headless
// maintenance commands sharing the same task runner and store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/immutable"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/pawtrack/pawtrack/account"
	"github.com/pawtrack/pawtrack/appointments"
	"github.com/pawtrack/pawtrack/database"
	"github.com/pawtrack/pawtrack/donations"
	"github.com/pawtrack/pawtrack/failure"
	"github.com/pawtrack/pawtrack/memstore"
	"github.com/pawtrack/pawtrack/pets"
	"github.com/pawtrack/pawtrack/prefs"
	"github.com/pawtrack/pawtrack/task"
	"github.com/pawtrack/pawtrack/tui"
)

// Config holds application configuration.
type Config struct {
	// Store Configuration
	Store  string // "sqlite" uses --driver and --dsn; "memory" keeps nothing
	Driver string
	DSN    string

	// Accounts
	PasswordMode string

	// UI
	PrefsPath string

	// Tasks
	TaskTimeout   time.Duration
	SlowThreshold time.Duration
	MetricsAddr   string

	// Logging
	LogLevel string
	LogFile  string

	// Command-specific flags
	Quiet    bool
	NoColor  bool
	Username string
	Password string
	FullName string
	Email    string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	db := database.DefaultConfig()
	return Config{
		Store:         "sqlite",
		Driver:        db.Driver,
		DSN:           db.DSN,
		PasswordMode:  string(account.ModeLegacy),
		PrefsPath:     "pawtrack-prefs.db",
		SlowThreshold: 2 * time.Second,
		LogLevel:      "info",
	}
}

// dsnEnv overrides --dsn when set.
const dsnEnv = "PAWTRACK_DSN"

var (
	// Global logger
	log = logrus.New()

	uiCmd         = flag.NewFlagSet("ui", flag.ExitOnError)
	listPetsCmd   = flag.NewFlagSet("list-pets", flag.ExitOnError)
	addAccountCmd = flag.NewFlagSet("add-account", flag.ExitOnError)
	migrateCmd    = flag.NewFlagSet("migrate", flag.ExitOnError)
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	config := DefaultConfig()

	switch os.Args[1] {
	case "ui":
		parseUIFlags(&config, uiCmd, os.Args[2:])
		if err := runUI(config); err != nil {
			log.WithError(err).Fatal("ui failed")
		}
	case "list-pets":
		parseListPetsFlags(&config, listPetsCmd, os.Args[2:])
		if err := runListPets(config, os.Stdout); err != nil {
			log.WithError(err).Fatal("failed to list pets")
		}
	case "add-account":
		parseAddAccountFlags(&config, addAccountCmd, os.Args[2:])
		if err := runAddAccount(config, os.Stdout); err != nil {
			log.WithError(err).Fatal("failed to add account")
		}
	case "migrate":
		parseMigrateFlags(&config, migrateCmd, os.Args[2:])
		if err := runMigrate(config, os.Stdout); err != nil {
			log.WithError(err).Fatal("migration failed")
		}
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("PawTrack pet adoption records")
	fmt.Println()
	fmt.Println("Usage: pawtrack <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  ui             Run the terminal interface")
	fmt.Println("  list-pets      Print the pet gallery")
	fmt.Println("  add-account    Create a staff account")
	fmt.Println("  migrate        Apply pending schema migrations")
	fmt.Println()
	fmt.Printf("The %s environment variable overrides --dsn.\n", dsnEnv)
	fmt.Println("Run 'pawtrack <command> --help' for more information on a command.")
}

// addStoreFlags registers the flags every command shares.
func addStoreFlags(cfg *Config, fs *flag.FlagSet) {
	fs.StringVar(&cfg.Store, "store", cfg.Store, "Store backend (sqlite, memory)")
	fs.StringVar(&cfg.Driver, "driver", cfg.Driver, "SQL driver (sqlite, mysql, postgres)")
	fs.StringVar(&cfg.DSN, "dsn", cfg.DSN, "Data source name; a file path for sqlite")
	fs.StringVar(&cfg.PasswordMode, "password-mode", cfg.PasswordMode, "Password storage (legacy, bcrypt)")
	fs.DurationVar(&cfg.TaskTimeout, "task-timeout", cfg.TaskTimeout, "Timeout for background operations (0 = none)")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Serve prometheus metrics on this address")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Write logs to this file")
}

func parseArgs(cfg *Config, fs *flag.FlagSet, args []string) {
	fs.Parse(args)
	if v := os.Getenv(dsnEnv); v != "" {
		cfg.DSN = v
	}
}

// parseUIFlags parses flags for the ui command.
func parseUIFlags(cfg *Config, fs *flag.FlagSet, args []string) {
	addStoreFlags(cfg, fs)
	fs.StringVar(&cfg.PrefsPath, "prefs", cfg.PrefsPath, "Preferences file (empty disables)")
	parseArgs(cfg, fs, args)
}

// parseListPetsFlags parses flags for the list-pets command.
func parseListPetsFlags(cfg *Config, fs *flag.FlagSet, args []string) {
	addStoreFlags(cfg, fs)
	fs.BoolVar(&cfg.Quiet, "quiet", false, "Print only the table")
	fs.BoolVar(&cfg.NoColor, "no-color", false, "Disable colors")
	parseArgs(cfg, fs, args)
}

// parseAddAccountFlags parses flags for the add-account command.
func parseAddAccountFlags(cfg *Config, fs *flag.FlagSet, args []string) {
	addStoreFlags(cfg, fs)
	fs.StringVar(&cfg.Username, "username", "", "Username (required)")
	fs.StringVar(&cfg.Password, "password", "", "Password (required)")
	fs.StringVar(&cfg.FullName, "full-name", "", "Full name")
	fs.StringVar(&cfg.Email, "email", "", "Email address")
	fs.BoolVar(&cfg.NoColor, "no-color", false, "Disable colors")
	parseArgs(cfg, fs, args)
}

// parseMigrateFlags parses flags for the migrate command.
func parseMigrateFlags(cfg *Config, fs *flag.FlagSet, args []string) {
	addStoreFlags(cfg, fs)
	fs.BoolVar(&cfg.Quiet, "quiet", false, "Suppress output")
	parseArgs(cfg, fs, args)
}

// setupLogger configures the global logger.
func setupLogger(level, file string, fallback io.Writer) error {
	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
	})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	log.SetLevel(lvl)

	if file == "" {
		log.SetOutput(fallback)
		return nil
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	log.SetOutput(f)
	return nil
}

// repository is everything the services need from a store. Both the SQL
// database and the in-memory store satisfy it.
type repository interface {
	account.Store
	pets.Store
	appointments.Store
	donations.Store
}

// openStore opens the configured backend and returns it with its closer.
func openStore(ctx context.Context, cfg Config) (repository, func(), error) {
	switch cfg.Store {
	case "memory":
		s, err := memstore.New()
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	case "sqlite", "sql", "":
		dbCfg := database.DefaultConfig()
		dbCfg.Driver = cfg.Driver
		dbCfg.DSN = cfg.DSN
		dbCfg.Logger = log
		db, err := database.New(ctx, dbCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		return db, func() { db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// Dependencies holds the services shared by all commands.
type Dependencies struct {
	Accounts     *account.Service
	Pets         *pets.Service
	Appointments *appointments.Service
	Donations    *donations.Service
	Metrics      *task.Metrics
	Target       string

	closers []func()
}

// Close releases the store and the metrics listener.
func (d *Dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func initializeDependencies(ctx context.Context, cfg Config) (*Dependencies, error) {
	mode, err := account.ParsePasswordMode(cfg.PasswordMode)
	if err != nil {
		return nil, err
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	deps := &Dependencies{closers: []func(){closeStore}}

	deps.Target = "memory"
	if db, ok := store.(*database.DB); ok {
		deps.Target = db.Driver() + " " + db.Target()
	}

	acctCfg := account.DefaultConfig()
	acctCfg.Mode = mode
	deps.Accounts = account.NewService(store, acctCfg, log)
	deps.Pets = pets.NewService(store, log)
	deps.Appointments = appointments.NewService(store, log)
	deps.Donations = donations.NewService(store, log)

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		deps.Metrics = task.NewMetrics(reg)
		deps.closers = append(deps.closers, serveMetrics(cfg.MetricsAddr, reg))
	}
	return deps, nil
}

// serveMetrics exposes reg on addr/metrics and returns a shutdown func.
func serveMetrics(addr string, reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		log.WithField("addr", addr).Info("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server failed")
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

// headless runs tasks for commands that have no terminal UI: a task.Loop
// plays the UI thread.
type headless struct {
	loop   *task.Loop
	runner *task.Runner
	stop   context.CancelFunc
}

func newHeadless(ctx context.Context, cfg Config, metrics *task.Metrics) *headless {
	ctx, stop := context.WithCancel(ctx)
	loop := task.NewLoop()
	go loop.Run(ctx)
	return &headless{
		loop: loop,
		runner: task.NewRunner(task.Config{
			Dispatcher:     loop,
			Logger:         log,
			Metrics:        metrics,
			DefaultTimeout: cfg.TaskTimeout,
			SlowThreshold:  cfg.SlowThreshold,
		}),
		stop: stop,
	}
}

func (h *headless) Close() {
	h.loop.Close()
	h.stop()
}

// run submits op and waits for its delivery on the loop.
func run[T any](ctx context.Context, h *headless, name string, op func(context.Context) (T, error)) (T, error) {
	var res task.Result[T]
	t, _ := task.Submit(h.runner, task.Spec[T]{
		Name: name,
		Op:   op,
		Done: func(r task.Result[T]) { res = r },
	})
	select {
	case <-t.Delivered():
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
	if !res.OK() {
		return res.Value, res.Err
	}
	return res.Value, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runListPets(cfg Config, w io.Writer) error {
	if err := setupLogger(cfg.LogLevel, cfg.LogFile, os.Stderr); err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	deps, err := initializeDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	h := newHeadless(ctx, cfg, deps.Metrics)
	defer h.Close()

	printer := tui.NewCLIPrinter(cfg.Quiet, cfg.NoColor)
	printer.SetWriter(w)
	printer.PrintHeader("gallery", deps.Target)
	printer.PrintStart("Loading pets")

	type gallery struct {
		list   *immutable.List[pets.Summary]
		counts map[pets.Status]int
	}
	g, err := run(ctx, h, "gallery", func(ctx context.Context) (gallery, error) {
		list, err := deps.Pets.Gallery(ctx)
		if err != nil {
			return gallery{}, err
		}
		counts, err := deps.Pets.Counts(ctx)
		return gallery{list: list, counts: counts}, err
	})
	if err != nil {
		printer.PrintError(failure.UserMessage(err))
		printer.PrintSummary(false, "listing")
		return err
	}
	printer.PrintPets(g.list, g.counts)
	printer.PrintSummary(true, "listing")
	return nil
}

func runAddAccount(cfg Config, w io.Writer) error {
	if err := setupLogger(cfg.LogLevel, cfg.LogFile, os.Stderr); err != nil {
		return err
	}
	if cfg.Username == "" || cfg.Password == "" {
		return errors.New("--username and --password are required")
	}
	ctx, cancel := signalContext()
	defer cancel()

	deps, err := initializeDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	h := newHeadless(ctx, cfg, deps.Metrics)
	defer h.Close()

	printer := tui.NewCLIPrinter(false, cfg.NoColor)
	printer.SetWriter(w)

	printer.PrintStart("Creating account " + cfg.Username)
	acc, err := run(ctx, h, "register", func(ctx context.Context) (*database.Account, error) {
		return deps.Accounts.Register(ctx, account.Registration{
			Username: cfg.Username,
			Password: cfg.Password,
			Confirm:  cfg.Password,
			FullName: cfg.FullName,
			Email:    cfg.Email,
		})
	})
	if err != nil {
		printer.PrintError(failure.UserMessage(err))
		return err
	}
	printer.PrintAccount(acc, string(deps.Accounts.Mode()))
	return nil
}

func runMigrate(cfg Config, w io.Writer) error {
	if err := setupLogger(cfg.LogLevel, cfg.LogFile, os.Stderr); err != nil {
		return err
	}
	if cfg.Store == "memory" {
		return errors.New("the memory store has no schema to migrate")
	}
	ctx, cancel := signalContext()
	defer cancel()

	dbCfg := database.DefaultConfig()
	dbCfg.Driver = cfg.Driver
	dbCfg.DSN = cfg.DSN
	dbCfg.Logger = log

	h := newHeadless(ctx, cfg, nil)
	defer h.Close()

	printer := tui.NewCLIPrinter(cfg.Quiet, false)
	printer.SetWriter(w)

	type migrated struct {
		target  string
		version int
	}
	printer.PrintStart("Applying migrations")
	m, err := run(ctx, h, "migrate", func(ctx context.Context) (migrated, error) {
		db, err := database.Open(ctx, dbCfg)
		if err != nil {
			return migrated{}, err
		}
		defer db.Close()
		res := migrated{target: db.Driver() + " " + db.Target()}
		if err := db.ApplyMigrations(ctx); err != nil {
			return res, err
		}
		res.version, err = db.SchemaVersion(ctx)
		return res, err
	})
	if err != nil {
		printer.PrintError(failure.UserMessage(err))
		return err
	}
	printer.PrintHeader("migrate", m.target)
	printer.PrintSummary(true, fmt.Sprintf("schema at version %d", m.version))
	return nil
}

func runUI(cfg Config) error {
	// Logs would corrupt the terminal, so they go to the log file or nowhere.
	if err := setupLogger(cfg.LogLevel, cfg.LogFile, io.Discard); err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	deps, err := initializeDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	appCfg := tui.Config{
		Accounts:      deps.Accounts,
		Pets:          deps.Pets,
		Appointments:  deps.Appointments,
		Donations:     deps.Donations,
		Logger:        log,
		Metrics:       deps.Metrics,
		TaskTimeout:   cfg.TaskTimeout,
		SlowThreshold: cfg.SlowThreshold,
	}
	if cfg.PrefsPath != "" {
		p, err := prefs.Open(cfg.PrefsPath)
		if err != nil {
			log.WithError(err).Warn("preferences unavailable")
		} else {
			defer p.Close()
			appCfg.Prefs = p
		}
	}

	app := tui.NewApp(appCfg)
	program := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = program.Run()
	app.Dispatcher().Close()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("failed to run ui: %w", err)
	}
	return nil
}
