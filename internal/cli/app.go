// Package cli holds the flag handling and wiring shared by the sync commands.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/thesavant42/dragos-portal/internal/api"
	"github.com/thesavant42/dragos-portal/internal/config"
	"github.com/thesavant42/dragos-portal/internal/db"
	"github.com/thesavant42/dragos-portal/internal/metrics"
	"github.com/thesavant42/dragos-portal/internal/portalsync"
	"github.com/thesavant42/dragos-portal/internal/ratelimit"
	"github.com/thesavant42/dragos-portal/internal/ui"
)

const (
	defaultConfigPath = "dragos.cfg"
	defaultDBPath     = "dragos.sqlite3"
)

// App describes one sync command
type App struct {
	Name           string
	IncludeReports bool
	DefaultSaveDir string
}

// Flags are the parsed command-line options
type Flags struct {
	ConfigPath  string
	Reset       bool
	SaveDir     string
	Debug       bool
	DBPath      string
	MetricsFile string
	Quiet       bool
}

// ParseFlags parses args (without the program name)
func (a App) ParseFlags(args []string) (*Flags, error) {
	fs := flag.NewFlagSet(a.Name, flag.ContinueOnError)
	f := &Flags{}

	fs.StringVar(&f.ConfigPath, "api-config", defaultConfigPath, "config file with Dragos API credentials and options")
	fs.StringVar(&f.ConfigPath, "c", defaultConfigPath, "shorthand for -api-config")
	fs.BoolVar(&f.Reset, "reset", false, "truncate cached indicators and start over")
	fs.BoolVar(&f.Reset, "r", false, "shorthand for -reset")
	saveHelp := "path to directory to save json outputs"
	if a.IncludeReports {
		saveHelp = "path to directory to save outputs (indicator json and report documents)"
	}
	fs.StringVar(&f.SaveDir, "save-dir", a.DefaultSaveDir, saveHelp)
	fs.StringVar(&f.SaveDir, "s", a.DefaultSaveDir, "shorthand for -save-dir")
	fs.BoolVar(&f.Debug, "debug", false, "print debugging information")
	fs.BoolVar(&f.Debug, "d", false, "shorthand for -debug")
	fs.StringVar(&f.DBPath, "db", defaultDBPath, "path to the SQLite cache")
	fs.StringVar(&f.MetricsFile, "metrics-file", "", "write Prometheus metrics to this textfile after the run")
	fs.BoolVar(&f.Quiet, "quiet", false, "suppress progress and summary output")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return f, nil
}

// NewLogger creates the stderr logger for a command
func NewLogger(w io.Writer, debug bool) *log.Logger {
	level := log.WarnLevel
	if debug {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          "dragos",
	})
}

// Main runs the command and returns the process exit code
func (a App) Main(args []string) int {
	flags, err := a.ParseFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		ui.PrintError(err.Error())
		return 1
	}
	debug := flags.Debug || cfg.Debug
	logger := NewLogger(os.Stderr, debug)

	m := metrics.New()
	if flags.MetricsFile != "" {
		defer func() {
			if err := m.WriteTextfile(flags.MetricsFile); err != nil {
				logger.Error("Failed to write metrics", "path", flags.MetricsFile, "error", err)
			}
		}()
	}

	client, err := api.New(cfg, api.WithLogger(logger.WithPrefix("api")), api.WithMetrics(m))
	if err != nil {
		ui.PrintError(err.Error())
		return 1
	}

	logger.Debug("Initializing SQLite database", "path", flags.DBPath)
	database, err := db.New(flags.DBPath)
	if err != nil {
		ui.PrintError(fmt.Sprintf("Failed to initialize database: %v", err))
		return 1
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := portalsync.Options{
		Reset:          flags.Reset,
		IncludeReports: a.IncludeReports,
		SaveDir:        flags.SaveDir,
	}
	if !flags.Quiet {
		opts.OnPage = ui.PrintProgress
	}

	runner := portalsync.NewRunner(client, database, logger, m)
	result, err := runner.Run(ctx, opts)
	if err != nil {
		if errors.Is(err, ratelimit.ErrRateLimitExceeded) {
			ui.PrintWarning(fmt.Sprintf("%v; try again once the quota window resets", err))
			return 1
		}
		ui.PrintError(err.Error())
		return 1
	}

	if !flags.Quiet {
		ui.PrintSummary(result, a.IncludeReports)
	}
	return 0
}
