package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/denius89/news-ai-bot-sub002/pkg/config"
	"github.com/denius89/news-ai-bot-sub002/pkg/scheduler"
	"github.com/denius89/news-ai-bot-sub002/server"
)

// Opts with all CLI options
type Opts struct {
	Config        string        `short:"c" long:"config" env:"CONFIG" description:"config file, defaults are used when empty"`
	Sources       string        `short:"s" long:"sources" env:"SOURCES" description:"source catalogue, overrides config"`
	Categories    []string      `long:"category" env:"CATEGORIES" env-delim:"," description:"process only these categories"`
	Subcategories []string      `long:"subcategory" env:"SUBCATEGORIES" env-delim:"," description:"process only these subcategories"`
	MinImportance *float64      `long:"min-importance" env:"MIN_IMPORTANCE" description:"minimal importance to save an item, overrides config"`
	MaxConcurrent int           `long:"max-concurrent" env:"MAX_CONCURRENT" description:"sources processed in parallel, overrides catalogue"`
	Enrich        bool          `long:"enrich" env:"ENRICH" description:"fetch article pages for items with short bodies"`
	Every         time.Duration `long:"every" env:"EVERY" description:"repeat the run with this interval until interrupted"`
	Listen        string        `short:"l" long:"listen" env:"LISTEN" description:"status server listen address, disabled when empty"`
	LogDir        string        `long:"log-dir" env:"LOG_DIR" description:"directory for source maintenance logs, overrides config"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(scheduler.ExitAborted)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(scheduler.ExitAborted)
	}

	setupLog(opts.Debug, opts.NoColor, cfg.LLM.APIKey)
	lgr.Printf("[INFO] starting newsbot version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		lgr.Print("[INFO] termination signal received")
		cancel()
	}()

	code, err := run(ctx, opts, cfg)
	cancel()
	if err != nil {
		lgr.Printf("[ERROR] %v", err)
	}
	lgr.Printf("[INFO] exit with code %d", code)
	os.Exit(code)
}

// loadConfig reads the config file if set and applies CLI overrides
func loadConfig(opts Opts) (*config.Config, error) {
	cfg := config.Default()
	if opts.Config != "" {
		loaded, err := config.Load(opts.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if opts.Sources != "" {
		cfg.Sources = opts.Sources
	}
	if opts.MinImportance != nil {
		if *opts.MinImportance < 0 || *opts.MinImportance > 1 {
			return nil, fmt.Errorf("min-importance must be between 0 and 1, got %v", *opts.MinImportance)
		}
		cfg.Scoring.MinImportance = *opts.MinImportance
	}
	if opts.LogDir != "" {
		cfg.LogDir = opts.LogDir
	}
	return cfg, nil
}

// run builds the pipeline and runs it once or periodically, returns the exit code of the last run
func run(ctx context.Context, opts Opts, cfg *config.Config) (int, error) {
	app, err := newApp(ctx, opts, cfg)
	if err != nil {
		return scheduler.ExitAborted, err
	}
	defer app.Close()

	if opts.Listen != "" {
		srv := server.New(server.Config{Listen: opts.Listen}, app.tracker, app, revision, opts.Debug)
		go func() {
			if err := srv.Run(ctx); err != nil {
				lgr.Printf("[WARN] status server: %v", err)
			}
		}()
	}

	code := app.runOnce(ctx)
	if opts.Every <= 0 {
		return code, nil
	}

	ticker := time.NewTicker(opts.Every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return scheduler.ExitAborted, nil
		case <-ticker.C:
			if err := app.reloadSources(); err != nil {
				lgr.Printf("[WARN] keep previous catalogue: %v", err)
			}
			code = app.runOnce(ctx)
			if ctx.Err() != nil {
				return code, nil
			}
		}
	}
}

func setupLog(dbg, noColor bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	if !noColor {
		colorizer := lgr.Mapper{
			ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
			WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
			InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
			DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
			CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
			TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
		}
		logOpts = append(logOpts, lgr.Map(colorizer))
	}

	var secrets []string
	for _, s := range secs {
		if s != "" {
			secrets = append(secrets, s)
		}
	}
	if len(secrets) > 0 {
		logOpts = append(logOpts, lgr.Secret(secrets...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
