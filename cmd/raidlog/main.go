// Command raidlog scores one combat log and prints name,points lines.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	app "github.com/okian/raidep/internal/app"
	"github.com/okian/raidep/internal/config"
	"github.com/okian/raidep/internal/domain/logparse"
	"github.com/okian/raidep/pkg/logger"
)

type options struct {
	logPath    string
	configPath string
	hardMode   bool
	static     int
	year       int
}

func main() {
	var opts options
	flag.StringVar(&opts.logPath, "log", "", "Path to the combat log (required)")
	flag.StringVar(&opts.configPath, "config", os.Getenv(config.EnvConfigFile), "Path to a YAML configuration file")
	flag.BoolVar(&opts.hardMode, "hard-mode", false, "Score set consumables by usage")
	flag.IntVar(&opts.static, "static", 0, "Static the report belongs to")
	flag.IntVar(&opts.year, "year", 0, "Year of the log timestamps (default: log_year from config)")
	flag.Parse()

	if opts.logPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := logger.Init(logger.WithWriter(os.Stderr)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout); err != nil {
		logger.Get().Error(ctx, "raidlog failed", logger.Error(err))
		os.Exit(1)
	}
}

// run ingests the log against an in-memory store and writes the export to out.
// Warnings go to the log.
func run(ctx context.Context, opts options, out io.Writer) error {
	cfg, err := config.LoadFile(ctx, opts.configPath)
	if err != nil {
		return err
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		_ = logger.SetLevelString("info")
	}
	log := logger.Get().Named("raidlog")

	catalog, err := config.Catalog(cfg)
	if err != nil {
		return fmt.Errorf("build catalog: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	year := cfg.LogYear
	if opts.year != 0 {
		year = opts.year
	}

	payload, err := os.ReadFile(opts.logPath)
	if err != nil {
		return fmt.Errorf("read log: %w", err)
	}

	svc := app.New(
		app.WithLogger(log),
		app.WithCatalog(catalog),
		app.WithParser(logparse.New(logparse.WithYear(year), logparse.WithLocation(loc))),
		app.WithWorkerCount(1),
	)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	rep, _, err := svc.Import(ctx, payload, app.SubmitOptions{Static: opts.static, HardMode: opts.hardMode})
	if err != nil {
		return err
	}
	view, err := svc.Report(ctx, rep.ID)
	if err != nil {
		return err
	}

	log.Info(ctx, "report scored",
		logger.String("raid", rep.RaidName),
		logger.Time("day", rep.RaidDay),
		logger.Int("runs", len(view.Runs)),
		logger.Int("players", len(view.Result.Totals)),
		logger.Int("lines", rep.LinesRead),
		logger.Int("skipped", rep.LinesSkipped),
	)
	for _, w := range view.Result.Warnings {
		log.Warn(ctx, w.Text, logger.Int64("player_id", w.PlayerID))
	}

	export, err := svc.Export(ctx, rep.ID)
	if err != nil {
		return err
	}
	if export != "" {
		_, err = fmt.Fprintln(out, export)
	}
	return err
}
