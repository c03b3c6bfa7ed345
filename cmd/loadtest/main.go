package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/okian/raidep/internal/loadtest"
)

// Default configuration constants.
const (
	defaultReports      = 200
	defaultTopN         = 50
	defaultWorkers      = 2 // multiplier for runtime.NumCPU()
	defaultTimeout      = 30 * time.Second
	defaultPollInterval = 500 * time.Millisecond
	defaultTestTimeout  = 10 * time.Minute
	defaultPlayers      = "Jaina,Thrall,Varian"
	defaultSpells       = "17628,17627,17626,17539,26276"
	defaultCasts        = "17531,22756"
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the service")
		reports   = flag.Int("reports", defaultReports, "Number of logs to generate and submit")
		players   = flag.String("players", defaultPlayers, "Comma-separated roster names")
		spells    = flag.String("spells", defaultSpells, "Comma-separated aura spell ids")
		casts     = flag.String("casts", defaultCasts, "Comma-separated cast spell ids")
		topN      = flag.Int("top", defaultTopN, "Number of standings entries to fetch")
		workers   = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		poll      = flag.Duration("poll", defaultPollInterval, "Report status poll interval")
		hardMode  = flag.Bool("hard-mode", false, "Submit reports in hard mode")
		static    = flag.Int("static", 0, "Static the reports belong to")
		outputDir = flag.String("output", "", "Directory to save generated logs to")
		logFile   = flag.String("log", "", "Log file for test output (default: loadtest_TIMESTAMP.log)")
		verbose   = flag.Bool("verbose", false, "Enable debug logging")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		loadtest.ShowHelp()
		return
	}

	spellIDs, err := parseIDs(*spells)
	if err != nil {
		fail("invalid -spells", err)
	}
	castIDs, err := parseIDs(*casts)
	if err != nil {
		fail("invalid -casts", err)
	}

	if err := loadtest.SetupLogging(*logFile, *verbose); err != nil {
		fail("failed to setup logging", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	config := &loadtest.Config{
		BaseURL:      strings.TrimRight(*baseURL, "/"),
		NumReports:   *reports,
		Players:      splitList(*players),
		Spells:       spellIDs,
		CastSpells:   castIDs,
		TopN:         *topN,
		Workers:      *workers,
		Timeout:      *timeout,
		PollInterval: *poll,
		HardMode:     *hardMode,
		Static:       *static,
		OutputDir:    *outputDir,
	}

	if _, err := loadtest.Run(ctx, config); err != nil {
		cancel()
		fail("load test failed", err)
	}
}

func fail(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseIDs(s string) ([]int, error) {
	parts := splitList(s)
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("spell id %q: %w", p, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
