package loadtest

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/raidep/pkg/logger"
)

// SetupLogging routes the logger to stdout and a log file. If logFile is
// empty, a timestamped filename is generated.
func SetupLogging(logFile string, verbose bool) error {
	if logFile == "" {
		logFile = "loadtest_" + time.Now().Format("20060102_150405") + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	if err := logger.Init(logger.WithWriter(io.MultiWriter(os.Stdout, file))); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		if err := logger.SetLevelString("debug"); err != nil {
			return err
		}
	}
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the load test tool.
func ShowHelp() {
	os.Stdout.WriteString(`Raid Report Load Test
=====================

Generates Molten Core combat logs, submits them concurrently, flushes the
scored reports and checks the standings moved by the exported totals.
The service must know the players' class and role and the spell ids.

Usage:
  go run ./cmd/loadtest [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -reports int
        Number of logs to generate and submit (default 200)
  -players string
        Comma-separated roster names (default "Jaina,Thrall,Varian")
  -spells string
        Comma-separated aura spell ids (default "17628,17627,17626,17539,26276")
  -casts string
        Comma-separated cast spell ids (default "17531,22756")
  -top int
        Number of standings entries to fetch (default 50)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -poll duration
        Report status poll interval (default 500ms)
  -hard-mode
        Submit reports in hard mode
  -static int
        Static the reports belong to
  -output string
        Directory to save generated logs to (default: not saved)
  -log string
        Log file for test output (default: loadtest_TIMESTAMP.log)
  -verbose
        Enable debug logging
  -help
        Show this help message

Examples:
  # Run against a service started with configs/raidep.example.yaml
  RAIDEP_CONFIG=configs/raidep.example.yaml go run ./cmd &
  go run ./cmd/loadtest -reports 1000 -workers 16
`)
}
