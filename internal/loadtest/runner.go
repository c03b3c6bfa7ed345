package loadtest

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/raidep/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	logFilePermission   = 0600
)

// Run executes the complete load test and returns its statistics.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	stats := &Stats{StartTime: time.Now()}

	logger.Get().Info(ctx, "starting raid report load test",
		logger.String("baseURL", config.BaseURL),
		logger.Int("reports", config.NumReports),
		logger.Int("players", len(config.Players)),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout),
		logger.Int("topN", config.TopN),
		logger.Bool("hardMode", config.HardMode))

	if err := checkServiceHealth(ctx, config); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	before, err := retrieveRankings(ctx, config, config.Players)
	if err != nil {
		return stats, fmt.Errorf("baseline ranking retrieval failed: %w", err)
	}

	logs, err := generateLogs(ctx, config, stats)
	if err != nil {
		return stats, fmt.Errorf("log generation failed: %w", err)
	}

	ids, err := submitReports(ctx, config, logs, stats)
	if err != nil {
		return stats, fmt.Errorf("report submission failed: %w", err)
	}

	done, err := waitForReports(ctx, config, ids, stats)
	if err != nil {
		return stats, fmt.Errorf("waiting for reports failed: %w", err)
	}

	gained, err := flushReports(ctx, config, done, stats)
	if err != nil {
		return stats, fmt.Errorf("flushing reports failed: %w", err)
	}

	after, err := retrieveRankings(ctx, config, config.Players)
	if err != nil {
		return stats, fmt.Errorf("ranking retrieval failed: %w", err)
	}

	standings, err := getStandings(ctx, config, stats)
	if err != nil {
		return stats, fmt.Errorf("standings retrieval failed: %w", err)
	}

	if err := verifyResults(ctx, before, after, gained, standings, stats); err != nil {
		return stats, fmt.Errorf("result verification failed: %w", err)
	}

	if config.OutputDir != "" {
		if err := saveLogs(ctx, config.OutputDir, logs); err != nil {
			logger.Get().Warn(ctx, "failed to save logs", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	logger.Get().Info(ctx, "load test completed successfully")
	return stats, nil
}

func (c *Config) validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("base url must not be empty")
	case c.NumReports < 1:
		return fmt.Errorf("reports must be positive, got %d", c.NumReports)
	case len(c.Players) == 0:
		return fmt.Errorf("at least one player is required")
	case c.Workers < 1:
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	case c.TopN < 1:
		return fmt.Errorf("top must be positive, got %d", c.TopN)
	case c.PollInterval <= 0:
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	resp, err := client.Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if _, err := readResponseBody(resp); err != nil {
		return fmt.Errorf("failed to read health response: %w", err)
	}

	// The health route serves Prometheus metrics; any 200 is healthy.
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveLogs writes every generated log into dir.
func saveLogs(ctx context.Context, dir string, logs []Log) error {
	if err := os.MkdirAll(dir, directoryPermission); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	for _, l := range logs {
		if err := os.WriteFile(filepath.Join(dir, l.Name), l.Body, logFilePermission); err != nil {
			return fmt.Errorf("failed to write %s: %w", l.Name, err)
		}
	}
	logger.Get().Info(ctx, "logs saved", logger.String("dir", dir), logger.Int("count", len(logs)))
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var successRate, reportsPerSecond float64

	if stats.ReportsSubmitted > 0 {
		successRate = float64(stats.ReportsDone) / float64(stats.ReportsSubmitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		reportsPerSecond = float64(stats.ReportsDone) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("logsGenerated", stats.LogsGenerated),
		logger.Int("reportsSubmitted", stats.ReportsSubmitted),
		logger.Int("reportsAccepted", stats.ReportsAccepted),
		logger.Int("reportsDuplicate", stats.ReportsDuplicate),
		logger.Int("reportsFailed", stats.ReportsFailed),
		logger.Int("reportsDone", stats.ReportsDone),
		logger.Int("reportsFlushed", stats.ReportsFlushed),
		logger.Int("rankingsRetrieved", stats.RankingsRetrieved),
		logger.Int("standingsEntries", stats.StandingsEntries),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("reportsPerSecond", reportsPerSecond))
}
