package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/raidep/pkg/logger"
)

// HTTPClient wraps http.Client with timeout.
type HTTPClient struct {
	client *http.Client
}

func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with a plain-text body.
func (c *HTTPClient) Post(ctx context.Context, url string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	return c.client.Do(req)
}

// readResponseBody reads and closes the response body.
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// decodeResponse checks the status and decodes a JSON body into v.
func decodeResponse(resp *http.Response, want int, v any) error {
	body, err := readResponseBody(resp)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != want {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// submitReports posts logs concurrently and returns the report ids in log
// order. Logs the service rejected leave an empty id.
func submitReports(ctx context.Context, config *Config, logs []Log, stats *Stats) ([]string, error) {
	logger.Get().Info(ctx, "submitting logs",
		logger.Int("logs", len(logs)),
		logger.Int("workers", config.Workers))

	client := newHTTPClient(config.Timeout)
	q := url.Values{}
	q.Set("static", strconv.Itoa(config.Static))
	q.Set("hard_mode", strconv.FormatBool(config.HardMode))
	target := config.BaseURL + "/reports?" + q.Encode()

	ids := make([]string, len(logs))
	var (
		accepted  int64
		duplicate int64
		failed    int64
		submitted int64
	)

	indexChan := make(chan int, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range indexChan {
				if ctx.Err() != nil {
					return
				}
				res, err := submitSingleReport(ctx, client, target, logs[index])
				atomic.AddInt64(&submitted, 1)
				switch {
				case err != nil:
					atomic.AddInt64(&failed, 1)
					logger.Get().Debug(ctx, "submission failed",
						logger.String("log", logs[index].Name), logger.Error(err))
				case res.Duplicate:
					atomic.AddInt64(&duplicate, 1)
					ids[index] = res.ReportID
				default:
					atomic.AddInt64(&accepted, 1)
					ids[index] = res.ReportID
				}
			}
		}()
	}

	go func() {
		defer close(indexChan)
		for i := range logs {
			select {
			case <-ctx.Done():
				return
			case indexChan <- i:
			}
		}
	}()

	wg.Wait()

	stats.ReportsSubmitted = int(atomic.LoadInt64(&submitted))
	stats.ReportsAccepted = int(atomic.LoadInt64(&accepted))
	stats.ReportsDuplicate = int(atomic.LoadInt64(&duplicate))
	stats.ReportsFailed = int(atomic.LoadInt64(&failed))

	logger.Get().Info(ctx, "submission completed",
		logger.Int("accepted", stats.ReportsAccepted),
		logger.Int("duplicate", stats.ReportsDuplicate),
		logger.Int("failed", stats.ReportsFailed))

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled during submission: %w", err)
	}
	return ids, nil
}

// submitSingleReport posts one log. 202 means queued, 200 a duplicate.
func submitSingleReport(ctx context.Context, client *HTTPClient, target string, l Log) (submitResponse, error) {
	resp, err := client.Post(ctx, target, l.Body)
	if err != nil {
		return submitResponse{}, fmt.Errorf("request failed: %w", err)
	}

	want := http.StatusAccepted
	if resp.StatusCode == http.StatusOK {
		want = http.StatusOK
	}
	var res submitResponse
	if err := decodeResponse(resp, want, &res); err != nil {
		return submitResponse{}, err
	}
	if res.ReportID == "" {
		return submitResponse{}, fmt.Errorf("response without report id")
	}
	return res, nil
}

// waitForReports polls the report list until every id is done or failed and
// returns the done ids.
func waitForReports(ctx context.Context, config *Config, ids []string, stats *Stats) ([]string, error) {
	pending := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			pending[id] = struct{}{}
		}
	}
	logger.Get().Info(ctx, "waiting for reports to be processed", logger.Int("reports", len(pending)))

	client := newHTTPClient(config.Timeout)
	done := make([]string, 0, len(pending))
	ticker := time.NewTicker(config.PollInterval)
	defer ticker.Stop()

	for {
		resp, err := client.Get(ctx, config.BaseURL+"/reports")
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		var reports []reportResponse
		if err := decodeResponse(resp, http.StatusOK, &reports); err != nil {
			return nil, err
		}

		for _, r := range reports {
			if _, ok := pending[r.ID]; !ok {
				continue
			}
			switch r.Status {
			case statusDone:
				delete(pending, r.ID)
				done = append(done, r.ID)
			case statusFailed:
				delete(pending, r.ID)
				stats.ReportsFailed++
				logger.Get().Warn(ctx, "report failed",
					logger.String("report_id", r.ID), logger.String("error", r.Error))
			}
		}
		if len(pending) == 0 {
			stats.ReportsDone = len(done)
			logger.Get().Info(ctx, "reports processed", logger.Int("done", len(done)))
			return done, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%d reports still pending: %w", len(pending), ctx.Err())
		case <-ticker.C:
		}
	}
}

// flushReports credits every done report to the standings and returns the
// points each player gained, summed from the report exports. Reports another
// client flushed first are not counted.
func flushReports(ctx context.Context, config *Config, ids []string, stats *Stats) (map[string]int, error) {
	logger.Get().Info(ctx, "flushing reports", logger.Int("reports", len(ids)))

	client := newHTTPClient(config.Timeout)
	gained := make(map[string]int)
	for _, id := range ids {
		export, err := fetchExport(ctx, client, config.BaseURL, id)
		if err != nil {
			return nil, fmt.Errorf("export %s: %w", id, err)
		}

		resp, err := client.Post(ctx, config.BaseURL+"/reports/"+url.PathEscape(id)+"/flush", nil)
		if err != nil {
			return nil, fmt.Errorf("flush %s: %w", id, err)
		}
		var res flushResponse
		if err := decodeResponse(resp, http.StatusOK, &res); err != nil {
			return nil, fmt.Errorf("flush %s: %w", id, err)
		}
		if res.AlreadyFlushed {
			continue
		}

		stats.ReportsFlushed++
		for name, points := range export {
			gained[name] += points
		}
	}
	return gained, nil
}

// fetchExport reads a report export and parses its name,points lines.
func fetchExport(ctx context.Context, client *HTTPClient, baseURL, id string) (map[string]int, error) {
	resp, err := client.Get(ctx, baseURL+"/reports/"+url.PathEscape(id)+"/export")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return parseExport(string(body))
}

// parseExport parses name,points lines. Names never contain commas, so the
// last comma splits the fields.
func parseExport(s string) (map[string]int, error) {
	out := make(map[string]int)
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		if line == "" {
			continue
		}
		i := strings.LastIndexByte(line, ',')
		if i < 0 {
			return nil, fmt.Errorf("malformed export line %q", line)
		}
		points, err := strconv.Atoi(line[i+1:])
		if err != nil {
			return nil, fmt.Errorf("malformed export line %q: %w", line, err)
		}
		out[line[:i]] += points
	}
	return out, nil
}
