package loadtest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/okian/raidep/pkg/logger"
)

var errNotRanked = errors.New("player not ranked")

// retrieveRankings fetches the standing of every name concurrently. Players
// the standings do not know yet are left out of the result.
func retrieveRankings(ctx context.Context, config *Config, names []string) (map[string]Entry, error) {
	logger.Get().Info(ctx, "retrieving rankings",
		logger.Int("players", len(names)),
		logger.Int("workers", config.Workers))

	client := newHTTPClient(config.Timeout)

	var (
		mu       sync.Mutex
		rankings = make(map[string]Entry, len(names))
		firstErr error
	)

	nameChan := make(chan string, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range nameChan {
				if ctx.Err() != nil {
					return
				}
				entry, err := retrieveSingleRanking(ctx, client, config.BaseURL, name)
				mu.Lock()
				switch {
				case errors.Is(err, errNotRanked):
				case err != nil:
					if firstErr == nil {
						firstErr = fmt.Errorf("rank of %s: %w", name, err)
					}
				default:
					rankings[name] = entry
				}
				mu.Unlock()
			}
		}()
	}

	go func() {
		defer close(nameChan)
		for _, name := range names {
			select {
			case <-ctx.Done():
				return
			case nameChan <- name:
			}
		}
	}()

	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled during ranking retrieval: %w", err)
	}

	logger.Get().Info(ctx, "ranking retrieval completed", logger.Int("retrieved", len(rankings)))
	return rankings, nil
}

// retrieveSingleRanking fetches one player's standing.
func retrieveSingleRanking(ctx context.Context, client *HTTPClient, baseURL, name string) (Entry, error) {
	resp, err := client.Get(ctx, baseURL+"/standings/"+url.PathEscape(name))
	if err != nil {
		return Entry{}, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		_, _ = readResponseBody(resp)
		return Entry{}, errNotRanked
	}

	var entry Entry
	if err := decodeResponse(resp, http.StatusOK, &entry); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// getStandings retrieves the top N standings entries.
func getStandings(ctx context.Context, config *Config, stats *Stats) ([]Entry, error) {
	logger.Get().Info(ctx, "getting top standings entries", logger.Int("topN", config.TopN))

	client := newHTTPClient(config.Timeout)
	resp, err := client.Get(ctx, fmt.Sprintf("%s/standings?limit=%d", config.BaseURL, config.TopN))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	var standings []Entry
	if err := decodeResponse(resp, http.StatusOK, &standings); err != nil {
		return nil, err
	}

	stats.StandingsEntries = len(standings)
	logger.Get().Info(ctx, "retrieved standings entries", logger.Int("count", len(standings)))
	return standings, nil
}
