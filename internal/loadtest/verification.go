package loadtest

import (
	"context"
	"fmt"
	"sort"

	"github.com/okian/raidep/pkg/logger"
)

// verifyResults checks that the standings moved by exactly the flushed
// export totals and that the ladder is ordered with dense ranks.
func verifyResults(ctx context.Context, before, after map[string]Entry, gained map[string]int, standings []Entry, stats *Stats) error {
	logger.Get().Info(ctx, "verifying results")

	stats.RankingsRetrieved = len(after)

	if err := verifyPointDeltas(before, after, gained); err != nil {
		return err
	}
	if err := verifyStandingsOrder(standings); err != nil {
		return err
	}
	if err := verifyRankConsistency(after, standings); err != nil {
		return err
	}

	displayTopPlayers(ctx, standings)
	logger.Get().Info(ctx, "result verification completed")
	return nil
}

// verifyPointDeltas compares each player's standing change with the points
// credited by the flushed reports.
func verifyPointDeltas(before, after map[string]Entry, gained map[string]int) error {
	names := make([]string, 0, len(gained))
	for name := range gained {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		got, ok := after[name]
		if !ok {
			return fmt.Errorf("player %s was credited but has no standing", name)
		}
		delta := got.Points - before[name].Points
		if delta != gained[name] {
			return fmt.Errorf("player %s gained %d points, reports credited %d", name, delta, gained[name])
		}
	}
	return nil
}

// verifyStandingsOrder checks the ladder is sorted by points with dense ranks
// starting at 1.
func verifyStandingsOrder(standings []Entry) error {
	for i, e := range standings {
		if i == 0 {
			if e.Rank != 1 {
				return fmt.Errorf("first standings entry has rank %d", e.Rank)
			}
			continue
		}
		prev := standings[i-1]
		switch {
		case e.Points > prev.Points:
			return fmt.Errorf("standings not sorted: entry %d has more points than entry %d", i, i-1)
		case e.Points == prev.Points && e.Rank != prev.Rank:
			return fmt.Errorf("tied entries %d and %d have ranks %d and %d", i-1, i, prev.Rank, e.Rank)
		case e.Points < prev.Points && e.Rank != prev.Rank+1:
			return fmt.Errorf("entry %d has rank %d after rank %d", i, e.Rank, prev.Rank)
		}
	}
	return nil
}

// verifyRankConsistency checks that single-player lookups agree with the
// ladder for players that appear on it.
func verifyRankConsistency(rankings map[string]Entry, standings []Entry) error {
	for _, e := range standings {
		r, ok := rankings[e.Player]
		if !ok {
			continue
		}
		if r.Rank != e.Rank || r.Points != e.Points {
			return fmt.Errorf("player %s is rank %d with %d points on the ladder but rank %d with %d points alone",
				e.Player, e.Rank, e.Points, r.Rank, r.Points)
		}
	}
	return nil
}

// displayTopPlayers logs the head of the ladder.
func displayTopPlayers(ctx context.Context, standings []Entry) {
	topN := minInt(10, len(standings))
	for _, e := range standings[:topN] {
		logger.Get().Info(ctx, "standing",
			logger.Int("rank", e.Rank),
			logger.String("player", e.Player),
			logger.Int("points", e.Points))
	}
}
