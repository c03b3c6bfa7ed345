package loadtest

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/okian/raidep/pkg/logger"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
)

// Shape of a generated Molten Core run.
const (
	firstEncounterID   = 663
	firstEncounterName = "Lucifron"
	lastEncounterID    = 672
	lastEncounterName  = "Ragnaros"
	runLength          = 1000 * time.Second
	encounterLength    = 200 * time.Second
	preBuffLead        = 60 * time.Second
	applyChance        = 0.8
	removeChance       = 0.5
	castChance         = 0.7
	logDateLayout      = "1/2 15:04:05.000"
	daysPerYear        = 365
	startHours         = 4
)

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

type logLine struct {
	at   time.Duration
	text string
}

// generateLogs creates the configured number of logs concurrently. Every log
// starts at a different time so two logs never share a digest.
func generateLogs(ctx context.Context, config *Config, stats *Stats) ([]Log, error) {
	logger.Get().Info(ctx, "generating combat logs",
		logger.Int("reports", config.NumReports),
		logger.Int("players", len(config.Players)))

	logs := make([]Log, config.NumReports)

	type logResult struct {
		index int
		log   Log
		err   error
	}
	resultChan := make(chan logResult, config.NumReports)

	workerCount := minInt(config.Workers, config.NumReports)
	logsPerWorker := config.NumReports / workerCount

	for worker := 0; worker < workerCount; worker++ {
		start := worker * logsPerWorker
		end := start + logsPerWorker
		if worker == workerCount-1 {
			end = config.NumReports
		}

		go func(start, end int) {
			for i := start; i < end; i++ {
				select {
				case <-ctx.Done():
					resultChan <- logResult{index: i, err: ctx.Err()}
					return
				default:
					resultChan <- logResult{index: i, log: generateSingleLog(i, config)}
				}
			}
		}(start, end)
	}

	for i := 0; i < config.NumReports; i++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during log generation: %w", ctx.Err())
		case result := <-resultChan:
			if result.err != nil {
				return nil, fmt.Errorf("failed to generate log %d: %w", result.index, result.err)
			}
			logs[result.index] = result.log
		}
	}

	stats.LogsGenerated = len(logs)
	logger.Get().Info(ctx, "generated logs successfully", logger.Int("count", len(logs)))
	return logs, nil
}

// generateSingleLog writes one Molten Core run with random buff coverage
// for every configured player.
func generateSingleLog(index int, config *Config) Log {
	start := runStart(index)
	lines := []logLine{
		{at: 0, text: fmt.Sprintf("ENCOUNTER_START,%d,\"%s\",9,40", firstEncounterID, firstEncounterName)},
		{at: encounterLength, text: fmt.Sprintf("ENCOUNTER_END,%d,\"%s\",9,40", firstEncounterID, firstEncounterName)},
		{at: runLength - encounterLength, text: fmt.Sprintf("ENCOUNTER_START,%d,\"%s\",9,40", lastEncounterID, lastEncounterName)},
		{at: runLength, text: fmt.Sprintf("ENCOUNTER_END,%d,\"%s\",9,40", lastEncounterID, lastEncounterName)},
	}

	for p, name := range config.Players {
		guid := fmt.Sprintf("Player-%d", p+1)
		for _, spell := range config.Spells {
			if getRandomFloat() >= applyChance {
				continue
			}
			lines = append(lines, logLine{at: -preBuffLead, text: spellLine("SPELL_AURA_APPLIED", guid, name, spell, ",BUFF")})
			if getRandomFloat() < removeChance {
				at := time.Duration(getRandomFloat() * float64(runLength))
				lines = append(lines, logLine{at: at, text: spellLine("SPELL_AURA_REMOVED", guid, name, spell, ",BUFF")})
			}
		}
		for _, spell := range config.CastSpells {
			if getRandomFloat() >= castChance {
				continue
			}
			at := time.Duration(getRandomFloat() * float64(runLength))
			lines = append(lines, logLine{at: at, text: spellLine("SPELL_CAST_SUCCESS", guid, name, spell, "")})
		}
	}

	sort.SliceStable(lines, func(i, j int) bool { return lines[i].at < lines[j].at })

	var b strings.Builder
	for _, l := range lines {
		b.WriteString(start.Add(l.at).Format(logDateLayout))
		b.WriteString("  ")
		b.WriteString(l.text)
		b.WriteByte('\n')
	}

	return Log{
		Name: fmt.Sprintf("raid_%05d.log", index),
		Body: []byte(b.String()),
	}
}

// runStart spreads runs over distinct days, evening hours and minutes of a
// non-leap year so every date parses whatever year the service assumes.
func runStart(index int) time.Time {
	day := index % daysPerYear
	hour := (index / daysPerYear) % startHours
	minute := (index / (daysPerYear * startHours)) % 60
	return time.Date(2001, time.January, 1, 19+hour, minute, 0, 0, time.UTC).AddDate(0, 0, day)
}

func spellLine(kind, guid, name string, spell int, suffix string) string {
	actor := fmt.Sprintf("%s,\"%s-Loadtest\",0x514,0x0", guid, name)
	return fmt.Sprintf("%s,%s,%s,%d,\"Spell %d\",0x1%s", kind, actor, actor, spell, spell, suffix)
}

// minInt returns the minimum of two integers.
func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
