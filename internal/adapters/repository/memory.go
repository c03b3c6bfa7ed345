package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/okian/raidep/internal/domain/model"
)

// MemoryStore is a Store kept in process memory. It is safe for
// concurrent use.
type MemoryStore struct {
	mu        sync.RWMutex
	reports   map[string]model.Report
	byDigest  map[string]string
	runs      map[string][]model.RaidRun
	intervals map[string][]model.UsageInterval
	players   map[int64]model.Player
	byName    map[string]int64
	nextID    int64
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reports:   make(map[string]model.Report),
		byDigest:  make(map[string]string),
		runs:      make(map[string][]model.RaidRun),
		intervals: make(map[string][]model.UsageInterval),
		players:   make(map[int64]model.Player),
		byName:    make(map[string]int64),
	}
}

func (s *MemoryStore) CreateReport(_ context.Context, r model.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reports[r.ID]; ok {
		return fmt.Errorf("%w: report %s", ErrConflict, r.ID)
	}
	s.reports[r.ID] = r
	if r.Digest != "" {
		s.byDigest[r.Digest] = r.ID
	}
	return nil
}

func (s *MemoryStore) GetReport(_ context.Context, id string) (model.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	if !ok {
		return model.Report{}, fmt.Errorf("%w: report %s", ErrNotFound, id)
	}
	return r, nil
}

func (s *MemoryStore) UpdateReport(_ context.Context, r model.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reports[r.ID]; !ok {
		return fmt.Errorf("%w: report %s", ErrNotFound, r.ID)
	}
	s.reports[r.ID] = r
	return nil
}

func (s *MemoryStore) ListReports(_ context.Context) ([]model.Report, error) {
	s.mu.RLock()
	out := make([]model.Report, 0, len(s.reports))
	for _, r := range s.reports {
		out = append(out, r)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) ReportByDigest(_ context.Context, digest string) (model.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byDigest[digest]
	if !ok {
		return model.Report{}, fmt.Errorf("%w: digest %s", ErrNotFound, digest)
	}
	return s.reports[id], nil
}

func (s *MemoryStore) SaveRaidRun(_ context.Context, run model.RaidRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reports[run.ReportID]; !ok {
		return fmt.Errorf("%w: report %s", ErrNotFound, run.ReportID)
	}
	s.runs[run.ReportID] = append(s.runs[run.ReportID], run)
	return nil
}

func (s *MemoryStore) RaidRuns(_ context.Context, reportID string) ([]model.RaidRun, error) {
	s.mu.RLock()
	out := make([]model.RaidRun, len(s.runs[reportID]))
	copy(out, s.runs[reportID])
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Begin.Before(out[j].Begin) })
	return out, nil
}

func (s *MemoryStore) DeleteReportData(_ context.Context, reportID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, reportID)
	delete(s.intervals, reportID)
	return nil
}

func (s *MemoryStore) AddIntervals(_ context.Context, intervals []model.UsageInterval) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, iv := range intervals {
		s.intervals[iv.ReportID] = append(s.intervals[iv.ReportID], iv)
	}
	return nil
}

func (s *MemoryStore) Intervals(_ context.Context, reportID string) ([]model.UsageInterval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.UsageInterval, len(s.intervals[reportID]))
	copy(out, s.intervals[reportID])
	return out, nil
}

func (s *MemoryStore) GetOrCreatePlayer(_ context.Context, seed model.Player) (model.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byName[seed.Name]; ok {
		return s.players[id], nil
	}
	s.nextID++
	seed.ID = s.nextID
	s.players[seed.ID] = seed
	s.byName[seed.Name] = seed.ID
	return seed, nil
}

func (s *MemoryStore) Player(_ context.Context, id int64) (model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[id]
	if !ok {
		return model.Player{}, fmt.Errorf("%w: player %d", ErrNotFound, id)
	}
	return p, nil
}

func (s *MemoryStore) Players(_ context.Context, ids []int64) ([]model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Player, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.players[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdatePlayer(_ context.Context, p model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.players[p.ID]
	if !ok {
		return fmt.Errorf("%w: player %d", ErrNotFound, p.ID)
	}
	cur.Role = p.Role
	cur.Class = p.Class
	s.players[p.ID] = cur
	return nil
}

func (s *MemoryStore) Close() error { return nil }
