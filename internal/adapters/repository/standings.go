package repository

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/okian/raidep/internal/domain/types"
	"github.com/okian/raidep/pkg/metrics"
)

// Standings is the ladder of cumulative points per player name, kept in a
// treap. Ordering: points DESC, then name ASC, so an in-order walk yields
// the ladder from best to worst.
type Standings struct {
	mu     sync.RWMutex
	root   *node
	points map[string]int
}

type node struct {
	name   string
	points int
	prio   uint64
	left   *node
	right  *node
	size   int
}

// NewStandings creates an empty ladder.
func NewStandings() *Standings {
	return &Standings{points: make(map[string]int)}
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less reports whether (aPoints, aName) ranks before (bPoints, bName).
func less(aPoints int, aName string, bPoints int, bName string) bool {
	if aPoints != bPoints {
		return aPoints > bPoints
	}
	return aName < bName
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

// priority hashes the name so the tree shape does not depend on the order
// players are credited.
func priority(name string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return h.Sum64()
}

func insert(n *node, name string, points int) *node {
	if n == nil {
		return &node{name: name, points: points, prio: priority(name), size: 1}
	}
	if less(points, name, n.points, n.name) {
		n.left = insert(n.left, name, points)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, name, points)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, name string, points int) *node {
	if n == nil {
		return nil
	}
	if points == n.points && name == n.name {
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, name, points)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, name, points)
		}
	} else if less(points, name, n.points, n.name) {
		n.left = deleteNode(n.left, name, points)
	} else {
		n.right = deleteNode(n.right, name, points)
	}
	fix(n)
	return n
}

// collect appends up to limit entries in ladder order.
func collect(n *node, limit int, out *[]types.Entry) {
	if n == nil || len(*out) >= limit {
		return
	}
	collect(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, types.Entry{Player: n.name, Points: n.points})
	}
	if len(*out) < limit {
		collect(n.right, limit, out)
	}
}

// AddPoints credits delta to name, creating the entry if needed.
func (s *Standings) AddPoints(_ context.Context, name string, delta int) {
	s.mu.Lock()
	cur, ok := s.points[name]
	if ok {
		s.root = deleteNode(s.root, name, cur)
	}
	s.points[name] = cur + delta
	s.root = insert(s.root, name, cur+delta)
	count := len(s.points)
	s.mu.Unlock()

	if !ok {
		metrics.UpdateStandingsPlayers(count)
	}
}

// TopN returns the best n entries with dense ranks.
func (s *Standings) TopN(_ context.Context, n int) ([]types.Entry, error) {
	if n < 1 {
		metrics.RecordErrorByComponent("standings", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Entry, 0, min(n, len(s.points)))
	collect(s.root, n, &out)
	assignRanks(out)
	return out, nil
}

// Rank returns the entry for name with its dense rank.
func (s *Standings) Rank(_ context.Context, name string) (types.Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStandingsQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	points, ok := s.points[name]
	if !ok {
		metrics.RecordErrorByComponent("standings", "not_found")
		return types.Entry{}, ErrNotFound
	}
	return types.Entry{Rank: s.denseRank(points), Player: name, Points: points}, nil
}

// Count returns the number of players on the ladder.
func (s *Standings) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points)
}

// denseRank is 1 + the number of distinct point totals above points.
// Must be called with s.mu held.
func (s *Standings) denseRank(points int) int {
	above := make(map[int]struct{})
	for _, p := range s.points {
		if p > points {
			above[p] = struct{}{}
		}
	}
	return len(above) + 1
}

// assignRanks sets dense ranks on the top of the ladder.
func assignRanks(entries []types.Entry) {
	rank := 1
	for i := range entries {
		if i > 0 && entries[i].Points != entries[i-1].Points {
			rank++
		}
		entries[i].Rank = rank
	}
}
