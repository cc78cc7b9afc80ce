package region

import (
	"sync"

	"github.com/ironsheep/ca-segment-mcp/internal/lattice"
)

// SyncMerger guards a Merger with one coarse mutex.
//
// Weighted union updates parent, size, and children together, so reads used
// for merge decisions take the same lock as writes. Once a pass's merges are
// finished, Frozen hands out the bare Merger for lock-free tracing and member
// enumeration.
//
// An alternative is a single goroutine owning the Merger and serving unions
// over a channel; it trades the lock for a request/response round trip per
// union and is not implemented here.
type SyncMerger struct {
	mu sync.Mutex
	m  *Merger
}

// NewSyncMerger creates a guarded width×height merger.
func NewSyncMerger(width, height int) (*SyncMerger, error) {
	m, err := NewMerger(width, height)
	if err != nil {
		return nil, err
	}
	return &SyncMerger{m: m}, nil
}

// Union merges the regions of a and b.
func (s *SyncMerger) Union(a, b lattice.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Union(a, b)
}

// Find returns the root cell of p's region.
func (s *SyncMerger) Find(p lattice.Point) (lattice.Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Find(p)
}

// Connected reports whether a and b share a root.
func (s *SyncMerger) Connected(a, b lattice.Point) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Connected(a, b)
}

// Size returns the number of cells in p's region.
func (s *SyncMerger) Size(p lattice.Point) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Size(p)
}

// Members enumerates p's region.
func (s *SyncMerger) Members(p lattice.Point) ([]lattice.Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Members(p)
}

// Regions returns the current number of regions.
func (s *SyncMerger) Regions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Regions()
}

// Do runs fn with the lock held, for multi-step decisions that must see a
// consistent structure.
func (s *SyncMerger) Do(fn func(m *Merger) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.m)
}

// Frozen returns the underlying Merger. Callers must have stopped issuing
// unions.
func (s *SyncMerger) Frozen() *Merger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m
}
