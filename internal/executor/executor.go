// Package executor applies a rule to a set of lattice cells with a bounded
// worker pool.
//
// # Algorithm
//
// The cells of one pass sit behind a shared cursor guarded by a single mutex.
// Each worker repeatedly locks, claims the next unclaimed cell, unlocks, and
// applies the rule without holding the lock. The pass ends when every worker
// has observed an exhausted cursor and the pool has joined.
//
// # Consistency
//
// Run seeds the lattice back buffer before the pass and swaps it in after the
// barrier. Rules read only the front buffer, so a pass produces the same
// lattice for any worker count.
//
// # Failures
//
// A failing or panicking cell does not stop the pass. Failures are collected
// into the Report; the failed cell keeps its previous values. Cancelling the
// context stops workers between claims and discards the pass, unless every
// cell had already been claimed.
package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/ironsheep/ca-segment-mcp/internal/lattice"
	"github.com/ironsheep/ca-segment-mcp/internal/rule"
)

// ErrConcurrencyFailure wraps the aggregate of per-cell rule failures.
var ErrConcurrencyFailure = errors.New("executor: rule failed for one or more cells")

// CellError records one cell whose rule application failed.
type CellError struct {
	Point lattice.Point
	Rule  string
	Err   error
}

func (e *CellError) Error() string {
	return fmt.Sprintf("%s at %v: %v", e.Rule, e.Point, e.Err)
}

func (e *CellError) Unwrap() error { return e.Err }

// Report summarises one pass.
type Report struct {
	Rule     string        `json:"rule"`
	Workers  int           `json:"workers"`
	Claimed  int           `json:"claimed"`
	Applied  int           `json:"applied"`
	Changed  int           `json:"changed"`
	Failures []*CellError  `json:"-"`
	Duration time.Duration `json:"duration_ns"`
}

// Err returns nil when every claimed cell succeeded, and otherwise an error
// wrapping ErrConcurrencyFailure and every CellError.
func (r *Report) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return fmt.Errorf("%w: %d of %d cells: %w", ErrConcurrencyFailure, len(r.Failures), r.Claimed, errors.Join(errs...))
}

// Executor runs rule passes. The zero value runs on the caller's goroutine.
type Executor struct {
	workers int
}

// New returns an executor with the given pool size. Zero or negative means
// single-threaded execution on the calling goroutine.
func New(workers int) *Executor {
	if workers < 0 {
		workers = 0
	}
	return &Executor{workers: workers}
}

// Auto returns an executor sized to GOMAXPROCS.
func Auto() *Executor {
	return New(runtime.GOMAXPROCS(0))
}

// Workers returns the pool size.
func (e *Executor) Workers() int { return e.workers }

type cursor struct {
	mu    sync.Mutex
	cells []lattice.Point
	next  int
}

func (c *cursor) claim() (lattice.Point, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.next >= len(c.cells) {
		return lattice.Point{}, false
	}
	p := c.cells[c.next]
	c.next++
	return p, true
}

type tally struct {
	claimed, applied, changed int
	failures                  []*CellError
}

// Run applies r once to each of cells and commits the result. The returned
// error is non-nil only when ctx was cancelled before every cell was claimed,
// in which case the lattice is left as it was before the pass. Per-cell
// failures are reported through Report.Err.
func (e *Executor) Run(ctx context.Context, lat *lattice.Lattice, cells []lattice.Point, r rule.Rule) (*Report, error) {
	start := time.Now()
	lat.BeginPass()

	q := &cursor{cells: cells}
	report := &Report{Rule: r.Name(), Workers: e.workers}

	if e.workers == 0 {
		merge(report, e.work(ctx, lat, q, r))
	} else {
		var (
			wg sync.WaitGroup
			mu sync.Mutex
		)
		for i := 0; i < e.workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				t := e.work(ctx, lat, q, r)
				mu.Lock()
				merge(report, t)
				mu.Unlock()
			}()
		}
		wg.Wait()
	}
	report.Duration = time.Since(start)

	if err := ctx.Err(); err != nil && report.Claimed < len(cells) {
		return report, fmt.Errorf("executor: %s pass cancelled after %d of %d cells: %w",
			r.Name(), report.Claimed, len(cells), err)
	}
	sortFailures(lat, report.Failures)
	lat.Commit()
	return report, nil
}

func merge(r *Report, t tally) {
	r.Claimed += t.claimed
	r.Applied += t.applied
	r.Changed += t.changed
	r.Failures = append(r.Failures, t.failures...)
}

func (e *Executor) work(ctx context.Context, lat *lattice.Lattice, q *cursor, r rule.Rule) tally {
	var t tally
	for {
		if ctx.Err() != nil {
			return t
		}
		p, ok := q.claim()
		if !ok {
			return t
		}
		t.claimed++

		before := lat.At(p)
		out, err := apply(r, lat, before)
		if err == nil {
			err = store(lat, p, out)
		}
		if err != nil {
			t.failures = append(t.failures, &CellError{Point: p, Rule: r.Name(), Err: err})
			continue
		}
		t.applied++
		if out.Colour != before.Colour || out.Class != before.Class {
			t.changed++
		}
	}
}

func apply(r rule.Rule, v lattice.View, c lattice.Cell) (out rule.Outcome, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return r.Apply(v, c)
}

func store(lat *lattice.Lattice, p lattice.Point, out rule.Outcome) error {
	if err := lat.SetState(p.X, p.Y, out.State); err != nil {
		return err
	}
	if err := lat.SetColour(p.X, p.Y, out.Colour); err != nil {
		return err
	}
	return lat.SetClass(p.X, p.Y, out.Class)
}

// sortFailures orders failures row-major so reports do not depend on worker
// scheduling.
func sortFailures(lat *lattice.Lattice, fs []*CellError) {
	key := func(p lattice.Point) int { return p.Y*lat.Width() + p.X }
	sort.Slice(fs, func(i, j int) bool {
		return key(fs[i].Point) < key(fs[j].Point)
	})
}
