package state

import (
	"sync"
	"sync/atomic"
	"time"

	"mbp-reconstructor/internal/engine"
)

// State is the replay's externally visible progress. The replay loop writes
// it; the inspection server and metrics read it from other goroutines.
type State struct {
	runID   string
	input   string
	output  string
	started time.Time

	mu      sync.RWMutex
	stats   engine.Stats
	latest  engine.Snapshot
	hasRow  bool
	summary *engine.Summary
	elapsed time.Duration

	rows      atomic.Int64
	malformed atomic.Int64
	done      atomic.Bool
}

func NewState(runID, input, output string) *State {
	return &State{
		runID:   runID,
		input:   input,
		output:  output,
		started: time.Now(),
	}
}

func (s *State) RunID() string  { return s.runID }
func (s *State) Input() string  { return s.input }
func (s *State) Output() string { return s.output }

// Observe records the engine totals after an event.
func (s *State) Observe(st engine.Stats) {
	s.mu.Lock()
	s.stats = st
	s.mu.Unlock()
}

// Write keeps the most recent snapshot. It implements engine.Sink.
func (s *State) Write(snap engine.Snapshot) error {
	s.mu.Lock()
	s.latest = snap
	s.hasRow = true
	s.mu.Unlock()
	s.rows.Add(1)
	return nil
}

func (s *State) SetMalformed(n int) { s.malformed.Store(int64(n)) }
func (s *State) Malformed() int     { return int(s.malformed.Load()) }

// Rows is the number of snapshot rows emitted so far.
func (s *State) Rows() int { return int(s.rows.Load()) }

func (s *State) Stats() engine.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

func (s *State) Latest() (engine.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.hasRow
}

// Finish marks the replay complete.
func (s *State) Finish(sum engine.Summary, elapsed time.Duration) {
	s.mu.Lock()
	s.summary = &sum
	s.stats = sum.Stats
	s.elapsed = elapsed
	s.mu.Unlock()
	s.done.Store(true)
}

func (s *State) Done() bool { return s.done.Load() }

// Summary returns the final summary once the replay has finished.
func (s *State) Summary() (engine.Summary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.summary == nil {
		return engine.Summary{}, false
	}
	return *s.summary, true
}

// Elapsed is the replay duration, or the time since start while running.
func (s *State) Elapsed() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.summary != nil {
		return s.elapsed
	}
	return time.Since(s.started)
}
