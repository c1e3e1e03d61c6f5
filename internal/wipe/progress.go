package wipe

import (
	"math"
	"sync"
)

// ProgressState is the progress of a running erase.
type ProgressState struct {
	Percent    float64 `json:"percent"`
	PhaseIndex int     `json:"phase_index"`
	PhaseLabel string  `json:"phase_label"`
}

// maxPhaseFraction keeps in-phase reports strictly below the next phase
// boundary, so only phase completion can move the phase index.
const maxPhaseFraction = 0.999

// ProgressTracker owns the ProgressState of one run. It has a single writer
// (the scheduler) and any number of readers; every update replaces percent,
// index and label together under the lock.
type ProgressTracker struct {
	mu     sync.RWMutex
	labels []string
	state  ProgressState
}

// NewProgressTracker starts a tracker at 0% on the plan's first phase.
func NewProgressTracker(plan ErasePlan) *ProgressTracker {
	labels := append([]string(nil), plan.PassLabels...)
	t := &ProgressTracker{labels: labels}
	if len(labels) > 0 {
		t.state.PhaseLabel = labels[0]
	}
	return t
}

// Snapshot returns the current state.
func (t *ProgressTracker) Snapshot() ProgressState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// ReportWithin records that fraction of phase i is done. Reports that would
// move progress backwards are dropped. It returns the new state and whether
// it changed.
func (t *ProgressTracker) ReportWithin(phase int, fraction float64) (ProgressState, bool) {
	if math.IsNaN(fraction) || fraction < 0 {
		fraction = 0
	}
	if fraction > maxPhaseFraction {
		fraction = maxPhaseFraction
	}
	return t.advance((float64(phase) + fraction) / float64(len(t.labels)) * 100)
}

// CompletePhase records that phase i finished.
func (t *ProgressTracker) CompletePhase(phase int) (ProgressState, bool) {
	if phase >= len(t.labels)-1 {
		return t.advance(100)
	}
	return t.advance(float64(phase+1) / float64(len(t.labels)) * 100)
}

func (t *ProgressTracker) advance(percent float64) (ProgressState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.labels) == 0 || percent <= t.state.Percent {
		return t.state, false
	}
	if percent > 100 {
		percent = 100
	}

	idx := PhaseIndexFor(percent, len(t.labels))
	if idx < t.state.PhaseIndex {
		idx = t.state.PhaseIndex
	}
	t.state = ProgressState{
		Percent:    percent,
		PhaseIndex: idx,
		PhaseLabel: t.labels[idx],
	}
	return t.state, true
}

// PhaseIndexFor derives the phase index from a percentage:
// floor(percent/100 * phaseCount), clamped to [0, phaseCount-1].
func PhaseIndexFor(percent float64, phaseCount int) int {
	if phaseCount <= 0 {
		return 0
	}
	// The epsilon absorbs float error at exact phase boundaries.
	idx := int(math.Floor(percent/100*float64(phaseCount) + 1e-9))
	if idx < 0 {
		return 0
	}
	if idx > phaseCount-1 {
		return phaseCount - 1
	}
	return idx
}
