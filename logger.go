package shapemc

import (
	"log/slog"
	"sort"
	"sync"
)

// Logger observes chain steps. The chain calls exactly one of the two
// methods per step, strictly after the accept/reject decision:
//
//   - Accept(current, proposed, ...): proposed was accepted and is the new
//     state; current is the state the step started from.
//   - Reject(current, proposed, ...): proposed was discarded; current stays.
//
// Implementations must not fail: no panics, no blocking on the caller's
// hot path. The generator and evaluator of the step are passed through so
// observers can attribute or re-score without holding references of their
// own.
type Logger interface {
	Accept(current, proposed Sample, generator ProposalGenerator, evaluator Evaluator)
	Reject(current, proposed Sample, generator ProposalGenerator, evaluator Evaluator)
}

// AcceptanceCount is a snapshot of one provenance label's tallies.
type AcceptanceCount struct {
	Accepted uint64
	Rejected uint64
}

// Ratio returns Accepted / (Accepted + Rejected), or 0 with no observations.
func (c AcceptanceCount) Ratio() float64 {
	total := c.Accepted + c.Rejected
	if total == 0 {
		return 0
	}
	return float64(c.Accepted) / float64(total)
}

// AcceptanceTracker counts accepted and rejected proposals per provenance
// label. It is the standard tuning instrument for a random-walk sampler:
//
//   - Ratio near 1: steps too small, the chain creeps
//   - Ratio near 0: steps too large, almost everything is rejected
//   - Ratio around 0.2-0.5: healthy for random-walk kernels
//
// With a mixture generator the per-label breakdown shows each component's
// behavior separately, which is the point of provenance labels.
//
// A tracker is created fresh per run and discarded with it. Reads are
// guarded, so a monitoring goroutine may poll ratios while the chain runs.
type AcceptanceTracker struct {
	mu     sync.RWMutex
	counts map[string]*AcceptanceCount
}

// NewAcceptanceTracker returns an empty tracker.
func NewAcceptanceTracker() *AcceptanceTracker {
	return &AcceptanceTracker{counts: make(map[string]*AcceptanceCount)}
}

// Accept records an accepted proposal under the proposed sample's label.
func (t *AcceptanceTracker) Accept(_, proposed Sample, _ ProposalGenerator, _ Evaluator) {
	t.record(proposed.Provenance, true)
}

// Reject records a rejected proposal under the proposed sample's label.
func (t *AcceptanceTracker) Reject(_, proposed Sample, _ ProposalGenerator, _ Evaluator) {
	t.record(proposed.Provenance, false)
}

func (t *AcceptanceTracker) record(label string, accepted bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.counts[label]
	if !ok {
		c = &AcceptanceCount{}
		t.counts[label] = c
	}
	if accepted {
		c.Accepted++
	} else {
		c.Rejected++
	}
}

// AcceptanceRatios returns accepted/(accepted+rejected) per observed label.
// Labels never observed are absent from the map, not zero.
func (t *AcceptanceTracker) AcceptanceRatios() map[string]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ratios := make(map[string]float64, len(t.counts))
	for label, c := range t.counts {
		ratios[label] = c.Ratio()
	}
	return ratios
}

// Ratio returns one label's acceptance ratio. The second result is false if
// the label was never observed.
func (t *AcceptanceTracker) Ratio(label string) (float64, bool) {
	c, ok := t.Counts(label)
	if !ok {
		return 0, false
	}
	return c.Ratio(), true
}

// Counts returns one label's tallies. The second result is false if the
// label was never observed.
func (t *AcceptanceTracker) Counts(label string) (AcceptanceCount, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	c, ok := t.counts[label]
	if !ok {
		return AcceptanceCount{}, false
	}
	return *c, true
}

// Labels returns the observed provenance labels, sorted.
func (t *AcceptanceTracker) Labels() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	labels := make([]string, 0, len(t.counts))
	for label := range t.counts {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Steps returns the total number of observed steps across all labels.
func (t *AcceptanceTracker) Steps() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var total uint64
	for _, c := range t.counts {
		total += c.Accepted + c.Rejected
	}
	return total
}

// SlogLogger narrates a run through structured logging: a Debug line per
// step and an Info line with the windowed acceptance rate every `every`
// steps. Wire it to any slog handler; a tinted console handler makes long
// runs pleasant to watch.
//
// SlogLogger is driven by a single chain and keeps its window counters
// unguarded; do not share one across chains.
type SlogLogger struct {
	log   *slog.Logger
	every int

	steps          int
	windowAccepted int
}

// NewSlogLogger builds a logger emitting a rate line every `every` steps.
// A nil log falls back to slog.Default(); a non-positive cadence becomes
// 100.
func NewSlogLogger(log *slog.Logger, every int) *SlogLogger {
	if log == nil {
		log = slog.Default()
	}
	if every <= 0 {
		every = 100 // Default
	}
	return &SlogLogger{log: log, every: every}
}

// Accept logs the step and folds it into the current window.
func (l *SlogLogger) Accept(_, proposed Sample, _ ProposalGenerator, _ Evaluator) {
	l.steps++
	l.windowAccepted++
	l.log.Debug("accepted", "step", l.steps, "proposal", proposed.Provenance)
	l.flush()
}

// Reject logs the step and folds it into the current window.
func (l *SlogLogger) Reject(_, proposed Sample, _ ProposalGenerator, _ Evaluator) {
	l.steps++
	l.log.Debug("rejected", "step", l.steps, "proposal", proposed.Provenance)
	l.flush()
}

func (l *SlogLogger) flush() {
	if l.steps%l.every != 0 {
		return
	}
	rate := float64(l.windowAccepted) / float64(l.every)
	l.log.Info("acceptance rate", "step", l.steps, "window", l.every, "rate", rate)
	l.windowAccepted = 0
}

// BestSampleLogger remembers the highest-scoring accepted sample of a run,
// the usual "point estimate" pulled out of a posterior exploration.
//
// Each accepted sample is re-scored through the evaluator the chain passes
// in. Behind a CachedEvaluator that re-score is a guaranteed cache hit; on
// a bare evaluator it doubles the cost of accepted steps.
type BestSampleLogger struct {
	best         Sample
	bestLogValue float64
	seen         bool
}

// NewBestSampleLogger returns an empty logger.
func NewBestSampleLogger() *BestSampleLogger {
	return &BestSampleLogger{}
}

// Accept re-scores the accepted sample and keeps it if it beats the best so
// far. A failing or -Inf score never replaces a finite best.
func (l *BestSampleLogger) Accept(_, proposed Sample, _ ProposalGenerator, evaluator Evaluator) {
	lv, err := evaluator.LogValue(proposed)
	if err != nil {
		return // Observers must not fail; the chain will surface this error itself
	}
	if !l.seen || lv > l.bestLogValue {
		l.best = proposed
		l.bestLogValue = lv
		l.seen = true
	}
}

// Reject is a no-op: a rejected candidate never becomes chain state.
func (l *BestSampleLogger) Reject(_, _ Sample, _ ProposalGenerator, _ Evaluator) {}

// Best returns the best accepted sample, its log-value, and whether any
// sample has been accepted yet.
func (l *BestSampleLogger) Best() (Sample, float64, bool) {
	return l.best, l.bestLogValue, l.seen
}
