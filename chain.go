package shapemc

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

// ErrNilRandomSource reports a missing random source. Every stochastic call
// in this package draws from an explicit *rand.Rand; there is no global
// fallback, because a global source would silently break reproducibility.
var ErrNilRandomSource = errors.New("shapemc: random source must not be nil")

// Chain is a Metropolis-Hastings sampler: an evaluator scoring the target
// density, a proposal generator producing candidates, and a random source
// driving both the proposals and the accept/reject draws.
//
// A Chain holds no per-run state. Each call to Iterator starts an
// independent run with its own cursor; the chain's rng is shared across
// runs started from the same Chain, so interleaving two iterators from one
// Chain interleaves their entropy. For reproducible runs, give each chain
// its own seeded source:
//
//	rng := rand.New(rand.NewPCG(42, 0))
//	chain, err := shapemc.NewChain(posterior, generator, rng)
//	it := chain.Iterator(initial, tracker)
//	_ = it.Drop(2000)            // Burn-in
//	samples, err := it.Take(5000)
//
// Everything is single-threaded: one goroutine pulls samples, and each step
// runs to completion between pulls. Stopping is simply not pulling again.
type Chain struct {
	evaluator Evaluator
	generator ProposalGenerator
	rng       *rand.Rand
}

// NewChain validates the collaborators and builds a chain.
func NewChain(evaluator Evaluator, generator ProposalGenerator, rng *rand.Rand) (*Chain, error) {
	if evaluator == nil {
		return nil, ErrNilEvaluator
	}
	if generator == nil {
		return nil, ErrNilGenerator
	}
	if rng == nil {
		return nil, ErrNilRandomSource
	}
	return &Chain{evaluator: evaluator, generator: generator, rng: rng}, nil
}

// Iterator starts a run seeded at initial and returns the pull-based sample
// stream. The initial sample is not emitted; it is the state the first step
// starts from, and it is scored lazily on the first pull. Loggers observe
// every step, in the order given; nil loggers are skipped.
func (c *Chain) Iterator(initial Sample, loggers ...Logger) *Iterator {
	ls := make([]Logger, 0, len(loggers))
	for _, l := range loggers {
		if l != nil {
			ls = append(ls, l)
		}
	}
	return &Iterator{
		chain:   c,
		current: initial,
		loggers: ls,
	}
}

// Iterator is the lazy, conceptually infinite sample stream of one chain
// run. It owns the mutable cursor: the current sample and its log-value.
// Work happens only inside Next; between pulls the iterator is inert.
//
// The per-step algorithm:
//
//	candidate = generator.Propose(rng, current)
//	Δ = [logp(candidate) + logT(candidate→current)]
//	  - [logp(current)   + logT(current→candidate)]
//	accept iff log(u) < Δ, u ~ Uniform[0,1)
//
// On accept the candidate becomes the cursor and is emitted; on reject the
// cursor is unchanged and emitted again. Exactly one sample per pull either
// way, which is what makes drop/take arithmetic exact.
//
// All arithmetic stays in log space. A -Inf candidate score makes Δ = -Inf
// and the candidate is rejected. When both scores are -Inf, Δ is NaN and
// the comparison fails, again a rejection: the chain never walks from one
// impossible state to another.
//
// The cursor's log-value is computed once and reused until the cursor moves,
// so a run of n steps costs exactly n+1 evaluator calls (one for the initial
// sample, one per candidate), independent of how many steps reject.
//
// Errors are sticky. Once a proposal or evaluation fails, the iterator
// remembers the failure, annotated with the step and provenance that caused
// it, and every later pull returns it unchanged. There is no retry: the
// failed candidate would just fail again.
type Iterator struct {
	chain   *Chain
	loggers []Logger

	current         Sample
	currentLogValue float64
	scored          bool

	steps int
	err   error
}

// Next advances the chain one step and returns the emitted sample.
func (it *Iterator) Next() (Sample, error) {
	if it.err != nil {
		return Sample{}, it.err
	}
	c := it.chain
	step := it.steps + 1

	if !it.scored {
		lv, err := c.evaluator.LogValue(it.current)
		if err != nil {
			return Sample{}, it.fail(fmt.Errorf("step %d: scoring initial sample %q: %w", step, it.current.Provenance, err))
		}
		it.currentLogValue = lv
		it.scored = true
	}

	candidate, err := c.generator.Propose(c.rng, it.current)
	if err != nil {
		return Sample{}, it.fail(fmt.Errorf("step %d: proposal %q: %w", step, c.generator.Name(), err))
	}
	candidateLogValue, err := c.evaluator.LogValue(candidate)
	if err != nil {
		return Sample{}, it.fail(fmt.Errorf("step %d: scoring candidate %q: %w", step, candidate.Provenance, err))
	}

	forward := c.generator.LogTransitionProbability(it.current, candidate)
	backward := c.generator.LogTransitionProbability(candidate, it.current)
	delta := (candidateLogValue + backward) - (it.currentLogValue + forward)

	// One uniform per step, drawn after the proposal, so the entropy
	// stream has a fixed shape and a fixed seed replays the exact run.
	u := c.rng.Float64()
	accepted := math.Log(u) < delta

	previous := it.current
	it.steps = step
	if accepted {
		it.current = candidate
		it.currentLogValue = candidateLogValue
		for _, l := range it.loggers {
			l.Accept(previous, candidate, c.generator, c.evaluator)
		}
		return candidate, nil
	}
	for _, l := range it.loggers {
		l.Reject(previous, candidate, c.generator, c.evaluator)
	}
	return it.current, nil
}

// Drop advances n steps and discards the emitted samples. This is the
// burn-in operation: the steps still run in full (propose, evaluate,
// accept/reject, notify loggers), only the emitted values are thrown away.
func (it *Iterator) Drop(n int) error {
	for i := 0; i < n; i++ {
		if _, err := it.Next(); err != nil {
			return err
		}
	}
	return nil
}

// Take advances n steps and collects the emitted samples. On failure it
// returns the samples collected before the failing step along with the
// error.
func (it *Iterator) Take(n int) ([]Sample, error) {
	if n <= 0 {
		return nil, nil
	}
	samples := make([]Sample, 0, n)
	for i := 0; i < n; i++ {
		s, err := it.Next()
		if err != nil {
			return samples, err
		}
		samples = append(samples, s)
	}
	return samples, nil
}

// Current returns the cursor: the initial sample before the first pull, the
// most recently emitted sample after.
func (it *Iterator) Current() Sample {
	return it.current
}

// Steps returns the number of completed steps.
func (it *Iterator) Steps() int {
	return it.steps
}

// Err returns the sticky error, nil while the iterator is healthy.
func (it *Iterator) Err() error {
	return it.err
}

func (it *Iterator) fail(err error) error {
	it.err = err
	return err
}
