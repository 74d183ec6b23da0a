// Package shapemc samples unnormalized posteriors over pose+shape
// parameters with Metropolis-Hastings.
//
// # Overview
//
// shapemc is the sampling core of a shape-model fitting pipeline. The
// domain side (shape models, meshes, images) stays outside: it plugs in
// through small function types, and the package drives the Markov chain,
// composes log-densities, mixes proposal kernels, memoizes evaluations and
// tracks acceptance behavior.
//
// # Architecture
//
// The package components:
//
//   - sample.go     - Parameters and Sample value types
//   - evaluator.go  - Evaluator capability, product and shape prior
//   - likelihood.go - Correspondence likelihoods over external shape models
//   - cache.go      - Memoizing evaluator decorator (LRU)
//   - proposal.go   - Random-walk block kernels and weighted mixtures
//   - chain.go      - The Metropolis-Hastings driver and its lazy iterator
//   - logger.go     - Step observers: acceptance tracking, slog, best sample
//   - summary.go    - Reductions over collected samples
//   - assertions.go - Test helpers for chain properties
//
// # Quick Start
//
// Sample a 1-dimensional standard normal and check its moments:
//
//	prior, err := shapemc.NewShapePriorEvaluator(1)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	walk, err := shapemc.NewShapeUpdateProposal(1, 0.5)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	rng := rand.New(rand.NewPCG(42, 0))
//	chain, err := shapemc.NewChain(prior, walk, rng)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	initial := shapemc.NewSample("init", shapemc.NewParameters(
//	    shapemc.Vec3{}, shapemc.Vec3{}, []float64{5.0}), shapemc.Vec3{})
//
//	tracker := shapemc.NewAcceptanceTracker()
//	it := chain.Iterator(initial, tracker)
//
//	if err := it.Drop(2000); err != nil { // Burn-in
//	    log.Fatal(err)
//	}
//	samples, err := it.Take(5000)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	series, _ := shapemc.CoefficientSeries(samples, 0)
//	mean, variance := stat.MeanVariance(series, nil)
//	fmt.Printf("μ = %.3f, σ² = %.3f\n", mean, variance)
//	fmt.Printf("acceptance: %v\n", tracker.AcceptanceRatios())
//
// # The Acceptance Rule
//
// Each step proposes a candidate and accepts or rejects it by the
// Metropolis-Hastings log-ratio:
//
//	Δ = [log p(candidate) + log T(candidate → current)]
//	  - [log p(current)   + log T(current → candidate)]
//
//	accept iff log(u) < Δ, u ~ Uniform[0,1)
//
// Where:
//   - p: the unnormalized target density (an Evaluator)
//   - T: the proposal transition density (a ProposalGenerator)
//   - Δ ≥ 0 always accepts; Δ = -Inf always rejects
//
// On rejection the chain emits the unchanged current sample again, so the
// emitted sequence has exactly one sample per step and empirical averages
// over it weight states correctly.
//
// Everything is computed in log space. A -Inf log-value is a legal score
// meaning "impossible sample", not an error; it drives rejection through
// the same ratio test as any other value.
//
// # Posteriors Are Products
//
// An unnormalized posterior is assembled from parts, in log space:
//
//	log posterior = log prior + log likelihood
//
// NewShapePriorEvaluator scores coefficients under the shape model's own
// standard-normal training distribution. CorrespondenceEvaluator (or its
// marginalized twin) scores observed landmarks against the model instance.
// NewProductEvaluator sums them, and NewCachedEvaluator memoizes the result
// behind a bit-exact key, so observers and summaries that re-score
// already-seen samples pay a map lookup instead of a model evaluation.
//
// # Proposal Mixtures
//
// Pose and shape live on different scales, so each gets its own random-walk
// kernel and step size, combined by weight:
//
//	generator, err := shapemc.NewMixtureProposal(
//	    shapemc.MixtureComponent{Weight: 0.6, Generator: shapeUpdate},
//	    shapemc.MixtureComponent{Weight: 0.2, Generator: rotationUpdate},
//	    shapemc.MixtureComponent{Weight: 0.2, Generator: translationUpdate},
//	)
//
// Each candidate carries the name of the kernel that produced it as its
// Provenance, which buys two things: per-kernel acceptance statistics, and
// transition-probability routing inside the mixture.
//
// # Reproducibility
//
// There is no global randomness anywhere in the package. Every stochastic
// call draws from the *rand.Rand handed to the chain, and each step
// consumes entropy in a fixed order (proposal first, then one acceptance
// uniform). A fixed seed therefore replays a bit-identical sample
// sequence:
//
//	rng := rand.New(rand.NewPCG(seed, 0))
//
// Logger counters and cache tables are instance-scoped and created fresh
// per run; nothing leaks across runs through package state.
//
// # Testing
//
// Use assertions to validate chain properties:
//
//	func TestMyPosterior(t *testing.T) {
//	    tracker := shapemc.NewAcceptanceTracker()
//	    samples := runChain(t, tracker)
//
//	    // Step sizes in the healthy random-walk band
//	    shapemc.AssertAcceptanceBetween(t, tracker, "shape-update(σ=0.1)", 0.2, 0.5)
//
//	    // Burned-in moments match the target
//	    series, _ := shapemc.CoefficientSeries(samples, 0)
//	    shapemc.AssertStationaryMoments(t, series, 0.0, 0.1, 1.0, 0.2)
//
//	    shapemc.PrintAcceptanceReport(t, tracker)
//	}
//
// # Philosophy
//
// A fitting pipeline answers: "What is the best shape?"
// shapemc answers: "What does the whole posterior look like?"
//
// - Is the fit certain or is the posterior wide?
// - Which parameters does the data actually constrain?
// - Is the chain exploring, or stuck? (acceptance ratios)
// - Can a colleague replay the exact run? (seeded sources)
//
// Point estimates fall out as by-products: MeanParameters over the
// collected samples, or the BestSampleLogger's maximum-posterior visit.
//
// # See Also
//
//   - examples/normal1d - smallest complete chain, moments checked
//   - examples/spherefit - pose+shape fitting against noisy landmarks
package shapemc
