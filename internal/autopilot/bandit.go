package autopilot

import (
	"math"
	"math/rand"
)

// BetaBandit is a Thompson-sampling bandit over media sources. Each
// source carries a Beta(alpha, beta) posterior starting at (1, 1);
// successes bump alpha, failures bump beta, and a recommendation samples
// every posterior and picks the highest draw. Used to choose which
// under-explored source to favor when spend history is too sparse for
// constraint-based allocation.
//
// The RNG is injected so runs are reproducible in tests and no package
// global leaks between ad groups.
type BetaBandit struct {
	rng   *rand.Rand
	order []string
	arms  map[string]*betaArm
}

type betaArm struct {
	alpha float64
	beta  float64
}

func NewBetaBandit(rng *rand.Rand, sources ...string) *BetaBandit {
	bandit := &BetaBandit{
		rng:  rng,
		arms: make(map[string]*betaArm, len(sources)),
	}
	for _, source := range sources {
		bandit.AddSource(source)
	}
	return bandit
}

// AddSource registers a source with the uninformed (1, 1) prior. Adding
// an existing source is a no-op.
func (b *BetaBandit) AddSource(source string) {
	if _, ok := b.arms[source]; ok {
		return
	}
	b.order = append(b.order, source)
	b.arms[source] = &betaArm{alpha: 1, beta: 1}
}

// AddResult records one success or failure observation for a source.
// Unknown sources are registered first.
func (b *BetaBandit) AddResult(source string, success bool) {
	b.AddSource(source)
	arm := b.arms[source]
	if success {
		arm.alpha++
	} else {
		arm.beta++
	}
}

// Recommend samples each source's posterior and returns the source with
// the highest draw, or "" when no sources are registered.
func (b *BetaBandit) Recommend() string {
	best := ""
	bestSample := math.Inf(-1)
	for _, source := range b.order {
		arm := b.arms[source]
		sample := sampleBeta(b.rng, arm.alpha, arm.beta)
		if sample > bestSample {
			bestSample = sample
			best = source
		}
	}
	return best
}

func sampleBeta(rng *rand.Rand, alpha, beta float64) float64 {
	x := sampleGamma(rng, alpha)
	y := sampleGamma(rng, beta)
	return x / (x + y)
}

// sampleGamma draws from Gamma(shape, 1) with the Marsaglia-Tsang method;
// shapes below one are boosted and corrected by a uniform power.
func sampleGamma(rng *rand.Rand, shape float64) float64 {
	if shape < 1 {
		return sampleGamma(rng, shape+1) * math.Pow(rng.Float64(), 1/shape)
	}
	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)
	for {
		x := rng.NormFloat64()
		v := 1 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}
