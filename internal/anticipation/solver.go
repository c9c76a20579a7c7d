package anticipation

import (
	"time"

	"ClinicCash/internal/config"

	"github.com/shopspring/decimal"
)

// Fit is the solver's best candidate. Residual is observed minus achieved;
// callers decide whether a large residual deserves a warning, the solver
// itself never fails.
type Fit struct {
	Rate     float64         `json:"rate"`
	Achieved decimal.Decimal `json:"achieved_discount"`
	Residual decimal.Decimal `json:"residual"`
}

// WithinTolerance reports whether the fit reproduces the observed discount
// closely enough to trust the rate. The residual is money, so the bound is
// the cent tolerance, not the solver's grid epsilon.
func (f Fit) WithinTolerance() bool {
	return f.Residual.Abs().LessThanOrEqual(decimal.NewFromFloat(config.AmountTolerance))
}

// SolveRate reverse-engineers the monthly rate that produces an observed
// discount. The statement prints the discount but not the effective rate,
// and the contractual rate is only approximate.
//
// The search is a local grid around the seed: seed + i*step for i in
// [-window, window], evaluated in order, keeping the candidate with minimum
// absolute difference and stopping early on an exact-enough hit. It assumes
// the true rate is near the seed; rates outside the window come back with a
// large residual instead of an error.
func SolveRate(observed decimal.Decimal, amounts []decimal.Decimal, saleDate time.Time, dueDates []time.Time, seed float64) Fit {
	if seed <= 0 {
		seed = config.DefaultSeedRate
	}
	epsilon := decimal.NewFromFloat(config.RateFitEpsilon)

	best := Fit{Rate: seed}
	bestDiff := decimal.Decimal{}
	first := true

	for i := -config.RateWindow; i <= config.RateWindow; i++ {
		rate := seed + float64(i)*config.RateStep
		achieved := Calculate(amounts, rate, saleDate, dueDates).TotalDiscount
		diff := observed.Sub(achieved).Abs()

		if first || diff.LessThan(bestDiff) {
			first = false
			bestDiff = diff
			best = Fit{
				Rate:     rate,
				Achieved: achieved,
				Residual: observed.Sub(achieved),
			}
			if diff.LessThan(epsilon) {
				break
			}
		}
	}
	return best
}
