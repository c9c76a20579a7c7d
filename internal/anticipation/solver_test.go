package anticipation

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestSolveRate_RecoversGridRate(t *testing.T) {
	sale := date(2025, time.August, 6)
	amounts := []decimal.Decimal{
		decimal.NewFromFloat(150),
		decimal.NewFromFloat(150),
		decimal.NewFromFloat(150),
	}
	trueRate := 2.8050
	observed := Calculate(amounts, trueRate, sale, nil).TotalDiscount

	fit := SolveRate(observed, amounts, sale, nil, 2.80)

	if math.Abs(fit.Rate-trueRate) > 1e-6 {
		t.Fatalf("expected rate %.4f, got %.4f", trueRate, fit.Rate)
	}
	// The matching grid point reproduces the discount up to float noise,
	// well under the solver's own epsilon.
	if fit.Residual.Abs().GreaterThanOrEqual(decimal.NewFromFloat(0.0001)) {
		t.Fatalf("expected a near-zero residual for a grid rate, got %s", fit.Residual)
	}
	if !fit.WithinTolerance() {
		t.Fatal("exact recovery should be within tolerance")
	}
}

func TestSolveRate_StatementExample(t *testing.T) {
	// The acquirer reported a 24.08 discount on a 284.08 five-installment
	// anticipation; the contractual rate was "about 2.81". The effective
	// rate works out near 2.8005.
	amounts := []decimal.Decimal{
		decimal.NewFromFloat(56.80),
		decimal.NewFromFloat(56.82),
		decimal.NewFromFloat(56.82),
		decimal.NewFromFloat(56.82),
		decimal.NewFromFloat(56.82),
	}
	observed := decimal.NewFromFloat(24.08)

	fit := SolveRate(observed, amounts, date(2025, time.August, 6), nil, 2.81)

	if math.Abs(fit.Rate-2.8005) > 0.001 {
		t.Fatalf("expected rate near 2.8005, got %.4f", fit.Rate)
	}
	if fit.Achieved.Sub(observed).Abs().GreaterThan(decimal.NewFromFloat(0.01)) {
		t.Fatalf("expected achieved discount within a cent of 24.08, got %s", fit.Achieved)
	}
	if !fit.WithinTolerance() {
		t.Fatalf("residual %s should be within the cent tolerance", fit.Residual)
	}
}

func TestSolveRate_DefaultSeedWhenUnset(t *testing.T) {
	amounts := []decimal.Decimal{decimal.NewFromFloat(200)}
	sale := date(2025, time.April, 1)
	observed := Calculate(amounts, 2.80, sale, nil).TotalDiscount

	fit := SolveRate(observed, amounts, sale, nil, 0)

	if math.Abs(fit.Rate-2.80) > 1e-9 {
		t.Fatalf("expected the default seed rate 2.80, got %.4f", fit.Rate)
	}
}

func TestSolveRate_RateOutsideWindowReportsResidual(t *testing.T) {
	amounts := []decimal.Decimal{
		decimal.NewFromFloat(500),
		decimal.NewFromFloat(500),
	}
	sale := date(2025, time.August, 6)
	// A discount no rate near the seed can produce.
	observed := Calculate(amounts, 9.99, sale, nil).TotalDiscount

	fit := SolveRate(observed, amounts, sale, nil, 2.80)

	if fit.WithinTolerance() {
		t.Fatal("an out-of-window rate must not look like a good fit")
	}
	if fit.Rate < 2.80 {
		t.Fatalf("best candidate should sit at the top of the window, got %.4f", fit.Rate)
	}
	if !fit.Residual.IsPositive() {
		t.Fatalf("observed above achievable should leave a positive residual, got %s", fit.Residual)
	}
}
