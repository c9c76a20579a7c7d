package anticipation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDueDates_FirstInstallment31DaysAfterSale(t *testing.T) {
	dates := DueDates(date(2025, time.August, 6), 5)
	expected := []time.Time{
		date(2025, time.September, 6),
		date(2025, time.October, 6),
		date(2025, time.November, 6),
		date(2025, time.December, 6),
		date(2026, time.January, 6),
	}
	if len(dates) != len(expected) {
		t.Fatalf("expected %d dates, got %d", len(expected), len(dates))
	}
	for i := range expected {
		if !dates[i].Equal(expected[i]) {
			t.Fatalf("installment %d: expected %s, got %s", i+1, expected[i], dates[i])
		}
	}
}

func TestDueDates_ClampsToMonthEnd(t *testing.T) {
	// Sale on July 31: first due Aug 31, then Sep 30 (clamped), Oct 31,
	// Nov 30. time.AddDate alone would skid Sep 31 into Oct 1.
	dates := DueDates(date(2025, time.July, 31), 4)
	expected := []time.Time{
		date(2025, time.August, 31),
		date(2025, time.September, 30),
		date(2025, time.October, 31),
		date(2025, time.November, 30),
	}
	for i := range expected {
		if !dates[i].Equal(expected[i]) {
			t.Fatalf("installment %d: expected %s, got %s", i+1, expected[i], dates[i])
		}
	}
}

func TestCalculate_SingleInstallmentThirtyDays(t *testing.T) {
	// 100.00 at 3% a.m. over exactly 30 days: 100 * (0.03/30) * 30 = 3.00.
	sale := date(2025, time.March, 10)
	due := []time.Time{date(2025, time.April, 10)}
	res := Calculate([]decimal.Decimal{decimal.NewFromFloat(100)}, 3.0, sale, due)

	if res.Installments[0].Days != 30 {
		t.Fatalf("expected 30 days anticipated, got %d", res.Installments[0].Days)
	}
	if !res.TotalDiscount.Equal(decimal.NewFromFloat(3)) {
		t.Fatalf("expected discount 3.00, got %s", res.TotalDiscount)
	}
	if !res.NetReceived.Equal(decimal.NewFromFloat(97)) {
		t.Fatalf("expected net 97.00, got %s", res.NetReceived)
	}
}

func TestCalculate_MaturedInstallmentCostsNothing(t *testing.T) {
	sale := date(2025, time.June, 15)
	// Due the day after the sale, which is the anticipation reference date.
	due := []time.Time{date(2025, time.June, 16)}
	res := Calculate([]decimal.Decimal{decimal.NewFromFloat(250)}, 2.8, sale, due)

	if !res.TotalDiscount.IsZero() {
		t.Fatalf("matured installment should cost nothing, got %s", res.TotalDiscount)
	}
	if !res.NetReceived.Equal(decimal.NewFromFloat(250)) {
		t.Fatalf("expected full amount back, got %s", res.NetReceived)
	}
}

func TestCalculate_StatementExample(t *testing.T) {
	// Five-installment credit sale of 2025-08-06 as reported by the
	// acquirer: 56.80 + 4 x 56.82, derived schedule, 30/60/91/121/152 days.
	amounts := []decimal.Decimal{
		decimal.NewFromFloat(56.80),
		decimal.NewFromFloat(56.82),
		decimal.NewFromFloat(56.82),
		decimal.NewFromFloat(56.82),
		decimal.NewFromFloat(56.82),
	}
	res := Calculate(amounts, 2.8005, date(2025, time.August, 6), nil)

	wantDays := []int{30, 60, 91, 121, 152}
	for i, d := range wantDays {
		if res.Installments[i].Days != d {
			t.Fatalf("installment %d: expected %d days, got %d", i+1, d, res.Installments[i].Days)
		}
	}
	if !res.NetBeforeDiscount.Equal(decimal.NewFromFloat(284.08)) {
		t.Fatalf("expected gross 284.08, got %s", res.NetBeforeDiscount)
	}
	if res.TotalDiscount.Sub(decimal.NewFromFloat(24.08)).Abs().GreaterThan(decimal.NewFromFloat(0.01)) {
		t.Fatalf("expected discount within a cent of 24.08, got %s", res.TotalDiscount)
	}
	if res.NetReceived.Sub(decimal.NewFromFloat(260.00)).Abs().GreaterThan(decimal.NewFromFloat(0.01)) {
		t.Fatalf("expected net within a cent of 260.00, got %s", res.NetReceived)
	}
}

func TestCalculate_WeightedAverageDays(t *testing.T) {
	sale := date(2025, time.May, 1)
	due := []time.Time{
		date(2025, time.May, 12), // 10 days from reference
		date(2025, time.June, 1), // 30 days
	}
	amounts := []decimal.Decimal{
		decimal.NewFromFloat(300),
		decimal.NewFromFloat(100),
	}
	res := Calculate(amounts, 2.8, sale, due)

	// (300*10 + 100*30) / 400 = 15, not the plain mean of 20.
	if !res.WeightedAverageDays.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("expected weighted average 15 days, got %s", res.WeightedAverageDays)
	}
}
