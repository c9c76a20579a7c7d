// Package anticipation reproduces the discount the card processor's bank
// applies when the clinic requests early payment of not-yet-due
// installments. The bank charges a daily rate on a 30-day-month convention
// over the actual days between the anticipation date and each installment's
// due date, so the math here has to match the bank's statement to the cent.
package anticipation

import (
	"time"

	"github.com/shopspring/decimal"
)

// InstallmentDetail is the per-installment breakdown of one calculation.
type InstallmentDetail struct {
	Number   int             `json:"number"`
	DueDate  time.Time       `json:"due_date"`
	Amount   decimal.Decimal `json:"amount"`
	Days     int             `json:"days_anticipated"`
	Discount decimal.Decimal `json:"discount"`
}

// Result keeps full precision; round only at presentation.
type Result struct {
	NetBeforeDiscount decimal.Decimal     `json:"net_before_discount"`
	TotalDiscount     decimal.Decimal     `json:"total_discount"`
	NetReceived       decimal.Decimal     `json:"net_received"`
	Installments      []InstallmentDetail `json:"installments"`
	// WeightedAverageDays is the amount-weighted mean of days anticipated.
	WeightedAverageDays decimal.Decimal `json:"weighted_average_days"`
}

// DueDates derives the installment schedule the bank assumes when none is
// printed on the statement: the first installment falls 31 calendar days
// after the sale, each following one lands a month later, clamped to the
// last day of shorter months.
func DueDates(saleDate time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	first := midnight(saleDate).AddDate(0, 0, 31)
	dates := make([]time.Time, n)
	for i := 0; i < n; i++ {
		dates[i] = addMonthsClamped(first, i)
	}
	return dates
}

// addMonthsClamped adds months keeping the day of month, pulling back to
// the last valid day when the target month is shorter. time.AddDate would
// overflow Jan 31 + 1 month into March; the bank does not.
func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	firstOfTarget := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), d, 0, 0, 0, 0, t.Location())
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(midnight(to).Sub(midnight(from)).Hours() / 24)
}

// Calculate computes the anticipation discount for a schedule of installment
// net amounts at the given monthly rate (percent, e.g. 2.80 means 2.80% per
// month). dueDates overrides the derived schedule when the statement lists
// explicit dates; pass nil otherwise. Pure; deterministic for equal inputs.
func Calculate(amounts []decimal.Decimal, monthlyRatePct float64, saleDate time.Time, dueDates []time.Time) Result {
	// Anticipation is credited the day after the sale.
	referenceDate := midnight(saleDate).AddDate(0, 0, 1)

	// 30-day-month convention, regardless of actual month lengths.
	dailyRate := decimal.NewFromFloat(monthlyRatePct).Div(decimal.NewFromInt(100)).Div(decimal.NewFromInt(30))

	schedule := dueDates
	if len(schedule) < len(amounts) {
		schedule = DueDates(saleDate, len(amounts))
	}

	res := Result{
		NetBeforeDiscount: decimal.Zero,
		TotalDiscount:     decimal.Zero,
	}
	weighted := decimal.Zero

	for i, amount := range amounts {
		due := midnight(schedule[i])
		days := daysBetween(referenceDate, due)

		discount := decimal.Zero
		if days > 0 {
			// An installment due on or before the anticipation date is
			// already matured and costs nothing to anticipate.
			discount = amount.Mul(dailyRate).Mul(decimal.NewFromInt(int64(days)))
		}

		res.NetBeforeDiscount = res.NetBeforeDiscount.Add(amount)
		res.TotalDiscount = res.TotalDiscount.Add(discount)
		weighted = weighted.Add(amount.Mul(decimal.NewFromInt(int64(days))))

		res.Installments = append(res.Installments, InstallmentDetail{
			Number:   i + 1,
			DueDate:  due,
			Amount:   amount,
			Days:     days,
			Discount: discount,
		})
	}

	res.NetReceived = res.NetBeforeDiscount.Sub(res.TotalDiscount)
	if res.NetBeforeDiscount.IsPositive() {
		res.WeightedAverageDays = weighted.Div(res.NetBeforeDiscount)
	}
	return res
}
