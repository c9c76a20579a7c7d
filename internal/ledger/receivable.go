package ledger

import (
	"time"

	"ClinicCash/internal/config"

	"github.com/shopspring/decimal"
)

type ReceivableStatus string

const (
	ReceivablePending          ReceivableStatus = "pending"
	ReceivablePartiallySettled ReceivableStatus = "partially_settled"
	ReceivableSettled          ReceivableStatus = "settled"
)

// OriginKind classifies where a receivable will be paid from. Card
// receivables are matched against processor statements, insurance ones
// against the payer's claim report.
type OriginKind string

const (
	OriginCard      OriginKind = "card"
	OriginInsurance OriginKind = "insurance"
	OriginOther     OriginKind = "other"
)

// PendingReceivable is money the clinic expects to collect. Rows are created
// by the import side and mutated only through ApplySettlement; they are
// never physically removed.
type PendingReceivable struct {
	ID             string           `json:"id"`
	OccurredOn     time.Time        `json:"occurred_on"`
	Debtor         string           `json:"debtor"`
	SourceKey      string           `json:"source_key"`
	Origin         string           `json:"origin"`
	OriginKind     OriginKind       `json:"origin_kind"`
	GrossAmount    decimal.Decimal  `json:"gross_amount"`
	ResidualAmount decimal.Decimal  `json:"residual_amount"`
	Status         ReceivableStatus `json:"status"`
}

// ReceivablesBook is the whole-file snapshot of pending receivables.
type ReceivablesBook struct {
	Rows []PendingReceivable `json:"rows"`
}

// Variance is the recorded mismatch between what a batch was expected to
// settle and what actually settled. It is an audit note, not an error.
type Variance struct {
	Kind     string          `json:"kind"`
	Expected decimal.Decimal `json:"expected"`
	Actual   decimal.Decimal `json:"actual"`
	Delta    decimal.Decimal `json:"delta"`
}

func AmountTolerance() decimal.Decimal {
	return decimal.NewFromFloat(config.AmountTolerance)
}

func withinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(AmountTolerance())
}

// CreateIfAbsent inserts a receivable keyed by its source key. Reimporting
// the same billing export is a no-op. The book assigns the id; whatever the
// caller put in that field is ignored.
func (b *ReceivablesBook) CreateIfAbsent(r PendingReceivable) (PendingReceivable, bool) {
	for _, existing := range b.Rows {
		if existing.SourceKey == r.SourceKey {
			return existing, false
		}
	}
	r.ID = b.nextID()
	r.ResidualAmount = r.GrossAmount
	r.Status = ReceivablePending
	b.Rows = append(b.Rows, r)
	return r, true
}

// nextID continues the PEND_ numbering from the highest id ever assigned,
// including settled rows, so ids stay unique across the life of the book.
func (b *ReceivablesBook) nextID() string {
	max := 0
	for _, r := range b.Rows {
		if n, ok := parseReceivableID(r.ID); ok && n > max {
			max = n
		}
	}
	return formatReceivableID(max + 1)
}

func (b *ReceivablesBook) Find(id string) (*PendingReceivable, bool) {
	for i := range b.Rows {
		if b.Rows[i].ID == id {
			return &b.Rows[i], true
		}
	}
	return nil, false
}

// ListPending returns rows not yet fully settled, optionally filtered by
// origin kind and occurrence date range. Zero time bounds are open.
func (b *ReceivablesBook) ListPending(kind OriginKind, from, to time.Time) []PendingReceivable {
	var out []PendingReceivable
	for _, r := range b.Rows {
		if r.Status == ReceivableSettled {
			continue
		}
		if kind != "" && r.OriginKind != kind {
			continue
		}
		if !from.IsZero() && r.OccurredOn.Before(from) {
			continue
		}
		if !to.IsZero() && r.OccurredOn.After(to) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// SettlementOutcome reports what ApplySettlement did, row by row. Missing
// ids are structural failures of those rows only; the rest of the batch
// still settles.
type SettlementOutcome struct {
	Settled  []string
	Missing  []string
	Variance *Variance
}

// ApplySettlement decrements residuals for the selected receivables.
//
// When perID is nil the selected rows are settled in full and total (when
// positive) is the amount that actually arrived; a difference between that
// and the sum of the residuals beyond the tolerance is recorded as a
// variance, never rejected. When perID is given, each row is decremented by
// its own amount and total is ignored; the caller owns any cross-check of
// the partial amounts against the settlement side.
func (b *ReceivablesBook) ApplySettlement(ids []string, perID map[string]decimal.Decimal, total decimal.Decimal) SettlementOutcome {
	outcome := SettlementOutcome{}
	residualSum := decimal.Zero

	for _, id := range ids {
		row, ok := b.Find(id)
		if !ok {
			outcome.Missing = append(outcome.Missing, id)
			continue
		}
		residualSum = residualSum.Add(row.ResidualAmount)

		if perID == nil {
			row.ResidualAmount = decimal.Zero
		} else {
			row.ResidualAmount = row.ResidualAmount.Sub(perID[id])
			if row.ResidualAmount.IsNegative() {
				// Over-settlement is a business event, not a rejection; the
				// residual never goes below zero.
				row.ResidualAmount = decimal.Zero
			}
		}
		row.Status = statusForResidual(row.GrossAmount, row.ResidualAmount)
		outcome.Settled = append(outcome.Settled, id)
	}

	if perID == nil && total.IsPositive() && !withinTolerance(residualSum, total) {
		outcome.Variance = &Variance{
			Kind:     "settlement_variance",
			Expected: residualSum,
			Actual:   total,
			Delta:    total.Sub(residualSum),
		}
	}
	return outcome
}

func statusForResidual(gross, residual decimal.Decimal) ReceivableStatus {
	if residual.LessThanOrEqual(AmountTolerance()) {
		return ReceivableSettled
	}
	if residual.LessThan(gross) {
		return ReceivablePartiallySettled
	}
	return ReceivablePending
}
