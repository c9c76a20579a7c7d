package recon

import (
	"ClinicCash/internal/anticipation"
	"ClinicCash/internal/ledger"
	"ClinicCash/internal/storage"

	"github.com/shopspring/decimal"
)

// OperationResult is the structured outcome of one reconciliation act:
// what was posted, what was closed, what varied, and what still needs a
// human. Never a bare boolean.
type OperationResult struct {
	OperationID  string `json:"operation_id"`
	Mode         Mode   `json:"mode"`
	Anticipation bool   `json:"anticipation"`

	Gross                decimal.Decimal `json:"gross"`
	Net                  decimal.Decimal `json:"net"`
	FeeTotal             decimal.Decimal `json:"fee_total"`
	ProcessorFee         decimal.Decimal `json:"processor_fee"`
	AnticipationDiscount decimal.Decimal `json:"anticipation_discount"`

	Posted []ledger.AccountMovement `json:"posted"`

	SettledReceivables []string `json:"settled_receivables,omitempty"`
	MissingReceivables []string `json:"missing_receivables,omitempty"`
	ClosedIndexes      []int    `json:"closed_indexes,omitempty"`
	FailedIndexes      []int    `json:"failed_indexes,omitempty"`

	Variances []ledger.Variance `json:"variances,omitempty"`

	// RateFit is set when an anticipation rate was solved from an observed
	// discount. RateFitWarning flags a residual beyond tolerance; the best
	// candidate is still used, the caller decides whether to warn.
	RateFit        *anticipation.Fit `json:"rate_fit,omitempty"`
	RateFitWarning bool              `json:"rate_fit_warning,omitempty"`

	// FollowUp lists conditions that need manual attention, such as rows
	// that failed to close after the journal was already written.
	FollowUp []string `json:"follow_up,omitempty"`

	JournalVersion     storage.Version `json:"journal_version"`
	ReceivablesVersion storage.Version `json:"receivables_version,omitempty"`
	SettlementVersion  storage.Version `json:"settlement_version,omitempty"`
}

func (r *OperationResult) addVariance(v *ledger.Variance) {
	if v != nil {
		r.Variances = append(r.Variances, *v)
	}
}

func (r *OperationResult) addFollowUp(note string) {
	r.FollowUp = append(r.FollowUp, note)
}
