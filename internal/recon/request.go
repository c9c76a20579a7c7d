package recon

import (
	"time"

	"ClinicCash/internal/ledger"
	"ClinicCash/internal/storage"

	"github.com/shopspring/decimal"
)

// Mode selects how the gross amount of an operation is derived.
type Mode string

const (
	// ModeFull settles the selected receivables completely; gross is the
	// sum of their residuals.
	ModeFull Mode = "full"
	// ModePartial applies caller-supplied amounts per receivable; gross is
	// the sum of the selected settlement rows.
	ModePartial Mode = "partial"
	// ModeUnlinked posts money that arrived with no open receivable, fee
	// free. Old installments from before the ledger existed land this way.
	ModeUnlinked Mode = "unlinked"
)

// AnticipationInput asks the engine to treat the operation as an early
// payment request. Either ObservedDiscount (read off the statement, rate
// solved locally around SeedRate) or RatePct must be set.
type AnticipationInput struct {
	SaleDate         time.Time        `json:"sale_date"`
	ObservedDiscount *decimal.Decimal `json:"observed_discount,omitempty"`
	RatePct          float64          `json:"rate_pct,omitempty"`
	SeedRate         float64          `json:"seed_rate,omitempty"`
	DueDates         []time.Time      `json:"due_dates,omitempty"`
}

// OperationRequest carries one reconciliation act. It is a plain value: the
// engine holds no selection state between calls.
type OperationRequest struct {
	Mode           Mode                       `json:"mode"`
	Source         storage.Ledger             `json:"source"`
	FileIndexes    []int                      `json:"file_indexes"`
	ReceivableIDs  []string                   `json:"receivable_ids,omitempty"`
	PartialAmounts map[string]decimal.Decimal `json:"partial_amounts,omitempty"`

	DestinationAccount ledger.Account `json:"destination_account"`
	PostedOn           time.Time      `json:"posted_on,omitempty"`

	// ManualNet overrides the settled amount for insurance claims. The
	// difference against the reported amount is recorded as a variance.
	ManualNet *decimal.Decimal `json:"manual_net,omitempty"`

	Anticipation *AnticipationInput `json:"anticipation,omitempty"`
}
