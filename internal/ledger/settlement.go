package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Processor tags which external party reported a settlement row. The raw
// statement shapes differ per processor; rows are normalized at import and
// the original columns ride along in Raw for audit only.
type Processor string

const (
	ProcessorMulvi  Processor = "MULVI"
	ProcessorGetnet Processor = "GETNET"
	PayerIPES       Processor = "IPES"
)

type SettlementStatus string

const (
	SettlementPending SettlementStatus = "pending"
	SettlementSettled SettlementStatus = "settled"
	// SettlementProcessed marks rows consumed by an anticipation, so paid
	// early rows stay distinguishable from rows paid at normal maturity.
	SettlementProcessed SettlementStatus = "processed"
)

// SettlementRecord is one externally reported transaction. These rows have
// no natural key; FileIndex, assigned once at import, is the only stable
// handle back to the source batch and must survive any sort or filter.
type SettlementRecord struct {
	FileIndex    int               `json:"file_index"`
	Processor    Processor         `json:"processor"`
	DueDate      time.Time         `json:"due_date"`
	GrossAmount  decimal.Decimal   `json:"gross_amount"`
	NetAmount    decimal.Decimal   `json:"net_amount"`
	Installment  int               `json:"installment"`
	Installments int               `json:"installments"`
	Status       SettlementStatus  `json:"status"`
	Raw          map[string]string `json:"raw,omitempty"`
}

// SettlementBatch is the whole-file snapshot of one imported statement.
// Rows are appended by the importer and only ever mutated by status flip.
type SettlementBatch struct {
	Source  string             `json:"source"`
	BatchID string             `json:"batch_id,omitempty"`
	Rows    []SettlementRecord `json:"rows"`
}

// ByFileIndex resolves a row by its import index, not by slice position.
func (b *SettlementBatch) ByFileIndex(idx int) (*SettlementRecord, bool) {
	for i := range b.Rows {
		if b.Rows[i].FileIndex == idx {
			return &b.Rows[i], true
		}
	}
	return nil, false
}

// Pending returns the rows still available for matching.
func (b *SettlementBatch) Pending() []SettlementRecord {
	var out []SettlementRecord
	for _, r := range b.Rows {
		if r.Status == SettlementPending {
			out = append(out, r)
		}
	}
	return out
}

// MarkStatus flips the selected rows out of pending. A row that is missing
// from the batch or already flipped is reported back instead of touched, so
// a row leaves pending exactly once.
func (b *SettlementBatch) MarkStatus(indexes []int, status SettlementStatus) (flipped []int, failed []int) {
	for _, idx := range indexes {
		row, ok := b.ByFileIndex(idx)
		if !ok || row.Status != SettlementPending {
			failed = append(failed, idx)
			continue
		}
		row.Status = status
		flipped = append(flipped, idx)
	}
	return flipped, failed
}

// Append adds imported rows, assigning file indexes that continue from the
// highest index already present.
func (b *SettlementBatch) Append(rows []SettlementRecord) []SettlementRecord {
	next := 0
	for _, r := range b.Rows {
		if r.FileIndex >= next {
			next = r.FileIndex + 1
		}
	}
	appended := make([]SettlementRecord, 0, len(rows))
	for _, r := range rows {
		r.FileIndex = next
		next++
		if r.Status == "" {
			r.Status = SettlementPending
		}
		b.Rows = append(b.Rows, r)
		appended = append(appended, r)
	}
	return appended
}
