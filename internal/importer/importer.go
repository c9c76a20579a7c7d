package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"ClinicCash/internal/ledger"
	"ClinicCash/internal/logger"
	"ClinicCash/internal/storage"
)

// writeAttempts bounds the reload-and-retry loop on version conflicts.
// Imports commute with each other, so replaying an append is always safe.
const writeAttempts = 3

type Importer struct {
	store storage.Store
}

func New(store storage.Store) *Importer {
	return &Importer{store: store}
}

// StatementSummary reports one statement import: how many rows landed,
// their file indexes, and how many source lines were dropped by filters.
type StatementSummary struct {
	BatchID  string `json:"batch_id"`
	Imported int    `json:"imported"`
	Skipped  int    `json:"skipped"`
	Indexes  []int  `json:"indexes,omitempty"`
}

// ReceivablesSummary reports a billing ingestion. Duplicates are re-imports
// of lines the book already tracks, dropped by source key.
type ReceivablesSummary struct {
	Created    int      `json:"created"`
	Duplicates int      `json:"duplicates"`
	IDs        []string `json:"ids,omitempty"`
}

// ImportStatement parses one uploaded processor statement and appends its
// rows to the source's batch. Insurance claims have no machine-readable
// statement here; they arrive through IngestSettlements.
func (im *Importer) ImportStatement(ctx context.Context, source storage.Ledger, filename string, r io.ReadSeeker) (*StatementSummary, error) {
	var rows []ledger.SettlementRecord
	var skipped int
	var err error
	switch source {
	case storage.LedgerMulvi:
		rows, skipped, err = ParseMulvi(r, filename)
	case storage.LedgerGetnet:
		rows, skipped, err = ParseGetnet(r)
	default:
		return nil, fmt.Errorf("%q has no statement parser", source)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("statement %s has no importable rows (%d skipped)", filename, skipped)
	}

	summary, err := im.appendRows(ctx, source, rows)
	if err != nil {
		return nil, err
	}
	summary.Skipped = skipped
	logger.Audit("imported %s statement %s: %d rows, %d skipped, batch %s",
		source, filename, summary.Imported, skipped, summary.BatchID)
	return summary, nil
}

// IngestSettlements appends caller-supplied settlement rows, used for
// sources without a file parser such as the insurance claim report.
func (im *Importer) IngestSettlements(ctx context.Context, source storage.Ledger, rows []ledger.SettlementRecord) (*StatementSummary, error) {
	if len(rows) == 0 {
		return nil, errors.New("no settlement rows to ingest")
	}
	processor := processorFor(source)
	if processor == "" {
		return nil, fmt.Errorf("%q is not a settlement source", source)
	}
	for i := range rows {
		rows[i].Processor = processor
		if rows[i].GrossAmount.IsZero() {
			rows[i].GrossAmount = rows[i].NetAmount
		}
	}
	summary, err := im.appendRows(ctx, source, rows)
	if err != nil {
		return nil, err
	}
	logger.Audit("ingested %d %s settlement rows, batch %s", summary.Imported, source, summary.BatchID)
	return summary, nil
}

// IngestReceivables creates pending receivables for billing lines the book
// does not already track.
func (im *Importer) IngestReceivables(ctx context.Context, inputs []ReceivableInput) (*ReceivablesSummary, error) {
	if len(inputs) == 0 {
		return nil, errors.New("no receivables to ingest")
	}

	var lastErr error
	for attempt := 0; attempt < writeAttempts; attempt++ {
		book := &ledger.ReceivablesBook{}
		ver, err := loadSnapshot(ctx, im.store, storage.LedgerReceivables, book)
		if err != nil {
			return nil, err
		}

		summary := &ReceivablesSummary{}
		for _, in := range inputs {
			row, created := book.CreateIfAbsent(buildReceivable(in))
			if created {
				summary.Created++
				summary.IDs = append(summary.IDs, row.ID)
			} else {
				summary.Duplicates++
			}
		}
		if summary.Created == 0 {
			return summary, nil
		}

		data, err := json.Marshal(book)
		if err != nil {
			return nil, fmt.Errorf("failed to encode receivables: %w", err)
		}
		if _, err := im.store.Write(ctx, storage.LedgerReceivables, data, ver); err != nil {
			if errors.Is(err, storage.ErrVersionConflict) {
				lastErr = err
				continue
			}
			return nil, err
		}
		logger.Audit("ingested receivables: %d created, %d duplicates", summary.Created, summary.Duplicates)
		return summary, nil
	}
	return nil, fmt.Errorf("receivables ingestion kept conflicting: %w", lastErr)
}

func (im *Importer) appendRows(ctx context.Context, source storage.Ledger, rows []ledger.SettlementRecord) (*StatementSummary, error) {
	var lastErr error
	for attempt := 0; attempt < writeAttempts; attempt++ {
		batch := &ledger.SettlementBatch{Source: string(source)}
		ver, err := loadSnapshot(ctx, im.store, source, batch)
		if err != nil {
			return nil, err
		}
		if batch.BatchID == "" {
			batch.BatchID = ledger.NewBatchID()
		}

		appended := batch.Append(rows)
		data, err := json.Marshal(batch)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s batch: %w", source, err)
		}
		if _, err := im.store.Write(ctx, source, data, ver); err != nil {
			if errors.Is(err, storage.ErrVersionConflict) {
				lastErr = err
				continue
			}
			return nil, err
		}

		summary := &StatementSummary{BatchID: batch.BatchID, Imported: len(appended)}
		for _, r := range appended {
			summary.Indexes = append(summary.Indexes, r.FileIndex)
		}
		return summary, nil
	}
	return nil, fmt.Errorf("statement import kept conflicting: %w", lastErr)
}

func processorFor(source storage.Ledger) ledger.Processor {
	switch source {
	case storage.LedgerMulvi:
		return ledger.ProcessorMulvi
	case storage.LedgerGetnet:
		return ledger.ProcessorGetnet
	case storage.LedgerIPES:
		return ledger.PayerIPES
	}
	return ""
}

func loadSnapshot(ctx context.Context, store storage.Store, name storage.Ledger, target interface{}) (storage.Version, error) {
	data, ver, err := store.Read(ctx, name)
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return ver, nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return 0, fmt.Errorf("corrupt snapshot %s: %w", name, err)
	}
	return ver, nil
}
