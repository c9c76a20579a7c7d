package importer

import (
	"context"
	"testing"
	"time"

	"ClinicCash/internal/ledger"
	"ClinicCash/internal/storage"

	"github.com/shopspring/decimal"
)

func billingInput(code string, amount float64) ReceivableInput {
	return ReceivableInput{
		OccurredOn:  time.Date(2025, time.August, 6, 0, 0, 0, 0, time.UTC),
		Debtor:      "ANA",
		Code:        code,
		PaymentForm: "CARTAO CREDITO",
		GrossAmount: decimal.NewFromFloat(amount),
	}
}

func TestIngestReceivables_IdempotentAcrossReimports(t *testing.T) {
	store := storage.NewMemoryStore()
	im := New(store)
	ctx := context.Background()

	first, err := im.IngestReceivables(ctx, []ReceivableInput{
		billingInput("1001", 150),
		billingInput("1002", 200),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Created != 2 || first.Duplicates != 0 {
		t.Fatalf("expected 2 created, got %+v", first)
	}

	// Reimporting the same export plus one new line.
	second, err := im.IngestReceivables(ctx, []ReceivableInput{
		billingInput("1001", 150),
		billingInput("1002", 200),
		billingInput("1003", 80),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Created != 1 || second.Duplicates != 2 {
		t.Fatalf("expected 1 created and 2 duplicates, got %+v", second)
	}
	if second.IDs[0] != "PEND_000003" {
		t.Fatalf("numbering must continue, got %v", second.IDs)
	}
}

func TestIngestSettlements_StampsProcessorAndDefaultsGross(t *testing.T) {
	store := storage.NewMemoryStore()
	im := New(store)
	ctx := context.Background()

	summary, err := im.IngestSettlements(ctx, storage.LedgerIPES, []ledger.SettlementRecord{
		{
			DueDate:   time.Date(2025, time.August, 25, 0, 0, 0, 0, time.UTC),
			NetAmount: decimal.NewFromFloat(200),
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Imported != 1 {
		t.Fatalf("expected 1 row, got %d", summary.Imported)
	}

	data, _, _ := store.Read(ctx, storage.LedgerIPES)
	if len(data) == 0 {
		t.Fatal("batch snapshot not written")
	}
	batch := &ledger.SettlementBatch{}
	readJSON(t, data, batch)
	row := batch.Rows[0]
	if row.Processor != ledger.PayerIPES {
		t.Fatalf("expected IPES processor, got %s", row.Processor)
	}
	// Insurance claims report a single amount; it serves as both sides.
	if !row.GrossAmount.Equal(row.NetAmount) {
		t.Fatalf("gross should default to net, got %s vs %s", row.GrossAmount, row.NetAmount)
	}
	if row.Status != ledger.SettlementPending {
		t.Fatalf("ingested rows start pending, got %s", row.Status)
	}
}

func TestIngestSettlements_IndexesContinueAcrossBatches(t *testing.T) {
	store := storage.NewMemoryStore()
	im := New(store)
	ctx := context.Background()

	rec := func(net float64) ledger.SettlementRecord {
		return ledger.SettlementRecord{
			DueDate:   time.Date(2025, time.August, 25, 0, 0, 0, 0, time.UTC),
			NetAmount: decimal.NewFromFloat(net),
		}
	}

	first, err := im.IngestSettlements(ctx, storage.LedgerGetnet, []ledger.SettlementRecord{rec(100), rec(50)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := im.IngestSettlements(ctx, storage.LedgerGetnet, []ledger.SettlementRecord{rec(80)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.Indexes[0] != 0 || first.Indexes[1] != 1 {
		t.Fatalf("first batch indexes wrong: %v", first.Indexes)
	}
	if second.Indexes[0] != 2 {
		t.Fatalf("second batch must continue numbering, got %v", second.Indexes)
	}
	if first.BatchID == "" || first.BatchID != second.BatchID {
		t.Fatalf("one ledger keeps one batch id, got %q and %q", first.BatchID, second.BatchID)
	}
}

func TestIngestSettlements_UnknownSourceFails(t *testing.T) {
	im := New(storage.NewMemoryStore())
	_, err := im.IngestSettlements(context.Background(), storage.LedgerJournal, []ledger.SettlementRecord{{}})
	if err == nil {
		t.Fatal("the journal is not a settlement source")
	}
}
