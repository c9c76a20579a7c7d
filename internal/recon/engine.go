// Package recon matches pending receivables against externally reported
// settlement rows and posts the resulting money movements. One call to
// Reconcile runs one operation through Selected, Computed, Posted and
// Closed; the journal is always written before any status flips, so a crash
// in between reads as money posted but not yet marked settled, never the
// reverse.
package recon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ClinicCash/internal/anticipation"
	"ClinicCash/internal/config"
	"ClinicCash/internal/ledger"
	"ClinicCash/internal/logger"
	"ClinicCash/internal/storage"

	"github.com/shopspring/decimal"
)

type Engine struct {
	store storage.Store
	now   func() time.Time
}

func NewEngine(store storage.Store) *Engine {
	return &Engine{store: store, now: time.Now}
}

// Reconcile runs one reconciliation act. Business mismatches come back as
// variances inside the result; only structural problems (bad request, rows
// gone, storage conflicts) surface as errors. A version-conflict error
// after posting means the journal rows exist but some status flips did not
// land; the result says which.
func (e *Engine) Reconcile(ctx context.Context, req OperationRequest) (*OperationResult, error) {
	if err := validateRequest(&req); err != nil {
		return nil, err
	}

	res := &OperationResult{
		OperationID:  ledger.NewOperationID(),
		Mode:         req.Mode,
		Anticipation: req.Anticipation != nil,
	}

	// Selected: resolve settlement rows by file index and receivables by id
	// against the latest snapshots. Rows that are gone or already consumed
	// fail individually without dragging the batch down.
	batch, batchVer, err := e.loadBatch(ctx, req.Source)
	if err != nil {
		return nil, err
	}
	var selected []*ledger.SettlementRecord
	for _, idx := range req.FileIndexes {
		row, ok := batch.ByFileIndex(idx)
		if !ok || row.Status != ledger.SettlementPending {
			res.FailedIndexes = append(res.FailedIndexes, idx)
			continue
		}
		selected = append(selected, row)
	}
	if len(selected) == 0 {
		return res, fmt.Errorf("none of the selected settlement rows are available in %s", req.Source)
	}

	var book *ledger.ReceivablesBook
	var bookVer storage.Version
	var selectedIDs []string
	if req.Mode != ModeUnlinked {
		book, bookVer, err = e.loadBook(ctx)
		if err != nil {
			return nil, err
		}
		for _, id := range req.ReceivableIDs {
			row, ok := book.Find(id)
			if !ok || row.Status == ledger.ReceivableSettled {
				res.MissingReceivables = append(res.MissingReceivables, id)
				continue
			}
			selectedIDs = append(selectedIDs, id)
		}
		if len(selectedIDs) == 0 {
			return res, errors.New("none of the selected receivables are open")
		}
	}

	// Computed: derive gross, net and fee for the mode, splitting out the
	// anticipation discount when early payment was requested.
	settlementGross := decimal.Zero
	settlementNet := decimal.Zero
	for _, row := range selected {
		settlementGross = settlementGross.Add(row.GrossAmount)
		settlementNet = settlementNet.Add(row.NetAmount)
	}

	net := settlementNet
	if req.ManualNet != nil {
		net = *req.ManualNet
		if !withinTolerance(settlementNet, net) {
			res.Variances = append(res.Variances, ledger.Variance{
				Kind:     "manual_override",
				Expected: settlementNet,
				Actual:   net,
				Delta:    net.Sub(settlementNet),
			})
		}
	}

	switch req.Mode {
	case ModeFull:
		res.Gross = decimal.Zero
		for _, id := range selectedIDs {
			row, _ := book.Find(id)
			res.Gross = res.Gross.Add(row.ResidualAmount)
		}
	case ModePartial:
		res.Gross = settlementGross
		partialSum := decimal.Zero
		for _, id := range selectedIDs {
			partialSum = partialSum.Add(req.PartialAmounts[id])
		}
		if !withinTolerance(partialSum, settlementGross) {
			res.Variances = append(res.Variances, ledger.Variance{
				Kind:     "settlement_variance",
				Expected: settlementGross,
				Actual:   partialSum,
				Delta:    partialSum.Sub(settlementGross),
			})
		}
	case ModeUnlinked:
		// Money with no counterpart debt. The amount that arrived is both
		// gross and net; no fee is recognized.
		res.Gross = settlementNet
		net = settlementNet
	}

	res.AnticipationDiscount = decimal.Zero
	if req.Anticipation != nil {
		res.AnticipationDiscount = e.anticipationDiscount(req.Anticipation, selected, res)
	}

	res.ProcessorFee = res.Gross.Sub(net)
	if req.Mode == ModeUnlinked {
		res.ProcessorFee = decimal.Zero
	}
	res.Net = net.Sub(res.AnticipationDiscount)
	res.FeeTotal = res.ProcessorFee.Add(res.AnticipationDiscount)

	// Posted: journal rows first, sharing one operation id. Fees are
	// separate negative rows, never netted into the principal.
	postedOn := e.postingDate(req, selected)
	proc := processorName(req.Source)
	rows := []ledger.AccountMovement{{
		PostedOn:    postedOn,
		Account:     req.DestinationAccount,
		Amount:      res.Net,
		Category:    "RECEBIMENTO",
		Subcategory: principalSubcategory(req, proc),
		Memo:        principalMemo(req, book, selectedIDs),
		OperationID: res.OperationID,
	}}
	if res.ProcessorFee.GreaterThan(tolerance()) {
		rows = append(rows, ledger.AccountMovement{
			PostedOn:    postedOn,
			Account:     req.DestinationAccount,
			Amount:      res.ProcessorFee.Neg(),
			Category:    "DESPESA FINANCEIRA",
			Subcategory: "TAXA " + proc,
			Memo:        "Taxa sobre recebimento " + proc,
			OperationID: res.OperationID,
		})
	}
	if res.AnticipationDiscount.GreaterThan(tolerance()) {
		rows = append(rows, ledger.AccountMovement{
			PostedOn:    postedOn,
			Account:     req.DestinationAccount,
			Amount:      res.AnticipationDiscount.Neg(),
			Category:    "DESPESA FINANCEIRA",
			Subcategory: "ANTECIPACAO " + proc,
			Memo:        anticipationMemo(res),
			OperationID: res.OperationID,
		})
	}

	journal, journalVer, err := e.loadJournal(ctx)
	if err != nil {
		return nil, err
	}
	journal.Append(rows...)
	journalData, err := json.Marshal(journal)
	if err != nil {
		return nil, fmt.Errorf("failed to encode journal: %w", err)
	}
	newJournalVer, err := e.store.Write(ctx, storage.LedgerJournal, journalData, journalVer)
	if err != nil {
		// Nothing was persisted yet; the whole operation can simply be
		// retried against fresh snapshots.
		return nil, fmt.Errorf("journal write for operation %s: %w", res.OperationID, err)
	}
	res.Posted = rows
	res.JournalVersion = newJournalVer

	// Closed: flip receivables first, then the settlement rows. From here
	// on a failure must not discard the posted journal rows, so close
	// problems are reported per handle and the error is retryable.
	var closeErr error
	if req.Mode != ModeUnlinked {
		closeErr = e.closeReceivables(ctx, req, res, book, bookVer, selectedIDs, settlementGross)
	}
	if err := e.closeSettlements(ctx, req, res, batch, batchVer); err != nil && closeErr == nil {
		closeErr = err
	}

	logger.Audit("operation %s mode=%s source=%s gross=%s net=%s fee=%s closed=%d failed=%d",
		res.OperationID, res.Mode, req.Source, res.Gross.Round(2), res.Net.Round(2),
		res.FeeTotal.Round(2), len(res.ClosedIndexes), len(res.FailedIndexes))
	for _, v := range res.Variances {
		logger.Audit("operation %s variance %s expected=%s actual=%s delta=%s",
			res.OperationID, v.Kind, v.Expected.Round(2), v.Actual.Round(2), v.Delta.Round(2))
	}

	if closeErr != nil {
		return res, fmt.Errorf("operation %s posted but not fully closed: %w", res.OperationID, closeErr)
	}
	return res, nil
}

// anticipationDiscount resolves the discount either from a known rate or by
// solving for the rate that reproduces the observed discount.
func (e *Engine) anticipationDiscount(in *AnticipationInput, selected []*ledger.SettlementRecord, res *OperationResult) decimal.Decimal {
	amounts := make([]decimal.Decimal, len(selected))
	for i, row := range selected {
		amounts[i] = row.NetAmount
	}
	dueDates := in.DueDates
	if len(dueDates) == 0 {
		dueDates = statementDueDates(selected)
	}

	if in.ObservedDiscount != nil {
		fit := anticipation.SolveRate(*in.ObservedDiscount, amounts, in.SaleDate, dueDates, in.SeedRate)
		res.RateFit = &fit
		if !fit.WithinTolerance() {
			res.RateFitWarning = true
			res.addFollowUp(fmt.Sprintf("anticipation rate fit residual %s exceeds tolerance; best rate %.4f%%",
				fit.Residual.Round(4), fit.Rate))
		}
		return fit.Achieved
	}
	return anticipation.Calculate(amounts, in.RatePct, in.SaleDate, dueDates).TotalDiscount
}

// statementDueDates uses the due dates the statement reports when every
// selected row has one; otherwise the calculator derives the schedule.
func statementDueDates(selected []*ledger.SettlementRecord) []time.Time {
	dates := make([]time.Time, len(selected))
	for i, row := range selected {
		if row.DueDate.IsZero() {
			return nil
		}
		dates[i] = row.DueDate
	}
	return dates
}

func (e *Engine) closeReceivables(ctx context.Context, req OperationRequest, res *OperationResult,
	book *ledger.ReceivablesBook, bookVer storage.Version, ids []string, settlementGross decimal.Decimal) error {

	var perID map[string]decimal.Decimal
	total := decimal.Zero
	if req.Mode == ModePartial {
		perID = req.PartialAmounts
	} else {
		total = settlementGross
	}

	for attempt := 0; ; attempt++ {
		outcome := book.ApplySettlement(ids, perID, total)
		res.SettledReceivables = outcome.Settled
		res.addVariance(outcome.Variance)

		data, err := json.Marshal(book)
		if err != nil {
			return fmt.Errorf("failed to encode receivables: %w", err)
		}
		newVer, err := e.store.Write(ctx, storage.LedgerReceivables, data, bookVer)
		if err == nil {
			res.ReceivablesVersion = newVer
			return nil
		}
		if !errors.Is(err, storage.ErrVersionConflict) || attempt > 0 {
			res.SettledReceivables = nil
			res.addFollowUp("receivables not marked settled, retry the close for: " + strings.Join(ids, ", "))
			return err
		}
		// The book moved under us; replay against the fresh snapshot. Rows
		// settled by the concurrent writer drop out as missing.
		book, bookVer, err = e.loadBook(ctx)
		if err != nil {
			return err
		}
		res.Variances = trimVariance(res.Variances, outcome.Variance)
		still := ids[:0:0]
		for _, id := range ids {
			if row, ok := book.Find(id); ok && row.Status != ledger.ReceivableSettled {
				still = append(still, id)
			} else {
				res.MissingReceivables = append(res.MissingReceivables, id)
			}
		}
		ids = still
		if len(ids) == 0 {
			res.SettledReceivables = nil
			return nil
		}
	}
}

func (e *Engine) closeSettlements(ctx context.Context, req OperationRequest, res *OperationResult,
	batch *ledger.SettlementBatch, batchVer storage.Version) error {

	target := ledger.SettlementSettled
	if req.Anticipation != nil {
		target = ledger.SettlementProcessed
	}

	indexes := req.FileIndexes
	for attempt := 0; ; attempt++ {
		flipped, failed := batch.MarkStatus(indexes, target)
		res.ClosedIndexes = flipped
		mergeFailed(res, failed)

		data, err := json.Marshal(batch)
		if err != nil {
			return fmt.Errorf("failed to encode settlement batch: %w", err)
		}
		newVer, err := e.store.Write(ctx, req.Source, data, batchVer)
		if err == nil {
			res.SettlementVersion = newVer
			return nil
		}
		if !errors.Is(err, storage.ErrVersionConflict) || attempt > 0 {
			res.ClosedIndexes = nil
			mergeFailed(res, flipped)
			res.addFollowUp(fmt.Sprintf("settlement rows in %s not flipped, retry the close", req.Source))
			return err
		}
		batch, batchVer, err = e.loadBatch(ctx, req.Source)
		if err != nil {
			return err
		}
	}
}

func mergeFailed(res *OperationResult, failed []int) {
	for _, idx := range failed {
		seen := false
		for _, existing := range res.FailedIndexes {
			if existing == idx {
				seen = true
				break
			}
		}
		if !seen {
			res.FailedIndexes = append(res.FailedIndexes, idx)
		}
	}
}

func trimVariance(list []ledger.Variance, v *ledger.Variance) []ledger.Variance {
	if v == nil || len(list) == 0 {
		return list
	}
	return list[:len(list)-1]
}

func (e *Engine) postingDate(req OperationRequest, selected []*ledger.SettlementRecord) time.Time {
	if !req.PostedOn.IsZero() {
		return req.PostedOn
	}
	// The statement's latest settlement date, like the paper flow.
	var latest time.Time
	for _, row := range selected {
		if row.DueDate.After(latest) {
			latest = row.DueDate
		}
	}
	if !latest.IsZero() {
		return latest
	}
	return e.now()
}

func principalSubcategory(req OperationRequest, proc string) string {
	if req.Source == storage.LedgerIPES {
		return "CONVENIO IPES"
	}
	return "CARTAO " + proc
}

func principalMemo(req OperationRequest, book *ledger.ReceivablesBook, ids []string) string {
	if req.Mode == ModeUnlinked {
		return "PARCELA ANTIGA"
	}
	var names []string
	for _, id := range ids {
		row, ok := book.Find(id)
		if !ok {
			continue
		}
		dup := false
		for _, n := range names {
			if n == row.Debtor {
				dup = true
				break
			}
		}
		if !dup {
			names = append(names, row.Debtor)
		}
	}
	if len(names) > 3 {
		return strings.Join(names[:3], ", ") + "..."
	}
	return strings.Join(names, ", ")
}

func anticipationMemo(res *OperationResult) string {
	if res.RateFit != nil {
		return fmt.Sprintf("Desconto de antecipacao (%.4f%% a.m.)", res.RateFit.Rate)
	}
	return "Desconto de antecipacao"
}

func processorName(source storage.Ledger) string {
	switch source {
	case storage.LedgerMulvi:
		return string(ledger.ProcessorMulvi)
	case storage.LedgerGetnet:
		return string(ledger.ProcessorGetnet)
	case storage.LedgerIPES:
		return string(ledger.PayerIPES)
	}
	return string(source)
}

func settlementSource(l storage.Ledger) bool {
	switch l {
	case storage.LedgerMulvi, storage.LedgerGetnet, storage.LedgerIPES:
		return true
	}
	return false
}

func validateRequest(req *OperationRequest) error {
	if !settlementSource(req.Source) {
		return fmt.Errorf("%q is not a settlement source", req.Source)
	}
	if len(req.FileIndexes) == 0 {
		return errors.New("no settlement rows selected")
	}
	if !ledger.ValidAccount(req.DestinationAccount) {
		return fmt.Errorf("unknown destination account %q", req.DestinationAccount)
	}
	switch req.Mode {
	case ModeFull:
		if len(req.ReceivableIDs) == 0 {
			return errors.New("full settlement needs at least one receivable")
		}
	case ModePartial:
		if len(req.ReceivableIDs) == 0 || len(req.PartialAmounts) == 0 {
			return errors.New("partial settlement needs receivables and their settled amounts")
		}
	case ModeUnlinked:
		if len(req.ReceivableIDs) != 0 {
			return errors.New("unlinked settlement cannot reference receivables")
		}
	default:
		return fmt.Errorf("unknown mode %q", req.Mode)
	}
	if req.ManualNet != nil && req.Source != storage.LedgerIPES {
		return errors.New("manual net override applies to insurance claims only")
	}
	if req.Anticipation != nil {
		if req.Source == storage.LedgerIPES {
			return errors.New("anticipation applies to card settlements only")
		}
		if req.Anticipation.SaleDate.IsZero() {
			return errors.New("anticipation needs the sale date")
		}
		if req.Anticipation.ObservedDiscount == nil && req.Anticipation.RatePct <= 0 {
			return errors.New("anticipation needs an observed discount or a rate")
		}
	}
	return nil
}

func tolerance() decimal.Decimal {
	return decimal.NewFromFloat(config.AmountTolerance)
}

func withinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tolerance())
}

func (e *Engine) loadBook(ctx context.Context) (*ledger.ReceivablesBook, storage.Version, error) {
	book := &ledger.ReceivablesBook{}
	ver, err := e.loadSnapshot(ctx, storage.LedgerReceivables, book)
	return book, ver, err
}

func (e *Engine) loadJournal(ctx context.Context) (*ledger.Journal, storage.Version, error) {
	journal := &ledger.Journal{}
	ver, err := e.loadSnapshot(ctx, storage.LedgerJournal, journal)
	return journal, ver, err
}

func (e *Engine) loadBatch(ctx context.Context, source storage.Ledger) (*ledger.SettlementBatch, storage.Version, error) {
	batch := &ledger.SettlementBatch{Source: string(source)}
	ver, err := e.loadSnapshot(ctx, source, batch)
	return batch, ver, err
}

func (e *Engine) loadSnapshot(ctx context.Context, name storage.Ledger, target interface{}) (storage.Version, error) {
	data, ver, err := e.store.Read(ctx, name)
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
