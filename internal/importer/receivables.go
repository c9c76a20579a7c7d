package importer

import (
	"fmt"
	"io"
	"strings"
	"time"

	"ClinicCash/internal/ledger"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// billingHeaderRow is where the clinic management export puts its column
// names; rows above are the report banner.
const billingHeaderRow = 7

// ReceivableInput is one billing line before it becomes a tracked
// receivable. It arrives either from the clinic export parser or straight
// from the ingestion endpoint.
type ReceivableInput struct {
	OccurredOn  time.Time       `json:"occurred_on"`
	Debtor      string          `json:"debtor"`
	Code        string          `json:"code"`
	Origin      string          `json:"origin"`
	PaymentForm string          `json:"payment_form"`
	Insurer     string          `json:"insurer"`
	GrossAmount decimal.Decimal `json:"gross_amount"`
}

// Kind classifies the input by how the money will arrive: card payments
// settle through processor statements, insurance through the payer's claim
// report.
func (in ReceivableInput) Kind() ledger.OriginKind {
	if strings.Contains(strings.ToUpper(in.PaymentForm), "CART") {
		return ledger.OriginCard
	}
	if strings.Contains(strings.ToUpper(in.Insurer), "IPES") {
		return ledger.OriginInsurance
	}
	return ledger.OriginOther
}

// buildReceivable derives the dedup key from the fields that identify a
// billing line across re-exports. The book assigns the id.
func buildReceivable(in ReceivableInput) ledger.PendingReceivable {
	origin := in.Origin
	if origin == "" {
		origin = "clinica"
	}
	return ledger.PendingReceivable{
		OccurredOn:  in.OccurredOn,
		Debtor:      in.Debtor,
		Origin:      origin,
		OriginKind:  in.Kind(),
		GrossAmount: in.GrossAmount,
		SourceKey: ledger.SourceKey(
			in.OccurredOn.Format("20060102"),
			in.Code,
			in.GrossAmount.StringFixed(2),
			origin,
		),
	}
}

// ParseBilling reads the clinic management export (.xlsx) into receivable
// inputs. Total and footer rows are dropped; rows whose paid amount does
// not parse are skipped and counted.
func ParseBilling(r io.Reader) ([]ReceivableInput, int, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open billing export: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read billing sheet: %w", err)
	}
	if len(rows) <= billingHeaderRow {
		return nil, 0, fmt.Errorf("billing export too short: %d rows", len(rows))
	}

	cols := headerIndex(rows[billingHeaderRow])
	col := func(name string) int {
		if i, ok := cols[name]; ok {
			return i
		}
		return -1
	}
	codeCol := col("código")
	if codeCol < 0 {
		return nil, 0, fmt.Errorf("billing export missing column %q", "Código")
	}
	dateCol := col("data cad.")
	nameCol := col("nome")
	formCol := col("forma pagamento")
	insurerCol := col("convênio")
	totalCol := col("total serviços")

	var out []ReceivableInput
	skipped := 0
	for _, row := range rows[billingHeaderRow+1:] {
		code := cell(row, codeCol)
		if code == "" || strings.Contains(code, "Total") {
			skipped++
			continue
		}
		amount, err := parseBRL(cell(row, totalCol))
		if err != nil || !amount.IsPositive() {
			skipped++
			continue
		}
		occurred, err := parseDate(cell(row, dateCol))
		if err != nil {
			skipped++
			continue
		}
		out = append(out, ReceivableInput{
			OccurredOn:  occurred,
			Debtor:      cell(row, nameCol),
			Code:        code,
			Origin:      "clinica",
			PaymentForm: cell(row, formCol),
			Insurer:     cell(row, insurerCol),
			GrossAmount: amount,
		})
	}
	return out, skipped, nil
}
