package importer

import (
	"fmt"
	"io"
	"strings"

	"ClinicCash/internal/ledger"

	"github.com/xuri/excelize/v2"
)

const getnetSheet = "ANALITICO"

// getnetHeaderRow is where the column names live; everything above is the
// statement's decorative banner.
const getnetHeaderRow = 7

// ParseGetnet reads a Getnet detailed statement (.xlsx). Rows are keyed by
// the expected payment date; debit-card rows are not receivables and are
// dropped.
func ParseGetnet(r io.Reader) ([]ledger.SettlementRecord, int, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open getnet statement: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(getnetSheet)
	if err != nil {
		return nil, 0, fmt.Errorf("getnet statement has no %s sheet: %w", getnetSheet, err)
	}
	if len(rows) <= getnetHeaderRow {
		return nil, 0, fmt.Errorf("getnet statement too short: %d rows", len(rows))
	}

	cols := headerIndex(rows[getnetHeaderRow])
	col := func(name string) int {
		if i, ok := cols[name]; ok {
			return i
		}
		return -1
	}
	cardCol := col("cartões")
	if cardCol < 0 {
		return nil, 0, fmt.Errorf("getnet statement missing column %q", "Cartões")
	}
	dueCol := col("data prevista do 1º pagamento")
	saleCol := col("data/hora da venda")
	descCol := col("descrição do lançamento")
	parcCol := col("total de parcelas")
	grossCol := col("valor bruto")
	feeCol := col("valor da taxa e/ou tarifa")
	netCol := col("valor líquido")

	var out []ledger.SettlementRecord
	skipped := 0
	for _, row := range rows[getnetHeaderRow+1:] {
		card := cell(row, cardCol)
		if card == "" || strings.Contains(strings.ToUpper(card), "DÉBITO") {
			skipped++
			continue
		}
		gross, gErr := parseBRL(cell(row, grossCol))
		net, nErr := parseBRL(cell(row, netCol))
		if gErr != nil || nErr != nil {
			skipped++
			continue
		}
		due, err := parseDate(cell(row, dueCol))
		if err != nil {
			skipped++
			continue
		}
		_, installments := parseInstallment(cell(row, parcCol))

		out = append(out, ledger.SettlementRecord{
			Processor:    ledger.ProcessorGetnet,
			DueDate:      due,
			GrossAmount:  gross,
			NetAmount:    net,
			Installments: installments,
			Status:       ledger.SettlementPending,
			Raw: map[string]string{
				"cartoes":   card,
				"venda":     cell(row, saleCol),
				"descricao": cell(row, descCol),
				"taxa":      cell(row, feeCol),
			},
		})
	}
	return out, skipped, nil
}

// headerIndex maps normalized column names to their positions. The sheet
// wraps some headers over two lines, so newlines collapse to spaces before
// matching.
func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		cleaned := strings.ToLower(strings.TrimSpace(name))
		cleaned = strings.ReplaceAll(cleaned, "\n", " ")
		cleaned = strings.Join(strings.Fields(cleaned), " ")
		if cleaned != "" {
			idx[cleaned] = i
		}
	}
	return idx
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
