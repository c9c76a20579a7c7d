package importer

import (
	"fmt"
	"io"
	"strings"

	"ClinicCash/internal/ledger"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// mulviHeaderRow is the second sheet row; the first carries the export
// title.
const mulviHeaderRow = 1

// mulviMaxRows bounds how much of a legacy workbook is materialized.
const mulviMaxRows = 50000

// ParseMulvi reads a Mulvi card statement. The acquirer exports both the
// old BIFF .xls and the newer .xlsx shape with the same columns, so the
// extension picks the decoder and everything downstream is shared.
//
// Rental charges, debit-card rows and chargeback rows (negative gross) are
// not receivables and are dropped. The export's last two rows are totals.
func ParseMulvi(r io.ReadSeeker, filename string) ([]ledger.SettlementRecord, int, error) {
	var rows [][]string
	var err error
	if strings.HasSuffix(strings.ToLower(filename), ".xls") {
		rows, err = mulviLegacyRows(r)
	} else {
		rows, err = mulviModernRows(r)
	}
	if err != nil {
		return nil, 0, err
	}
	if len(rows) <= mulviHeaderRow+2 {
		return nil, 0, fmt.Errorf("mulvi statement too short: %d rows", len(rows))
	}

	cols := headerIndex(rows[mulviHeaderRow])
	col := func(name string) int {
		if i, ok := cols[name]; ok {
			return i
		}
		return -1
	}
	typeCol := col("tipo_transação")
	if typeCol < 0 {
		return nil, 0, fmt.Errorf("mulvi statement missing column %q", "Tipo_Transação")
	}
	dateCol := col("data_lançamento")
	saleCol := col("data_transação")
	nsuCol := col("nsu")
	brandCol := col("bandeira")
	parcCol := col("parcela")
	grossCol := col("valorbruto")
	netCol := col("valorliquido")

	var out []ledger.SettlementRecord
	skipped := 0
	// Totals rows at the tail are never data.
	for _, row := range rows[mulviHeaderRow+1 : len(rows)-2] {
		txType := strings.ToUpper(cell(row, typeCol))
		if txType == "" ||
			strings.Contains(txType, "ALUGUEL") ||
			strings.Contains(txType, "DÉBITO") {
			skipped++
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(cell(row, grossCol)), "-") {
			skipped++
			continue
		}
		gross, gErr := parseBRL(cell(row, grossCol))
		net, nErr := parseBRL(cell(row, netCol))
		if gErr != nil || nErr != nil {
			skipped++
			continue
		}
		due, err := parseDate(cell(row, dateCol))
		if err != nil {
			skipped++
			continue
		}
		installment, installments := parseInstallment(cell(row, parcCol))

		out = append(out, ledger.SettlementRecord{
			Processor:    ledger.ProcessorMulvi,
			DueDate:      due,
			GrossAmount:  gross,
			NetAmount:    net,
			Installment:  installment,
			Installments: installments,
			Status:       ledger.SettlementPending,
			Raw: map[string]string{
				"tipo":     cell(row, typeCol),
				"venda":    cell(row, saleCol),
				"nsu":      cell(row, nsuCol),
				"bandeira": cell(row, brandCol),
			},
		})
	}
	return out, skipped, nil
}

func mulviLegacyRows(r io.ReadSeeker) ([][]string, error) {
	wb, err := xls.OpenReader(r, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("failed to open mulvi .xls statement: %w", err)
	}
	rows := wb.ReadAllCells(mulviMaxRows)
	if len(rows) == 0 {
		return nil, fmt.Errorf("mulvi .xls statement is empty")
	}
	return rows, nil
}

func mulviModernRows(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open mulvi statement: %w", err)
	}
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("failed to read mulvi sheet: %w", err)
	}
	return rows, nil
}
