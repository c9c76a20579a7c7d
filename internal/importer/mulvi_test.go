package importer

import (
	"bytes"
	"testing"

	"ClinicCash/internal/ledger"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func mulviFixture(t *testing.T, dataRows [][]interface{}) *bytes.Reader {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	_ = f.SetSheetRow(sheet, "A1", &[]interface{}{"Movimento Financeiro"})
	header := []interface{}{
		"Data_Lançamento", "Data_Transação", "Tipo_Transação", "NSU",
		"Bandeira", "Parcela", "ValorBruto", "ValorLiquido",
	}
	if err := f.SetSheetRow(sheet, "A2", &header); err != nil {
		t.Fatalf("header row: %v", err)
	}
	row := 3
	for _, data := range dataRows {
		cellRef, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheet, cellRef, &data); err != nil {
			t.Fatalf("data row %d: %v", row, err)
		}
		row++
	}
	// The export always ends with two totals rows.
	_ = f.SetSheetRow(sheet, mustCell(t, 1, row), &[]interface{}{"", "", "", "", "", "", "Total", "1.000,00"})
	_ = f.SetSheetRow(sheet, mustCell(t, 1, row+1), &[]interface{}{"", "", "", "", "", "", "Geral", "1.000,00"})

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return bytes.NewReader(buf.Bytes())
}

func mustCell(t *testing.T, col, row int) string {
	t.Helper()
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		t.Fatalf("cell name: %v", err)
	}
	return ref
}

func TestParseMulvi_FiltersNonReceivableRows(t *testing.T) {
	r := mulviFixture(t, [][]interface{}{
		{"20/08/2025", "06/08/2025", "CRÉDITO PARCELADO", "123456", "BANESE CARD", "2/6", "R$ 100,00", "R$ 95,00"},
		{"20/08/2025", "06/08/2025", "Aluguel de equipamento", "123457", "", "", "R$ 80,00", "R$ 80,00"},
		{"20/08/2025", "06/08/2025", "DÉBITO", "123458", "VISA", "", "R$ 30,00", "R$ 29,40"},
		{"20/08/2025", "06/08/2025", "CRÉDITO ESTORNO", "123459", "VISA", "", "-R$ 50,00", "-R$ 48,00"},
	})

	rows, skipped, err := ParseMulvi(r, "MovimentoFinanceiro.xlsx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected only the credit row, got %d", len(rows))
	}
	if skipped != 3 {
		t.Fatalf("rental, debit and chargeback rows should be skipped, got %d", skipped)
	}

	row := rows[0]
	if row.Processor != ledger.ProcessorMulvi {
		t.Fatalf("expected MULVI, got %s", row.Processor)
	}
	if !row.GrossAmount.Equal(decimal.NewFromFloat(100)) || !row.NetAmount.Equal(decimal.NewFromFloat(95)) {
		t.Fatalf("amounts wrong: gross %s net %s", row.GrossAmount, row.NetAmount)
	}
	if row.Installment != 2 || row.Installments != 6 {
		t.Fatalf("expected installment 2/6, got %d/%d", row.Installment, row.Installments)
	}
	if row.DueDate.Day() != 20 {
		t.Fatalf("due date must come from the posting date, got %s", row.DueDate)
	}
	if row.Raw["nsu"] != "123456" {
		t.Fatalf("raw columns must ride along, got %v", row.Raw)
	}
}

func TestParseMulvi_TooShortFails(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	if _, _, err := ParseMulvi(bytes.NewReader(buf.Bytes()), "mov.xlsx"); err == nil {
		t.Fatal("an empty workbook must fail")
	}
}
