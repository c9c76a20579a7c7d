// Package importer turns processor statements and clinic billing exports
// into normalized ledger rows. Parsing is deliberately forgiving about
// formatting and strict about amounts: a row whose money does not parse is
// skipped and counted, never guessed.
package importer

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// parseBRL reads a Brazilian-formatted money cell: optional R$, spaces,
// thousands dots and a comma decimal separator. "1.234,56" and "1234.56"
// both parse.
func parseBRL(s string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.ReplaceAll(cleaned, "R$", "")
	cleaned = strings.ReplaceAll(cleaned, "\u00a0", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	if strings.Contains(cleaned, ",") {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bad amount %q: %w", s, err)
	}
	return d, nil
}

var dateLayouts = []string{
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"02/01/06",
	"2006-01-02",
	"01-02-06", // excelize default render for date cells
}

// parseDate tries the layouts the statements actually ship.
func parseDate(s string) (time.Time, error) {
	cleaned := strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

// parseInstallment reads a "2/6" style marker. Statements that do not carry
// one fall back to a single installment.
func parseInstallment(s string) (current, total int) {
	cleaned := strings.TrimSpace(s)
	if n, _ := fmt.Sscanf(cleaned, "%d/%d", &current, &total); n == 2 {
		return current, total
	}
	if n, _ := fmt.Sscanf(cleaned, "%d", &total); n == 1 && total > 0 {
		return 1, total
	}
	return 1, 1
}
