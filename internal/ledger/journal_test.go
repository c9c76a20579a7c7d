package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func movement(account Account, amount float64, opID string) AccountMovement {
	return AccountMovement{
		PostedOn:    time.Date(2025, time.August, 20, 0, 0, 0, 0, time.UTC),
		Account:     account,
		Amount:      decimal.NewFromFloat(amount),
		Category:    "RECEBIMENTO",
		OperationID: opID,
	}
}

func TestBalances_SumPerAccountWithZeroDefaults(t *testing.T) {
	j := &Journal{}
	j.Append(
		movement(AccountBanese, 260, "op-1"),
		movement(AccountBanese, -24.08, "op-1"),
		movement(AccountSantander, 100, "op-2"),
	)

	balances := j.Balances()
	if !balances[AccountBanese].Equal(decimal.NewFromFloat(235.92)) {
		t.Fatalf("expected BANESE 235.92, got %s", balances[AccountBanese])
	}
	if !balances[AccountSantander].Equal(decimal.NewFromFloat(100)) {
		t.Fatalf("expected SANTANDER 100.00, got %s", balances[AccountSantander])
	}
	// Untouched accounts still report an explicit zero.
	if got, ok := balances[AccountCaixa]; !ok || !got.IsZero() {
		t.Fatalf("expected CAIXA zero balance, got %s (present=%v)", got, ok)
	}
	if len(balances) != len(Accounts()) {
		t.Fatalf("expected all %d accounts, got %d", len(Accounts()), len(balances))
	}
}

func TestByOperation_ReturnsRowsInPostedOrder(t *testing.T) {
	j := &Journal{}
	principal := movement(AccountBanese, 260, "op-1")
	fee := movement(AccountBanese, -24.08, "op-1")
	fee.Category = "DESPESA FINANCEIRA"
	j.Append(principal, movement(AccountSantander, 50, "op-2"), fee)

	rows := j.ByOperation("op-1")
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows for op-1, got %d", len(rows))
	}
	if !rows[0].Amount.Equal(decimal.NewFromFloat(260)) || !rows[1].Amount.Equal(decimal.NewFromFloat(-24.08)) {
		t.Fatalf("rows out of order: %v", rows)
	}
}

func TestSourceKey_DeterministicAndSanitized(t *testing.T) {
	a := SourceKey("20250806", "1001", "clinica")
	b := SourceKey("20250806", "1001", "clinica")
	if a != b {
		t.Fatalf("same parts must give the same key: %s vs %s", a, b)
	}
	underscored := SourceKey("a_b", "", " c ")
	if underscored != "a-b_na_c" {
		t.Fatalf("expected sanitized key a-b_na_c, got %s", underscored)
	}
}
