package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is one of the clinic's cash destinations. The set is fixed;
// balances exist only as sums over the journal.
type Account string

const (
	AccountDinheiro    Account = "DINHEIRO"
	AccountSantander   Account = "SANTANDER"
	AccountBanese      Account = "BANESE"
	AccountC6          Account = "C6"
	AccountCaixa       Account = "CAIXA"
	AccountBNB         Account = "BNB"
	AccountMercadoPago Account = "MERCADO PAGO"
	AccountContaPix    Account = "CONTA PIX"
)

func Accounts() []Account {
	return []Account{
		AccountDinheiro,
		AccountSantander,
		AccountBanese,
		AccountC6,
		AccountCaixa,
		AccountBNB,
		AccountMercadoPago,
		AccountContaPix,
	}
}

func ValidAccount(a Account) bool {
	for _, known := range Accounts() {
		if a == known {
			return true
		}
	}
	return false
}

// AccountMovement is one journal row. Positive amounts credit the account,
// negative amounts debit it. Fee rows are always posted separately from the
// principal so the statement stays auditable; the rows of one reconciliation
// share an OperationID.
type AccountMovement struct {
	PostedOn    time.Time       `json:"posted_on"`
	Account     Account         `json:"account"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Subcategory string          `json:"subcategory"`
	Memo        string          `json:"memo"`
	OperationID string          `json:"operation_id"`
}

// Journal is the append-only movement book. Rows are never mutated or
// deleted; corrections are posted as new rows.
type Journal struct {
	Entries []AccountMovement `json:"entries"`
}

func (j *Journal) Append(rows ...AccountMovement) {
	j.Entries = append(j.Entries, rows...)
}

// Balances sums every entry per account. Accounts without movements report
// a zero balance so callers always see the full set.
func (j *Journal) Balances() map[Account]decimal.Decimal {
	balances := make(map[Account]decimal.Decimal, len(Accounts()))
	for _, a := range Accounts() {
		balances[a] = decimal.Zero
	}
	for _, e := range j.Entries {
		balances[e.Account] = balances[e.Account].Add(e.Amount)
	}
	return balances
}

func (j *Journal) BalanceFor(a Account) decimal.Decimal {
	return j.Balances()[a]
}

// ByOperation returns the rows posted under one operation id, in order.
func (j *Journal) ByOperation(operationID string) []AccountMovement {
	var rows []AccountMovement
	for _, e := range j.Entries {
		if e.OperationID == operationID {
			rows = append(rows, e)
		}
	}
	return rows
}
