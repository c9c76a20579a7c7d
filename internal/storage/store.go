// Package storage is the snapshot substrate under the ledgers. Every ledger
// is read and written as one whole snapshot guarded by a version token;
// there are no transactions and no row-level writes. A stale token on write
// is a retryable conflict, never a silent overwrite.
//
// The store does not lock. At most one writer per ledger at a time is a
// caller obligation; the version token only detects the violation.
package storage

import (
	"context"
	"errors"
)

// Ledger names the whole-file snapshots the system persists.
type Ledger string

const (
	LedgerReceivables Ledger = "recebimentos_pendentes"
	LedgerMulvi       Ledger = "credito_mulvi"
	LedgerGetnet      Ledger = "credito_getnet"
	LedgerIPES        Ledger = "convenio_ipes"
	LedgerJournal     Ledger = "movimentacao_contas"
)

func KnownLedger(l Ledger) bool {
	switch l {
	case LedgerReceivables, LedgerMulvi, LedgerGetnet, LedgerIPES, LedgerJournal:
		return true
	}
	return false
}

type Version int64

// ErrVersionConflict means the snapshot changed since it was read. The
// caller re-reads, re-validates the rows it was about to touch, and
// replays.
var ErrVersionConflict = errors.New("snapshot version conflict")

type Store interface {
	// Read returns the latest snapshot and its version token. A ledger that
	// was never written reads as an empty snapshot with version zero.
	Read(ctx context.Context, ledger Ledger) ([]byte, Version, error)

	// Write replaces the snapshot if expected still matches the stored
	// version, returning the new token, or ErrVersionConflict.
	Write(ctx context.Context, ledger Ledger, snapshot []byte, expected Version) (Version, error)
}
