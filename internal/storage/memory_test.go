package storage

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStore_AbsentLedgerReadsEmpty(t *testing.T) {
	store := NewMemoryStore()

	data, ver, err := store.Read(context.Background(), LedgerJournal)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data != nil || ver != 0 {
		t.Fatalf("absent ledger must read as (nil, 0), got (%v, %d)", data, ver)
	}
}

func TestMemoryStore_WriteIncrementsVersion(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	v1, err := store.Write(ctx, LedgerJournal, []byte(`{"entries":[]}`), 0)
	if err != nil || v1 != 1 {
		t.Fatalf("first write: got (%d, %v)", v1, err)
	}
	v2, err := store.Write(ctx, LedgerJournal, []byte(`{"entries":[1]}`), v1)
	if err != nil || v2 != 2 {
		t.Fatalf("second write: got (%d, %v)", v2, err)
	}

	data, ver, _ := store.Read(ctx, LedgerJournal)
	if string(data) != `{"entries":[1]}` || ver != 2 {
		t.Fatalf("read back (%s, %d)", data, ver)
	}
}

func TestMemoryStore_StaleWriteConflicts(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	v1, _ := store.Write(ctx, LedgerReceivables, []byte(`a`), 0)
	if _, err := store.Write(ctx, LedgerReceivables, []byte(`b`), v1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A writer still holding the old token must be rejected.
	_, err := store.Write(ctx, LedgerReceivables, []byte(`c`), v1)
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	data, _, _ := store.Read(ctx, LedgerReceivables)
	if string(data) != "b" {
		t.Fatalf("conflicting write must not land, got %s", data)
	}
}

func TestMemoryStore_RejectsUnknownLedger(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Write(context.Background(), Ledger("scratch"), []byte(`x`), 0); err == nil {
		t.Fatal("writes outside the fixed ledger set must fail")
	}
}

func TestMemoryStore_ReadReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.Write(ctx, LedgerJournal, []byte(`abc`), 0)

	data, _, _ := store.Read(ctx, LedgerJournal)
	data[0] = 'x'

	again, _, _ := store.Read(ctx, LedgerJournal)
	if string(again) != "abc" {
		t.Fatalf("mutating a read buffer must not affect the store, got %s", again)
	}
}
