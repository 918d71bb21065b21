package synclock

import (
	"testing"

	"ledger-sync-go/internal/store"
)

func strPtr(s string) *string { return &s }

func TestAcquireRelease(t *testing.T) {
	m := NewManager()

	if !m.Acquire(TableAccounts, "a1") {
		t.Fatal("First acquire should succeed")
	}
	if m.Acquire(TableAccounts, "a1") {
		t.Error("Second acquire on same record should fail")
	}
	if !m.Acquire(TableAccounts, "a2") {
		t.Error("Acquire on different record should succeed")
	}
	if !m.Acquire(TableTransactions, "a1") {
		t.Error("Same id under a different table should be independent")
	}

	patch, buffered := m.ReleaseAccount("a1")
	if buffered {
		t.Errorf("Expected no buffer, got %+v", patch)
	}
	if m.IsLocked(TableAccounts, "a1") {
		t.Error("Record should be unlocked after release")
	}
}

func TestBuffer_NotLocked(t *testing.T) {
	m := NewManager()

	if m.BufferAccount("a1", store.AccountPatch{Name: strPtr("x")}) {
		t.Error("Buffering an unlocked record should report not-locked")
	}
}

func TestBuffer_MergesSequentialEdits(t *testing.T) {
	m := NewManager()
	m.Acquire(TableAccounts, "a1")

	if !m.BufferAccount("a1", store.AccountPatch{Name: strPtr("first")}) {
		t.Fatal("Expected buffered")
	}
	if !m.BufferAccount("a1", store.AccountPatch{Name: strPtr("second"), Color: strPtr("#ff0000")}) {
		t.Fatal("Expected buffered")
	}

	patch, buffered := m.ReleaseAccount("a1")
	if !buffered {
		t.Fatal("Expected a drained buffer")
	}
	if patch.Name == nil || *patch.Name != "second" {
		t.Errorf("Later edit should win: got %v", patch.Name)
	}
	if patch.Color == nil || *patch.Color != "#ff0000" {
		t.Errorf("Earlier fields should survive merge: got %v", patch.Color)
	}

	// Drained exactly once.
	if _, again := m.ReleaseAccount("a1"); again {
		t.Error("Buffer should be cleared after release")
	}
}

func TestBufferTransaction(t *testing.T) {
	m := NewManager()
	m.Acquire(TableTransactions, "t1")

	amount := int64(-2500)
	if !m.BufferTransaction("t1", store.TransactionPatch{Amount: &amount}) {
		t.Fatal("Expected buffered")
	}

	patch, buffered := m.ReleaseTransaction("t1")
	if !buffered {
		t.Fatal("Expected a drained buffer")
	}
	if patch.Amount == nil || *patch.Amount != -2500 {
		t.Errorf("Expected amount -2500, got %v", patch.Amount)
	}
}
