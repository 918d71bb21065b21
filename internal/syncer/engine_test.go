package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"ledger-sync-go/internal/local"
	"ledger-sync-go/internal/models"
	"ledger-sync-go/internal/store"
	"ledger-sync-go/internal/synclock"
)

// fakeRemote implements the push surface the engine drives. The embedded
// interface covers the repository methods the engine never calls.
type fakeRemote struct {
	store.RemoteStore

	nextVersion   int64
	serverBalance int64

	pushedGroups    [][]models.Account
	pushedUpdates   []models.Account
	pushedDeletes   []models.Account
	pushedCreates   []models.Transaction
	pushedTransfers [][]models.Transaction
	pushedTxUpdates []models.Transaction
	pushedTxDeletes []models.Transaction

	failWith error

	// onAccountUpdate runs mid-push, before the result is returned. Used to
	// simulate a local edit arriving while the engine is busy pushing.
	onAccountUpdate func(pushed models.Account)
}

func (f *fakeRemote) ack() store.PushResult {
	f.nextVersion++
	return store.PushResult{ServerVersion: f.nextVersion, ServerBalance: f.serverBalance}
}

func (f *fakeRemote) PushAccountGroup(ctx context.Context, accounts []models.Account) ([]store.PushResult, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.pushedGroups = append(f.pushedGroups, accounts)
	results := make([]store.PushResult, len(accounts))
	for i := range results {
		results[i] = f.ack()
	}
	return results, nil
}

func (f *fakeRemote) PushAccountUpdate(ctx context.Context, account models.Account) (*store.PushResult, error) {
	if f.onAccountUpdate != nil {
		f.onAccountUpdate(account)
	}
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.pushedUpdates = append(f.pushedUpdates, account)
	res := f.ack()
	return &res, nil
}

func (f *fakeRemote) PushAccountDelete(ctx context.Context, account models.Account) (*store.PushResult, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.pushedDeletes = append(f.pushedDeletes, account)
	res := f.ack()
	return &res, nil
}

func (f *fakeRemote) PushTransactionCreate(ctx context.Context, tx models.Transaction) (*store.PushResult, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.pushedCreates = append(f.pushedCreates, tx)
	res := f.ack()
	return &res, nil
}

func (f *fakeRemote) PushTransferCreate(ctx context.Context, legs []models.Transaction) ([]store.PushResult, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.pushedTransfers = append(f.pushedTransfers, legs)
	results := make([]store.PushResult, len(legs))
	for i := range results {
		results[i] = f.ack()
	}
	return results, nil
}

func (f *fakeRemote) PushTransactionUpdate(ctx context.Context, tx models.Transaction) (*store.PushResult, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.pushedTxUpdates = append(f.pushedTxUpdates, tx)
	res := f.ack()
	return &res, nil
}

func (f *fakeRemote) PushTransactionDelete(ctx context.Context, tx models.Transaction) (*store.PushResult, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.pushedTxDeletes = append(f.pushedTxDeletes, tx)
	res := f.ack()
	return &res, nil
}

func setupEngine(t *testing.T, remote *fakeRemote) (*Engine, *local.Service, *synclock.Manager, func()) {
	cfg := models.LocalConfig{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  5 * time.Second,
	}
	currencies := []models.Currency{
		{Code: "USD", Symbol: "$", Name: "US Dollar", DecimalDigits: 2},
		{Code: "EUR", Symbol: "€", Name: "Euro", DecimalDigits: 2},
	}

	locks := synclock.NewManager()
	localService, err := local.NewService(context.Background(), cfg, locks, currencies)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	engine := NewEngine(localService, remote, locks, models.SyncConfig{
		PollingInterval: time.Second,
		BatchLimit:      100,
	})

	cleanup := func() {
		localService.Close()
	}
	return engine, localService, locks, cleanup
}

func TestSyncOnce_PushesCreatesAndAcks(t *testing.T) {
	remote := &fakeRemote{serverBalance: 777}
	engine, localService, _, cleanup := setupEngine(t, remote)
	defer cleanup()

	ctx := context.Background()
	accounts, err := localService.CreateAccount(ctx, "user1", store.CreateAccountParams{
		Name:          "Checking",
		AccountType:   models.AccountTypeChecking,
		CurrencyCodes: []string{"USD", "EUR"},
	})
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	occurred, _ := time.Parse("2006-01-02", "2026-08-15")
	tx, err := localService.CreateTransaction(ctx, "user1", store.CreateTransactionParams{
		AccountId:       accounts[0].Id,
		TransactionType: models.TransactionTypeIncome,
		Amount:          5000,
		Description:     "paycheck",
		OccurredOn:      occurred,
	})
	if err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}

	if err := engine.SyncOnce(ctx); err != nil {
		t.Fatalf("SyncOnce failed: %v", err)
	}

	if len(remote.pushedGroups) != 1 {
		t.Fatalf("Expected 1 group push, got %d", len(remote.pushedGroups))
	}
	if len(remote.pushedGroups[0]) != 2 {
		t.Errorf("Expected both currency rows in one atomic push, got %d", len(remote.pushedGroups[0]))
	}
	if len(remote.pushedCreates) != 1 {
		t.Fatalf("Expected 1 transaction create push, got %d", len(remote.pushedCreates))
	}
	if remote.pushedCreates[0].Id != tx.Id {
		t.Errorf("Pushed wrong transaction: %s", remote.pushedCreates[0].Id)
	}

	pendingAccounts, err := localService.GetPendingAccounts(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingAccounts failed: %v", err)
	}
	if len(pendingAccounts) != 0 {
		t.Errorf("Expected no pending accounts after sync, got %d", len(pendingAccounts))
	}
	pendingTxs, err := localService.GetPendingTransactions(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingTransactions failed: %v", err)
	}
	if len(pendingTxs) != 0 {
		t.Errorf("Expected no pending transactions after sync, got %d", len(pendingTxs))
	}

	view, err := localService.GetAccountById(ctx, "user1", accounts[0].Id)
	if err != nil {
		t.Fatalf("GetAccountById failed: %v", err)
	}
	if view.LocalSyncStatus != models.SyncSynced {
		t.Errorf("Expected synced status, got %s", view.LocalSyncStatus)
	}
	if view.SyncedAt == nil {
		t.Errorf("Expected synced_at after acknowledgment")
	}
	if view.Balance != 777 {
		t.Errorf("Expected server-reconciled balance 777, got %d", view.Balance)
	}
}

func TestSyncOnce_PushesTransferAtomically(t *testing.T) {
	remote := &fakeRemote{}
	engine, localService, _, cleanup := setupEngine(t, remote)
	defer cleanup()

	ctx := context.Background()
	usd, err := localService.CreateAccount(ctx, "user1", store.CreateAccountParams{
		Name: "Checking", AccountType: models.AccountTypeChecking, CurrencyCodes: []string{"USD"},
	})
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	eur, err := localService.CreateAccount(ctx, "user1", store.CreateAccountParams{
		Name: "Savings", AccountType: models.AccountTypeSavings, CurrencyCodes: []string{"EUR"},
	})
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	occurred, _ := time.Parse("2006-01-02", "2026-08-20")
	transfer, err := localService.CreateTransfer(ctx, "user1", store.CreateTransferParams{
		FromAccountId: usd[0].Id,
		ToAccountId:   eur[0].Id,
		FromAmount:    10000,
		ToAmount:      9200,
		OccurredOn:    occurred,
	})
	if err != nil {
		t.Fatalf("CreateTransfer failed: %v", err)
	}

	if err := engine.SyncOnce(ctx); err != nil {
		t.Fatalf("SyncOnce failed: %v", err)
	}

	if len(remote.pushedTransfers) != 1 {
		t.Fatalf("Expected 1 transfer push, got %d", len(remote.pushedTransfers))
	}
	legs := remote.pushedTransfers[0]
	if len(legs) != 2 {
		t.Fatalf("Expected both legs in one atomic push, got %d", len(legs))
	}
	if legs[0].TransferId != transfer.TransferId || legs[1].TransferId != transfer.TransferId {
		t.Errorf("Pushed legs carry wrong transfer id")
	}
	if len(remote.pushedCreates) != 0 {
		t.Errorf("Transfer legs must not be pushed as single creates")
	}
}

func TestSyncOnce_VersionConflictMarksConflict(t *testing.T) {
	remote := &fakeRemote{}
	engine, localService, _, cleanup := setupEngine(t, remote)
	defer cleanup()

	ctx := context.Background()
	accounts, err := localService.CreateAccount(ctx, "user1", store.CreateAccountParams{
		Name: "Checking", AccountType: models.AccountTypeChecking, CurrencyCodes: []string{"USD"},
	})
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	account := accounts[0]

	// Simulate a previous successful sync, then a local edit on top of it.
	if err := localService.UpdateAccountSyncStatus(ctx, account.Id, models.SyncSynced, 1); err != nil {
		t.Fatalf("UpdateAccountSyncStatus failed: %v", err)
	}
	newName := "Edited Offline"
	if _, err := localService.UpdateAccount(ctx, "user1", account.Id, store.UpdateAccountParams{
		ExpectedVersion: 1,
		Patch:           store.AccountPatch{Name: &newName},
	}); err != nil {
		t.Fatalf("UpdateAccount failed: %v", err)
	}

	remote.failWith = &store.VersionConflictError{Table: "accounts", Id: account.Id, Expected: 1}
	if err := engine.SyncOnce(ctx); err != nil {
		t.Fatalf("SyncOnce failed: %v", err)
	}

	conflicts, err := localService.GetConflictAccounts(ctx)
	if err != nil {
		t.Fatalf("GetConflictAccounts failed: %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("Expected 1 conflicted account, got %d", len(conflicts))
	}
	if conflicts[0].Version != 1 {
		t.Errorf("Conflict must not advance the version, got %d", conflicts[0].Version)
	}
	if conflicts[0].Name != "Edited Offline" {
		t.Errorf("Conflict must keep the local edit, got %s", conflicts[0].Name)
	}
}

func TestSyncOnce_InfrastructureErrorLeavesPending(t *testing.T) {
	remote := &fakeRemote{failWith: errors.New("connection refused")}
	engine, localService, _, cleanup := setupEngine(t, remote)
	defer cleanup()

	ctx := context.Background()
	if _, err := localService.CreateAccount(ctx, "user1", store.CreateAccountParams{
		Name: "Checking", AccountType: models.AccountTypeChecking, CurrencyCodes: []string{"USD"},
	}); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	if err := engine.SyncOnce(ctx); err != nil {
		t.Fatalf("SyncOnce failed: %v", err)
	}

	pending, err := localService.GetPendingAccounts(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingAccounts failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("Expected record left pending for retry, got %d", len(pending))
	}
	conflicts, err := localService.GetConflictAccounts(ctx)
	if err != nil {
		t.Fatalf("GetConflictAccounts failed: %v", err)
	}
	if len(conflicts) != 0 {
		t.Errorf("Infrastructure error must not mark conflict")
	}
}

func TestSyncOnce_ReplaysEditBufferedMidPush(t *testing.T) {
	remote := &fakeRemote{nextVersion: 1}
	engine, localService, _, cleanup := setupEngine(t, remote)
	defer cleanup()

	ctx := context.Background()
	accounts, err := localService.CreateAccount(ctx, "user1", store.CreateAccountParams{
		Name: "Checking", AccountType: models.AccountTypeChecking, CurrencyCodes: []string{"USD"},
	})
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	account := accounts[0]

	if err := localService.UpdateAccountSyncStatus(ctx, account.Id, models.SyncSynced, 1); err != nil {
		t.Fatalf("UpdateAccountSyncStatus failed: %v", err)
	}
	firstEdit := "First Edit"
	if _, err := localService.UpdateAccount(ctx, "user1", account.Id, store.UpdateAccountParams{
		ExpectedVersion: 1,
		Patch:           store.AccountPatch{Name: &firstEdit},
	}); err != nil {
		t.Fatalf("UpdateAccount failed: %v", err)
	}

	// A second edit arrives while the push is in flight. It must be buffered,
	// not written, then replayed after the acknowledgment.
	midPushEdit := "Mid-Push Edit"
	remote.onAccountUpdate = func(models.Account) {
		result, err := localService.UpdateAccount(ctx, "user1", account.Id, store.UpdateAccountParams{
			Patch: store.AccountPatch{Name: &midPushEdit},
		})
		if err != nil {
			t.Errorf("Mid-push edit failed: %v", err)
			return
		}
		if !result.Buffered {
			t.Errorf("Expected mid-push edit to be buffered")
		}
	}

	if err := engine.SyncOnce(ctx); err != nil {
		t.Fatalf("SyncOnce failed: %v", err)
	}

	view, err := localService.GetAccountById(ctx, "user1", account.Id)
	if err != nil {
		t.Fatalf("GetAccountById failed: %v", err)
	}
	if view.Name != "Mid-Push Edit" {
		t.Errorf("Expected replayed buffered edit, got %s", view.Name)
	}
	// The replay is a fresh local edit on top of the acknowledged version.
	if view.LocalSyncStatus != models.SyncPending {
		t.Errorf("Expected pending after replay, got %s", view.LocalSyncStatus)
	}
	if view.Version != 2 {
		t.Errorf("Expected acknowledged server version 2, got %d", view.Version)
	}
}

func TestSyncOnce_EditDuringEarlierPushIsNotLost(t *testing.T) {
	remote := &fakeRemote{nextVersion: 1}
	engine, localService, _, cleanup := setupEngine(t, remote)
	defer cleanup()

	ctx := context.Background()
	makeSynced := func(name string) models.Account {
		accounts, err := localService.CreateAccount(ctx, "user1", store.CreateAccountParams{
			Name: name, AccountType: models.AccountTypeChecking, CurrencyCodes: []string{"USD"},
		})
		if err != nil {
			t.Fatalf("CreateAccount failed: %v", err)
		}
		if err := localService.UpdateAccountSyncStatus(ctx, accounts[0].Id, models.SyncSynced, 1); err != nil {
			t.Fatalf("UpdateAccountSyncStatus failed: %v", err)
		}
		edited := name + " Edited"
		if _, err := localService.UpdateAccount(ctx, "user1", accounts[0].Id, store.UpdateAccountParams{
			ExpectedVersion: 1,
			Patch:           store.AccountPatch{Name: &edited},
		}); err != nil {
			t.Fatalf("UpdateAccount failed: %v", err)
		}
		return accounts[0]
	}
	alpha := makeSynced("Alpha")
	beta := makeSynced("Beta")

	// While the first record of the batch is being pushed, the other record is
	// not locked yet, so a local edit to it is written directly. That write is
	// newer than the batch snapshot the engine is holding.
	newest := "Newest Edit"
	var editedId string
	remote.onAccountUpdate = func(pushed models.Account) {
		if editedId != "" {
			return
		}
		editedId = alpha.Id
		if pushed.Id == alpha.Id {
			editedId = beta.Id
		}
		result, err := localService.UpdateAccount(ctx, "user1", editedId, store.UpdateAccountParams{
			Patch: store.AccountPatch{Name: &newest},
		})
		if err != nil {
			t.Errorf("Edit during earlier push failed: %v", err)
			return
		}
		if result.Buffered {
			t.Errorf("Record is not locked yet; edit must land directly, not buffer")
		}
	}

	if err := engine.SyncOnce(ctx); err != nil {
		t.Fatalf("SyncOnce failed: %v", err)
	}

	if len(remote.pushedUpdates) != 2 {
		t.Fatalf("Expected both accounts pushed, got %d", len(remote.pushedUpdates))
	}
	for _, pushed := range remote.pushedUpdates {
		if pushed.Id == editedId && pushed.Name != newest {
			t.Errorf("Pushed stale snapshot %q instead of the latest local write", pushed.Name)
		}
	}

	view, err := localService.GetAccountById(ctx, "user1", editedId)
	if err != nil {
		t.Fatalf("GetAccountById failed: %v", err)
	}
	if view.Name != newest {
		t.Errorf("Expected local record to keep the latest edit, got %q", view.Name)
	}
	if view.LocalSyncStatus != models.SyncSynced {
		t.Errorf("Expected the latest edit acknowledged as synced, got %s", view.LocalSyncStatus)
	}
	pending, err := localService.GetPendingAccounts(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingAccounts failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("Expected nothing left pending, got %d", len(pending))
	}
}

func TestSyncOnce_NeverSyncedDeleteNeedsNoPush(t *testing.T) {
	remote := &fakeRemote{}
	engine, localService, _, cleanup := setupEngine(t, remote)
	defer cleanup()

	ctx := context.Background()
	accounts, err := localService.CreateAccount(ctx, "user1", store.CreateAccountParams{
		Name: "Short-Lived", AccountType: models.AccountTypeCash, CurrencyCodes: []string{"USD"},
	})
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	if _, err := localService.DeleteAccount(ctx, "user1", accounts[0].Id, accounts[0].Version); err != nil {
		t.Fatalf("DeleteAccount failed: %v", err)
	}

	if err := engine.SyncOnce(ctx); err != nil {
		t.Fatalf("SyncOnce failed: %v", err)
	}

	if len(remote.pushedGroups)+len(remote.pushedUpdates)+len(remote.pushedDeletes) != 0 {
		t.Errorf("Record created and deleted offline must not reach the remote")
	}
	pending, err := localService.GetPendingAccounts(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingAccounts failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("Expected tombstone acknowledged locally, got %d pending", len(pending))
	}
}

func TestSyncOnce_PushesDeleteForSyncedRecord(t *testing.T) {
	remote := &fakeRemote{nextVersion: 1}
	engine, localService, _, cleanup := setupEngine(t, remote)
	defer cleanup()

	ctx := context.Background()
	accounts, err := localService.CreateAccount(ctx, "user1", store.CreateAccountParams{
		Name: "Checking", AccountType: models.AccountTypeChecking, CurrencyCodes: []string{"USD"},
	})
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	account := accounts[0]

	if err := localService.UpdateAccountSyncStatus(ctx, account.Id, models.SyncSynced, 1); err != nil {
		t.Fatalf("UpdateAccountSyncStatus failed: %v", err)
	}
	if _, err := localService.DeleteAccount(ctx, "user1", account.Id, 1); err != nil {
		t.Fatalf("DeleteAccount failed: %v", err)
	}

	if err := engine.SyncOnce(ctx); err != nil {
		t.Fatalf("SyncOnce failed: %v", err)
	}

	if len(remote.pushedDeletes) != 1 {
		t.Fatalf("Expected 1 delete push, got %d", len(remote.pushedDeletes))
	}
	if remote.pushedDeletes[0].Id != account.Id {
		t.Errorf("Pushed wrong record: %s", remote.pushedDeletes[0].Id)
	}
}
