package local

import (
	"context"
	"testing"
	"time"

	"ledger-sync-go/internal/models"
	"ledger-sync-go/internal/store"
	"ledger-sync-go/internal/synclock"
)

func testDate(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		t.Fatalf("Failed to parse test date %s: %v", value, err)
	}
	return parsed
}

func createTestTransaction(t *testing.T, service *Service, userId, accountId string, amount int64) *models.Transaction {
	t.Helper()
	txType := models.TransactionTypeIncome
	if amount < 0 {
		txType = models.TransactionTypeExpense
	}
	tx, err := service.CreateTransaction(context.Background(), userId, store.CreateTransactionParams{
		AccountId:       accountId,
		TransactionType: txType,
		Amount:          amount,
		Description:     "groceries",
		OccurredOn:      testDate(t, "2026-08-15"),
	})
	if err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}
	return tx
}

func TestCreateTransaction_AdjustsBalance(t *testing.T) {
	service, _, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	account := createTestAccount(t, service, "user1")[0]

	tx := createTestTransaction(t, service, "user1", account.Id, -1050)

	if tx.CurrencyCode != "USD" {
		t.Errorf("Expected currency inherited from account, got %s", tx.CurrencyCode)
	}
	if tx.LocalSyncStatus != models.SyncPending {
		t.Errorf("Expected pending status, got %s", tx.LocalSyncStatus)
	}
	if tx.Version != 1 {
		t.Errorf("Expected initial version 1, got %d", tx.Version)
	}

	view, err := service.GetAccountById(ctx, "user1", account.Id)
	if err != nil {
		t.Fatalf("GetAccountById failed: %v", err)
	}
	if view.Balance != -1050 {
		t.Errorf("Expected balance -1050 after posted expense, got %d", view.Balance)
	}
}

func TestCreateTransaction_InboxDoesNotAffectBalance(t *testing.T) {
	service, _, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	account := createTestAccount(t, service, "user1")[0]

	tx, err := service.CreateTransaction(ctx, "user1", store.CreateTransactionParams{
		AccountId:       account.Id,
		TransactionType: models.TransactionTypeExpense,
		Status:          models.TransactionStatusInbox,
		Amount:          -500,
		Description:     "receipt photo",
		OccurredOn:      testDate(t, "2026-08-16"),
	})
	if err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}

	view, err := service.GetAccountById(ctx, "user1", account.Id)
	if err != nil {
		t.Fatalf("GetAccountById failed: %v", err)
	}
	if view.Balance != 0 {
		t.Errorf("Inbox row must not affect balance, got %d", view.Balance)
	}

	// Promoting the row to posted folds it into the balance.
	posted := models.TransactionStatusPosted
	if _, err := service.UpdateTransaction(ctx, "user1", tx.Id, store.UpdateTransactionParams{
		Patch: store.TransactionPatch{Status: &posted},
	}); err != nil {
		t.Fatalf("UpdateTransaction failed: %v", err)
	}

	view, err = service.GetAccountById(ctx, "user1", account.Id)
	if err != nil {
		t.Fatalf("GetAccountById failed: %v", err)
	}
	if view.Balance != -500 {
		t.Errorf("Expected balance -500 after promotion, got %d", view.Balance)
	}
}

func TestCreateTransaction_UnknownAccount(t *testing.T) {
	service, _, cleanup := setupTestService(t)
	defer cleanup()

	_, err := service.CreateTransaction(context.Background(), "user1", store.CreateTransactionParams{
		AccountId:       "11111111-2222-4333-8444-555555555555",
		TransactionType: models.TransactionTypeIncome,
		Amount:          100,
		OccurredOn:      testDate(t, "2026-08-15"),
	})
	if !store.IsNotFound(err) {
		t.Fatalf("Expected not found for unknown account, got %v", err)
	}
}

func TestCreateTransfer_AtomicLegs(t *testing.T) {
	service, _, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	usd := createTestAccount(t, service, "user1", "USD")[0]
	eur, err := service.CreateAccount(ctx, "user1", store.CreateAccountParams{
		Name:          "Savings",
		AccountType:   models.AccountTypeSavings,
		CurrencyCodes: []string{"EUR"},
	})
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	transfer, err := service.CreateTransfer(ctx, "user1", store.CreateTransferParams{
		FromAccountId: usd.Id,
		ToAccountId:   eur[0].Id,
		FromAmount:    10000,
		ToAmount:      9200,
		Description:   "usd to eur",
		OccurredOn:    testDate(t, "2026-08-20"),
	})
	if err != nil {
		t.Fatalf("CreateTransfer failed: %v", err)
	}

	if transfer.OutLeg.TransferId != transfer.InLeg.TransferId {
		t.Errorf("Legs must share a transfer id")
	}
	if transfer.OutLeg.Amount != -10000 {
		t.Errorf("Expected out leg -10000, got %d", transfer.OutLeg.Amount)
	}
	if transfer.InLeg.Amount != 9200 {
		t.Errorf("Expected in leg 9200, got %d", transfer.InLeg.Amount)
	}
	if transfer.OutLeg.CurrencyCode != "USD" || transfer.InLeg.CurrencyCode != "EUR" {
		t.Errorf("Legs must carry their account currencies, got %s and %s",
			transfer.OutLeg.CurrencyCode, transfer.InLeg.CurrencyCode)
	}
	if transfer.OutLeg.TransactionType != models.TransactionTypeTransfer {
		t.Errorf("Expected transfer type, got %s", transfer.OutLeg.TransactionType)
	}

	fromView, err := service.GetAccountById(ctx, "user1", usd.Id)
	if err != nil {
		t.Fatalf("GetAccountById failed: %v", err)
	}
	toView, err := service.GetAccountById(ctx, "user1", eur[0].Id)
	if err != nil {
		t.Fatalf("GetAccountById failed: %v", err)
	}
	if fromView.Balance != -10000 {
		t.Errorf("Expected source balance -10000, got %d", fromView.Balance)
	}
	if toView.Balance != 9200 {
		t.Errorf("Expected destination balance 9200, got %d", toView.Balance)
	}

	legs, err := service.GetTransactions(ctx, "user1", store.TransactionFilter{TransferId: transfer.TransferId})
	if err != nil {
		t.Fatalf("GetTransactions by transfer id failed: %v", err)
	}
	if len(legs) != 2 {
		t.Fatalf("Expected 2 legs, got %d", len(legs))
	}
}

func TestCreateTransfer_SameAccountRejected(t *testing.T) {
	service, _, cleanup := setupTestService(t)
	defer cleanup()

	account := createTestAccount(t, service, "user1")[0]

	_, err := service.CreateTransfer(context.Background(), "user1", store.CreateTransferParams{
		FromAccountId: account.Id,
		ToAccountId:   account.Id,
		FromAmount:    100,
		ToAmount:      100,
		OccurredOn:    testDate(t, "2026-08-20"),
	})
	if !store.IsValidation(err) {
		t.Fatalf("Expected validation error for same-account transfer, got %v", err)
	}
}

func TestUpdateTransaction_Rebalances(t *testing.T) {
	service, _, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	account := createTestAccount(t, service, "user1")[0]
	tx := createTestTransaction(t, service, "user1", account.Id, -1000)

	newAmount := int64(-2500)
	if _, err := service.UpdateTransaction(ctx, "user1", tx.Id, store.UpdateTransactionParams{
		Patch: store.TransactionPatch{Amount: &newAmount},
	}); err != nil {
		t.Fatalf("UpdateTransaction failed: %v", err)
	}

	view, err := service.GetAccountById(ctx, "user1", account.Id)
	if err != nil {
		t.Fatalf("GetAccountById failed: %v", err)
	}
	if view.Balance != -2500 {
		t.Errorf("Expected rebalanced -2500, got %d", view.Balance)
	}
}

func TestUpdateTransaction_MoveAccountInheritsCurrency(t *testing.T) {
	service, _, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	usd := createTestAccount(t, service, "user1", "USD")[0]
	jpy, err := service.CreateAccount(ctx, "user1", store.CreateAccountParams{
		Name:          "Cash JPY",
		AccountType:   models.AccountTypeCash,
		CurrencyCodes: []string{"JPY"},
	})
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	tx := createTestTransaction(t, service, "user1", usd.Id, -300)

	if _, err := service.UpdateTransaction(ctx, "user1", tx.Id, store.UpdateTransactionParams{
		Patch: store.TransactionPatch{AccountId: &jpy[0].Id},
	}); err != nil {
		t.Fatalf("UpdateTransaction failed: %v", err)
	}

	moved, err := service.GetTransactionById(ctx, "user1", tx.Id)
	if err != nil {
		t.Fatalf("GetTransactionById failed: %v", err)
	}
	if moved.CurrencyCode != "JPY" {
		t.Errorf("Expected currency inherited from new account, got %s", moved.CurrencyCode)
	}

	// Balance contribution moves with the row.
	usdView, err := service.GetAccountById(ctx, "user1", usd.Id)
	if err != nil {
		t.Fatalf("GetAccountById failed: %v", err)
	}
	jpyView, err := service.GetAccountById(ctx, "user1", jpy[0].Id)
	if err != nil {
		t.Fatalf("GetAccountById failed: %v", err)
	}
	if usdView.Balance != 0 {
		t.Errorf("Expected old account back to 0, got %d", usdView.Balance)
	}
	if jpyView.Balance != -300 {
		t.Errorf("Expected new account at -300, got %d", jpyView.Balance)
	}
}

func TestUpdateTransaction_ZeroAmountRejected(t *testing.T) {
	service, _, cleanup := setupTestService(t)
	defer cleanup()

	account := createTestAccount(t, service, "user1")[0]
	tx := createTestTransaction(t, service, "user1", account.Id, -100)

	zero := int64(0)
	_, err := service.UpdateTransaction(context.Background(), "user1", tx.Id, store.UpdateTransactionParams{
		Patch: store.TransactionPatch{Amount: &zero},
	})
	if !store.IsValidation(err) {
		t.Fatalf("Expected validation error for zero amount, got %v", err)
	}
}

func TestDeleteTransaction_ReversesBalance(t *testing.T) {
	service, _, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	account := createTestAccount(t, service, "user1")[0]
	tx := createTestTransaction(t, service, "user1", account.Id, -750)

	if _, err := service.DeleteTransaction(ctx, "user1", tx.Id, tx.Version); err != nil {
		t.Fatalf("DeleteTransaction failed: %v", err)
	}

	view, err := service.GetAccountById(ctx, "user1", account.Id)
	if err != nil {
		t.Fatalf("GetAccountById failed: %v", err)
	}
	if view.Balance != 0 {
		t.Errorf("Expected balance restored to 0, got %d", view.Balance)
	}

	if _, err := service.GetTransactionById(ctx, "user1", tx.Id); !store.IsNotFound(err) {
		t.Fatalf("Expected not found after delete, got %v", err)
	}

	// The tombstone is still there for sync reconciliation.
	rows, err := service.GetTransactions(ctx, "user1", store.TransactionFilter{IncludeDeleted: true})
	if err != nil {
		t.Fatalf("GetTransactions with IncludeDeleted failed: %v", err)
	}
	if len(rows) != 1 || rows[0].DeletedAt == nil {
		t.Fatalf("Expected 1 tombstoned row, got %d", len(rows))
	}
}

func TestUpdateTransaction_BufferedWhileLocked(t *testing.T) {
	service, locks, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	account := createTestAccount(t, service, "user1")[0]
	tx := createTestTransaction(t, service, "user1", account.Id, -100)

	locks.Acquire(synclock.TableTransactions, tx.Id)

	note := "added while syncing"
	result, err := service.UpdateTransaction(ctx, "user1", tx.Id, store.UpdateTransactionParams{
		Patch: store.TransactionPatch{Notes: &note},
	})
	if err != nil {
		t.Fatalf("UpdateTransaction failed: %v", err)
	}
	if !result.Buffered {
		t.Fatalf("Expected buffered result while locked")
	}
	if result.Transaction.Notes != note {
		t.Errorf("Projected value should carry the attempted change")
	}

	stored, err := service.GetTransactionById(ctx, "user1", tx.Id)
	if err != nil {
		t.Fatalf("GetTransactionById failed: %v", err)
	}
	if stored.Notes != "" {
		t.Errorf("Buffered edit leaked into the store: %q", stored.Notes)
	}

	patch, ok := locks.ReleaseTransaction(tx.Id)
	if !ok {
		t.Fatalf("Expected a buffered patch on release")
	}
	if _, err := service.UpdateTransaction(ctx, "user1", tx.Id, store.UpdateTransactionParams{
		ExpectedVersion: tx.Version,
		Patch:           patch,
	}); err != nil {
		t.Fatalf("Replaying buffered patch failed: %v", err)
	}

	stored, err = service.GetTransactionById(ctx, "user1", tx.Id)
	if err != nil {
		t.Fatalf("GetTransactionById failed: %v", err)
	}
	if stored.Notes != note {
		t.Errorf("Expected replayed edit to land, got %q", stored.Notes)
	}
}

func TestGetTransactions_Filters(t *testing.T) {
	service, _, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	account := createTestAccount(t, service, "user1")[0]

	if _, err := service.CreateTransaction(ctx, "user1", store.CreateTransactionParams{
		AccountId:       account.Id,
		TransactionType: models.TransactionTypeExpense,
		Amount:          -1200,
		Description:     "supermarket run",
		OccurredOn:      testDate(t, "2026-08-01"),
	}); err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}
	if _, err := service.CreateTransaction(ctx, "user1", store.CreateTransactionParams{
		AccountId:       account.Id,
		TransactionType: models.TransactionTypeIncome,
		Amount:          500000,
		Description:     "salary",
		OccurredOn:      testDate(t, "2026-08-25"),
	}); err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}

	byType, err := service.GetTransactions(ctx, "user1", store.TransactionFilter{
		TransactionType: models.TransactionTypeIncome,
	})
	if err != nil {
		t.Fatalf("GetTransactions failed: %v", err)
	}
	if len(byType) != 1 || byType[0].Description != "salary" {
		t.Fatalf("Type filter mismatch, got %d rows", len(byType))
	}

	bySearch, err := service.GetTransactions(ctx, "user1", store.TransactionFilter{Search: "supermarket"})
	if err != nil {
		t.Fatalf("GetTransactions failed: %v", err)
	}
	if len(bySearch) != 1 || bySearch[0].Description != "supermarket run" {
		t.Fatalf("Search filter mismatch, got %d rows", len(bySearch))
	}

	min := int64(0)
	byAmount, err := service.GetTransactions(ctx, "user1", store.TransactionFilter{MinAmount: &min})
	if err != nil {
		t.Fatalf("GetTransactions failed: %v", err)
	}
	if len(byAmount) != 1 || byAmount[0].Amount != 500000 {
		t.Fatalf("Amount filter mismatch, got %d rows", len(byAmount))
	}

	byRange, err := service.GetTransactions(ctx, "user1", store.TransactionFilter{
		From: testDate(t, "2026-08-20"),
		To:   testDate(t, "2026-08-31"),
	})
	if err != nil {
		t.Fatalf("GetTransactions failed: %v", err)
	}
	if len(byRange) != 1 || byRange[0].Description != "salary" {
		t.Fatalf("Date range filter mismatch, got %d rows", len(byRange))
	}
}

func TestGetTransactions_Enrichment(t *testing.T) {
	service, _, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	account := createTestAccount(t, service, "user1")[0]

	category, err := service.CreateCategory(ctx, "user1", "Groceries", "#00FF00", "cart")
	if err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}

	if _, err := service.CreateTransaction(ctx, "user1", store.CreateTransactionParams{
		AccountId:       account.Id,
		CategoryId:      category.Id,
		TransactionType: models.TransactionTypeExpense,
		Amount:          -1050,
		Description:     "weekly shop",
		OccurredOn:      testDate(t, "2026-08-10"),
	}); err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}

	views, err := service.GetTransactions(ctx, "user1", store.TransactionFilter{})
	if err != nil {
		t.Fatalf("GetTransactions failed: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("Expected 1 transaction, got %d", len(views))
	}

	view := views[0]
	if view.AccountName != "Checking" {
		t.Errorf("Expected enriched account name, got %q", view.AccountName)
	}
	if view.CategoryName != "Groceries" {
		t.Errorf("Expected enriched category name, got %q", view.CategoryName)
	}
	if view.CurrencySymbol != "$" {
		t.Errorf("Expected enriched currency symbol, got %q", view.CurrencySymbol)
	}
	if view.AmountFormatted != "-10.50" {
		t.Errorf("Expected formatted amount -10.50, got %q", view.AmountFormatted)
	}
}
