package hybrid

import (
	"context"
	"testing"
	"time"

	"ledger-sync-go/internal/local"
	"ledger-sync-go/internal/models"
	"ledger-sync-go/internal/store"
	"ledger-sync-go/internal/synclock"
)

func setupHybrid(t *testing.T) (*Service, func()) {
	cfg := models.LocalConfig{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  5 * time.Second,
	}
	currencies := []models.Currency{
		{Code: "USD", Symbol: "$", Name: "US Dollar", DecimalDigits: 2},
	}

	localService, err := local.NewService(context.Background(), cfg, synclock.NewManager(), currencies)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	service := NewService(localService, nil)
	return service, func() { service.Close() }
}

func TestHybrid_WritesLandLocally(t *testing.T) {
	service, cleanup := setupHybrid(t)
	defer cleanup()

	ctx := context.Background()
	accounts, err := service.CreateAccount(ctx, "user1", store.CreateAccountParams{
		Name:          "Checking",
		AccountType:   models.AccountTypeChecking,
		CurrencyCodes: []string{"USD"},
	})
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	// The write is immediately readable and pending: it landed in the local
	// store, not on any remote backend.
	view, err := service.GetAccountById(ctx, "user1", accounts[0].Id)
	if err != nil {
		t.Fatalf("GetAccountById failed: %v", err)
	}
	if view.LocalSyncStatus != models.SyncPending {
		t.Errorf("Expected pending status for offline write, got %s", view.LocalSyncStatus)
	}

	pending, err := service.LocalStore().GetPendingAccounts(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingAccounts failed: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("Expected 1 pending account via LocalStore accessor, got %d", len(pending))
	}
}

func TestHybrid_RemoteAccessor(t *testing.T) {
	service, cleanup := setupHybrid(t)
	defer cleanup()

	if service.RemoteStore() != nil {
		t.Errorf("Expected nil remote store in offline mode")
	}
}
