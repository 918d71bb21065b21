package common

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ledger-sync-go/internal/hybrid"
	"ledger-sync-go/internal/models"
)

// An unreachable port so remote connection attempts fail fast instead of
// hanging on a real backend.
const unreachableDSN = "ledger:ledger@tcp(127.0.0.1:1)/ledger?parseTime=true"

func testConfig(t *testing.T, localPath, remoteDSN string) *models.Config {
	t.Helper()
	return &models.Config{
		OwnerId: "local-owner",
		Local: models.LocalConfig{
			Path:         localPath,
			MaxOpenConns: 1,
			MaxIdleConns: 1,
			PingTimeout:  2 * time.Second,
		},
		Remote: models.RemoteConfig{
			DSN:          remoteDSN,
			MaxOpenConns: 1,
			MaxIdleConns: 1,
		},
		Sync: models.SyncConfig{
			PollingInterval: time.Second,
			BatchLimit:      100,
		},
	}
}

// A database path under a directory that does not exist cannot be opened.
func unopenablePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "missing", "ledger.db")
}

func TestInitializeServices_OfflineWithoutRemoteDSN(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, filepath.Join(t.TempDir(), "ledger.db"), "")

	services, err := InitializeServices(ctx, cfg)
	if err != nil {
		t.Fatalf("InitializeServices failed: %v", err)
	}
	defer services.Close()

	if services.Store == nil {
		t.Fatal("Expected a usable store")
	}
	if _, ok := services.Store.(*hybrid.Service); !ok {
		t.Errorf("Expected the hybrid router as the store, got %T", services.Store)
	}
	if services.Hybrid == nil {
		t.Fatal("Expected the hybrid service to be exposed")
	}
	if services.Hybrid.RemoteStore() != nil {
		t.Errorf("Offline mode must carry no remote backend")
	}
	if services.Syncer != nil {
		t.Errorf("Sync engine must not run without a remote backend")
	}
}

func TestInitializeServices_RemoteUnreachableFallsBackOffline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cfg := testConfig(t, filepath.Join(t.TempDir(), "ledger.db"), unreachableDSN)

	services, err := InitializeServices(ctx, cfg)
	if err != nil {
		t.Fatalf("InitializeServices failed: %v", err)
	}
	defer services.Close()

	if services.Hybrid == nil {
		t.Fatal("Expected the hybrid router even when the remote is down")
	}
	if services.Hybrid.RemoteStore() != nil {
		t.Errorf("Unreachable remote must leave the router offline")
	}
	if services.Hybrid.LocalStore() == nil {
		t.Errorf("Local store must still serve every call")
	}
	if services.Syncer != nil {
		t.Errorf("Sync engine must not run against an unreachable remote")
	}
}

func TestInitializeServices_LocalUnavailableWithoutDSNFails(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, unopenablePath(t), "")

	if _, err := InitializeServices(ctx, cfg); err == nil {
		t.Fatal("Expected an error when neither backend is available")
	}
}

func TestInitializeServices_LocalUnavailableTriesRemoteSubstitution(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cfg := testConfig(t, unopenablePath(t), unreachableDSN)

	_, err := InitializeServices(ctx, cfg)
	if err == nil {
		t.Fatal("Expected an error when the substitute remote is unreachable")
	}
	// The local failure must not be what comes back: the factory moved on to
	// the remote-only branch and surfaced its connection error instead.
	if !strings.Contains(err.Error(), "remote") {
		t.Errorf("Expected the remote connection error, got: %v", err)
	}
}
