package common

import (
	"context"
	"log"
	"strings"

	"ledger-sync-go/internal/config"
	"ledger-sync-go/internal/hybrid"
	"ledger-sync-go/internal/local"
	"ledger-sync-go/internal/models"
	"ledger-sync-go/internal/remote"
	"ledger-sync-go/internal/store"
	"ledger-sync-go/internal/syncer"
	"ledger-sync-go/internal/synclock"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Try to load .env file - if it doesn't exist, that's okay
	// Environment variables can be set via other means (shell export, docker, etc.)
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

// Services bundles everything a command needs. Store is always usable; Syncer
// is nil when the process runs without a remote backend or in remote-only
// degraded mode.
type Services struct {
	Store  store.Repository
	Hybrid *hybrid.Service
	Syncer *syncer.Engine
	Locks  *synclock.Manager
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices wires the offline-first stack: local store, optional
// remote repository, sync-lock manager and sync engine. When the local store
// cannot be opened but a remote DSN is configured, the remote repository
// serves as the Repository directly and sync is disabled (every write then
// requires connectivity).
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	locks := synclock.NewManager()

	currencies, err := config.LoadCurrencies(cfg.Local.CurrenciesFile)
	if err != nil {
		zap.L().Warn("Unable to load currencies file, using built-in defaults",
			zap.String("file", cfg.Local.CurrenciesFile),
			zap.Error(err))
		currencies = config.DefaultCurrencies()
	}

	localService, localErr := local.NewService(ctx, cfg.Local, locks, currencies)
	if localErr != nil {
		if cfg.Remote.DSN == "" {
			return nil, localErr
		}
		zap.L().Warn("Local store unavailable, falling back to remote-only mode",
			zap.Error(localErr))
		remoteService, err := remote.NewService(ctx, cfg.Remote)
		if err != nil {
			return nil, err
		}
		return &Services{Store: remoteService, Locks: locks}, nil
	}

	if cfg.Remote.DSN == "" {
		zap.L().Info("No remote DSN configured, running fully offline")
		hybridService := hybrid.NewService(localService, nil)
		return &Services{Store: hybridService, Hybrid: hybridService, Locks: locks}, nil
	}

	remoteService, err := remote.NewService(ctx, cfg.Remote)
	if err != nil {
		zap.L().Warn("Remote backend unreachable, running offline until restart",
			zap.Error(err))
		hybridService := hybrid.NewService(localService, nil)
		return &Services{Store: hybridService, Hybrid: hybridService, Locks: locks}, nil
	}

	hybridService := hybrid.NewService(localService, remoteService)
	engine := syncer.NewEngine(localService, remoteService, locks, cfg.Sync)

	return &Services{
		Store:  hybridService,
		Hybrid: hybridService,
		Syncer: engine,
		Locks:  locks,
	}, nil
}

// InitializeLocalOnly opens just the local store. Useful for read-only
// commands that must never touch the network.
func InitializeLocalOnly(ctx context.Context, cfg *models.Config) (*local.Service, error) {
	currencies, err := config.LoadCurrencies(cfg.Local.CurrenciesFile)
	if err != nil {
		currencies = config.DefaultCurrencies()
	}
	return local.NewService(ctx, cfg.Local, synclock.NewManager(), currencies)
}

func (cs *Services) Close() {
	if cs.Store != nil {
		cs.Store.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
