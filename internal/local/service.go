/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package local

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"ledger-sync-go/internal/enrich"
	"ledger-sync-go/internal/models"
	"ledger-sync-go/internal/store"
	"ledger-sync-go/internal/synclock"
)

// Compile-time check: *Service must satisfy store.SyncStore.
var _ store.SyncStore = (*Service)(nil)

// Service is the local-first repository: the single source of truth for
// UI-facing reads and the first landing point for every write. Writes land
// as pending and are drained to the remote store by the sync engine.
type Service struct {
	db       *sql.DB
	locks    *synclock.Manager
	enricher *enrich.Enricher
}

func NewService(ctx context.Context, cfg models.LocalConfig, locks *synclock.Manager, currencies []models.Currency) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}
	if locks == nil {
		return nil, fmt.Errorf("sync lock manager is required")
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := &Service{db: db, locks: locks}
	service.enricher = enrich.New(service)

	if err := service.initSchema(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	if err := service.seedCurrencies(ctx, currencies); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to seed currencies: %w", err)
	}

	zap.L().Info("Local store initialized successfully")
	return service, nil
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

func (s *Service) initSchema() error {
	schema := `
	-- Accounts: one row per currency, multi-currency siblings share group_id
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		group_id TEXT NOT NULL,
		name TEXT NOT NULL,
		color TEXT NOT NULL DEFAULT '',
		account_type TEXT NOT NULL DEFAULT 'checking',
		currency_code TEXT NOT NULL,
		balance INTEGER NOT NULL DEFAULT 0,
		version INTEGER NOT NULL DEFAULT 1,
		local_sync_status TEXT NOT NULL DEFAULT 'pending',
		deleted_at TIMESTAMP,
		synced_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_user ON accounts(user_id);
	CREATE INDEX IF NOT EXISTS idx_accounts_group ON accounts(group_id);
	CREATE INDEX IF NOT EXISTS idx_accounts_sync_status ON accounts(local_sync_status);

	-- Transactions: amount is signed integer minor units
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		account_id TEXT NOT NULL,
		category_id TEXT NOT NULL DEFAULT '',
		transfer_id TEXT NOT NULL DEFAULT '',
		reconciliation_id TEXT NOT NULL DEFAULT '',
		transaction_type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'posted',
		amount INTEGER NOT NULL,
		currency_code TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		occurred_on TIMESTAMP NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		local_sync_status TEXT NOT NULL DEFAULT 'pending',
		deleted_at TIMESTAMP,
		synced_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions(account_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_category ON transactions(category_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_transfer ON transactions(transfer_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_occurred ON transactions(occurred_on);
	CREATE INDEX IF NOT EXISTS idx_transactions_sync_status ON transactions(local_sync_status);

	-- Owner-scoped reference collection
	CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		color TEXT NOT NULL DEFAULT '',
		icon TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_categories_user ON categories(user_id);

	-- Global reference collection, seeded from the currencies file
	CREATE TABLE IF NOT EXISTS currencies (
		code TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		name TEXT NOT NULL,
		decimal_digits INTEGER NOT NULL DEFAULT 2
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Service) seedCurrencies(ctx context.Context, currencies []models.Currency) error {
	for _, c := range currencies {
		_, err := s.db.ExecContext(ctx, queryUpsertCurrency, c.Code, c.Symbol, c.Name, c.DecimalDigits)
		if err != nil {
			return fmt.Errorf("failed to seed currency %s: %w", c.Code, err)
		}
	}
	if len(currencies) > 0 {
		zap.L().Info("Seeded currencies", zap.Int("count", len(currencies)))
	}
	return nil
}

// withTx runs fn inside a single transaction so every field mutation of one
// logical write is applied atomically.
func (s *Service) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
