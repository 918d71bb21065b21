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
	"errors"
	"fmt"

	"go.uber.org/zap"

	"ledger-sync-go/internal/models"
	"ledger-sync-go/internal/store"
)

// Sync-engine-only helpers. These bypass the normal write path: they record
// server acknowledgments and must never be called from UI-facing code.

func (s *Service) GetPendingAccounts(ctx context.Context, limit int) ([]models.Account, error) {
	return s.accountsByStatus(ctx, models.SyncPending, limit)
}

func (s *Service) GetConflictAccounts(ctx context.Context) ([]models.Account, error) {
	return s.accountsByStatus(ctx, models.SyncConflict, 0)
}

func (s *Service) accountsByStatus(ctx context.Context, status models.SyncStatus, limit int) ([]models.Account, error) {
	query := queryGetAccountsByStatus
	args := []any{status}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.WrapUnexpected("local.accountsByStatus", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var accounts []models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, store.WrapUnexpected("local.accountsByStatus", err)
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, store.WrapUnexpected("local.accountsByStatus", err)
	}
	return accounts, nil
}

func (s *Service) GetPendingTransactions(ctx context.Context, limit int) ([]models.Transaction, error) {
	return s.transactionsByStatus(ctx, models.SyncPending, limit)
}

func (s *Service) GetConflictTransactions(ctx context.Context) ([]models.Transaction, error) {
	return s.transactionsByStatus(ctx, models.SyncConflict, 0)
}

func (s *Service) transactionsByStatus(ctx context.Context, status models.SyncStatus, limit int) ([]models.Transaction, error) {
	query := queryGetTransactionsByStatus
	args := []any{status}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.WrapUnexpected("local.transactionsByStatus", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var txs []models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, store.WrapUnexpected("local.transactionsByStatus", err)
		}
		txs = append(txs, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, store.WrapUnexpected("local.transactionsByStatus", err)
	}
	return txs, nil
}

// GetAccountForSync fetches one row by id with no owner or tombstone filter.
// The engine re-reads under the sync lock so a stale batch snapshot is never
// what gets pushed.
func (s *Service) GetAccountForSync(ctx context.Context, id string) (*models.Account, error) {
	account, err := scanAccount(s.db.QueryRowContext(ctx, queryGetAccountForSync, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, store.WrapUnexpected("local.GetAccountForSync", err)
	}
	return account, nil
}

func (s *Service) GetTransactionForSync(ctx context.Context, id string) (*models.Transaction, error) {
	tx, err := scanTransaction(s.db.QueryRowContext(ctx, queryGetTransactionForSync, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, store.WrapUnexpected("local.GetTransactionForSync", err)
	}
	return tx, nil
}

// UpdateAccountSyncStatus records the outcome of a push. Only a synced
// acknowledgment carries the server-assigned version; any other status leaves
// the version untouched.
func (s *Service) UpdateAccountSyncStatus(ctx context.Context, id string, status models.SyncStatus, serverVersion int64) error {
	var err error
	if status == models.SyncSynced {
		if serverVersion <= 0 {
			return fmt.Errorf("synced acknowledgment requires a positive server version, got %d", serverVersion)
		}
		_, err = s.db.ExecContext(ctx, queryMarkAccountSynced, serverVersion, id)
	} else {
		_, err = s.db.ExecContext(ctx, queryMarkAccountStatus, status, id)
	}
	if err != nil {
		return store.WrapUnexpected("local.UpdateAccountSyncStatus", err)
	}

	zap.L().Debug("Account sync status updated",
		zap.String("id", id),
		zap.String("status", string(status)),
		zap.Int64("server_version", serverVersion))
	return nil
}

func (s *Service) UpdateTransactionSyncStatus(ctx context.Context, id string, status models.SyncStatus, serverVersion int64) error {
	var err error
	if status == models.SyncSynced {
		if serverVersion <= 0 {
			return fmt.Errorf("synced acknowledgment requires a positive server version, got %d", serverVersion)
		}
		_, err = s.db.ExecContext(ctx, queryMarkTransactionSynced, serverVersion, id)
	} else {
		_, err = s.db.ExecContext(ctx, queryMarkTransactionStatus, status, id)
	}
	if err != nil {
		return store.WrapUnexpected("local.UpdateTransactionSyncStatus", err)
	}

	zap.L().Debug("Transaction sync status updated",
		zap.String("id", id),
		zap.String("status", string(status)),
		zap.Int64("server_version", serverVersion))
	return nil
}

// SetAccountBalance overwrites a balance with the server-reconciled value.
// Server-computed fields always win over local arithmetic.
func (s *Service) SetAccountBalance(ctx context.Context, id string, balance int64) error {
	if _, err := s.db.ExecContext(ctx, querySetAccountBalance, balance, id); err != nil {
		return store.WrapUnexpected("local.SetAccountBalance", err)
	}
	return nil
}
