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

package syncer

import (
	"context"

	"go.uber.org/zap"

	"ledger-sync-go/internal/models"
	"ledger-sync-go/internal/store"
	"ledger-sync-go/internal/synclock"
)

// syncTransactions pushes one batch of pending transactions. Never-synced
// transfer legs are grouped by transfer id and created atomically; other
// never-synced rows are single creates; acknowledged rows are version-checked
// updates or deletes.
func (e *Engine) syncTransactions(ctx context.Context) error {
	pending, err := e.local.GetPendingTransactions(ctx, e.batchLimit)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	transfers := make(map[string][]models.Transaction)
	var transferOrder []string
	var creates, singles []models.Transaction

	for _, tx := range pending {
		switch {
		case tx.SyncedAt == nil && tx.IsDeleted():
			// Created and deleted offline: nothing exists remotely.
			e.ackTransaction(ctx, tx.Id, tx.Version)
		case tx.SyncedAt == nil && tx.TransferId != "":
			if _, seen := transfers[tx.TransferId]; !seen {
				transferOrder = append(transferOrder, tx.TransferId)
			}
			transfers[tx.TransferId] = append(transfers[tx.TransferId], tx)
		case tx.SyncedAt == nil:
			creates = append(creates, tx)
		default:
			singles = append(singles, tx)
		}
	}

	for _, transferId := range transferOrder {
		e.pushTransfer(ctx, transferId, transfers[transferId])
	}
	for _, tx := range creates {
		e.pushTransactionCreate(ctx, tx)
	}
	for _, tx := range singles {
		e.pushTransaction(ctx, tx)
	}
	return nil
}

// lockAndRefreshTransaction mirrors lockAndRefreshAccount: lock first, then
// re-read so the push never carries a snapshot older than the latest local
// write.
func (e *Engine) lockAndRefreshTransaction(ctx context.Context, snapshot models.Transaction) (models.Transaction, bool) {
	e.locks.Acquire(synclock.TableTransactions, snapshot.Id)

	fresh, err := e.local.GetTransactionForSync(ctx, snapshot.Id)
	if err != nil {
		zap.L().Warn("Failed to re-read transaction before push",
			zap.String("transaction_id", snapshot.Id),
			zap.Error(err))
		e.releaseTransactionLock(ctx, snapshot.UserId, snapshot.Id, snapshot.Version)
		return models.Transaction{}, false
	}
	if fresh.LocalSyncStatus != models.SyncPending {
		e.releaseTransactionLock(ctx, snapshot.UserId, snapshot.Id, fresh.Version)
		return models.Transaction{}, false
	}
	return *fresh, true
}

// pushTransfer creates both legs of one transfer with a single atomic remote
// call. Legs always travel together; pushing one without the other would
// leave the backend double-entry inconsistent.
func (e *Engine) pushTransfer(ctx context.Context, transferId string, snapshots []models.Transaction) {
	legs := make([]models.Transaction, 0, len(snapshots))
	for _, snapshot := range snapshots {
		leg, ok := e.lockAndRefreshTransaction(ctx, snapshot)
		if !ok {
			continue
		}
		if leg.IsDeleted() {
			e.releaseTransactionLock(ctx, leg.UserId, leg.Id, leg.Version)
			continue
		}
		legs = append(legs, leg)
	}
	if len(legs) != len(snapshots) {
		// A leg changed under the batch; let the next pass re-partition it.
		for _, leg := range legs {
			e.releaseTransactionLock(ctx, leg.UserId, leg.Id, leg.Version)
		}
		return
	}

	results, err := e.remote.PushTransferCreate(ctx, legs)
	if err != nil {
		markConflict := classifyPushError(err)
		zap.L().Warn("Transfer push failed",
			zap.String("transfer_id", transferId),
			zap.Bool("conflict", markConflict),
			zap.Error(err))
		for _, leg := range legs {
			if markConflict {
				e.markTransactionConflict(ctx, leg.Id)
			}
			e.releaseTransactionLock(ctx, leg.UserId, leg.Id, leg.Version)
		}
		return
	}

	for i, leg := range legs {
		e.ackTransaction(ctx, leg.Id, results[i].ServerVersion)
		e.releaseTransactionLock(ctx, leg.UserId, leg.Id, results[i].ServerVersion)
	}
	zap.L().Info("Pushed transfer",
		zap.String("transfer_id", transferId),
		zap.Int("legs", len(legs)))
}

// pushTransactionCreate pushes one never-synced transaction.
func (e *Engine) pushTransactionCreate(ctx context.Context, snapshot models.Transaction) {
	tx, ok := e.lockAndRefreshTransaction(ctx, snapshot)
	if !ok {
		return
	}
	if tx.IsDeleted() {
		// Deleted after the batch was listed; nothing exists remotely.
		e.ackTransaction(ctx, tx.Id, tx.Version)
		e.releaseTransactionLock(ctx, tx.UserId, tx.Id, tx.Version)
		return
	}

	result, err := e.remote.PushTransactionCreate(ctx, tx)
	if err != nil {
		if classifyPushError(err) {
			e.markTransactionConflict(ctx, tx.Id)
			zap.L().Warn("Transaction create push conflicted",
				zap.String("transaction_id", tx.Id),
				zap.Error(err))
		} else {
			zap.L().Warn("Transaction create push failed, will retry",
				zap.String("transaction_id", tx.Id),
				zap.Error(err))
		}
		e.releaseTransactionLock(ctx, tx.UserId, tx.Id, tx.Version)
		return
	}

	e.ackTransaction(ctx, tx.Id, result.ServerVersion)
	e.releaseTransactionLock(ctx, tx.UserId, tx.Id, result.ServerVersion)
}

// pushTransaction pushes one already-acknowledged transaction as a
// version-checked update or soft delete.
func (e *Engine) pushTransaction(ctx context.Context, snapshot models.Transaction) {
	tx, ok := e.lockAndRefreshTransaction(ctx, snapshot)
	if !ok {
		return
	}

	var (
		result *store.PushResult
		err    error
	)
	if tx.IsDeleted() {
		result, err = e.remote.PushTransactionDelete(ctx, tx)
	} else {
		result, err = e.remote.PushTransactionUpdate(ctx, tx)
	}

	if err != nil {
		if classifyPushError(err) {
			e.markTransactionConflict(ctx, tx.Id)
			zap.L().Warn("Transaction push conflicted",
				zap.String("transaction_id", tx.Id),
				zap.Error(err))
		} else {
			zap.L().Warn("Transaction push failed, will retry",
				zap.String("transaction_id", tx.Id),
				zap.Error(err))
		}
		e.releaseTransactionLock(ctx, tx.UserId, tx.Id, tx.Version)
		return
	}

	e.ackTransaction(ctx, tx.Id, result.ServerVersion)
	e.releaseTransactionLock(ctx, tx.UserId, tx.Id, result.ServerVersion)
}

func (e *Engine) ackTransaction(ctx context.Context, id string, serverVersion int64) {
	if err := e.local.UpdateTransactionSyncStatus(ctx, id, models.SyncSynced, serverVersion); err != nil {
		zap.L().Error("Failed to mark transaction synced",
			zap.String("transaction_id", id),
			zap.Error(err))
	}
}

func (e *Engine) markTransactionConflict(ctx context.Context, id string) {
	if err := e.local.UpdateTransactionSyncStatus(ctx, id, models.SyncConflict, 0); err != nil {
		zap.L().Error("Failed to mark transaction conflicted",
			zap.String("transaction_id", id),
			zap.Error(err))
	}
}
