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

// syncAccounts pushes one batch of pending accounts. Rows that have never
// been acknowledged are grouped by group id and created atomically; the rest
// are version-checked updates or deletes.
func (e *Engine) syncAccounts(ctx context.Context) error {
	pending, err := e.local.GetPendingAccounts(ctx, e.batchLimit)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	groups := make(map[string][]models.Account)
	var groupOrder []string
	var singles []models.Account

	for _, account := range pending {
		switch {
		case account.SyncedAt == nil && account.IsDeleted():
			// Created and deleted offline: there is no remote counterpart.
			e.ackAccount(ctx, account.Id, account.Version, 0, false)
		case account.SyncedAt == nil:
			if _, seen := groups[account.GroupId]; !seen {
				groupOrder = append(groupOrder, account.GroupId)
			}
			groups[account.GroupId] = append(groups[account.GroupId], account)
		default:
			singles = append(singles, account)
		}
	}

	for _, groupId := range groupOrder {
		e.pushAccountGroup(ctx, groupId, groups[groupId])
	}
	for _, account := range singles {
		e.pushAccount(ctx, account)
	}
	return nil
}

// lockAndRefreshAccount acquires the sync lock, then re-reads the row. Edits
// that landed between the batch listing and the lock are written directly to
// the store, so the batch snapshot may be stale; only the re-read value is
// safe to push. Returns false, with the lock released, when the row vanished
// or is no longer pending.
func (e *Engine) lockAndRefreshAccount(ctx context.Context, snapshot models.Account) (models.Account, bool) {
	e.locks.Acquire(synclock.TableAccounts, snapshot.Id)

	fresh, err := e.local.GetAccountForSync(ctx, snapshot.Id)
	if err != nil {
		zap.L().Warn("Failed to re-read account before push",
			zap.String("account_id", snapshot.Id),
			zap.Error(err))
		e.releaseAccountLock(ctx, snapshot.UserId, snapshot.Id, snapshot.Version)
		return models.Account{}, false
	}
	if fresh.LocalSyncStatus != models.SyncPending {
		e.releaseAccountLock(ctx, snapshot.UserId, snapshot.Id, fresh.Version)
		return models.Account{}, false
	}
	return *fresh, true
}

// pushAccountGroup creates every never-synced row of one account group with
// a single atomic remote call.
func (e *Engine) pushAccountGroup(ctx context.Context, groupId string, snapshots []models.Account) {
	accounts := make([]models.Account, 0, len(snapshots))
	for _, snapshot := range snapshots {
		account, ok := e.lockAndRefreshAccount(ctx, snapshot)
		if !ok {
			continue
		}
		if account.IsDeleted() {
			e.releaseAccountLock(ctx, account.UserId, account.Id, account.Version)
			continue
		}
		accounts = append(accounts, account)
	}
	if len(accounts) != len(snapshots) {
		// The group changed under the batch; let the next pass re-partition it.
		for _, account := range accounts {
			e.releaseAccountLock(ctx, account.UserId, account.Id, account.Version)
		}
		return
	}

	results, err := e.remote.PushAccountGroup(ctx, accounts)
	if err != nil {
		markConflict := classifyPushError(err)
		zap.L().Warn("Account group push failed",
			zap.String("group_id", groupId),
			zap.Bool("conflict", markConflict),
			zap.Error(err))
		for _, account := range accounts {
			if markConflict {
				e.markAccountConflict(ctx, account.Id)
			}
			e.releaseAccountLock(ctx, account.UserId, account.Id, account.Version)
		}
		return
	}

	for i, account := range accounts {
		e.ackAccount(ctx, account.Id, results[i].ServerVersion, results[i].ServerBalance, true)
		e.releaseAccountLock(ctx, account.UserId, account.Id, results[i].ServerVersion)
	}
	zap.L().Info("Pushed account group",
		zap.String("group_id", groupId),
		zap.Int("rows", len(accounts)))
}

// pushAccount pushes one already-acknowledged account as a version-checked
// update or soft delete.
func (e *Engine) pushAccount(ctx context.Context, snapshot models.Account) {
	account, ok := e.lockAndRefreshAccount(ctx, snapshot)
	if !ok {
		return
	}

	var (
		result *store.PushResult
		err    error
	)
	if account.IsDeleted() {
		result, err = e.remote.PushAccountDelete(ctx, account)
	} else {
		result, err = e.remote.PushAccountUpdate(ctx, account)
	}

	if err != nil {
		if classifyPushError(err) {
			e.markAccountConflict(ctx, account.Id)
			zap.L().Warn("Account push conflicted",
				zap.String("account_id", account.Id),
				zap.Error(err))
		} else {
			zap.L().Warn("Account push failed, will retry",
				zap.String("account_id", account.Id),
				zap.Error(err))
		}
		e.releaseAccountLock(ctx, account.UserId, account.Id, account.Version)
		return
	}

	e.ackAccount(ctx, account.Id, result.ServerVersion, result.ServerBalance, true)
	e.releaseAccountLock(ctx, account.UserId, account.Id, result.ServerVersion)
}

// ackAccount records a server acknowledgment: synced status, the server
// version and, when the push reached the backend, the server-computed
// balance.
func (e *Engine) ackAccount(ctx context.Context, id string, serverVersion, serverBalance int64, reconcileBalance bool) {
	if err := e.local.UpdateAccountSyncStatus(ctx, id, models.SyncSynced, serverVersion); err != nil {
		zap.L().Error("Failed to mark account synced",
			zap.String("account_id", id),
			zap.Error(err))
		return
	}
	if !reconcileBalance {
		return
	}
	if err := e.local.SetAccountBalance(ctx, id, serverBalance); err != nil {
		zap.L().Error("Failed to reconcile account balance",
			zap.String("account_id", id),
			zap.Error(err))
	}
}

func (e *Engine) markAccountConflict(ctx context.Context, id string) {
	if err := e.local.UpdateAccountSyncStatus(ctx, id, models.SyncConflict, 0); err != nil {
		zap.L().Error("Failed to mark account conflicted",
			zap.String("account_id", id),
			zap.Error(err))
	}
}
