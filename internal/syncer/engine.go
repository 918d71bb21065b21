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

// Package syncer pushes locally pending records to the remote backend. Each
// record is sync-locked while its push is in flight; local edits arriving in
// the meantime are buffered by the lock manager and replayed through the
// normal update path once the lock releases, exactly once.
package syncer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ledger-sync-go/internal/models"
	"ledger-sync-go/internal/store"
	"ledger-sync-go/internal/synclock"
)

type Engine struct {
	local      store.SyncStore
	remote     store.RemoteStore
	locks      *synclock.Manager
	interval   time.Duration
	batchLimit int

	stopChan chan struct{}
	doneChan chan struct{}
}

func NewEngine(local store.SyncStore, remote store.RemoteStore, locks *synclock.Manager, cfg models.SyncConfig) *Engine {
	return &Engine{
		local:      local,
		remote:     remote,
		locks:      locks,
		interval:   cfg.PollingInterval,
		batchLimit: cfg.BatchLimit,
		stopChan:   make(chan struct{}),
		doneChan:   make(chan struct{}),
	}
}

// Start begins the background reconciliation loop.
func (e *Engine) Start(ctx context.Context) error {
	if e.remote == nil {
		return fmt.Errorf("sync engine requires a remote repository")
	}
	if e.interval <= 0 {
		return fmt.Errorf("polling interval must be positive, got %s", e.interval)
	}

	go e.pollLoop(ctx)

	zap.L().Info("Sync engine started",
		zap.Duration("polling_interval", e.interval),
		zap.Int("batch_limit", e.batchLimit))
	return nil
}

// Stop gracefully stops the reconciliation loop.
func (e *Engine) Stop() {
	zap.L().Info("Stopping sync engine")
	close(e.stopChan)
	<-e.doneChan
	zap.L().Info("Sync engine stopped")
}

func (e *Engine) pollLoop(ctx context.Context) {
	defer close(e.doneChan)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	if err := e.SyncOnce(ctx); err != nil {
		zap.L().Error("Sync pass failed", zap.Error(err))
	}

	for {
		select {
		case <-ticker.C:
			if err := e.SyncOnce(ctx); err != nil {
				zap.L().Error("Sync pass failed", zap.Error(err))
			}
		case <-e.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// SyncOnce runs a single reconciliation pass. Accounts first: transactions
// reference them, so their rows must exist remotely before transaction pushes.
func (e *Engine) SyncOnce(ctx context.Context) error {
	if err := e.syncAccounts(ctx); err != nil {
		return fmt.Errorf("account sync failed: %w", err)
	}
	if err := e.syncTransactions(ctx); err != nil {
		return fmt.Errorf("transaction sync failed: %w", err)
	}
	return nil
}

// classifyPushError decides what happens to the local record after a failed
// push. Version conflicts, vanished remote rows and remote locks all need the
// user to resolve; infrastructure failures leave the record pending so the
// next pass retries.
func classifyPushError(err error) (markConflict bool) {
	return store.IsVersionConflict(err) || store.IsNotFound(err) || store.IsLocked(err)
}

// releaseAccountLock drains the buffer for an account and replays any edits
// captured mid-push through the normal local write path.
func (e *Engine) releaseAccountLock(ctx context.Context, userId, id string, expectedVersion int64) {
	patch, ok := e.locks.ReleaseAccount(id)
	if !ok {
		return
	}

	var err error
	if patch.Delete {
		_, err = e.local.DeleteAccount(ctx, userId, id, expectedVersion)
	} else {
		_, err = e.local.UpdateAccount(ctx, userId, id, store.UpdateAccountParams{
			ExpectedVersion: expectedVersion,
			Patch:           patch,
		})
	}
	if err != nil {
		zap.L().Warn("Failed to replay buffered account edit",
			zap.String("account_id", id),
			zap.Error(err))
	}
}

// releaseTransactionLock mirrors releaseAccountLock for transactions.
func (e *Engine) releaseTransactionLock(ctx context.Context, userId, id string, expectedVersion int64) {
	patch, ok := e.locks.ReleaseTransaction(id)
	if !ok {
		return
	}

	var err error
	if patch.Delete {
		_, err = e.local.DeleteTransaction(ctx, userId, id, expectedVersion)
	} else {
		_, err = e.local.UpdateTransaction(ctx, userId, id, store.UpdateTransactionParams{
			ExpectedVersion: expectedVersion,
			Patch:           patch,
		})
	}
	if err != nil {
		zap.L().Warn("Failed to replay buffered transaction edit",
			zap.String("transaction_id", id),
			zap.Error(err))
	}
}
