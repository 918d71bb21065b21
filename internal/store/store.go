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

package store

import (
	"context"

	"ledger-sync-go/internal/models"
)

// AccountWriteResult is the outcome of an account update. When the record was
// sync-locked the store was not mutated: Buffered is true and Account carries
// a projected value (current state overlaid with the attempted changes) so
// callers can render optimistically.
type AccountWriteResult struct {
	Account  *models.Account
	Buffered bool
}

// TransactionWriteResult mirrors AccountWriteResult for transactions.
type TransactionWriteResult struct {
	Transaction *models.Transaction
	Buffered    bool
}

// DeleteResult reports a soft delete. Buffered means the tombstone was
// deferred because the record is mid-sync.
type DeleteResult struct {
	Buffered bool
}

// PushResult is the server acknowledgment of a pushed record: the version the
// server assigned and, for accounts, the trigger-computed balance.
type PushResult struct {
	ServerVersion int64
	ServerBalance int64
}

// Repository is the contract every backend (local SQLite, remote MySQL,
// hybrid router) must satisfy. Every call takes the owning user id explicitly;
// no method ever returns or mutates a record across owners.
type Repository interface {
	// --- Accounts ---
	GetAccounts(ctx context.Context, userId string, filter AccountFilter) ([]models.AccountView, error)
	GetAccountById(ctx context.Context, userId, id string) (*models.AccountView, error)
	CreateAccount(ctx context.Context, userId string, params CreateAccountParams) ([]models.Account, error)
	UpdateAccount(ctx context.Context, userId, id string, params UpdateAccountParams) (*AccountWriteResult, error)
	DeleteAccount(ctx context.Context, userId, id string, expectedVersion int64) (*DeleteResult, error)

	// --- Transactions ---
	GetTransactions(ctx context.Context, userId string, filter TransactionFilter) ([]models.TransactionView, error)
	GetTransactionById(ctx context.Context, userId, id string) (*models.TransactionView, error)
	CreateTransaction(ctx context.Context, userId string, params CreateTransactionParams) (*models.Transaction, error)
	CreateTransfer(ctx context.Context, userId string, params CreateTransferParams) (*models.Transfer, error)
	UpdateTransaction(ctx context.Context, userId, id string, params UpdateTransactionParams) (*TransactionWriteResult, error)
	DeleteTransaction(ctx context.Context, userId, id string, expectedVersion int64) (*DeleteResult, error)

	// --- Reference collections ---
	GetCategories(ctx context.Context, userId string) ([]models.Category, error)
	CreateCategory(ctx context.Context, userId, name, color, icon string) (*models.Category, error)
	GetCurrencies(ctx context.Context) ([]models.Currency, error)

	// --- Lifecycle ---
	Close()
}

// SyncStore extends Repository with helpers reserved for the sync engine.
// Only the local backend implements it; the helpers bypass the normal write
// path to record server acknowledgments.
type SyncStore interface {
	Repository

	GetPendingAccounts(ctx context.Context, limit int) ([]models.Account, error)
	GetConflictAccounts(ctx context.Context) ([]models.Account, error)
	// GetAccountForSync re-reads one row by id, tombstoned or not. The engine
	// calls it after acquiring the sync lock so the pushed snapshot carries
	// every local write that landed since the batch was listed.
	GetAccountForSync(ctx context.Context, id string) (*models.Account, error)
	UpdateAccountSyncStatus(ctx context.Context, id string, status models.SyncStatus, serverVersion int64) error
	SetAccountBalance(ctx context.Context, id string, balance int64) error

	GetPendingTransactions(ctx context.Context, limit int) ([]models.Transaction, error)
	GetConflictTransactions(ctx context.Context) ([]models.Transaction, error)
	GetTransactionForSync(ctx context.Context, id string) (*models.Transaction, error)
	UpdateTransactionSyncStatus(ctx context.Context, id string, status models.SyncStatus, serverVersion int64) error
}

// RemoteStore extends Repository with push operations reserved for the sync
// engine. Push methods take the full local record so client-assigned ids and
// group ids survive the trip; expected failures come back as typed errors
// (VersionConflictError, ErrNotFound, LockedError).
type RemoteStore interface {
	Repository

	// PushAccountGroup atomically creates every currency row of one account
	// group; partial application is a correctness violation, so the rows go
	// through a single server-side procedure. Results match input order.
	PushAccountGroup(ctx context.Context, accounts []models.Account) ([]PushResult, error)
	PushAccountUpdate(ctx context.Context, account models.Account) (*PushResult, error)
	PushAccountDelete(ctx context.Context, account models.Account) (*PushResult, error)

	PushTransactionCreate(ctx context.Context, tx models.Transaction) (*PushResult, error)
	// PushTransferCreate atomically creates both legs of a transfer.
	PushTransferCreate(ctx context.Context, legs []models.Transaction) ([]PushResult, error)
	PushTransactionUpdate(ctx context.Context, tx models.Transaction) (*PushResult, error)
	PushTransactionDelete(ctx context.Context, tx models.Transaction) (*PushResult, error)
}
