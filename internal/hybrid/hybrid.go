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

// Package hybrid routes repository calls in offline-first mode: every read
// and write goes to the local store for immediate response, and the sync
// engine reconciles with the remote backend in the background. The remote
// repository is reachable only through the RemoteStore accessor, which keeps
// direct remote access confined to the sync engine.
package hybrid

import (
	"context"

	"ledger-sync-go/internal/models"
	"ledger-sync-go/internal/store"
)

// Compile-time check: *Service must satisfy store.Repository.
var _ store.Repository = (*Service)(nil)

type Service struct {
	local  store.SyncStore
	remote store.RemoteStore
}

func NewService(local store.SyncStore, remote store.RemoteStore) *Service {
	return &Service{local: local, remote: remote}
}

// LocalStore exposes the sync-side surface of the local repository.
func (s *Service) LocalStore() store.SyncStore { return s.local }

// RemoteStore exposes the push surface of the remote repository. May be nil
// when the process runs fully offline.
func (s *Service) RemoteStore() store.RemoteStore { return s.remote }

func (s *Service) GetAccounts(ctx context.Context, userId string, filter store.AccountFilter) ([]models.AccountView, error) {
	return s.local.GetAccounts(ctx, userId, filter)
}

func (s *Service) GetAccountById(ctx context.Context, userId, id string) (*models.AccountView, error) {
	return s.local.GetAccountById(ctx, userId, id)
}

func (s *Service) CreateAccount(ctx context.Context, userId string, params store.CreateAccountParams) ([]models.Account, error) {
	return s.local.CreateAccount(ctx, userId, params)
}

func (s *Service) UpdateAccount(ctx context.Context, userId, id string, params store.UpdateAccountParams) (*store.AccountWriteResult, error) {
	return s.local.UpdateAccount(ctx, userId, id, params)
}

func (s *Service) DeleteAccount(ctx context.Context, userId, id string, expectedVersion int64) (*store.DeleteResult, error) {
	return s.local.DeleteAccount(ctx, userId, id, expectedVersion)
}

func (s *Service) GetTransactions(ctx context.Context, userId string, filter store.TransactionFilter) ([]models.TransactionView, error) {
	return s.local.GetTransactions(ctx, userId, filter)
}

func (s *Service) GetTransactionById(ctx context.Context, userId, id string) (*models.TransactionView, error) {
	return s.local.GetTransactionById(ctx, userId, id)
}

func (s *Service) CreateTransaction(ctx context.Context, userId string, params store.CreateTransactionParams) (*models.Transaction, error) {
	return s.local.CreateTransaction(ctx, userId, params)
}

func (s *Service) CreateTransfer(ctx context.Context, userId string, params store.CreateTransferParams) (*models.Transfer, error) {
	return s.local.CreateTransfer(ctx, userId, params)
}

func (s *Service) UpdateTransaction(ctx context.Context, userId, id string, params store.UpdateTransactionParams) (*store.TransactionWriteResult, error) {
	return s.local.UpdateTransaction(ctx, userId, id, params)
}

func (s *Service) DeleteTransaction(ctx context.Context, userId, id string, expectedVersion int64) (*store.DeleteResult, error) {
	return s.local.DeleteTransaction(ctx, userId, id, expectedVersion)
}

func (s *Service) GetCategories(ctx context.Context, userId string) ([]models.Category, error) {
	return s.local.GetCategories(ctx, userId)
}

func (s *Service) CreateCategory(ctx context.Context, userId, name, color, icon string) (*models.Category, error) {
	return s.local.CreateCategory(ctx, userId, name, color, icon)
}

func (s *Service) GetCurrencies(ctx context.Context) ([]models.Currency, error) {
	return s.local.GetCurrencies(ctx)
}

func (s *Service) Close() {
	s.local.Close()
	if s.remote != nil {
		s.remote.Close()
	}
}
