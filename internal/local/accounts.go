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
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ledger-sync-go/internal/models"
	"ledger-sync-go/internal/store"
	"ledger-sync-go/internal/synclock"
)

// isAlreadyPendingLocally reports whether the record holds unsynced local
// state, making this device the temporary master of it: merges skip the
// optimistic-concurrency check and must never advance the version.
func isAlreadyPendingLocally(status models.SyncStatus) bool {
	return status == models.SyncPending || status == models.SyncConflict
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(sc rowScanner) (*models.Account, error) {
	var a models.Account
	var deletedAt, syncedAt sql.NullTime
	err := sc.Scan(&a.Id, &a.UserId, &a.GroupId, &a.Name, &a.Color, &a.AccountType,
		&a.CurrencyCode, &a.Balance, &a.Version, &a.LocalSyncStatus,
		&deletedAt, &syncedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		a.DeletedAt = &deletedAt.Time
	}
	if syncedAt.Valid {
		a.SyncedAt = &syncedAt.Time
	}
	return &a, nil
}

func (s *Service) GetAccounts(ctx context.Context, userId string, filter store.AccountFilter) ([]models.AccountView, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + accountColumns + ` FROM accounts WHERE user_id = ?`)
	args := []any{userId}

	if !filter.IncludeDeleted {
		b.WriteString(` AND deleted_at IS NULL`)
	}
	if filter.GroupId != "" {
		b.WriteString(` AND group_id = ?`)
		args = append(args, filter.GroupId)
	}
	if filter.CurrencyCode != "" {
		b.WriteString(` AND currency_code = ?`)
		args = append(args, filter.CurrencyCode)
	}
	if filter.AccountType != "" {
		b.WriteString(` AND account_type = ?`)
		args = append(args, filter.AccountType)
	}
	b.WriteString(` ORDER BY name, currency_code`)

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, store.WrapUnexpected("local.GetAccounts", err)
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
			return nil, store.WrapUnexpected("local.GetAccounts", err)
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, store.WrapUnexpected("local.GetAccounts", err)
	}

	views, err := s.enricher.Accounts(ctx, accounts)
	if err != nil {
		return nil, store.WrapUnexpected("local.GetAccounts", err)
	}
	return views, nil
}

func (s *Service) GetAccountById(ctx context.Context, userId, id string) (*models.AccountView, error) {
	account, err := s.getAccountRow(ctx, userId, id)
	if err != nil {
		return nil, err
	}
	if account.IsDeleted() {
		return nil, store.ErrNotFound
	}

	views, err := s.enricher.Accounts(ctx, []models.Account{*account})
	if err != nil {
		return nil, store.WrapUnexpected("local.GetAccountById", err)
	}
	return &views[0], nil
}

// getAccountRow fetches an owner-filtered account including tombstoned rows.
// A row owned by someone else is indistinguishable from a missing one.
func (s *Service) getAccountRow(ctx context.Context, userId, id string) (*models.Account, error) {
	account, err := scanAccount(s.db.QueryRowContext(ctx, queryGetAccountById, id, userId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, store.WrapUnexpected("local.getAccountRow", err)
	}
	return account, nil
}

func (s *Service) CreateAccount(ctx context.Context, userId string, params store.CreateAccountParams) ([]models.Account, error) {
	if userId == "" {
		return nil, &store.ValidationError{Field: "userId", Reason: "owner id is required"}
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := s.requireCurrencies(ctx, params.CurrencyCodes); err != nil {
		return nil, err
	}

	// Identifiers are assigned before the write begins so a failure mid-write
	// never leaves a dangling reference.
	groupId := uuid.New().String()
	ids := make([]string, len(params.CurrencyCodes))
	for i := range ids {
		ids[i] = uuid.New().String()
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for i, code := range params.CurrencyCodes {
			_, err := tx.ExecContext(ctx, queryInsertAccount,
				ids[i], userId, groupId, params.Name, params.Color, params.AccountType, code)
			if err != nil {
				return fmt.Errorf("failed to insert account row %s: %w", code, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, store.WrapUnexpected("local.CreateAccount", err)
	}

	accounts := make([]models.Account, 0, len(ids))
	for _, id := range ids {
		account, err := s.getAccountRow(ctx, userId, id)
		if err != nil {
			return nil, store.WrapUnexpected("local.CreateAccount", err)
		}
		accounts = append(accounts, *account)
	}

	zap.L().Info("Account created locally",
		zap.String("user_id", userId),
		zap.String("group_id", groupId),
		zap.Int("currency_rows", len(accounts)))
	return accounts, nil
}

func (s *Service) UpdateAccount(ctx context.Context, userId, id string, params store.UpdateAccountParams) (*store.AccountWriteResult, error) {
	account, err := s.getAccountRow(ctx, userId, id)
	if err != nil {
		return nil, err
	}
	if account.IsDeleted() {
		// Deleted records no longer exist for mutation purposes.
		return nil, store.ErrNotFound
	}
	if params.Patch.IsZero() {
		return &store.AccountWriteResult{Account: account}, nil
	}

	if !isAlreadyPendingLocally(account.LocalSyncStatus) {
		if params.ExpectedVersion != account.Version {
			return nil, &store.VersionConflictError{Table: synclock.TableAccounts, Id: id, Expected: params.ExpectedVersion}
		}
	}

	// A record mid-push must not be mutated underneath the sync engine. The
	// edit is buffered for replay and the caller gets a projected value.
	if s.locks.BufferAccount(id, params.Patch) {
		projected := params.Patch.ApplyTo(*account)
		return &store.AccountWriteResult{Account: &projected, Buffered: true}, nil
	}

	updated := params.Patch.ApplyTo(*account)
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, queryUpdateAccountFields,
			updated.Name, updated.Color, updated.AccountType, id)
		return err
	})
	if err != nil {
		return nil, store.WrapUnexpected("local.UpdateAccount", err)
	}

	account, err = s.getAccountRow(ctx, userId, id)
	if err != nil {
		return nil, err
	}
	return &store.AccountWriteResult{Account: account}, nil
}

func (s *Service) DeleteAccount(ctx context.Context, userId, id string, expectedVersion int64) (*store.DeleteResult, error) {
	account, err := s.getAccountRow(ctx, userId, id)
	if err != nil {
		return nil, err
	}
	if account.IsDeleted() {
		return nil, store.ErrNotFound
	}

	if !isAlreadyPendingLocally(account.LocalSyncStatus) {
		if expectedVersion != account.Version {
			return nil, &store.VersionConflictError{Table: synclock.TableAccounts, Id: id, Expected: expectedVersion}
		}
	}

	if s.locks.BufferAccount(id, store.AccountPatch{Delete: true}) {
		return &store.DeleteResult{Buffered: true}, nil
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, querySoftDeleteAccount, id)
		return err
	})
	if err != nil {
		return nil, store.WrapUnexpected("local.DeleteAccount", err)
	}

	zap.L().Info("Account soft-deleted locally", zap.String("user_id", userId), zap.String("id", id))
	return &store.DeleteResult{}, nil
}

// requireCurrencies verifies every code exists in the reference table.
func (s *Service) requireCurrencies(ctx context.Context, codes []string) error {
	known, err := s.CurrenciesByCodes(ctx, codes)
	if err != nil {
		return store.WrapUnexpected("local.requireCurrencies", err)
	}
	byCode := make(map[string]bool, len(known))
	for _, c := range known {
		byCode[c.Code] = true
	}
	for _, code := range codes {
		if !byCode[code] {
			return &store.ValidationError{Field: "CurrencyCodes", Reason: fmt.Sprintf("unknown currency %q", code)}
		}
	}
	return nil
}
