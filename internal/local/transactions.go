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

func scanTransaction(sc rowScanner) (*models.Transaction, error) {
	var t models.Transaction
	var deletedAt, syncedAt sql.NullTime
	err := sc.Scan(&t.Id, &t.UserId, &t.AccountId, &t.CategoryId, &t.TransferId, &t.ReconciliationId,
		&t.TransactionType, &t.Status, &t.Amount, &t.CurrencyCode, &t.Description, &t.Notes,
		&t.OccurredOn, &t.Version, &t.LocalSyncStatus,
		&deletedAt, &syncedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		t.DeletedAt = &deletedAt.Time
	}
	if syncedAt.Valid {
		t.SyncedAt = &syncedAt.Time
	}
	return &t, nil
}

func (s *Service) GetTransactions(ctx context.Context, userId string, filter store.TransactionFilter) ([]models.TransactionView, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = ?`)
	args := []any{userId}

	if !filter.IncludeDeleted {
		b.WriteString(` AND deleted_at IS NULL`)
	}
	if filter.AccountId != "" {
		b.WriteString(` AND account_id = ?`)
		args = append(args, filter.AccountId)
	}
	if filter.CategoryId != "" {
		b.WriteString(` AND category_id = ?`)
		args = append(args, filter.CategoryId)
	}
	if filter.ReconciliationId != "" {
		b.WriteString(` AND reconciliation_id = ?`)
		args = append(args, filter.ReconciliationId)
	}
	if filter.TransferId != "" {
		b.WriteString(` AND transfer_id = ?`)
		args = append(args, filter.TransferId)
	}
	if filter.TransactionType != "" {
		b.WriteString(` AND transaction_type = ?`)
		args = append(args, filter.TransactionType)
	}
	if filter.Status != "" {
		b.WriteString(` AND status = ?`)
		args = append(args, filter.Status)
	}
	if !filter.From.IsZero() {
		b.WriteString(` AND occurred_on >= ?`)
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		b.WriteString(` AND occurred_on <= ?`)
		args = append(args, filter.To)
	}
	if filter.MinAmount != nil {
		b.WriteString(` AND amount >= ?`)
		args = append(args, *filter.MinAmount)
	}
	if filter.MaxAmount != nil {
		b.WriteString(` AND amount <= ?`)
		args = append(args, *filter.MaxAmount)
	}
	if filter.Search != "" {
		b.WriteString(` AND (description LIKE ? OR notes LIKE ?)`)
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern)
	}
	b.WriteString(` ORDER BY occurred_on DESC, created_at DESC`)
	if filter.Limit > 0 {
		b.WriteString(` LIMIT ? OFFSET ?`)
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, store.WrapUnexpected("local.GetTransactions", err)
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
			return nil, store.WrapUnexpected("local.GetTransactions", err)
		}
		txs = append(txs, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, store.WrapUnexpected("local.GetTransactions", err)
	}

	views, err := s.enricher.Transactions(ctx, txs)
	if err != nil {
		return nil, store.WrapUnexpected("local.GetTransactions", err)
	}
	return views, nil
}

func (s *Service) GetTransactionById(ctx context.Context, userId, id string) (*models.TransactionView, error) {
	tx, err := s.getTransactionRow(ctx, userId, id)
	if err != nil {
		return nil, err
	}
	if tx.IsDeleted() {
		return nil, store.ErrNotFound
	}

	views, err := s.enricher.Transactions(ctx, []models.Transaction{*tx})
	if err != nil {
		return nil, store.WrapUnexpected("local.GetTransactionById", err)
	}
	return &views[0], nil
}

func (s *Service) getTransactionRow(ctx context.Context, userId, id string) (*models.Transaction, error) {
	tx, err := scanTransaction(s.db.QueryRowContext(ctx, queryGetTransactionById, id, userId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, store.WrapUnexpected("local.getTransactionRow", err)
	}
	return tx, nil
}

// affectsBalance reports whether a transaction row counts toward its account
// balance. Inbox rows are staged entries and do not.
func affectsBalance(status string) bool {
	return status == models.TransactionStatusPosted
}

func (s *Service) CreateTransaction(ctx context.Context, userId string, params store.CreateTransactionParams) (*models.Transaction, error) {
	if userId == "" {
		return nil, &store.ValidationError{Field: "userId", Reason: "owner id is required"}
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	status := params.Status
	if status == "" {
		status = models.TransactionStatusPosted
	}

	// Referential checks: the linked account and category must exist for this
	// owner. Currency is inherited from the account.
	account, err := s.getAccountRow(ctx, userId, params.AccountId)
	if err != nil {
		return nil, err
	}
	if account.IsDeleted() {
		return nil, store.ErrNotFound
	}
	if params.CategoryId != "" {
		if err := s.requireCategory(ctx, userId, params.CategoryId); err != nil {
			return nil, err
		}
	}

	id := uuid.New().String()
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, queryInsertTransaction,
			id, userId, params.AccountId, params.CategoryId, "", "",
			params.TransactionType, status, params.Amount, account.CurrencyCode,
			params.Description, params.Notes, params.OccurredOn)
		if err != nil {
			return fmt.Errorf("failed to insert transaction: %w", err)
		}
		if affectsBalance(status) {
			if _, err := tx.ExecContext(ctx, queryAdjustAccountBalance, params.Amount, params.AccountId); err != nil {
				return fmt.Errorf("failed to adjust account balance: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, store.WrapUnexpected("local.CreateTransaction", err)
	}

	created, err := s.getTransactionRow(ctx, userId, id)
	if err != nil {
		return nil, err
	}
	zap.L().Info("Transaction created locally",
		zap.String("user_id", userId),
		zap.String("id", id),
		zap.String("type", params.TransactionType),
		zap.Int64("amount", params.Amount))
	return created, nil
}

func (s *Service) CreateTransfer(ctx context.Context, userId string, params store.CreateTransferParams) (*models.Transfer, error) {
	if userId == "" {
		return nil, &store.ValidationError{Field: "userId", Reason: "owner id is required"}
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	from, err := s.getAccountRow(ctx, userId, params.FromAccountId)
	if err != nil {
		return nil, err
	}
	to, err := s.getAccountRow(ctx, userId, params.ToAccountId)
	if err != nil {
		return nil, err
	}
	if from.IsDeleted() || to.IsDeleted() {
		return nil, store.ErrNotFound
	}

	// All identifiers exist before the first row is written.
	transferId := uuid.New().String()
	outId := uuid.New().String()
	inId := uuid.New().String()

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, queryInsertTransaction,
			outId, userId, from.Id, "", transferId, "",
			models.TransactionTypeTransfer, models.TransactionStatusPosted,
			-params.FromAmount, from.CurrencyCode, params.Description, "", params.OccurredOn)
		if err != nil {
			return fmt.Errorf("failed to insert out leg: %w", err)
		}
		_, err = tx.ExecContext(ctx, queryInsertTransaction,
			inId, userId, to.Id, "", transferId, "",
			models.TransactionTypeTransfer, models.TransactionStatusPosted,
			params.ToAmount, to.CurrencyCode, params.Description, "", params.OccurredOn)
		if err != nil {
			return fmt.Errorf("failed to insert in leg: %w", err)
		}
		if _, err := tx.ExecContext(ctx, queryAdjustAccountBalance, -params.FromAmount, from.Id); err != nil {
			return fmt.Errorf("failed to debit source account: %w", err)
		}
		if _, err := tx.ExecContext(ctx, queryAdjustAccountBalance, params.ToAmount, to.Id); err != nil {
			return fmt.Errorf("failed to credit destination account: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, store.WrapUnexpected("local.CreateTransfer", err)
	}

	outLeg, err := s.getTransactionRow(ctx, userId, outId)
	if err != nil {
		return nil, err
	}
	inLeg, err := s.getTransactionRow(ctx, userId, inId)
	if err != nil {
		return nil, err
	}

	zap.L().Info("Transfer created locally",
		zap.String("user_id", userId),
		zap.String("transfer_id", transferId),
		zap.Int64("from_amount", params.FromAmount),
		zap.Int64("to_amount", params.ToAmount))
	return &models.Transfer{TransferId: transferId, OutLeg: *outLeg, InLeg: *inLeg}, nil
}

func (s *Service) UpdateTransaction(ctx context.Context, userId, id string, params store.UpdateTransactionParams) (*store.TransactionWriteResult, error) {
	current, err := s.getTransactionRow(ctx, userId, id)
	if err != nil {
		return nil, err
	}
	if current.IsDeleted() {
		return nil, store.ErrNotFound
	}
	if params.Patch.IsZero() {
		return &store.TransactionWriteResult{Transaction: current}, nil
	}

	if !isAlreadyPendingLocally(current.LocalSyncStatus) {
		if params.ExpectedVersion != current.Version {
			return nil, &store.VersionConflictError{Table: synclock.TableTransactions, Id: id, Expected: params.ExpectedVersion}
		}
	}

	updated := params.Patch.ApplyTo(*current)
	if err := s.validateTransactionUpdate(ctx, userId, current, &updated); err != nil {
		return nil, err
	}

	if s.locks.BufferTransaction(id, params.Patch) {
		projected := updated
		return &store.TransactionWriteResult{Transaction: &projected, Buffered: true}, nil
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, queryUpdateTransactionFields,
			updated.AccountId, updated.CategoryId, updated.ReconciliationId,
			updated.TransactionType, updated.Status, updated.Amount, updated.CurrencyCode,
			updated.Description, updated.Notes, updated.OccurredOn, id)
		if err != nil {
			return fmt.Errorf("failed to update transaction: %w", err)
		}
		// Rebalance: remove the old contribution, apply the new one.
		if affectsBalance(current.Status) {
			if _, err := tx.ExecContext(ctx, queryAdjustAccountBalance, -current.Amount, current.AccountId); err != nil {
				return fmt.Errorf("failed to reverse old balance contribution: %w", err)
			}
		}
		if affectsBalance(updated.Status) {
			if _, err := tx.ExecContext(ctx, queryAdjustAccountBalance, updated.Amount, updated.AccountId); err != nil {
				return fmt.Errorf("failed to apply new balance contribution: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, store.WrapUnexpected("local.UpdateTransaction", err)
	}

	result, err := s.getTransactionRow(ctx, userId, id)
	if err != nil {
		return nil, err
	}
	return &store.TransactionWriteResult{Transaction: result}, nil
}

func (s *Service) DeleteTransaction(ctx context.Context, userId, id string, expectedVersion int64) (*store.DeleteResult, error) {
	current, err := s.getTransactionRow(ctx, userId, id)
	if err != nil {
		return nil, err
	}
	if current.IsDeleted() {
		return nil, store.ErrNotFound
	}

	if !isAlreadyPendingLocally(current.LocalSyncStatus) {
		if expectedVersion != current.Version {
			return nil, &store.VersionConflictError{Table: synclock.TableTransactions, Id: id, Expected: expectedVersion}
		}
	}

	if s.locks.BufferTransaction(id, store.TransactionPatch{Delete: true}) {
		return &store.DeleteResult{Buffered: true}, nil
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, querySoftDeleteTransaction, id); err != nil {
			return fmt.Errorf("failed to soft-delete transaction: %w", err)
		}
		if affectsBalance(current.Status) {
			if _, err := tx.ExecContext(ctx, queryAdjustAccountBalance, -current.Amount, current.AccountId); err != nil {
				return fmt.Errorf("failed to reverse balance contribution: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, store.WrapUnexpected("local.DeleteTransaction", err)
	}

	zap.L().Info("Transaction soft-deleted locally", zap.String("user_id", userId), zap.String("id", id))
	return &store.DeleteResult{}, nil
}

// validateTransactionUpdate checks the patched values the repository is
// responsible for: enum sanity and referential existence of moved links.
func (s *Service) validateTransactionUpdate(ctx context.Context, userId string, current, updated *models.Transaction) error {
	switch updated.TransactionType {
	case models.TransactionTypeIncome, models.TransactionTypeExpense, models.TransactionTypeTransfer:
	default:
		return &store.ValidationError{Field: "TransactionType", Reason: fmt.Sprintf("unknown type %q", updated.TransactionType)}
	}
	switch updated.Status {
	case models.TransactionStatusPosted, models.TransactionStatusInbox:
	default:
		return &store.ValidationError{Field: "Status", Reason: fmt.Sprintf("unknown status %q", updated.Status)}
	}
	if updated.Amount == 0 {
		return &store.ValidationError{Field: "Amount", Reason: "amount cannot be zero"}
	}

	if updated.AccountId != current.AccountId {
		account, err := s.getAccountRow(ctx, userId, updated.AccountId)
		if err != nil {
			return err
		}
		if account.IsDeleted() {
			return store.ErrNotFound
		}
		updated.CurrencyCode = account.CurrencyCode
	}
	if updated.CategoryId != "" && updated.CategoryId != current.CategoryId {
		if err := s.requireCategory(ctx, userId, updated.CategoryId); err != nil {
			return err
		}
	}
	return nil
}
