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

package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ledger-sync-go/internal/models"
	"ledger-sync-go/internal/money"
	"ledger-sync-go/internal/store"
)

// transactionDetailsRow mirrors one row of transaction_details_view.
type transactionDetailsRow struct {
	Id               string
	UserId           string
	AccountId        string
	CategoryId       string
	TransferId       string
	ReconciliationId string
	TransactionType  string
	Status           string
	Amount           int64
	CurrencyCode     string
	Description      string
	Notes            string
	OccurredOn       time.Time
	Version          int64
	DeletedAt        *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
	AccountName      string
	AccountColor     string
	CategoryName     string
	CategoryColor    string
	CategoryIcon     string
	CurrencySymbol   string
	DecimalDigits    int
}

func (r transactionDetailsRow) toView() models.TransactionView {
	acknowledged := r.UpdatedAt
	return models.TransactionView{
		Transaction: models.Transaction{
			Id:               r.Id,
			UserId:           r.UserId,
			AccountId:        r.AccountId,
			CategoryId:       r.CategoryId,
			TransferId:       r.TransferId,
			ReconciliationId: r.ReconciliationId,
			TransactionType:  r.TransactionType,
			Status:           r.Status,
			Amount:           r.Amount,
			CurrencyCode:     r.CurrencyCode,
			Description:      r.Description,
			Notes:            r.Notes,
			OccurredOn:       r.OccurredOn,
			Version:          r.Version,
			LocalSyncStatus:  models.SyncSynced,
			DeletedAt:        r.DeletedAt,
			SyncedAt:         &acknowledged,
			CreatedAt:        r.CreatedAt,
			UpdatedAt:        r.UpdatedAt,
		},
		AccountName:     r.AccountName,
		AccountColor:    r.AccountColor,
		CategoryName:    r.CategoryName,
		CategoryColor:   r.CategoryColor,
		CategoryIcon:    r.CategoryIcon,
		CurrencySymbol:  r.CurrencySymbol,
		AmountFormatted: money.FromMinorUnits(r.Amount, r.DecimalDigits),
	}
}

func (s *Service) GetTransactions(ctx context.Context, userId string, filter store.TransactionFilter) ([]models.TransactionView, error) {
	query := s.db.WithContext(ctx).Table("transaction_details_view").Where("user_id = ?", userId)
	if !filter.IncludeDeleted {
		query = query.Where("deleted_at IS NULL")
	}
	if filter.AccountId != "" {
		query = query.Where("account_id = ?", filter.AccountId)
	}
	if filter.CategoryId != "" {
		query = query.Where("category_id = ?", filter.CategoryId)
	}
	if filter.ReconciliationId != "" {
		query = query.Where("reconciliation_id = ?", filter.ReconciliationId)
	}
	if filter.TransferId != "" {
		query = query.Where("transfer_id = ?", filter.TransferId)
	}
	if filter.TransactionType != "" {
		query = query.Where("transaction_type = ?", filter.TransactionType)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if !filter.From.IsZero() {
		query = query.Where("occurred_on >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		query = query.Where("occurred_on <= ?", filter.To)
	}
	if filter.MinAmount != nil {
		query = query.Where("amount >= ?", *filter.MinAmount)
	}
	if filter.MaxAmount != nil {
		query = query.Where("amount <= ?", *filter.MaxAmount)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("(description LIKE ? OR notes LIKE ?)", like, like)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var rows []transactionDetailsRow
	if err := query.Order("occurred_on DESC, created_at DESC").Scan(&rows).Error; err != nil {
		return nil, translateError("GetTransactions", "transactions", "", err)
	}

	views := make([]models.TransactionView, len(rows))
	for i, row := range rows {
		views[i] = row.toView()
	}
	return views, nil
}

func (s *Service) GetTransactionById(ctx context.Context, userId, id string) (*models.TransactionView, error) {
	row, err := s.getTransactionRow(ctx, userId, id)
	if err != nil {
		return nil, err
	}
	if row.DeletedAt != nil {
		return nil, store.ErrNotFound
	}
	view := row.toView()
	return &view, nil
}

func (s *Service) getTransactionRow(ctx context.Context, userId, id string) (*transactionDetailsRow, error) {
	var rows []transactionDetailsRow
	err := s.db.WithContext(ctx).
		Table("transaction_details_view").
		Where("id = ? AND user_id = ?", id, userId).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, translateError("getTransactionRow", "transactions", id, err)
	}
	if len(rows) == 0 {
		return nil, store.ErrNotFound
	}
	return &rows[0], nil
}

// callCreateTransaction invokes the single-row creation procedure. The
// backend's triggers assign the initial version and fold posted amounts into
// the owning account balance.
func (s *Service) callCreateTransaction(ctx context.Context, tx models.Transaction) (*store.PushResult, error) {
	var res procResult
	err := s.db.WithContext(ctx).
		Raw("CALL sp_create_transaction(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			tx.Id, tx.UserId, tx.AccountId, nullableId(tx.CategoryId),
			tx.TransactionType, tx.Status, tx.Amount,
			tx.Description, tx.Notes, tx.OccurredOn, nullableTime(tx.DeletedAt)).
		Scan(&res).Error
	if err != nil {
		return nil, translateError("callCreateTransaction", "transactions", tx.Id, err)
	}
	return translateProcResult("sp_create_transaction", "transactions", tx.Id, 0, res)
}

func (s *Service) CreateTransaction(ctx context.Context, userId string, params store.CreateTransactionParams) (*models.Transaction, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	account, err := s.GetAccountById(ctx, userId, params.AccountId)
	if err != nil {
		return nil, err
	}

	status := params.Status
	if status == "" {
		status = models.TransactionStatusPosted
	}

	tx := models.Transaction{
		Id:              uuid.New().String(),
		UserId:          userId,
		AccountId:       account.Id,
		CategoryId:      params.CategoryId,
		TransactionType: params.TransactionType,
		Status:          status,
		Amount:          params.Amount,
		CurrencyCode:    account.CurrencyCode,
		Description:     params.Description,
		Notes:           params.Notes,
		OccurredOn:      params.OccurredOn,
	}
	if _, err := s.callCreateTransaction(ctx, tx); err != nil {
		return nil, err
	}

	row, err := s.getTransactionRow(ctx, userId, tx.Id)
	if err != nil {
		return nil, err
	}
	created := row.toView().Transaction
	return &created, nil
}

// transferLegRow is one element of the JSON payload for sp_create_transfer.
type transferLegRow struct {
	Id           string    `json:"id"`
	AccountId    string    `json:"account_id"`
	TransferId   string    `json:"transfer_id"`
	Amount       int64     `json:"amount"`
	CurrencyCode string    `json:"currency_code"`
	Description  string    `json:"description"`
	OccurredOn   time.Time `json:"occurred_on"`
}

// callCreateTransfer invokes the atomic transfer procedure: both legs are
// inserted and both account balances adjusted, or nothing happens.
func (s *Service) callCreateTransfer(ctx context.Context, userId string, legs []models.Transaction) ([]store.PushResult, error) {
	rows := make([]transferLegRow, len(legs))
	for i, leg := range legs {
		rows[i] = transferLegRow{
			Id:           leg.Id,
			AccountId:    leg.AccountId,
			TransferId:   leg.TransferId,
			Amount:       leg.Amount,
			CurrencyCode: leg.CurrencyCode,
			Description:  leg.Description,
			OccurredOn:   leg.OccurredOn,
		}
	}
	payload, err := json.Marshal(rows)
	if err != nil {
		return nil, store.WrapUnexpected("remote.callCreateTransfer", err)
	}

	var results []procResult
	err = s.db.WithContext(ctx).
		Raw("CALL sp_create_transfer(?, ?)", userId, string(payload)).
		Scan(&results).Error
	if err != nil {
		return nil, translateError("callCreateTransfer", "transactions", legs[0].TransferId, err)
	}

	if len(results) == 1 && results[0].Status != procStatusSuccess {
		_, err := translateProcResult("sp_create_transfer", "transactions", legs[0].TransferId, 0, results[0])
		return nil, err
	}
	if len(results) != len(legs) {
		return nil, &store.RpcMismatchError{
			Procedure: "sp_create_transfer",
			Detail:    fmt.Sprintf("expected %d result rows, got %d", len(legs), len(results)),
		}
	}

	pushed := make([]store.PushResult, len(results))
	for i, res := range results {
		result, err := translateProcResult("sp_create_transfer", "transactions", legs[i].Id, 0, res)
		if err != nil {
			return nil, err
		}
		pushed[i] = *result
	}
	return pushed, nil
}

func (s *Service) CreateTransfer(ctx context.Context, userId string, params store.CreateTransferParams) (*models.Transfer, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	from, err := s.GetAccountById(ctx, userId, params.FromAccountId)
	if err != nil {
		return nil, err
	}
	to, err := s.GetAccountById(ctx, userId, params.ToAccountId)
	if err != nil {
		return nil, err
	}

	transferId := uuid.New().String()
	legs := []models.Transaction{
		{
			Id:              uuid.New().String(),
			UserId:          userId,
			AccountId:       from.Id,
			TransferId:      transferId,
			TransactionType: models.TransactionTypeTransfer,
			Status:          models.TransactionStatusPosted,
			Amount:          -params.FromAmount,
			CurrencyCode:    from.CurrencyCode,
			Description:     params.Description,
			OccurredOn:      params.OccurredOn,
		},
		{
			Id:              uuid.New().String(),
			UserId:          userId,
			AccountId:       to.Id,
			TransferId:      transferId,
			TransactionType: models.TransactionTypeTransfer,
			Status:          models.TransactionStatusPosted,
			Amount:          params.ToAmount,
			CurrencyCode:    to.CurrencyCode,
			Description:     params.Description,
			OccurredOn:      params.OccurredOn,
		},
	}

	if _, err := s.callCreateTransfer(ctx, userId, legs); err != nil {
		return nil, err
	}

	outRow, err := s.getTransactionRow(ctx, userId, legs[0].Id)
	if err != nil {
		return nil, err
	}
	inRow, err := s.getTransactionRow(ctx, userId, legs[1].Id)
	if err != nil {
		return nil, err
	}

	zap.L().Info("Created remote transfer", zap.String("transfer_id", transferId))
	return &models.Transfer{
		TransferId: transferId,
		OutLeg:     outRow.toView().Transaction,
		InLeg:      inRow.toView().Transaction,
	}, nil
}

// callTransactionUpdate runs the version-checked update procedure. Nil
// parameters leave the corresponding column untouched.
func (s *Service) callTransactionUpdate(ctx context.Context, userId, id string, expectedVersion int64,
	accountId, categoryId, reconciliationId, transactionType, status, amount, description, notes, occurredOn any) (*store.PushResult, error) {
	var res procResult
	err := s.db.WithContext(ctx).
		Raw("CALL sp_update_transaction_checked(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			id, userId, expectedVersion,
			accountId, categoryId, reconciliationId, transactionType,
			status, amount, description, notes, occurredOn).
		Scan(&res).Error
	if err != nil {
		return nil, translateError("callTransactionUpdate", "transactions", id, err)
	}
	return translateProcResult("sp_update_transaction_checked", "transactions", id, expectedVersion, res)
}

func (s *Service) UpdateTransaction(ctx context.Context, userId, id string, params store.UpdateTransactionParams) (*store.TransactionWriteResult, error) {
	patch := params.Patch
	if patch.IsZero() {
		row, err := s.getTransactionRow(ctx, userId, id)
		if err != nil {
			return nil, err
		}
		if row.DeletedAt != nil {
			return nil, store.ErrNotFound
		}
		tx := row.toView().Transaction
		return &store.TransactionWriteResult{Transaction: &tx}, nil
	}

	_, err := s.callTransactionUpdate(ctx, userId, id, params.ExpectedVersion,
		nullableString(patch.AccountId), nullableString(patch.CategoryId),
		nullableString(patch.ReconciliationId), nullableString(patch.TransactionType),
		nullableString(patch.Status), nullableInt64(patch.Amount),
		nullableString(patch.Description), nullableString(patch.Notes),
		nullableTimePtr(patch.OccurredOn))
	if err != nil {
		return nil, err
	}

	row, err := s.getTransactionRow(ctx, userId, id)
	if err != nil {
		return nil, err
	}
	tx := row.toView().Transaction
	return &store.TransactionWriteResult{Transaction: &tx}, nil
}

// callTransactionDelete runs the version-checked soft-delete procedure.
func (s *Service) callTransactionDelete(ctx context.Context, userId, id string, expectedVersion int64) (*store.PushResult, error) {
	var res procResult
	err := s.db.WithContext(ctx).
		Raw("CALL sp_soft_delete_transaction_checked(?, ?, ?)", id, userId, expectedVersion).
		Scan(&res).Error
	if err != nil {
		return nil, translateError("callTransactionDelete", "transactions", id, err)
	}
	return translateProcResult("sp_soft_delete_transaction_checked", "transactions", id, expectedVersion, res)
}

func (s *Service) DeleteTransaction(ctx context.Context, userId, id string, expectedVersion int64) (*store.DeleteResult, error) {
	if _, err := s.callTransactionDelete(ctx, userId, id, expectedVersion); err != nil {
		return nil, err
	}
	return &store.DeleteResult{}, nil
}

// --- Push operations (sync engine only) ---

func (s *Service) PushTransactionCreate(ctx context.Context, tx models.Transaction) (*store.PushResult, error) {
	return s.callCreateTransaction(ctx, tx)
}

func (s *Service) PushTransferCreate(ctx context.Context, legs []models.Transaction) ([]store.PushResult, error) {
	if len(legs) == 0 {
		return nil, &store.ValidationError{Field: "legs", Reason: "push requires at least one leg"}
	}
	return s.callCreateTransfer(ctx, legs[0].UserId, legs)
}

// PushTransactionUpdate pushes the full local record: every patchable column
// is sent as a value so the server row converges to the local one.
func (s *Service) PushTransactionUpdate(ctx context.Context, tx models.Transaction) (*store.PushResult, error) {
	return s.callTransactionUpdate(ctx, tx.UserId, tx.Id, tx.Version,
		tx.AccountId, nullableId(tx.CategoryId), nullableId(tx.ReconciliationId),
		tx.TransactionType, tx.Status, tx.Amount, tx.Description, tx.Notes, tx.OccurredOn)
}

func (s *Service) PushTransactionDelete(ctx context.Context, tx models.Transaction) (*store.PushResult, error) {
	return s.callTransactionDelete(ctx, tx.UserId, tx.Id, tx.Version)
}

// nullableInt64 formats an optional patch field for a procedure parameter.
func nullableInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

// nullableTimePtr formats an optional patch field for a procedure parameter.
func nullableTimePtr(p *time.Time) any {
	if p == nil {
		return nil
	}
	return *p
}

// nullableId maps an empty link id onto NULL so foreign keys stay clean.
func nullableId(id string) any {
	if id == "" {
		return nil
	}
	return id
}
