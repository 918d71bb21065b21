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

// accountDetailsRow mirrors one row of account_details_view. The view joins
// currencies so reads come back display-ready without a second round trip.
type accountDetailsRow struct {
	Id             string
	UserId         string
	GroupId        string
	Name           string
	Color          string
	AccountType    string
	CurrencyCode   string
	Balance        int64
	Version        int64
	DeletedAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CurrencySymbol string
	CurrencyName   string
	DecimalDigits  int
}

// toView converts a view row. The backend is authoritative, so records it
// returns are by definition synced.
func (r accountDetailsRow) toView() models.AccountView {
	acknowledged := r.UpdatedAt
	return models.AccountView{
		Account: models.Account{
			Id:              r.Id,
			UserId:          r.UserId,
			GroupId:         r.GroupId,
			Name:            r.Name,
			Color:           r.Color,
			AccountType:     r.AccountType,
			CurrencyCode:    r.CurrencyCode,
			Balance:         r.Balance,
			Version:         r.Version,
			LocalSyncStatus: models.SyncSynced,
			DeletedAt:       r.DeletedAt,
			SyncedAt:        &acknowledged,
			CreatedAt:       r.CreatedAt,
			UpdatedAt:       r.UpdatedAt,
		},
		CurrencySymbol:   r.CurrencySymbol,
		CurrencyName:     r.CurrencyName,
		DecimalDigits:    r.DecimalDigits,
		BalanceFormatted: money.FromMinorUnits(r.Balance, r.DecimalDigits),
	}
}

func (s *Service) GetAccounts(ctx context.Context, userId string, filter store.AccountFilter) ([]models.AccountView, error) {
	query := s.db.WithContext(ctx).Table("account_details_view").Where("user_id = ?", userId)
	if !filter.IncludeDeleted {
		query = query.Where("deleted_at IS NULL")
	}
	if filter.GroupId != "" {
		query = query.Where("group_id = ?", filter.GroupId)
	}
	if filter.CurrencyCode != "" {
		query = query.Where("currency_code = ?", filter.CurrencyCode)
	}
	if filter.AccountType != "" {
		query = query.Where("account_type = ?", filter.AccountType)
	}

	var rows []accountDetailsRow
	if err := query.Order("name, currency_code").Scan(&rows).Error; err != nil {
		return nil, translateError("GetAccounts", "accounts", "", err)
	}

	views := make([]models.AccountView, len(rows))
	for i, row := range rows {
		views[i] = row.toView()
	}
	return views, nil
}

func (s *Service) GetAccountById(ctx context.Context, userId, id string) (*models.AccountView, error) {
	row, err := s.getAccountRow(ctx, userId, id)
	if err != nil {
		return nil, err
	}
	if row.DeletedAt != nil {
		return nil, store.ErrNotFound
	}
	view := row.toView()
	return &view, nil
}

// getAccountRow reads one view row by owner and id, tombstoned rows included.
func (s *Service) getAccountRow(ctx context.Context, userId, id string) (*accountDetailsRow, error) {
	var rows []accountDetailsRow
	err := s.db.WithContext(ctx).
		Table("account_details_view").
		Where("id = ? AND user_id = ?", id, userId).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, translateError("getAccountRow", "accounts", id, err)
	}
	if len(rows) == 0 {
		return nil, store.ErrNotFound
	}
	return &rows[0], nil
}

// accountGroupRow is one element of the JSON payload handed to
// sp_create_account_group. Ids are client-assigned so offline-created rows
// keep their identity after the push.
type accountGroupRow struct {
	Id           string `json:"id"`
	GroupId      string `json:"group_id"`
	Name         string `json:"name"`
	Color        string `json:"color"`
	AccountType  string `json:"account_type"`
	CurrencyCode string `json:"currency_code"`
	Balance      int64  `json:"balance"`
}

// callCreateAccountGroup invokes the atomic group-creation procedure. The
// procedure inserts every row or none; it returns one status row per input,
// in input order.
func (s *Service) callCreateAccountGroup(ctx context.Context, userId string, accounts []models.Account) ([]store.PushResult, error) {
	rows := make([]accountGroupRow, len(accounts))
	for i, a := range accounts {
		rows[i] = accountGroupRow{
			Id:           a.Id,
			GroupId:      a.GroupId,
			Name:         a.Name,
			Color:        a.Color,
			AccountType:  a.AccountType,
			CurrencyCode: a.CurrencyCode,
			Balance:      a.Balance,
		}
	}
	payload, err := json.Marshal(rows)
	if err != nil {
		return nil, store.WrapUnexpected("remote.callCreateAccountGroup", err)
	}

	var results []procResult
	err = s.db.WithContext(ctx).
		Raw("CALL sp_create_account_group(?, ?)", userId, string(payload)).
		Scan(&results).Error
	if err != nil {
		return nil, translateError("callCreateAccountGroup", "accounts", accounts[0].GroupId, err)
	}

	// A rolled-back call reports the failure as its only row.
	if len(results) == 1 && results[0].Status != procStatusSuccess {
		_, err := translateProcResult("sp_create_account_group", "accounts", accounts[0].GroupId, 0, results[0])
		return nil, err
	}
	if len(results) != len(accounts) {
		return nil, &store.RpcMismatchError{
			Procedure: "sp_create_account_group",
			Detail:    fmt.Sprintf("expected %d result rows, got %d", len(accounts), len(results)),
		}
	}

	pushed := make([]store.PushResult, len(results))
	for i, res := range results {
		result, err := translateProcResult("sp_create_account_group", "accounts", accounts[i].Id, 0, res)
		if err != nil {
			return nil, err
		}
		pushed[i] = *result
	}
	return pushed, nil
}

func (s *Service) CreateAccount(ctx context.Context, userId string, params store.CreateAccountParams) ([]models.Account, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	groupId := uuid.New().String()
	accounts := make([]models.Account, len(params.CurrencyCodes))
	for i, code := range params.CurrencyCodes {
		accounts[i] = models.Account{
			Id:           uuid.New().String(),
			UserId:       userId,
			GroupId:      groupId,
			Name:         params.Name,
			Color:        params.Color,
			AccountType:  params.AccountType,
			CurrencyCode: code,
		}
	}

	results, err := s.callCreateAccountGroup(ctx, userId, accounts)
	if err != nil {
		return nil, err
	}

	created := make([]models.Account, len(accounts))
	for i := range accounts {
		row, err := s.getAccountRow(ctx, userId, accounts[i].Id)
		if err != nil {
			return nil, err
		}
		created[i] = row.toView().Account
		created[i].Version = results[i].ServerVersion
	}

	zap.L().Info("Created remote account group",
		zap.String("group_id", groupId),
		zap.Int("currencies", len(created)))
	return created, nil
}

// callAccountUpdate runs the version-checked update procedure. Nil fields are
// passed as NULL and left untouched by the procedure.
func (s *Service) callAccountUpdate(ctx context.Context, userId, id string, expectedVersion int64, name, color, accountType any) (*store.PushResult, error) {
	var res procResult
	err := s.db.WithContext(ctx).
		Raw("CALL sp_update_account_checked(?, ?, ?, ?, ?, ?)",
			id, userId, expectedVersion, name, color, accountType).
		Scan(&res).Error
	if err != nil {
		return nil, translateError("callAccountUpdate", "accounts", id, err)
	}
	return translateProcResult("sp_update_account_checked", "accounts", id, expectedVersion, res)
}

func (s *Service) UpdateAccount(ctx context.Context, userId, id string, params store.UpdateAccountParams) (*store.AccountWriteResult, error) {
	patch := params.Patch
	if patch.IsZero() {
		row, err := s.getAccountRow(ctx, userId, id)
		if err != nil {
			return nil, err
		}
		if row.DeletedAt != nil {
			return nil, store.ErrNotFound
		}
		account := row.toView().Account
		return &store.AccountWriteResult{Account: &account}, nil
	}

	_, err := s.callAccountUpdate(ctx, userId, id, params.ExpectedVersion,
		nullableString(patch.Name), nullableString(patch.Color), nullableString(patch.AccountType))
	if err != nil {
		return nil, err
	}

	row, err := s.getAccountRow(ctx, userId, id)
	if err != nil {
		return nil, err
	}
	account := row.toView().Account
	return &store.AccountWriteResult{Account: &account}, nil
}

// callAccountDelete runs the version-checked soft-delete procedure.
func (s *Service) callAccountDelete(ctx context.Context, userId, id string, expectedVersion int64) (*store.PushResult, error) {
	var res procResult
	err := s.db.WithContext(ctx).
		Raw("CALL sp_soft_delete_account_checked(?, ?, ?)", id, userId, expectedVersion).
		Scan(&res).Error
	if err != nil {
		return nil, translateError("callAccountDelete", "accounts", id, err)
	}
	return translateProcResult("sp_soft_delete_account_checked", "accounts", id, expectedVersion, res)
}

func (s *Service) DeleteAccount(ctx context.Context, userId, id string, expectedVersion int64) (*store.DeleteResult, error) {
	if _, err := s.callAccountDelete(ctx, userId, id, expectedVersion); err != nil {
		return nil, err
	}
	return &store.DeleteResult{}, nil
}

// --- Push operations (sync engine only) ---

func (s *Service) PushAccountGroup(ctx context.Context, accounts []models.Account) ([]store.PushResult, error) {
	if len(accounts) == 0 {
		return nil, &store.ValidationError{Field: "accounts", Reason: "push requires at least one row"}
	}
	return s.callCreateAccountGroup(ctx, accounts[0].UserId, accounts)
}

func (s *Service) PushAccountUpdate(ctx context.Context, account models.Account) (*store.PushResult, error) {
	return s.callAccountUpdate(ctx, account.UserId, account.Id, account.Version,
		account.Name, account.Color, account.AccountType)
}

func (s *Service) PushAccountDelete(ctx context.Context, account models.Account) (*store.PushResult, error) {
	return s.callAccountDelete(ctx, account.UserId, account.Id, account.Version)
}

// nullableString formats an optional patch field for a procedure parameter.
func nullableString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
