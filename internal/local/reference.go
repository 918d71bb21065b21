package local

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ledger-sync-go/internal/enrich"
	"ledger-sync-go/internal/models"
	"ledger-sync-go/internal/store"
)

// Compile-time check: *Service feeds the enrichment loaders.
var _ enrich.Source = (*Service)(nil)

func (s *Service) GetCategories(ctx context.Context, userId string) ([]models.Category, error) {
	rows, err := s.db.QueryContext(ctx, queryGetCategories, userId)
	if err != nil {
		return nil, store.WrapUnexpected("local.GetCategories", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var categories []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.Id, &c.UserId, &c.Name, &c.Color, &c.Icon, &c.CreatedAt); err != nil {
			return nil, store.WrapUnexpected("local.GetCategories", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, store.WrapUnexpected("local.GetCategories", err)
	}
	return categories, nil
}

func (s *Service) CreateCategory(ctx context.Context, userId, name, color, icon string) (*models.Category, error) {
	if userId == "" {
		return nil, &store.ValidationError{Field: "userId", Reason: "owner id is required"}
	}
	if name == "" {
		return nil, &store.ValidationError{Field: "name", Reason: "name is required"}
	}

	id := uuid.New().String()
	if _, err := s.db.ExecContext(ctx, queryInsertCategory, id, userId, name, color, icon); err != nil {
		return nil, store.WrapUnexpected("local.CreateCategory", err)
	}

	categories, err := s.CategoriesByIds(ctx, []string{id})
	if err != nil || len(categories) == 0 {
		return nil, store.WrapUnexpected("local.CreateCategory", err)
	}
	return &categories[0], nil
}

func (s *Service) GetCurrencies(ctx context.Context) ([]models.Currency, error) {
	rows, err := s.db.QueryContext(ctx, queryGetCurrencies)
	if err != nil {
		return nil, store.WrapUnexpected("local.GetCurrencies", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var currencies []models.Currency
	for rows.Next() {
		var c models.Currency
		if err := rows.Scan(&c.Code, &c.Symbol, &c.Name, &c.DecimalDigits); err != nil {
			return nil, store.WrapUnexpected("local.GetCurrencies", err)
		}
		currencies = append(currencies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, store.WrapUnexpected("local.GetCurrencies", err)
	}
	return currencies, nil
}

// requireCategory verifies a category exists and belongs to the owner.
func (s *Service) requireCategory(ctx context.Context, userId, id string) error {
	categories, err := s.CategoriesByIds(ctx, []string{id})
	if err != nil {
		return store.WrapUnexpected("local.requireCategory", err)
	}
	if len(categories) == 0 || categories[0].UserId != userId {
		return store.ErrNotFound
	}
	return nil
}

// inPlaceholders builds "(?, ?, ...)" for n parameters.
func inPlaceholders(n int) string {
	return "(" + strings.TrimSuffix(strings.Repeat("?, ", n), ", ") + ")"
}

// AccountsByIds is the batched account lookup behind the enrichment loader.
// Tombstoned rows are included on purpose: live transactions may still
// reference a deleted account.
func (s *Service) AccountsByIds(ctx context.Context, ids []string) ([]models.Account, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, queryGetAccountsByIds+` WHERE id IN `+inPlaceholders(len(ids)), args...)
	if err != nil {
		return nil, err
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
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	return accounts, rows.Err()
}

// CategoriesByIds is the batched category lookup behind the enrichment loader.
func (s *Service) CategoriesByIds(ctx context.Context, ids []string) ([]models.Category, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, queryGetCategoriesBase+` WHERE id IN `+inPlaceholders(len(ids)), args...)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var categories []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.Id, &c.UserId, &c.Name, &c.Color, &c.Icon, &c.CreatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// CurrenciesByCodes is the batched currency lookup behind the enrichment loader.
func (s *Service) CurrenciesByCodes(ctx context.Context, codes []string) ([]models.Currency, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	args := make([]any, len(codes))
	for i, code := range codes {
		args[i] = code
	}

	rows, err := s.db.QueryContext(ctx, queryGetCurrenciesBase+` WHERE code IN `+inPlaceholders(len(codes)), args...)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var currencies []models.Currency
	for rows.Next() {
		var c models.Currency
		if err := rows.Scan(&c.Code, &c.Symbol, &c.Name, &c.DecimalDigits); err != nil {
			return nil, err
		}
		currencies = append(currencies, c)
	}
	return currencies, rows.Err()
}
