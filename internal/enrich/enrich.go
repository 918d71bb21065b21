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

// Package enrich denormalizes reference fields (account names, category
// colors, currency symbols) onto view entities. Referenced ids are collected
// and fetched through batched loaders, one query per referenced collection,
// never one query per record.
package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/graph-gophers/dataloader/v7"
	"golang.org/x/sync/errgroup"

	"ledger-sync-go/internal/models"
	"ledger-sync-go/internal/money"
)

// Source provides the batched lookups the loaders are built on. Lookups by id
// intentionally include tombstoned rows: a live transaction may still
// reference a deleted account, and its name should render.
type Source interface {
	AccountsByIds(ctx context.Context, ids []string) ([]models.Account, error)
	CategoriesByIds(ctx context.Context, ids []string) ([]models.Category, error)
	CurrenciesByCodes(ctx context.Context, codes []string) ([]models.Currency, error)
}

// Enricher batches reference fetches behind dataloaders. Caching is disabled:
// reference rows are mutable and loaders live for the repository lifetime.
type Enricher struct {
	accounts   *dataloader.Loader[string, *models.Account]
	categories *dataloader.Loader[string, *models.Category]
	currencies *dataloader.Loader[string, *models.Currency]
}

func New(src Source) *Enricher {
	return &Enricher{
		accounts: dataloader.NewBatchedLoader(
			func(ctx context.Context, ids []string) []*dataloader.Result[*models.Account] {
				rows, err := src.AccountsByIds(ctx, ids)
				if err != nil {
					return failAll[*models.Account](len(ids), err)
				}
				byId := make(map[string]*models.Account, len(rows))
				for i := range rows {
					byId[rows[i].Id] = &rows[i]
				}
				return mapResults(ids, byId)
			},
			dataloader.WithWait[string, *models.Account](time.Millisecond),
			dataloader.WithCache[string, *models.Account](&dataloader.NoCache[string, *models.Account]{}),
		),
		categories: dataloader.NewBatchedLoader(
			func(ctx context.Context, ids []string) []*dataloader.Result[*models.Category] {
				rows, err := src.CategoriesByIds(ctx, ids)
				if err != nil {
					return failAll[*models.Category](len(ids), err)
				}
				byId := make(map[string]*models.Category, len(rows))
				for i := range rows {
					byId[rows[i].Id] = &rows[i]
				}
				return mapResults(ids, byId)
			},
			dataloader.WithWait[string, *models.Category](time.Millisecond),
			dataloader.WithCache[string, *models.Category](&dataloader.NoCache[string, *models.Category]{}),
		),
		currencies: dataloader.NewBatchedLoader(
			func(ctx context.Context, codes []string) []*dataloader.Result[*models.Currency] {
				rows, err := src.CurrenciesByCodes(ctx, codes)
				if err != nil {
					return failAll[*models.Currency](len(codes), err)
				}
				byCode := make(map[string]*models.Currency, len(rows))
				for i := range rows {
					byCode[rows[i].Code] = &rows[i]
				}
				return mapResults(codes, byCode)
			},
			dataloader.WithWait[string, *models.Currency](time.Millisecond),
			dataloader.WithCache[string, *models.Currency](&dataloader.NoCache[string, *models.Currency]{}),
		),
	}
}

// failAll propagates a batch-level failure to every pending key.
func failAll[V any](n int, err error) []*dataloader.Result[V] {
	results := make([]*dataloader.Result[V], n)
	for i := range results {
		results[i] = &dataloader.Result[V]{Error: err}
	}
	return results
}

// mapResults orders fetched rows back into key order. Missing keys resolve to
// nil data, not an error: a dangling reference must not fail a whole listing.
func mapResults[V any](keys []string, byKey map[string]V) []*dataloader.Result[V] {
	results := make([]*dataloader.Result[V], 0, len(keys))
	for _, k := range keys {
		results = append(results, &dataloader.Result[V]{Data: byKey[k]})
	}
	return results
}

// distinct returns the unique non-empty values in order of first appearance.
func distinct(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func (e *Enricher) loadAccounts(ctx context.Context, ids []string) (map[string]*models.Account, error) {
	out := make(map[string]*models.Account, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, errs := e.accounts.LoadMany(ctx, ids)()
	for _, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("batch account fetch failed: %w", err)
		}
	}
	for i, id := range ids {
		if rows[i] != nil {
			out[id] = rows[i]
		}
	}
	return out, nil
}

func (e *Enricher) loadCategories(ctx context.Context, ids []string) (map[string]*models.Category, error) {
	out := make(map[string]*models.Category, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, errs := e.categories.LoadMany(ctx, ids)()
	for _, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("batch category fetch failed: %w", err)
		}
	}
	for i, id := range ids {
		if rows[i] != nil {
			out[id] = rows[i]
		}
	}
	return out, nil
}

func (e *Enricher) loadCurrencies(ctx context.Context, codes []string) (map[string]*models.Currency, error) {
	out := make(map[string]*models.Currency, len(codes))
	if len(codes) == 0 {
		return out, nil
	}
	rows, errs := e.currencies.LoadMany(ctx, codes)()
	for _, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("batch currency fetch failed: %w", err)
		}
	}
	for i, code := range codes {
		if rows[i] != nil {
			out[code] = rows[i]
		}
	}
	return out, nil
}

// Transactions denormalizes account, category and currency fields onto each
// transaction. One batched fetch per referenced collection, run concurrently.
func (e *Enricher) Transactions(ctx context.Context, txs []models.Transaction) ([]models.TransactionView, error) {
	accountIds := make([]string, 0, len(txs))
	categoryIds := make([]string, 0, len(txs))
	codes := make([]string, 0, len(txs))
	for _, tx := range txs {
		accountIds = append(accountIds, tx.AccountId)
		categoryIds = append(categoryIds, tx.CategoryId)
		codes = append(codes, tx.CurrencyCode)
	}

	var (
		accounts   map[string]*models.Account
		categories map[string]*models.Category
		currencies map[string]*models.Currency
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		accounts, err = e.loadAccounts(gctx, distinct(accountIds))
		return err
	})
	g.Go(func() (err error) {
		categories, err = e.loadCategories(gctx, distinct(categoryIds))
		return err
	})
	g.Go(func() (err error) {
		currencies, err = e.loadCurrencies(gctx, distinct(codes))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	views := make([]models.TransactionView, 0, len(txs))
	for _, tx := range txs {
		view := models.TransactionView{Transaction: tx}
		if a := accounts[tx.AccountId]; a != nil {
			view.AccountName = a.Name
			view.AccountColor = a.Color
		}
		if c := categories[tx.CategoryId]; c != nil {
			view.CategoryName = c.Name
			view.CategoryColor = c.Color
			view.CategoryIcon = c.Icon
		}
		digits := 2
		if cur := currencies[tx.CurrencyCode]; cur != nil {
			view.CurrencySymbol = cur.Symbol
			digits = cur.DecimalDigits
		}
		view.AmountFormatted = money.FromMinorUnits(tx.Amount, digits)
		views = append(views, view)
	}
	return views, nil
}

// Accounts denormalizes currency fields onto each account.
func (e *Enricher) Accounts(ctx context.Context, accounts []models.Account) ([]models.AccountView, error) {
	codes := make([]string, 0, len(accounts))
	for _, a := range accounts {
		codes = append(codes, a.CurrencyCode)
	}

	currencies, err := e.loadCurrencies(ctx, distinct(codes))
	if err != nil {
		return nil, err
	}

	views := make([]models.AccountView, 0, len(accounts))
	for _, a := range accounts {
		view := models.AccountView{Account: a, DecimalDigits: 2}
		if cur := currencies[a.CurrencyCode]; cur != nil {
			view.CurrencySymbol = cur.Symbol
			view.CurrencyName = cur.Name
			view.DecimalDigits = cur.DecimalDigits
		}
		view.BalanceFormatted = money.FromMinorUnits(a.Balance, view.DecimalDigits)
		views = append(views, view)
	}
	return views, nil
}
