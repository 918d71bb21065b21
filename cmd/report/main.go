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

package main

import (
	"context"
	"flag"
	"fmt"

	"ledger-sync-go/internal/common"
	"ledger-sync-go/internal/config"
	"ledger-sync-go/internal/models"
	"ledger-sync-go/internal/store"

	"go.uber.org/zap"
)

type reportStats struct {
	totalAccounts   int
	pendingRecords  int
	conflictRecords int
	recentShown     int
}

func formatSyncStatus(status models.SyncStatus) string {
	switch status {
	case models.SyncSynced:
		return "synced"
	case models.SyncConflict:
		return "CONFLICT"
	default:
		return "pending"
	}
}

func printAccount(account models.AccountView, isLast bool) {
	symbol := common.BoxPrefix(isLast)
	fmt.Printf("%s %-20s %4s %14s %s  (v%d, %s)\n",
		symbol,
		account.Name,
		account.CurrencyCode,
		account.BalanceFormatted,
		account.CurrencySymbol,
		account.Version,
		formatSyncStatus(account.LocalSyncStatus))
}

func printTransaction(tx models.TransactionView, isLast bool) {
	symbol := common.BoxPrefix(isLast)
	category := tx.CategoryName
	if category == "" {
		category = "uncategorized"
	}
	fmt.Printf("%s %s  %-10s %12s %s  %-18s %s\n",
		symbol,
		tx.OccurredOn.Format("2006-01-02"),
		tx.TransactionType,
		tx.AmountFormatted,
		tx.CurrencySymbol,
		category,
		tx.Description)
}

func printAccounts(ctx context.Context, repo store.Repository, ownerId string, stats *reportStats) error {
	accounts, err := repo.GetAccounts(ctx, ownerId, store.AccountFilter{})
	if err != nil {
		return fmt.Errorf("failed to get accounts: %w", err)
	}

	common.PrintHeader("ACCOUNTS", common.DefaultWidth)
	if len(accounts) == 0 {
		fmt.Println("No accounts found")
	}
	for i, account := range accounts {
		printAccount(account, i == len(accounts)-1)
		stats.totalAccounts++
		switch account.LocalSyncStatus {
		case models.SyncPending:
			stats.pendingRecords++
		case models.SyncConflict:
			stats.conflictRecords++
		}
	}
	return nil
}

func printRecentTransactions(ctx context.Context, repo store.Repository, ownerId string, limit int, stats *reportStats) error {
	transactions, err := repo.GetTransactions(ctx, ownerId, store.TransactionFilter{Limit: limit})
	if err != nil {
		return fmt.Errorf("failed to get transactions: %w", err)
	}

	common.PrintHeader(fmt.Sprintf("RECENT TRANSACTIONS (last %d)", limit), common.DefaultWidth)
	if len(transactions) == 0 {
		fmt.Println("No transactions found")
	}
	for i, tx := range transactions {
		printTransaction(tx, i == len(transactions)-1)
		stats.recentShown++
		switch tx.LocalSyncStatus {
		case models.SyncPending:
			stats.pendingRecords++
		case models.SyncConflict:
			stats.conflictRecords++
		}
	}
	return nil
}

func printInbox(ctx context.Context, repo store.Repository, ownerId string) error {
	inbox, err := repo.GetTransactions(ctx, ownerId, store.TransactionFilter{
		Status: models.TransactionStatusInbox,
	})
	if err != nil {
		return fmt.Errorf("failed to get inbox: %w", err)
	}
	if len(inbox) == 0 {
		return nil
	}

	common.PrintHeader(fmt.Sprintf("INBOX (%d staged)", len(inbox)), common.DefaultWidth)
	for i, tx := range inbox {
		printTransaction(tx, i == len(inbox)-1)
	}
	return nil
}

func main() {
	limit := flag.Int("limit", 20, "Number of recent transactions to show")
	owner := flag.String("owner", "", "Owner id to report on (default: LEDGER_OWNER_ID)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx := context.Background()

	ownerId := *owner
	if ownerId == "" {
		ownerId = cfg.OwnerId
	}

	repo, err := common.InitializeLocalOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to open local store", zap.Error(err))
	}
	defer repo.Close()

	var stats reportStats
	if err := printAccounts(ctx, repo, ownerId, &stats); err != nil {
		zap.L().Fatal("Report failed", zap.Error(err))
	}
	if err := printRecentTransactions(ctx, repo, ownerId, *limit, &stats); err != nil {
		zap.L().Fatal("Report failed", zap.Error(err))
	}
	if err := printInbox(ctx, repo, ownerId); err != nil {
		zap.L().Fatal("Report failed", zap.Error(err))
	}

	summary := fmt.Sprintf("Accounts: %d | Pending: %d | Conflicts: %d",
		stats.totalAccounts, stats.pendingRecords, stats.conflictRecords)
	common.PrintFooter(summary, common.DefaultWidth)
}
