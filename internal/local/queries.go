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

const (
	accountColumns = `id, user_id, group_id, name, color, account_type, currency_code, balance,
	       version, local_sync_status, deleted_at, synced_at, created_at, updated_at`

	transactionColumns = `id, user_id, account_id, category_id, transfer_id, reconciliation_id,
	       transaction_type, status, amount, currency_code, description, notes, occurred_on,
	       version, local_sync_status, deleted_at, synced_at, created_at, updated_at`

	// Account queries
	queryInsertAccount = `
		INSERT INTO accounts (id, user_id, group_id, name, color, account_type, currency_code, balance, version, local_sync_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, 1, 'pending')`

	queryGetAccountById = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE id = ? AND user_id = ?`

	queryUpdateAccountFields = `
		UPDATE accounts
		SET name = ?, color = ?, account_type = ?, local_sync_status = 'pending', updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`

	querySoftDeleteAccount = `
		UPDATE accounts
		SET deleted_at = CURRENT_TIMESTAMP, local_sync_status = 'pending', updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`

	queryAdjustAccountBalance = `
		UPDATE accounts
		SET balance = balance + ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`

	querySetAccountBalance = `
		UPDATE accounts
		SET balance = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`

	queryGetAccountsByIds = `
		SELECT ` + accountColumns + `
		FROM accounts`

	// Transaction queries
	queryInsertTransaction = `
		INSERT INTO transactions (id, user_id, account_id, category_id, transfer_id, reconciliation_id,
			transaction_type, status, amount, currency_code, description, notes, occurred_on,
			version, local_sync_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, 'pending')`

	queryGetTransactionById = `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE id = ? AND user_id = ?`

	queryUpdateTransactionFields = `
		UPDATE transactions
		SET account_id = ?, category_id = ?, reconciliation_id = ?, transaction_type = ?, status = ?,
		    amount = ?, currency_code = ?, description = ?, notes = ?, occurred_on = ?,
		    local_sync_status = 'pending', updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`

	querySoftDeleteTransaction = `
		UPDATE transactions
		SET deleted_at = CURRENT_TIMESTAMP, local_sync_status = 'pending', updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`

	// Sync-engine helpers
	queryGetAccountsByStatus = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE local_sync_status = ?
		ORDER BY updated_at`

	queryGetTransactionsByStatus = `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE local_sync_status = ?
		ORDER BY updated_at`

	queryGetAccountForSync = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE id = ?`

	queryGetTransactionForSync = `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE id = ?`

	queryMarkAccountSynced = `
		UPDATE accounts
		SET local_sync_status = 'synced', version = ?, synced_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`

	queryMarkAccountStatus = `
		UPDATE accounts
		SET local_sync_status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`

	queryMarkTransactionSynced = `
		UPDATE transactions
		SET local_sync_status = 'synced', version = ?, synced_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`

	queryMarkTransactionStatus = `
		UPDATE transactions
		SET local_sync_status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`

	// Reference queries
	queryGetCategories = `
		SELECT id, user_id, name, color, icon, created_at
		FROM categories
		WHERE user_id = ?
		ORDER BY name`

	queryInsertCategory = `
		INSERT INTO categories (id, user_id, name, color, icon)
		VALUES (?, ?, ?, ?, ?)`

	queryGetCategoriesBase = `
		SELECT id, user_id, name, color, icon, created_at
		FROM categories`

	queryGetCurrencies = `
		SELECT code, symbol, name, decimal_digits
		FROM currencies
		ORDER BY code`

	queryGetCurrenciesBase = `
		SELECT code, symbol, name, decimal_digits
		FROM currencies`

	queryUpsertCurrency = `
		INSERT INTO currencies (code, symbol, name, decimal_digits)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET symbol = excluded.symbol, name = excluded.name, decimal_digits = excluded.decimal_digits`
)
