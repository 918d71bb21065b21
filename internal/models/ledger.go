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

package models

import "time"

// SyncStatus is the per-record local sync state machine.
type SyncStatus string

const (
	SyncPending  SyncStatus = "pending"
	SyncSynced   SyncStatus = "synced"
	SyncConflict SyncStatus = "conflict"
)

// Account types supported by the ledger.
const (
	AccountTypeChecking = "checking"
	AccountTypeSavings  = "savings"
	AccountTypeCash     = "cash"
	AccountTypeCredit   = "credit"
)

// Transaction types. Transfer legs are only created through CreateTransfer.
const (
	TransactionTypeIncome   = "income"
	TransactionTypeExpense  = "expense"
	TransactionTypeTransfer = "transfer"
)

// Transaction statuses. Inbox rows are staged (partially entered) and do not
// count toward account balances until promoted to posted.
const (
	TransactionStatusPosted = "posted"
	TransactionStatusInbox  = "inbox"
)

// Account represents one currency row of a logical account. Accounts created
// with multiple currencies share a GroupId assigned before the write begins.
// Amounts are integer minor units (cents); no float ever crosses persistence.
type Account struct {
	Id              string     `db:"id"`
	UserId          string     `db:"user_id"`
	GroupId         string     `db:"group_id"`
	Name            string     `db:"name"`
	Color           string     `db:"color"`
	AccountType     string     `db:"account_type"`
	CurrencyCode    string     `db:"currency_code"`
	Balance         int64      `db:"balance"`
	Version         int64      `db:"version"`
	LocalSyncStatus SyncStatus `db:"local_sync_status"`
	DeletedAt       *time.Time `db:"deleted_at"`
	SyncedAt        *time.Time `db:"synced_at"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

// Transaction is a single ledger movement against an account. Transfer legs
// carry a shared TransferId; reconciled rows carry a ReconciliationId.
type Transaction struct {
	Id               string     `db:"id"`
	UserId           string     `db:"user_id"`
	AccountId        string     `db:"account_id"`
	CategoryId       string     `db:"category_id"`
	TransferId       string     `db:"transfer_id"`
	ReconciliationId string     `db:"reconciliation_id"`
	TransactionType  string     `db:"transaction_type"`
	Status           string     `db:"status"`
	Amount           int64      `db:"amount"`
	CurrencyCode     string     `db:"currency_code"`
	Description      string     `db:"description"`
	Notes            string     `db:"notes"`
	OccurredOn       time.Time  `db:"occurred_on"`
	Version          int64      `db:"version"`
	LocalSyncStatus  SyncStatus `db:"local_sync_status"`
	DeletedAt        *time.Time `db:"deleted_at"`
	SyncedAt         *time.Time `db:"synced_at"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

// Transfer is the pair of linked transactions created by one atomic transfer.
type Transfer struct {
	TransferId string
	OutLeg     Transaction
	InLeg      Transaction
}

// Category is an owner-scoped reference entity used to classify transactions.
type Category struct {
	Id        string    `db:"id"`
	UserId    string    `db:"user_id"`
	Name      string    `db:"name"`
	Color     string    `db:"color"`
	Icon      string    `db:"icon"`
	CreatedAt time.Time `db:"created_at"`
}

// Currency is a global reference entity seeded from the currencies file.
type Currency struct {
	Code          string `db:"code" yaml:"code"`
	Symbol        string `db:"symbol" yaml:"symbol"`
	Name          string `db:"name" yaml:"name"`
	DecimalDigits int    `db:"decimal_digits" yaml:"decimal_digits"`
}

// AccountView is an Account denormalized with currency reference fields.
type AccountView struct {
	Account
	CurrencySymbol   string
	CurrencyName     string
	DecimalDigits    int
	BalanceFormatted string
}

// TransactionView is a Transaction denormalized with account, category and
// currency reference fields for display.
type TransactionView struct {
	Transaction
	AccountName     string
	AccountColor    string
	CategoryName    string
	CategoryColor   string
	CategoryIcon    string
	CurrencySymbol  string
	AmountFormatted string
}

// IsDeleted reports whether the record carries a tombstone.
func (a *Account) IsDeleted() bool { return a.DeletedAt != nil }

// IsDeleted reports whether the record carries a tombstone.
func (t *Transaction) IsDeleted() bool { return t.DeletedAt != nil }
