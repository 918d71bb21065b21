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
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"ledger-sync-go/internal/store"
)

// MySQL server error numbers the backend raises for protected rows.
const (
	mysqlErrRowIsReferenced = 1451 // FK restriction, e.g. account with transactions
	mysqlErrSignalException = 1644 // trigger-raised domain guard
)

// translateError maps driver and ORM failures onto the shared taxonomy so
// callers never need to import mysql or gorm to classify an outcome.
func translateError(op, table, id string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case mysqlErrRowIsReferenced:
			return &store.LockedError{Table: table, Id: id, Reason: "row is referenced by dependent records"}
		case mysqlErrSignalException:
			return &store.LockedError{Table: table, Id: id, Reason: mysqlErr.Message}
		}
	}

	return store.WrapUnexpected(fmt.Sprintf("remote.%s", op), err)
}
