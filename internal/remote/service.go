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

// Package remote implements the repository against the managed MySQL backend.
// It is the eventual-consistency target: in normal operation only the sync
// engine calls it. Multi-row creations go through atomic stored procedures;
// update and delete use version-checked procedures whose structured results
// are translated into the typed error taxonomy.
package remote

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ledger-sync-go/internal/models"
	"ledger-sync-go/internal/store"
)

// Compile-time check: *Service must satisfy store.RemoteStore.
var _ store.RemoteStore = (*Service)(nil)

type Service struct {
	db *gorm.DB
}

func NewService(ctx context.Context, cfg models.RemoteConfig) (*Service, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("remote DSN cannot be empty")
	}

	zap.L().Info("Connecting to remote backend")
	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to open remote database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unable to access remote connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping remote database: %w", err)
	}

	zap.L().Info("Remote repository initialized")
	return &Service{db: db}, nil
}

func (s *Service) Close() {
	sqlDB, err := s.db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		zap.L().Warn("Failed to close remote connection pool", zap.Error(err))
	}
}

// procResult is the structured row every version-checked procedure returns.
type procResult struct {
	Status     string `gorm:"column:status"`
	NewVersion int64  `gorm:"column:new_version"`
	NewBalance int64  `gorm:"column:new_balance"`
}

// Procedure status codes. Anything else is client/backend signature drift.
const (
	procStatusSuccess                = "success"
	procStatusVersionConflict        = "version_conflict"
	procStatusNotFound               = "not_found"
	procStatusConcurrentModification = "concurrent_modification"
)

// translateProcResult maps a procedure outcome onto the typed error taxonomy.
// Both conflict statuses stay recoverable VersionConflict conditions so
// callers can refetch and retry; not_found is terminal for the caller's view
// of the record.
func translateProcResult(procedure, table, id string, expected int64, res procResult) (*store.PushResult, error) {
	switch res.Status {
	case procStatusSuccess:
		if res.NewVersion <= 0 {
			return nil, &store.RpcMismatchError{Procedure: procedure, Detail: fmt.Sprintf("success with non-positive version %d", res.NewVersion)}
		}
		return &store.PushResult{ServerVersion: res.NewVersion, ServerBalance: res.NewBalance}, nil
	case procStatusVersionConflict, procStatusConcurrentModification:
		return nil, &store.VersionConflictError{Table: table, Id: id, Expected: expected}
	case procStatusNotFound:
		return nil, store.ErrNotFound
	case "":
		return nil, &store.RpcMismatchError{Procedure: procedure, Detail: "empty result set"}
	default:
		return nil, &store.RpcMismatchError{Procedure: procedure, Detail: fmt.Sprintf("unknown status %q", res.Status)}
	}
}

// nullableTime formats a tombstone for procedure parameters.
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
