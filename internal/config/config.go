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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"ledger-sync-go/internal/models"
)

func Load() (*models.Config, error) {
	connMaxLifetime, err := getEnvDuration("LOCAL_DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("LOCAL_DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("LOCAL_DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	remoteConnMaxLifetime, err := getEnvDuration("REMOTE_DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	pollingInterval, err := getEnvDuration("SYNC_POLLING_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, err
	}

	return &models.Config{
		OwnerId: getEnvString("LEDGER_OWNER_ID", "local-owner"),
		Local: models.LocalConfig{
			Path:            getEnvString("LOCAL_DB_PATH", "ledger.db"),
			MaxOpenConns:    getEnvInt("LOCAL_DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("LOCAL_DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
			CurrenciesFile:  getEnvString("CURRENCIES_FILE", "currencies.yaml"),
		},
		Remote: models.RemoteConfig{
			DSN:             os.Getenv("REMOTE_DSN"),
			MaxOpenConns:    getEnvInt("REMOTE_DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("REMOTE_DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: remoteConnMaxLifetime,
		},
		Sync: models.SyncConfig{
			PollingInterval: pollingInterval,
			BatchLimit:      getEnvInt("SYNC_BATCH_LIMIT", 100),
		},
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
