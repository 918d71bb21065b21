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
	"os"
	"os/signal"
	"syscall"
	"time"

	"ledger-sync-go/internal/common"
	"ledger-sync-go/internal/config"

	"go.uber.org/zap"
)

func main() {
	once := flag.Bool("once", false, "Run a single sync pass and exit instead of polling")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting ledger sync daemon")

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	if services.Syncer == nil {
		zap.L().Fatal("Sync daemon requires both a local store and a remote DSN; set REMOTE_DSN")
	}

	if *once {
		if err := services.Syncer.SyncOnce(ctx); err != nil {
			zap.L().Fatal("Sync pass failed", zap.Error(err))
		}
		zap.L().Info("Sync pass complete")
		return
	}

	if err := services.Syncer.Start(ctx); err != nil {
		zap.L().Fatal("Failed to start sync engine", zap.Error(err))
	}

	zap.L().Info("Sync daemon running",
		zap.Duration("polling_interval", cfg.Sync.PollingInterval))
	zap.L().Info("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zap.L().Info("Shutdown signal received, stopping sync engine...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		services.Syncer.Stop()
		close(done)
	}()

	select {
	case <-done:
		zap.L().Info("Sync engine stopped gracefully")
	case <-shutdownCtx.Done():
		zap.L().Warn("Forced shutdown after timeout")
	}
}
