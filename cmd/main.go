// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/united-manufacturing-hub/repowatch/pkg/api"
	"github.com/united-manufacturing-hub/repowatch/pkg/config"
	"github.com/united-manufacturing-hub/repowatch/pkg/fetcher"
	"github.com/united-manufacturing-hub/repowatch/pkg/logger"
	"github.com/united-manufacturing-hub/repowatch/pkg/metrics"
	"github.com/united-manufacturing-hub/repowatch/pkg/reducer"
)

func main() {
	// Initialize the global logger first thing
	logger.Initialize()

	log := logger.For(logger.ComponentCore)
	log.Info("Starting repowatch...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load the config; the path can be overridden on the command line
	configPath := ""
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	configManager := config.NewFileConfigManager(configPath)

	configData, err := configManager.GetConfig(ctx)
	if err != nil {
		log.Errorf("Failed to load config: %v", err)
		os.Exit(1)
	}

	// Start the metrics server
	metricsServer := metrics.SetupMetricsEndpoint(fmt.Sprintf(":%d", configData.Core.MetricsPort))
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer shutdownCancel()

		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Errorf("Failed to shutdown metrics server: %v", err)
		}
	}()

	// Wire the machine to the HTTP feed collaborator
	feedFetcher := fetcher.NewHTTPFetcher(configData.Fetcher)
	machine := reducer.NewMachine(configData.Core.InstanceID, feedFetcher)
	defer machine.Close()

	server := api.NewServer(machine, configData.Core.APIPort)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(server.Start)

	group.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer shutdownCancel()

		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Errorf("Shutting down with error: %v", err)
		os.Exit(1)
	}

	log.Info("Shutdown complete")

	_ = logger.Sync()
}
