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

package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/united-manufacturing-hub/repowatch/pkg/logger"
)

const (
	// DefaultConfigPath is the default path to the config file
	DefaultConfigPath = "/data/config.yaml"

	// Environment variable overrides, applied after the file is read
	envFeedURL     = "REPOWATCH_FEED_URL"
	envAPIPort     = "REPOWATCH_API_PORT"
	envMetricsPort = "REPOWATCH_METRICS_PORT"
	envInstanceID  = "REPOWATCH_INSTANCE_ID"
)

// ConfigManager is the interface for config management
type ConfigManager interface {
	// GetConfig returns the current config
	GetConfig(ctx context.Context) (FullConfig, error)
}

// FileConfigManager implements the ConfigManager interface by reading from a file
type FileConfigManager struct {
	// configPath is the path to the config file
	configPath string

	// logger is the logger for the config manager
	logger *zap.SugaredLogger

	// mu prevents concurrent reads of the config file
	mu sync.Mutex
}

// NewFileConfigManager creates a new FileConfigManager reading from the given path.
// An empty path falls back to DefaultConfigPath.
func NewFileConfigManager(configPath string) *FileConfigManager {
	if configPath == "" {
		configPath = DefaultConfigPath
	}

	return &FileConfigManager{
		configPath: configPath,
		logger:     logger.For(logger.ComponentConfigManager),
	}
}

// GetConfig reads the config file, fills defaults and applies env overrides.
// A missing config file is not an error: the defaults are used.
func (m *FileConfigManager) GetConfig(ctx context.Context) (FullConfig, error) {
	if ctx.Err() != nil {
		return FullConfig{}, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	config := FullConfig{}

	data, err := os.ReadFile(m.configPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		m.logger.Infof("Config file %s not found, using defaults", m.configPath)
	case err != nil:
		return FullConfig{}, fmt.Errorf("failed to read config file %s: %w", m.configPath, err)
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return FullConfig{}, fmt.Errorf("failed to parse config file %s: %w", m.configPath, err)
		}
	}

	config.applyDefaults()
	applyEnvOverrides(&config, m.logger)

	return config, nil
}

// applyEnvOverrides lets environment variables win over file values.
func applyEnvOverrides(config *FullConfig, log *zap.SugaredLogger) {
	if v := os.Getenv(envFeedURL); v != "" {
		config.Fetcher.FeedURL = v
	}

	if v := os.Getenv(envInstanceID); v != "" {
		config.Core.InstanceID = v
	}

	if v := os.Getenv(envAPIPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			log.Warnf("Ignoring invalid %s=%q: %v", envAPIPort, v, err)
		} else {
			config.Core.APIPort = port
		}
	}

	if v := os.Getenv(envMetricsPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			log.Warnf("Ignoring invalid %s=%q: %v", envMetricsPort, v, err)
		} else {
			config.Core.MetricsPort = port
		}
	}
}
