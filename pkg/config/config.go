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
	"time"

	"github.com/tiendc/go-deepcopy"
)

// FullConfig is the root of the YAML config file.
type FullConfig struct {
	Core    CoreConfig    `yaml:"core"`
	Fetcher FetcherConfig `yaml:"fetcher"`
}

// CoreConfig configures the daemon surfaces and the machine instance.
type CoreConfig struct {
	// InstanceID identifies the machine instance in logs and metrics.
	// A random ID is generated when empty.
	InstanceID string `yaml:"instanceID"`
	// APIPort is the port the HTTP API listens on
	APIPort int `yaml:"apiPort"`
	// MetricsPort is the port the Prometheus endpoint listens on
	MetricsPort int `yaml:"metricsPort"`
}

// FetcherConfig configures the feed collaborator.
type FetcherConfig struct {
	// FeedURL is the endpoint of the paginated repository feed
	FeedURL string `yaml:"feedURL"`
	// PageSize is the number of entries requested per page
	PageSize int `yaml:"pageSize"`
	// HTTPTimeout bounds a single HTTP request
	HTTPTimeout time.Duration `yaml:"httpTimeout"`
	// MaxRetries bounds the retry budget for transient feed failures
	MaxRetries uint64 `yaml:"maxRetries"`
	// CacheTTL is how long a fetched continuation page stays cached
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// DefaultConfig returns the config used when the file is absent or partial.
func DefaultConfig() FullConfig {
	return FullConfig{
		Core: CoreConfig{
			APIPort:     8080,
			MetricsPort: 8081,
		},
		Fetcher: FetcherConfig{
			FeedURL:     "https://api.github.com/search/repositories",
			PageSize:    30,
			HTTPTimeout: 10 * time.Second,
			MaxRetries:  3,
			CacheTTL:    30 * time.Second,
		},
	}
}

// Clone returns an independent deep copy of the config.
func (c FullConfig) Clone() FullConfig {
	var clone FullConfig

	err := deepcopy.Copy(&clone, &c)
	if err != nil {
		// FullConfig contains only plain values, copying cannot fail
		return c
	}

	return clone
}

// applyDefaults fills zero-valued fields with the defaults.
func (c *FullConfig) applyDefaults() {
	defaults := DefaultConfig()

	if c.Core.APIPort == 0 {
		c.Core.APIPort = defaults.Core.APIPort
	}

	if c.Core.MetricsPort == 0 {
		c.Core.MetricsPort = defaults.Core.MetricsPort
	}

	if c.Fetcher.FeedURL == "" {
		c.Fetcher.FeedURL = defaults.Fetcher.FeedURL
	}

	if c.Fetcher.PageSize == 0 {
		c.Fetcher.PageSize = defaults.Fetcher.PageSize
	}

	if c.Fetcher.HTTPTimeout == 0 {
		c.Fetcher.HTTPTimeout = defaults.Fetcher.HTTPTimeout
	}

	if c.Fetcher.MaxRetries == 0 {
		c.Fetcher.MaxRetries = defaults.Fetcher.MaxRetries
	}

	if c.Fetcher.CacheTTL == 0 {
		c.Fetcher.CacheTTL = defaults.Fetcher.CacheTTL
	}
}
