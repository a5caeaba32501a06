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

package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/goccy/go-json"
	"github.com/united-manufacturing-hub/expiremap/v2/pkg/expiremap"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/repowatch/pkg/config"
	"github.com/united-manufacturing-hub/repowatch/pkg/logger"
	"github.com/united-manufacturing-hub/repowatch/pkg/metrics"
	"github.com/united-manufacturing-hub/repowatch/pkg/models"
)

// cacheCullInterval is how often expired cache entries are removed.
const cacheCullInterval = time.Minute

// HTTPFetcher fetches repository pages from a JSON HTTP feed.
//
// Continuation pages (non-empty cursor) are cached for a short TTL so that
// re-paginating over the same cursor does not re-hit the network. The first
// page is never cached: a fresh fetch is expected to observe fresh data.
type HTTPFetcher struct {
	feedURL    string
	pageSize   int
	maxRetries uint64
	client     *http.Client
	cache      *expiremap.ExpireMap[string, models.Page]
	logger     *zap.SugaredLogger
}

// Ensure HTTPFetcher implements Fetcher
var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates an HTTPFetcher from the fetcher config.
func NewHTTPFetcher(cfg config.FetcherConfig) *HTTPFetcher {
	return &HTTPFetcher{
		feedURL:    cfg.FeedURL,
		pageSize:   cfg.PageSize,
		maxRetries: cfg.MaxRetries,
		client: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		cache:  expiremap.NewEx[string, models.Page](cacheCullInterval, cfg.CacheTTL),
		logger: logger.For(logger.ComponentFetcher),
	}
}

// WithClient allows setting a custom HTTP client, useful for testing.
func (f *HTTPFetcher) WithClient(client *http.Client) *HTTPFetcher {
	f.client = client
	return f
}

// feedResponse is the wire format of one feed page.
type feedResponse struct {
	Items []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Category    string `json:"category"`
	} `json:"items"`
	Cursor  string `json:"cursor"`
	HasMore bool   `json:"hasMore"`
}

// Fetch retrieves one page from the feed, retrying transient failures with
// exponential backoff up to the configured budget.
func (f *HTTPFetcher) Fetch(ctx context.Context, after string) (models.Page, error) {
	if after != "" {
		if cached, ok := f.cache.Load(after); ok {
			f.logger.Debugf("Cache hit for cursor %q", after)
			return *cached, nil
		}
	}

	var page models.Page

	operation := func() error {
		var err error
		page, err = f.fetchOnce(ctx, after)
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), f.maxRetries), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		metrics.IncFetchFailureCount(metrics.ComponentFetcher, f.feedURL)

		return models.Page{}, err
	}

	if after != "" {
		f.cache.Set(after, page)
	}

	return page, nil
}

// fetchOnce performs a single HTTP round trip. Server-side (5xx) and
// transport failures are retryable; client-side (4xx) failures are permanent.
func (f *HTTPFetcher) fetchOnce(ctx context.Context, after string) (models.Page, error) {
	endpoint, err := url.Parse(f.feedURL)
	if err != nil {
		return models.Page{}, backoff.Permanent(fmt.Errorf("invalid feed URL %q: %w", f.feedURL, err))
	}

	query := endpoint.Query()
	query.Set("per_page", strconv.Itoa(f.pageSize))

	if after != "" {
		query.Set("after", after)
	}

	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return models.Page{}, backoff.Permanent(err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Debugf("Feed request failed: %v", err)

		return models.Page{}, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Page{}, fmt.Errorf("%w: reading response: %v", ErrFeedUnavailable, err)
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return models.Page{}, fmt.Errorf("%w: feed returned status %d", ErrFeedUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return models.Page{}, backoff.Permanent(fmt.Errorf("feed returned status %d", resp.StatusCode))
	}

	var decoded feedResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return models.Page{}, backoff.Permanent(fmt.Errorf("failed to decode feed response: %w", err))
	}

	page := models.Page{
		Items:   make([]models.Repository, 0, len(decoded.Items)),
		Cursor:  decoded.Cursor,
		HasMore: decoded.HasMore,
	}

	for _, item := range decoded.Items {
		page.Items = append(page.Items, models.Repository{
			Name:        item.Name,
			Description: item.Description,
			Category:    item.Category,
		})
	}

	return page, nil
}
