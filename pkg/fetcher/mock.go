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
	"sync"

	"github.com/united-manufacturing-hub/repowatch/pkg/models"
)

// MockFetcher is a mock implementation of the Fetcher interface for testing
type MockFetcher struct {
	mu sync.Mutex

	// Tracks calls to methods
	FetchCalled bool

	// Return values
	FetchResult models.Page
	FetchError  error

	// For more complex testing scenarios: pages scripted per cursor.
	// When set, a Fetch(after) looks up Pages[after] instead of FetchResult.
	Pages map[string]models.Page

	// Calls records every cursor passed to Fetch, in arrival order
	Calls []string

	// FetchHook, when set, runs at the start of every Fetch, outside the
	// mock's lock. Tests use it to hold a fetch in flight.
	FetchHook func(after string)
}

// Ensure MockFetcher implements Fetcher
var _ Fetcher = (*MockFetcher)(nil)

// NewMockFetcher creates a new mock fetcher
func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		Pages: make(map[string]models.Page),
	}
}

// Fetch mocks fetching one page from the feed
func (m *MockFetcher) Fetch(ctx context.Context, after string) (models.Page, error) {
	if m.FetchHook != nil {
		m.FetchHook(after)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.FetchCalled = true
	m.Calls = append(m.Calls, after)

	if m.FetchError != nil {
		return models.Page{}, m.FetchError
	}

	if page, ok := m.Pages[after]; ok {
		return page, nil
	}

	return m.FetchResult, nil
}

// CallCount returns how many times Fetch has been invoked
func (m *MockFetcher) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.Calls)
}
