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

package reducer

// Event is the closed set of inputs the machine accepts. The unexported
// marker method keeps the set closed: new event kinds can only be added here.
type Event interface {
	isEvent()

	// Name returns the event name used in logs and metrics
	Name() string
}

// FetchRequested asks the machine to (re)load the feed from the start.
// A fresh fetch replaces all accumulated items and clears the active filter.
type FetchRequested struct{}

func (FetchRequested) isEvent() {}

// Name returns the event name used in logs and metrics
func (FetchRequested) Name() string { return "fetch_requested" }

// FilterByCategoryRequested narrows the visible items to one category.
// An empty category removes the filter. A no-op unless the machine is loaded.
type FilterByCategoryRequested struct {
	Category string
}

func (FilterByCategoryRequested) isEvent() {}

// Name returns the event name used in logs and metrics
func (FilterByCategoryRequested) Name() string { return "filter_requested" }

// LoadMoreRequested continues pagination from the last known cursor.
// A no-op unless the machine is loaded.
type LoadMoreRequested struct{}

func (LoadMoreRequested) isEvent() {}

// Name returns the event name used in logs and metrics
func (LoadMoreRequested) Name() string { return "load_more_requested" }
