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

import "github.com/united-manufacturing-hub/repowatch/pkg/models"

// These are the machine phases tracked by the internal FSM.
const (
	// PhaseIdle is the initial phase: no data yet, no error
	PhaseIdle = "idle"
	// PhaseLoading means a first-page fetch is in flight
	PhaseLoading = "loading"
	// PhaseLoaded means the machine holds accumulated data
	PhaseLoaded = "loaded"
	// PhaseFailed means the last fetch failed; a new fetch recovers
	PhaseFailed = "failed"
)

// Phase transition events for the internal FSM.
const (
	eventFetch          = "fetch"
	eventFetchSucceeded = "fetch_succeeded"
	eventFetchFailed    = "fetch_failed"
	eventFilterApplied  = "filter_applied"
	eventMoreLoaded     = "more_loaded"
)

// IsPhase returns true if the given string is one of the machine phases.
func IsPhase(phase string) bool {
	switch phase {
	case PhaseIdle, PhaseLoading, PhaseLoaded, PhaseFailed:
		return true
	}

	return false
}

// State is the closed set of outputs the machine emits. Each emitted value is
// an isolated snapshot: mutating it never affects the machine's memory.
type State interface {
	isState()

	// Phase returns the phase string matching the state kind
	Phase() string
}

// Idle is the initial state: no data yet, no error.
type Idle struct{}

func (Idle) isState() {}

// Phase returns the phase string matching the state kind
func (Idle) Phase() string { return PhaseIdle }

// Loading is emitted when a first-page fetch starts. It carries no payload.
type Loading struct{}

func (Loading) isState() {}

// Phase returns the phase string matching the state kind
func (Loading) Phase() string { return PhaseLoading }

// Loaded carries the accumulated items plus the pagination continuation.
type Loaded struct {
	// All is the full accumulated item sequence, in fetch order
	All []models.Repository
	// Visible is All after the active category filter; identical to All
	// when no filter is active
	Visible []models.Repository
	// Cursor is the continuation token for the next page
	Cursor string
	// HasMore reports whether the feed has more entries
	HasMore bool
}

func (Loaded) isState() {}

// Phase returns the phase string matching the state kind
func (Loaded) Phase() string { return PhaseLoaded }

// Failed carries a human-readable rendering of the fetch failure.
type Failed struct {
	Message string
}

func (Failed) isState() {}

// Phase returns the phase string matching the state kind
func (Failed) Phase() string { return PhaseFailed }
