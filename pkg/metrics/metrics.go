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

package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/united-manufacturing-hub/repowatch/pkg/logger"
)

// Component labels for the fetch failure counter.
const (
	ComponentReducer = "reducer"
	ComponentFetcher = "fetcher"
)

var (
	// Namespace and subsystem for all metrics.
	namespace = "repowatch"
	subsystem = "core"

	// Events processed by the state machine, by event name.
	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "events_total",
			Help:      "Total number of events dispatched to the state machine",
		},
		[]string{"event", "instance"},
	)

	// Event processing timing, including the collaborator fetch.
	eventDuration = promauto.NewSummaryVec(
		prometheus.SummaryOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "event_duration_milliseconds",
			Help:      "Time taken to fully process one event (in milliseconds)",
			Objectives: map[float64]float64{
				0.5:  0.01, // 50th percentile with 1% error
				0.9:  0.01, // 90th percentile with 1% error
				0.95: 0.01, // 95th percentile with 1% error
				0.99: 0.01, // 99th percentile with 1% error
			},
		},
		[]string{"event", "instance"},
	)

	// Collaborator failures converted to a Failed state.
	fetchFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "fetch_failures_total",
			Help:      "Total number of feed fetch failures, by component",
		},
		[]string{"component", "instance"},
	)

	// Current machine state (0=Idle, 1=Loading, 2=Loaded, 3=Failed, -1=Unknown).
	machineCurrentState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "machine_current_state",
			Help:      "Current state of the machine (0=Idle, 1=Loading, 2=Loaded, 3=Failed, -1=Unknown)",
		},
		[]string{"instance"},
	)
)

// IncEventCount increments the event counter for an instance.
func IncEventCount(event, instance string) {
	eventsTotal.WithLabelValues(event, instance).Inc()
}

// ObserveEventDuration records the time taken to process one event.
func ObserveEventDuration(event, instance string, duration time.Duration) {
	eventDuration.WithLabelValues(event, instance).Observe(float64(duration.Milliseconds()))
}

// IncFetchFailureCount increments the fetch failure counter for a component.
func IncFetchFailureCount(component, instance string) {
	fetchFailuresTotal.WithLabelValues(component, instance).Inc()
}

// InitFetchFailureCounter initializes the fetch failure counter for a component.
func InitFetchFailureCounter(component, instance string) {
	fetchFailuresTotal.WithLabelValues(component, instance).Add(0)
}

// UpdateMachineState updates the current state gauge for an instance.
func UpdateMachineState(instance, currentState string) {
	machineCurrentState.WithLabelValues(instance).Set(getStateValue(currentState))
}

// getStateValue converts a state string to a numeric value for the metric.
func getStateValue(state string) float64 {
	switch state {
	case "idle":
		return 0
	case "loading":
		return 1
	case "loaded":
		return 2
	case "failed":
		return 3
	default:
		return -1 // Unknown state
	}
}

// SetupMetricsEndpoint starts an HTTP server to expose metrics
// This should be called once at application startup.
func SetupMetricsEndpoint(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.For(logger.ComponentMetrics).Errorf("Metrics server failed: %v", err)
		}
	}()

	return server
}
