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

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"github.com/tiendc/go-deepcopy"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/repowatch/pkg/fetcher"
	"github.com/united-manufacturing-hub/repowatch/pkg/logger"
	"github.com/united-manufacturing-hub/repowatch/pkg/metrics"
	"github.com/united-manufacturing-hub/repowatch/pkg/models"
)

// ErrClosed is returned by Dispatch after the machine has been torn down.
var ErrClosed = errors.New("machine is closed")

// subscriberBuffer is the per-subscriber channel capacity. A subscriber that
// falls further behind loses its oldest pending states, never the newest.
const subscriberBuffer = 64

// Machine is the repository feed state machine: it consumes events one at a
// time, invokes the injected fetch collaborator, and emits states in order.
//
// Events are processed strictly sequentially per instance: Dispatch holds the
// dispatch lock across the whole event, including the collaborator call, so a
// concurrent Dispatch queues behind the in-flight one (FIFO by lock queue).
type Machine struct {
	id          string
	feedFetcher fetcher.Fetcher
	logger      *zap.SugaredLogger

	// dispatchMu serializes event processing
	dispatchMu sync.Mutex

	// stateMu guards the phase FSM, the accumulated payload and the
	// subscriber registry
	stateMu sync.RWMutex

	// fsm tracks the machine phase (idle/loading/loaded/failed)
	fsm *fsm.FSM

	// Accumulated machine memory, only valid while the phase is loaded
	all      []models.Repository
	visible  []models.Repository
	cursor   string
	hasMore  bool
	category string

	// failure is the rendered fetch failure, only valid while failed
	failure string

	subscribers      map[uint64]chan State
	nextSubscriberID uint64
	closed           bool
}

// NewMachine creates a machine in the Idle phase, owned by the caller until
// Close. An empty id gets a generated one.
func NewMachine(id string, feedFetcher fetcher.Fetcher) *Machine {
	if id == "" {
		id = uuid.NewString()
	}

	m := &Machine{
		id:          id,
		feedFetcher: feedFetcher,
		logger:      logger.For(logger.ComponentReducer),
		subscribers: make(map[uint64]chan State),
	}

	m.fsm = fsm.NewFSM(
		PhaseIdle,
		fsm.Events{
			// A fetch restart is allowed from every settled phase. The
			// loading phase is never observable here because Dispatch
			// completes the in-flight fetch before releasing the lock.
			{Name: eventFetch, Src: []string{PhaseIdle, PhaseLoaded, PhaseFailed}, Dst: PhaseLoading},
			{Name: eventFetchSucceeded, Src: []string{PhaseLoading}, Dst: PhaseLoaded},

			// A failed pagination fetch also lands in failed
			{Name: eventFetchFailed, Src: []string{PhaseLoading, PhaseLoaded}, Dst: PhaseFailed},

			{Name: eventFilterApplied, Src: []string{PhaseLoaded}, Dst: PhaseLoaded},
			{Name: eventMoreLoaded, Src: []string{PhaseLoaded}, Dst: PhaseLoaded},
		},
		fsm.Callbacks{
			"enter_state": func(ctx context.Context, e *fsm.Event) {
				m.logger.Debugf("Machine %s: %s -> %s (%s)", m.id, e.Src, e.Dst, e.Event)
				metrics.UpdateMachineState(m.id, e.Dst)
			},
		},
	)

	metrics.InitFetchFailureCounter(metrics.ComponentReducer, id)
	metrics.UpdateMachineState(id, PhaseIdle)

	return m
}

// GetID returns the machine's instance ID.
func (m *Machine) GetID() string {
	return m.id
}

// Dispatch processes one event fully, including awaiting the collaborator,
// before returning. Collaborator failures are absorbed into a Failed state
// and do not surface as an error here; only a closed machine, an expired
// context or an internal transition fault do.
func (m *Machine) Dispatch(ctx context.Context, event Event) error {
	m.dispatchMu.Lock()
	defer m.dispatchMu.Unlock()

	if m.isClosed() {
		return ErrClosed
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	start := time.Now()
	defer func() {
		metrics.ObserveEventDuration(event.Name(), m.id, time.Since(start))
	}()
	metrics.IncEventCount(event.Name(), m.id)

	switch e := event.(type) {
	case FetchRequested:
		return m.handleFetch(ctx)
	case FilterByCategoryRequested:
		return m.handleFilter(ctx, e.Category)
	case LoadMoreRequested:
		return m.handleLoadMore(ctx)
	default:
		return fmt.Errorf("unknown event type %T", event)
	}
}

// handleFetch emits Loading, calls the collaborator from the start of the
// feed and settles in Loaded or Failed.
func (m *Machine) handleFetch(ctx context.Context) error {
	if err := m.transition(ctx, eventFetch); err != nil {
		return err
	}

	m.emitCurrent()

	page, err := m.feedFetcher.Fetch(ctx, "")
	if err != nil {
		return m.fail(ctx, err)
	}

	m.stateMu.Lock()
	m.all = append([]models.Repository(nil), page.Items...)
	// a fresh fetch clears the active filter
	m.category = ""
	m.visible = m.all
	m.cursor = page.Cursor
	m.hasMore = page.HasMore
	m.failure = ""
	m.stateMu.Unlock()

	if err := m.transition(ctx, eventFetchSucceeded); err != nil {
		return err
	}

	m.emitCurrent()

	return nil
}

// handleFilter recomputes the visible items. Ignored unless loaded.
func (m *Machine) handleFilter(ctx context.Context, category string) error {
	if m.phase() != PhaseLoaded {
		m.logger.Debugf("Machine %s: ignoring filter %q, no data to filter", m.id, category)

		return nil
	}

	m.stateMu.Lock()
	m.category = category
	m.visible = filterByCategory(m.all, category)
	m.stateMu.Unlock()

	if err := m.transition(ctx, eventFilterApplied); err != nil {
		return err
	}

	m.emitCurrent()

	return nil
}

// handleLoadMore continues pagination from the stored cursor. Ignored unless
// loaded. Newly fetched items are appended and the active filter reapplied.
func (m *Machine) handleLoadMore(ctx context.Context) error {
	if m.phase() != PhaseLoaded {
		m.logger.Debugf("Machine %s: ignoring load more, nothing to paginate from", m.id)

		return nil
	}

	m.stateMu.RLock()
	cursor := m.cursor
	m.stateMu.RUnlock()

	page, err := m.feedFetcher.Fetch(ctx, cursor)
	if err != nil {
		return m.fail(ctx, err)
	}

	m.stateMu.Lock()
	m.all = append(m.all, page.Items...)
	m.visible = filterByCategory(m.all, m.category)
	m.cursor = page.Cursor
	m.hasMore = page.HasMore
	m.stateMu.Unlock()

	if err := m.transition(ctx, eventMoreLoaded); err != nil {
		return err
	}

	m.emitCurrent()

	return nil
}

// fail converts a collaborator failure into an emitted Failed state. The
// failure never propagates out of Dispatch as an error.
func (m *Machine) fail(ctx context.Context, cause error) error {
	metrics.IncFetchFailureCount(metrics.ComponentReducer, m.id)
	m.logger.Warnf("Machine %s: fetch failed: %v", m.id, cause)

	m.stateMu.Lock()
	m.failure = renderFailure(cause)
	m.stateMu.Unlock()

	if err := m.transition(ctx, eventFetchFailed); err != nil {
		return err
	}

	m.emitCurrent()

	return nil
}

// transition sends a phase event to the FSM. Self-transitions (filter and
// pagination while loaded) report NoTransitionError, which is expected.
func (m *Machine) transition(ctx context.Context, name string) error {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	err := m.fsm.Event(ctx, name)
	if err != nil {
		var noTransition fsm.NoTransitionError
		if errors.As(err, &noTransition) {
			return nil
		}

		return fmt.Errorf("phase transition %s failed: %w", name, err)
	}

	return nil
}

// State returns an isolated snapshot of the current state.
func (m *Machine) State() State {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()

	return m.snapshotLocked()
}

// snapshotLocked builds the current State. Callers must hold stateMu.
func (m *Machine) snapshotLocked() State {
	switch m.fsm.Current() {
	case PhaseLoading:
		return Loading{}
	case PhaseFailed:
		return Failed{Message: m.failure}
	case PhaseLoaded:
		loaded := Loaded{
			Cursor:  m.cursor,
			HasMore: m.hasMore,
		}

		if err := deepcopy.Copy(&loaded.All, &m.all); err != nil {
			m.logger.Errorf("Machine %s: failed to copy accumulated items: %v", m.id, err)
		}

		if err := deepcopy.Copy(&loaded.Visible, &m.visible); err != nil {
			m.logger.Errorf("Machine %s: failed to copy visible items: %v", m.id, err)
		}

		return loaded
	default:
		return Idle{}
	}
}

// Subscribe returns an ordered stream of emitted states plus a cancel
// function. Subscribing to a closed machine yields an already-closed channel.
func (m *Machine) Subscribe() (<-chan State, func()) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	if m.closed {
		ch := make(chan State)
		close(ch)

		return ch, func() {}
	}

	id := m.nextSubscriberID
	m.nextSubscriberID++

	ch := make(chan State, subscriberBuffer)
	m.subscribers[id] = ch

	cancel := func() {
		m.stateMu.Lock()
		defer m.stateMu.Unlock()

		if c, ok := m.subscribers[id]; ok {
			delete(m.subscribers, id)
			close(c)
		}
	}

	return ch, cancel
}

// Close tears the machine down: subscriber channels are closed and further
// dispatches return ErrClosed. An in-flight fetch is not cancelled; its
// result is discarded because the subscriber registry is already empty.
func (m *Machine) Close() {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	if m.closed {
		return
	}

	m.closed = true

	for id, ch := range m.subscribers {
		delete(m.subscribers, id)
		close(ch)
	}

	m.logger.Debugf("Machine %s closed", m.id)
}

// emitCurrent delivers the current state snapshot to every subscriber.
// Only the dispatch goroutine sends on subscriber channels, so per-subscriber
// emission order always matches event processing order.
func (m *Machine) emitCurrent() {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	state := m.snapshotLocked()

	for _, ch := range m.subscribers {
		select {
		case ch <- state:
		default:
			// buffer full: drop the oldest pending state to keep the
			// stream live, then deliver the newest
			select {
			case <-ch:
			default:
			}

			select {
			case ch <- state:
			default:
			}
		}
	}
}

// phase returns the current FSM phase.
func (m *Machine) phase() string {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()

	return m.fsm.Current()
}

// isClosed reports whether Close has been called.
func (m *Machine) isClosed() bool {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()

	return m.closed
}

// filterByCategory returns the items matching the category, or the full
// sequence when the category is empty.
func filterByCategory(items []models.Repository, category string) []models.Repository {
	if category == "" {
		return items
	}

	filtered := make([]models.Repository, 0, len(items))

	for _, item := range items {
		if item.Category == category {
			filtered = append(filtered, item)
		}
	}

	return filtered
}

// renderFailure turns a collaborator failure into the human-readable
// description carried by Failed. It never panics, even on a nil error.
func renderFailure(cause error) string {
	if cause == nil {
		return "unknown fetch failure"
	}

	return cause.Error()
}
