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

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/repowatch/pkg/logger"
	"github.com/united-manufacturing-hub/repowatch/pkg/models"
	"github.com/united-manufacturing-hub/repowatch/pkg/reducer"
)

// Event type strings accepted by the events endpoint.
const (
	eventTypeFetch    = "fetch"
	eventTypeFilter   = "filter"
	eventTypeLoadMore = "load_more"
)

// Server exposes one machine instance over HTTP: current state, event
// submission and an SSE stream of emitted states.
type Server struct {
	machine *reducer.Machine
	logger  *zap.SugaredLogger
	router  *gin.Engine
	server  *http.Server
}

// NewServer creates the HTTP API server for the given machine.
func NewServer(machine *reducer.Machine, port int) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		machine: machine,
		logger:  logger.For(logger.ComponentAPI),
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", s.handleHealth)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/state", s.handleState)
		v1.POST("/events", s.handleEvent)
		v1.GET("/state/stream", s.handleStateStream)
	}

	s.router = router
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// Router returns the HTTP handler, useful for testing with httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start blocks serving HTTP until the server is shut down.
func (s *Server) Start() error {
	s.logger.Infof("API listening on %s", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, renderState(s.machine.State()))
}

// eventRequest is the wire format of one submitted event.
type eventRequest struct {
	Type     string `json:"type" binding:"required"`
	Category string `json:"category"`
}

func (s *Server) handleEvent(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	var event reducer.Event

	switch req.Type {
	case eventTypeFetch:
		event = reducer.FetchRequested{}
	case eventTypeFilter:
		event = reducer.FilterByCategoryRequested{Category: req.Category}
	case eventTypeLoadMore:
		event = reducer.LoadMoreRequested{}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown event type %q", req.Type)})

		return
	}

	if err := s.machine.Dispatch(c.Request.Context(), event); err != nil {
		if errors.Is(err, reducer.ErrClosed) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

			return
		}

		s.logger.Errorf("Dispatch of %s failed: %v", event.Name(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	c.JSON(http.StatusOK, renderState(s.machine.State()))
}

// handleStateStream streams emitted states as server-sent events, in
// emission order, until the client disconnects or the machine closes. An
// optional phase query parameter narrows the stream to one phase.
func (s *Server) handleStateStream(c *gin.Context) {
	phase := c.Query("phase")
	if phase != "" && !reducer.IsPhase(phase) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown phase %q", phase)})

		return
	}

	states, cancel := s.machine.Subscribe()
	defer cancel()

	c.Writer.Header().Set("Cache-Control", "no-cache")

	c.Stream(func(w io.Writer) bool {
		select {
		case state, ok := <-states:
			if !ok {
				return false
			}

			if phase != "" && state.Phase() != phase {
				return true
			}

			c.SSEvent("state", renderState(state))

			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// stateResponse is the wire format of a machine state.
type stateResponse struct {
	State   string              `json:"state"`
	All     []models.Repository `json:"all,omitempty"`
	Visible []models.Repository `json:"visible,omitempty"`
	Cursor  string              `json:"cursor,omitempty"`
	HasMore bool                `json:"hasMore,omitempty"`
	Message string              `json:"message,omitempty"`
}

func renderState(state reducer.State) stateResponse {
	resp := stateResponse{State: state.Phase()}

	switch st := state.(type) {
	case reducer.Loaded:
		resp.All = st.All
		resp.Visible = st.Visible
		resp.Cursor = st.Cursor
		resp.HasMore = st.HasMore
	case reducer.Failed:
		resp.Message = st.Message
	}

	return resp
}
