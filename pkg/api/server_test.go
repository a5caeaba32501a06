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

package api_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/repowatch/pkg/api"
	"github.com/united-manufacturing-hub/repowatch/pkg/fetcher"
	"github.com/united-manufacturing-hub/repowatch/pkg/models"
	"github.com/united-manufacturing-hub/repowatch/pkg/reducer"
)

// closeNotifyRecorder adds the http.CloseNotifier implementation that gin's
// Stream requires of its response writer.
type closeNotifyRecorder struct {
	*httptest.ResponseRecorder
}

func (r *closeNotifyRecorder) CloseNotify() <-chan bool { return make(chan bool) }

var _ = Describe("Server", func() {
	var (
		mockFetcher *fetcher.MockFetcher
		machine     *reducer.Machine
		server      *api.Server
	)

	dartRepo := models.Repository{
		Name:        "bloc",
		Description: "A predictable state management library",
		Category:    "Dart",
	}

	do := func(method, path, body string) *httptest.ResponseRecorder {
		var reader *strings.Reader
		if body == "" {
			reader = strings.NewReader("")
		} else {
			reader = strings.NewReader(body)
		}

		req := httptest.NewRequest(method, path, reader)
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}

		recorder := httptest.NewRecorder()
		// gin's Stream asserts the writer to http.CloseNotifier, which the
		// plain recorder does not implement.
		server.Router().ServeHTTP(&closeNotifyRecorder{ResponseRecorder: recorder}, req)

		return recorder
	}

	BeforeEach(func() {
		mockFetcher = fetcher.NewMockFetcher()
		machine = reducer.NewMachine("api-test", mockFetcher)
		server = api.NewServer(machine, 0)
	})

	AfterEach(func() {
		machine.Close()
	})

	Context("GET /healthz", func() {
		It("should report ok", func() {
			recorder := do(http.MethodGet, "/healthz", "")
			Expect(recorder.Code).To(Equal(http.StatusOK))
		})
	})

	Context("GET /api/v1/state", func() {
		It("should report the idle state initially", func() {
			recorder := do(http.MethodGet, "/api/v1/state", "")
			Expect(recorder.Code).To(Equal(http.StatusOK))

			var resp map[string]interface{}
			Expect(json.Unmarshal(recorder.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["state"]).To(Equal("idle"))
		})
	})

	Context("POST /api/v1/events", func() {
		It("should dispatch a fetch event and return the loaded state", func() {
			mockFetcher.FetchResult = models.Page{
				Items:   []models.Repository{dartRepo},
				Cursor:  "endCursor",
				HasMore: true,
			}

			recorder := do(http.MethodPost, "/api/v1/events", `{"type":"fetch"}`)
			Expect(recorder.Code).To(Equal(http.StatusOK))

			var resp map[string]interface{}
			Expect(json.Unmarshal(recorder.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["state"]).To(Equal("loaded"))
			Expect(resp["cursor"]).To(Equal("endCursor"))
			Expect(resp["all"]).To(HaveLen(1))
		})

		It("should dispatch a filter event with its category", func() {
			mockFetcher.FetchResult = models.Page{Items: []models.Repository{dartRepo}}
			Expect(do(http.MethodPost, "/api/v1/events", `{"type":"fetch"}`).Code).To(Equal(http.StatusOK))

			recorder := do(http.MethodPost, "/api/v1/events", `{"type":"filter","category":"Go"}`)
			Expect(recorder.Code).To(Equal(http.StatusOK))

			var resp map[string]interface{}
			Expect(json.Unmarshal(recorder.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["state"]).To(Equal("loaded"))
			Expect(resp["visible"]).To(BeNil())
			Expect(resp["all"]).To(HaveLen(1))
		})

		It("should report the failed state after a collaborator failure", func() {
			mockFetcher.FetchError = errors.New("feed down")

			recorder := do(http.MethodPost, "/api/v1/events", `{"type":"fetch"}`)
			Expect(recorder.Code).To(Equal(http.StatusOK))

			var resp map[string]interface{}
			Expect(json.Unmarshal(recorder.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["state"]).To(Equal("failed"))
			Expect(resp["message"]).To(Equal("feed down"))
		})

		It("should reject an unknown event type", func() {
			recorder := do(http.MethodPost, "/api/v1/events", `{"type":"reboot"}`)
			Expect(recorder.Code).To(Equal(http.StatusBadRequest))
		})

		It("should reject a body without a type", func() {
			recorder := do(http.MethodPost, "/api/v1/events", `{"category":"Dart"}`)
			Expect(recorder.Code).To(Equal(http.StatusBadRequest))
		})

		It("should answer conflict once the machine is closed", func() {
			machine.Close()

			recorder := do(http.MethodPost, "/api/v1/events", `{"type":"fetch"}`)
			Expect(recorder.Code).To(Equal(http.StatusConflict))
		})
	})

	Context("GET /api/v1/state/stream", func() {
		It("should reject an unknown phase filter", func() {
			recorder := do(http.MethodGet, "/api/v1/state/stream?phase=rebooting", "")
			Expect(recorder.Code).To(Equal(http.StatusBadRequest))
		})

		It("should accept a known phase filter", func() {
			// A closed machine hands the stream an already-closed channel,
			// so the request terminates instead of streaming forever.
			machine.Close()

			recorder := do(http.MethodGet, "/api/v1/state/stream?phase=loaded", "")
			Expect(recorder.Code).To(Equal(http.StatusOK))
		})
	})
})
