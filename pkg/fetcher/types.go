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
	"errors"

	"github.com/united-manufacturing-hub/repowatch/pkg/models"
)

// ErrFeedUnavailable is returned when the feed cannot be reached after the
// retry budget is exhausted.
var ErrFeedUnavailable = errors.New("feed unavailable")

// Fetcher is the single collaborator contract of the state machine: fetch one
// page of repositories, optionally continuing after a cursor.
//
// An empty `after` requests the first page. Implementations own their timeout
// and retry policy; the state machine never retries on its own.
type Fetcher interface {
	Fetch(ctx context.Context, after string) (models.Page, error)
}
