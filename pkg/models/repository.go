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

package models

// Repository is one fetched feed entry. It is a plain value with no identity
// beyond structural equality.
type Repository struct {
	// Name is the repository name
	Name string `json:"name" yaml:"name"`
	// Description is the short human-readable description
	Description string `json:"description" yaml:"description"`
	// Category is the classification label the feed assigns to the entry
	// (e.g. the primary language). Filtering matches against this field.
	Category string `json:"category" yaml:"category"`
}

// Page is the result of one fetch call against the feed collaborator.
type Page struct {
	// Items are the fetched entries, in feed order
	Items []Repository `json:"items"`
	// Cursor is the opaque continuation token for the next page
	Cursor string `json:"cursor"`
	// HasMore reports whether the feed has more entries after this page
	HasMore bool `json:"hasMore"`
}
