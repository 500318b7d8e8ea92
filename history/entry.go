// Copyright 2026 The Atlas Linq Contributors.
// SPDX-License-Identifier: Apache-2.0
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

// Package history keeps the local log of share events: cards sent, cards
// received and physical tag writes. Entries are soft-deleted by default and
// hard-deleted only on explicit purge.
package history

import (
	"time"

	"github.com/atlas-linq/tapcard/pkg/vcard"
)

// EntryKind discriminates the history tagged union.
type EntryKind string

// History entry kinds.
const (
	KindSent     EntryKind = "sent"
	KindReceived EntryKind = "received"
	KindTagWrite EntryKind = "tag-write"
)

// Entry is one logged share event. Counterpart, location and tag fields are
// optional and depend on the kind.
type Entry struct {
	ID              string       `json:"id"`
	Kind            EntryKind    `json:"kind"`
	Method          vcard.Method `json:"method"`
	OccurredAt      time.Time    `json:"occurredAt"`
	CounterpartID   string       `json:"counterpartId,omitempty"`
	CounterpartName string       `json:"counterpartName,omitempty"`
	Location        string       `json:"location,omitempty"`
	TagID           string       `json:"tagId,omitempty"`
	TagCapacity     int          `json:"tagCapacity,omitempty"`
	Deleted         bool         `json:"deleted"`
}
