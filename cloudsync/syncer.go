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

package cloudsync

import (
	"context"

	"github.com/atlas-linq/tapcard/internal/logging"
	"github.com/atlas-linq/tapcard/profile"
)

// DocumentStore is the document side of a sync target.
type DocumentStore interface {
	Upsert(ctx context.Context, p *profile.Profile) error
}

// Report records the outcome of a batch sync, one entry per failed
// profile. An empty Failed slice means every profile synced.
type Report struct {
	Synced int
	Failed []Failure
}

// Failure pairs a profile id with the error that stopped its sync.
type Failure struct {
	ProfileID string
	Err       error
}

// OK reports whether the batch completed without failures.
func (r Report) OK() bool {
	return len(r.Failed) == 0
}

// Syncer pushes profiles to a document store.
type Syncer struct {
	store DocumentStore
	log   logging.Logger
}

// NewSyncer builds a syncer. A nil logger falls back to the no-op logger.
func NewSyncer(store DocumentStore, log logging.Logger) *Syncer {
	if log == nil {
		log = logging.Nop{}
	}
	return &Syncer{store: store, log: log}
}

// SyncOne validates and pushes a single profile.
func (s *Syncer) SyncOne(ctx context.Context, p *profile.Profile) error {
	if err := profile.Validate(p); err != nil {
		return err
	}
	return s.store.Upsert(ctx, p)
}

// SyncAll pushes every profile, continuing past individual failures.
// A cancelled context stops the batch; profiles not yet attempted are
// reported as failed with the context error.
func (s *Syncer) SyncAll(ctx context.Context, profiles []*profile.Profile) Report {
	var report Report
	for i, p := range profiles {
		if err := ctx.Err(); err != nil {
			for _, rest := range profiles[i:] {
				report.Failed = append(report.Failed, Failure{ProfileID: rest.ID, Err: err})
			}
			return report
		}
		if err := s.SyncOne(ctx, p); err != nil {
			s.log.Warn(ctx, "profile sync failed", "profileID", p.ID, "error", err)
			report.Failed = append(report.Failed, Failure{ProfileID: p.ID, Err: err})
			continue
		}
		report.Synced++
	}
	return report
}
