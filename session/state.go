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

package session

import "github.com/atlas-linq/tapcard/internal/syncutil"

// Phase is the finite state machine of one NFC operation.
type Phase int

const (
	// PhaseIdle means no operation is in flight.
	PhaseIdle Phase = iota
	// PhaseRequesting means the native enable call is underway.
	PhaseRequesting
	// PhaseWaitingForTag means dispatch is enabled and a tag is awaited.
	PhaseWaitingForTag
	// PhaseCompleted means the outcome was resolved but cleanup has not run.
	PhaseCompleted
)

// State is the session occupancy holder guarding the single NFC radio.
// It is an explicit, injected object rather than package-level flags so
// orchestrators can be tested without process-wide state. The invariant it
// maintains: at most one NFC session of any kind (write, read or emulation)
// is active at a time; a second start must fail fast rather than queue.
type State struct {
	mu        syncutil.Mutex
	phase     Phase
	emulating bool
}

// NewState returns an idle state holder.
func NewState() *State {
	return &State{}
}

// Phase returns the current operation phase.
func (s *State) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Busy reports whether any session (operation or emulation) is active.
func (s *State) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase != PhaseIdle || s.emulating
}

// TryBegin claims the radio for a write/read operation. It returns false
// when another operation or emulation is active.
func (s *State) TryBegin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseIdle || s.emulating {
		return false
	}
	s.phase = PhaseRequesting
	return true
}

// Advance moves the in-flight operation to the given phase.
func (s *State) Advance(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
}

// Finish resets the operation phase to idle. It is safe to call on any
// phase and must run on every exit path of an operation.
func (s *State) Finish() {
	s.mu.Lock()
	s.phase = PhaseIdle
	s.mu.Unlock()
}

// TryStartEmulation claims the radio for card emulation. It returns false
// when emulation is already active or an operation is in flight.
func (s *State) TryStartEmulation() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emulating || s.phase != PhaseIdle {
		return false
	}
	s.emulating = true
	return true
}

// EmulationActive reports whether emulation currently holds the radio.
func (s *State) EmulationActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emulating
}

// FinishEmulation forces the emulation flag off. Always succeeds, even when
// the native stop call failed.
func (s *State) FinishEmulation() {
	s.mu.Lock()
	s.emulating = false
	s.mu.Unlock()
}
