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

package discovery

import "time"

// Config holds proximity polling options.
type Config struct {
	// ProbeInterval is the delay between discovery session restarts.
	ProbeInterval time.Duration
	// HoldWindow is how long the detected state persists without a
	// refreshing discovery before flipping back.
	HoldWindow time.Duration
	// RestartDelay is the settle period after the hold window expires
	// before discovery re-enters probing.
	RestartDelay time.Duration
}

// DefaultConfig returns the default proximity polling configuration.
func DefaultConfig() *Config {
	return &Config{
		ProbeInterval: 250 * time.Millisecond,
		HoldWindow:    1500 * time.Millisecond,
		RestartDelay:  300 * time.Millisecond,
	}
}

// safeTimerStop stops a timer and drains its channel so a fired timer can
// not leak a stale tick.
func safeTimerStop(timer *time.Timer) {
	if timer == nil {
		return
	}
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
}
