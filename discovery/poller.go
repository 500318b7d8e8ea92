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

// Package discovery runs the proximity poller: repeated short NFC discovery
// sessions whose only purpose is driving a nearby-device indicator. It is a
// two-state oscillator (detected / not detected) decoupled from the real
// write and read path.
package discovery

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/atlas-linq/tapcard/internal/logging"
	"github.com/atlas-linq/tapcard/internal/syncutil"
)

// Radio runs one short discovery session per call and reports whether a
// tag or peer device was sensed in range.
type Radio interface {
	Probe(ctx context.Context) (bool, error)
}

// Poller oscillates a detected flag from repeated discovery restarts.
// Pause and Resume coordinate with real NFC operations: pausing cancels
// timers and stops probing but keeps the registered callback, so Resume
// restarts cleanly without the caller re-registering.
type Poller struct {
	radio  Radio
	config *Config
	log    logging.Logger

	// onProximity receives rising and falling detection edges.
	cbMu        syncutil.RWMutex
	onProximity func(detected bool)

	stateMu   syncutil.Mutex
	holdTimer *time.Timer
	settledAt time.Time

	detected atomic.Bool
	isPaused atomic.Bool
	closed   atomic.Bool

	pauseChan  chan struct{}
	resumeChan chan struct{}
}

// New creates a poller over the given radio. A nil config uses defaults.
func New(radio Radio, config *Config, log logging.Logger) *Poller {
	if config == nil {
		config = DefaultConfig()
	}
	if log == nil {
		log = logging.Nop{}
	}
	return &Poller{
		radio:      radio,
		config:     config,
		log:        log,
		pauseChan:  make(chan struct{}, 1),
		resumeChan: make(chan struct{}, 1),
	}
}

// SetOnProximity registers the detection-edge callback. The callback is
// retained across Pause/Resume cycles.
func (p *Poller) SetOnProximity(cb func(detected bool)) {
	p.cbMu.Lock()
	p.onProximity = cb
	p.cbMu.Unlock()
}

// Detected reports the current oscillator state.
func (p *Poller) Detected() bool {
	return p.detected.Load()
}

// Run probes continuously until the context is cancelled. It returns the
// context error on cancellation.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.config.ProbeInterval)
	defer ticker.Stop()

	for {
		if err := p.handleContextAndPause(ctx); err != nil {
			return err
		}

		p.probeOnce(ctx)

		select {
		case <-ticker.C:
		case <-p.pauseChan:
			if err := p.waitForResume(ctx); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// probeOnce runs one discovery cycle, respecting the post-drop settle
// window.
func (p *Poller) probeOnce(ctx context.Context) {
	p.stateMu.Lock()
	settling := !p.detected.Load() && time.Since(p.settledAt) < p.config.RestartDelay
	p.stateMu.Unlock()
	if settling {
		return
	}

	found, err := p.radio.Probe(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.log.Warn(ctx, "proximity probe failed", "error", err)
			p.dropDetected()
		}
		return
	}
	if found {
		p.markDetected()
	}
}

// markDetected flips the oscillator on (invoking the callback on the rising
// edge) and refreshes the hold timer.
func (p *Poller) markDetected() {
	if p.detected.CompareAndSwap(false, true) {
		p.notify(true)
	}

	p.stateMu.Lock()
	safeTimerStop(p.holdTimer)
	p.holdTimer = time.AfterFunc(p.config.HoldWindow, p.holdExpired)
	p.stateMu.Unlock()
}

// holdExpired fires when no discovery refreshed the hold window.
func (p *Poller) holdExpired() {
	if p.closed.Load() || p.isPaused.Load() {
		return
	}
	p.dropDetected()
}

// dropDetected flips the oscillator off and starts the settle window.
func (p *Poller) dropDetected() {
	if !p.detected.CompareAndSwap(true, false) {
		return
	}
	p.stateMu.Lock()
	p.settledAt = time.Now()
	p.stateMu.Unlock()
	p.notify(false)
}

func (p *Poller) notify(detected bool) {
	p.cbMu.RLock()
	cb := p.onProximity
	p.cbMu.RUnlock()
	if cb != nil {
		cb(detected)
	}
}

// Pause stops probing and cancels the hold timer while a real NFC
// operation holds the radio. The registered callback is retained.
func (p *Poller) Pause() {
	if !p.isPaused.CompareAndSwap(false, true) {
		return
	}

	p.stateMu.Lock()
	safeTimerStop(p.holdTimer)
	p.holdTimer = nil
	p.stateMu.Unlock()

	p.dropDetected()

	select {
	case p.pauseChan <- struct{}{}:
	default:
		// No loop running; the paused flag alone is enough.
	}
}

// Resume restarts probing after a pause without requiring the caller to
// re-register the callback.
func (p *Poller) Resume() {
	if !p.isPaused.CompareAndSwap(true, false) {
		return
	}
	select {
	case p.resumeChan <- struct{}{}:
	default:
	}
}

// Close shuts the poller down; pending timers are cancelled and later
// timer callbacks become no-ops.
func (p *Poller) Close() error {
	p.closed.Store(true)

	p.stateMu.Lock()
	safeTimerStop(p.holdTimer)
	p.holdTimer = nil
	p.stateMu.Unlock()

	p.isPaused.Store(false)
	select {
	case <-p.pauseChan:
	default:
	}
	select {
	case <-p.resumeChan:
	default:
	}
	return nil
}

func (p *Poller) handleContextAndPause(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.pauseChan:
		return p.waitForResume(ctx)
	default:
		return nil
	}
}

func (p *Poller) waitForResume(ctx context.Context) error {
	select {
	case <-p.resumeChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
