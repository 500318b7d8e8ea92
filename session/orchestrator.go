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

// Package session drives single NFC operations end to end: it guards the
// radio with an injected state holder, correlates the one outstanding bridge
// request with its asynchronous callback, and races that callback against a
// timeout. Every outcome is reported as a typed Result; nothing is thrown
// past this boundary.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/atlas-linq/tapcard/internal/logging"
	"github.com/atlas-linq/tapcard/internal/syncutil"
)

// DefaultTimeout is the write/read session timeout racing the native
// callback.
const DefaultTimeout = 10 * time.Second

// cancelGrace bounds the native cancel call issued after timeout or
// caller cancellation.
const cancelGrace = time.Second

// Pauser is the discovery poller surface the orchestrator pauses while a
// real operation holds the radio.
type Pauser interface {
	Pause()
	Resume()
}

// event is the resolution of the single outstanding bridge request.
type event struct {
	err     error
	data    []byte
	outcome writeOutcome
	kind    Kind
}

// Orchestrator runs NFC operations against a Bridge. It registers itself as
// the bridge's Handler; exactly one operation may be outstanding at a time
// and the pending channel is its completer.
type Orchestrator struct {
	bridge  Bridge
	state   *State
	poller  Pauser
	log     logging.Logger
	timeout time.Duration

	mu      syncutil.Mutex
	pending chan event
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTimeout overrides the session timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithPauser registers a discovery poller to pause around real operations.
func WithPauser(p Pauser) Option {
	return func(o *Orchestrator) { o.poller = p }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// New creates an orchestrator over the bridge and registers it as the
// bridge's event handler.
func New(bridge Bridge, state *State, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		bridge:  bridge,
		state:   state,
		log:     logging.Nop{},
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	bridge.SetHandler(o)
	return o
}

// State exposes the injected session state holder.
func (o *Orchestrator) State() *State {
	return o.state
}

// WriteSuccess implements Handler.
func (o *Orchestrator) WriteSuccess(payload any) {
	out, err := decodeWriteSuccess(payload)
	if err != nil {
		o.deliver(event{err: err, kind: KindMalformedData})
		return
	}
	o.deliver(event{outcome: out})
}

// WriteError implements Handler.
func (o *Orchestrator) WriteError(message string) {
	o.deliver(event{err: errors.New(message), kind: KindNativeFailure})
}

// TagRead implements Handler.
func (o *Orchestrator) TagRead(data []byte) {
	o.deliver(event{data: data})
}

// arm installs a fresh completer for the next operation.
func (o *Orchestrator) arm() chan event {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending = make(chan event, 1)
	return o.pending
}

// disarm drops the completer so stray late callbacks are ignored.
func (o *Orchestrator) disarm() {
	o.mu.Lock()
	o.pending = nil
	o.mu.Unlock()
}

// deliver resolves the outstanding completer, if any. Events arriving with
// no operation in flight are dropped.
func (o *Orchestrator) deliver(ev event) {
	o.mu.Lock()
	ch := o.pending
	o.pending = nil
	o.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- ev:
	default:
	}
}

// WriteTag writes the dual payload to the next discovered tag. The bridge
// decides whether both records fit; the choice comes back in the result's
// payload type.
func (o *Orchestrator) WriteTag(ctx context.Context, vcard []byte, url string) Result {
	start := time.Now()
	if !o.state.TryBegin() {
		return failure(KindBusy, "NFC session already in progress", time.Since(start))
	}
	return o.run(ctx, start, func(ctx context.Context) error {
		return o.bridge.WriteDualPayload(ctx, vcard, url)
	})
}

// ReadTag reads the next discovered tag; the payload lands in Result.Data.
func (o *Orchestrator) ReadTag(ctx context.Context) Result {
	start := time.Now()
	if !o.state.TryBegin() {
		return failure(KindBusy, "NFC session already in progress", time.Since(start))
	}
	return o.run(ctx, start, o.bridge.ReadTag)
}

// run drives one claimed operation to completion. The state reset and
// poller resume are deferred so they hold on every exit path, panics
// included.
func (o *Orchestrator) run(ctx context.Context, start time.Time, request func(context.Context) error) Result {
	defer o.state.Finish()
	if o.poller != nil {
		o.poller.Pause()
		defer o.poller.Resume()
	}

	if ok, err := o.bridge.Available(ctx); err != nil || !ok {
		msg := ErrUnavailable.Error()
		if err != nil {
			msg = err.Error()
		}
		return failure(KindUnavailable, msg, time.Since(start))
	}

	ch := o.arm()
	defer o.disarm()

	if err := o.bridge.EnableDispatch(ctx); err != nil {
		return failure(KindNativeFailure, err.Error(), time.Since(start))
	}
	o.state.Advance(PhaseWaitingForTag)

	if err := request(ctx); err != nil {
		return failure(KindNativeFailure, err.Error(), time.Since(start))
	}

	timer := time.NewTimer(o.timeout)
	defer timer.Stop()

	select {
	case ev := <-ch:
		o.state.Advance(PhaseCompleted)
		elapsed := time.Since(start)
		if ev.err != nil {
			o.log.Warn(ctx, "nfc operation failed", "kind", ev.kind.String(), "error", ev.err)
			return failure(ev.kind, ev.err.Error(), elapsed)
		}
		return Result{
			Success:      true,
			Kind:         KindOK,
			Duration:     elapsed,
			Data:         ev.data,
			BytesWritten: ev.outcome.BytesWritten,
			TagID:        ev.outcome.TagID,
			TagCapacity:  ev.outcome.TagCapacity,
			PayloadType:  ev.outcome.PayloadType,
		}
	case <-timer.C:
		o.cancelNative(ctx)
		return failure(KindTimeout, "timeout: no tag detected", time.Since(start))
	case <-ctx.Done():
		o.cancelNative(ctx)
		return failure(KindCancelled, "session cancelled", time.Since(start))
	}
}

// cancelNative tells the bridge to stop dispatch after a local timeout or
// cancellation. It runs on a detached context so it still executes when the
// caller's context is already done.
func (o *Orchestrator) cancelNative(ctx context.Context) {
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelGrace)
	defer cancel()
	if err := o.bridge.CancelWrite(stopCtx); err != nil {
		o.log.Warn(stopCtx, "native cancel failed", "error", err)
	}
}

// StartEmulation begins phone-as-tag emulation of the dual payload. It
// fails fast when emulation is unsupported or any session is active.
func (o *Orchestrator) StartEmulation(ctx context.Context, vcard []byte, url string) Result {
	start := time.Now()
	if !o.bridge.SupportsEmulation() {
		return failure(KindUnavailable, ErrEmulationUnsupported.Error(), time.Since(start))
	}
	if !o.state.TryStartEmulation() {
		return failure(KindBusy, "NFC session already in progress", time.Since(start))
	}
	size, err := o.bridge.StartEmulation(ctx, vcard, url)
	if err != nil {
		o.state.FinishEmulation()
		return failure(KindNativeFailure, err.Error(), time.Since(start))
	}
	return Result{Success: true, Kind: KindOK, BytesWritten: size, Duration: time.Since(start)}
}

// StopEmulation ends emulation. It is idempotent and forces the emulation
// flag off even when the native stop call fails; that failure is still
// returned for logging by the caller.
func (o *Orchestrator) StopEmulation(ctx context.Context) error {
	if !o.state.EmulationActive() {
		return nil
	}
	defer o.state.FinishEmulation()
	if err := o.bridge.StopEmulation(ctx); err != nil {
		o.log.Warn(ctx, "native emulation stop failed", "error", err)
		return err
	}
	return nil
}
