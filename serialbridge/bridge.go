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

package serialbridge

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/cenkalti/backoff/v4"
	"go.bug.st/serial"

	"github.com/atlas-linq/tapcard/internal/logging"
	"github.com/atlas-linq/tapcard/internal/syncutil"
	"github.com/atlas-linq/tapcard/pkg/ndef"
	"github.com/atlas-linq/tapcard/session"
)

// Errors surfaced by the bridge itself, before the accessory answers.
var (
	ErrClosed     = errors.New("serialbridge: bridge closed")
	ErrReplyInUse = errors.New("serialbridge: request already outstanding")
)

const (
	baudRate = 115200

	// maxLine bounds a single protocol line; NDEF payloads are base64 so
	// this comfortably covers the largest supported tag.
	maxLine = 64 * 1024
)

type pendingKind int

const (
	pendingNone pendingKind = iota
	pendingWrite
	pendingRead
)

// pendingOp is the single outstanding tag operation. For writes it holds
// the dual payload until tagDetected reports the capacity, and then the
// fit decision for injection into the success event.
type pendingOp struct {
	kind  pendingKind
	vcard []byte
	url   string

	chosen ndef.PayloadType
	tagID  string
	tagCap int
}

// Bridge speaks the accessory protocol over any stream, usually a serial
// port. It implements session.Bridge, and its Probe method satisfies the
// discovery radio contract.
type Bridge struct {
	rw  io.ReadWriteCloser
	log logging.Logger

	writeMu syncutil.Mutex

	handlerMu syncutil.RWMutex
	handler   session.Handler

	replyMu syncutil.Mutex
	replies map[string]chan event

	pendingMu syncutil.Mutex
	pending   pendingOp

	canEmulate atomic.Bool
	closed     atomic.Bool
	done       chan struct{}
}

// New wraps an already-open stream. The reader loop starts immediately.
func New(rw io.ReadWriteCloser, log logging.Logger) *Bridge {
	if log == nil {
		log = logging.Nop{}
	}
	b := &Bridge{
		rw:      rw,
		log:     log,
		replies: make(map[string]chan event),
		done:    make(chan struct{}),
	}
	go b.readLoop()
	return b
}

// Open connects to the accessory on portName, retrying with exponential
// backoff until ctx expires, then performs the status handshake.
func Open(ctx context.Context, portName string, log logging.Logger) (*Bridge, error) {
	if log == nil {
		log = logging.Nop{}
	}
	var port serial.Port
	operation := func() error {
		p, err := serial.Open(portName, &serial.Mode{
			BaudRate: baudRate,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		})
		if err != nil {
			log.Warn(ctx, "serial open failed, retrying", "port", portName, "error", err)
			return err
		}
		port = p
		return nil
	}
	if err := backoff.Retry(operation, backoff.WithContext(backoff.NewExponentialBackOff(), ctx)); err != nil {
		return nil, fmt.Errorf("serialbridge: open %s: %w", portName, err)
	}

	b := New(port, log)
	if _, err := b.Available(ctx); err != nil {
		b.Close()
		return nil, fmt.Errorf("serialbridge: handshake with %s: %w", portName, err)
	}
	return b, nil
}

// Close shuts the stream down and unblocks outstanding requests.
func (b *Bridge) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(b.done)
	return b.rw.Close()
}

// SetHandler registers the event sink for asynchronous outcomes.
func (b *Bridge) SetHandler(h session.Handler) {
	b.handlerMu.Lock()
	defer b.handlerMu.Unlock()
	b.handler = h
}

func (b *Bridge) currentHandler() session.Handler {
	b.handlerMu.RLock()
	defer b.handlerMu.RUnlock()
	return b.handler
}

// Available asks the accessory for its radio status. The emulation
// capability reported alongside is cached for SupportsEmulation.
func (b *Bridge) Available(ctx context.Context) (bool, error) {
	ev, err := b.request(ctx, evStatus, command{Cmd: cmdStatus})
	if err != nil {
		return false, err
	}
	b.canEmulate.Store(ev.Emulation)
	return ev.Available, nil
}

// SupportsEmulation reports the capability from the last status exchange.
func (b *Bridge) SupportsEmulation() bool {
	return b.canEmulate.Load()
}

// EnableDispatch asks the accessory to start looking for tags.
func (b *Bridge) EnableDispatch(ctx context.Context) error {
	return b.requestAck(ctx, command{Cmd: cmdDispatch})
}

// WriteDualPayload stages the payload pair for the next detected tag. The
// fit decision happens when the accessory reports the tag capacity.
func (b *Bridge) WriteDualPayload(_ context.Context, vcard []byte, url string) error {
	if b.closed.Load() {
		return ErrClosed
	}
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	b.pending = pendingOp{kind: pendingWrite, vcard: vcard, url: url}
	return nil
}

// ReadTag stages a read of the next detected tag.
func (b *Bridge) ReadTag(_ context.Context) error {
	if b.closed.Load() {
		return ErrClosed
	}
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	b.pending = pendingOp{kind: pendingRead}
	return nil
}

// CancelWrite abandons the staged operation and tells the accessory to
// stop dispatch.
func (b *Bridge) CancelWrite(ctx context.Context) error {
	b.pendingMu.Lock()
	b.pending = pendingOp{}
	b.pendingMu.Unlock()
	return b.requestAck(ctx, command{Cmd: cmdCancel})
}

// StartEmulation uploads the dual message to the accessory for tag
// emulation and returns its NDEF size.
func (b *Bridge) StartEmulation(ctx context.Context, vcard []byte, url string) (int, error) {
	msg := ndef.BuildDual(vcard, url)
	raw, err := msg.Marshal()
	if err != nil {
		return 0, fmt.Errorf("serialbridge: build emulation payload: %w", err)
	}
	if err := b.requestAck(ctx, command{Cmd: cmdEmulate, NDEF: raw}); err != nil {
		return 0, err
	}
	return msg.Size(), nil
}

// StopEmulation ends emulation on the accessory.
func (b *Bridge) StopEmulation(ctx context.Context) error {
	return b.requestAck(ctx, command{Cmd: cmdEmulateStop})
}

// Probe asks the accessory for a single field-presence check.
func (b *Bridge) Probe(ctx context.Context) (bool, error) {
	ev, err := b.request(ctx, evProbe, command{Cmd: cmdProbe})
	if err != nil {
		return false, err
	}
	return ev.Present, nil
}

// request sends cmd and waits for the reply event named key.
func (b *Bridge) request(ctx context.Context, key string, cmd command) (event, error) {
	if b.closed.Load() {
		return event{}, ErrClosed
	}
	ch, err := b.claimReply(key)
	if err != nil {
		return event{}, err
	}
	defer b.releaseReply(key)

	if err := b.send(cmd); err != nil {
		return event{}, err
	}
	select {
	case ev := <-ch:
		return ev, nil
	case <-ctx.Done():
		return event{}, ctx.Err()
	case <-b.done:
		return event{}, ErrClosed
	}
}

// requestAck sends cmd and waits for its ack, surfacing the accessory's
// error string when present.
func (b *Bridge) requestAck(ctx context.Context, cmd command) error {
	ev, err := b.request(ctx, evAck, cmd)
	if err != nil {
		return err
	}
	if ev.Err != "" {
		return fmt.Errorf("serialbridge: %s rejected: %s", cmd.Cmd, ev.Err)
	}
	return nil
}

func (b *Bridge) claimReply(key string) (chan event, error) {
	b.replyMu.Lock()
	defer b.replyMu.Unlock()
	if _, busy := b.replies[key]; busy {
		return nil, ErrReplyInUse
	}
	ch := make(chan event, 1)
	b.replies[key] = ch
	return ch, nil
}

func (b *Bridge) releaseReply(key string) {
	b.replyMu.Lock()
	defer b.replyMu.Unlock()
	delete(b.replies, key)
}

func (b *Bridge) deliverReply(ev event) {
	b.replyMu.Lock()
	ch := b.replies[ev.Event]
	b.replyMu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- ev:
	default:
	}
}

func (b *Bridge) send(cmd command) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return writeLine(b.rw, cmd)
}

// readLoop decodes accessory lines until the stream fails or the bridge
// is closed. Malformed lines are logged and skipped.
func (b *Bridge) readLoop() {
	ctx := context.Background()
	scanner := bufio.NewScanner(b.rw)
	scanner.Buffer(make([]byte, 4096), maxLine)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev event
		if err := json.Unmarshal(line, &ev); err != nil {
			b.log.Warn(ctx, "malformed accessory line", "error", err)
			continue
		}
		b.dispatch(ctx, ev)
	}
	if err := scanner.Err(); err != nil && !b.closed.Load() {
		b.log.Error(ctx, "accessory stream failed", "error", err)
	}
}

func (b *Bridge) dispatch(ctx context.Context, ev event) {
	switch ev.Event {
	case evStatus, evAck, evProbe:
		b.deliverReply(ev)
	case evTagDetected:
		b.onTagDetected(ctx, ev)
	case evWriteSuccess:
		b.onWriteSuccess(ev)
	case evWriteError:
		b.clearPending()
		if h := b.currentHandler(); h != nil {
			h.WriteError(ev.Message)
		}
	case evTagData:
		b.clearPending()
		if h := b.currentHandler(); h != nil {
			h.TagRead(ev.Data)
		}
	default:
		b.log.Debug(ctx, "ignoring unknown accessory event", "event", ev.Event)
	}
}

// onTagDetected resolves the staged operation against the reported tag.
// For writes it picks the largest payload that fits the capacity and
// sends it; for reads it asks the accessory to dump the tag.
func (b *Bridge) onTagDetected(ctx context.Context, ev event) {
	b.pendingMu.Lock()
	op := b.pending
	b.pendingMu.Unlock()

	switch op.kind {
	case pendingWrite:
		msg, chosen, err := ndef.Fit(op.vcard, op.url, ev.TagCapacity)
		if err != nil {
			b.clearPending()
			if h := b.currentHandler(); h != nil {
				h.WriteError(err.Error())
			}
			return
		}
		raw, err := msg.Marshal()
		if err != nil {
			b.clearPending()
			if h := b.currentHandler(); h != nil {
				h.WriteError(err.Error())
			}
			return
		}
		b.pendingMu.Lock()
		b.pending.chosen = chosen
		b.pending.tagID = ev.TagID
		b.pending.tagCap = ev.TagCapacity
		b.pendingMu.Unlock()
		if err := b.send(command{Cmd: cmdWrite, NDEF: raw}); err != nil {
			b.clearPending()
			if h := b.currentHandler(); h != nil {
				h.WriteError(err.Error())
			}
		}
	case pendingRead:
		if err := b.send(command{Cmd: cmdRead}); err != nil {
			b.clearPending()
			if h := b.currentHandler(); h != nil {
				h.WriteError(err.Error())
			}
		}
	default:
		b.log.Debug(ctx, "tag detected with no staged operation", "tagId", ev.TagID)
	}
}

// onWriteSuccess merges the accessory's event with the staged fit
// decision and hands the detail map to the session handler.
func (b *Bridge) onWriteSuccess(ev event) {
	b.pendingMu.Lock()
	op := b.pending
	b.pending = pendingOp{}
	b.pendingMu.Unlock()

	h := b.currentHandler()
	if h == nil {
		return
	}
	tagID := ev.TagID
	if tagID == "" {
		tagID = op.tagID
	}
	capacity := ev.TagCapacity
	if capacity == 0 {
		capacity = op.tagCap
	}
	h.WriteSuccess(map[string]any{
		"bytesWritten": ev.BytesWritten,
		"tagId":        tagID,
		"tagCapacity":  capacity,
		"payloadType":  string(op.chosen),
	})
}

func (b *Bridge) clearPending() {
	b.pendingMu.Lock()
	b.pending = pendingOp{}
	b.pendingMu.Unlock()
}
