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

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRadio reports presence from an atomic flag and counts probes.
type fakeRadio struct {
	present atomic.Bool
	probes  atomic.Int32
	err     error
}

func (r *fakeRadio) Probe(context.Context) (bool, error) {
	r.probes.Add(1)
	if r.err != nil {
		return false, r.err
	}
	return r.present.Load(), nil
}

// edgeRecorder collects proximity edges.
type edgeRecorder struct {
	mu    sync.Mutex
	edges []bool
}

func (e *edgeRecorder) record(detected bool) {
	e.mu.Lock()
	e.edges = append(e.edges, detected)
	e.mu.Unlock()
}

func (e *edgeRecorder) snapshot() []bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]bool(nil), e.edges...)
}

func fastConfig() *Config {
	return &Config{
		ProbeInterval: 5 * time.Millisecond,
		HoldWindow:    30 * time.Millisecond,
		RestartDelay:  10 * time.Millisecond,
	}
}

func startPoller(t *testing.T, p *Poller) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = p.Close()
	})
	return cancel
}

func TestRisingEdgeFiresOnce(t *testing.T) {
	t.Parallel()

	radio := &fakeRadio{}
	radio.present.Store(true)
	rec := &edgeRecorder{}

	p := New(radio, fastConfig(), nil)
	p.SetOnProximity(rec.record)
	startPoller(t, p)

	require.Eventually(t, p.Detected, time.Second, time.Millisecond)

	// Let several refreshing probes run; the callback must not repeat.
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, []bool{true}, rec.snapshot())
	assert.Greater(t, radio.probes.Load(), int32(1), "discovery keeps restarting")
}

func TestHoldExpiryFlipsBackAndReenters(t *testing.T) {
	t.Parallel()

	radio := &fakeRadio{}
	radio.present.Store(true)
	rec := &edgeRecorder{}

	p := New(radio, fastConfig(), nil)
	p.SetOnProximity(rec.record)
	startPoller(t, p)

	require.Eventually(t, p.Detected, time.Second, time.Millisecond)

	// Device goes away; the hold window must lapse and flip the state.
	radio.present.Store(false)
	require.Eventually(t, func() bool { return !p.Detected() }, time.Second, time.Millisecond)
	assert.Equal(t, []bool{true, false}, rec.snapshot())

	// Device returns after the settle window; discovery re-enters.
	radio.present.Store(true)
	require.Eventually(t, p.Detected, time.Second, time.Millisecond)
	assert.Equal(t, []bool{true, false, true}, rec.snapshot())
}

func TestPauseResumeRetainsCallback(t *testing.T) {
	t.Parallel()

	radio := &fakeRadio{}
	rec := &edgeRecorder{}

	p := New(radio, fastConfig(), nil)
	p.SetOnProximity(rec.record)
	startPoller(t, p)

	// Wait for probing to start, then pause.
	require.Eventually(t, func() bool { return radio.probes.Load() > 0 }, time.Second, time.Millisecond)
	p.Pause()

	probesAtPause := radio.probes.Load()
	time.Sleep(30 * time.Millisecond)
	assert.LessOrEqual(t, radio.probes.Load(), probesAtPause+1, "no probing while paused")

	// Resume without re-registering; detection must still reach the callback.
	radio.present.Store(true)
	p.Resume()
	require.Eventually(t, p.Detected, time.Second, time.Millisecond)
	snap := rec.snapshot()
	require.NotEmpty(t, snap)
	assert.True(t, snap[len(snap)-1])
}

func TestPauseWhileDetectedDropsState(t *testing.T) {
	t.Parallel()

	radio := &fakeRadio{}
	radio.present.Store(true)
	rec := &edgeRecorder{}

	p := New(radio, fastConfig(), nil)
	p.SetOnProximity(rec.record)
	startPoller(t, p)

	require.Eventually(t, p.Detected, time.Second, time.Millisecond)
	p.Pause()
	assert.False(t, p.Detected(), "pause cancels the detected state")
}

func TestPauseResumeIdempotent(t *testing.T) {
	t.Parallel()

	p := New(&fakeRadio{}, fastConfig(), nil)
	p.Pause()
	p.Pause()
	p.Resume()
	p.Resume()
	assert.False(t, p.isPaused.Load())
}

func TestRunReturnsOnCancel(t *testing.T) {
	t.Parallel()

	p := New(&fakeRadio{}, fastConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
