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

import "context"

// Bridge is the native NFC stack boundary. Each write/read/emulation call is
// an asynchronous request: the method returns once the request is accepted,
// and the outcome arrives later through the registered Handler. At most one
// operation is outstanding at a time, so events carry no correlation id.
//
// The capacity decision (dual vs url-only payload) belongs to the bridge
// implementation; the orchestrator only learns the choice through the
// payload-type field of the success callback.
type Bridge interface {
	// Available reports whether the NFC radio is present and enabled.
	Available(ctx context.Context) (bool, error)

	// EnableDispatch turns on foreground tag dispatch. Returning nil is the
	// acknowledgment that moves the session to the waiting-for-tag phase.
	EnableDispatch(ctx context.Context) error

	// WriteDualPayload requests writing the vCard and fallback URL to the
	// next discovered tag. The outcome arrives via the Handler.
	WriteDualPayload(ctx context.Context, vcard []byte, url string) error

	// ReadTag requests reading the next discovered tag. The payload arrives
	// via Handler.TagRead.
	ReadTag(ctx context.Context) error

	// CancelWrite stops dispatch and abandons the outstanding operation.
	CancelWrite(ctx context.Context) error

	// StartEmulation begins phone-as-tag emulation of the dual payload and
	// returns the emulated NDEF size in bytes.
	StartEmulation(ctx context.Context, vcard []byte, url string) (int, error)

	// StopEmulation ends emulation. Implementations should tolerate being
	// called when emulation is not active.
	StopEmulation(ctx context.Context) error

	// SupportsEmulation reports whether the platform can emulate a tag.
	SupportsEmulation() bool

	// SetHandler registers the sink for asynchronous bridge events.
	SetHandler(h Handler)
}

// Handler receives asynchronous bridge events for the single outstanding
// operation.
//
// WriteSuccess payloads are decoded defensively at this boundary: the native
// side historically delivered either a map of tag details or a bare byte
// count, and both shapes must be accepted.
type Handler interface {
	WriteSuccess(payload any)
	WriteError(message string)
	TagRead(data []byte)
}
