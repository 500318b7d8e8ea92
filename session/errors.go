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

import "errors"

// Kind classifies the outcome of an NFC operation. Callers branch on the
// result's success flag and kind; errors never escape the service boundary.
type Kind int

const (
	// KindOK is a successful operation.
	KindOK Kind = iota
	// KindUnavailable means NFC is disabled, missing, or not permitted.
	KindUnavailable
	// KindBusy means another NFC session was already in progress.
	KindBusy
	// KindTimeout means no tag was presented within the session timeout.
	KindTimeout
	// KindCancelled means the caller cancelled the session explicitly.
	KindCancelled
	// KindNativeFailure means the bridge call failed or reported an error.
	KindNativeFailure
	// KindMalformedData means a bridge callback or received payload could
	// not be decoded.
	KindMalformedData
)

// String returns the taxonomy name of the kind.
func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindUnavailable:
		return "unavailable"
	case KindBusy:
		return "session-busy"
	case KindTimeout:
		return "timeout"
	case KindCancelled:
		return "cancelled"
	case KindNativeFailure:
		return "native-failure"
	case KindMalformedData:
		return "malformed-data"
	default:
		return "unknown"
	}
}

// Sentinel errors used inside the package and surfaced as result messages.
var (
	ErrUnavailable          = errors.New("session: NFC unavailable")
	ErrBusy                 = errors.New("session: NFC session already in progress")
	ErrMalformedCallback    = errors.New("session: malformed write callback payload")
	ErrEmulationUnsupported = errors.New("session: card emulation not supported on this platform")
)
