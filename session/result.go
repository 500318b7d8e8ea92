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

import (
	"time"

	"github.com/atlas-linq/tapcard/pkg/ndef"
)

// Result is the immutable value produced once per NFC operation attempt.
// Optional tag fields are zero when the native side did not report them.
type Result struct {
	// Message is a short human-readable description on failure.
	Message string
	// TagID is the tag UID in hex, when reported.
	TagID string
	// PayloadType reports whether the dual or url-only payload was written.
	PayloadType ndef.PayloadType
	// Data carries the raw payload of a read operation.
	Data []byte
	// Duration is the wall time the operation took, including waiting.
	Duration time.Duration
	// BytesWritten is the payload size written to (or emulated for) the tag.
	BytesWritten int
	// TagCapacity is the tag's NDEF capacity in bytes, when reported.
	TagCapacity int
	// Kind classifies the outcome.
	Kind Kind
	// Success is true only for KindOK results.
	Success bool
}

func failure(kind Kind, message string, elapsed time.Duration) Result {
	return Result{Kind: kind, Message: message, Duration: elapsed}
}
