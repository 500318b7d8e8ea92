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

// Package serialbridge drives an external NFC accessory over a serial
// line and exposes it as a session bridge. The wire protocol is
// line-delimited JSON in both directions: the host sends command objects,
// the accessory replies with event objects. Binary payloads travel as
// base64 inside JSON strings.
package serialbridge

import (
	"encoding/json"
	"fmt"
	"io"
)

// Host-to-accessory command names.
const (
	cmdStatus      = "status"
	cmdDispatch    = "dispatch"
	cmdWrite       = "write"
	cmdRead        = "read"
	cmdCancel      = "cancel"
	cmdEmulate     = "emulate"
	cmdEmulateStop = "emulateStop"
	cmdProbe       = "probe"
)

// Accessory-to-host event names.
const (
	evStatus       = "status"
	evAck          = "ack"
	evProbe        = "probe"
	evTagDetected  = "tagDetected"
	evWriteSuccess = "writeSuccess"
	evWriteError   = "writeError"
	evTagData      = "tagData"
)

// command is a host-to-accessory request line.
type command struct {
	Cmd  string `json:"cmd"`
	NDEF []byte `json:"ndef,omitempty"`
}

// event is an accessory-to-host line. Fields are populated per event
// type; unknown events are ignored by the reader.
type event struct {
	Event string `json:"event"`

	// status
	Available bool `json:"available,omitempty"`
	Emulation bool `json:"emulation,omitempty"`

	// ack
	Op  string `json:"op,omitempty"`
	Err string `json:"err,omitempty"`

	// probe
	Present bool `json:"present,omitempty"`

	// tagDetected / writeSuccess
	TagID        string `json:"tagId,omitempty"`
	TagCapacity  int    `json:"tagCapacity,omitempty"`
	BytesWritten int    `json:"bytesWritten,omitempty"`

	// writeError
	Message string `json:"message,omitempty"`

	// tagData
	Data []byte `json:"data,omitempty"`
}

// writeLine marshals v and appends the newline delimiter in one write, so
// concurrent senders never interleave partial lines.
func writeLine(w io.Writer, v any) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("serialbridge: marshal line: %w", err)
	}
	buf = append(buf, '\n')
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("serialbridge: write line: %w", err)
	}
	return nil
}
