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

// Package ndef implements the NFC Data Exchange Format records used by the
// tag-writing path, and the dual-payload message (vCard plus fallback URL)
// written to tags when capacity allows.
package ndef

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// TNF (Type Name Format) values as defined by NFC Forum.
const (
	TNFEmpty       byte = 0x00
	TNFWellKnown   byte = 0x01
	TNFMedia       byte = 0x02
	TNFAbsoluteURI byte = 0x03
	TNFExternal    byte = 0x04
	TNFUnknown     byte = 0x05
	TNFUnchanged   byte = 0x06
	TNFReserved    byte = 0x07
)

const (
	tnfMask           byte = 0x07
	flagMB            byte = 0x80 // message begin
	flagME            byte = 0x40 // message end
	flagCF            byte = 0x20 // chunked
	flagSR            byte = 0x10 // short record
	flagIL            byte = 0x08 // ID length present
	shortRecordMaxLen      = 255
)

// Codec errors.
var (
	ErrEmptyMessage    = errors.New("ndef: empty message")
	ErrTruncatedRecord = errors.New("ndef: truncated record data")
	ErrInvalidTNF      = errors.New("ndef: invalid TNF value")
	ErrChunkedRecord   = errors.New("ndef: chunked records not supported")
)

// Record is a single NDEF record.
type Record struct {
	Type    string
	ID      string
	Payload []byte
	TNF     byte
	first   bool
	last    bool
}

// First reports whether this record carried the Message Begin flag.
func (r *Record) First() bool { return r.first }

// Last reports whether this record carried the Message End flag.
func (r *Record) Last() bool { return r.last }

// Message is an ordered set of records forming one NDEF message.
type Message struct {
	Records []*Record
}

// Marshal serializes the message, setting MB on the first record and ME on
// the last.
func (m *Message) Marshal() ([]byte, error) {
	if len(m.Records) == 0 {
		return nil, ErrEmptyMessage
	}
	var out []byte
	for i, rec := range m.Records {
		rec.first = i == 0
		rec.last = i == len(m.Records)-1
		var err error
		out, err = rec.appendTo(out)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return out, nil
}

// Size returns the marshaled byte length of the message, or 0 when the
// message cannot be marshaled.
func (m *Message) Size() int {
	data, err := m.Marshal()
	if err != nil {
		return 0
	}
	return len(data)
}

// Unmarshal parses message data and returns the number of bytes consumed.
// Parsing stops at the record carrying the ME flag.
func (m *Message) Unmarshal(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, ErrEmptyMessage
	}
	m.Records = nil
	offset := 0
	for offset < len(data) {
		rec := &Record{}
		n, err := rec.unmarshal(data[offset:])
		if err != nil {
			return offset, fmt.Errorf("record at offset %d: %w", offset, err)
		}
		if rec.first && len(m.Records) > 0 {
			// A fresh MB flag means a new message starts here.
			break
		}
		m.Records = append(m.Records, rec)
		offset += n
		if rec.last {
			break
		}
	}
	if len(m.Records) == 0 {
		return 0, ErrEmptyMessage
	}
	return offset, nil
}

// appendTo serializes the record onto buf and returns the extended slice.
func (r *Record) appendTo(buf []byte) ([]byte, error) {
	if r.TNF > TNFReserved {
		return nil, ErrInvalidTNF
	}

	flags := r.TNF & tnfMask
	if r.first {
		flags |= flagMB
	}
	if r.last {
		flags |= flagME
	}
	short := len(r.Payload) <= shortRecordMaxLen
	if short {
		flags |= flagSR
	}
	if r.ID != "" {
		flags |= flagIL
	}

	buf = append(buf, flags, byte(len(r.Type)))
	if short {
		buf = append(buf, byte(len(r.Payload)))
	} else {
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(r.Payload)))
	}
	if r.ID != "" {
		buf = append(buf, byte(len(r.ID)))
	}
	buf = append(buf, r.Type...)
	buf = append(buf, r.ID...)
	buf = append(buf, r.Payload...)
	return buf, nil
}

// unmarshal parses one record and returns the number of bytes consumed.
func (r *Record) unmarshal(data []byte) (int, error) {
	if len(data) < 3 {
		return 0, ErrTruncatedRecord
	}

	flags := data[0]
	r.TNF = flags & tnfMask
	r.first = flags&flagMB != 0
	r.last = flags&flagME != 0
	if flags&flagCF != 0 {
		return 0, ErrChunkedRecord
	}
	if r.TNF > TNFUnchanged {
		return 0, ErrInvalidTNF
	}

	typeLen := int(data[1])
	offset := 2

	var payloadLen int
	if flags&flagSR != 0 {
		if offset >= len(data) {
			return 0, ErrTruncatedRecord
		}
		payloadLen = int(data[offset])
		offset++
	} else {
		if offset+4 > len(data) {
			return 0, ErrTruncatedRecord
		}
		payloadLen = int(binary.BigEndian.Uint32(data[offset : offset+4]))
		offset += 4
	}

	var idLen int
	if flags&flagIL != 0 {
		if offset >= len(data) {
			return 0, ErrTruncatedRecord
		}
		idLen = int(data[offset])
		offset++
	}

	if offset+typeLen+idLen+payloadLen > len(data) {
		return 0, ErrTruncatedRecord
	}

	r.Type = string(data[offset : offset+typeLen])
	offset += typeLen
	r.ID = string(data[offset : offset+idLen])
	offset += idLen
	if payloadLen > 0 {
		r.Payload = append([]byte(nil), data[offset:offset+payloadLen]...)
		offset += payloadLen
	}
	return offset, nil
}
