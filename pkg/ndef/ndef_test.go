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

package ndef

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestMessageMarshalRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		records []*Record
	}{
		{
			name:    "single URI record",
			records: []*Record{NewURIRecord("https://tapcard.example/share/abc")},
		},
		{
			name: "vcard plus uri",
			records: []*Record{
				NewVCardRecord([]byte("BEGIN:VCARD\r\nEND:VCARD\r\n")),
				NewURIRecord("https://tapcard.example/share/abc"),
			},
		},
		{
			name: "record with id",
			records: []*Record{
				{TNF: TNFExternal, Type: "tapcard.example:profile", ID: "p1", Payload: []byte{1, 2, 3}},
			},
		},
		{
			name: "long payload forces 4-byte length",
			records: []*Record{
				NewVCardRecord(bytes.Repeat([]byte("x"), 600)),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			msg := &Message{Records: tt.records}
			data, err := msg.Marshal()
			if err != nil {
				t.Fatalf("Marshal error: %v", err)
			}

			var decoded Message
			n, err := decoded.Unmarshal(data)
			if err != nil {
				t.Fatalf("Unmarshal error: %v", err)
			}
			if n != len(data) {
				t.Errorf("consumed %d bytes, want %d", n, len(data))
			}
			if len(decoded.Records) != len(tt.records) {
				t.Fatalf("got %d records, want %d", len(decoded.Records), len(tt.records))
			}
			for i, rec := range decoded.Records {
				want := tt.records[i]
				if rec.TNF != want.TNF || rec.Type != want.Type || rec.ID != want.ID {
					t.Errorf("record %d header mismatch: %+v", i, rec)
				}
				if !bytes.Equal(rec.Payload, want.Payload) {
					t.Errorf("record %d payload mismatch", i)
				}
			}
			if !decoded.Records[0].First() {
				t.Error("first record missing MB flag")
			}
			if !decoded.Records[len(decoded.Records)-1].Last() {
				t.Error("last record missing ME flag")
			}
		})
	}
}

func TestMessageUnmarshalErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		wantErr error
		data    []byte
	}{
		{"empty", ErrEmptyMessage, nil},
		{"truncated header", ErrTruncatedRecord, []byte{0xD1, 0x01}},
		{"chunked", ErrChunkedRecord, []byte{0xB1 | flagCF, 0x01, 0x00, 'U'}},
		{"truncated payload", ErrTruncatedRecord, []byte{0xD1, 0x01, 0x10, 'U', 0x04}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var msg Message
			if _, err := msg.Unmarshal(tt.data); !errors.Is(err, tt.wantErr) {
				t.Errorf("Unmarshal error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestURIRecordPrefixCompression(t *testing.T) {
	t.Parallel()

	tests := []struct {
		uri      string
		wantCode byte
	}{
		{"https://www.example.com", 0x02},
		{"https://example.com", 0x04},
		{"http://example.com", 0x03},
		{"tel:+12025550143", 0x05},
		{"mailto:hi@example.com", 0x06},
		{"example.com", 0x00},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			t.Parallel()

			rec := NewURIRecord(tt.uri)
			if rec.Payload[0] != tt.wantCode {
				t.Errorf("prefix code = 0x%02X, want 0x%02X", rec.Payload[0], tt.wantCode)
			}
			got, err := ParseURIRecord(rec.Payload)
			if err != nil {
				t.Fatalf("ParseURIRecord error: %v", err)
			}
			if got != tt.uri {
				t.Errorf("URI = %q, want %q", got, tt.uri)
			}
		})
	}
}

func TestTextRecord(t *testing.T) {
	t.Parallel()

	rec := NewTextRecord("hello", "")
	if rec.Payload[0] != 2 {
		t.Errorf("language length = %d, want 2 (default en)", rec.Payload[0])
	}
	text, err := ParseTextRecord(rec.Payload)
	if err != nil {
		t.Fatalf("ParseTextRecord error: %v", err)
	}
	if text != "hello" {
		t.Errorf("text = %q", text)
	}
}

func TestVCardRecord(t *testing.T) {
	t.Parallel()

	body := []byte("BEGIN:VCARD\r\nVERSION:3.0\r\nEND:VCARD\r\n")
	rec := NewVCardRecord(body)

	got, err := VCardPayload(rec)
	if err != nil {
		t.Fatalf("VCardPayload error: %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Error("payload mismatch")
	}

	if _, err := VCardPayload(NewURIRecord("https://x.example")); !errors.Is(err, ErrNotVCardRecord) {
		t.Errorf("error = %v, want ErrNotVCardRecord", err)
	}
}

func TestFit(t *testing.T) {
	t.Parallel()

	vcard := []byte(strings.Repeat("X", 120))
	url := "https://tapcard.example/share/9f6b"

	dualSize := BuildDual(vcard, url).Size()
	urlSize := BuildURLOnly(url).Size()
	if dualSize <= urlSize {
		t.Fatalf("sanity: dual %d should exceed url-only %d", dualSize, urlSize)
	}

	tests := []struct {
		name     string
		capacity int
		wantType PayloadType
		wantErr  error
	}{
		{"unconstrained", 0, PayloadDual, nil},
		{"fits dual exactly", dualSize, PayloadDual, nil},
		{"fits url only", dualSize - 1, PayloadURLOnly, nil},
		{"fits nothing", urlSize - 1, "", ErrCapacityExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			msg, ptype, err := Fit(vcard, url, tt.capacity)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Fit error = %v, want %v", err, tt.wantErr)
			}
			if ptype != tt.wantType {
				t.Errorf("payload type = %q, want %q", ptype, tt.wantType)
			}
			if err == nil && tt.capacity > 0 && msg.Size() > tt.capacity {
				t.Errorf("message size %d exceeds capacity %d", msg.Size(), tt.capacity)
			}
		})
	}
}
