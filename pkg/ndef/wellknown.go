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
	"errors"
	"strings"
)

// Well-known record types and MIME types used by the sharing path.
const (
	URIRecordType  = "U"
	TextRecordType = "T"
	MIMETypeVCard  = "text/vcard"
)

// Well-known record errors.
var (
	ErrURIPayloadTooShort   = errors.New("ndef: URI payload too short")
	ErrURIInvalidPrefixCode = errors.New("ndef: invalid URI prefix code")
	ErrTextPayloadTooShort  = errors.New("ndef: text payload too short")
	ErrNotVCardRecord       = errors.New("ndef: record is not a vCard media record")
)

// uriPrefixes is the NFC Forum URI RTD abbreviation table. Index 0 means no
// prefix (raw URI).
var uriPrefixes = []string{
	"",                           // 0x00
	"http://www.",                // 0x01
	"https://www.",               // 0x02
	"http://",                    // 0x03
	"https://",                   // 0x04
	"tel:",                       // 0x05
	"mailto:",                    // 0x06
	"ftp://anonymous:anonymous@", // 0x07
	"ftp://ftp.",                 // 0x08
	"ftps://",                    // 0x09
	"sftp://",                    // 0x0A
	"smb://",                     // 0x0B
	"nfs://",                     // 0x0C
	"ftp://",                     // 0x0D
	"dav://",                     // 0x0E
	"news:",                      // 0x0F
	"telnet://",                  // 0x10
	"imap:",                      // 0x11
	"rtsp://",                    // 0x12
	"urn:",                       // 0x13
	"pop:",                       // 0x14
	"sip:",                       // 0x15
	"sips:",                      // 0x16
	"tftp:",                      // 0x17
	"btspp://",                   // 0x18
	"btl2cap://",                 // 0x19
	"btgoep://",                  // 0x1A
	"tcpobex://",                 // 0x1B
	"irdaobex://",                // 0x1C
	"file://",                    // 0x1D
	"urn:epc:id:",                // 0x1E
	"urn:epc:tag:",               // 0x1F
	"urn:epc:pat:",               // 0x20
	"urn:epc:raw:",               // 0x21
	"urn:epc:",                   // 0x22
	"urn:nfc:",                   // 0x23
}

// NewURIRecord creates a URI record, compressing the URI with the longest
// matching NFC Forum prefix.
func NewURIRecord(uri string) *Record {
	code, matched := 0, 0
	for i := 1; i < len(uriPrefixes); i++ {
		if p := uriPrefixes[i]; len(p) > matched && strings.HasPrefix(uri, p) {
			code, matched = i, len(p)
		}
	}
	payload := make([]byte, 1+len(uri)-matched)
	payload[0] = byte(code)
	copy(payload[1:], uri[matched:])
	return &Record{TNF: TNFWellKnown, Type: URIRecordType, Payload: payload}
}

// ParseURIRecord expands a URI record payload back into the full URI.
func ParseURIRecord(payload []byte) (string, error) {
	if len(payload) < 1 {
		return "", ErrURIPayloadTooShort
	}
	code := int(payload[0])
	if code >= len(uriPrefixes) {
		return "", ErrURIInvalidPrefixCode
	}
	return uriPrefixes[code] + string(payload[1:]), nil
}

// NewTextRecord creates an RTD Text record with a UTF-8 payload. The
// language should be an IANA language code; it defaults to "en".
func NewTextRecord(text, language string) *Record {
	if language == "" {
		language = "en"
	}
	if len(language) > 0x3F {
		language = language[:0x3F]
	}
	payload := make([]byte, 1+len(language)+len(text))
	payload[0] = byte(len(language))
	copy(payload[1:], language)
	copy(payload[1+len(language):], text)
	return &Record{TNF: TNFWellKnown, Type: TextRecordType, Payload: payload}
}

// ParseTextRecord extracts the text content from an RTD Text payload.
func ParseTextRecord(payload []byte) (string, error) {
	if len(payload) < 1 {
		return "", ErrTextPayloadTooShort
	}
	langLen := int(payload[0] & 0x3F)
	if len(payload) < 1+langLen {
		return "", ErrTextPayloadTooShort
	}
	return string(payload[1+langLen:]), nil
}

// NewVCardRecord wraps an encoded vCard in a text/vcard media record.
func NewVCardRecord(vcard []byte) *Record {
	return &Record{TNF: TNFMedia, Type: MIMETypeVCard, Payload: vcard}
}

// VCardPayload extracts the vCard bytes from a text/vcard media record.
func VCardPayload(rec *Record) ([]byte, error) {
	if rec.TNF != TNFMedia || !strings.EqualFold(rec.Type, MIMETypeVCard) {
		return nil, ErrNotVCardRecord
	}
	return rec.Payload, nil
}
