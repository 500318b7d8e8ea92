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

import "errors"

// PayloadType names which payload variant was written to a tag.
type PayloadType string

const (
	// PayloadDual means both the vCard and the fallback URL record fit.
	PayloadDual PayloadType = "dual"
	// PayloadURLOnly means only the URL record fit on the tag.
	PayloadURLOnly PayloadType = "url-only"
)

// ErrCapacityExceeded indicates not even the URL record fits on the tag.
var ErrCapacityExceeded = errors.New("ndef: tag capacity too small for URL record")

// BuildDual composes the full two-record share message: the vCard media
// record first, then the fallback share-URL record.
func BuildDual(vcard []byte, url string) *Message {
	return &Message{Records: []*Record{
		NewVCardRecord(vcard),
		NewURIRecord(url),
	}}
}

// BuildURLOnly composes the degraded single-record message.
func BuildURLOnly(url string) *Message {
	return &Message{Records: []*Record{NewURIRecord(url)}}
}

// Fit picks the largest share message that fits within capacity bytes:
// the dual message when possible, otherwise the URL-only message, otherwise
// ErrCapacityExceeded. capacity <= 0 means unconstrained and yields dual.
func Fit(vcard []byte, url string, capacity int) (*Message, PayloadType, error) {
	dual := BuildDual(vcard, url)
	if capacity <= 0 || dual.Size() <= capacity {
		return dual, PayloadDual, nil
	}
	urlOnly := BuildURLOnly(url)
	if urlOnly.Size() <= capacity {
		return urlOnly, PayloadURLOnly, nil
	}
	return nil, "", ErrCapacityExceeded
}
