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

package profile

import (
	"errors"
	"net/url"
	"strings"

	"github.com/atlas-linq/tapcard/pkg/vcard"
)

// DefaultHost is the web companion host used when the encoder is built with
// an empty host.
const DefaultHost = "atlaslinq.app"

const sharePathPrefix = "share/"

// Share URL errors.
var (
	ErrNotShareURL      = errors.New("profile: not a share URL")
	ErrEmptyProfileID   = errors.New("profile: share URL carries no profile id")
	ErrMalformedPayload = errors.New("profile: malformed share payload")
)

// Encoder renders the dual payload for a profile. Rendered payloads are
// cached on the profile and regenerated whenever the profile is edited.
type Encoder struct {
	// Host is the web companion host embedded in share URLs.
	Host string
}

// NewEncoder returns an encoder for the given share host.
func NewEncoder(host string) *Encoder {
	if host == "" {
		host = DefaultHost
	}
	return &Encoder{Host: host}
}

// ShareURL returns the canonical share URL for a profile id:
// https://<host>/share/<profileID>.
func (e *Encoder) ShareURL(profileID string) string {
	return "https://" + e.Host + "/" + sharePathPrefix + profileID
}

// Render produces the dual payload for the profile with the given share
// context embedded in the vCard, caches it on the profile and returns it.
func (e *Encoder) Render(p *Profile, sc vcard.ShareContext) DualPayload {
	if sc.ProfileType == "" {
		sc.ProfileType = string(p.Type)
	}
	card := p.Card()
	card.Context = sc

	payload := DualPayload{
		VCard: card.Encode(),
		URL:   e.ShareURL(p.ID),
	}
	p.cached = &payload
	return payload
}

// Payload returns the cached dual payload, rendering it with the given
// context when the cache is empty or stale after an edit.
func (e *Encoder) Payload(p *Profile, sc vcard.ShareContext) DualPayload {
	if cached, ok := p.CachedPayload(); ok {
		return cached
	}
	return e.Render(p, sc)
}

// ProfileIDFromURL recovers the profile id from a share URL. The id is the
// path suffix after "share/"; query strings and fragments are ignored.
func ProfileIDFromURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", ErrNotShareURL
	}
	path := u.Path
	idx := strings.LastIndex(path, sharePathPrefix)
	if idx < 0 {
		return "", ErrNotShareURL
	}
	id := strings.Trim(path[idx+len(sharePathPrefix):], "/")
	if id == "" {
		return "", ErrEmptyProfileID
	}
	return id, nil
}
