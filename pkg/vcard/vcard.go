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

// Package vcard encodes and parses vCard 3.0 contact cards, including the
// X-TAPCARD-* extension lines that carry the share context (how and when a
// card was shared) between devices.
package vcard

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Extension line names carrying the share context inside an outgoing card.
const (
	xMethodLine      = "X-TAPCARD-METHOD"
	xSharedAtLine    = "X-TAPCARD-SHARED-AT"
	xProfileTypeLine = "X-TAPCARD-PROFILE-TYPE"
	xSocialLine      = "X-SOCIALPROFILE"
	xLinkLine        = "X-TAPCARD-LINK"
)

// Method identifies how a card was shared.
type Method string

// Share method codes embedded in the X-TAPCARD-METHOD line.
const (
	MethodNFC  Method = "nfc"
	MethodQR   Method = "qr"
	MethodLink Method = "link"
	MethodTag  Method = "tag"
)

// ShareContext is the ephemeral context embedded in an outgoing card so a
// receiving device can later recover how and when a contact was obtained.
type ShareContext struct {
	SharedAt    time.Time
	Method      Method
	ProfileType string
}

// Social is a social network handle rendered as an X-SOCIALPROFILE line.
type Social struct {
	Network string
	URL     string
}

// Link is a custom labeled URL rendered as an X-TAPCARD-LINK line.
type Link struct {
	Label string
	URL   string
}

// Card holds the contact fields of a vCard 3.0 card. Field values are
// carried as-is; validation belongs to a separate collaborator.
type Card struct {
	FormattedName string
	GivenName     string
	FamilyName    string
	Organization  string
	Title         string
	Phone         string
	Email         string
	Website       string
	Socials       []Social
	Links         []Link

	// Context is the share context recovered from (or embedded into) the
	// X-TAPCARD-* lines. Zero value means no context present.
	Context ShareContext
}

// Encode renders the card as a vCard 3.0 string with CRLF line endings.
// Empty fields are omitted. The share context, when set, is appended as
// X-TAPCARD-* lines.
func (c *Card) Encode() string {
	var b strings.Builder
	writeLine(&b, "BEGIN", "VCARD")
	writeLine(&b, "VERSION", "3.0")
	writeLine(&b, "N", escapeText(c.FamilyName)+";"+escapeText(c.GivenName)+";;;")
	if c.FormattedName != "" {
		writeLine(&b, "FN", escapeText(c.FormattedName))
	}
	if c.Organization != "" {
		writeLine(&b, "ORG", escapeText(c.Organization))
	}
	if c.Title != "" {
		writeLine(&b, "TITLE", escapeText(c.Title))
	}
	if c.Phone != "" {
		writeLine(&b, "TEL;TYPE=CELL", escapeText(c.Phone))
	}
	if c.Email != "" {
		writeLine(&b, "EMAIL;TYPE=INTERNET", escapeText(c.Email))
	}
	if c.Website != "" {
		writeLine(&b, "URL", escapeText(c.Website))
	}
	for _, s := range c.Socials {
		writeLine(&b, xSocialLine+";TYPE="+s.Network, escapeText(s.URL))
	}
	for _, l := range c.Links {
		writeLine(&b, xLinkLine+";LABEL="+escapeParam(l.Label), escapeText(l.URL))
	}
	if c.Context.Method != "" {
		writeLine(&b, xMethodLine, string(c.Context.Method))
	}
	if !c.Context.SharedAt.IsZero() {
		writeLine(&b, xSharedAtLine, strconv.FormatInt(c.Context.SharedAt.Unix(), 10))
	}
	if c.Context.ProfileType != "" {
		writeLine(&b, xProfileTypeLine, c.Context.ProfileType)
	}
	writeLine(&b, "END", "VCARD")
	return b.String()
}

func writeLine(b *strings.Builder, name, value string) {
	b.WriteString(name)
	b.WriteByte(':')
	b.WriteString(value)
	b.WriteString("\r\n")
}

// escapeText escapes a property value per RFC 2426 section 2.4.2.
func escapeText(s string) string {
	if !strings.ContainsAny(s, "\\;,\n") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case ';':
			b.WriteString(`\;`)
		case ',':
			b.WriteString(`\,`)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// escapeParam sanitizes a parameter value. Parameter values cannot carry
// escapes in vCard 3.0, so reserved characters are replaced outright.
func escapeParam(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ':', ';', ',', '\n', '\r':
			return '-'
		default:
			return r
		}
	}, s)
}

func unescapeText(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	escaped := false
	for _, r := range s {
		if escaped {
			switch r {
			case 'n', 'N':
				b.WriteByte('\n')
			default:
				b.WriteRune(r)
			}
			escaped = false
			continue
		}
		if r == '\\' {
			escaped = true
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// String implements fmt.Stringer for debugging.
func (c *Card) String() string {
	return fmt.Sprintf("vcard(%s <%s>)", c.FormattedName, c.Email)
}
