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

package vcard

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// Parse errors.
var (
	ErrNotVCard  = errors.New("vcard: missing BEGIN:VCARD envelope")
	ErrTruncated = errors.New("vcard: missing END:VCARD")
)

// Parse decodes a vCard 3.0 string into a Card. Parsing is lenient: unknown
// property lines are skipped and malformed extension values are ignored
// rather than failing the whole card. Only a broken envelope is an error.
func Parse(data string) (*Card, error) {
	lines := unfold(data)
	if len(lines) == 0 || !strings.EqualFold(lines[0], "BEGIN:VCARD") {
		return nil, ErrNotVCard
	}

	card := &Card{}
	ended := false
	for _, line := range lines[1:] {
		if strings.EqualFold(line, "END:VCARD") {
			ended = true
			break
		}
		name, params, value, ok := splitLine(line)
		if !ok {
			continue
		}
		card.applyLine(name, params, value)
	}
	if !ended {
		return nil, ErrTruncated
	}
	return card, nil
}

func (c *Card) applyLine(name string, params map[string]string, value string) {
	switch name {
	case "FN":
		c.FormattedName = unescapeText(value)
	case "N":
		parts := splitStructured(value)
		if len(parts) > 0 {
			c.FamilyName = parts[0]
		}
		if len(parts) > 1 {
			c.GivenName = parts[1]
		}
	case "ORG":
		c.Organization = unescapeText(value)
	case "TITLE":
		c.Title = unescapeText(value)
	case "TEL":
		c.Phone = unescapeText(value)
	case "EMAIL":
		c.Email = unescapeText(value)
	case "URL":
		c.Website = unescapeText(value)
	case xSocialLine:
		c.Socials = append(c.Socials, Social{Network: params["TYPE"], URL: unescapeText(value)})
	case xLinkLine:
		c.Links = append(c.Links, Link{Label: params["LABEL"], URL: unescapeText(value)})
	case xMethodLine:
		c.Context.Method = Method(value)
	case xSharedAtLine:
		if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
			c.Context.SharedAt = time.Unix(secs, 0).UTC()
		}
	case xProfileTypeLine:
		c.Context.ProfileType = value
	}
}

// unfold splits input into logical lines, joining folded continuations
// (lines starting with a space or tab) per RFC 2425 section 5.8.1.
func unfold(data string) []string {
	raw := strings.Split(strings.ReplaceAll(data, "\r\n", "\n"), "\n")
	var lines []string
	for _, l := range raw {
		if l == "" {
			continue
		}
		if (l[0] == ' ' || l[0] == '\t') && len(lines) > 0 {
			lines[len(lines)-1] += l[1:]
			continue
		}
		lines = append(lines, l)
	}
	return lines
}

// splitLine separates "NAME;PARAM=V;PARAM2=V2:value" into its parts.
// The property name is uppercased; parameter names are uppercased too.
func splitLine(line string) (name string, params map[string]string, value string, ok bool) {
	colon := strings.Index(line, ":")
	if colon < 0 {
		return "", nil, "", false
	}
	head, value := line[:colon], line[colon+1:]

	segs := strings.Split(head, ";")
	name = strings.ToUpper(segs[0])
	if len(segs) > 1 {
		params = make(map[string]string, len(segs)-1)
		for _, seg := range segs[1:] {
			if eq := strings.Index(seg, "="); eq >= 0 {
				params[strings.ToUpper(seg[:eq])] = seg[eq+1:]
			}
		}
	}
	return name, params, value, true
}

// splitStructured splits a semicolon-separated structured value,
// honoring backslash escapes.
func splitStructured(value string) []string {
	var parts []string
	var b strings.Builder
	escaped := false
	for _, r := range value {
		switch {
		case escaped:
			switch r {
			case 'n', 'N':
				b.WriteByte('\n')
			default:
				b.WriteRune(r)
			}
			escaped = false
		case r == '\\':
			escaped = true
		case r == ';':
			parts = append(parts, b.String())
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	parts = append(parts, b.String())
	return parts
}
