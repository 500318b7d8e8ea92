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
	"strings"
	"testing"
	"time"
)

func TestEncodeRoundTrip(t *testing.T) {
	t.Parallel()

	card := &Card{
		FormattedName: "Ada Lovelace",
		GivenName:     "Ada",
		FamilyName:    "Lovelace",
		Organization:  "Analytical Engines, Ltd.",
		Title:         "Chief Engineer",
		Phone:         "+44 20 7946 0958",
		Email:         "ada@example.com",
		Website:       "https://example.com/ada",
		Socials: []Social{
			{Network: "linkedin", URL: "https://linkedin.com/in/ada"},
		},
		Links: []Link{
			{Label: "Portfolio", URL: "https://ada.dev"},
		},
		Context: ShareContext{
			Method:      MethodNFC,
			SharedAt:    time.Unix(1724668800, 0).UTC(),
			ProfileType: "professional",
		},
	}

	encoded := card.Encode()
	if !strings.HasPrefix(encoded, "BEGIN:VCARD\r\nVERSION:3.0\r\n") {
		t.Fatalf("missing envelope prefix: %q", encoded[:40])
	}
	if !strings.Contains(encoded, "X-TAPCARD-METHOD:nfc\r\n") {
		t.Error("missing method extension line")
	}
	if !strings.Contains(encoded, "X-TAPCARD-SHARED-AT:1724668800\r\n") {
		t.Error("missing shared-at extension line")
	}

	parsed, err := Parse(encoded)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if parsed.FormattedName != card.FormattedName {
		t.Errorf("FormattedName = %q, want %q", parsed.FormattedName, card.FormattedName)
	}
	if parsed.GivenName != "Ada" || parsed.FamilyName != "Lovelace" {
		t.Errorf("N = %q %q, want Ada Lovelace", parsed.GivenName, parsed.FamilyName)
	}
	if parsed.Phone != card.Phone || parsed.Email != card.Email {
		t.Errorf("contact fields mismatch: %q %q", parsed.Phone, parsed.Email)
	}
	if len(parsed.Socials) != 1 || parsed.Socials[0].Network != "linkedin" {
		t.Errorf("Socials = %+v", parsed.Socials)
	}
	if len(parsed.Links) != 1 || parsed.Links[0].Label != "Portfolio" {
		t.Errorf("Links = %+v", parsed.Links)
	}
	if parsed.Context.Method != MethodNFC {
		t.Errorf("Method = %q, want nfc", parsed.Context.Method)
	}
	if !parsed.Context.SharedAt.Equal(card.Context.SharedAt) {
		t.Errorf("SharedAt = %v, want %v", parsed.Context.SharedAt, card.Context.SharedAt)
	}
	if parsed.Context.ProfileType != "professional" {
		t.Errorf("ProfileType = %q", parsed.Context.ProfileType)
	}
}

func TestEncodeEscaping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		card  Card
		want  string
		field func(*Card) string
	}{
		{
			name:  "semicolon in org",
			card:  Card{Organization: "Acme; Inc"},
			want:  `ORG:Acme\; Inc`,
			field: func(c *Card) string { return c.Organization },
		},
		{
			name:  "comma in title",
			card:  Card{Title: "VP, Sales"},
			want:  `TITLE:VP\, Sales`,
			field: func(c *Card) string { return c.Title },
		},
		{
			name:  "backslash in name",
			card:  Card{FormattedName: `A\B`},
			want:  `FN:A\\B`,
			field: func(c *Card) string { return c.FormattedName },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			encoded := tt.card.Encode()
			if !strings.Contains(encoded, tt.want+"\r\n") {
				t.Fatalf("encoded = %q, want line %q", encoded, tt.want)
			}

			parsed, err := Parse(encoded)
			if err != nil {
				t.Fatalf("Parse error: %v", err)
			}
			if got := tt.field(parsed); got != tt.field(&tt.card) {
				t.Errorf("round trip = %q, want %q", got, tt.field(&tt.card))
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"empty", "", ErrNotVCard},
		{"no begin", "VERSION:3.0\r\nEND:VCARD\r\n", ErrNotVCard},
		{"no end", "BEGIN:VCARD\r\nVERSION:3.0\r\nFN:X\r\n", ErrTruncated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse(tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Parse error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseLenient(t *testing.T) {
	t.Parallel()

	// Unknown lines, missing colon lines, and bad timestamps are skipped.
	input := strings.Join([]string{
		"BEGIN:VCARD",
		"VERSION:3.0",
		"FN:Grace Hopper",
		"X-UNKNOWN-PROP:whatever",
		"garbage-without-colon",
		"X-TAPCARD-SHARED-AT:not-a-number",
		"END:VCARD",
	}, "\r\n")

	card, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if card.FormattedName != "Grace Hopper" {
		t.Errorf("FormattedName = %q", card.FormattedName)
	}
	if !card.Context.SharedAt.IsZero() {
		t.Errorf("SharedAt should stay zero on malformed value, got %v", card.Context.SharedAt)
	}
}

func TestParseFoldedLine(t *testing.T) {
	t.Parallel()

	input := "BEGIN:VCARD\r\nVERSION:3.0\r\nFN:Jean Bar\r\n tholomew\r\nEND:VCARD\r\n"
	card, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if card.FormattedName != "Jean Bartholomew" {
		t.Errorf("FormattedName = %q, want folded continuation joined", card.FormattedName)
	}
}

func TestLowercasePropertyNames(t *testing.T) {
	t.Parallel()

	input := "begin:vcard\r\nversion:3.0\r\nfn:Case Test\r\nend:vcard\r\n"
	card, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if card.FormattedName != "Case Test" {
		t.Errorf("FormattedName = %q", card.FormattedName)
	}
}
