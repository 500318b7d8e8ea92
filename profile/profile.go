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

// Package profile holds the contact-card profile model and the payload
// encoder producing the dual payload (vCard plus share URL) for a profile.
package profile

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/atlas-linq/tapcard/pkg/vcard"
)

// Type tags a profile as personal, professional or custom.
type Type string

// Profile type tags.
const (
	TypePersonal     Type = "personal"
	TypeProfessional Type = "professional"
	TypeCustom       Type = "custom"
)

// Aesthetics holds the card rendering options mirrored to the cloud store.
type Aesthetics struct {
	PrimaryColor    string  `json:"primaryColor"`
	SecondaryColor  string  `json:"secondaryColor"`
	TextColor       string  `json:"textColor"`
	Blur            float64 `json:"blur"`
	BackgroundImage string  `json:"backgroundImage,omitempty"`
}

// Link is a custom labeled URL on a profile.
type Link struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// DualPayload is the pre-rendered pair of tag payloads for a profile.
type DualPayload struct {
	VCard string
	URL   string
}

// Profile is a user-owned contact card. It is persisted locally and
// mirrored to a cloud document keyed by ID.
type Profile struct {
	ID         string         `json:"id"`
	Type       Type           `json:"type"`
	Name       string         `json:"name"`
	Title      string         `json:"title,omitempty"`
	Company    string         `json:"company,omitempty"`
	Phone      string         `json:"phone,omitempty"`
	Email      string         `json:"email,omitempty"`
	Website    string         `json:"website,omitempty"`
	Socials    []vcard.Social `json:"socials,omitempty"`
	Links      []Link         `json:"links,omitempty"`
	Aesthetics Aesthetics     `json:"cardAesthetics"`
	ImagePath  string         `json:"imagePath,omitempty"`
	UpdatedAt  time.Time      `json:"updatedAt"`

	// cached is the pre-rendered dual payload, regenerated on edit.
	cached *DualPayload
}

// New creates a profile with a fresh UUID.
func New(name string, typ Type) *Profile {
	return &Profile{
		ID:        uuid.NewString(),
		Type:      typ,
		Name:      name,
		UpdatedAt: time.Now().UTC(),
	}
}

// Touch marks the profile as edited: it bumps UpdatedAt and drops the
// cached payload so the next render regenerates it.
func (p *Profile) Touch() {
	p.UpdatedAt = time.Now().UTC()
	p.cached = nil
}

// CachedPayload returns the pre-rendered dual payload, if any.
func (p *Profile) CachedPayload() (DualPayload, bool) {
	if p.cached == nil {
		return DualPayload{}, false
	}
	return *p.cached, true
}

// Card converts the profile fields into a vCard value without share context.
func (p *Profile) Card() *vcard.Card {
	given, family := splitName(p.Name)
	links := make([]vcard.Link, 0, len(p.Links))
	for _, l := range p.Links {
		links = append(links, vcard.Link{Label: l.Label, URL: l.URL})
	}
	return &vcard.Card{
		FormattedName: p.Name,
		GivenName:     given,
		FamilyName:    family,
		Organization:  p.Company,
		Title:         p.Title,
		Phone:         p.Phone,
		Email:         p.Email,
		Website:       p.Website,
		Socials:       p.Socials,
		Links:         links,
	}
}

func splitName(full string) (given, family string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
	}
}

// Validation errors. Field validation lives here, deliberately outside the
// payload encoder.
var (
	ErrMissingName = errors.New("profile: name is required")
	ErrBadType     = errors.New("profile: unknown profile type")
	ErrBadEmail    = errors.New("profile: invalid email address")
)

// Validate checks profile fields before persistence or sync.
func Validate(p *Profile) error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrMissingName
	}
	switch p.Type {
	case TypePersonal, TypeProfessional, TypeCustom:
	default:
		return fmt.Errorf("%w: %q", ErrBadType, p.Type)
	}
	if p.Email != "" {
		if _, err := mail.ParseAddress(p.Email); err != nil {
			return fmt.Errorf("%w: %q", ErrBadEmail, p.Email)
		}
	}
	return nil
}
