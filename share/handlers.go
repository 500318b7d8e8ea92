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

// Package share serves profile share links: the JSON and vCard views of a
// profile, a QR code pointing at the share URL, and a health probe. The
// server announces itself over mDNS so agents on the local network can
// find it.
package share

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/atlas-linq/tapcard/internal/logging"
	"github.com/atlas-linq/tapcard/pkg/vcard"
	"github.com/atlas-linq/tapcard/profile"
)

// ErrProfileNotFound is what a ProfileSource returns for an unknown id.
var ErrProfileNotFound = errors.New("share: profile not found")

// ProfileSource resolves profile ids for the share endpoints.
type ProfileSource interface {
	Get(ctx context.Context, id string) (*profile.Profile, error)
}

const qrSize = 256

type handlers struct {
	source  ProfileSource
	encoder *profile.Encoder
	log     logging.Logger
}

// NewRouter builds the share router. A nil encoder uses the default host,
// a nil logger discards logs.
func NewRouter(source ProfileSource, encoder *profile.Encoder, log logging.Logger) *mux.Router {
	if encoder == nil {
		encoder = profile.NewEncoder(profile.DefaultHost)
	}
	if log == nil {
		log = logging.Nop{}
	}
	h := &handlers{source: source, encoder: encoder, log: log}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.health).Methods("GET")
	r.HandleFunc("/share/{profileID}", h.shareProfile).Methods("GET")
	r.HandleFunc("/share/{profileID}/qr", h.shareQR).Methods("GET")
	return r
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// shareProfile renders a profile as JSON, or as a vCard when the client
// asks for one via the Accept header or ?format=vcf.
func (h *handlers) shareProfile(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["profileID"]
	p, ok := h.lookup(w, r, id)
	if !ok {
		return
	}

	if wantsVCard(r) {
		payload := h.encoder.Payload(p, vcard.ShareContext{
			SharedAt: time.Now().UTC(),
			Method:   vcard.MethodLink,
		})
		w.Header().Set("Content-Type", "text/vcard; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+".vcf"))
		_, _ = w.Write([]byte(payload.VCard))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(p); err != nil {
		h.log.Error(r.Context(), "profile encode failed", "profileID", id, "error", err)
	}
}

// shareQR renders the profile's share URL as a PNG QR code.
func (h *handlers) shareQR(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["profileID"]
	if _, ok := h.lookup(w, r, id); !ok {
		return
	}

	png, err := qrcode.Encode(h.encoder.ShareURL(id), qrcode.Medium, qrSize)
	if err != nil {
		h.log.Error(r.Context(), "qr encode failed", "profileID", id, "error", err)
		http.Error(w, "qr encoding failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func (h *handlers) lookup(w http.ResponseWriter, r *http.Request, id string) (*profile.Profile, bool) {
	p, err := h.source.Get(r.Context(), id)
	if errors.Is(err, ErrProfileNotFound) {
		http.Error(w, "profile not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		h.log.Error(r.Context(), "profile lookup failed", "profileID", id, "error", err)
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return nil, false
	}
	return p, true
}

func wantsVCard(r *http.Request) bool {
	if r.URL.Query().Get("format") == "vcf" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/vcard")
}
