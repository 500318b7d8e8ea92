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

// Package agentapi exposes the agent's NFC operations and share history
// over HTTP. Results come back as JSON bodies with an HTTP status mapped
// from the result kind; failures are ordinary responses, never panics.
package agentapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/atlas-linq/tapcard/cloudsync"
	"github.com/atlas-linq/tapcard/history"
	"github.com/atlas-linq/tapcard/hub"
	"github.com/atlas-linq/tapcard/internal/logging"
	"github.com/atlas-linq/tapcard/pkg/vcard"
	"github.com/atlas-linq/tapcard/profile"
	"github.com/atlas-linq/tapcard/session"
	"github.com/atlas-linq/tapcard/share"
)

// NFC is the slice of the session orchestrator the API drives.
type NFC interface {
	WriteTag(ctx context.Context, vcard []byte, url string) session.Result
	ReadTag(ctx context.Context) session.Result
	StartEmulation(ctx context.Context, vcard []byte, url string) session.Result
	StopEmulation(ctx context.Context) error
}

// Blobs is the image side of the cloud store: it persists profile and
// background images and hands out short-lived download URLs.
type Blobs interface {
	UploadProfileImage(ctx context.Context, profileID, ext, contentType string, data []byte) (string, error)
	UploadBackgroundImage(ctx context.Context, profileID, ext, contentType string, data []byte) (string, error)
	PresignedGetURL(ctx context.Context, key string) (string, error)
}

// ProfileSyncer mirrors a batch of profiles to the cloud document store.
type ProfileSyncer interface {
	SyncAll(ctx context.Context, profiles []*profile.Profile) cloudsync.Report
}

// API wires NFC operations, profile lookups, history and event fan-out.
type API struct {
	nfc     NFC
	source  share.ProfileSource
	encoder *profile.Encoder
	store   *history.Store
	events  *hub.Hub
	blobs   Blobs
	syncer  ProfileSyncer
	log     logging.Logger
}

// New builds the API. store and events may be nil to disable history and
// broadcasts respectively.
func New(nfc NFC, source share.ProfileSource, encoder *profile.Encoder, store *history.Store, events *hub.Hub, log logging.Logger) *API {
	if encoder == nil {
		encoder = profile.NewEncoder(profile.DefaultHost)
	}
	if log == nil {
		log = logging.Nop{}
	}
	return &API{nfc: nfc, source: source, encoder: encoder, store: store, events: events, log: log}
}

// SetBlobStore enables the image upload endpoints.
func (a *API) SetBlobStore(b Blobs) {
	a.blobs = b
}

// SetSyncer enables the batch profile sync endpoint.
func (a *API) SetSyncer(s ProfileSyncer) {
	a.syncer = s
}

// Register mounts the API routes on r.
func (a *API) Register(r *mux.Router) {
	r.HandleFunc("/nfc/write/{profileID}", a.writeTag).Methods("POST")
	r.HandleFunc("/nfc/read", a.readTag).Methods("POST")
	r.HandleFunc("/nfc/emulate/{profileID}", a.startEmulation).Methods("POST")
	r.HandleFunc("/nfc/emulate", a.stopEmulation).Methods("DELETE")

	r.HandleFunc("/history", a.listHistory).Methods("GET")
	r.HandleFunc("/history", a.purgeHistory).Methods("DELETE")
	r.HandleFunc("/history/{id}", a.deleteHistory).Methods("DELETE")
	r.HandleFunc("/history/{id}/restore", a.restoreHistory).Methods("POST")

	r.HandleFunc("/profiles/{profileID}/image", a.uploadProfileImage).Methods("POST")
	r.HandleFunc("/profiles/{profileID}/background", a.uploadBackgroundImage).Methods("POST")
	r.HandleFunc("/sync", a.syncProfiles).Methods("POST")
}

// resultBody is the JSON rendering of a session result.
type resultBody struct {
	Success      bool   `json:"success"`
	Kind         string `json:"kind"`
	Message      string `json:"message,omitempty"`
	TagID        string `json:"tagId,omitempty"`
	PayloadType  string `json:"payloadType,omitempty"`
	BytesWritten int    `json:"bytesWritten,omitempty"`
	TagCapacity  int    `json:"tagCapacity,omitempty"`
	DurationMS   int64  `json:"durationMs"`
	VCard        string `json:"vcard,omitempty"`
}

func (a *API) writeTag(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["profileID"]
	p, err := a.source.Get(r.Context(), id)
	if errors.Is(err, share.ErrProfileNotFound) {
		http.Error(w, "profile not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "profile lookup failed", http.StatusInternalServerError)
		return
	}

	payload := a.encoder.Payload(p, vcard.ShareContext{
		SharedAt: time.Now().UTC(),
		Method:   vcard.MethodTag,
	})
	res := a.nfc.WriteTag(r.Context(), []byte(payload.VCard), payload.URL)

	if res.Success {
		a.record(r, &history.Entry{
			Kind:            history.KindTagWrite,
			Method:          vcard.MethodTag,
			OccurredAt:      time.Now().UTC(),
			CounterpartID:   p.ID,
			CounterpartName: p.Name,
			TagID:           res.TagID,
			TagCapacity:     res.TagCapacity,
		})
	}
	a.broadcast(r, hub.EventTagWritten, &res)
	a.respond(w, r, &res, "")
}

func (a *API) readTag(w http.ResponseWriter, r *http.Request) {
	res := a.nfc.ReadTag(r.Context())

	var rendered string
	if res.Success {
		rendered = string(res.Data)
		entry := &history.Entry{
			Kind:       history.KindReceived,
			Method:     vcard.MethodNFC,
			OccurredAt: time.Now().UTC(),
			TagID:      res.TagID,
		}
		if card, err := vcard.Parse(string(res.Data)); err == nil {
			entry.CounterpartName = card.FormattedName
		}
		a.record(r, entry)
	}
	a.broadcast(r, hub.EventTagRead, &res)
	a.respond(w, r, &res, rendered)
}

func (a *API) startEmulation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["profileID"]
	p, err := a.source.Get(r.Context(), id)
	if errors.Is(err, share.ErrProfileNotFound) {
		http.Error(w, "profile not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "profile lookup failed", http.StatusInternalServerError)
		return
	}

	payload := a.encoder.Payload(p, vcard.ShareContext{
		SharedAt: time.Now().UTC(),
		Method:   vcard.MethodNFC,
	})
	res := a.nfc.StartEmulation(r.Context(), []byte(payload.VCard), payload.URL)

	if res.Success && a.events != nil {
		a.events.BroadcastEmulation(r.Context(), true)
	}
	a.respond(w, r, &res, "")
}

func (a *API) stopEmulation(w http.ResponseWriter, r *http.Request) {
	err := a.nfc.StopEmulation(r.Context())
	if a.events != nil {
		a.events.BroadcastEmulation(r.Context(), false)
	}
	if err != nil {
		a.log.Warn(r.Context(), "emulation stop reported an error", "error", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) listHistory(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		http.Error(w, "history disabled", http.StatusNotFound)
		return
	}
	includeDeleted := r.URL.Query().Get("includeDeleted") == "true"
	entries, err := a.store.List(r.Context(), includeDeleted)
	if err != nil {
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(entries)
}

func (a *API) deleteHistory(w http.ResponseWriter, r *http.Request) {
	a.mutateHistory(w, r, a.storeSoftDelete)
}

func (a *API) restoreHistory(w http.ResponseWriter, r *http.Request) {
	a.mutateHistory(w, r, a.storeRestore)
}

func (a *API) mutateHistory(w http.ResponseWriter, r *http.Request, op func(*http.Request, string) error) {
	if a.store == nil {
		http.Error(w, "history disabled", http.StatusNotFound)
		return
	}
	err := op(r, mux.Vars(r)["id"])
	if errors.Is(err, history.ErrNotFound) {
		http.Error(w, "entry not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) storeSoftDelete(r *http.Request, id string) error {
	return a.store.SoftDelete(r.Context(), id)
}

func (a *API) storeRestore(r *http.Request, id string) error {
	return a.store.Restore(r.Context(), id)
}

func (a *API) purgeHistory(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		http.Error(w, "history disabled", http.StatusNotFound)
		return
	}
	n, err := a.store.Purge(r.Context())
	if err != nil {
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int64{"purged": n})
}

// maxImageBytes caps an image upload body.
const maxImageBytes = 5 << 20

// imageExts maps the accepted upload content types onto blob key
// extensions.
var imageExts = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
}

func (a *API) uploadProfileImage(w http.ResponseWriter, r *http.Request) {
	a.uploadImage(w, r, func(ctx context.Context, id, ext, contentType string, data []byte) (string, error) {
		return a.blobs.UploadProfileImage(ctx, id, ext, contentType, data)
	})
}

func (a *API) uploadBackgroundImage(w http.ResponseWriter, r *http.Request) {
	a.uploadImage(w, r, func(ctx context.Context, id, ext, contentType string, data []byte) (string, error) {
		return a.blobs.UploadBackgroundImage(ctx, id, ext, contentType, data)
	})
}

func (a *API) uploadImage(w http.ResponseWriter, r *http.Request, upload func(context.Context, string, string, string, []byte) (string, error)) {
	if a.blobs == nil {
		http.Error(w, "image storage disabled", http.StatusNotFound)
		return
	}
	contentType := r.Header.Get("Content-Type")
	ext, ok := imageExts[contentType]
	if !ok {
		http.Error(w, "unsupported image type", http.StatusUnsupportedMediaType)
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImageBytes))
	if err != nil {
		http.Error(w, "image read failed", http.StatusBadRequest)
		return
	}
	if len(data) == 0 {
		http.Error(w, "empty image body", http.StatusBadRequest)
		return
	}

	key, err := upload(r.Context(), mux.Vars(r)["profileID"], ext, contentType, data)
	if err != nil {
		a.log.Warn(r.Context(), "image upload failed", "error", err)
		http.Error(w, "image upload failed", http.StatusBadGateway)
		return
	}

	body := map[string]string{"key": key}
	if url, err := a.blobs.PresignedGetURL(r.Context(), key); err == nil {
		body["url"] = url
	} else {
		a.log.Warn(r.Context(), "image presign failed", "key", key, "error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(body)
}

// syncBody is the JSON rendering of a batch sync report.
type syncBody struct {
	Synced int           `json:"synced"`
	Failed []syncFailure `json:"failed,omitempty"`
}

type syncFailure struct {
	ProfileID string `json:"profileId"`
	Error     string `json:"error"`
}

func (a *API) syncProfiles(w http.ResponseWriter, r *http.Request) {
	if a.syncer == nil {
		http.Error(w, "cloud sync disabled", http.StatusNotFound)
		return
	}
	var profiles []*profile.Profile
	if err := json.NewDecoder(r.Body).Decode(&profiles); err != nil {
		http.Error(w, "malformed profile batch", http.StatusBadRequest)
		return
	}

	report := a.syncer.SyncAll(r.Context(), profiles)
	body := syncBody{Synced: report.Synced}
	for _, f := range report.Failed {
		body.Failed = append(body.Failed, syncFailure{ProfileID: f.ProfileID, Error: f.Err.Error()})
	}

	status := http.StatusOK
	if !report.OK() {
		status = http.StatusMultiStatus
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (a *API) record(r *http.Request, entry *history.Entry) {
	if a.store == nil {
		return
	}
	if err := a.store.Append(r.Context(), entry); err != nil {
		a.log.Warn(r.Context(), "history append failed", "error", err)
	}
}

func (a *API) broadcast(r *http.Request, typ string, res *session.Result) {
	if a.events != nil {
		a.events.BroadcastResult(r.Context(), typ, res)
	}
}

func (a *API) respond(w http.ResponseWriter, r *http.Request, res *session.Result, rendered string) {
	body := resultBody{
		Success:      res.Success,
		Kind:         res.Kind.String(),
		Message:      res.Message,
		TagID:        res.TagID,
		PayloadType:  string(res.PayloadType),
		BytesWritten: res.BytesWritten,
		TagCapacity:  res.TagCapacity,
		DurationMS:   res.Duration.Milliseconds(),
		VCard:        rendered,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusForKind(res.Kind))
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.log.Warn(r.Context(), "response encode failed", "error", err)
	}
}

// statusForKind maps the error taxonomy onto HTTP statuses.
func statusForKind(k session.Kind) int {
	switch k {
	case session.KindOK:
		return http.StatusOK
	case session.KindUnavailable:
		return http.StatusServiceUnavailable
	case session.KindBusy:
		return http.StatusConflict
	case session.KindTimeout:
		return http.StatusGatewayTimeout
	case session.KindCancelled:
		return 499 // client closed request
	case session.KindMalformedData:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}
