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

package agentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-linq/tapcard/cloudsync"
	"github.com/atlas-linq/tapcard/history"
	"github.com/atlas-linq/tapcard/profile"
	"github.com/atlas-linq/tapcard/session"
	"github.com/atlas-linq/tapcard/share"
)

// stubNFC returns scripted results and records the payloads it was given.
type stubNFC struct {
	writeResult session.Result
	readResult  session.Result
	emuResult   session.Result
	stopErr     error

	lastVCard []byte
	lastURL   string
}

func (s *stubNFC) WriteTag(_ context.Context, vcard []byte, url string) session.Result {
	s.lastVCard, s.lastURL = vcard, url
	return s.writeResult
}

func (s *stubNFC) ReadTag(context.Context) session.Result { return s.readResult }

func (s *stubNFC) StartEmulation(_ context.Context, vcard []byte, url string) session.Result {
	s.lastVCard, s.lastURL = vcard, url
	return s.emuResult
}

func (s *stubNFC) StopEmulation(context.Context) error { return s.stopErr }

type mapSource map[string]*profile.Profile

func (m mapSource) Get(_ context.Context, id string) (*profile.Profile, error) {
	p, ok := m[id]
	if !ok {
		return nil, share.ErrProfileNotFound
	}
	return p, nil
}

func fixture(t *testing.T, nfc *stubNFC) (*mux.Router, *history.Store) {
	t.Helper()
	store, err := history.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	p := profile.New("Ada Lovelace", profile.TypeProfessional)
	p.ID = "p-1"
	source := mapSource{"p-1": p}

	r := mux.NewRouter()
	New(nfc, source, profile.NewEncoder("cards.example.com"), store, nil, nil).Register(r)
	return r, store
}

func do(r *mux.Router, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func okWrite() session.Result {
	return session.Result{
		Success:      true,
		Kind:         session.KindOK,
		TagID:        "04A1B2",
		PayloadType:  "dual",
		BytesWritten: 160,
		TagCapacity:  540,
	}
}

func TestWriteTagSuccessRecordsHistory(t *testing.T) {
	t.Parallel()

	nfc := &stubNFC{writeResult: okWrite()}
	router, store := fixture(t, nfc)

	rec := do(router, "POST", "/nfc/write/p-1")
	require.Equal(t, http.StatusOK, rec.Code)

	var body resultBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "04A1B2", body.TagID)
	assert.Equal(t, "dual", body.PayloadType)

	// The staged payload is the profile's dual payload.
	assert.Contains(t, string(nfc.lastVCard), "FN:Ada Lovelace")
	assert.Equal(t, "https://cards.example.com/share/p-1", nfc.lastURL)

	entries, err := store.List(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, history.KindTagWrite, entries[0].Kind)
	assert.Equal(t, "p-1", entries[0].CounterpartID)
	assert.Equal(t, 540, entries[0].TagCapacity)
}

func TestWriteTagUnknownProfile(t *testing.T) {
	t.Parallel()

	router, _ := fixture(t, &stubNFC{})
	rec := do(router, "POST", "/nfc/write/ghost")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWriteTagBusyMapsToConflict(t *testing.T) {
	t.Parallel()

	nfc := &stubNFC{writeResult: session.Result{Kind: session.KindBusy, Message: "session busy"}}
	router, store := fixture(t, nfc)

	rec := do(router, "POST", "/nfc/write/p-1")
	assert.Equal(t, http.StatusConflict, rec.Code)

	entries, err := store.List(context.Background(), true)
	require.NoError(t, err)
	assert.Empty(t, entries, "failed writes leave no history")
}

func TestWriteTagTimeoutMapsToGatewayTimeout(t *testing.T) {
	t.Parallel()

	nfc := &stubNFC{writeResult: session.Result{Kind: session.KindTimeout, Message: "timeout: no tag detected"}}
	router, _ := fixture(t, nfc)

	rec := do(router, "POST", "/nfc/write/p-1")
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestReadTagRecordsCounterpart(t *testing.T) {
	t.Parallel()

	data := "BEGIN:VCARD\r\nVERSION:3.0\r\nN:Turing;Alan;;;\r\nFN:Alan Turing\r\nEND:VCARD\r\n"
	nfc := &stubNFC{readResult: session.Result{
		Success: true,
		Kind:    session.KindOK,
		TagID:   "04C3D4",
		Data:    []byte(data),
	}}
	router, store := fixture(t, nfc)

	rec := do(router, "POST", "/nfc/read")
	require.Equal(t, http.StatusOK, rec.Code)

	var body resultBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.VCard, "FN:Alan Turing")

	entries, err := store.List(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, history.KindReceived, entries[0].Kind)
	assert.Equal(t, "Alan Turing", entries[0].CounterpartName)
}

func TestEmulationLifecycle(t *testing.T) {
	t.Parallel()

	nfc := &stubNFC{emuResult: session.Result{Success: true, Kind: session.KindOK, BytesWritten: 180}}
	router, _ := fixture(t, nfc)

	rec := do(router, "POST", "/nfc/emulate/p-1")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(router, "DELETE", "/nfc/emulate")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestEmulationUnsupported(t *testing.T) {
	t.Parallel()

	nfc := &stubNFC{emuResult: session.Result{Kind: session.KindUnavailable, Message: "emulation not supported"}}
	router, _ := fixture(t, nfc)

	rec := do(router, "POST", "/nfc/emulate/p-1")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// fakeBlobs stores uploads in memory using the real blob key scheme.
type fakeBlobs struct {
	uploads      map[string][]byte
	contentTypes map[string]string
	err          error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{uploads: map[string][]byte{}, contentTypes: map[string]string{}}
}

func (f *fakeBlobs) UploadProfileImage(_ context.Context, id, ext, contentType string, data []byte) (string, error) {
	return f.store(cloudsync.ProfileImageKey(id, ext), contentType, data)
}

func (f *fakeBlobs) UploadBackgroundImage(_ context.Context, id, ext, contentType string, data []byte) (string, error) {
	return f.store(cloudsync.BackgroundImageKey(id, ext), contentType, data)
}

func (f *fakeBlobs) store(key, contentType string, data []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.uploads[key] = data
	f.contentTypes[key] = contentType
	return key, nil
}

func (f *fakeBlobs) PresignedGetURL(_ context.Context, key string) (string, error) {
	return "https://blobs.example.com/" + key, nil
}

// fakeSyncer records the batch and returns a scripted report.
type fakeSyncer struct {
	report cloudsync.Report
	got    []*profile.Profile
}

func (f *fakeSyncer) SyncAll(_ context.Context, profiles []*profile.Profile) cloudsync.Report {
	f.got = profiles
	return f.report
}

func cloudFixture(t *testing.T, blobs Blobs, syncer ProfileSyncer) *mux.Router {
	t.Helper()
	r := mux.NewRouter()
	api := New(&stubNFC{}, mapSource{}, nil, nil, nil, nil)
	api.SetBlobStore(blobs)
	api.SetSyncer(syncer)
	api.Register(r)
	return r
}

func doUpload(r *mux.Router, path, contentType string, body []byte) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", path, bytes.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	r.ServeHTTP(rec, req)
	return rec
}

func TestUploadProfileImage(t *testing.T) {
	t.Parallel()

	blobs := newFakeBlobs()
	router := cloudFixture(t, blobs, nil)

	rec := doUpload(router, "/profiles/p-1/image", "image/png", []byte{0x89, 'P', 'N', 'G'})
	require.Equal(t, http.StatusCreated, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "profile_images/p-1.png", body["key"])
	assert.Equal(t, "https://blobs.example.com/profile_images/p-1.png", body["url"])
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, blobs.uploads["profile_images/p-1.png"])
	assert.Equal(t, "image/png", blobs.contentTypes["profile_images/p-1.png"])
}

func TestUploadBackgroundImageKeyScheme(t *testing.T) {
	t.Parallel()

	blobs := newFakeBlobs()
	router := cloudFixture(t, blobs, nil)

	rec := doUpload(router, "/profiles/p-1/background", "image/jpeg", []byte{0xFF, 0xD8})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, blobs.uploads, "background_images/p-1_bg.jpg")
}

func TestUploadImageUnsupportedType(t *testing.T) {
	t.Parallel()

	router := cloudFixture(t, newFakeBlobs(), nil)
	rec := doUpload(router, "/profiles/p-1/image", "application/pdf", []byte("%PDF"))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestUploadImageEmptyBody(t *testing.T) {
	t.Parallel()

	router := cloudFixture(t, newFakeBlobs(), nil)
	rec := doUpload(router, "/profiles/p-1/image", "image/png", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadImageStoreFailure(t *testing.T) {
	t.Parallel()

	blobs := newFakeBlobs()
	blobs.err = errors.New("bucket unreachable")
	router := cloudFixture(t, blobs, nil)

	rec := doUpload(router, "/profiles/p-1/image", "image/png", []byte{0x89})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestUploadImageDisabled(t *testing.T) {
	t.Parallel()

	router, _ := fixture(t, &stubNFC{})
	rec := doUpload(router, "/profiles/p-1/image", "image/png", []byte{0x89})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSyncProfiles(t *testing.T) {
	t.Parallel()

	syncer := &fakeSyncer{report: cloudsync.Report{Synced: 2}}
	router := cloudFixture(t, nil, syncer)

	batch := []*profile.Profile{
		profile.New("Ada Lovelace", profile.TypeProfessional),
		profile.New("Alan Turing", profile.TypeProfessional),
	}
	payload, err := json.Marshal(batch)
	require.NoError(t, err)

	rec := doUpload(router, "/sync", "application/json", payload)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"synced":2}`, rec.Body.String())
	require.Len(t, syncer.got, 2)
	assert.Equal(t, "Ada Lovelace", syncer.got[0].Name)
}

func TestSyncProfilesPartialFailure(t *testing.T) {
	t.Parallel()

	syncer := &fakeSyncer{report: cloudsync.Report{
		Synced: 1,
		Failed: []cloudsync.Failure{{ProfileID: "p-2", Err: errors.New("document store down")}},
	}}
	router := cloudFixture(t, nil, syncer)

	rec := doUpload(router, "/sync", "application/json", []byte(`[]`))
	require.Equal(t, http.StatusMultiStatus, rec.Code)

	var body syncBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Synced)
	require.Len(t, body.Failed, 1)
	assert.Equal(t, "p-2", body.Failed[0].ProfileID)
	assert.Equal(t, "document store down", body.Failed[0].Error)
}

func TestSyncProfilesMalformedBody(t *testing.T) {
	t.Parallel()

	router := cloudFixture(t, nil, &fakeSyncer{})
	rec := doUpload(router, "/sync", "application/json", []byte("{not json"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSyncProfilesDisabled(t *testing.T) {
	t.Parallel()

	router, _ := fixture(t, &stubNFC{})
	rec := doUpload(router, "/sync", "application/json", []byte(`[]`))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistoryEndpoints(t *testing.T) {
	t.Parallel()

	nfc := &stubNFC{writeResult: okWrite()}
	router, _ := fixture(t, nfc)
	require.Equal(t, http.StatusOK, do(router, "POST", "/nfc/write/p-1").Code)

	rec := do(router, "GET", "/history")
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []history.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	id := entries[0].ID

	require.Equal(t, http.StatusNoContent, do(router, "DELETE", "/history/"+id).Code)

	rec = do(router, "GET", "/history")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.Empty(t, entries)

	require.Equal(t, http.StatusNoContent, do(router, "POST", "/history/"+id+"/restore").Code)
	require.Equal(t, http.StatusNoContent, do(router, "DELETE", "/history/"+id).Code)

	rec = do(router, "DELETE", "/history")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"purged":1}`, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, do(router, "POST", "/history/"+id+"/restore").Code)
}
