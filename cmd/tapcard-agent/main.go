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

// Command tapcard-agent runs the desktop companion agent: it drives the
// NFC accessory, serves share links over HTTP, fans events out to
// WebSocket subscribers and mirrors profiles to the cloud store when
// configured.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/atlas-linq/tapcard/agentapi"
	"github.com/atlas-linq/tapcard/cloudsync"
	"github.com/atlas-linq/tapcard/config"
	"github.com/atlas-linq/tapcard/discovery"
	"github.com/atlas-linq/tapcard/history"
	"github.com/atlas-linq/tapcard/hub"
	"github.com/atlas-linq/tapcard/internal/logging"
	"github.com/atlas-linq/tapcard/profile"
	"github.com/atlas-linq/tapcard/serialbridge"
	"github.com/atlas-linq/tapcard/session"
	"github.com/atlas-linq/tapcard/share"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "tapcard-agent:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}
	log := logging.NewDefault()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := history.Open(cfg.HistoryPath)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()

	bridge, err := serialbridge.Open(ctx, cfg.SerialPort, log)
	if err != nil {
		return fmt.Errorf("open accessory: %w", err)
	}
	defer bridge.Close()

	events := hub.New(log)
	defer events.CloseAll()

	poller := discovery.New(bridge, discovery.DefaultConfig(), log)
	poller.SetOnProximity(func(present bool) {
		events.BroadcastProximity(ctx, present)
	})
	defer poller.Close()

	orchestrator := session.New(bridge, session.NewState(),
		session.WithTimeout(cfg.SessionTimeout),
		session.WithPauser(poller),
		session.WithLogger(log),
	)

	source, docStore, cleanup, err := buildProfileSource(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	encoder := profile.NewEncoder(cfg.ShareHost)
	router := share.NewRouter(source, encoder, log)
	router.Handle("/ws", events)

	api := agentapi.New(orchestrator, source, encoder, store, events, log)
	if docStore != nil {
		api.SetSyncer(cloudsync.NewSyncer(docStore, log))
	}
	if cfg.S3Bucket != "" {
		blobs, err := cloudsync.NewBlobStore(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3Endpoint)
		if err != nil {
			return fmt.Errorf("open blob store: %w", err)
		}
		api.SetBlobStore(blobs)
	} else {
		log.Info(ctx, "no blob bucket configured, image uploads disabled")
	}
	api.Register(router)

	server := share.NewServer(cfg.ListenAddr, cfg.MDNSInstance, router, log)

	pollerDone := make(chan struct{})
	go func() {
		defer close(pollerDone)
		if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error(ctx, "discovery poller stopped", "error", err)
		}
	}()

	err = server.Run(ctx)
	<-pollerDone
	return err
}

// buildProfileSource wires the cloud store when a DSN is configured, and
// otherwise serves every lookup as not found. The document store is also
// returned so the API can push profile batches back into it.
func buildProfileSource(ctx context.Context, cfg *config.Config, log logging.Logger) (share.ProfileSource, *cloudsync.Store, func(), error) {
	if cfg.DatabaseDSN == "" {
		log.Info(ctx, "cloud sync disabled, share lookups will 404")
		return emptySource{}, nil, func() {}, nil
	}
	store, err := cloudsync.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open cloud store: %w", err)
	}
	return &cloudSource{store: store}, store, func() { store.Close() }, nil
}

type emptySource struct{}

func (emptySource) Get(context.Context, string) (*profile.Profile, error) {
	return nil, share.ErrProfileNotFound
}

// cloudSource adapts the cloud document store to the share lookup
// interface.
type cloudSource struct {
	store *cloudsync.Store
}

func (s *cloudSource) Get(ctx context.Context, id string) (*profile.Profile, error) {
	doc, err := s.store.Get(ctx, id)
	if errors.Is(err, cloudsync.ErrNotFound) {
		return nil, share.ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &profile.Profile{
		ID:         doc.ID,
		Type:       doc.Type,
		Name:       doc.Name,
		Title:      doc.Title,
		Company:    doc.Company,
		Phone:      doc.Phone,
		Email:      doc.Email,
		Website:    doc.Website,
		Links:      doc.Links,
		Aesthetics: doc.Aesthetics,
		UpdatedAt:  doc.ServerTimestamp,
	}, nil
}
