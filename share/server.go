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

package share

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/atlas-linq/tapcard/internal/logging"
)

// mDNS service parameters for local agent discovery.
const (
	mdnsService = "_tapcard._tcp"
	mdnsDomain  = "local."
)

const shutdownGrace = 5 * time.Second

// Server is the share-link HTTP server plus its mDNS announcement.
type Server struct {
	httpServer *http.Server
	mdnsName   string
	mdns       *zeroconf.Server
	log        logging.Logger
}

// NewServer wires the router into an HTTP server listening on addr.
// instanceName is the mDNS instance label; empty disables the announce.
func NewServer(addr, instanceName string, handler http.Handler, log logging.Logger) *Server {
	if log == nil {
		log = logging.Nop{}
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		mdnsName: instanceName,
		log:      log,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully. The mDNS
// announce is best effort: a failure is logged and the server keeps going.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "share server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	if s.mdnsName != "" {
		if err := s.announce(); err != nil {
			s.log.Warn(ctx, "mdns announce failed, discovery disabled", "error", err)
		}
	}

	select {
	case err := <-errCh:
		s.stopMDNS(ctx)
		return err
	case <-ctx.Done():
	}

	s.stopMDNS(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("share: shutdown: %w", err)
	}
	return <-errCh
}

func (s *Server) announce() error {
	_, portStr, err := net.SplitHostPort(s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("share: parse listen addr: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("share: parse listen port: %w", err)
	}
	srv, err := zeroconf.Register(s.mdnsName, mdnsService, mdnsDomain, port,
		[]string{"version=1"}, nil)
	if err != nil {
		return fmt.Errorf("share: register mdns: %w", err)
	}
	s.mdns = srv
	return nil
}

func (s *Server) stopMDNS(ctx context.Context) {
	if s.mdns == nil {
		return
	}
	s.mdns.Shutdown()
	s.mdns = nil
	s.log.Debug(ctx, "mdns announce stopped")
}
