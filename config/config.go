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

// Package config handles agent configuration: defaults, then environment
// variables, then command-line flags, each layer overriding the previous.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"
)

// Config holds runtime settings for the tapcard agent.
type Config struct {
	// ListenAddr is the bind address for the share HTTP server.
	ListenAddr string
	// ShareHost is the host embedded in share URLs.
	ShareHost string
	// MDNSInstance is the mDNS instance label; empty disables the announce.
	MDNSInstance string

	// SerialPort is the NFC accessory port, e.g. /dev/ttyUSB0.
	SerialPort string
	// SessionTimeout bounds a single tag write or read.
	SessionTimeout time.Duration

	// HistoryPath is the sqlite file for the share history; ":memory:"
	// keeps it ephemeral.
	HistoryPath string

	// DatabaseDSN is the Postgres DSN for the cloud profile mirror.
	// Empty disables cloud sync.
	DatabaseDSN string

	// S3Bucket, S3Region and S3Endpoint configure image blob storage.
	// An empty bucket disables uploads.
	S3Bucket   string
	S3Region   string
	S3Endpoint string
}

// LoadDefaults populates development defaults. Production deployments
// override these via environment or flags.
func (c *Config) LoadDefaults() {
	c.ListenAddr = ":8470"
	c.ShareHost = "atlaslinq.app"
	c.MDNSInstance = "tapcard-agent"
	c.SerialPort = "/dev/ttyUSB0"
	c.SessionTimeout = 10 * time.Second
	c.HistoryPath = "tapcard-history.db"
	c.S3Region = "us-east-1"
}

// loadEnv overlays TAPCARD_* environment variables.
func (c *Config) loadEnv() error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setString("TAPCARD_LISTEN_ADDR", &c.ListenAddr)
	setString("TAPCARD_SHARE_HOST", &c.ShareHost)
	setString("TAPCARD_MDNS_INSTANCE", &c.MDNSInstance)
	setString("TAPCARD_SERIAL_PORT", &c.SerialPort)
	setString("TAPCARD_HISTORY_PATH", &c.HistoryPath)
	setString("TAPCARD_DATABASE_DSN", &c.DatabaseDSN)
	setString("TAPCARD_S3_BUCKET", &c.S3Bucket)
	setString("TAPCARD_S3_REGION", &c.S3Region)
	setString("TAPCARD_S3_ENDPOINT", &c.S3Endpoint)

	if v, ok := os.LookupEnv("TAPCARD_SESSION_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: TAPCARD_SESSION_TIMEOUT: %w", err)
		}
		c.SessionTimeout = d
	}
	return nil
}

// parseFlags overlays command-line flags on top of the current values.
func (c *Config) parseFlags(args []string) error {
	fs := flag.NewFlagSet("tapcard-agent", flag.ContinueOnError)

	fs.StringVar(&c.ListenAddr, "listen", c.ListenAddr, "share server bind address")
	fs.StringVar(&c.ShareHost, "share-host", c.ShareHost, "host embedded in share URLs")
	fs.StringVar(&c.MDNSInstance, "mdns-instance", c.MDNSInstance, "mDNS instance name, empty to disable")
	fs.StringVar(&c.SerialPort, "serial-port", c.SerialPort, "NFC accessory serial port")
	fs.DurationVar(&c.SessionTimeout, "session-timeout", c.SessionTimeout, "tag session timeout")
	fs.StringVar(&c.HistoryPath, "history-path", c.HistoryPath, "sqlite history file")
	fs.StringVar(&c.DatabaseDSN, "database-dsn", c.DatabaseDSN, "Postgres DSN for cloud sync, empty to disable")
	fs.StringVar(&c.S3Bucket, "s3-bucket", c.S3Bucket, "image blob bucket, empty to disable")
	fs.StringVar(&c.S3Region, "s3-region", c.S3Region, "image blob region")
	fs.StringVar(&c.S3Endpoint, "s3-endpoint", c.S3Endpoint, "S3-compatible endpoint override")

	return fs.Parse(args)
}

// Load builds a Config from defaults, environment and the given args
// (usually os.Args[1:]).
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	if err := cfg.parseFlags(args); err != nil {
		return nil, err
	}
	if cfg.SessionTimeout <= 0 {
		return nil, fmt.Errorf("config: session timeout must be positive, got %s", cfg.SessionTimeout)
	}
	return cfg, nil
}
