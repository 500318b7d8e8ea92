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

// Package cloudsync mirrors profile documents to a cloud-side Postgres
// store and profile images to blob storage. Sync is best effort: failures
// are reported back to the caller, never raised as panics, and a batch
// sync continues past individual profile failures.
package cloudsync

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/atlas-linq/tapcard/cloudsync/migrations"
	"github.com/atlas-linq/tapcard/profile"
)

// ErrNotFound is returned when no document exists for a profile id.
var ErrNotFound = errors.New("cloudsync: profile document not found")

// Document is the cloud-side mirror of a profile, one row per profile id.
// ServerTimestamp is assigned by the database on every upsert.
type Document struct {
	ID              string
	Name            string
	Type            profile.Type
	Title           string
	Company         string
	Phone           string
	Email           string
	Website         string
	Links           []profile.Link
	Aesthetics      profile.Aesthetics
	ServerTimestamp time.Time
}

// Store persists profile documents in the `profiles` table.
type Store struct {
	db *sql.DB
}

// Open connects to Postgres via the pgx stdlib driver and runs pending
// migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("cloudsync: open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("cloudsync: ping database: %w", err)
	}
	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("cloudsync: set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("cloudsync: run migrations: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert writes the document for p, creating or replacing the row keyed by
// profile id. The server timestamp is assigned by the database.
func (s *Store) Upsert(ctx context.Context, p *profile.Profile) error {
	links, err := json.Marshal(p.Links)
	if err != nil {
		return fmt.Errorf("cloudsync: marshal links: %w", err)
	}
	aesthetics, err := json.Marshal(p.Aesthetics)
	if err != nil {
		return fmt.Errorf("cloudsync: marshal aesthetics: %w", err)
	}
	query := `
		INSERT INTO profiles (id, display_name, profile_type, title, company, phone, email, website, links, card_aesthetics, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (id)
		DO UPDATE SET
			display_name = EXCLUDED.display_name,
			profile_type = EXCLUDED.profile_type,
			title = EXCLUDED.title,
			company = EXCLUDED.company,
			phone = EXCLUDED.phone,
			email = EXCLUDED.email,
			website = EXCLUDED.website,
			links = EXCLUDED.links,
			card_aesthetics = EXCLUDED.card_aesthetics,
			updated_at = now();
	`
	if _, err := s.db.ExecContext(ctx, query,
		p.ID, p.Name, string(p.Type), p.Title, p.Company, p.Phone, p.Email, p.Website, links, aesthetics); err != nil {
		return fmt.Errorf("cloudsync: upsert profile %s: %w", p.ID, err)
	}
	return nil
}

// Get fetches the document for a profile id.
func (s *Store) Get(ctx context.Context, id string) (*Document, error) {
	query := `
		SELECT id, display_name, profile_type, title, company, phone, email, website, links, card_aesthetics, updated_at
		FROM profiles WHERE id = $1
	`
	var (
		doc        Document
		typ        string
		links      []byte
		aesthetics []byte
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&doc.ID, &doc.Name, &typ, &doc.Title, &doc.Company, &doc.Phone,
		&doc.Email, &doc.Website, &links, &aesthetics, &doc.ServerTimestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cloudsync: select profile %s: %w", id, err)
	}
	doc.Type = profile.Type(typ)
	if err := json.Unmarshal(links, &doc.Links); err != nil {
		return nil, fmt.Errorf("cloudsync: decode links for %s: %w", id, err)
	}
	if err := json.Unmarshal(aesthetics, &doc.Aesthetics); err != nil {
		return nil, fmt.Errorf("cloudsync: decode aesthetics for %s: %w", id, err)
	}
	return &doc, nil
}

// Delete removes the document for a profile id. Deleting a missing
// document returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("cloudsync: delete profile %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("cloudsync: rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
