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

package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/atlas-linq/tapcard/pkg/vcard"
)

// ErrNotFound indicates the history entry does not exist.
var ErrNotFound = errors.New("history: entry not found")

const schema = `
CREATE TABLE IF NOT EXISTS history (
	id               TEXT PRIMARY KEY,
	kind             TEXT NOT NULL,
	method           TEXT NOT NULL,
	occurred_at      INTEGER NOT NULL,
	counterpart_id   TEXT NOT NULL DEFAULT '',
	counterpart_name TEXT NOT NULL DEFAULT '',
	location         TEXT NOT NULL DEFAULT '',
	tag_id           TEXT NOT NULL DEFAULT '',
	tag_capacity     INTEGER NOT NULL DEFAULT 0,
	deleted          INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_history_occurred_at ON history(occurred_at);
`

// Store persists history entries in a local SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path and ensures
// the schema exists. Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append inserts a new entry, assigning an id when empty.
func (s *Store) Append(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	query := `
		INSERT INTO history
			(id, kind, method, occurred_at, counterpart_id, counterpart_name, location, tag_id, tag_capacity, deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID, string(e.Kind), string(e.Method), e.OccurredAt.Unix(),
		e.CounterpartID, e.CounterpartName, e.Location, e.TagID, e.TagCapacity, boolToInt(e.Deleted))
	if err != nil {
		return fmt.Errorf("history: append: %w", err)
	}
	return nil
}

// List returns entries newest first. Soft-deleted entries are included only
// when includeDeleted is true.
func (s *Store) List(ctx context.Context, includeDeleted bool) ([]*Entry, error) {
	query := `
		SELECT id, kind, method, occurred_at, counterpart_id, counterpart_name, location, tag_id, tag_capacity, deleted
		FROM history
	`
	if !includeDeleted {
		query += ` WHERE deleted = 0`
	}
	query += ` ORDER BY occurred_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	var result []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: list rows: %w", err)
	}
	return result, nil
}

// Get returns one entry by id, soft-deleted or not.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	query := `
		SELECT id, kind, method, occurred_at, counterpart_id, counterpart_name, location, tag_id, tag_capacity, deleted
		FROM history WHERE id = ?
	`
	row := s.db.QueryRowContext(ctx, query, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// SoftDelete marks an entry deleted without removing it.
func (s *Store) SoftDelete(ctx context.Context, id string) error {
	return s.setDeleted(ctx, id, true)
}

// Restore clears the soft-delete flag.
func (s *Store) Restore(ctx context.Context, id string) error {
	return s.setDeleted(ctx, id, false)
}

func (s *Store) setDeleted(ctx context.Context, id string, deleted bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE history SET deleted = ? WHERE id = ?`, boolToInt(deleted), id)
	if err != nil {
		return fmt.Errorf("history: set deleted: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("history: rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Purge hard-deletes all soft-deleted entries and returns how many rows
// were removed.
func (s *Store) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM history WHERE deleted = 1`)
	if err != nil {
		return 0, fmt.Errorf("history: purge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("history: rows affected: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		e        Entry
		kind     string
		method   string
		occurred int64
		deleted  int
	)
	if err := row.Scan(&e.ID, &kind, &method, &occurred,
		&e.CounterpartID, &e.CounterpartName, &e.Location, &e.TagID, &e.TagCapacity, &deleted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("history: scan: %w", err)
	}
	e.Kind = EntryKind(kind)
	e.Method = vcard.Method(method)
	e.OccurredAt = time.Unix(occurred, 0).UTC()
	e.Deleted = deleted != 0
	return &e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
