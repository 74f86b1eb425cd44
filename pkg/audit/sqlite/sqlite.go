// Copyright 2025 walteh LLC
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

// Package sqlite stores the audit trail in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/walteh/relocate/pkg/audit"
	"github.com/walteh/relocate/pkg/config"
	"gitlab.com/tozd/go/errors"
)

func init() {
	audit.Register(config.DriverSQLite, func(ctx context.Context, cfg config.Audit, _ audit.OpenOptions) (audit.Store, error) {
		return Open(ctx, cfg.Path, cfg.Table)
	})
}

// Store is an audit.Store backed by database/sql and go-sqlite3.
type Store struct {
	db    *sql.DB
	table string
}

var (
	_ audit.Store    = (*Store)(nil)
	_ audit.Lister   = (*Store)(nil)
	_ audit.Migrator = (*Store)(nil)
)

// Open opens (creating if needed) the database at path and ensures the table exists.
func Open(ctx context.Context, path, table string) (*Store, error) {
	if table == "" {
		table = config.DefaultTable
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, errors.Errorf("opening sqlite database %s: %w", path, err)
	}
	// a single writer per process, sqlite serializes anyway
	db.SetMaxOpenConns(1)

	s := &Store{db: db, table: table}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	zerolog.Ctx(ctx).Debug().Str("path", path).Str("table", table).Msg("sqlite audit store opened")
	return s, nil
}

// Migrate creates the audit table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			date DATETIME NOT NULL,
			source_directory VARCHAR(255) NOT NULL,
			target_directory VARCHAR(255) NOT NULL,
			file_name VARCHAR(255) NOT NULL DEFAULT '',
			pi VARCHAR(100) NOT NULL DEFAULT '',
			size_in_bytes INTEGER NOT NULL CHECK (size_in_bytes >= 0),
			md5_check BOOLEAN NOT NULL DEFAULT 0,
			remarks VARCHAR(2048) NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_pi ON %[1]s(pi, date);
	`, s.table))
	if err != nil {
		return errors.Errorf("creating table %s: %w", s.table, err)
	}
	return nil
}

// Append inserts rec and returns its row id.
func (s *Store) Append(ctx context.Context, rec audit.TransferRecord) (int64, error) {
	if err := audit.CheckRecord(&rec); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (date, source_directory, target_directory, file_name, pi, size_in_bytes, md5_check, remarks)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, s.table),
		audit.Timestamp(rec.Date),
		rec.SourceDirectory,
		rec.TargetDirectory,
		rec.FileName,
		rec.PI,
		rec.SizeInBytes,
		rec.ChecksumVerified,
		rec.Remarks,
	)
	if err != nil {
		return 0, errors.Errorf("inserting transfer record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Errorf("reading inserted id: %w", err)
	}
	return id, nil
}

// List returns matching records, newest first.
func (s *Store) List(ctx context.Context, q audit.Query) ([]audit.TransferRecord, error) {
	var (
		where []string
		args  []any
	)
	if q.PI != "" {
		where = append(where, "pi = ?")
		args = append(args, q.PI)
	}
	if q.Source != "" {
		where = append(where, "source_directory = ?")
		args = append(args, q.Source)
	}

	query := fmt.Sprintf(`
		SELECT id, date, source_directory, target_directory, file_name, pi, size_in_bytes, md5_check, remarks
		FROM %s`, s.table)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Errorf("querying transfer records: %w", err)
	}
	defer rows.Close()

	var records []audit.TransferRecord
	for rows.Next() {
		var r audit.TransferRecord
		if err := rows.Scan(
			&r.ID,
			&r.Date,
			&r.SourceDirectory,
			&r.TargetDirectory,
			&r.FileName,
			&r.PI,
			&r.SizeInBytes,
			&r.ChecksumVerified,
			&r.Remarks,
		); err != nil {
			return nil, errors.Errorf("scanning transfer record: %w", err)
		}
		r.Date = r.Date.UTC()
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Errorf("iterating transfer records: %w", err)
	}
	return records, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
