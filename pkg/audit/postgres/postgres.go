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

// Package postgres stores the audit trail in PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/walteh/relocate/pkg/audit"
	"github.com/walteh/relocate/pkg/config"
	"gitlab.com/tozd/go/errors"
)

func init() {
	audit.Register(config.DriverPostgres, func(ctx context.Context, cfg config.Audit, opts audit.OpenOptions) (audit.Store, error) {
		creds, err := cfg.Credentials(opts.Role)
		if err != nil {
			return nil, err
		}
		return Open(ctx, ConnString(cfg, creds, opts.Local), cfg.Table)
	})
}

// ConnString builds a pgx connection URL for cfg logged in as creds.
// local selects the local CA bundle instead of the web one.
func ConnString(cfg config.Audit, creds config.Credentials, local bool) string {
	q := url.Values{}
	mode := cfg.TLS.Mode
	if mode == "" {
		mode = config.DefaultSSLMode
	}
	q.Set("sslmode", mode)
	if ca := cfg.CAFile(local); ca != "" && mode != "disable" {
		q.Set("sslrootcert", ca)
	}
	q.Set("application_name", "relocate")

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(creds.User, creds.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		Path:     "/" + cfg.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Store is an audit.Store backed by a pgx connection pool.
type Store struct {
	pool  *pgxpool.Pool
	table string // sanitized identifier
}

var (
	_ audit.Store    = (*Store)(nil)
	_ audit.Lister   = (*Store)(nil)
	_ audit.Migrator = (*Store)(nil)
)

// Open connects to connString and checks the connection.
func Open(ctx context.Context, connString, table string) (*Store, error) {
	if table == "" {
		table = config.DefaultTable
	}

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, errors.Errorf("parsing connection string: %w", err)
	}
	// one insert per invocation
	poolConfig.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Errorf("pinging postgres: %w", err)
	}

	zerolog.Ctx(ctx).Debug().
		Str("host", poolConfig.ConnConfig.Host).
		Str("database", poolConfig.ConnConfig.Database).
		Str("user", poolConfig.ConnConfig.User).
		Str("table", table).
		Msg("postgres audit store opened")

	return NewStore(pool, table), nil
}

// NewStore wraps an existing pool.
func NewStore(pool *pgxpool.Pool, table string) *Store {
	if table == "" {
		table = config.DefaultTable
	}
	return &Store{pool: pool, table: pgx.Identifier{table}.Sanitize()}
}

// Migrate creates the audit table if it does not exist. It needs the admin role.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			date TIMESTAMPTZ NOT NULL,
			source_directory VARCHAR(255) NOT NULL,
			target_directory VARCHAR(255) NOT NULL,
			file_name VARCHAR(255) NOT NULL DEFAULT '',
			pi VARCHAR(100) NOT NULL DEFAULT '',
			size_in_bytes BIGINT NOT NULL CHECK (size_in_bytes >= 0),
			md5_check BOOLEAN NOT NULL DEFAULT FALSE,
			remarks VARCHAR(2048) NOT NULL DEFAULT ''
		)
	`, s.table))
	if err != nil {
		return errors.Errorf("creating table %s: %w", s.table, err)
	}
	return nil
}

// Append inserts rec and returns the id the database assigned.
func (s *Store) Append(ctx context.Context, rec audit.TransferRecord) (int64, error) {
	if err := audit.CheckRecord(&rec); err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (date, source_directory, target_directory, file_name, pi, size_in_bytes, md5_check, remarks)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, s.table)

	var id int64
	err := s.pool.QueryRow(ctx, query,
		audit.Timestamp(rec.Date),
		rec.SourceDirectory,
		rec.TargetDirectory,
		rec.FileName,
		rec.PI,
		rec.SizeInBytes,
		rec.ChecksumVerified,
		rec.Remarks,
	).Scan(&id)
	if err != nil {
		return 0, errors.Errorf("inserting transfer record: %w", err)
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
		args = append(args, q.PI)
		where = append(where, fmt.Sprintf("pi = $%d", len(args)))
	}
	if q.Source != "" {
		args = append(args, q.Source)
		where = append(where, fmt.Sprintf("source_directory = $%d", len(args)))
	}

	query := fmt.Sprintf(`
		SELECT id, date, source_directory, target_directory, file_name, pi, size_in_bytes, md5_check, remarks
		FROM %s`, s.table)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC"
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
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

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
