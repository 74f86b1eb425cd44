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

// Package audit defines the transfer audit record and the append-only store it
// is written to.
package audit

import (
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// Column limits of the audit table.
const (
	MaxPathLength     = 255
	MaxFileNameLength = 255
	MaxPILength       = 100
	MaxRemarksLength  = 2048
)

// TransferRecord is one row of the audit trail. It is built in memory while an
// operation runs and written exactly once.
type TransferRecord struct {
	ID               int64 // assigned by the store
	Date             time.Time
	SourceDirectory  string
	TargetDirectory  string
	FileName         string
	PI               string
	SizeInBytes      int64
	ChecksumVerified bool
	Remarks          string
}

// NewRecord starts a record stamped with now, truncated to the second in UTC.
func NewRecord(now time.Time, source, target, pi, remarks string) *TransferRecord {
	return &TransferRecord{
		Date:            Timestamp(now),
		SourceDirectory: source,
		TargetDirectory: target,
		PI:              pi,
		Remarks:         remarks,
	}
}

// Timestamp normalizes t to the precision stored in the audit table.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// Validate checks the record against the table constraints.
func (r *TransferRecord) Validate() error {
	if r.SourceDirectory == "" {
		return errors.New("source directory is empty")
	}
	if r.TargetDirectory == "" {
		return errors.New("target directory is empty")
	}
	if r.SizeInBytes < 0 {
		return errors.Errorf("size %d is negative", r.SizeInBytes)
	}
	if r.Date.IsZero() {
		return errors.New("date is not set")
	}

	for _, f := range []struct {
		name  string
		value string
		max   int
	}{
		{"source directory", r.SourceDirectory, MaxPathLength},
		{"target directory", r.TargetDirectory, MaxPathLength},
		{"file name", r.FileName, MaxFileNameLength},
		{"pi", r.PI, MaxPILength},
		{"remarks", r.Remarks, MaxRemarksLength},
	} {
		if n := utf8.RuneCountInString(f.value); n > f.max {
			return errors.Errorf("%s is %d characters, limit is %d", f.name, n, f.max)
		}
	}
	return nil
}

// MarshalZerologObject logs every field so a record can be re-entered by hand.
func (r *TransferRecord) MarshalZerologObject(e *zerolog.Event) {
	e.Int64("id", r.ID).
		Time("date", r.Date).
		Str("source_directory", r.SourceDirectory).
		Str("target_directory", r.TargetDirectory).
		Str("file_name", r.FileName).
		Str("pi", r.PI).
		Int64("size_in_bytes", r.SizeInBytes).
		Bool("md5_check", r.ChecksumVerified).
		Str("remarks", r.Remarks)
}
