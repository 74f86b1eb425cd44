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

package audit

import (
	"context"
	"sort"
	"sync"

	"github.com/walteh/relocate/pkg/config"
	"gitlab.com/tozd/go/errors"
)

// ErrInvalidRecord is returned by stores for records that fail Validate.
var ErrInvalidRecord = errors.Base("invalid transfer record")

// Store is the append-only audit trail. Append persists one record and
// returns the identifier the store assigned to it.
type Store interface {
	Append(ctx context.Context, rec TransferRecord) (int64, error)
	Close() error
}

// Query filters a listing. Zero values mean no filter.
type Query struct {
	PI     string
	Source string
	Limit  int
}

// Lister reads the audit trail back, newest first.
type Lister interface {
	List(ctx context.Context, q Query) ([]TransferRecord, error)
}

// Migrator creates the audit table when it is missing.
type Migrator interface {
	Migrate(ctx context.Context) error
}

// Opener builds a Store for one driver.
type Opener func(ctx context.Context, cfg config.Audit, opts OpenOptions) (Store, error)

// OpenOptions selects the login and trust settings for a connection.
type OpenOptions struct {
	Role  config.Role
	Local bool // verify the server against the local CA instead of the web CA
}

var (
	openersMu sync.RWMutex
	openers   = map[string]Opener{}
)

// Register makes a driver available to Open. Driver packages call it from init.
func Register(driver string, open Opener) {
	openersMu.Lock()
	defer openersMu.Unlock()
	if _, dup := openers[driver]; dup {
		panic("audit: Register called twice for driver " + driver)
	}
	openers[driver] = open
}

// Drivers lists the registered driver names.
func Drivers() []string {
	openersMu.RLock()
	defer openersMu.RUnlock()
	names := make([]string, 0, len(openers))
	for name := range openers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open connects to the store described by cfg.
func Open(ctx context.Context, cfg config.Audit, opts OpenOptions) (Store, error) {
	openersMu.RLock()
	open, ok := openers[cfg.Driver]
	openersMu.RUnlock()
	if !ok {
		return nil, errors.Errorf("audit driver %q is not registered (have %v)", cfg.Driver, Drivers())
	}
	return open(ctx, cfg, opts)
}

// CheckRecord validates rec and wraps a failure in ErrInvalidRecord.
func CheckRecord(rec *TransferRecord) error {
	if err := rec.Validate(); err != nil {
		return errors.Errorf("%w: %s", ErrInvalidRecord, err.Error())
	}
	return nil
}
