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

package config

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 🎭 Role selects which credential set opens the audit store
type Role string

const (
	RoleWriter Role = "writer"
	RoleReader Role = "reader"
	RoleAdmin  Role = "admin"
)

// Supported audit store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DefaultTable is the audit table name when none is configured.
const DefaultTable = "data_transfers"

const defaultPostgresPort = 5432

// DefaultSSLMode is used for postgres when tls.mode is empty.
const DefaultSSLMode = "verify-full"

var sslModes = map[string]bool{
	"disable":     true,
	"allow":       true,
	"prefer":      true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// 🎯 ParseRole maps a role name to a Role. Unknown names fall back to writer.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleReader:
		return RoleReader
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleWriter
	}
}

// 🔑 Credentials is one database login
type Credentials struct {
	User        string `json:"user" yaml:"user"`
	Password    string `json:"password,omitempty" yaml:"password,omitempty"`
	PasswordEnv string `json:"password_env,omitempty" yaml:"password_env,omitempty"` // read the password from this variable
}

// 🔒 TLS holds the two CA bundles a deployment may verify the server against
type TLS struct {
	Mode    string `json:"mode,omitempty" yaml:"mode,omitempty"` // libpq sslmode, verify-full by default
	LocalCA string `json:"local_ca,omitempty" yaml:"local_ca,omitempty"`
	WebCA   string `json:"web_ca,omitempty" yaml:"web_ca,omitempty"`
}

// 🗄️ Audit describes the audit store connection
type Audit struct {
	Driver   string                 `json:"driver" yaml:"driver"`
	Host     string                 `json:"host,omitempty" yaml:"host,omitempty"`
	Port     int                    `json:"port,omitempty" yaml:"port,omitempty"`
	Database string                 `json:"database,omitempty" yaml:"database,omitempty"`
	Table    string                 `json:"table,omitempty" yaml:"table,omitempty"`
	Path     string                 `json:"path,omitempty" yaml:"path,omitempty"` // sqlite database file
	TLS      TLS                    `json:"tls,omitempty" yaml:"tls,omitempty"`
	Roles    map[string]Credentials `json:"roles,omitempty" yaml:"roles,omitempty"`
}

// 📚 Config represents the complete configuration
type Config struct {
	Audit Audit `json:"audit" yaml:"audit"`
}

// 🎯 Load loads the configuration from a file
func Load(ctx context.Context, path string) (*Config, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", path).Msg("loading configuration")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}

	p := GetParser(path)
	if p == nil {
		return nil, errors.Errorf("no parser found for file: %s", path)
	}

	cfg, err := p.Parse(ctx, data)
	if err != nil {
		return nil, errors.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating config: %w", err)
	}

	logger.Debug().Str("config", cfg.String()).Msg("configuration loaded")
	return cfg, nil
}

// 🔍 Validate checks the configuration and fills in defaults
func (cfg *Config) Validate() error {
	a := &cfg.Audit

	a.Driver = strings.ToLower(strings.TrimSpace(a.Driver))
	if a.Table == "" {
		a.Table = DefaultTable
	}
	if !tableNamePattern.MatchString(a.Table) {
		return errors.Errorf("audit.table %q is not a valid identifier", a.Table)
	}

	switch a.Driver {
	case "":
		return errors.Errorf("audit.driver is required")
	case DriverSQLite:
		if a.Path == "" {
			return errors.Errorf("audit.path is required for the sqlite driver")
		}
	case DriverPostgres:
		if a.Host == "" {
			return errors.Errorf("audit.host is required for the postgres driver")
		}
		if a.Database == "" {
			return errors.Errorf("audit.database is required for the postgres driver")
		}
		if a.Port == 0 {
			a.Port = defaultPostgresPort
		}
		if a.Port < 0 || a.Port > 65535 {
			return errors.Errorf("audit.port %d is out of range", a.Port)
		}
		if a.TLS.Mode == "" {
			a.TLS.Mode = DefaultSSLMode
		}
		if !sslModes[a.TLS.Mode] {
			return errors.Errorf("audit.tls.mode %q is not a valid sslmode", a.TLS.Mode)
		}
		for name := range a.Roles {
			if r := Role(name); r != RoleWriter && r != RoleReader && r != RoleAdmin {
				return errors.Errorf("audit.roles: unknown role %q", name)
			}
		}
	default:
		return errors.Errorf("audit.driver %q is not supported", a.Driver)
	}

	return nil
}

// 🔑 Credentials returns the login for role, resolving password_env.
func (a *Audit) Credentials(role Role) (Credentials, error) {
	c, ok := a.Roles[string(role)]
	if !ok || c.User == "" {
		return Credentials{}, errors.Errorf("no credentials configured for role %s", role)
	}
	if c.Password == "" && c.PasswordEnv != "" {
		pw, ok := os.LookupEnv(c.PasswordEnv)
		if !ok {
			return Credentials{}, errors.Errorf("role %s: environment variable %s is not set", role, c.PasswordEnv)
		}
		c.Password = pw
	}
	return c, nil
}

// CAFile picks the local or the web CA bundle. Empty means the system pool.
func (a *Audit) CAFile(local bool) string {
	if local {
		return a.TLS.LocalCA
	}
	return a.TLS.WebCA
}

// 📝 String returns a representation of the config without secrets
func (cfg *Config) String() string {
	a := cfg.Audit
	if a.Driver == DriverSQLite {
		return fmt.Sprintf("sqlite:%s/%s", a.Path, a.Table)
	}
	return fmt.Sprintf("%s://%s:%d/%s/%s", a.Driver, a.Host, a.Port, a.Database, a.Table)
}
