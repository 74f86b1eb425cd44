package postgres

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/relocate/pkg/config"
)

func TestConnString(t *testing.T) {
	cfg := config.Audit{
		Driver:   config.DriverPostgres,
		Host:     "db.example.org",
		Port:     6543,
		Database: "transfers",
		TLS: config.TLS{
			Mode:    "verify-full",
			LocalCA: "/etc/relocate/local.pem",
			WebCA:   "/etc/relocate/web.pem",
		},
	}
	creds := config.Credentials{User: "xfer_writer", Password: "p@ss word"}

	tests := []struct {
		name     string
		mutate   func(c *config.Audit)
		local    bool
		wantMode string
		wantCA   string
		wantHost string
	}{
		{name: "web_ca", wantMode: "verify-full", wantCA: "/etc/relocate/web.pem", wantHost: "db.example.org:6543"},
		{name: "local_ca", local: true, wantMode: "verify-full", wantCA: "/etc/relocate/local.pem", wantHost: "db.example.org:6543"},
		{name: "tls_disabled", mutate: func(c *config.Audit) { c.TLS.Mode = "disable" }, wantMode: "disable", wantHost: "db.example.org:6543"},
		{name: "defaults", mutate: func(c *config.Audit) { c.TLS = config.TLS{}; c.Port = 0 }, wantMode: "verify-full", wantHost: "db.example.org:5432"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cfg
			if tt.mutate != nil {
				tt.mutate(&c)
			}

			u, err := url.Parse(ConnString(c, creds, tt.local))
			require.NoError(t, err)

			assert.Equal(t, "postgres", u.Scheme)
			assert.Equal(t, tt.wantHost, u.Host)
			assert.Equal(t, "/transfers", u.Path)
			assert.Equal(t, "xfer_writer", u.User.Username())
			pw, _ := u.User.Password()
			assert.Equal(t, "p@ss word", pw, "password should survive escaping")
			assert.Equal(t, tt.wantMode, u.Query().Get("sslmode"))
			assert.Equal(t, tt.wantCA, u.Query().Get("sslrootcert"))
		})
	}
}
