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
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
)

func init() {
	Register(&HCLParser{})
}

// 🔧 HCLParser implements the Parser interface for HCL files.
// The process environment is visible to expressions as env, e.g.
// password = env.RELOCATE_WRITER_PASSWORD.
type HCLParser struct{}

// 🔍 CanParse checks if this parser can handle the given file
func (p *HCLParser) CanParse(filename string) bool {
	return hasExt(filename, ".hcl")
}

// 📝 Parse parses the config from HCL
func (p *HCLParser) Parse(ctx context.Context, data []byte) (*Config, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(data, "config.hcl")
	if diags.HasErrors() {
		return nil, errors.Errorf("parsing HCL: %s", diags.Error())
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": environment(),
		},
	}

	// Define HCL schema
	type hclConfig struct {
		Audit struct {
			Driver   string `hcl:"driver"`
			Host     string `hcl:"host,optional"`
			Port     int    `hcl:"port,optional"`
			Database string `hcl:"database,optional"`
			Table    string `hcl:"table,optional"`
			Path     string `hcl:"path,optional"`
			TLS      *struct {
				Mode    string `hcl:"mode,optional"`
				LocalCA string `hcl:"local_ca,optional"`
				WebCA   string `hcl:"web_ca,optional"`
			} `hcl:"tls,block"`
			Roles []struct {
				Name        string `hcl:"name,label"`
				User        string `hcl:"user"`
				Password    string `hcl:"password,optional"`
				PasswordEnv string `hcl:"password_env,optional"`
			} `hcl:"role,block"`
		} `hcl:"audit,block"`
	}

	var hclCfg hclConfig
	diags = gohcl.DecodeBody(hclFile.Body, evalCtx, &hclCfg)
	if diags.HasErrors() {
		return nil, errors.Errorf("decoding HCL: %s", diags.Error())
	}

	// Convert to model
	a := hclCfg.Audit
	cfg := &Config{
		Audit: Audit{
			Driver:   a.Driver,
			Host:     a.Host,
			Port:     a.Port,
			Database: a.Database,
			Table:    a.Table,
			Path:     a.Path,
		},
	}
	if a.TLS != nil {
		cfg.Audit.TLS = TLS{Mode: a.TLS.Mode, LocalCA: a.TLS.LocalCA, WebCA: a.TLS.WebCA}
	}
	if len(a.Roles) > 0 {
		cfg.Audit.Roles = make(map[string]Credentials, len(a.Roles))
		for _, r := range a.Roles {
			if _, dup := cfg.Audit.Roles[r.Name]; dup {
				return nil, errors.Errorf("decoding HCL: role %q declared twice", r.Name)
			}
			cfg.Audit.Roles[r.Name] = Credentials{
				User:        r.User,
				Password:    r.Password,
				PasswordEnv: r.PasswordEnv,
			}
		}
	}

	return cfg, nil
}

func environment() cty.Value {
	vars := map[string]cty.Value{}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		vars[k] = cty.StringVal(v)
	}
	if len(vars) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(vars)
}
