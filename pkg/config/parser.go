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
	"encoding/json"
	"path/filepath"
	"strings"

	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// 🔌 Parser is the interface for config parsers
type Parser interface {
	// 📝 Parse parses the config from bytes
	Parse(ctx context.Context, data []byte) (*Config, error)
	// 🔍 CanParse checks if this parser can handle the given file
	CanParse(filename string) bool
}

var (
	// 🗺️ parsers is a list of available parsers
	parsers []Parser
)

// 📝 Register registers a parser
func Register(p Parser) {
	parsers = append(parsers, p)
}

// 🎯 GetParser returns a parser that can handle the given file
func GetParser(filename string) Parser {
	for _, p := range parsers {
		if p.CanParse(filename) {
			return p
		}
	}
	return nil
}

func hasExt(filename string, exts ...string) bool {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(filename)))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

func init() {
	Register(&YAMLParser{})
	Register(&JSONParser{})
}

// 🔧 YAMLParser implements the Parser interface for YAML files
type YAMLParser struct{}

func (p *YAMLParser) CanParse(filename string) bool {
	return hasExt(filename, ".yaml", ".yml")
}

func (p *YAMLParser) Parse(ctx context.Context, data []byte) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(string(data)))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, errors.Errorf("parsing YAML: %w", err)
	}
	return &cfg, nil
}

// 🔧 JSONParser implements the Parser interface for JSON files
type JSONParser struct{}

func (p *JSONParser) CanParse(filename string) bool {
	return hasExt(filename, ".json")
}

func (p *JSONParser) Parse(ctx context.Context, data []byte) (*Config, error) {
	var cfg Config
	decoder := json.NewDecoder(strings.NewReader(string(data)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		return nil, errors.Errorf("parsing JSON: %w", err)
	}
	return &cfg, nil
}
