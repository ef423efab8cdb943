// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

// Package catalog lists known libretro cores and matches them to ROMs.
package catalog

import (
	"encoding/hex"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// CodeBadCatalog marks catalog parse and validation errors.
const CodeBadCatalog = "BAD_CATALOG"

// Entry describes one downloadable core.
type Entry struct {
	Name        string   `yaml:"name" json:"name" jsonschema:"pattern=^[a-z][a-z0-9_-]*$,maxLength=64"`
	System      string   `yaml:"system" json:"system" jsonschema:"minLength=1"`
	Filename    string   `yaml:"filename" json:"filename" jsonschema:"minLength=1"`
	URL         string   `yaml:"url" json:"url" jsonschema:"format=uri"`
	Extensions  []string `yaml:"extensions" json:"extensions" jsonschema:"minItems=1"`
	Checksum    string   `yaml:"checksum,omitempty" json:"checksum,omitempty" jsonschema:"pattern=^[0-9a-f]{64}$"`
	MinVersion  string   `yaml:"min_version,omitempty" json:"min_version,omitempty"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
}

// Catalog is a core manifest file.
type Catalog struct {
	Cores []Entry `yaml:"cores" json:"cores"`
}

// maxNameLength is the maximum allowed length for core names.
const maxNameLength = 64

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// Parse parses and validates a catalog file.
func Parse(data []byte) (*Catalog, error) {
	if len(data) == 0 {
		return nil, oops.Code(CodeBadCatalog).Errorf("catalog data is empty")
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, oops.Code(CodeBadCatalog).Hint("catalog must be YAML").Wrap(err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load reads a catalog file from disk.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return nil, oops.Code(CodeBadCatalog).With("path", path).Wrap(err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, oops.With("path", path).Wrap(err)
	}
	return c, nil
}

// Validate checks every entry and that names are unique.
func (c *Catalog) Validate() error {
	if len(c.Cores) == 0 {
		return oops.Code(CodeBadCatalog).Errorf("catalog lists no cores")
	}
	seen := make(map[string]bool, len(c.Cores))
	for i := range c.Cores {
		e := &c.Cores[i]
		if err := e.Validate(); err != nil {
			return oops.With("index", i).Wrap(err)
		}
		if seen[e.Name] {
			return oops.Code(CodeBadCatalog).With("name", e.Name).Errorf("duplicate core name %q", e.Name)
		}
		seen[e.Name] = true
	}
	return nil
}

// Validate checks entry constraints and normalizes extensions to lower
// case without a leading dot.
func (e *Entry) Validate() error {
	errb := oops.Code(CodeBadCatalog).With("name", e.Name)
	if e.Name == "" || !namePattern.MatchString(e.Name) {
		return errb.Errorf("name %q must start with a-z and contain only a-z, 0-9, '_' or '-'", e.Name)
	}
	if len(e.Name) > maxNameLength {
		return errb.Errorf("name must be %d characters or less, got %d", maxNameLength, len(e.Name))
	}
	if strings.TrimSpace(e.System) == "" {
		return errb.Errorf("system is required")
	}
	if e.Filename == "" || e.Filename != filepath.Base(e.Filename) || e.Filename == "." || e.Filename == ".." {
		return errb.With("filename", e.Filename).Errorf("filename must be a bare file name")
	}
	u, err := url.Parse(e.URL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return errb.With("url", e.URL).Errorf("url must be an absolute http(s) URL")
	}
	if len(e.Extensions) == 0 {
		return errb.Errorf("at least one extension is required")
	}
	for i, ext := range e.Extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext == "" {
			return errb.Errorf("extension %d is empty", i)
		}
		e.Extensions[i] = ext
	}
	if e.Checksum != "" {
		b, err := hex.DecodeString(e.Checksum)
		if err != nil || len(b) != 32 {
			return errb.With("checksum", e.Checksum).Errorf("checksum must be a hex blake2b-256 digest")
		}
	}
	if e.MinVersion != "" {
		if _, err := semver.NewConstraint(e.MinVersion); err != nil {
			return errb.With("min_version", e.MinVersion).Wrap(err)
		}
	}
	return nil
}

// Accepts reports whether the core lists ext, with or without a dot.
func (e *Entry) Accepts(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	return slices.Contains(e.Extensions, ext)
}

// NightlyURL returns the fallback download location. It equals URL when
// the URL has no stable path segment.
func (e *Entry) NightlyURL() string {
	return strings.Replace(e.URL, "/stable/", "/nightly/", 1)
}

// Compatible reports whether a core's reported library version satisfies
// MinVersion. Cores often report "1.8.1 5cb5bcc" or "v1.15"; only the first
// field is compared.
func (e *Entry) Compatible(libraryVersion string) (bool, error) {
	if e.MinVersion == "" {
		return true, nil
	}
	c, err := semver.NewConstraint(e.MinVersion)
	if err != nil {
		return false, oops.Code(CodeBadCatalog).With("min_version", e.MinVersion).Wrap(err)
	}
	fields := strings.Fields(libraryVersion)
	if len(fields) == 0 {
		return false, oops.Code("BAD_VERSION").With("core", e.Name).Errorf("core reports no version")
	}
	v, err := semver.NewVersion(fields[0])
	if err != nil {
		return false, oops.Code("BAD_VERSION").With("core", e.Name).With("version", libraryVersion).Wrap(err)
	}
	return c.Check(v), nil
}

// Find returns the entry with the given name.
func (c *Catalog) Find(name string) (Entry, bool) {
	for _, e := range c.Cores {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}
