// Copyright (c) 2026 gaestu
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.

// Package pattern resolves artifact types to candidate path globs per known
// browser and OS layout. Pattern tables are data, not code: they are loaded
// from YAML, merged over the embedded defaults and handed to the discovery
// engine as a Set.
package pattern

import (
	_ "embed"
	"regexp"
	"sort"
	"strings"

	"github.com/forensicanalysis/fsdoublestar"
	"github.com/imdario/mergo"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	surfsifter "github.com/gaestu/SurfSifter"
)

//go:embed patterns.yaml
var defaultPatterns []byte

// Browser paths in the YAML tables use Windows-style environment variables
// regardless of the evidence OS. They expand to globs over the user homes.
var windowsEnvGlobs = map[string]string{
	"LOCALAPPDATA":       "Users/*/AppData/Local",
	"APPDATA":            "Users/*/AppData/Roaming",
	"USERPROFILE":        "Users/*",
	"PROGRAMFILES":       "Program Files",
	"PROGRAMFILES(X86)":  "Program Files (x86)",
	"SYSTEMROOT":         "Windows",
	"WINDIR":             "Windows",
}

var envVarRe = regexp.MustCompile(`%([^%]+)%`)

// Config is the declarative pattern table.
type Config struct {
	Browsers map[string]Browser `yaml:"browsers"`
}

// Browser describes one browser layout.
type Browser struct {
	DisplayName string              `yaml:"display_name"`
	Engine      string              `yaml:"engine"`
	Artifacts   map[string][]string `yaml:"artifacts"`
}

// Pattern is a single resolved glob for an (artifact type, browser) pair.
type Pattern struct {
	Browser      string
	Engine       string
	ArtifactType string
	Glob         string
}

// Set holds the resolved pattern tables for one processing run.
type Set struct {
	byArtifact map[string][]Pattern
}

// Default returns a Set built from the embedded pattern tables.
func Default() *Set {
	set, err := Load(nil)
	if err != nil {
		// the embedded tables are validated by tests
		panic(err)
	}
	return set
}

// Load parses a YAML pattern table and merges it over the embedded defaults.
// User entries win; defaults fill the gaps.
func Load(userYAML []byte) (*Set, error) {
	var cfg Config
	if len(userYAML) > 0 {
		if err := yaml.Unmarshal(userYAML, &cfg); err != nil {
			return nil, errors.Wrap(err, "cannot parse pattern table")
		}
	}

	var defaults Config
	if err := yaml.Unmarshal(defaultPatterns, &defaults); err != nil {
		return nil, errors.Wrap(err, "cannot parse embedded pattern table")
	}
	if err := mergo.Merge(&cfg, defaults); err != nil {
		return nil, errors.Wrap(err, "cannot merge pattern tables")
	}

	set := &Set{byArtifact: map[string][]Pattern{}}
	for browserName, browser := range cfg.Browsers {
		for artifactType, globs := range browser.Artifacts {
			for _, glob := range globs {
				set.byArtifact[artifactType] = append(set.byArtifact[artifactType], Pattern{
					Browser:      browserName,
					Engine:       browser.Engine,
					ArtifactType: artifactType,
					Glob:         NormalizePath(ExpandWindowsEnv(glob)),
				})
			}
		}
	}
	for _, patterns := range set.byArtifact {
		sort.Slice(patterns, func(i, j int) bool {
			if patterns[i].Browser != patterns[j].Browser {
				return patterns[i].Browser < patterns[j].Browser
			}
			return patterns[i].Glob < patterns[j].Glob
		})
	}
	return set, nil
}

// ArtifactTypes lists all known artifact types in sorted order.
func (s *Set) ArtifactTypes() []string {
	types := make([]string, 0, len(s.byArtifact))
	for t := range s.byArtifact {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// For returns all patterns of an artifact type. Unknown types are a
// ConfigurationError.
func (s *Set) For(artifactType string) ([]Pattern, error) {
	patterns, ok := s.byArtifact[artifactType]
	if !ok || len(patterns) == 0 {
		return nil, &surfsifter.ConfigurationError{
			ArtifactType: artifactType,
			Reason:       "no pattern set defined",
		}
	}
	return patterns, nil
}

// EngineOf returns the rendering engine of a browser known to the tables,
// for example "chromium" for chrome and edge or "gecko" for firefox. Parser
// routing happens per engine, not per browser brand.
func (s *Set) EngineOf(browser string) string {
	for _, patterns := range s.byArtifact {
		for _, p := range patterns {
			if p.Browser == browser {
				return p.Engine
			}
		}
	}
	return ""
}

// Match tests a path against all patterns of an artifact type and returns
// the first matching pattern. Matching is case-insensitive and separator
// agnostic.
func (s *Set) Match(artifactType, path string) (Pattern, bool) {
	patterns, err := s.For(artifactType)
	if err != nil {
		return Pattern{}, false
	}
	normalized := strings.ToLower(NormalizePath(path))
	for _, p := range patterns {
		ok, err := fsdoublestar.Match(strings.ToLower(p.Glob), normalized)
		if err == nil && ok {
			return p, true
		}
	}
	return Pattern{}, false
}

// NormalizePath converts backslashes to slashes and strips a leading slash,
// so Windows evidence paths compare equal regardless of separator style.
func NormalizePath(path string) string {
	path = strings.ReplaceAll(path, `\`, "/")
	return strings.TrimPrefix(path, "/")
}

// ExpandWindowsEnv replaces %VAR% references with their glob equivalents.
// Unknown variables expand to a single * segment so the pattern stays usable.
func ExpandWindowsEnv(path string) string {
	return envVarRe.ReplaceAllStringFunc(path, func(match string) string {
		name := strings.ToUpper(match[1 : len(match)-1])
		if glob, ok := windowsEnvGlobs[name]; ok {
			return glob
		}
		return "*"
	})
}

// Profile extracts the browser profile discriminator from a matched path,
// for example "Default" or "Profile 2" for Chromium layouts or the profile
// directory name for Firefox. Returns "" when no profile segment is found.
func Profile(path string) string {
	segments := strings.Split(NormalizePath(path), "/")
	for i, seg := range segments {
		if seg == "Default" || strings.HasPrefix(seg, "Profile ") {
			return seg
		}
		// Firefox: .../Profiles/<salt>.<name>/places.sqlite
		if (seg == "Profiles" || seg == "firefox") && i+1 < len(segments)-1 {
			return segments[i+1]
		}
	}
	return ""
}
