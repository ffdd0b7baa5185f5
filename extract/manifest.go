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

package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/qri-io/jsonschema"

	surfsifter "github.com/gaestu/SurfSifter"
)

// ManifestFilename is the manifest document inside a run's output directory.
const ManifestFilename = "manifest.json"

// The manifest document is validated on load so that a stale or truncated
// file is rejected before ingestion trusts it. The schema intentionally only
// pins the structural contract; unknown extra fields stay legal to keep old
// manifests readable.
const manifestSchema = `{
	"type": "object",
	"required": ["version", "run_id", "evidence_id", "extractor_name", "entries"],
	"properties": {
		"version": {"type": "integer", "minimum": 1},
		"run_id": {"type": "string", "minLength": 1},
		"evidence_id": {"type": "string", "minLength": 1},
		"extractor_name": {"type": "string"},
		"entries": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["source_path", "dest_rel_path", "status"],
				"properties": {
					"source_path": {"type": "string", "minLength": 1},
					"dest_rel_path": {"type": "string", "minLength": 1},
					"status": {"enum": ["ok", "failed", "skipped"]}
				}
			}
		}
	}
}`

// WriteManifest persists a manifest document. The write goes through a
// temporary file and rename, so a crash never leaves a truncated manifest.
func WriteManifest(m *surfsifter.Manifest, path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(err, "cannot marshal manifest")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0640); err != nil {
		return errors.Wrap(err, "cannot write manifest")
	}
	return os.Rename(tmp, path)
}

// LoadManifest reads and validates a persisted manifest. Manifests from
// older engine versions load as long as they satisfy the structural schema.
func LoadManifest(path string) (*surfsifter.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read manifest")
	}

	rs := &jsonschema.Schema{}
	if err := json.Unmarshal([]byte(manifestSchema), rs); err != nil {
		return nil, errors.Wrap(err, "cannot parse manifest schema")
	}
	keyErrs, err := rs.ValidateBytes(context.Background(), data)
	if err != nil {
		return nil, errors.Wrap(err, "cannot validate manifest")
	}
	if len(keyErrs) > 0 {
		msgs := make([]string, 0, len(keyErrs))
		for _, keyErr := range keyErrs {
			msgs = append(msgs, keyErr.Error())
		}
		return nil, fmt.Errorf("invalid manifest %s: %s", path, strings.Join(msgs, "; "))
	}

	manifest := &surfsifter.Manifest{}
	if err := json.Unmarshal(data, manifest); err != nil {
		return nil, errors.Wrap(err, "cannot unmarshal manifest")
	}
	if manifest.Version > surfsifter.ManifestVersion {
		return nil, fmt.Errorf("manifest %s has version %d, this build reads up to %d",
			path, manifest.Version, surfsifter.ManifestVersion)
	}
	return manifest, nil
}
