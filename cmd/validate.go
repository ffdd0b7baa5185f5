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

package cmd

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	surfsifter "github.com/gaestu/SurfSifter"
	"github.com/gaestu/SurfSifter/extract"
)

// Validate returns the validate command, checking a staging directory
// against its manifest: the document must be structurally valid and every
// successfully staged file must still match its recorded SHA-256.
func Validate() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <output-dir>",
		Short: "Verify a staging directory against its manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifest, err := extract.LoadManifest(filepath.Join(args[0], extract.ManifestFilename))
			if err != nil {
				return err
			}

			var ok, failed, mismatched int
			for _, entry := range manifest.Entries {
				if entry.Status != surfsifter.StatusOK {
					failed++
					continue
				}
				sum, err := fileSHA256(filepath.Join(args[0], filepath.FromSlash(entry.DestRelPath)))
				if err != nil || sum != entry.SHA256 {
					mismatched++
					fmt.Fprintf(cmd.OutOrStdout(), "mismatch: %s\n", entry.DestRelPath)
					continue
				}
				ok++
			}

			fmt.Fprintf(cmd.OutOrStdout(), "manifest of run %s: %d verified, %d failed entries, %d mismatches\n",
				manifest.RunID, ok, failed, mismatched)
			if mismatched > 0 {
				return errors.Errorf("%d staged files do not match their manifest", mismatched)
			}
			return nil
		},
	}
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
