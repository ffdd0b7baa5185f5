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

// Package cmd provides the surfsifter subcommands.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gaestu/SurfSifter/evidence"
	"github.com/gaestu/SurfSifter/pattern"
)

func newLogger(cmd *cobra.Command) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(cmd.ErrOrStderr())
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

// loadPatterns returns the built-in pattern tables, merged with a user YAML
// file when one is given.
func loadPatterns(path string) (*pattern.Set, error) {
	if path == "" {
		return pattern.Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read pattern file")
	}
	return pattern.Load(data)
}

// openSource opens a mounted evidence directory. The evidence id defaults to
// the directory basename.
func openSource(dir, evidenceID string) (*evidence.Source, error) {
	if evidenceID == "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, err
		}
		evidenceID = filepath.Base(abs)
	}
	return evidence.NewDirectorySource(evidenceID, dir)
}

// signalContext is cancelled on SIGINT or SIGTERM, so an interrupted run is
// marked failed instead of being abandoned mid-transition.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func sliceOrNil(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	return values
}

func intsOrNil(values []int) []int {
	if len(values) == 0 {
		return nil
	}
	return values
}
