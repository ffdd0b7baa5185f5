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

// Package extract copies discovered candidate files into an append-only
// per-run staging directory. Every copy streams through MD5 and SHA-256 in a
// single pass and becomes a manifest entry; the manifest plus the staged
// bytes is all later stages ever need. The engine never writes to the
// evidence source.
package extract

import (
	"context"
	"crypto/md5" // #nosec
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	surfsifter "github.com/gaestu/SurfSifter"
	"github.com/gaestu/SurfSifter/evidence"
)

// Companion suffixes of multi-file formats, copied alongside the primary
// file and tagged with the same group.
var companionSuffixes = []string{"-wal", "-journal", "-shm"}

// Engine stages candidate files into an output directory.
type Engine struct {
	outputDir  string
	workers    int
	flushEvery int
	log        *logrus.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers bounds the copy worker pool. The pool is only used when the
// evidence source declares itself safe for concurrent readers.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(log *logrus.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// New creates a staging engine writing below outputDir.
func New(outputDir string, opts ...Option) *Engine {
	e := &Engine{outputDir: outputDir, workers: 4, flushEvery: 25, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract copies all candidates (and their companion files) from the
// evidence into the staging directory and returns the manifest. A failed
// copy records a failed entry and the batch continues; the returned error is
// non-nil only for cancellation or an unusable output directory. On
// cancellation the manifest contains exactly the completed entries and no
// partial file remains staged.
func (e *Engine) Extract(ctx context.Context, run *surfsifter.Run, src *evidence.Source, candidates []surfsifter.Candidate) (*surfsifter.Manifest, error) {
	if err := os.MkdirAll(filepath.Join(e.outputDir, "extracted"), 0750); err != nil {
		return nil, errors.Wrap(err, "cannot create staging directory")
	}

	jobs := expandCompanions(src, candidates)

	sink := newManifestSink(run, filepath.Join(e.outputDir, ManifestFilename), e.flushEvery)

	workers := e.workers
	if !src.ThreadSafe() {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, job := range jobs {
		job := job
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entry, err := e.copyOne(gctx, src, job)
			if err != nil {
				// cancellation mid-copy: partial file already removed,
				// no entry is recorded
				return err
			}
			return sink.add(entry)
		})
	}

	err := g.Wait()
	if err == nil {
		// the job loop stops silently once the context is done
		err = ctx.Err()
	}
	manifest := sink.manifest()
	if err != nil {
		// keep the completed entries for a later retry
		_ = WriteManifest(manifest, filepath.Join(e.outputDir, ManifestFilename))
		return manifest, err
	}
	if err := WriteManifest(manifest, filepath.Join(e.outputDir, ManifestFilename)); err != nil {
		return manifest, err
	}
	return manifest, nil
}

type job struct {
	candidate surfsifter.Candidate
	group     string
}

// expandCompanions adds staging jobs for companion files found alongside
// each candidate. A companion that is itself a candidate is not duplicated.
func expandCompanions(src *evidence.Source, candidates []surfsifter.Candidate) []job {
	known := map[surfsifter.CandidateKey]bool{}
	for _, c := range candidates {
		known[c.Key()] = true
	}

	var jobs []job
	for _, c := range candidates {
		jobs = append(jobs, job{candidate: c, group: c.LogicalPath})
		for _, suffix := range companionSuffixes {
			companionPath := c.LogicalPath + suffix
			key := surfsifter.CandidateKey{PartitionIndex: c.PartitionIndex, LogicalPath: companionPath}
			if known[key] || !src.Exists(c.PartitionIndex, companionPath) {
				continue
			}
			known[key] = true
			companion := c
			companion.LogicalPath = companionPath
			companion.Size = 0
			if info, err := src.Stat(c.PartitionIndex, companionPath); err == nil {
				companion.Size = info.Size()
				mtime := info.ModTime().UTC()
				companion.Mtime = &mtime
			}
			jobs = append(jobs, job{candidate: companion, group: c.LogicalPath})
		}
	}
	return jobs
}

// DestRelPath returns the deterministic staging location of a candidate:
// extracted/<artifact>/<browser>/<discriminator>/<filename>. The
// discriminator hashes the partition and source directory, so equal file
// names from different profiles never collide and reruns produce identical
// paths.
func DestRelPath(c surfsifter.Candidate) string {
	dir := path.Dir(c.LogicalPath)
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%s", c.PartitionIndex, dir)))
	discriminator := hex.EncodeToString(sum[:4])
	return path.Join("extracted", c.ArtifactType, c.Browser, discriminator, path.Base(c.LogicalPath))
}

func (e *Engine) copyOne(ctx context.Context, src *evidence.Source, j job) (surfsifter.ManifestEntry, error) {
	c := j.candidate
	entry := surfsifter.ManifestEntry{
		SourcePath:     c.LogicalPath,
		SourceInode:    c.ForensicPath,
		PartitionIndex: c.PartitionIndex,
		ArtifactType:   c.ArtifactType,
		Browser:        c.Browser,
		Group:          j.group,
		DestRelPath:    DestRelPath(c),
		DestFilename:   path.Base(c.LogicalPath),
		ExtractedAt:    surfsifter.Timestamp(time.Now()),
	}

	reader, err := src.Open(c.PartitionIndex, c.LogicalPath)
	if err != nil {
		readErr := &surfsifter.CandidateReadError{Path: c.LogicalPath, Err: err}
		e.log.WithField("path", c.LogicalPath).WithError(err).Warn("cannot open candidate")
		entry.Status = surfsifter.StatusFailed
		entry.ErrorMessage = readErr.Error()
		return entry, nil
	}
	defer reader.Close()

	destPath := filepath.Join(e.outputDir, filepath.FromSlash(entry.DestRelPath))
	if err := os.MkdirAll(filepath.Dir(destPath), 0750); err != nil {
		entry.Status = surfsifter.StatusFailed
		entry.ErrorMessage = err.Error()
		return entry, nil
	}

	dest, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0640)
	if err != nil {
		// a staged file must never be silently overwritten
		entry.Status = surfsifter.StatusFailed
		entry.ErrorMessage = fmt.Sprintf("staging collision or unwritable destination: %v", err)
		return entry, nil
	}

	md5Hash := md5.New() // #nosec
	sha256Hash := sha256.New()
	written, err := io.Copy(io.MultiWriter(dest, md5Hash, sha256Hash), &ctxReader{ctx: ctx, r: reader})
	closeErr := dest.Close()

	if err != nil || closeErr != nil {
		_ = os.Remove(destPath)
		if ctx.Err() != nil {
			return entry, ctx.Err()
		}
		if err == nil {
			err = closeErr
		}
		readErr := &surfsifter.CandidateReadError{Path: c.LogicalPath, Err: err}
		e.log.WithField("path", c.LogicalPath).WithError(err).Warn("copy failed")
		entry.Status = surfsifter.StatusFailed
		entry.ErrorMessage = readErr.Error()
		return entry, nil
	}

	entry.SizeBytes = written
	entry.MD5 = hex.EncodeToString(md5Hash.Sum(nil))
	entry.SHA256 = hex.EncodeToString(sha256Hash.Sum(nil))
	entry.Status = surfsifter.StatusOK
	return entry, nil
}

// ctxReader aborts a streaming copy between read chunks once the context is
// cancelled, so no copy blocks cancellation for longer than one chunk.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// manifestSink collects entries from concurrent workers. Append order is
// irrelevant: the final manifest is sorted by destination path.
type manifestSink struct {
	mu         sync.Mutex
	run        *surfsifter.Run
	entries    map[string]surfsifter.ManifestEntry
	path       string
	flushEvery int
}

func newManifestSink(run *surfsifter.Run, path string, flushEvery int) *manifestSink {
	return &manifestSink{
		run:        run,
		entries:    map[string]surfsifter.ManifestEntry{},
		path:       path,
		flushEvery: flushEvery,
	}
}

func (s *manifestSink) add(entry surfsifter.ManifestEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[entry.DestRelPath]; exists {
		return errors.Errorf("duplicate manifest entry for %s", entry.DestRelPath)
	}
	s.entries[entry.DestRelPath] = entry
	if s.flushEvery > 0 && len(s.entries)%s.flushEvery == 0 {
		// best-effort incremental persistence for crash resilience
		_ = WriteManifest(s.manifestLocked(), s.path)
	}
	return nil
}

func (s *manifestSink) manifest() *surfsifter.Manifest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manifestLocked()
}

func (s *manifestSink) manifestLocked() *surfsifter.Manifest {
	m := &surfsifter.Manifest{
		Version:          surfsifter.ManifestVersion,
		RunID:            s.run.ID,
		EvidenceID:       s.run.EvidenceID,
		ExtractorName:    s.run.ExtractorName,
		ExtractorVersion: s.run.ExtractorVersion,
		CreatedAt:        s.run.StartedAt,
	}
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		m.Entries = append(m.Entries, s.entries[k])
	}
	return m
}
