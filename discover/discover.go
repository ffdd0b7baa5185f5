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

// Package discover walks evidence filesystems and yields deduplicated,
// partition-scoped candidate artifacts. Discovery is pure: re-invocation
// against the same filesystem state returns the same candidate set, whether
// the file list comes from a live walk or from a precomputed file index.
package discover

import (
	"context"
	"os"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	surfsifter "github.com/gaestu/SurfSifter"
	"github.com/gaestu/SurfSifter/evidence"
	"github.com/gaestu/SurfSifter/pattern"
)

// IndexedFile is one row of a precomputed file index.
type IndexedFile struct {
	PartitionIndex int
	Path           string
	Name           string
	Size           int64
	Mtime          *time.Time
	Inode          string
}

// FileIndex serves precomputed file lists. Preferred over a live walk for
// large or image-backed filesystems: walking is O(files) on image I/O,
// an index lookup is not.
type FileIndex interface {
	Files(evidenceID string, partition int) ([]IndexedFile, error)
}

// Engine resolves artifact patterns against evidence filesystems.
type Engine struct {
	patterns *pattern.Set
	index    FileIndex
	log      *logrus.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithIndex makes the engine read file lists from idx instead of walking.
func WithIndex(idx FileIndex) Option {
	return func(e *Engine) { e.index = idx }
}

// WithLogger sets the engine logger.
func WithLogger(log *logrus.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// New creates a discovery engine over the given pattern set.
func New(patterns *pattern.Set, opts ...Option) *Engine {
	e := &Engine{patterns: patterns, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Discover returns all candidate artifacts of artifactType on the requested
// partitions (all partitions when nil), sorted by partition and path. The
// same physical file is yielded at most once even when several patterns
// match it. Unreadable subtrees are logged and skipped; only an unopenable
// partition root is fatal.
func (e *Engine) Discover(ctx context.Context, src *evidence.Source, artifactType string, partitions []int) ([]surfsifter.Candidate, error) {
	if _, err := e.patterns.For(artifactType); err != nil {
		return nil, err
	}
	if partitions == nil {
		partitions = src.Partitions()
	}

	seen := map[surfsifter.CandidateKey]bool{}
	var candidates []surfsifter.Candidate

	for _, part := range partitions {
		files, err := e.listFiles(ctx, src, part)
		if err != nil {
			return nil, err
		}
		for _, file := range files {
			matched, ok := e.patterns.Match(artifactType, file.Path)
			if !ok {
				continue
			}
			candidate := surfsifter.Candidate{
				EvidenceID:     src.ID(),
				PartitionIndex: part,
				ArtifactType:   artifactType,
				Browser:        matched.Browser,
				LogicalPath:    file.Path,
				ForensicPath:   file.Inode,
				FSType:         src.FSType(),
				Size:           file.Size,
				Mtime:          file.Mtime,
			}
			if seen[candidate.Key()] {
				continue
			}
			seen[candidate.Key()] = true
			candidates = append(candidates, candidate)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].PartitionIndex != candidates[j].PartitionIndex {
			return candidates[i].PartitionIndex < candidates[j].PartitionIndex
		}
		return candidates[i].LogicalPath < candidates[j].LogicalPath
	})
	return candidates, nil
}

func (e *Engine) listFiles(ctx context.Context, src *evidence.Source, partition int) ([]IndexedFile, error) {
	if e.index != nil {
		files, err := e.index.Files(src.ID(), partition)
		if err != nil {
			return nil, &surfsifter.SourceUnavailableError{EvidenceID: src.ID(), Err: err}
		}
		return files, nil
	}
	return WalkPartition(ctx, src, partition, e.log)
}

// WalkPartition lists all regular files of one partition via a live
// directory walk. It is also used to build file indexes. Unreadable entries
// are logged and skipped.
func WalkPartition(ctx context.Context, src *evidence.Source, partition int, log *logrus.Logger) ([]IndexedFile, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	fs, err := src.Partition(partition)
	if err != nil {
		return nil, &surfsifter.SourceUnavailableError{EvidenceID: src.ID(), Err: err}
	}
	if _, err := fs.Stat("/"); err != nil {
		return nil, &surfsifter.SourceUnavailableError{EvidenceID: src.ID(), Err: err}
	}

	var files []IndexedFile
	err = afero.Walk(fs, "/", func(path string, info os.FileInfo, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			log.WithFields(logrus.Fields{
				"evidence":  src.ID(),
				"partition": partition,
				"path":      path,
			}).WithError(walkErr).Warn("skipping unreadable path")
			if info != nil && info.IsDir() {
				return nil
			}
			return nil
		}
		if info == nil || info.IsDir() {
			return nil
		}
		mtime := info.ModTime().UTC()
		files = append(files, IndexedFile{
			PartitionIndex: partition,
			Path:           pattern.NormalizePath(path),
			Name:           info.Name(),
			Size:           info.Size(),
			Mtime:          &mtime,
		})
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, &surfsifter.SourceUnavailableError{EvidenceID: src.ID(), Err: err}
	}
	return files, nil
}
