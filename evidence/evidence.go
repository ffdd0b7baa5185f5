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

// Package evidence provides uniform read-only access to evidence
// filesystems. A Source bundles one or more partitions, each exposed as an
// afero.Fs that is wrapped read-only at construction time, so no caller can
// ever write to the evidence.
package evidence

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Source is a partition-aware, read-only evidence filesystem. It is safe for
// use by arbitrarily many concurrent readers when ThreadSafe reports true.
type Source struct {
	id         string
	fsType     string
	partitions []afero.Fs
	threadSafe bool
}

// NewSource wraps the given partition filesystems read-only. Partition
// indices follow slice order.
func NewSource(id, fsType string, partitions ...afero.Fs) *Source {
	wrapped := make([]afero.Fs, len(partitions))
	for i, fs := range partitions {
		wrapped[i] = afero.NewReadOnlyFs(fs)
	}
	return &Source{id: id, fsType: fsType, partitions: wrapped, threadSafe: true}
}

// NewDirectorySource opens a mounted evidence directory as a single
// partition source.
func NewDirectorySource(id, dir string) (*Source, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open evidence directory %s", dir)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("evidence path %s is not a directory", dir)
	}
	base := afero.NewBasePathFs(afero.NewOsFs(), dir)
	return NewSource(id, "dir", base), nil
}

// ID returns the evidence identifier.
func (s *Source) ID() string { return s.id }

// FSType names the underlying filesystem flavor ("dir", "ntfs", "ext4", ...).
func (s *Source) FSType() string { return s.fsType }

// ThreadSafe reports whether partitions may be read concurrently.
func (s *Source) ThreadSafe() bool { return s.threadSafe }

// SetThreadSafe marks the source as unsafe for concurrent reads, forcing the
// staging engine into sequential mode. Needed for image-backed filesystems
// whose readers share a single file handle.
func (s *Source) SetThreadSafe(safe bool) { s.threadSafe = safe }

// Partitions returns all partition indices.
func (s *Source) Partitions() []int {
	idx := make([]int, len(s.partitions))
	for i := range s.partitions {
		idx[i] = i
	}
	return idx
}

// Partition returns the read-only filesystem of the given partition.
func (s *Source) Partition(index int) (afero.Fs, error) {
	if index < 0 || index >= len(s.partitions) {
		return nil, errors.Errorf("evidence %s has no partition %d", s.id, index)
	}
	return s.partitions[index], nil
}

// Open opens a file on a partition for reading.
func (s *Source) Open(partition int, path string) (io.ReadCloser, error) {
	fs, err := s.Partition(partition)
	if err != nil {
		return nil, err
	}
	return fs.Open(path)
}

// Stat returns file metadata from a partition.
func (s *Source) Stat(partition int, path string) (os.FileInfo, error) {
	fs, err := s.Partition(partition)
	if err != nil {
		return nil, err
	}
	return fs.Stat(path)
}

// Exists reports whether path exists on the partition.
func (s *Source) Exists(partition int, path string) bool {
	fs, err := s.Partition(partition)
	if err != nil {
		return false
	}
	ok, err := afero.Exists(fs, path)
	return err == nil && ok
}
