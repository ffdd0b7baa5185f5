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

package surfsifter

import "fmt"

// The error taxonomy separates stage-fatal conditions from per-file and
// per-record conditions. Only ConfigurationError, SourceUnavailableError and
// StorageUnavailableError propagate out of their stage; everything else is
// swallowed into manifest entries, failed counts and warnings.

// ConfigurationError reports an unknown artifact type or a missing pattern
// set. It fails the single call, never the process.
type ConfigurationError struct {
	ArtifactType string
	Reason       string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error for artifact type %q: %s", e.ArtifactType, e.Reason)
}

// SourceUnavailableError reports that the evidence root itself cannot be
// opened. Fatal to discovery and extraction for that evidence.
type SourceUnavailableError struct {
	EvidenceID string
	Err        error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("evidence %q unavailable: %v", e.EvidenceID, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// CandidateReadError reports a single unreadable file during staging. It is
// recorded in the corresponding manifest entry; the batch continues.
type CandidateReadError struct {
	Path string
	Err  error
}

func (e *CandidateReadError) Error() string {
	return fmt.Sprintf("cannot read candidate %q: %v", e.Path, e.Err)
}

func (e *CandidateReadError) Unwrap() error { return e.Err }

// ParseError reports malformed bytes inside an otherwise valid container.
// Parsers degrade it to a warning and continue with the next record or file.
type ParseError struct {
	File   string
	Detail string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %q: %s", e.File, e.Detail)
}

// ChecksumMismatchError reports failed structural validation, for example a
// trailing-offset checksum that does not cover its metadata. Handled exactly
// like a ParseError, never as a crash.
type ChecksumMismatchError struct {
	File     string
	Expected uint32
	Actual   uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch in %q: expected %08x, got %08x", e.File, e.Expected, e.Actual)
}

// StorageUnavailableError reports that the artifact store cannot be reached.
// Fatal to the ingestion stage; the run is marked failed and the manifest is
// preserved for an ingestion-only retry.
type StorageUnavailableError struct {
	Err error
}

func (e *StorageUnavailableError) Error() string {
	return fmt.Sprintf("storage unavailable: %v", e.Err)
}

func (e *StorageUnavailableError) Unwrap() error { return e.Err }
