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

import (
	"time"

	"github.com/google/uuid"
)

// Version is reported as the extractor version in runs and audit rows.
const Version = "0.3.1"

// TimeFormat is the canonical UTC timestamp layout used in manifests, runs
// and stored records.
const TimeFormat = "2006-01-02T15:04:05Z"

// Timestamp formats t for storage. The zero time yields an empty string.
func Timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeFormat)
}

// Candidate is a file discovered in the evidence filesystem that matched an
// artifact pattern. Candidates are handed to the staging engine exactly once
// and are not persisted unless they become manifest entries.
type Candidate struct {
	EvidenceID     string
	PartitionIndex int
	ArtifactType   string
	Browser        string
	// LogicalPath is slash separated and relative to the partition root.
	LogicalPath string
	// ForensicPath is a physical locator (inode or image offset) when the
	// underlying filesystem provides one.
	ForensicPath string
	FSType       string
	Size         int64
	// Mtime is the only timestamp the evidence abstraction can supply;
	// afero exposes no access, change or creation times.
	Mtime *time.Time
}

// Key identifies the candidate for deduplication. Two patterns matching the
// same physical file produce the same key.
func (c Candidate) Key() CandidateKey {
	return CandidateKey{PartitionIndex: c.PartitionIndex, LogicalPath: c.LogicalPath}
}

// CandidateKey is the deduplication key for discovered files.
type CandidateKey struct {
	PartitionIndex int
	LogicalPath    string
}

// EntryStatus describes the outcome of staging a single file.
type EntryStatus string

// Manifest entry states.
const (
	StatusOK      EntryStatus = "ok"
	StatusFailed  EntryStatus = "failed"
	StatusSkipped EntryStatus = "skipped"
)

// ManifestEntry records one file physically copied (or attempted) during a
// run. The set of entries plus the staged bytes is sufficient to re-run
// ingestion without access to the evidence.
type ManifestEntry struct {
	SourcePath     string      `json:"source_path"`
	SourceInode    string      `json:"source_inode,omitempty"`
	PartitionIndex int         `json:"partition_index"`
	ArtifactType   string      `json:"artifact_type"`
	Browser        string      `json:"browser,omitempty"`
	Group          string      `json:"group,omitempty"`
	DestRelPath    string      `json:"dest_rel_path"`
	DestFilename   string      `json:"dest_filename"`
	SizeBytes      int64       `json:"size_bytes"`
	MD5            string      `json:"md5,omitempty" structs:"md5"`
	SHA256         string      `json:"sha256,omitempty" structs:"sha256"`
	Status         EntryStatus `json:"status"`
	ErrorMessage   string      `json:"error_message,omitempty"`
	ExtractedAt    string      `json:"extracted_at"`
}

// ManifestVersion is the current manifest document version. Older versions
// remain readable, see extract.LoadManifest.
const ManifestVersion = 1

// Manifest is the durable record of what a run copied from where.
type Manifest struct {
	Version          int             `json:"version"`
	RunID            string          `json:"run_id"`
	EvidenceID       string          `json:"evidence_id"`
	ExtractorName    string          `json:"extractor_name"`
	ExtractorVersion string          `json:"extractor_version"`
	CreatedAt        string          `json:"created_at"`
	Entries          []ManifestEntry `json:"entries"`
}

// Succeeded returns the entries that were copied completely.
func (m *Manifest) Succeeded() []ManifestEntry {
	var ok []ManifestEntry
	for _, e := range m.Entries {
		if e.Status == StatusOK {
			ok = append(ok, e)
		}
	}
	return ok
}

// Degraded reports whether the manifest contains failed entries next to
// successful ones. A degraded run is still a valid success state.
func (m *Manifest) Degraded() bool {
	var failed, succeeded bool
	for _, e := range m.Entries {
		switch e.Status {
		case StatusFailed:
			failed = true
		case StatusOK:
			succeeded = true
		}
	}
	return failed && succeeded
}

// RunStatus is a state in the run lifecycle.
type RunStatus string

// Run lifecycle states. Terminal states are StatusIngested and
// StatusRunFailed.
const (
	StatusCreated    RunStatus = "created"
	StatusExtracting RunStatus = "extracting"
	StatusExtracted  RunStatus = "extracted"
	StatusIngesting  RunStatus = "ingesting"
	StatusIngested   RunStatus = "ingested"
	StatusRunFailed  RunStatus = "failed"
)

var runTransitions = map[RunStatus][]RunStatus{
	StatusCreated:    {StatusExtracting, StatusRunFailed},
	StatusExtracting: {StatusExtracted, StatusRunFailed},
	StatusExtracted:  {StatusIngesting, StatusRunFailed},
	StatusIngesting:  {StatusIngested, StatusRunFailed},
}

// CanTransition reports whether the state machine allows moving from s to
// next. Terminal states allow no transitions.
func (s RunStatus) CanTransition(next RunStatus) bool {
	for _, allowed := range runTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether s ends the run lifecycle.
func (s RunStatus) Terminal() bool {
	return s == StatusIngested || s == StatusRunFailed
}

// Run is one execution of an extractor against one evidence item.
type Run struct {
	ID               string
	EvidenceID       string
	ExtractorName    string
	ExtractorVersion string
	StartedAt        string
	FinishedAt       string
	Status           RunStatus
}

// NewRun creates a run in the created state with a fresh opaque id.
func NewRun(evidenceID, extractorName string) *Run {
	return &Run{
		ID:               uuid.New().String(),
		EvidenceID:       evidenceID,
		ExtractorName:    extractorName,
		ExtractorVersion: Version,
		StartedAt:        Timestamp(time.Now()),
		Status:           StatusCreated,
	}
}

// Severity of an extraction warning.
type Severity string

// Warning severities.
const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Warning types emitted by the engine and the format parsers.
const (
	WarnUnknownTable     = "unknown_table"
	WarnUnknownColumn    = "unknown_column"
	WarnUnknownEnumValue = "unknown_enum_value"
	WarnUnknownKey       = "unknown_key"
	WarnUnknownPrefix    = "unknown_prefix"
	WarnCorruptContainer = "corrupt_container"
	WarnCompression      = "compression_error"
	WarnParse            = "parse_error"
	WarnValidation       = "validation_error"
)

// Warning categories.
const (
	CategoryDatabase = "database"
	CategoryJSON     = "json"
	CategoryLevelDB  = "leveldb"
	CategoryBinary   = "binary"
)

// Warning flags an unknown or unparsed structure encountered during a run.
// Warnings are append-only and never fail the run; they are the forward
// compatibility signal that lets parsers be extended later.
type Warning struct {
	RunID         string   `json:"run_id,omitempty"`
	ExtractorName string   `json:"extractor_name,omitempty"`
	Type          string   `json:"warning_type"`
	Severity      Severity `json:"severity"`
	Category      string   `json:"category,omitempty"`
	ItemName      string   `json:"item_name"`
	ItemValue     string   `json:"item_value,omitempty"`
	Context       string   `json:"context,omitempty"`
}

// IngestStats summarizes one ingestion call.
type IngestStats struct {
	Inserted         int
	SkippedDuplicate int
	Failed           int
	Warnings         int
}

// Add accumulates other into s.
func (s *IngestStats) Add(other IngestStats) {
	s.Inserted += other.Inserted
	s.SkippedDuplicate += other.SkippedDuplicate
	s.Failed += other.Failed
	s.Warnings += other.Warnings
}
