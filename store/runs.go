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

package store

import (
	"fmt"
	"time"

	surfsifter "github.com/gaestu/SurfSifter"
)

// SaveRun persists a new run in its current state and writes the first
// audit row.
func (s *Store) SaveRun(run *surfsifter.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.exec(`INSERT INTO "runs"
		("id", "evidence_id", "extractor_name", "extractor_version", "status", "started_at", "finished_at")
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.EvidenceID, run.ExtractorName, run.ExtractorVersion,
		string(run.Status), run.StartedAt, run.FinishedAt)
	if err != nil {
		return err
	}
	return s.appendProcessLog(run.ID, "", run.Status, "run created")
}

// TransitionRun moves a run to the next lifecycle state, appending an audit
// row. Transitions the state machine does not allow are rejected.
func (s *Store) TransitionRun(run *surfsifter.Run, to surfsifter.RunStatus, detail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !run.Status.CanTransition(to) {
		return fmt.Errorf("run %s cannot move from %s to %s", run.ID, run.Status, to)
	}
	from := run.Status
	run.Status = to
	if to.Terminal() {
		run.FinishedAt = surfsifter.Timestamp(time.Now())
	}

	err := s.exec(`UPDATE "runs" SET "status" = ?, "finished_at" = ? WHERE "id" = ?`,
		string(to), run.FinishedAt, run.ID)
	if err != nil {
		run.Status = from
		return err
	}
	return s.appendProcessLog(run.ID, from, to, detail)
}

func (s *Store) appendProcessLog(runID string, from, to surfsifter.RunStatus, detail string) error {
	return s.exec(`INSERT INTO "process_log" ("run_id", "timestamp", "from_status", "to_status", "detail")
		VALUES (?, ?, ?, ?, ?)`,
		runID, surfsifter.Timestamp(time.Now()), string(from), string(to), detail)
}

// GetRun loads one run by id.
func (s *Store) GetRun(id string) (*surfsifter.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stmt, err := s.conn.Prepare(`SELECT "id", "evidence_id", "extractor_name",
		"extractor_version", "status", "started_at", "finished_at"
		FROM "runs" WHERE "id" = ?`)
	if err != nil {
		return nil, err
	}
	stmt.BindText(1, id)

	hasRow, err := stmt.Step()
	if err != nil {
		stmt.Finalize()
		return nil, err
	}
	if !hasRow {
		stmt.Finalize()
		return nil, fmt.Errorf("run %s does not exist", id)
	}
	run := &surfsifter.Run{
		ID:               stmt.GetText("id"),
		EvidenceID:       stmt.GetText("evidence_id"),
		ExtractorName:    stmt.GetText("extractor_name"),
		ExtractorVersion: stmt.GetText("extractor_version"),
		Status:           surfsifter.RunStatus(stmt.GetText("status")),
		StartedAt:        stmt.GetText("started_at"),
		FinishedAt:       stmt.GetText("finished_at"),
	}
	return run, stmt.Finalize()
}

// ProcessLogEntry is one audit row of a run.
type ProcessLogEntry struct {
	RunID      string
	Timestamp  string
	FromStatus string
	ToStatus   string
	Detail     string
}

// ProcessLog returns the audit trail of a run in insertion order.
func (s *Store) ProcessLog(runID string) ([]ProcessLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stmt, err := s.conn.Prepare(`SELECT "run_id", "timestamp", "from_status", "to_status", "detail"
		FROM "process_log" WHERE "run_id" = ? ORDER BY "id"`)
	if err != nil {
		return nil, err
	}
	stmt.BindText(1, runID)

	var entries []ProcessLogEntry
	for {
		hasRow, err := stmt.Step()
		if err != nil {
			stmt.Finalize()
			return nil, err
		}
		if !hasRow {
			break
		}
		entries = append(entries, ProcessLogEntry{
			RunID:      stmt.GetText("run_id"),
			Timestamp:  stmt.GetText("timestamp"),
			FromStatus: stmt.GetText("from_status"),
			ToStatus:   stmt.GetText("to_status"),
			Detail:     stmt.GetText("detail"),
		})
	}
	return entries, stmt.Finalize()
}

// AddWarnings appends extraction warnings. Warnings are append-only.
func (s *Store) AddWarnings(warnings []surfsifter.Warning) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range warnings {
		err := s.exec(`INSERT INTO "extraction_warnings"
			("run_id", "extractor_name", "warning_type", "severity", "category", "item_name", "item_value", "context")
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			w.RunID, w.ExtractorName, w.Type, string(w.Severity), w.Category,
			w.ItemName, w.ItemValue, w.Context)
		if err != nil {
			return err
		}
	}
	return nil
}

// Warnings returns all stored warnings of a run.
func (s *Store) Warnings(runID string) ([]surfsifter.Warning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stmt, err := s.conn.Prepare(`SELECT "run_id", "extractor_name", "warning_type",
		"severity", "category", "item_name", "item_value", "context"
		FROM "extraction_warnings" WHERE "run_id" = ? ORDER BY "id"`)
	if err != nil {
		return nil, err
	}
	stmt.BindText(1, runID)

	var warnings []surfsifter.Warning
	for {
		hasRow, err := stmt.Step()
		if err != nil {
			stmt.Finalize()
			return nil, err
		}
		if !hasRow {
			break
		}
		warnings = append(warnings, surfsifter.Warning{
			RunID:         stmt.GetText("run_id"),
			ExtractorName: stmt.GetText("extractor_name"),
			Type:          stmt.GetText("warning_type"),
			Severity:      surfsifter.Severity(stmt.GetText("severity")),
			Category:      stmt.GetText("category"),
			ItemName:      stmt.GetText("item_name"),
			ItemValue:     stmt.GetText("item_value"),
			Context:       stmt.GetText("context"),
		})
	}
	return warnings, stmt.Finalize()
}
