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
	"github.com/gaestu/SurfSifter/discover"
	"github.com/gaestu/SurfSifter/ingest"
)

// The Store implements the ingestion storage port.
var _ ingest.Storage = (*Store)(nil)

func (s *Store) deleteScope(table, evidenceID, extractor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	query := fmt.Sprintf(`DELETE FROM "%s" WHERE "evidence_id" = ? AND "extractor" = ?`, table) // #nosec
	return s.exec(query, evidenceID, extractor)
}

func (s *Store) insertRows(table string, rows []interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		if err := s.insertStruct(table, row); err != nil {
			return err
		}
	}
	return nil
}

// DeleteVisits implements ingest.Storage.
func (s *Store) DeleteVisits(evidenceID, extractor string) error {
	return s.deleteScope("history_visits", evidenceID, extractor)
}

// InsertVisits implements ingest.Storage.
func (s *Store) InsertVisits(rows []ingest.VisitRow) error {
	generic := make([]interface{}, len(rows))
	for i := range rows {
		generic[i] = rows[i]
	}
	return s.insertRows("history_visits", generic)
}

// Visits returns all stored history visits of one evidence item, ordered by
// URL and visit time.
func (s *Store) Visits(evidenceID string) ([]ingest.VisitRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stmt, err := s.conn.Prepare(`SELECT "run_id", "extractor", "browser", "profile", "source_path",
			"url", "title", "visit_time", "visit_count", "typed_count", "transition", "hidden"
		FROM "history_visits" WHERE "evidence_id" = ? ORDER BY "url", "visit_time"`)
	if err != nil {
		return nil, err
	}
	stmt.BindText(1, evidenceID)

	var rows []ingest.VisitRow
	for {
		hasRow, err := stmt.Step()
		if err != nil {
			stmt.Finalize()
			return nil, err
		}
		if !hasRow {
			break
		}
		rows = append(rows, ingest.VisitRow{
			Provenance: ingest.Provenance{
				EvidenceID: evidenceID,
				RunID:      stmt.GetText("run_id"),
				Extractor:  stmt.GetText("extractor"),
				Browser:    stmt.GetText("browser"),
				Profile:    stmt.GetText("profile"),
				SourcePath: stmt.GetText("source_path"),
			},
			URL:        stmt.GetText("url"),
			Title:      stmt.GetText("title"),
			VisitTime:  stmt.GetText("visit_time"),
			VisitCount: int(stmt.GetInt64("visit_count")),
			TypedCount: int(stmt.GetInt64("typed_count")),
			Transition: int(stmt.GetInt64("transition")),
			Hidden:     stmt.GetInt64("hidden") != 0,
		})
	}
	return rows, stmt.Finalize()
}

// DeleteSearchTerms implements ingest.Storage.
func (s *Store) DeleteSearchTerms(evidenceID, extractor string) error {
	return s.deleteScope("search_terms", evidenceID, extractor)
}

// InsertSearchTerms implements ingest.Storage.
func (s *Store) InsertSearchTerms(rows []ingest.SearchTermRow) error {
	generic := make([]interface{}, len(rows))
	for i := range rows {
		generic[i] = rows[i]
	}
	return s.insertRows("search_terms", generic)
}

// DeleteBookmarks implements ingest.Storage.
func (s *Store) DeleteBookmarks(evidenceID, extractor string) error {
	return s.deleteScope("bookmarks", evidenceID, extractor)
}

// InsertBookmarks implements ingest.Storage.
func (s *Store) InsertBookmarks(rows []ingest.BookmarkRow) error {
	generic := make([]interface{}, len(rows))
	for i := range rows {
		generic[i] = rows[i]
	}
	return s.insertRows("bookmarks", generic)
}

// DeleteCacheEntries implements ingest.Storage.
func (s *Store) DeleteCacheEntries(evidenceID, extractor string) error {
	return s.deleteScope("cache_entries", evidenceID, extractor)
}

// InsertCacheEntries implements ingest.Storage.
func (s *Store) InsertCacheEntries(rows []ingest.CacheRow) error {
	generic := make([]interface{}, len(rows))
	for i := range rows {
		generic[i] = rows[i]
	}
	return s.insertRows("cache_entries", generic)
}

// DeleteLocalStorage implements ingest.Storage.
func (s *Store) DeleteLocalStorage(evidenceID, extractor string) error {
	return s.deleteScope("local_storage", evidenceID, extractor)
}

// InsertLocalStorage implements ingest.Storage.
func (s *Store) InsertLocalStorage(rows []ingest.LocalStorageRow) error {
	generic := make([]interface{}, len(rows))
	for i := range rows {
		generic[i] = rows[i]
	}
	return s.insertRows("local_storage", generic)
}

// DeleteURLSightings implements ingest.Storage. Removing a scope's sighting
// rows keeps the registry rebuildable without the deleted scope's counts.
func (s *Store) DeleteURLSightings(evidenceID, extractor string) error {
	return s.deleteScope("url_sightings", evidenceID, extractor)
}

// InsertURLSightings implements ingest.Storage. Sightings arriving twice for
// the same URL within one scope merge: first_seen and last_seen widen,
// occurrence_count accumulates.
func (s *Store) InsertURLSightings(rows []ingest.URLSighting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sighting := range rows {
		err := s.exec(`INSERT INTO "url_sightings"
			("evidence_id", "extractor", "url", "first_seen", "last_seen", "occurrence_count")
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT ("evidence_id", "extractor", "url") DO UPDATE SET
				"first_seen" = CASE
					WHEN "first_seen" = '' OR (excluded."first_seen" != '' AND excluded."first_seen" < "first_seen")
					THEN excluded."first_seen" ELSE "first_seen" END,
				"last_seen" = CASE
					WHEN excluded."last_seen" > "last_seen"
					THEN excluded."last_seen" ELSE "last_seen" END,
				"occurrence_count" = "occurrence_count" + excluded."occurrence_count"`,
			sighting.EvidenceID, sighting.Extractor, sighting.URL,
			sighting.FirstSeen, sighting.LastSeen, sighting.Occurrences)
		if err != nil {
			return err
		}
	}
	return nil
}

// RebuildURLRegistry implements ingest.Storage: the registry rows of one
// evidence item are recomputed from its url_sightings, so replacing a scope
// never leaves stale counts or widened ranges behind. ISO timestamps compare
// lexically, which makes MIN/MAX the interval bounds.
func (s *Store) RebuildURLRegistry(evidenceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.exec(`DELETE FROM "urls" WHERE "evidence_id" = ?`, evidenceID); err != nil {
		return err
	}
	return s.exec(`INSERT INTO "urls" ("evidence_id", "url", "first_seen", "last_seen", "occurrence_count")
		SELECT "evidence_id", "url",
			COALESCE(MIN(NULLIF("first_seen", '')), ''),
			COALESCE(MAX("last_seen"), ''),
			SUM("occurrence_count")
		FROM "url_sightings" WHERE "evidence_id" = ? GROUP BY "url"`, evidenceID)
}

// URLEntry is one row of the cross-artifact URL registry.
type URLEntry struct {
	EvidenceID  string
	URL         string
	FirstSeen   string
	LastSeen    string
	Occurrences int64
}

// URLRegistry returns the registry of one evidence item ordered by URL.
func (s *Store) URLRegistry(evidenceID string) ([]URLEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stmt, err := s.conn.Prepare(`SELECT "evidence_id", "url", "first_seen", "last_seen", "occurrence_count"
		FROM "urls" WHERE "evidence_id" = ? ORDER BY "url"`)
	if err != nil {
		return nil, err
	}
	stmt.BindText(1, evidenceID)

	var entries []URLEntry
	for {
		hasRow, err := stmt.Step()
		if err != nil {
			stmt.Finalize()
			return nil, err
		}
		if !hasRow {
			break
		}
		entries = append(entries, URLEntry{
			EvidenceID:  stmt.GetText("evidence_id"),
			URL:         stmt.GetText("url"),
			FirstSeen:   stmt.GetText("first_seen"),
			LastSeen:    stmt.GetText("last_seen"),
			Occurrences: stmt.GetInt64("occurrence_count"),
		})
	}
	return entries, stmt.Finalize()
}

// UpsertImage stores content-addressed image data, one canonical row per
// (evidence, sha256). Existing content is left untouched; image rows are
// never deleted by scope replacement.
func (s *Store) UpsertImage(img ingest.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exec(`INSERT OR IGNORE INTO "images" ("evidence_id", "sha256", "content_type", "size_bytes", "data")
		VALUES (?, ?, ?, ?, ?)`,
		img.EvidenceID, img.SHA256, img.ContentType, img.SizeBytes, img.Data)
}

// ImageData loads one content-addressed image of an evidence item.
func (s *Store) ImageData(evidenceID, sha256 string) ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stmt, err := s.conn.Prepare(`SELECT "content_type", "data" FROM "images"
		WHERE "evidence_id" = ? AND "sha256" = ?`)
	if err != nil {
		return nil, "", err
	}
	stmt.BindText(1, evidenceID)
	stmt.BindText(2, sha256)

	hasRow, err := stmt.Step()
	if err != nil {
		stmt.Finalize()
		return nil, "", err
	}
	if !hasRow {
		stmt.Finalize()
		return nil, "", fmt.Errorf("image %s does not exist for evidence %s", sha256, evidenceID)
	}
	data := make([]byte, stmt.GetLen("data"))
	stmt.GetBytes("data", data)
	contentType := stmt.GetText("content_type")
	return data, contentType, stmt.Finalize()
}

// DeleteImageDiscoveries implements ingest.Storage. Only the discovery rows
// are scoped; the images they reference stay.
func (s *Store) DeleteImageDiscoveries(evidenceID, extractor string) error {
	return s.deleteScope("image_discoveries", evidenceID, extractor)
}

// InsertImageDiscoveries implements ingest.Storage.
func (s *Store) InsertImageDiscoveries(rows []ingest.ImageDiscovery) error {
	generic := make([]interface{}, len(rows))
	for i := range rows {
		generic[i] = rows[i]
	}
	return s.insertRows("image_discoveries", generic)
}

type extractedFileRow struct {
	RunID      string
	EvidenceID string
	surfsifter.ManifestEntry
}

// InsertExtractedFiles persists the manifest entries of a run. The unique
// constraint on (run_id, dest_rel_path) rejects double ingestion of the
// same manifest under the same run.
func (s *Store) InsertExtractedFiles(runID, evidenceID string, entries []surfsifter.ManifestEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range entries {
		row := extractedFileRow{RunID: runID, EvidenceID: evidenceID, ManifestEntry: entry}
		if err := s.insertStruct("extracted_files", row); err != nil {
			return err
		}
	}
	return nil
}

// DeleteExtractedFiles removes the staged file records of one run, used when
// a manifest is re-ingested under the same run id.
func (s *Store) DeleteExtractedFiles(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exec(`DELETE FROM "extracted_files" WHERE "run_id" = ?`, runID)
}

// The Store doubles as the discovery file index backend.
var _ discover.FileIndex = (*Store)(nil)

// ReplaceFileIndex swaps the file index of one evidence partition.
func (s *Store) ReplaceFileIndex(evidenceID string, partition int, files []discover.IndexedFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.exec(`DELETE FROM "file_index" WHERE "evidence_id" = ? AND "partition_index" = ?`,
		evidenceID, partition)
	if err != nil {
		return err
	}
	for _, f := range files {
		mtime := ""
		if f.Mtime != nil {
			mtime = surfsifter.Timestamp(*f.Mtime)
		}
		err := s.exec(`INSERT INTO "file_index"
			("evidence_id", "partition_index", "path", "name", "size", "mtime", "inode")
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			evidenceID, f.PartitionIndex, f.Path, f.Name, f.Size, mtime, f.Inode)
		if err != nil {
			return err
		}
	}
	return nil
}

// Files implements discover.FileIndex.
func (s *Store) Files(evidenceID string, partition int) ([]discover.IndexedFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stmt, err := s.conn.Prepare(`SELECT "partition_index", "path", "name", "size", "mtime", "inode"
		FROM "file_index" WHERE "evidence_id" = ? AND "partition_index" = ? ORDER BY "path"`)
	if err != nil {
		return nil, err
	}
	stmt.BindText(1, evidenceID)
	stmt.BindInt64(2, int64(partition))

	var files []discover.IndexedFile
	for {
		hasRow, err := stmt.Step()
		if err != nil {
			stmt.Finalize()
			return nil, err
		}
		if !hasRow {
			break
		}
		file := discover.IndexedFile{
			PartitionIndex: int(stmt.GetInt64("partition_index")),
			Path:           stmt.GetText("path"),
			Name:           stmt.GetText("name"),
			Size:           stmt.GetInt64("size"),
			Inode:          stmt.GetText("inode"),
		}
		if mtime := stmt.GetText("mtime"); mtime != "" {
			if t, err := parseTimestamp(mtime); err == nil {
				file.Mtime = &t
			}
		}
		files = append(files, file)
	}
	return files, stmt.Finalize()
}

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(surfsifter.TimeFormat, s)
}
