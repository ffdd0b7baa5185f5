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

// Package chromium parses artifacts of Chromium-based browsers (Chrome,
// Edge, Brave, Opera). All of them share the same History schema, so one
// parser serves the whole engine family.
package chromium

import (
	"fmt"
	"os"
	"time"

	"crawshaw.io/sqlite"
	"github.com/pkg/errors"

	surfsifter "github.com/gaestu/SurfSifter"
	"github.com/gaestu/SurfSifter/parse"
	"github.com/gaestu/SurfSifter/timeconv"
)

// Tables a current Chromium History database is known to contain. Anything
// else in sqlite_master becomes an unknown_table warning.
var knownHistoryTables = map[string]bool{
	"meta": true, "urls": true, "visits": true, "visit_source": true,
	"keyword_search_terms": true, "downloads": true,
	"downloads_url_chains": true, "downloads_slices": true,
	"segments": true, "segment_usage": true,
	"typed_url_sync_metadata": true, "history_sync_metadata": true,
	"content_annotations": true, "context_annotations": true,
	"clusters": true, "clusters_and_visits": true, "cluster_keywords": true,
	"cluster_visit_duplicates": true, "visited_links": true,
	"sqlite_sequence": true,
}

var knownColumns = map[string]map[string]bool{
	"urls": {
		"id": true, "url": true, "title": true, "visit_count": true,
		"typed_count": true, "last_visit_time": true, "hidden": true,
		"favicon_id": true,
	},
	"visits": {
		"id": true, "url": true, "visit_time": true, "from_visit": true,
		"transition": true, "segment_id": true, "visit_duration": true,
		"incremented_omnibox_typed_score": true, "opener_visit": true,
		"originator_cache_guid": true, "originator_visit_id": true,
		"originator_from_visit": true, "originator_opener_visit": true,
		"is_known_to_sync": true, "consider_for_ntp_most_visited": true,
		"external_referrer_url": true, "visited_link_id": true, "app_id": true,
	},
}

// HistoryParser parses the Chromium History SQLite database, including rows
// that only exist in an accompanying write-ahead log.
type HistoryParser struct{}

// Name implements parse.Parser.
func (HistoryParser) Name() string { return "chromium_history" }

// ArtifactTypes implements parse.Parser.
func (HistoryParser) ArtifactTypes() []string { return []string{"history"} }

// Parse reads per-visit history records and keyword search terms. Chromium
// stores timestamps in WebKit format, microseconds since 1601-01-01, and
// they are converted through timeconv.FromWebKit only; a NULL or zero
// visit_time stays unknown.
func (p HistoryParser) Parse(path string, companions []string) (*parse.Records, []surfsifter.Warning, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, nil, errors.Wrap(err, "staged history database missing")
	}

	// a read-only connection keeps the staged copy pristine; the staging
	// directory itself stays writable, so a copied -wal companion still
	// replays into the read view
	conn, err := sqlite.OpenConn(path, sqlite.SQLITE_OPEN_READONLY)
	if err != nil {
		return nil, nil, errors.Wrap(err, "cannot open history database")
	}
	defer conn.Close()

	var warnings []surfsifter.Warning

	tables, err := listTables(conn)
	if err != nil {
		warnings = append(warnings, corruptWarning(path, err))
		return &parse.Records{}, warnings, nil
	}
	warnings = append(warnings, unknownSchemaWarnings(conn, path, tables)...)

	records := &parse.Records{}
	if tables["urls"] && tables["visits"] {
		visits, visitWarnings := p.parseVisits(conn, path)
		records.Visits = visits
		warnings = append(warnings, visitWarnings...)
	}
	if tables["keyword_search_terms"] {
		terms, termWarnings := p.parseSearchTerms(conn, path)
		records.SearchTerms = terms
		warnings = append(warnings, termWarnings...)
	}
	return records, warnings, nil
}

func (p HistoryParser) parseVisits(conn *sqlite.Conn, path string) ([]parse.HistoryVisit, []surfsifter.Warning) {
	stmt, err := conn.Prepare(`
		SELECT u.url AS url, COALESCE(u.title, '') AS title,
		       u.visit_count AS visit_count, u.typed_count AS typed_count,
		       COALESCE(u.hidden, 0) AS hidden, v.visit_time AS visit_time,
		       COALESCE(v.transition, 0) AS transition
		FROM visits v JOIN urls u ON v.url = u.id
		ORDER BY v.id`)
	if err != nil {
		return nil, []surfsifter.Warning{corruptWarning(path, err)}
	}

	var visits []parse.HistoryVisit
	var warnings []surfsifter.Warning
	for {
		hasRow, err := stmt.Step()
		if err != nil {
			warnings = append(warnings, corruptWarning(path, err))
			break
		}
		if !hasRow {
			break
		}
		var when *time.Time
		// GetInt64 reports NULL as 0, which FromWebKit keeps unknown
		if visitTime := stmt.GetInt64("visit_time"); visitTime != 0 {
			when = timeconv.FromWebKit(visitTime)
		}
		visits = append(visits, parse.HistoryVisit{
			URL:        stmt.GetText("url"),
			Title:      stmt.GetText("title"),
			VisitTime:  when,
			VisitCount: int(stmt.GetInt64("visit_count")),
			TypedCount: int(stmt.GetInt64("typed_count")),
			Transition: int(stmt.GetInt64("transition")),
			Hidden:     stmt.GetInt64("hidden") != 0,
		})
	}
	stmt.Finalize()
	return visits, warnings
}

func (p HistoryParser) parseSearchTerms(conn *sqlite.Conn, path string) ([]parse.SearchTerm, []surfsifter.Warning) {
	stmt, err := conn.Prepare(`
		SELECT kst.term AS term, COALESCE(u.url, '') AS url,
		       u.last_visit_time AS last_visit_time
		FROM keyword_search_terms kst
		LEFT JOIN urls u ON kst.url_id = u.id
		ORDER BY kst.url_id`)
	if err != nil {
		return nil, []surfsifter.Warning{corruptWarning(path, err)}
	}

	var terms []parse.SearchTerm
	var warnings []surfsifter.Warning
	for {
		hasRow, err := stmt.Step()
		if err != nil {
			warnings = append(warnings, corruptWarning(path, err))
			break
		}
		if !hasRow {
			break
		}
		var when *time.Time
		if lastVisit := stmt.GetInt64("last_visit_time"); lastVisit != 0 {
			when = timeconv.FromWebKit(lastVisit)
		}
		terms = append(terms, parse.SearchTerm{
			Term:       stmt.GetText("term"),
			URL:        stmt.GetText("url"),
			SearchTime: when,
		})
	}
	stmt.Finalize()
	return terms, warnings
}

func listTables(conn *sqlite.Conn) (map[string]bool, error) {
	stmt, err := conn.Prepare(`SELECT name FROM sqlite_master WHERE type = 'table'`)
	if err != nil {
		return nil, err
	}

	tables := map[string]bool{}
	for {
		hasRow, err := stmt.Step()
		if err != nil {
			stmt.Finalize()
			return nil, err
		}
		if !hasRow {
			break
		}
		tables[stmt.GetText("name")] = true
	}
	return tables, stmt.Finalize()
}

// unknownSchemaWarnings compares the live schema against the declared known
// sets. Unknown tables and columns are reported, not parsed, so browser
// version drift surfaces instead of silently losing data.
func unknownSchemaWarnings(conn *sqlite.Conn, path string, tables map[string]bool) []surfsifter.Warning {
	var warnings []surfsifter.Warning
	for table := range tables {
		if !knownHistoryTables[table] {
			warnings = append(warnings, surfsifter.Warning{
				Type:     surfsifter.WarnUnknownTable,
				Severity: surfsifter.SeverityInfo,
				Category: surfsifter.CategoryDatabase,
				ItemName: table,
				Context:  path,
			})
		}
	}
	for table, known := range knownColumns {
		if !tables[table] {
			continue
		}
		stmt, err := conn.Prepare(fmt.Sprintf(`PRAGMA table_info(%q)`, table))
		if err != nil {
			continue
		}
		for {
			hasRow, err := stmt.Step()
			if err != nil || !hasRow {
				break
			}
			if name := stmt.GetText("name"); !known[name] {
				warnings = append(warnings, surfsifter.Warning{
					Type:     surfsifter.WarnUnknownColumn,
					Severity: surfsifter.SeverityInfo,
					Category: surfsifter.CategoryDatabase,
					ItemName: table + "." + name,
					Context:  path,
				})
			}
		}
		stmt.Finalize()
	}
	return warnings
}

func corruptWarning(path string, err error) surfsifter.Warning {
	return surfsifter.Warning{
		Type:      surfsifter.WarnParse,
		Severity:  surfsifter.SeverityError,
		Category:  surfsifter.CategoryDatabase,
		ItemName:  path,
		ItemValue: err.Error(),
	}
}
