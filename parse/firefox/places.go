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

package firefox

import (
	"os"

	"crawshaw.io/sqlite"
	"github.com/pkg/errors"

	surfsifter "github.com/gaestu/SurfSifter"
	"github.com/gaestu/SurfSifter/parse"
	"github.com/gaestu/SurfSifter/timeconv"
)

var knownPlacesTables = map[string]bool{
	"moz_places": true, "moz_historyvisits": true, "moz_bookmarks": true,
	"moz_bookmarks_deleted": true, "moz_origins": true, "moz_inputhistory": true,
	"moz_keywords": true, "moz_anno_attributes": true, "moz_annos": true,
	"moz_items_annos": true, "moz_meta": true, "moz_places_metadata": true,
	"moz_places_metadata_search_queries": true, "moz_previews_tombstones": true,
	"moz_places_extra": true, "moz_historyvisits_extra": true,
	"moz_session_metadata": true, "moz_session_to_places": true,
	"sqlite_sequence": true,
}

// PlacesParser parses Firefox places.sqlite, the gecko counterpart of the
// Chromium History database. Visit timestamps are PRTime, microseconds since
// the Unix epoch; a copied -wal companion stays visible like for Chromium.
type PlacesParser struct{}

// Name implements parse.Parser.
func (PlacesParser) Name() string { return "firefox_places" }

// ArtifactTypes implements parse.Parser.
func (PlacesParser) ArtifactTypes() []string { return []string{"history"} }

// Parse reads per-visit history from moz_historyvisits and typed input from
// moz_inputhistory.
func (p PlacesParser) Parse(path string, companions []string) (*parse.Records, []surfsifter.Warning, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, nil, errors.Wrap(err, "staged places database missing")
	}

	conn, err := sqlite.OpenConn(path, sqlite.SQLITE_OPEN_READONLY)
	if err != nil {
		return nil, nil, errors.Wrap(err, "cannot open places database")
	}
	defer conn.Close()

	var warnings []surfsifter.Warning
	tables, err := placesTables(conn)
	if err != nil {
		warnings = append(warnings, placesCorruptWarning(path, err))
		return &parse.Records{}, warnings, nil
	}
	for table := range tables {
		if !knownPlacesTables[table] {
			warnings = append(warnings, surfsifter.Warning{
				Type:     surfsifter.WarnUnknownTable,
				Severity: surfsifter.SeverityInfo,
				Category: surfsifter.CategoryDatabase,
				ItemName: table,
				Context:  path,
			})
		}
	}

	records := &parse.Records{}
	if tables["moz_places"] && tables["moz_historyvisits"] {
		visits, visitWarnings := p.parseVisits(conn, path)
		records.Visits = visits
		warnings = append(warnings, visitWarnings...)
	}
	if tables["moz_places"] && tables["moz_inputhistory"] {
		terms, termWarnings := p.parseInputHistory(conn, path)
		records.SearchTerms = terms
		warnings = append(warnings, termWarnings...)
	}
	return records, warnings, nil
}

func (p PlacesParser) parseVisits(conn *sqlite.Conn, path string) ([]parse.HistoryVisit, []surfsifter.Warning) {
	stmt, err := conn.Prepare(`
		SELECT p.url AS url, COALESCE(p.title, '') AS title,
		       COALESCE(p.visit_count, 0) AS visit_count,
		       COALESCE(p.typed, 0) AS typed, COALESCE(p.hidden, 0) AS hidden,
		       v.visit_date AS visit_date, COALESCE(v.visit_type, 0) AS visit_type
		FROM moz_historyvisits v JOIN moz_places p ON v.place_id = p.id
		ORDER BY v.id`)
	if err != nil {
		return nil, []surfsifter.Warning{placesCorruptWarning(path, err)}
	}

	var visits []parse.HistoryVisit
	var warnings []surfsifter.Warning
	for {
		hasRow, err := stmt.Step()
		if err != nil {
			warnings = append(warnings, placesCorruptWarning(path, err))
			break
		}
		if !hasRow {
			break
		}
		visit := parse.HistoryVisit{
			URL:        stmt.GetText("url"),
			Title:      stmt.GetText("title"),
			VisitCount: int(stmt.GetInt64("visit_count")),
			TypedCount: int(stmt.GetInt64("typed")),
			Transition: int(stmt.GetInt64("visit_type")),
			Hidden:     stmt.GetInt64("hidden") != 0,
		}
		// NULL visit_date reads as 0 and stays unknown
		if visitDate := stmt.GetInt64("visit_date"); visitDate != 0 {
			visit.VisitTime = timeconv.FromPRTime(visitDate)
		}
		visits = append(visits, visit)
	}
	stmt.Finalize()
	return visits, warnings
}

func (p PlacesParser) parseInputHistory(conn *sqlite.Conn, path string) ([]parse.SearchTerm, []surfsifter.Warning) {
	stmt, err := conn.Prepare(`
		SELECT i.input AS input, COALESCE(p.url, '') AS url
		FROM moz_inputhistory i LEFT JOIN moz_places p ON i.place_id = p.id
		ORDER BY i.place_id`)
	if err != nil {
		return nil, []surfsifter.Warning{placesCorruptWarning(path, err)}
	}

	var terms []parse.SearchTerm
	var warnings []surfsifter.Warning
	for {
		hasRow, err := stmt.Step()
		if err != nil {
			warnings = append(warnings, placesCorruptWarning(path, err))
			break
		}
		if !hasRow {
			break
		}
		terms = append(terms, parse.SearchTerm{
			Term: stmt.GetText("input"),
			URL:  stmt.GetText("url"),
		})
	}
	stmt.Finalize()
	return terms, warnings
}

func placesTables(conn *sqlite.Conn) (map[string]bool, error) {
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

func placesCorruptWarning(path string, err error) surfsifter.Warning {
	return surfsifter.Warning{
		Type:      surfsifter.WarnParse,
		Severity:  surfsifter.SeverityError,
		Category:  surfsifter.CategoryDatabase,
		ItemName:  path,
		ItemValue: err.Error(),
	}
}
