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

package chromium

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	surfsifter "github.com/gaestu/SurfSifter"
)

const historySchema = `
	CREATE TABLE meta (key TEXT PRIMARY KEY, value TEXT);
	CREATE TABLE urls (
		id INTEGER PRIMARY KEY,
		url TEXT,
		title TEXT,
		visit_count INTEGER DEFAULT 0,
		typed_count INTEGER DEFAULT 0,
		last_visit_time INTEGER,
		hidden INTEGER DEFAULT 0
	);
	CREATE TABLE visits (
		id INTEGER PRIMARY KEY,
		url INTEGER,
		visit_time INTEGER,
		from_visit INTEGER,
		transition INTEGER DEFAULT 0
	);
	CREATE TABLE keyword_search_terms (
		keyword_id INTEGER,
		url_id INTEGER,
		term TEXT,
		normalized_term TEXT
	);`

// webkitMicros for 2019-11-13T15:59:36Z.
const sampleVisitTime = int64(13218134376000000)

func openFixture(t *testing.T, path string) *sqlite.Conn {
	t.Helper()
	// the zero flags default to a WAL journal, matching a live profile
	conn, err := sqlite.OpenConn(path, 0)
	require.NoError(t, err)
	require.NoError(t, sqlitex.ExecScript(conn, historySchema))
	return conn
}

func insertVisit(t *testing.T, conn *sqlite.Conn, id int, url string) {
	t.Helper()
	err := sqlitex.Exec(conn, `INSERT INTO urls (id, url, title, visit_count, typed_count, last_visit_time)
		VALUES (?, ?, ?, 1, 0, ?)`, nil, id, url, "title "+url, sampleVisitTime)
	require.NoError(t, err)
	err = sqlitex.Exec(conn, `INSERT INTO visits (id, url, visit_time, transition) VALUES (?, ?, ?, 805306368)`,
		nil, id, id, sampleVisitTime)
	require.NoError(t, err)
}

// A copied database plus its copied write-ahead log must yield the union of
// checkpointed and un-checkpointed rows.
func TestHistoryParserSeesWALRows(t *testing.T) {
	srcDir := t.TempDir()
	stagingDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "History")

	conn := openFixture(t, srcPath)

	for i := 1; i <= 3; i++ {
		insertVisit(t, conn, i, fmt.Sprintf("https://example.com/page%d", i))
	}
	require.NoError(t, sqlitex.Exec(conn, `PRAGMA wal_checkpoint(TRUNCATE)`, nil))

	// these two rows only exist in the write-ahead log
	insertVisit(t, conn, 4, "https://example.com/page4")
	insertVisit(t, conn, 5, "https://example.com/page5")

	// copy database and WAL while the writer is still open, the way a
	// forensic extraction captures a running browser profile
	stagedDB := filepath.Join(stagingDir, "History")
	stagedWAL := filepath.Join(stagingDir, "History-wal")
	copyFile(t, srcPath, stagedDB)
	copyFile(t, srcPath+"-wal", stagedWAL)
	require.NoError(t, conn.Close())

	records, warnings, err := HistoryParser{}.Parse(stagedDB, []string{stagedWAL})
	require.NoError(t, err)
	require.Len(t, records.Visits, 5)

	urls := make([]string, 0, len(records.Visits))
	for _, v := range records.Visits {
		urls = append(urls, v.URL)
	}
	assert.Contains(t, urls, "https://example.com/page4")
	assert.Contains(t, urls, "https://example.com/page5")
	require.NotNil(t, records.Visits[0].VisitTime)
	assert.Equal(t, "2019-11-13T15:59:36Z", surfsifter.Timestamp(*records.Visits[0].VisitTime))

	for _, w := range warnings {
		assert.NotEqual(t, surfsifter.SeverityError, w.Severity)
	}
}

func TestHistoryParserSearchTerms(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "History")

	conn := openFixture(t, path)
	insertVisit(t, conn, 1, "https://search.example/?q=golang+forensics")
	err := sqlitex.Exec(conn, `INSERT INTO keyword_search_terms (keyword_id, url_id, term, normalized_term)
		VALUES (2, 1, 'golang forensics', 'golang forensics')`, nil)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	records, _, err := HistoryParser{}.Parse(path, nil)
	require.NoError(t, err)
	require.Len(t, records.SearchTerms, 1)
	assert.Equal(t, "golang forensics", records.SearchTerms[0].Term)
	assert.Equal(t, "https://search.example/?q=golang+forensics", records.SearchTerms[0].URL)
	require.NotNil(t, records.SearchTerms[0].SearchTime)
}

// Unknown tables and columns surface as informational warnings, never as
// parse failures.
func TestHistoryParserUnknownSchema(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "History")

	conn := openFixture(t, path)
	require.NoError(t, sqlitex.ExecScript(conn, `
		CREATE TABLE shiny_new_feature (id INTEGER PRIMARY KEY);
		ALTER TABLE urls ADD COLUMN experiment_flags INTEGER;`))
	insertVisit(t, conn, 1, "https://example.com/")
	require.NoError(t, conn.Close())

	records, warnings, err := HistoryParser{}.Parse(path, nil)
	require.NoError(t, err)
	assert.Len(t, records.Visits, 1)

	var names []string
	for _, w := range warnings {
		names = append(names, w.ItemName)
	}
	assert.Contains(t, names, "shiny_new_feature")
	assert.Contains(t, names, "urls.experiment_flags")
}

// A non-SQLite file degrades to warnings and an empty batch.
func TestHistoryParserCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "History")
	require.NoError(t, os.WriteFile(path, []byte("this is not a database"), 0640))

	records, warnings, err := HistoryParser{}.Parse(path, nil)
	require.NoError(t, err)
	assert.True(t, records.Empty())
	require.NotEmpty(t, warnings)
	assert.Equal(t, surfsifter.SeverityError, warnings[0].Severity)
}

func TestHistoryParserMissingFile(t *testing.T) {
	_, _, err := HistoryParser{}.Parse(filepath.Join(t.TempDir(), "nope"), nil)
	assert.Error(t, err)
}

func copyFile(t *testing.T, src, dst string) {
	t.Helper()
	data, err := os.ReadFile(src)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(dst, data, 0640))
}
